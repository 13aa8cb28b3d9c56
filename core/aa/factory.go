// Copyright 2025 The go-onyx Authors
// This file is part of the go-onyx library.
//
// WalletFactory: deterministic address derivation and idempotent deployment
// of smart wallets.

package aa

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
	"golang.org/x/crypto/sha3"

	"github.com/onyxchain/go-onyx/core/rawdb"
)

var (
	// NativeWalletFactoryAddress is the well-known address of the native
	// wallet factory.
	NativeWalletFactoryAddress = common.HexToAddress("0x0000000000000000000000000000000000AAFAC7")

	ErrArityMismatch              = errors.New("owners and salts length mismatch")
	ErrDeploymentFailed           = errors.New("wallet deployment failed")
	ErrAddressPredictionViolation = errors.New("deployed address diverged from prediction")
	ErrFundTransferFailed         = errors.New("deposit transfer to wallet failed")

	// walletCreationCodePrefix is the fixed head of the wallet instantiation
	// code. The full instantiation code is this prefix followed by the padded
	// constructor parameters (entrypoint, owner); its hash feeds address
	// derivation.
	walletCreationCodePrefix = common.Hex2Bytes("aa57000160005260206000f3")

	// walletRuntimeCode is the code installed at a deployed wallet address.
	// Wallet calls are dispatched natively by the host, so this is an
	// identifying tag rather than executable bytecode; it only has to be
	// non-empty and stable.
	walletRuntimeCode = common.Hex2Bytes("aa570001")
)

// WalletFactory deploys smart wallets at deterministic, content-addressed
// locations. Two factories with the same address and entrypoint derive
// identical wallet addresses.
type WalletFactory struct {
	address    common.Address
	entryPoint common.Address

	state    StateDB
	backend  CallBackend
	registry ethdb.KeyValueStore
	journal  *EventJournal
}

// NewWalletFactory creates a factory rooted at address, deploying wallets
// bound to entryPoint. The registry persists deployment records; a nil
// registry disables them.
func NewWalletFactory(address, entryPoint common.Address, state StateDB, backend CallBackend, registry ethdb.KeyValueStore, journal *EventJournal) *WalletFactory {
	return &WalletFactory{
		address:    address,
		entryPoint: entryPoint,
		state:      state,
		backend:    backend,
		registry:   registry,
		journal:    journal,
	}
}

// Address returns the factory's own address.
func (f *WalletFactory) Address() common.Address { return f.address }

// EntryPointAddress returns the entrypoint new wallets are bound to.
func (f *WalletFactory) EntryPointAddress() common.Address { return f.entryPoint }

// GetAddress derives the address a wallet with the given owner and salt will
// occupy. Pure and read-only: identical inputs yield the identical address
// whether or not the wallet has been deployed.
func (f *WalletFactory) GetAddress(owner common.Address, salt *uint256.Int) common.Address {
	salt = u256OrZero(salt)
	hash := walletInitCodeHash(f.entryPoint, owner)
	return crypto.CreateAddress2(f.address, salt.Bytes32(), hash.Bytes())
}

// CreateAccount returns the wallet for (owner, salt), deploying it first if no
// code resides at the derived address. Repeated calls with the same inputs
// return the same wallet and deploy exactly once.
func (f *WalletFactory) CreateAccount(owner common.Address, salt *uint256.Int) (*SmartWallet, error) {
	salt = u256OrZero(salt)
	predicted := f.GetAddress(owner, salt)

	if len(f.state.GetCode(predicted)) != 0 {
		log.Debug("Wallet already deployed", "address", predicted, "owner", owner)
		return f.walletAt(predicted, owner), nil
	}

	// The deployment path recomputes the address from the raw instantiation
	// code; any disagreement with the pure derivation is an
	// internal-consistency failure, never a user error, and nothing is
	// deployed.
	initCode := walletInitCode(f.entryPoint, owner)
	deployed := crypto.CreateAddress2(f.address, salt.Bytes32(), crypto.Keccak256(initCode))
	if deployed != predicted {
		return nil, fmt.Errorf("%w: predicted %s, deployed %s", ErrAddressPredictionViolation, predicted, deployed)
	}

	if err := f.install(deployed, owner, salt); err != nil {
		return nil, err
	}

	f.journal.Append(WalletInitializedEvent{EntryPoint: f.entryPoint, Owner: owner})
	f.journal.Append(AccountCreatedEvent{Account: deployed, Owner: owner})
	f.journal.Append(AccountDeployedEvent{Account: deployed, Owner: owner, Salt: salt.Clone()})
	log.Info("Smart wallet deployed", "address", deployed, "owner", owner, "salt", salt)

	return f.walletAt(deployed, owner), nil
}

// CreateAccountWithDeposit creates (or finds) the wallet and then forwards
// value from caller to it. A failed forward leaves the wallet deployed but
// unfunded; the returned wallet accompanies the error so the caller can
// remediate.
func (f *WalletFactory) CreateAccountWithDeposit(caller, owner common.Address, salt, value *uint256.Int) (*SmartWallet, error) {
	wallet, err := f.CreateAccount(owner, salt)
	if err != nil {
		return nil, err
	}
	value = u256OrZero(value)
	if !value.IsZero() {
		if err := wallet.Receive(caller, value); err != nil {
			return wallet, fmt.Errorf("%w: %v", ErrFundTransferFailed, err)
		}
		log.Debug("Wallet funded at creation", "address", wallet.Address(), "value", value)
	}
	return wallet, nil
}

// BatchCreateAccounts applies CreateAccount once per index in input order.
// The arity of the two slices is checked before any wallet is created; the
// first failure aborts the batch. Wallets created before the failure remain
// deployed - there is no cross-batch atomicity.
func (f *WalletFactory) BatchCreateAccounts(owners []common.Address, salts []*uint256.Int) ([]*SmartWallet, error) {
	if len(owners) != len(salts) {
		return nil, fmt.Errorf("%w: %d owners, %d salts", ErrArityMismatch, len(owners), len(salts))
	}
	wallets := make([]*SmartWallet, 0, len(owners))
	for i := range owners {
		wallet, err := f.CreateAccount(owners[i], salts[i])
		if err != nil {
			return nil, fmt.Errorf("batch index %d: %w", i, err)
		}
		wallets = append(wallets, wallet)
	}
	return wallets, nil
}

// WalletAt reconstructs a handle to an already-deployed wallet from its
// deployment record.
func (f *WalletFactory) WalletAt(address common.Address) (*SmartWallet, error) {
	if f.registry == nil {
		return nil, fmt.Errorf("no deployment registry configured")
	}
	record := rawdb.ReadWalletDeployment(f.registry, address)
	if record == nil {
		return nil, fmt.Errorf("no deployment record for %s", address)
	}
	return f.walletAt(address, record.Owner), nil
}

// Receive accepts an unsolicited value transfer with no payload.
func (f *WalletFactory) Receive(from common.Address, value *uint256.Int) error {
	if value == nil || value.IsZero() {
		return nil
	}
	return transferBalance(f.state, from, f.address, value)
}

// install writes wallet code at address and records the deployment. Failure
// leaves no partial wallet state.
func (f *WalletFactory) install(address, owner common.Address, salt *uint256.Int) error {
	f.state.SetCode(address, walletRuntimeCode)
	if f.registry != nil {
		record := &rawdb.WalletDeployment{Owner: owner, Salt: salt.Bytes32()}
		if err := rawdb.WriteWalletDeployment(f.registry, address, record); err != nil {
			f.state.SetCode(address, nil)
			return fmt.Errorf("%w: %v", ErrDeploymentFailed, err)
		}
	}
	return nil
}

func (f *WalletFactory) walletAt(address, owner common.Address) *SmartWallet {
	return NewSmartWallet(address, owner, f.entryPoint, f.state, f.backend, f.journal)
}

// walletInitCode assembles the full instantiation code for a wallet:
// the fixed creation-code prefix followed by the two 32-byte padded
// constructor parameters.
func walletInitCode(entryPoint, owner common.Address) []byte {
	code := make([]byte, 0, len(walletCreationCodePrefix)+64)
	code = append(code, walletCreationCodePrefix...)
	code = append(code, common.LeftPadBytes(entryPoint.Bytes(), 32)...)
	code = append(code, common.LeftPadBytes(owner.Bytes(), 32)...)
	return code
}

// walletInitCodeHash computes the instantiation-code content hash without
// materializing the concatenated code.
func walletInitCodeHash(entryPoint, owner common.Address) common.Hash {
	h := sha3.NewLegacyKeccak256()
	h.Write(walletCreationCodePrefix)
	h.Write(common.LeftPadBytes(entryPoint.Bytes(), 32))
	h.Write(common.LeftPadBytes(owner.Bytes(), 32))
	return common.BytesToHash(h.Sum(nil))
}
