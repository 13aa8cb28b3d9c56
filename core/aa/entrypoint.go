// Copyright 2025 The go-onyx Authors
// This file is part of the go-onyx library.
//
// EntryPoint is the trusted validation environment: the sole authorized
// caller of wallet validation and execution. It carries the host-side half of
// the protocol - counterfactual deployment, nonce bookkeeping, prefund
// accounting and receipts.

package aa

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
)

var (
	// NativeEntryPointAddress is the well-known native EntryPoint address.
	NativeEntryPointAddress = common.HexToAddress("0x0000000000000000000000000000000000AA4337")

	ErrInvalidOperation  = errors.New("invalid user operation")
	ErrSenderNotDeployed = errors.New("sender wallet not deployed and no initCode")
	ErrSenderMismatch    = errors.New("initCode does not deploy the operation sender")
	ErrNonceMismatch     = errors.New("invalid user operation nonce")
	ErrUnknownFactory    = errors.New("initCode names an unknown factory")
	ErrUnknownPaymaster  = errors.New("operation names an unregistered paymaster")
	ErrPaymasterRejected = errors.New("paymaster declined sponsorship")
	ErrMalformedInitCode = errors.New("malformed initCode")
	ErrMalformedCallData = errors.New("malformed callData")
)

// initCode layout: factory address, then the two 32-byte padded createAccount
// arguments. callData layout: target address, 32-byte value, raw payload.
const (
	initCodeOwnerOffset = 20
	initCodeSaltOffset  = 52
	initCodeLength      = 84

	callDataValueOffset   = 20
	callDataPayloadOffset = 52
)

// StateDB is the minimal host-ledger interface the wallet core needs.
type StateDB interface {
	GetBalance(addr common.Address) *uint256.Int
	AddBalance(addr common.Address, amount *uint256.Int)
	SubBalance(addr common.Address, amount *uint256.Int)
	GetNonce(addr common.Address) uint64
	SetNonce(addr common.Address, nonce uint64)
	GetCode(addr common.Address) []byte
	SetCode(addr common.Address, code []byte)
	GetCodeHash(addr common.Address) common.Hash
	Exist(addr common.Address) bool
}

// CallBackend performs outbound calls on behalf of a wallet. The host owns
// the call semantics, including value movement and any rollback of a failed
// call's side effects.
type CallBackend interface {
	Call(from, to common.Address, value *uint256.Int, data []byte) ([]byte, error)
}

// EntryPoint processes single UserOperations against the wallets it governs.
// It is shared read-only across all wallets; per-wallet state (nonce, owner)
// belongs to the wallets themselves.
type EntryPoint struct {
	address common.Address
	chainID *uint256.Int

	state      StateDB
	factory    *WalletFactory
	paymasters map[common.Address]*VerifyingPaymaster
	journal    *EventJournal
}

// NewEntryPoint creates an entrypoint at the native address, deploying
// counterfactual senders through factory.
func NewEntryPoint(chainID *uint256.Int, state StateDB, factory *WalletFactory, journal *EventJournal) *EntryPoint {
	return &EntryPoint{
		address:    NativeEntryPointAddress,
		chainID:    u256OrZero(chainID),
		state:      state,
		factory:    factory,
		paymasters: make(map[common.Address]*VerifyingPaymaster),
		journal:    journal,
	}
}

// RegisterPaymaster makes pm available to sponsored operations. Operations
// naming an unregistered paymaster are rejected outright.
func (ep *EntryPoint) RegisterPaymaster(pm *VerifyingPaymaster) {
	ep.paymasters[pm.Address()] = pm
}

// Address returns the entrypoint address.
func (ep *EntryPoint) Address() common.Address { return ep.address }

// OpHash computes the digest of op under this entrypoint and chain.
func (ep *EntryPoint) OpHash(op *UserOperation) common.Hash {
	return UserOpHash(op, ep.address, ep.chainID)
}

// HandleOp runs one UserOperation through the full lifecycle: sender
// deployment, nonce check, paymaster sponsorship when one is named, wallet
// validation with prefund settlement, execution of the callData, and nonce
// advancement. A failing execution still produces a receipt (Success=false);
// validation failures abort with an error and no persisted effects beyond
// what the host rolls back.
func (ep *EntryPoint) HandleOp(op *UserOperation) (*UserOpReceipt, error) {
	if op == nil || op.Nonce == nil || op.MaxFeePerGas == nil {
		return nil, ErrInvalidOperation
	}
	opHash := ep.OpHash(op)

	wallet, err := ep.senderWallet(op)
	if err != nil {
		return nil, err
	}

	if current := ep.state.GetNonce(op.Sender); !op.Nonce.Eq(uint256.NewInt(current)) {
		return nil, fmt.Errorf("%w: expected %d, got %s", ErrNonceMismatch, current, op.Nonce)
	}

	missing := requiredPrefund(op)
	if op.HasPaymaster() {
		if err := ep.sponsorPrefund(op, missing); err != nil {
			return nil, err
		}
		// The sponsor covered the prefund; the wallet owes nothing.
		missing = nil
	}
	if _, err := wallet.ValidateUserOp(ep.address, op, opHash, missing); err != nil {
		return nil, fmt.Errorf("validation: %w", err)
	}

	success, reason := true, ""
	if len(op.CallData) > 0 {
		target, value, payload, err := ParseExecuteCall(op.CallData)
		if err != nil {
			return nil, err
		}
		if err := wallet.Execute(ep.address, target, value, payload); err != nil {
			log.Warn("UserOp execution failed", "sender", op.Sender, "err", err)
			success, reason = false, err.Error()
		}
	}

	ep.state.SetNonce(op.Sender, ep.state.GetNonce(op.Sender)+1)

	return &UserOpReceipt{
		UserOpHash: opHash,
		Sender:     op.Sender,
		Nonce:      op.Nonce.Clone(),
		Success:    success,
		Reason:     reason,
	}, nil
}

// GetSenderAddress derives the wallet address an initCode would deploy,
// without deploying anything.
func (ep *EntryPoint) GetSenderAddress(initCode []byte) (common.Address, error) {
	factory, owner, salt, err := parseInitCode(initCode)
	if err != nil {
		return common.Address{}, err
	}
	if factory != ep.factory.Address() {
		return common.Address{}, fmt.Errorf("%w: %s", ErrUnknownFactory, factory)
	}
	return ep.factory.GetAddress(owner, salt), nil
}

// senderWallet returns a handle to the operation's sender, deploying it via
// initCode when no code resides at the sender address yet.
func (ep *EntryPoint) senderWallet(op *UserOperation) (*SmartWallet, error) {
	if len(ep.state.GetCode(op.Sender)) != 0 {
		return ep.factory.WalletAt(op.Sender)
	}
	if len(op.InitCode) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSenderNotDeployed, op.Sender)
	}

	factory, owner, salt, err := parseInitCode(op.InitCode)
	if err != nil {
		return nil, err
	}
	if factory != ep.factory.Address() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFactory, factory)
	}
	wallet, err := ep.factory.CreateAccount(owner, salt)
	if err != nil {
		return nil, err
	}
	if wallet.Address() != op.Sender {
		return nil, fmt.Errorf("%w: deployed %s, sender %s", ErrSenderMismatch, wallet.Address(), op.Sender)
	}
	log.Info("Sender deployed via initCode", "sender", op.Sender, "factory", factory)
	return wallet, nil
}

// sponsorPrefund routes op's prefund through its named paymaster: the
// paymaster validates the sponsorship signature and, on agreement, pays the
// prefund itself.
func (ep *EntryPoint) sponsorPrefund(op *UserOperation, prefund *uint256.Int) error {
	pm, ok := ep.paymasters[op.PaymasterAddress()]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPaymaster, op.PaymasterAddress())
	}
	data, err := pm.ValidatePaymasterUserOp(ep.address, op, ep.chainID, prefund)
	if err != nil {
		return fmt.Errorf("paymaster validation: %w", err)
	}
	if ParseValidationData(data).SigValidation != SigValidationSucceeded {
		return fmt.Errorf("%w: %s", ErrPaymasterRejected, pm.Address())
	}
	if err := transferBalance(ep.state, pm.Address(), ep.address, prefund); err != nil {
		return fmt.Errorf("%w: %v", ErrPaymasterUnderfunded, err)
	}
	log.Debug("Paymaster sponsored prefund", "paymaster", pm.Address(), "sender", op.Sender, "prefund", prefund)
	return nil
}

// requiredPrefund computes the funding shortfall the wallet owes for op.
func requiredPrefund(op *UserOperation) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(op.TotalGasLimit()), u256OrZero(op.MaxFeePerGas))
}

// PackInitCode assembles the initCode deploying (owner, salt) through factory.
func PackInitCode(factory, owner common.Address, salt *uint256.Int) []byte {
	code := make([]byte, 0, initCodeLength)
	code = append(code, factory.Bytes()...)
	code = append(code, common.LeftPadBytes(owner.Bytes(), 32)...)
	code = append(code, pad32(salt)...)
	return code
}

// parseInitCode splits an initCode into its factory, owner and salt fields,
// validating the total length before extracting any sub-slice.
func parseInitCode(initCode []byte) (factory, owner common.Address, salt *uint256.Int, err error) {
	if len(initCode) != initCodeLength {
		return common.Address{}, common.Address{}, nil, fmt.Errorf("%w: %d bytes, want %d", ErrMalformedInitCode, len(initCode), initCodeLength)
	}
	factory = common.BytesToAddress(initCode[:initCodeOwnerOffset])
	owner = common.BytesToAddress(initCode[initCodeOwnerOffset:initCodeSaltOffset])
	salt = new(uint256.Int).SetBytes(initCode[initCodeSaltOffset:initCodeLength])
	return factory, owner, salt, nil
}

// PackExecuteCall assembles the callData forwarding (value, payload) to target.
func PackExecuteCall(target common.Address, value *uint256.Int, payload []byte) []byte {
	data := make([]byte, 0, callDataPayloadOffset+len(payload))
	data = append(data, target.Bytes()...)
	data = append(data, pad32(value)...)
	data = append(data, payload...)
	return data
}

// ParseExecuteCall splits a callData into its target, value and payload
// fields, validating the minimum length before extracting any sub-slice.
func ParseExecuteCall(data []byte) (target common.Address, value *uint256.Int, payload []byte, err error) {
	if len(data) < callDataPayloadOffset {
		return common.Address{}, nil, nil, fmt.Errorf("%w: %d bytes, want at least %d", ErrMalformedCallData, len(data), callDataPayloadOffset)
	}
	target = common.BytesToAddress(data[:callDataValueOffset])
	value = new(uint256.Int).SetBytes(data[callDataValueOffset:callDataPayloadOffset])
	payload = data[callDataPayloadOffset:]
	return target, value, payload, nil
}
