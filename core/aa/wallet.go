// Copyright 2025 The go-onyx Authors
// This file is part of the go-onyx library.
//
// SmartWallet: the operation-validation state machine and execution gate of a
// single account-abstraction wallet.

package aa

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
)

var (
	ErrUnauthorized          = errors.New("caller is not the trusted entrypoint")
	ErrFundingTransferFailed = errors.New("funding shortfall transfer failed")
	ErrExecutionFailed       = errors.New("outbound call execution failed")
	ErrReentrantCall         = errors.New("reentrant call into wallet execution")

	errInsufficientBalance = errors.New("insufficient balance")
)

// SmartWallet is a deployed account-abstraction wallet. The owner identity and
// the trusted entrypoint reference are fixed at construction and never change;
// the wallet's nonce lives in the host state and is advanced by the entrypoint,
// not by validation itself.
type SmartWallet struct {
	address    common.Address
	owner      common.Address
	entryPoint common.Address

	state   StateDB
	backend CallBackend
	journal *EventJournal

	// Guards Execute against reentry through the outbound call. The host
	// execution model serializes invocations, so a plain flag suffices.
	executing bool
}

// NewSmartWallet constructs a handle to the wallet at address. It does not
// touch state; deployment is the factory's job.
func NewSmartWallet(address, owner, entryPoint common.Address, state StateDB, backend CallBackend, journal *EventJournal) *SmartWallet {
	return &SmartWallet{
		address:    address,
		owner:      owner,
		entryPoint: entryPoint,
		state:      state,
		backend:    backend,
		journal:    journal,
	}
}

// Address returns the wallet's own address.
func (w *SmartWallet) Address() common.Address { return w.address }

// Owner returns the owner identity the wallet validates signatures against.
func (w *SmartWallet) Owner() common.Address { return w.owner }

// EntryPointAddress returns the trusted entrypoint this wallet answers to.
func (w *SmartWallet) EntryPointAddress() common.Address { return w.entryPoint }

// Nonce returns the wallet's current account nonce. Validation reads but never
// advances it; advancement is the entrypoint's responsibility.
func (w *SmartWallet) Nonce() uint64 {
	return w.state.GetNonce(w.address)
}

// Balance returns the wallet's current balance.
func (w *SmartWallet) Balance() *uint256.Int {
	return w.state.GetBalance(w.address)
}

// ValidateUserOp checks that op was signed by the wallet owner over opHash and
// settles missingAccountFunds to the entrypoint. Only the trusted entrypoint
// may call it. On success the returned validation data is the canonical
// "valid, no time restriction" zero word.
//
// The funding transfer happens strictly after signature success, so a rejected
// operation never moves value.
func (w *SmartWallet) ValidateUserOp(caller common.Address, op *UserOperation, opHash common.Hash, missingAccountFunds *uint256.Int) (*uint256.Int, error) {
	if err := w.requireEntryPoint(caller); err != nil {
		return nil, err
	}

	recovered, err := RecoverSigner(opHash, op.Signature)
	if err != nil {
		return nil, err
	}
	if recovered != w.owner {
		return nil, fmt.Errorf("%w: recovered %s, owner %s", ErrInvalidSignature, recovered, w.owner)
	}

	if missingAccountFunds != nil && !missingAccountFunds.IsZero() {
		if err := transferBalance(w.state, w.address, w.entryPoint, missingAccountFunds); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFundingTransferFailed, err)
		}
		log.Debug("Wallet prefunded entrypoint", "wallet", w.address, "amount", missingAccountFunds)
	}

	return PackValidationData(&ValidationData{SigValidation: SigValidationSucceeded}), nil
}

// Execute forwards value and data to target as an outbound call. Only the
// trusted entrypoint may call it. A failing target call fails the whole
// operation; no event is emitted for failures.
func (w *SmartWallet) Execute(caller, target common.Address, value *uint256.Int, data []byte) error {
	if err := w.requireEntryPoint(caller); err != nil {
		return err
	}
	if w.executing {
		return ErrReentrantCall
	}
	w.executing = true
	defer func() { w.executing = false }()

	value = u256OrZero(value)
	if _, err := w.backend.Call(w.address, target, value, data); err != nil {
		return fmt.Errorf("%w: %v", ErrExecutionFailed, err)
	}

	w.journal.Append(TransactionExecutedEvent{Target: target, Value: value.Clone(), Data: data})
	log.Debug("Wallet executed call", "wallet", w.address, "target", target, "value", value)
	return nil
}

// Receive accepts an unsolicited value transfer with no payload.
func (w *SmartWallet) Receive(from common.Address, value *uint256.Int) error {
	if value == nil || value.IsZero() {
		return nil
	}
	return transferBalance(w.state, from, w.address, value)
}

func (w *SmartWallet) requireEntryPoint(caller common.Address) error {
	if caller != w.entryPoint {
		return fmt.Errorf("%w: caller %s, entrypoint %s", ErrUnauthorized, caller, w.entryPoint)
	}
	return nil
}

// transferBalance moves amount from one account to another, failing without
// side effects if the source balance is short.
func transferBalance(state StateDB, from, to common.Address, amount *uint256.Int) error {
	if state.GetBalance(from).Lt(amount) {
		return fmt.Errorf("%w: %s has %s, need %s", errInsufficientBalance, from, state.GetBalance(from), amount)
	}
	state.SubBalance(from, amount)
	state.AddBalance(to, amount)
	return nil
}
