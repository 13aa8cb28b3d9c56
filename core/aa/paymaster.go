// Copyright 2025 The go-onyx Authors
// This file is part of the go-onyx library.
//
// VerifyingPaymaster: gas sponsorship gated by an off-chain signer. The
// paymaster checks a signature to agree to PAY; the wallet checks a signature
// to prove OWNERSHIP - the two are never interchangeable.

package aa

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
)

var (
	ErrPaymasterMismatch    = errors.New("operation names a different paymaster")
	ErrPaymasterUnderfunded = errors.New("paymaster balance below max cost")
)

// VerifyingPaymaster sponsors operations whose paymaster data carries a valid
// signature from the trusted sponsorship signer. Like the wallet, it only
// answers to the trusted entrypoint.
type VerifyingPaymaster struct {
	address    common.Address
	signer     common.Address
	entryPoint common.Address
	state      StateDB
}

// NewVerifyingPaymaster creates a paymaster at address trusting signer's
// sponsorship signatures.
func NewVerifyingPaymaster(address, signer, entryPoint common.Address, state StateDB) *VerifyingPaymaster {
	return &VerifyingPaymaster{
		address:    address,
		signer:     signer,
		entryPoint: entryPoint,
		state:      state,
	}
}

// Address returns the paymaster's own address.
func (pm *VerifyingPaymaster) Address() common.Address { return pm.address }

// SponsorshipHash is the digest the sponsorship signer signs: the operation's
// static fields bound to this paymaster, excluding the paymaster data itself
// (which carries the signature).
func (pm *VerifyingPaymaster) SponsorshipHash(op *UserOperation, chainID *uint256.Int) common.Hash {
	packed := make([]byte, 0, 308)
	packed = append(packed, op.Sender.Bytes()...)
	packed = append(packed, pad32(op.Nonce)...)
	packed = append(packed, crypto.Keccak256(op.InitCode)...)
	packed = append(packed, crypto.Keccak256(op.CallData)...)
	packed = append(packed, pad32(uint256.NewInt(op.TotalGasLimit()))...)
	packed = append(packed, pad32(op.MaxFeePerGas)...)
	packed = append(packed, pad32(op.MaxPriorityFeePerGas)...)

	return crypto.Keccak256Hash(
		crypto.Keccak256(packed),
		pad32(chainID),
		common.LeftPadBytes(pm.address.Bytes(), 32),
	)
}

// ValidatePaymasterUserOp decides whether the paymaster agrees to cover up to
// maxCost for op. A wrong or missing sponsorship signature is reported through
// the validation data (SigValidationFailed) rather than an error, so a host
// can simulate without a valid signature; structural problems abort.
func (pm *VerifyingPaymaster) ValidatePaymasterUserOp(caller common.Address, op *UserOperation, chainID *uint256.Int, maxCost *uint256.Int) (*uint256.Int, error) {
	if caller != pm.entryPoint {
		return nil, fmt.Errorf("%w: caller %s, entrypoint %s", ErrUnauthorized, caller, pm.entryPoint)
	}
	if op.PaymasterAddress() != pm.address {
		return nil, fmt.Errorf("%w: %s", ErrPaymasterMismatch, op.PaymasterAddress())
	}
	if pm.state.GetBalance(pm.address).Lt(u256OrZero(maxCost)) {
		return nil, fmt.Errorf("%w: have %s, need %s", ErrPaymasterUnderfunded, pm.state.GetBalance(pm.address), maxCost)
	}

	data := op.PaymasterData()
	if len(data) < crypto.SignatureLength {
		return nil, fmt.Errorf("%w: paymaster data carries %d bytes", ErrInvalidSignatureLength, len(data))
	}
	sig := data[len(data)-crypto.SignatureLength:]

	failed := PackValidationData(&ValidationData{SigValidation: SigValidationFailed})
	recovered, err := RecoverSigner(pm.SponsorshipHash(op, chainID), sig)
	if err != nil {
		log.Debug("Paymaster signature unrecoverable", "sender", op.Sender, "err", err)
		return failed, nil
	}
	if recovered != pm.signer {
		return failed, nil
	}
	return PackValidationData(&ValidationData{SigValidation: SigValidationSucceeded}), nil
}
