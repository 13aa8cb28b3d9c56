// Copyright 2025 The go-onyx Authors
// This file is part of the go-onyx library.
//
// Core types for the smart-wallet protocol: the UserOperation record,
// operation hashing, and the packed validation-data encoding shared with
// EIP-4337 tooling.

package aa

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Signature validation results, packed into the low bits of validation data.
const (
	SigValidationSucceeded = 0
	SigValidationFailed    = 1
)

var (
	maxUint48  = uint256.NewInt(1<<48 - 1)
	maxUint160 = new(uint256.Int).SubUint64(new(uint256.Int).Lsh(uint256.NewInt(1), 160), 1)
)

// UserOperation represents an EIP-4337 compatible user operation.
type UserOperation struct {
	Sender               common.Address `json:"sender"`
	Nonce                *uint256.Int   `json:"nonce"`
	InitCode             []byte         `json:"initCode"`
	CallData             []byte         `json:"callData"`
	CallGasLimit         uint64         `json:"callGasLimit"`
	VerificationGasLimit uint64         `json:"verificationGasLimit"`
	PreVerificationGas   uint64         `json:"preVerificationGas"`
	MaxFeePerGas         *uint256.Int   `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *uint256.Int   `json:"maxPriorityFeePerGas"`
	PaymasterAndData     []byte         `json:"paymasterAndData"` // first 20 bytes = paymaster address
	Signature            []byte         `json:"signature"`
}

// PaymasterAddress extracts the paymaster address from PaymasterAndData.
// Returns zero address if no paymaster.
func (op *UserOperation) PaymasterAddress() common.Address {
	if len(op.PaymasterAndData) < 20 {
		return common.Address{}
	}
	return common.BytesToAddress(op.PaymasterAndData[:20])
}

// PaymasterData returns the paymaster-specific data portion.
func (op *UserOperation) PaymasterData() []byte {
	if len(op.PaymasterAndData) <= 20 {
		return nil
	}
	return op.PaymasterAndData[20:]
}

// HasPaymaster returns true if this operation has a paymaster.
func (op *UserOperation) HasPaymaster() bool {
	return len(op.PaymasterAndData) >= 20 && op.PaymasterAddress() != (common.Address{})
}

// TotalGasLimit returns total gas required for the operation.
func (op *UserOperation) TotalGasLimit() uint64 {
	return op.CallGasLimit + op.VerificationGasLimit + op.PreVerificationGas
}

// UserOpHash computes the digest uniquely identifying a UserOperation under a
// given entrypoint and chain. All static fields are packed and hashed; the
// signature is excluded since the digest is what gets signed.
func UserOpHash(op *UserOperation, entryPoint common.Address, chainID *uint256.Int) common.Hash {
	if op == nil {
		return common.Hash{}
	}
	packed := make([]byte, 0, 340)
	packed = append(packed, op.Sender.Bytes()...)
	packed = append(packed, pad32(op.Nonce)...)
	packed = append(packed, crypto.Keccak256(op.InitCode)...)
	packed = append(packed, crypto.Keccak256(op.CallData)...)
	packed = append(packed, pad32(uint256.NewInt(op.CallGasLimit))...)
	packed = append(packed, pad32(uint256.NewInt(op.VerificationGasLimit))...)
	packed = append(packed, pad32(uint256.NewInt(op.PreVerificationGas))...)
	packed = append(packed, pad32(op.MaxFeePerGas)...)
	packed = append(packed, pad32(op.MaxPriorityFeePerGas)...)
	packed = append(packed, crypto.Keccak256(op.PaymasterAndData)...)

	return crypto.Keccak256Hash(
		crypto.Keccak256(packed),
		common.LeftPadBytes(entryPoint.Bytes(), 32),
		pad32(chainID),
	)
}

// UserOpReceipt contains the outcome of a processed UserOperation.
type UserOpReceipt struct {
	UserOpHash common.Hash    `json:"userOpHash"`
	Sender     common.Address `json:"sender"`
	Nonce      *uint256.Int   `json:"nonce"`
	Success    bool           `json:"success"`
	Reason     string         `json:"reason,omitempty"` // failure reason if Success is false
}

// ValidationData is the unpacked form of the validation word returned by
// ValidateUserOp and ValidatePaymasterUserOp. The packed layout keeps
// compatibility with EIP-4337 accounts:
//
//	[0:160)   signature validation result (0 = succeeded, 1 = failed)
//	[160:208) validUntil (0 means "forever")
//	[208:256) validAfter
type ValidationData struct {
	SigValidation uint64
	ValidUntil    uint64
	ValidAfter    uint64
}

// PackValidationData encodes a ValidationData into its uint256 wire form.
// The canonical "valid, no time restriction" value packs to zero.
func PackValidationData(v *ValidationData) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	packed := uint256.NewInt(v.SigValidation)
	packed.Or(packed, new(uint256.Int).Lsh(uint256.NewInt(v.ValidUntil), 160))
	packed.Or(packed, new(uint256.Int).Lsh(uint256.NewInt(v.ValidAfter), 208))
	return packed
}

// ParseValidationData decodes a packed validation word. A zero validUntil is
// normalized to the maximum 48-bit timestamp, meaning "valid forever".
func ParseValidationData(packed *uint256.Int) *ValidationData {
	if packed == nil {
		return nil
	}
	sig := new(uint256.Int).And(packed, maxUint160)
	validUntil := new(uint256.Int).And(new(uint256.Int).Rsh(packed, 160), maxUint48)
	if validUntil.IsZero() {
		validUntil.Set(maxUint48)
	}
	validAfter := new(uint256.Int).And(new(uint256.Int).Rsh(packed, 208), maxUint48)
	return &ValidationData{
		SigValidation: sig.Uint64(),
		ValidUntil:    validUntil.Uint64(),
		ValidAfter:    validAfter.Uint64(),
	}
}

// pad32 returns the 32-byte big-endian form of v, treating nil as zero.
func pad32(v *uint256.Int) []byte {
	if v == nil {
		v = new(uint256.Int)
	}
	b := v.Bytes32()
	return b[:]
}

// u256OrZero returns v, or a fresh zero if v is nil.
func u256OrZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}
