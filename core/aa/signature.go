// Copyright 2025 The go-onyx Authors
// This file is part of the go-onyx library.
//
// Owner-signature verification for UserOperations: bounds-checked decoding of
// the 65-byte (r, s, v) blob and secp256k1 recovery over the EIP-191 framed
// operation digest.

package aa

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrInvalidSignatureLength = errors.New("signature must be 65 bytes (r, s, v)")
	ErrInvalidSignature       = errors.New("invalid signature")
)

// signedMessagePrefix is the EIP-191 "personal sign" prefix for a 32-byte
// payload. The framing must be bit-exact: prefix || digest, then keccak256.
const signedMessagePrefix = "\x19Ethereum Signed Message:\n32"

// DecodeSignature splits a signature blob into its (r, s, v) components. The
// total length is validated before any slicing, and v is normalized to a
// 0/1 recovery id (27/28 legacy values are accepted).
func DecodeSignature(sig []byte) (r, s [32]byte, v byte, err error) {
	if len(sig) != crypto.SignatureLength {
		return r, s, 0, fmt.Errorf("%w: got %d bytes", ErrInvalidSignatureLength, len(sig))
	}
	copy(r[:], sig[0:32])
	copy(s[:], sig[32:64])
	v = sig[64]
	if v >= 27 {
		v -= 27
	}
	if v > 1 {
		return r, s, 0, fmt.Errorf("%w: recovery id %d out of range", ErrInvalidSignature, sig[64])
	}
	return r, s, v, nil
}

// RecoverSigner recovers the address that signed the EIP-191 framed form of
// digest. Length errors surface as ErrInvalidSignatureLength without any
// recovery attempt; everything else that goes wrong is ErrInvalidSignature.
func RecoverSigner(digest common.Hash, sig []byte) (common.Address, error) {
	r, s, v, err := DecodeSignature(sig)
	if err != nil {
		return common.Address{}, err
	}

	rsv := make([]byte, crypto.SignatureLength)
	copy(rsv[0:32], r[:])
	copy(rsv[32:64], s[:])
	rsv[64] = v

	pubKey, err := crypto.Ecrecover(frameDigest(digest), rsv)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return common.BytesToAddress(crypto.Keccak256(pubKey[1:])[12:]), nil
}

// frameDigest applies the EIP-191 signed-message framing to a raw digest.
func frameDigest(digest common.Hash) []byte {
	return crypto.Keccak256([]byte(signedMessagePrefix), digest.Bytes())
}
