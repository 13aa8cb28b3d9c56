// Copyright 2025 The go-onyx Authors
// This file is part of the go-onyx library.
//
// Database accessors for smart-wallet deployment records. A record maps a
// derived wallet address to the parameters it was deployed with; records are
// write-once, mirroring the irreversible not-deployed -> deployed transition.

package rawdb

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"
)

// walletDeploymentPrefix is the prefix for wallet deployment records.
// walletDeploymentPrefix + wallet address -> RLP(WalletDeployment)
var walletDeploymentPrefix = []byte("aawd-")

// WalletDeployment records the constructor parameters a wallet was deployed
// with. Salt is stored in its 32-byte big-endian form.
type WalletDeployment struct {
	Owner common.Address
	Salt  [32]byte
}

// walletDeploymentKey returns the database key for a wallet's deployment record.
func walletDeploymentKey(address common.Address) []byte {
	return append(walletDeploymentPrefix, address.Bytes()...)
}

// HasWalletDeployment checks if a deployment record exists for the address.
func HasWalletDeployment(db ethdb.KeyValueReader, address common.Address) bool {
	has, _ := db.Has(walletDeploymentKey(address))
	return has
}

// ReadWalletDeployment retrieves the deployment record for the address, or
// nil if none exists.
func ReadWalletDeployment(db ethdb.KeyValueReader, address common.Address) *WalletDeployment {
	data, err := db.Get(walletDeploymentKey(address))
	if err != nil || len(data) == 0 {
		return nil
	}
	record := new(WalletDeployment)
	if err := rlp.DecodeBytes(data, record); err != nil {
		log.Error("Invalid wallet deployment record", "address", address, "err", err)
		return nil
	}
	return record
}

// WriteWalletDeployment stores the deployment record for the address.
func WriteWalletDeployment(db ethdb.KeyValueWriter, address common.Address, record *WalletDeployment) error {
	data, err := rlp.EncodeToBytes(record)
	if err != nil {
		return err
	}
	return db.Put(walletDeploymentKey(address), data)
}

// CountWalletDeployments iterates all deployment records and returns how many
// exist.
func CountWalletDeployments(db ethdb.Iteratee) int {
	it := db.NewIterator(walletDeploymentPrefix, nil)
	defer it.Release()

	n := 0
	for it.Next() {
		n++
	}
	return n
}
