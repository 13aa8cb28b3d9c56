// Copyright 2025 The go-onyx Authors
// This file is part of the go-onyx library.
//
// Observability events emitted by the wallet and factory. Events carry no
// behavioral contract; the journal exists so hosts (and tests) can inspect
// what happened during a call.

package aa

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Event is an observability record appended to an EventJournal.
type Event interface {
	Name() string
}

// WalletInitializedEvent is emitted once when a wallet is first deployed.
type WalletInitializedEvent struct {
	EntryPoint common.Address
	Owner      common.Address
}

// TransactionExecutedEvent is emitted after a successful Execute call.
type TransactionExecutedEvent struct {
	Target common.Address
	Value  *uint256.Int
	Data   []byte
}

// AccountCreatedEvent is emitted by the factory when a new wallet is created.
type AccountCreatedEvent struct {
	Account common.Address
	Owner   common.Address
}

// AccountDeployedEvent is emitted by the factory alongside AccountCreatedEvent,
// recording the salt the address was derived with.
type AccountDeployedEvent struct {
	Account common.Address
	Owner   common.Address
	Salt    *uint256.Int
}

func (WalletInitializedEvent) Name() string   { return "WalletInitialized" }
func (TransactionExecutedEvent) Name() string { return "TransactionExecuted" }
func (AccountCreatedEvent) Name() string      { return "AccountCreated" }
func (AccountDeployedEvent) Name() string     { return "AccountDeployed" }

// EventJournal accumulates events in emission order. A nil journal drops
// everything, so emitters never need to check for one.
type EventJournal struct {
	events []Event
}

// NewEventJournal creates an empty journal.
func NewEventJournal() *EventJournal {
	return &EventJournal{}
}

// Append records an event.
func (j *EventJournal) Append(ev Event) {
	if j == nil {
		return
	}
	j.events = append(j.events, ev)
}

// Events returns all recorded events in emission order.
func (j *EventJournal) Events() []Event {
	if j == nil {
		return nil
	}
	return j.events
}

// Count returns how many recorded events carry the given name.
func (j *EventJournal) Count(name string) int {
	n := 0
	for _, ev := range j.Events() {
		if ev.Name() == name {
			n++
		}
	}
	return n
}
