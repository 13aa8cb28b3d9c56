// Copyright 2025 The go-onyx Authors

package aa

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationDataPacking(t *testing.T) {
	// The canonical success value is an all-zero word.
	assert.True(t, PackValidationData(&ValidationData{}).IsZero())

	packed := PackValidationData(&ValidationData{
		SigValidation: SigValidationFailed,
		ValidUntil:    1_900_000_000,
		ValidAfter:    1_700_000_000,
	})
	parsed := ParseValidationData(packed)
	assert.EqualValues(t, SigValidationFailed, parsed.SigValidation)
	assert.EqualValues(t, 1_900_000_000, parsed.ValidUntil)
	assert.EqualValues(t, 1_700_000_000, parsed.ValidAfter)

	// A zero validUntil means "forever" and parses as the 48-bit maximum.
	forever := ParseValidationData(PackValidationData(&ValidationData{}))
	assert.Equal(t, maxUint48.Uint64(), forever.ValidUntil)

	assert.Nil(t, ParseValidationData(nil))
	assert.True(t, PackValidationData(nil).IsZero())
}

func TestUserOpHashBinding(t *testing.T) {
	op := &UserOperation{
		Sender:               common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Nonce:                uint256.NewInt(4),
		CallData:             []byte{0x01},
		CallGasLimit:         10_000,
		MaxFeePerGas:         uint256.NewInt(2),
		MaxPriorityFeePerGas: uint256.NewInt(1),
	}
	entryPoint := NativeEntryPointAddress
	chainID := uint256.NewInt(86)

	base := UserOpHash(op, entryPoint, chainID)
	assert.Equal(t, base, UserOpHash(op, entryPoint, chainID), "hash must be deterministic")

	// Every binding input shifts the digest.
	assert.NotEqual(t, base, UserOpHash(op, entryPoint, uint256.NewInt(87)))
	assert.NotEqual(t, base, UserOpHash(op, common.HexToAddress("0x2222222222222222222222222222222222222222"), chainID))

	bumped := *op
	bumped.Nonce = uint256.NewInt(5)
	assert.NotEqual(t, base, UserOpHash(&bumped, entryPoint, chainID))

	// The signature is excluded: signing must not change what gets signed.
	signed := *op
	signed.Signature = make([]byte, 65)
	assert.Equal(t, base, UserOpHash(&signed, entryPoint, chainID))
}

func TestPaymasterFields(t *testing.T) {
	op := &UserOperation{}
	assert.False(t, op.HasPaymaster())
	assert.Equal(t, common.Address{}, op.PaymasterAddress())
	assert.Nil(t, op.PaymasterData())

	pm := common.HexToAddress("0xaaaa0000000000000000000000000000000000aa")
	op.PaymasterAndData = append(pm.Bytes(), 0xde, 0xad)
	require.True(t, op.HasPaymaster())
	assert.Equal(t, pm, op.PaymasterAddress())
	assert.Equal(t, []byte{0xde, 0xad}, op.PaymasterData())
}

func TestEventJournal(t *testing.T) {
	var nilJournal *EventJournal
	nilJournal.Append(AccountCreatedEvent{}) // nil-safe no-op
	assert.Zero(t, nilJournal.Count("AccountCreated"))

	journal := NewEventJournal()
	journal.Append(AccountCreatedEvent{Account: common.HexToAddress("0x01")})
	journal.Append(AccountDeployedEvent{Account: common.HexToAddress("0x01"), Salt: uint256.NewInt(1)})
	journal.Append(AccountCreatedEvent{Account: common.HexToAddress("0x02")})

	assert.Equal(t, 2, journal.Count("AccountCreated"))
	assert.Equal(t, 1, journal.Count("AccountDeployed"))
	assert.Zero(t, journal.Count("TransactionExecuted"))
	assert.Len(t, journal.Events(), 3)
}
