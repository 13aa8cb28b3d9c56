// Copyright 2025 The go-onyx Authors

package aa

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onyxchain/go-onyx/core/rawdb"
)

func newTestFactory(t *testing.T) (*WalletFactory, *mockStateDB, *memorydb.Database, *EventJournal) {
	t.Helper()
	state := newMockStateDB()
	registry := memorydb.New()
	journal := NewEventJournal()
	factory := NewWalletFactory(NativeWalletFactoryAddress, NativeEntryPointAddress, state, newMockCallBackend(), registry, journal)
	return factory, state, registry, journal
}

func TestGetAddressDeterministic(t *testing.T) {
	factory, state, _, _ := newTestFactory(t)

	owner := common.HexToAddress("0x4444444444444444444444444444444444444444")
	salt := uint256.NewInt(42)

	before := factory.GetAddress(owner, salt)
	assert.Equal(t, before, factory.GetAddress(owner, salt), "derivation must be pure")

	// Distinct inputs land on distinct addresses.
	assert.NotEqual(t, before, factory.GetAddress(owner, uint256.NewInt(43)))
	other := common.HexToAddress("0x5555555555555555555555555555555555555555")
	assert.NotEqual(t, before, factory.GetAddress(other, salt))

	wallet, err := factory.CreateAccount(owner, salt)
	require.NoError(t, err)
	require.Equal(t, before, wallet.Address())

	// Deployment does not perturb the derivation.
	assert.Equal(t, before, factory.GetAddress(owner, salt))
	assert.NotEmpty(t, state.GetCode(before))
}

func TestCreateAccountIdempotent(t *testing.T) {
	factory, state, registry, journal := newTestFactory(t)

	owner := common.HexToAddress("0x4444444444444444444444444444444444444444")
	salt := uint256.NewInt(42)

	first, err := factory.CreateAccount(owner, salt)
	require.NoError(t, err)

	second, err := factory.CreateAccount(owner, salt)
	require.NoError(t, err)
	assert.Equal(t, first.Address(), second.Address())

	// Exactly one deployment: one creation event, one registry record.
	assert.Equal(t, 1, journal.Count("AccountCreated"))
	assert.Equal(t, 1, journal.Count("AccountDeployed"))
	assert.Equal(t, 1, journal.Count("WalletInitialized"))
	assert.Equal(t, 1, rawdb.CountWalletDeployments(registry))

	record := rawdb.ReadWalletDeployment(registry, first.Address())
	require.NotNil(t, record)
	assert.Equal(t, owner, record.Owner)
	assert.Equal(t, salt.Bytes32(), record.Salt)
	assert.Equal(t, walletRuntimeCode, state.GetCode(first.Address()))
}

func TestWalletAtReconstructsHandle(t *testing.T) {
	factory, _, _, _ := newTestFactory(t)

	owner := common.HexToAddress("0x4444444444444444444444444444444444444444")
	wallet, err := factory.CreateAccount(owner, uint256.NewInt(1))
	require.NoError(t, err)

	restored, err := factory.WalletAt(wallet.Address())
	require.NoError(t, err)
	assert.Equal(t, wallet.Address(), restored.Address())
	assert.Equal(t, owner, restored.Owner())
	assert.Equal(t, NativeEntryPointAddress, restored.EntryPointAddress())

	_, err = factory.WalletAt(common.HexToAddress("0x6666666666666666666666666666666666666666"))
	require.Error(t, err)
}

func TestCreateAccountWithDeposit(t *testing.T) {
	factory, state, _, _ := newTestFactory(t)

	owner := common.HexToAddress("0x4444444444444444444444444444444444444444")
	funder := common.HexToAddress("0x7777777777777777777777777777777777777777")
	state.AddBalance(funder, uint256.NewInt(1000))

	wallet, err := factory.CreateAccountWithDeposit(funder, owner, uint256.NewInt(9), uint256.NewInt(600))
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(600), wallet.Balance())
	assert.Equal(t, uint256.NewInt(400), state.GetBalance(funder))
}

func TestCreateAccountWithDepositTransferFailure(t *testing.T) {
	factory, state, _, journal := newTestFactory(t)

	owner := common.HexToAddress("0x4444444444444444444444444444444444444444")
	funder := common.HexToAddress("0x7777777777777777777777777777777777777777")
	state.AddBalance(funder, uint256.NewInt(10))

	wallet, err := factory.CreateAccountWithDeposit(funder, owner, uint256.NewInt(9), uint256.NewInt(600))
	require.ErrorIs(t, err, ErrFundTransferFailed)

	// The wallet stays deployed but unfunded; the caller gets the handle.
	require.NotNil(t, wallet)
	assert.NotEmpty(t, state.GetCode(wallet.Address()))
	assert.True(t, wallet.Balance().IsZero())
	assert.Equal(t, 1, journal.Count("AccountCreated"))
}

func TestBatchCreateAccountsOrdered(t *testing.T) {
	factory, _, _, journal := newTestFactory(t)

	owners := []common.Address{
		common.HexToAddress("0x4444444444444444444444444444444444444444"),
		common.HexToAddress("0x5555555555555555555555555555555555555555"),
		common.HexToAddress("0x6666666666666666666666666666666666666666"),
	}
	salts := []*uint256.Int{uint256.NewInt(1), uint256.NewInt(2), uint256.NewInt(3)}

	wallets, err := factory.BatchCreateAccounts(owners, salts)
	require.NoError(t, err)
	require.Len(t, wallets, 3)
	for i := range owners {
		assert.Equal(t, factory.GetAddress(owners[i], salts[i]), wallets[i].Address(), "index %d", i)
		assert.Equal(t, owners[i], wallets[i].Owner(), "index %d", i)
	}
	assert.Equal(t, 3, journal.Count("AccountCreated"))
}

func TestBatchCreateAccountsArityMismatch(t *testing.T) {
	factory, state, registry, journal := newTestFactory(t)

	owners := []common.Address{
		common.HexToAddress("0x4444444444444444444444444444444444444444"),
		common.HexToAddress("0x5555555555555555555555555555555555555555"),
	}
	salts := []*uint256.Int{uint256.NewInt(1)}

	wallets, err := factory.BatchCreateAccounts(owners, salts)
	require.ErrorIs(t, err, ErrArityMismatch)
	assert.Nil(t, wallets)

	// The arity check precedes any creation.
	assert.Zero(t, journal.Count("AccountCreated"))
	assert.Zero(t, rawdb.CountWalletDeployments(registry))
	assert.Empty(t, state.GetCode(factory.GetAddress(owners[0], salts[0])))
}

// failingStore wraps the in-memory registry and fails writes after a budget
// of successful puts.
type failingStore struct {
	*memorydb.Database
	remaining int
}

func (s *failingStore) Put(key, value []byte) error {
	if s.remaining <= 0 {
		return errors.New("registry write rejected")
	}
	s.remaining--
	return s.Database.Put(key, value)
}

func TestBatchCreateAccountsAbortsOnFirstFailure(t *testing.T) {
	state := newMockStateDB()
	registry := &failingStore{Database: memorydb.New(), remaining: 1}
	journal := NewEventJournal()
	factory := NewWalletFactory(NativeWalletFactoryAddress, NativeEntryPointAddress, state, newMockCallBackend(), registry, journal)

	owners := []common.Address{
		common.HexToAddress("0x4444444444444444444444444444444444444444"),
		common.HexToAddress("0x5555555555555555555555555555555555555555"),
	}
	salts := []*uint256.Int{uint256.NewInt(1), uint256.NewInt(2)}

	wallets, err := factory.BatchCreateAccounts(owners, salts)
	require.ErrorIs(t, err, ErrDeploymentFailed)
	assert.Contains(t, err.Error(), "batch index 1")
	assert.Nil(t, wallets)

	// The first wallet stays deployed; the failed one leaves no code behind.
	assert.NotEmpty(t, state.GetCode(factory.GetAddress(owners[0], salts[0])))
	assert.Empty(t, state.GetCode(factory.GetAddress(owners[1], salts[1])))
	assert.Equal(t, 1, journal.Count("AccountCreated"))
}

func TestFactoryReceive(t *testing.T) {
	factory, state, _, _ := newTestFactory(t)

	from := common.HexToAddress("0x3333333333333333333333333333333333333333")
	state.AddBalance(from, uint256.NewInt(100))

	require.NoError(t, factory.Receive(from, uint256.NewInt(100)))
	assert.Equal(t, uint256.NewInt(100), state.GetBalance(factory.Address()))
	require.NoError(t, factory.Receive(from, nil))
}
