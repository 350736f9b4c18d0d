package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coreevm/evm/core/types"
)

type memStore struct {
	accounts map[types.Address]types.AccountInfo
	codes    map[types.Hash][]byte
	storage  map[types.Address]map[types.Hash]types.Hash
}

func newMemStore() *memStore {
	return &memStore{
		accounts: make(map[types.Address]types.AccountInfo),
		codes:    make(map[types.Hash][]byte),
		storage:  make(map[types.Address]map[types.Hash]types.Hash),
	}
}

func (m *memStore) Basic(addr types.Address) (types.AccountInfo, bool, error) {
	info, ok := m.accounts[addr]
	return info, ok, nil
}

func (m *memStore) CodeByHash(hash types.Hash) ([]byte, error) { return m.codes[hash], nil }

func (m *memStore) Storage(addr types.Address, key types.Hash) (types.Hash, error) {
	return m.storage[addr][key], nil
}

func (m *memStore) BlockHash(n uint64) (types.Hash, error) { return types.Hash{}, nil }

func TestCheckpointRevertRoundTrip(t *testing.T) {
	store := newMemStore()
	addr := types.HexToAddress("0x01")
	store.accounts[addr] = types.AccountInfo{Balance: big.NewInt(100), CodeHash: types.EmptyCodeHash}

	s := New(store)
	var slot types.Hash

	cp := s.Checkpoint()
	_, err := s.SStore(addr, slot, types.BytesToHash([]byte{9}))
	require.NoError(t, err)
	s.AddRefund(4800)

	val, _, err := s.LoadStorage(addr, slot)
	require.NoError(t, err)
	require.Equal(t, types.BytesToHash([]byte{9}), val)
	require.Equal(t, uint64(4800), s.Refund())

	s.RevertTo(cp)

	val, _, err = s.LoadStorage(addr, slot)
	require.NoError(t, err)
	require.Equal(t, types.Hash{}, val)
	require.Equal(t, uint64(0), s.Refund())
}

func TestCommitCheckpointKeepsMutations(t *testing.T) {
	store := newMemStore()
	addr := types.HexToAddress("0x02")
	store.accounts[addr] = types.AccountInfo{Balance: big.NewInt(0), CodeHash: types.EmptyCodeHash}

	s := New(store)
	var slot types.Hash

	cp := s.Checkpoint()
	_, err := s.SStore(addr, slot, types.BytesToHash([]byte{7}))
	require.NoError(t, err)
	s.CommitCheckpoint(cp)

	val, _, err := s.LoadStorage(addr, slot)
	require.NoError(t, err)
	require.Equal(t, types.BytesToHash([]byte{7}), val)
}

func TestNestedCheckpointsOnlyRevertInner(t *testing.T) {
	store := newMemStore()
	addr := types.HexToAddress("0x03")
	store.accounts[addr] = types.AccountInfo{Balance: big.NewInt(0), CodeHash: types.EmptyCodeHash}

	s := New(store)
	var slot types.Hash

	outer := s.Checkpoint()
	_, err := s.SStore(addr, slot, types.BytesToHash([]byte{1}))
	require.NoError(t, err)

	inner := s.Checkpoint()
	_, err = s.SStore(addr, slot, types.BytesToHash([]byte{2}))
	require.NoError(t, err)
	s.RevertTo(inner)

	val, _, err := s.LoadStorage(addr, slot)
	require.NoError(t, err)
	require.Equal(t, types.BytesToHash([]byte{1}), val, "outer's write must survive an inner revert")

	s.CommitCheckpoint(outer)
}

func TestSstoreSetFromZero(t *testing.T) {
	store := newMemStore()
	addr := types.HexToAddress("0x04")
	store.accounts[addr] = types.AccountInfo{Balance: big.NewInt(0), CodeHash: types.EmptyCodeHash}

	s := New(store)
	var slot types.Hash

	res, err := s.SStore(addr, slot, types.BytesToHash([]byte{1}))
	require.NoError(t, err)
	require.True(t, res.WasCold)
	require.Equal(t, types.Hash{}, res.Original)
	require.Equal(t, types.Hash{}, res.Old)
	require.Equal(t, types.BytesToHash([]byte{1}), res.New)
}

func TestSstoreWarmOnSecondAccess(t *testing.T) {
	store := newMemStore()
	addr := types.HexToAddress("0x05")
	store.accounts[addr] = types.AccountInfo{Balance: big.NewInt(0), CodeHash: types.EmptyCodeHash}

	s := New(store)
	var slot types.Hash

	_, err := s.SStore(addr, slot, types.BytesToHash([]byte{1}))
	require.NoError(t, err)
	res, err := s.SStore(addr, slot, types.BytesToHash([]byte{2}))
	require.NoError(t, err)
	require.False(t, res.WasCold)
}

// TestSelfDestructEip6780Gating: a pre-existing contract's SELFDESTRUCT is
// only actually scheduled for deletion when markDestroyed is computed true
// by the caller (the vm package gates this on CreatedThisTx post-Cancun).
func TestSelfDestructEip6780Gating(t *testing.T) {
	store := newMemStore()
	from := types.HexToAddress("0x06")
	to := types.HexToAddress("0x07")
	store.accounts[from] = types.AccountInfo{Balance: big.NewInt(50), CodeHash: types.EmptyCodeHash}

	s := New(store)
	info, err := s.SelfDestruct(from, to, false)
	require.NoError(t, err)
	require.True(t, info.HadValue)
	require.False(t, s.HasSelfDestructed(from))

	bal, err := s.GetBalance(from)
	require.NoError(t, err)
	require.Equal(t, int64(0), bal.Int64())
	toBal, err := s.GetBalance(to)
	require.NoError(t, err)
	require.Equal(t, int64(50), toBal.Int64())
}

func TestSelfDestructMarksDestroyedWhenRequested(t *testing.T) {
	store := newMemStore()
	from := types.HexToAddress("0x08")
	to := types.HexToAddress("0x09")
	store.accounts[from] = types.AccountInfo{Balance: big.NewInt(0), CodeHash: types.EmptyCodeHash}

	s := New(store)
	_, err := s.SelfDestruct(from, to, true)
	require.NoError(t, err)
	require.True(t, s.HasSelfDestructed(from))
}

func TestCreatedThisTx(t *testing.T) {
	store := newMemStore()
	addr := types.HexToAddress("0x0a")
	s := New(store)

	require.False(t, s.CreatedThisTx(addr))
	require.NoError(t, s.MarkCreated(addr))
	require.True(t, s.CreatedThisTx(addr))
}

func TestBalanceTransferInsufficientFunds(t *testing.T) {
	store := newMemStore()
	from := types.HexToAddress("0x0b")
	to := types.HexToAddress("0x0c")
	store.accounts[from] = types.AccountInfo{Balance: big.NewInt(10), CodeHash: types.EmptyCodeHash}

	s := New(store)
	err := s.BalanceTransfer(from, to, big.NewInt(20))
	require.Error(t, err)
}

func TestFinalizeRemovesEmptyAndDestructedAccounts(t *testing.T) {
	store := newMemStore()
	empty := types.HexToAddress("0x0d")
	destructed := types.HexToAddress("0x0e")
	kept := types.HexToAddress("0x0f")
	store.accounts[kept] = types.AccountInfo{Balance: big.NewInt(1), CodeHash: types.EmptyCodeHash}

	s := New(store)
	_, err := s.LoadAccount(empty)
	require.NoError(t, err)
	_, err = s.LoadAccount(kept)
	require.NoError(t, err)
	store.accounts[destructed] = types.AccountInfo{Balance: big.NewInt(5), CodeHash: types.EmptyCodeHash}
	_, err = s.SelfDestruct(destructed, kept, true)
	require.NoError(t, err)

	s.Finalize()

	_, ok := s.accounts[empty]
	require.False(t, ok)
	_, ok = s.accounts[destructed]
	require.False(t, ok)
	_, ok = s.accounts[kept]
	require.True(t, ok)
}
