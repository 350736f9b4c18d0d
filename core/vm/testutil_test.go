package vm

import (
	"math/big"

	"github.com/coreevm/evm/core/types"
	"github.com/coreevm/evm/crypto"
)

// fakeStore is a minimal in-memory AccountStore for exercising the
// interpreter end to end without any persistence layer, matching
// spec.md §6.1's read-only contract.
type fakeStore struct {
	accounts map[types.Address]types.AccountInfo
	codes    map[types.Hash][]byte
	storage  map[types.Address]map[types.Hash]types.Hash
	hashes   map[uint64]types.Hash
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts: make(map[types.Address]types.AccountInfo),
		codes:    make(map[types.Hash][]byte),
		storage:  make(map[types.Address]map[types.Hash]types.Hash),
		hashes:   make(map[uint64]types.Hash),
	}
}

func (f *fakeStore) setBalance(addr types.Address, balance *big.Int) {
	info := f.accounts[addr]
	info.Balance = balance
	if info.CodeHash == (types.Hash{}) {
		info.CodeHash = types.EmptyCodeHash
	}
	f.accounts[addr] = info
}

func (f *fakeStore) setCode(addr types.Address, code []byte) {
	hash := types.BytesToHash(crypto.Keccak256(code))
	f.codes[hash] = code
	info := f.accounts[addr]
	info.CodeHash = hash
	if info.Balance == nil {
		info.Balance = new(big.Int)
	}
	f.accounts[addr] = info
}

func (f *fakeStore) setNonce(addr types.Address, nonce uint64) {
	info := f.accounts[addr]
	info.Nonce = nonce
	if info.Balance == nil {
		info.Balance = new(big.Int)
	}
	if info.CodeHash == (types.Hash{}) {
		info.CodeHash = types.EmptyCodeHash
	}
	f.accounts[addr] = info
}

func (f *fakeStore) setStorage(addr types.Address, key, val types.Hash) {
	if f.storage[addr] == nil {
		f.storage[addr] = make(map[types.Hash]types.Hash)
	}
	f.storage[addr][key] = val
}

func (f *fakeStore) Basic(addr types.Address) (types.AccountInfo, bool, error) {
	info, ok := f.accounts[addr]
	if !ok {
		return types.AccountInfo{}, false, nil
	}
	return info, true, nil
}

func (f *fakeStore) CodeByHash(hash types.Hash) ([]byte, error) {
	return f.codes[hash], nil
}

func (f *fakeStore) Storage(addr types.Address, key types.Hash) (types.Hash, error) {
	return f.storage[addr][key], nil
}

func (f *fakeStore) BlockHash(n uint64) (types.Hash, error) {
	return f.hashes[n], nil
}

// newTestEVM returns an EVM over store on a Cancun-configured block/tx
// environment suitable for most interpreter-level tests.
func newTestEVM(store *fakeStore) *EVM {
	return New(
		store,
		BlockEnv{Number: 100, Coinbase: types.HexToAddress("0xc0ffee0000000000000000000000000000c0ff"), Timestamp: 1000, GasLimit: 30_000_000},
		TxEnv{Origin: types.HexToAddress("0x0a"), GasPrice: types.NewWord(), ChainID: types.WordFromUint64(1)},
		CfgEnv{SpecId: Cancun},
		nil,
	)
}
