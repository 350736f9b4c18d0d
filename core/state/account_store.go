package state

import "github.com/coreevm/evm/core/types"

// AccountStore is the read-only external view of persisted state (spec.md
// §6.1). The core never writes through it; all mutations live in the
// Journal's in-memory overlay until the orchestrator decides what to do
// with a finished transaction's result.
type AccountStore interface {
	// Basic returns the account at addr, or ok=false if it does not exist
	// (distinct from an empty account, which does exist).
	Basic(addr types.Address) (info types.AccountInfo, ok bool, err error)

	// CodeByHash returns the bytecode for a previously-seen code hash.
	CodeByHash(hash types.Hash) ([]byte, error)

	// Storage returns the value of a storage slot, or the zero word if unset.
	Storage(addr types.Address, key types.Hash) (types.Hash, error)

	// BlockHash returns the hash of block number n, for the BLOCKHASH
	// opcode. Supports at most the last 256 blocks; returns the zero hash
	// otherwise.
	BlockHash(n uint64) (types.Hash, error)
}
