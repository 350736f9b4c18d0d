package types

import (
	"math/big"

	"github.com/holiman/uint256"
)

// Word is the 256-bit machine word the interpreter computes with: stack
// slots, memory offsets, storage keys and values are all a Word.
//
// uint256.Int is used instead of math/big so arithmetic stays allocation-free
// on the hot path; every opcode operates on fixed [4]uint64 limbs rather than
// heap-backed big.Int words.
type Word = uint256.Int

// NewWord returns the zero Word.
func NewWord() *Word { return new(uint256.Int) }

// WordFromUint64 returns a Word holding the given uint64.
func WordFromUint64(v uint64) *Word { return new(uint256.Int).SetUint64(v) }

// WordFromBytes interprets b as a big-endian integer, left-padding or
// truncating on the left as uint256.SetBytes does.
func WordFromBytes(b []byte) *Word { return new(uint256.Int).SetBytes(b) }

// WordToHash reinterprets a Word as a big-endian Hash.
func WordToHash(w *Word) Hash {
	return Hash(w.Bytes32())
}

// HashToWord interprets a Hash as a big-endian Word.
func HashToWord(h Hash) *Word {
	return new(uint256.Int).SetBytes(h[:])
}

// WordToAddress truncates a Word to its low 20 bytes, as CALL-family
// opcodes do when popping a callee address off the stack.
func WordToAddress(w *Word) Address {
	b := w.Bytes20()
	return Address(b)
}

// AddressToWord left-pads an Address into a Word.
func AddressToWord(a Address) *Word {
	return new(uint256.Int).SetBytes(a[:])
}

// WordFromBig converts a big.Int (as used at the AccountStore boundary for
// balances) into a Word, truncating modulo 2^256 like the EVM's own
// unsigned arithmetic.
func WordFromBig(b *big.Int) *Word {
	w := new(uint256.Int)
	w.SetFromBig(b)
	return w
}
