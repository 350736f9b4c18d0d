package vm

import (
	"sync"

	"github.com/coreevm/evm/core/types"
	"github.com/coreevm/evm/crypto"
)

// Bytecode is an immutable, shareable program: the raw bytes plus a
// precomputed jump-destination bitmap. It is analyzed once per unique code
// hash and cached so concurrent frames executing the same code share one
// instance by reference.
type Bytecode struct {
	code     []byte
	hash     types.Hash
	jumpdest bitvec
}

// bitvec is a bit-per-byte-offset map: bit i is set iff code[i] is a valid
// JUMPDEST (a JUMPDEST opcode not inside a PUSH's immediate data).
type bitvec []byte

func newBitvec(size int) bitvec {
	return make(bitvec, (size+7)/8)
}

func (b bitvec) set(pos uint64) {
	b[pos/8] |= 1 << (pos % 8)
}

func (b bitvec) isSet(pos uint64) bool {
	if pos/8 >= uint64(len(b)) {
		return false
	}
	return b[pos/8]&(1<<(pos%8)) != 0
}

// analyze walks code once, skipping PUSH immediates, and marks every
// JUMPDEST byte offset that is real code (not push data). Opcode b in
// [PUSH1, PUSH32] is followed by (b - PUSH1 + 1) immediate bytes that must
// be skipped before considering the next opcode; a fall-through past the
// end of code is treated as an implicit STOP, so the scan never reads out
// of bounds.
func analyze(code []byte) bitvec {
	bits := newBitvec(len(code))
	for pc := uint64(0); pc < uint64(len(code)); pc++ {
		op := OpCode(code[pc])
		if op == JUMPDEST {
			bits.set(pc)
			continue
		}
		if op.IsPush() {
			pc += uint64(op - PUSH1 + 1)
		}
	}
	return bits
}

// codeCache maps a code hash to its analyzed Bytecode, so identical
// contract code across frames and transactions shares one analysis.
type codeCache struct {
	mu    sync.Mutex
	cache map[types.Hash]*Bytecode
}

var globalCodeCache = &codeCache{cache: make(map[types.Hash]*Bytecode)}

// NewBytecode returns the analyzed Bytecode for code, reusing a cached
// analysis if this exact code has been seen before (keyed by its keccak256
// hash). The returned value is immutable and safe to share across frames.
func NewBytecode(code []byte) *Bytecode {
	hash := types.BytesToHash(crypto.Keccak256(code))
	return newBytecodeWithHash(code, hash)
}

// NewBytecodeWithHash is like NewBytecode but accepts a precomputed hash,
// avoiding a redundant keccak256 when the caller already knows it (e.g. a
// deployed account's CodeHash field).
func NewBytecodeWithHash(code []byte, hash types.Hash) *Bytecode {
	return newBytecodeWithHash(code, hash)
}

func newBytecodeWithHash(code []byte, hash types.Hash) *Bytecode {
	globalCodeCache.mu.Lock()
	defer globalCodeCache.mu.Unlock()
	if bc, ok := globalCodeCache.cache[hash]; ok {
		return bc
	}
	bc := &Bytecode{code: code, hash: hash, jumpdest: analyze(code)}
	globalCodeCache.cache[hash] = bc
	return bc
}

// Code returns the raw bytes. The caller must not mutate the returned slice.
func (b *Bytecode) Code() []byte { return b.code }

// Hash returns the code's keccak256 hash.
func (b *Bytecode) Hash() types.Hash { return b.hash }

// Len returns the number of bytes in the program.
func (b *Bytecode) Len() int { return len(b.code) }

// At returns the opcode at position n, or STOP (the implicit fall-through)
// if n is past the end of code.
func (b *Bytecode) At(n uint64) OpCode {
	if n < uint64(len(b.code)) {
		return OpCode(b.code[n])
	}
	return STOP
}

// ValidJumpdest reports whether dest is a valid JUMP/JUMPI target: in
// bounds, the JUMPDEST opcode, and not inside PUSH immediate data.
func (b *Bytecode) ValidJumpdest(dest uint64) bool {
	if dest >= uint64(len(b.code)) {
		return false
	}
	if OpCode(b.code[dest]) != JUMPDEST {
		return false
	}
	return b.jumpdest.isSet(dest)
}

// GetData copies length bytes from code starting at offset, zero-padding
// past the end. Used by CODECOPY/EXTCODECOPY and CREATE's bytecode slice.
func (b *Bytecode) GetData(offset, length uint64) []byte {
	out := make([]byte, length)
	if offset >= uint64(len(b.code)) {
		return out
	}
	end := offset + length
	if end > uint64(len(b.code)) {
		end = uint64(len(b.code))
	}
	copy(out, b.code[offset:end])
	return out
}
