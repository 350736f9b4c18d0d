package vm

import "github.com/coreevm/evm/core/types"

// Memory is the per-frame byte-addressable memory: always a multiple of 32
// bytes in length, zero-extended on first touch of a higher word. Callers
// must charge expansion gas (see gasMemoryExpansion) before calling Resize;
// Memory itself never charges gas, it only panics on a caller's out-of-
// bounds mistake.
type Memory struct {
	store []byte
}

// NewMemory returns a new, empty Memory.
func NewMemory() *Memory {
	return &Memory{}
}

// Set copies value into memory at the given offset. size may be less than
// len(value); only the first size bytes are copied.
func (m *Memory) Set(offset, size uint64, value []byte) {
	if size == 0 {
		return
	}
	if offset+size > uint64(len(m.store)) {
		panic("memory: out of bounds write")
	}
	copy(m.store[offset:offset+size], value[:size])
}

// Set32 writes a word at the given offset, big-endian, zero-padded to 32
// bytes.
func (m *Memory) Set32(offset uint64, val *types.Word) {
	if offset+32 > uint64(len(m.store)) {
		panic("memory: out of bounds write")
	}
	b := val.Bytes32()
	copy(m.store[offset:offset+32], b[:])
}

// Resize grows memory to at least size bytes. size must already be rounded
// up to a multiple of 32 by the caller (WordCount); Resize is a no-op if
// memory is already that long or longer -- memory only ever grows.
func (m *Memory) Resize(size uint64) {
	if uint64(len(m.store)) < size {
		m.store = append(m.store, make([]byte, size-uint64(len(m.store)))...)
	}
}

// Get returns a copy of memory[offset:offset+size], zero-extended past the
// current length (reads past the end never panic, per spec.md's memory
// contract).
func (m *Memory) Get(offset, size uint64) []byte {
	if size == 0 {
		return nil
	}
	out := make([]byte, size)
	if offset < uint64(len(m.store)) {
		n := copy(out, m.store[offset:])
		_ = n
	}
	return out
}

// GetPtr returns a direct slice reference to memory at [offset, offset+size).
// The caller must not hold it past the next mutation to Memory.
func (m *Memory) GetPtr(offset, size uint64) []byte {
	if size == 0 {
		return nil
	}
	return m.store[offset : offset+size]
}

// Copy implements MCOPY (EIP-5656): copies size bytes from src to dst
// within the same memory, with correct overlap semantics (as if via a
// temporary buffer).
func (m *Memory) Copy(dst, src, size uint64) {
	if size == 0 {
		return
	}
	copy(m.store[dst:dst+size], m.store[src:src+size])
}

// Len returns the current length of memory in bytes.
func (m *Memory) Len() uint64 {
	return uint64(len(m.store))
}

// Data returns the full backing slice.
func (m *Memory) Data() []byte {
	return m.store
}

// WordCount returns the number of 32-byte words needed to cover size bytes,
// i.e. ceil(size/32).
func WordCount(size uint64) uint64 {
	return (size + 31) / 32
}
