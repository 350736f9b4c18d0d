package vm

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestMemoryResize(t *testing.T) {
	mem := NewMemory()
	require.Equal(t, uint64(0), mem.Len())

	mem.Resize(64)
	require.Equal(t, uint64(64), mem.Len())

	// Resize never shrinks.
	mem.Resize(32)
	require.Equal(t, uint64(64), mem.Len())
}

func TestMemorySetGet(t *testing.T) {
	mem := NewMemory()
	mem.Resize(64)

	data := []byte{0xde, 0xad, 0xbe, 0xef}
	mem.Set(10, uint64(len(data)), data)

	require.Equal(t, data, mem.Get(10, uint64(len(data))))
}

func TestMemorySet32(t *testing.T) {
	mem := NewMemory()
	mem.Resize(32)

	val := uint256.NewInt(0xff)
	mem.Set32(0, val)

	want := make([]byte, 32)
	want[31] = 0xff
	require.Equal(t, want, mem.Get(0, 32))
}

func TestMemoryGetPtrIsLiveReference(t *testing.T) {
	mem := NewMemory()
	mem.Resize(32)

	data := []byte{1, 2, 3, 4}
	mem.Set(0, 4, data)

	ptr := mem.GetPtr(0, 4)
	require.Equal(t, data, ptr)

	ptr[0] = 0xff
	require.Equal(t, byte(0xff), mem.Data()[0])
}

func TestMemoryGetZeroSize(t *testing.T) {
	mem := NewMemory()
	mem.Resize(32)

	require.Nil(t, mem.Get(0, 0))
	require.Nil(t, mem.GetPtr(0, 0))
}

func TestMemoryGetPastEndZeroExtends(t *testing.T) {
	mem := NewMemory()
	mem.Resize(32)

	got := mem.Get(16, 32)
	require.Len(t, got, 32)
	require.Equal(t, make([]byte, 32), got)
}

func TestMemoryCopyOverlapping(t *testing.T) {
	mem := NewMemory()
	mem.Resize(64)
	mem.Set(0, 4, []byte{1, 2, 3, 4})

	mem.Copy(2, 0, 4)
	require.Equal(t, []byte{1, 2, 1, 2, 3, 4}, mem.Get(0, 6))
}

func TestWordCount(t *testing.T) {
	require.Equal(t, uint64(0), WordCount(0))
	require.Equal(t, uint64(1), WordCount(1))
	require.Equal(t, uint64(1), WordCount(32))
	require.Equal(t, uint64(2), WordCount(33))
}

func TestMemCost(t *testing.T) {
	// 1 word: 1*3 + 1/512 = 3
	require.Equal(t, uint64(3), memCost(1))
	// 2 words: 2*3 + 4/512 = 6
	require.Equal(t, uint64(6), memCost(2))
	// 32 words: 32*3 + 1024/512 = 96 + 2 = 98
	require.Equal(t, uint64(98), memCost(32))
}

func TestMemCostQuadraticGrowth(t *testing.T) {
	small := memCost(32)
	large := memCost(1024)
	ratio := float64(large) / float64(small)
	require.Greater(t, ratio, 32.0)
}
