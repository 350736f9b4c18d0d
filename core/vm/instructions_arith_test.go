package vm

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func newTestInterpreter() *Interpreter {
	return &Interpreter{frame: &Frame{Stack: NewStack(), Memory: NewMemory()}}
}

func TestOpAdd(t *testing.T) {
	ip := newTestInterpreter()
	ip.frame.Stack.Push(uint256.NewInt(3))
	ip.frame.Stack.Push(uint256.NewInt(4))
	_, err := opAdd(ip)
	require.NoError(t, err)
	require.Equal(t, uint64(7), ip.frame.Stack.Pop().Uint64())
}

func TestOpSdivByZero(t *testing.T) {
	ip := newTestInterpreter()
	ip.frame.Stack.Push(uint256.NewInt(0))  // divisor (second from top)
	ip.frame.Stack.Push(uint256.NewInt(10)) // dividend (top)
	_, err := opSdiv(ip)
	require.NoError(t, err)
	require.True(t, ip.frame.Stack.Pop().IsZero())
}

func TestOpAddmodZeroModulus(t *testing.T) {
	ip := newTestInterpreter()
	ip.frame.Stack.Push(uint256.NewInt(0))  // modulus (third from top)
	ip.frame.Stack.Push(uint256.NewInt(10)) // b
	ip.frame.Stack.Push(uint256.NewInt(5))  // a (top)
	_, err := opAddmod(ip)
	require.NoError(t, err)
	require.True(t, ip.frame.Stack.Pop().IsZero())
}

func TestOpExp(t *testing.T) {
	ip := newTestInterpreter()
	ip.frame.Stack.Push(uint256.NewInt(10)) // exponent, pushed first so base ends up on top
	ip.frame.Stack.Push(uint256.NewInt(2))  // base
	_, err := opExp(ip)
	require.NoError(t, err)
	require.Equal(t, uint64(1024), ip.frame.Stack.Pop().Uint64())
}

func TestOpSarNegativeAllOnes(t *testing.T) {
	ip := newTestInterpreter()
	minusOne := new(uint256.Int).Sub(new(uint256.Int), uint256.NewInt(1))
	ip.frame.Stack.Push(minusOne)
	ip.frame.Stack.Push(uint256.NewInt(256))
	_, err := opSAR(ip)
	require.NoError(t, err)
	got := ip.frame.Stack.Pop()
	require.Equal(t, minusOne.Bytes32(), got.Bytes32())
}

func TestOpEqIsZero(t *testing.T) {
	ip := newTestInterpreter()
	ip.frame.Stack.Push(uint256.NewInt(5))
	ip.frame.Stack.Push(uint256.NewInt(5))
	_, err := opEq(ip)
	require.NoError(t, err)
	require.Equal(t, uint64(1), ip.frame.Stack.Pop().Uint64())

	ip.frame.Stack.Push(uint256.NewInt(0))
	_, err = opIsZero(ip)
	require.NoError(t, err)
	require.Equal(t, uint64(1), ip.frame.Stack.Pop().Uint64())
}

func TestOpByte(t *testing.T) {
	ip := newTestInterpreter()
	var word uint256.Int
	word.SetBytes([]byte{0xaa, 0xbb, 0xcc, 0xdd})
	ip.frame.Stack.Push(&word)
	ip.frame.Stack.Push(uint256.NewInt(28)) // 4th byte from the end in a 32-byte word
	_, err := opByte(ip)
	require.NoError(t, err)
	require.Equal(t, uint64(0xaa), ip.frame.Stack.Pop().Uint64())
}
