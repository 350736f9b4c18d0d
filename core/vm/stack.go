package vm

import (
	"github.com/holiman/uint256"

	"github.com/coreevm/evm/core/types"
)

const stackLimit = 1024

// Stack is the EVM operand stack: fixed capacity 1024 words. Backed by a
// slice of uint256.Int values (not pointers) so pushing a fresh word never
// allocates on the heap.
type Stack struct {
	data []uint256.Int
}

// NewStack returns a new empty stack with room for the full 1024 words.
func NewStack() *Stack {
	return &Stack{data: make([]uint256.Int, 0, stackLimit)}
}

// Push pushes val onto the stack. The caller must have already verified
// there is room; Push panics on overflow, matching the interpreter's
// convention of checking (pops, pushes) before executing an opcode.
func (st *Stack) Push(val *types.Word) {
	if len(st.data) >= stackLimit {
		panic("stack overflow")
	}
	st.data = append(st.data, *val)
}

// Pop removes and returns the top element.
func (st *Stack) Pop() types.Word {
	n := len(st.data) - 1
	v := st.data[n]
	st.data = st.data[:n]
	return v
}

// Peek returns a pointer to the top element without removing it.
func (st *Stack) Peek() *types.Word {
	return &st.data[len(st.data)-1]
}

// Back returns a pointer to the nth element from the top (0-indexed: 0 = top).
func (st *Stack) Back(n int) *types.Word {
	return &st.data[len(st.data)-1-n]
}

// Swap swaps the top element with the nth element from the top.
func (st *Stack) Swap(n int) {
	top := len(st.data) - 1
	st.data[top], st.data[top-n] = st.data[top-n], st.data[top]
}

// Dup duplicates the nth element from the top (1-indexed, as DUPn does)
// and pushes the copy.
func (st *Stack) Dup(n int) {
	v := st.data[len(st.data)-n]
	st.data = append(st.data, v)
}

// Len returns the number of items on the stack.
func (st *Stack) Len() int {
	return len(st.data)
}

// Require reports whether the stack holds at least n items. The interpreter
// checks it before an opcode runs and halts the frame with a StackUnderflow
// exception when it returns false, so no opcode effect is observed.
func (st *Stack) Require(n int) bool {
	return len(st.data) >= n
}

// CanPush reports whether n more items fit without overflowing.
func (st *Stack) CanPush(n int) bool {
	return len(st.data)+n <= stackLimit
}
