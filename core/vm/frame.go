package vm

import (
	"github.com/holiman/uint256"

	"github.com/coreevm/evm/core/types"
)

// MaxCallDepth is the maximum number of nested frames (spec.md §3/§5).
const MaxCallDepth = 1024

// CallGasFraction is the divisor in the EIP-150 63/64 rule: a parent may
// forward at most (63/64) of its remaining gas to a child call.
const CallGasFraction = 64

// FrameKind identifies how a frame was entered.
type FrameKind uint8

const (
	FrameCall FrameKind = iota
	FrameCallCode
	FrameDelegateCall
	FrameStaticCall
	FrameCreate
	FrameCreate2
)

func (k FrameKind) String() string {
	switch k {
	case FrameCall:
		return "CALL"
	case FrameCallCode:
		return "CALLCODE"
	case FrameDelegateCall:
		return "DELEGATECALL"
	case FrameStaticCall:
		return "STATICCALL"
	case FrameCreate:
		return "CREATE"
	case FrameCreate2:
		return "CREATE2"
	default:
		return "UNKNOWN"
	}
}

// IsCreate reports whether this frame kind deploys a contract.
func (k FrameKind) IsCreate() bool { return k == FrameCreate || k == FrameCreate2 }

// GasState tracks the gas budget of one frame: the limit it started with,
// how much has been used, and its accumulated refund counter contribution.
type GasState struct {
	Limit   uint64
	Used    uint64
	Refund  uint64
}

// Remaining returns the gas left in this frame.
func (g *GasState) Remaining() uint64 {
	if g.Used > g.Limit {
		return 0
	}
	return g.Limit - g.Used
}

// Consume deducts amount from the frame's remaining gas. It reports false
// (without mutating Used) if that would go negative, so the caller can halt
// OutOfGas before any observable effect, per spec.md §4.2.
func (g *GasState) Consume(amount uint64) bool {
	if amount > g.Remaining() {
		return false
	}
	g.Used += amount
	return true
}

// Frame is one activation of a call or create: it owns its stack, memory,
// gas, and a pointer to immutable, shared Bytecode. Frames live in a
// FrameStack (an arena indexed by depth, not linked nodes) and the
// interpreter never recurses natively to create one -- see EVM.run.
type Frame struct {
	Kind FrameKind

	CodeAddress   types.Address // whose code is executing
	TargetAddress types.Address // whose storage/balance SLOAD/SSTORE/BALANCE see
	Caller        types.Address
	ApparentValue *uint256.Int

	Input []byte
	Code  *Bytecode
	PC    uint64

	Stack  *Stack
	Memory *Memory
	Gas    GasState

	ReturnData *ReturnDataBuffer // most recent child's output
	ReturnTo   CallMemoryRegion  // where to splice a child's RETURN bytes

	IsStatic bool

	Checkpoint int // journal checkpoint taken at frame entry
	Depth      int

	isInitCode      bool             // true while running CREATE/CREATE2 init code
	pendingReturnTo CallMemoryRegion // where a just-issued CALL's output lands
}

// NewFrame allocates a fresh Frame ready to run code from PC 0.
func NewFrame(kind FrameKind, codeAddr, targetAddr, caller types.Address, value *uint256.Int, input []byte, code *Bytecode, gasLimit uint64, isStatic bool, depth int) *Frame {
	return &Frame{
		Kind:          kind,
		CodeAddress:   codeAddr,
		TargetAddress: targetAddr,
		Caller:        caller,
		ApparentValue: value,
		Input:         input,
		Code:          code,
		Stack:         NewStack(),
		Memory:        NewMemory(),
		Gas:           GasState{Limit: gasLimit},
		ReturnData:    NewReturnDataBuffer(),
		IsStatic:      isStatic,
		Depth:         depth,
	}
}

// resumeCall folds a finished CALL-family child's outcome into this frame:
// push 1/0 per EVM convention, splice output into the requested memory
// region on success, and advance past the CALL instruction.
func (f *Frame) resumeCall(res *StepResult) error {
	f.ReturnData.Set(res.Output)
	success := res.Status == StepReturn && !res.callFailed
	word := types.NewWord()
	if success {
		word = types.WordFromUint64(1)
		if f.pendingReturnTo.Size > 0 && len(res.Output) > 0 {
			n := f.pendingReturnTo.Size
			if uint64(len(res.Output)) < n {
				n = uint64(len(res.Output))
			}
			f.Memory.Set(f.pendingReturnTo.Offset, n, res.Output)
		}
	}
	f.Stack.Push(word)
	f.PC++
	return nil
}

// resumeCreate folds a finished CREATE-family child's outcome into this
// frame: push the new address on success, 0 otherwise.
func (f *Frame) resumeCreate(res *StepResult, addr types.Address) error {
	f.ReturnData.Set(res.Output)
	success := res.Status == StepReturn && !res.callFailed
	if success {
		f.Stack.Push(types.AddressToWord(addr))
	} else {
		f.Stack.Push(types.NewWord())
	}
	f.PC++
	return nil
}

// FrameStack is the explicit call-stack arena (spec.md §4.3, §9): an
// indexable slice rather than linked frames, so the interpreter's
// orchestrator can push/pop without ever recursing the host call stack.
type FrameStack struct {
	frames []*Frame
}

// NewFrameStack returns an empty FrameStack.
func NewFrameStack() *FrameStack {
	return &FrameStack{frames: make([]*Frame, 0, 16)}
}

// Depth returns the number of active frames.
func (fs *FrameStack) Depth() int { return len(fs.frames) }

// CanPush reports whether one more frame fits under MaxCallDepth.
func (fs *FrameStack) CanPush() bool { return len(fs.frames) < MaxCallDepth }

// Push adds a new frame on top of the stack.
func (fs *FrameStack) Push(f *Frame) {
	f.Depth = len(fs.frames)
	fs.frames = append(fs.frames, f)
}

// Pop removes and returns the top frame, or nil if the stack is empty.
func (fs *FrameStack) Pop() *Frame {
	n := len(fs.frames)
	if n == 0 {
		return nil
	}
	f := fs.frames[n-1]
	fs.frames = fs.frames[:n-1]
	return f
}

// Current returns the top frame without removing it, or nil if empty.
func (fs *FrameStack) Current() *Frame {
	n := len(fs.frames)
	if n == 0 {
		return nil
	}
	return fs.frames[n-1]
}

// ForwardGas computes the gas to forward to a child call under the EIP-150
// 63/64 rule: the caller retains at least floor(available/64).
func ForwardGas(available, requested uint64) uint64 {
	maxForward := available - available/CallGasFraction
	if requested > maxForward {
		return maxForward
	}
	return requested
}

// CallMemoryRegion describes a memory range for call input/output or a
// child's return-data splice target.
type CallMemoryRegion struct {
	Offset uint64
	Size   uint64
}

// End returns Offset+Size, or 0 if Size is 0 (no memory touched).
func (r CallMemoryRegion) End() uint64 {
	if r.Size == 0 {
		return 0
	}
	return r.Offset + r.Size
}

// ReturnDataBuffer holds the bytes returned by the most recently completed
// child call, per EIP-211. It is replaced wholesale before each new child
// call and read by RETURNDATASIZE/RETURNDATACOPY.
type ReturnDataBuffer struct {
	data []byte
}

// NewReturnDataBuffer returns an empty buffer.
func NewReturnDataBuffer() *ReturnDataBuffer { return &ReturnDataBuffer{} }

// Set replaces the buffer's contents with a copy of data.
func (b *ReturnDataBuffer) Set(data []byte) {
	if len(data) == 0 {
		b.data = nil
		return
	}
	b.data = make([]byte, len(data))
	copy(b.data, data)
}

// Data returns the current contents (may be nil).
func (b *ReturnDataBuffer) Data() []byte { return b.data }

// Size returns len(Data()).
func (b *ReturnDataBuffer) Size() uint64 { return uint64(len(b.data)) }

// Slice returns a copy of data[offset:offset+size]. RETURNDATACOPY reading
// past the end halts OutOfOffset rather than zero-extending.
func (b *ReturnDataBuffer) Slice(offset, size uint64) ([]byte, error) {
	if size == 0 {
		return nil, nil
	}
	end := offset + size
	if end < offset || end > uint64(len(b.data)) {
		return nil, newException(ReasonOutOfOffset)
	}
	out := make([]byte, size)
	copy(out, b.data[offset:end])
	return out, nil
}
