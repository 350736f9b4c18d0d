package vm

import (
	"github.com/holiman/uint256"

	"github.com/coreevm/evm/core/types"
)

// CallInputs describes a child CALL/CALLCODE/DELEGATECALL/STATICCALL,
// yielded by step() as a CallAction instead of being executed recursively
// (spec.md §4.3, §9).
type CallInputs struct {
	Kind          FrameKind
	CodeAddress   types.Address
	TargetAddress types.Address
	Caller        types.Address
	ApparentValue *uint256.Int
	Input         []byte
	GasLimit      uint64
	IsStatic      bool

	// Stipend is the free 2300 gas added to a value-carrying CALL/CALLCODE
	// on top of GasLimit -- charged to the child's budget but never
	// deducted from the parent (EIP made this the always-available gas a
	// receiving contract needs to at least emit a log).
	Stipend uint64
}

// CreateInputs describes a child CREATE/CREATE2, yielded as a CreateAction.
type CreateInputs struct {
	Kind     FrameKind // FrameCreate or FrameCreate2
	Caller   types.Address
	Value    *uint256.Int
	InitCode []byte
	Salt     *uint256.Int // only meaningful for CREATE2
	GasLimit uint64
}

// StepStatus is the outcome of a single step() call on the interpreter.
type StepStatus int

const (
	// Continue means the frame should keep running.
	Continue StepStatus = iota
	// StepReturn means the frame completed via STOP/RETURN.
	StepReturn
	// StepRevert means the frame completed via REVERT.
	StepRevert
	// StepHalt means the frame hit an Exception.
	StepHalt
	// StepCall means the frame yielded a CallAction and is now suspended
	// awaiting the child's result, which the EVM loop folds back in via
	// Frame.resumeCall.
	StepCall
	// StepCreate is the CREATE/CREATE2 analogue of StepCall.
	StepCreate
)

// StepResult is what run() returns once a frame stops being Continue.
type StepResult struct {
	Status StepStatus

	Output []byte // RETURN/REVERT bytes, or a child call/create's output once resumed
	Reason ExceptionReason

	CallInputs   *CallInputs
	CreateInputs *CreateInputs

	// ReturnRegion is where a StepCall/StepCreate's eventual result must be
	// spliced back into this frame's memory (CALL-family only; zero Size
	// for CREATE, whose result is an address, not memory data).
	ReturnRegion CallMemoryRegion

	// callFailed marks a StepReturn synthesised by the orchestrator for a
	// call/create that never ran (insufficient balance, depth exceeded,
	// address collision, precompile error) -- distinct from a child frame
	// that ran and legitimately returned empty output.
	callFailed bool
}
