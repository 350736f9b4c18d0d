package vm

import "github.com/coreevm/evm/core/types"

// instructions_system.go holds STOP/RETURN/REVERT/INVALID and the
// CALL-family/CREATE-family opcodes. The latter never recurse: they pop
// their stack arguments, read their input from memory, and hand back a
// StepResult naming a CallInputs/CreateInputs for Evm.run's loop to act on
// (spec.md §4.3, §9) -- the orchestrator (handleCall/handleCreate in
// evm.go) does the balance/depth/collision checks and pushes the child
// frame.

func opStop(ip *Interpreter) (*StepResult, error) {
	return &StepResult{Status: StepReturn}, nil
}

func opReturn(ip *Interpreter) (*StepResult, error) {
	offset, size := ip.frame.Stack.Pop(), ip.frame.Stack.Pop()
	out := ip.frame.Memory.Get(offset.Uint64(), size.Uint64())
	return &StepResult{Status: StepReturn, Output: out}, nil
}

func opRevert(ip *Interpreter) (*StepResult, error) {
	offset, size := ip.frame.Stack.Pop(), ip.frame.Stack.Pop()
	out := ip.frame.Memory.Get(offset.Uint64(), size.Uint64())
	return &StepResult{Status: StepRevert, Output: out}, nil
}

func opInvalid(ip *Interpreter) (*StepResult, error) {
	return nil, newException(ReasonInvalidOpcode)
}

func opCall(ip *Interpreter) (*StepResult, error) {
	gas := ip.frame.Stack.Pop()
	addrWord := ip.frame.Stack.Pop()
	value := ip.frame.Stack.Pop()
	argsOffset, argsLength := ip.frame.Stack.Pop(), ip.frame.Stack.Pop()
	retOffset, retLength := ip.frame.Stack.Pop(), ip.frame.Stack.Pop()

	addr := types.WordToAddress(&addrWord)
	input := ip.frame.Memory.Get(argsOffset.Uint64(), argsLength.Uint64())

	var stipend uint64
	if !value.IsZero() {
		stipend = CallStipend
	}

	return &StepResult{
		Status: StepCall,
		CallInputs: &CallInputs{
			Kind:          FrameCall,
			CodeAddress:   addr,
			TargetAddress: addr,
			Caller:        ip.frame.TargetAddress,
			ApparentValue: &value,
			Input:         input,
			GasLimit:      ForwardGas(ip.frame.Gas.Remaining(), gas.Uint64()),
			IsStatic:      ip.frame.IsStatic,
			Stipend:       stipend,
		},
		ReturnRegion: CallMemoryRegion{Offset: retOffset.Uint64(), Size: retLength.Uint64()},
	}, nil
}

func opCallCode(ip *Interpreter) (*StepResult, error) {
	gas := ip.frame.Stack.Pop()
	addrWord := ip.frame.Stack.Pop()
	value := ip.frame.Stack.Pop()
	argsOffset, argsLength := ip.frame.Stack.Pop(), ip.frame.Stack.Pop()
	retOffset, retLength := ip.frame.Stack.Pop(), ip.frame.Stack.Pop()

	addr := types.WordToAddress(&addrWord)
	input := ip.frame.Memory.Get(argsOffset.Uint64(), argsLength.Uint64())

	var stipend uint64
	if !value.IsZero() {
		stipend = CallStipend
	}

	return &StepResult{
		Status: StepCall,
		CallInputs: &CallInputs{
			Kind:          FrameCallCode,
			CodeAddress:   addr,
			TargetAddress: ip.frame.TargetAddress,
			Caller:        ip.frame.TargetAddress,
			ApparentValue: &value,
			Input:         input,
			GasLimit:      ForwardGas(ip.frame.Gas.Remaining(), gas.Uint64()),
			IsStatic:      ip.frame.IsStatic,
			Stipend:       stipend,
		},
		ReturnRegion: CallMemoryRegion{Offset: retOffset.Uint64(), Size: retLength.Uint64()},
	}, nil
}

func opDelegateCall(ip *Interpreter) (*StepResult, error) {
	gas := ip.frame.Stack.Pop()
	addrWord := ip.frame.Stack.Pop()
	argsOffset, argsLength := ip.frame.Stack.Pop(), ip.frame.Stack.Pop()
	retOffset, retLength := ip.frame.Stack.Pop(), ip.frame.Stack.Pop()

	addr := types.WordToAddress(&addrWord)
	input := ip.frame.Memory.Get(argsOffset.Uint64(), argsLength.Uint64())

	return &StepResult{
		Status: StepCall,
		CallInputs: &CallInputs{
			Kind:          FrameDelegateCall,
			CodeAddress:   addr,
			TargetAddress: ip.frame.TargetAddress,
			Caller:        ip.frame.Caller,
			ApparentValue: ip.frame.ApparentValue,
			Input:         input,
			GasLimit:      ForwardGas(ip.frame.Gas.Remaining(), gas.Uint64()),
			IsStatic:      ip.frame.IsStatic,
		},
		ReturnRegion: CallMemoryRegion{Offset: retOffset.Uint64(), Size: retLength.Uint64()},
	}, nil
}

func opStaticCall(ip *Interpreter) (*StepResult, error) {
	gas := ip.frame.Stack.Pop()
	addrWord := ip.frame.Stack.Pop()
	argsOffset, argsLength := ip.frame.Stack.Pop(), ip.frame.Stack.Pop()
	retOffset, retLength := ip.frame.Stack.Pop(), ip.frame.Stack.Pop()

	addr := types.WordToAddress(&addrWord)
	input := ip.frame.Memory.Get(argsOffset.Uint64(), argsLength.Uint64())

	return &StepResult{
		Status: StepCall,
		CallInputs: &CallInputs{
			Kind:          FrameStaticCall,
			CodeAddress:   addr,
			TargetAddress: addr,
			Caller:        ip.frame.TargetAddress,
			ApparentValue: types.NewWord(),
			Input:         input,
			GasLimit:      ForwardGas(ip.frame.Gas.Remaining(), gas.Uint64()),
			IsStatic:      true,
		},
		ReturnRegion: CallMemoryRegion{Offset: retOffset.Uint64(), Size: retLength.Uint64()},
	}, nil
}

func opCreate(ip *Interpreter) (*StepResult, error) {
	value := ip.frame.Stack.Pop()
	offset, length := ip.frame.Stack.Pop(), ip.frame.Stack.Pop()
	initCode := ip.frame.Memory.Get(offset.Uint64(), length.Uint64())
	avail := ip.frame.Gas.Remaining()

	return &StepResult{
		Status: StepCreate,
		CreateInputs: &CreateInputs{
			Kind:     FrameCreate,
			Caller:   ip.frame.TargetAddress,
			Value:    &value,
			InitCode: initCode,
			GasLimit: ForwardGas(avail, avail),
		},
	}, nil
}

func opCreate2(ip *Interpreter) (*StepResult, error) {
	value := ip.frame.Stack.Pop()
	offset, length := ip.frame.Stack.Pop(), ip.frame.Stack.Pop()
	salt := ip.frame.Stack.Pop()
	initCode := ip.frame.Memory.Get(offset.Uint64(), length.Uint64())
	avail := ip.frame.Gas.Remaining()

	return &StepResult{
		Status: StepCreate,
		CreateInputs: &CreateInputs{
			Kind:     FrameCreate2,
			Caller:   ip.frame.TargetAddress,
			Value:    &value,
			InitCode: initCode,
			Salt:     &salt,
			GasLimit: ForwardGas(avail, avail),
		},
	}, nil
}

// opSelfdestruct computes EIP-6780's markDestroyed gate itself: pre-Cancun
// SELFDESTRUCT always schedules deletion; from Cancun on, it only does so
// for a contract created earlier in the same transaction. Either way the
// balance move to beneficiary happens unconditionally.
func opSelfdestruct(ip *Interpreter) (*StepResult, error) {
	beneficiaryWord := ip.frame.Stack.Pop()
	beneficiary := types.WordToAddress(&beneficiaryWord)

	markDestroyed := ip.evm.Cfg.SpecId < Cancun || ip.evm.State.CreatedThisTx(ip.frame.TargetAddress)
	if _, err := ip.evm.State.SelfDestruct(ip.frame.TargetAddress, beneficiary, markDestroyed); err != nil {
		return nil, err
	}
	return &StepResult{Status: StepReturn}, nil
}
