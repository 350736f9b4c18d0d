package vm

import "github.com/coreevm/evm/core/state"

// Interpreter runs one Frame's bytecode to completion or to the point it
// yields a nested call/create. It holds no state of its own beyond a
// pointer to the EVM (for environment/state access) and the frame it is
// currently driving; a fresh Interpreter is constructed per loop iteration
// in Evm.run, since frames themselves carry all persistent execution state
// (PC, stack, memory, gas).
type Interpreter struct {
	evm   *EVM
	frame *Frame
}

// run executes frame starting from its current PC until it halts, returns,
// reverts, or yields a StepCall/StepCreate. It never recurses into a child
// frame itself -- StepCall/StepCreate are handed back to EVM.run, which
// drives the child via its own loop iteration (spec.md §4.3, §9).
func (ip *Interpreter) run() (res *StepResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			if reason, ok := r.(ExceptionReason); ok {
				res, err = &StepResult{Status: StepHalt, Reason: reason}, nil
				return
			}
			panic(r)
		}
	}()

	for {
		op := ip.frame.Code.At(ip.frame.PC)
		opInfo := ip.evm.Table[op]
		if opInfo == nil {
			if latestJumpTable[op] != nil {
				return &StepResult{Status: StepHalt, Reason: ReasonNotActivated}, nil
			}
			return &StepResult{Status: StepHalt, Reason: ReasonInvalidOpcode}, nil
		}

		if !ip.frame.Stack.Require(opInfo.minStack) {
			return &StepResult{Status: StepHalt, Reason: ReasonStackUnderflow}, nil
		}
		if ip.frame.Stack.Len() > opInfo.maxStack {
			return &StepResult{Status: StepHalt, Reason: ReasonStackOverflow}, nil
		}
		if ip.frame.IsStatic && opInfo.writes {
			return &StepResult{Status: StepHalt, Reason: ReasonStateChangeDuringStaticCall}, nil
		}

		if !ip.frame.Gas.Consume(opInfo.constantGas) {
			return &StepResult{Status: StepHalt, Reason: ReasonOutOfGas}, nil
		}
		// Dynamic gas (including memory expansion cost) must be computed
		// and charged against the frame's PRE-expansion memory length --
		// gasMemoryExpansion diffs cost(new) against cost(current Memory.Len()).
		// Only after charging do we actually grow the buffer.
		if opInfo.dynamicGas != nil {
			gas, derr := opInfo.dynamicGas(ip)
			if derr != nil {
				if exc, ok := derr.(*Exception); ok {
					return &StepResult{Status: StepHalt, Reason: exc.Reason}, nil
				}
				if state.IsStoreError(derr) {
					return nil, &FatalExternalError{Err: derr}
				}
				return nil, derr
			}
			if !ip.frame.Gas.Consume(gas) {
				return &StepResult{Status: StepHalt, Reason: ReasonOutOfGas}, nil
			}
		}
		if opInfo.memorySize != nil {
			size := opInfo.memorySize(ip.frame.Stack)
			if size > 0 {
				ip.frame.Memory.Resize(WordCount(size) * 32)
			}
		}

		preJump := ip.frame.PC
		result, xerr := opInfo.execute(ip)
		if xerr != nil {
			if exc, ok := xerr.(*Exception); ok {
				return &StepResult{Status: StepHalt, Reason: exc.Reason}, nil
			}
			if state.IsStoreError(xerr) {
				return nil, &FatalExternalError{Err: xerr}
			}
			return nil, xerr
		}
		if result != nil {
			return result, nil
		}
		if !opInfo.jumps && ip.frame.PC == preJump {
			ip.frame.PC++
		}
	}
}
