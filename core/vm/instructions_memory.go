package vm

import "github.com/coreevm/evm/core/types"

// instructions_memory.go holds memory, storage, stack-shuffling and control
// flow opcodes: POP, MLOAD/MSTORE/MSTORE8, SLOAD/SSTORE, JUMP/JUMPI, the
// PUSH/DUP/SWAP/LOG factories, and the Cancun transient-storage/MCOPY pair.

func opPop(ip *Interpreter) (*StepResult, error) {
	ip.frame.Stack.Pop()
	return nil, nil
}

func opMload(ip *Interpreter) (*StepResult, error) {
	offset := ip.frame.Stack.Peek()
	offset.SetBytes(ip.frame.Memory.GetPtr(offset.Uint64(), 32))
	return nil, nil
}

func opMstore(ip *Interpreter) (*StepResult, error) {
	offset, val := ip.frame.Stack.Pop(), ip.frame.Stack.Pop()
	ip.frame.Memory.Set32(offset.Uint64(), &val)
	return nil, nil
}

func opMstore8(ip *Interpreter) (*StepResult, error) {
	offset, val := ip.frame.Stack.Pop(), ip.frame.Stack.Pop()
	ip.frame.Memory.Set(offset.Uint64(), 1, []byte{byte(val.Uint64())})
	return nil, nil
}

// opSload reads the current value. The warm/cold bookkeeping and its gas
// surcharge already happened in gasSload, which runs first; this just does
// the actual read, which is cheap once the slot is warm.
func opSload(ip *Interpreter) (*StepResult, error) {
	loc := ip.frame.Stack.Peek()
	val, _, err := ip.evm.State.LoadStorage(ip.frame.TargetAddress, types.WordToHash(loc))
	if err != nil {
		return nil, err
	}
	loc.SetBytes(val.Bytes())
	return nil, nil
}

// opSstore only cleans up the stack: gasSstore already performed the write
// via JournaledState.SStore so the charged gas and the state transition
// come from the same computed values (see gas_table.go).
func opSstore(ip *Interpreter) (*StepResult, error) {
	ip.frame.Stack.Pop()
	ip.frame.Stack.Pop()
	return nil, nil
}

func opJump(ip *Interpreter) (*StepResult, error) {
	dest := ip.frame.Stack.Pop()
	if !dest.IsUint64() || !ip.frame.Code.ValidJumpdest(dest.Uint64()) {
		return nil, newException(ReasonInvalidJump)
	}
	ip.frame.PC = dest.Uint64()
	return nil, nil
}

func opJumpi(ip *Interpreter) (*StepResult, error) {
	dest, cond := ip.frame.Stack.Pop(), ip.frame.Stack.Pop()
	if cond.IsZero() {
		ip.frame.PC++
		return nil, nil
	}
	if !dest.IsUint64() || !ip.frame.Code.ValidJumpdest(dest.Uint64()) {
		return nil, newException(ReasonInvalidJump)
	}
	ip.frame.PC = dest.Uint64()
	return nil, nil
}

func opPc(ip *Interpreter) (*StepResult, error) {
	ip.frame.Stack.Push(types.WordFromUint64(ip.frame.PC))
	return nil, nil
}

func opMsize(ip *Interpreter) (*StepResult, error) {
	ip.frame.Stack.Push(types.WordFromUint64(ip.frame.Memory.Len()))
	return nil, nil
}

func opGas(ip *Interpreter) (*StepResult, error) {
	ip.frame.Stack.Push(types.WordFromUint64(ip.frame.Gas.Remaining()))
	return nil, nil
}

func opJumpdest(ip *Interpreter) (*StepResult, error) {
	return nil, nil
}

func opPush0(ip *Interpreter) (*StepResult, error) {
	ip.frame.Stack.Push(types.NewWord())
	return nil, nil
}

// makePush returns the executionFunc for PUSH1..PUSH32: read n immediate
// bytes following the opcode, zero-padded past the end of code exactly
// like any other code read, and advance PC past them.
func makePush(n uint64) executionFunc {
	return func(ip *Interpreter) (*StepResult, error) {
		data := ip.frame.Code.GetData(ip.frame.PC+1, n)
		ip.frame.Stack.Push(types.WordFromBytes(data))
		ip.frame.PC += 1 + n
		return nil, nil
	}
}

// makeDup returns the executionFunc for DUP1..DUP16 (n is 1-indexed, as
// Stack.Dup expects).
func makeDup(n int) executionFunc {
	return func(ip *Interpreter) (*StepResult, error) {
		ip.frame.Stack.Dup(n)
		return nil, nil
	}
}

// makeSwap returns the executionFunc for SWAP1..SWAP16.
func makeSwap(n int) executionFunc {
	return func(ip *Interpreter) (*StepResult, error) {
		ip.frame.Stack.Swap(n)
		return nil, nil
	}
}

// makeLog returns the executionFunc for LOG0..LOG4: n topics, then the
// memory region [offset, offset+size) as data.
func makeLog(n int) executionFunc {
	return func(ip *Interpreter) (*StepResult, error) {
		offset, size := ip.frame.Stack.Pop(), ip.frame.Stack.Pop()
		topics := make([]types.Hash, n)
		for i := 0; i < n; i++ {
			t := ip.frame.Stack.Pop()
			topics[i] = types.WordToHash(&t)
		}
		data := ip.frame.Memory.Get(offset.Uint64(), size.Uint64())
		ip.evm.State.Log(types.Log{
			Address:     ip.frame.TargetAddress,
			Topics:      topics,
			Data:        data,
			BlockNumber: ip.evm.Block.Number,
		})
		return nil, nil
	}
}

func opTload(ip *Interpreter) (*StepResult, error) {
	loc := ip.frame.Stack.Peek()
	val := ip.evm.State.TLoad(ip.frame.TargetAddress, types.WordToHash(loc))
	loc.SetBytes(val.Bytes())
	return nil, nil
}

func opTstore(ip *Interpreter) (*StepResult, error) {
	key, val := ip.frame.Stack.Pop(), ip.frame.Stack.Pop()
	ip.evm.State.TStore(ip.frame.TargetAddress, types.WordToHash(&key), types.WordToHash(&val))
	return nil, nil
}

func opMcopy(ip *Interpreter) (*StepResult, error) {
	dst, src, length := ip.frame.Stack.Pop(), ip.frame.Stack.Pop(), ip.frame.Stack.Pop()
	l := length.Uint64()
	if l == 0 {
		return nil, nil
	}
	ip.frame.Memory.Copy(dst.Uint64(), src.Uint64(), l)
	return nil, nil
}
