package vm

import "github.com/coreevm/evm/core/types"

// instructions_env.go holds the opcodes that read transaction, block, and
// account environment data: addresses, balances, calldata, code, and the
// block/tx context words. None of these mutate state; the EIP-2929
// cold/warm bookkeeping for the account-reading ones lives in their
// dynamicGas funcs (gas_table.go), which run before execute.

func opAddress(ip *Interpreter) (*StepResult, error) {
	ip.frame.Stack.Push(types.AddressToWord(ip.frame.TargetAddress))
	return nil, nil
}

func opBalance(ip *Interpreter) (*StepResult, error) {
	x := ip.frame.Stack.Pop()
	addr := types.WordToAddress(&x)
	bal, err := ip.evm.State.GetBalance(addr)
	if err != nil {
		return nil, err
	}
	ip.frame.Stack.Push(types.WordFromBig(bal))
	return nil, nil
}

func opOrigin(ip *Interpreter) (*StepResult, error) {
	ip.frame.Stack.Push(types.AddressToWord(ip.evm.Tx.Origin))
	return nil, nil
}

func opCaller(ip *Interpreter) (*StepResult, error) {
	ip.frame.Stack.Push(types.AddressToWord(ip.frame.Caller))
	return nil, nil
}

func opCallValue(ip *Interpreter) (*StepResult, error) {
	v := types.NewWord()
	if ip.frame.ApparentValue != nil {
		v.Set(ip.frame.ApparentValue)
	}
	ip.frame.Stack.Push(v)
	return nil, nil
}

func opCalldataLoad(ip *Interpreter) (*StepResult, error) {
	x := ip.frame.Stack.Peek()
	data := getData(ip.frame.Input, x.Uint64(), 32)
	x.SetBytes(data)
	return nil, nil
}

func opCalldataSize(ip *Interpreter) (*StepResult, error) {
	ip.frame.Stack.Push(types.WordFromUint64(uint64(len(ip.frame.Input))))
	return nil, nil
}

func opCalldataCopy(ip *Interpreter) (*StepResult, error) {
	memOffset, dataOffset, length := ip.frame.Stack.Pop(), ip.frame.Stack.Pop(), ip.frame.Stack.Pop()
	l := length.Uint64()
	if l == 0 {
		return nil, nil
	}
	data := getData(ip.frame.Input, dataOffset.Uint64(), l)
	ip.frame.Memory.Set(memOffset.Uint64(), l, data)
	return nil, nil
}

func opCodeSize(ip *Interpreter) (*StepResult, error) {
	ip.frame.Stack.Push(types.WordFromUint64(uint64(ip.frame.Code.Len())))
	return nil, nil
}

func opCodeCopy(ip *Interpreter) (*StepResult, error) {
	memOffset, codeOffset, length := ip.frame.Stack.Pop(), ip.frame.Stack.Pop(), ip.frame.Stack.Pop()
	l := length.Uint64()
	if l == 0 {
		return nil, nil
	}
	data := ip.frame.Code.GetData(codeOffset.Uint64(), l)
	ip.frame.Memory.Set(memOffset.Uint64(), l, data)
	return nil, nil
}

func opGasPrice(ip *Interpreter) (*StepResult, error) {
	v := types.NewWord()
	if ip.evm.Tx.GasPrice != nil {
		v.Set(ip.evm.Tx.GasPrice)
	}
	ip.frame.Stack.Push(v)
	return nil, nil
}

func opExtcodesize(ip *Interpreter) (*StepResult, error) {
	x := ip.frame.Stack.Pop()
	addr := types.WordToAddress(&x)
	code, err := ip.evm.State.GetCode(addr)
	if err != nil {
		return nil, err
	}
	ip.frame.Stack.Push(types.WordFromUint64(uint64(len(code))))
	return nil, nil
}

func opExtcodecopy(ip *Interpreter) (*StepResult, error) {
	addrWord := ip.frame.Stack.Pop()
	destOffset, offset, length := ip.frame.Stack.Pop(), ip.frame.Stack.Pop(), ip.frame.Stack.Pop()
	addr := types.WordToAddress(&addrWord)
	code, err := ip.evm.State.GetCode(addr)
	if err != nil {
		return nil, err
	}
	l := length.Uint64()
	if l == 0 {
		return nil, nil
	}
	data := getData(code, offset.Uint64(), l)
	ip.frame.Memory.Set(destOffset.Uint64(), l, data)
	return nil, nil
}

func opExtcodehash(ip *Interpreter) (*StepResult, error) {
	x := ip.frame.Stack.Pop()
	addr := types.WordToAddress(&x)
	exists, err := ip.evm.State.Exist(addr)
	if err != nil {
		return nil, err
	}
	if !exists {
		ip.frame.Stack.Push(types.NewWord())
		return nil, nil
	}
	hash, err := ip.evm.State.GetCodeHash(addr)
	if err != nil {
		return nil, err
	}
	ip.frame.Stack.Push(types.HashToWord(hash))
	return nil, nil
}

func opBlockhash(ip *Interpreter) (*StepResult, error) {
	num := ip.frame.Stack.Peek()
	n := num.Uint64()

	upper := ip.evm.Block.Number
	var lower uint64
	if upper > 256 {
		lower = upper - 256
	}
	if n >= lower && n < upper {
		hash, err := ip.evm.Store.BlockHash(n)
		if err != nil {
			return nil, err
		}
		num.SetBytes(hash[:])
		return nil, nil
	}
	num.Clear()
	return nil, nil
}

func opCoinbase(ip *Interpreter) (*StepResult, error) {
	ip.frame.Stack.Push(types.AddressToWord(ip.evm.Block.Coinbase))
	return nil, nil
}

func opTimestamp(ip *Interpreter) (*StepResult, error) {
	ip.frame.Stack.Push(types.WordFromUint64(ip.evm.Block.Timestamp))
	return nil, nil
}

func opNumber(ip *Interpreter) (*StepResult, error) {
	ip.frame.Stack.Push(types.WordFromUint64(ip.evm.Block.Number))
	return nil, nil
}

func opPrevRandao(ip *Interpreter) (*StepResult, error) {
	ip.frame.Stack.Push(types.HashToWord(ip.evm.Block.PrevRandao))
	return nil, nil
}

func opGasLimit(ip *Interpreter) (*StepResult, error) {
	ip.frame.Stack.Push(types.WordFromUint64(ip.evm.Block.GasLimit))
	return nil, nil
}

func opChainID(ip *Interpreter) (*StepResult, error) {
	v := types.NewWord()
	if ip.evm.Tx.ChainID != nil {
		v.Set(ip.evm.Tx.ChainID)
	}
	ip.frame.Stack.Push(v)
	return nil, nil
}

func opSelfBalance(ip *Interpreter) (*StepResult, error) {
	bal, err := ip.evm.State.GetBalance(ip.frame.TargetAddress)
	if err != nil {
		return nil, err
	}
	ip.frame.Stack.Push(types.WordFromBig(bal))
	return nil, nil
}

func opBaseFee(ip *Interpreter) (*StepResult, error) {
	v := types.NewWord()
	if ip.evm.Block.BaseFee != nil {
		v.Set(ip.evm.Block.BaseFee)
	}
	ip.frame.Stack.Push(v)
	return nil, nil
}

func opBlobHash(ip *Interpreter) (*StepResult, error) {
	idx := ip.frame.Stack.Peek()
	if idx.IsUint64() {
		i := idx.Uint64()
		if i < uint64(len(ip.evm.Tx.BlobHashes)) {
			idx.SetBytes(ip.evm.Tx.BlobHashes[i][:])
			return nil, nil
		}
	}
	idx.Clear()
	return nil, nil
}

func opBlobBaseFee(ip *Interpreter) (*StepResult, error) {
	v := types.NewWord()
	if ip.evm.Block.BlobBaseFee != nil {
		v.Set(ip.evm.Block.BlobBaseFee)
	}
	ip.frame.Stack.Push(v)
	return nil, nil
}

func opReturndataSize(ip *Interpreter) (*StepResult, error) {
	ip.frame.Stack.Push(types.WordFromUint64(ip.frame.ReturnData.Size()))
	return nil, nil
}

func opReturndataCopy(ip *Interpreter) (*StepResult, error) {
	memOffset, dataOffset, length := ip.frame.Stack.Pop(), ip.frame.Stack.Pop(), ip.frame.Stack.Pop()
	data, err := ip.frame.ReturnData.Slice(dataOffset.Uint64(), length.Uint64())
	if err != nil {
		return nil, err
	}
	ip.frame.Memory.Set(memOffset.Uint64(), length.Uint64(), data)
	return nil, nil
}
