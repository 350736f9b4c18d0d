package vm

import (
	"github.com/coreevm/evm/core/state"
	"github.com/coreevm/evm/core/types"
)

// gas_table.go holds the dynamic gas calculators referenced from the
// jump tables: memory expansion, EIP-2929 cold/warm access surcharges, and
// EIP-2200/3529 SSTORE pricing. Each dynamicGasFunc runs after the stack
// height has already been validated and before the opcode's execute
// function runs, so it may inspect (but never pop) the stack.

// dynamicGasFunc computes the gas an operation owes beyond its constantGas,
// given full access to the running interpreter (frame, journal, env).
type dynamicGasFunc func(ip *Interpreter) (uint64, error)

// memorySizeFunc returns the number of bytes of memory an operation needs,
// used to charge expansion gas before execute runs.
type memorySizeFunc func(stack *Stack) uint64

func memoryMload(stack *Stack) uint64   { return stack.Back(0).Uint64() + 32 }
func memoryMstore(stack *Stack) uint64  { return stack.Back(0).Uint64() + 32 }
func memoryMstore8(stack *Stack) uint64 { return stack.Back(0).Uint64() + 1 }
func memoryReturn(stack *Stack) uint64  { return stack.Back(0).Uint64() + stack.Back(1).Uint64() }
func memoryKeccak256(stack *Stack) uint64 {
	return stack.Back(0).Uint64() + stack.Back(1).Uint64()
}
func memoryCalldataCopy(stack *Stack) uint64 { return stack.Back(0).Uint64() + stack.Back(2).Uint64() }
func memoryCodeCopy(stack *Stack) uint64     { return stack.Back(0).Uint64() + stack.Back(2).Uint64() }
func memoryExtCodeCopy(stack *Stack) uint64  { return stack.Back(1).Uint64() + stack.Back(3).Uint64() }
func memoryReturndataCopy(stack *Stack) uint64 {
	return stack.Back(0).Uint64() + stack.Back(2).Uint64()
}
func memoryLog(stack *Stack) uint64 { return stack.Back(0).Uint64() + stack.Back(1).Uint64() }

func memoryCallLike(argsOffIdx, argsLenIdx, retOffIdx, retLenIdx int) memorySizeFunc {
	return func(stack *Stack) uint64 {
		argsEnd := stack.Back(argsOffIdx).Uint64() + stack.Back(argsLenIdx).Uint64()
		retEnd := stack.Back(retOffIdx).Uint64() + stack.Back(retLenIdx).Uint64()
		if argsEnd > retEnd {
			return argsEnd
		}
		return retEnd
	}
}

// memoryCall covers CALL/CALLCODE: gas, addr, value, argsOff, argsLen, retOff, retLen.
var memoryCall = memoryCallLike(3, 4, 5, 6)

// memoryDelegateCall covers DELEGATECALL/STATICCALL: gas, addr, argsOff, argsLen, retOff, retLen.
var memoryDelegateCall = memoryCallLike(2, 3, 4, 5)

func memoryCreate(stack *Stack) uint64  { return stack.Back(1).Uint64() + stack.Back(2).Uint64() }
func memoryCreate2(stack *Stack) uint64 { return stack.Back(1).Uint64() + stack.Back(2).Uint64() }
func memoryMcopy(stack *Stack) uint64 {
	dst, src, size := stack.Back(0).Uint64(), stack.Back(1).Uint64(), stack.Back(2).Uint64()
	end := dst
	if src > end {
		end = src
	}
	return end + size
}

// memCost is the EIP's memory expansion pricing function: 3N + floor(N^2/512).
func memCost(words uint64) uint64 {
	return words*GasMemory + (words*words)/512
}

// gasMemoryExpansion charges only for the *new* words a memory-touching
// opcode requires beyond the frame's current memory length.
func gasMemoryExpansion(ip *Interpreter) (uint64, error) {
	op := ip.frame.Code.At(ip.frame.PC)
	opInfo := ip.evm.Table[op]
	if opInfo == nil || opInfo.memorySize == nil {
		return 0, nil
	}
	size := opInfo.memorySize(ip.frame.Stack)
	if size == 0 {
		return 0, nil
	}
	newWords := WordCount(size)
	oldWords := WordCount(ip.frame.Memory.Len())
	if newWords <= oldWords {
		return 0, nil
	}
	return memCost(newWords) - memCost(oldWords), nil
}

// gasKeccak256 adds the per-word hashing cost on top of memory expansion.
func gasKeccak256(ip *Interpreter) (uint64, error) {
	mem, err := gasMemoryExpansion(ip)
	if err != nil {
		return 0, err
	}
	length := ip.frame.Stack.Back(1).Uint64()
	return mem + GasKeccak256Word*WordCount(length), nil
}

// gasCopy adds the per-word copy cost (CALLDATACOPY/CODECOPY/RETURNDATACOPY)
// on top of memory expansion.
func gasCopy(lengthIdx int) dynamicGasFunc {
	return func(ip *Interpreter) (uint64, error) {
		mem, err := gasMemoryExpansion(ip)
		if err != nil {
			return 0, err
		}
		length := ip.frame.Stack.Back(lengthIdx).Uint64()
		return mem + GasCopy*WordCount(length), nil
	}
}

// gasExtCodeCopy is CODECOPY's EXTCODE sibling: cold/warm address surcharge
// plus per-word copy cost plus memory expansion.
func gasExtCodeCopy(ip *Interpreter) (uint64, error) {
	mem, err := gasMemoryExpansion(ip)
	if err != nil {
		return 0, err
	}
	length := ip.frame.Stack.Back(3).Uint64()
	addrCost, err := gasAccessListAddress(ip, types.WordToAddress(ip.frame.Stack.Back(0)))
	if err != nil {
		return 0, err
	}
	return mem + GasCopy*WordCount(length) + addrCost, nil
}

// gasAccessListAddress warms addr (EIP-2929) and returns the surcharge owed
// beyond the opcode's warm-price constantGas: 0 if it was already warm,
// ColdAccountAccessCost-WarmStorageReadCost otherwise.
func gasAccessListAddress(ip *Interpreter, addr types.Address) (uint64, error) {
	_, wasCold, err := ip.evm.State.LoadAccount(addr)
	if err != nil {
		return 0, err
	}
	if wasCold {
		return ColdAccountAccessCost - WarmStorageReadCost, nil
	}
	return 0, nil
}

func gasBalance(ip *Interpreter) (uint64, error) {
	return gasAccessListAddress(ip, types.WordToAddress(ip.frame.Stack.Back(0)))
}

func gasExtCodeSize(ip *Interpreter) (uint64, error) {
	return gasAccessListAddress(ip, types.WordToAddress(ip.frame.Stack.Back(0)))
}

func gasExtCodeHash(ip *Interpreter) (uint64, error) {
	return gasAccessListAddress(ip, types.WordToAddress(ip.frame.Stack.Back(0)))
}

func gasSload(ip *Interpreter) (uint64, error) {
	key := types.WordToHash(ip.frame.Stack.Back(0))
	_, wasCold, err := ip.evm.State.LoadStorage(ip.frame.TargetAddress, key)
	if err != nil {
		return 0, err
	}
	if wasCold {
		return ColdSloadCost - WarmStorageReadCost, nil
	}
	return 0, nil
}

// gasSstore implements the full EIP-2200/2929/3529 SSTORE pricing table
// (spec.md §4.2). It performs the write itself (via JournaledState.SStore)
// so the gas and the state transition are computed from the same values.
func gasSstore(ip *Interpreter) (uint64, error) {
	key := types.WordToHash(ip.frame.Stack.Back(0))
	newVal := types.WordToHash(ip.frame.Stack.Back(1))

	res, err := ip.evm.State.SStore(ip.frame.TargetAddress, key, newVal)
	if err != nil {
		return 0, err
	}

	var gas uint64
	if res.WasCold {
		gas += ColdSloadCost
	}

	var zero types.Hash
	switch {
	case res.Old == res.New:
		gas += WarmStorageReadCost
	case res.Original == res.Old:
		switch {
		case res.Original == zero && res.New != zero:
			gas += SstoreSetGas
		case res.Original != zero && res.New == zero:
			gas += SstoreResetGas
			ip.evm.State.AddRefund(SstoreClearsRefund)
		default:
			gas += SstoreResetGas
		}
	default:
		gas += WarmStorageReadCost
		adjustSstoreRefund(ip, res, zero)
	}
	return gas, nil
}

func adjustSstoreRefund(ip *Interpreter, res state.SStoreResult, zero types.Hash) {
	if res.Original != zero {
		if res.Old == zero {
			ip.evm.State.SubRefund(SstoreClearsRefund)
		}
		if res.New == zero {
			ip.evm.State.AddRefund(SstoreClearsRefund)
		}
	}
	if res.Original == res.New {
		if res.Original == zero {
			ip.evm.State.AddRefund(SstoreSetGas - WarmStorageReadCost)
		} else {
			ip.evm.State.AddRefund(SstoreResetGas - WarmStorageReadCost)
		}
	}
}

// gasExp prices EXP by the byte length of the exponent operand.
func gasExp(ip *Interpreter) (uint64, error) {
	exp := ip.frame.Stack.Back(1)
	return GasExpByte * uint64(byteLen(exp)), nil
}

func byteLen(w *types.Word) int {
	bits := w.BitLen()
	return (bits + 7) / 8
}

// gasCallLike prices CALL-family opcodes: memory expansion, EIP-2929
// cold/warm address surcharge, and (for value-carrying variants) the
// value-transfer and new-account surcharges. valueIdx<0 means the opcode
// never carries a value (DELEGATECALL, STATICCALL).
func gasCallLike(addrIdx, valueIdx int) dynamicGasFunc {
	return func(ip *Interpreter) (uint64, error) {
		if valueIdx >= 0 && ip.frame.IsStatic && !ip.frame.Stack.Back(valueIdx).IsZero() {
			return 0, newException(ReasonStateChangeDuringStaticCall)
		}
		mem, err := gasMemoryExpansion(ip)
		if err != nil {
			return 0, err
		}
		addr := types.WordToAddress(ip.frame.Stack.Back(addrIdx))
		addrCost, err := gasAccessListAddress(ip, addr)
		if err != nil {
			return 0, err
		}
		cost := mem + addrCost
		if valueIdx >= 0 {
			val := ip.frame.Stack.Back(valueIdx)
			if !val.IsZero() {
				cost += CallValueTransferGas
				exists, err := ip.evm.State.Exist(addr)
				if err != nil {
					return 0, err
				}
				if !exists {
					cost += CallNewAccountGas
				}
			}
		}
		return cost, nil
	}
}

var gasCall = gasCallLike(1, 2)
var gasDelegateStatic = gasCallLike(1, -1)

// gasCreate2 adds the per-word hashing cost of the init code on top of
// CREATE's memory expansion (init code is hashed to derive the address).
func gasCreate2(ip *Interpreter) (uint64, error) {
	mem, err := gasMemoryExpansion(ip)
	if err != nil {
		return 0, err
	}
	length := ip.frame.Stack.Back(2).Uint64()
	return mem + GasKeccak256Word*WordCount(length), nil
}

// gasSelfdestruct adds the EIP-2929 cold-beneficiary surcharge and the
// EIP-161 new-account surcharge when the beneficiary is empty and the
// contract carries a balance.
func gasSelfdestruct(ip *Interpreter) (uint64, error) {
	addr := types.WordToAddress(ip.frame.Stack.Back(0))
	warm := ip.evm.State.AddressInAccessList(addr)
	var cost uint64
	if !warm {
		cost += ColdAccountAccessCost
	}
	empty, err := ip.evm.State.Empty(addr)
	if err != nil {
		return 0, err
	}
	if empty {
		bal, err := ip.evm.State.GetBalance(ip.frame.TargetAddress)
		if err != nil {
			return 0, err
		}
		if bal.Sign() != 0 {
			cost += CallNewAccountGas
		}
	}
	return cost, nil
}

func gasLog(n int) dynamicGasFunc {
	return func(ip *Interpreter) (uint64, error) {
		mem, err := gasMemoryExpansion(ip)
		if err != nil {
			return 0, err
		}
		length := ip.frame.Stack.Back(1).Uint64()
		return mem + uint64(n)*GasLogTopic + GasLogData*length, nil
	}
}
