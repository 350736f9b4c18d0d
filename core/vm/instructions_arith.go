package vm

import "github.com/coreevm/evm/crypto"

// instructions_arith.go holds the arithmetic, comparison, bitwise and
// KECCAK256 opcodes. Every operand is a types.Word (uint256.Int); unlike
// math/big, its arithmetic already wraps at 2^256 and Div/Mod/SDiv/SMod
// already return zero on a zero divisor, so none of these need the
// explicit zero-check big.Int forces on the caller.

func opAdd(ip *Interpreter) (*StepResult, error) {
	x := ip.frame.Stack.Pop()
	y := ip.frame.Stack.Peek()
	y.Add(&x, y)
	return nil, nil
}

func opSub(ip *Interpreter) (*StepResult, error) {
	x := ip.frame.Stack.Pop()
	y := ip.frame.Stack.Peek()
	y.Sub(&x, y)
	return nil, nil
}

func opMul(ip *Interpreter) (*StepResult, error) {
	x := ip.frame.Stack.Pop()
	y := ip.frame.Stack.Peek()
	y.Mul(&x, y)
	return nil, nil
}

func opDiv(ip *Interpreter) (*StepResult, error) {
	x := ip.frame.Stack.Pop()
	y := ip.frame.Stack.Peek()
	y.Div(&x, y)
	return nil, nil
}

func opSdiv(ip *Interpreter) (*StepResult, error) {
	x := ip.frame.Stack.Pop()
	y := ip.frame.Stack.Peek()
	y.SDiv(&x, y)
	return nil, nil
}

func opMod(ip *Interpreter) (*StepResult, error) {
	x := ip.frame.Stack.Pop()
	y := ip.frame.Stack.Peek()
	y.Mod(&x, y)
	return nil, nil
}

func opSmod(ip *Interpreter) (*StepResult, error) {
	x := ip.frame.Stack.Pop()
	y := ip.frame.Stack.Peek()
	y.SMod(&x, y)
	return nil, nil
}

func opAddmod(ip *Interpreter) (*StepResult, error) {
	x, y := ip.frame.Stack.Pop(), ip.frame.Stack.Pop()
	z := ip.frame.Stack.Peek()
	if z.IsZero() {
		z.Clear()
	} else {
		z.AddMod(&x, &y, z)
	}
	return nil, nil
}

func opMulmod(ip *Interpreter) (*StepResult, error) {
	x, y := ip.frame.Stack.Pop(), ip.frame.Stack.Pop()
	z := ip.frame.Stack.Peek()
	if z.IsZero() {
		z.Clear()
	} else {
		z.MulMod(&x, &y, z)
	}
	return nil, nil
}

func opExp(ip *Interpreter) (*StepResult, error) {
	base := ip.frame.Stack.Pop()
	exponent := ip.frame.Stack.Peek()
	exponent.Exp(&base, exponent)
	return nil, nil
}

func opSignExtend(ip *Interpreter) (*StepResult, error) {
	back := ip.frame.Stack.Pop()
	num := ip.frame.Stack.Peek()
	num.ExtendSign(num, &back)
	return nil, nil
}

func opLt(ip *Interpreter) (*StepResult, error) {
	x := ip.frame.Stack.Pop()
	y := ip.frame.Stack.Peek()
	if x.Lt(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
	return nil, nil
}

func opGt(ip *Interpreter) (*StepResult, error) {
	x := ip.frame.Stack.Pop()
	y := ip.frame.Stack.Peek()
	if x.Gt(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
	return nil, nil
}

func opSlt(ip *Interpreter) (*StepResult, error) {
	x := ip.frame.Stack.Pop()
	y := ip.frame.Stack.Peek()
	if x.Slt(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
	return nil, nil
}

func opSgt(ip *Interpreter) (*StepResult, error) {
	x := ip.frame.Stack.Pop()
	y := ip.frame.Stack.Peek()
	if x.Sgt(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
	return nil, nil
}

func opEq(ip *Interpreter) (*StepResult, error) {
	x := ip.frame.Stack.Pop()
	y := ip.frame.Stack.Peek()
	if x.Eq(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
	return nil, nil
}

func opIsZero(ip *Interpreter) (*StepResult, error) {
	x := ip.frame.Stack.Peek()
	if x.IsZero() {
		x.SetOne()
	} else {
		x.Clear()
	}
	return nil, nil
}

func opAnd(ip *Interpreter) (*StepResult, error) {
	x := ip.frame.Stack.Pop()
	y := ip.frame.Stack.Peek()
	y.And(&x, y)
	return nil, nil
}

func opOr(ip *Interpreter) (*StepResult, error) {
	x := ip.frame.Stack.Pop()
	y := ip.frame.Stack.Peek()
	y.Or(&x, y)
	return nil, nil
}

func opXor(ip *Interpreter) (*StepResult, error) {
	x := ip.frame.Stack.Pop()
	y := ip.frame.Stack.Peek()
	y.Xor(&x, y)
	return nil, nil
}

func opNot(ip *Interpreter) (*StepResult, error) {
	x := ip.frame.Stack.Peek()
	x.Not(x)
	return nil, nil
}

func opByte(ip *Interpreter) (*StepResult, error) {
	th := ip.frame.Stack.Pop()
	val := ip.frame.Stack.Peek()
	val.Byte(&th)
	return nil, nil
}

func opSHL(ip *Interpreter) (*StepResult, error) {
	shift := ip.frame.Stack.Pop()
	value := ip.frame.Stack.Peek()
	if shift.LtUint64(256) {
		value.Lsh(value, uint(shift.Uint64()))
	} else {
		value.Clear()
	}
	return nil, nil
}

func opSHR(ip *Interpreter) (*StepResult, error) {
	shift := ip.frame.Stack.Pop()
	value := ip.frame.Stack.Peek()
	if shift.LtUint64(256) {
		value.Rsh(value, uint(shift.Uint64()))
	} else {
		value.Clear()
	}
	return nil, nil
}

func opSAR(ip *Interpreter) (*StepResult, error) {
	shift := ip.frame.Stack.Pop()
	value := ip.frame.Stack.Peek()
	if shift.GtUint64(256) {
		if value.Sign() >= 0 {
			value.Clear()
		} else {
			value.SetAllOne()
		}
		return nil, nil
	}
	value.SRsh(value, uint(shift.Uint64()))
	return nil, nil
}

func opKeccak256(ip *Interpreter) (*StepResult, error) {
	offset := ip.frame.Stack.Pop()
	size := ip.frame.Stack.Peek()
	data := ip.frame.Memory.Get(offset.Uint64(), size.Uint64())
	size.SetBytes(crypto.Keccak256(data))
	return nil, nil
}
