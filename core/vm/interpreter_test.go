package vm

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/coreevm/evm/core/types"
)

// push returns a PUSHn instruction for val's minimal big-endian encoding
// (falling back to PUSH1 0x00 for the zero value).
func push(val *big.Int) []byte {
	b := val.Bytes()
	if len(b) == 0 {
		b = []byte{0}
	}
	return append([]byte{byte(PUSH1) + byte(len(b)-1)}, b...)
}

func concatOps(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// TestStackUnderflow covers spec.md §8 S2: ADD with an empty stack halts
// StackUnderflow and consumes the whole gas limit.
func TestStackUnderflow(t *testing.T) {
	store := newFakeStore()
	addr := types.HexToAddress("0x01")
	store.setCode(addr, []byte{byte(ADD)})
	evm := newTestEVM(store)

	res, err := evm.Call(types.Address{}, addr, nil, 100_000, uint256.NewInt(0))
	require.NoError(t, err)
	require.Equal(t, ResultHalt, res.Kind)
	require.Equal(t, ReasonStackUnderflow, res.Reason)
	require.Equal(t, uint64(100_000), res.GasUsed)
}

// TestRevertReturnsData covers spec.md §8 S3: REVERT surfaces its memory
// region as Output without committing any state.
func TestRevertReturnsData(t *testing.T) {
	store := newFakeStore()
	addr := types.HexToAddress("0x02")
	code := concatOps(
		push(big.NewInt(5)), push(big.NewInt(0)), []byte{byte(MSTORE)},
		push(big.NewInt(32)), push(big.NewInt(0)), []byte{byte(REVERT)},
	)
	store.setCode(addr, code)
	evm := newTestEVM(store)

	res, err := evm.Call(types.Address{}, addr, nil, 100_000, uint256.NewInt(0))
	require.NoError(t, err)
	require.Equal(t, ResultRevert, res.Kind)
	want := make([]byte, 32)
	want[31] = 5
	require.Equal(t, want, res.Output)
}

// TestNestedCallRevertIsolation covers spec.md §8 S4: a reverted child's
// storage writes never become visible, while the parent's own prior write
// survives.
func TestNestedCallRevertIsolation(t *testing.T) {
	store := newFakeStore()
	outer := types.HexToAddress("0x0a")
	inner := types.HexToAddress("0x0b")

	innerCode := concatOps(
		push(big.NewInt(9)), push(big.NewInt(0)), []byte{byte(SSTORE)},
		push(big.NewInt(0)), push(big.NewInt(0)), []byte{byte(REVERT)},
	)
	store.setCode(inner, innerCode)

	outerCode := concatOps(
		push(big.NewInt(7)), push(big.NewInt(0)), []byte{byte(SSTORE)},
		push(big.NewInt(0)), push(big.NewInt(0)), push(big.NewInt(0)), push(big.NewInt(0)),
		push(big.NewInt(0)), push(new(big.Int).SetBytes(inner[:])), push(big.NewInt(100_000)),
		[]byte{byte(CALL)}, []byte{byte(POP)}, []byte{byte(STOP)},
	)
	store.setCode(outer, outerCode)

	evm := newTestEVM(store)
	res, err := evm.Call(types.Address{}, outer, nil, 1_000_000, uint256.NewInt(0))
	require.NoError(t, err)
	require.Equal(t, ResultSuccess, res.Kind)

	var zeroHash, slot0 types.Hash
	outerVal, _, err := evm.State.LoadStorage(outer, slot0)
	require.NoError(t, err)
	require.Equal(t, types.BytesToHash(big.NewInt(7).Bytes()), outerVal)

	innerVal, _, err := evm.State.LoadStorage(inner, slot0)
	require.NoError(t, err)
	require.Equal(t, zeroHash, innerVal)
}

// TestCreate2DeterministicAddress covers spec.md §8 S5.
func TestCreate2DeterministicAddress(t *testing.T) {
	store := newFakeStore()
	sender := types.HexToAddress("0xdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef")
	initCode := []byte{byte(PUSH1), 0x00, byte(PUSH1), 0x00, byte(RETURN)}
	var salt uint256.Int

	evm := newTestEVM(store)
	res, err := evm.Create2(sender, initCode, &salt, 1_000_000, uint256.NewInt(0))
	require.NoError(t, err)
	require.Equal(t, ResultSuccess, res.Kind)
	require.NotNil(t, res.CreatedAddr)

	wantAddr := Create2Address(sender, &salt, initCode)
	require.Equal(t, wantAddr, *res.CreatedAddr)

	nonce, err := evm.State.GetNonce(sender)
	require.NoError(t, err)
	require.Equal(t, uint64(1), nonce)

	code, err := evm.State.GetCode(wantAddr)
	require.NoError(t, err)
	require.Empty(t, code)
}

// TestForwardGas63Over64 covers spec.md §8 S6.
func TestForwardGas63Over64(t *testing.T) {
	got := ForwardGas(1_000_000, 10_000_000)
	require.Equal(t, uint64(984_375), got)
}

// TestStaticCallValueViolation: CALL with a nonzero value from a frame
// reached through STATICCALL halts only that frame; the wrapper's
// STATICCALL observes the failure and the outer call still succeeds.
func TestStaticCallValueViolation(t *testing.T) {
	store := newFakeStore()
	callee := types.HexToAddress("0x03")
	caller := types.HexToAddress("0x04")
	store.setCode(callee, []byte{byte(STOP)})

	code := concatOps(
		push(big.NewInt(0)), push(big.NewInt(0)), push(big.NewInt(0)), push(big.NewInt(0)),
		push(big.NewInt(1)), push(new(big.Int).SetBytes(callee[:])), push(big.NewInt(100_000)),
		[]byte{byte(CALL)},
	)
	store.setCode(caller, code)

	evm := newTestEVM(store)
	// Drive caller's value-sending CALL through a STATICCALL wrapper so the
	// is_static taint propagates into caller's own frame.
	wrapper := types.HexToAddress("0x05")
	wrapperCode := concatOps(
		push(big.NewInt(0)), push(big.NewInt(0)), push(big.NewInt(0)), push(big.NewInt(0)),
		push(new(big.Int).SetBytes(caller[:])), push(big.NewInt(900_000)),
		[]byte{byte(STATICCALL)}, []byte{byte(POP)}, []byte{byte(STOP)},
	)
	store.setCode(wrapper, wrapperCode)

	res, err := evm.Call(types.Address{}, wrapper, nil, 1_000_000, uint256.NewInt(0))
	require.NoError(t, err)
	require.Equal(t, ResultSuccess, res.Kind)
}
