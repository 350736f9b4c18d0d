package vm

import (
	"github.com/holiman/uint256"

	"github.com/coreevm/evm/core/state"
	"github.com/coreevm/evm/core/types"
	"github.com/coreevm/evm/crypto"
	"github.com/coreevm/evm/log"
	"github.com/coreevm/evm/rlp"
)

var evmLogger = log.Default().Module("vm")

// SpecId names a hard fork. Forks are always totally ordered: a field
// gated on "SpecId >= London" reads naturally against this sequence.
type SpecId int

const (
	Frontier SpecId = iota
	Homestead
	TangerineWhistle
	SpuriousDragon
	Byzantium
	Constantinople
	Istanbul
	Berlin
	London
	Merge
	Shanghai
	Cancun
	Prague
)

// Table returns the jump table for this fork.
func (id SpecId) Table() JumpTable {
	switch id {
	case Frontier:
		return NewFrontierJumpTable()
	case Homestead:
		return NewHomesteadJumpTable()
	case TangerineWhistle:
		return NewTangerineWhistleJumpTable()
	case SpuriousDragon:
		return NewSpuriousDragonJumpTable()
	case Byzantium:
		return NewByzantiumJumpTable()
	case Constantinople:
		return NewConstantinopleJumpTable()
	case Istanbul:
		return NewIstanbulJumpTable()
	case Berlin:
		return NewBerlinJumpTable()
	case London:
		return NewLondonJumpTable()
	case Merge:
		return NewMergeJumpTable()
	case Shanghai:
		return NewShanghaiJumpTable()
	case Cancun:
		return NewCancunJumpTable()
	default:
		return NewPragueJumpTable()
	}
}

// BlockEnv is the subset of block data the interpreter's environment
// opcodes observe (COINBASE, TIMESTAMP, NUMBER, PREVRANDAO, GASLIMIT,
// BASEFEE, BLOBBASEFEE, BLOCKHASH goes through AccountStore).
type BlockEnv struct {
	Number      uint64
	Coinbase    types.Address
	Timestamp   uint64
	GasLimit    uint64
	PrevRandao  types.Hash
	BaseFee     *uint256.Int
	BlobBaseFee *uint256.Int
}

// TxEnv is the subset of transaction data the interpreter's environment
// opcodes observe (ORIGIN, GASPRICE, BLOBHASH, CHAINID).
type TxEnv struct {
	Origin     types.Address
	GasPrice   *uint256.Int
	ChainID    *uint256.Int
	BlobHashes []types.Hash
}

// CfgEnv holds behavioural knobs that are not themselves chain state.
type CfgEnv struct {
	SpecId SpecId

	// DisableCalldataFloor turns off the EIP-7623 calldata floor even on a
	// SpecId that would otherwise enable it (default: enabled from Prague).
	DisableCalldataFloor bool
}

// FloorEnabled reports whether the EIP-7623 calldata floor applies.
func (c CfgEnv) FloorEnabled() bool {
	return !c.DisableCalldataFloor && c.SpecId >= Prague
}

// PrecompileProvider resolves and runs precompiled contracts. The core
// engine treats precompiles as wholly external: it only asks whether an
// address is one, and, if so, hands off gas and input synchronously.
type PrecompileProvider interface {
	IsPrecompile(addr types.Address) bool
	Run(addr types.Address, input []byte, gas uint64) (output []byte, remainingGas uint64, err error)
}

// Observer receives optional, read-only callbacks as frames begin and end.
// A nil Observer costs nothing; this is the engine's only concession to
// tracing/inspection, which otherwise lives entirely outside this core.
type Observer interface {
	OnFrameEnter(f *Frame)
	OnFrameExit(f *Frame, result *StepResult)
}

// ResultKind classifies how a top-level call terminated.
type ResultKind int

const (
	ResultSuccess ResultKind = iota
	ResultRevert
	ResultHalt
)

// Result is what Run returns for the outermost frame.
type Result struct {
	Kind        ResultKind
	Output      []byte
	GasUsed     uint64
	GasRefunded uint64
	Reason      ExceptionReason // meaningful only when Kind == ResultHalt
	Logs        []types.Log
	CreatedAddr *types.Address
}

// EVM is the orchestrator: it owns the journaled state, the environment,
// and drives the explicit frame stack to completion. It never recurses the
// host call stack for CALL/CREATE (spec.md §4.3, §9): every nested call or
// create is a loop iteration, not a Go function call.
type EVM struct {
	State       *state.JournaledState
	Store       state.AccountStore
	Block       BlockEnv
	Tx          TxEnv
	Cfg         CfgEnv
	Table       JumpTable
	Precompiles PrecompileProvider
	Observer    Observer

	frames *FrameStack
}

// New constructs an EVM ready to run one transaction against store.
func New(store state.AccountStore, block BlockEnv, tx TxEnv, cfg CfgEnv, precompiles PrecompileProvider) *EVM {
	return &EVM{
		State:       state.New(store),
		Store:       store,
		Block:       block,
		Tx:          tx,
		Cfg:         cfg,
		Table:       cfg.SpecId.Table(),
		Precompiles: precompiles,
		frames:      NewFrameStack(),
	}
}

// Call runs a top-level CALL into addr, driving the frame stack to
// completion. The caller (a transaction handler outside this package, per
// spec.md's Non-goals) is responsible for intrinsic gas and nonce checks.
func (e *EVM) Call(caller, addr types.Address, input []byte, gasLimit uint64, value *uint256.Int) (*Result, error) {
	code, codeHash, err := e.loadCode(addr)
	if err != nil {
		return nil, err
	}
	frame := NewFrame(FrameCall, addr, addr, caller, value, input, NewBytecodeWithHash(code, codeHash), gasLimit, false, 0)
	return e.run(frame)
}

// Create runs a top-level CREATE, deriving the address from (caller, nonce).
func (e *EVM) Create(caller types.Address, initCode []byte, gasLimit uint64, value *uint256.Int) (*Result, error) {
	nonce, err := e.State.GetNonce(caller)
	if err != nil {
		return nil, err
	}
	addr := CreateAddress(caller, nonce)
	if _, err := e.State.BumpNonce(caller); err != nil {
		return nil, err
	}
	return e.runCreateFrame(FrameCreate, caller, addr, initCode, gasLimit, value)
}

// Create2 runs a top-level CREATE2, deriving the address from
// (caller, salt, keccak256(initCode)).
func (e *EVM) Create2(caller types.Address, initCode []byte, salt *uint256.Int, gasLimit uint64, value *uint256.Int) (*Result, error) {
	addr := Create2Address(caller, salt, initCode)
	if _, err := e.State.BumpNonce(caller); err != nil {
		return nil, err
	}
	return e.runCreateFrame(FrameCreate2, caller, addr, initCode, gasLimit, value)
}

func (e *EVM) loadCode(addr types.Address) ([]byte, types.Hash, error) {
	hash, err := e.State.GetCodeHash(addr)
	if err != nil {
		return nil, types.Hash{}, err
	}
	if hash == types.EmptyCodeHash {
		return nil, hash, nil
	}
	code, err := e.State.GetCode(addr)
	if err != nil {
		return nil, types.Hash{}, err
	}
	return code, hash, nil
}

func (e *EVM) runCreateFrame(kind FrameKind, caller, addr types.Address, initCode []byte, gasLimit uint64, value *uint256.Int) (*Result, error) {
	if err := e.State.MarkCreated(addr); err != nil {
		return nil, err
	}
	frame := NewFrame(kind, addr, addr, caller, value, nil, NewBytecode(initCode), gasLimit, false, 0)
	frame.isInitCode = true
	return e.run(frame)
}

// CreateAddress derives a CREATE address: keccak256(rlp([sender, nonce]))[12:].
func CreateAddress(sender types.Address, nonce uint64) types.Address {
	enc, err := rlp.EncodeToBytes([]interface{}{sender.Bytes(), nonce})
	if err != nil {
		panic("vm: rlp encode of create address inputs failed: " + err.Error())
	}
	return types.BytesToAddress(crypto.Keccak256(enc))
}

// Create2Address derives a CREATE2 address:
// keccak256(0xff || sender || salt || keccak256(initCode))[12:].
func Create2Address(sender types.Address, salt *uint256.Int, initCode []byte) types.Address {
	saltBytes := salt.Bytes32()
	codeHash := crypto.Keccak256(initCode)
	data := make([]byte, 0, 1+20+32+32)
	data = append(data, 0xff)
	data = append(data, sender.Bytes()...)
	data = append(data, saltBytes[:]...)
	data = append(data, codeHash...)
	return types.BytesToAddress(crypto.Keccak256(data))
}

// run drives frame, and every child frame it spawns, to completion through
// an explicit loop over e.frames -- the only call stack involved is this
// loop's, regardless of EVM nesting depth (bounded by MaxCallDepth).
func (e *EVM) run(root *Frame) (*Result, error) {
	e.frames = NewFrameStack()
	root.Checkpoint = e.State.Checkpoint()
	e.frames.Push(root)
	if e.Observer != nil {
		e.Observer.OnFrameEnter(root)
	}

	for {
		current := e.frames.Current()
		interp := &Interpreter{evm: e, frame: current}

		res, err := interp.run()
		if err != nil {
			return nil, err
		}

		switch res.Status {
		case StepCall:
			if err := e.handleCall(current, res); err != nil {
				return nil, err
			}
		case StepCreate:
			if err := e.handleCreate(current, res); err != nil {
				return nil, err
			}
		default:
			e.frames.Pop()
			e.settleFrame(current, res)
			if e.Observer != nil {
				e.Observer.OnFrameExit(current, res)
			}
			parent := e.frames.Current()
			if parent == nil {
				return e.finalize(current, res)
			}
			if err := e.foldIntoParent(parent, current, res); err != nil {
				return nil, err
			}
		}
	}
}

func (e *EVM) settleFrame(f *Frame, res *StepResult) {
	switch res.Status {
	case StepReturn:
		e.State.CommitCheckpoint(f.Checkpoint)
	case StepRevert:
		e.State.RevertTo(f.Checkpoint)
	case StepHalt:
		e.State.RevertTo(f.Checkpoint)
		// An Exception consumes the frame's entire remaining gas (spec.md
		// §7), unlike a REVERT which only keeps what was actually spent.
		f.Gas.Used = f.Gas.Limit
	}
}

// foldIntoParent folds a just-finished child's outcome back into its
// parent: unspent gas is returned, and the parent's stack/memory are
// updated exactly as resumeCall/resumeCreate describe.
func (e *EVM) foldIntoParent(parent, child *Frame, res *StepResult) error {
	if child.Kind.IsCreate() && res.Status == StepReturn && !res.callFailed {
		if reason, ok := e.finalizeCreatedCode(child, res); !ok {
			// An oversized/EIP-3541-tainted/underfunded deposit is an
			// exception (spec.md §7): it consumes whatever gas the child
			// had left rather than returning it to the parent.
			child.Gas.Used = child.Gas.Limit
			res = &StepResult{Status: StepReturn, callFailed: true, Reason: reason}
		}
	}
	parent.Gas.Used -= child.Gas.Remaining()
	if child.Kind.IsCreate() {
		return parent.resumeCreate(res, child.TargetAddress)
	}
	return parent.resumeCall(res)
}

// finalizeCreatedCode applies spec.md §4.3 step 7 to a CREATE/CREATE2
// child that RETURNed: reject an oversized or EIP-3541-tainted deployed
// code, charge the per-byte deposit cost, and on success persist it as the
// new account's code. Returns false if the create must be treated as a
// failure (collision with the running checkpoint already reverted by the
// caller's settleFrame).
func (e *EVM) finalizeCreatedCode(child *Frame, res *StepResult) (ExceptionReason, bool) {
	out := res.Output
	if uint64(len(out)) > MaxCodeSize {
		return ReasonCreateContractSizeLimit, false
	}
	if len(out) > 0 && out[0] == 0xEF { // EIP-3541
		return ReasonCreateContractSizeLimit, false
	}
	depositCost := CreateDataGas * uint64(len(out))
	if !child.Gas.Consume(depositCost) {
		return ReasonOutOfGas, false
	}
	hash := types.BytesToHash(crypto.Keccak256(out))
	if err := e.State.SetCode(child.TargetAddress, out, hash); err != nil {
		return ReasonOutOfGas, false
	}
	return 0, true
}

func (e *EVM) finalize(f *Frame, res *StepResult) (*Result, error) {
	e.State.Finalize()
	out := &Result{
		GasUsed:     f.Gas.Used,
		GasRefunded: e.State.Refund(),
		Logs:        e.State.Logs(),
	}
	switch res.Status {
	case StepReturn:
		out.Kind = ResultSuccess
		out.Output = res.Output
		if f.Kind.IsCreate() {
			addr := f.TargetAddress
			out.CreatedAddr = &addr
		}
	case StepRevert:
		out.Kind = ResultRevert
		out.Output = res.Output
	default:
		out.Kind = ResultHalt
		out.Reason = res.Reason
	}
	return out, nil
}

// handleCall resolves a StepCall: either runs a precompile synchronously
// and folds the result immediately, or pushes a real child Frame.
func (e *EVM) handleCall(parent *Frame, res *StepResult) error {
	in := res.CallInputs
	parent.pendingReturnTo = res.ReturnRegion

	if !e.frames.CanPush() {
		return parent.resumeCall(&StepResult{Status: StepHalt, Reason: ReasonCallDepthExceeded})
	}
	if in.ApparentValue != nil && in.ApparentValue.Sign() != 0 {
		bal, err := e.State.GetBalance(parent.TargetAddress)
		if err != nil {
			return err
		}
		if bal.Cmp(in.ApparentValue.ToBig()) < 0 {
			return parent.resumeCall(&StepResult{Status: StepReturn, Output: nil, Reason: ReasonOutOfGas, callFailed: true})
		}
	}

	if e.Precompiles != nil && e.Precompiles.IsPrecompile(in.CodeAddress) {
		out, remaining, perr := e.Precompiles.Run(in.CodeAddress, in.Input, in.GasLimit)
		parent.Gas.Used += in.GasLimit - remaining
		if perr != nil {
			return parent.resumeCall(&StepResult{Status: StepReturn, callFailed: true})
		}
		return parent.resumeCall(&StepResult{Status: StepReturn, Output: out})
	}

	if in.Kind == FrameCall && in.ApparentValue != nil && in.ApparentValue.Sign() != 0 {
		if err := e.State.BalanceTransfer(parent.TargetAddress, in.TargetAddress, in.ApparentValue.ToBig()); err != nil {
			return parent.resumeCall(&StepResult{Status: StepReturn, callFailed: true})
		}
	}

	code, hash, err := e.loadCode(in.CodeAddress)
	if err != nil {
		return err
	}
	bc := NewBytecodeWithHash(code, hash)
	child := NewFrame(in.Kind, in.CodeAddress, in.TargetAddress, in.Caller, in.ApparentValue, in.Input, bc, in.GasLimit+in.Stipend, in.IsStatic, parent.Depth+1)
	child.Checkpoint = e.State.Checkpoint()
	parent.Gas.Used += in.GasLimit
	e.frames.Push(child)
	if e.Observer != nil {
		e.Observer.OnFrameEnter(child)
	}
	return nil
}

func (e *EVM) handleCreate(parent *Frame, res *StepResult) error {
	in := res.CreateInputs

	fail := func() error {
		return parent.resumeCreate(&StepResult{Status: StepReturn, callFailed: true}, types.Address{})
	}
	// failExceptional is for the create-time checks spec.md §7/§4.3 classes
	// as exceptions (init-code size, collision, nonce overflow): unlike a
	// depth/balance failure, which simply never spawns a child and refunds
	// the forwarded gas, an exception consumes it -- so the forwarded
	// in.GasLimit is charged to the parent before the zero is pushed.
	failExceptional := func(reason ExceptionReason) error {
		parent.Gas.Used += in.GasLimit
		return parent.resumeCreate(&StepResult{Status: StepReturn, callFailed: true, Reason: reason}, types.Address{})
	}

	if !e.frames.CanPush() {
		return fail()
	}
	if uint64(len(in.InitCode)) > MaxInitCodeSize {
		return failExceptional(ReasonCreateInitCodeSizeLimit)
	}
	bal, err := e.State.GetBalance(parent.TargetAddress)
	if err != nil {
		return err
	}
	if bal.Cmp(in.Value.ToBig()) < 0 {
		return fail()
	}

	var addr types.Address
	if in.Kind == FrameCreate2 {
		addr = Create2Address(in.Caller, in.Salt, in.InitCode)
	} else {
		nonce, err := e.State.GetNonce(in.Caller)
		if err != nil {
			return err
		}
		addr = CreateAddress(in.Caller, nonce)
	}

	exists, err := e.State.Exist(addr)
	if err != nil {
		return err
	}
	if exists {
		nonce, err := e.State.GetNonce(addr)
		if err != nil {
			return err
		}
		hash, err := e.State.GetCodeHash(addr)
		if err != nil {
			return err
		}
		if nonce != 0 || hash != types.EmptyCodeHash {
			return failExceptional(ReasonCreateCollision)
		}
	}

	if _, err := e.State.BumpNonce(in.Caller); err != nil {
		if err == state.ErrNonceOverflow() {
			return failExceptional(ReasonNonceOverflow)
		}
		return err
	}
	if err := e.State.MarkCreated(addr); err != nil {
		return err
	}
	if in.Value.Sign() != 0 {
		if err := e.State.BalanceTransfer(parent.TargetAddress, addr, in.Value.ToBig()); err != nil {
			return fail()
		}
	}

	child := NewFrame(in.Kind, addr, addr, in.Caller, in.Value, nil, NewBytecode(in.InitCode), in.GasLimit, false, parent.Depth+1)
	child.isInitCode = true
	child.Checkpoint = e.State.Checkpoint()
	parent.Gas.Used += in.GasLimit
	e.frames.Push(child)
	if e.Observer != nil {
		e.Observer.OnFrameEnter(child)
	}
	return nil
}
