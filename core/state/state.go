// Package state implements the journaled, transactionally-revertible
// overlay the interpreter reads and writes during one transaction. It sits
// between the read-only AccountStore and the interpreter: every mutation
// is recorded in a Journal entry so any frame's checkpoint can be undone
// without touching the backing store.
package state

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/coreevm/evm/core/types"
	"github.com/coreevm/evm/log"
)

var logger = log.Default().Module("state")

// accountOverlay is the in-memory view of one account during a
// transaction: the current AccountInfo plus any dirty storage slots.
type accountOverlay struct {
	info          types.AccountInfo
	existed       bool // did this account exist in the backing store at load time
	code          []byte
	storage       map[types.Hash]types.Hash // current values, lazily populated from the store
	originStorage map[types.Hash]types.Hash // value as of the first read/write this tx (EIP-2200 "original")
	destructed    bool
	createdThisTx bool
}

// SStoreResult is what SStore returns; the caller (the SSTORE opcode
// handler) uses it to price gas and adjust the refund counter per
// spec.md §4.2.
type SStoreResult struct {
	Original types.Hash
	Old      types.Hash
	New      types.Hash
	WasCold  bool
}

// SelfDestructInfo is what SelfDestruct returns.
type SelfDestructInfo struct {
	HadValue            bool
	WasCold             bool
	PreviouslyDestructed bool
}

// JournaledState is the single source of truth for mutable state during a
// transaction (spec.md §4.4): every capability the interpreter needs is a
// method here, backed by the journal for revert.
type JournaledState struct {
	store AccountStore

	accounts map[types.Address]*accountOverlay
	transient map[types.Address]map[types.Hash]types.Hash

	accessAddrs *accessList

	logs   []types.Log
	refund uint64

	journal *journal
}

// New returns a JournaledState reading through to store.
func New(store AccountStore) *JournaledState {
	return &JournaledState{
		store:       store,
		accounts:    make(map[types.Address]*accountOverlay),
		transient:   make(map[types.Address]map[types.Hash]types.Hash),
		accessAddrs: newAccessList(),
		journal:     newJournal(),
	}
}

func (s *JournaledState) mustOverlay(addr types.Address) *accountOverlay {
	ov, ok := s.accounts[addr]
	if !ok {
		panic(fmt.Sprintf("state: account %s not loaded", addr.Hex()))
	}
	return ov
}

// load fetches addr from the backing store if not already overlaid,
// recording an AccountTouched entry the first time it is seen.
func (s *JournaledState) load(addr types.Address) (*accountOverlay, error) {
	if ov, ok := s.accounts[addr]; ok {
		return ov, nil
	}
	info, existed, err := s.store.Basic(addr)
	if err != nil {
		return nil, &fatalStoreError{err}
	}
	if !existed {
		info = types.NewAccountInfo()
	}
	ov := &accountOverlay{
		info:          info,
		existed:       existed,
		storage:       make(map[types.Hash]types.Hash),
		originStorage: make(map[types.Hash]types.Hash),
	}
	s.accounts[addr] = ov
	s.journal.append(accountTouchedEntry{addr: addr, had: false})
	return ov, nil
}

// fatalStoreError wraps an AccountStore failure. The vm package type-
// asserts for this via errors.As to produce its own FatalExternalError,
// keeping this package free of an import-cycle back to vm.
type fatalStoreError struct{ err error }

func (e *fatalStoreError) Error() string { return fmt.Sprintf("state: store error: %v", e.err) }
func (e *fatalStoreError) Unwrap() error { return e.err }

// IsStoreError reports whether err originated from the backing AccountStore,
// letting vm wrap it into its own FatalExternalError without this package
// importing vm (which would be a cycle).
func IsStoreError(err error) bool {
	var fse *fatalStoreError
	return errors.As(err, &fse)
}

// LoadAccount materialises addr and reports whether this is the first
// access within the transaction (cold).
func (s *JournaledState) LoadAccount(addr types.Address) (types.AccountInfo, bool, error) {
	ov, err := s.load(addr)
	if err != nil {
		return types.AccountInfo{}, false, err
	}
	wasCold := !s.accessAddrs.AddAddress(addr)
	if wasCold {
		s.journal.append(accountLoadedEntry{addr: addr})
	}
	return ov.info, wasCold, nil
}

// Exist reports whether addr has ever existed (is present in the overlay
// or the backing store).
func (s *JournaledState) Exist(addr types.Address) (bool, error) {
	ov, err := s.load(addr)
	if err != nil {
		return false, err
	}
	return ov.existed || ov.createdThisTx, nil
}

// Empty reports whether addr is empty per EIP-161.
func (s *JournaledState) Empty(addr types.Address) (bool, error) {
	ov, err := s.load(addr)
	if err != nil {
		return false, err
	}
	return ov.info.IsEmpty(), nil
}

// GetBalance/GetNonce/GetCodeHash are convenience reads; each implicitly
// loads the account into the overlay if not already present. None of them
// marks the account warm in the access list.
func (s *JournaledState) GetBalance(addr types.Address) (*big.Int, error) {
	ov, err := s.load(addr)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(ov.info.Balance), nil
}

func (s *JournaledState) GetNonce(addr types.Address) (uint64, error) {
	ov, err := s.load(addr)
	if err != nil {
		return 0, err
	}
	return ov.info.Nonce, nil
}

func (s *JournaledState) GetCodeHash(addr types.Address) (types.Hash, error) {
	ov, err := s.load(addr)
	if err != nil {
		return types.Hash{}, err
	}
	return ov.info.CodeHash, nil
}

// GetCode returns addr's code, fetching it from the store by hash on
// first access and caching it on the overlay.
func (s *JournaledState) GetCode(addr types.Address) ([]byte, error) {
	ov, err := s.load(addr)
	if err != nil {
		return nil, err
	}
	if ov.code != nil || ov.info.CodeHash == types.EmptyCodeHash {
		return ov.code, nil
	}
	code, err := s.store.CodeByHash(ov.info.CodeHash)
	if err != nil {
		return nil, &fatalStoreError{err}
	}
	ov.code = code
	return code, nil
}

// SetCode sets addr's code (used at the end of a successful CREATE).
func (s *JournaledState) SetCode(addr types.Address, code []byte, hash types.Hash) error {
	ov, err := s.load(addr)
	if err != nil {
		return err
	}
	s.journal.append(codeSetEntry{addr: addr, priorHash: ov.info.CodeHash, priorCode: ov.code})
	ov.info.CodeHash = hash
	ov.code = code
	return nil
}

// BumpNonce increments addr's nonce and returns the new value. Returns a
// NonceOverflow-flavoured error if the nonce is already at u64 max; the vm
// package maps that to ExceptionReason.
func (s *JournaledState) BumpNonce(addr types.Address) (uint64, error) {
	ov, err := s.load(addr)
	if err != nil {
		return 0, err
	}
	if ov.info.Nonce == ^uint64(0) {
		return 0, errNonceOverflow
	}
	s.journal.append(nonceBumpedEntry{addr: addr})
	ov.info.Nonce++
	return ov.info.Nonce, nil
}

var errNonceOverflow = fmt.Errorf("state: nonce overflow")

// ErrNonceOverflow lets callers detect the nonce-overflow condition without
// string matching.
func ErrNonceOverflow() error { return errNonceOverflow }

// Touch marks addr as touched for EIP-161 end-of-transaction cleanup. Since
// every load already appends an accountTouchedEntry, Touch only needs to
// ensure the account is loaded.
func (s *JournaledState) Touch(addr types.Address) error {
	_, err := s.load(addr)
	return err
}

// BalanceTransfer moves amount from 'from' to 'to', creating 'to' if it did
// not exist. Returns an error if 'from' has insufficient balance.
func (s *JournaledState) BalanceTransfer(from, to types.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		// Touch both sides even for a zero-value transfer (matches the
		// real network's touch semantics) but no journal entry is needed.
		if _, err := s.load(from); err != nil {
			return err
		}
		_, err := s.load(to)
		return err
	}
	fromOv, err := s.load(from)
	if err != nil {
		return err
	}
	if fromOv.info.Balance.Cmp(amount) < 0 {
		return fmt.Errorf("state: insufficient balance")
	}
	toOv, err := s.load(to)
	if err != nil {
		return err
	}
	s.journal.append(balanceTransferredEntry{from: from, to: to, amount: new(big.Int).Set(amount)})
	fromOv.info.Balance = new(big.Int).Sub(fromOv.info.Balance, amount)
	toOv.info.Balance = new(big.Int).Add(toOv.info.Balance, amount)
	return nil
}

// MarkCreated flags addr as created within the current transaction (used
// by CREATE/CREATE2 bookkeeping and EIP-6780 SELFDESTRUCT semantics).
func (s *JournaledState) MarkCreated(addr types.Address) error {
	ov, err := s.load(addr)
	if err != nil {
		return err
	}
	s.journal.append(accountCreatedEntry{addr: addr})
	ov.createdThisTx = true
	return nil
}

// CreatedThisTx reports whether addr was created during the current
// transaction (EIP-6780 gating for SELFDESTRUCT).
func (s *JournaledState) CreatedThisTx(addr types.Address) bool {
	if ov, ok := s.accounts[addr]; ok {
		return ov.createdThisTx
	}
	return false
}

// --- storage ---

func (s *JournaledState) loadSlot(addr types.Address, key types.Hash) (*accountOverlay, types.Hash, error) {
	ov, err := s.load(addr)
	if err != nil {
		return nil, types.Hash{}, err
	}
	if v, ok := ov.storage[key]; ok {
		return ov, v, nil
	}
	v, err := s.store.Storage(addr, key)
	if err != nil {
		return nil, types.Hash{}, &fatalStoreError{err}
	}
	ov.storage[key] = v
	ov.originStorage[key] = v
	return ov, v, nil
}

// LoadStorage returns the current value of a slot and whether this is the
// first access within the transaction.
func (s *JournaledState) LoadStorage(addr types.Address, key types.Hash) (types.Hash, bool, error) {
	_, v, err := s.loadSlot(addr, key)
	if err != nil {
		return types.Hash{}, false, err
	}
	wasCold := !addrSlotWarm(s.accessAddrs, addr, key)
	if wasCold {
		s.journal.append(storageAccessedEntry{addr: addr, key: key})
	}
	return v, wasCold, nil
}

func addrSlotWarm(al *accessList, addr types.Address, key types.Hash) bool {
	_, slotOk := al.AddSlot(addr, key)
	return slotOk
}

// SStore writes a new value to a storage slot and returns the information
// the SSTORE opcode needs to price gas and adjust the refund counter.
func (s *JournaledState) SStore(addr types.Address, key types.Hash, newVal types.Hash) (SStoreResult, error) {
	ov, old, err := s.loadSlot(addr, key)
	if err != nil {
		return SStoreResult{}, err
	}
	wasCold := !addrSlotWarm(s.accessAddrs, addr, key)
	if wasCold {
		s.journal.append(storageAccessedEntry{addr: addr, key: key})
	}
	original := ov.originStorage[key]

	if old != newVal {
		_, hadSlot := ov.storage[key]
		s.journal.append(storageChangedEntry{addr: addr, key: key, prior: old, hadSlot: hadSlot})
		ov.storage[key] = newVal
	}

	return SStoreResult{Original: original, Old: old, New: newVal, WasCold: wasCold}, nil
}

// --- transient storage (EIP-1153) ---

func (s *JournaledState) TLoad(addr types.Address, key types.Hash) types.Hash {
	return s.transient[addr][key]
}

func (s *JournaledState) TStore(addr types.Address, key types.Hash, value types.Hash) {
	prior, had := s.transient[addr][key]
	s.journal.append(transientChangedEntry{addr: addr, key: key, prior: prior, had: had})
	if s.transient[addr] == nil {
		s.transient[addr] = make(map[types.Hash]types.Hash)
	}
	s.transient[addr][key] = value
}

// --- logs ---

func (s *JournaledState) Log(l types.Log) {
	s.logs = append(s.logs, l)
	s.journal.append(logAppendedEntry{})
}

func (s *JournaledState) Logs() []types.Log { return s.logs }

// --- refund ---

func (s *JournaledState) AddRefund(gas uint64) {
	s.journal.append(refundAdjustedEntry{delta: int64(gas)})
	s.refund += gas
}

func (s *JournaledState) SubRefund(gas uint64) {
	s.journal.append(refundAdjustedEntry{delta: -int64(gas)})
	if gas > s.refund {
		s.refund = 0
		return
	}
	s.refund -= gas
}

func (s *JournaledState) Refund() uint64 { return s.refund }

// --- self-destruct (EIP-6780 gated by the caller) ---

// SelfDestruct moves from's balance to beneficiary, and -- only when
// markDestroyed is true -- marks from for deletion at the end of the
// transaction. The caller computes markDestroyed (pre-Cancun: always true;
// Cancun+: only if CreatedThisTx(from), per EIP-6780) since the balance
// move happens unconditionally either way.
func (s *JournaledState) SelfDestruct(from, beneficiary types.Address, markDestroyed bool) (SelfDestructInfo, error) {
	ov, err := s.load(from)
	if err != nil {
		return SelfDestructInfo{}, err
	}
	benOv, err := s.load(beneficiary)
	if err != nil {
		return SelfDestructInfo{}, err
	}
	wasCold := !s.accessAddrs.AddAddress(beneficiary)
	if wasCold {
		s.journal.append(accountLoadedEntry{addr: beneficiary})
	}

	amount := new(big.Int).Set(ov.info.Balance)
	hadValue := amount.Sign() != 0

	s.journal.append(selfDestructedEntry{
		addr:            from,
		priorBalance:    new(big.Int).Set(ov.info.Balance),
		priorDestructed: ov.destructed,
		beneficiary:     beneficiary,
		amount:          amount,
	})

	prevDestructed := ov.destructed
	if markDestroyed {
		ov.destructed = true
	}
	if from != beneficiary {
		ov.info.Balance = new(big.Int)
		benOv.info.Balance = new(big.Int).Add(benOv.info.Balance, amount)
	}

	return SelfDestructInfo{HadValue: hadValue, WasCold: wasCold, PreviouslyDestructed: prevDestructed}, nil
}

func (s *JournaledState) HasSelfDestructed(addr types.Address) bool {
	if ov, ok := s.accounts[addr]; ok {
		return ov.destructed
	}
	return false
}

// --- access list (EIP-2929), exposed for opcodes that only need to query
// warmth without materialising a load (e.g. ACCESS list precharge) ---

func (s *JournaledState) AddressInAccessList(addr types.Address) bool {
	return s.accessAddrs.ContainsAddress(addr)
}

func (s *JournaledState) SlotInAccessList(addr types.Address, key types.Hash) (bool, bool) {
	return s.accessAddrs.ContainsSlot(addr, key)
}

// --- checkpoints ---

// Checkpoint captures the current journal position, log count, and refund
// counter, returning an id that RevertTo/CommitCheckpoint accept later.
func (s *JournaledState) Checkpoint() int {
	return s.journal.snapshot(len(s.logs), s.refund)
}

// RevertTo undoes every mutation recorded since Checkpoint(id).
func (s *JournaledState) RevertTo(id int) {
	s.journal.revertTo(id, s)
}

// CommitCheckpoint keeps a successful frame's mutations.
func (s *JournaledState) CommitCheckpoint(id int) {
	s.journal.commit(id)
}

// Finalize applies EIP-158/161 and EIP-6780 end-of-transaction cleanup:
// self-destructed accounts, and touched-but-empty accounts, are deleted
// from the overlay. It does not write through to the backing AccountStore
// -- persistence is the orchestrator's responsibility.
func (s *JournaledState) Finalize() {
	for addr, ov := range s.accounts {
		if ov.destructed {
			delete(s.accounts, addr)
			continue
		}
		if ov.info.IsEmpty() {
			delete(s.accounts, addr)
		}
	}
	logger.Debug("finalized transaction state", "accounts", len(s.accounts), "logs", len(s.logs))
}
