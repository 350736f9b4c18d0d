package state

import (
	"math/big"

	"github.com/coreevm/evm/core/types"
)

// entry is a single reversible mutation recorded by the Journal (spec.md
// §3/§4.4). revert undoes exactly the effect its constructor recorded,
// applied against the live JournaledState.
type entry interface {
	revert(s *JournaledState)
}

// checkpoint captures everything revertTo needs to restore: how many
// entries existed, how many logs had been emitted, and the refund counter.
type checkpoint struct {
	entryIndex int
	logCount   int
	refund     uint64
}

// journal is the ordered log of entries plus a stack of checkpoints.
type journal struct {
	entries     []entry
	checkpoints []checkpoint
}

func newJournal() *journal {
	return &journal{}
}

func (j *journal) append(e entry) {
	j.entries = append(j.entries, e)
}

// snapshot pushes a checkpoint and returns its id (its position in the
// checkpoint stack), used by JournaledState.Checkpoint.
func (j *journal) snapshot(logCount int, refund uint64) int {
	j.checkpoints = append(j.checkpoints, checkpoint{
		entryIndex: len(j.entries),
		logCount:   logCount,
		refund:     refund,
	})
	return len(j.checkpoints) - 1
}

// revertTo replays entries from the tail back to the checkpoint's recorded
// index, applying each entry's inverse, then truncates the journal and the
// checkpoint stack to that point.
func (j *journal) revertTo(id int, s *JournaledState) {
	if id < 0 || id >= len(j.checkpoints) {
		return
	}
	cp := j.checkpoints[id]
	for i := len(j.entries) - 1; i >= cp.entryIndex; i-- {
		j.entries[i].revert(s)
	}
	j.entries = j.entries[:cp.entryIndex]
	j.checkpoints = j.checkpoints[:id]
	s.logs = s.logs[:cp.logCount]
	s.refund = cp.refund
}

// commit drops the checkpoint marker at id without undoing anything: the
// frame succeeded and its mutations become visible to its caller.
func (j *journal) commit(id int) {
	if id < 0 || id >= len(j.checkpoints) {
		return
	}
	j.checkpoints = j.checkpoints[:id]
}

// --- concrete entries ---

type accountTouchedEntry struct {
	addr  types.Address
	prior types.AccountInfo
	had   bool // whether the account existed at all before this touch
}

func (e accountTouchedEntry) revert(s *JournaledState) {
	if !e.had {
		delete(s.accounts, e.addr)
		return
	}
	ov := s.mustOverlay(e.addr)
	ov.info = e.prior
}

type accountLoadedEntry struct {
	addr types.Address
}

func (e accountLoadedEntry) revert(s *JournaledState) {
	s.accessAddrs.DeleteAddress(e.addr)
}

type storageAccessedEntry struct {
	addr types.Address
	key  types.Hash
}

func (e storageAccessedEntry) revert(s *JournaledState) {
	s.accessAddrs.DeleteSlot(e.addr, e.key)
}

type storageChangedEntry struct {
	addr    types.Address
	key     types.Hash
	prior   types.Hash
	hadSlot bool
}

func (e storageChangedEntry) revert(s *JournaledState) {
	ov := s.mustOverlay(e.addr)
	if e.hadSlot {
		ov.storage[e.key] = e.prior
	} else {
		delete(ov.storage, e.key)
	}
}

type balanceTransferredEntry struct {
	from, to types.Address
	amount   *big.Int
}

func (e balanceTransferredEntry) revert(s *JournaledState) {
	if from := s.accounts[e.from]; from != nil {
		from.info.Balance = new(big.Int).Add(from.info.Balance, e.amount)
	}
	if to := s.accounts[e.to]; to != nil {
		to.info.Balance = new(big.Int).Sub(to.info.Balance, e.amount)
	}
}

type nonceBumpedEntry struct {
	addr types.Address
}

func (e nonceBumpedEntry) revert(s *JournaledState) {
	if ov := s.accounts[e.addr]; ov != nil {
		ov.info.Nonce--
	}
}

type codeSetEntry struct {
	addr      types.Address
	priorHash types.Hash
	priorCode []byte
}

func (e codeSetEntry) revert(s *JournaledState) {
	if ov := s.accounts[e.addr]; ov != nil {
		ov.info.CodeHash = e.priorHash
		ov.code = e.priorCode
	}
}

type logAppendedEntry struct{}

func (e logAppendedEntry) revert(s *JournaledState) {
	s.logs = s.logs[:len(s.logs)-1]
}

type selfDestructedEntry struct {
	addr            types.Address
	priorBalance    *big.Int
	priorDestructed bool
	beneficiary     types.Address
	amount          *big.Int
}

func (e selfDestructedEntry) revert(s *JournaledState) {
	if ov := s.accounts[e.addr]; ov != nil {
		ov.info.Balance = e.priorBalance
		ov.destructed = e.priorDestructed
	}
	if ben := s.accounts[e.beneficiary]; ben != nil && e.beneficiary != e.addr {
		ben.info.Balance = new(big.Int).Sub(ben.info.Balance, e.amount)
	}
}

type refundAdjustedEntry struct {
	delta int64
}

func (e refundAdjustedEntry) revert(s *JournaledState) {
	if e.delta >= 0 {
		s.refund -= uint64(e.delta)
	} else {
		s.refund += uint64(-e.delta)
	}
}

type transientChangedEntry struct {
	addr  types.Address
	key   types.Hash
	prior types.Hash
	had   bool
}

func (e transientChangedEntry) revert(s *JournaledState) {
	if !e.had {
		delete(s.transient[e.addr], e.key)
		if len(s.transient[e.addr]) == 0 {
			delete(s.transient, e.addr)
		}
		return
	}
	s.transient[e.addr][e.key] = e.prior
}

type accountCreatedEntry struct {
	addr types.Address
}

func (e accountCreatedEntry) revert(s *JournaledState) {
	if ov := s.accounts[e.addr]; ov != nil {
		ov.createdThisTx = false
	}
}
