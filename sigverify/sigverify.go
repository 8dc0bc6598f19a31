// Package sigverify is the block processor's signature-verification
// helper: a small batching worker pool that checks ed25519 signatures (and
// recognizes epoch-upgrade links) off the processor's single write-txn
// path, then calls back with the verdict so the caller can admit the block
// under the right unchecked.Verification state.
//
// Grounded on the teacher's miner/worker.go taskCh/resultCh pattern: a
// mutex/cond-guarded queue drained by a small fixed pool of goroutines, with the
// pool's depth and activity observable from outside (mirrors
// worker.pendingTasks bookkeeping) so the processor can decide whether to
// wait on Flush.
package sigverify

import (
	"sync"

	"ledgercore/block"
	"ledgercore/log"
	"ledgercore/unchecked"
)

// EpochRecognizer reports whether a state block's link field is a
// recognized epoch-upgrade sentinel, and who may sign one. Narrowed from
// ledger.EpochRegistry so this package doesn't import ledger.
type EpochRecognizer interface {
	IsEpochLink(link block.Hash) bool
	Signer() block.Account
}

// Verdict is delivered once per submitted block, after its signature (and
// epoch-link status) has been checked.
type Verdict struct {
	Block      block.Block
	Account    block.Account
	Verified   unchecked.Verification
	BadSig     bool // true when the signature failed against the account; false for an epoch-link block whose epoch signature failed (Verified is then VerificationUnknown and the ledger re-checks it)
}

type request struct {
	blk     block.Block
	account block.Account
}

// Verifier batches signature checks across a small worker pool.
type Verifier struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []request
	active  int // number of workers currently mid-verification, not counting idle pool members
	stopped bool

	epoch    EpochRecognizer
	callback func(Verdict)
	workers  int
	logger   log.Logger

	wg sync.WaitGroup
}

// DefaultWorkers matches the teacher's miner worker pool default of one
// goroutine per logical concern rather than per CPU, since signature
// verification here is cheap enough that oversubscription buys little.
const DefaultWorkers = 4

// New constructs a Verifier with workers goroutines (DefaultWorkers if <=
// 0), recognizing epoch links via epoch (may be nil, meaning no block is
// ever treated as an epoch upgrade), delivering each Verdict to callback.
// callback must not block for long: it runs on a verifier worker goroutine.
func New(workers int, epoch EpochRecognizer, callback func(Verdict)) *Verifier {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	v := &Verifier{
		epoch:    epoch,
		callback: callback,
		workers:  workers,
		logger:   log.Root,
	}
	v.cond = sync.NewCond(&v.mu)
	for i := 0; i < workers; i++ {
		v.wg.Add(1)
		go v.run()
	}
	return v
}

// Verify submits blk for batched signature verification. account is the
// chain-owner hint the caller already has (from block.Block.Account() for
// state/open blocks); it is the identity the signature is checked against
// unless blk's link resolves to a recognized epoch upgrade.
func (v *Verifier) Verify(blk block.Block, account block.Account) {
	v.mu.Lock()
	if v.stopped {
		v.mu.Unlock()
		return
	}
	v.queue = append(v.queue, request{blk: blk, account: account})
	v.mu.Unlock()
	v.cond.Signal()
}

// Size reports the number of blocks still waiting on a worker.
func (v *Verifier) Size() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.queue)
}

// IsActive reports whether any worker is mid-verification right now.
func (v *Verifier) IsActive() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.active > 0
}

// Backlog reports the combined count of queued-but-not-started plus
// in-flight verifications, the number a caller should add to its own
// queue depths when computing overall backlog (spec §4.5: size() sums
// all three queues, one of which is this verifier).
func (v *Verifier) Backlog() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.queue) + v.active
}

func (v *Verifier) run() {
	defer v.wg.Done()
	for {
		v.mu.Lock()
		for !v.stopped && len(v.queue) == 0 {
			v.cond.Wait()
		}
		if v.stopped && len(v.queue) == 0 {
			v.mu.Unlock()
			return
		}
		req := v.queue[0]
		v.queue = v.queue[1:]
		v.active++
		v.mu.Unlock()

		verdict := v.check(req)

		// The callback runs before active is cleared and outside the
		// lock, so it can freely re-enter Verify/admit without
		// deadlocking. Only once it returns do we acquire-then-release
		// the lock before broadcasting — the §9 discipline that closes
		// the wake-up race with Flush: a waiter must never observe
		// active==0 while the callback (which may still be mutating
		// state Flush's caller cares about) is in flight.
		if v.callback != nil {
			v.callback(verdict)
		}

		v.mu.Lock()
		v.active--
		v.mu.Unlock()
		v.cond.Broadcast()
	}
}

func (v *Verifier) check(req request) Verdict {
	hash := req.blk.Hash()
	signer := req.account
	isEpoch := v.epoch != nil && v.epoch.IsEpochLink(req.blk.Link())
	if isEpoch {
		signer = v.epoch.Signer()
	}
	ok := block.VerifySignature(signer, hash, req.blk.Signature())

	switch {
	case isEpoch && ok:
		return Verdict{Block: req.blk, Account: req.account, Verified: unchecked.VerificationValidEpoch}
	case isEpoch && !ok:
		// May still be an ordinary state block whose link happens to
		// collide with an epoch sentinel; let the ledger's own re-check
		// decide rather than discarding it here.
		return Verdict{Block: req.blk, Account: req.account, Verified: unchecked.VerificationUnknown}
	case ok:
		return Verdict{Block: req.blk, Account: req.account, Verified: unchecked.VerificationValid}
	default:
		return Verdict{Block: req.blk, Account: req.account, Verified: unchecked.VerificationUnknown, BadSig: true}
	}
}

// Flush blocks until the queue is empty and no worker is mid-verification.
func (v *Verifier) Flush() {
	v.mu.Lock()
	for len(v.queue) > 0 || v.active > 0 {
		v.cond.Wait()
	}
	v.mu.Unlock()
}

// Stop refuses further Verify calls and returns once every worker goroutine
// has exited. Items already queued when Stop is called are still verified,
// and their callbacks run, before the workers exit.
func (v *Verifier) Stop() {
	v.mu.Lock()
	v.stopped = true
	v.mu.Unlock()
	v.cond.Broadcast()
	v.wg.Wait()
}
