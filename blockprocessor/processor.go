package blockprocessor

import (
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set"

	"ledgercore/blockarrival"
	"ledgercore/block"
	"ledgercore/filter"
	"ledgercore/log"
	"ledgercore/process"
	"ledgercore/sigverify"
	"ledgercore/unchecked"
	"ledgercore/writequeue"
)

// Config is the closed set of block-processor tunables, named to match
// the node configuration file's keys one-to-one.
type Config struct {
	BatchMaxTime             time.Duration
	BatchSize                int
	FullSize                 int
	VerificationSize         int
	DisableRepublishing      bool
	DisableUncheckedDeletion bool
}

// DefaultConfig matches the teacher's convention of a package-level
// default for every tunable struct (see cmd/berith's config defaults).
var DefaultConfig = Config{
	BatchMaxTime:     500 * time.Millisecond,
	BatchSize:        256,
	FullSize:         65536,
	VerificationSize: 256,
}

type queuedBlock struct {
	blk      block.Block
	verified unchecked.Verification
	forced   bool
	modified int64 // seconds since epoch, stamped at first arrival
}

// Processor is the single-writer block ingestion pipeline.
type Processor struct {
	mu       sync.Mutex
	cond     *sync.Cond
	blocks   []queuedBlock
	forced   []queuedBlock
	stopped  bool
	inFlight bool
	flushed  chan struct{}

	store     Store
	ledger    Ledger
	network   Network
	elections ActiveElections
	gapCache  GapCache
	stats     Stats
	logger    log.Logger

	dupFilter *filter.Filter
	arrival   *blockarrival.Tracker
	writeq    *writequeue.Queue
	verifier  *sigverify.Verifier

	bootstrap   BootstrapInitiator
	forkHandler ForkHandler

	cfg Config

	observers mapset.Set
}

// Observer is notified of every terminal outcome the processor produces
// for a block, successful or not.
type Observer interface {
	BlockProcessed(blk block.Block, result process.Result)
}

// ForkHandler is notified when a block conflicts with an already-applied
// successor at the same root; an external election mechanism decides
// which of the two chains wins. Optional: a Processor with none
// configured simply drops the post-event (the Fork outcome is still
// logged via Stats).
type ForkHandler interface {
	ResolveFork(root block.Root, existing, attempted block.Hash)
}

// New constructs a Processor. network, elections, gapCache, and stats may
// be nil; a nil collaborator is simply skipped.
func New(cfg Config, store Store, ledger Ledger, network Network, elections ActiveElections, gapCache GapCache, stats Stats) *Processor {
	if cfg.BatchSize == 0 {
		cfg = DefaultConfig
	}
	p := &Processor{
		store:     store,
		ledger:    ledger,
		network:   network,
		elections: elections,
		gapCache:  gapCache,
		stats:     stats,
		logger:    log.Root,
		dupFilter: filter.New(4096),
		arrival:   blockarrival.New(4096),
		writeq:    writequeue.New(),
		cfg:       cfg,
		observers: mapset.NewSet(),
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Subscribe registers observer to receive every future BlockProcessed
// callback. Safe to call from any goroutine.
func (p *Processor) Subscribe(observer Observer) { p.observers.Add(observer) }

// Unsubscribe removes a previously-registered observer.
func (p *Processor) Unsubscribe(observer Observer) { p.observers.Remove(observer) }

// SetBootstrap wires the lazy-repull collaborator used on a bad signature.
// Optional: nil (the default) means a bad signature is just logged via
// Stats and dropped, matching §7's fallback when no bootstrap is wired.
func (p *Processor) SetBootstrap(b BootstrapInitiator) { p.bootstrap = b }

// SetForkHandler wires the fork-resolution collaborator. Optional.
func (p *Processor) SetForkHandler(f ForkHandler) { p.forkHandler = f }

// UseVerifier turns on batched signature pre-verification: state/open
// blocks (and any block carrying a nonzero account hint) arriving with
// Verification == unknown are handed to a sigverify.Verifier pool of
// workers goroutines instead of being queued straight away, offloading
// the ed25519 check off the single write-transaction path. Blocks that
// don't qualify (legacy send/receive/change with no account hint) are
// unaffected: the ledger still verifies them inline during Process, per
// spec §4.5 step 3/4. Calling this more than once replaces the pool.
func (p *Processor) UseVerifier(workers int) {
	p.verifier = sigverify.New(workers, p.ledger, p.onVerdict)
}

// needsPreVerification reports whether blk is eligible for the batched
// signature-verification pool: spec §4.5 step 2 routes state/open blocks,
// or any block carrying a nonzero account hint, through the verifier; all
// other unknown-verification blocks fall through to the ledger's own
// inline check at apply time.
func needsPreVerification(blk block.Block) bool {
	switch blk.Type() {
	case block.TypeState, block.TypeOpen:
		return true
	default:
		return !blk.Account().IsZero()
	}
}

// onVerdict is the sigverify.Verifier's callback: on a bad signature it
// hands the block to bootstrap for a lazy re-pull rather than queueing it
// (no ledger mutation should ever see a block known to be forged); on a
// good verdict (valid, valid_epoch, or unknown-but-maybe-legitimate-epoch)
// it admits the block normally.
func (p *Processor) onVerdict(vd sigverify.Verdict) {
	if vd.BadSig {
		if p.stats != nil {
			p.stats.Inc("block_processor", process.BadSignature)
		}
		if p.bootstrap != nil {
			p.bootstrap.LazyRequeue(vd.Block.Hash(), vd.Block.Previous(), false)
		}
		return
	}
	p.admit(vd.Block, vd.Verified, false)
}

// Add enqueues a freshly arrived block for ordinary admission. It is
// dropped silently (as a duplicate) if an identical payload was already
// seen by the duplicate filter; callers that need byte-level dedup should
// run the raw wire bytes through a filter.Filter themselves before
// decoding, this one only dedups by the block's own hash bytes.
func (p *Processor) Add(blk block.Block, verified unchecked.Verification) {
	p.add(blk, verified, false)
}

// AddFront is Add's push_front=true form (spec §4.5): used when draining
// the unchecked store so a resolved dependent is processed within the
// same write transaction as the parent that just unblocked it. The
// front-insertion only happens while the processor is under a quarter
// full; otherwise it falls back to ordinary back-of-queue admission so a
// burst of dependents can't starve freshly-arrived network blocks.
func (p *Processor) AddFront(blk block.Block, verified unchecked.Verification) {
	p.add(blk, verified, true)
}

func (p *Processor) add(blk block.Block, verified unchecked.Verification, pushFront bool) {
	hash := blk.Hash()
	if present, _ := p.dupFilter.Apply(hash[:]); present {
		return
	}
	if verified == unchecked.VerificationUnknown && p.verifier != nil && needsPreVerification(blk) {
		p.verifier.Verify(blk, blk.Account())
		return
	}
	p.admit(blk, verified, pushFront)
}

// recentWindow is the spec §4.5 Progress-row cutoff: a block applied more
// than this long after it first arrived is treated as bootstrap catch-up,
// not a live network event, and skips republishing/election.
const recentWindow = 300 * time.Second

// admit is the single funnel for a block this process has not queued
// before: it stamps the arrival time, records the hash in the recency
// tracker so a later Progress result can tell a live arrival from a
// drained dependent, and enqueues it.
func (p *Processor) admit(blk block.Block, verified unchecked.Verification, pushFront bool) {
	hash := blk.Hash()
	p.arrival.Add(hash)
	p.enqueue(blk, verified, pushFront, time.Now().Unix())
}

func (p *Processor) enqueue(blk block.Block, verified unchecked.Verification, pushFront bool, modified int64) {
	q := queuedBlock{blk: blk, verified: verified, modified: modified}
	p.mu.Lock()
	if pushFront && len(p.blocks)+len(p.forced) < p.cfg.FullSize/4 {
		p.blocks = append([]queuedBlock{q}, p.blocks...)
	} else {
		p.blocks = append(p.blocks, q)
	}
	p.mu.Unlock()
	p.cond.Signal()
}

// Force enqueues blk on the high-priority forced lane: a caller (wallet,
// confirmation-height cementing) that knows the existing successor at
// blk's root must be replaced rather than rejected as a fork.
func (p *Processor) Force(blk block.Block) {
	hash := blk.Hash()
	p.arrival.Add(hash)
	p.mu.Lock()
	p.forced = append(p.forced, queuedBlock{blk: blk, verified: unchecked.VerificationUnknown, forced: true, modified: time.Now().Unix()})
	p.mu.Unlock()
	p.cond.Signal()
}

// Run drives the batching loop until Stop is called. Intended to be
// launched with `go p.Run()`.
func (p *Processor) Run() {
	for {
		batch := p.nextBatch()
		if batch == nil {
			return
		}
		p.processBatch(batch)
		p.finishBatch()
	}
}

// nextBatch blocks until there is work to do or the processor has been
// stopped (signaled by a nil return), then drains up to BatchSize items,
// forced blocks first. The drained batch is marked in-flight until
// finishBatch clears it, so Flush can't return while it's still being
// applied.
func (p *Processor) nextBatch() []queuedBlock {
	p.mu.Lock()
	defer p.mu.Unlock()
	for !p.stopped && len(p.blocks) == 0 && len(p.forced) == 0 {
		p.cond.Wait()
	}
	if p.stopped && len(p.blocks) == 0 && len(p.forced) == 0 {
		return nil
	}
	batch := p.drainLocked()
	p.inFlight = true
	return batch
}

func (p *Processor) drainLocked() []queuedBlock {
	limit := p.cfg.BatchSize
	if limit <= 0 {
		limit = len(p.forced) + len(p.blocks)
	}
	var batch []queuedBlock
	for len(batch) < limit && len(p.forced) > 0 {
		batch = append(batch, p.forced[0])
		p.forced = p.forced[1:]
	}
	for len(batch) < limit && len(p.blocks) > 0 {
		batch = append(batch, p.blocks[0])
		p.blocks = p.blocks[1:]
	}
	return batch
}

// finishBatch clears the in-flight marker set by nextBatch and wakes any
// Flush waiter if the queues are now empty.
func (p *Processor) finishBatch() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inFlight = false
	if len(p.blocks) == 0 && len(p.forced) == 0 && p.flushed != nil {
		close(p.flushed)
		p.flushed = nil
	}
}

// Stop makes Run return once both queues are empty: blocks already queued
// when Stop is called are still processed first, in as many further
// batches as they take. It also stops the signature-verification pool if
// one is in use.
func (p *Processor) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	p.cond.Broadcast()
	if p.verifier != nil {
		p.verifier.Stop()
	}
}

// Flush blocks until both queues (and, if UseVerifier is active, the
// signature-verification pool) have drained at least once after this
// call, the way the teacher's worker loop exposes a synchronous
// "wait for pending work to clear" hook for tests.
func (p *Processor) Flush() {
	if p.verifier != nil {
		p.verifier.Flush()
	}
	p.mu.Lock()
	if len(p.blocks) == 0 && len(p.forced) == 0 && !p.inFlight {
		p.mu.Unlock()
		return
	}
	if p.flushed == nil {
		p.flushed = make(chan struct{})
	}
	ch := p.flushed
	p.mu.Unlock()
	<-ch
}

// Size reports the combined queue depth across blocks, forced, and (when
// UseVerifier is active) the signature-verification pool's backlog.
func (p *Processor) Size() int {
	p.mu.Lock()
	n := len(p.blocks) + len(p.forced)
	p.mu.Unlock()
	if p.verifier != nil {
		n += p.verifier.Backlog()
	}
	return n
}

// Full reports whether the processor is at or above its configured
// backlog ceiling; callers (network read loops) use this to apply
// backpressure.
func (p *Processor) Full() bool {
	return p.Size() >= p.cfg.FullSize
}

// HalfFull reports whether the backlog has crossed half of FullSize, the
// threshold at which the teacher's equivalent components start shedding
// low-priority work rather than waiting for the hard ceiling.
func (p *Processor) HalfFull() bool {
	return p.Size() >= p.cfg.FullSize/2
}

func (p *Processor) notify(blk block.Block, result process.Result) {
	p.observers.Each(func(item interface{}) bool {
		item.(Observer).BlockProcessed(blk, result)
		return false
	})
}

func (p *Processor) processBatch(batch []queuedBlock) {
	guard := p.writeq.Wait(writequeue.WriterProcessBatch)
	defer guard.Release()

	txn := p.store.Begin(true)
	defer txn.End()

	queue := batch
	for len(queue) > 0 {
		// awaiting_write (spec §4.5/§5): yield the write transaction
		// before the next item if a higher-priority writer (e.g.
		// confirmation-height cementing) is already waiting for it,
		// rather than grinding through the rest of this batch first.
		// Whatever remains goes back to the front of blocks so it's the
		// very next thing the following batch picks up.
		if guard.AwaitingHigherPriority() {
			p.requeueFront(queue)
			return
		}

		item := queue[0]
		queue = queue[1:]

		if item.forced {
			p.applyForced(txn, item.blk)
		}

		result := p.ledger.Process(txn, item.blk, item.verified)
		if p.stats != nil {
			p.stats.Inc("block_processor", result.Code)
		}

		switch result.Code {
		case process.Progress:
			hash := item.blk.Hash()
			if freed := p.drainDependents(txn, hash); len(freed) > 0 {
				for _, info := range freed {
					queue = append(queue, queuedBlock{blk: info.Block, verified: info.Verified, modified: info.Modified})
				}
			}
			// process_live (spec §4.5 Progress row): only a block that
			// arrived recently over the live path, not a stale bootstrap
			// catch-up block, gets republished or handed to elections.
			if time.Unix(item.modified, 0).After(time.Now().Add(-recentWindow)) && p.arrival.Recent(hash) {
				if !p.cfg.DisableRepublishing && p.network != nil {
					p.network.PublishBlock(item.blk)
				}
				if p.elections != nil {
					p.elections.BlockConfirmed(item.blk, result.Account)
				}
			}
		case process.GapPrevious:
			key := unchecked.Key{Dependency: item.blk.Previous(), BlockHash: item.blk.Hash()}
			txn.UncheckedPut(key, unchecked.NewInfo(item.blk, result.Account, item.verified))
			if p.gapCache != nil {
				p.gapCache.Add(item.blk.Previous())
			}
		case process.GapSource:
			dep := p.ledger.BlockSource(item.blk)
			key := unchecked.Key{Dependency: dep, BlockHash: item.blk.Hash()}
			txn.UncheckedPut(key, unchecked.NewInfo(item.blk, result.Account, item.verified))
			if p.gapCache != nil {
				p.gapCache.Add(dep)
			}
		case process.Old:
			// Already-known block: still worth draining whatever depends
			// on it, in case an earlier partial ingest left the unchecked
			// backlog out of sync with the store.
			if freed := p.drainDependents(txn, item.blk.Hash()); len(freed) > 0 {
				for _, info := range freed {
					queue = append(queue, queuedBlock{blk: info.Block, verified: info.Verified, modified: info.Modified})
				}
			}
		case process.BadSignature:
			if p.bootstrap != nil {
				p.bootstrap.LazyRequeue(item.blk.Hash(), item.blk.Previous(), false)
			}
		case process.Fork:
			if p.forkHandler != nil {
				if existing, ok := p.ledger.Successor(txn, item.blk.Root()); ok {
					p.forkHandler.ResolveFork(item.blk.Root(), existing, item.blk.Hash())
				}
			}
		}

		p.notify(item.blk, result)
	}
}

// drainDependents resolves every unchecked entry waiting on dependency so
// its dependents can be re-admitted. When DisableUncheckedDeletion is set
// (spec §6: "keep unchecked entries after draining"), it reads the
// entries instead of removing them, so the backlog stays intact for
// inspection/bootstrap reconciliation while the dependents still get
// reprocessed.
func (p *Processor) drainDependents(txn Txn, dependency block.Hash) []unchecked.Info {
	if p.cfg.DisableUncheckedDeletion {
		return txn.UncheckedGet(dependency)
	}
	return txn.UncheckedDelDependency(dependency)
}

// requeueFront puts every remaining item back at the front of its
// originating queue (forced stays forced, ordinary stays ordinary) so a
// batch interrupted by a higher-priority writer resumes exactly where it
// left off, in the same relative order.
func (p *Processor) requeueFront(remaining []queuedBlock) {
	var blocks, forced []queuedBlock
	for _, item := range remaining {
		if item.forced {
			forced = append(forced, item)
		} else {
			blocks = append(blocks, item)
		}
	}
	p.mu.Lock()
	p.forced = append(forced, p.forced...)
	p.blocks = append(blocks, p.blocks...)
	p.mu.Unlock()
	p.cond.Signal()
}

// applyForced makes room for a forced block by rolling back whatever
// block currently occupies its root, if that occupant differs, then tells
// elections what happened to the rolled-back chain: the displaced root
// block's election restarts under the forced winner, and every descendant
// that rollback also undid is simply erased (spec §4.5 "force"; §8
// scenario 5).
func (p *Processor) applyForced(txn Txn, blk block.Block) {
	existing, ok := p.ledger.Successor(txn, blk.Root())
	if !ok || existing == blk.Hash() {
		return
	}
	rolledBack := p.ledger.Rollback(txn, existing)
	if p.elections == nil || len(rolledBack) == 0 {
		return
	}
	p.elections.Restart(rolledBack[0], blk)
	for _, hash := range rolledBack[1:] {
		p.elections.Erase(hash)
	}
}
