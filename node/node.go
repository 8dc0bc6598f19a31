// Package node wires every ledger-ingestion subsystem into one runnable
// unit: the ledger store, the block processor, the distributed work
// manager, the confirmation solicitor, and the bandwidth limiter.
//
// Shaped on the teacher's les/backend.go: a single struct embedding each
// subsystem, a New(config) constructor that assembles them in dependency
// order, and explicit Start/Stop lifecycle methods rather than relying on
// constructor side effects.
package node

import (
	"ledgercore/bandwidth"
	"ledgercore/block"
	"ledgercore/blockprocessor"
	"ledgercore/ledger"
	"ledgercore/log"
	"ledgercore/process"
	"ledgercore/solicitor"
	"ledgercore/unchecked"
	"ledgercore/work"
)

// Config is the closed set of tunables a running node needs. cmd/ledgernode's
// TOML keys and flags set the BlockProcessor fields and the three logging
// toggles; the remaining fields keep their DefaultConfig values there.
type Config struct {
	BlockProcessor blockprocessor.Config

	BandwidthLimit uint64

	ConfirmReqHashesMax  int
	MaxConfirmReqBatches int
	MaxBlockBroadcasts   int

	WorkThreshold uint64

	TimingLogging         bool
	LedgerLogging         bool
	LedgerDuplicateLogging bool
}

// DefaultConfig mirrors the teacher's pattern of a package-level default
// configuration struct literal (cmd/berith's config defaults).
var DefaultConfig = Config{
	BlockProcessor:       blockprocessor.DefaultConfig,
	BandwidthLimit:       1 << 20,
	ConfirmReqHashesMax:  255,
	MaxConfirmReqBatches: 20,
	MaxBlockBroadcasts:   30,
	WorkThreshold:        0xffffffc000000000,
}

// Node owns every ingestion subsystem for one running instance.
type Node struct {
	cfg Config

	Store     *ledger.Store
	Ledger    *ledger.Ledger
	Processor *blockprocessor.Processor
	Work      *work.Manager
	Solicitor *solicitor.Solicitor
	Bandwidth *bandwidth.Limiter

	logger log.Logger
}

// New assembles a Node from cfg. network and elections may be nil for a
// node that only validates and stores blocks without gossiping or
// electing (e.g. an offline verifier or a test harness).
func New(cfg Config, epoch *ledger.EpochRegistry, network blockprocessor.Network, elections blockprocessor.ActiveElections, gapCache blockprocessor.GapCache, stats blockprocessor.Stats, generator work.Generator, solicitNetwork solicitor.Network) *Node {
	store := ledger.NewStore(4 * 1024 * 1024)
	led := ledger.New(store, epoch, cfg.WorkThreshold)

	processor := blockprocessor.New(cfg.BlockProcessor, storeAdapter{store}, ledgerAdapter{led}, network, elections, gapCache, stats)
	// block_processor_verification_size names a batch size in the
	// original protocol; here it sizes the verifier's worker pool
	// instead (see sigverify's doc comment), so an operator copying the
	// original's large batch-size tuning in doesn't accidentally spawn
	// hundreds of goroutines.
	verifyWorkers := cfg.BlockProcessor.VerificationSize
	if verifyWorkers <= 0 || verifyWorkers > 32 {
		verifyWorkers = 4
	}
	processor.UseVerifier(verifyWorkers)

	workManager := work.NewManager(generator)

	var sol *solicitor.Solicitor
	if solicitNetwork != nil {
		sol = solicitor.New(solicitNetwork, cfg.ConfirmReqHashesMax, cfg.MaxConfirmReqBatches, cfg.MaxBlockBroadcasts)
	}

	return &Node{
		cfg:       cfg,
		Store:     store,
		Ledger:    led,
		Processor: processor,
		Work:      workManager,
		Solicitor: sol,
		Bandwidth: bandwidth.New(cfg.BandwidthLimit),
		logger:    log.Root,
	}
}

// Start launches the block processor's batching loop.
func (n *Node) Start() {
	go n.Processor.Run()
	if n.cfg.TimingLogging {
		n.logger.Info("node started", "batch_max_time", n.cfg.BlockProcessor.BatchMaxTime)
	}
}

// Stop stops the block processor and cancels any outstanding work jobs.
func (n *Node) Stop() {
	n.Processor.Stop()
	n.Work.Stop()
}

// storeAdapter narrows *ledger.Store to blockprocessor.Store, converting
// the concrete *ledger.Txn Begin returns into the blockprocessor.Txn
// interface. This adapter lives at the wiring boundary on purpose: the
// ledger package exposes a concrete transaction type for its own
// richer internal use (Rollback, AccountInfo, ...), while blockprocessor
// only needs the narrow slice used during ingestion.
type storeAdapter struct{ s *ledger.Store }

func (a storeAdapter) Begin(write bool) blockprocessor.Txn { return a.s.Begin(write) }

// ledgerAdapter narrows *ledger.Ledger to blockprocessor.Ledger, unwrapping
// the blockprocessor.Txn interface back to *ledger.Txn at each call so the
// concrete ledger package never has to know about blockprocessor's types.
type ledgerAdapter struct{ l *ledger.Ledger }

func (a ledgerAdapter) Process(txn blockprocessor.Txn, blk block.Block, verified unchecked.Verification) process.Result {
	return a.l.Process(txn.(*ledger.Txn), blk, verified)
}

func (a ledgerAdapter) BlockSource(blk block.Block) block.Hash {
	return a.l.BlockSource(blk)
}

func (a ledgerAdapter) Rollback(txn blockprocessor.Txn, hash block.Hash) []block.Hash {
	return a.l.Rollback(txn.(*ledger.Txn), hash)
}

func (a ledgerAdapter) Successor(txn blockprocessor.Txn, root block.Root) (block.Hash, bool) {
	return a.l.Successor(txn.(*ledger.Txn), root)
}

func (a ledgerAdapter) IsEpochLink(link block.Hash) bool { return a.l.IsEpochLink(link) }

func (a ledgerAdapter) Signer() block.Account { return a.l.Signer() }
