// Package blockprocessor is the ingestion pipeline's central component: a
// single-writer queue that accepts newly arrived and locally forced
// blocks, batches them behind one ledger write transaction, resolves
// previously-gapped dependents, and reports what happened to whichever
// collaborators care.
//
// Shaped on the teacher's miner/worker.go: a mutex/cond-guarded queue plus
// a second slice for the "force" path, a batching loop that drains up to
// Config.BatchSize blocks per batch, and a small set of narrow collaborator
// interfaces rather than one god object. Config.BatchMaxTime is carried in
// the configuration but the batch loop does not read it: batches are
// bounded by size only, not by elapsed time.
package blockprocessor

import (
	"ledgercore/block"
	"ledgercore/process"
	"ledgercore/unchecked"
)

// Ledger is the subset of ledger.Ledger the processor depends on,
// narrowed to an interface so tests can substitute a fake. IsEpochLink and
// Signer additionally satisfy sigverify.EpochRecognizer, so a Ledger value
// can be passed straight to sigverify.New without an adapter.
type Ledger interface {
	Process(txn Txn, blk block.Block, verified unchecked.Verification) process.Result
	BlockSource(blk block.Block) block.Hash
	Rollback(txn Txn, hash block.Hash) []block.Hash
	Successor(txn Txn, root block.Root) (block.Hash, bool)
	IsEpochLink(link block.Hash) bool
	Signer() block.Account
}

// BootstrapInitiator is asked to lazily re-fetch a block the processor
// could not apply because of a bad signature (the block in hand may be
// corrupt or spoofed). Dependency gaps are not sent here: they go to the
// unchecked backlog and the GapCache.
type BootstrapInitiator interface {
	LazyRequeue(hash, previous block.Hash, confirmed bool)
}

// Txn is the subset of ledger.Txn the processor and its collaborators
// exchange; kept as an interface boundary so the processor package does
// not import ledger's concrete transaction type directly.
type Txn interface {
	BlockExists(hash block.Hash) bool
	UncheckedPut(key unchecked.Key, info unchecked.Info)
	UncheckedGet(dependency block.Hash) []unchecked.Info
	UncheckedDelDependency(dependency block.Hash) []unchecked.Info
	UncheckedCount() int
	End()
}

// Store begins write transactions against the ledger.
type Store interface {
	Begin(write bool) Txn
}

// Network broadcasts a freshly processed block to peers, unless
// republishing has been disabled by configuration.
type Network interface {
	PublishBlock(blk block.Block)
}

// ActiveElections is notified of blocks worth starting or continuing an
// election for — ordinarily any freshly-Progress'd, non-bootstrap block —
// and of blocks this process just rolled back so it can drop whatever
// votes/election state it was holding for them. Restart is used for the
// block a forced replacement displaced directly (spec §4.5 "force",
// §8 scenario 5): its election continues under the new winner rather than
// being dropped outright. Erase is used for every descendant the rollback
// also undid, which have no replacement and should simply be forgotten.
type ActiveElections interface {
	BlockConfirmed(blk block.Block, account block.Account)
	Erase(hash block.Hash)
	Restart(hash block.Hash, replacement block.Block)
}

// GapCache tracks blocks recently rejected for a missing dependency, so
// the processor knows when to ask the bootstrap layer to go fetch it
// instead of silently leaving it in the unchecked backlog forever.
type GapCache interface {
	Add(dependency block.Hash)
}

// Stats counts processing outcomes for observability, grounded on the
// teacher's metrics.NewRegisteredCounter convention generalized to a
// narrow interface here (concrete implementations can wire an actual
// metrics registry; the processor only needs to increment a named
// counter).
type Stats interface {
	Inc(name string, result process.Code)
}
