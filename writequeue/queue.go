// Package writequeue implements the process-wide single-writer gate the
// spec's design notes (§9) insist on: not a bare mutex, because different
// writer identities (the block processor, confirmation-height cementing,
// bootstrap) need priority ordering, and a writer must always release on
// every exit path including panics.
package writequeue

import (
	"container/heap"
	"sync"
)

// Writer identifies who is asking for the write transaction. Lower values
// are higher priority: a lower-priority holder yields to a higher-priority
// waiter at the next opportunity via the caller cooperating with
// AwaitingHigherPriority, mirroring the block processor's awaiting_write
// cooperative yield (spec §4.5, §5).
type Writer int

const (
	WriterConfirmationHeight Writer = iota
	WriterProcessBatch
	WriterBootstrap
	WriterGeneric
)

// Queue is a FIFO-within-priority semaphore of depth 1: only one Writer may
// hold it at a time, and among waiters the lowest Writer value goes next.
type Queue struct {
	mu      sync.Mutex
	held    bool
	waiters waiterHeap
	seq     uint64
}

type waiter struct {
	priority Writer
	seq      uint64
	ready    chan struct{}
}

type waiterHeap []*waiter

func (h waiterHeap) Len() int { return len(h) }
func (h waiterHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}
func (h waiterHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *waiterHeap) Push(x interface{}) { *h = append(*h, x.(*waiter)) }
func (h *waiterHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// New constructs an unheld Queue.
func New() *Queue {
	return &Queue{}
}

// Guard is a held write-token; Release must be called exactly once,
// typically via defer, to guarantee release on every exit path.
type Guard struct {
	q        *Queue
	priority Writer
	released bool
}

// AwaitingHigherPriority reports whether a waiter with strictly higher
// priority (a lower Writer value) than this Guard's holder is currently
// queued. The block processor polls this once per item inside a batch
// (spec §4.5/§5's awaiting_write) so a higher-priority writer — e.g.
// confirmation-height cementing — doesn't wait behind an entire batch
// just because the processor happened to acquire the token first.
func (g *Guard) AwaitingHigherPriority() bool {
	if g == nil || g.released {
		return false
	}
	q := g.q
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.waiters.Len() > 0 && q.waiters[0].priority < g.priority
}

// Wait blocks until the Writer acquires the token, returning a Guard the
// caller must Release.
func (q *Queue) Wait(w Writer) *Guard {
	q.mu.Lock()
	if !q.held {
		q.held = true
		q.mu.Unlock()
		return &Guard{q: q, priority: w}
	}
	wt := &waiter{priority: w, seq: q.seq, ready: make(chan struct{})}
	q.seq++
	heap.Push(&q.waiters, wt)
	q.mu.Unlock()

	<-wt.ready
	return &Guard{q: q, priority: w}
}

// Release hands the token to the next waiter (highest priority, then
// FIFO), or marks the queue free if none are waiting. Safe to call more
// than once; only the first call has effect.
func (g *Guard) Release() {
	if g == nil || g.released {
		return
	}
	g.released = true
	q := g.q
	q.mu.Lock()
	if q.waiters.Len() == 0 {
		q.held = false
		q.mu.Unlock()
		return
	}
	next := heap.Pop(&q.waiters).(*waiter)
	q.mu.Unlock()
	close(next.ready)
}
