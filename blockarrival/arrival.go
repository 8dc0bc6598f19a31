// Package blockarrival tracks hashes of blocks that arrived recently enough
// to be worth announcing locally (starting an election, flooding to
// peers) rather than silently applied as stale bootstrap catch-up.
//
// It is adapted from the teacher's miner/unconfirmed.go: that type tracks
// locally-mined blocks in a fixed-capacity ring, evicting the oldest entry
// once a depth threshold in block numbers is exceeded. This package keeps
// the same "ring plus set, evict oldest past capacity" shape but trades the
// block-number depth for an arrival-order capacity, since a DAG ledger has
// no chain height to measure distance by.
package blockarrival

import (
	"container/ring"
	"sync"

	"ledgercore/block"
)

// Tracker records recently arrived block hashes, bounded to capacity
// entries.
type Tracker struct {
	mu       sync.Mutex
	capacity int
	set      map[block.Hash]*ring.Ring
	items    *ring.Ring // nil until the first insert
}

// New constructs a Tracker holding up to capacity hashes.
func New(capacity int) *Tracker {
	if capacity < 1 {
		capacity = 1
	}
	return &Tracker{
		capacity: capacity,
		set:      make(map[block.Hash]*ring.Ring),
	}
}

// Add records hash as recently arrived, evicting the oldest entry if the
// tracker is at capacity.
func (t *Tracker) Add(hash block.Hash) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.set[hash]; exists {
		return
	}

	item := ring.New(1)
	item.Value = hash
	if t.items == nil {
		t.items = item
	} else {
		t.items.Move(-1).Link(item)
	}
	t.set[hash] = item

	for len(t.set) > t.capacity {
		oldestHash := t.items.Value.(block.Hash)
		delete(t.set, oldestHash)
		if t.items.Value == t.items.Next().Value {
			t.items = nil
		} else {
			t.items = t.items.Move(-1)
			t.items.Unlink(1)
			t.items = t.items.Move(1)
		}
	}
}

// Recent reports whether hash was recorded by Add and has not yet been
// evicted.
func (t *Tracker) Recent(hash block.Hash) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.set[hash]
	return ok
}

// Size reports how many hashes are currently tracked.
func (t *Tracker) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.set)
}
