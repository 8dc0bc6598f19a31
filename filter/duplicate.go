// Package filter implements the probabilistic duplicate filter used to
// suppress replayed network messages: a directed-map cache over a keyed
// SipHash-2/4-128 digest, grounded on the upstream node's
// secure/network_filter.{hpp,cpp}. Unlike a Bloom filter, each slot holds
// exactly one candidate digest, so a fresh message is marked duplicate only
// on a full 128-bit digest collision. A repeated message is missed
// (reported fresh) when a different input landing in the same slot
// overwrote its cell in between — a probability that shrinks as the table
// grows.
package filter

import (
	"io"
	"sync"
)

// Filter is a fixed-size, thread-safe directed-map duplicate cache.
type Filter struct {
	mu    sync.Mutex
	key   keyer
	items []Digest
}

// New constructs a Filter with size slots. size must be at least 1; the
// slot table never changes length afterward (spec §4.1 invariant).
func New(size int) *Filter {
	if size < 1 {
		size = 1
	}
	return &Filter{
		key:   newKeyer(),
		items: make([]Digest, size),
	}
}

// Apply hashes b, looks up its slot, and reports whether that slot already
// held the same digest. If it didn't, the slot is overwritten with the new
// digest (possibly evicting an unrelated candidate that happened to share
// the slot).
func (f *Filter) Apply(b []byte) (wasPresent bool, digest Digest) {
	digest = f.key.hash(b)
	idx := digest.index(len(f.items))

	f.mu.Lock()
	defer f.mu.Unlock()
	existed := f.items[idx] == digest
	if !existed {
		f.items[idx] = digest
	}
	return existed, digest
}

// ApplyReader hashes everything read from r until EOF and applies it the
// same way Apply does. It exists to serve callers that only have a stream
// to hand, not a byte range (spec §9 open question on the filter's
// diverging call shapes) — it changes nothing about the filter's state
// semantics, and returns err unmodified and leaves the filter untouched if
// the read fails partway through.
func (f *Filter) ApplyReader(r io.Reader) (wasPresent bool, digest Digest, err error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return false, Digest{}, err
	}
	wasPresent, digest = f.Apply(b)
	return wasPresent, digest, nil
}

// ClearDigest zeros the slot that currently holds digest, a no-op if some
// other digest now occupies it.
func (f *Filter) ClearDigest(digest Digest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := digest.index(len(f.items))
	if f.items[idx] == digest {
		f.items[idx] = Digest{}
	}
}

// ClearBytes is ClearDigest(hash(b)).
func (f *Filter) ClearBytes(b []byte) {
	f.ClearDigest(f.key.hash(b))
}

// Clear zeros every slot.
func (f *Filter) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		f.items[i] = Digest{}
	}
}

// Size reports the fixed slot count.
func (f *Filter) Size() int { return len(f.items) }
