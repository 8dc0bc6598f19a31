package blockarrival

import (
	"testing"

	"ledgercore/block"
)

func hashOf(b byte) block.Hash {
	var h block.Hash
	h[0] = b
	return h
}

func TestAddAndRecent(t *testing.T) {
	tr := New(10)
	h := hashOf(1)
	if tr.Recent(h) {
		t.Fatalf("hash reported recent before Add")
	}
	tr.Add(h)
	if !tr.Recent(h) {
		t.Fatalf("hash not reported recent after Add")
	}
}

func TestEvictsOldestPastCapacity(t *testing.T) {
	tr := New(3)
	hashes := []block.Hash{hashOf(1), hashOf(2), hashOf(3), hashOf(4)}
	for _, h := range hashes {
		tr.Add(h)
	}
	if tr.Size() != 3 {
		t.Fatalf("Size() = %d, want 3", tr.Size())
	}
	if tr.Recent(hashes[0]) {
		t.Fatalf("oldest hash should have been evicted")
	}
	for _, h := range hashes[1:] {
		if !tr.Recent(h) {
			t.Fatalf("hash %v should still be tracked", h)
		}
	}
}

func TestAddDuplicateIsNoop(t *testing.T) {
	tr := New(2)
	h := hashOf(5)
	tr.Add(h)
	tr.Add(h)
	if tr.Size() != 1 {
		t.Fatalf("Size() = %d after duplicate Add, want 1", tr.Size())
	}
}

func TestCapacityOneEvictsImmediately(t *testing.T) {
	tr := New(1)
	tr.Add(hashOf(1))
	tr.Add(hashOf(2))
	if tr.Size() != 1 {
		t.Fatalf("Size() = %d, want 1", tr.Size())
	}
	if tr.Recent(hashOf(1)) {
		t.Fatalf("first hash should have been evicted")
	}
	if !tr.Recent(hashOf(2)) {
		t.Fatalf("second hash should be tracked")
	}
}
