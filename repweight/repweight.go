// Package repweight orders and samples representatives by delegated voting
// weight. It is adapted from the teacher's berith/selection package (the
// Candidates/Range cumulative-weight binary search used there to pick a
// block creator by stake), repurposed here purely as a weighted ordering
// and sampling utility for confirmation solicitation — it computes no
// quorum or consensus outcome, which spec.md §1 explicitly excludes from
// this module's scope.
package repweight

import (
	"math/big"
	"math/rand"
	"sort"

	"ledgercore/block"
)

// Entry is one representative's delegated weight.
type Entry struct {
	Account block.Account
	Weight  *big.Int
}

// Set is a cumulative-weight table over a fixed collection of entries,
// built once and queried many times.
type Set struct {
	entries    []Entry
	cumulative []*big.Int // cumulative[i] = sum of weights[0..i]
	total      *big.Int
}

// NewSet builds a Set from entries. Entries with a nil or non-positive
// weight are dropped.
func NewSet(entries []Entry) *Set {
	filtered := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Weight != nil && e.Weight.Sign() > 0 {
			filtered = append(filtered, e)
		}
	}
	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].Weight.Cmp(filtered[j].Weight) > 0
	})

	cumulative := make([]*big.Int, len(filtered))
	total := big.NewInt(0)
	for i, e := range filtered {
		total = new(big.Int).Add(total, e.Weight)
		cumulative[i] = new(big.Int).Set(total)
	}
	return &Set{entries: filtered, cumulative: cumulative, total: total}
}

// Ordered returns every entry's account, heaviest weight first — this is
// what the solicitor uses to pick "the first 30 representatives" (spec
// §4.3) deterministically rather than arbitrarily.
func (s *Set) Ordered() []block.Account {
	out := make([]block.Account, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Account
	}
	return out
}

// Sample draws n accounts without replacement, weighted by delegated
// voting weight, via the same cumulative-range binary search the teacher
// used for weighted block-creator selection.
func (s *Set) Sample(n int) []block.Account {
	if n > len(s.entries) {
		n = len(s.entries)
	}
	remaining := append([]Entry(nil), s.entries...)
	out := make([]block.Account, 0, n)
	for i := 0; i < n && len(remaining) > 0; i++ {
		idx, total := weightedPick(remaining)
		out = append(out, remaining[idx].Account)
		_ = total
		remaining = append(remaining[:idx], remaining[idx+1:]...)
	}
	return out
}

// weightedPick performs the cumulative-range binary search: draw a random
// point in [0, total), then binary-search the cumulative-weight table for
// the entry whose range contains it.
func weightedPick(entries []Entry) (int, *big.Int) {
	total := big.NewInt(0)
	cumulative := make([]*big.Int, len(entries))
	for i, e := range entries {
		total = new(big.Int).Add(total, e.Weight)
		cumulative[i] = new(big.Int).Set(total)
	}
	if total.Sign() == 0 {
		return 0, total
	}
	point := new(big.Int).Rand(rand.New(rand.NewSource(rand.Int63())), total)
	lo, hi := 0, len(entries)-1
	for lo < hi {
		mid := (lo + hi) / 2
		if point.Cmp(cumulative[mid]) < 0 {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo, total
}

// Total reports the sum of all entries' weight.
func (s *Set) Total() *big.Int { return new(big.Int).Set(s.total) }

// Len reports the number of entries.
func (s *Set) Len() int { return len(s.entries) }
