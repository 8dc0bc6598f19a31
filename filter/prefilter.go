package filter

import (
	"encoding/binary"

	"github.com/holiman/bloomfilter/v2"
)

// PreFilter is an optional coarse admission stage ahead of the directed-map
// Filter: a standard Bloom filter that can answer "definitely new" quickly
// without touching the SipHash table, useful when a caller clears entries
// frequently and wants to avoid the directed map's false-positive churn on
// a hot clear/re-apply path. It is never required for correctness — the
// directed-map Filter alone implements the spec's contract — and is off by
// default.
type PreFilter struct {
	bf *bloomfilter.Filter
}

// NewPreFilter builds a Bloom filter sized for expectedItems entries at the
// given false-positive rate.
func NewPreFilter(expectedItems uint64, falsePositiveRate float64) (*PreFilter, error) {
	bf, err := bloomfilter.NewOptimal(expectedItems, falsePositiveRate)
	if err != nil {
		return nil, err
	}
	return &PreFilter{bf: bf}, nil
}

// MightContain reports whether digest may already have been observed. A
// false result is a firm guarantee of novelty; a true result still needs
// the directed-map Filter to confirm.
func (p *PreFilter) MightContain(digest Digest) bool {
	return p.bf.Contains(digestToUint64(digest))
}

// Add records digest as observed.
func (p *PreFilter) Add(digest Digest) {
	p.bf.Add(digestToUint64(digest))
}

func digestToUint64(d Digest) uint64 {
	return binary.LittleEndian.Uint64(d[0:8]) ^ binary.LittleEndian.Uint64(d[8:16])
}
