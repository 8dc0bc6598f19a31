package filter

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/dchest/siphash"
)

// Digest is a 128-bit SipHash-2/4 output.
type Digest [16]byte

func (d Digest) IsZero() bool { return d == Digest{} }

// keyer holds the random SipHash key generated once at filter construction.
// The key is immutable for the filter's lifetime (spec §4.1 invariant),
// which is why it's a value, not something callers can mutate later.
type keyer struct {
	k0, k1 uint64
}

func newKeyer() keyer {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand.Read only fails if the OS entropy source is
		// broken, a condition this process cannot recover from.
		panic(err)
	}
	return keyer{
		k0: binary.LittleEndian.Uint64(buf[0:8]),
		k1: binary.LittleEndian.Uint64(buf[8:16]),
	}
}

// hash computes the keyed SipHash-2/4-128 digest of b. SipHash-2/4-128 is
// the "true" 128-bit SipHash variant (two interleaved 64-bit outputs from a
// single keyed permutation, not two independent 64-bit hashes) — the same
// construction the upstream node's CryptoPP::SipHash<2, 4, true> uses.
func (k keyer) hash(b []byte) Digest {
	hi, lo := siphash.Hash128(k.k0, k.k1, b)
	var d Digest
	binary.LittleEndian.PutUint64(d[0:8], lo)
	binary.LittleEndian.PutUint64(d[8:16], hi)
	return d
}

// index maps a digest into a slot within a table of the given size.
func (d Digest) index(size int) int {
	// Folding both 64-bit halves together before the modulo keeps all 128
	// bits of entropy in play without pulling in a big.Int for a 128 % N
	// operation.
	lo := binary.LittleEndian.Uint64(d[0:8])
	hi := binary.LittleEndian.Uint64(d[8:16])
	return int((lo ^ hi) % uint64(size))
}
