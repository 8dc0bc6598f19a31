package block

import "encoding/binary"

// ValidateWork reports whether work is a valid proof-of-work solution for
// root at the given difficulty threshold: Blake2b(work-nonce || root),
// read as a little-endian uint64, must be greater than or equal to
// threshold. This is the same construction Nano-family ledgers use for
// work_validate_entry, grounded on original_source/nano/lib/work.cpp.
func ValidateWork(root Root, work uint64, threshold uint64) bool {
	return WorkValue(root, work) >= threshold
}

// WorkValue computes the difficulty value a work solution achieves against
// root, for logging and for comparing candidate solutions against a
// minimum threshold.
func WorkValue(root Root, work uint64) uint64 {
	var nonce [8]byte
	binary.LittleEndian.PutUint64(nonce[:], work)
	digest := HashBlake2b(nonce[:], root[:])
	return binary.LittleEndian.Uint64(digest[:8])
}
