package block

import "math/big"

// BalanceFromBig converts a non-negative big.Int into a 128-bit big-endian
// Balance, truncating silently if it somehow doesn't fit (callers are
// expected to keep amounts within range; this is a test/construction
// convenience, not a consensus-critical path).
func BalanceFromBig(v *big.Int) Balance {
	var b Balance
	bytes := v.Bytes()
	if len(bytes) > len(b) {
		bytes = bytes[len(bytes)-len(b):]
	}
	copy(b[len(b)-len(bytes):], bytes)
	return b
}

// Big converts a Balance to a big.Int.
func (b Balance) Big() *big.Int {
	return new(big.Int).SetBytes(b[:])
}

// Cmp compares two balances numerically.
func (b Balance) Cmp(other Balance) int {
	return b.Big().Cmp(other.Big())
}

// Add returns a + b as a Balance.
func (b Balance) Add(other Balance) Balance {
	return BalanceFromBig(new(big.Int).Add(b.Big(), other.Big()))
}

// Sub returns a - b as a Balance. Callers must ensure a >= b; an
// underflow wraps via big.Int's sign and is caught by Cmp checks upstream
// (the ledger rejects negative spends before calling Sub).
func (b Balance) Sub(other Balance) Balance {
	return BalanceFromBig(new(big.Int).Sub(b.Big(), other.Big()))
}
