package block

import (
	"crypto/ed25519"

	"golang.org/x/crypto/blake2b"
)

// Hash is a 256-bit content digest.
type Hash [32]byte

func (h Hash) IsZero() bool { return h == Hash{} }

func (h Hash) String() string { return hexString(h[:]) }

// Account is a 256-bit public key identifying an account chain.
type Account [32]byte

func (a Account) IsZero() bool { return a == Account{} }

func (a Account) String() string { return hexString(a[:]) }

// Signature is a detached ed25519 signature over a block's hash.
type Signature [64]byte

// Root identifies where a block attaches to its account chain: the account
// itself for the chain's first block, or the previous block's hash for a
// block extending an existing chain.
type Root = Hash

// QualifiedRoot combines an account with its previous block hash, used to
// key elections so that forks of the same chain are distinguishable.
type QualifiedRoot struct {
	Root     Root
	Previous Hash
}

func hexString(b []byte) string {
	const hextable = "0123456789ABCDEF"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hextable[c>>4]
		out[i*2+1] = hextable[c&0x0f]
	}
	return string(out)
}

// HashBlake2b hashes the given byte slices together using Blake2b-256, the
// digest Nano-family ledgers use for block hashes.
func HashBlake2b(parts ...[]byte) Hash {
	h, err := blake2b.New256(nil)
	if err != nil {
		// blake2b.New256 only errors on a bad key, and we never pass one.
		panic(err)
	}
	for _, p := range parts {
		h.Write(p)
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// VerifySignature reports whether sig is a valid ed25519 signature over hash
// under account's public key.
func VerifySignature(account Account, hash Hash, sig Signature) bool {
	return ed25519.Verify(account[:], hash[:], sig[:])
}
