package ledger

import (
	lru "github.com/hashicorp/golang-lru"

	"ledgercore/block"
)

// epochCacheSize bounds the recognized-epoch-link LRU, mirroring the
// teacher's inmemorySnapshots/inmemorySigners bounded-LRU constants in
// consensus/bsrr/berith.go.
const epochCacheSize = 128

// EpochRegistry recognizes the sentinel link values a state block's Link
// field carries to signal an epoch upgrade rather than an ordinary send
// or receive, and the authority account permitted to sign one. Lookups
// are cached in a bounded LRU the same way the teacher's consensus engine
// caches recent signer-snapshot lookups rather than walking state on
// every check.
type EpochRegistry struct {
	signer  block.Account
	links   map[block.Hash]struct{}
	cache   *lru.Cache
}

// NewEpochRegistry builds a registry recognizing the given epoch-link
// sentinels, all attributable to signer.
func NewEpochRegistry(signer block.Account, links []block.Hash) *EpochRegistry {
	cache, err := lru.New(epochCacheSize)
	if err != nil {
		// lru.New only errors on a non-positive size, and epochCacheSize
		// is a positive constant.
		panic(err)
	}
	set := make(map[block.Hash]struct{}, len(links))
	for _, l := range links {
		set[l] = struct{}{}
	}
	return &EpochRegistry{signer: signer, links: set, cache: cache}
}

// IsEpochLink reports whether link is a recognized epoch-upgrade sentinel.
func (r *EpochRegistry) IsEpochLink(link block.Hash) bool {
	if v, ok := r.cache.Get(link); ok {
		return v.(bool)
	}
	_, is := r.links[link]
	r.cache.Add(link, is)
	return is
}

// Signer returns the account whose signature authorizes an epoch upgrade.
func (r *EpochRegistry) Signer() block.Account { return r.signer }
