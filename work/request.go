package work

import "ledgercore/block"

// Version distinguishes proof-of-work formats across protocol epochs.
type Version int

// Peer is a work-peer endpoint capable of generating proof-of-work
// remotely, as an alternative or supplement to local generation.
type Peer struct {
	Host string
	Port uint16
}

// Request describes one proof-of-work job: the root to work against, the
// required difficulty, an optional account hint (some difficulty schemes
// are account-relative), a completion callback, and the peer list to
// distribute the job across.
type Request struct {
	Version    Version
	Root       block.Root
	Difficulty uint64
	Account    *block.Account
	Callback   func(nonce uint64, ok bool)
	Peers      []Peer
}
