// Package unchecked holds the pending-dependency bookkeeping types: a block
// that cannot yet be applied because its predecessor or cross-chain source
// hasn't arrived is kept here, keyed by the hash it's waiting on.
package unchecked

import (
	"time"

	"ledgercore/block"
)

// Verification is the tri-state signature-verification status of a pending
// block: unknown blocks still need batch verification, valid/valid_epoch
// blocks have already passed it.
type Verification int

const (
	VerificationUnknown Verification = iota
	VerificationValid
	VerificationValidEpoch
)

func (v Verification) String() string {
	switch v {
	case VerificationValid:
		return "valid"
	case VerificationValidEpoch:
		return "valid_epoch"
	default:
		return "unknown"
	}
}

// Info pairs a pending block with the context the processor needs to
// re-admit or log it: an origin hint (may be zero), an ingestion timestamp,
// its verification status, and a confirmed hint carried from bootstrap.
type Info struct {
	Block     block.Block
	Account   block.Account
	Modified  int64 // seconds since epoch
	Verified  Verification
	Confirmed bool
}

// NewInfo builds an Info stamped with the current time.
func NewInfo(b block.Block, account block.Account, verified Verification) Info {
	return Info{
		Block:    b,
		Account:  account,
		Modified: time.Now().Unix(),
		Verified: verified,
	}
}

// Key identifies an unchecked-store entry: the hash of the dependency being
// awaited, paired with the hash of the block waiting on it. The same block
// may be stored under two different Keys — once for its previous-gap and
// once for its source-gap — so Key, not the block hash alone, is the
// store's primary key.
type Key struct {
	Dependency block.Hash
	BlockHash  block.Hash
}
