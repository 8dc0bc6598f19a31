// Package solicitor implements per-election confirmation-request batching
// and representative-directed broadcasting, grounded on the upstream node's
// node/confirmation_solicitor.{hpp,cpp}.
package solicitor

import (
	"errors"
	"sync"

	"ledgercore/block"
	"ledgercore/repweight"
)

// Channel is the directed send target for a representative: a single
// network connection confirm-requests and publish messages go out on.
type Channel interface {
	Send(message interface{})
}

// Representative is a peer to which voting weight has been delegated,
// reachable over Channel.
type Representative struct {
	Account block.Account
	Channel Channel
}

// Election is the minimal view of an active election the solicitor needs:
// its current winning block and the set of accounts that have already
// voted in it (so solicitation doesn't re-ask them).
type Election interface {
	Winner() block.Block
	HasVoted(account block.Account) bool
}

// Network is the subset of the network collaborator the solicitor drives
// directly: flooding a message to a random peer subset.
type Network interface {
	FloodMessage(message interface{}, includeLocal bool, fanoutFraction float32)
}

// PublishMessage wraps a winning block for network transmission.
type PublishMessage struct{ Block block.Block }

// ConfirmReqMessage wraps a batch of (hash, root) pairs representatives
// should vote on.
type ConfirmReqMessage struct {
	Roots []RootHash
}

// RootHash is a (block hash, root) pair as solicited in a confirm-req.
type RootHash struct {
	Hash block.Hash
	Root block.Root
}

const (
	maxRepresentatives = 30
)

type state int

const (
	stateIdle state = iota
	statePrepared
	stateFlushed
)

// Solicitor cycles idle -> prepared -> idle: Prepare moves it to prepared
// and Flush returns it straight to idle. stateFlushed is defined but never
// entered.
type Solicitor struct {
	mu sync.Mutex

	network               Network
	confirmReqHashesMax   int
	maxConfirmReqBatches  int
	maxBlockBroadcasts    int

	state           state
	representatives []Representative
	rebroadcasted   int
	requests        map[Channel][]RootHash
}

// New constructs a Solicitor. confirmReqHashesMax is the wire limit on
// hashes per confirm-req message. maxConfirmReqBatches and
// maxBlockBroadcasts should be the production values (20/30) or the test
// network values (1/4) per spec §4.3.
func New(network Network, confirmReqHashesMax, maxConfirmReqBatches, maxBlockBroadcasts int) *Solicitor {
	return &Solicitor{
		network:              network,
		confirmReqHashesMax:  confirmReqHashesMax,
		maxConfirmReqBatches: maxConfirmReqBatches,
		maxBlockBroadcasts:   maxBlockBroadcasts,
		state:                stateIdle,
	}
}

// RepresentativesFromWeights orders weights heaviest-first via repweight
// and pairs each account with its outbound channel, dropping any
// representative this node has no open channel to. The result is ready
// to pass to Prepare, which truncates it to maxRepresentatives itself.
func RepresentativesFromWeights(weights *repweight.Set, channels map[block.Account]Channel) []Representative {
	ordered := weights.Ordered()
	out := make([]Representative, 0, len(ordered))
	for _, account := range ordered {
		ch, ok := channels[account]
		if !ok {
			continue
		}
		out = append(out, Representative{Account: account, Channel: ch})
	}
	return out
}

var errNotIdle = errors.New("solicitor: prepare called while not idle")
var errNotPrepared = errors.New("solicitor: broadcast/add called while not prepared")

// Prepare captures the representative list for this solicitation cycle
// (only the first 30 are ever used) and transitions idle -> prepared.
func (s *Solicitor) Prepare(representatives []Representative) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateIdle {
		return errNotIdle
	}
	if len(representatives) > maxRepresentatives {
		representatives = representatives[:maxRepresentatives]
	}
	s.representatives = representatives
	s.requests = make(map[Channel][]RootHash)
	s.rebroadcasted = 0
	s.state = statePrepared
	return nil
}

// Broadcast directly sends the election's winning block to representatives
// that haven't voted yet (up to maxRepresentatives), then floods it to a
// random 50% of peers for propagation. It returns an error once
// maxBlockBroadcasts winners have been broadcast this cycle.
func (s *Solicitor) Broadcast(election Election) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != statePrepared {
		return errNotPrepared
	}
	if s.rebroadcasted >= s.maxBlockBroadcasts {
		return errTooManyBroadcasts
	}
	s.rebroadcasted++

	msg := PublishMessage{Block: election.Winner()}
	count := 0
	for _, rep := range s.representatives {
		if count >= maxRepresentatives {
			break
		}
		if election.HasVoted(rep.Account) {
			continue
		}
		rep.Channel.Send(msg)
		count++
	}
	s.network.FloodMessage(msg, true, 0.5)
	return nil
}

var errTooManyBroadcasts = errors.New("solicitor: max_block_broadcasts reached")

// Add appends the election's winner to the pending confirm-req queue of
// every representative that hasn't voted yet (up to maxRepresentatives),
// capped at maxConfirmReqBatches*confirmReqHashesMax entries per channel.
// It returns an error iff no representative was addable.
func (s *Solicitor) Add(election Election) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != statePrepared {
		return errNotPrepared
	}

	maxPerChannel := s.maxConfirmReqBatches * s.confirmReqHashesMax
	winner := election.Winner()
	entry := RootHash{Hash: winner.Hash(), Root: winner.Root()}

	count := 0
	for _, rep := range s.representatives {
		if count >= maxRepresentatives {
			break
		}
		if election.HasVoted(rep.Account) {
			continue
		}
		queue := s.requests[rep.Channel]
		if len(queue) < maxPerChannel {
			s.requests[rep.Channel] = append(queue, entry)
			count++
		}
	}
	if count == 0 {
		return errNoRepresentativeAddable
	}
	return nil
}

var errNoRepresentativeAddable = errors.New("solicitor: no representative addable")

// Flush sends every channel's queued confirm-req batches, splitting each
// channel's pending (hash, root) pairs into groups of exactly
// confirmReqHashesMax, and returns to idle.
func (s *Solicitor) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for channel, pairs := range s.requests {
		for start := 0; start < len(pairs); start += s.confirmReqHashesMax {
			end := start + s.confirmReqHashesMax
			if end > len(pairs) {
				end = len(pairs)
			}
			batch := make([]RootHash, end-start)
			copy(batch, pairs[start:end])
			channel.Send(ConfirmReqMessage{Roots: batch})
		}
	}
	s.requests = nil
	s.representatives = nil
	s.state = stateIdle
}
