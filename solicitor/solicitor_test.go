package solicitor

import (
	"math/big"
	"sync"
	"testing"

	"ledgercore/block"
	"ledgercore/repweight"
)

type fakeChannel struct {
	mu       sync.Mutex
	received []interface{}
}

func (c *fakeChannel) Send(message interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.received = append(c.received, message)
}

func (c *fakeChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.received)
}

type fakeNetwork struct {
	mu      sync.Mutex
	flooded []interface{}
}

func (n *fakeNetwork) FloodMessage(message interface{}, includeLocal bool, fanoutFraction float32) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.flooded = append(n.flooded, message)
}

func (n *fakeNetwork) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.flooded)
}

type fakeElection struct {
	winner block.Block
	voted  map[block.Account]bool
}

func (e *fakeElection) Winner() block.Block { return e.winner }
func (e *fakeElection) HasVoted(account block.Account) bool { return e.voted[account] }

func testWinner(seed byte) *block.StateBlock {
	var account block.Account
	account[0] = seed
	return block.NewStateBlock(account, block.Hash{}, account, block.Balance{}, block.Hash{}, block.Signature{}, 1)
}

func reps(n int) []Representative {
	out := make([]Representative, n)
	for i := 0; i < n; i++ {
		var acct block.Account
		acct[0] = byte(i + 1)
		out[i] = Representative{Account: acct, Channel: &fakeChannel{}}
	}
	return out
}

func TestPrepareRequiresIdle(t *testing.T) {
	s := New(&fakeNetwork{}, 255, 20, 30)
	if err := s.Prepare(reps(1)); err != nil {
		t.Fatalf("Prepare from idle: %v", err)
	}
	if err := s.Prepare(reps(1)); err != errNotIdle {
		t.Fatalf("Prepare while prepared: got %v, want errNotIdle", err)
	}
}

func TestBroadcastAndAddRequirePrepared(t *testing.T) {
	s := New(&fakeNetwork{}, 255, 20, 30)
	election := &fakeElection{winner: testWinner(1), voted: map[block.Account]bool{}}
	if err := s.Broadcast(election); err != errNotPrepared {
		t.Fatalf("Broadcast before Prepare: got %v, want errNotPrepared", err)
	}
	if err := s.Add(election); err != errNotPrepared {
		t.Fatalf("Add before Prepare: got %v, want errNotPrepared", err)
	}
}

func TestFlushWithNoActivityEmitsNothing(t *testing.T) {
	net := &fakeNetwork{}
	s := New(net, 255, 20, 30)
	representatives := reps(3)
	if err := s.Prepare(representatives); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	s.Flush()

	if net.count() != 0 {
		t.Fatalf("network got %d flood calls with no Add/Broadcast, want 0", net.count())
	}
	for _, r := range representatives {
		if r.Channel.(*fakeChannel).count() != 0 {
			t.Fatalf("channel got traffic with no Add/Broadcast")
		}
	}
}

func TestBroadcastSendsToNonVotersAndFloods(t *testing.T) {
	net := &fakeNetwork{}
	s := New(net, 255, 20, 30)
	representatives := reps(3)
	voted := representatives[0].Account
	election := &fakeElection{winner: testWinner(9), voted: map[block.Account]bool{voted: true}}

	if err := s.Prepare(representatives); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := s.Broadcast(election); err != nil {
		t.Fatalf("Broadcast: %v", err)
	}

	if representatives[0].Channel.(*fakeChannel).count() != 0 {
		t.Fatalf("rep that already voted should not receive a publish")
	}
	if representatives[1].Channel.(*fakeChannel).count() != 1 {
		t.Fatalf("non-voting rep should receive exactly one publish")
	}
	if representatives[2].Channel.(*fakeChannel).count() != 1 {
		t.Fatalf("non-voting rep should receive exactly one publish")
	}
	if net.count() != 1 {
		t.Fatalf("network got %d flood calls, want 1", net.count())
	}
}

func TestBroadcastCapsAtMaxBlockBroadcasts(t *testing.T) {
	net := &fakeNetwork{}
	s := New(net, 255, 20, 2)
	representatives := reps(1)
	if err := s.Prepare(representatives); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	election := &fakeElection{winner: testWinner(1), voted: map[block.Account]bool{}}
	if err := s.Broadcast(election); err != nil {
		t.Fatalf("Broadcast 1: %v", err)
	}
	if err := s.Broadcast(election); err != nil {
		t.Fatalf("Broadcast 2: %v", err)
	}
	if err := s.Broadcast(election); err != errTooManyBroadcasts {
		t.Fatalf("Broadcast 3: got %v, want errTooManyBroadcasts", err)
	}
}

func TestAddQueuesAndFlushBatchesByHashMax(t *testing.T) {
	net := &fakeNetwork{}
	s := New(net, 2, 20, 30) // confirmReqHashesMax=2, so 3 requests -> batches of 2 then 1
	representatives := reps(1)
	channel := representatives[0].Channel.(*fakeChannel)
	if err := s.Prepare(representatives); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	for i := byte(1); i <= 3; i++ {
		election := &fakeElection{winner: testWinner(i), voted: map[block.Account]bool{}}
		if err := s.Add(election); err != nil {
			t.Fatalf("Add %d: %v", i, err)
		}
	}
	s.Flush()

	if channel.count() != 2 {
		t.Fatalf("channel got %d confirm-req messages, want 2 batches (2 then 1)", channel.count())
	}
	first := channel.received[0].(ConfirmReqMessage)
	second := channel.received[1].(ConfirmReqMessage)
	if len(first.Roots) != 2 || len(second.Roots) != 1 {
		t.Fatalf("batch sizes = (%d, %d), want (2, 1)", len(first.Roots), len(second.Roots))
	}
}

func TestAddReturnsErrorWhenNoRepresentativeAddable(t *testing.T) {
	s := New(&fakeNetwork{}, 255, 20, 30)
	representatives := reps(1)
	voted := representatives[0].Account
	if err := s.Prepare(representatives); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	election := &fakeElection{winner: testWinner(1), voted: map[block.Account]bool{voted: true}}
	if err := s.Add(election); err != errNoRepresentativeAddable {
		t.Fatalf("Add with every rep having voted: got %v, want errNoRepresentativeAddable", err)
	}
}

func TestRepresentativesFromWeightsOrdersByWeightAndDropsChannelless(t *testing.T) {
	var heavy, medium, light, noChannel block.Account
	heavy[0], medium[0], light[0], noChannel[0] = 1, 2, 3, 4

	weights := repweight.NewSet([]repweight.Entry{
		{Account: light, Weight: big.NewInt(10)},
		{Account: heavy, Weight: big.NewInt(1000)},
		{Account: noChannel, Weight: big.NewInt(5000)},
		{Account: medium, Weight: big.NewInt(100)},
	})
	channels := map[block.Account]Channel{
		heavy:  &fakeChannel{},
		medium: &fakeChannel{},
		light:  &fakeChannel{},
	}

	got := RepresentativesFromWeights(weights, channels)
	if len(got) != 3 {
		t.Fatalf("got %d representatives, want 3 (noChannel dropped)", len(got))
	}
	if got[0].Account != heavy || got[1].Account != medium || got[2].Account != light {
		t.Fatalf("got order %v, want heaviest-first (heavy, medium, light)", got)
	}
}

func TestFlushReturnsToIdle(t *testing.T) {
	s := New(&fakeNetwork{}, 255, 20, 30)
	if err := s.Prepare(reps(1)); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	s.Flush()
	if err := s.Prepare(reps(1)); err != nil {
		t.Fatalf("Prepare after Flush should succeed from idle: %v", err)
	}
}
