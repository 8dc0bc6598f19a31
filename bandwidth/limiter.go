// Package bandwidth implements a token-bucket-style egress rate limiter with
// trended smoothing, grounded on the upstream node's
// node/transport/bandwidth_limiter.{hpp,cpp}.
package bandwidth

import (
	"sync"
	"time"

	"ledgercore/mclock"
)

const (
	// period is the width of one trending sample.
	period = 50 * time.Millisecond
	// bufferSize is how many periods the trended rate smooths over —
	// bufferSize*period = 1s.
	bufferSize = 20
)

// Limiter rejects outgoing messages that would exceed a smoothed rate
// limit. A Limiter constructed with limit == 0 never drops anything.
type Limiter struct {
	mu    sync.Mutex
	clock mclock.Clock
	limit uint64

	nextTrend  mclock.AbsTime
	rate       uint64
	buffer     []uint64 // ring of the last bufferSize period totals
	bufferHead int
	bufferLen  int
	trended    uint64
}

// New constructs a Limiter. limit is in bytes per trended window (1s); 0
// disables limiting entirely.
func New(limit uint64) *Limiter {
	return NewWithClock(limit, mclock.System{})
}

// NewWithClock is New with an injectable clock, for deterministic tests of
// the trending behavior.
func NewWithClock(limit uint64, clock mclock.Clock) *Limiter {
	return &Limiter{
		clock:     clock,
		limit:     limit,
		nextTrend: clock.Now() + mclock.AbsTime(period),
		buffer:    make([]uint64, bufferSize),
	}
}

// ShouldDrop reports whether a message of messageSize bytes should be
// rejected to stay within the configured limit.
func (l *Limiter) ShouldDrop(messageSize uint64) bool {
	if l.limit == 0 {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	drop := false
	if messageSize > l.limit/bufferSize || l.trended+messageSize > l.limit {
		drop = true
	} else {
		l.rate += messageSize
	}

	now := l.clock.Now()
	if l.nextTrend <= now {
		// Normalize the completed period's rate by the true elapsed time
		// so a long scheduler pause doesn't masquerade as an idle period.
		elapsed := time.Duration(now - (l.nextTrend - mclock.AbsTime(period)))
		if elapsed <= 0 {
			elapsed = period
		}
		normalized := l.rate * uint64(period) / uint64(elapsed)
		l.pushSample(normalized)
		l.rate = 0
		l.nextTrend = now + mclock.AbsTime(period)
	}
	return drop
}

// pushSample evicts the oldest sample and appends normalized, recomputing
// the trended rate as the sum of the buffer.
func (l *Limiter) pushSample(normalized uint64) {
	if l.bufferLen < bufferSize {
		l.buffer[l.bufferLen] = normalized
		l.bufferLen++
	} else {
		l.buffer[l.bufferHead] = normalized
		l.bufferHead = (l.bufferHead + 1) % bufferSize
	}
	var sum uint64
	for _, v := range l.buffer[:l.bufferLen] {
		sum += v
	}
	l.trended = sum
}

// Rate reports the current trended rate (bytes observed over the last
// bufferSize periods).
func (l *Limiter) Rate() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.trended
}
