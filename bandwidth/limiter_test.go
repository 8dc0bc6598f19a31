package bandwidth

import (
	"testing"

	"ledgercore/mclock"
)

func TestShouldDropZeroLimitNeverDrops(t *testing.T) {
	l := New(0)
	if l.ShouldDrop(1 << 30) {
		t.Fatalf("limit 0 must never drop")
	}
}

func TestShouldDropOversizedMessage(t *testing.T) {
	clock := &mclock.Simulated{}
	l := NewWithClock(1000, clock) // per-period cap = 1000/20 = 50 bytes
	if !l.ShouldDrop(51) {
		t.Fatalf("a message above limit/bufferSize must be dropped")
	}
	if l.ShouldDrop(50) {
		t.Fatalf("a message at exactly limit/bufferSize must not be dropped")
	}
}

func TestShouldDropAtTrendedCeiling(t *testing.T) {
	clock := &mclock.Simulated{}
	l := NewWithClock(100, clock)
	// Push the trended rate up to the ceiling directly.
	l.trended = 100
	if !l.ShouldDrop(1) {
		t.Fatalf("any message once trended+size exceeds limit must be dropped")
	}
}

func TestRateTrendsOverPeriods(t *testing.T) {
	clock := &mclock.Simulated{}
	l := NewWithClock(1_000_000, clock)

	for i := 0; i < 20; i++ {
		l.ShouldDrop(10)
		clock.Run(period)
	}
	if l.Rate() == 0 {
		t.Fatalf("Rate() should reflect accumulated samples, got 0")
	}
}

func TestRateDecaysAfterIdlePeriods(t *testing.T) {
	clock := &mclock.Simulated{}
	l := NewWithClock(1_000_000, clock)

	for i := 0; i < 20; i++ {
		l.ShouldDrop(1000)
		clock.Run(period)
	}
	busyRate := l.Rate()

	for i := 0; i < 20; i++ {
		l.ShouldDrop(0)
		clock.Run(period)
	}
	idleRate := l.Rate()

	if idleRate >= busyRate {
		t.Fatalf("idle rate %d should have decayed below busy rate %d", idleRate, busyRate)
	}
}
