package quota

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestReserveConsumesUnits(t *testing.T) {
	t.Parallel()

	l := NewLedger(10000, nil, 0, nil)
	res, err := l.Reserve(OpSearch, 3)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if res.Units != 300 {
		t.Fatalf("units = %d, want 300", res.Units)
	}
	if res.ID == "" {
		t.Fatalf("reservation id is empty")
	}
	if got := l.Consumed(); got != 300 {
		t.Fatalf("Consumed() = %d, want 300", got)
	}
	if got := l.Remaining(); got != 9700 {
		t.Fatalf("Remaining() = %d, want 9700", got)
	}
}

func TestReserveDenialLeavesLedgerUntouched(t *testing.T) {
	t.Parallel()

	l := NewLedger(150, nil, 0, nil)
	if _, err := l.Reserve(OpSearch, 1); err != nil {
		t.Fatalf("first Reserve: %v", err)
	}

	_, err := l.Reserve(OpSearch, 1)
	var exceeded *ExceededError
	if !errors.As(err, &exceeded) {
		t.Fatalf("error = %v, want *ExceededError", err)
	}
	if exceeded.Op != OpSearch || exceeded.Requested != 100 || exceeded.Remaining != 50 {
		t.Fatalf("exceeded = %+v, want {search 100 50}", exceeded)
	}
	if got := l.Consumed(); got != 100 {
		t.Fatalf("Consumed() after denial = %d, want 100", got)
	}

	// Cheaper operations still fit in what is left.
	if _, err := l.Reserve(OpDetails, 50); err != nil {
		t.Fatalf("Reserve details: %v", err)
	}
	if got := l.Remaining(); got != 0 {
		t.Fatalf("Remaining() = %d, want 0", got)
	}
}

func TestReserveExactFit(t *testing.T) {
	t.Parallel()

	l := NewLedger(100, nil, 0, nil)
	if _, err := l.Reserve(OpSearch, 1); err != nil {
		t.Fatalf("exact-fit Reserve: %v", err)
	}
	if _, err := l.Reserve(OpDetails, 1); err == nil {
		t.Fatalf("Reserve on empty budget succeeded")
	}
}

func TestReserveRejectsUnknownOperation(t *testing.T) {
	t.Parallel()

	l := NewLedger(100, nil, 0, nil)
	if _, err := l.Reserve(Operation("playlists"), 1); err == nil {
		t.Fatalf("Reserve of unknown operation succeeded")
	}
	if _, err := l.Reserve(OpSearch, 0); err == nil {
		t.Fatalf("Reserve of zero calls succeeded")
	}
}

func TestConcurrentReservesNeverOverspend(t *testing.T) {
	t.Parallel()

	const budget = 1000
	l := NewLedger(budget, nil, 0, nil)

	var granted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if _, err := l.Reserve(OpDetails, 1); err == nil {
					granted.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	if granted.Load() != budget {
		t.Fatalf("granted = %d, want %d", granted.Load(), budget)
	}
	if got := l.Consumed(); got != budget {
		t.Fatalf("Consumed() = %d, want %d", got, budget)
	}
}

func TestPeriodRolloverResetsConsumption(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	l := NewLedger(200, nil, 24*time.Hour, clock.now)

	if _, err := l.Reserve(OpSearch, 2); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if _, err := l.Reserve(OpSearch, 1); err == nil {
		t.Fatalf("Reserve past budget succeeded")
	}

	clock.advance(25 * time.Hour)
	if got := l.Remaining(); got != 200 {
		t.Fatalf("Remaining() after rollover = %d, want 200", got)
	}
	if _, err := l.Reserve(OpSearch, 2); err != nil {
		t.Fatalf("Reserve in new period: %v", err)
	}

	// Several idle periods roll forward in one step.
	clock.advance(73 * time.Hour)
	snap := l.Snapshot()
	if snap.Consumed != 0 || snap.Remaining != 200 {
		t.Fatalf("snapshot after idle periods = %+v", snap)
	}
	if !snap.ResetAt.After(clock.now()) {
		t.Fatalf("ResetAt %v not after now %v", snap.ResetAt, clock.now())
	}
}

func TestCanAfford(t *testing.T) {
	t.Parallel()

	l := NewLedger(100, nil, 0, nil)
	if !l.CanAfford(OpSearch) {
		t.Fatalf("CanAfford(search) = false on fresh ledger")
	}
	if _, err := l.Reserve(OpDetails, 1); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if l.CanAfford(OpSearch) {
		t.Fatalf("CanAfford(search) = true with 99 units left")
	}
	if !l.CanAfford(OpComments) {
		t.Fatalf("CanAfford(comments) = false with 99 units left")
	}
}
