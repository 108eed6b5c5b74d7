package quota

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Operation is a billable platform call kind.
type Operation string

const (
	OpSearch   Operation = "search"
	OpDetails  Operation = "details"
	OpComments Operation = "comments"
)

// Costs maps operations to the units one call of each consumes.
type Costs map[Operation]int

// DefaultCosts mirrors the platform's published tariff.
func DefaultCosts() Costs {
	return Costs{
		OpSearch:   100,
		OpDetails:  1,
		OpComments: 1,
	}
}

// ExceededError is returned when a reservation would push consumption past
// the period budget. The ledger stays unchanged in that case.
type ExceededError struct {
	Op        Operation
	Requested int
	Remaining int
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("quota exceeded: %s needs %d units, %d remaining", e.Op, e.Requested, e.Remaining)
}

// Reservation records an approved spend. Reservations are never released:
// a call that fails downstream has still consumed its units.
type Reservation struct {
	ID    string
	Op    Operation
	Calls int
	Units int
	At    time.Time
}

// Snapshot is a point-in-time view of the ledger for run metadata.
type Snapshot struct {
	Budget    int       `json:"budget"`
	Consumed  int       `json:"consumed"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// Ledger serializes quota accounting for one platform key. Consumption never
// exceeds the budget and resets only when a new period begins.
type Ledger struct {
	mu       sync.Mutex
	budget   int
	costs    Costs
	period   time.Duration
	consumed int
	resetAt  time.Time
	now      func() time.Time
}

// NewLedger builds a ledger over the given budget. Nil costs fall back to
// DefaultCosts, a non-positive period to 24h, a nil clock to time.Now.
func NewLedger(budget int, costs Costs, period time.Duration, now func() time.Time) *Ledger {
	if costs == nil {
		costs = DefaultCosts()
	}
	if period <= 0 {
		period = 24 * time.Hour
	}
	if now == nil {
		now = time.Now
	}
	owned := make(Costs, len(costs))
	for op, c := range costs {
		owned[op] = c
	}
	return &Ledger{
		budget:  budget,
		costs:   owned,
		period:  period,
		resetAt: now().Add(period),
		now:     now,
	}
}

// Reserve atomically checks and records the spend for count calls of op.
// On denial the ledger is left untouched and the error reports what remains.
func (l *Ledger) Reserve(op Operation, calls int) (Reservation, error) {
	if calls <= 0 {
		return Reservation{}, fmt.Errorf("reserve %s: calls must be positive, got %d", op, calls)
	}
	cost, ok := l.costs[op]
	if !ok {
		return Reservation{}, fmt.Errorf("reserve: unknown operation %q", op)
	}
	units := cost * calls

	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover()
	if l.consumed+units > l.budget {
		return Reservation{}, &ExceededError{Op: op, Requested: units, Remaining: l.budget - l.consumed}
	}
	l.consumed += units
	return Reservation{
		ID:    uuid.NewString(),
		Op:    op,
		Calls: calls,
		Units: units,
		At:    l.now(),
	}, nil
}

// CanAfford reports whether one call of op would fit right now. It takes no
// reservation, so a later Reserve can still be denied.
func (l *Ledger) CanAfford(op Operation) bool {
	cost, ok := l.costs[op]
	if !ok {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover()
	return l.consumed+cost <= l.budget
}

// Consumed reports the units spent in the current period.
func (l *Ledger) Consumed() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover()
	return l.consumed
}

// Remaining reports the units still available in the current period.
func (l *Ledger) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover()
	return l.budget - l.consumed
}

// Snapshot returns the current budget state.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover()
	return Snapshot{
		Budget:    l.budget,
		Consumed:  l.consumed,
		Remaining: l.budget - l.consumed,
		ResetAt:   l.resetAt,
	}
}

// rollover resets consumption when the period boundary has passed.
// Callers must hold l.mu.
func (l *Ledger) rollover() {
	now := l.now()
	for !now.Before(l.resetAt) {
		l.consumed = 0
		l.resetAt = l.resetAt.Add(l.period)
	}
}
