package refactor

import (
	"sync"

	"refinery/internal/logging"
)

// Tracker accumulates spend against a fixed cap. Spend is charged for
// every deliberator attempt, whether or not the proposal is applied;
// the cap is consulted before starting a new file, never mid-file, so
// one in-flight file may push spend past the cap.
type Tracker struct {
	mu    sync.Mutex
	cap   float64
	spent float64
}

// NewTracker creates a tracker. A cap of zero or less means unlimited.
func NewTracker(cap float64) *Tracker {
	return &Tracker{cap: cap}
}

// Charge adds amount to the running spend and returns the new total.
func (t *Tracker) Charge(amount float64) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.spent += amount
	if t.cap > 0 && t.spent >= t.cap {
		logging.Budget("Budget exhausted: spent %.4f of cap %.4f", t.spent, t.cap)
	}
	return t.spent
}

// Spent returns the cumulative spend.
func (t *Tracker) Spent() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.spent
}

// Cap returns the fixed cap.
func (t *Tracker) Cap() float64 {
	return t.cap
}

// Exhausted reports whether spend has reached the cap.
func (t *Tracker) Exhausted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cap > 0 && t.spent >= t.cap
}
