// Package limit bounds how many backtest runs the service executes at once.
//
// A panorama run replays a decade of daily closes and a comparison request
// fans out into one run per bull-market window; without a ceiling a burst
// of requests can pin the CPU and starve the HTTP workers. The limiter
// hands out slots up front and callers release them when the run finishes.
package limit

import (
	"errors"
	"sync"
)

// ErrTooManyRuns is returned when every run slot is taken.
var ErrTooManyRuns = errors.New("limit: too many concurrent runs")

// RunLimiter caps concurrently executing backtest runs.
type RunLimiter struct {
	mu     sync.Mutex
	active int
	max    int
}

// NewRunLimiter creates a limiter allowing up to max concurrent runs.
func NewRunLimiter(max int) *RunLimiter {
	if max < 1 {
		max = 1
	}
	return &RunLimiter{max: max}
}

// Acquire claims a run slot, or returns ErrTooManyRuns when all are taken.
func (l *RunLimiter) Acquire() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.active >= l.max {
		return ErrTooManyRuns
	}
	l.active++
	return nil
}

// Release frees a slot claimed by Acquire.
func (l *RunLimiter) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.active > 0 {
		l.active--
	}
}

// Active reports how many runs currently hold a slot.
func (l *RunLimiter) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}
