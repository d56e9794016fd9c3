package limit

import (
	"sync"
	"testing"
)

func TestAcquire_WithinLimit(t *testing.T) {
	l := NewRunLimiter(3)

	for i := 0; i < 3; i++ {
		if err := l.Acquire(); err != nil {
			t.Fatalf("acquire %d: expected no error, got %v", i, err)
		}
	}
	if l.Active() != 3 {
		t.Errorf("expected 3 active runs, got %d", l.Active())
	}
}

func TestAcquire_AtCapacity(t *testing.T) {
	l := NewRunLimiter(2)

	if err := l.Acquire(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.Acquire(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Third run exceeds the two slots.
	if err := l.Acquire(); err != ErrTooManyRuns {
		t.Errorf("expected ErrTooManyRuns, got %v", err)
	}
}

func TestRelease_FreesSlot(t *testing.T) {
	l := NewRunLimiter(1)

	if err := l.Acquire(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.Acquire(); err != ErrTooManyRuns {
		t.Fatalf("expected ErrTooManyRuns, got %v", err)
	}

	l.Release()
	if err := l.Acquire(); err != nil {
		t.Errorf("expected a free slot after release, got %v", err)
	}
}

func TestRelease_NeverGoesNegative(t *testing.T) {
	l := NewRunLimiter(2)

	l.Release()
	l.Release()
	if l.Active() != 0 {
		t.Errorf("expected 0 active runs, got %d", l.Active())
	}

	// The extra releases must not widen capacity.
	if err := l.Acquire(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.Acquire(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.Acquire(); err != ErrTooManyRuns {
		t.Errorf("expected ErrTooManyRuns, got %v", err)
	}
}

func TestNewRunLimiter_MinimumOne(t *testing.T) {
	l := NewRunLimiter(0)

	if err := l.Acquire(); err != nil {
		t.Fatalf("a zero max must clamp to one slot, got %v", err)
	}
	if err := l.Acquire(); err != ErrTooManyRuns {
		t.Errorf("expected ErrTooManyRuns, got %v", err)
	}
}

func TestAcquireRelease_Concurrent(t *testing.T) {
	l := NewRunLimiter(4)

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire(); err == nil {
				l.Release()
			}
		}()
	}
	wg.Wait()

	if l.Active() != 0 {
		t.Errorf("expected all slots returned, got %d active", l.Active())
	}
}
