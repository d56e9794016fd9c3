package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rjquant/gridbt/internal/model"
)

// MemoryStore implements Store with an in-memory map. Used for testing and
// single-node deployments that run without a database.
type MemoryStore struct {
	mu     sync.RWMutex
	series map[string]*model.CachedSeries
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		series: make(map[string]*model.CachedSeries),
	}
}

func (s *MemoryStore) GetSeries(_ context.Context, symbol string, start, end time.Time) (*model.CachedSeries, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cs, ok := s.series[seriesKey(symbol, start, end)]
	if !ok {
		return nil, fmt.Errorf("%w: %s %s..%s", ErrNotFound, symbol,
			start.Format(dateFmt), end.Format(dateFmt))
	}

	// Return a copy to avoid external mutation.
	copy := *cs
	copy.Points = append(model.PriceSeries(nil), cs.Points...)
	return &copy, nil
}

func (s *MemoryStore) PutSeries(_ context.Context, cs *model.CachedSeries) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *cs
	copy.Points = append(model.PriceSeries(nil), cs.Points...)
	s.series[seriesKey(cs.Symbol, cs.Start, cs.End)] = &copy
	return nil
}

func seriesKey(symbol string, start, end time.Time) string {
	return fmt.Sprintf("%s|%s|%s", symbol, start.Format(dateFmt), end.Format(dateFmt))
}
