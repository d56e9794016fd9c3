// Package store defines the price-series cache for the backtest service.
// Implementations include PostgreSQL (durable cache), Redis (read-through
// layer), and in-memory (for testing and single-node use).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/rjquant/gridbt/internal/model"
)

const dateFmt = "2006-01-02"

// ErrNotFound is returned on a cache miss.
var ErrNotFound = errors.New("store: series not found")

// Store caches fetched close series keyed by (symbol, start, end). Callers
// judge staleness from CachedSeries.FetchedAt; the store never refetches.
type Store interface {
	// GetSeries returns the cached series under the exact key, or
	// ErrNotFound on a miss.
	GetSeries(ctx context.Context, symbol string, start, end time.Time) (*model.CachedSeries, error)

	// PutSeries stores a freshly fetched series, replacing any previous
	// entry under the same key.
	PutSeries(ctx context.Context, series *model.CachedSeries) error
}
