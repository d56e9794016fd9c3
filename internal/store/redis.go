package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rjquant/gridbt/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and re-populate Redis; reads check
// Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store. The TTL
// bounds how long Redis serves a series without consulting the primary; it
// is independent of the freshness window the service applies to FetchedAt.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

func (s *CachedStore) GetSeries(ctx context.Context, symbol string, start, end time.Time) (*model.CachedSeries, error) {
	// Try cache.
	data, err := s.rdb.Get(ctx, redisKey(symbol, start, end)).Bytes()
	if err == nil {
		var cs model.CachedSeries
		if json.Unmarshal(data, &cs) == nil {
			return &cs, nil
		}
	}

	// Cache miss: read from primary.
	cs, err := s.primary.GetSeries(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}

	s.cacheSeries(ctx, cs)
	return cs, nil
}

func (s *CachedStore) PutSeries(ctx context.Context, cs *model.CachedSeries) error {
	if err := s.primary.PutSeries(ctx, cs); err != nil {
		return err
	}
	s.cacheSeries(ctx, cs)
	return nil
}

func (s *CachedStore) cacheSeries(ctx context.Context, cs *model.CachedSeries) {
	if data, err := json.Marshal(cs); err == nil {
		s.rdb.Set(ctx, redisKey(cs.Symbol, cs.Start, cs.End), data, s.ttl)
	}
}

func redisKey(symbol string, start, end time.Time) string {
	return fmt.Sprintf("series:%s:%s:%s", symbol, start.Format(dateFmt), end.Format(dateFmt))
}
