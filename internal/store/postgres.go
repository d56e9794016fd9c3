package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rjquant/gridbt/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the durable cache.
// Series points are stored as JSONB; decimals serialize as strings, so
// closes survive the round trip without precision loss.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the cache table when it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS price_series (
			symbol     TEXT        NOT NULL,
			start_date DATE        NOT NULL,
			end_date   DATE        NOT NULL,
			fetched_at TIMESTAMPTZ NOT NULL,
			points     JSONB       NOT NULL,
			PRIMARY KEY (symbol, start_date, end_date)
		)`)
	if err != nil {
		return fmt.Errorf("ensure price_series schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetSeries(ctx context.Context, symbol string, start, end time.Time) (*model.CachedSeries, error) {
	cs := model.CachedSeries{Symbol: symbol, Start: start, End: end}
	var points []byte

	err := s.pool.QueryRow(ctx,
		`SELECT fetched_at, points
		 FROM price_series
		 WHERE symbol = $1 AND start_date = $2 AND end_date = $3`,
		symbol, start, end).
		Scan(&cs.FetchedAt, &points)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %s..%s", ErrNotFound, symbol,
			start.Format(dateFmt), end.Format(dateFmt))
	}
	if err != nil {
		return nil, fmt.Errorf("get series %s: %w", symbol, err)
	}

	if err := json.Unmarshal(points, &cs.Points); err != nil {
		return nil, fmt.Errorf("decode cached series %s: %w", symbol, err)
	}
	return &cs, nil
}

func (s *PostgresStore) PutSeries(ctx context.Context, cs *model.CachedSeries) error {
	points, err := json.Marshal(cs.Points)
	if err != nil {
		return fmt.Errorf("encode series %s: %w", cs.Symbol, err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO price_series (symbol, start_date, end_date, fetched_at, points)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (symbol, start_date, end_date) DO UPDATE SET
		     fetched_at = EXCLUDED.fetched_at,
		     points     = EXCLUDED.points`,
		cs.Symbol, cs.Start, cs.End, cs.FetchedAt, points,
	)
	if err != nil {
		return fmt.Errorf("put series %s: %w", cs.Symbol, err)
	}
	return nil
}
