package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rjquant/gridbt/internal/model"
)

func testSeries(symbol string) *model.CachedSeries {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	return &model.CachedSeries{
		Symbol:    symbol,
		Start:     start,
		End:       start.AddDate(0, 0, 2),
		FetchedAt: time.Date(2024, 1, 5, 8, 0, 0, 0, time.UTC),
		Points: model.PriceSeries{
			{Date: start, Close: decimal.NewFromFloat(3.5)},
			{Date: start.AddDate(0, 0, 1), Close: decimal.NewFromFloat(3.48)},
			{Date: start.AddDate(0, 0, 2), Close: decimal.NewFromFloat(3.52)},
		},
	}
}

func TestMemoryStore_PutGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	cs := testSeries("510300.SS")

	if err := s.PutSeries(ctx, cs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.GetSeries(ctx, cs.Symbol, cs.Start, cs.End)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(got.Points))
	}
	if !got.FetchedAt.Equal(cs.FetchedAt) {
		t.Errorf("expected fetched_at preserved, got %v", got.FetchedAt)
	}
	if !got.Points[1].Close.Equal(decimal.NewFromFloat(3.48)) {
		t.Errorf("expected close 3.48, got %s", got.Points[1].Close)
	}
}

func TestMemoryStore_Miss(t *testing.T) {
	s := NewMemoryStore()
	cs := testSeries("510300.SS")

	_, err := s.GetSeries(context.Background(), cs.Symbol, cs.Start, cs.End)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_KeyIsExactRange(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	cs := testSeries("510300.SS")

	if err := s.PutSeries(ctx, cs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Same symbol, shifted window: distinct cache entry.
	_, err := s.GetSeries(ctx, cs.Symbol, cs.Start.AddDate(0, 0, 1), cs.End)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for a different range, got %v", err)
	}
}

func TestMemoryStore_OverwriteRefreshes(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	cs := testSeries("510300.SS")

	if err := s.PutSeries(ctx, cs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	refreshed := testSeries("510300.SS")
	refreshed.FetchedAt = cs.FetchedAt.Add(24 * time.Hour)
	if err := s.PutSeries(ctx, refreshed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.GetSeries(ctx, cs.Symbol, cs.Start, cs.End)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.FetchedAt.Equal(refreshed.FetchedAt) {
		t.Errorf("expected the refreshed fetched_at, got %v", got.FetchedAt)
	}
}

func TestMemoryStore_CopyOnReturn(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	cs := testSeries("510300.SS")

	if err := s.PutSeries(ctx, cs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.GetSeries(ctx, cs.Symbol, cs.Start, cs.End)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got.Points[0].Close = decimal.NewFromInt(999)

	again, err := s.GetSeries(ctx, cs.Symbol, cs.Start, cs.End)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.Points[0].Close.Equal(decimal.NewFromInt(999)) {
		t.Error("mutating a returned series must not touch the stored copy")
	}
}
