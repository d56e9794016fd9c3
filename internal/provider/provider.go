// Package provider fetches daily close series from external quote services.
package provider

import (
	"context"
	"errors"
	"time"

	"github.com/rjquant/gridbt/internal/model"
)

var (
	// ErrSymbolNotFound means the upstream service does not know the
	// instrument at all.
	ErrSymbolNotFound = errors.New("provider: symbol not found")
	// ErrNoData means the instrument exists but the requested range holds
	// no trading days.
	ErrNoData = errors.New("provider: no data for range")
)

// Provider fetches daily closes for one instrument over a date range.
// Implementations return series already validated against model rules.
type Provider interface {
	// FetchDailyCloses returns one point per trading day in [start, end],
	// dates normalized to UTC midnight.
	FetchDailyCloses(ctx context.Context, symbol string, start, end time.Time) (model.PriceSeries, error)

	// Name identifies the upstream service in logs.
	Name() string
}
