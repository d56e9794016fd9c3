// Package model defines the core domain types shared across the backtest
// service. All monetary values use shopspring/decimal — never float64 for
// money.
package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrEmptySeries is returned when a price series has no observations.
	ErrEmptySeries = errors.New("model: empty price series")

	// ErrNonPositivePrice is returned when a series contains a zero or
	// negative close. Bad upstream data must be rejected, not replayed.
	ErrNonPositivePrice = errors.New("model: non-positive price in series")

	// ErrUnorderedSeries is returned when observation dates are not
	// strictly increasing.
	ErrUnorderedSeries = errors.New("model: series dates not strictly increasing")
)

// PricePoint is a single daily observation: a date and its closing price.
type PricePoint struct {
	Date  time.Time       `json:"date"`
	Close decimal.Decimal `json:"close"`
}

// PriceSeries is an ordered sequence of daily closes. Dates are strictly
// increasing (calendar gaps allowed), closes strictly positive. Once built
// it is treated as immutable input.
type PriceSeries []PricePoint

// NewPriceSeries validates and returns a price series.
func NewPriceSeries(points []PricePoint) (PriceSeries, error) {
	s := PriceSeries(points)
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the series invariants: at least one observation,
// strictly positive closes, strictly increasing dates.
func (s PriceSeries) Validate() error {
	if len(s) == 0 {
		return ErrEmptySeries
	}
	for i, p := range s {
		if !p.Close.IsPositive() {
			return fmt.Errorf("%w: %s at index %d", ErrNonPositivePrice, p.Close, i)
		}
		if i > 0 && !p.Date.After(s[i-1].Date) {
			return fmt.Errorf("%w: index %d (%s) not after index %d (%s)",
				ErrUnorderedSeries, i, p.Date.Format("2006-01-02"),
				i-1, s[i-1].Date.Format("2006-01-02"))
		}
	}
	return nil
}

// Trade sides.
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Trade is an immutable record of one simulated grid execution.
type Trade struct {
	Date  time.Time       `json:"date"`
	Side  string          `json:"side"`  // "buy" or "sell"
	Price decimal.Decimal `json:"price"` // close that triggered the trade
	Units decimal.Decimal `json:"units"` // shares bought or sold
	Value decimal.Decimal `json:"value"` // notional moved (= units * price)
}

// EquityPoint is one day of the equity trajectory: mark-to-market value of
// held units plus the running cash balance, using post-trade state.
type EquityPoint struct {
	Date   time.Time       `json:"date"`
	Equity decimal.Decimal `json:"equity"`
}

// EquityTrajectory is the day-by-day equity series produced by a backtest.
// Its length always equals the length of the input price series.
type EquityTrajectory []EquityPoint

// BacktestResult summarizes one backtest run. Derived purely from the
// trajectory and the trade counters; carries no further mutable state.
type BacktestResult struct {
	BuyCount           int             `json:"buy_count"`
	SellCount          int             `json:"sell_count"`
	TotalInvested      decimal.Decimal `json:"total_invested"`       // buyCount * tradeAmount
	CumulativeReturn   decimal.Decimal `json:"cumulative_return"`    // E[N-1]/totalInvested - 1, 0 if no buys
	MaxDrawdown        decimal.Decimal `json:"max_drawdown"`         // <= 0; 0 if equity never dipped
	WinRate            decimal.Decimal `json:"win_rate"`             // rising day-over-day steps / (N-1)
	FinalPositionValue decimal.Decimal `json:"final_position_value"` // shares_final * price[N-1]
	FinalCash          decimal.Decimal `json:"final_cash"`           // signed; negative = capital deployed
	FinalShares        decimal.Decimal `json:"final_shares"`
	Trades             []Trade         `json:"trades"`
}

// TotalTrades is the combined buy and sell count.
func (r BacktestResult) TotalTrades() int {
	return r.BuyCount + r.SellCount
}

// CachedSeries is the stored record of one fetched price range. Freshness is
// the caller's decision: stores keep FetchedAt, the service compares it
// against its TTL.
type CachedSeries struct {
	Symbol    string      `json:"symbol" db:"symbol"`
	Start     time.Time   `json:"start" db:"start_date"`
	End       time.Time   `json:"end" db:"end_date"`
	FetchedAt time.Time   `json:"fetched_at" db:"fetched_at"`
	Points    PriceSeries `json:"points" db:"points"`
}
