// Package grid implements the asymmetric grid backtest engine.
//
// The strategy buys a fixed notional amount whenever the day-over-day close
// drops by at least the buy threshold, and sells up to the same notional
// whenever it rises by at least the sell threshold — asymmetric because the
// two thresholds may differ. The engine replays that rule over a daily price
// series in one deterministic pass and derives the performance statistics
// (cumulative return, maximum drawdown, daily win rate) from the resulting
// equity trajectory.
//
// All monetary values use shopspring/decimal — never float64 for money.
// Decimal arithmetic and a strict left-to-right scan keep reruns on the same
// input bit-identical.
//
// The engine is pure: no I/O, no caching, no shared state. Callers own the
// series for the duration of a run.
package grid

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rjquant/gridbt/internal/model"
)

var (
	// ErrInvalidParams is returned when a strategy parameter violates its
	// bounds: thresholds in (0, 100], trade amount strictly positive.
	ErrInvalidParams = errors.New("grid: invalid strategy params")

	// RecommendedMinPct and RecommendedMaxPct are the threshold bounds a
	// presentation layer should offer (0.1%-5%). Guidance only; the engine
	// enforces nothing beyond (0, 100].
	RecommendedMinPct = decimal.NewFromFloat(0.1)
	RecommendedMaxPct = decimal.NewFromInt(5)
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// Params holds the three strategy parameters. Validate once at construction;
// a zero Params value is invalid.
type Params struct {
	BuyDropPct  decimal.Decimal `json:"buy_drop_pct"`  // daily decline (%) that triggers a buy
	SellRisePct decimal.Decimal `json:"sell_rise_pct"` // daily rise (%) that triggers a sell
	TradeAmount decimal.Decimal `json:"trade_amount"`  // notional per triggered trade
}

// NewParams validates and returns strategy parameters.
func NewParams(buyDropPct, sellRisePct, tradeAmount decimal.Decimal) (Params, error) {
	p := Params{
		BuyDropPct:  buyDropPct,
		SellRisePct: sellRisePct,
		TradeAmount: tradeAmount,
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// DefaultParams returns the stock configuration: buy on a 1% drop, sell on a
// 1.5% rise, 1000 per trade.
func DefaultParams() Params {
	return Params{
		BuyDropPct:  decimal.NewFromInt(1),
		SellRisePct: decimal.NewFromFloat(1.5),
		TradeAmount: decimal.NewFromInt(1000),
	}
}

// Validate checks the parameter bounds.
func (p Params) Validate() error {
	if !p.BuyDropPct.IsPositive() || p.BuyDropPct.GreaterThan(hundred) {
		return fmt.Errorf("%w: buy drop pct %s outside (0, 100]", ErrInvalidParams, p.BuyDropPct)
	}
	if !p.SellRisePct.IsPositive() || p.SellRisePct.GreaterThan(hundred) {
		return fmt.Errorf("%w: sell rise pct %s outside (0, 100]", ErrInvalidParams, p.SellRisePct)
	}
	if !p.TradeAmount.IsPositive() {
		return fmt.Errorf("%w: trade amount %s must be positive", ErrInvalidParams, p.TradeAmount)
	}
	return nil
}

// Run replays the grid rule over the series and returns the summary plus the
// full equity trajectory (one point per observation, post-trade state).
//
// Per day, in chronological order, against end-of-previous-day state:
//
//   - change[0] = 0 (day 0 can never trade);
//     change[i] = (price[i] - price[i-1]) / price[i-1]
//   - change ≤ -buyDropPct/100 → buy tradeAmount/price units; cash is
//     unconditionally debited and may go negative (capital deployed, not a
//     funded account)
//   - else change ≥ sellRisePct/100 and shares > 0 → sell
//     min(tradeAmount, shares·price); the cap means shares never go negative
//   - both conditions can only coincide with non-positive thresholds, which
//     validation forbids; buy is evaluated first
//
// Invalid input (empty series, non-positive price, unordered dates, bad
// params) returns an error and no partial result. Unbounded negative cash is
// a valid state and never an error.
func Run(series model.PriceSeries, params Params) (model.BacktestResult, model.EquityTrajectory, error) {
	if err := params.Validate(); err != nil {
		return model.BacktestResult{}, nil, err
	}
	if err := series.Validate(); err != nil {
		return model.BacktestResult{}, nil, err
	}

	buyThreshold := params.BuyDropPct.Div(hundred).Neg()
	sellThreshold := params.SellRisePct.Div(hundred)

	cash := decimal.Zero
	shares := decimal.Zero
	var buyCount, sellCount int
	var trades []model.Trade

	trajectory := make(model.EquityTrajectory, 0, len(series))

	for i, pt := range series {
		price := pt.Close

		change := decimal.Zero
		if i > 0 {
			prev := series[i-1].Close
			change = price.Sub(prev).Div(prev)
		}

		switch {
		case i > 0 && change.LessThanOrEqual(buyThreshold):
			units := params.TradeAmount.Div(price)
			shares = shares.Add(units)
			cash = cash.Sub(params.TradeAmount)
			buyCount++
			trades = append(trades, model.Trade{
				Date:  pt.Date,
				Side:  model.SideBuy,
				Price: price,
				Units: units,
				Value: params.TradeAmount,
			})

		case i > 0 && change.GreaterThanOrEqual(sellThreshold) && shares.IsPositive():
			positionValue := shares.Mul(price)
			var sellValue, units decimal.Decimal
			if positionValue.LessThanOrEqual(params.TradeAmount) {
				// Full liquidation: sell the exact holding so shares land
				// on zero instead of a division-rounding residue.
				sellValue = positionValue
				units = shares
				shares = decimal.Zero
			} else {
				sellValue = params.TradeAmount
				units = sellValue.Div(price)
				shares = shares.Sub(units)
			}
			cash = cash.Add(sellValue)
			sellCount++
			trades = append(trades, model.Trade{
				Date:  pt.Date,
				Side:  model.SideSell,
				Price: price,
				Units: units,
				Value: sellValue,
			})
		}

		trajectory = append(trajectory, model.EquityPoint{
			Date:   pt.Date,
			Equity: shares.Mul(price).Add(cash),
		})
	}

	lastPrice := series[len(series)-1].Close
	totalInvested := params.TradeAmount.Mul(decimal.NewFromInt(int64(buyCount)))
	result := model.BacktestResult{
		BuyCount:           buyCount,
		SellCount:          sellCount,
		TotalInvested:      totalInvested,
		CumulativeReturn:   cumulativeReturn(trajectory, totalInvested),
		MaxDrawdown:        maxDrawdown(trajectory),
		WinRate:            winRate(trajectory),
		FinalPositionValue: shares.Mul(lastPrice),
		FinalCash:          cash,
		FinalShares:        shares,
		Trades:             trades,
	}
	return result, trajectory, nil
}

// cumulativeReturn is final equity over total invested, minus one. Defined as
// zero when no buy ever triggered (avoids dividing by zero).
func cumulativeReturn(t model.EquityTrajectory, totalInvested decimal.Decimal) decimal.Decimal {
	if !totalInvested.IsPositive() {
		return decimal.Zero
	}
	return t[len(t)-1].Equity.Div(totalInvested).Sub(one)
}

// winRate is the fraction of consecutive-day pairs where equity strictly
// increased. Defined as zero for trajectories shorter than two points.
func winRate(t model.EquityTrajectory) decimal.Decimal {
	if len(t) <= 1 {
		return decimal.Zero
	}
	var wins int64
	for i := 1; i < len(t); i++ {
		if t[i].Equity.GreaterThan(t[i-1].Equity) {
			wins++
		}
	}
	return decimal.NewFromInt(wins).Div(decimal.NewFromInt(int64(len(t) - 1)))
}

// maxDrawdown is the most negative relative decline from the running peak,
// computed in a strict left-to-right prefix scan: reordering could change
// rounding and break reproducibility. Days whose running peak is still zero
// have no peak to draw down from and are skipped; an all-zero trajectory (no
// trades) yields zero.
func maxDrawdown(t model.EquityTrajectory) decimal.Decimal {
	peak := decimal.Zero
	worst := decimal.Zero
	for i, p := range t {
		if i == 0 || p.Equity.GreaterThan(peak) {
			peak = p.Equity
		}
		if !peak.IsPositive() {
			continue
		}
		dd := p.Equity.Sub(peak).Div(peak)
		if dd.LessThan(worst) {
			worst = dd
		}
	}
	return worst
}
