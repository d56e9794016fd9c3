// Package backtest provides the HTTP handlers and orchestration for running
// asymmetric grid strategy backtests over cached daily close series.
//
// All monetary values use shopspring/decimal — never float64 for money.
package backtest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rjquant/gridbt/internal/grid"
	"github.com/rjquant/gridbt/internal/limit"
	"github.com/rjquant/gridbt/internal/metrics"
	"github.com/rjquant/gridbt/internal/model"
	"github.com/rjquant/gridbt/internal/provider"
	"github.com/rjquant/gridbt/internal/store"
	"github.com/rjquant/gridbt/internal/symbol"
)

// DefaultMaxAge is how long a cached series stays fresh before the service
// refetches it. Daily closes only change once a day.
const DefaultMaxAge = 24 * time.Hour

const dateLayout = "2006-01-02"

// Service runs backtests over cached price series. Completed runs are held
// in memory only; the engine itself is stateless and results are never
// written to durable storage.
type Service struct {
	store    store.Store
	provider provider.Provider
	limiter  *limit.RunLimiter
	maxAge   time.Duration

	mu   sync.RWMutex
	runs map[string]*RunRecord

	wsHub *WSHub // optional WebSocket hub for run-completion broadcasts
}

// NewService creates a new backtest service. A maxAge of zero or below
// falls back to DefaultMaxAge. Pass nil for hub if WebSocket broadcasting
// is not needed.
func NewService(st store.Store, p provider.Provider, limiter *limit.RunLimiter, maxAge time.Duration, hub *WSHub) *Service {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Service{
		store:    st,
		provider: p,
		limiter:  limiter,
		maxAge:   maxAge,
		runs:     make(map[string]*RunRecord),
		wsHub:    hub,
	}
}

// --- Request/Response types ---

// RunRequest is the JSON body for POST /api/v1/backtests.
// Zero-valued params fall back to the defaults (1.0 / 1.5 / 1000).
type RunRequest struct {
	Symbol      string          `json:"symbol"`
	Start       string          `json:"start"` // YYYY-MM-DD
	End         string          `json:"end"`   // YYYY-MM-DD
	BuyDropPct  decimal.Decimal `json:"buy_drop_pct"`
	SellRisePct decimal.Decimal `json:"sell_rise_pct"`
	TradeAmount decimal.Decimal `json:"trade_amount"`
}

// CompareRequest is the JSON body for POST /api/v1/backtests/compare.
type CompareRequest struct {
	Symbol      string          `json:"symbol"`
	Mode        string          `json:"mode"` // bull_markets (default) or panorama
	BuyDropPct  decimal.Decimal `json:"buy_drop_pct"`
	SellRisePct decimal.Decimal `json:"sell_rise_pct"`
	TradeAmount decimal.Decimal `json:"trade_amount"`
}

// RunRecord is a completed backtest run held in the in-memory registry.
type RunRecord struct {
	RunID      string                 `json:"run_id"`
	Symbol     string                 `json:"symbol"`
	Name       string                 `json:"name,omitempty"`
	Label      string                 `json:"label"`
	Start      time.Time              `json:"start"`
	End        time.Time              `json:"end"`
	Days       int                    `json:"days"`
	Params     grid.Params            `json:"params"`
	Result     model.BacktestResult   `json:"result"`
	Trajectory model.EquityTrajectory `json:"trajectory"`
	CreatedAt  time.Time              `json:"created_at"`
}

// RunSummary is one row of a comparison table, mirroring the columns of the
// single-run report: buys, sells, return, drawdown, win rate, trade count,
// and final market value.
type RunSummary struct {
	RunID              string          `json:"run_id,omitempty"`
	Label              string          `json:"label"`
	BuyCount           int             `json:"buy_count"`
	SellCount          int             `json:"sell_count"`
	CumulativeReturn   decimal.Decimal `json:"cumulative_return"`
	MaxDrawdown        decimal.Decimal `json:"max_drawdown"`
	WinRate            decimal.Decimal `json:"win_rate"`
	TotalTrades        int             `json:"total_trades"`
	FinalPositionValue decimal.Decimal `json:"final_position_value"`
	Days               int             `json:"days"`
	Error              string          `json:"error,omitempty"` // set when the period could not run
}

// CompareResponse is the JSON body returned from POST /api/v1/backtests/compare.
type CompareResponse struct {
	Symbol  string       `json:"symbol"`
	Name    string       `json:"name,omitempty"`
	Mode    string       `json:"mode"`
	Params  grid.Params  `json:"params"`
	Periods []RunSummary `json:"periods"`
}

// PeriodsResponse is the JSON body returned from GET /api/v1/periods.
type PeriodsResponse struct {
	BullMarkets []Period `json:"bull_markets"`
	Panorama    []Period `json:"panorama"`
}

// --- HTTP Handlers ---

// CreateRun handles POST /api/v1/backtests
// Runs the strategy over one explicit window and returns the full record.
func (s *Service) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	sym, err := symbol.Parse(req.Symbol)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	start, end, err := parseWindow(req.Start, req.End)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	params, err := resolveParams(req.BuyDropPct, req.SellRisePct, req.TradeAmount)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.limiter.Acquire(); err != nil {
		metrics.RunLimitRejections.Inc()
		writeError(w, err.Error(), http.StatusTooManyRequests)
		return
	}
	metrics.ActiveRuns.Inc()
	defer func() {
		s.limiter.Release()
		metrics.ActiveRuns.Dec()
	}()

	label := start.Format(dateLayout) + ".." + end.Format(dateLayout)
	rec, err := s.executeRun(r.Context(), sym, label, start, end, params)
	if err != nil {
		s.writeRunError(w, err)
		return
	}
	metrics.BacktestsTotal.WithLabelValues(ModeSingle).Inc()

	slog.Info("backtest completed",
		"run_id", rec.RunID,
		"symbol", rec.Symbol,
		"window", label,
		"days", rec.Days,
		"buys", rec.Result.BuyCount,
		"sells", rec.Result.SellCount,
		"return", rec.Result.CumulativeReturn.String(),
	)

	s.broadcastRun(rec)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(rec)
}

// CompareRuns handles POST /api/v1/backtests/compare
// Runs the strategy over the preset windows and returns one summary row per
// period. Periods without data are reported in-row rather than failing the
// whole comparison.
func (s *Service) CompareRuns(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	sym, err := symbol.Parse(req.Symbol)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	mode := req.Mode
	if mode == "" {
		mode = ModeBullMarkets
	}
	var periods []Period
	switch mode {
	case ModeBullMarkets:
		periods = BullMarkets(time.Now())
	case ModePanorama:
		periods = []Period{Panorama(time.Now())}
	default:
		writeError(w, "mode must be bull_markets or panorama", http.StatusBadRequest)
		return
	}

	params, err := resolveParams(req.BuyDropPct, req.SellRisePct, req.TradeAmount)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.limiter.Acquire(); err != nil {
		metrics.RunLimitRejections.Inc()
		writeError(w, err.Error(), http.StatusTooManyRequests)
		return
	}
	metrics.ActiveRuns.Inc()
	defer func() {
		s.limiter.Release()
		metrics.ActiveRuns.Dec()
	}()

	summaries := make([]RunSummary, 0, len(periods))
	var completed int
	var firstErr error

	for _, p := range periods {
		rec, err := s.executeRun(r.Context(), sym, p.Label, p.Start, p.End, params)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			slog.Warn("comparison period skipped",
				"symbol", sym.Code, "label", p.Label, "err", err)
			summaries = append(summaries, RunSummary{Label: p.Label, Error: err.Error()})
			continue
		}
		completed++
		metrics.BacktestsTotal.WithLabelValues(mode).Inc()
		summaries = append(summaries, summarize(rec))
		s.broadcastRun(rec)
	}

	// Nothing ran at all: surface the underlying failure instead of an
	// all-error table.
	if completed == 0 {
		s.writeRunError(w, firstErr)
		return
	}

	slog.Info("comparison completed",
		"symbol", sym.Code,
		"mode", mode,
		"periods", len(periods),
		"completed", completed,
	)

	resp := CompareResponse{
		Symbol:  sym.Code,
		Name:    sym.Name,
		Mode:    mode,
		Params:  params,
		Periods: summaries,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GetRun handles GET /api/v1/backtests/{runID}
func (s *Service) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	s.mu.RLock()
	rec, ok := s.runs[runID]
	s.mu.RUnlock()
	if !ok {
		writeError(w, "run not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rec)
}

// ListSymbols handles GET /api/v1/symbols
// Returns directory entries matching ?q=, or the whole directory.
func (s *Service) ListSymbols(w http.ResponseWriter, r *http.Request) {
	matches := symbol.Search(r.URL.Query().Get("q"))
	if matches == nil {
		matches = []symbol.Symbol{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(matches)
}

// ListPeriods handles GET /api/v1/periods
func (s *Service) ListPeriods(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	resp := PeriodsResponse{
		BullMarkets: BullMarkets(now),
		Panorama:    []Period{Panorama(now)},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// --- Run orchestration ---

// executeRun loads the series for the window and replays the strategy over
// it, registering the completed run.
func (s *Service) executeRun(ctx context.Context, sym *symbol.Symbol, label string, start, end time.Time, params grid.Params) (*RunRecord, error) {
	series, err := s.loadSeries(ctx, sym.Code, start, end)
	if err != nil {
		return nil, err
	}

	began := time.Now()
	result, trajectory, err := grid.Run(series, params)
	if err != nil {
		return nil, err
	}
	metrics.BacktestDuration.Observe(time.Since(began).Seconds())
	metrics.SimulatedTradesTotal.WithLabelValues(model.SideBuy).Add(float64(result.BuyCount))
	metrics.SimulatedTradesTotal.WithLabelValues(model.SideSell).Add(float64(result.SellCount))

	rec := &RunRecord{
		RunID:      uuid.New().String(),
		Symbol:     sym.Code,
		Name:       sym.Name,
		Label:      label,
		Start:      start,
		End:        end,
		Days:       len(series),
		Params:     params,
		Result:     result,
		Trajectory: trajectory,
		CreatedAt:  time.Now().UTC(),
	}

	s.mu.Lock()
	s.runs[rec.RunID] = rec
	s.mu.Unlock()

	return rec, nil
}

// loadSeries serves closes from the cache while they are fresh, refetching
// from the provider otherwise. A provider outage falls back to a stale
// cached copy when one exists.
func (s *Service) loadSeries(ctx context.Context, code string, start, end time.Time) (model.PriceSeries, error) {
	cached, err := s.store.GetSeries(ctx, code, start, end)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		// A broken cache should not block the run.
		slog.Warn("price cache read failed", "symbol", code, "err", err)
		cached = nil
	}
	if cached != nil && time.Since(cached.FetchedAt) < s.maxAge {
		metrics.PriceCacheHits.Inc()
		return cached.Points, nil
	}
	metrics.PriceCacheMisses.Inc()

	series, err := s.provider.FetchDailyCloses(ctx, code, start, end)
	if err != nil {
		switch {
		case errors.Is(err, provider.ErrSymbolNotFound):
			metrics.ProviderRequests.WithLabelValues("not_found").Inc()
		case errors.Is(err, provider.ErrNoData):
			metrics.ProviderRequests.WithLabelValues("no_data").Inc()
		default:
			metrics.ProviderRequests.WithLabelValues("error").Inc()
			if cached != nil {
				slog.Warn("serving stale series after fetch failure",
					"symbol", code, "fetched_at", cached.FetchedAt, "err", err)
				return cached.Points, nil
			}
		}
		return nil, err
	}
	metrics.ProviderRequests.WithLabelValues("ok").Inc()

	cs := &model.CachedSeries{
		Symbol:    code,
		Start:     start,
		End:       end,
		FetchedAt: time.Now().UTC(),
		Points:    series,
	}
	if err := s.store.PutSeries(ctx, cs); err != nil {
		slog.Warn("price cache write failed", "symbol", code, "err", err)
	}
	return series, nil
}

func (s *Service) broadcastRun(rec *RunRecord) {
	if s.wsHub == nil {
		return
	}
	s.wsHub.Broadcast(WSMessage{
		Type:             "run_completed",
		RunID:            rec.RunID,
		Symbol:           rec.Symbol,
		Label:            rec.Label,
		CumulativeReturn: rec.Result.CumulativeReturn.String(),
		MaxDrawdown:      rec.Result.MaxDrawdown.String(),
		WinRate:          rec.Result.WinRate.String(),
		TotalTrades:      rec.Result.TotalTrades(),
	})
}

// writeRunError maps acquisition and engine failures onto HTTP statuses:
// unknown instrument → 404, a window with no trading days → 422, engine
// input rejection → 400, anything upstream → 502.
func (s *Service) writeRunError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, provider.ErrSymbolNotFound):
		writeError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, provider.ErrNoData):
		writeError(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, grid.ErrInvalidParams),
		errors.Is(err, model.ErrEmptySeries),
		errors.Is(err, model.ErrNonPositivePrice),
		errors.Is(err, model.ErrUnorderedSeries):
		writeError(w, err.Error(), http.StatusBadRequest)
	default:
		writeError(w, "price fetch failed: "+err.Error(), http.StatusBadGateway)
	}
}

// --- Helpers ---

// resolveParams fills defaults for zero-valued fields and validates.
func resolveParams(buy, sell, amount decimal.Decimal) (grid.Params, error) {
	def := grid.DefaultParams()
	if buy.IsZero() {
		buy = def.BuyDropPct
	}
	if sell.IsZero() {
		sell = def.SellRisePct
	}
	if amount.IsZero() {
		amount = def.TradeAmount
	}
	return grid.NewParams(buy, sell, amount)
}

func parseWindow(startStr, endStr string) (time.Time, time.Time, error) {
	start, err := time.Parse(dateLayout, startStr)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("start must be YYYY-MM-DD")
	}
	end, err := time.Parse(dateLayout, endStr)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("end must be YYYY-MM-DD")
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, errors.New("end must not be before start")
	}
	return start, end, nil
}

func summarize(rec *RunRecord) RunSummary {
	return RunSummary{
		RunID:              rec.RunID,
		Label:              rec.Label,
		BuyCount:           rec.Result.BuyCount,
		SellCount:          rec.Result.SellCount,
		CumulativeReturn:   rec.Result.CumulativeReturn,
		MaxDrawdown:        rec.Result.MaxDrawdown,
		WinRate:            rec.Result.WinRate,
		TotalTrades:        rec.Result.TotalTrades(),
		FinalPositionValue: rec.Result.FinalPositionValue,
		Days:               rec.Days,
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
