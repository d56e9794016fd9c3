package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rjquant/gridbt/internal/model"
)

const userAgent = "Mozilla/5.0 (compatible; gridbt/1.0)"

// Yahoo fetches daily bars from the Yahoo Finance v8 chart API.
type Yahoo struct {
	BaseURL string
	HTTP    *http.Client
}

// NewYahoo builds a client against the given base URL, defaulting to the
// public Yahoo endpoint.
func NewYahoo(base string) *Yahoo {
	if base == "" {
		base = "https://query1.finance.yahoo.com"
	}
	return &Yahoo{
		BaseURL: base,
		HTTP: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 15 * time.Second}).DialContext,
				MaxIdleConns:          100,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   5 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
	}
}

func (y *Yahoo) Name() string { return "yahoo" }

// chartResponse mirrors the subset of the v8 chart payload we consume.
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

// closes prefers split/dividend-adjusted values and falls back to raw closes.
func (r chartResult) closes() []*float64 {
	if len(r.Indicators.AdjClose) > 0 && len(r.Indicators.AdjClose[0].AdjClose) > 0 {
		return r.Indicators.AdjClose[0].AdjClose
	}
	if len(r.Indicators.Quote) > 0 {
		return r.Indicators.Quote[0].Close
	}
	return nil
}

func (y *Yahoo) buildURL(symbol string, start, end time.Time) string {
	u, err := url.Parse(y.BaseURL + "/v8/finance/chart/" + url.PathEscape(symbol))
	if err != nil {
		panic(fmt.Sprintf("invalid base URL: %v", err))
	}
	q := u.Query()
	q.Set("interval", "1d")
	q.Set("period1", strconv.FormatInt(start.Unix(), 10))
	// period2 is exclusive upstream; push it a day out to keep end inclusive.
	q.Set("period2", strconv.FormatInt(end.AddDate(0, 0, 1).Unix(), 10))
	u.RawQuery = q.Encode()
	return u.String()
}

// FetchDailyCloses pulls the daily close series for symbol over [start, end].
func (y *Yahoo) FetchDailyCloses(ctx context.Context, symbol string, start, end time.Time) (model.PriceSeries, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.buildURL(symbol, start, end), nil)
	if err != nil {
		return nil, fmt.Errorf("provider: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := y.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider: yahoo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("provider: yahoo status %d: %s", resp.StatusCode, string(b))
	}

	var cr chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, fmt.Errorf("provider: decode chart response: %w", err)
	}
	if cr.Chart.Error != nil {
		if cr.Chart.Error.Code == "Not Found" {
			return nil, fmt.Errorf("%w: %s (%s)", ErrSymbolNotFound, symbol, cr.Chart.Error.Description)
		}
		return nil, fmt.Errorf("provider: yahoo error %s: %s", cr.Chart.Error.Code, cr.Chart.Error.Description)
	}
	if len(cr.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: %s %s..%s", ErrNoData, symbol,
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	res := cr.Chart.Result[0]
	closes := res.closes()

	points := make([]model.PricePoint, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue // holidays and suspended days come back as nulls
		}
		t := time.Unix(ts, 0).UTC()
		points = append(points, model.PricePoint{
			Date:  time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC),
			Close: decimal.NewFromFloat(*closes[i]),
		})
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: %s %s..%s", ErrNoData, symbol,
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	series, err := model.NewPriceSeries(points)
	if err != nil {
		return nil, fmt.Errorf("provider: yahoo returned invalid series: %w", err)
	}
	return series, nil
}
