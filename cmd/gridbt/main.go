// gridbt runs the asymmetric grid strategy over daily closes and prints a
// per-period report, without needing the HTTP service.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rjquant/gridbt/internal/backtest"
	"github.com/rjquant/gridbt/internal/grid"
	"github.com/rjquant/gridbt/internal/provider"
	"github.com/rjquant/gridbt/internal/symbol"
)

func main() {
	var (
		symbolArg string
		startStr  string
		endStr    string
		mode      string
		buy       float64
		sell      float64
		amount    float64
		outCSV    string
		baseURL   string
	)

	flag.StringVar(&symbolArg, "symbol", symbol.DefaultCode, "instrument code (dddddd.SS/.SZ) or directory name fragment")
	flag.StringVar(&startStr, "start", "", "start date (YYYY-MM-DD), single mode only")
	flag.StringVar(&endStr, "end", "", "end date (YYYY-MM-DD), single mode only")
	flag.StringVar(&mode, "mode", "single", "window preset: single | bulls | panorama")
	flag.Float64Var(&buy, "buy", 1.0, "buy when the daily drop reaches this percent")
	flag.Float64Var(&sell, "sell", 1.5, "sell when the daily rise reaches this percent")
	flag.Float64Var(&amount, "amount", 1000, "fixed notional per trade")
	flag.StringVar(&outCSV, "csv", "", "optional: write simulated trades to CSV")
	flag.StringVar(&baseURL, "base-url", "", "override the quote service base URL")
	flag.Parse()

	sym, err := resolveSymbol(symbolArg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	params, err := grid.NewParams(
		decimal.NewFromFloat(buy),
		decimal.NewFromFloat(sell),
		decimal.NewFromFloat(amount),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	var periods []backtest.Period
	switch mode {
	case "single":
		if startStr == "" || endStr == "" {
			fmt.Fprintln(os.Stderr, "error: -start and -end are required with -mode single (YYYY-MM-DD)")
			os.Exit(1)
		}
		start, err := time.Parse("2006-01-02", startStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "bad -start: %v\n", err)
			os.Exit(1)
		}
		end, err := time.Parse("2006-01-02", endStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "bad -end: %v\n", err)
			os.Exit(1)
		}
		if end.Before(start) {
			fmt.Fprintln(os.Stderr, "error: -end must not be before -start")
			os.Exit(1)
		}
		periods = []backtest.Period{{Label: startStr + ".." + endStr, Start: start, End: end}}
	case "bulls":
		periods = backtest.BullMarkets(time.Now())
	case "panorama":
		periods = []backtest.Period{backtest.Panorama(time.Now())}
	default:
		fmt.Fprintf(os.Stderr, "bad -mode %q (single | bulls | panorama)\n", mode)
		os.Exit(1)
	}

	yahoo := provider.NewYahoo(baseURL)

	name := sym.Name
	if name == "" {
		name = "unlisted"
	}
	fmt.Printf("gridbt %s (%s)  buy -%.2f%% / sell +%.2f%% / %.0f per trade\n",
		sym.Code, name, buy, sell, amount)

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PERIOD\tBUYS\tSELLS\tRETURN\tMAX DD\tWIN RATE\tTRADES\tFINAL MV")

	var csvRows [][]string
	failures := 0

	for _, p := range periods {
		series, err := yahoo.FetchDailyCloses(context.Background(), sym.Code, p.Start, p.End)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: %s: %v\n", p.Label, err)
			fmt.Fprintf(tw, "%s\t-\t-\t-\t-\t-\t-\t-\n", p.Label)
			failures++
			continue
		}

		result, _, err := grid.Run(series, params)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: %s: %v\n", p.Label, err)
			fmt.Fprintf(tw, "%s\t-\t-\t-\t-\t-\t-\t-\n", p.Label)
			failures++
			continue
		}

		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\t%s\t%d\t%s\n",
			p.Label,
			result.BuyCount,
			result.SellCount,
			pct(result.CumulativeReturn),
			pct(result.MaxDrawdown),
			pct(result.WinRate),
			result.TotalTrades(),
			result.FinalPositionValue.StringFixed(2),
		)

		for _, t := range result.Trades {
			csvRows = append(csvRows, []string{
				p.Label, t.Date.Format("2006-01-02"), t.Side,
				t.Price.String(), t.Units.String(), t.Value.String(),
			})
		}
	}
	tw.Flush()

	if outCSV != "" {
		if err := writeTradesCSV(outCSV, csvRows); err != nil {
			fmt.Fprintf(os.Stderr, "csv write error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Wrote trades to:", outCSV)
	}

	if failures == len(periods) {
		os.Exit(1)
	}
}

// resolveSymbol accepts an exchange code outright, otherwise searches the
// directory and takes the first match.
func resolveSymbol(query string) (*symbol.Symbol, error) {
	if sym, err := symbol.Parse(query); err == nil {
		return sym, nil
	}
	matches := symbol.Search(query)
	if len(matches) == 0 {
		return nil, fmt.Errorf("no instrument matches %q", query)
	}
	return &matches[0], nil
}

func pct(d decimal.Decimal) string {
	return d.Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
}

func writeTradesCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	_ = w.Write([]string{"period", "date", "side", "price", "units", "value"})
	for _, row := range rows {
		_ = w.Write(row)
	}
	return nil
}
