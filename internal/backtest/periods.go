package backtest

import "time"

// Backtest modes accepted by the compare endpoint and the CLI.
const (
	ModeSingle      = "single"
	ModeBullMarkets = "bull_markets"
	ModePanorama    = "panorama"
)

// Period is a named backtest window.
type Period struct {
	Label string    `json:"label"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// BullMarkets returns the three bull phases A-share traders compare against:
// the 2016-2017 blue-chip rally, the 2019-2021 growth rally, and the
// stimulus-driven run that started on 2024-09-24.
func BullMarkets(now time.Time) []Period {
	return []Period{
		{Label: "2016-2017 blue-chip bull", Start: utcDate(2016, 1, 1), End: utcDate(2017, 12, 31)},
		{Label: "2019-2021 growth bull", Start: utcDate(2019, 1, 1), End: utcDate(2021, 2, 10)},
		{Label: "2024-present policy bull", Start: utcDate(2024, 9, 24), End: today(now)},
	}
}

// Panorama returns the full-history window from 2015 through now.
func Panorama(now time.Time) Period {
	return Period{Label: "2015-present full history", Start: utcDate(2015, 1, 1), End: today(now)}
}

func utcDate(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func today(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
