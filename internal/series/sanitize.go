package series

import (
	"math"
	"regexp"
	"sort"
	"time"

	"MarketForecast/internal/model"
)

var isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Sanitize turns unordered, possibly duplicated rows into the canonical series:
// strict ISO dates only, finite positive prices, non-negative volume, one bar
// per date (the last row in input order wins), sorted ascending by date.
func Sanitize(rows []model.Row) []model.PriceBar {
	byDate := make(map[string]model.PriceBar, len(rows))
	for _, r := range rows {
		if !ValidDate(r.Date) {
			continue
		}
		if !validNumbers(r) {
			continue
		}
		byDate[r.Date] = model.PriceBar{
			Date:   r.Date,
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		}
	}

	bars := make([]model.PriceBar, 0, len(byDate))
	for _, b := range byDate {
		bars = append(bars, b)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date < bars[j].Date })
	return bars
}

// SanitizeBars re-validates an existing bar series.
func SanitizeBars(bars []model.PriceBar) []model.PriceBar {
	rows := make([]model.Row, len(bars))
	for i, b := range bars {
		rows[i] = b.Row()
	}
	return Sanitize(rows)
}

// ValidDate reports whether s is a real calendar date in YYYY-MM-DD form.
func ValidDate(s string) bool {
	if !isoDate.MatchString(s) {
		return false
	}
	_, err := time.Parse(model.DateLayout, s)
	return err == nil
}

func validNumbers(r model.Row) bool {
	for _, v := range []float64{r.Open, r.High, r.Low, r.Close} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return false
		}
	}
	return !math.IsNaN(r.Volume) && !math.IsInf(r.Volume, 0) && r.Volume >= 0
}

// FilterRange keeps the bars inside r. When nothing falls inside the range the
// input is returned unchanged so callers still have something to work with.
func FilterRange(bars []model.PriceBar, r model.DateRange) []model.PriceBar {
	out := make([]model.PriceBar, 0, len(bars))
	for _, b := range bars {
		if r.Contains(b.Date) {
			out = append(out, b)
		}
	}
	if len(out) == 0 {
		return bars
	}
	return out
}

// Closes extracts the closing prices in series order.
func Closes(bars []model.PriceBar) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}

// Tail returns at most the last n values.
func Tail(values []float64, n int) []float64 {
	if n <= 0 || len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}
