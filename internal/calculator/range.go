package calculator

import (
	"errors"
	"math"

	"MarketForecast/internal/model"
)

const (
	tradingDaysYear  = 252
	tradingDaysMonth = 22
)

// Range is the high/low envelope of a trailing stretch of bars.
type Range struct {
	High float64
	Low  float64
}

// Position places price inside the range, clamped to [0, 1]. A flat range reads 0.5.
func (r Range) Position(price float64) float64 {
	if r.High <= r.Low {
		return 0.5
	}
	return math.Max(0, math.Min(1, (price-r.Low)/(r.High-r.Low)))
}

// TrailingRange scans the last `days` bars for their high and low.
func TrailingRange(bars []model.PriceBar, days int) (Range, error) {
	if len(bars) == 0 {
		return Range{}, errors.New("no bars provided")
	}
	start := len(bars) - days
	if days <= 0 || start < 0 {
		start = 0
	}
	r := Range{High: math.Inf(-1), Low: math.Inf(1)}
	for _, b := range bars[start:] {
		r.High = math.Max(r.High, b.High)
		r.Low = math.Min(r.Low, b.Low)
	}
	return r, nil
}

// YearRange is the 52-week envelope.
func YearRange(bars []model.PriceBar) (Range, error) {
	return TrailingRange(bars, tradingDaysYear)
}

// MonthRange is the 30-calendar-day envelope.
func MonthRange(bars []model.PriceBar) (Range, error) {
	return TrailingRange(bars, tradingDaysMonth)
}

// Snapshot summarises the tail of a series for human-facing messages.
type Snapshot struct {
	Last         float64
	SMA20        float64
	RSI14        float64
	Year         Range
	YearPosition float64
}

// Summarize computes a Snapshot. The SMA is left at zero on short series.
func Summarize(bars []model.PriceBar) (Snapshot, error) {
	if len(bars) == 0 {
		return Snapshot{}, errors.New("no bars provided")
	}
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	s := Snapshot{Last: closes[len(closes)-1]}
	if sma, err := CalculateSMA(closes, 20); err == nil {
		s.SMA20 = sma
	}
	rsi, err := CalculateRSI(closes, 14)
	if err != nil {
		return Snapshot{}, err
	}
	s.RSI14 = rsi
	year, err := YearRange(bars)
	if err != nil {
		return Snapshot{}, err
	}
	s.Year = year
	s.YearPosition = year.Position(s.Last)
	return s, nil
}
