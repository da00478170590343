package model

import "time"

// DateLayout is the ISO calendar-date form used for every PriceBar date.
const DateLayout = "2006-01-02"

// Row is one parsed but not yet validated observation from a provider or file.
type Row struct {
	Date   string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// PriceBar is one validated instrument-day observation.
type PriceBar struct {
	Date   string  `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Row converts the bar back to its unvalidated form.
func (b PriceBar) Row() Row {
	return Row{Date: b.Date, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume}
}

// DateRange is an inclusive calendar range with Start <= End.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// StartISO returns the start date in DateLayout form.
func (r DateRange) StartISO() string { return r.Start.Format(DateLayout) }

// EndISO returns the end date in DateLayout form.
func (r DateRange) EndISO() string { return r.End.Format(DateLayout) }

// Contains reports whether the ISO date falls inside the range, bounds included.
func (r DateRange) Contains(date string) bool {
	return date >= r.StartISO() && date <= r.EndISO()
}
