package collector

import (
	"context"
	"errors"
	"fmt"

	"MarketForecast/internal/model"
)

var (
	// ErrNoDataAvailable is returned when every provider in the cascade failed.
	ErrNoDataAvailable = errors.New("no data available")
	// ErrEmpty marks a provider response that held no usable rows.
	ErrEmpty = errors.New("no usable rows")
)

// Provider fetches raw daily rows for a symbol over a date range.
type Provider interface {
	Name() string
	Source() model.Source
	Fetch(ctx context.Context, symbol string, r model.DateRange) ([]model.Row, error)
}

// fullHistory is implemented by providers that ignore the requested range and
// return the instrument's whole history.
type fullHistory interface {
	FullHistory() bool
}

// FetchError records why a single provider produced nothing.
type FetchError struct {
	Provider string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
