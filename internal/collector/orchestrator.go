package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"MarketForecast/internal/metrics"
	"MarketForecast/internal/model"
	"MarketForecast/internal/series"

	"github.com/rs/zerolog/log"
)

// DefaultCallTimeout bounds a single provider call.
const DefaultCallTimeout = 8 * time.Second

// FetchResult is the sanitized series from the first provider that had data.
type FetchResult struct {
	Bars     []model.PriceBar
	Source   model.Source
	Provider string
}

// Orchestrator tries providers in order until one yields at least one bar.
type Orchestrator struct {
	Providers []Provider
	Timeout   time.Duration
	Metrics   *metrics.Recorder
}

// NewOrchestrator creates an Orchestrator over providers in the given order.
func NewOrchestrator(timeout time.Duration, rec *metrics.Recorder, providers ...Provider) *Orchestrator {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &Orchestrator{Providers: providers, Timeout: timeout, Metrics: rec}
}

// Fetch walks the cascade. Provider calls run one at a time, each under its own
// deadline. Cancellation of ctx aborts the walk and returns ctx's error.
func (o *Orchestrator) Fetch(ctx context.Context, symbol string, r model.DateRange) (*FetchResult, error) {
	var causes []error
	for _, p := range o.Providers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bars, err := o.try(ctx, p, symbol, r)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn().Err(err).Str("provider", p.Name()).Str("symbol", symbol).Msg("provider failed, falling back")
			causes = append(causes, err)
			continue
		}
		log.Info().Str("provider", p.Name()).Str("symbol", symbol).Int("points", len(bars)).Msg("fetched price series")
		return &FetchResult{Bars: bars, Source: p.Source(), Provider: p.Name()}, nil
	}

	o.Metrics.RecordExhausted()
	log.Error().Str("symbol", symbol).Int("providers", len(o.Providers)).Msg("all providers exhausted")
	if len(causes) == 0 {
		return nil, fmt.Errorf("%w for %s: no providers configured", ErrNoDataAvailable, symbol)
	}
	return nil, fmt.Errorf("%w for %s: %w", ErrNoDataAvailable, symbol, errors.Join(causes...))
}

func (o *Orchestrator) try(ctx context.Context, p Provider, symbol string, r model.DateRange) ([]model.PriceBar, error) {
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	rows, err := p.Fetch(cctx, symbol, r)
	o.Metrics.RecordAttempt(p.Name(), time.Since(start).Seconds())
	if err != nil {
		reason := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "timeout"
		}
		o.Metrics.RecordFailure(p.Name(), reason)
		return nil, &FetchError{Provider: p.Name(), Err: err}
	}

	bars := series.Sanitize(rows)
	if fh, ok := p.(fullHistory); ok && fh.FullHistory() {
		bars = series.FilterRange(bars, r)
	}
	if len(bars) == 0 {
		o.Metrics.RecordFailure(p.Name(), "empty")
		return nil, &FetchError{Provider: p.Name(), Err: ErrEmpty}
	}
	return bars, nil
}
