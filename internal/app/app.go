// Package app assembles the forecasting pipeline from configuration.
package app

import (
	"context"
	"fmt"

	"MarketForecast/internal/collector"
	"MarketForecast/internal/config"
	"MarketForecast/internal/daterange"
	"MarketForecast/internal/ledger"
	"MarketForecast/internal/metrics"
	"MarketForecast/internal/pipeline"
	"MarketForecast/internal/predictor"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Options selects which optional parts are wired.
type Options struct {
	// UseService puts the local aggregation service first in the cascade and
	// uses it as the remote predictor. Ignored when service.base_url is empty.
	UseService bool
}

// App is a fully wired pipeline plus the resources it owns.
type App struct {
	Config    *config.Config
	Service   *pipeline.Service
	Ledger    *ledger.Ledger
	Registry  *prometheus.Registry
	Metrics   *metrics.Recorder
	Providers []collector.Provider

	closers []func() error
}

// New wires the pipeline described by cfg.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	reg := prometheus.NewRegistry()
	rec := metrics.New(reg)
	a := &App{Config: cfg, Registry: reg, Metrics: rec}

	store, err := a.openStore()
	if err != nil {
		return nil, err
	}
	a.Ledger = ledger.New(ctx, store, cfg.Ledger.Capacity)

	chart := collector.NewChartProvider(cfg.Providers.ChartBaseURL, cfg.Proxy)
	var remote pipeline.RemotePredictor
	if opts.UseService && cfg.Service.BaseURL != "" {
		svc := collector.NewServiceProvider(cfg.Service.BaseURL, cfg.Service.APIKey, cfg.Proxy)
		a.Providers = append(a.Providers, svc)
		remote = svc
	}
	a.Providers = append(a.Providers,
		chart,
		collector.NewStooqProvider(cfg.Providers.StooqBaseURL, cfg.Proxy),
		collector.NewYahooCSVProvider(cfg.Providers.YahooCSVBaseURL, cfg.Proxy),
	)

	names := make([]string, len(a.Providers))
	for i, p := range a.Providers {
		names[i] = p.Name()
	}
	log.Info().Strs("providers", names).Str("ledger", cfg.Ledger.Backend).Msg("pipeline wired")

	clf := predictor.DefaultClassifierConfig()
	clf.Epochs = cfg.Predictor.Epochs
	clf.Seed = cfg.Predictor.Seed

	a.Service = &pipeline.Service{
		Ranges:    daterange.NewNormalizer(chart, cfg.Providers.Timeout),
		Fetcher:   collector.NewOrchestrator(cfg.Providers.Timeout, rec, a.Providers...),
		Remote:    remote,
		Predictor: predictor.New(predictor.Config{Window: cfg.Predictor.Window, Classifier: clf}, rec),
		Ledger:    a.Ledger,
		Timeout:   cfg.Providers.Timeout,
	}
	return a, nil
}

func (a *App) openStore() (ledger.Store, error) {
	cfg := a.Config.Ledger
	switch cfg.Backend {
	case config.BackendMemory:
		return ledger.NewMemoryStore(), nil
	case config.BackendFile:
		return ledger.NewFileStore(cfg.Path), nil
	case config.BackendSQLite:
		s, err := ledger.NewSQLiteStore(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite ledger: %w", err)
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Backend)
	}
}

// Close releases the ledger store.
func (a *App) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
