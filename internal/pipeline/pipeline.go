// Package pipeline wires range resolution, data collection, prediction and
// the ledger into the end-to-end forecasting use cases.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"MarketForecast/internal/collector"
	"MarketForecast/internal/ledger"
	"MarketForecast/internal/model"
	"MarketForecast/internal/parser"
	"MarketForecast/internal/predictor"
	"MarketForecast/internal/series"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// MaxInferencePoints caps how many trailing closes feed the predictor.
const MaxInferencePoints = 500

var (
	// ErrEmptySymbol is returned when no ticker was given.
	ErrEmptySymbol = errors.New("symbol is required")
	// ErrNoRows is returned when an uploaded file holds no usable rows.
	ErrNoRows = errors.New("file contains no valid price rows")
)

// NoDataError is returned when every provider failed for a symbol. It wraps
// collector.ErrNoDataAvailable.
type NoDataError struct {
	Symbol string
	Err    error
}

func (e *NoDataError) Error() string {
	return fmt.Sprintf("no price data available for %s from any provider; supply a CSV file with predict-file instead", e.Symbol)
}

func (e *NoDataError) Unwrap() error { return e.Err }

// Fetcher returns a sanitized series for a symbol.
type Fetcher interface {
	Fetch(ctx context.Context, symbol string, r model.DateRange) (*collector.FetchResult, error)
}

// RangeResolver turns raw user dates into a bounded range.
type RangeResolver interface {
	Resolve(ctx context.Context, symbol, rawStart, rawEnd string) model.DateRange
}

// RemotePredictor delegates whole predictions to another service.
type RemotePredictor interface {
	Predict(ctx context.Context, symbol string, r model.DateRange, lightweight bool) (*model.Prediction, error)
	PredictFile(ctx context.Context, name string, file io.Reader) (*model.Prediction, error)
}

// Request describes a symbol forecast.
type Request struct {
	Symbol      string
	Start       string
	End         string
	Lightweight bool
}

// Result is a prediction together with how it was produced.
type Result struct {
	Prediction model.Prediction
	Mode       predictor.Mode
	Range      model.DateRange
	Provider   string
	// Bars is the series the local predictor saw; nil for remote predictions.
	Bars []model.PriceBar
}

// Service runs the forecasting use cases. Remote and Ledger are optional.
type Service struct {
	Ranges    RangeResolver
	Fetcher   Fetcher
	Remote    RemotePredictor
	Predictor *predictor.Predictor
	Ledger    *ledger.Ledger
	Now       func() time.Time
	// Timeout bounds each remote predictor call; zero means collector.DefaultCallTimeout.
	Timeout time.Duration
}

// NormalizeSymbol trims and upper-cases a ticker.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func (s *Service) remoteContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = collector.DefaultCallTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// PredictSymbol forecasts the next step of symbol. The remote predictor is tried
// first when configured; otherwise (or when it fails) the provider cascade and
// the local predictor are used.
func (s *Service) PredictSymbol(ctx context.Context, req Request) (*Result, error) {
	symbol := NormalizeSymbol(req.Symbol)
	if symbol == "" {
		return nil, ErrEmptySymbol
	}
	r := s.Ranges.Resolve(ctx, symbol, req.Start, req.End)

	if s.Remote != nil {
		rctx, cancel := s.remoteContext(ctx)
		pred, err := s.Remote.Predict(rctx, symbol, r, req.Lightweight)
		cancel()
		if err == nil {
			pred.Source = model.SourceRemoteService
			if pred.Symbol == "" {
				pred.Symbol = symbol
			}
			if pred.Date == "" {
				pred.Date = r.EndISO()
			}
			res := &Result{Prediction: *pred, Mode: predictor.ModeNotReady, Range: r, Provider: "service"}
			s.record(ctx, res.Prediction)
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn().Err(err).Str("symbol", symbol).Msg("remote predictor failed, predicting locally")
	}

	fetched, err := s.Fetcher.Fetch(ctx, symbol, r)
	if err != nil {
		if errors.Is(err, collector.ErrNoDataAvailable) {
			return nil, &NoDataError{Symbol: symbol, Err: err}
		}
		return nil, err
	}

	closes := series.Tail(series.Closes(fetched.Bars), MaxInferencePoints)
	out := s.Predictor.Predict(ctx, closes, predictor.Options{Lightweight: req.Lightweight})

	source := model.SourceClientFallback
	if out.Mode == predictor.ModeTrained {
		source = fetched.Source
	}
	pred := model.Prediction{
		Direction:  out.Direction,
		Confidence: out.Confidence,
		Symbol:     symbol,
		Date:       fetched.Bars[len(fetched.Bars)-1].Date,
		Source:     source,
		Points:     len(closes),
	}
	log.Info().Str("symbol", symbol).Str("provider", fetched.Provider).Str("mode", out.Mode.String()).
		Str("direction", string(pred.Direction)).Int("confidence", pred.Confidence).Msg("prediction ready")

	s.record(ctx, pred)
	return &Result{Prediction: pred, Mode: out.Mode, Range: r, Provider: fetched.Provider, Bars: fetched.Bars}, nil
}

// PredictFile forecasts from an uploaded CSV. It never touches the data
// providers.
func (s *Service) PredictFile(ctx context.Context, name string, file io.Reader, lightweight bool) (*Result, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	if s.Remote != nil {
		rctx, cancel := s.remoteContext(ctx)
		pred, err := s.Remote.PredictFile(rctx, name, bytes.NewReader(data))
		cancel()
		if err == nil {
			pred.Source = model.SourceFileUpload
			pred.Symbol = name
			res := &Result{Prediction: *pred, Mode: predictor.ModeNotReady, Provider: "service"}
			s.record(ctx, res.Prediction)
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn().Err(err).Str("file", name).Msg("remote file predictor failed, predicting locally")
	}

	rows, stats := parser.Parse(bytes.NewReader(data), parser.Options{})
	bars := series.Sanitize(rows)
	log.Debug().Str("file", name).Int("rows", stats.Rows).Int("dropped", stats.Dropped).Int("points", len(bars)).Msg("parsed upload")
	if len(bars) == 0 {
		return nil, ErrNoRows
	}

	closes := series.Tail(series.Closes(bars), MaxInferencePoints)
	out := s.Predictor.Predict(ctx, closes, predictor.Options{Lightweight: lightweight})
	pred := model.Prediction{
		Direction:  out.Direction,
		Confidence: out.Confidence,
		Symbol:     name,
		Date:       bars[len(bars)-1].Date,
		Source:     model.SourceFileUpload,
		Points:     len(closes),
	}
	s.record(ctx, pred)
	return &Result{Prediction: pred, Mode: out.Mode, Provider: "file", Bars: bars}, nil
}

// OHLCResult is the bar series for a symbol and range.
type OHLCResult struct {
	Bars     []model.PriceBar
	Range    model.DateRange
	Source   model.Source
	Provider string
}

// OHLC returns the sanitized bars for symbol restricted to the resolved range.
// An empty restriction falls back to the whole series.
func (s *Service) OHLC(ctx context.Context, symbol, rawStart, rawEnd string) (*OHLCResult, error) {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, ErrEmptySymbol
	}
	r := s.Ranges.Resolve(ctx, symbol, rawStart, rawEnd)
	fetched, err := s.Fetcher.Fetch(ctx, symbol, r)
	if err != nil {
		if errors.Is(err, collector.ErrNoDataAvailable) {
			return nil, &NoDataError{Symbol: symbol, Err: err}
		}
		return nil, err
	}
	return &OHLCResult{
		Bars:     series.FilterRange(fetched.Bars, r),
		Range:    r,
		Source:   fetched.Source,
		Provider: fetched.Provider,
	}, nil
}

func (s *Service) record(ctx context.Context, p model.Prediction) {
	if s.Ledger == nil {
		return
	}
	rec := model.PredictionRecord{
		ID:         uuid.NewString(),
		Symbol:     p.Symbol,
		Date:       p.Date,
		Direction:  p.Direction,
		Confidence: p.Confidence,
		Source:     p.Source,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.Ledger.Record(ctx, rec); err != nil {
		log.Warn().Err(err).Str("symbol", p.Symbol).Msg("prediction not persisted")
	}
}
