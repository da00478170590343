package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"MarketForecast/internal/ledger"
	"MarketForecast/internal/notifier"
	"MarketForecast/internal/pipeline"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Forecaster produces one symbol forecast.
type Forecaster interface {
	PredictSymbol(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// Sender delivers a formatted message.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

const (
	sendRetries  = 3
	historyLimit = 10
)

// Scheduler runs the watchlist forecast on a cron schedule and answers chat commands.
type Scheduler struct {
	Cron        *cron.Cron
	Forecaster  Forecaster
	Ledger      *ledger.Ledger
	Notifier    Sender
	Symbols     []string
	Lightweight bool
	Ctx         context.Context
	Now         func() time.Time
}

// NewScheduler creates a new Scheduler. A nil notifier disables delivery.
func NewScheduler(ctx context.Context, f Forecaster, l *ledger.Ledger, n Sender, symbols []string) *Scheduler {
	return &Scheduler{
		Cron:       cron.New(cron.WithSeconds()),
		Forecaster: f,
		Ledger:     l,
		Notifier:   n,
		Symbols:    symbols,
		Ctx:        ctx,
		Now:        time.Now,
	}
}

// RegisterAll registers the watchlist task.
func (s *Scheduler) RegisterAll(watchlistCron string) error {
	if _, err := s.Cron.AddFunc(watchlistCron, s.watchlistTask); err != nil {
		return fmt.Errorf("register watchlist task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Info().Int("symbols", len(s.Symbols)).Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for a running task.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Info().Msg("scheduler stopped")
}

// RunNow executes the watchlist task immediately and returns the message it sent.
func (s *Scheduler) RunNow() string {
	return s.runWatchlist()
}

func (s *Scheduler) watchlistTask() {
	s.runWatchlist()
}

func (s *Scheduler) runWatchlist() string {
	if len(s.Symbols) == 0 {
		log.Warn().Msg("watchlist is empty, nothing to forecast")
		return ""
	}
	reports := make([]string, 0, len(s.Symbols))
	failed := 0
	for _, sym := range s.Symbols {
		if err := s.Ctx.Err(); err != nil {
			log.Warn().Err(err).Msg("watchlist run cancelled")
			return ""
		}
		report, err := s.forecast(sym)
		if err != nil {
			failed++
		}
		reports = append(reports, report)
	}
	log.Info().Int("symbols", len(s.Symbols)).Int("failed", failed).Msg("watchlist forecast complete")

	msg := notifier.FormatWatchlist(s.Now(), reports)
	s.trySend(msg)
	return msg
}

func (s *Scheduler) forecast(symbol string) (string, error) {
	res, err := s.Forecaster.PredictSymbol(s.Ctx, pipeline.Request{Symbol: symbol, Lightweight: s.Lightweight})
	if err != nil {
		log.Error().Err(err).Str("symbol", symbol).Msg("forecast failed")
		return notifier.FormatFailure(symbol, err), err
	}
	return notifier.FormatPrediction(res.Prediction, res.Bars), nil
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return helpText()
	}
	switch strings.ToLower(fields[0]) {
	case "/predict":
		if len(fields) < 2 {
			return "Usage: /predict SYMBOL"
		}
		report, _ := s.forecast(fields[1])
		return report
	case "/watchlist":
		s.watchlistTask()
		return ""
	case "/history":
		if s.Ledger == nil {
			return "History is not available."
		}
		return notifier.FormatHistory(s.Ledger.Summary(), s.Ledger.List(), historyLimit)
	default:
		return helpText()
	}
}

func helpText() string {
	return "Commands:\n/predict SYMBOL - forecast the next step\n/watchlist - forecast every watched symbol\n/history - recent predictions"
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, text, sendRetries); err != nil {
		log.Error().Err(err).Msg("send notification failed")
	}
}
