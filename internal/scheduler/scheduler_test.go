package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"MarketForecast/internal/ledger"
	"MarketForecast/internal/model"
	"MarketForecast/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubForecaster struct {
	mu   sync.Mutex
	fail map[string]bool
	seen []string
}

func (f *stubForecaster) PredictSymbol(_ context.Context, req pipeline.Request) (*pipeline.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, req.Symbol)
	if f.fail[req.Symbol] {
		return nil, &pipeline.NoDataError{Symbol: req.Symbol, Err: errors.New("all providers failed")}
	}
	return &pipeline.Result{Prediction: model.Prediction{
		Symbol: req.Symbol, Date: "2024-06-28", Direction: model.DirectionUp,
		Confidence: 61, Source: model.SourceRemoteChartAPI, Points: 120,
	}}, nil
}

type captureSender struct {
	msgs []string
	err  error
}

func (c *captureSender) SendWithRetry(_ context.Context, text string, _ int) error {
	c.msgs = append(c.msgs, text)
	return c.err
}

func newTestScheduler(f Forecaster, n Sender, symbols ...string) *Scheduler {
	l := ledger.New(context.Background(), ledger.NewMemoryStore(), 0)
	s := NewScheduler(context.Background(), f, l, n, symbols)
	s.Now = func() time.Time { return time.Date(2024, 6, 28, 9, 0, 0, 0, time.UTC) }
	return s
}

func TestRunNowReportsEverySymbol(t *testing.T) {
	f := &stubForecaster{fail: map[string]bool{"NOPE": true}}
	sender := &captureSender{}
	s := newTestScheduler(f, sender, "SPY", "NOPE", "QQQ")

	msg := s.RunNow()

	assert.Equal(t, []string{"SPY", "NOPE", "QQQ"}, f.seen)
	require.Len(t, sender.msgs, 1)
	assert.Equal(t, msg, sender.msgs[0])
	assert.Contains(t, msg, "2024-06-28")
	assert.Contains(t, msg, "<b>SPY</b>")
	assert.Contains(t, msg, "<b>QQQ</b>")
	assert.Contains(t, msg, "no price data available for NOPE")
	assert.NotContains(t, msg, "all providers failed")
}

func TestRunNowEmptyWatchlist(t *testing.T) {
	sender := &captureSender{}
	s := newTestScheduler(&stubForecaster{}, sender)
	assert.Empty(t, s.RunNow())
	assert.Empty(t, sender.msgs)
}

func TestRunNowWithoutNotifier(t *testing.T) {
	s := newTestScheduler(&stubForecaster{}, nil, "SPY")
	assert.Contains(t, s.RunNow(), "SPY")
}

func TestRunNowSendFailureIsLogged(t *testing.T) {
	sender := &captureSender{err: errors.New("telegram down")}
	s := newTestScheduler(&stubForecaster{}, sender, "SPY")
	assert.NotEmpty(t, s.RunNow())
	assert.Len(t, sender.msgs, 1)
}

func TestHandleCommand(t *testing.T) {
	f := &stubForecaster{}
	s := newTestScheduler(f, &captureSender{}, "SPY")

	t.Run("predict", func(t *testing.T) {
		reply := s.HandleCommand("/predict AAPL")
		assert.Contains(t, reply, "AAPL")
		assert.Contains(t, reply, "UP")
		assert.Contains(t, reply, "61%")
	})

	t.Run("predict needs a symbol", func(t *testing.T) {
		assert.Equal(t, "Usage: /predict SYMBOL", s.HandleCommand("/predict"))
	})

	t.Run("history empty", func(t *testing.T) {
		assert.Contains(t, s.HandleCommand("/history"), "No predictions yet.")
	})

	t.Run("history with records", func(t *testing.T) {
		require.NoError(t, s.Ledger.Record(context.Background(), model.PredictionRecord{
			ID: "1", Symbol: "SPY", Date: "2024-06-27", Direction: model.DirectionDown, Confidence: 70,
		}))
		reply := s.HandleCommand("/history")
		assert.Contains(t, reply, "Total: 1")
		assert.Contains(t, reply, "2024-06-27 SPY DOWN 70%")
	})

	t.Run("unknown command shows help", func(t *testing.T) {
		assert.Contains(t, s.HandleCommand("hello"), "/predict SYMBOL")
		assert.Contains(t, s.HandleCommand(""), "/history")
	})
}

func TestRegisterAllRejectsBadSpec(t *testing.T) {
	s := newTestScheduler(&stubForecaster{}, nil, "SPY")
	assert.Error(t, s.RegisterAll("not a cron"))
	assert.NoError(t, s.RegisterAll("0 30 21 * * 1-5"))
	assert.Len(t, s.Cron.Entries(), 1)
}
