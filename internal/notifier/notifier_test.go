package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"MarketForecast/internal/ledger"
	"MarketForecast/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNotifier(url string) *TelegramNotifier {
	n := NewTelegramNotifier("TOKEN", "42", "")
	n.APIBase = url
	n.Backoff = time.Millisecond
	return n
}

func TestSend(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	require.NoError(t, newTestNotifier(srv.URL).Send(context.Background(), "hello"))
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "hello", got["text"])
	assert.Equal(t, "HTML", got["parse_mode"])
}

func TestSendWithRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	require.NoError(t, newTestNotifier(srv.URL).SendWithRetry(context.Background(), "hi", 3))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestSendWithRetryExhausted(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := newTestNotifier(srv.URL).SendWithRetry(context.Background(), "hi", 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 3 retries exhausted")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDispatch(t *testing.T) {
	var replies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		replies = append(replies, body["text"])
	}))
	defer srv.Close()

	n := newTestNotifier(srv.URL)
	var updates []telegramUpdate
	require.NoError(t, json.Unmarshal([]byte(`[
		{"update_id": 7, "message": {"text": " /history "}},
		{"update_id": 8},
		{"update_id": 9, "message": {"text": "/silent"}}
	]`), &updates))

	offset := n.dispatch(context.Background(), updates, 0, func(cmd string) string {
		if cmd == "/history" {
			return "history reply"
		}
		return ""
	})
	assert.Equal(t, 10, offset)
	assert.Equal(t, []string{"history reply"}, replies)
}

func TestStartPollingStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/getUpdates", r.URL.Path)
		_, _ = w.Write([]byte(`{"ok":true,"result":[{"update_id":1,"message":{"text":"/help"}}]}`))
		cancel()
	}))
	defer srv.Close()

	done := make(chan struct{})
	go func() {
		newTestNotifier(srv.URL).StartPolling(ctx, func(string) string { return "" })
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("polling did not stop after cancel")
	}
}

func makeBars(n int) []model.PriceBar {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]model.PriceBar, n)
	for i := range bars {
		p := 100 + float64(i%7)
		bars[i] = model.PriceBar{Date: start.AddDate(0, 0, i).Format(model.DateLayout), Open: p, High: p + 1, Low: p - 1, Close: p}
	}
	return bars
}

func TestFormatPrediction(t *testing.T) {
	p := model.Prediction{Symbol: "S&P", Date: "2024-06-28", Direction: model.DirectionDown, Confidence: 72, Source: model.SourceRemoteCSVAPI, Points: 60}

	plain := FormatPrediction(p, nil)
	assert.Contains(t, plain, "<b>S&amp;P</b>")
	assert.Contains(t, plain, "DOWN")
	assert.Contains(t, plain, "(72%)")
	assert.Contains(t, plain, "remote-csv-api")
	assert.NotContains(t, plain, "RSI14")

	rich := FormatPrediction(p, makeBars(60))
	assert.Contains(t, rich, "Last close:")
	assert.Contains(t, rich, "SMA20:")
	assert.Contains(t, rich, "RSI14:")
	assert.Contains(t, rich, "52w range:")
}

func TestFormatFailure(t *testing.T) {
	assert.Equal(t, "❌ <b>X</b>: boom &lt;1&gt;", FormatFailure("X", errors.New("boom <1>")))
}

func TestFormatHistory(t *testing.T) {
	recs := []model.PredictionRecord{
		{Symbol: "SPY", Date: "2024-06-28", Direction: model.DirectionUp, Confidence: 60},
		{Symbol: "QQQ", Date: "2024-06-27", Direction: model.DirectionDown, Confidence: 55},
	}
	s := ledger.Summary{Total: 2, UpShare: 50, Recent: 2, Trend: []ledger.TrendPoint{{Confidence: 55}, {Confidence: 60}}}

	out := FormatHistory(s, recs, 1)
	assert.Contains(t, out, "Total: 2 | Last 30: 2 | UP share: 50%")
	assert.Contains(t, out, "55 → 60")
	assert.Contains(t, out, "2024-06-28 SPY UP 60%")
	assert.NotContains(t, out, "QQQ")

	assert.Contains(t, FormatHistory(ledger.Summary{}, nil, 5), "No predictions yet.")
}
