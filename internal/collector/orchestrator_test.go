package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"MarketForecast/internal/metrics"
	"MarketForecast/internal/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRange() model.DateRange {
	return model.DateRange{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	}
}

func testRecorder() *metrics.Recorder {
	return metrics.New(prometheus.NewRegistry())
}

func TestOrchestrator_FallsThroughToFirstProviderWithData(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer failing.Close()

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":[{"timestamp":[],"indicators":{"quote":[{}]}}],"error":null}}`)
	}))
	defer empty.Close()

	csv := "Date,Open,High,Low,Close,Volume\n" +
		"2024-01-02,10,11,9,10.5,100\n" +
		"2024-01-03,10.5,12,10,11,100\n" +
		"2024-01-04,11,12,10,11.5,100\n" +
		"2024-01-05,11.5,13,11,12,100\n" +
		"2024-01-08,12,13,11,12.5,100\n"
	withData := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, csv)
	}))
	defer withData.Close()

	o := NewOrchestrator(time.Second, testRecorder(),
		NewServiceProvider(failing.URL, "", ""),
		NewChartProvider(empty.URL, ""),
		NewStooqProvider(withData.URL, ""),
	)

	res, err := o.Fetch(context.Background(), "AAPL", testRange())
	require.NoError(t, err)
	assert.Equal(t, "stooq", res.Provider)
	assert.Equal(t, model.SourceRemoteCSVAPI, res.Source)
	require.Len(t, res.Bars, 5)
	assert.Equal(t, "2024-01-02", res.Bars[0].Date)
	assert.Equal(t, 12.5, res.Bars[4].Close)
}

func TestOrchestrator_StopsAtFirstSuccess(t *testing.T) {
	first := &MockProvider{ProviderName: "first", Tag: model.SourceRemoteService, Price: 100}
	second := &MockProvider{ProviderName: "second", Price: 50}

	res, err := NewOrchestrator(time.Second, nil, first, second).Fetch(context.Background(), "X", testRange())
	require.NoError(t, err)
	assert.Equal(t, model.SourceRemoteService, res.Source)
	assert.Equal(t, 1, first.Calls)
	assert.Equal(t, 0, second.Calls)
}

func TestOrchestrator_InvalidRowsCountAsEmpty(t *testing.T) {
	bad := &MockProvider{ProviderName: "bad", Rows: []model.Row{{Date: "2024/01/02", Close: 1, Open: 1, High: 1, Low: 1}}}
	good := &MockProvider{ProviderName: "good", Price: 10}

	res, err := NewOrchestrator(time.Second, nil, bad, good).Fetch(context.Background(), "X", testRange())
	require.NoError(t, err)
	assert.Equal(t, "good", res.Provider)
}

func TestOrchestrator_Exhausted(t *testing.T) {
	o := NewOrchestrator(time.Second, testRecorder(),
		&MockProvider{ProviderName: "a", Err: errors.New("network down")},
		&MockProvider{ProviderName: "b"},
	)
	_, err := o.Fetch(context.Background(), "X", testRange())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoDataAvailable)
	assert.ErrorIs(t, err, ErrEmpty)

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "a", fe.Provider)
}

func TestOrchestrator_NoProviders(t *testing.T) {
	_, err := NewOrchestrator(0, nil).Fetch(context.Background(), "X", testRange())
	assert.ErrorIs(t, err, ErrNoDataAvailable)
}

func TestOrchestrator_TimeoutFallsBack(t *testing.T) {
	slow := &MockProvider{ProviderName: "slow", Price: 10, Delay: time.Second}
	fast := &MockProvider{ProviderName: "fast", Price: 20}

	res, err := NewOrchestrator(20*time.Millisecond, nil, slow, fast).Fetch(context.Background(), "X", testRange())
	require.NoError(t, err)
	assert.Equal(t, "fast", res.Provider)
}

func TestOrchestrator_ParentCancelAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	next := &MockProvider{Price: 10}

	_, err := NewOrchestrator(time.Second, nil, next).Fetch(ctx, "X", testRange())
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrNoDataAvailable)
	assert.Equal(t, 0, next.Calls)
}

func TestOrchestrator_FullHistoryIsRangeFiltered(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "Date,Close\n2023-12-29,9\n2024-01-02,10\n2024-02-01,11\n")
	}))
	defer srv.Close()

	res, err := NewOrchestrator(time.Second, nil, NewStooqProvider(srv.URL, "")).Fetch(context.Background(), "X", testRange())
	require.NoError(t, err)
	require.Len(t, res.Bars, 1)
	assert.Equal(t, "2024-01-02", res.Bars[0].Date)
}
