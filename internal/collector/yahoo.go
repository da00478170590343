package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"MarketForecast/internal/model"
	"MarketForecast/internal/parser"
)

const (
	DefaultChartBaseURL    = "https://query1.finance.yahoo.com/v8/finance/chart"
	DefaultYahooCSVBaseURL = "https://query1.finance.yahoo.com/v7/finance/download"
	defaultClientBackstop  = 30 * time.Second
	chartFallbackRange     = "1y"
	chartMetaRange         = "1mo"
)

// symbolMap maps index aliases to Yahoo tickers.
var symbolMap = map[string]string{
	"SPX500": "^GSPC",
	"SPX":    "^GSPC",
	"SP500":  "^GSPC",
}

func yahooSymbol(symbol string) string {
	if mapped, ok := symbolMap[strings.ToUpper(symbol)]; ok {
		return mapped
	}
	return symbol
}

// period returns the epoch-second bounds covering r, the end day included.
func period(r model.DateRange) (int64, int64) {
	return r.Start.Unix(), r.End.AddDate(0, 0, 1).Unix()
}

// ChartProvider reads daily bars from the Yahoo chart JSON API.
type ChartProvider struct {
	BaseURL string
	Client  *http.Client
}

// NewChartProvider creates a chart provider. An empty baseURL uses Yahoo.
func NewChartProvider(baseURL, proxyURL string) *ChartProvider {
	if baseURL == "" {
		baseURL = DefaultChartBaseURL
	}
	return &ChartProvider{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  newHTTPClient(proxyURL, defaultClientBackstop),
	}
}

func (p *ChartProvider) Name() string         { return "chart" }
func (p *ChartProvider) Source() model.Source { return model.SourceRemoteChartAPI }

// yahooChart is the response structure from the chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				FirstTradeDate *int64 `json:"firstTradeDate"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []interface{} `json:"open"`
					High   []interface{} `json:"high"`
					Low    []interface{} `json:"low"`
					Close  []interface{} `json:"close"`
					Volume []interface{} `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func toFloat(v interface{}) float64 {
	if v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

func at(values []interface{}, i int) float64 {
	if i >= len(values) {
		return 0
	}
	return toFloat(values[i])
}

// Fetch queries the requested window. When that yields no timestamps it is
// replaced by a trailing one-year query.
func (p *ChartProvider) Fetch(ctx context.Context, symbol string, r model.DateRange) ([]model.Row, error) {
	p1, p2 := period(r)
	q := url.Values{}
	q.Set("period1", fmt.Sprint(p1))
	q.Set("period2", fmt.Sprint(p2))
	q.Set("interval", "1d")
	q.Set("includePrePost", "false")

	rows, err := p.fetchChart(ctx, symbol, q)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		return rows, nil
	}

	q = url.Values{}
	q.Set("range", chartFallbackRange)
	q.Set("interval", "1d")
	q.Set("includePrePost", "false")
	return p.fetchChart(ctx, symbol, q)
}

// FirstTradeDate reads the instrument's listing date from the chart metadata.
func (p *ChartProvider) FirstTradeDate(ctx context.Context, symbol string) (time.Time, error) {
	q := url.Values{}
	q.Set("range", chartMetaRange)
	q.Set("interval", "1d")
	chart, err := p.getChart(ctx, symbol, q)
	if err != nil {
		return time.Time{}, err
	}
	if len(chart.Chart.Result) == 0 || chart.Chart.Result[0].Meta.FirstTradeDate == nil {
		return time.Time{}, errors.New("chart: no first trade date")
	}
	return time.Unix(*chart.Chart.Result[0].Meta.FirstTradeDate, 0).UTC(), nil
}

func (p *ChartProvider) getChart(ctx context.Context, symbol string, q url.Values) (*yahooChart, error) {
	u := fmt.Sprintf("%s/%s?%s", p.BaseURL, url.PathEscape(yahooSymbol(symbol)), q.Encode())
	body, err := getBody(ctx, p.Client, u, nil)
	if err != nil {
		return nil, fmt.Errorf("chart fetch: %w", err)
	}
	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("chart decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("chart api error: %s", chart.Chart.Error.Description)
	}
	return &chart, nil
}

func (p *ChartProvider) fetchChart(ctx context.Context, symbol string, q url.Values) ([]model.Row, error) {
	chart, err := p.getChart(ctx, symbol, q)
	if err != nil {
		return nil, err
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 {
		return nil, nil
	}

	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, nil
	}
	quote := result.Indicators.Quote[0]
	rows := make([]model.Row, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		o, h, l, c := at(quote.Open, i), at(quote.High, i), at(quote.Low, i), at(quote.Close, i)
		if o == 0 && h == 0 && l == 0 && c == 0 {
			continue // null bars (holidays etc.)
		}
		rows = append(rows, model.Row{
			Date:   time.Unix(ts, 0).UTC().Format(model.DateLayout),
			Open:   o,
			High:   h,
			Low:    l,
			Close:  c,
			Volume: at(quote.Volume, i),
		})
	}
	return rows, nil
}

// YahooCSVProvider reads the Yahoo history download, preferring adjusted closes.
type YahooCSVProvider struct {
	BaseURL string
	Client  *http.Client
}

// NewYahooCSVProvider creates a CSV download provider. An empty baseURL uses Yahoo.
func NewYahooCSVProvider(baseURL, proxyURL string) *YahooCSVProvider {
	if baseURL == "" {
		baseURL = DefaultYahooCSVBaseURL
	}
	return &YahooCSVProvider{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  newHTTPClient(proxyURL, defaultClientBackstop),
	}
}

func (p *YahooCSVProvider) Name() string         { return "yahoo-csv" }
func (p *YahooCSVProvider) Source() model.Source { return model.SourceRemoteCSVAPI }

func (p *YahooCSVProvider) Fetch(ctx context.Context, symbol string, r model.DateRange) ([]model.Row, error) {
	p1, p2 := period(r)
	q := url.Values{}
	q.Set("period1", fmt.Sprint(p1))
	q.Set("period2", fmt.Sprint(p2))
	q.Set("interval", "1d")
	q.Set("events", "history")
	q.Set("includeAdjustedClose", "true")
	u := fmt.Sprintf("%s/%s?%s", p.BaseURL, url.PathEscape(yahooSymbol(symbol)), q.Encode())

	body, err := getBody(ctx, p.Client, u, nil)
	if err != nil {
		return nil, fmt.Errorf("yahoo csv fetch: %w", err)
	}
	rows, _ := parser.Parse(bytes.NewReader(body), parser.Options{PreferAdjClose: true})
	return rows, nil
}
