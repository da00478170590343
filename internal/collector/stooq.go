package collector

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"MarketForecast/internal/model"
	"MarketForecast/internal/parser"

	"github.com/rs/zerolog/log"
)

const (
	DefaultStooqBaseURL = "https://stooq.com/q/d/l/"
	stooqMarketSuffix   = ".us"
)

// StooqProvider downloads the full daily history CSV from Stooq. A bare
// ticker that returns nothing is retried with the US market suffix.
type StooqProvider struct {
	BaseURL string
	Client  *http.Client
}

// NewStooqProvider creates a Stooq provider. An empty baseURL uses stooq.com.
func NewStooqProvider(baseURL, proxyURL string) *StooqProvider {
	if baseURL == "" {
		baseURL = DefaultStooqBaseURL
	}
	return &StooqProvider{
		BaseURL: baseURL,
		Client:  newHTTPClient(proxyURL, defaultClientBackstop),
	}
}

func (p *StooqProvider) Name() string         { return "stooq" }
func (p *StooqProvider) Source() model.Source { return model.SourceRemoteCSVAPI }

// FullHistory reports that results need range filtering.
func (p *StooqProvider) FullHistory() bool { return true }

func (p *StooqProvider) Fetch(ctx context.Context, symbol string, _ model.DateRange) ([]model.Row, error) {
	ticker := strings.ToLower(symbol)
	rows, err := p.fetchCSV(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 || strings.Contains(ticker, ".") {
		return rows, nil
	}
	log.Debug().Str("symbol", symbol).Msg("stooq: retrying with market suffix")
	return p.fetchCSV(ctx, ticker+stooqMarketSuffix)
}

func (p *StooqProvider) fetchCSV(ctx context.Context, ticker string) ([]model.Row, error) {
	q := url.Values{}
	q.Set("s", ticker)
	q.Set("i", "d")
	sep := "?"
	if strings.Contains(p.BaseURL, "?") {
		sep = "&"
	}
	body, err := getBody(ctx, p.Client, p.BaseURL+sep+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("stooq fetch %s: %w", ticker, err)
	}
	rows, stats := parser.Parse(bytes.NewReader(body), parser.Options{})
	if stats.Rows == 0 {
		log.Debug().Str("ticker", ticker).Int("dropped", stats.Dropped).Msg("stooq: no rows in response")
	}
	return rows, nil
}
