package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"MarketForecast/internal/model"
)

// ServiceProvider talks to the local aggregation service. It doubles as a
// remote predictor for symbols and uploaded files.
type ServiceProvider struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewServiceProvider creates a client for the service at baseURL.
func NewServiceProvider(baseURL, apiKey, proxyURL string) *ServiceProvider {
	return &ServiceProvider{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Client:  newHTTPClient(proxyURL, defaultClientBackstop),
	}
}

func (p *ServiceProvider) Name() string         { return "service" }
func (p *ServiceProvider) Source() model.Source { return model.SourceRemoteService }

type ohlcResponse struct {
	Rows  []model.PriceBar `json:"rows"`
	Error string           `json:"error,omitempty"`
}

type predictResponse struct {
	model.Prediction
	Error string `json:"error,omitempty"`
}

func (p *ServiceProvider) header() http.Header {
	h := http.Header{}
	if p.APIKey != "" {
		h.Set("Authorization", "Bearer "+p.APIKey)
	}
	return h
}

func rangeQuery(symbol string, r model.DateRange) url.Values {
	q := url.Values{}
	q.Set("ticker", symbol)
	q.Set("start", r.StartISO())
	q.Set("end", r.EndISO())
	return q
}

func (p *ServiceProvider) Fetch(ctx context.Context, symbol string, r model.DateRange) ([]model.Row, error) {
	endpoint := fmt.Sprintf("%s/ohlc?%s", p.BaseURL, rangeQuery(symbol, r).Encode())
	body, err := getBody(ctx, p.Client, endpoint, p.header())
	if err != nil {
		return nil, fmt.Errorf("service ohlc: %w", err)
	}
	var res ohlcResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("decode ohlc: %w", err)
	}
	if res.Error != "" {
		return nil, fmt.Errorf("service ohlc: %s", res.Error)
	}
	rows := make([]model.Row, len(res.Rows))
	for i, b := range res.Rows {
		rows[i] = b.Row()
	}
	return rows, nil
}

// Predict asks the service for a forecast of symbol over r.
func (p *ServiceProvider) Predict(ctx context.Context, symbol string, r model.DateRange, lightweight bool) (*model.Prediction, error) {
	q := rangeQuery(symbol, r)
	if lightweight {
		q.Set("lite", "true")
	}
	body, err := getBody(ctx, p.Client, fmt.Sprintf("%s/predict?%s", p.BaseURL, q.Encode()), p.header())
	if err != nil {
		return nil, fmt.Errorf("service predict: %w", err)
	}
	return decodePrediction(body)
}

// PredictFile uploads a CSV file to the service for a forecast.
func (p *ServiceProvider) PredictFile(ctx context.Context, name string, file io.Reader) (*model.Prediction, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("copy upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/predict-file", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("User-Agent", userAgent)
	if p.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.APIKey)
	}
	body, err := do(p.Client, req)
	if err != nil {
		return nil, fmt.Errorf("service predict-file: %w", err)
	}
	return decodePrediction(body)
}

func decodePrediction(body []byte) (*model.Prediction, error) {
	var res predictResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("decode prediction: %w", err)
	}
	if res.Error != "" {
		return nil, fmt.Errorf("service: %s", res.Error)
	}
	if res.Direction != model.DirectionUp && res.Direction != model.DirectionDown {
		return nil, fmt.Errorf("service: invalid direction %q", res.Direction)
	}
	if res.Confidence < 0 || res.Confidence > 100 {
		return nil, fmt.Errorf("service: confidence %d out of range", res.Confidence)
	}
	pred := res.Prediction
	return &pred, nil
}
