package collector

import (
	"context"
	"time"

	"MarketForecast/internal/model"
)

// MockProvider returns controllable fixed data for development and testing.
type MockProvider struct {
	ProviderName string
	Tag          model.Source
	Price        float64
	Rows         []model.Row
	Err          error
	Delay        time.Duration
	Calls        int
}

func (m *MockProvider) Name() string {
	if m.ProviderName == "" {
		return "mock"
	}
	return m.ProviderName
}

func (m *MockProvider) Source() model.Source {
	if m.Tag == "" {
		return model.SourceRemoteCSVAPI
	}
	return m.Tag
}

func (m *MockProvider) Fetch(ctx context.Context, _ string, r model.DateRange) ([]model.Row, error) {
	m.Calls++
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Rows != nil {
		return m.Rows, nil
	}
	if m.Price <= 0 {
		return nil, nil
	}
	return generateMockRows(m.Price, r), nil
}

// generateMockRows produces one gently rising row per weekday in r.
func generateMockRows(basePrice float64, r model.DateRange) []model.Row {
	var rows []model.Row
	i := 0
	for d := r.Start; !d.After(r.End); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		p := basePrice * (1 + float64(i)*0.001)
		rows = append(rows, model.Row{
			Date:   d.Format(model.DateLayout),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		})
		i++
	}
	return rows
}
