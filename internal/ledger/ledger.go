// Package ledger keeps the bounded, newest-first history of emitted predictions.
package ledger

import (
	"context"
	"sync"

	"MarketForecast/internal/model"

	"github.com/rs/zerolog/log"
)

// DefaultCapacity is the number of records kept before the oldest are evicted.
const DefaultCapacity = 1000

const (
	recentWindow = 30
	trendWindow  = 7
)

// Ledger is safe for concurrent use.
type Ledger struct {
	mu       sync.Mutex
	records  []model.PredictionRecord
	store    Store
	capacity int
}

// New loads the ledger from store. Unreadable state starts an empty ledger.
func New(ctx context.Context, store Store, capacity int) *Ledger {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if store == nil {
		store = NewMemoryStore()
	}
	records, err := store.Load(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("ledger state unreadable, starting empty")
		records = nil
	}
	if len(records) > capacity {
		records = records[:capacity]
	}
	return &Ledger{records: records, store: store, capacity: capacity}
}

// Record inserts rec at the front and persists the truncated ledger. The
// in-memory ledger keeps the record even when persisting fails.
func (l *Ledger) Record(ctx context.Context, rec model.PredictionRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := make([]model.PredictionRecord, 0, min(len(l.records)+1, l.capacity))
	next = append(next, rec)
	next = append(next, l.records...)
	if len(next) > l.capacity {
		next = next[:l.capacity]
	}
	l.records = next

	if err := l.store.Save(ctx, l.records); err != nil {
		log.Error().Err(err).Str("symbol", rec.Symbol).Msg("failed to persist ledger")
		return err
	}
	return nil
}

// List returns a copy of the records, newest first.
func (l *Ledger) List() []model.PredictionRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]model.PredictionRecord(nil), l.records...)
}

// Len returns the number of stored records.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// TrendPoint is one entry of the recent confidence trend.
type TrendPoint struct {
	Date       string `json:"date"`
	Confidence int    `json:"confidence"`
}

// Summary aggregates the ledger for dashboards.
type Summary struct {
	Total         int             `json:"total"`
	UpShare       int             `json:"up_share"`
	Recent        int             `json:"recent"`
	LastDirection model.Direction `json:"last_direction,omitempty"`
	Trend         []TrendPoint    `json:"trend"`
}

// Summary reports the total count, the rounded percentage of UP calls, the
// size of the last-30 slice and the last 7 confidences oldest first.
func (l *Ledger) Summary() Summary {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := Summary{Total: len(l.records), Recent: min(len(l.records), recentWindow)}
	if s.Total == 0 {
		s.Trend = []TrendPoint{}
		return s
	}
	s.LastDirection = l.records[0].Direction

	up := 0
	for _, r := range l.records {
		if r.Direction == model.DirectionUp {
			up++
		}
	}
	s.UpShare = (up*100 + s.Total/2) / s.Total

	n := min(len(l.records), trendWindow)
	s.Trend = make([]TrendPoint, n)
	for i := 0; i < n; i++ {
		r := l.records[n-1-i]
		s.Trend[i] = TrendPoint{Date: r.Date, Confidence: r.Confidence}
	}
	return s
}
