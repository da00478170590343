package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"MarketForecast/internal/calculator"
	"MarketForecast/internal/ledger"
	"MarketForecast/internal/model"
)

func arrow(d model.Direction) string {
	if d == model.DirectionUp {
		return "🟢 UP"
	}
	return "🔴 DOWN"
}

// FormatPrediction formats one forecast, with indicator context when bars are known.
func FormatPrediction(p model.Prediction, bars []model.PriceBar) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📈 <b>%s</b> | %s\n\n", html.EscapeString(p.Symbol), p.Date))
	b.WriteString(fmt.Sprintf("Next step: <b>%s</b> (%d%%)\n", arrow(p.Direction), p.Confidence))
	b.WriteString(fmt.Sprintf("Source: %s | Points: %d\n", p.Source, p.Points))

	if len(bars) > 0 {
		if snap, err := calculator.Summarize(bars); err == nil {
			b.WriteString("\n")
			b.WriteString(fmt.Sprintf("Last close: %.2f\n", snap.Last))
			if snap.SMA20 > 0 {
				b.WriteString(fmt.Sprintf("SMA20: %.2f (%+.1f%%)\n", snap.SMA20, (snap.Last-snap.SMA20)/snap.SMA20*100))
			}
			b.WriteString(fmt.Sprintf("RSI14: %.0f\n", snap.RSI14))
			b.WriteString(fmt.Sprintf("52w range: %.2f - %.2f (%.0f%%)\n", snap.Year.Low, snap.Year.High, snap.YearPosition*100))
		}
	}
	return b.String()
}

// FormatFailure formats a forecast that could not be produced.
func FormatFailure(symbol string, err error) string {
	return fmt.Sprintf("❌ <b>%s</b>: %s", html.EscapeString(symbol), html.EscapeString(err.Error()))
}

// FormatWatchlist joins per-symbol reports into one scheduled message.
func FormatWatchlist(now time.Time, reports []string) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🗓 <b>Watchlist forecast</b> | %s\n", now.Format("2006-01-02")))
	for _, r := range reports {
		b.WriteString("\n")
		b.WriteString(r)
	}
	return b.String()
}

// FormatHistory formats the ledger summary and the most recent records.
func FormatHistory(s ledger.Summary, recent []model.PredictionRecord, limit int) string {
	var b strings.Builder
	b.WriteString("📜 <b>Prediction history</b>\n\n")
	if s.Total == 0 {
		b.WriteString("No predictions yet.")
		return b.String()
	}
	b.WriteString(fmt.Sprintf("Total: %d | Last 30: %d | UP share: %d%%\n", s.Total, s.Recent, s.UpShare))
	if len(s.Trend) > 0 {
		parts := make([]string, len(s.Trend))
		for i, tp := range s.Trend {
			parts[i] = fmt.Sprintf("%d", tp.Confidence)
		}
		b.WriteString(fmt.Sprintf("Confidence trend: %s\n", strings.Join(parts, " → ")))
	}
	b.WriteString("\n")
	if limit <= 0 || limit > len(recent) {
		limit = len(recent)
	}
	for _, r := range recent[:limit] {
		b.WriteString(fmt.Sprintf("%s %s %s %d%%\n", r.Date, html.EscapeString(r.Symbol), r.Direction, r.Confidence))
	}
	return b.String()
}
