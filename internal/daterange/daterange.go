// Package daterange resolves user supplied start/end strings into a bounded
// calendar range.
package daterange

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"MarketForecast/internal/model"

	"github.com/rs/zerolog/log"
)

var (
	isoLike  = regexp.MustCompile(`^(\d{4})[/-](\d{1,2})[/-](\d{1,2})$`)
	usLike   = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{4})$`)
	wordDate = []string{"2 Jan 2006", "Jan 2 2006", "Jan 2, 2006", "January 2, 2006"}
)

// ParseUserDate reads a date in one of the accepted notations:
// YYYY-MM-DD, YYYY/M/D, MM-DD-YYYY and MM/DD/YYYY. In the month-first forms a
// leading component above 12 is taken as the day. Impossible calendar dates
// are rejected.
func ParseUserDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if m := isoLike.FindStringSubmatch(s); m != nil {
		return civil(m[1], m[2], m[3])
	}
	if m := usLike.FindStringSubmatch(s); m != nil {
		a, _ := strconv.Atoi(m[1])
		if a > 12 {
			return civil(m[3], m[2], m[1])
		}
		return civil(m[3], m[1], m[2])
	}
	for _, layout := range wordDate {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func civil(year, month, day string) (time.Time, bool) {
	y, _ := strconv.Atoi(year)
	m, _ := strconv.Atoi(month)
	d, _ := strconv.Atoi(day)
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	// time.Date normalises overflow, so 2024-02-30 comes back as March 1.
	if t.Year() != y || t.Month() != time.Month(m) || t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}

// Normalize resolves raw inputs into an ordered range bounded by the first
// trade date (when known) and now. It never fails: unreadable inputs fall back
// to defaults.
func Normalize(rawStart, rawEnd string, firstTrade *time.Time, now time.Time) model.DateRange {
	today := day(now)

	start, hasStart := ParseUserDate(rawStart)
	end, hasEnd := ParseUserDate(rawEnd)
	if !hasStart {
		start = today.AddDate(-1, 0, 0)
	}
	if !hasEnd {
		end = today
	}
	if start.After(end) {
		start, end = end, start
	}

	if firstTrade != nil && !firstTrade.IsZero() {
		floor := day(*firstTrade)
		if start.Before(floor) {
			start = floor
		}
	}
	if end.After(today) {
		end = today
	}
	if start.After(end) {
		start = end
	}
	return model.DateRange{Start: start, End: end}
}

func day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// MetaLookup reports the first trading day of an instrument.
type MetaLookup interface {
	FirstTradeDate(ctx context.Context, symbol string) (time.Time, error)
}

// Normalizer resolves ranges for a symbol using a best-effort metadata lookup.
type Normalizer struct {
	Lookup  MetaLookup
	Timeout time.Duration
	Now     func() time.Time
}

// NewNormalizer creates a Normalizer. lookup may be nil.
func NewNormalizer(lookup MetaLookup, timeout time.Duration) *Normalizer {
	return &Normalizer{Lookup: lookup, Timeout: timeout, Now: time.Now}
}

// Resolve returns the normalized range for symbol. A failed lookup leaves the
// first trade date unknown.
func (n *Normalizer) Resolve(ctx context.Context, symbol, rawStart, rawEnd string) model.DateRange {
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	var first *time.Time
	if n.Lookup != nil && symbol != "" {
		lctx := ctx
		if n.Timeout > 0 {
			var cancel context.CancelFunc
			lctx, cancel = context.WithTimeout(ctx, n.Timeout)
			defer cancel()
		}
		if t, err := n.Lookup.FirstTradeDate(lctx, symbol); err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("first trade date lookup failed")
		} else if !t.IsZero() {
			first = &t
		}
	}
	return Normalize(rawStart, rawEnd, first, now())
}
