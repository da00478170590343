package parser

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"

	"MarketForecast/internal/model"
)

// Options tunes column selection for provider-specific CSV variants.
type Options struct {
	// PreferAdjClose uses an "adj close" column for Close when one exists.
	PreferAdjClose bool
}

// Stats reports how much of the input survived parsing.
type Stats struct {
	HeaderFound bool
	Rows        int
	Dropped     int
}

type columns struct {
	date, open, high, low, close, adjClose, volume int
}

// ParseCSV parses delimited text with a header row into typed rows using default options.
func ParseCSV(text string) []model.Row {
	rows, _ := Parse(strings.NewReader(text), Options{})
	return rows
}

// Parse reads a header row followed by data rows. Columns are matched by
// case-insensitive substring and the first match wins. Rows with an empty date
// or an unparsable required number are dropped; missing fields are never an error.
func Parse(r io.Reader, opts Options) ([]model.Row, Stats) {
	var stats Stats

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	var (
		cols columns
		rows []model.Row
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				stats.Dropped++
				continue
			}
			break
		}
		if !stats.HeaderFound {
			if isBlank(rec) {
				continue
			}
			cols = locateColumns(rec)
			stats.HeaderFound = true
			if opts.PreferAdjClose && cols.adjClose >= 0 {
				cols.close = cols.adjClose
			}
			continue
		}
		if cols.date < 0 || cols.close < 0 {
			stats.Dropped++
			continue
		}
		row, ok := parseRow(rec, cols)
		if !ok {
			stats.Dropped++
			continue
		}
		rows = append(rows, row)
	}
	stats.Rows = len(rows)
	return rows, stats
}

func locateColumns(header []string) columns {
	names := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		names[i] = strings.ToLower(strings.TrimSpace(h))
	}
	find := func(match func(string) bool) int {
		for i, n := range names {
			if match(n) {
				return i
			}
		}
		return -1
	}
	isAdj := func(n string) bool { return strings.Contains(n, "adj") && strings.Contains(n, "close") }

	c := columns{
		date:     find(func(n string) bool { return strings.Contains(n, "date") }),
		open:     find(func(n string) bool { return strings.Contains(n, "open") }),
		high:     find(func(n string) bool { return strings.Contains(n, "high") }),
		low:      find(func(n string) bool { return strings.Contains(n, "low") }),
		volume:   find(func(n string) bool { return strings.Contains(n, "vol") }),
		adjClose: find(isAdj),
	}
	c.close = find(func(n string) bool { return strings.Contains(n, "close") && !isAdj(n) })
	if c.close < 0 {
		c.close = c.adjClose
	}
	return c
}

func parseRow(rec []string, c columns) (model.Row, bool) {
	date := field(rec, c.date)
	if date == "" {
		return model.Row{}, false
	}
	closeVal, ok := parseNumber(field(rec, c.close))
	if !ok {
		return model.Row{}, false
	}
	row := model.Row{Date: date, Open: closeVal, High: closeVal, Low: closeVal, Close: closeVal}

	// open/high/low are optional columns but, when present, must parse.
	for _, f := range []struct {
		idx int
		dst *float64
	}{{c.open, &row.Open}, {c.high, &row.High}, {c.low, &row.Low}} {
		if f.idx < 0 {
			continue
		}
		v, ok := parseNumber(field(rec, f.idx))
		if !ok {
			return model.Row{}, false
		}
		*f.dst = v
	}
	if c.volume >= 0 {
		if v, ok := parseNumber(field(rec, c.volume)); ok {
			row.Volume = v
		}
	}
	return row, true
}

func field(rec []string, idx int) string {
	if idx < 0 || idx >= len(rec) {
		return ""
	}
	return strings.Trim(strings.TrimSpace(rec[idx]), "\"")
}

func parseNumber(raw string) (float64, bool) {
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func isBlank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
