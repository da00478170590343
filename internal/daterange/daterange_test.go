package daterange

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseUserDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2024-03-05", date(2024, 3, 5), true},
		{"2024/3/5", date(2024, 3, 5), true},
		{"2024/03/05", date(2024, 3, 5), true},
		{"03-05-2024", date(2024, 3, 5), true},
		{"03/05/2024", date(2024, 3, 5), true},
		{"25/12/2023", date(2023, 12, 25), true},
		{"25-12-2023", date(2023, 12, 25), true},
		{"12/25/2023", date(2023, 12, 25), true},
		{" 2024-01-01 ", date(2024, 1, 1), true},
		{"2024-02-30", time.Time{}, false},
		{"13/13/2024", time.Time{}, false},
		{"2024-13-01", time.Time{}, false},
		{"yesterday", time.Time{}, false},
		{"", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseUserDate(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "got %s", got)
			}
		})
	}
}

func TestNormalize_Defaults(t *testing.T) {
	now := time.Date(2024, 6, 15, 18, 30, 0, 0, time.UTC)
	r := Normalize("", "", nil, now)
	assert.Equal(t, "2023-06-15", r.StartISO())
	assert.Equal(t, "2024-06-15", r.EndISO())
}

func TestNormalize_SwapsReversed(t *testing.T) {
	now := date(2024, 6, 15)
	r := Normalize("2024-05-01", "2024-01-01", nil, now)
	assert.Equal(t, "2024-01-01", r.StartISO())
	assert.Equal(t, "2024-05-01", r.EndISO())
}

func TestNormalize_ClampsToFirstTradeAndNow(t *testing.T) {
	now := date(2024, 6, 15)
	first := date(2024, 2, 1)
	r := Normalize("2020-01-01", "2030-01-01", &first, now)
	assert.Equal(t, "2024-02-01", r.StartISO())
	assert.Equal(t, "2024-06-15", r.EndISO())
}

func TestNormalize_RecentListingDefaultStart(t *testing.T) {
	now := date(2024, 6, 15)
	first := date(2024, 4, 10)
	r := Normalize("", "", &first, now)
	assert.Equal(t, "2024-04-10", r.StartISO())
}

func TestNormalize_FutureRangeCollapsesToNow(t *testing.T) {
	now := date(2024, 6, 15)
	r := Normalize("2030-01-01", "2031-01-01", nil, now)
	assert.Equal(t, "2024-06-15", r.StartISO())
	assert.Equal(t, "2024-06-15", r.EndISO())
}

func TestNormalize_Totality(t *testing.T) {
	now := date(2024, 6, 15)
	first := date(2010, 1, 1)
	inputs := []string{"", "garbage", "2024-02-30", "1999-01-01", "2099-12-31", "31/31/2024", "06/15/2024", "0000-00-00", "2024-06-16"}
	for _, s := range inputs {
		for _, e := range inputs {
			for _, ft := range []*time.Time{nil, &first} {
				r := Normalize(s, e, ft, now)
				assert.False(t, r.Start.After(r.End), "start=%q end=%q", s, e)
				assert.False(t, r.End.After(now), "start=%q end=%q", s, e)
			}
		}
	}
}

type stubLookup struct {
	first time.Time
	err   error
	calls int
}

func (s *stubLookup) FirstTradeDate(ctx context.Context, symbol string) (time.Time, error) {
	s.calls++
	return s.first, s.err
}

func TestNormalizer_Resolve(t *testing.T) {
	now := date(2024, 6, 15)
	lookup := &stubLookup{first: date(2024, 1, 2)}
	n := NewNormalizer(lookup, time.Second)
	n.Now = func() time.Time { return now }

	r := n.Resolve(context.Background(), "NEW", "", "")
	require.Equal(t, 1, lookup.calls)
	assert.Equal(t, "2024-01-02", r.StartISO())
}

func TestNormalizer_LookupFailureIsNonFatal(t *testing.T) {
	now := date(2024, 6, 15)
	n := NewNormalizer(&stubLookup{err: errors.New("boom")}, time.Second)
	n.Now = func() time.Time { return now }

	r := n.Resolve(context.Background(), "AAPL", "2024-01-01", "")
	assert.Equal(t, "2024-01-01", r.StartISO())
	assert.Equal(t, "2024-06-15", r.EndISO())
}

func TestNormalizer_NilLookup(t *testing.T) {
	n := NewNormalizer(nil, 0)
	n.Now = func() time.Time { return date(2024, 6, 15) }
	r := n.Resolve(context.Background(), "AAPL", "", "")
	assert.Equal(t, "2023-06-15", r.StartISO())
}
