package interval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	ts := time.Date(2026, 2, 11, 10, 37, 42, 123456789, time.UTC) // a Wednesday

	tests := []struct {
		name      string
		g         Granularity
		wantStart time.Time
		wantEnd   time.Time
		wantDate  string
		wantTime  string
	}{
		{
			name:      "minute",
			g:         Minute,
			wantStart: time.Date(2026, 2, 11, 10, 37, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, 2, 11, 10, 38, 0, 0, time.UTC),
			wantDate:  "2026-02-11",
			wantTime:  "10:37",
		},
		{
			name:      "five minute",
			g:         FiveMinute,
			wantStart: time.Date(2026, 2, 11, 10, 35, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, 2, 11, 10, 40, 0, 0, time.UTC),
			wantDate:  "2026-02-11",
			wantTime:  "10:35",
		},
		{
			name:      "hour",
			g:         Hour,
			wantStart: time.Date(2026, 2, 11, 10, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, 2, 11, 11, 0, 0, 0, time.UTC),
			wantDate:  "2026-02-11",
			wantTime:  "10:00",
		},
		{
			name:      "day",
			g:         Day,
			wantStart: time.Date(2026, 2, 11, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, 2, 12, 0, 0, 0, 0, time.UTC),
			wantDate:  "2026-02-11",
			wantTime:  "00:00",
		},
		{
			name:      "week starts monday",
			g:         Week,
			wantStart: time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC),
			wantDate:  "2026-02-09",
			wantTime:  "00:00",
		},
		{
			name:      "month",
			g:         Month,
			wantStart: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			wantDate:  "2026-02-01",
			wantTime:  "00:00",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			info, err := Resolve(tc.g, ts)
			require.NoError(t, err)
			require.Equal(t, tc.wantStart, info.Start)
			require.Equal(t, tc.wantEnd, info.End)
			require.Equal(t, tc.wantEnd.Sub(tc.wantStart), info.Total)
			require.Equal(t, BucketKey{Granularity: tc.g, DateKey: tc.wantDate, TimeKey: tc.wantTime}, info.Key)
		})
	}
}

func TestResolve_Deterministic(t *testing.T) {
	ts := time.Date(2026, 5, 3, 23, 59, 59, 999999999, time.UTC)
	for _, g := range Granularities {
		a, err := Resolve(g, ts)
		require.NoError(t, err)
		b, err := Resolve(g, ts)
		require.NoError(t, err)
		require.Equal(t, a, b, "granularity %s", g)
	}
}

func TestResolve_UnknownGranularity(t *testing.T) {
	_, err := Resolve(Granularity("fortnight"), time.Now())
	require.Error(t, err)
}

func TestResolve_SundayBelongsToPriorWeek(t *testing.T) {
	sunday := time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)
	info, err := Resolve(Week, sunday)
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC), info.Start)
}

func TestDurationTo(t *testing.T) {
	info, err := Resolve(Hour, time.Date(2026, 2, 11, 10, 15, 0, 0, time.UTC))
	require.NoError(t, err)

	d, err := info.DurationTo(time.Date(2026, 2, 11, 10, 42, 30, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, 42*time.Minute+30*time.Second, d)

	// Both window edges are legal.
	d, err = info.DurationTo(info.Start)
	require.NoError(t, err)
	require.Equal(t, time.Duration(0), d)

	d, err = info.DurationTo(info.End)
	require.NoError(t, err)
	require.Equal(t, info.Total, d)
}

func TestDurationTo_OutsideWindow(t *testing.T) {
	info, err := Resolve(Minute, time.Date(2026, 2, 11, 10, 37, 0, 0, time.UTC))
	require.NoError(t, err)

	_, err = info.DurationTo(info.Start.Add(-time.Second))
	require.Error(t, err)

	_, err = info.DurationTo(info.End.Add(time.Second))
	require.Error(t, err)
}

func TestPrevious(t *testing.T) {
	tests := []struct {
		name      string
		g         Granularity
		ts        time.Time
		wantStart time.Time
	}{
		{
			name:      "minute",
			g:         Minute,
			ts:        time.Date(2026, 2, 11, 10, 37, 12, 0, time.UTC),
			wantStart: time.Date(2026, 2, 11, 10, 36, 0, 0, time.UTC),
		},
		{
			name:      "hour across midnight",
			g:         Hour,
			ts:        time.Date(2026, 2, 11, 0, 30, 0, 0, time.UTC),
			wantStart: time.Date(2026, 2, 10, 23, 0, 0, 0, time.UTC),
		},
		{
			name:      "month across year boundary",
			g:         Month,
			ts:        time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
			wantStart: time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "week",
			g:         Week,
			ts:        time.Date(2026, 2, 11, 8, 0, 0, 0, time.UTC),
			wantStart: time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			info, err := Resolve(tc.g, tc.ts)
			require.NoError(t, err)
			prev, err := Previous(info)
			require.NoError(t, err)
			require.Equal(t, tc.wantStart, prev.Start)
			require.Equal(t, info.Start, prev.End)
		})
	}
}

func TestBucketKey_StartTime(t *testing.T) {
	for _, g := range Granularities {
		info, err := Resolve(g, time.Date(2026, 7, 19, 14, 3, 21, 0, time.UTC))
		require.NoError(t, err)

		start, err := info.Key.StartTime()
		require.NoError(t, err)
		require.Equal(t, info.Start, start, "granularity %s", g)
	}
}

func TestParseGranularity(t *testing.T) {
	g, err := ParseGranularity("hour")
	require.NoError(t, err)
	require.Equal(t, Hour, g)

	_, err = ParseGranularity("decade")
	require.Error(t, err)
}
