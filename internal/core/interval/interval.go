package interval

import (
	"fmt"
	"time"
)

// Granularity names one of the fixed calendar interval types. Each
// granularity has its own independent bucket sequence.
type Granularity string

const (
	Minute     Granularity = "minute"
	FiveMinute Granularity = "five_minute"
	Hour       Granularity = "hour"
	Day        Granularity = "day"
	Week       Granularity = "week"
	Month      Granularity = "month"
)

// Granularities lists every supported granularity, finest first.
var Granularities = []Granularity{Minute, FiveMinute, Hour, Day, Week, Month}

// Valid reports whether g is a known granularity.
func (g Granularity) Valid() bool {
	switch g {
	case Minute, FiveMinute, Hour, Day, Week, Month:
		return true
	}
	return false
}

// ParseGranularity parses a granularity name.
func ParseGranularity(s string) (Granularity, error) {
	g := Granularity(s)
	if !g.Valid() {
		return "", fmt.Errorf("unknown granularity %q", s)
	}
	return g, nil
}

// Key layout for the date and time dimensions of a bucket.
const (
	DateKeyLayout = "2006-01-02"
	TimeKeyLayout = "15:04"
)

// BucketKey uniquely identifies one time window for one granularity.
type BucketKey struct {
	Granularity Granularity
	DateKey     string // bucket start date, "2006-01-02"
	TimeKey     string // bucket start time-of-day, "15:04"
}

func (k BucketKey) String() string {
	return fmt.Sprintf("%s/%s %s", k.Granularity, k.DateKey, k.TimeKey)
}

// StartTime reconstructs the bucket's start instant (UTC) from its
// dimension keys. The inverse of the key formatting done by Resolve.
func (k BucketKey) StartTime() (time.Time, error) {
	t, err := time.Parse(DateKeyLayout+" "+TimeKeyLayout, k.DateKey+" "+k.TimeKey)
	if err != nil {
		return time.Time{}, fmt.Errorf("bucket key %s: %w", k, err)
	}
	return t.UTC(), nil
}

// Info describes one resolved bucket: its identity, its window and its
// total length. Info values are plain data; resolving the same
// (granularity, timestamp) pair always yields an identical Info.
type Info struct {
	Key   BucketKey
	Start time.Time
	End   time.Time // exclusive upper edge of the window
	Total time.Duration
}

// DurationTo returns the elapsed duration from the bucket's start to t.
// t must fall within [Start, End]; a timestamp outside the window means the
// caller resolved the wrong bucket and is reported as an error rather than
// clamped.
func (i Info) DurationTo(t time.Time) (time.Duration, error) {
	if t.Before(i.Start) || t.After(i.End) {
		return 0, fmt.Errorf("timestamp %s outside bucket %s [%s, %s]",
			t.Format(time.RFC3339), i.Key, i.Start.Format(time.RFC3339), i.End.Format(time.RFC3339))
	}
	return t.Sub(i.Start), nil
}

// Contains reports whether t falls inside the bucket's half-open window.
func (i Info) Contains(t time.Time) bool {
	return !t.Before(i.Start) && t.Before(i.End)
}

// Resolve returns the bucket a timestamp falls into for one granularity.
// Pure calendar arithmetic in UTC: weeks start on Monday, months on the
// first of the month. Deterministic for identical inputs.
func Resolve(g Granularity, ts time.Time) (Info, error) {
	ts = ts.UTC()

	var start, end time.Time
	switch g {
	case Minute:
		start = ts.Truncate(time.Minute)
		end = start.Add(time.Minute)
	case FiveMinute:
		start = ts.Truncate(5 * time.Minute)
		end = start.Add(5 * time.Minute)
	case Hour:
		start = ts.Truncate(time.Hour)
		end = start.Add(time.Hour)
	case Day:
		start = time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 0, 1)
	case Week:
		// ISO convention: weeks start Monday.
		daysBack := (int(ts.Weekday()) + 6) % 7
		start = time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -daysBack)
		end = start.AddDate(0, 0, 7)
	case Month:
		start = time.Date(ts.Year(), ts.Month(), 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 1, 0)
	default:
		return Info{}, fmt.Errorf("unknown granularity %q", g)
	}

	return Info{
		Key: BucketKey{
			Granularity: g,
			DateKey:     start.Format(DateKeyLayout),
			TimeKey:     start.Format(TimeKeyLayout),
		},
		Start: start,
		End:   end,
		Total: end.Sub(start),
	}, nil
}

// Previous returns the bucket immediately preceding info in its
// granularity's sequence (one minimal calendar step earlier). Used by the
// boundary recovery sweep to locate records left open after their window
// elapsed.
func Previous(info Info) (Info, error) {
	return Resolve(info.Key.Granularity, info.Start.Add(-time.Nanosecond))
}
