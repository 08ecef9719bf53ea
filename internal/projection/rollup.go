package projection

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/pulse-lab/project-pulse/internal/core/aggregate"
)

var millisPerSecond = decimal.NewFromInt(1000)

// summarize reduces closed records to totals. Durations convert to decimal
// seconds from the stored millisecond figures; participants count distinct
// identities across the whole range, not a sum of per-bucket counts.
func summarize(records []*aggregate.Record) *SummaryResponse {
	summary := &SummaryResponse{
		TotalSeconds:   decimal.Zero,
		AverageSeconds: decimal.Zero,
		PeakSeconds:    decimal.Zero,
	}
	if len(records) == 0 {
		return summary
	}

	distinct := make(map[string]struct{})
	var (
		peak      decimal.Decimal
		peakStart *time.Time
	)

	for _, rec := range records {
		seconds := decimal.NewFromInt(rec.Duration.Milliseconds()).Div(millisPerSecond)
		summary.TotalSeconds = summary.TotalSeconds.Add(seconds)

		if peakStart == nil || seconds.GreaterThan(peak) {
			peak = seconds
			if start, err := rec.Key.StartTime(); err == nil {
				startCopy := start
				peakStart = &startCopy
			}
		}

		for _, p := range rec.ParticipantList() {
			distinct[p] = struct{}{}
		}
	}

	summary.BucketCount = len(records)
	summary.AverageSeconds = summary.TotalSeconds.Div(decimal.NewFromInt(int64(len(records)))).Round(3)
	summary.PeakSeconds = peak
	summary.PeakWindowStart = peakStart
	summary.DistinctParticipants = len(distinct)
	return summary
}
