package projection

import (
	"time"

	"github.com/shopspring/decimal"
)

// AggregateQueryRequest represents the query parameters for fetching closed aggregates.
type AggregateQueryRequest struct {
	Granularity string    `form:"granularity" binding:"required"`
	Group       string    `form:"group"` // empty means all groups
	Start       time.Time `form:"start" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
	End         time.Time `form:"end" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
}

// AggregateValue represents a single closed bucket record in the response.
type AggregateValue struct {
	WindowStart      time.Time `json:"window_start"`
	WindowEnd        time.Time `json:"window_end"`
	Group            string    `json:"group"`
	DurationSeconds  float64   `json:"duration_seconds"`
	ParticipantCount int       `json:"participant_count"`
}

// AggregateQueryResponse represents the response for an aggregate query.
type AggregateQueryResponse struct {
	Granularity string           `json:"granularity"`
	Group       string           `json:"group,omitempty"`
	Start       time.Time        `json:"start"`
	End         time.Time        `json:"end"`
	Values      []AggregateValue `json:"values"`
}

// SummaryResponse condenses a range of closed buckets into headline figures.
// Durations are decimal seconds so repeated division never accumulates
// binary float drift in reports.
type SummaryResponse struct {
	Granularity          string          `json:"granularity"`
	Group                string          `json:"group,omitempty"`
	Start                time.Time       `json:"start"`
	End                  time.Time       `json:"end"`
	BucketCount          int             `json:"bucket_count"`
	TotalSeconds         decimal.Decimal `json:"total_seconds"`
	AverageSeconds       decimal.Decimal `json:"average_seconds"`
	PeakSeconds          decimal.Decimal `json:"peak_seconds"`
	PeakWindowStart      *time.Time      `json:"peak_window_start,omitempty"`
	DistinctParticipants int             `json:"distinct_participants"`
}
