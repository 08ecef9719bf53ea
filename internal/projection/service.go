package projection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pulse-lab/project-pulse/internal/core/interval"
	"github.com/pulse-lab/project-pulse/internal/core/storage"
)

// ErrInvalidQuery marks request validation errors that should return HTTP 400.
var ErrInvalidQuery = errors.New("invalid aggregate query")

// maxQueryRange caps how much history one request may scan.
const maxQueryRange = 400 * 24 * time.Hour

// Service implements the projection/query layer over closed aggregate records.
// Open buckets are never served; readers only see windows whose totals are final.
type Service struct {
	store storage.AggregateStore
	nowFn func() time.Time
}

// NewService creates a new projection service.
func NewService(store storage.AggregateStore) *Service {
	if store == nil {
		panic("projection: store must not be nil")
	}
	return &Service{
		store: store,
		nowFn: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// QueryAggregates retrieves closed aggregate records for a time range.
func (s *Service) QueryAggregates(ctx context.Context, req AggregateQueryRequest) (*AggregateQueryResponse, error) {
	g, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	records, err := s.store.QueryRange(ctx, g, req.Group, req.Start.UTC(), req.End.UTC())
	if err != nil {
		return nil, fmt.Errorf("query aggregates: %w", err)
	}

	values := make([]AggregateValue, 0, len(records))
	for _, rec := range records {
		start, err := rec.Key.StartTime()
		if err != nil {
			slog.Warn("Skipping aggregate with malformed bucket key",
				"granularity", rec.Key.Granularity,
				"date_key", rec.Key.DateKey,
				"time_key", rec.Key.TimeKey,
				"error", err)
			continue
		}

		info, err := interval.Resolve(g, start)
		if err != nil {
			return nil, fmt.Errorf("resolve window for %s: %w", rec.Key, err)
		}

		values = append(values, AggregateValue{
			WindowStart:      info.Start,
			WindowEnd:        info.End,
			Group:            rec.Group,
			DurationSeconds:  rec.Duration.Seconds(),
			ParticipantCount: rec.ParticipantCount(),
		})
	}

	return &AggregateQueryResponse{
		Granularity: string(g),
		Group:       req.Group,
		Start:       req.Start.UTC(),
		End:         req.End.UTC(),
		Values:      values,
	}, nil
}

// QuerySummary condenses the closed records in a range into headline figures.
func (s *Service) QuerySummary(ctx context.Context, req AggregateQueryRequest) (*SummaryResponse, error) {
	g, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	records, err := s.store.QueryRange(ctx, g, req.Group, req.Start.UTC(), req.End.UTC())
	if err != nil {
		return nil, fmt.Errorf("query summary: %w", err)
	}

	summary := summarize(records)
	summary.Granularity = string(g)
	summary.Group = req.Group
	summary.Start = req.Start.UTC()
	summary.End = req.End.UTC()
	return summary, nil
}

func (s *Service) validate(req AggregateQueryRequest) (interval.Granularity, error) {
	g, err := interval.ParseGranularity(req.Granularity)
	if err != nil {
		return "", invalidQueryf("%s", err)
	}
	if !req.End.After(req.Start) {
		return "", invalidQueryf("end time must be after start time")
	}
	if req.End.Sub(req.Start) > maxQueryRange {
		return "", invalidQueryf("query range exceeds %s", maxQueryRange)
	}
	return g, nil
}

func invalidQueryf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidQuery, fmt.Sprintf(format, args...))
}
