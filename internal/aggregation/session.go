package aggregation

import (
	"context"
	"log/slog"
	"sort"

	"github.com/pulse-lab/project-pulse/internal/core/aggregate"
	"github.com/pulse-lab/project-pulse/internal/core/interval"
	"github.com/pulse-lab/project-pulse/internal/core/storage"
)

// Session is the read-through record cache for one processing run. The
// first lookup for a bucket queries the store and pins the result; later
// lookups within the same run return the cached set without a store round
// trip.
//
// A Session is exclusively owned by one run, never shared across concurrent
// runs, and discarded when the run ends — it needs no locking. It performs
// no durable writes; mutations to the records it holds are persisted by the
// aggregator through the AggregateStore.
type Session struct {
	store   storage.AggregateStore
	logger  *slog.Logger
	records map[interval.BucketKey][]*aggregate.Record
}

// NewSession creates an empty cache bound to one processing run.
func NewSession(store storage.AggregateStore, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		store:   store,
		logger:  logger,
		records: make(map[interval.BucketKey][]*aggregate.Record),
	}
}

// Records returns the working set for one bucket. On first access it reads
// through to the store; afterwards the cached set is authoritative for the
// life of the session.
func (s *Session) Records(ctx context.Context, key interval.BucketKey) ([]*aggregate.Record, error) {
	if cached, ok := s.records[key]; ok {
		return cached, nil
	}

	recs, err := s.store.QueryRecords(ctx, key)
	if err != nil {
		return nil, err
	}
	s.records[key] = recs
	s.logger.Debug("[Session] Cached bucket records", "bucket", key.String(), "count", len(recs))
	return recs, nil
}

// Add pins a newly created record into the bucket's cached set.
func (s *Session) Add(key interval.BucketKey, rec *aggregate.Record) {
	s.records[key] = append(s.records[key], rec)
}

// Replace swaps the bucket's cached set for a fresh store read. Used after
// losing a record-creation race, when the cache must adopt the winner's row.
func (s *Session) Replace(key interval.BucketKey, recs []*aggregate.Record) {
	s.records[key] = recs
}

// Buckets returns the keys this session has touched, sorted for stable
// iteration in logs and tests.
func (s *Session) Buckets() []interval.BucketKey {
	keys := make([]interval.BucketKey, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// EventSession is the per-activity-session working state for one run: the
// session identifier and the union of every group membership seen so far.
// The group set only grows — a session that joins a group mid-stream is
// represented in every bucket aggregated afterwards.
type EventSession struct {
	ID     string
	groups map[string]struct{}
}

// NewEventSession creates an empty session state.
func NewEventSession(id string) *EventSession {
	return &EventSession{ID: id, groups: make(map[string]struct{})}
}

// AddGroups merges newly observed memberships into the session's group set.
func (es *EventSession) AddGroups(groups []string) {
	for _, g := range groups {
		if g == "" {
			continue
		}
		es.groups[g] = struct{}{}
	}
}

// GroupSet returns a mutable working copy of the current group set.
func (es *EventSession) GroupSet() map[string]struct{} {
	copy := make(map[string]struct{}, len(es.groups))
	for g := range es.groups {
		copy[g] = struct{}{}
	}
	return copy
}

// Empty reports whether the session currently belongs to no groups.
func (es *EventSession) Empty() bool {
	return len(es.groups) == 0
}
