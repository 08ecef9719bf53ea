package aggregation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	v1 "github.com/pulse-lab/project-pulse/internal/api/v1"
	"github.com/pulse-lab/project-pulse/internal/core/aggregate"
	"github.com/pulse-lab/project-pulse/internal/core/interval"
	"github.com/pulse-lab/project-pulse/internal/core/storage"
)

// EventTypeActivity is the dispatch tag the activity aggregator handles.
const EventTypeActivity = "session.activity"

// ActivityAggregator maintains per-bucket, per-group activity aggregates:
// high-water active duration and distinct participant membership. One
// instance serves all granularities; per-run state lives in the Session.
type ActivityAggregator struct {
	store  storage.AggregateStore
	logger *slog.Logger
}

// NewActivityAggregator creates the aggregator over a durable record store.
func NewActivityAggregator(store storage.AggregateStore, logger *slog.Logger) *ActivityAggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &ActivityAggregator{store: store, logger: logger}
}

// Supports reports whether the aggregator handles the given event type.
func (a *ActivityAggregator) Supports(eventType string) bool {
	return eventType == EventTypeActivity
}

// AggregateEvent folds one event into every active bucket, for every group
// the event's session belongs to. For each granularity: groups already
// represented in the bucket get their record updated; leftover groups get a
// fresh record created, then updated the same way. Every touched record is
// persisted before return (write-through), and all writes for the event
// commit in one transaction — either every active bucket reflects the event
// or none does.
//
// An event whose session belongs to no groups performs no updates.
func (a *ActivityAggregator) AggregateEvent(
	ctx context.Context,
	evt *v1.Event,
	es *EventSession,
	sess *Session,
	active map[interval.Granularity]interval.Info,
) error {
	if es.Empty() {
		return nil
	}

	return a.store.WithTx(ctx, func(tx storage.AggregateStore) error {
		for _, g := range sortedGranularities(active) {
			info := active[g]

			// A timestamp outside the presented window means the caller
			// resolved the wrong bucket. Surfaced immediately, never retried.
			elapsed, err := info.DurationTo(evt.OccurredAt)
			if err != nil {
				return fmt.Errorf("aggregate event %s: %w", evt.ID, err)
			}

			remaining := es.GroupSet()

			records, err := sess.Records(ctx, info.Key)
			if err != nil {
				return fmt.Errorf("aggregate event %s: fetch bucket %s: %w", evt.ID, info.Key, err)
			}

			// Update every record whose group the session belongs to.
			// Removing the group marks it as already represented.
			for _, rec := range records {
				if _, ok := remaining[rec.Group]; !ok {
					continue
				}
				delete(remaining, rec.Group)

				rec.Observe(evt.ParticipantID, elapsed)
				if err := tx.UpdateRecord(ctx, rec); err != nil {
					return fmt.Errorf("aggregate event %s: update %s/%s: %w", evt.ID, info.Key, rec.Group, err)
				}
			}

			// Create records for any leftover groups.
			for _, group := range sortedGroups(remaining) {
				rec, err := a.createOrAdopt(ctx, tx, sess, info.Key, group)
				if err != nil {
					return fmt.Errorf("aggregate event %s: %w", evt.ID, err)
				}

				rec.Observe(evt.ParticipantID, elapsed)
				if err := tx.UpdateRecord(ctx, rec); err != nil {
					return fmt.Errorf("aggregate event %s: update %s/%s: %w", evt.ID, info.Key, group, err)
				}
			}
		}
		return nil
	})
}

// createOrAdopt creates a new record for (key, group). If a concurrent
// writer won the creation race, the bucket's records are re-read through
// the transaction and the winner's row is adopted instead — never a
// duplicate.
func (a *ActivityAggregator) createOrAdopt(
	ctx context.Context,
	tx storage.AggregateStore,
	sess *Session,
	key interval.BucketKey,
	group string,
) (*aggregate.Record, error) {
	rec := aggregate.New(key, group)
	err := tx.CreateRecord(ctx, rec)
	if err == nil {
		sess.Add(key, rec)
		return rec, nil
	}
	if !errors.Is(err, storage.ErrDuplicateRecord) {
		return nil, fmt.Errorf("create %s/%s: %w", key, group, err)
	}

	a.logger.Debug("[Aggregator] Lost record creation race, adopting existing record",
		"bucket", key.String(), "group", group)

	refreshed, err := tx.QueryRecords(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("refetch after creation race %s: %w", key, err)
	}
	sess.Replace(key, refreshed)

	for _, existing := range refreshed {
		if existing.Group == group {
			return existing, nil
		}
	}
	return nil, fmt.Errorf("creation race on %s/%s but record not found on refetch", key, group)
}

// HandleBoundary finalizes the elapsed bucket for one granularity, then
// sweeps the immediately preceding bucket for records left open — a
// self-healing pass for windows whose closure was skipped or delayed.
// Completion is idempotent per record, so a partially-applied sweep is safe
// to re-run in full.
func (a *ActivityAggregator) HandleBoundary(
	ctx context.Context,
	g interval.Granularity,
	sess *Session,
	intervals map[interval.Granularity]interval.Info,
) error {
	info, ok := intervals[g]
	if !ok {
		return fmt.Errorf("handle boundary: no interval resolved for granularity %q", g)
	}

	return a.store.WithTx(ctx, func(tx storage.AggregateStore) error {
		// Complete every record touched in the elapsed bucket.
		records, err := sess.Records(ctx, info.Key)
		if err != nil {
			return fmt.Errorf("handle boundary %s: fetch records: %w", info.Key, err)
		}
		for _, rec := range records {
			rec.MarkComplete(info.Total)
			if err := tx.UpdateRecord(ctx, rec); err != nil {
				return fmt.Errorf("handle boundary %s: update %s: %w", info.Key, rec.Group, err)
			}
			a.logger.Debug("[Aggregator] Marked complete",
				"bucket", info.Key.String(), "group", rec.Group,
				"duration", rec.Duration, "participants", rec.ParticipantCount())
		}

		// Recovery sweep: heal any preceding-bucket record nobody closed.
		// Each is completed at its own bucket's window length, not this one's.
		prev, err := interval.Previous(info)
		if err != nil {
			return fmt.Errorf("handle boundary %s: resolve preceding bucket: %w", info.Key, err)
		}

		unclosed, err := tx.QueryIncomplete(ctx, g, prev.Start, prev.End)
		if err != nil {
			return fmt.Errorf("handle boundary %s: query unclosed: %w", info.Key, err)
		}
		for _, rec := range unclosed {
			rec.MarkComplete(prev.Total)
			if err := tx.UpdateRecord(ctx, rec); err != nil {
				return fmt.Errorf("handle boundary %s: heal %s/%s: %w", info.Key, rec.Key, rec.Group, err)
			}
			a.logger.Info("[Aggregator] Healed previously missed closure",
				"bucket", rec.Key.String(), "group", rec.Group, "duration", rec.Duration)
		}

		return nil
	})
}

func sortedGranularities(active map[interval.Granularity]interval.Info) []interval.Granularity {
	out := make([]interval.Granularity, 0, len(active))
	for g := range active {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedGroups(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for g := range set {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}
