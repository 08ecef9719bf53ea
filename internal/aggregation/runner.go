package aggregation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	v1 "github.com/pulse-lab/project-pulse/internal/api/v1"
	"github.com/pulse-lab/project-pulse/internal/core/groups"
	"github.com/pulse-lab/project-pulse/internal/core/interval"
	"github.com/pulse-lab/project-pulse/internal/core/storage"
)

// CheckpointStream labels the aggregation run's cursor in the checkpoint store.
const CheckpointStream = "activity_aggregation"

const defaultBatchSize = 10000

// RunnerConfig controls one runner's throughput and tracked granularities.
type RunnerConfig struct {
	BatchSize int
	Tracked   []TrackedInterval
}

func (c RunnerConfig) normalized() RunnerConfig {
	n := c
	if n.BatchSize <= 0 {
		n.BatchSize = defaultBatchSize
	}
	if len(n.Tracked) == 0 {
		n.Tracked = DefaultTrackedIntervals()
	}
	return n
}

// Runner drives aggregation: each run reads events past the checkpoint
// cursor in ingest order, dispatches them to aggregators, and closes
// tracked windows once their wall-clock grace has elapsed. A window stays
// open through its grace period even after later events arrive, so
// out-of-order events inside the grace still land in it. One run owns one
// Session; the Session dies with the run.
type Runner struct {
	eventStore  storage.EventStore
	aggStore    storage.AggregateStore
	checkpoints storage.CheckpointStore
	resolver    groups.Resolver
	dispatcher  *Dispatcher
	cfg         RunnerConfig
	logger      *slog.Logger

	// open tracks, per granularity, windows that have received events but
	// whose boundary has not fired yet. Runner state only; a restart loses
	// it and the recovery sweep heals anything missed.
	open map[interval.Granularity]map[time.Time]interval.Info
}

// NewRunner wires a runner over its collaborators.
func NewRunner(
	eventStore storage.EventStore,
	aggStore storage.AggregateStore,
	checkpoints storage.CheckpointStore,
	resolver groups.Resolver,
	dispatcher *Dispatcher,
	cfg RunnerConfig,
	logger *slog.Logger,
) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		eventStore:  eventStore,
		aggStore:    aggStore,
		checkpoints: checkpoints,
		resolver:    resolver,
		dispatcher:  dispatcher,
		cfg:         cfg.normalized(),
		logger:      logger,
		open:        make(map[interval.Granularity]map[time.Time]interval.Info),
	}
}

// RunOnce processes one batch of events and returns how many were
// processed. An error aborts the run before the checkpoint advances, so the
// next run replays the same events — safe, because duration is a high-water
// mark, membership is a set, and completion is idempotent.
func (r *Runner) RunOnce(ctx context.Context, now time.Time) (int, error) {
	runID := uuid.NewString()

	cursor, err := r.checkpoints.ReadCheckpoint(ctx, CheckpointStream)
	if err != nil {
		return 0, fmt.Errorf("read checkpoint: %w", err)
	}

	events, err := r.eventStore.RetrieveEventsAfterCursor(ctx, cursor, r.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("query events: %w", err)
	}

	sess := NewSession(r.aggStore, r.logger)
	eventSessions := make(map[string]*EventSession)

	for _, evt := range events {
		agg, ok := r.dispatcher.For(evt.Type)
		if !ok {
			r.logger.Debug("[Runner] No aggregator for event type, skipping",
				"event_id", evt.ID, "event_type", evt.Type)
			continue
		}

		active, err := r.resolveActive(evt.OccurredAt)
		if err != nil {
			return 0, fmt.Errorf("resolve intervals for event %s: %w", evt.ID, err)
		}

		// Record the event's windows; closure waits on the wall clock below.
		r.trackOpen(active)

		es, err := r.eventSession(ctx, eventSessions, evt)
		if err != nil {
			return 0, err
		}

		if err := agg.AggregateEvent(ctx, evt, es, sess, active); err != nil {
			return 0, err
		}
	}

	// Close every open window whose end plus grace is behind the clock.
	if err := r.closeElapsed(ctx, sess, now); err != nil {
		return 0, err
	}

	if len(events) == 0 {
		return 0, nil
	}

	newCursor := events[len(events)-1].IngestSeq
	if err := r.checkpoints.WriteCheckpoint(ctx, CheckpointStream, newCursor); err != nil {
		return 0, fmt.Errorf("write checkpoint: %w", err)
	}

	r.logger.Info("[Runner] Batch complete",
		"run_id", runID,
		"events_processed", len(events),
		"buckets_touched", len(sess.Buckets()),
		"cursor_advanced", fmt.Sprintf("%d -> %d", cursor, newCursor),
	)

	return len(events), nil
}

// resolveActive maps every tracked granularity to its bucket for ts.
func (r *Runner) resolveActive(ts time.Time) (map[interval.Granularity]interval.Info, error) {
	active := make(map[interval.Granularity]interval.Info, len(r.cfg.Tracked))
	for _, t := range r.cfg.Tracked {
		info, err := interval.Resolve(t.Granularity, ts)
		if err != nil {
			return nil, err
		}
		active[t.Granularity] = info
	}
	return active, nil
}

// trackOpen records each granularity's bucket for the incoming event as an
// open window. Boundaries never fire here: a later event does not close an
// earlier window, only the wall clock in closeElapsed does.
func (r *Runner) trackOpen(active map[interval.Granularity]interval.Info) {
	for g, info := range active {
		windows, ok := r.open[g]
		if !ok {
			windows = make(map[time.Time]interval.Info)
			r.open[g] = windows
		}
		windows[info.Start] = info
	}
}

// closeElapsed finalizes open windows whose grace period has run out,
// oldest first. This is the only place boundaries fire.
func (r *Runner) closeElapsed(ctx context.Context, sess *Session, now time.Time) error {
	for _, t := range r.cfg.Tracked {
		windows := r.open[t.Granularity]
		for _, start := range sortedStarts(windows) {
			info := windows[start]
			if now.Before(info.End.Add(t.Grace)) {
				continue
			}
			if err := r.fireBoundary(ctx, t.Granularity, sess, info); err != nil {
				return err
			}
			delete(windows, start)
		}
	}
	return nil
}

func sortedStarts(windows map[time.Time]interval.Info) []time.Time {
	starts := make([]time.Time, 0, len(windows))
	for s := range windows {
		starts = append(starts, s)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })
	return starts
}

// fireBoundary invokes HandleBoundary for one elapsed bucket on every
// registered aggregator.
func (r *Runner) fireBoundary(ctx context.Context, g interval.Granularity, sess *Session, info interval.Info) error {
	r.logger.Info("[Runner] Interval boundary",
		"granularity", string(g), "bucket", info.Key.String(), "window_end", info.End)

	intervals := map[interval.Granularity]interval.Info{g: info}
	for _, agg := range r.dispatcher.Aggregators() {
		if err := agg.HandleBoundary(ctx, g, sess, intervals); err != nil {
			return fmt.Errorf("boundary %s: %w", info.Key, err)
		}
	}
	return nil
}

// eventSession returns the run's working state for the event's session,
// refreshing its group set from the membership resolver and the event's own
// group list. The set can only grow across the run.
func (r *Runner) eventSession(ctx context.Context, cache map[string]*EventSession, evt *v1.Event) (*EventSession, error) {
	es, ok := cache[evt.SessionID]
	if !ok {
		es = NewEventSession(evt.SessionID)
		cache[evt.SessionID] = es
	}

	memberships, err := r.resolver.MembershipsFor(ctx, evt.SessionID)
	if err != nil {
		return nil, fmt.Errorf("resolve groups for session %s: %w", evt.SessionID, err)
	}
	es.AddGroups(memberships)
	es.AddGroups(evt.Groups)
	return es, nil
}
