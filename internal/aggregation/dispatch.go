package aggregation

import (
	"context"
	"fmt"

	v1 "github.com/pulse-lab/project-pulse/internal/api/v1"
	"github.com/pulse-lab/project-pulse/internal/core/interval"
)

// EventAggregator is one aggregation variant. Variants form a closed set,
// registered once at startup; per-event selection is a single table lookup,
// not subtype polymorphism.
type EventAggregator interface {
	// Supports reports whether the aggregator handles the given event type.
	Supports(eventType string) bool

	// AggregateEvent folds one event into every currently active bucket.
	// active maps each tracked granularity to its resolved bucket for the
	// event's timestamp.
	AggregateEvent(ctx context.Context, evt *v1.Event, es *EventSession, sess *Session, active map[interval.Granularity]interval.Info) error

	// HandleBoundary finalizes one granularity's elapsed bucket and sweeps
	// the preceding bucket for records whose closure was missed.
	HandleBoundary(ctx context.Context, g interval.Granularity, sess *Session, intervals map[interval.Granularity]interval.Info) error
}

// Dispatcher routes events to aggregators by event-type tag.
// Registration happens once during startup wiring; after that the table is
// read-only, so no locking.
type Dispatcher struct {
	table map[string]EventAggregator
	order []EventAggregator
}

// NewDispatcher creates an empty dispatch table.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{table: make(map[string]EventAggregator)}
}

// Register binds an event-type tag to an aggregator. The aggregator must
// report Supports(eventType) true for the tag; a second registration for
// the same tag is a wiring bug.
func (d *Dispatcher) Register(eventType string, agg EventAggregator) error {
	if !agg.Supports(eventType) {
		return fmt.Errorf("dispatch: aggregator does not support event type %q", eventType)
	}
	if _, exists := d.table[eventType]; exists {
		return fmt.Errorf("dispatch: event type %q already registered", eventType)
	}
	d.table[eventType] = agg

	for _, existing := range d.order {
		if existing == agg {
			return nil
		}
	}
	d.order = append(d.order, agg)
	return nil
}

// For returns the aggregator for an event type, or false if no variant
// handles it. Unhandled types are skipped by the runner, not an error.
func (d *Dispatcher) For(eventType string) (EventAggregator, bool) {
	agg, ok := d.table[eventType]
	return agg, ok
}

// Aggregators returns every distinct registered aggregator, in registration
// order. Boundary handling fans out across all of them.
func (d *Dispatcher) Aggregators() []EventAggregator {
	return d.order
}
