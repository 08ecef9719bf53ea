package storage

import (
	"context"
	"errors"
	"time"

	v1 "github.com/pulse-lab/project-pulse/internal/api/v1"
	"github.com/pulse-lab/project-pulse/internal/core/aggregate"
	"github.com/pulse-lab/project-pulse/internal/core/interval"
)

// ErrDuplicate is returned when an event with the same (participant_id, id) already exists.
var ErrDuplicate = errors.New("event already exists")

// ErrDuplicateRecord is returned by CreateRecord when an aggregate record for
// the same (bucket, group) already exists. Callers racing on creation must
// re-fetch the winner's record and update it instead.
var ErrDuplicateRecord = errors.New("aggregate record already exists")

// ErrRecordNotFound is returned by UpdateRecord when the record no longer exists.
var ErrRecordNotFound = errors.New("aggregate record not found")

// EventStore defines the interface for storing and retrieving raw events.
type EventStore interface {
	SaveEvent(ctx context.Context, event *v1.Event) error

	// RetrieveEventsAfterCursor fetches events after a cursor (ingest_seq) in strict total order.
	// This prevents batch boundary data loss during aggregation pagination.
	// cursor=0 means "from the beginning"
	RetrieveEventsAfterCursor(ctx context.Context, cursor int64, limit int) ([]*v1.Event, error)

	// RetrieveEventsByParticipant fetches the most recent events for one participant.
	RetrieveEventsByParticipant(ctx context.Context, participantID string, limit int) ([]*v1.Event, error)
}

// AggregateStore is the durable keyed storage for aggregate records.
//
// Contract: CreateRecord enforces the one-record-per-(bucket, group)
// invariant via a store-side uniqueness constraint; UpdateRecord is a full
// replace of a record's mutable fields (duration, participants, complete).
type AggregateStore interface {
	// CreateRecord persists a new open record for (key, group).
	// Returns ErrDuplicateRecord if one already exists.
	CreateRecord(ctx context.Context, rec *aggregate.Record) error

	// UpdateRecord replaces the mutable fields of an existing record.
	// Returns ErrRecordNotFound if the record is gone.
	UpdateRecord(ctx context.Context, rec *aggregate.Record) error

	// QueryRecords returns all records filed under one bucket.
	QueryRecords(ctx context.Context, key interval.BucketKey) ([]*aggregate.Record, error)

	// QueryIncomplete returns all open records for one granularity whose
	// bucket start falls in [start, end). The boundary recovery sweep uses
	// this to heal buckets whose closure was missed.
	QueryIncomplete(ctx context.Context, g interval.Granularity, start, end time.Time) ([]*aggregate.Record, error)

	// QueryRange returns closed records for one granularity (optionally one
	// group) whose bucket start falls in [start, end), ordered by bucket start.
	QueryRange(ctx context.Context, g interval.Granularity, group string, start, end time.Time) ([]*aggregate.Record, error)

	// WithTx runs fn against a transaction-scoped view of the store. All
	// record writes inside fn commit together or not at all — the atomicity
	// unit for one event's aggregation across granularities and groups.
	WithTx(ctx context.Context, fn func(AggregateStore) error) error
}

// CheckpointStore tracks the aggregation run's position in the event stream.
//
// Checkpoint Invariant: "cursor N means every event up to ingest_seq N is
// reflected in the aggregates, and none after."
type CheckpointStore interface {
	// ReadCheckpoint returns the cursor for one stream label.
	// Returns 0 if no checkpoint exists yet (meaning "replay from beginning").
	ReadCheckpoint(ctx context.Context, stream string) (int64, error)

	// WriteCheckpoint advances the cursor for one stream label.
	WriteCheckpoint(ctx context.Context, stream string, cursor int64) error
}
