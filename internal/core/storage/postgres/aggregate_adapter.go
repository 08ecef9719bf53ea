package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/pulse-lab/project-pulse/internal/core/aggregate"
	"github.com/pulse-lab/project-pulse/internal/core/interval"
	"github.com/pulse-lab/project-pulse/internal/core/storage"
)

// pqUniqueViolation is the Postgres error code for unique constraint violations.
const pqUniqueViolation = "23505"

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx,
// letting one adapter serve both pooled and transaction-scoped access.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// AggregateAdapter implements storage.AggregateStore using PostgreSQL.
// The unique index on (granularity, date_key, time_key, group_id) is the
// store-side enforcement of the one-record-per-(bucket, group) invariant.
type AggregateAdapter struct {
	db *sql.DB
	q  querier
}

// NewAggregateAdapter creates a new AggregateAdapter sharing the given connection.
func NewAggregateAdapter(db *sql.DB) *AggregateAdapter {
	return &AggregateAdapter{db: db, q: db}
}

// WithTx runs fn against a transaction-scoped view of the adapter. Every
// record write inside fn commits together or not at all — the atomicity
// unit for one event's aggregation.
func (a *AggregateAdapter) WithTx(ctx context.Context, fn func(storage.AggregateStore) error) error {
	if _, alreadyTx := a.q.(*sql.Tx); alreadyTx {
		// Nested scopes join the ambient transaction.
		return fn(a)
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("aggregate store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	scoped := &AggregateAdapter{db: a.db, q: tx}
	if err := fn(scoped); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("aggregate store: commit: %w", err)
	}
	return nil
}

// CreateRecord persists a new open record.
// Returns storage.ErrDuplicateRecord when (bucket, group) already exists.
func (a *AggregateAdapter) CreateRecord(ctx context.Context, rec *aggregate.Record) error {
	bucketStart, err := rec.Key.StartTime()
	if err != nil {
		return fmt.Errorf("create record: %w", err)
	}

	participantsJSON, err := json.Marshal(rec.ParticipantList())
	if err != nil {
		return fmt.Errorf("create record %s/%s: marshal participants: %w", rec.Key, rec.Group, err)
	}

	_, err = a.q.ExecContext(ctx, queryCreateRecord,
		string(rec.Key.Granularity),
		rec.Key.DateKey,
		rec.Key.TimeKey,
		bucketStart,
		rec.Group,
		rec.Duration.Milliseconds(),
		participantsJSON,
		rec.Complete,
		time.Now().UTC(),
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == pqUniqueViolation {
			return storage.ErrDuplicateRecord
		}
		return fmt.Errorf("create record %s/%s: %w", rec.Key, rec.Group, err)
	}
	return nil
}

// UpdateRecord replaces the record's mutable fields.
// Returns storage.ErrRecordNotFound if the row no longer exists.
func (a *AggregateAdapter) UpdateRecord(ctx context.Context, rec *aggregate.Record) error {
	participantsJSON, err := json.Marshal(rec.ParticipantList())
	if err != nil {
		return fmt.Errorf("update record %s/%s: marshal participants: %w", rec.Key, rec.Group, err)
	}

	result, err := a.q.ExecContext(ctx, queryUpdateRecord,
		string(rec.Key.Granularity),
		rec.Key.DateKey,
		rec.Key.TimeKey,
		rec.Group,
		rec.Duration.Milliseconds(),
		participantsJSON,
		rec.Complete,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("update record %s/%s: %w", rec.Key, rec.Group, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update record %s/%s: rows affected: %w", rec.Key, rec.Group, err)
	}
	if affected == 0 {
		return storage.ErrRecordNotFound
	}
	return nil
}

// QueryRecords returns every record filed under one bucket.
func (a *AggregateAdapter) QueryRecords(ctx context.Context, key interval.BucketKey) ([]*aggregate.Record, error) {
	rows, err := a.q.QueryContext(ctx, queryRecordsForBucket,
		string(key.Granularity), key.DateKey, key.TimeKey)
	if err != nil {
		return nil, fmt.Errorf("query records %s: %w", key, err)
	}
	defer rows.Close()

	return scanRecordRows(rows)
}

// QueryIncomplete returns open records for one granularity whose bucket
// start falls in [start, end).
func (a *AggregateAdapter) QueryIncomplete(ctx context.Context, g interval.Granularity, start, end time.Time) ([]*aggregate.Record, error) {
	rows, err := a.q.QueryContext(ctx, queryIncompleteInRange, string(g), start, end)
	if err != nil {
		return nil, fmt.Errorf("query incomplete %s [%s, %s): %w", g, start, end, err)
	}
	defer rows.Close()

	return scanRecordRows(rows)
}

// QueryRange returns closed records for the projection read path, ordered
// by bucket start. group == "" means all groups.
func (a *AggregateAdapter) QueryRange(ctx context.Context, g interval.Granularity, group string, start, end time.Time) ([]*aggregate.Record, error) {
	rows, err := a.q.QueryContext(ctx, queryClosedInRange, string(g), start, end, group)
	if err != nil {
		return nil, fmt.Errorf("query range %s [%s, %s): %w", g, start, end, err)
	}
	defer rows.Close()

	return scanRecordRows(rows)
}

func scanRecordRows(rows *sql.Rows) ([]*aggregate.Record, error) {
	var records []*aggregate.Record
	for rows.Next() {
		var (
			granularity      string
			dateKey, timeKey string
			group            string
			durationMs       int64
			participantsJSON []byte
			complete         bool
			updatedAt        time.Time
		)
		if err := rows.Scan(&granularity, &dateKey, &timeKey, &group,
			&durationMs, &participantsJSON, &complete, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan aggregate row: %w", err)
		}

		rec := aggregate.New(interval.BucketKey{
			Granularity: interval.Granularity(granularity),
			DateKey:     dateKey,
			TimeKey:     timeKey,
		}, group)
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		rec.Complete = complete
		rec.UpdatedAt = updatedAt

		var participants []string
		if len(participantsJSON) > 0 {
			if err := json.Unmarshal(participantsJSON, &participants); err != nil {
				return nil, fmt.Errorf("failed to unmarshal participants: %w", err)
			}
		}
		rec.SetParticipants(participants)

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating aggregate rows: %w", err)
	}
	return records, nil
}
