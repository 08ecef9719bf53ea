package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CheckpointAdapter implements storage.CheckpointStore using PostgreSQL.
type CheckpointAdapter struct {
	db *sql.DB
}

// NewCheckpointAdapter creates a new CheckpointAdapter sharing the given connection.
func NewCheckpointAdapter(db *sql.DB) *CheckpointAdapter {
	return &CheckpointAdapter{db: db}
}

// ReadCheckpoint returns the stream's cursor.
// Returns 0 if no checkpoint exists yet (meaning "replay from beginning").
func (a *CheckpointAdapter) ReadCheckpoint(ctx context.Context, stream string) (int64, error) {
	var cursor int64
	err := a.db.QueryRowContext(ctx, queryReadCheckpoint, stream).Scan(&cursor)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read checkpoint %s: %w", stream, err)
	}
	return cursor, nil
}

// WriteCheckpoint upserts the stream's cursor.
func (a *CheckpointAdapter) WriteCheckpoint(ctx context.Context, stream string, cursor int64) error {
	_, err := a.db.ExecContext(ctx, queryWriteCheckpoint, stream, cursor, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("write checkpoint %s: %w", stream, err)
	}
	return nil
}
