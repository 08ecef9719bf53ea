package postgres

// SQL queries for event and aggregate storage operations

const (
	// querySaveEvent inserts an event with participant idempotency.
	// Uses composite key (participant_id, id) to prevent duplicate events.
	// RETURNING clause retrieves auto-generated ingest_seq for cursor tracking.
	// ON CONFLICT DO NOTHING returns no rows (sql.ErrNoRows) for duplicates.
	querySaveEvent = `
		INSERT INTO events (
			id, participant_id, session_id, type,
			occurred_at, ingested_at, groups, metadata
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (participant_id, id) DO NOTHING
		RETURNING ingest_seq
	`

	// queryRetrieveEventsAfterCursor fetches events after a cursor (ingest_seq).
	// Used by the aggregation runner to walk the stream in strict total order.
	// Prevents batch boundary data loss by using the monotonic sequence.
	queryRetrieveEventsAfterCursor = `
		SELECT
			id, participant_id, session_id, type,
			occurred_at, ingested_at, groups, metadata, ingest_seq
		FROM events
		WHERE ingest_seq > $1
		ORDER BY ingest_seq ASC
		LIMIT $2
	`

	// queryRetrieveEventsByParticipant fetches one participant's most recent events.
	queryRetrieveEventsByParticipant = `
		SELECT
			id, participant_id, session_id, type,
			occurred_at, ingested_at, groups, metadata, ingest_seq
		FROM events
		WHERE participant_id = $1
		ORDER BY ingest_seq DESC
		LIMIT $2
	`

	// queryCreateRecord inserts a fresh aggregate record. The unique
	// constraint on (granularity, date_key, time_key, group_id) enforces the
	// one-record-per-(bucket, group) invariant; a violation surfaces as
	// storage.ErrDuplicateRecord.
	queryCreateRecord = `
		INSERT INTO activity_aggregates (
			granularity, date_key, time_key, bucket_start,
			group_id, duration_ms, participants, complete, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	// queryUpdateRecord is a full replace of the record's mutable fields.
	queryUpdateRecord = `
		UPDATE activity_aggregates
		SET duration_ms = $5, participants = $6, complete = $7, updated_at = $8
		WHERE granularity = $1 AND date_key = $2 AND time_key = $3 AND group_id = $4
	`

	// queryRecordsForBucket fetches every record filed under one bucket.
	queryRecordsForBucket = `
		SELECT granularity, date_key, time_key, group_id,
		       duration_ms, participants, complete, updated_at
		FROM activity_aggregates
		WHERE granularity = $1 AND date_key = $2 AND time_key = $3
	`

	// queryIncompleteInRange fetches open records for one granularity whose
	// bucket start falls in [start, end). Drives the boundary recovery sweep.
	queryIncompleteInRange = `
		SELECT granularity, date_key, time_key, group_id,
		       duration_ms, participants, complete, updated_at
		FROM activity_aggregates
		WHERE granularity = $1
		  AND bucket_start >= $2
		  AND bucket_start < $3
		  AND NOT complete
	`

	// queryClosedInRange fetches closed records for the projection read path,
	// optionally filtered to one group ($4 = '' means all groups).
	queryClosedInRange = `
		SELECT granularity, date_key, time_key, group_id,
		       duration_ms, participants, complete, updated_at
		FROM activity_aggregates
		WHERE granularity = $1
		  AND bucket_start >= $2
		  AND bucket_start < $3
		  AND ($4 = '' OR group_id = $4)
		  AND complete
		ORDER BY bucket_start ASC, group_id ASC
	`

	// queryRecordSessionGroup registers one session/group membership.
	queryRecordSessionGroup = `
		INSERT INTO session_groups (session_id, group_id, recorded_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id, group_id) DO NOTHING
	`

	// querySessionGroups fetches the current group set for one session.
	querySessionGroups = `
		SELECT group_id FROM session_groups WHERE session_id = $1
	`

	// queryReadCheckpoint returns the cursor for one stream label.
	queryReadCheckpoint = `
		SELECT cursor FROM aggregation_checkpoints WHERE stream = $1
	`

	// queryWriteCheckpoint upserts the cursor for one stream label.
	queryWriteCheckpoint = `
		INSERT INTO aggregation_checkpoints (stream, cursor, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (stream) DO UPDATE
		SET cursor = EXCLUDED.cursor, updated_at = EXCLUDED.updated_at
	`
)
