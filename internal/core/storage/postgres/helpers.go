package postgres

import (
	"encoding/json"
	"fmt"

	v1 "github.com/pulse-lab/project-pulse/internal/api/v1"
)

// marshalEventJSON marshals an event's groups and metadata fields to JSON.
//
// Nil values produce nil (SQL NULL) rather than JSON "null" strings.
func marshalEventJSON(event *v1.Event) (groupsJSON, metadataJSON []byte, err error) {
	if len(event.Groups) > 0 {
		groupsJSON, err = json.Marshal(event.Groups)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal groups: %w", err)
		}
	}

	if len(event.Metadata) > 0 {
		metadataJSON, err = json.Marshal(event.Metadata)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	return groupsJSON, metadataJSON, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanEventRow scans a database row into an Event struct.
// Handles JSON unmarshalling for groups and metadata fields.
// Compatible with both sql.Row (single) and sql.Rows (multiple).
func scanEventRow(row scanner) (*v1.Event, error) {
	var evt v1.Event
	var groupsJSON, metadataJSON []byte

	err := row.Scan(
		&evt.ID,
		&evt.ParticipantID,
		&evt.SessionID,
		&evt.Type,
		&evt.OccurredAt,
		&evt.IngestedAt,
		&groupsJSON,
		&metadataJSON,
		&evt.IngestSeq,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan event row: %w", err)
	}

	if len(groupsJSON) > 0 {
		if err := json.Unmarshal(groupsJSON, &evt.Groups); err != nil {
			return nil, fmt.Errorf("failed to unmarshal groups: %w", err)
		}
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &evt.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &evt, nil
}
