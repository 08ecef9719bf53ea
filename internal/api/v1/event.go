package v1

import (
	"fmt"
	"time"
)

// Event is the atomic unit of the system.
// It separates the "Envelope" (System Attributes) from the activity payload.
type Event struct {
	// ID is the unique immutable identifier provided by the client.
	// It MUST be unique per ParticipantID to enforce idempotency.
	ID string `json:"id"`

	// ParticipantID identifies the person whose activity generated this event.
	// Examples: "user:alice@example.com", "account:123"
	// This is the dimension counted for distinct-participant aggregation.
	// This field is REQUIRED and has no default value.
	ParticipantID string `json:"participant_id"`

	// SessionID ties the event to one activity session. Group memberships
	// are resolved per session and may grow over the session's lifetime.
	SessionID string `json:"session_id"`

	// Type is the domain-specific event name (e.g., "session.activity").
	// This acts as the key for the aggregator dispatch table.
	Type string `json:"type"`

	// Groups lists the organizational groups the event's session belongs to
	// at the moment the event was emitted. An event may belong to multiple
	// groups simultaneously; the set may be empty.
	Groups []string `json:"groups,omitempty"`

	// Metadata is a generic key-value store for context (e.g., source, trace_id, region).
	// This allows for flexible stamping of side-channel data.
	Metadata map[string]string `json:"metadata,omitempty"`

	// OccurredAt is when the event indeed happened in the real world (client-side clock).
	// This distinguishes it from IngestedAt (server-side clock).
	OccurredAt time.Time `json:"occurred_at"`

	// IngestedAt is when Pulse received the event (Audit trail).
	// This should be set by the Ingestion Service, not the user.
	IngestedAt time.Time `json:"ingested_at"`

	// IngestSeq is a monotonic sequence number assigned on ingestion.
	// This provides strict total ordering for aggregation pagination.
	// Set by database (BIGSERIAL), not exposed in public API.
	IngestSeq int64 `json:"-"`
}

// Validate ensures the event has all required system attributes.
func (e *Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("id is required")
	}

	if e.ParticipantID == "" {
		return fmt.Errorf("participant_id is required")
	}

	if e.SessionID == "" {
		return fmt.Errorf("session_id is required")
	}

	if e.Type == "" {
		return fmt.Errorf("type is required")
	}

	if e.OccurredAt.IsZero() {
		return fmt.Errorf("occurred_at is required")
	}

	return nil
}
