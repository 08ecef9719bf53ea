package aggregate

import (
	"sort"
	"time"

	"github.com/pulse-lab/project-pulse/internal/core/interval"
)

// Record is the per-bucket, per-group aggregate: how long the bucket has
// seen activity (a high-water mark, not a sum) and which distinct
// participants were active. At most one Record exists per (bucket, group);
// the store's uniqueness constraint enforces that.
//
// A Record is mutable only while Complete is false. Once closed it is
// immutable: Observe and MarkComplete become no-ops.
type Record struct {
	Key          interval.BucketKey
	Group        string
	Duration     time.Duration
	Participants map[string]struct{}
	Complete     bool
	UpdatedAt    time.Time
}

// New creates an open, empty record for one (bucket, group) pair.
func New(key interval.BucketKey, group string) *Record {
	return &Record{
		Key:          key,
		Group:        group,
		Participants: make(map[string]struct{}),
	}
}

// Observe folds one event into the record: the duration becomes
// max(current, elapsed) and the participant joins the membership set.
//
// The max rule makes observation order-independent — out-of-order or
// duplicate delivery within the window cannot regress the duration.
// No-op once the record is complete.
func (r *Record) Observe(participantID string, elapsed time.Duration) {
	if r.Complete {
		return
	}
	if elapsed > r.Duration {
		r.Duration = elapsed
	}
	if r.Participants == nil {
		r.Participants = make(map[string]struct{})
	}
	r.Participants[participantID] = struct{}{}
}

// MarkComplete closes the record at the bucket's full window length.
// Idempotent: a second call, with any value, leaves the record unchanged.
func (r *Record) MarkComplete(total time.Duration) {
	if r.Complete {
		return
	}
	r.Duration = total
	r.Complete = true
}

// ParticipantCount returns the distinct participant cardinality.
func (r *Record) ParticipantCount() int {
	return len(r.Participants)
}

// ParticipantList returns the membership set as a sorted slice, for
// persistence and stable test assertions.
func (r *Record) ParticipantList() []string {
	out := make([]string, 0, len(r.Participants))
	for p := range r.Participants {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// SetParticipants replaces the membership set from a persisted list.
func (r *Record) SetParticipants(participants []string) {
	r.Participants = make(map[string]struct{}, len(participants))
	for _, p := range participants {
		r.Participants[p] = struct{}{}
	}
}
