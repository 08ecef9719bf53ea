package groups

import (
	"context"
	"sync"
)

// Resolver reports which organizational groups an activity session belongs
// to. Memberships may grow over the session's lifetime: a session that joins
// a group mid-stream is represented in every bucket aggregated after the
// join.
type Resolver interface {
	// MembershipsFor returns the current group set for a session.
	// An unknown session resolves to the empty set, not an error.
	MembershipsFor(ctx context.Context, sessionID string) ([]string, error)

	// Record registers group memberships observed for a session.
	Record(ctx context.Context, sessionID string, groups []string) error
}

// MemoryResolver is an in-process Resolver backed by a map. Suitable for
// single-instance deployments and tests; the Postgres resolver supersedes it
// when memberships must survive restarts.
type MemoryResolver struct {
	mu       sync.RWMutex
	sessions map[string]map[string]struct{}
}

// NewMemoryResolver creates an empty in-memory resolver.
func NewMemoryResolver() *MemoryResolver {
	return &MemoryResolver{sessions: make(map[string]map[string]struct{})}
}

func (r *MemoryResolver) MembershipsFor(_ context.Context, sessionID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	out := make([]string, 0, len(set))
	for g := range set {
		out = append(out, g)
	}
	return out, nil
}

func (r *MemoryResolver) Record(_ context.Context, sessionID string, groups []string) error {
	if len(groups) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.sessions[sessionID]
	if !ok {
		set = make(map[string]struct{}, len(groups))
		r.sessions[sessionID] = set
	}
	for _, g := range groups {
		set[g] = struct{}{}
	}
	return nil
}
