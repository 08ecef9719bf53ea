package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// GroupsAdapter implements groups.Resolver over the session_groups table.
// Memberships only accumulate; nothing in this core deletes them.
type GroupsAdapter struct {
	db *sql.DB
}

// NewGroupsAdapter creates a new GroupsAdapter sharing the given connection.
func NewGroupsAdapter(db *sql.DB) *GroupsAdapter {
	return &GroupsAdapter{db: db}
}

// MembershipsFor returns the current group set for a session.
// An unknown session resolves to the empty set, not an error.
func (a *GroupsAdapter) MembershipsFor(ctx context.Context, sessionID string) ([]string, error) {
	rows, err := a.db.QueryContext(ctx, querySessionGroups, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query session groups %s: %w", sessionID, err)
	}
	defer rows.Close()

	var groups []string
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, fmt.Errorf("scan session group: %w", err)
		}
		groups = append(groups, g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating session groups: %w", err)
	}
	return groups, nil
}

// Record registers group memberships observed for a session.
// Re-recording an existing membership is a no-op.
func (a *GroupsAdapter) Record(ctx context.Context, sessionID string, groups []string) error {
	if len(groups) == 0 {
		return nil
	}

	now := time.Now().UTC()
	for _, g := range groups {
		if g == "" {
			continue
		}
		if _, err := a.db.ExecContext(ctx, queryRecordSessionGroup, sessionID, g, now); err != nil {
			return fmt.Errorf("record session group %s/%s: %w", sessionID, g, err)
		}
	}
	return nil
}
