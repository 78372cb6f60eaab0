package store

import (
	"context"
	"fmt"
)

// AppendChangeLogEntry records an externally meaningful action. The log
// is append-only; outcome transitions (pending -> executed/rejected) are
// tracked by inserting a fresh row rather than mutating history, mirroring
// the teacher's audit-trail convention.
func (s *Store) AppendChangeLogEntry(ctx context.Context, entry ChangeLogEntry) (int64, error) {
	rows, err := s.db.NamedQueryContext(ctx, `
		INSERT INTO change_log_entries (action, detail, outcome, executed_at, executed_by)
		VALUES (:action, :detail, :outcome, :executed_at, :executed_by)
		RETURNING id
	`, entry)
	if err != nil {
		return 0, fmt.Errorf("append change log entry: %w", err)
	}
	defer rows.Close()
	var id int64
	if rows.Next() {
		if err := rows.Scan(&id); err != nil {
			return 0, fmt.Errorf("scan change log entry id: %w", err)
		}
	}
	return id, nil
}

// RecentChangeLogEntries returns the most recent n entries, newest first.
func (s *Store) RecentChangeLogEntries(ctx context.Context, n int) ([]ChangeLogEntry, error) {
	var entries []ChangeLogEntry
	err := s.db.SelectContext(ctx, &entries, `
		SELECT * FROM change_log_entries ORDER BY created_at DESC LIMIT $1
	`, n)
	if err != nil {
		return nil, fmt.Errorf("recent change log entries: %w", err)
	}
	return entries, nil
}
