package store

import (
	"context"
	"fmt"
)

// InsertWeeklyDigest persists the narrative row produced by §4.11 step 9.
func (s *Store) InsertWeeklyDigest(ctx context.Context, d WeeklyDigest) (int64, error) {
	rows, err := s.db.NamedQueryContext(ctx, `
		INSERT INTO weekly_digests (summary, fallback)
		VALUES (:summary, :fallback)
		RETURNING id
	`, d)
	if err != nil {
		return 0, fmt.Errorf("insert weekly digest: %w", err)
	}
	defer rows.Close()
	var id int64
	if rows.Next() {
		if err := rows.Scan(&id); err != nil {
			return 0, fmt.Errorf("scan weekly digest id: %w", err)
		}
	}
	return id, nil
}

// LatestWeeklyDigest serves the digest read API.
func (s *Store) LatestWeeklyDigest(ctx context.Context) (*WeeklyDigest, error) {
	var d WeeklyDigest
	err := s.db.GetContext(ctx, &d, `SELECT * FROM weekly_digests ORDER BY run_at DESC LIMIT 1`)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest weekly digest: %w", err)
	}
	return &d, nil
}
