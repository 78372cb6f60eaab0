package store

import (
	"context"
	"fmt"
)

// InsertFinding records a new agent-loop investigation result (C9/C10).
func (s *Store) InsertFinding(ctx context.Context, f Finding) (int64, error) {
	rows, err := s.db.NamedQueryContext(ctx, `
		INSERT INTO findings (
			page_url, finding_type, severity, title, description,
			business_impact, agent_loop_iterations, tools_used,
			investigation_summary, status, skip_reason, expires_at,
			health_score_at_detection
		) VALUES (
			:page_url, :finding_type, :severity, :title, :description,
			:business_impact, :agent_loop_iterations, :tools_used,
			:investigation_summary, :status, :skip_reason, :expires_at,
			:health_score_at_detection
		) RETURNING id
	`, f)
	if err != nil {
		return 0, fmt.Errorf("insert finding for %v: %w", f.PageURL, err)
	}
	defer rows.Close()
	var id int64
	if rows.Next() {
		if err := rows.Scan(&id); err != nil {
			return 0, fmt.Errorf("scan finding id: %w", err)
		}
	}
	return id, nil
}

// HasOpenFinding reports whether any finding for a page is still open —
// status in {new, recommendation_drafted, approved} — regardless of its
// finding_type, enforcing the dedup-before-investigate invariant (§4.9:
// dedup is keyed on page URL alone, not the model-supplied finding type).
func (s *Store) HasOpenFinding(ctx context.Context, pageURL string) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `
		SELECT count(*) FROM findings
		WHERE page_url = $1
		  AND status IN ('new', 'recommendation_drafted', 'approved')
	`, pageURL)
	if err != nil {
		return false, fmt.Errorf("check open finding %q: %w", pageURL, err)
	}
	return n > 0, nil
}

// UpdateFindingStatus transitions a finding's lifecycle state.
func (s *Store) UpdateFindingStatus(ctx context.Context, id int64, status FindingStatus) error {
	_, err := s.db.ExecContext(ctx, `UPDATE findings SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update finding %d status: %w", id, err)
	}
	return nil
}

// ResolveFinding marks a finding resolved and records the post-fix health
// score, used by the auto-resolution sweep.
func (s *Store) ResolveFinding(ctx context.Context, id int64, healthScoreAtResolve int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE findings
		SET status = $2, health_score_at_resolution = $3
		WHERE id = $1
	`, id, FindingStatusResolved, healthScoreAtResolve)
	if err != nil {
		return fmt.Errorf("resolve finding %d: %w", id, err)
	}
	return nil
}

// OpenFindingsForPage returns every non-terminal finding for a page, used
// by the auto-resolution sweep to check whether the underlying issue has
// cleared.
func (s *Store) OpenFindingsForPage(ctx context.Context, pageURL string) ([]Finding, error) {
	var findings []Finding
	err := s.db.SelectContext(ctx, &findings, `
		SELECT * FROM findings
		WHERE page_url = $1 AND status NOT IN ('completed', 'expired', 'resolved')
	`, pageURL)
	if err != nil {
		return nil, fmt.Errorf("open findings for %q: %w", pageURL, err)
	}
	return findings, nil
}

// ExpireStaleFindings marks non-terminal findings past their expiry as
// expired, returning the number of rows affected.
func (s *Store) ExpireStaleFindings(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE findings
		SET status = 'expired'
		WHERE status NOT IN ('completed', 'expired', 'resolved')
		  AND expires_at IS NOT NULL AND expires_at < now()
	`)
	if err != nil {
		return 0, fmt.Errorf("expire stale findings: %w", err)
	}
	return res.RowsAffected()
}

// GetFinding fetches a single finding by id.
func (s *Store) GetFinding(ctx context.Context, id int64) (*Finding, error) {
	var f Finding
	err := s.db.GetContext(ctx, &f, `SELECT * FROM findings WHERE id = $1`, id)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get finding %d: %w", id, err)
	}
	return &f, nil
}
