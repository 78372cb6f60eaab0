package store

import (
	"context"
	"fmt"
)

// InsertConversionAuditResult records a conversion-tracking health
// classification produced by the weekly orchestrator's conversion-audit
// step (step 3).
func (s *Store) InsertConversionAuditResult(ctx context.Context, r ConversionAuditResult) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO conversion_audit_results (
			tracking_health, configured_events, total_forms, total_submissions,
			gaps, recommendations
		) VALUES (
			:tracking_health, :configured_events, :total_forms, :total_submissions,
			:gaps, :recommendations
		)
	`, r)
	if err != nil {
		return fmt.Errorf("insert conversion audit result: %w", err)
	}
	return nil
}

// LatestConversionAuditResult serves the read API and the weekly digest's
// conversion section.
func (s *Store) LatestConversionAuditResult(ctx context.Context) (*ConversionAuditResult, error) {
	var r ConversionAuditResult
	err := s.db.GetContext(ctx, &r, `
		SELECT * FROM conversion_audit_results ORDER BY run_at DESC LIMIT 1
	`)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest conversion audit result: %w", err)
	}
	return &r, nil
}
