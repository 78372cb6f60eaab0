package store

import (
	"context"
	"fmt"
)

// InsertTrendSnapshot records a period rollup computed by the weekly
// orchestrator (C11 step 8).
func (s *Store) InsertTrendSnapshot(ctx context.Context, t TrendSnapshot) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO trend_snapshots (
			period, snapshot_date, total_traffic, traffic_change_pct,
			avg_health_score, health_score_distribution, top_declining_pages,
			top_improving_pages, broken_links_count, new_broken_links,
			meta_issues_count
		) VALUES (
			:period, :snapshot_date, :total_traffic, :traffic_change_pct,
			:avg_health_score, :health_score_distribution, :top_declining_pages,
			:top_improving_pages, :broken_links_count, :new_broken_links,
			:meta_issues_count
		)
		ON CONFLICT (period, snapshot_date) DO UPDATE SET
			total_traffic = EXCLUDED.total_traffic,
			traffic_change_pct = EXCLUDED.traffic_change_pct,
			avg_health_score = EXCLUDED.avg_health_score,
			health_score_distribution = EXCLUDED.health_score_distribution,
			top_declining_pages = EXCLUDED.top_declining_pages,
			top_improving_pages = EXCLUDED.top_improving_pages,
			broken_links_count = EXCLUDED.broken_links_count,
			new_broken_links = EXCLUDED.new_broken_links,
			meta_issues_count = EXCLUDED.meta_issues_count
	`, t)
	if err != nil {
		return fmt.Errorf("insert trend snapshot %s/%s: %w", t.Period, t.SnapshotDate, err)
	}
	return nil
}

// PriorTrendSnapshot returns the most recent snapshot for a period prior
// to the given one, used to compute period-over-period deltas.
func (s *Store) PriorTrendSnapshot(ctx context.Context, period string) (*TrendSnapshot, error) {
	var t TrendSnapshot
	err := s.db.GetContext(ctx, &t, `
		SELECT * FROM trend_snapshots
		WHERE period = $1
		ORDER BY snapshot_date DESC LIMIT 1
	`, period)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("prior trend snapshot %q: %w", period, err)
	}
	return &t, nil
}
