package store

import (
	"context"
	"fmt"
)

// UpsertAnalyticsSnapshots chunks the given snapshots into groups of at
// most chunkSize rows, one transaction per chunk, matching the analytics adapter's
// ≤100-row commit batching (§4.2).
func (s *Store) UpsertAnalyticsSnapshots(ctx context.Context, snaps []AnalyticsSnapshot) error {
	const chunkSize = 100
	for start := 0; start < len(snaps); start += chunkSize {
		end := start + chunkSize
		if end > len(snaps) {
			end = len(snaps)
		}
		if err := s.upsertAnalyticsChunk(ctx, snaps[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) upsertAnalyticsChunk(ctx context.Context, snaps []AnalyticsSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin analytics chunk: %w", err)
	}
	defer tx.Rollback()
	for _, snap := range snaps {
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO analytics_snapshots (
				page_url, snapshot_date, active_users, sessions, page_views,
				bounce_rate, avg_session_duration, users_previous_period,
				sessions_previous_period, traffic_change_pct
			) VALUES (
				:page_url, :snapshot_date, :active_users, :sessions, :page_views,
				:bounce_rate, :avg_session_duration, :users_previous_period,
				:sessions_previous_period, :traffic_change_pct
			)
			ON CONFLICT (page_url, snapshot_date) DO UPDATE SET
				active_users = EXCLUDED.active_users,
				sessions = EXCLUDED.sessions,
				page_views = EXCLUDED.page_views,
				bounce_rate = EXCLUDED.bounce_rate,
				avg_session_duration = EXCLUDED.avg_session_duration,
				users_previous_period = EXCLUDED.users_previous_period,
				sessions_previous_period = EXCLUDED.sessions_previous_period,
				traffic_change_pct = EXCLUDED.traffic_change_pct
		`, snap); err != nil {
			return fmt.Errorf("upsert analytics snapshot %q: %w", snap.PageURL, err)
		}
	}
	return tx.Commit()
}

// LatestAnalyticsSnapshot returns the most recent snapshot for a page.
func (s *Store) LatestAnalyticsSnapshot(ctx context.Context, url string) (*AnalyticsSnapshot, error) {
	var snap AnalyticsSnapshot
	err := s.db.GetContext(ctx, &snap, `
		SELECT * FROM analytics_snapshots WHERE page_url = $1 ORDER BY snapshot_date DESC LIMIT 1
	`, url)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest analytics snapshot %q: %w", url, err)
	}
	return &snap, nil
}

// UpsertSearchSnapshots mirrors UpsertAnalyticsSnapshots for the search
// index adapter's ≤100-row chunks (§4.2).
func (s *Store) UpsertSearchSnapshots(ctx context.Context, snaps []SearchSnapshot) error {
	const chunkSize = 100
	for start := 0; start < len(snaps); start += chunkSize {
		end := start + chunkSize
		if end > len(snaps) {
			end = len(snaps)
		}
		if err := s.upsertSearchChunk(ctx, snaps[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) upsertSearchChunk(ctx context.Context, snaps []SearchSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin search chunk: %w", err)
	}
	defer tx.Rollback()
	for _, snap := range snaps {
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO search_snapshots (
				page_url, snapshot_date, total_clicks, total_impressions,
				avg_ctr, avg_position, previous_clicks, previous_impressions,
				previous_position, position_change
			) VALUES (
				:page_url, :snapshot_date, :total_clicks, :total_impressions,
				:avg_ctr, :avg_position, :previous_clicks, :previous_impressions,
				:previous_position, :position_change
			)
			ON CONFLICT (page_url, snapshot_date) DO UPDATE SET
				total_clicks = EXCLUDED.total_clicks,
				total_impressions = EXCLUDED.total_impressions,
				avg_ctr = EXCLUDED.avg_ctr,
				avg_position = EXCLUDED.avg_position,
				previous_clicks = EXCLUDED.previous_clicks,
				previous_impressions = EXCLUDED.previous_impressions,
				previous_position = EXCLUDED.previous_position,
				position_change = EXCLUDED.position_change
		`, snap); err != nil {
			return fmt.Errorf("upsert search snapshot %q: %w", snap.PageURL, err)
		}
	}
	return tx.Commit()
}

// LatestSearchSnapshot returns the most recent snapshot for a page.
func (s *Store) LatestSearchSnapshot(ctx context.Context, url string) (*SearchSnapshot, error) {
	var snap SearchSnapshot
	err := s.db.GetContext(ctx, &snap, `
		SELECT * FROM search_snapshots WHERE page_url = $1 ORDER BY snapshot_date DESC LIMIT 1
	`, url)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest search snapshot %q: %w", url, err)
	}
	return &snap, nil
}

// InsertSpeedScore appends a speed-test result. Speed scores are
// append-only (no upsert) since re-running a test on the same day is a
// legitimate retry, not a duplicate (§3).
func (s *Store) InsertSpeedScore(ctx context.Context, score SpeedScore) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO speed_scores (
			page_url, test_date, strategy, performance, accessibility, seo,
			best_practices, lcp_ms, fid_ms, cls, inp_ms, opportunities
		) VALUES (
			:page_url, :test_date, :strategy, :performance, :accessibility, :seo,
			:best_practices, :lcp_ms, :fid_ms, :cls, :inp_ms, :opportunities
		)
	`, score)
	if err != nil {
		return fmt.Errorf("insert speed score %q: %w", score.PageURL, err)
	}
	return nil
}

// LatestSpeedScore returns the most recent speed score for a page and
// strategy.
func (s *Store) LatestSpeedScore(ctx context.Context, url string, strategy Strategy) (*SpeedScore, error) {
	var score SpeedScore
	err := s.db.GetContext(ctx, &score, `
		SELECT * FROM speed_scores
		WHERE page_url = $1 AND strategy = $2
		ORDER BY test_date DESC LIMIT 1
	`, url, strategy)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest speed score %q: %w", url, err)
	}
	return &score, nil
}

// UpsertLinkHealth records or refreshes a link-checker result, keyed by
// (source_page_url, target_url) per §9's Open Question resolution.
func (s *Store) UpsertLinkHealth(ctx context.Context, rec LinkHealthRecord) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO link_health (
			source_page_url, target_url, link_type, http_status, is_broken,
			is_redirect, redirect_chain, redirect_count, error_message,
			last_checked_at
		) VALUES (
			:source_page_url, :target_url, :link_type, :http_status, :is_broken,
			:is_redirect, :redirect_chain, :redirect_count, :error_message,
			now()
		)
		ON CONFLICT (source_page_url, target_url) DO UPDATE SET
			link_type = EXCLUDED.link_type,
			http_status = EXCLUDED.http_status,
			is_broken = EXCLUDED.is_broken,
			is_redirect = EXCLUDED.is_redirect,
			redirect_chain = EXCLUDED.redirect_chain,
			redirect_count = EXCLUDED.redirect_count,
			error_message = EXCLUDED.error_message,
			last_checked_at = now(),
			is_resolved = CASE
				WHEN EXCLUDED.is_broken THEN FALSE
				WHEN link_health.is_broken THEN TRUE
				ELSE link_health.is_resolved
			END,
			resolved_at = CASE
				WHEN NOT EXCLUDED.is_broken AND link_health.is_broken THEN now()
				ELSE link_health.resolved_at
			END
	`, rec)
	if err != nil {
		return fmt.Errorf("upsert link health %q -> %q: %w", rec.SourcePageURL, rec.TargetURL, err)
	}
	return nil
}

// BrokenLinksForPage returns every unresolved broken link originating
// from a page.
func (s *Store) BrokenLinksForPage(ctx context.Context, sourceURL string) ([]LinkHealthRecord, error) {
	var recs []LinkHealthRecord
	err := s.db.SelectContext(ctx, &recs, `
		SELECT * FROM link_health WHERE source_page_url = $1 AND is_broken = TRUE
	`, sourceURL)
	if err != nil {
		return nil, fmt.Errorf("broken links for %q: %w", sourceURL, err)
	}
	return recs, nil
}

// BrokenLinkSourceURLs returns the distinct set of page URLs with at
// least one currently-broken outbound link, used by the scan
// orchestrator's "previously-broken" link-check priority bucket.
func (s *Store) BrokenLinkSourceURLs(ctx context.Context) ([]string, error) {
	var urls []string
	err := s.db.SelectContext(ctx, &urls, `
		SELECT DISTINCT source_page_url FROM link_health WHERE is_broken = TRUE
	`)
	if err != nil {
		return nil, fmt.Errorf("broken link source urls: %w", err)
	}
	return urls, nil
}

// NewBrokenLinksSince counts links first detected broken within the
// given window, used by the weekly trend snapshot's new_broken_links
// counter (§4.11 step 8).
func (s *Store) NewBrokenLinksSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `
		SELECT count(*) FROM link_health WHERE is_broken = TRUE AND first_detected_at >= $1
	`, since)
	if err != nil {
		return 0, fmt.Errorf("new broken links since %s: %w", since, err)
	}
	return n, nil
}

// CountBrokenLinks returns the current sitewide broken-link total, used
// by the weekly trend snapshot.
func (s *Store) CountBrokenLinks(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT count(*) FROM link_health WHERE is_broken = TRUE`); err != nil {
		return 0, fmt.Errorf("count broken links: %w", err)
	}
	return n, nil
}
