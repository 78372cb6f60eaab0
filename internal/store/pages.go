package store

import (
	"context"
	"fmt"
)

// GetActivePages returns every page the CMS currently considers live,
// ordered by URL for deterministic pagination downstream.
func (s *Store) GetActivePages(ctx context.Context) ([]Page, error) {
	var pages []Page
	err := s.db.SelectContext(ctx, &pages, `SELECT * FROM pages WHERE is_active = TRUE ORDER BY url`)
	if err != nil {
		return nil, fmt.Errorf("select active pages: %w", err)
	}
	return pages, nil
}

// GetPageByURL fetches a single page, or nil if it does not exist.
func (s *Store) GetPageByURL(ctx context.Context, url string) (*Page, error) {
	var p Page
	err := s.db.GetContext(ctx, &p, `SELECT * FROM pages WHERE url = $1`, url)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get page %q: %w", url, err)
	}
	return &p, nil
}

// UpsertPage inserts a new page row or updates the CMS-owned fields of an
// existing one, keyed by URL (C5's reconciliation protocol).
func (s *Store) UpsertPage(ctx context.Context, p Page) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO pages (
			url, slug, title, meta_description, page_type, cms_page_id,
			has_form, form_ids, has_cta, cta_ids, published_at,
			last_updated_at, content_age_days, is_indexed, is_active,
			title_length, meta_description_length, meta_issues
		) VALUES (
			:url, :slug, :title, :meta_description, :page_type, :cms_page_id,
			:has_form, :form_ids, :has_cta, :cta_ids, :published_at,
			:last_updated_at, :content_age_days, :is_indexed, :is_active,
			:title_length, :meta_description_length, :meta_issues
		)
		ON CONFLICT (url) DO UPDATE SET
			slug = EXCLUDED.slug,
			title = EXCLUDED.title,
			meta_description = EXCLUDED.meta_description,
			page_type = EXCLUDED.page_type,
			cms_page_id = EXCLUDED.cms_page_id,
			has_form = EXCLUDED.has_form,
			form_ids = EXCLUDED.form_ids,
			has_cta = EXCLUDED.has_cta,
			cta_ids = EXCLUDED.cta_ids,
			published_at = EXCLUDED.published_at,
			last_updated_at = EXCLUDED.last_updated_at,
			content_age_days = EXCLUDED.content_age_days,
			is_indexed = EXCLUDED.is_indexed,
			is_active = EXCLUDED.is_active,
			title_length = EXCLUDED.title_length,
			meta_description_length = EXCLUDED.meta_description_length,
			meta_issues = EXCLUDED.meta_issues
	`, p)
	if err != nil {
		return fmt.Errorf("upsert page %q: %w", p.URL, err)
	}
	return nil
}

// UpsertPagesBatch applies UpsertPage to a chunk of pages within a single
// transaction. C5 calls this in ≤100-row chunks per its commit-batching
// invariant.
func (s *Store) UpsertPagesBatch(ctx context.Context, pages []Page) error {
	if len(pages) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert batch: %w", err)
	}
	defer tx.Rollback()

	for _, p := range pages {
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO pages (
				url, slug, title, meta_description, page_type, cms_page_id,
				has_form, form_ids, has_cta, cta_ids, published_at,
				last_updated_at, content_age_days, is_indexed, is_active,
				title_length, meta_description_length, meta_issues
			) VALUES (
				:url, :slug, :title, :meta_description, :page_type, :cms_page_id,
				:has_form, :form_ids, :has_cta, :cta_ids, :published_at,
				:last_updated_at, :content_age_days, :is_indexed, :is_active,
				:title_length, :meta_description_length, :meta_issues
			)
			ON CONFLICT (url) DO UPDATE SET
				slug = EXCLUDED.slug,
				title = EXCLUDED.title,
				meta_description = EXCLUDED.meta_description,
				page_type = EXCLUDED.page_type,
				cms_page_id = EXCLUDED.cms_page_id,
				has_form = EXCLUDED.has_form,
				form_ids = EXCLUDED.form_ids,
				has_cta = EXCLUDED.has_cta,
				cta_ids = EXCLUDED.cta_ids,
				published_at = EXCLUDED.published_at,
				last_updated_at = EXCLUDED.last_updated_at,
				content_age_days = EXCLUDED.content_age_days,
				is_indexed = EXCLUDED.is_indexed,
				is_active = EXCLUDED.is_active,
				title_length = EXCLUDED.title_length,
				meta_description_length = EXCLUDED.meta_description_length,
				meta_issues = EXCLUDED.meta_issues
		`, p); err != nil {
			return fmt.Errorf("upsert page %q in batch: %w", p.URL, err)
		}
	}
	return tx.Commit()
}

// UpdatePageHealth writes the score computed by C7 back onto the page row.
func (s *Store) UpdatePageHealth(ctx context.Context, url string, score int, breakdown ScoreBreakdown) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE pages
		SET health_score = $2, health_score_breakdown = $3, last_health_check_at = now()
		WHERE url = $1
	`, url, score, JSON[ScoreBreakdown]{Val: breakdown})
	if err != nil {
		return fmt.Errorf("update page health %q: %w", url, err)
	}
	return nil
}

// UpdateBrokenLinkSummary rolls link-checker results back onto the page
// row so C7's technical-health dimension can read it without a join.
func (s *Store) UpdateBrokenLinkSummary(ctx context.Context, url string, hasBroken bool, count int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE pages SET has_broken_links = $2, broken_link_count = $3 WHERE url = $1
	`, url, hasBroken, count)
	if err != nil {
		return fmt.Errorf("update broken link summary %q: %w", url, err)
	}
	return nil
}

// UpdatePageMetaIssues persists the meta auditor's (C6) issue set for a
// single page; called in the scan orchestrator's concurrency-bounded
// batch-update step.
func (s *Store) UpdatePageMetaIssues(ctx context.Context, url string, issues []string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE pages SET meta_issues = $2 WHERE url = $1
	`, url, JSON[[]string]{Val: issues})
	if err != nil {
		return fmt.Errorf("update meta issues %q: %w", url, err)
	}
	return nil
}

// DeactivatePagesNotIn marks pages absent from the latest CMS fetch as
// inactive rather than deleting them, preserving history for trend rollups.
func (s *Store) DeactivatePagesNotIn(ctx context.Context, urls []string) (int64, error) {
	query, args, err := sqlxIn(`UPDATE pages SET is_active = FALSE WHERE is_active = TRUE AND url NOT IN (?)`, urls)
	if err != nil {
		return 0, fmt.Errorf("build deactivate query: %w", err)
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("deactivate stale pages: %w", err)
	}
	return res.RowsAffected()
}
