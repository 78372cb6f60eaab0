package store

import (
	"context"
	"fmt"
	"strings"
)

// PageListParams filters/sorts/paginates GET /api/v1/pages, grounded on
// the teacher's DashboardListParams (pkg/models) query-param shape.
type PageListParams struct {
	PageType  PageType // "" = any
	Flagged   bool     // true = only health_score < 50 (or never scored)
	SortBy    string   // "health_score" | "url" | "broken_link_count"
	SortOrder string   // "asc" | "desc"
	Page      int
	PageSize  int
}

var pageSortColumns = map[string]string{
	"health_score":     "health_score",
	"url":              "url",
	"broken_link_count": "broken_link_count",
}

// ListPages returns a filtered, sorted, paginated page of active pages
// plus the total match count for the caller to compute page counts.
func (s *Store) ListPages(ctx context.Context, p PageListParams) ([]Page, int, error) {
	col, ok := pageSortColumns[p.SortBy]
	if !ok {
		col = "health_score"
	}
	order := "ASC"
	if strings.EqualFold(p.SortOrder, "desc") {
		order = "DESC"
	}

	where := []string{"is_active = TRUE"}
	args := []any{}
	if p.PageType != "" {
		args = append(args, p.PageType)
		where = append(where, fmt.Sprintf("page_type = $%d", len(args)))
	}
	if p.Flagged {
		where = append(where, "(health_score IS NULL OR health_score < 50)")
	}
	whereClause := strings.Join(where, " AND ")

	var total int
	countQuery := fmt.Sprintf("SELECT count(*) FROM pages WHERE %s", whereClause)
	if err := s.db.GetContext(ctx, &total, s.db.Rebind(countQuery), args...); err != nil {
		return nil, 0, fmt.Errorf("count pages: %w", err)
	}

	pageSize := p.PageSize
	if pageSize <= 0 {
		pageSize = 25
	}
	page := p.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize

	selectArgs := append(append([]any{}, args...), pageSize, offset)
	selectQuery := fmt.Sprintf(
		"SELECT * FROM pages WHERE %s ORDER BY %s %s NULLS LAST, url LIMIT $%d OFFSET $%d",
		whereClause, col, order, len(selectArgs)-1, len(selectArgs),
	)
	var pages []Page
	if err := s.db.SelectContext(ctx, &pages, s.db.Rebind(selectQuery), selectArgs...); err != nil {
		return nil, 0, fmt.Errorf("list pages: %w", err)
	}
	return pages, total, nil
}

// FindingListParams filters/paginates GET /api/v1/findings.
type FindingListParams struct {
	Status   FindingStatus // "" = any
	Severity Severity      // "" = any
	Page     int
	PageSize int
}

// ListFindings returns a filtered, newest-first page of findings plus the
// total match count.
func (s *Store) ListFindings(ctx context.Context, p FindingListParams) ([]Finding, int, error) {
	where := []string{"1=1"}
	args := []any{}
	if p.Status != "" {
		args = append(args, p.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if p.Severity != "" {
		args = append(args, p.Severity)
		where = append(where, fmt.Sprintf("severity = $%d", len(args)))
	}
	whereClause := strings.Join(where, " AND ")

	var total int
	countQuery := fmt.Sprintf("SELECT count(*) FROM findings WHERE %s", whereClause)
	if err := s.db.GetContext(ctx, &total, s.db.Rebind(countQuery), args...); err != nil {
		return nil, 0, fmt.Errorf("count findings: %w", err)
	}

	pageSize := p.PageSize
	if pageSize <= 0 {
		pageSize = 25
	}
	page := p.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize

	selectArgs := append(append([]any{}, args...), pageSize, offset)
	selectQuery := fmt.Sprintf(
		"SELECT * FROM findings WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		whereClause, len(selectArgs)-1, len(selectArgs),
	)
	var findings []Finding
	if err := s.db.SelectContext(ctx, &findings, s.db.Rebind(selectQuery), selectArgs...); err != nil {
		return nil, 0, fmt.Errorf("list findings: %w", err)
	}
	return findings, total, nil
}

// RecentTrendSnapshots returns the most recent n snapshots for a period,
// newest first, for GET /api/v1/trends.
func (s *Store) RecentTrendSnapshots(ctx context.Context, period string, n int) ([]TrendSnapshot, error) {
	if n <= 0 {
		n = 12
	}
	var snaps []TrendSnapshot
	err := s.db.SelectContext(ctx, &snaps, `
		SELECT * FROM trend_snapshots WHERE period = $1
		ORDER BY snapshot_date DESC LIMIT $2
	`, period, n)
	if err != nil {
		return nil, fmt.Errorf("recent trend snapshots %q: %w", period, err)
	}
	return snaps, nil
}

// OverviewCounts aggregates the small set of counters GET /api/v1/overview
// needs, computed in a handful of cheap queries rather than a bespoke view.
type OverviewCounts struct {
	TotalPages      int
	FlaggedPages    int
	OpenFindings    int
	PendingReviews  int
	BrokenLinks     int
}

// Overview computes the counters behind GET /api/v1/overview.
func (s *Store) Overview(ctx context.Context) (*OverviewCounts, error) {
	var oc OverviewCounts
	if err := s.db.GetContext(ctx, &oc.TotalPages, `SELECT count(*) FROM pages WHERE is_active = TRUE`); err != nil {
		return nil, fmt.Errorf("count total pages: %w", err)
	}
	if err := s.db.GetContext(ctx, &oc.FlaggedPages, `
		SELECT count(*) FROM pages WHERE is_active = TRUE AND (health_score IS NULL OR health_score < 50)
	`); err != nil {
		return nil, fmt.Errorf("count flagged pages: %w", err)
	}
	if err := s.db.GetContext(ctx, &oc.OpenFindings, `
		SELECT count(*) FROM findings WHERE status NOT IN ('completed', 'expired', 'resolved', 'skipped')
	`); err != nil {
		return nil, fmt.Errorf("count open findings: %w", err)
	}
	if err := s.db.GetContext(ctx, &oc.PendingReviews, `SELECT count(*) FROM decision_queue_items WHERE status = 'pending'`); err != nil {
		return nil, fmt.Errorf("count pending reviews: %w", err)
	}
	broken, err := s.CountBrokenLinks(ctx)
	if err != nil {
		return nil, err
	}
	oc.BrokenLinks = broken
	return &oc, nil
}
