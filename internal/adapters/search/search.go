// Package search is the C2 search-index adapter: per-page aggregated
// clicks/impressions/CTR/position with period comparison, bounded top
// queries, and a per-page detail operation.
package search

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/sitewatch/sitewatch/internal/adapters/httputil"
)

// Row is one page's merged current+previous window search metrics.
// PositionChange is flipped so positive means improved (lower position).
type Row struct {
	PageURL         string
	TotalClicks     int
	TotalImpressions int
	AvgCTR          float64
	AvgPosition     float64
	PrevClicks      int
	PrevImpressions int
	PrevPosition    float64
	PositionChange  float64
}

// Query is one bounded top-query row for a page.
type Query struct {
	Query       string
	Clicks      int
	Impressions int
	Position    float64
}

// Adapter wraps httputil.Client with the search-index site URL.
type Adapter struct {
	client  *httputil.Client
	siteURL string
}

// New builds a search-index Adapter.
func New(client *httputil.Client, siteURL string) *Adapter {
	return &Adapter{client: client, siteURL: siteURL}
}

type windowResponse struct {
	Rows []struct {
		PageURL     string  `json:"page_url"`
		Clicks      int     `json:"clicks"`
		Impressions int     `json:"impressions"`
		CTR         float64 `json:"ctr"`
		Position    float64 `json:"position"`
	} `json:"rows"`
}

// FetchWindowComparison merges current and previous window rows by page
// URL. Position semantics: lower is better; PositionChange is
// prev-current so positive means improved.
func (a *Adapter) FetchWindowComparison(ctx context.Context, days int) ([]Row, error) {
	now := time.Now().UTC()
	currentStart := now.AddDate(0, 0, -days)
	previousStart := currentStart.AddDate(0, 0, -days)

	var current, previous windowResponse
	if err := a.fetchWindow(ctx, currentStart, now, &current); err != nil {
		return nil, fmt.Errorf("fetch current window: %w", err)
	}
	if err := a.fetchWindow(ctx, previousStart, currentStart, &previous); err != nil {
		return nil, fmt.Errorf("fetch previous window: %w", err)
	}

	type prevMetrics struct {
		clicks, impressions int
		position            float64
	}
	prevByURL := make(map[string]prevMetrics, len(previous.Rows))
	for _, r := range previous.Rows {
		prevByURL[r.PageURL] = prevMetrics{r.Clicks, r.Impressions, r.Position}
	}

	rows := make([]Row, 0, len(current.Rows))
	for _, r := range current.Rows {
		prev := prevByURL[r.PageURL]
		var change float64
		if prev.position > 0 {
			change = prev.position - r.Position
		}
		rows = append(rows, Row{
			PageURL:          r.PageURL,
			TotalClicks:      r.Clicks,
			TotalImpressions: r.Impressions,
			AvgCTR:           r.CTR,
			AvgPosition:      r.Position,
			PrevClicks:       prev.clicks,
			PrevImpressions:  prev.impressions,
			PrevPosition:     prev.position,
			PositionChange:   change,
		})
	}
	return rows, nil
}

func (a *Adapter) fetchWindow(ctx context.Context, start, end time.Time, out *windowResponse) error {
	q := url.Values{}
	q.Set("site_url", a.siteURL)
	q.Set("start_date", start.Format("2006-01-02"))
	q.Set("end_date", end.Format("2006-01-02"))
	return a.client.GetJSON(ctx, "/v1/search/pages", q, out)
}

// FetchTopQueries returns up to limit top queries for a page.
func (a *Adapter) FetchTopQueries(ctx context.Context, pageURL string, limit int) ([]Query, error) {
	if limit <= 0 || limit > 25 {
		limit = 25
	}
	var resp struct {
		Queries []Query `json:"queries"`
	}
	q := url.Values{
		"site_url": {a.siteURL},
		"page_url": {pageURL},
		"limit":    {strconv.Itoa(limit)},
	}
	if err := a.client.GetJSON(ctx, "/v1/search/top-queries", q, &resp); err != nil {
		return nil, fmt.Errorf("fetch top queries %q: %w", pageURL, err)
	}
	return resp.Queries, nil
}

// FetchPageDetail returns the raw per-page search detail payload.
func (a *Adapter) FetchPageDetail(ctx context.Context, pageURL string) (map[string]any, error) {
	var out map[string]any
	q := url.Values{"site_url": {a.siteURL}, "page_url": {pageURL}}
	if err := a.client.GetJSON(ctx, "/v1/search/page-detail", q, &out); err != nil {
		return nil, fmt.Errorf("fetch page detail %q: %w", pageURL, err)
	}
	return out, nil
}

// FetchByQueryContains queries the search index for pages that rank for
// a query containing keyword, used by the weekly keyword-coverage sweep
// (§4.11 step 6).
func (a *Adapter) FetchByQueryContains(ctx context.Context, keyword string) ([]Query, error) {
	var resp struct {
		Queries []Query `json:"queries"`
	}
	q := url.Values{"site_url": {a.siteURL}, "contains": {keyword}}
	if err := a.client.GetJSON(ctx, "/v1/search/query-search", q, &resp); err != nil {
		return nil, fmt.Errorf("fetch query-contains %q: %w", keyword, err)
	}
	return resp.Queries, nil
}
