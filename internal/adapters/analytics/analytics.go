// Package analytics is the C2 analytics adapter: page-level traffic
// metrics with period-over-period comparison, a per-page detail
// operation, a traffic-sources breakdown, and a key-events enumeration.
package analytics

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/sitewatch/sitewatch/internal/adapters/httputil"
)

// Row is one page's merged current+previous window metrics.
type Row struct {
	PagePath               string
	ActiveUsers            int
	Sessions               int
	PageViews              int
	BounceRate             float64
	AvgSessionDuration     float64
	PreviousUsers          int
	PreviousSessions       int
}

// TrafficSource is one channel's share of a page's sessions.
type TrafficSource struct {
	Channel  string // organic | paid | direct | referral | social
	Sessions int
}

// KeyEvent is one configured conversion event.
type KeyEvent struct {
	Name           string
	EventCount     int
	ConversionRate float64
}

// Adapter wraps httputil.Client with the analytics property id.
type Adapter struct {
	client     *httputil.Client
	propertyID string
}

// New builds an analytics Adapter.
func New(client *httputil.Client, propertyID string) *Adapter {
	return &Adapter{client: client, propertyID: propertyID}
}

type windowResponse struct {
	Rows []struct {
		PagePath           string  `json:"page_path"`
		ActiveUsers        int     `json:"active_users"`
		Sessions           int     `json:"sessions"`
		PageViews          int     `json:"page_views"`
		BounceRate         float64 `json:"bounce_rate"`
		AvgSessionDuration float64 `json:"avg_session_duration"`
	} `json:"rows"`
}

// FetchWindowComparison runs two independent queries (current window,
// previous window of equal length) and merges them by page path.
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

	prevByPath := make(map[string]struct{ users, sessions int }, len(previous.Rows))
	for _, r := range previous.Rows {
		prevByPath[r.PagePath] = struct{ users, sessions int }{r.ActiveUsers, r.Sessions}
	}

	rows := make([]Row, 0, len(current.Rows))
	for _, r := range current.Rows {
		prev := prevByPath[r.PagePath]
		rows = append(rows, Row{
			PagePath:           r.PagePath,
			ActiveUsers:        r.ActiveUsers,
			Sessions:           r.Sessions,
			PageViews:          r.PageViews,
			BounceRate:         r.BounceRate,
			AvgSessionDuration: r.AvgSessionDuration,
			PreviousUsers:      prev.users,
			PreviousSessions:   prev.sessions,
		})
	}
	return rows, nil
}

func (a *Adapter) fetchWindow(ctx context.Context, start, end time.Time, out *windowResponse) error {
	q := url.Values{}
	q.Set("property_id", a.propertyID)
	q.Set("start_date", start.Format("2006-01-02"))
	q.Set("end_date", end.Format("2006-01-02"))
	return a.client.GetJSON(ctx, "/v1/analytics/pages", q, out)
}

// FetchPageDetail returns the raw per-page detail payload.
func (a *Adapter) FetchPageDetail(ctx context.Context, pagePath string) (map[string]any, error) {
	var out map[string]any
	q := url.Values{"property_id": {a.propertyID}, "page_path": {pagePath}}
	if err := a.client.GetJSON(ctx, "/v1/analytics/page-detail", q, &out); err != nil {
		return nil, fmt.Errorf("fetch page detail %q: %w", pagePath, err)
	}
	return out, nil
}

// FetchTrafficSources returns the channel breakdown for a page over the
// last days days, bounded to the five recognized channels.
func (a *Adapter) FetchTrafficSources(ctx context.Context, pagePath string, days int) ([]TrafficSource, error) {
	var resp struct {
		Sources []TrafficSource `json:"sources"`
	}
	q := url.Values{
		"property_id": {a.propertyID},
		"page_path":   {pagePath},
		"days":        {strconv.Itoa(days)},
	}
	if err := a.client.GetJSON(ctx, "/v1/analytics/traffic-sources", q, &resp); err != nil {
		return nil, fmt.Errorf("fetch traffic sources %q: %w", pagePath, err)
	}
	return resp.Sources, nil
}

// FetchKeyEvents enumerates configured conversion events, used by the
// weekly conversion audit (§4.11 step 3).
func (a *Adapter) FetchKeyEvents(ctx context.Context) ([]KeyEvent, error) {
	var resp struct {
		Events []KeyEvent `json:"events"`
	}
	q := url.Values{"property_id": {a.propertyID}}
	if err := a.client.GetJSON(ctx, "/v1/analytics/key-events", q, &resp); err != nil {
		return nil, fmt.Errorf("fetch key events: %w", err)
	}
	return resp.Events, nil
}
