package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/sitewatch/sitewatch/internal/score"
	"github.com/sitewatch/sitewatch/internal/store"
)

// FlaggedPage is the investigation context the scan orchestrator builds
// for one worst-scoring page before handing it to the loop. It bundles
// everything §4.9's initial-prompt-building step lists: URL, type,
// title, score + breakdown, flag reasons, last_updated_at, has_form,
// meta_issues, broken-link flag, plus the latest snapshot of each
// source family (nil when no snapshot exists).
type FlaggedPage struct {
	URL             string
	PageType        store.PageType
	Title           string
	Score           int
	Breakdown       store.ScoreBreakdown
	FlagReasons     []string
	LastUpdatedAt   *time.Time
	HasForm         bool
	MetaIssues      []string
	HasBrokenLinks  bool
	IsIndexed       bool
	CMSPageID       string

	Analytics *store.AnalyticsSnapshot
	Search    *store.SearchSnapshot
	Speed     *store.SpeedScore
}

// buildInitialPrompt renders the flagged-page context into the first
// user turn. It is plain text, not a JSON blob, matching the teacher's
// own ReAct prompt-building style of a human-readable narrative over
// structured data.
func buildInitialPrompt(p FlaggedPage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Investigate this underperforming page and decide whether it needs a recommendation.\n\n")
	fmt.Fprintf(&b, "URL: %s\n", p.URL)
	fmt.Fprintf(&b, "Type: %s\n", p.PageType)
	fmt.Fprintf(&b, "Title: %s\n", p.Title)
	fmt.Fprintf(&b, "Health score: %d (flagged threshold %d)\n", p.Score, score.FlaggedThreshold)
	fmt.Fprintf(&b, "Breakdown: traffic_trend=%d seo_ranking=%d page_speed=%d content_freshness=%d conversion_health=%d technical_health=%d\n",
		p.Breakdown.TrafficTrend, p.Breakdown.SEORanking, p.Breakdown.PageSpeed,
		p.Breakdown.ContentFreshness, p.Breakdown.ConversionHealth, p.Breakdown.TechnicalHealth)
	if len(p.FlagReasons) > 0 {
		fmt.Fprintf(&b, "Flag reasons: %s\n", strings.Join(p.FlagReasons, "; "))
	}
	if p.LastUpdatedAt != nil {
		fmt.Fprintf(&b, "Last updated: %s\n", p.LastUpdatedAt.Format(time.RFC3339))
	} else {
		fmt.Fprintf(&b, "Last updated: never recorded\n")
	}
	fmt.Fprintf(&b, "Has form: %t\n", p.HasForm)
	if len(p.MetaIssues) > 0 {
		fmt.Fprintf(&b, "Meta issues: %s\n", strings.Join(p.MetaIssues, ", "))
	}
	fmt.Fprintf(&b, "Has broken links: %t\n", p.HasBrokenLinks)
	fmt.Fprintf(&b, "Indexed: %t\n", p.IsIndexed)

	if p.Analytics != nil {
		fmt.Fprintf(&b, "Analytics: active_users=%d previous=%d traffic_change_pct=%.2f bounce_rate=%.2f\n",
			p.Analytics.ActiveUsers, p.Analytics.UsersPreviousPeriod, p.Analytics.TrafficChangePct, p.Analytics.BounceRate)
	} else {
		fmt.Fprintf(&b, "Analytics: no snapshot on record\n")
	}
	if p.Search != nil {
		fmt.Fprintf(&b, "Search: avg_position=%.1f position_change=%.1f clicks=%d impressions=%d\n",
			p.Search.AvgPosition, p.Search.PositionChange, p.Search.TotalClicks, p.Search.TotalImpressions)
	} else {
		fmt.Fprintf(&b, "Search: no snapshot on record\n")
	}
	if p.Speed != nil {
		fmt.Fprintf(&b, "Speed: performance=%d strategy=%s lcp_ms=%.0f cls=%.3f\n",
			p.Speed.Performance, p.Speed.Strategy, p.Speed.LCPMs, p.Speed.CLS)
	} else {
		fmt.Fprintf(&b, "Speed: no score on record\n")
	}

	b.WriteString("\nUse the available tools to gather more detail as needed, then either submit_finding with a concrete recommendation or skip_finding if nothing actionable stands out.")
	return b.String()
}
