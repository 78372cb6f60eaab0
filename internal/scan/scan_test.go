package scan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sitewatch/sitewatch/internal/adapters/speed"
	"github.com/sitewatch/sitewatch/internal/score"
	"github.com/sitewatch/sitewatch/internal/store"
)

func TestTrafficChangePct(t *testing.T) {
	require.Equal(t, 0.0, trafficChangePct(100, 0))
	require.Equal(t, 50.0, trafficChangePct(150, 100))
	require.Equal(t, -50.0, trafficChangePct(50, 100))
}

func TestSelectSpeedTargets_PrefersNeverTested(t *testing.T) {
	tested := time.Now()
	pages := []store.Page{
		{URL: "/a", LastHealthCheckAt: &tested},
		{URL: "/b"},
		{URL: "/c", LastHealthCheckAt: &tested},
	}
	got := selectSpeedTargets(pages, 1)
	require.Equal(t, []store.Page{{URL: "/b"}}, got)
}

func TestSelectSpeedTargets_FallsBackToLowestScore(t *testing.T) {
	tested := time.Now()
	low, high := 10, 90
	pages := []store.Page{
		{URL: "/high", LastHealthCheckAt: &tested, HealthScore: &high},
		{URL: "/low", LastHealthCheckAt: &tested, HealthScore: &low},
	}
	got := selectSpeedTargets(pages, 1)
	require.Len(t, got, 1)
	require.Equal(t, "/low", got[0].URL)
}

func TestSelectSpeedTargets_Dedupes(t *testing.T) {
	pages := []store.Page{
		{URL: "/a"},
		{URL: "/b"},
	}
	got := selectSpeedTargets(pages, 5)
	require.Len(t, got, 2)
}

func TestHasIssue(t *testing.T) {
	require.True(t, hasIssue([]string{"missing_title", "missing_meta"}, "missing_meta"))
	require.False(t, hasIssue([]string{"missing_title"}, "missing_meta"))
	require.False(t, hasIssue(nil, "missing_meta"))
}

func TestFlagReasons(t *testing.T) {
	b := score.Breakdown{
		TrafficTrend:     0,
		SEORanking:       0,
		PageSpeed:        0,
		ContentFreshness: 0,
		ConversionHealth: 0,
		TechnicalHealth:  0,
	}
	reasons := flagReasons(b, b.Total())
	require.Contains(t, reasons, "traffic decline")
	require.Contains(t, reasons, "poor search ranking")
	require.Contains(t, reasons, "slow page speed")
	require.Contains(t, reasons, "stale content")
	require.Contains(t, reasons, "technical issues (broken links or meta issues)")
	require.Contains(t, reasons, "critical health score")
}

func TestFlagReasons_HealthyBreakdownHasNoReasons(t *testing.T) {
	b := score.Breakdown{
		TrafficTrend:     20,
		SEORanking:       20,
		PageSpeed:        20,
		ContentFreshness: 15,
		ConversionHealth: 10,
		TechnicalHealth:  10,
	}
	require.Empty(t, flagReasons(b, b.Total()))
}

func TestSpeedResultToScore(t *testing.T) {
	r := speed.Result{
		Strategy:           speed.StrategyMobile,
		PerformanceScore:   80,
		AccessibilityScore: 90,
		SEOScore:           95,
		BestPracticesScore: 85,
		LCPMs:              2100,
		CLS:                0.05,
		Opportunities: []speed.Opportunity{
			{Title: "Reduce JS", SavingsMs: 400},
		},
	}
	got := speedResultToScore("https://example.com/pricing", r)
	require.Equal(t, "https://example.com/pricing", got.PageURL)
	require.Equal(t, store.Strategy("mobile"), got.Strategy)
	require.Equal(t, 80, got.Performance)
	require.Len(t, got.Opportunities.Val, 1)
	require.Equal(t, "Reduce JS", got.Opportunities.Val[0].Title)
}

func TestSourcePageFor(t *testing.T) {
	pages := []store.Page{{URL: "https://example.com/a"}}
	require.Equal(t, "https://example.com/a", sourcePageFor("https://example.com/a", pages))
	require.Equal(t, "https://example.com/external", sourcePageFor("https://example.com/external", pages))
}
