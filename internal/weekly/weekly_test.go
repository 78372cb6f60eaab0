package weekly

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sitewatch/sitewatch/internal/adapters/search"
	"github.com/sitewatch/sitewatch/internal/store"
)

func TestEventCoversForm_GenericEvent(t *testing.T) {
	require.True(t, eventCoversForm("form_submit", "contact-form"))
	require.True(t, eventCoversForm("Generate Lead", "contact-form"))
}

func TestEventCoversForm_SpecificEvent(t *testing.T) {
	require.True(t, eventCoversForm("form_submit_contact-form", "contact-form"))
	require.False(t, eventCoversForm("form_submit_pricing", "contact-form"))
}

func TestEventCoversForm_Unrelated(t *testing.T) {
	require.False(t, eventCoversForm("page_view", "contact-form"))
}

func TestConversionRecommendations_NotConfiguredCitesSubmissionTotal(t *testing.T) {
	recs := conversionRecommendations("not_configured", 5, 37, 5)
	require.Len(t, recs, 1)
	require.Contains(t, recs[0], "37")
	require.Contains(t, recs[0], "5 forms")
}

func TestConversionRecommendations_Healthy(t *testing.T) {
	require.Empty(t, conversionRecommendations("healthy", 3, 10, 0))
}

func TestStalePages(t *testing.T) {
	old := 200
	fresh := 10
	pages := []store.Page{
		{URL: "/never-updated"},
		{URL: "/stale", ContentAgeDays: &old, LastUpdatedAt: ptrTime(time.Now())},
		{URL: "/fresh", ContentAgeDays: &fresh, LastUpdatedAt: ptrTime(time.Now())},
	}
	stale := stalePages(pages)
	require.Len(t, stale, 2)
}

func TestBucketFor(t *testing.T) {
	require.Equal(t, 0, bucketFor(5))
	require.Equal(t, 1, bucketFor(20))
	require.Equal(t, 2, bucketFor(59))
	require.Equal(t, 3, bucketFor(79))
	require.Equal(t, 4, bucketFor(100))
}

func TestTopPaths(t *testing.T) {
	sorted := []pageDelta{
		{path: "/worst", changePct: -40},
		{path: "/bad", changePct: -10},
		{path: "/flat", changePct: 0},
		{path: "/good", changePct: 15},
		{path: "/best", changePct: 50},
	}
	require.Equal(t, []string{"/worst", "/bad"}, topPaths(sorted, false))
	require.Equal(t, []string{"/best", "/good"}, topPaths(sorted, true))
}

// Keyword gap surfacing: a high-CPC keyword with no search-index rows
// at all surfaces with hasOrganicPage=false and a nil position.
func TestGapFromQueryRows_NoRowsIsAGap(t *testing.T) {
	gap := gapFromQueryRows("food erp", nil)
	require.Equal(t, "food erp", gap.Keyword)
	require.False(t, gap.HasOrganicPage)
	require.Nil(t, gap.Position)
}

func TestGapFromQueryRows_TopTwentyRowCountsAsOrganic(t *testing.T) {
	rows := []search.Query{
		{Query: "food erp software", Position: 34},
		{Query: "food erp", Position: 12},
	}
	gap := gapFromQueryRows("food erp", rows)
	require.True(t, gap.HasOrganicPage)
	require.NotNil(t, gap.Position)
	require.Equal(t, 12.0, *gap.Position)
}

func TestTrafficChangePct(t *testing.T) {
	require.Equal(t, 0.0, trafficChangePct(10, 0))
	require.InDelta(t, -50.0, trafficChangePct(50, 100), 0.001)
}

func ptrTime(t time.Time) *time.Time { return &t }
