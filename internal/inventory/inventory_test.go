package inventory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sitewatch/sitewatch/internal/adapters/cms"
	"github.com/sitewatch/sitewatch/internal/store"
)

func TestPagePath(t *testing.T) {
	require.Equal(t, "/pricing", PagePath("https://example.com/pricing"))
	require.Equal(t, "not-a-url", PagePath("not-a-url"))
}

func TestNormalizeURL(t *testing.T) {
	require.Equal(t, "https://example.com/pricing", NormalizeURL("https://example.com/pricing/"))
	require.Equal(t, "https://example.com/pricing", NormalizeURL("https://example.com/pricing"))
}

func TestRecordToPage_DerivesContentAge(t *testing.T) {
	now := time.Now().UTC()
	rec := cms.Record{
		CMSPageID:     "123",
		URL:           "https://example.com/blog/post",
		Slug:          "post",
		Title:         "A Post",
		Family:        cms.FamilyBlog,
		LastUpdatedAt: now.AddDate(0, 0, -90).Format(time.RFC3339),
		FormIDs:       []string{"f1"},
		HasForm:       true,
	}

	page := recordToPage(rec, now)
	require.Equal(t, store.PageTypeBlog, page.PageType)
	require.NotNil(t, page.ContentAgeDays)
	require.Equal(t, 90, *page.ContentAgeDays)
	require.True(t, page.HasForm)
	require.Equal(t, []string{"f1"}, page.FormIDs.Val)
}

func TestRecordToPage_MissingLastUpdated(t *testing.T) {
	page := recordToPage(cms.Record{URL: "https://example.com/a", Family: cms.FamilySite}, time.Now().UTC())
	require.Nil(t, page.ContentAgeDays)
	require.Equal(t, store.PageTypeSite, page.PageType)
}
