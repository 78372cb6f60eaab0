package audit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAudit_ClosedIssueSet(t *testing.T) {
	pages := []Page{
		{URL: "/a", Title: "", MetaDescription: ""},
		{URL: "/b", Title: "Short", MetaDescription: "This meta description is comfortably within the seventy to one hundred sixty character sweet spot for search engines."},
		{URL: "/c", Title: "This title is intentionally crafted to exceed the sixty character search engine display limit", MetaDescription: "short"},
		{URL: "/d", Title: "Duplicate Title Here", MetaDescription: "unique d meta description long enough to pass the seventy character minimum check easily here"},
		{URL: "/e", Title: "Duplicate Title Here", MetaDescription: "unique e meta description long enough to pass the seventy character minimum check easily here"},
	}

	results := Audit(pages)
	byURL := make(map[string][]Issue, len(results))
	for _, r := range results {
		byURL[r.URL] = r.Issues
	}

	require.ElementsMatch(t, []Issue{IssueMissingTitle, IssueMissingMeta}, byURL["/a"])
	require.Contains(t, byURL["/b"], IssueTitleTooShort)
	require.Contains(t, byURL["/c"], IssueTitleTooLong)
	require.Contains(t, byURL["/c"], IssueMetaTooShort)
	require.Contains(t, byURL["/d"], IssueDuplicateTitle)
	require.Contains(t, byURL["/e"], IssueDuplicateTitle)
	require.NotContains(t, byURL["/b"], IssueDuplicateTitle)
}

func TestAudit_EmptyInventory(t *testing.T) {
	require.Empty(t, Audit(nil))
}
