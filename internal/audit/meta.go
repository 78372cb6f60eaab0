// Package audit implements the Meta Auditor (C6), a pure function over
// the page inventory with no I/O of its own.
package audit

import "strings"

// Issue enumerates the closed meta-issue vocabulary.
type Issue string

const (
	IssueMissingTitle   Issue = "missing_title"
	IssueMissingMeta    Issue = "missing_meta"
	IssueTitleTooLong   Issue = "title_too_long"
	IssueTitleTooShort  Issue = "title_too_short"
	IssueMetaTooLong    Issue = "meta_too_long"
	IssueMetaTooShort   Issue = "meta_too_short"
	IssueDuplicateTitle Issue = "duplicate_title"
	IssueDuplicateMeta  Issue = "duplicate_meta"
)

// Page is the minimal shape the auditor needs, decoupled from
// internal/store so this package stays dependency-free.
type Page struct {
	URL             string
	Title           string
	MetaDescription string
}

// Result is the per-page issue list keyed by URL.
type Result struct {
	URL    string
	Issues []Issue
}

// Audit runs the closed issue set over every page in the inventory,
// computing duplicates by case-insensitive trimmed equality across the
// full set (§4.6).
func Audit(pages []Page) []Result {
	titleCounts := make(map[string]int, len(pages))
	metaCounts := make(map[string]int, len(pages))
	for _, p := range pages {
		titleCounts[normalize(p.Title)]++
		metaCounts[normalize(p.MetaDescription)]++
	}

	results := make([]Result, 0, len(pages))
	for _, p := range pages {
		var issues []Issue

		title := strings.TrimSpace(p.Title)
		switch {
		case title == "":
			issues = append(issues, IssueMissingTitle)
		case len(title) > 60:
			issues = append(issues, IssueTitleTooLong)
		case len(title) < 30:
			issues = append(issues, IssueTitleTooShort)
		}

		meta := strings.TrimSpace(p.MetaDescription)
		switch {
		case meta == "":
			issues = append(issues, IssueMissingMeta)
		case len(meta) > 160:
			issues = append(issues, IssueMetaTooLong)
		case len(meta) < 70:
			issues = append(issues, IssueMetaTooShort)
		}

		if title != "" && titleCounts[normalize(title)] > 1 {
			issues = append(issues, IssueDuplicateTitle)
		}
		if meta != "" && metaCounts[normalize(meta)] > 1 {
			issues = append(issues, IssueDuplicateMeta)
		}

		results = append(results, Result{URL: p.URL, Issues: issues})
	}
	return results
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
