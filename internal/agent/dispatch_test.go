package agent

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRenderBodyFieldsAsMarkdown_ConvertsKnownFields(t *testing.T) {
	detail := map[string]any{
		"html":      "<h1>Pricing</h1><p>Start at <strong>$49</strong>/mo.</p>",
		"title":     "Pricing",
		"other":     42,
		"post_body": "<p>Body copy</p>",
	}
	renderBodyFieldsAsMarkdown(detail)

	require.Contains(t, detail["html"], "Pricing")
	require.Contains(t, detail["html"], "$49")
	require.Contains(t, detail["post_body"], "Body copy")
	require.Equal(t, "Pricing", detail["title"])
	require.Equal(t, 42, detail["other"])
}

func TestRenderBodyFieldsAsMarkdown_IgnoresMissingOrNonStringFields(t *testing.T) {
	detail := map[string]any{"widget_html": 7}
	require.NotPanics(t, func() { renderBodyFieldsAsMarkdown(detail) })
	require.Equal(t, 7, detail["widget_html"])
}
