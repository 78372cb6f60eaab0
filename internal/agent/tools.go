// Package agent is the Agent Loop (C9): a bounded ReAct-style
// conversation with a language model, exposing a closed set of
// investigation tools over a single flagged page. The model terminates
// the loop by invoking one of two terminal tools; everything else is an
// observation fed back into the conversation.
package agent

import (
	"github.com/sitewatch/sitewatch/internal/llmclient"
)

// Tool names, grounded on spec.md §4.9's closed tool set.
const (
	ToolGetPageAnalytics      = "get_page_analytics"
	ToolGetPageRankings       = "get_page_rankings"
	ToolGetPageSpeedDetail    = "get_page_speed_detail"
	ToolGetHubspotPageDetail  = "get_hubspot_page_detail"
	ToolCheckKeywordPageGap   = "check_keyword_page_gap"
	ToolCheckSignalBus        = "check_signal_bus"
	ToolEvaluateRecommendation = "evaluate_recommendation"
	ToolSubmitFinding         = "submit_finding"
	ToolSkipFinding           = "skip_finding"
)

// terminalTools is the set that ends the loop.
var terminalTools = map[string]bool{
	ToolSubmitFinding: true,
	ToolSkipFinding:   true,
}

func isTerminalTool(name string) bool {
	return terminalTools[name]
}

// toolDefinitions builds the closed tool set passed to every Converse
// call. Input schemas are deliberately loose (opaque property maps, no
// required list enforced client-side) per §9's dynamic-shape-payload
// design note: validation happens where a field is consumed, not here.
func toolDefinitions() []llmclient.ToolDefinition {
	return []llmclient.ToolDefinition{
		{
			Name:        ToolGetPageAnalytics,
			Description: "Fetch recent analytics detail for the page under investigation (active users, sessions, bounce rate, traffic sources) over a window of up to 30 days.",
			InputSchema: map[string]any{
				"page_path": map[string]any{"type": "string"},
				"days":      map[string]any{"type": "integer"},
			},
		},
		{
			Name:        ToolGetPageRankings,
			Description: "Fetch recent search-index ranking detail for the page (position, clicks, impressions, top queries). The days argument is accepted but does not change the window queried.",
			InputSchema: map[string]any{
				"page_url": map[string]any{"type": "string"},
				"days":     map[string]any{"type": "integer"},
			},
		},
		{
			Name:        ToolGetPageSpeedDetail,
			Description: "Run a fresh performance audit against the page URL for a given device strategy (mobile or desktop) and return scores plus improvement opportunities.",
			InputSchema: map[string]any{
				"url":      map[string]any{"type": "string"},
				"strategy": map[string]any{"type": "string", "enum": []string{"mobile", "desktop"}},
			},
		},
		{
			Name:        ToolGetHubspotPageDetail,
			Description: "Fetch the CMS record detail for the page (content metadata, widget/form/CTA configuration).",
			InputSchema: map[string]any{
				"page_url": map[string]any{"type": "string"},
			},
		},
		{
			Name:        ToolCheckKeywordPageGap,
			Description: "Query the search index for any ranking rows whose query contains the given keyword, to check whether the site has organic coverage for it.",
			InputSchema: map[string]any{
				"keyword": map[string]any{"type": "string"},
			},
		},
		{
			Name:        ToolCheckSignalBus,
			Description: "Query the cross-agent signal bus for recent signals matching a topic (event type substring), to check whether another producer already flagged something relevant.",
			InputSchema: map[string]any{
				"topic": map[string]any{"type": "string"},
			},
		},
		{
			Name:        ToolEvaluateRecommendation,
			Description: "Self-check a candidate recommendation against active guardrails before submitting a finding. Returns pass/fail plus violations and warnings.",
			InputSchema: map[string]any{
				"action_type":    map[string]any{"type": "string"},
				"action_summary": map[string]any{"type": "string"},
				"severity":       map[string]any{"type": "string", "enum": []string{"critical", "high", "medium", "low"}},
				"confidence":     map[string]any{"type": "number"},
			},
		},
		{
			Name:        ToolSubmitFinding,
			Description: "Terminal action. Submit a finding and a recommended action for human review. Ends the investigation.",
			InputSchema: map[string]any{
				"finding_type":          map[string]any{"type": "string"},
				"severity":              map[string]any{"type": "string", "enum": []string{"critical", "high", "medium", "low"}},
				"title":                 map[string]any{"type": "string"},
				"description":           map[string]any{"type": "string"},
				"business_impact":       map[string]any{"type": "string"},
				"investigation_summary": map[string]any{"type": "string"},
				"action_type":           map[string]any{"type": "string"},
				"action_summary":        map[string]any{"type": "string"},
				"action_detail":         map[string]any{"type": "object"},
				"confidence":            map[string]any{"type": "number"},
				"risk_level":            map[string]any{"type": "string", "enum": []string{"low", "medium", "high"}},
			},
		},
		{
			Name:        ToolSkipFinding,
			Description: "Terminal action. Conclude the investigation with no actionable finding. Ends the investigation.",
			InputSchema: map[string]any{
				"reason":                map[string]any{"type": "string"},
				"investigation_summary": map[string]any{"type": "string"},
			},
		},
	}
}
