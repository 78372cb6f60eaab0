package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"

	"github.com/sitewatch/sitewatch/internal/adapters/analytics"
	"github.com/sitewatch/sitewatch/internal/adapters/cms"
	"github.com/sitewatch/sitewatch/internal/adapters/search"
	"github.com/sitewatch/sitewatch/internal/adapters/speed"
	"github.com/sitewatch/sitewatch/internal/bus"
)

// htmlToMarkdown converts one CMS body-content field to markdown,
// grounded on 99souls-ariadne's processor.go conversion pipeline
// (base + commonmark plugins; no table plugin since CMS page bodies are
// prose, not data tables).
func htmlToMarkdown(html string) (string, error) {
	conv := converter.NewConverter(converter.WithPlugins(base.NewBasePlugin(), commonmark.NewCommonmarkPlugin()))
	return conv.ConvertString(html)
}

// Deps wires every collaborator a single investigation's non-terminal
// tools may call. Terminal tools are handled directly by the loop, not
// through dispatch, since they end the conversation rather than produce
// an observation to feed back.
type Deps struct {
	Analytics *analytics.Adapter
	Search    *search.Adapter
	Speed     *speed.Adapter
	CMS       *cms.Adapter
	Bus       *bus.Bus
}

// maxDays clamps a caller-supplied window length per §4.9's ≤30 d bound
// on get_page_analytics/get_page_rankings.
const maxDays = 30

// dispatchTool executes one non-terminal tool call, grounded on the
// teacher's CompositeToolExecutor switch-based dispatch
// (pkg/agent/orchestrator/tool_executor.go): an unrecognized tool name
// or a failed call never panics, it returns an error the loop folds into
// the observation fed back to the model.
func dispatchTool(ctx context.Context, name string, input map[string]any, page FlaggedPage, deps *Deps) (any, error) {
	switch name {
	case ToolGetPageAnalytics:
		return execGetPageAnalytics(ctx, input, page, deps)
	case ToolGetPageRankings:
		return execGetPageRankings(ctx, input, page, deps)
	case ToolGetPageSpeedDetail:
		return execGetPageSpeedDetail(ctx, input, page, deps)
	case ToolGetHubspotPageDetail:
		return execGetHubspotPageDetail(ctx, page, deps)
	case ToolCheckKeywordPageGap:
		return execCheckKeywordPageGap(ctx, input, deps)
	case ToolCheckSignalBus:
		return execCheckSignalBus(ctx, input, deps)
	default:
		return nil, fmt.Errorf("unknown tool %q", name)
	}
}

func execGetPageAnalytics(ctx context.Context, input map[string]any, page FlaggedPage, deps *Deps) (any, error) {
	days := intArg(input, "days", 7)
	if days <= 0 || days > maxDays {
		days = maxDays
	}
	detail, err := deps.Analytics.FetchPageDetail(ctx, pagePathArg(input, page))
	if err != nil {
		return nil, err
	}
	sources, err := deps.Analytics.FetchTrafficSources(ctx, pagePathArg(input, page), days)
	if err != nil {
		return nil, err
	}
	return map[string]any{"detail": detail, "traffic_sources": sources}, nil
}

func execGetPageRankings(ctx context.Context, input map[string]any, page FlaggedPage, deps *Deps) (any, error) {
	detail, err := deps.Search.FetchPageDetail(ctx, stringArg(input, "page_url", page.URL))
	if err != nil {
		return nil, err
	}
	queries, err := deps.Search.FetchTopQueries(ctx, stringArg(input, "page_url", page.URL), 25)
	if err != nil {
		return nil, err
	}
	return map[string]any{"detail": detail, "top_queries": queries}, nil
}

func execGetPageSpeedDetail(ctx context.Context, input map[string]any, page FlaggedPage, deps *Deps) (any, error) {
	targetURL := stringArg(input, "url", page.URL)
	strategy := speed.Strategy(stringArg(input, "strategy", string(speed.StrategyMobile)))
	if strategy != speed.StrategyMobile && strategy != speed.StrategyDesktop {
		strategy = speed.StrategyMobile
	}
	return deps.Speed.RunAudit(ctx, targetURL, strategy)
}

// htmlBodyFields are the CMS detail keys known to carry raw HTML content
// rather than plain text or metadata.
var htmlBodyFields = []string{"html", "post_body", "widget_html"}

func execGetHubspotPageDetail(ctx context.Context, page FlaggedPage, deps *Deps) (any, error) {
	if page.CMSPageID == "" {
		return nil, fmt.Errorf("page %q has no CMS record id on file", page.URL)
	}
	detail, err := deps.CMS.FetchRecordDetail(ctx, page.CMSPageID)
	if err != nil {
		return nil, err
	}
	renderBodyFieldsAsMarkdown(detail)
	return detail, nil
}

// renderBodyFieldsAsMarkdown replaces any known raw-HTML field in a CMS
// detail payload with its markdown rendering in place, so the model reads
// page body content instead of markup noise.
func renderBodyFieldsAsMarkdown(detail map[string]any) {
	for _, field := range htmlBodyFields {
		raw, ok := detail[field].(string)
		if !ok || raw == "" {
			continue
		}
		if md, err := htmlToMarkdown(raw); err == nil {
			detail[field] = md
		}
	}
}

func execCheckKeywordPageGap(ctx context.Context, input map[string]any, deps *Deps) (any, error) {
	keyword := stringArg(input, "keyword", "")
	if keyword == "" {
		return nil, fmt.Errorf("keyword is required")
	}
	queries, err := deps.Search.FetchByQueryContains(ctx, keyword)
	if err != nil {
		return nil, err
	}
	hasOrganicPage := false
	for _, q := range queries {
		if q.Position > 0 && q.Position <= 20 {
			hasOrganicPage = true
			break
		}
	}
	return map[string]any{"keyword": keyword, "matches": queries, "has_organic_page": hasOrganicPage}, nil
}

func execCheckSignalBus(ctx context.Context, input map[string]any, deps *Deps) (any, error) {
	topic := stringArg(input, "topic", "")
	since := time.Now().UTC().Add(-7 * 24 * time.Hour)
	var eventTypes []bus.EventType
	for _, et := range allEventTypes {
		if topic == "" || matchesTopic(string(et), topic) {
			eventTypes = append(eventTypes, et)
		}
	}
	signals, err := deps.Bus.Query(ctx, "", eventTypes, since, 20)
	if err != nil {
		return nil, err
	}
	return signals, nil
}

var allEventTypes = []bus.EventType{
	bus.EventPageTrafficDrop, bus.EventPageRankingLoss, bus.EventPageSpeedAlert,
	bus.EventPageHealthCritical, bus.EventTrendingSearchTerm, bus.EventHighCPCAlert,
	bus.EventHealthScanComplete, bus.EventSiteTrafficDrop, bus.EventNewBrokenLinks,
}

func matchesTopic(eventType, topic string) bool {
	return len(eventType) >= len(topic) && containsSubstring(eventType, topic)
}

func containsSubstring(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

func pagePathArg(input map[string]any, page FlaggedPage) string {
	if v := stringArg(input, "page_path", ""); v != "" {
		return v
	}
	return page.URL
}

func stringArg(input map[string]any, key, def string) string {
	if v, ok := input[key].(string); ok && v != "" {
		return v
	}
	return def
}

func intArg(input map[string]any, key string, def int) int {
	switch v := input[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}

func floatArg(input map[string]any, key string, def float64) float64 {
	if v, ok := input[key].(float64); ok {
		return v
	}
	return def
}
