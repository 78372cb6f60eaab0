// Package weekly is the Weekly Orchestrator (C11): a deeper,
// once-weekly sweep sharing the scan orchestrator's deadline discipline
// but trading its per-scan narrowness (a handful of worst pages) for
// full-inventory audits and a narrative digest, grounded on spec.md
// §4.11.
package weekly

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/sitewatch/sitewatch/internal/adapters/analytics"
	"github.com/sitewatch/sitewatch/internal/adapters/cms"
	"github.com/sitewatch/sitewatch/internal/adapters/linkcheck"
	"github.com/sitewatch/sitewatch/internal/adapters/search"
	"github.com/sitewatch/sitewatch/internal/audit"
	"github.com/sitewatch/sitewatch/internal/auth"
	"github.com/sitewatch/sitewatch/internal/bus"
	"github.com/sitewatch/sitewatch/internal/concurrency"
	"github.com/sitewatch/sitewatch/internal/inventory"
	"github.com/sitewatch/sitewatch/internal/llmclient"
	"github.com/sitewatch/sitewatch/internal/metrics"
	"github.com/sitewatch/sitewatch/internal/notify"
	"github.com/sitewatch/sitewatch/internal/store"
	"github.com/sitewatch/sitewatch/internal/telemetry"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const (
	defaultBudget    = 120 * time.Second
	staleAgeDays     = 180
	brokenLinkFanOut = 5
	digestMaxTokens  = 1500
	signalWindow     = 30 * 24 * time.Hour
	topN             = 5
)

// Orchestrator wires every collaborator the weekly sweep needs.
type Orchestrator struct {
	Broker     *auth.Broker
	Analytics  *analytics.Adapter
	Search     *search.Adapter
	CMS        *cms.Adapter
	LinkCheck  *linkcheck.Adapter
	Bus        *bus.Bus
	Store      *store.Store
	LLM        *llmclient.Client
	Notify     *notify.Service
	SitemapURL string
	Budget     time.Duration

	// Metrics and Tracer are optional; a nil value disables instrumentation.
	Metrics *metrics.Registry
	Tracer  *telemetry.Tracer
}

// KeywordGap is one entry of the keyword-coverage analysis (§4.11 step 6).
type KeywordGap struct {
	Keyword        string
	HasOrganicPage bool
	Position       *float64
}

// Result summarizes one weekly run.
type Result struct {
	Success            bool
	PagesAudited       int
	TrackingHealth     string
	BrokenLinksChecked int
	BrokenLinksFound   int
	MetaIssuesFound    int
	StalePages         int
	KeywordGaps        []KeywordGap
	DigestID           int64
	DigestFallback     bool
	DurationMs         int64
	StepErrors         []string
}

// Run executes the 9-step weekly sweep.
func (o *Orchestrator) Run(ctx context.Context) (runResult *Result, runErr error) {
	start := time.Now()
	budget := o.Budget
	if budget <= 0 {
		budget = defaultBudget
	}
	runCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	if o.Tracer != nil {
		var span oteltrace.Span
		runCtx, span = o.Tracer.StartStage(runCtx, "weekly")
		defer func() { telemetry.Finish(span, runErr) }()
	}
	if o.Metrics != nil {
		defer func() { o.Metrics.ObserveStage("weekly", runErr == nil, time.Since(start)) }()
	}

	result := &Result{}
	elapsed := func() time.Duration { return time.Since(start) }
	recordErr := func(step string, err error) {
		if err == nil {
			return
		}
		msg := fmt.Sprintf("%s: %v", step, err)
		result.StepErrors = append(result.StepErrors, msg)
		slog.Warn("weekly step error", "step", step, "error", err)
	}

	// Step 1: ensure token.
	if _, err := o.Broker.Token(runCtx); err != nil {
		result.DurationMs = elapsed().Milliseconds()
		return result, fmt.Errorf("ensure token: %w", err)
	}

	pages, err := o.Store.GetActivePages(runCtx)
	if err != nil {
		result.DurationMs = elapsed().Milliseconds()
		return result, fmt.Errorf("load active inventory: %w", err)
	}
	result.PagesAudited = len(pages)
	pathToURL := make(map[string]string, len(pages))
	for _, p := range pages {
		pathToURL[inventory.PagePath(p.URL)] = p.URL
	}

	// Step 2: parallel search + analytics pull (sequential calls here;
	// each adapter call is itself a single round trip, and the stages
	// downstream only need the merged result, not overlap with step 1).
	searchRows, searchErr := o.Search.FetchWindowComparison(runCtx, 7)
	if searchErr != nil {
		recordErr("search_snapshots", searchErr)
	}
	analyticsRows, analyticsErr := o.Analytics.FetchWindowComparison(runCtx, 7)
	if analyticsErr != nil {
		recordErr("analytics_snapshots", analyticsErr)
	}
	if searchErr == nil {
		if err := o.Store.UpsertSearchSnapshots(runCtx, toSearchSnapshots(searchRows)); err != nil {
			recordErr("search_snapshots_upsert", err)
		}
	}
	if analyticsErr == nil {
		if err := o.Store.UpsertAnalyticsSnapshots(runCtx, toAnalyticsSnapshots(analyticsRows, pathToURL)); err != nil {
			recordErr("analytics_snapshots_upsert", err)
		}
	}

	// Step 3: conversion audit.
	trackingHealth, err := o.runConversionAudit(runCtx)
	if err != nil {
		recordErr("conversion_audit", err)
	}
	result.TrackingHealth = trackingHealth

	// Step 4: full sitemap link sweep.
	checked, broken := o.runLinkSweep(runCtx, recordErr)
	result.BrokenLinksChecked = checked
	result.BrokenLinksFound = broken

	// Step 5: full meta audit.
	result.MetaIssuesFound = o.runMetaAudit(runCtx, pages, recordErr)

	// Step 6: keyword-coverage analysis.
	gaps, err := o.runKeywordCoverage(runCtx)
	if err != nil {
		recordErr("keyword_coverage", err)
	}
	result.KeywordGaps = gaps

	// Step 7: stale-page sweep.
	result.StalePages = len(stalePages(pages))

	// Step 8: trend snapshot.
	trend, err := o.buildTrendSnapshot(runCtx, pages, analyticsRows)
	if err != nil {
		recordErr("trend_snapshot", err)
	} else {
		if err := o.Store.InsertTrendSnapshot(runCtx, trend); err != nil {
			recordErr("trend_snapshot_insert", err)
		}
		o.emitTrendSignals(ctx, trend)
	}

	// Step 9: digest narrative.
	digestID, fallback := o.buildDigest(runCtx, result, trend)
	result.DigestID = digestID
	result.DigestFallback = fallback
	if digestID != 0 {
		o.Notify.NotifyDigestReady(runCtx, notify.DigestInput{
			DigestID:       digestID,
			PagesAudited:   result.PagesAudited,
			BrokenLinks:    result.BrokenLinksFound,
			TrackingHealth: result.TrackingHealth,
		})
	}

	result.DurationMs = elapsed().Milliseconds()
	result.Success = true

	detail := map[string]any{
		"pages_audited":        result.PagesAudited,
		"tracking_health":      result.TrackingHealth,
		"broken_links_checked": result.BrokenLinksChecked,
		"broken_links_found":   result.BrokenLinksFound,
		"meta_issues_found":    result.MetaIssuesFound,
		"stale_pages":          result.StalePages,
		"keyword_gaps":         len(result.KeywordGaps),
		"digest_fallback":      result.DigestFallback,
		"duration_ms":          result.DurationMs,
		"step_errors":          result.StepErrors,
	}
	if _, err := o.Store.AppendChangeLogEntry(ctx, store.ChangeLogEntry{
		Action:  "weekly_completed",
		Detail:  store.JSON[map[string]any]{Val: detail},
		Outcome: store.OutcomePending,
	}); err != nil {
		recordErr("change_log_append", err)
	}

	return result, nil
}

func toSearchSnapshots(rows []search.Row) []store.SearchSnapshot {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	snaps := make([]store.SearchSnapshot, 0, len(rows))
	for _, r := range rows {
		snaps = append(snaps, store.SearchSnapshot{
			PageURL:             inventory.NormalizeURL(r.PageURL),
			SnapshotDate:        today,
			TotalClicks:         r.TotalClicks,
			TotalImpressions:    r.TotalImpressions,
			AvgCTR:              r.AvgCTR,
			AvgPosition:         r.AvgPosition,
			PreviousClicks:      r.PrevClicks,
			PreviousImpressions: r.PrevImpressions,
			PreviousPosition:    r.PrevPosition,
			PositionChange:      r.PositionChange,
		})
	}
	return snaps
}

func toAnalyticsSnapshots(rows []analytics.Row, pathToURL map[string]string) []store.AnalyticsSnapshot {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	snaps := make([]store.AnalyticsSnapshot, 0, len(rows))
	for _, r := range rows {
		pageURL, ok := pathToURL[r.PagePath]
		if !ok {
			continue
		}
		snaps = append(snaps, store.AnalyticsSnapshot{
			PageURL:                pageURL,
			SnapshotDate:           today,
			ActiveUsers:            r.ActiveUsers,
			Sessions:               r.Sessions,
			PageViews:              r.PageViews,
			BounceRate:             r.BounceRate,
			AvgSessionDuration:     r.AvgSessionDuration,
			UsersPreviousPeriod:    r.PreviousUsers,
			SessionsPreviousPeriod: r.PreviousSessions,
			TrafficChangePct:       trafficChangePct(r.ActiveUsers, r.PreviousUsers),
		})
	}
	return snaps
}

func trafficChangePct(current, previous int) float64 {
	if previous <= 0 {
		return 0
	}
	return 100 * float64(current-previous) / float64(previous)
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

func normalizeEventName(s string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "")
}

// eventCoversForm implements §9's fuzzy name match: a generic
// "form_submit"/"generate_lead" event covers every form; a specific
// "form_submit_<form_id>" event covers only that form. Preserved as-is
// per the open question — this may both over- and under-match.
func eventCoversForm(eventName string, formID string) bool {
	norm := normalizeEventName(eventName)
	switch norm {
	case "formsubmit", "generatelead":
		return true
	}
	return norm == "formsubmit"+normalizeEventName(formID)
}

// runConversionAudit classifies tracking health and persists the result
// (§4.11 step 3).
func (o *Orchestrator) runConversionAudit(ctx context.Context) (string, error) {
	events, err := o.Analytics.FetchKeyEvents(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch key events: %w", err)
	}
	forms, err := o.CMS.FetchFormsWithSubmissionCounts(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch forms: %w", err)
	}

	var totalSubmissions int
	var gaps []string
	for _, f := range forms {
		totalSubmissions += f.SubmissionCount
		covered := false
		for _, e := range events {
			if eventCoversForm(e.Name, f.FormID) {
				covered = true
				break
			}
		}
		if !covered {
			gaps = append(gaps, f.FormID)
		}
	}

	var trackingHealth string
	switch {
	case len(events) == 0:
		trackingHealth = "not_configured"
	case len(gaps) == 0:
		trackingHealth = "healthy"
	case len(gaps) >= len(forms):
		trackingHealth = "broken"
	default:
		trackingHealth = "degraded"
	}

	recommendations := conversionRecommendations(trackingHealth, len(forms), totalSubmissions, len(gaps))

	result := store.ConversionAuditResult{
		TrackingHealth:   trackingHealth,
		ConfiguredEvents: len(events),
		TotalForms:       len(forms),
		TotalSubmissions: totalSubmissions,
		Gaps:             store.JSON[[]string]{Val: gaps},
		Recommendations:  store.JSON[[]string]{Val: recommendations},
	}
	if err := o.Store.InsertConversionAuditResult(ctx, result); err != nil {
		return trackingHealth, fmt.Errorf("insert conversion audit result: %w", err)
	}
	return trackingHealth, nil
}

// conversionRecommendations produces the templated text from scenario
// S5: the not_configured case must cite the submission total.
func conversionRecommendations(trackingHealth string, formCount, totalSubmissions, gapCount int) []string {
	switch trackingHealth {
	case "not_configured":
		return []string{fmt.Sprintf(
			"Configure analytics conversion tracking: %d forms have recorded %d total submissions with zero conversion events configured to track them.",
			formCount, totalSubmissions,
		)}
	case "broken":
		return []string{fmt.Sprintf(
			"Conversion tracking is broken: none of %d forms are covered by a configured event; %d total historical submissions are invisible to analytics.",
			formCount, totalSubmissions,
		)}
	case "degraded":
		return []string{fmt.Sprintf(
			"%d of %d forms have no matching conversion event; review event naming for full coverage.",
			gapCount, formCount,
		)}
	default:
		return nil
	}
}

// runLinkSweep fetches the full sitemap and checks every URL, recording
// each as source_page_url = target_url per §9's chosen semantic.
// UpsertLinkHealth's is_broken=false path auto-resolves a previously
// broken row, satisfying "mark previously-broken but now-responsive
// targets resolved".
func (o *Orchestrator) runLinkSweep(ctx context.Context, recordErr func(string, error)) (checked, broken int) {
	if o.SitemapURL == "" {
		return 0, 0
	}
	urls, err := o.LinkCheck.FetchSitemapURLs(ctx, o.SitemapURL)
	if err != nil {
		recordErr("link_sweep_sitemap_fetch", err)
		return 0, 0
	}

	type outcome struct {
		url    string
		result linkcheck.CheckResult
	}
	outcomes := make([]outcome, len(urls))
	errs := concurrency.RunIndexed(urls, brokenLinkFanOut, func(i int, target string) error {
		res := o.LinkCheck.CheckURL(ctx, target)
		outcomes[i] = outcome{url: target, result: res}
		rec := store.LinkHealthRecord{
			SourcePageURL: target,
			TargetURL:     target,
			LinkType:      store.LinkType(res.LinkType),
			HTTPStatus:    res.HTTPStatus,
			IsBroken:      res.IsBroken,
			IsRedirect:    res.IsRedirect,
			RedirectChain: store.JSON[[]string]{Val: res.RedirectChain},
			RedirectCount: res.RedirectCount,
			ErrorMessage:  res.ErrorMessage,
		}
		return o.Store.UpsertLinkHealth(ctx, rec)
	})
	for _, err := range errs {
		recordErr("link_sweep", err)
	}

	for _, oc := range outcomes {
		if oc.result.IsBroken {
			broken++
		}
	}
	return len(urls), broken
}

func (o *Orchestrator) runMetaAudit(ctx context.Context, pages []store.Page, recordErr func(string, error)) int {
	auditPages := make([]audit.Page, len(pages))
	for i, p := range pages {
		auditPages[i] = audit.Page{URL: p.URL, Title: p.Title, MetaDescription: p.MetaDescription}
	}
	results := audit.Audit(auditPages)

	total := 0
	for _, r := range results {
		if len(r.Issues) == 0 {
			continue
		}
		total += len(r.Issues)
		strs := make([]string, len(r.Issues))
		for i, iss := range r.Issues {
			strs[i] = string(iss)
		}
		if err := o.Store.UpdatePageMetaIssues(ctx, r.URL, strs); err != nil {
			recordErr("meta_audit_update:"+r.URL, err)
		}
	}
	return total
}

// runKeywordCoverage consumes trending_search_term/high_cpc_alert
// signals, extracts distinct keywords, and checks organic coverage for
// each (§4.11 step 6).
func (o *Orchestrator) runKeywordCoverage(ctx context.Context) ([]KeywordGap, error) {
	since := time.Now().Add(-signalWindow)

	keywords := make(map[string]struct{})
	for _, eventType := range []bus.EventType{bus.EventTrendingSearchTerm, bus.EventHighCPCAlert} {
		values, err := o.Bus.QueryPayloadField(ctx, eventType, ".keyword", since)
		if err != nil {
			return nil, fmt.Errorf("query %s payloads: %w", eventType, err)
		}
		for _, v := range values {
			if s, ok := v.(string); ok && s != "" {
				keywords[s] = struct{}{}
			}
		}
	}

	gaps := make([]KeywordGap, 0, len(keywords))
	for keyword := range keywords {
		rows, err := o.Search.FetchByQueryContains(ctx, keyword)
		if err != nil {
			gaps = append(gaps, KeywordGap{Keyword: keyword})
			continue
		}
		gaps = append(gaps, gapFromQueryRows(keyword, rows))
	}

	sort.Slice(gaps, func(i, j int) bool { return gaps[i].Keyword < gaps[j].Keyword })
	return gaps, nil
}

// gapFromQueryRows reduces one keyword's search-index rows to its gap
// entry: organic coverage is any row ranking in the top 20, and Position
// tracks the best (lowest) ranking row so nil means no organic page.
func gapFromQueryRows(keyword string, rows []search.Query) KeywordGap {
	hasOrganic := false
	var bestPosition *float64
	for _, r := range rows {
		if r.Position <= 20 {
			hasOrganic = true
			pos := r.Position
			if bestPosition == nil || pos < *bestPosition {
				bestPosition = &pos
			}
		}
	}
	return KeywordGap{Keyword: keyword, HasOrganicPage: hasOrganic, Position: bestPosition}
}

func stalePages(pages []store.Page) []store.Page {
	var stale []store.Page
	for _, p := range pages {
		if p.LastUpdatedAt == nil {
			stale = append(stale, p)
			continue
		}
		if p.ContentAgeDays != nil && *p.ContentAgeDays > staleAgeDays {
			stale = append(stale, p)
		}
	}
	return stale
}

// buildTrendSnapshot computes the period rollup from the active pages as
// loaded at the start of the run and this run's analytics rows (§4.11
// step 8).
func (o *Orchestrator) buildTrendSnapshot(ctx context.Context, pages []store.Page, analyticsRows []analytics.Row) (store.TrendSnapshot, error) {
	const period = "weekly"

	var totalTraffic int
	for _, r := range analyticsRows {
		totalTraffic += r.ActiveUsers
	}

	prior, err := o.Store.PriorTrendSnapshot(ctx, period)
	if err != nil {
		return store.TrendSnapshot{}, fmt.Errorf("prior trend snapshot: %w", err)
	}
	var trafficChange float64
	if prior != nil && prior.TotalTraffic > 0 {
		trafficChange = 100 * float64(totalTraffic-prior.TotalTraffic) / float64(prior.TotalTraffic)
	}

	var sum, n float64
	var buckets [5]int
	declining := make([]pageDelta, 0, len(pages))
	for _, p := range pages {
		if p.HealthScore != nil {
			sum += float64(*p.HealthScore)
			n++
			buckets[bucketFor(*p.HealthScore)]++
		}
	}
	for _, r := range analyticsRows {
		declining = append(declining, pageDelta{path: r.PagePath, changePct: trafficChangePct(r.ActiveUsers, r.PreviousUsers)})
	}
	sort.Slice(declining, func(i, j int) bool { return declining[i].changePct < declining[j].changePct })

	avgHealth := 0.0
	if n > 0 {
		avgHealth = sum / n
	}

	brokenCount, err := o.Store.CountBrokenLinks(ctx)
	if err != nil {
		return store.TrendSnapshot{}, fmt.Errorf("count broken links: %w", err)
	}
	weekAgo := time.Now().Add(-7 * 24 * time.Hour)
	newBroken, err := o.Store.NewBrokenLinksSince(ctx, weekAgo)
	if err != nil {
		return store.TrendSnapshot{}, fmt.Errorf("new broken links: %w", err)
	}

	metaIssues := 0
	for _, p := range pages {
		metaIssues += len(p.MetaIssues.Val)
	}

	return store.TrendSnapshot{
		Period:                 period,
		SnapshotDate:           time.Now().UTC().Truncate(24 * time.Hour),
		TotalTraffic:           totalTraffic,
		TrafficChangePct:       trafficChange,
		AvgHealthScore:         math.Round(avgHealth*100) / 100,
		HealthScoreBuckets:     store.JSON[[5]int]{Val: buckets},
		TopDecliningPages:      store.JSON[[]string]{Val: topPaths(declining, false)},
		TopImprovingPages:      store.JSON[[]string]{Val: topPaths(declining, true)},
		BrokenLinksCount:       brokenCount,
		NewBrokenLinks:         newBroken,
		MetaIssuesCount:        metaIssues,
	}, nil
}

type pageDelta struct {
	path      string
	changePct float64
}

func topPaths(sorted []pageDelta, improving bool) []string {
	var out []string
	if improving {
		for i := len(sorted) - 1; i >= 0 && len(out) < topN; i-- {
			if sorted[i].changePct > 0 {
				out = append(out, sorted[i].path)
			}
		}
		return out
	}
	for i := 0; i < len(sorted) && len(out) < topN; i++ {
		if sorted[i].changePct < 0 {
			out = append(out, sorted[i].path)
		}
	}
	return out
}

func bucketFor(score int) int {
	switch {
	case score < 20:
		return 0
	case score < 40:
		return 1
	case score < 60:
		return 2
	case score < 80:
		return 3
	default:
		return 4
	}
}

func (o *Orchestrator) emitTrendSignals(ctx context.Context, t store.TrendSnapshot) {
	if t.NewBrokenLinks > 0 {
		o.Bus.Emit(ctx, bus.EventNewBrokenLinks, map[string]any{"count": t.NewBrokenLinks})
	}
	if t.TrafficChangePct < -15 {
		o.Bus.Emit(ctx, bus.EventSiteTrafficDrop, map[string]any{"traffic_change_pct": t.TrafficChangePct})
	}
}

// buildDigest renders a structured prompt from the collected figures and
// requests a short narrative summary, falling back to a deterministic
// one-liner on failure (§4.11 step 9).
func (o *Orchestrator) buildDigest(ctx context.Context, r *Result, t store.TrendSnapshot) (id int64, fallback bool) {
	prompt := digestPrompt(r, t)

	summary, err := o.LLM.Summarize(ctx, prompt, digestMaxTokens)
	if err != nil {
		slog.Warn("weekly digest: LLM summarize failed, using fallback", "error", err)
		summary = fallbackSummary(r, t)
		fallback = true
	}

	id, err = o.Store.InsertWeeklyDigest(ctx, store.WeeklyDigest{Summary: summary, Fallback: fallback})
	if err != nil {
		slog.Warn("weekly digest: insert failed", "error", err)
		return 0, fallback
	}
	return id, fallback
}

func digestPrompt(r *Result, t store.TrendSnapshot) string {
	var b strings.Builder
	b.WriteString("Summarize this week's website health sweep in a short narrative for a marketing stakeholder.\n\n")
	fmt.Fprintf(&b, "Pages audited: %d\n", r.PagesAudited)
	fmt.Fprintf(&b, "Total traffic: %d (change %.1f%% vs prior week)\n", t.TotalTraffic, t.TrafficChangePct)
	fmt.Fprintf(&b, "Average health score: %.1f\n", t.AvgHealthScore)
	fmt.Fprintf(&b, "Conversion tracking health: %s\n", r.TrackingHealth)
	fmt.Fprintf(&b, "Broken links: %d found of %d checked (%d newly broken this week)\n", r.BrokenLinksFound, r.BrokenLinksChecked, t.NewBrokenLinks)
	fmt.Fprintf(&b, "Meta issues found: %d\n", r.MetaIssuesFound)
	fmt.Fprintf(&b, "Stale pages (no update in 180+ days): %d\n", r.StalePages)
	if len(r.KeywordGaps) > 0 {
		b.WriteString("Keyword gaps:\n")
		for _, g := range r.KeywordGaps {
			fmt.Fprintf(&b, "- %q: organic coverage = %t\n", g.Keyword, g.HasOrganicPage)
		}
	}
	return b.String()
}

func fallbackSummary(r *Result, t store.TrendSnapshot) string {
	return fmt.Sprintf(
		"Weekly sweep: %d pages audited, traffic change %.1f%%, avg health %.1f, tracking %s, %d broken links, %d meta issues, %d stale pages.",
		r.PagesAudited, t.TrafficChangePct, t.AvgHealthScore, r.TrackingHealth, r.BrokenLinksFound, r.MetaIssuesFound, r.StalePages,
	)
}
