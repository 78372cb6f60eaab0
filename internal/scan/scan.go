// Package scan is the Scan Orchestrator (C8): the scheduled MWF
// pipeline's single cooperative task. It drives C1 -> C2 -> C4 -> C5 ->
// C6 -> C7 -> rank -> C9 -> C10 against a global deadline, recording
// per-step error strings rather than aborting, grounded on the
// teacher's time-budgeted iterating controller
// (pkg/agent/controller/iterating.go).
package scan

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/sitewatch/sitewatch/internal/adapters/analytics"
	"github.com/sitewatch/sitewatch/internal/adapters/cms"
	"github.com/sitewatch/sitewatch/internal/adapters/linkcheck"
	"github.com/sitewatch/sitewatch/internal/adapters/search"
	"github.com/sitewatch/sitewatch/internal/adapters/speed"
	"github.com/sitewatch/sitewatch/internal/agent"
	"github.com/sitewatch/sitewatch/internal/audit"
	"github.com/sitewatch/sitewatch/internal/auth"
	"github.com/sitewatch/sitewatch/internal/bus"
	"github.com/sitewatch/sitewatch/internal/concurrency"
	"github.com/sitewatch/sitewatch/internal/findings"
	"github.com/sitewatch/sitewatch/internal/inventory"
	"github.com/sitewatch/sitewatch/internal/metrics"
	"github.com/sitewatch/sitewatch/internal/score"
	"github.com/sitewatch/sitewatch/internal/store"
	"github.com/sitewatch/sitewatch/internal/telemetry"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Deadline budget, per §5.
const (
	defaultBudget = 120 * time.Second
	speedCutoff   = 50 * time.Second
	agentCutoff   = 80 * time.Second

	metaUpdateFanOut    = 50
	linkCheckFanOut     = 5
	brokenLinkCandidates = 15
	speedSpotChecks     = 2
	// AgentLoopPages is how many worst-flagged pages the agent loop
	// investigates per scan; the production default is 1 (§4.9).
	AgentLoopPages = 1
)

// Orchestrator wires every collaborator a scan needs.
type Orchestrator struct {
	Broker     *auth.Broker
	Analytics  *analytics.Adapter
	Search     *search.Adapter
	Speed      *speed.Adapter
	CMS        *cms.Adapter
	LinkCheck  *linkcheck.Adapter
	Inventory  *inventory.Reconciler
	Bus        *bus.Bus
	Store      *store.Store
	AgentLoop  *agent.Loop
	Findings   *findings.Writer
	SitemapURL string
	Budget     time.Duration

	// Metrics and Tracer are optional; a nil value disables instrumentation,
	// matching ariadne's IntegratedMonitoringSystem nil-safe guards.
	Metrics *metrics.Registry
	Tracer  *telemetry.Tracer
}

// observeStage records a stage's outcome/duration if Metrics is wired, and
// is a no-op otherwise.
func (o *Orchestrator) observeStage(stage string, start time.Time, err error) {
	if o.Metrics != nil {
		o.Metrics.ObserveStage(stage, err == nil, time.Since(start))
	}
}

// Result is the scan response contract from §7.
type Result struct {
	Success          bool
	PagesScanned     int
	PagesFlagged     int
	FindingsCreated  int
	BrokenLinksFound int
	MetaIssuesFound  int
	DurationMs       int64
	StepErrors       []string
}

// Run executes the 12-step pipeline.
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
		runCtx, span = o.Tracer.StartStage(runCtx, "scan")
		defer func() { telemetry.Finish(span, runErr) }()
	}
	defer o.observeStage("scan", start, runErr)

	result := &Result{}
	elapsed := func() time.Duration { return time.Since(start) }
	recordErr := func(step string, err error) {
		if err == nil {
			return
		}
		msg := fmt.Sprintf("%s: %v", step, err)
		result.StepErrors = append(result.StepErrors, msg)
		slog.Warn("scan step error", "step", step, "error", err)
	}

	// Step 1: ensure token, load active inventory.
	if _, err := o.Broker.Token(runCtx); err != nil {
		result.DurationMs = elapsed().Milliseconds()
		return result, fmt.Errorf("ensure token: %w", err)
	}
	preSyncPages, err := o.Store.GetActivePages(runCtx)
	if err != nil {
		result.DurationMs = elapsed().Milliseconds()
		return result, fmt.Errorf("load active inventory: %w", err)
	}
	pathToURL := make(map[string]string, len(preSyncPages))
	for _, p := range preSyncPages {
		pathToURL[inventory.PagePath(p.URL)] = p.URL
	}

	// Step 2/3: search-index window comparison.
	today := time.Now().UTC().Truncate(24 * time.Hour)
	searchRows, searchErr := o.Search.FetchWindowComparison(runCtx, 7)
	if o.Metrics != nil {
		o.Metrics.ObserveAdapterCall("search", searchErr == nil)
	}
	if rows, err := searchRows, searchErr; err != nil {
		recordErr("search_snapshots", err)
	} else {
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
		if err := o.Store.UpsertSearchSnapshots(runCtx, snaps); err != nil {
			recordErr("search_snapshots_upsert", err)
		}
	}

	// Step 4: analytics window comparison, matched path -> full URL via
	// the pre-sync inventory; a path with no known page is skipped (we
	// have nowhere to key the row).
	analyticsRows, analyticsErr := o.Analytics.FetchWindowComparison(runCtx, 7)
	if o.Metrics != nil {
		o.Metrics.ObserveAdapterCall("analytics", analyticsErr == nil)
	}
	if rows, err := analyticsRows, analyticsErr; err != nil {
		recordErr("analytics_snapshots", err)
	} else {
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
		if err := o.Store.UpsertAnalyticsSnapshots(runCtx, snaps); err != nil {
			recordErr("analytics_snapshots_upsert", err)
		}
	}

	// Step 5: speed spot checks, aborting the loop (not the scan) past
	// the 50s cutoff.
	if elapsed() <= speedCutoff {
		targets := selectSpeedTargets(preSyncPages, speedSpotChecks)
		for _, p := range targets {
			if elapsed() > speedCutoff {
				break
			}
			res, err := o.Speed.RunAudit(runCtx, p.URL, speed.StrategyMobile)
			if o.Metrics != nil {
				o.Metrics.ObserveAdapterCall("speed", err == nil)
			}
			if err != nil {
				recordErr("speed_audit:"+p.URL, err)
				continue
			}
			if err := o.Store.InsertSpeedScore(runCtx, speedResultToScore(p.URL, *res)); err != nil {
				recordErr("speed_score_insert:"+p.URL, err)
			}
		}
	} else {
		recordErr("speed_spot_checks", fmt.Errorf("skipped: elapsed %s exceeds %s cutoff", elapsed(), speedCutoff))
	}

	// Step 6: CMS sync, reload, HTML form supplement (all inside
	// Reconciler.Sync). The returned page slice is the stable inventory
	// snapshot for the remainder of the run, per §5's shared-resource
	// discipline.
	invResult, err := o.Inventory.Sync(runCtx)
	if err != nil {
		recordErr("cms_sync", err)
		invResult = &inventory.Result{Pages: preSyncPages}
	}
	pages := invResult.Pages
	result.PagesScanned = len(pages)

	// Step 7: broken-link check over a priority-selected sample.
	brokenCount := o.runLinkCheck(runCtx, pages, recordErr)
	result.BrokenLinksFound = brokenCount

	// Step 8: meta audit, bounded-concurrency batch update.
	metaIssuesFound := o.runMetaAudit(runCtx, pages, recordErr)
	result.MetaIssuesFound = metaIssuesFound

	// Step 9: score every page and persist.
	flagged := o.scoreAndPersist(runCtx, pages, recordErr)
	result.PagesFlagged = len(flagged)

	// Step 10: sort ascending by score (worst first) — scoreAndPersist
	// already returns pages sorted this way.

	// Auto-resolution sweep: close findings whose underlying condition
	// cleared now that every page carries a freshly computed score.
	if o.Findings != nil {
		if rescored, err := o.Store.GetActivePages(runCtx); err != nil {
			recordErr("auto_resolution_reload", err)
		} else if _, err := o.Findings.RunAutoResolution(runCtx, rescored); err != nil {
			recordErr("auto_resolution", err)
		}
	}

	// Step 11: agent loop, only while elapsed < 80s.
	if elapsed() < agentCutoff {
		n := AgentLoopPages
		if n > len(flagged) {
			n = len(flagged)
		}
		for i := 0; i < n; i++ {
			if elapsed() >= agentCutoff {
				break
			}
			fp := flagged[i]
			outcome, err := o.AgentLoop.Run(runCtx, fp)
			if err != nil {
				recordErr("agent_loop:"+fp.URL, err)
				continue
			}
			if o.Metrics != nil {
				if outcome.Skipped {
					o.Metrics.ObserveFinding("skip")
				} else {
					o.Metrics.ObserveFinding("submit")
				}
			}
			if !outcome.Skipped {
				result.FindingsCreated++
			}
		}
	} else if len(flagged) > 0 {
		recordErr("agent_loop", fmt.Errorf("skipped: elapsed %s exceeds %s cutoff", elapsed(), agentCutoff))
	}

	result.DurationMs = elapsed().Milliseconds()
	result.Success = true

	// Step 12: change log + signal.
	detail := map[string]any{
		"pages_scanned":      result.PagesScanned,
		"pages_flagged":      result.PagesFlagged,
		"findings_created":   result.FindingsCreated,
		"broken_links_found": result.BrokenLinksFound,
		"meta_issues_found":  result.MetaIssuesFound,
		"duration_ms":        result.DurationMs,
		"step_errors":        result.StepErrors,
	}
	if _, err := o.Store.AppendChangeLogEntry(ctx, store.ChangeLogEntry{
		Action:  "scan_completed",
		Detail:  store.JSON[map[string]any]{Val: detail},
		Outcome: store.OutcomePending,
	}); err != nil {
		recordErr("change_log_append", err)
	}
	o.Bus.Emit(ctx, bus.EventHealthScanComplete, detail)

	return result, nil
}

func trafficChangePct(current, previous int) float64 {
	if previous <= 0 {
		return 0
	}
	return 100 * float64(current-previous) / float64(previous)
}

func speedResultToScore(pageURL string, r speed.Result) store.SpeedScore {
	opps := make([]store.Opportunity, 0, len(r.Opportunities))
	for _, o := range r.Opportunities {
		opps = append(opps, store.Opportunity{Title: o.Title, SavingsMS: o.SavingsMs})
	}
	return store.SpeedScore{
		PageURL:       pageURL,
		TestDate:      time.Now().UTC(),
		Strategy:      store.Strategy(r.Strategy),
		Performance:   r.PerformanceScore,
		Accessibility: r.AccessibilityScore,
		SEO:           r.SEOScore,
		BestPractices: r.BestPracticesScore,
		LCPMs:         r.LCPMs,
		FIDMs:         r.FIDMs,
		CLS:           r.CLS,
		INPMs:         r.INPMs,
		Opportunities: store.JSON[[]store.Opportunity]{Val: opps},
	}
}

// selectSpeedTargets picks up to n pages by priority {never-tested,
// lowest-scored, landing-pages, any}, deduped, per §4.8 step 5.
func selectSpeedTargets(pages []store.Page, n int) []store.Page {
	seen := make(map[string]bool, n)
	var out []store.Page
	add := func(p store.Page) bool {
		if seen[p.URL] {
			return false
		}
		seen[p.URL] = true
		out = append(out, p)
		return len(out) >= n
	}

	for _, p := range pages {
		if p.LastHealthCheckAt == nil {
			if add(p) {
				return out
			}
		}
	}

	byScore := make([]store.Page, len(pages))
	copy(byScore, pages)
	sort.Slice(byScore, func(i, j int) bool {
		si, sj := scoreOrMax(byScore[i]), scoreOrMax(byScore[j])
		return si < sj
	})
	for _, p := range byScore {
		if add(p) {
			return out
		}
	}

	for _, p := range pages {
		if p.PageType == store.PageTypeLanding {
			if add(p) {
				return out
			}
		}
	}

	for _, p := range pages {
		if add(p) {
			return out
		}
	}
	return out
}

func scoreOrMax(p store.Page) int {
	if p.HealthScore == nil {
		return 1 << 30
	}
	return *p.HealthScore
}

// runLinkCheck fetches the sitemap, builds a 15-URL priority sample
// {previously-broken, landing-pages, sitemap}, checks each with a
// fan-out of 5, and persists results.
func (o *Orchestrator) runLinkCheck(ctx context.Context, pages []store.Page, recordErr func(string, error)) int {
	var candidates []string
	seen := make(map[string]bool)
	add := func(u string) {
		if u == "" || seen[u] {
			return
		}
		seen[u] = true
		candidates = append(candidates, u)
	}

	if prev, err := o.Store.BrokenLinkSourceURLs(ctx); err != nil {
		recordErr("link_check_previously_broken", err)
	} else {
		for _, u := range prev {
			add(u)
		}
	}
	for _, p := range pages {
		if p.PageType == store.PageTypeLanding {
			add(p.URL)
		}
	}
	if o.SitemapURL != "" {
		sitemapURLs, err := o.LinkCheck.FetchSitemapURLs(ctx, o.SitemapURL)
		if err != nil {
			recordErr("link_check_sitemap_fetch", err)
		}
		for _, u := range sitemapURLs {
			add(u)
		}
	}
	if len(candidates) > brokenLinkCandidates {
		candidates = candidates[:brokenLinkCandidates]
	}

	brokenBySource := make(map[string]int)
	var mu sync.Mutex
	errs := concurrency.RunIndexed(candidates, linkCheckFanOut, func(_ int, target string) error {
		source := sourcePageFor(target, pages)
		result := o.LinkCheck.CheckURL(ctx, target)
		rec := store.LinkHealthRecord{
			SourcePageURL: source,
			TargetURL:     target,
			LinkType:      store.LinkType(result.LinkType),
			HTTPStatus:    result.HTTPStatus,
			IsBroken:      result.IsBroken,
			IsRedirect:    result.IsRedirect,
			RedirectChain: store.JSON[[]string]{Val: result.RedirectChain},
			RedirectCount: result.RedirectCount,
			ErrorMessage:  result.ErrorMessage,
		}
		if result.IsBroken {
			mu.Lock()
			brokenBySource[source]++
			mu.Unlock()
		}
		return o.Store.UpsertLinkHealth(ctx, rec)
	})
	for _, err := range errs {
		recordErr("link_check", err)
	}

	total := 0
	for sourceURL, count := range brokenBySource {
		total += count
		if err := o.Store.UpdateBrokenLinkSummary(ctx, sourceURL, count > 0, count); err != nil {
			recordErr("broken_link_summary:"+sourceURL, err)
		}
	}
	return total
}

// sourcePageFor returns the source page recorded for a checked URL:
// every checked target is recorded as its own source.
func sourcePageFor(target string, pages []store.Page) string {
	for _, p := range pages {
		if p.URL == target {
			return p.URL
		}
	}
	if u, err := url.Parse(target); err == nil && u.Path != "" {
		return target
	}
	return target
}

// runMetaAudit runs C6 over the inventory and persists issue sets in
// concurrency-bounded batches of 50.
func (o *Orchestrator) runMetaAudit(ctx context.Context, pages []store.Page, recordErr func(string, error)) int {
	auditPages := make([]audit.Page, len(pages))
	for i, p := range pages {
		auditPages[i] = audit.Page{URL: p.URL, Title: p.Title, MetaDescription: p.MetaDescription}
	}
	results := audit.Audit(auditPages)

	issuesByURL := make(map[string][]string, len(results))
	total := 0
	for _, r := range results {
		if len(r.Issues) == 0 {
			continue
		}
		strs := make([]string, len(r.Issues))
		for i, iss := range r.Issues {
			strs[i] = string(iss)
		}
		issuesByURL[r.URL] = strs
		total += len(r.Issues)
	}

	errs := concurrency.Run(results, metaUpdateFanOut, func(r audit.Result) error {
		issues := issuesByURL[r.URL]
		return o.Store.UpdatePageMetaIssues(ctx, r.URL, issues)
	})
	for _, err := range errs {
		recordErr("meta_audit_update", err)
	}
	return total
}

// scoreAndPersist computes the weighted composite for every page,
// persists it, and returns the flagged subset (score < 50) as agent
// loop input, sorted ascending by score (worst first).
func (o *Orchestrator) scoreAndPersist(ctx context.Context, pages []store.Page, recordErr func(string, error)) []agent.FlaggedPage {
	var flagged []agent.FlaggedPage

	for _, p := range pages {
		var analyticsSnap *store.AnalyticsSnapshot
		if snap, err := o.Store.LatestAnalyticsSnapshot(ctx, p.URL); err != nil {
			recordErr("latest_analytics:"+p.URL, err)
		} else {
			analyticsSnap = snap
		}

		var searchSnap *store.SearchSnapshot
		if snap, err := o.Store.LatestSearchSnapshot(ctx, inventory.NormalizeURL(p.URL)); err != nil {
			recordErr("latest_search:"+p.URL, err)
		} else {
			searchSnap = snap
		}

		var speedScore *store.SpeedScore
		if snap, err := o.Store.LatestSpeedScore(ctx, p.URL, store.StrategyMobile); err != nil {
			recordErr("latest_speed:"+p.URL, err)
		} else {
			speedScore = snap
		}

		in := score.Input{
			PageType:        score.PageType(p.PageType),
			HasForm:         p.HasForm,
			MissingMeta:     hasIssue(p.MetaIssues.Val, "missing_meta"),
			MissingTitle:    hasIssue(p.MetaIssues.Val, "missing_title"),
			HasTitleIssue:   hasIssue(p.MetaIssues.Val, "title_too_long") || hasIssue(p.MetaIssues.Val, "title_too_short"),
			HasDuplicate:    hasIssue(p.MetaIssues.Val, "duplicate_title") || hasIssue(p.MetaIssues.Val, "duplicate_meta"),
			HasBrokenLinks:  p.HasBrokenLinks,
			IsIndexed:       p.IsIndexed,
			ContentAgeDays:  p.ContentAgeDays,
		}
		if analyticsSnap != nil {
			in.TrafficChangePct = &analyticsSnap.TrafficChangePct
		}
		if searchSnap != nil {
			in.AvgPosition = &searchSnap.AvgPosition
		}
		if speedScore != nil {
			in.PerformanceScore = &speedScore.Performance
		}

		breakdown := score.Score(in)
		total := breakdown.Total()

		storeBreakdown := store.ScoreBreakdown{
			TrafficTrend:     breakdown.TrafficTrend,
			SEORanking:       breakdown.SEORanking,
			PageSpeed:        breakdown.PageSpeed,
			ContentFreshness: breakdown.ContentFreshness,
			ConversionHealth: breakdown.ConversionHealth,
			TechnicalHealth:  breakdown.TechnicalHealth,
		}
		if err := o.Store.UpdatePageHealth(ctx, p.URL, total, storeBreakdown); err != nil {
			recordErr("update_page_health:"+p.URL, err)
		}

		if score.IsFlagged(total) {
			flagged = append(flagged, agent.FlaggedPage{
				URL:            p.URL,
				PageType:       p.PageType,
				Title:          p.Title,
				Score:          total,
				Breakdown:      storeBreakdown,
				FlagReasons:    flagReasons(breakdown, total),
				LastUpdatedAt:  p.LastUpdatedAt,
				HasForm:        p.HasForm,
				MetaIssues:     p.MetaIssues.Val,
				HasBrokenLinks: p.HasBrokenLinks,
				IsIndexed:      p.IsIndexed,
				CMSPageID:      p.CMSPageID,
				Analytics:      analyticsSnap,
				Search:         searchSnap,
				Speed:          speedScore,
			})
		}
	}

	sort.Slice(flagged, func(i, j int) bool { return flagged[i].Score < flagged[j].Score })
	return flagged
}

func hasIssue(issues []string, want string) bool {
	for _, i := range issues {
		if i == want {
			return true
		}
	}
	return false
}

func flagReasons(b score.Breakdown, total int) []string {
	var reasons []string
	if b.TrafficTrend <= 8 {
		reasons = append(reasons, "traffic decline")
	}
	if b.SEORanking <= 8 {
		reasons = append(reasons, "poor search ranking")
	}
	if b.PageSpeed <= 10 {
		reasons = append(reasons, "slow page speed")
	}
	if b.ContentFreshness <= 5 {
		reasons = append(reasons, "stale content")
	}
	if b.TechnicalHealth < 10 {
		reasons = append(reasons, "technical issues (broken links or meta issues)")
	}
	if total < score.CriticalThreshold {
		reasons = append(reasons, "critical health score")
	}
	return reasons
}
