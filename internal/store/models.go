// Package store is sitewatch's persistence layer. It is grounded on the
// teacher's pkg/database (a pgx-backed connection wrapped for migrations)
// but, in place of the teacher's ent-generated client — which requires a
// `go generate` pass over ent/schema/*.go that this environment cannot
// run — it talks to Postgres directly through jackc/pgx/v5 with
// jmoiron/sqlx for struct scanning, the same pairing jordigilh/kubernaut
// uses for its own store layer. See DESIGN.md for the full rationale.
package store

import "time"

// PageType enumerates the closed page_type vocabulary.
type PageType string

const (
	PageTypeLanding PageType = "landing"
	PageTypeSite    PageType = "site"
	PageTypeBlog    PageType = "blog"
	PageTypePillar  PageType = "pillar"
)

// Page is the canonical per-URL record synced from the CMS (C5).
type Page struct {
	ID                    int64      `db:"id"`
	URL                   string     `db:"url"`
	Slug                  string     `db:"slug"`
	Title                 string     `db:"title"`
	MetaDescription       string     `db:"meta_description"`
	PageType              PageType   `db:"page_type"`
	CMSPageID             string     `db:"cms_page_id"`
	HasForm               bool       `db:"has_form"`
	FormIDs               JSON[[]string] `db:"form_ids"`
	HasCTA                bool       `db:"has_cta"`
	CTAIDs                JSON[[]string] `db:"cta_ids"`
	PublishedAt           *time.Time `db:"published_at"`
	LastUpdatedAt         *time.Time `db:"last_updated_at"`
	ContentAgeDays        *int       `db:"content_age_days"`
	IsIndexed             bool       `db:"is_indexed"`
	IsActive              bool       `db:"is_active"`
	TitleLength           int        `db:"title_length"`
	MetaDescriptionLength int        `db:"meta_description_length"`
	MetaIssues            JSON[[]string] `db:"meta_issues"`
	HasBrokenLinks        bool       `db:"has_broken_links"`
	BrokenLinkCount       int        `db:"broken_link_count"`
	HealthScore           *int       `db:"health_score"`
	HealthScoreBreakdown  *JSON[ScoreBreakdown] `db:"health_score_breakdown"`
	LastHealthCheckAt     *time.Time `db:"last_health_check_at"`
}

// ScoreBreakdown is the per-dimension decomposition of Page.HealthScore,
// stored as JSON alongside the total (§4.7).
type ScoreBreakdown struct {
	TrafficTrend      int `json:"traffic_trend"`
	SEORanking        int `json:"seo_ranking"`
	PageSpeed         int `json:"page_speed"`
	ContentFreshness  int `json:"content_freshness"`
	ConversionHealth  int `json:"conversion_health"`
	TechnicalHealth   int `json:"technical_health"`
}

// Total sums the breakdown's dimensions; must equal Page.HealthScore (TESTABLE PROPERTIES #1).
func (b ScoreBreakdown) Total() int {
	return b.TrafficTrend + b.SEORanking + b.PageSpeed + b.ContentFreshness + b.ConversionHealth + b.TechnicalHealth
}

// AnalyticsSnapshot is a per-page-per-day record from the analytics adapter.
type AnalyticsSnapshot struct {
	ID                     int64     `db:"id"`
	PageURL                string    `db:"page_url"`
	SnapshotDate           time.Time `db:"snapshot_date"`
	ActiveUsers            int       `db:"active_users"`
	Sessions               int       `db:"sessions"`
	PageViews              int       `db:"page_views"`
	BounceRate             float64   `db:"bounce_rate"`
	AvgSessionDuration     float64   `db:"avg_session_duration"`
	UsersPreviousPeriod    int       `db:"users_previous_period"`
	SessionsPreviousPeriod int       `db:"sessions_previous_period"`
	TrafficChangePct       float64   `db:"traffic_change_pct"`
}

// SearchSnapshot is a per-page-per-day record from the search-index adapter.
// Position semantics: lower is better; PositionChange is positive when the
// page improved (prev - current).
type SearchSnapshot struct {
	ID                       int64     `db:"id"`
	PageURL                  string    `db:"page_url"`
	SnapshotDate             time.Time `db:"snapshot_date"`
	TotalClicks              int       `db:"total_clicks"`
	TotalImpressions         int       `db:"total_impressions"`
	AvgCTR                   float64   `db:"avg_ctr"`
	AvgPosition              float64   `db:"avg_position"`
	PreviousClicks           int       `db:"previous_clicks"`
	PreviousImpressions      int       `db:"previous_impressions"`
	PreviousPosition         float64   `db:"previous_position"`
	PositionChange           float64   `db:"position_change"`
}

// Strategy enumerates the performance-tester run-strategy vocabulary.
type Strategy string

const (
	StrategyMobile  Strategy = "mobile"
	StrategyDesktop Strategy = "desktop"
)

// Opportunity is one ranked improvement item from a speed audit.
type Opportunity struct {
	Title     string  `json:"title"`
	SavingsMS float64 `json:"savings_ms"`
}

// SpeedScore is an append-only record from the performance-tester adapter.
type SpeedScore struct {
	ID             int64         `db:"id"`
	PageURL        string        `db:"page_url"`
	TestDate       time.Time     `db:"test_date"`
	Strategy       Strategy      `db:"strategy"`
	Performance    int           `db:"performance"`
	Accessibility  int           `db:"accessibility"`
	SEO            int           `db:"seo"`
	BestPractices  int           `db:"best_practices"`
	LCPMs          float64       `db:"lcp_ms"`
	FIDMs          float64       `db:"fid_ms"`
	CLS            float64       `db:"cls"`
	INPMs          float64       `db:"inp_ms"`
	Opportunities  JSON[[]Opportunity] `db:"opportunities"`
}

// LinkType enumerates internal vs external links.
type LinkType string

const (
	LinkInternal LinkType = "internal"
	LinkExternal LinkType = "external"
)

// LinkHealthRecord is keyed by (source_page_url, target_url) — see the
// spec's Open Question about sitemap-driven runs collapsing this into an
// effective URL-health table (§9). Sitewatch preserves that semantic
// rather than introducing a distinct table, documented in DESIGN.md.
type LinkHealthRecord struct {
	ID              int64      `db:"id"`
	SourcePageURL   string     `db:"source_page_url"`
	TargetURL       string     `db:"target_url"`
	LinkType        LinkType   `db:"link_type"`
	HTTPStatus      *int       `db:"http_status"`
	IsBroken        bool       `db:"is_broken"`
	IsRedirect      bool       `db:"is_redirect"`
	RedirectChain   JSON[[]string] `db:"redirect_chain"`
	RedirectCount   int        `db:"redirect_count"`
	ErrorMessage    string     `db:"error_message"`
	FirstDetectedAt time.Time  `db:"first_detected_at"`
	LastCheckedAt   time.Time  `db:"last_checked_at"`
	IsResolved      bool       `db:"is_resolved"`
	ResolvedAt      *time.Time `db:"resolved_at"`
}

// Severity enumerates the closed severity vocabulary shared by Finding and
// DecisionQueueItem.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// FindingStatus enumerates Finding's lifecycle states.
type FindingStatus string

const (
	FindingStatusNew                 FindingStatus = "new"
	FindingStatusRecommendationDraft FindingStatus = "recommendation_drafted"
	FindingStatusApproved            FindingStatus = "approved"
	FindingStatusCompleted           FindingStatus = "completed"
	FindingStatusExpired             FindingStatus = "expired"
	FindingStatusSkipped             FindingStatus = "skipped"
	FindingStatusResolved            FindingStatus = "resolved"
)

// IsTerminal reports whether status is one of the Finding lifecycle's
// terminal states.
func (s FindingStatus) IsTerminal() bool {
	switch s {
	case FindingStatusCompleted, FindingStatusExpired, FindingStatusResolved:
		return true
	default:
		return false
	}
}

// Finding is an agent-loop investigation result (C9/C10).
type Finding struct {
	ID                   int64      `db:"id"`
	PageURL              *string    `db:"page_url"`
	FindingType          string     `db:"finding_type"`
	Severity             Severity   `db:"severity"`
	Title                string     `db:"title"`
	Description          string     `db:"description"`
	BusinessImpact       string     `db:"business_impact"`
	AgentLoopIterations  int        `db:"agent_loop_iterations"`
	ToolsUsed            JSON[[]string] `db:"tools_used"`
	InvestigationSummary string     `db:"investigation_summary"`
	Status               FindingStatus `db:"status"`
	SkipReason           string     `db:"skip_reason"`
	ExpiresAt            *time.Time `db:"expires_at"`
	HealthScoreAtDetect  *int       `db:"health_score_at_detection"`
	HealthScoreAtResolve *int       `db:"health_score_at_resolution"`
	CreatedAt            time.Time  `db:"created_at"`
}

// QueueStatus enumerates DecisionQueueItem's lifecycle states.
type QueueStatus string

const (
	QueueStatusPending  QueueStatus = "pending"
	QueueStatusApproved QueueStatus = "approved"
	QueueStatusRejected QueueStatus = "rejected"
	QueueStatusExpired  QueueStatus = "expired"
)

// RiskLevel enumerates DecisionQueueItem.RiskLevel.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// DecisionQueueItem is a pending or resolved recommendation awaiting human
// review (C10).
type DecisionQueueItem struct {
	ID            int64          `db:"id"`
	FindingID     *int64         `db:"finding_id"`
	ActionType    string         `db:"action_type"`
	ActionSummary string         `db:"action_summary"`
	ActionDetail  JSON[map[string]any] `db:"action_detail"`
	Severity      Severity       `db:"severity"`
	Confidence    float64        `db:"confidence"`
	RiskLevel     RiskLevel      `db:"risk_level"`
	Priority      int            `db:"priority"`
	Status        QueueStatus    `db:"status"`
	Reviewer      string         `db:"reviewer"`
	ReviewedAt    *time.Time     `db:"reviewed_at"`
	ReviewNotes   string         `db:"review_notes"`
	ExpiresAt     time.Time      `db:"expires_at"`
	CreatedAt     time.Time      `db:"created_at"`
}

// ChangeLogOutcome enumerates ChangeLogEntry.Outcome.
type ChangeLogOutcome string

const (
	OutcomePending  ChangeLogOutcome = "pending"
	OutcomeRejected ChangeLogOutcome = "rejected"
	OutcomeExecuted ChangeLogOutcome = "executed"
)

// ChangeLogEntry is an append-only audit record of every externally
// meaningful action.
type ChangeLogEntry struct {
	ID          int64            `db:"id"`
	Action      string           `db:"action"`
	Detail      JSON[map[string]any] `db:"detail"`
	Outcome     ChangeLogOutcome `db:"outcome"`
	ExecutedAt  *time.Time       `db:"executed_at"`
	ExecutedBy  *string          `db:"executed_by"`
	CreatedAt   time.Time        `db:"created_at"`
}

// TrendSnapshot is a per-period aggregate computed by the weekly
// orchestrator (C11).
type TrendSnapshot struct {
	ID                    int64     `db:"id"`
	Period                string    `db:"period"` // "daily" | "weekly"
	SnapshotDate          time.Time `db:"snapshot_date"`
	TotalTraffic          int       `db:"total_traffic"`
	TrafficChangePct      float64   `db:"traffic_change_pct"`
	AvgHealthScore        float64   `db:"avg_health_score"`
	HealthScoreBuckets    JSON[[5]int] `db:"health_score_distribution"`
	TopDecliningPages     JSON[[]string] `db:"top_declining_pages"`
	TopImprovingPages     JSON[[]string] `db:"top_improving_pages"`
	BrokenLinksCount      int       `db:"broken_links_count"`
	NewBrokenLinks        int       `db:"new_broken_links"`
	MetaIssuesCount       int       `db:"meta_issues_count"`
}

// Signal is an append-only cross-agent coordination record (C3).
type Signal struct {
	ID          int64          `db:"id"`
	SourceAgent string         `db:"source_agent"`
	EventType   string         `db:"event_type"`
	Payload     JSON[map[string]any] `db:"payload"`
	CreatedAt   time.Time      `db:"created_at"`
}

// ConversionAuditResult is a per-run snapshot of the weekly conversion
// audit's tracking-health classification (§4.11 step 3). Supplemented
// beyond spec.md's §3 data model since the weekly digest's conversion
// section needs a persisted row to serve the "conversion-audit latest"
// read API.
type ConversionAuditResult struct {
	ID                int64          `db:"id"`
	RunAt             time.Time      `db:"run_at"`
	TrackingHealth    string         `db:"tracking_health"` // not_configured|healthy|degraded|broken
	ConfiguredEvents  int            `db:"configured_events"`
	TotalForms        int            `db:"total_forms"`
	TotalSubmissions  int            `db:"total_submissions"`
	Gaps              JSON[[]string] `db:"gaps"`
	Recommendations   JSON[[]string] `db:"recommendations"`
}

// WeeklyDigest is the persisted narrative row from §4.11 step 9.
type WeeklyDigest struct {
	ID        int64     `db:"id"`
	RunAt     time.Time `db:"run_at"`
	Summary   string    `db:"summary"`
	Fallback  bool      `db:"fallback"` // true when the LLM call failed and a deterministic summary was used
}

// Guardrail is a named, active rule checked before a recommendation is
// finalized (§3, §9). Only blocked_action_types and min_confidence are
// interpreted today; other rule_category values are accepted and stored
// but have no behavioral effect yet (documented as an unimplemented rule
// vocabulary per §9's open question).
type Guardrail struct {
	Name            string    `db:"name"`
	RuleCategory    string    `db:"rule_category"`
	BlockedActions  JSON[[]string] `db:"blocked_action_types"`
	MinConfidence   *float64  `db:"min_confidence"`
	ViolationAction string    `db:"violation_action"`
	Config          JSON[map[string]any] `db:"config"`
	UpdatedAt       time.Time `db:"updated_at"`
}

// Notification is a user-visible surfacing of a recommendation or review
// outcome (C10).
type Notification struct {
	ID        int64     `db:"id"`
	Severity  Severity  `db:"severity"`
	Message   string    `db:"message"`
	FindingID *int64    `db:"finding_id"`
	CreatedAt time.Time `db:"created_at"`
	ReadAt    *time.Time `db:"read_at"`
}
