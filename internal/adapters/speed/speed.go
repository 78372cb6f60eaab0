// Package speed is the C2 performance-tester adapter: runs a full audit
// for a (url, strategy) pair, extracts Core Web Vitals and up to 10
// ranked improvement opportunities. Each call is expensive (15-25s) and
// must be rate-limited.
package speed

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/sitewatch/sitewatch/internal/adapters/httputil"
	"github.com/sitewatch/sitewatch/internal/ratelimit"
)

const rateLimitKey = "speed-adapter"

// Strategy is the test device emulation mode.
type Strategy string

const (
	StrategyMobile  Strategy = "mobile"
	StrategyDesktop Strategy = "desktop"
)

// Opportunity is one ranked improvement suggestion from the audit.
type Opportunity struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	SavingsMs     float64 `json:"savings_ms"`
}

// Result is one full audit's extracted figures.
type Result struct {
	URL                string
	Strategy           Strategy
	PerformanceScore   int
	AccessibilityScore int
	SEOScore           int
	BestPracticesScore int
	LCPMs              float64
	FIDMs              float64
	CLS                float64
	INPMs              float64
	Opportunities      []Opportunity
}

// Adapter wraps httputil.Client with a shared rate-limit bucket; the
// interval given to the bucket must match the provider's published
// per-key-credential rate limit.
type Adapter struct {
	client  *httputil.Client
	limiter *ratelimit.Bucket
	apiKey  string
}

// New builds a performance-tester Adapter.
func New(client *httputil.Client, limiter *ratelimit.Bucket, apiKey string) *Adapter {
	return &Adapter{client: client, limiter: limiter, apiKey: apiKey}
}

type auditResponse struct {
	Scores struct {
		Performance   int `json:"performance"`
		Accessibility int `json:"accessibility"`
		SEO           int `json:"seo"`
		BestPractices int `json:"best_practices"`
	} `json:"scores"`
	Vitals struct {
		LCPMs float64 `json:"lcp_ms"`
		FIDMs float64 `json:"fid_ms"`
		CLS   float64 `json:"cls"`
		INPMs float64 `json:"inp_ms"`
	} `json:"vitals"`
	Opportunities []Opportunity `json:"opportunities"`
}

// RunAudit rate-limits, then runs a full audit for url under strategy.
// At most 10 ranked opportunities are kept, highest savings first (the
// remote API is expected to already rank them; this only truncates).
func (a *Adapter) RunAudit(ctx context.Context, targetURL string, strategy Strategy) (*Result, error) {
	if err := a.limiter.Wait(ctx, rateLimitKey); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	var resp auditResponse
	q := url.Values{
		"url":      {targetURL},
		"strategy": {string(strategy)},
		"key":      {a.apiKey},
	}
	if err := a.client.GetJSON(ctx, "/v1/speed/audit", q, &resp); err != nil {
		return nil, fmt.Errorf("run audit %q/%s: %w", targetURL, strategy, err)
	}

	opps := resp.Opportunities
	if len(opps) > 10 {
		opps = opps[:10]
	}

	return &Result{
		URL:                targetURL,
		Strategy:           strategy,
		PerformanceScore:   resp.Scores.Performance,
		AccessibilityScore: resp.Scores.Accessibility,
		SEOScore:           resp.Scores.SEO,
		BestPracticesScore: resp.Scores.BestPractices,
		LCPMs:              resp.Vitals.LCPMs,
		FIDMs:              resp.Vitals.FIDMs,
		CLS:                resp.Vitals.CLS,
		INPMs:              resp.Vitals.INPMs,
		Opportunities:      opps,
	}, nil
}

// DefaultTimeout is the recommended per-call context timeout; audits
// routinely take 15-25s and the orchestrator budgets around that.
const DefaultTimeout = 30 * time.Second
