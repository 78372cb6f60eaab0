// Package inventory implements the Page Inventory reconciliation
// protocol (C5): fetch the CMS's view of the world, diff it against the
// active store inventory, commit the diff in bounded-concurrency
// batches, reload, then supplement with an HTML form-detection pass.
package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sitewatch/sitewatch/internal/adapters/cms"
	"github.com/sitewatch/sitewatch/internal/adapters/linkcheck"
	"github.com/sitewatch/sitewatch/internal/concurrency"
	"github.com/sitewatch/sitewatch/internal/store"
)

// updateFanOut and insertChunkSize are the §5 parallelism caps for CMS
// sync: updates committed in bounded-concurrency batches, inserts in
// chunks per statement.
const (
	updateFanOut    = 50
	insertChunkSize = 100
	formDetectFanOut = 20
)

// Reconciler wires the CMS adapter, the HTML form-detection helper, and
// the store together to run the C5 protocol.
type Reconciler struct {
	cms       *cms.Adapter
	linkcheck *linkcheck.Adapter
	store     *store.Store
}

// New builds a Reconciler.
func New(cmsAdapter *cms.Adapter, linkcheckAdapter *linkcheck.Adapter, s *store.Store) *Reconciler {
	return &Reconciler{cms: cmsAdapter, linkcheck: linkcheckAdapter, store: s}
}

// Result summarizes one reconciliation run.
type Result struct {
	Inserted       int
	Updated        int
	Deactivated    int64
	FormsDetected  int
	Pages          []store.Page
}

// Sync runs the full §4.5 protocol: fetch, diff, commit, reload,
// form-detection supplement. The returned Pages slice is the
// post-supplement active inventory the orchestrator holds as its
// stable snapshot for the remainder of the run.
func (r *Reconciler) Sync(ctx context.Context) (*Result, error) {
	records, err := r.cms.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch CMS records: %w", err)
	}

	existing, err := r.store.GetActivePages(ctx)
	if err != nil {
		return nil, fmt.Errorf("load existing inventory: %w", err)
	}
	existingByURL := make(map[string]store.Page, len(existing))
	for _, p := range existing {
		existingByURL[p.URL] = p
	}

	var updates, inserts []store.Page
	seenURLs := make([]string, 0, len(records))
	now := time.Now().UTC()

	for _, rec := range records {
		seenURLs = append(seenURLs, rec.URL)
		page := recordToPage(rec, now)

		if prior, ok := existingByURL[rec.URL]; ok {
			page.ID = prior.ID
			page.IsIndexed = prior.IsIndexed
			page.HasBrokenLinks = prior.HasBrokenLinks
			page.BrokenLinkCount = prior.BrokenLinkCount
			page.HealthScore = prior.HealthScore
			page.HealthScoreBreakdown = prior.HealthScoreBreakdown
			page.LastHealthCheckAt = prior.LastHealthCheckAt
			page.MetaIssues = prior.MetaIssues
			updates = append(updates, page)
		} else {
			page.IsIndexed = true
			inserts = append(inserts, page)
		}
	}

	var insertErrs []error
	for i := 0; i < len(inserts); i += insertChunkSize {
		end := min(i+insertChunkSize, len(inserts))
		if err := r.store.UpsertPagesBatch(ctx, inserts[i:end]); err != nil {
			insertErrs = append(insertErrs, err)
		}
	}
	if len(insertErrs) > 0 {
		return nil, fmt.Errorf("insert chunk failures: %w", insertErrs[0])
	}

	updateErrs := concurrency.Run(updates, updateFanOut, func(p store.Page) error {
		return r.store.UpsertPage(ctx, p)
	})
	if len(updateErrs) > 0 {
		slog.Warn("inventory sync: some updates failed", "count", len(updateErrs), "first_error", updateErrs[0])
	}

	deactivated, err := r.store.DeactivatePagesNotIn(ctx, seenURLs)
	if err != nil {
		return nil, fmt.Errorf("deactivate stale pages: %w", err)
	}

	pages, err := r.store.GetActivePages(ctx)
	if err != nil {
		return nil, fmt.Errorf("reload inventory: %w", err)
	}

	formsDetected := r.supplementForms(ctx, pages)

	return &Result{
		Inserted:      len(inserts),
		Updated:       len(updates) - len(updateErrs),
		Deactivated:   deactivated,
		FormsDetected: formsDetected,
		Pages:         pages,
	}, nil
}

// supplementForms GETs every landing page currently reporting
// has_form=false and checks the live HTML for a <form> element,
// persisting and reflecting any find back into the in-memory slice.
func (r *Reconciler) supplementForms(ctx context.Context, pages []store.Page) int {
	var candidates []int
	for i, p := range pages {
		if p.PageType == store.PageTypeLanding && !p.HasForm {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return 0
	}

	var detected int32
	concurrency.Run(candidates, formDetectFanOut, func(idx int) error {
		hasForm, err := r.linkcheck.HasHTMLForm(ctx, pages[idx].URL)
		if err != nil {
			return err
		}
		if !hasForm {
			return nil
		}
		if err := r.store.UpsertPage(ctx, withDetectedForm(pages[idx])); err != nil {
			return err
		}
		pages[idx].HasForm = true
		atomic.AddInt32(&detected, 1)
		return nil
	})
	return int(detected)
}

func withDetectedForm(p store.Page) store.Page {
	p.HasForm = true
	return p
}

func recordToPage(rec cms.Record, now time.Time) store.Page {
	var pageType store.PageType
	switch rec.Family {
	case cms.FamilyLanding:
		pageType = store.PageTypeLanding
	case cms.FamilyBlog:
		pageType = store.PageTypeBlog
	default:
		pageType = store.PageTypeSite
	}

	var lastUpdated *time.Time
	var ageDays *int
	if t, err := time.Parse(time.RFC3339, rec.LastUpdatedAt); err == nil {
		lastUpdated = &t
		days := int(math.Floor(now.Sub(t).Hours() / 24))
		ageDays = &days
	}

	var publishedAt *time.Time
	if t, err := time.Parse(time.RFC3339, rec.PublishedAt); err == nil {
		publishedAt = &t
	}

	return store.Page{
		URL:                   rec.URL,
		Slug:                  rec.Slug,
		Title:                 rec.Title,
		MetaDescription:       rec.MetaDesc,
		PageType:              pageType,
		CMSPageID:             rec.CMSPageID,
		HasForm:               rec.HasForm,
		FormIDs:               store.JSON[[]string]{Val: rec.FormIDs},
		HasCTA:                rec.HasCTA,
		CTAIDs:                store.JSON[[]string]{Val: rec.CTAIDs},
		PublishedAt:           publishedAt,
		LastUpdatedAt:         lastUpdated,
		ContentAgeDays:        ageDays,
		IsActive:              true,
		TitleLength:           len(rec.Title),
		MetaDescriptionLength: len(rec.MetaDesc),
	}
}

// PagePath extracts the path component from a page's full URL, used by
// the scan orchestrator's analytics join (analytics keys by path, pages
// key by full URL per §4.8's URL-matching policy).
func PagePath(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return pageURL
	}
	return u.Path
}

// NormalizeURL strips a trailing slash for the search-snapshot join.
func NormalizeURL(u string) string {
	return strings.TrimSuffix(u, "/")
}
