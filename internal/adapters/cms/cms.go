// Package cms is the C2 CMS adapter: paginated enumeration of the three
// page families, per-record detail, and form enumeration with per-form
// submission counts resolved at a bounded concurrency.
package cms

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/sitewatch/sitewatch/internal/adapters/httputil"
	"github.com/sitewatch/sitewatch/internal/concurrency"
)

const pageSize = 100

// formSubmissionFanOut is the §5 cap on concurrent submission-count
// resolutions.
const formSubmissionFanOut = 5

// Family is one of the three enumerable page families.
type Family string

const (
	FamilySite    Family = "site"
	FamilyLanding Family = "landing"
	FamilyBlog    Family = "blog"
)

var allFamilies = []Family{FamilySite, FamilyLanding, FamilyBlog}

// Record is one CMS page, with its embedded form/CTA ids already
// extracted from the widget payload.
type Record struct {
	CMSPageID     string
	URL           string
	Slug          string
	Title         string
	MetaDesc      string
	Family        Family
	PublishedAt   string
	LastUpdatedAt string
	HasForm       bool
	FormIDs       []string
	HasCTA        bool
	CTAIDs        []string
}

// Form is one CMS-managed form, with its submission count resolved
// separately (expensive call, bounded fan-out).
type Form struct {
	FormID           string
	PageID           string
	SubmissionCount  int
}

// Adapter wraps httputil.Client with the CMS private-app token.
type Adapter struct {
	client *httputil.Client
	token  string
}

// New builds a CMS Adapter.
func New(client *httputil.Client, token string) *Adapter {
	return &Adapter{client: client, token: token}
}

type pageResponse struct {
	Results []struct {
		ID            string `json:"id"`
		URL           string `json:"url"`
		Slug          string `json:"slug"`
		Title         string `json:"title"`
		MetaDesc      string `json:"meta_description"`
		PublishedAt   string `json:"published_at"`
		LastUpdatedAt string `json:"last_updated_at"`
		Widgets       []struct {
			Type   string `json:"type"`
			FormID string `json:"form_id,omitempty"`
			CTAID  string `json:"cta_id,omitempty"`
		} `json:"widgets"`
	} `json:"results"`
	NextCursor string `json:"next_cursor"`
}

// FetchAll enumerates the union of site pages, landing pages, and blog
// posts across all three families, paging 100-per-request per family.
func (a *Adapter) FetchAll(ctx context.Context) ([]Record, error) {
	var all []Record
	for _, family := range allFamilies {
		records, err := a.fetchFamily(ctx, family)
		if err != nil {
			return nil, fmt.Errorf("fetch family %q: %w", family, err)
		}
		all = append(all, records...)
	}
	return all, nil
}

func (a *Adapter) fetchFamily(ctx context.Context, family Family) ([]Record, error) {
	var records []Record
	cursor := ""
	for {
		q := url.Values{
			"family": {string(family)},
			"limit":  {strconv.Itoa(pageSize)},
			"token":  {a.token},
		}
		if cursor != "" {
			q.Set("cursor", cursor)
		}

		var resp pageResponse
		if err := a.client.GetJSON(ctx, "/v1/cms/pages", q, &resp); err != nil {
			return nil, err
		}

		for _, r := range resp.Results {
			rec := Record{
				CMSPageID:     r.ID,
				URL:           r.URL,
				Slug:          r.Slug,
				Title:         r.Title,
				MetaDesc:      r.MetaDesc,
				Family:        family,
				PublishedAt:   r.PublishedAt,
				LastUpdatedAt: r.LastUpdatedAt,
			}
			for _, w := range r.Widgets {
				switch w.Type {
				case "form":
					if w.FormID != "" {
						rec.HasForm = true
						rec.FormIDs = append(rec.FormIDs, w.FormID)
					}
				case "cta":
					if w.CTAID != "" {
						rec.HasCTA = true
						rec.CTAIDs = append(rec.CTAIDs, w.CTAID)
					}
				}
			}
			records = append(records, rec)
		}

		if resp.NextCursor == "" {
			break
		}
		cursor = resp.NextCursor
	}
	return records, nil
}

// FetchRecordDetail returns the raw per-record detail payload.
func (a *Adapter) FetchRecordDetail(ctx context.Context, cmsPageID string) (map[string]any, error) {
	var out map[string]any
	q := url.Values{"id": {cmsPageID}, "token": {a.token}}
	if err := a.client.GetJSON(ctx, "/v1/cms/page-detail", q, &out); err != nil {
		return nil, fmt.Errorf("fetch record detail %q: %w", cmsPageID, err)
	}
	return out, nil
}

type formListResponse struct {
	Forms []struct {
		FormID string `json:"form_id"`
		PageID string `json:"page_id"`
	} `json:"forms"`
}

type submissionCountResponse struct {
	Count int `json:"count"`
}

// FetchFormsWithSubmissionCounts enumerates all forms, resolving each
// form's submission count with a concurrency cap of 5. A single form's
// count-resolution failure does not fail the whole enumeration; it is
// left at zero and the error is returned alongside the (partial) list.
func (a *Adapter) FetchFormsWithSubmissionCounts(ctx context.Context) ([]Form, error) {
	var listResp formListResponse
	q := url.Values{"token": {a.token}}
	if err := a.client.GetJSON(ctx, "/v1/cms/forms", q, &listResp); err != nil {
		return nil, fmt.Errorf("fetch forms: %w", err)
	}

	forms := make([]Form, len(listResp.Forms))
	for i, f := range listResp.Forms {
		forms[i] = Form{FormID: f.FormID, PageID: f.PageID}
	}

	errs := concurrency.RunIndexed(forms, formSubmissionFanOut, func(i int, f Form) error {
		var out submissionCountResponse
		q := url.Values{"form_id": {f.FormID}, "token": {a.token}}
		if err := a.client.GetJSON(ctx, "/v1/cms/form-submission-count", q, &out); err != nil {
			return fmt.Errorf("submission count %q: %w", f.FormID, err)
		}
		forms[i].SubmissionCount = out.Count
		return nil
	})

	if len(errs) > 0 {
		return forms, fmt.Errorf("%d of %d submission-count lookups failed: %w", len(errs), len(forms), errs[0])
	}
	return forms, nil
}
