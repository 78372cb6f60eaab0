// Package linkcheck is the C2 link checker: fetches the sitemap,
// HEAD-checks candidate URLs with a bounded manual redirect chain, and
// offers an HTML form-detection helper that supplements CMS widget
// parsing. Sitemap fetch uses gocolly/colly; the HEAD checks and the HTML
// fetch for form detection use net/http, and form detection parses the
// fetched document with goquery, matching the teacher corpus's ariadne
// crawler stack rather than a hand-rolled regex scraper.
package linkcheck

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/sitewatch/sitewatch/internal/apperr"
)

const (
	maxRedirects    = 5
	headTimeout     = 10 * time.Second
	htmlFetchTimeout = 5 * time.Second
)

// LinkType classifies a checked URL relative to the site origin.
type LinkType string

const (
	LinkInternal LinkType = "internal"
	LinkExternal LinkType = "external"
)

// CheckResult is one URL's redirect/status outcome.
type CheckResult struct {
	TargetURL      string
	LinkType       LinkType
	HTTPStatus     *int
	IsBroken       bool
	IsRedirect     bool
	RedirectChain  []string
	RedirectCount  int
	ErrorMessage   string
}

// Adapter holds the site origin used to classify link types and the
// User-Agent sent with its requests; each check builds its own HTTP client.
type Adapter struct {
	baseOrigin string
	userAgent  string
}

// New builds a linkcheck Adapter. baseOrigin is the canonical site
// origin (scheme+host) used to classify internal vs external links.
func New(baseOrigin, userAgent string) *Adapter {
	if userAgent == "" {
		userAgent = "sitewatch-linkcheck/1.0"
	}
	return &Adapter{baseOrigin: baseOrigin, userAgent: userAgent}
}

type urlset struct {
	URLs []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

// FetchSitemapURLs fetches sitemapURL and best-effort parses every
// <loc> element. A malformed sitemap yields an empty slice rather than
// an error (DataError is non-fatal per the error taxonomy).
func (a *Adapter) FetchSitemapURLs(ctx context.Context, sitemapURL string) ([]string, error) {
	var body []byte
	var fetchErr error

	c := colly.NewCollector(colly.UserAgent(a.userAgent))
	c.SetRequestTimeout(htmlFetchTimeout)
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
	})
	c.OnError(func(r *colly.Response, err error) {
		fetchErr = err
	})

	if err := c.Visit(sitemapURL); err != nil {
		fetchErr = err
	}
	c.Wait()

	if fetchErr != nil {
		return nil, fmt.Errorf("%w: fetch sitemap: %v", apperr.ErrRemote, fetchErr)
	}

	var parsed urlset
	if err := xml.Unmarshal(body, &parsed); err != nil {
		// Malformed sitemap is a DataError, treated as empty result.
		return nil, nil
	}

	urls := make([]string, 0, len(parsed.URLs))
	for _, u := range parsed.URLs {
		if u.Loc != "" {
			urls = append(urls, u.Loc)
		}
	}
	return urls, nil
}

// CheckURL performs a manual-redirect HEAD request against targetURL,
// following at most maxRedirects hops itself so the chain is visible.
func (a *Adapter) CheckURL(ctx context.Context, targetURL string) CheckResult {
	result := CheckResult{TargetURL: targetURL, LinkType: a.classify(targetURL)}

	client := &http.Client{
		Timeout: headTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	current := targetURL
	for hop := 0; hop <= maxRedirects; hop++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, current, nil)
		if err != nil {
			result.IsBroken = true
			result.ErrorMessage = err.Error()
			return result
		}
		req.Header.Set("User-Agent", a.userAgent)

		resp, err := client.Do(req)
		if err != nil {
			result.IsBroken = true
			result.ErrorMessage = err.Error()
			return result
		}
		resp.Body.Close()

		status := resp.StatusCode
		if status >= 300 && status < 400 {
			loc := resp.Header.Get("Location")
			if loc == "" {
				result.HTTPStatus = &status
				result.IsBroken = true
				result.ErrorMessage = "redirect with no Location header"
				return result
			}
			result.RedirectChain = append(result.RedirectChain, loc)
			result.RedirectCount++
			current = loc
			if hop == maxRedirects {
				// Chain exceeds the bound; treat as broken rather than
				// silently truncating.
				result.HTTPStatus = &status
				result.IsBroken = true
				result.ErrorMessage = fmt.Sprintf("exceeded %d redirects", maxRedirects)
				return result
			}
			continue
		}

		result.HTTPStatus = &status
		result.IsRedirect = result.RedirectCount > 0
		result.IsBroken = status >= 400
		return result
	}

	result.IsBroken = true
	result.ErrorMessage = fmt.Sprintf("exceeded %d redirects", maxRedirects)
	return result
}

func (a *Adapter) classify(targetURL string) LinkType {
	if a.baseOrigin == "" {
		return LinkExternal
	}
	if len(targetURL) >= len(a.baseOrigin) && targetURL[:len(a.baseOrigin)] == a.baseOrigin {
		return LinkInternal
	}
	return LinkExternal
}

// HasHTMLForm fetches pageURL (GET, timeout 5s, custom UA, follows
// redirects) and reports whether the body contains a <form> element,
// supplementing CMS widget parsing for pages the CMS adapter reports
// has_form=false.
func (a *Adapter) HasHTMLForm(ctx context.Context, pageURL string) (bool, error) {
	client := &http.Client{Timeout: htmlFetchTimeout}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", apperr.ErrRemote, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return false, fmt.Errorf("%w: status %d", apperr.ErrRemote, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return false, fmt.Errorf("%w: parse html: %v", apperr.ErrData, err)
	}

	return doc.Find("form").Length() > 0, nil
}
