// Package httputil holds the small HTTP helper every C2 adapter shares:
// a bearer-authenticated JSON GET with retry-on-RemoteError, grounded on
// the teacher's pattern of wrapping remote calls with cenkalti/backoff
// (pkg/mcp's reconnection retries, generalized here to plain REST calls).
package httputil

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/cenkalti/backoff/v4"

	"github.com/sitewatch/sitewatch/internal/apperr"
)

// TokenSource supplies the current bearer token, satisfied by
// *auth.Broker in production.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client is a small, retrying, bearer-authenticated JSON REST client
// shared by the analytics, search, speed, and CMS adapters.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Tokens     TokenSource
	// MaxRetries bounds the cenkalti/backoff retry count for transient
	// remote failures (5xx, network errors); 4xx are not retried.
	MaxRetries uint64
}

// GetJSON issues an authenticated GET against path+query and decodes the
// JSON response body into out. Retries transient failures with
// exponential backoff; returns apperr.ErrRemote on exhaustion.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	operation := func() error {
		token, err := c.Tokens.Token(ctx)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("%w: %v", apperr.ErrAuth, err))
		}

		reqURL := c.BaseURL + path
		if len(query) > 0 {
			reqURL += "?" + query.Encode()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")

		client := c.HTTPClient
		if client == nil {
			client = http.DefaultClient
		}
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", apperr.ErrRemote, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%w: read body: %v", apperr.ErrRemote, err)
		}

		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w: status %d", apperr.ErrRemote, resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("%w: status %d: %s", apperr.ErrRemote, resp.StatusCode, truncate(body)))
		}

		if err := json.Unmarshal(body, out); err != nil {
			return backoff.Permanent(fmt.Errorf("%w: decode: %v", apperr.ErrData, err))
		}
		return nil
	}

	maxRetries := c.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)
	return backoff.Retry(operation, policy)
}

func truncate(b []byte) string {
	const max = 256
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "..."
}
