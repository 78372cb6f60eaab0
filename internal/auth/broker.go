// Package auth implements the Token Broker (C1): a single shared OAuth
// credential, refreshed lazily and serialized so concurrent adapters never
// race on the refresh. Generalized from the teacher's per-server
// reinitMu sync.Map pattern in pkg/mcp/client.go, collapsed to a single
// mutex since sitewatch has exactly one credential row, not one per
// server.
package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/sitewatch/sitewatch/internal/apperr"
)

// Credential mirrors the single-row credentials table.
type Credential struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Scope        []string
}

// Store is the minimal persistence surface the broker needs, satisfied
// by internal/store in production and a fake in tests.
type Store interface {
	GetCredential(ctx context.Context) (*Credential, error)
	SaveCredential(ctx context.Context, c Credential) error
}

// Refresher performs the actual OAuth refresh-token exchange against the
// configured token endpoint.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*Credential, error)
}

// expirySkew refreshes the token slightly before its stated expiry, so a
// token that is valid-but-about-to-expire is never handed to a caller
// about to make a multi-second remote call.
const expirySkew = 60 * time.Second

// Broker serializes refreshes so at most one is in flight at a time;
// callers that arrive while a refresh is running wait for it rather than
// triggering their own.
type Broker struct {
	store     Store
	refresher Refresher

	mu      sync.Mutex
	current *Credential
	cycleID string
}

// New builds a Broker. The credential row is loaded lazily on first Token call.
func New(store Store, refresher Refresher) *Broker {
	return &Broker{store: store, refresher: refresher}
}

// Token returns a currently-valid access token, refreshing first if the
// cached credential is missing, expired, or expiring within expirySkew.
func (b *Broker) Token(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == nil {
		cred, err := b.store.GetCredential(ctx)
		if err != nil {
			return "", apperr.NewStageError("auth_load", fmt.Errorf("%w: %v", apperr.ErrAuth, err))
		}
		b.current = cred
	}

	if b.current == nil || time.Until(b.current.ExpiresAt) < expirySkew {
		if err := b.refreshLocked(ctx); err != nil {
			return "", err
		}
	}

	return b.current.AccessToken, nil
}

// refreshLocked must be called with mu held. It retries transient
// refresh failures with exponential backoff, mirroring the adapters'
// own RemoteError retry policy.
func (b *Broker) refreshLocked(ctx context.Context) error {
	b.cycleID = uuid.NewString()

	var refreshed *Credential
	operation := func() error {
		if b.current == nil {
			return backoff.Permanent(fmt.Errorf("%w: no refresh token on record", apperr.ErrAuth))
		}
		cred, err := b.refresher.Refresh(ctx, b.current.RefreshToken)
		if err != nil {
			return fmt.Errorf("%w: %v", apperr.ErrRemote, err)
		}
		refreshed = cred
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return apperr.NewStageError("auth_refresh", fmt.Errorf("%w: %v", apperr.ErrAuth, err))
	}

	if err := b.store.SaveCredential(ctx, *refreshed); err != nil {
		return apperr.NewStageError("auth_refresh", fmt.Errorf("%w: %v", apperr.ErrAuth, err))
	}
	b.current = refreshed
	return nil
}
