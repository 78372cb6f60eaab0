package store

import (
	"context"
	"fmt"
	"time"

	"github.com/sitewatch/sitewatch/internal/auth"
)

// credentialRow is the single-row credentials table's db-tagged shape.
type credentialRow struct {
	ID           int            `db:"id"`
	AccessToken  string         `db:"access_token"`
	RefreshToken string         `db:"refresh_token"`
	ExpiresAt    time.Time      `db:"expires_at"`
	Scope        JSON[[]string] `db:"scope"`
}

// GetCredential implements auth.Store, satisfying the Token Broker's (C1)
// persistence dependency.
func (s *Store) GetCredential(ctx context.Context) (*auth.Credential, error) {
	var row credentialRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM credentials WHERE id = 1`)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return &auth.Credential{
		AccessToken:  row.AccessToken,
		RefreshToken: row.RefreshToken,
		ExpiresAt:    row.ExpiresAt,
		Scope:        row.Scope.Val,
	}, nil
}

// SaveCredential upserts the single credential row.
func (s *Store) SaveCredential(ctx context.Context, c auth.Credential) error {
	row := credentialRow{
		ID:           1,
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		ExpiresAt:    c.ExpiresAt,
		Scope:        JSON[[]string]{Val: c.Scope},
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO credentials (id, access_token, refresh_token, expires_at, scope)
		VALUES (1, :access_token, :refresh_token, :expires_at, :scope)
		ON CONFLICT (id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at = EXCLUDED.expires_at,
			scope = EXCLUDED.scope
	`, row)
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}
