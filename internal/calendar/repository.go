package calendar

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/moglich/opsdash/internal/models"
	"github.com/moglich/opsdash/pkg/database"
)

// TokenRepository handles oauth_tokens persistence.
type TokenRepository struct {
	db database.DB
}

// NewTokenRepository creates a token repository.
func NewTokenRepository(db database.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Get returns the stored grant of host, or nil.
func (r *TokenRepository) Get(ctx context.Context, host string) (*models.OAuthToken, error) {
	const q = `SELECT host, access_token, refresh_token, token_expiry, email, updated_at FROM oauth_tokens WHERE host = $1`
	var t models.OAuthToken
	err := r.db.QueryRow(ctx, q, host).Scan(&t.Host, &t.AccessToken, &t.RefreshToken, &t.TokenExpiry, &t.Email, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Upsert stores the grant of t.Host, replacing any previous one. An empty refresh token
// keeps the stored one, since Google only returns it on first consent.
func (r *TokenRepository) Upsert(ctx context.Context, t *models.OAuthToken) error {
	const q = `INSERT INTO oauth_tokens (host, access_token, refresh_token, token_expiry, email, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (host) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = CASE WHEN EXCLUDED.refresh_token <> '' THEN EXCLUDED.refresh_token ELSE oauth_tokens.refresh_token END,
			token_expiry = EXCLUDED.token_expiry,
			email = EXCLUDED.email,
			updated_at = NOW()`
	_, err := r.db.Exec(ctx, q, t.Host, t.AccessToken, t.RefreshToken, t.TokenExpiry, t.Email)
	return err
}

// UpdateAccess stores a refreshed access token.
func (r *TokenRepository) UpdateAccess(ctx context.Context, host, accessToken string, expiry time.Time) error {
	const q = `UPDATE oauth_tokens SET access_token = $1, token_expiry = $2, updated_at = NOW() WHERE host = $3`
	_, err := r.db.Exec(ctx, q, accessToken, expiry, host)
	return err
}

// ConnectedHosts returns the set of hosts with a stored grant.
func (r *TokenRepository) ConnectedHosts(ctx context.Context) (map[string]bool, error) {
	rows, err := r.db.Query(ctx, `SELECT host FROM oauth_tokens`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]bool)
	for rows.Next() {
		var host string
		if err := rows.Scan(&host); err != nil {
			return nil, err
		}
		out[host] = true
	}
	return out, rows.Err()
}
