package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"

	"github.com/moglich/opsdash/config"
	"github.com/moglich/opsdash/internal/models"
)

// ErrAuthorizationRequired means the host has not connected a calendar, or its grant can
// no longer be refreshed.
var ErrAuthorizationRequired = errors.New("calendar authorization required")

const (
	refreshMargin = 5 * time.Minute
	// refreshedLifetime is the expiry recorded for a refreshed access token.
	refreshedLifetime = time.Hour
)

// NewOAuthConfig returns the Google OAuth client for read-only calendar access.
func NewOAuthConfig(cfg config.GoogleConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL(),
		Scopes:       []string{gcal.CalendarReadonlyScope, "email"},
		Endpoint:     google.Endpoint,
	}
}

// TokenStore is the grant persistence used by TokenManager.
type TokenStore interface {
	Get(ctx context.Context, host string) (*models.OAuthToken, error)
	UpdateAccess(ctx context.Context, host, accessToken string, expiry time.Time) error
}

// TokenManager hands out valid access tokens, refreshing stored grants near expiry.
type TokenManager struct {
	store  TokenStore
	oauth  *oauth2.Config
	logger *zap.Logger
	now    func() time.Time
}

// NewTokenManager creates a token manager.
func NewTokenManager(store TokenStore, oauth *oauth2.Config, logger *zap.Logger) *TokenManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenManager{store: store, oauth: oauth, logger: logger, now: time.Now}
}

// AccessToken returns an access token for host. The stored token is reused while it is
// valid for more than five minutes; otherwise it is refreshed and persisted. A refresh that
// cannot be persisted fails the call.
func (m *TokenManager) AccessToken(ctx context.Context, host string) (string, error) {
	tok, err := m.store.Get(ctx, host)
	if err != nil {
		return "", fmt.Errorf("load token: %w", err)
	}
	if tok == nil {
		return "", ErrAuthorizationRequired
	}
	now := m.now()
	if tok.TokenExpiry != nil && now.Before(tok.TokenExpiry.Add(-refreshMargin)) {
		return tok.AccessToken, nil
	}
	if tok.RefreshToken == "" {
		return "", ErrAuthorizationRequired
	}

	fresh, err := m.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: tok.RefreshToken}).Token()
	if err != nil {
		return "", fmt.Errorf("refresh token for %s: %w", host, err)
	}
	if err := m.store.UpdateAccess(ctx, host, fresh.AccessToken, now.Add(refreshedLifetime)); err != nil {
		return "", fmt.Errorf("persist refreshed token for %s: %w", host, err)
	}
	m.logger.Debug("calendar token refreshed", zap.String("host", host))
	return fresh.AccessToken, nil
}
