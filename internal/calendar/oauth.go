package calendar

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	googleoauth "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/moglich/opsdash/internal/models"
	"github.com/moglich/opsdash/pkg/response"
)

// Callback failure reasons reported to the dashboard as auth_error.
const (
	ReasonMissingParams = "missing_params"
	ReasonInvalidState  = "invalid_state"
	ReasonExchange      = "token_exchange_failed"
	ReasonDB            = "db_error"
)

// TokenSaver persists a host's grant.
type TokenSaver interface {
	Upsert(ctx context.Context, t *models.OAuthToken) error
}

// OAuthHandler runs the Google consent round trip for a host.
type OAuthHandler struct {
	oauth     *oauth2.Config
	state     *StateSigner
	tokens    TokenSaver
	dashboard string
	apiOpts   []option.ClientOption
	logger    *zap.Logger
	now       func() time.Time
}

// NewOAuthHandler creates the OAuth handler. dashboardURL receives auth_success or auth_error.
func NewOAuthHandler(oauth *oauth2.Config, state *StateSigner, tokens TokenSaver, dashboardURL string, logger *zap.Logger, apiOpts ...option.ClientOption) *OAuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OAuthHandler{
		oauth:     oauth,
		state:     state,
		tokens:    tokens,
		dashboard: dashboardURL,
		apiOpts:   apiOpts,
		logger:    logger,
		now:       time.Now,
	}
}

// Start handles GET /api/auth/google?host=: redirect to the consent screen.
func (h *OAuthHandler) Start(c *gin.Context) {
	host := c.Query("host")
	if host == "" {
		response.BadRequest(c, "host is required")
		return
	}
	state, err := h.state.Sign(host)
	if err != nil {
		h.logger.Error("sign oauth state failed", zap.Error(err))
		response.Internal(c, "failed to start authorization")
		return
	}
	c.Redirect(http.StatusFound, h.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce))
}

// Callback handles GET /api/auth/callback: exchange the code and store the grant.
func (h *OAuthHandler) Callback(c *gin.Context) {
	if reason := c.Query("error"); reason != "" {
		h.redirect(c, "auth_error", reason)
		return
	}
	code, state := c.Query("code"), c.Query("state")
	if code == "" || state == "" {
		h.redirect(c, "auth_error", ReasonMissingParams)
		return
	}
	host, err := h.state.Verify(state)
	if err != nil {
		h.logger.Warn("oauth callback with bad state", zap.Error(err))
		h.redirect(c, "auth_error", ReasonInvalidState)
		return
	}

	ctx := c.Request.Context()
	tok, err := h.oauth.Exchange(ctx, code)
	if err != nil {
		h.logger.Error("oauth code exchange failed", zap.Error(err), zap.String("host", host))
		h.redirect(c, "auth_error", ReasonExchange)
		return
	}
	email, err := h.userEmail(ctx, tok)
	if err != nil {
		h.logger.Error("fetch userinfo failed", zap.Error(err), zap.String("host", host))
		h.redirect(c, "auth_error", ReasonExchange)
		return
	}

	expiry := tok.Expiry
	if expiry.IsZero() {
		expiry = h.now().Add(refreshedLifetime)
	}
	record := &models.OAuthToken{
		Host:         host,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenExpiry:  &expiry,
		Email:        email,
	}
	if err := h.tokens.Upsert(ctx, record); err != nil {
		h.logger.Error("save oauth token failed", zap.Error(err), zap.String("host", host))
		h.redirect(c, "auth_error", ReasonDB)
		return
	}
	h.logger.Info("calendar connected", zap.String("host", host), zap.String("email", email))
	h.redirect(c, "auth_success", host)
}

func (h *OAuthHandler) userEmail(ctx context.Context, tok *oauth2.Token) (string, error) {
	opts := append([]option.ClientOption{option.WithHTTPClient(h.oauth.Client(ctx, tok))}, h.apiOpts...)
	svc, err := googleoauth.NewService(ctx, opts...)
	if err != nil {
		return "", err
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return info.Email, nil
}

func (h *OAuthHandler) redirect(c *gin.Context, key, value string) {
	c.Redirect(http.StatusFound, h.dashboard+"?"+url.Values{key: {value}}.Encode())
}
