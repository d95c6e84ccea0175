// Package recall is a thin client for the meeting-bot provider API.
//
// Requests carry "Authorization: Token <key>". Any non-2xx response is returned as an
// *APIError; the client never retries.
package recall

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrUpstream marks failures reported by the provider.
var ErrUpstream = errors.New("recall api error")

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 4 << 10

// APIError is a non-2xx provider response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("recall api error %d: %s", e.StatusCode, e.Body)
}

// Unwrap lets errors.Is(err, ErrUpstream) match.
func (e *APIError) Unwrap() error { return ErrUpstream }

// Config holds provider client settings.
type Config struct {
	BaseURL string // e.g. https://us-west-2.recall.ai/api/v1
	APIKey  string
	BotName string
	Timeout time.Duration
}

// Client issues authenticated requests to the provider.
type Client struct {
	baseURL string
	apiKey  string
	botName string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a provider client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		botName: cfg.BotName,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// BotName returns the display name used for new bots.
func (c *Client) BotName() string { return c.botName }

// CreateBot dispatches a bot to a meeting, requesting a mixed mp4 and a caption-based transcript.
func (c *Client) CreateBot(ctx context.Context, p CreateBotParams) (*Bot, error) {
	name := p.BotName
	if name == "" {
		name = c.botName
	}
	body := createBotRequest{MeetingURL: p.MeetingURL, BotName: name, JoinAt: p.JoinAt}
	var bot Bot
	if err := c.do(ctx, http.MethodPost, "/bot/", body, &bot); err != nil {
		return nil, err
	}
	c.logger.Info("bot created", zap.String("recall_bot_id", bot.ID))
	return &bot, nil
}

// GetBot returns the provider's current view of a bot.
func (c *Client) GetBot(ctx context.Context, botID string) (*Bot, error) {
	var bot Bot
	if err := c.do(ctx, http.MethodGet, "/bot/"+url.PathEscape(botID)+"/", nil, &bot); err != nil {
		return nil, err
	}
	return &bot, nil
}

// ListBots returns the first page of bots known to the provider for this API key.
func (c *Client) ListBots(ctx context.Context) ([]Bot, error) {
	var page botList
	if err := c.do(ctx, http.MethodGet, "/bot/", nil, &page); err != nil {
		return nil, err
	}
	return page.Results, nil
}

// GetTranscript returns the bot's transcript grouped by speaker turn.
func (c *Client) GetTranscript(ctx context.Context, botID string) ([]TranscriptEntry, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/bot/"+url.PathEscape(botID)+"/transcript/", nil, &raw); err != nil {
		return nil, err
	}
	// Anything but an array means there is no transcript yet.
	if len(bytes.TrimSpace(raw)) == 0 || bytes.TrimSpace(raw)[0] != '[' {
		return nil, nil
	}
	var entries []TranscriptEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	return entries, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
