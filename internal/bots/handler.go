package bots

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/moglich/opsdash/internal/models"
	"github.com/moglich/opsdash/internal/recall"
	"github.com/moglich/opsdash/pkg/response"
)

// DefaultHost owns bots dispatched without a host.
const DefaultHost = "Operaciones"

// Dispatcher creates bots on the provider.
type Dispatcher interface {
	CreateBot(ctx context.Context, p recall.CreateBotParams) (*recall.Bot, error)
	BotName() string
}

// Store is the bots persistence used by the handler.
type Store interface {
	Create(ctx context.Context, b *models.Bot) error
	List(ctx context.Context, host string) ([]models.Bot, error)
}

// Refresher re-reads bot status from the provider.
type Refresher interface {
	RefreshStatuses(ctx context.Context, bots []models.Bot) []models.Bot
	RefreshBot(ctx context.Context, recallBotID string) (*recall.Bot, string, error)
}

// Handler handles bot HTTP endpoints.
type Handler struct {
	store    Store
	provider Dispatcher
	refresh  Refresher
	logger   *zap.Logger
}

// NewHandler creates a bots handler.
func NewHandler(store Store, provider Dispatcher, refresh Refresher, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, provider: provider, refresh: refresh, logger: logger}
}

// CreateRequest is the body of POST /api/recall/bot.
type CreateRequest struct {
	MeetingURL   string `json:"meeting_url"`
	Host         string `json:"host"`
	MeetingTitle string `json:"meeting_title"`
	JoinAt       string `json:"join_at"`
}

// Create handles POST /api/recall/bot: dispatch a bot and store it as joining_call.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	req.MeetingURL = strings.TrimSpace(req.MeetingURL)
	if req.MeetingURL == "" {
		response.BadRequest(c, "meeting_url is required")
		return
	}
	if req.JoinAt != "" {
		if _, err := time.Parse(time.RFC3339, req.JoinAt); err != nil {
			response.BadRequest(c, "join_at must be an RFC 3339 timestamp")
			return
		}
	}
	if req.Host == "" {
		req.Host = DefaultHost
	}
	if req.MeetingTitle == "" {
		req.MeetingTitle = models.DefaultMeetingTitle
	}

	ctx := c.Request.Context()
	created, err := h.provider.CreateBot(ctx, recall.CreateBotParams{MeetingURL: req.MeetingURL, JoinAt: req.JoinAt})
	if err != nil {
		h.logger.Error("create bot failed", zap.Error(err), zap.String("host", req.Host))
		response.Internal(c, err.Error())
		return
	}

	bot := &models.Bot{
		RecallBotID:  created.ID,
		MeetingURL:   req.MeetingURL,
		BotName:      h.provider.BotName(),
		Host:         req.Host,
		MeetingTitle: req.MeetingTitle,
		Status:       models.BotStatusJoiningCall,
	}
	if err := h.store.Create(ctx, bot); err != nil {
		h.logger.Error("save bot failed", zap.Error(err), zap.String("recall_bot_id", created.ID))
		response.Internal(c, "failed to save bot")
		return
	}
	h.logger.Info("bot dispatched", zap.String("recall_bot_id", created.ID), zap.String("host", bot.Host))
	response.OK(c, gin.H{"bot": bot, "recall_bot_id": created.ID})
}

// List handles GET /api/recall/bot?host=. Active bots are refreshed from the provider first.
func (h *Handler) List(c *gin.Context) {
	host := c.Query("host")
	if host == "Todos" {
		host = ""
	}
	list, err := h.store.List(c.Request.Context(), host)
	if err != nil {
		h.logger.Error("list bots failed", zap.Error(err), zap.String("host", host))
		response.Internal(c, "failed to list bots")
		return
	}
	response.OK(c, gin.H{"bots": h.refresh.RefreshStatuses(c.Request.Context(), list)})
}

// Get handles GET /api/recall/bot/:id: provider detail plus the latest status, which is stored.
func (h *Handler) Get(c *gin.Context) {
	id := c.Param("id")
	detail, status, err := h.refresh.RefreshBot(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("get bot failed", zap.Error(err), zap.String("recall_bot_id", id))
		response.Internal(c, err.Error())
		return
	}
	response.OK(c, gin.H{"bot": detail, "status": status})
}
