package recordings

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/moglich/opsdash/internal/reconcile"
)

// maxWebhookBody caps the accepted webhook payload size.
const maxWebhookBody = 1 << 20

// webhookPayload is the provider's event envelope.
type webhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		Bot struct {
			ID string `json:"id"`
		} `json:"bot"`
		Data struct {
			Code string `json:"code"`
		} `json:"data"`
	} `json:"data"`
}

// WebhookHandler receives bot lifecycle events from the provider.
type WebhookHandler struct {
	sync     Reconciler
	verifier *Verifier // nil skips signature checks
	logger   *zap.Logger
}

// NewWebhookHandler creates a webhook handler. verifier may be nil.
func NewWebhookHandler(sync Reconciler, verifier *Verifier, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{sync: sync, verifier: verifier, logger: logger}
}

// Receive handles POST /api/recall/webhook. It always acknowledges with 200 {"received": true}
// so the provider does not redeliver; every failure is logged instead.
func (h *WebhookHandler) Receive(c *gin.Context) {
	defer c.JSON(http.StatusOK, gin.H{"received": true})

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		h.logger.Warn("read webhook body failed", zap.Error(err))
		return
	}
	if h.verifier != nil {
		if err := h.verifier.Verify(c.Request.Header, body); err != nil {
			h.logger.Warn("webhook signature rejected", zap.Error(err), zap.String("webhook_id", c.GetHeader(headerID)))
			return
		}
	}

	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		h.logger.Warn("malformed webhook payload", zap.Error(err))
		return
	}
	ev := reconcile.Event{Name: p.Event, BotID: p.Data.Bot.ID, Code: p.Data.Data.Code}
	h.logger.Info("webhook received", zap.String("event", ev.Name), zap.String("recall_bot_id", ev.BotID), zap.String("code", ev.Code))
	if ev.BotID == "" {
		return
	}
	if err := h.sync.ApplyEvent(c.Request.Context(), ev); err != nil {
		h.logger.Error("webhook processing failed", zap.String("event", ev.Name), zap.String("recall_bot_id", ev.BotID), zap.Error(err))
	}
}
