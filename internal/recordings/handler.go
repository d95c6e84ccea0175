package recordings

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/moglich/opsdash/internal/models"
	"github.com/moglich/opsdash/internal/reconcile"
	"github.com/moglich/opsdash/pkg/response"
)

// Store is the recordings persistence used by the handlers.
type Store interface {
	List(ctx context.Context, host string) ([]models.Recording, error)
	GetByID(ctx context.Context, id int64) (*models.Recording, error)
}

// Reconciler is the reconciliation surface used by the handlers.
type Reconciler interface {
	ApplyEvent(ctx context.Context, ev reconcile.Event) error
	AutoSync(ctx context.Context) error
	Backfill(ctx context.Context, scope reconcile.Scope) (reconcile.SyncReport, error)
	EnrichRecordings(ctx context.Context, recs []models.Recording) []models.Recording
}

// Presigner signs archive download URLs.
type Presigner interface {
	PresignRecording(ctx context.Context, key string) (string, time.Duration, error)
}

// Handler handles recording HTTP endpoints.
type Handler struct {
	store     Store
	sync      Reconciler
	presigner Presigner // optional: nil when archiving is not configured
	logger    *zap.Logger
}

// NewHandler creates a recordings handler.
func NewHandler(store Store, sync Reconciler, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, sync: sync, logger: logger}
}

// SetPresigner enables archive download URLs.
func (h *Handler) SetPresigner(p Presigner) { h.presigner = p }

// List handles GET /api/recall/recordings?host=. Runs a bounded auto-sync first, then
// refreshes video URLs and missing transcripts from the provider.
func (h *Handler) List(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.sync.AutoSync(ctx); err != nil {
		h.logger.Warn("auto-sync failed", zap.Error(err))
	}

	list, err := h.store.List(ctx, c.Query("host"))
	if err != nil {
		h.logger.Error("list recordings failed", zap.Error(err), zap.String("host", c.Query("host")))
		response.Internal(c, "failed to list recordings")
		return
	}
	response.OK(c, gin.H{"recordings": h.sync.EnrichRecordings(ctx, list)})
}

// Sync handles POST /api/recall/sync[?since=RFC3339]. The data is {synced, total, errors}.
func (h *Handler) Sync(c *gin.Context) {
	var scope reconcile.Scope
	if s := c.Query("since"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			response.BadRequest(c, "since must be an RFC 3339 timestamp")
			return
		}
		scope.Since = t
	}

	report, err := h.sync.Backfill(c.Request.Context(), scope)
	if err != nil {
		h.logger.Error("sync failed", zap.Error(err))
		response.Internal(c, err.Error())
		return
	}
	h.logger.Info("sync finished", zap.Int("synced", report.Synced), zap.Int("total", report.Total), zap.Int("errors", len(report.Errors)))
	response.OK(c, report)
}

// ArchiveURL handles GET /api/recall/recordings/:id/archive-url.
func (h *Handler) ArchiveURL(c *gin.Context) {
	if h.presigner == nil {
		response.ServiceUnavailable(c, "recording archive not configured")
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid recording id")
		return
	}
	rec, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("get recording failed", zap.Error(err), zap.Int64("recording_id", id))
		response.Internal(c, "failed to load recording")
		return
	}
	if rec == nil || rec.ArchiveKey == "" {
		response.NotFound(c, "recording not archived")
		return
	}
	url, expires, err := h.presigner.PresignRecording(c.Request.Context(), rec.ArchiveKey)
	if err != nil {
		h.logger.Error("presign recording download failed", zap.Error(err), zap.Int64("recording_id", id))
		response.Internal(c, "failed to generate download URL")
		return
	}
	response.OK(c, gin.H{"download_url": url, "expires_in": int(expires.Seconds())})
}
