package directory

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/moglich/opsdash/internal/models"
	"github.com/moglich/opsdash/pkg/response"
)

// Store is the directory persistence used by the handler.
type Store interface {
	ListClientProfiles(ctx context.Context) ([]models.ClientProfile, error)
	CreateClientProfile(ctx context.Context, p *models.ClientProfile) error
	ListKAMContacts(ctx context.Context) ([]models.KAMContact, error)
	CreateKAMContact(ctx context.Context, k *models.KAMContact) error
	ListMeetingMinutes(ctx context.Context) ([]models.MeetingMinute, error)
	CreateMeetingMinute(ctx context.Context, m *models.MeetingMinute) error
}

// Handler handles the /api/directory endpoints.
type Handler struct {
	store  Store
	logger *zap.Logger
}

// NewHandler creates a directory handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger}
}

// Register mounts the directory routes on g.
func (h *Handler) Register(g *gin.RouterGroup) {
	g.GET("/client-profiles", h.ListClientProfiles)
	g.POST("/client-profiles", h.CreateClientProfile)
	g.GET("/kam", h.ListKAMContacts)
	g.POST("/kam", h.CreateKAMContact)
	g.GET("/minutes", h.ListMeetingMinutes)
	g.POST("/minutes", h.CreateMeetingMinute)
}

// ListClientProfiles handles GET /api/directory/client-profiles.
func (h *Handler) ListClientProfiles(c *gin.Context) {
	list, err := h.store.ListClientProfiles(c.Request.Context())
	if err != nil {
		h.logger.Error("list client profiles failed", zap.Error(err))
		response.Internal(c, "failed to list client profiles")
		return
	}
	response.OK(c, gin.H{"client_profiles": list})
}

// CreateClientProfile handles POST /api/directory/client-profiles.
func (h *Handler) CreateClientProfile(c *gin.Context) {
	var p models.ClientProfile
	if err := c.ShouldBindJSON(&p); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	trim(&p.Cliente, &p.Empresa, &p.Contacto, &p.KAM, &p.Fecha, &p.PerfilURL)
	if p.Cliente == "" {
		response.BadRequest(c, "cliente is required")
		return
	}
	if !validDate(p.Fecha) {
		response.BadRequest(c, "fecha must be YYYY-MM-DD")
		return
	}
	p.ID = 0
	if err := h.store.CreateClientProfile(c.Request.Context(), &p); err != nil {
		h.logger.Error("create client profile failed", zap.Error(err))
		response.Internal(c, "failed to create client profile")
		return
	}
	response.Created(c, p)
}

// ListKAMContacts handles GET /api/directory/kam.
func (h *Handler) ListKAMContacts(c *gin.Context) {
	list, err := h.store.ListKAMContacts(c.Request.Context())
	if err != nil {
		h.logger.Error("list kam contacts failed", zap.Error(err))
		response.Internal(c, "failed to list contacts")
		return
	}
	response.OK(c, gin.H{"kam": list})
}

// CreateKAMContact handles POST /api/directory/kam.
func (h *Handler) CreateKAMContact(c *gin.Context) {
	var k models.KAMContact
	if err := c.ShouldBindJSON(&k); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	trim(&k.KAM, &k.LinkedIn, &k.Numero)
	if k.KAM == "" {
		response.BadRequest(c, "kam is required")
		return
	}
	k.ID = 0
	if err := h.store.CreateKAMContact(c.Request.Context(), &k); err != nil {
		h.logger.Error("create kam contact failed", zap.Error(err))
		response.Internal(c, "failed to create contact")
		return
	}
	response.Created(c, k)
}

// ListMeetingMinutes handles GET /api/directory/minutes.
func (h *Handler) ListMeetingMinutes(c *gin.Context) {
	list, err := h.store.ListMeetingMinutes(c.Request.Context())
	if err != nil {
		h.logger.Error("list meeting minutes failed", zap.Error(err))
		response.Internal(c, "failed to list minutes")
		return
	}
	response.OK(c, gin.H{"minutes": list})
}

// CreateMeetingMinute handles POST /api/directory/minutes.
func (h *Handler) CreateMeetingMinute(c *gin.Context) {
	var m models.MeetingMinute
	if err := c.ShouldBindJSON(&m); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	trim(&m.Cliente, &m.Nombre, &m.Link, &m.Fecha)
	if m.Cliente == "" || m.Link == "" {
		response.BadRequest(c, "cliente and link are required")
		return
	}
	if !validDate(m.Fecha) {
		response.BadRequest(c, "fecha must be YYYY-MM-DD")
		return
	}
	m.ID = 0
	if err := h.store.CreateMeetingMinute(c.Request.Context(), &m); err != nil {
		h.logger.Error("create meeting minute failed", zap.Error(err))
		response.Internal(c, "failed to create minute")
		return
	}
	response.Created(c, m)
}

func trim(fields ...*string) {
	for _, f := range fields {
		*f = strings.TrimSpace(*f)
	}
}

// validDate accepts an empty date or YYYY-MM-DD.
func validDate(s string) bool {
	if s == "" {
		return true
	}
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}
