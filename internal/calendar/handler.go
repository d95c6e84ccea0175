package calendar

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/moglich/opsdash/config"
	"github.com/moglich/opsdash/pkg/response"
)

// EventLister lists a host's calendar events.
type EventLister interface {
	Events(ctx context.Context, host string, w Window) ([]Event, error)
}

// Handler serves GET /api/calendar.
type Handler struct {
	events EventLister
	logger *zap.Logger
	now    func() time.Time
}

// NewHandler creates a calendar handler.
func NewHandler(events EventLister, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{events: events, logger: logger, now: time.Now}
}

// Events handles GET /api/calendar?host=&range=today|upcoming. A host without a calendar
// grant gets an empty list with authorized=false.
func (h *Handler) Events(c *gin.Context) {
	host := c.Query("host")
	if host == "" {
		response.BadRequest(c, "host is required")
		return
	}
	rng := c.DefaultQuery("range", RangeToday)

	events, err := h.events.Events(c.Request.Context(), host, WindowFor(rng, h.now()))
	if errors.Is(err, ErrAuthorizationRequired) {
		response.OK(c, gin.H{"events": []Event{}, "authorized": false})
		return
	}
	if err != nil {
		h.logger.Error("calendar events failed", zap.Error(err), zap.String("host", host))
		response.Internal(c, err.Error())
		return
	}
	response.OK(c, gin.H{"events": events, "authorized": true})
}

// ConnectionLister reports which hosts have a calendar grant.
type ConnectionLister interface {
	ConnectedHosts(ctx context.Context) (map[string]bool, error)
}

// HostStatus is a roster entry with its calendar connection.
type HostStatus struct {
	config.Host
	Connected bool `json:"connected"`
}

// HostsHandler serves GET /api/hosts.
type HostsHandler struct {
	hosts       []config.Host
	connections ConnectionLister
	logger      *zap.Logger
}

// NewHostsHandler creates a host roster handler.
func NewHostsHandler(hosts []config.Host, connections ConnectionLister, logger *zap.Logger) *HostsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HostsHandler{hosts: hosts, connections: connections, logger: logger}
}

// List returns the roster in configured order.
func (h *HostsHandler) List(c *gin.Context) {
	connected, err := h.connections.ConnectedHosts(c.Request.Context())
	if err != nil {
		h.logger.Error("list connected hosts failed", zap.Error(err))
		response.Internal(c, "failed to list hosts")
		return
	}
	out := make([]HostStatus, 0, len(h.hosts))
	for _, host := range h.hosts {
		out = append(out, HostStatus{Host: host, Connected: connected[host.Name]})
	}
	response.OK(c, gin.H{"hosts": out})
}
