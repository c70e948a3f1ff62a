// Package health implements the admin HTTP surface's health/readiness/
// validation-report endpoints.
package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/bus"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/config"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/metrics"
	"github.com/RoseWrightdev/Video-Conferencing/backend/go/internal/v1/room"
)

// BuildInfo carries the values reported by /_version, populated at process
// startup (normally from ldflags, not computed at request time).
type BuildInfo struct {
	Build      string
	CommitHash string
}

// Handler serves the admin health/version/readiness/validation endpoints.
type Handler struct {
	rooms *room.Registry
	cfg   *config.Config
	build BuildInfo
	bus   *bus.Service

	mu         sync.Mutex
	lastReport any
}

// NewHandler constructs a Handler bound to a live Room Registry and the
// validated process configuration.
func NewHandler(rooms *room.Registry, cfg *config.Config, build BuildInfo) *Handler {
	return &Handler{rooms: rooms, cfg: cfg, build: build}
}

// WithBus attaches the optional Redis connection so Readyz can report its
// reachability. Returns h for chaining at construction time.
func (h *Handler) WithBus(b *bus.Service) *Handler {
	h.bus = b
	return h
}

// Health handles GET /health: an unconditional liveness signal.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "timestamp": time.Now().UTC().Format(time.RFC3339)})
}

type roomSummary struct {
	ID           string `json:"id"`
	ViewersCount int    `json:"viewersCount"`
	H264Only     bool   `json:"h264Only"`
}

// Healthz handles GET /healthz: a snapshot of every live room.
func (h *Handler) Healthz(c *gin.Context) {
	ids := h.rooms.StreamIDs()
	rooms := make([]roomSummary, 0, len(ids))
	for _, id := range ids {
		rm, ok := h.rooms.GetRoom(id)
		if !ok {
			continue
		}
		rooms = append(rooms, roomSummary{
			ID:           string(id),
			ViewersCount: rm.ParticipantCount(),
			H264Only:     true,
		})
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// Version handles GET /_version.
func (h *Handler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"build":      h.build.Build,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"commitHash": h.build.CommitHash,
	})
}

// Readyz handles GET /readyz: router-enabled, TURN-configured,
// error-rate-ok, and websocket-operational checks.
func (h *Handler) Readyz(c *gin.Context) {
	checks := map[string]bool{
		"router_enabled":  h.cfg.RouterEnabled,
		"turn_configured": h.cfg.TURNURL != "" || h.cfg.TURNSURL != "",
		"error_rate_ok":   metrics.ErrorReservoir.CountRecent("invalid_request", "payload_too_large") < 5,
		"ws_operational":  true,
	}
	if h.bus != nil {
		checks["redis_ok"] = h.bus.Ping(context.Background()) == nil
	}

	ready := true
	var issues []string
	for name, ok := range checks {
		if !ok {
			ready = false
			issues = append(issues, name)
		}
	}

	if ready {
		c.JSON(http.StatusOK, gin.H{"ready": true, "checks": checks})
		return
	}
	c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false, "checks": checks, "issues": issues})
}

// Validate handles POST /validate: returns the most recently stored
// validation report, or 404 if none has been submitted yet.
func (h *Handler) Validate(c *gin.Context) {
	h.mu.Lock()
	report := h.lastReport
	h.mu.Unlock()

	if report == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no validation report on file"})
		return
	}
	c.JSON(http.StatusOK, report)
}

// ValidateReport handles POST /validate/report: stores a client-supplied
// validation report in the single in-memory slot.
func (h *Handler) ValidateReport(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report body"})
		return
	}

	h.mu.Lock()
	h.lastReport = body
	h.mu.Unlock()

	c.JSON(http.StatusAccepted, gin.H{"stored": true})
}
