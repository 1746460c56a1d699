package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger is a dependency the health check probes
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports the state of the database and the lease cache
type HealthHandler struct {
	db      Pinger
	cache   Pinger
	version string
}

// NewHealthHandler creates a new health handler. cache may be nil when pushes
// use the in-process lease.
func NewHealthHandler(db, cache Pinger, version string) *HealthHandler {
	return &HealthHandler{db: db, cache: cache, version: version}
}

// Health checks each dependency with a short timeout
func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if err := h.db.Ping(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "disabled"
	if h.cache != nil {
		redisStatus = "healthy"
		if err := h.cache.Ping(ctx); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := http.StatusOK
	overall := "ok"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}

	return c.JSON(status, map[string]any{
		"status":   overall,
		"database": dbStatus,
		"redis":    redisStatus,
		"version":  h.version,
	})
}
