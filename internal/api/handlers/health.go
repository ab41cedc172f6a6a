package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/calcutta-sim/internal/services"
	"github.com/stitts-dev/calcutta-sim/pkg/database"
)

const serviceName = "calcutta-sim"

// HealthStatus is the body of the health and readiness endpoints
type HealthStatus struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// HealthHandler reports liveness and dependency readiness
type HealthHandler struct {
	db       *database.DB
	cache    *services.CacheService
	breakers *services.CircuitBreakerService
	logger   *logrus.Logger
}

// NewHealthHandler creates a health handler. db, cache and breakers may be nil.
func NewHealthHandler(db *database.DB, cache *services.CacheService, breakers *services.CircuitBreakerService, logger *logrus.Logger) *HealthHandler {
	return &HealthHandler{
		db:       db,
		cache:    cache,
		breakers: breakers,
		logger:   logger,
	}
}

// GetHealth is the liveness probe; the allocators have no external dependencies
func (h *HealthHandler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthStatus{
		Status:    "ok",
		Service:   serviceName,
		Timestamp: time.Now().UTC(),
		Checks:    map[string]string{"allocators": "ok"},
	})
}

// GetReady checks the database and cache. Both are optional, so a failing
// dependency degrades the service rather than taking it out of rotation.
func (h *HealthHandler) GetReady(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	response := HealthStatus{
		Status:    "ready",
		Service:   serviceName,
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]string),
	}

	if h.db != nil {
		if err := h.db.HealthCheck(ctx); err != nil {
			response.Status = "degraded"
			response.Checks["database"] = "failed: " + err.Error()
		} else {
			response.Checks["database"] = "ok"
		}
	} else {
		response.Checks["database"] = "not_configured"
	}

	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			response.Status = "degraded"
			response.Checks["cache"] = "failed: " + err.Error()
		} else {
			response.Checks["cache"] = "ok"
		}
	} else {
		response.Checks["cache"] = "not_configured"
	}

	if h.breakers != nil {
		for name, state := range h.breakers.States() {
			response.Checks["breaker_"+name] = state
		}
	}

	if response.Status != "ready" {
		h.logger.WithField("checks", response.Checks).Warn("Readiness check degraded")
	}
	c.JSON(http.StatusOK, response)
}
