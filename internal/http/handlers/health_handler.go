package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

// HealthHandler предоставляет endpoint для проверки здоровья сервиса.
type HealthHandler struct {
	db  *sqlx.DB
	hub interface{ ClientCount() int }
}

// NewHealthHandler создаёт новый health handler. hub может быть nil.
func NewHealthHandler(db *sqlx.DB, hub interface{ ClientCount() int }) *HealthHandler {
	return &HealthHandler{db: db, hub: hub}
}

// HealthResponse представляет ответ health check.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
	Realtime  *RealtimeHealth   `json:"realtime,omitempty"`
}

// RealtimeHealth состояние канала обновлений.
type RealtimeHealth struct {
	Subscribers int `json:"subscribers"`
}

// Health обрабатывает GET /health.
func (h *HealthHandler) Health(c *gin.Context) {
	checks := make(map[string]string)
	status := "healthy"

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		checks["database"] = "unhealthy: " + err.Error()
		status = "unhealthy"
	} else {
		checks["database"] = "healthy"
	}

	stats := h.db.Stats()
	if stats.MaxOpenConnections > 0 && stats.OpenConnections > stats.MaxOpenConnections {
		checks["connection_pool"] = "warning: too many connections"
	} else {
		checks["connection_pool"] = "healthy"
	}

	resp := HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Checks:    checks,
	}
	if h.hub != nil {
		resp.Realtime = &RealtimeHealth{Subscribers: h.hub.ClientCount()}
	}

	statusCode := http.StatusOK
	if status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}
	c.JSON(statusCode, resp)
}
