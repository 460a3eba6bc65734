package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/souq/backend/internal/interfaces/http/dto"
)

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping() error
}

// HealthHandler handles the health endpoint
type HealthHandler struct {
	BaseHandler
	db        Pinger
	startTime time.Time
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{
		db:        db,
		startTime: time.Now(),
	}
}

// Health godoc
// @ID           getHealth
// @Summary      Health check
// @Description  Pings the database. Returns 503 when it is unreachable.
// @Tags         system
// @Produce      json
// @Success      200 {object} APIResponse[dto.HealthResponse]
// @Failure      503 {object} APIResponse[dto.HealthResponse]
// @Router       /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	resp := dto.HealthResponse{
		Status:   "ok",
		Database: "ok",
		Uptime:   time.Since(h.startTime).Round(time.Second).String(),
	}
	status := http.StatusOK
	if err := h.db.Ping(); err != nil {
		resp.Status = "degraded"
		resp.Database = "unreachable"
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, dto.Response{Success: status == http.StatusOK, Data: resp})
}
