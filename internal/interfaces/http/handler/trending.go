package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	apptracking "github.com/souq/backend/internal/application/tracking"
	"github.com/souq/backend/internal/domain/tracking"
	"github.com/souq/backend/internal/interfaces/http/dto"
)

// TrendingRecomputer rebuilds trending scores
type TrendingRecomputer interface {
	Recompute(ctx context.Context, opts apptracking.RecomputeOptions) (*apptracking.TrendingResult, error)
}

// TrendingHandler handles the trending admin endpoint
type TrendingHandler struct {
	BaseHandler
	service TrendingRecomputer
}

// NewTrendingHandler creates a new TrendingHandler
func NewTrendingHandler(service TrendingRecomputer) *TrendingHandler {
	return &TrendingHandler{service: service}
}

// Recompute godoc
// @ID           recomputeTrending
// @Summary      Recompute trending scores
// @Description  Rebuilds every product's trending score from the engagement log. GET takes the overrides as query parameters, POST as an optional JSON body.
// @Tags         trending
// @Accept       json
// @Produce      json
// @Param        window_hours query int false "Scoring window in hours"
// @Param        half_life_hours query int false "Decay half life in hours, -1 disables decay"
// @Param        request body dto.TrendingRecomputeRequest false "Policy overrides"
// @Success      200 {object} APIResponse[dto.TrendingRecomputeResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /trending/recompute [post]
func (h *TrendingHandler) Recompute(c *gin.Context) {
	var req dto.TrendingRecomputeRequest
	var err error
	if c.Request.Method == http.MethodGet {
		err = c.ShouldBindQuery(&req)
	} else if err = c.ShouldBindJSON(&req); errors.Is(err, io.EOF) {
		err = nil
	}
	if err != nil {
		h.BindError(c, err)
		return
	}

	opts := apptracking.RecomputeOptions{
		Window:   time.Duration(req.WindowHours) * time.Hour,
		HalfLife: time.Duration(req.HalfLifeHours) * time.Hour,
	}
	if req.Weights != nil {
		opts.Weights = &tracking.Weights{
			View:  req.Weights.View,
			Save:  req.Weights.Save,
			Click: req.Weights.Click,
			Order: req.Weights.Order,
		}
	}

	result, err := h.service.Recompute(c.Request.Context(), opts)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.TrendingRecomputeResponse{
		ProductsScored: result.ProductsScored,
		DurationMs:     result.DurationMs,
	})
}
