package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/calcutta-sim/internal/api/middleware"
	"github.com/stitts-dev/calcutta-sim/internal/optimizer"
	"github.com/stitts-dev/calcutta-sim/internal/services"
	"github.com/stitts-dev/calcutta-sim/pkg/utils"
)

type AllocationHandler struct {
	service *services.AllocationService
	logger  *logrus.Entry
}

func NewAllocationHandler(service *services.AllocationService, logger *logrus.Logger) *AllocationHandler {
	return &AllocationHandler{
		service: service,
		logger:  logger.WithField("component", "allocation_handler"),
	}
}

// RunSummary is the list view of a persisted run
type RunSummary struct {
	ID            string  `json:"id"`
	Strategy      string  `json:"strategy"`
	Budget        int     `json:"budget"`
	TeamsSelected int     `json:"teams_selected"`
	TotalBid      int     `json:"total_bid"`
	TotalValue    float64 `json:"total_value"`
	CreatedAt     string  `json:"created_at"`
}

// Allocate runs the requested allocator
func (h *AllocationHandler) Allocate(c *gin.Context) {
	var req services.AllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}

	result, err := h.service.Allocate(c.Request.Context(), req)
	if err != nil {
		h.sendAllocationError(c, err)
		return
	}
	if result.RunID != "" {
		c.Set(middleware.AllocationIDKey, result.RunID)
	}

	utils.SendSuccessWithMeta(c, result, &utils.Meta{Cached: result.Cached})
}

// ValidateAllocation checks a request without running an allocator
func (h *AllocationHandler) ValidateAllocation(c *gin.Context) {
	var req services.AllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}

	result, err := h.service.Validate(req)
	if err != nil {
		h.sendAllocationError(c, err)
		return
	}
	utils.SendSuccess(c, result)
}

// Compare runs greedy and the DP on the same request
func (h *AllocationHandler) Compare(c *gin.Context) {
	var req services.AllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}

	result, err := h.service.Compare(c.Request.Context(), req)
	if err != nil {
		h.sendAllocationError(c, err)
		return
	}
	utils.SendSuccess(c, result)
}

// ListRuns returns the newest persisted runs
func (h *AllocationHandler) ListRuns(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			utils.SendValidationError(c, "Invalid limit", err.Error())
			return
		}
		limit = parsed
	}

	runs, total, err := h.service.ListRuns(c.Request.Context(), limit)
	if err != nil {
		h.sendRunError(c, err)
		return
	}

	summaries := make([]RunSummary, len(runs))
	for i, run := range runs {
		summaries[i] = RunSummary{
			ID:            run.ID.String(),
			Strategy:      run.Strategy,
			Budget:        run.Budget,
			TeamsSelected: run.TeamsSelected,
			TotalBid:      run.TotalBid,
			TotalValue:    run.TotalValue,
			CreatedAt:     run.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
	}
	utils.SendSuccessWithMeta(c, summaries, &utils.Meta{Limit: len(summaries), Total: total})
}

// GetRun returns one persisted run with its bids
func (h *AllocationHandler) GetRun(c *gin.Context) {
	run, err := h.service.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.sendRunError(c, err)
		return
	}
	utils.SendSuccess(c, run)
}

func (h *AllocationHandler) sendAllocationError(c *gin.Context, err error) {
	var invErr *optimizer.InvariantError

	switch {
	case optimizer.IsInvalidInput(err):
		utils.SendValidationError(c, "Invalid allocation request", err.Error())
	case optimizer.IsInfeasible(err):
		utils.SendInfeasible(c, "Constraints cannot be satisfied", err.Error())
	case errors.Is(err, services.ErrAllocationTimeout), errors.Is(err, context.DeadlineExceeded):
		utils.SendTimeout(c, "Allocation did not finish in time")
	case errors.As(err, &invErr):
		h.logger.WithError(err).WithField("strategy", invErr.Strategy).Error("Allocator invariant violated")
		utils.SendError(c, http.StatusInternalServerError, utils.NewAppError(utils.ErrCodeAllocation, "Allocator produced an invalid portfolio", invErr.Reason))
	default:
		h.logger.WithError(err).Error("Allocation failed")
		utils.SendInternalError(c, "Allocation failed")
	}
}

func (h *AllocationHandler) sendRunError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidRunID):
		utils.SendValidationError(c, "Invalid run id", err.Error())
	case errors.Is(err, services.ErrRunNotFound):
		utils.SendNotFound(c, "Allocation run not found")
	case errors.Is(err, services.ErrPersistenceDisabled):
		utils.SendUnavailable(c, "Allocation runs are not persisted on this server")
	default:
		h.logger.WithError(err).Error("Failed to load allocation runs")
		utils.SendInternalError(c, "Failed to load allocation runs")
	}
}
