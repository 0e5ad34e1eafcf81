package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wardtrack-server/internal/models"
	"wardtrack-server/internal/report"
	"wardtrack-server/internal/store"
	"wardtrack-server/internal/utils"
)

// InconsistencyStore reads and clears location inconsistencies.
type InconsistencyStore interface {
	ListInconsistencies(ctx context.Context, cleared *bool) ([]models.LocationInconsistency, error)
	ClearInconsistency(ctx context.Context, id, clearedBy, notes string, at time.Time) (*models.LocationInconsistency, error)
}

// InconsistencyHandler handles location inconsistency review.
type InconsistencyHandler struct {
	inconsistencies InconsistencyStore
	logger          *zap.Logger
}

// NewInconsistencyHandler creates a new InconsistencyHandler.
func NewInconsistencyHandler(inconsistencies InconsistencyStore, logger *zap.Logger) *InconsistencyHandler {
	return &InconsistencyHandler{inconsistencies: inconsistencies, logger: logger}
}

// ClearedQuery filters by review state. Omitted means all.
type ClearedQuery struct {
	Cleared *bool `form:"cleared"`
}

// ListInconsistencies handles fetching inconsistencies, newest first.
func (h *InconsistencyHandler) ListInconsistencies(c *gin.Context) {
	var q ClearedQuery
	if !utils.BindQuery(c, &q) {
		return
	}
	rows, err := h.inconsistencies.ListInconsistencies(c.Request.Context(), q.Cleared)
	if err != nil {
		h.logger.Error("Failed to list inconsistencies", zap.Error(err))
		utils.InternalServerError(c, "Failed to fetch inconsistencies")
		return
	}
	utils.Success(c, "Inconsistencies fetched successfully", rows)
}

// ClearInconsistencyRequest represents the request body for clearing an inconsistency.
type ClearInconsistencyRequest struct {
	ClearedBy string `json:"clearedBy" binding:"required"`
	Notes     string `json:"notes"`
}

// ClearInconsistency handles marking an inconsistency as reviewed.
func (h *InconsistencyHandler) ClearInconsistency(c *gin.Context) {
	var req ClearInconsistencyRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	id := c.Param("id")
	inc, err := h.inconsistencies.ClearInconsistency(c.Request.Context(), id, req.ClearedBy, req.Notes, time.Now().UTC())
	switch {
	case errors.Is(err, store.ErrNotFound):
		utils.NotFound(c, "Inconsistency not found")
		return
	case err != nil:
		h.logger.Error("Failed to clear inconsistency", zap.String("inconsistency_id", id), zap.Error(err))
		utils.InternalServerError(c, "Failed to clear inconsistency")
		return
	}
	utils.Success(c, "Inconsistency cleared successfully", inc)
}

// ExportInconsistencies handles downloading inconsistencies as a spreadsheet.
func (h *InconsistencyHandler) ExportInconsistencies(c *gin.Context) {
	var q ClearedQuery
	if !utils.BindQuery(c, &q) {
		return
	}
	rows, err := h.inconsistencies.ListInconsistencies(c.Request.Context(), q.Cleared)
	if err != nil {
		h.logger.Error("Failed to list inconsistencies for export", zap.Error(err))
		utils.InternalServerError(c, "Failed to export inconsistencies")
		return
	}
	data, err := report.InconsistencyWorkbook(rows)
	if err != nil {
		h.logger.Error("Failed to render inconsistency export", zap.Error(err))
		utils.InternalServerError(c, "Failed to export inconsistencies")
		return
	}
	utils.Spreadsheet(c, report.ExportFilename("location_inconsistencies", time.Now()), data)
}
