package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wardtrack-server/internal/models"
	"wardtrack-server/internal/store"
	"wardtrack-server/internal/utils"
)

// LabResultStore stores lab results against registered patients.
type LabResultStore interface {
	FindPatientByExternalID(ctx context.Context, patientID string) (*models.Patient, error)
	InsertLabResult(ctx context.Context, r *models.LabResult) error
}

// LabResultHandler handles lab result requests.
type LabResultHandler struct {
	labs   LabResultStore
	logger *zap.Logger
}

// NewLabResultHandler creates a new LabResultHandler.
func NewLabResultHandler(labs LabResultStore, logger *zap.Logger) *LabResultHandler {
	return &LabResultHandler{labs: labs, logger: logger}
}

// CreateLabResultRequest represents the request body for recording a lab result.
// An empty result means pending.
type CreateLabResultRequest struct {
	PatientID   string     `json:"patientId" binding:"required"`
	TestName    string     `json:"testName" binding:"required"`
	Result      string     `json:"result" binding:"omitempty,oneof=positive negative resolved"`
	Notes       string     `json:"notes"`
	CollectedAt *time.Time `json:"collectedAt"`
}

// CreateLabResult handles recording a lab result for a patient.
func (h *LabResultHandler) CreateLabResult(c *gin.Context) {
	var req CreateLabResultRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	patient, err := h.labs.FindPatientByExternalID(c.Request.Context(), req.PatientID)
	switch {
	case errors.Is(err, store.ErrPatientNotFound):
		utils.NotFound(c, "Patient not found")
		return
	case err != nil:
		h.logger.Error("Failed to fetch patient", zap.String("patient_id", req.PatientID), zap.Error(err))
		utils.InternalServerError(c, "Failed to record lab result")
		return
	}

	collected := time.Now().UTC()
	if req.CollectedAt != nil {
		collected = req.CollectedAt.UTC()
	}
	result := &models.LabResult{
		PatientID:   patient.ID,
		TestName:    req.TestName,
		Notes:       req.Notes,
		CollectedAt: collected,
	}
	if req.Result != "" {
		result.Result = models.Outcome(models.LabOutcome(req.Result))
	}
	if err := h.labs.InsertLabResult(c.Request.Context(), result); err != nil {
		h.logger.Error("Failed to record lab result", zap.String("patient_id", req.PatientID), zap.Error(err))
		utils.InternalServerError(c, "Failed to record lab result")
		return
	}
	utils.Created(c, "Lab result recorded successfully", result)
}
