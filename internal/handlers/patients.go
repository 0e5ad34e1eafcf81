package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wardtrack-server/internal/events"
	"wardtrack-server/internal/models"
	"wardtrack-server/internal/qr"
	"wardtrack-server/internal/store"
	"wardtrack-server/internal/utils"
)

// PatientStore is the patient registration storage.
type PatientStore interface {
	InsertPatient(ctx context.Context, p *models.Patient) error
	FindPatientByExternalID(ctx context.Context, patientID string) (*models.Patient, error)
	DischargePatient(ctx context.Context, patientID string, at time.Time) (before, after *models.Patient, err error)
	ListPatientLabResults(ctx context.Context, patientID string) ([]models.PatientLabResult, error)
}

// PatientHandler handles patient registration and discharge.
type PatientHandler struct {
	patients  PatientStore
	publisher events.Publisher
	logger    *zap.Logger
}

// NewPatientHandler creates a new PatientHandler.
func NewPatientHandler(patients PatientStore, publisher events.Publisher, logger *zap.Logger) *PatientHandler {
	return &PatientHandler{patients: patients, publisher: publisher, logger: logger}
}

// RegisterPatientRequest represents the request body for registering a patient.
type RegisterPatientRequest struct {
	PatientID        string     `json:"patientId" binding:"required,max=512"`
	FullName         string     `json:"fullName" binding:"required"`
	RegistrationDate *time.Time `json:"registrationDate"`
}

// RegisterPatient handles registering a new patient.
func (h *PatientHandler) RegisterPatient(c *gin.Context) {
	var req RegisterPatientRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	_, err := h.patients.FindPatientByExternalID(c.Request.Context(), req.PatientID)
	switch {
	case err == nil:
		utils.Conflict(c, "Patient ID already registered")
		return
	case !errors.Is(err, store.ErrPatientNotFound):
		h.logger.Error("Failed to check patient", zap.Error(err))
		utils.InternalServerError(c, "Failed to register patient")
		return
	}

	registered := time.Now().UTC()
	if req.RegistrationDate != nil {
		registered = req.RegistrationDate.UTC()
	}
	patient := &models.Patient{
		PatientID:        req.PatientID,
		FullName:         req.FullName,
		RegistrationDate: registered,
		Status:           models.StatusAdmitted,
	}
	if err := h.patients.InsertPatient(c.Request.Context(), patient); err != nil {
		h.logger.Error("Failed to register patient", zap.String("patient_id", req.PatientID), zap.Error(err))
		utils.InternalServerError(c, "Failed to register patient")
		return
	}
	utils.Created(c, "Patient registered successfully", patient)
}

// GetPatient handles fetching a patient by external id.
func (h *PatientHandler) GetPatient(c *gin.Context) {
	patient, ok := h.findPatient(c)
	if !ok {
		return
	}
	utils.Success(c, "Patient fetched successfully", patient)
}

// DischargePatientRequest optionally backdates a discharge.
type DischargePatientRequest struct {
	DischargeDate *time.Time `json:"dischargeDate"`
}

// DischargePatient handles discharging a patient and publishes the change for
// the notification rules.
func (h *PatientHandler) DischargePatient(c *gin.Context) {
	var req DischargePatientRequest
	if c.Request.ContentLength > 0 && !utils.BindAndValidate(c, &req) {
		return
	}
	at := time.Now().UTC()
	if req.DischargeDate != nil {
		at = req.DischargeDate.UTC()
	}

	patientID := c.Param("patientId")
	before, after, err := h.patients.DischargePatient(c.Request.Context(), patientID, at)
	switch {
	case errors.Is(err, store.ErrPatientNotFound):
		utils.NotFound(c, "Patient not found")
		return
	case err != nil:
		h.logger.Error("Failed to discharge patient", zap.String("patient_id", patientID), zap.Error(err))
		utils.InternalServerError(c, "Failed to discharge patient")
		return
	}
	if before.DischargeDate != nil {
		h.logger.Info("Discharge date overwritten", zap.String("patient_id", patientID))
	}

	h.publish(c.Request.Context(), before, after)
	utils.Success(c, "Patient discharged successfully", after)
}

func (h *PatientHandler) publish(ctx context.Context, before, after *models.Patient) {
	ev, err := events.NewEvent(events.TypeUpdate, events.TablePatients, after, before)
	if err == nil {
		err = h.publisher.Publish(ctx, ev)
	}
	if err != nil {
		h.logger.Warn("Failed to publish patient update",
			zap.String("patient_id", after.PatientID),
			zap.Error(err),
		)
	}
}

// WristbandResponse is the payload to print into a wristband QR code.
type WristbandResponse struct {
	PatientID string `json:"patientId"`
	Tag       string `json:"tag"`
}

// GetWristband handles fetching the canonical wristband tag of a patient.
func (h *PatientHandler) GetWristband(c *gin.Context) {
	patient, ok := h.findPatient(c)
	if !ok {
		return
	}
	utils.Success(c, "Wristband tag generated successfully", WristbandResponse{
		PatientID: patient.PatientID,
		Tag:       qr.WristbandTag(patient.PatientID),
	})
}

// GetLabResults handles fetching a patient's lab results.
func (h *PatientHandler) GetLabResults(c *gin.Context) {
	patient, ok := h.findPatient(c)
	if !ok {
		return
	}
	results, err := h.patients.ListPatientLabResults(c.Request.Context(), patient.PatientID)
	if err != nil {
		h.logger.Error("Failed to list lab results", zap.String("patient_id", patient.PatientID), zap.Error(err))
		utils.InternalServerError(c, "Failed to fetch lab results")
		return
	}
	utils.Success(c, "Lab results fetched successfully", results)
}

func (h *PatientHandler) findPatient(c *gin.Context) (*models.Patient, bool) {
	patientID := c.Param("patientId")
	patient, err := h.patients.FindPatientByExternalID(c.Request.Context(), patientID)
	switch {
	case errors.Is(err, store.ErrPatientNotFound):
		utils.NotFound(c, "Patient not found")
		return nil, false
	case err != nil:
		h.logger.Error("Failed to fetch patient", zap.String("patient_id", patientID), zap.Error(err))
		utils.InternalServerError(c, "Failed to fetch patient")
		return nil, false
	}
	return patient, true
}
