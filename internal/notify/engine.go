// Package notify implements the notification rules that react to patient and
// scan log changes. Rules run outside the triggering write; a notification that
// cannot be delivered is logged and dropped.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"wardtrack-server/internal/metrics"
	"wardtrack-server/internal/models"
	"wardtrack-server/internal/qr"
	"wardtrack-server/internal/store"
)

// ErrDelivery marks a notification that could not be persisted or forwarded.
var ErrDelivery = errors.New("notification delivery failure")

// Emitter delivers a notification.
type Emitter interface {
	Emit(ctx context.Context, n *models.Notification) error
}

// PatientLookup resolves a patient by the external id printed on the wristband.
type PatientLookup interface {
	FindPatientByExternalID(ctx context.Context, patientID string) (*models.Patient, error)
}

// Engine evaluates the notification rules.
type Engine struct {
	emitter              Emitter
	patients             PatientLookup
	earlyDischargeWindow time.Duration
	logger               *zap.Logger
}

// NewEngine creates an Engine. A discharge no later than earlyDischargeWindow
// after registration is reported as early.
func NewEngine(emitter Emitter, patients PatientLookup, earlyDischargeWindow time.Duration, logger *zap.Logger) *Engine {
	return &Engine{
		emitter:              emitter,
		patients:             patients,
		earlyDischargeWindow: earlyDischargeWindow,
		logger:               logger,
	}
}

// OnPatientUpdated applies the early-discharge rule. It only fires when the
// discharge date goes from unset to set; an update without the previous row
// is ignored. It returns the notification it emitted, if any.
func (e *Engine) OnPatientUpdated(ctx context.Context, old, updated *models.Patient) *models.Notification {
	if updated == nil || updated.DischargeDate == nil {
		return nil
	}
	if old == nil {
		e.logger.Debug("Skipping patient update without previous row", zap.String("patient_id", updated.PatientID))
		return nil
	}
	if old.DischargeDate != nil {
		return nil
	}

	stay := updated.DischargeDate.Sub(updated.RegistrationDate)
	if stay > e.earlyDischargeWindow {
		return nil
	}
	return e.emit(ctx, &models.Notification{
		PatientID:        updated.PatientID,
		NotificationType: models.NotificationEarlyDischarge,
		Message: fmt.Sprintf("Patient %s was discharged %s after registration",
			updated.PatientID, stay.Round(time.Second)),
	})
}

// OnScanInserted applies the post-discharge-scan rule. Every scan of a
// discharged patient produces its own notification.
func (e *Engine) OnScanInserted(ctx context.Context, entry *models.ScanLog) *models.Notification {
	if entry == nil {
		return nil
	}
	patientID := entry.PatientID
	if patientID == "" {
		patientID = qr.Decode(entry.PatientTag).PatientID
	}

	patient, err := e.patients.FindPatientByExternalID(ctx, patientID)
	if errors.Is(err, store.ErrPatientNotFound) {
		return nil
	}
	if err != nil {
		e.logger.Warn("Post-discharge check skipped",
			zap.String("patient_id", patientID),
			zap.Error(err),
		)
		return nil
	}
	if !patient.IsDischarged() {
		return nil
	}

	ward := entry.Ward
	return e.emit(ctx, &models.Notification{
		PatientID:        patient.PatientID,
		NotificationType: models.NotificationScanAfterDischarge,
		Ward:             &ward,
		Message:          fmt.Sprintf("Patient %s was scanned in %s after discharge", patient.PatientID, ward),
	})
}

// OnInconsistency raises a notification for a detected location inconsistency.
func (e *Engine) OnInconsistency(ctx context.Context, inc *models.LocationInconsistency) *models.Notification {
	if inc == nil {
		return nil
	}
	ward := inc.SecondWard
	return e.emit(ctx, &models.Notification{
		PatientID:        inc.PatientID,
		NotificationType: models.NotificationLocationInconsistency,
		Ward:             &ward,
		Message: fmt.Sprintf("Patient %s was scanned in %s and %s %.1f minutes apart",
			inc.PatientID, inc.FirstWard, inc.SecondWard, inc.TimeDifferenceMinutes),
	})
}

func (e *Engine) emit(ctx context.Context, n *models.Notification) *models.Notification {
	err := e.emitter.Emit(ctx, n)
	metrics.RecordNotification(string(n.NotificationType), err == nil)
	if err != nil {
		e.logger.Warn("Notification not delivered",
			zap.String("patient_id", n.PatientID),
			zap.String("type", string(n.NotificationType)),
			zap.Error(err),
		)
		return nil
	}
	e.logger.Info("Notification emitted",
		zap.String("notification_id", n.ID),
		zap.String("patient_id", n.PatientID),
		zap.String("type", string(n.NotificationType)),
	)
	return n
}
