package scan

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"wardtrack-server/internal/metrics"
	"wardtrack-server/internal/store"
)

// IsolationNote is appended to every lab result resolved on isolation entry.
const IsolationNote = "\n[auto] Patient moved to isolation room; positive result resolved."

// Isolation resolves a patient's positive lab results when they enter isolation.
type Isolation struct {
	labs   LabStore
	logger *zap.Logger
}

// NewIsolation creates an Isolation trigger.
func NewIsolation(labs LabStore, logger *zap.Logger) *Isolation {
	return &Isolation{labs: labs, logger: logger}
}

// OnIsolationEntry returns the number of lab results it resolved. An unknown
// patient is a no-op. Running it again without new positive results changes nothing.
func (i *Isolation) OnIsolationEntry(ctx context.Context, patientID string) (int, error) {
	patient, err := i.labs.FindPatientByExternalID(ctx, patientID)
	if errors.Is(err, store.ErrPatientNotFound) {
		i.logger.Debug("Isolation entry for unknown patient", zap.String("patient_id", patientID))
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	n, err := i.labs.ResolvePositiveLabResults(ctx, patient.ID, IsolationNote)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.RecordLabResultsResolved(int(n))
		i.logger.Info("Resolved positive lab results on isolation entry",
			zap.String("patient_id", patientID),
			zap.Int64("lab_results", n),
		)
	}
	return int(n), nil
}
