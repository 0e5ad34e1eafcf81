package store

import (
	"context"

	"gorm.io/gorm"

	"wardtrack-server/internal/models"
)

// InsertLabResult stores a lab result.
func (s *Store) InsertLabResult(ctx context.Context, r *models.LabResult) error {
	if err := s.db.WithContext(ctx).Omit("Patient").Create(r).Error; err != nil {
		return writeErr("insert lab result", err)
	}
	return nil
}

// ResolvePositiveLabResults flips every positive result of the patient record to
// resolved and appends note. It returns the number of rows changed.
func (s *Store) ResolvePositiveLabResults(ctx context.Context, patientRecordID, note string) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.LabResult{}).
		Where("patient_id = ? AND result = ?", patientRecordID, models.LabPositive).
		Updates(map[string]interface{}{
			"result": models.LabResolved,
			"notes":  gorm.Expr("CONCAT(COALESCE(notes, ''), ?)", note),
		})
	if res.Error != nil {
		return 0, writeErr("resolve lab results", res.Error)
	}
	return res.RowsAffected, nil
}

// ListPatientLabResults reads the patient_lab_results view for one patient.
func (s *Store) ListPatientLabResults(ctx context.Context, patientID string) ([]models.PatientLabResult, error) {
	var rows []models.PatientLabResult
	err := s.db.WithContext(ctx).
		Where("patient_id = ?", patientID).
		Order("collected_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, readErr("list patient lab results", err)
	}
	return rows, nil
}
