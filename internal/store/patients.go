package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"wardtrack-server/internal/models"
)

// InsertPatient registers a patient.
func (s *Store) InsertPatient(ctx context.Context, p *models.Patient) error {
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return writeErr("insert patient", err)
	}
	return nil
}

// FindPatientByExternalID looks a patient up by the id printed on the wristband.
func (s *Store) FindPatientByExternalID(ctx context.Context, patientID string) (*models.Patient, error) {
	var p models.Patient
	err := s.db.WithContext(ctx).Where("patient_id = ?", patientID).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		return nil, readErr("find patient", err)
	}
	return &p, nil
}

// DischargePatient sets the discharge date and status. It returns the row as it
// was before and after the update so the change can be published.
func (s *Store) DischargePatient(ctx context.Context, patientID string, at time.Time) (before, after *models.Patient, err error) {
	before, err = s.FindPatientByExternalID(ctx, patientID)
	if err != nil {
		return nil, nil, err
	}

	updated := *before
	updated.DischargeDate = &at
	updated.Status = models.StatusDischarged

	res := s.db.WithContext(ctx).Model(&models.Patient{}).
		Where("id = ?", before.ID).
		Updates(map[string]interface{}{
			"discharge_date": at,
			"status":         models.StatusDischarged,
		})
	if res.Error != nil {
		return nil, nil, writeErr("discharge patient", res.Error)
	}
	return before, &updated, nil
}
