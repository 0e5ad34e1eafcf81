package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"wardtrack-server/internal/models"
	"wardtrack-server/internal/qr"
)

// ScanMatch selects the scans a lookback considers. PatientTag matches the raw
// tag verbatim; when it is empty PatientID matches the decoded patient id.
type ScanMatch struct {
	PatientTag string
	PatientID  string
}

// InsertScanLog appends a scan log row.
func (s *Store) InsertScanLog(ctx context.Context, entry *models.ScanLog) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return writeErr("insert scan log", err)
	}
	return nil
}

// LatestScanInOtherWard returns the most recent scan matching m in a ward other
// than ward and scanned strictly after since. It returns nil, nil when there is none.
func (s *Store) LatestScanInOtherWard(ctx context.Context, m ScanMatch, ward string, since time.Time) (*models.ScanLog, error) {
	q := s.db.WithContext(ctx).Where("ward <> ? AND scanned_at > ?", ward, since)
	if m.PatientTag != "" {
		q = q.Where("patient_tag = ?", m.PatientTag)
	} else {
		q = q.Where("patient_id = ?", m.PatientID)
	}
	return s.latest(q, "latest scan in other ward")
}

// LatestWristbandScan returns the most recent wristband scan for patientID in
// any ward after since. Rows match on the canonical wristband tag or on the
// stored decoded id with a wristband tag type.
func (s *Store) LatestWristbandScan(ctx context.Context, patientID string, since time.Time) (*models.ScanLog, error) {
	q := s.db.WithContext(ctx).
		Where("scanned_at > ?", since).
		Where(s.db.Where("patient_tag = ?", qr.WristbandTag(patientID)).
			Or("patient_id = ? AND tag_type = ?", patientID, string(qr.TypeWristband)))
	return s.latest(q, "latest wristband scan")
}

func (s *Store) latest(q *gorm.DB, op string) (*models.ScanLog, error) {
	var entry models.ScanLog
	err := q.Order("scanned_at DESC").Limit(1).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, readErr(op, err)
	}
	return &entry, nil
}

// ListScanLogs returns scans newest first, optionally filtered by ward.
func (s *Store) ListScanLogs(ctx context.Context, ward string, limit int) ([]models.ScanLog, error) {
	q := s.db.WithContext(ctx).Order("scanned_at DESC")
	if ward != "" {
		q = q.Where("ward = ?", ward)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var entries []models.ScanLog
	if err := q.Find(&entries).Error; err != nil {
		return nil, readErr("list scan logs", err)
	}
	return entries, nil
}
