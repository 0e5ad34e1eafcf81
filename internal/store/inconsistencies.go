package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"wardtrack-server/internal/models"
)

// InsertInconsistency stores a detected location inconsistency.
func (s *Store) InsertInconsistency(ctx context.Context, inc *models.LocationInconsistency) error {
	if err := s.db.WithContext(ctx).Create(inc).Error; err != nil {
		return writeErr("insert inconsistency", err)
	}
	return nil
}

// ListInconsistencies returns inconsistencies newest first. A nil cleared
// returns both cleared and open rows.
func (s *Store) ListInconsistencies(ctx context.Context, cleared *bool) ([]models.LocationInconsistency, error) {
	q := s.db.WithContext(ctx).Order("detected_at DESC")
	if cleared != nil {
		q = q.Where("cleared = ?", *cleared)
	}
	var rows []models.LocationInconsistency
	if err := q.Find(&rows).Error; err != nil {
		return nil, readErr("list inconsistencies", err)
	}
	return rows, nil
}

// ClearInconsistency marks an inconsistency as reviewed.
func (s *Store) ClearInconsistency(ctx context.Context, id, clearedBy, notes string, at time.Time) (*models.LocationInconsistency, error) {
	var inc models.LocationInconsistency
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&inc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, readErr("find inconsistency", err)
	}

	inc.Cleared = true
	inc.ClearedBy = clearedBy
	inc.ClearedAt = &at
	inc.Notes = notes
	err = s.db.WithContext(ctx).Model(&models.LocationInconsistency{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"cleared":    true,
			"cleared_by": clearedBy,
			"cleared_at": at,
			"notes":      notes,
		}).Error
	if err != nil {
		return nil, writeErr("clear inconsistency", err)
	}
	return &inc, nil
}
