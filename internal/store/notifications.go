package store

import (
	"context"
	"time"

	"wardtrack-server/internal/models"
)

// InsertNotification stores a notification.
func (s *Store) InsertNotification(ctx context.Context, n *models.Notification) error {
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return writeErr("insert notification", err)
	}
	return nil
}

// ListNotifications returns notifications newest first. A nil cleared returns all.
func (s *Store) ListNotifications(ctx context.Context, cleared *bool) ([]models.Notification, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if cleared != nil {
		q = q.Where("is_cleared = ?", *cleared)
	}
	var rows []models.Notification
	if err := q.Find(&rows).Error; err != nil {
		return nil, readErr("list notifications", err)
	}
	return rows, nil
}

// ClearNotification marks a notification as handled.
func (s *Store) ClearNotification(ctx context.Context, id string, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"is_cleared": true, "cleared_at": at})
	if res.Error != nil {
		return writeErr("clear notification", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
