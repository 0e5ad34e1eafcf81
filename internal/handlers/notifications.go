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

// NotificationStore reads and clears notifications.
type NotificationStore interface {
	ListNotifications(ctx context.Context, cleared *bool) ([]models.Notification, error)
	ClearNotification(ctx context.Context, id string, at time.Time) error
}

// NotificationHandler handles staff notifications.
type NotificationHandler struct {
	notifications NotificationStore
	logger        *zap.Logger
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(notifications NotificationStore, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, logger: logger}
}

// ListNotifications handles fetching notifications, newest first.
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	var q ClearedQuery
	if !utils.BindQuery(c, &q) {
		return
	}
	rows, err := h.notifications.ListNotifications(c.Request.Context(), q.Cleared)
	if err != nil {
		h.logger.Error("Failed to list notifications", zap.Error(err))
		utils.InternalServerError(c, "Failed to fetch notifications")
		return
	}
	utils.Success(c, "Notifications fetched successfully", rows)
}

// ClearNotification handles marking a notification as handled.
func (h *NotificationHandler) ClearNotification(c *gin.Context) {
	id := c.Param("id")
	err := h.notifications.ClearNotification(c.Request.Context(), id, time.Now().UTC())
	switch {
	case errors.Is(err, store.ErrNotFound):
		utils.NotFound(c, "Notification not found")
		return
	case err != nil:
		h.logger.Error("Failed to clear notification", zap.String("notification_id", id), zap.Error(err))
		utils.InternalServerError(c, "Failed to clear notification")
		return
	}
	utils.Success(c, "Notification cleared successfully", nil)
}
