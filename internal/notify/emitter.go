package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"wardtrack-server/internal/models"
)

// NotificationWriter persists notifications.
type NotificationWriter interface {
	InsertNotification(ctx context.Context, n *models.Notification) error
}

// StoreEmitter persists notifications and optionally forwards them.
type StoreEmitter struct {
	writer    NotificationWriter
	forwarder *Forwarder
	logger    *zap.Logger
}

// NewStoreEmitter creates an emitter. forwarder may be nil.
func NewStoreEmitter(writer NotificationWriter, forwarder *Forwarder, logger *zap.Logger) *StoreEmitter {
	return &StoreEmitter{writer: writer, forwarder: forwarder, logger: logger}
}

// Emit persists n. A forwarding failure is logged and does not fail the emit.
func (s *StoreEmitter) Emit(ctx context.Context, n *models.Notification) error {
	if err := s.writer.InsertNotification(ctx, n); err != nil {
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	if s.forwarder != nil {
		if err := s.forwarder.Forward(ctx, n); err != nil {
			s.logger.Warn("Notification forward failed",
				zap.String("notification_id", n.ID),
				zap.Error(err),
			)
		}
	}
	return nil
}

// Forwarder posts notifications to an external endpoint such as a paging bridge.
type Forwarder struct {
	client *resty.Client
	url    string
}

// NewForwarder returns nil when url is empty.
func NewForwarder(url string) *Forwarder {
	if url == "" {
		return nil
	}
	client := resty.New().
		SetTimeout(5*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &Forwarder{client: client, url: url}
}

// Forward posts n once, without retry.
func (f *Forwarder) Forward(ctx context.Context, n *models.Notification) error {
	resp, err := f.client.R().
		SetContext(ctx).
		SetBody(n).
		Post(f.url)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: forward returned status %d", ErrDelivery, resp.StatusCode())
	}
	return nil
}
