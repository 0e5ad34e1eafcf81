package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"wardtrack-server/internal/events"
	"wardtrack-server/internal/models"
)

// ErrMalformedEvent is returned when an event record cannot be decoded.
var ErrMalformedEvent = errors.New("malformed event record")

// Router dispatches row-change events to the matching rule.
type Router struct {
	engine *Engine
	logger *zap.Logger
}

// NewRouter creates a Router.
func NewRouter(engine *Engine, logger *zap.Logger) *Router {
	return &Router{engine: engine, logger: logger}
}

// Handle routes patients UPDATE and ward_scan_logs INSERT events. Other events
// are ignored. A rule that does not fire is not an error.
func (r *Router) Handle(ctx context.Context, ev events.Event) error {
	switch {
	case ev.Table == events.TablePatients && ev.Type == events.TypeUpdate:
		var updated models.Patient
		if err := json.Unmarshal(ev.Record, &updated); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedEvent, err)
		}
		var old *models.Patient
		if len(ev.OldRecord) > 0 && !bytes.Equal(bytes.TrimSpace(ev.OldRecord), []byte("null")) {
			old = &models.Patient{}
			if err := json.Unmarshal(ev.OldRecord, old); err != nil {
				return fmt.Errorf("%w: %w", ErrMalformedEvent, err)
			}
		}
		r.engine.OnPatientUpdated(ctx, old, &updated)
	case ev.Table == events.TableScanLogs && ev.Type == events.TypeInsert:
		var entry models.ScanLog
		if err := json.Unmarshal(ev.Record, &entry); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedEvent, err)
		}
		r.engine.OnScanInserted(ctx, &entry)
	default:
		r.logger.Debug("Ignoring event",
			zap.String("table", ev.Table),
			zap.String("type", string(ev.Type)),
		)
	}
	return nil
}
