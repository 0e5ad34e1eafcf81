package events

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"wardtrack-server/internal/metrics"
)

// AsyncPublisher publishes on a background goroutine so the caller never waits
// on delivery. Failures are logged and dropped.
type AsyncPublisher struct {
	next   Publisher
	bus    string
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewAsyncPublisher wraps next. bus labels the metrics and log lines.
func NewAsyncPublisher(next Publisher, bus string, logger *zap.Logger) *AsyncPublisher {
	return &AsyncPublisher{next: next, bus: bus, logger: logger}
}

// NewInlinePublisher dispatches events straight to h in-process.
func NewInlinePublisher(h Handler, logger *zap.Logger) *AsyncPublisher {
	return NewAsyncPublisher(PublisherFunc(h.Handle), "inline", logger)
}

// Publish always returns nil.
func (p *AsyncPublisher) Publish(ctx context.Context, ev Event) error {
	ctx = context.WithoutCancel(ctx)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		err := p.next.Publish(ctx, ev)
		metrics.RecordEvent(p.bus, err == nil)
		if err != nil {
			p.logger.Warn("Event delivery failed",
				zap.String("bus", p.bus),
				zap.String("event_id", ev.ID),
				zap.String("table", ev.Table),
				zap.String("type", string(ev.Type)),
				zap.Error(err),
			)
		}
	}()
	return nil
}

// Close waits for in-flight deliveries.
func (p *AsyncPublisher) Close() {
	p.wg.Wait()
}
