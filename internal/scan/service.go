package scan

import (
	"context"
	"time"

	"go.uber.org/zap"

	"wardtrack-server/internal/events"
	"wardtrack-server/internal/metrics"
)

// Service runs the scan pipeline: cooldown, conflict detection, recording with
// the isolation side effect, then publishing the new row for the notification rules.
type Service struct {
	detector  *Detector
	recorder  *Recorder
	publisher events.Publisher
	cooldown  time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service.
func NewService(detector *Detector, recorder *Recorder, publisher events.Publisher, cooldown time.Duration, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		detector:  detector,
		recorder:  recorder,
		publisher: publisher,
		cooldown:  cooldown,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Process handles one scan. It returns ErrCooldown before touching the store
// when the station's previous scan is too recent, and a wrapped store.ErrWrite
// when the scan could not be recorded.
func (s *Service) Process(ctx context.Context, ev ScanEvent) (Result, error) {
	if err := ev.Validate(); err != nil {
		return Result{}, err
	}
	now := s.now()
	_, tagType := ev.Classify()

	if ev.LastScanAt != nil && WithinCooldown(*ev.LastScanAt, now, s.cooldown) {
		metrics.RecordScan(string(tagType), "cooldown")
		return Result{}, ErrCooldown
	}

	inc := s.detector.Detect(ctx, ev.RawTag, ev.Ward, tagType, now)

	res, err := s.recorder.Record(ctx, ev, now)
	if err != nil {
		metrics.RecordScan(string(tagType), "failed")
		s.logger.Error("Scan not recorded",
			zap.String("ward", ev.Ward),
			zap.String("tag_type", string(tagType)),
			zap.Error(err),
		)
		return Result{}, err
	}
	res.Inconsistency = inc

	outcome := "authoritative"
	if !res.Authoritative {
		outcome = "advisory"
	}
	metrics.RecordScan(string(tagType), outcome)

	s.publish(ctx, res)
	return res, nil
}

func (s *Service) publish(ctx context.Context, res Result) {
	ev, err := events.NewEvent(events.TypeInsert, events.TableScanLogs, res.Entry, nil)
	if err == nil {
		err = s.publisher.Publish(ctx, ev)
	}
	if err != nil {
		s.logger.Warn("Failed to publish scan event",
			zap.String("scan_id", res.Entry.ID),
			zap.Error(err),
		)
	}
}
