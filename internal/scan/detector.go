package scan

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"wardtrack-server/internal/metrics"
	"wardtrack-server/internal/models"
	"wardtrack-server/internal/qr"
	"wardtrack-server/internal/store"
)

// Detector flags a tag seen in two wards within the conflict window.
type Detector struct {
	scans            ScanStore
	inconsistencies  InconsistencyWriter
	notifier         InconsistencyNotifier
	window           time.Duration
	matchByPatientID bool
	logger           *zap.Logger
	pending          sync.WaitGroup
}

// DetectorConfig configures a Detector. With MatchByPatientID the lookback
// matches the decoded patient id instead of the raw tag.
type DetectorConfig struct {
	Window           time.Duration
	MatchByPatientID bool
}

// NewDetector creates a Detector. notifier may be nil.
func NewDetector(scans ScanStore, inconsistencies InconsistencyWriter, notifier InconsistencyNotifier, cfg DetectorConfig, logger *zap.Logger) *Detector {
	return &Detector{
		scans:            scans,
		inconsistencies:  inconsistencies,
		notifier:         notifier,
		window:           cfg.Window,
		matchByPatientID: cfg.MatchByPatientID,
		logger:           logger,
	}
}

// Detect looks for the most recent scan of the same tag in another ward within
// the window. Only "other" scans are flagged; wristband scans are ground truth.
// A flagged conflict is persisted and returned; its notification is sent in the
// background. Store failures are logged and treated as no conflict.
func (d *Detector) Detect(ctx context.Context, rawTag, ward string, tagType qr.TagType, now time.Time) *models.LocationInconsistency {
	if tagType == qr.TypeWristband {
		return nil
	}

	patientID := qr.Decode(rawTag).PatientID
	match := store.ScanMatch{PatientTag: rawTag}
	if d.matchByPatientID {
		match = store.ScanMatch{PatientID: patientID}
	}

	prev, err := d.scans.LatestScanInOtherWard(ctx, match, ward, now.Add(-d.window))
	if err != nil {
		metrics.RecordFailOpen("detector")
		d.logger.Warn("Conflict lookback failed, continuing without conflict check",
			zap.String("patient_id", patientID),
			zap.String("ward", ward),
			zap.Error(err),
		)
		return nil
	}
	if prev == nil {
		return nil
	}

	inc := &models.LocationInconsistency{
		PatientID:             patientID,
		FirstWard:             prev.Ward,
		SecondWard:            ward,
		TimeDifferenceMinutes: now.Sub(prev.ScannedAt).Minutes(),
		DetectedAt:            now,
	}
	if err := d.inconsistencies.InsertInconsistency(ctx, inc); err != nil {
		metrics.RecordFailOpen("detector")
		d.logger.Warn("Failed to persist location inconsistency",
			zap.String("patient_id", patientID),
			zap.String("first_ward", inc.FirstWard),
			zap.String("second_ward", inc.SecondWard),
			zap.Error(err),
		)
		return nil
	}

	metrics.RecordInconsistency()
	d.logger.Info("Location inconsistency detected",
		zap.String("inconsistency_id", inc.ID),
		zap.String("patient_id", patientID),
		zap.String("first_ward", inc.FirstWard),
		zap.String("second_ward", inc.SecondWard),
		zap.Float64("minutes_apart", inc.TimeDifferenceMinutes),
	)
	if d.notifier != nil {
		d.notify(ctx, inc)
	}
	return inc
}

func (d *Detector) notify(ctx context.Context, inc *models.LocationInconsistency) {
	ctx = context.WithoutCancel(ctx)
	d.pending.Add(1)
	go func() {
		defer d.pending.Done()
		d.notifier.OnInconsistency(ctx, inc)
	}()
}

// Wait blocks until background notifications have finished.
func (d *Detector) Wait() {
	d.pending.Wait()
}
