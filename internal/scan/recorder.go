package scan

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"wardtrack-server/internal/metrics"
	"wardtrack-server/internal/models"
	"wardtrack-server/internal/qr"
)

// Recorder writes scan log entries. Wristband scans are authoritative; other
// scans are advisory while a wristband scan of the same patient is recent.
type Recorder struct {
	scans         ScanStore
	isolation     IsolationTrigger
	window        time.Duration
	isolationWard string
	logger        *zap.Logger
}

// RecorderConfig configures a Recorder.
type RecorderConfig struct {
	WristbandWindow time.Duration
	IsolationWard   string
}

// NewRecorder creates a Recorder.
func NewRecorder(scans ScanStore, isolation IsolationTrigger, cfg RecorderConfig, logger *zap.Logger) *Recorder {
	return &Recorder{
		scans:         scans,
		isolation:     isolation,
		window:        cfg.WristbandWindow,
		isolationWard: cfg.IsolationWard,
		logger:        logger,
	}
}

// Record appends the scan and triggers the isolation side effect for an
// authoritative scan into the isolation ward. An insert failure is returned
// and the scan must be treated as not recorded.
func (r *Recorder) Record(ctx context.Context, ev ScanEvent, now time.Time) (Result, error) {
	payload, tagType := ev.Classify()
	entry := &models.ScanLog{
		PatientTag:    ev.RawTag,
		PatientID:     payload.PatientID,
		TagType:       string(tagType),
		Ward:          ev.Ward,
		ScannedAt:     now,
		ScannedBy:     ev.ScannedBy,
		Authoritative: true,
	}

	var advisory string
	if tagType == qr.TypeOther {
		advisory = r.wristbandOverride(ctx, payload.PatientID, now)
		entry.Authoritative = advisory == ""
	}

	if err := r.scans.InsertScanLog(ctx, entry); err != nil {
		return Result{}, fmt.Errorf("record scan: %w", err)
	}

	res := Result{Entry: entry, Authoritative: entry.Authoritative, Advisory: advisory}
	if entry.Authoritative && ev.Ward == r.isolationWard {
		res.LabResultsResolved = r.enterIsolation(ctx, payload.PatientID)
	}
	return res, nil
}

// wristbandOverride returns the advisory message when a wristband scan of the
// patient is recent. A failed lookup counts as no recent wristband scan.
func (r *Recorder) wristbandOverride(ctx context.Context, patientID string, now time.Time) string {
	prev, err := r.scans.LatestWristbandScan(ctx, patientID, now.Add(-r.window))
	if err != nil {
		metrics.RecordFailOpen("recorder")
		r.logger.Warn("Wristband lookback failed, recording scan as authoritative",
			zap.String("patient_id", patientID),
			zap.Error(err),
		)
		return ""
	}
	if prev == nil {
		return ""
	}
	return fmt.Sprintf("a wristband scan in %s at %s may override this location",
		prev.Ward, prev.ScannedAt.UTC().Format(time.RFC3339))
}

func (r *Recorder) enterIsolation(ctx context.Context, patientID string) int {
	n, err := r.isolation.OnIsolationEntry(ctx, patientID)
	if err != nil {
		r.logger.Warn("Isolation side effect failed",
			zap.String("patient_id", patientID),
			zap.Error(err),
		)
		return 0
	}
	return n
}
