// Package scan reconciles ward checkpoint scans: it flags conflicting ward
// locations, records scans with wristband precedence, and resolves positive lab
// results when a patient enters isolation.
package scan

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"wardtrack-server/internal/models"
	"wardtrack-server/internal/qr"
	"wardtrack-server/internal/store"
)

var (
	ErrCooldown    = errors.New("scan received within cooldown window")
	ErrInvalidScan = errors.New("scan requires a tag and a ward")
)

// Column widths of ward_scan_logs.
const (
	MaxTagLength  = 512
	MaxWardLength = 100
)

// ScanEvent is one scan as read by a ward station. TagType, when set, is the
// station's scan mode and takes precedence over the type encoded in the tag.
type ScanEvent struct {
	RawTag     string
	Ward       string
	ScannedBy  string
	TagType    qr.TagType
	LastScanAt *time.Time
}

// Validate reports ErrInvalidScan for a missing tag or ward, or one too long
// to be stored.
func (ev ScanEvent) Validate() error {
	if ev.RawTag == "" || ev.Ward == "" {
		return ErrInvalidScan
	}
	if utf8.RuneCountInString(ev.RawTag) > MaxTagLength {
		return fmt.Errorf("%w: tag longer than %d characters", ErrInvalidScan, MaxTagLength)
	}
	if utf8.RuneCountInString(ev.Ward) > MaxWardLength {
		return fmt.Errorf("%w: ward longer than %d characters", ErrInvalidScan, MaxWardLength)
	}
	return nil
}

// Classify decodes the tag and resolves its effective type.
func (ev ScanEvent) Classify() (qr.Payload, qr.TagType) {
	payload := qr.Decode(ev.RawTag)
	if ev.TagType != "" {
		return payload, ev.TagType
	}
	return payload, payload.TagType()
}

// Result is the outcome of a recorded scan.
type Result struct {
	Entry              *models.ScanLog
	Authoritative      bool
	Advisory           string
	Inconsistency      *models.LocationInconsistency
	LabResultsResolved int
}

// ScanStore is the scan log storage the pipeline reads and appends to.
type ScanStore interface {
	InsertScanLog(ctx context.Context, entry *models.ScanLog) error
	LatestScanInOtherWard(ctx context.Context, m store.ScanMatch, ward string, since time.Time) (*models.ScanLog, error)
	LatestWristbandScan(ctx context.Context, patientID string, since time.Time) (*models.ScanLog, error)
}

// InconsistencyWriter persists detected inconsistencies.
type InconsistencyWriter interface {
	InsertInconsistency(ctx context.Context, inc *models.LocationInconsistency) error
}

// InconsistencyNotifier is told about every persisted inconsistency.
type InconsistencyNotifier interface {
	OnInconsistency(ctx context.Context, inc *models.LocationInconsistency) *models.Notification
}

// LabStore resolves patients and their positive lab results.
type LabStore interface {
	FindPatientByExternalID(ctx context.Context, patientID string) (*models.Patient, error)
	ResolvePositiveLabResults(ctx context.Context, patientRecordID, note string) (int64, error)
}

// IsolationTrigger runs the isolation side effect for a patient.
type IsolationTrigger interface {
	OnIsolationEntry(ctx context.Context, patientID string) (int, error)
}

// WithinCooldown reports whether now falls inside the debounce window that
// started at last. A last scan in the future does not count.
func WithinCooldown(last, now time.Time, window time.Duration) bool {
	d := now.Sub(last)
	return d >= 0 && d < window
}
