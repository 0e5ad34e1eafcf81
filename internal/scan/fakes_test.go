package scan

import (
	"context"
	"sync"
	"time"

	"wardtrack-server/internal/events"
	"wardtrack-server/internal/models"
	"wardtrack-server/internal/qr"
	"wardtrack-server/internal/store"
)

// memStore keeps rows in memory and answers the pipeline queries the way the
// gorm store does.
type memStore struct {
	mu              sync.Mutex
	scans           []*models.ScanLog
	inconsistencies []*models.LocationInconsistency
	patients        map[string]*models.Patient
	labs            []*models.LabResult

	readErr   error
	insertErr error
	incErr    error
	nextID    int
}

func newMemStore() *memStore {
	return &memStore{patients: map[string]*models.Patient{}}
}

func (m *memStore) id() string {
	m.nextID++
	return "row-" + string(rune('a'+m.nextID-1))
}

func (m *memStore) InsertScanLog(_ context.Context, entry *models.ScanLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	entry.ID = m.id()
	m.scans = append(m.scans, entry)
	return nil
}

func (m *memStore) latest(match func(*models.ScanLog) bool) *models.ScanLog {
	var best *models.ScanLog
	for _, s := range m.scans {
		if match(s) && (best == nil || s.ScannedAt.After(best.ScannedAt)) {
			best = s
		}
	}
	return best
}

func (m *memStore) LatestScanInOtherWard(_ context.Context, sm store.ScanMatch, ward string, since time.Time) (*models.ScanLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	return m.latest(func(s *models.ScanLog) bool {
		if s.Ward == ward || !s.ScannedAt.After(since) {
			return false
		}
		if sm.PatientTag != "" {
			return s.PatientTag == sm.PatientTag
		}
		return s.PatientID == sm.PatientID
	}), nil
}

func (m *memStore) LatestWristbandScan(_ context.Context, patientID string, since time.Time) (*models.ScanLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	canonical := qr.WristbandTag(patientID)
	return m.latest(func(s *models.ScanLog) bool {
		if !s.ScannedAt.After(since) {
			return false
		}
		return s.PatientTag == canonical ||
			(s.PatientID == patientID && s.TagType == string(qr.TypeWristband))
	}), nil
}

func (m *memStore) InsertInconsistency(_ context.Context, inc *models.LocationInconsistency) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.incErr != nil {
		return m.incErr
	}
	inc.ID = m.id()
	m.inconsistencies = append(m.inconsistencies, inc)
	return nil
}

func (m *memStore) FindPatientByExternalID(_ context.Context, patientID string) (*models.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[patientID]
	if !ok {
		return nil, store.ErrPatientNotFound
	}
	return p, nil
}

func (m *memStore) ResolvePositiveLabResults(_ context.Context, patientRecordID, note string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, r := range m.labs {
		if r.PatientID == patientRecordID && r.Result != nil && *r.Result == models.LabPositive {
			r.Result = models.Outcome(models.LabResolved)
			r.Notes += note
			n++
		}
	}
	return n, nil
}

func (m *memStore) addPatient(pid, recordID string) {
	m.patients[pid] = &models.Patient{BaseModel: models.BaseModel{ID: recordID}, PatientID: pid, Status: models.StatusAdmitted}
}

func (m *memStore) addLab(recordID string, outcome models.LabOutcome) *models.LabResult {
	r := &models.LabResult{PatientID: recordID, Result: models.Outcome(outcome)}
	m.labs = append(m.labs, r)
	return r
}

type countingIsolation struct {
	calls []string
}

func (c *countingIsolation) OnIsolationEntry(_ context.Context, patientID string) (int, error) {
	c.calls = append(c.calls, patientID)
	return 0, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	incs []*models.LocationInconsistency
}

func (r *recordingNotifier) OnInconsistency(_ context.Context, inc *models.LocationInconsistency) *models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.incs = append(r.incs, inc)
	return &models.Notification{PatientID: inc.PatientID}
}

func (r *recordingNotifier) seen() []*models.LocationInconsistency {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.LocationInconsistency(nil), r.incs...)
}

// blockingNotifier holds every notification until release is closed.
type blockingNotifier struct {
	release chan struct{}
	done    chan *models.LocationInconsistency
}

func newBlockingNotifier() *blockingNotifier {
	return &blockingNotifier{release: make(chan struct{}), done: make(chan *models.LocationInconsistency, 1)}
}

func (b *blockingNotifier) OnInconsistency(_ context.Context, inc *models.LocationInconsistency) *models.Notification {
	<-b.release
	b.done <- inc
	return &models.Notification{PatientID: inc.PatientID}
}

type recordingPublisher struct {
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.events = append(p.events, ev)
	return p.err
}
