package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wardtrack-server/internal/events"
	"wardtrack-server/internal/models"
	"wardtrack-server/internal/qr"
	"wardtrack-server/internal/scan"
	"wardtrack-server/internal/store"
	"wardtrack-server/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func doJSON(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			_ = json.NewEncoder(&buf).Encode(body)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data interface{}) utils.ResponseData {
	t.Helper()
	resp := utils.ResponseData{Data: data}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// Scans

type fakeProcessor struct {
	got []scan.ScanEvent
	res scan.Result
	err error
}

func (f *fakeProcessor) Process(_ context.Context, ev scan.ScanEvent) (scan.Result, error) {
	f.got = append(f.got, ev)
	return f.res, f.err
}

type fakeScanLister struct {
	ward  string
	limit int
	rows  []models.ScanLog
}

func (f *fakeScanLister) ListScanLogs(_ context.Context, ward string, limit int) ([]models.ScanLog, error) {
	f.ward, f.limit = ward, limit
	return f.rows, nil
}

func scanRouter(p *fakeProcessor, l *fakeScanLister) *gin.Engine {
	h := NewScanHandler(p, l, zap.NewNop())
	r := gin.New()
	r.POST("/scans", h.RecordScan)
	r.GET("/scans", h.ListScans)
	r.GET("/scans/export", h.ExportScans)
	return r
}

func TestRecordScan_Authoritative(t *testing.T) {
	p := &fakeProcessor{res: scan.Result{
		Entry:         &models.ScanLog{PatientTag: "P100", Ward: "ward_b", Authoritative: true},
		Authoritative: true,
		Inconsistency: &models.LocationInconsistency{FirstWard: "ward_a", SecondWard: "ward_b", TimeDifferenceMinutes: 2},
	}}
	w := doJSON(scanRouter(p, &fakeScanLister{}), http.MethodPost, "/scans",
		map[string]string{"rawTag": "P100", "ward": "ward_b", "scannedBy": "nurse", "tagType": "other"})

	require.Equal(t, http.StatusCreated, w.Code)
	var body ScanResponse
	resp := decode(t, w, &body)
	assert.Equal(t, "Scan recorded successfully", resp.Message)
	assert.True(t, body.Authoritative)
	require.NotNil(t, body.Inconsistency)
	assert.Equal(t, 2.0, body.Inconsistency.TimeDifferenceMinutes)

	require.Len(t, p.got, 1)
	assert.Equal(t, qr.TypeOther, p.got[0].TagType)
	assert.Equal(t, "nurse", p.got[0].ScannedBy)
}

func TestRecordScan_AdvisoryIsDistinctFromFailure(t *testing.T) {
	advisory := &fakeProcessor{res: scan.Result{
		Entry:    &models.ScanLog{PatientTag: "P100", Ward: "ward_b"},
		Advisory: "a wristband scan in ward_a may override this location",
	}}
	w := doJSON(scanRouter(advisory, &fakeScanLister{}), http.MethodPost, "/scans",
		map[string]string{"rawTag": "P100", "ward": "ward_b"})
	require.Equal(t, http.StatusCreated, w.Code)
	var body ScanResponse
	resp := decode(t, w, &body)
	assert.Equal(t, "Scan recorded as advisory", resp.Message)
	assert.False(t, body.Authoritative)
	assert.NotEmpty(t, body.Advisory)

	failed := &fakeProcessor{err: store.ErrWrite}
	w = doJSON(scanRouter(failed, &fakeScanLister{}), http.MethodPost, "/scans",
		map[string]string{"rawTag": "P100", "ward": "ward_b"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, decode(t, w, nil).Error, "retry")
}

func TestRecordScan_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		body   interface{}
		status int
	}{
		{"cooldown", scan.ErrCooldown, map[string]string{"rawTag": "P1", "ward": "a"}, http.StatusTooManyRequests},
		{"missing ward", nil, map[string]string{"rawTag": "P1"}, http.StatusBadRequest},
		{"unknown tag type", nil, map[string]string{"rawTag": "P1", "ward": "a", "tagType": "badge"}, http.StatusBadRequest},
		{"malformed json", nil, "{", http.StatusBadRequest},
		{"tag too long", nil, map[string]string{"rawTag": strings.Repeat("x", scan.MaxTagLength+1), "ward": "a"}, http.StatusBadRequest},
		{"ward too long", nil, map[string]string{"rawTag": "P1", "ward": strings.Repeat("w", scan.MaxWardLength+1)}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := &fakeProcessor{err: tc.err}
			w := doJSON(scanRouter(p, &fakeScanLister{}), http.MethodPost, "/scans", tc.body)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestListScans_Limit(t *testing.T) {
	l := &fakeScanLister{rows: []models.ScanLog{{Ward: "ward_a"}}}
	r := scanRouter(&fakeProcessor{}, l)

	w := doJSON(r, http.MethodGet, "/scans?ward=ward_a", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ward_a", l.ward)
	assert.Equal(t, defaultScanLimit, l.limit)

	doJSON(r, http.MethodGet, "/scans?limit=5000", nil)
	assert.Equal(t, maxScanLimit, l.limit)

	w = doJSON(r, http.MethodGet, "/scans?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportScans(t *testing.T) {
	l := &fakeScanLister{rows: []models.ScanLog{{Ward: "ward_a", ScannedAt: time.Now()}}}
	w := doJSON(scanRouter(&fakeProcessor{}, l), http.MethodGet, "/scans/export", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "spreadsheetml")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "scan_logs_")
	assert.NotEmpty(t, w.Body.Bytes())
}

// Patients

type fakePatientStore struct {
	patients map[string]*models.Patient
	labs     []models.PatientLabResult
	inserted []*models.Patient
}

func newFakePatientStore() *fakePatientStore {
	return &fakePatientStore{patients: map[string]*models.Patient{}}
}

func (f *fakePatientStore) InsertPatient(_ context.Context, p *models.Patient) error {
	p.ID = "rec-" + p.PatientID
	f.patients[p.PatientID] = p
	f.inserted = append(f.inserted, p)
	return nil
}

func (f *fakePatientStore) FindPatientByExternalID(_ context.Context, id string) (*models.Patient, error) {
	p, ok := f.patients[id]
	if !ok {
		return nil, store.ErrPatientNotFound
	}
	return p, nil
}

func (f *fakePatientStore) DischargePatient(ctx context.Context, id string, at time.Time) (*models.Patient, *models.Patient, error) {
	p, err := f.FindPatientByExternalID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	before := *p
	p.DischargeDate = &at
	p.Status = models.StatusDischarged
	after := *p
	return &before, &after, nil
}

func (f *fakePatientStore) ListPatientLabResults(context.Context, string) ([]models.PatientLabResult, error) {
	return f.labs, nil
}

type capturePublisher struct {
	events []events.Event
}

func (c *capturePublisher) Publish(_ context.Context, ev events.Event) error {
	c.events = append(c.events, ev)
	return nil
}

func patientRouter(s *fakePatientStore, pub *capturePublisher) *gin.Engine {
	h := NewPatientHandler(s, pub, zap.NewNop())
	r := gin.New()
	r.POST("/patients", h.RegisterPatient)
	r.GET("/patients/:patientId", h.GetPatient)
	r.POST("/patients/:patientId/discharge", h.DischargePatient)
	r.GET("/patients/:patientId/wristband", h.GetWristband)
	r.GET("/patients/:patientId/lab-results", h.GetLabResults)
	return r
}

func TestRegisterPatient(t *testing.T) {
	s := newFakePatientStore()
	r := patientRouter(s, &capturePublisher{})

	w := doJSON(r, http.MethodPost, "/patients",
		map[string]string{"patientId": "P100", "fullName": "Ada", "registrationDate": "2025-01-01T00:00:00Z"})
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, s.inserted, 1)
	assert.Equal(t, models.StatusAdmitted, s.inserted[0].Status)
	assert.True(t, s.inserted[0].RegistrationDate.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))

	w = doJSON(r, http.MethodPost, "/patients", map[string]string{"patientId": "P100", "fullName": "Ada"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(r, http.MethodPost, "/patients", map[string]string{"fullName": "Nobody"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/patients", map[string]string{"patientId": strings.Repeat("p", 513), "fullName": "Long"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, s.inserted, 1)
}

func TestDischargePatient_PublishesUpdate(t *testing.T) {
	s := newFakePatientStore()
	s.patients["P100"] = &models.Patient{PatientID: "P100", RegistrationDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), Status: models.StatusAdmitted}
	pub := &capturePublisher{}
	r := patientRouter(s, pub)

	w := doJSON(r, http.MethodPost, "/patients/P100/discharge", map[string]string{"dischargeDate": "2025-01-01T00:04:00Z"})
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, pub.events, 1)
	ev := pub.events[0]
	assert.Equal(t, events.TypeUpdate, ev.Type)
	assert.Equal(t, events.TablePatients, ev.Table)

	var before, after models.Patient
	require.NoError(t, json.Unmarshal(ev.OldRecord, &before))
	require.NoError(t, json.Unmarshal(ev.Record, &after))
	assert.Nil(t, before.DischargeDate)
	require.NotNil(t, after.DischargeDate)
	assert.Equal(t, models.StatusDischarged, after.Status)

	w = doJSON(r, http.MethodPost, "/patients/P404/discharge", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetWristband(t *testing.T) {
	s := newFakePatientStore()
	s.patients["P100"] = &models.Patient{PatientID: "P100"}
	r := patientRouter(s, &capturePublisher{})

	w := doJSON(r, http.MethodGet, "/patients/P100/wristband", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body WristbandResponse
	decode(t, w, &body)
	assert.Equal(t, `{"patientId":"P100","type":"wristband"}`, body.Tag)
	assert.Equal(t, qr.TypeWristband, qr.Classify(body.Tag))

	w = doJSON(r, http.MethodGet, "/patients/P404/wristband", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetLabResults(t *testing.T) {
	s := newFakePatientStore()
	s.patients["P100"] = &models.Patient{PatientID: "P100"}
	s.labs = []models.PatientLabResult{{PatientID: "P100", TestName: "MRSA", Result: models.Outcome(models.LabResolved)}}

	w := doJSON(patientRouter(s, &capturePublisher{}), http.MethodGet, "/patients/P100/lab-results", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rows []models.PatientLabResult
	decode(t, w, &rows)
	require.Len(t, rows, 1)
	assert.Equal(t, "MRSA", rows[0].TestName)
}

// Lab results

type labCapture struct {
	*fakePatientStore
	results []*models.LabResult
}

func (l *labCapture) InsertLabResult(_ context.Context, r *models.LabResult) error {
	l.results = append(l.results, r)
	return nil
}

func TestCreateLabResult(t *testing.T) {
	s := &labCapture{fakePatientStore: newFakePatientStore()}
	s.patients["P100"] = &models.Patient{BaseModel: models.BaseModel{ID: "rec-1"}, PatientID: "P100"}
	h := NewLabResultHandler(s, zap.NewNop())
	r := gin.New()
	r.POST("/lab-results", h.CreateLabResult)

	w := doJSON(r, http.MethodPost, "/lab-results", map[string]string{"patientId": "P100", "testName": "MRSA", "result": "positive"})
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, s.results, 1)
	assert.Equal(t, "rec-1", s.results[0].PatientID, "lab results reference the stored record id")
	assert.Equal(t, models.LabPositive, *s.results[0].Result)

	w = doJSON(r, http.MethodPost, "/lab-results", map[string]string{"patientId": "P100", "testName": "MRSA"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Nil(t, s.results[1].Result, "pending")

	w = doJSON(r, http.MethodPost, "/lab-results", map[string]string{"patientId": "P100", "testName": "MRSA", "result": "maybe"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/lab-results", map[string]string{"patientId": "P404", "testName": "MRSA"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// Inconsistencies and notifications

type fakeReviewStore struct {
	cleared *bool
	incs    []models.LocationInconsistency
	notes   []models.Notification
	known   map[string]bool
}

func (f *fakeReviewStore) ListInconsistencies(_ context.Context, cleared *bool) ([]models.LocationInconsistency, error) {
	f.cleared = cleared
	return f.incs, nil
}

func (f *fakeReviewStore) ClearInconsistency(_ context.Context, id, by, notes string, at time.Time) (*models.LocationInconsistency, error) {
	if !f.known[id] {
		return nil, store.ErrNotFound
	}
	return &models.LocationInconsistency{BaseModel: models.BaseModel{ID: id}, Cleared: true, ClearedBy: by, ClearedAt: &at, Notes: notes}, nil
}

func (f *fakeReviewStore) ListNotifications(_ context.Context, cleared *bool) ([]models.Notification, error) {
	f.cleared = cleared
	return f.notes, nil
}

func (f *fakeReviewStore) ClearNotification(_ context.Context, id string, _ time.Time) error {
	if !f.known[id] {
		return store.ErrNotFound
	}
	return nil
}

func TestInconsistencyHandler(t *testing.T) {
	s := &fakeReviewStore{known: map[string]bool{"inc-1": true}, incs: []models.LocationInconsistency{{PatientID: "P100"}}}
	h := NewInconsistencyHandler(s, zap.NewNop())
	r := gin.New()
	r.GET("/inconsistencies", h.ListInconsistencies)
	r.PATCH("/inconsistencies/:id/clear", h.ClearInconsistency)
	r.GET("/inconsistencies/export", h.ExportInconsistencies)

	w := doJSON(r, http.MethodGet, "/inconsistencies?cleared=false", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, s.cleared)
	assert.False(t, *s.cleared)

	doJSON(r, http.MethodGet, "/inconsistencies", nil)
	assert.Nil(t, s.cleared)

	w = doJSON(r, http.MethodGet, "/inconsistencies?cleared=sometimes", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPatch, "/inconsistencies/inc-1/clear", map[string]string{"clearedBy": "dr kim", "notes": "badge swap"})
	require.Equal(t, http.StatusOK, w.Code)
	var inc models.LocationInconsistency
	decode(t, w, &inc)
	assert.True(t, inc.Cleared)
	assert.Equal(t, "dr kim", inc.ClearedBy)

	w = doJSON(r, http.MethodPatch, "/inconsistencies/inc-9/clear", map[string]string{"clearedBy": "dr kim"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(r, http.MethodPatch, "/inconsistencies/inc-1/clear", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodGet, "/inconsistencies/export", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "location_inconsistencies_")
}

func TestNotificationHandler(t *testing.T) {
	s := &fakeReviewStore{known: map[string]bool{"n-1": true}, notes: []models.Notification{{PatientID: "P100"}}}
	h := NewNotificationHandler(s, zap.NewNop())
	r := gin.New()
	r.GET("/notifications", h.ListNotifications)
	r.PATCH("/notifications/:id/clear", h.ClearNotification)

	w := doJSON(r, http.MethodGet, "/notifications?cleared=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, *s.cleared)

	assert.Equal(t, http.StatusOK, doJSON(r, http.MethodPatch, "/notifications/n-1/clear", nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(r, http.MethodPatch, "/notifications/n-2/clear", nil).Code)
}

// Webhooks

type captureHandler struct {
	events []events.Event
	err    error
}

func (c *captureHandler) Handle(_ context.Context, ev events.Event) error {
	c.events = append(c.events, ev)
	return c.err
}

func TestWebhooks(t *testing.T) {
	ch := &captureHandler{}
	h := NewWebhookHandler(ch, zap.NewNop())
	r := gin.New()
	r.POST("/webhooks/patient-updated", h.PatientUpdated)
	r.POST("/webhooks/scan-inserted", h.ScanInserted)

	payload := `{"type":"INSERT","table":"ward_scan_logs","schema":"public","record":{"patientTag":"P100","ward":"ward_a"}}`
	w := doJSON(r, http.MethodPost, "/webhooks/scan-inserted", payload)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())
	require.Len(t, ch.events, 1)
	assert.JSONEq(t, `{"patientTag":"P100","ward":"ward_a"}`, string(ch.events[0].Record))

	w = doJSON(r, http.MethodPost, "/webhooks/patient-updated", payload)
	assert.Equal(t, http.StatusBadRequest, w.Code, "table must match the endpoint")

	w = doJSON(r, http.MethodPost, "/webhooks/patient-updated", "not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, ch.events, 1)
}
