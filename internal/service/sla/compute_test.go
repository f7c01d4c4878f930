package sla

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Shoofai/apimarketplace-sub002/internal/domain"
	"github.com/Shoofai/apimarketplace-sub002/internal/service/notify"
)

type stubStore struct {
	definitions []domain.SLADefinition
	listDefErr  error

	logsByAPI map[string][]domain.RequestLogEntry
	logsErr   map[string]error

	measurements   []*domain.SLAMeasurement
	measurementErr error

	violations   []*domain.SLAViolation
	violationErr error

	apis   map[string]*domain.API
	owners map[string]*domain.OrganizationMember
}

func (s *stubStore) ListActiveSLADefinitions(ctx context.Context) ([]domain.SLADefinition, error) {
	return s.definitions, s.listDefErr
}

func (s *stubStore) GetSLADefinitionByAPI(ctx context.Context, apiID string) (*domain.SLADefinition, error) {
	for i := range s.definitions {
		if s.definitions[i].APIID == apiID {
			return &s.definitions[i], nil
		}
	}
	return nil, errors.New("not found")
}

func (s *stubStore) InsertRequestLogs(ctx context.Context, entries []domain.RequestLogEntry) error {
	return nil
}

func (s *stubStore) ListRequestLogs(ctx context.Context, apiID string, from, to time.Time, limit int) ([]domain.RequestLogEntry, error) {
	if err := s.logsErr[apiID]; err != nil {
		return nil, err
	}
	return s.logsByAPI[apiID], nil
}

func (s *stubStore) InsertSLAMeasurement(ctx context.Context, measurement *domain.SLAMeasurement) error {
	if s.measurementErr != nil {
		return s.measurementErr
	}
	s.measurements = append(s.measurements, measurement)
	return nil
}

func (s *stubStore) ListSLAMeasurements(ctx context.Context, slaID string, limit int) ([]domain.SLAMeasurement, error) {
	var out []domain.SLAMeasurement
	for _, m := range s.measurements {
		if m.SLAID == slaID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *stubStore) InsertSLAViolation(ctx context.Context, violation *domain.SLAViolation) error {
	if s.violationErr != nil {
		return s.violationErr
	}
	s.violations = append(s.violations, violation)
	return nil
}

func (s *stubStore) ListSLAViolations(ctx context.Context, slaID string, limit int) ([]domain.SLAViolation, error) {
	var out []domain.SLAViolation
	for _, v := range s.violations {
		if v.SLAID == slaID {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (s *stubStore) GetAPIByID(ctx context.Context, apiID string) (*domain.API, error) {
	if api, ok := s.apis[apiID]; ok {
		return api, nil
	}
	return nil, errors.New("not found")
}

func (s *stubStore) GetOrganizationByID(ctx context.Context, organizationID string) (*domain.Organization, error) {
	return &domain.Organization{ID: organizationID}, nil
}

func (s *stubStore) GetOwnerMember(ctx context.Context, organizationID string) (*domain.OrganizationMember, error) {
	if owner, ok := s.owners[organizationID]; ok {
		return owner, nil
	}
	return nil, errors.New("not found")
}

type stubDispatcher struct {
	events []notify.Event
	err    error
}

func (d *stubDispatcher) Dispatch(ctx context.Context, event notify.Event) error {
	if d.err != nil {
		return d.err
	}
	d.events = append(d.events, event)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestJob(store *stubStore, dispatcher *stubDispatcher, at time.Time) *Job {
	job := NewJob(store, store, store, store, store, store, dispatcher, testLogger(), JobOptions{})
	job.now = func() time.Time { return at }
	return job
}

func TestRunWritesMeasurementWithSharedWindow(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &stubStore{
		definitions: []domain.SLADefinition{
			{ID: "sla-1", APIID: "api-1", IsActive: true, MeasurementWindow: domain.Window1h, UptimeTarget: floatPtr(99.0)},
		},
		logsByAPI: map[string][]domain.RequestLogEntry{
			"api-1": {logRow(200, 10), logRow(200, 20)},
		},
	}
	job := newTestJob(store, &stubDispatcher{}, at)

	summary, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Processed != 1 || summary.Violations != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if !summary.RanAt.Equal(at) {
		t.Fatalf("expected ran_at %v, got %v", at, summary.RanAt)
	}
	if len(store.measurements) != 1 {
		t.Fatalf("expected one measurement, got %d", len(store.measurements))
	}
	m := store.measurements[0]
	if !m.WindowEnd.Equal(at) || !m.WindowStart.Equal(at.Add(-time.Hour)) {
		t.Fatalf("unexpected window [%v, %v]", m.WindowStart, m.WindowEnd)
	}
	if !m.WithinSLA {
		t.Fatal("expected measurement within SLA")
	}
}

func TestRunIsolatesDefinitionFailures(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &stubStore{
		definitions: []domain.SLADefinition{
			{ID: "sla-1", APIID: "api-broken", IsActive: true, MeasurementWindow: domain.Window1h},
			{ID: "sla-2", APIID: "api-2", IsActive: true, MeasurementWindow: domain.Window1h},
		},
		logsErr:   map[string]error{"api-broken": errors.New("connection reset")},
		logsByAPI: map[string][]domain.RequestLogEntry{"api-2": {logRow(200, 5)}},
	}
	job := newTestJob(store, &stubDispatcher{}, at)

	summary, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("a per-definition failure must not abort the run: %v", err)
	}
	if summary.Processed != 2 {
		t.Fatalf("expected both definitions counted as processed, got %d", summary.Processed)
	}
	if len(store.measurements) != 1 || store.measurements[0].SLAID != "sla-2" {
		t.Fatalf("expected only the healthy definition to persist, got %+v", store.measurements)
	}
}

func TestRunListDefinitionsFailureAborts(t *testing.T) {
	store := &stubStore{listDefErr: errors.New("db down")}
	job := newTestJob(store, &stubDispatcher{}, time.Now())

	if _, err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error when listing definitions fails")
	}
}

func TestRunWritesViolationsLinkedToMeasurement(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &stubStore{
		definitions: []domain.SLADefinition{
			{ID: "sla-1", APIID: "api-1", IsActive: true, MeasurementWindow: domain.Window1h, UptimeTarget: floatPtr(99.9), LatencyP95TargetMS: floatPtr(50)},
		},
		logsByAPI: map[string][]domain.RequestLogEntry{
			"api-1": {logRow(500, 100), logRow(200, 100)},
		},
		apis:   map[string]*domain.API{"api-1": {ID: "api-1", OrganizationID: "org-1", Name: "Weather API"}},
		owners: map[string]*domain.OrganizationMember{"org-1": {OrganizationID: "org-1", UserID: "user-1", Role: domain.RoleOwner}},
	}
	job := newTestJob(store, &stubDispatcher{}, at)

	summary, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Violations != 2 {
		t.Fatalf("expected 2 violations written, got %d", summary.Violations)
	}
	if len(store.measurements) != 1 {
		t.Fatalf("expected one measurement, got %d", len(store.measurements))
	}
	measurementID := store.measurements[0].ID
	for _, v := range store.violations {
		if v.MeasurementID == nil || *v.MeasurementID != measurementID {
			t.Fatalf("expected violation linked to measurement %s, got %+v", measurementID, v)
		}
	}
}

func TestRunMeasurementFailureStillWritesViolations(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &stubStore{
		definitions: []domain.SLADefinition{
			{ID: "sla-1", APIID: "api-1", IsActive: true, MeasurementWindow: domain.Window1h, UptimeTarget: floatPtr(99.9)},
		},
		logsByAPI: map[string][]domain.RequestLogEntry{
			"api-1": {logRow(500, 100)},
		},
		measurementErr: errors.New("disk full"),
		apis:           map[string]*domain.API{"api-1": {ID: "api-1", OrganizationID: "org-1", Name: "Weather API"}},
		owners:         map[string]*domain.OrganizationMember{"org-1": {OrganizationID: "org-1", UserID: "user-1", Role: domain.RoleOwner}},
	}
	job := newTestJob(store, &stubDispatcher{}, at)

	summary, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Violations != 1 {
		t.Fatalf("expected violation written despite measurement failure, got %d", summary.Violations)
	}
	if store.violations[0].MeasurementID != nil {
		t.Fatalf("expected orphaned violation, got measurement id %v", *store.violations[0].MeasurementID)
	}
}

func TestRunSendsOneNotificationPerBreachedAPI(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &stubStore{
		definitions: []domain.SLADefinition{
			{ID: "sla-1", APIID: "api-1", IsActive: true, MeasurementWindow: domain.Window1h, UptimeTarget: floatPtr(99.9), ErrorRateTarget: floatPtr(0.01)},
		},
		logsByAPI: map[string][]domain.RequestLogEntry{
			"api-1": {logRow(500, 10), logRow(500, 10), logRow(200, 10)},
		},
		apis:   map[string]*domain.API{"api-1": {ID: "api-1", OrganizationID: "org-1", Name: "Weather API"}},
		owners: map[string]*domain.OrganizationMember{"org-1": {OrganizationID: "org-1", UserID: "user-1", Role: domain.RoleOwner}},
	}
	dispatcher := &stubDispatcher{}
	job := newTestJob(store, dispatcher, at)

	if _, err := job.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dispatcher.events) != 1 {
		t.Fatalf("expected exactly one notification, got %d", len(dispatcher.events))
	}
	event := dispatcher.events[0]
	if event.Type != notify.EventSLAViolation {
		t.Fatalf("unexpected event type %q", event.Type)
	}
	if event.UserID != "user-1" || event.OrganizationID != "org-1" {
		t.Fatalf("notification routed to wrong recipient: %+v", event)
	}
	if event.Title != "SLA Violation Detected" {
		t.Fatalf("unexpected title %q", event.Title)
	}
	if event.Link != "/dashboard/provider/apis/api-1" {
		t.Fatalf("unexpected link %q", event.Link)
	}
	breaches, ok := event.Metadata["breaches"].([]string)
	if !ok || len(breaches) != 2 {
		t.Fatalf("expected both breach types in metadata, got %v", event.Metadata["breaches"])
	}
}

func TestRunNoNotificationWhenWithinSLA(t *testing.T) {
	store := &stubStore{
		definitions: []domain.SLADefinition{
			{ID: "sla-1", APIID: "api-1", IsActive: true, MeasurementWindow: domain.Window1h, UptimeTarget: floatPtr(50)},
		},
		logsByAPI: map[string][]domain.RequestLogEntry{"api-1": {logRow(200, 10)}},
	}
	dispatcher := &stubDispatcher{}
	job := newTestJob(store, dispatcher, time.Now())

	if _, err := job.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dispatcher.events) != 0 {
		t.Fatalf("expected no notifications, got %d", len(dispatcher.events))
	}
}

func TestWindowMinutes(t *testing.T) {
	cases := map[string]int{
		domain.Window1h:  60,
		domain.Window6h:  360,
		domain.Window24h: 1440,
		"90m":            60,
		"":               60,
	}
	for window, want := range cases {
		if got := windowMinutes(window); got != want {
			t.Fatalf("windowMinutes(%q) = %d, want %d", window, got, want)
		}
	}
}
