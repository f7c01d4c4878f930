package sla

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Shoofai/apimarketplace-sub002/internal/domain"
	"github.com/Shoofai/apimarketplace-sub002/internal/repository"
)

type statusStore struct {
	stubStore
	incidents    []domain.Incident
	incidentsErr error
}

func (s *statusStore) ListIncidents(ctx context.Context, apiID string, since time.Time, limit int) ([]domain.Incident, error) {
	if s.incidentsErr != nil {
		return nil, s.incidentsErr
	}
	return s.incidents, nil
}

func newStatusStore() *statusStore {
	return &statusStore{
		stubStore: stubStore{
			apis: map[string]*domain.API{
				"api-1": {ID: "api-1", OrganizationID: "org-1", Name: "Weather API", Status: domain.APIStatusPublished},
			},
			logsByAPI: map[string][]domain.RequestLogEntry{},
		},
	}
}

func newTestStatusService(store *statusStore) *StatusService {
	svc := NewStatusService(store, store, store, testLogger(), 0)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestStatusUnknownAPIReturnsNotFound(t *testing.T) {
	store := newStatusStore()
	svc := newTestStatusService(store)

	if _, err := svc.Status(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for unknown api")
	}
}

func TestStatusUnpublishedAPIReturnsNotFound(t *testing.T) {
	store := newStatusStore()
	store.apis["api-1"].Status = domain.APIStatusDraft
	svc := newTestStatusService(store)

	_, err := svc.Status(context.Background(), "api-1")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for draft api, got %v", err)
	}
}

func TestStatusNoTrafficDefaults(t *testing.T) {
	store := newStatusStore()
	svc := newTestStatusService(store)

	report, err := svc.Status(context.Background(), "api-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Uptime7d != 99.9 {
		t.Fatalf("expected default 7d uptime 99.9, got %v", report.Uptime7d)
	}
	if report.Uptime30d != 99.9 {
		t.Fatalf("expected static 30d uptime 99.9, got %v", report.Uptime30d)
	}
	if report.AvgLatencyMS7d != nil {
		t.Fatalf("expected nil average latency without traffic, got %v", *report.AvgLatencyMS7d)
	}
	if report.Status != StatusOperational {
		t.Fatalf("expected operational status, got %q", report.Status)
	}
}

func TestStatusComputesUptimeAndMeanLatency(t *testing.T) {
	store := newStatusStore()
	store.logsByAPI["api-1"] = []domain.RequestLogEntry{
		logRow(200, 100),
		logRow(200, 200),
		logRow(500, 300),
		logRow(503, 400),
	}
	svc := newTestStatusService(store)

	report, err := svc.Status(context.Background(), "api-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Uptime7d != 50 {
		t.Fatalf("expected 7d uptime 50, got %v", report.Uptime7d)
	}
	if report.AvgLatencyMS7d == nil || *report.AvgLatencyMS7d != 250 {
		t.Fatalf("expected mean latency 250, got %v", report.AvgLatencyMS7d)
	}
}

func TestStatusDegradedOnOpenIncident(t *testing.T) {
	store := newStatusStore()
	store.incidents = []domain.Incident{
		{ID: "inc-1", APIID: "api-1", Status: domain.IncidentInvestigating},
	}
	svc := newTestStatusService(store)

	report, err := svc.Status(context.Background(), "api-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Status != StatusDegraded {
		t.Fatalf("expected degraded status, got %q", report.Status)
	}
	if len(report.Incidents) != 1 {
		t.Fatalf("expected incident in report, got %d", len(report.Incidents))
	}
}

func TestStatusResolvedIncidentStaysOperational(t *testing.T) {
	resolvedAt := time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)
	store := newStatusStore()
	store.incidents = []domain.Incident{
		{ID: "inc-1", APIID: "api-1", Status: domain.IncidentResolved, ResolvedAt: &resolvedAt},
	}
	svc := newTestStatusService(store)

	report, err := svc.Status(context.Background(), "api-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Status != StatusOperational {
		t.Fatalf("expected operational status with resolved incident, got %q", report.Status)
	}
}
