package sla

import (
	"context"
	"fmt"
	"time"

	"log/slog"

	"github.com/Shoofai/apimarketplace-sub002/internal/domain"
	"github.com/Shoofai/apimarketplace-sub002/internal/repository"
)

const (
	statusWindow       = 7 * 24 * time.Hour
	incidentLookback   = 30 * 24 * time.Hour
	incidentFetchLimit = 20

	// An empty 7-day window reports 99.9, not the compute job's 100: the
	// public status page deliberately defaults optimistic-but-not-perfect.
	statusDefaultUptime = 99.9

	// The 30-day figure is a static placeholder; only the 7-day uptime is
	// derived from the request log on this surface.
	staticUptime30d = 99.9
)

// API health states reported by the status page. Driven by open incidents,
// independent of the SLA measurement machinery.
const (
	StatusOperational = "operational"
	StatusDegraded    = "degraded"
)

// StatusReport is the public health summary for a single published API.
type StatusReport struct {
	APIID          string
	Status         string
	Uptime7d       float64
	Uptime30d      float64
	AvgLatencyMS7d *float64
	Incidents      []domain.Incident
}

// StatusService serves the on-demand public status summary.
type StatusService struct {
	apis       repository.APIRepository
	logs       repository.RequestLogRepository
	incidents  repository.IncidentRepository
	logger     *slog.Logger
	fetchLimit int
	now        func() time.Time
}

// NewStatusService constructs a StatusService.
func NewStatusService(apis repository.APIRepository, logs repository.RequestLogRepository, incidents repository.IncidentRepository, logger *slog.Logger, fetchLimit int) *StatusService {
	if fetchLimit <= 0 {
		fetchLimit = defaultFetchLimit
	}
	if logger != nil {
		logger = logger.With("component", "sla_status")
	}
	return &StatusService{
		apis:       apis,
		logs:       logs,
		incidents:  incidents,
		logger:     logger,
		fetchLimit: fetchLimit,
		now:        time.Now,
	}
}

// Status builds the health summary for one API. Returns
// repository.ErrNotFound when the API is missing or not published.
func (s *StatusService) Status(ctx context.Context, apiID string) (*StatusReport, error) {
	api, err := s.apis.GetAPIByID(ctx, apiID)
	if err != nil {
		return nil, err
	}
	if api.Status != domain.APIStatusPublished {
		return nil, repository.ErrNotFound
	}

	now := s.now().UTC()
	rows, err := s.logs.ListRequestLogs(ctx, apiID, now.Add(-statusWindow), now, s.fetchLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch request logs: %w", err)
	}

	report := &StatusReport{
		APIID:     apiID,
		Status:    StatusOperational,
		Uptime7d:  statusDefaultUptime,
		Uptime30d: staticUptime30d,
	}
	if len(rows) > 0 {
		var failed, latencyCount int64
		var latencySum float64
		for _, row := range rows {
			if row.StatusCode != nil && *row.StatusCode >= 500 {
				failed++
			}
			if row.LatencyMS != nil {
				latencyCount++
				latencySum += *row.LatencyMS
			}
		}
		total := int64(len(rows))
		report.Uptime7d = round2(float64(total-failed) / float64(total) * 100)
		if latencyCount > 0 {
			avg := round2(latencySum / float64(latencyCount))
			report.AvgLatencyMS7d = &avg
		}
	}

	incidents, err := s.incidents.ListIncidents(ctx, apiID, now.Add(-incidentLookback), incidentFetchLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch incidents: %w", err)
	}
	report.Incidents = incidents
	for _, incident := range incidents {
		if incident.Status != domain.IncidentResolved && incident.ResolvedAt == nil {
			report.Status = StatusDegraded
			break
		}
	}
	return report, nil
}
