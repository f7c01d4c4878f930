package httpx

import (
	"time"

	"github.com/Shoofai/apimarketplace-sub002/internal/domain"
	"github.com/Shoofai/apimarketplace-sub002/internal/service/sla"
)

// Wire representations of SLA entities. Field names are part of the public
// contract consumed by dashboards and the CI gate client.

type definitionDTO struct {
	ID                 string   `json:"id"`
	APIID              string   `json:"api_id"`
	IsActive           bool     `json:"is_active"`
	MeasurementWindow  string   `json:"measurement_window"`
	UptimeTarget       *float64 `json:"uptime_target"`
	ErrorRateTarget    *float64 `json:"error_rate_target"`
	LatencyP50TargetMS *float64 `json:"latency_p50_target_ms"`
	LatencyP95TargetMS *float64 `json:"latency_p95_target_ms"`
}

type measurementDTO struct {
	ID               string    `json:"id"`
	APIID            string    `json:"api_id"`
	SLAID            string    `json:"sla_id"`
	WindowStart      time.Time `json:"window_start"`
	WindowEnd        time.Time `json:"window_end"`
	TotalRequests    int64     `json:"total_requests"`
	FailedRequests   int64     `json:"failed_requests"`
	UptimePercentage float64   `json:"uptime_percentage"`
	ErrorRate        float64   `json:"error_rate"`
	LatencyP50MS     *float64  `json:"latency_p50_ms"`
	LatencyP95MS     *float64  `json:"latency_p95_ms"`
	WithinSLA        bool      `json:"is_within_sla"`
	CreatedAt        time.Time `json:"created_at"`
}

type violationDTO struct {
	ID            string    `json:"id"`
	APIID         string    `json:"api_id"`
	SLAID         string    `json:"sla_id"`
	MeasurementID *string   `json:"measurement_id"`
	ViolationType string    `json:"violation_type"`
	Severity      string    `json:"severity"`
	ActualValue   float64   `json:"actual_value"`
	TargetValue   float64   `json:"target_value"`
	Acknowledged  bool      `json:"acknowledged"`
	CreatedAt     time.Time `json:"created_at"`
}

type slaResourceResponse struct {
	Definition   definitionDTO    `json:"definition"`
	Measurements []measurementDTO `json:"measurements"`
	Violations   []violationDTO   `json:"violations"`
}

type incidentDTO struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Status     string     `json:"status"`
	Severity   string     `json:"severity"`
	StartedAt  time.Time  `json:"started_at"`
	ResolvedAt *time.Time `json:"resolved_at"`
}

type statusResponse struct {
	APIID          string        `json:"api_id"`
	Status         string        `json:"status"`
	Uptime7d       float64       `json:"uptime_7d"`
	Uptime30d      float64       `json:"uptime_30d"`
	AvgLatencyMS7d *float64      `json:"avg_latency_ms_7d"`
	Incidents      []incidentDTO `json:"incidents"`
}

func slaResourceResponseFrom(resource *sla.Resource) slaResourceResponse {
	response := slaResourceResponse{
		Definition:   definitionDTOFrom(resource.Definition),
		Measurements: make([]measurementDTO, 0, len(resource.Measurements)),
		Violations:   make([]violationDTO, 0, len(resource.Violations)),
	}
	for _, m := range resource.Measurements {
		response.Measurements = append(response.Measurements, measurementDTO{
			ID:               m.ID,
			APIID:            m.APIID,
			SLAID:            m.SLAID,
			WindowStart:      m.WindowStart,
			WindowEnd:        m.WindowEnd,
			TotalRequests:    m.TotalRequests,
			FailedRequests:   m.FailedRequests,
			UptimePercentage: m.UptimePercentage,
			ErrorRate:        m.ErrorRate,
			LatencyP50MS:     m.LatencyP50MS,
			LatencyP95MS:     m.LatencyP95MS,
			WithinSLA:        m.WithinSLA,
			CreatedAt:        m.CreatedAt,
		})
	}
	for _, v := range resource.Violations {
		response.Violations = append(response.Violations, violationDTO{
			ID:            v.ID,
			APIID:         v.APIID,
			SLAID:         v.SLAID,
			MeasurementID: v.MeasurementID,
			ViolationType: string(v.ViolationType),
			Severity:      v.Severity,
			ActualValue:   v.ActualValue,
			TargetValue:   v.TargetValue,
			Acknowledged:  v.Acknowledged,
			CreatedAt:     v.CreatedAt,
		})
	}
	return response
}

func definitionDTOFrom(def domain.SLADefinition) definitionDTO {
	return definitionDTO{
		ID:                 def.ID,
		APIID:              def.APIID,
		IsActive:           def.IsActive,
		MeasurementWindow:  def.MeasurementWindow,
		UptimeTarget:       def.UptimeTarget,
		ErrorRateTarget:    def.ErrorRateTarget,
		LatencyP50TargetMS: def.LatencyP50TargetMS,
		LatencyP95TargetMS: def.LatencyP95TargetMS,
	}
}

func statusResponseFrom(report *sla.StatusReport) statusResponse {
	response := statusResponse{
		APIID:          report.APIID,
		Status:         report.Status,
		Uptime7d:       report.Uptime7d,
		Uptime30d:      report.Uptime30d,
		AvgLatencyMS7d: report.AvgLatencyMS7d,
		Incidents:      make([]incidentDTO, 0, len(report.Incidents)),
	}
	for _, incident := range report.Incidents {
		response.Incidents = append(response.Incidents, incidentDTO{
			ID:         incident.ID,
			Title:      incident.Title,
			Status:     incident.Status,
			Severity:   incident.Severity,
			StartedAt:  incident.StartedAt,
			ResolvedAt: incident.ResolvedAt,
		})
	}
	return response
}
