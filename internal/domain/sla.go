package domain

import "time"

// Measurement windows accepted on an SLA definition. Unrecognized values
// fall back to one hour.
const (
	Window1h  = "1h"
	Window6h  = "6h"
	Window24h = "24h"
)

// ViolationType identifies the SLA dimension that was breached.
type ViolationType string

// The closed set of breach dimensions.
const (
	ViolationUptime     ViolationType = "uptime"
	ViolationErrorRate  ViolationType = "error_rate"
	ViolationLatencyP50 ViolationType = "latency_p50"
	ViolationLatencyP95 ViolationType = "latency_p95"
)

// Violation severities.
const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// SLADefinition configures target thresholds for a single API. Nil targets
// mean "no requirement" for that dimension.
type SLADefinition struct {
	ID                 string
	APIID              string
	IsActive           bool
	MeasurementWindow  string
	UptimeTarget       *float64
	ErrorRateTarget    *float64
	LatencyP50TargetMS *float64
	LatencyP95TargetMS *float64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// RequestLogEntry is one row of the append-only API call log.
type RequestLogEntry struct {
	ID         int64
	APIID      string
	Method     string
	Path       string
	StatusCode *int
	LatencyMS  *float64
	CreatedAt  time.Time
}

// SLAMeasurement is the immutable result of evaluating one definition over
// one window. Written exactly once per job run and never updated.
type SLAMeasurement struct {
	ID               string
	APIID            string
	SLAID            string
	WindowStart      time.Time
	WindowEnd        time.Time
	TotalRequests    int64
	FailedRequests   int64
	UptimePercentage float64
	ErrorRate        float64
	LatencyP50MS     *float64
	LatencyP95MS     *float64
	WithinSLA        bool
	CreatedAt        time.Time
}

// SLAViolation records a single breached dimension of a measurement.
// MeasurementID is nil when the parent measurement failed to persist.
type SLAViolation struct {
	ID            string
	APIID         string
	SLAID         string
	MeasurementID *string
	ViolationType ViolationType
	Severity      string
	ActualValue   float64
	TargetValue   float64
	Acknowledged  bool
	CreatedAt     time.Time
}
