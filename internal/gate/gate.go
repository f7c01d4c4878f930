package gate

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Default platform endpoint when none is supplied.
const DefaultPlatformURL = "https://api.kineticapi.com"

// Gate statuses written to pipeline outputs.
const (
	StatusNoDefinition = "no-definition"
	StatusNoData       = "no-data"
	StatusOK           = "ok"
	StatusBreached     = "breached"
)

// Inputs configures one gate invocation.
type Inputs struct {
	APIID         string
	PlatformURL   string
	Token         string
	FailOnBreach  bool
	MinUptime     *float64
	MaxLatencyP95 *float64
}

// ParseInputs reads gate configuration from GitHub-Action-style INPUT_*
// variables via the supplied lookup. Missing required inputs are errors;
// fail-on-breach defaults to true unless the literal string "false".
func ParseInputs(lookup func(string) string) (Inputs, error) {
	in := Inputs{
		APIID:        strings.TrimSpace(lookup("INPUT_API_ID")),
		PlatformURL:  strings.TrimSpace(lookup("INPUT_PLATFORM_URL")),
		Token:        strings.TrimSpace(lookup("INPUT_API_TOKEN")),
		FailOnBreach: strings.TrimSpace(lookup("INPUT_FAIL_ON_BREACH")) != "false",
	}
	if in.PlatformURL == "" {
		in.PlatformURL = DefaultPlatformURL
	}
	if in.APIID == "" {
		return in, errors.New("api-id input is required")
	}
	if in.Token == "" {
		return in, errors.New("api-token input is required")
	}

	var err error
	if in.MinUptime, err = parseThreshold(lookup("INPUT_MIN_UPTIME"), "min-uptime"); err != nil {
		return in, err
	}
	if in.MaxLatencyP95, err = parseThreshold(lookup("INPUT_MAX_LATENCY_P95"), "max-latency-p95"); err != nil {
		return in, err
	}
	return in, nil
}

func parseThreshold(raw, name string) (*float64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q", name, trimmed)
	}
	return &value, nil
}

// Result is the gate verdict for one invocation.
type Result struct {
	Status          string
	WithinSLA       bool
	Uptime          *float64
	LatencyP95      *float64
	ViolationsCount int
}

// Evaluate decides the gate verdict from a fetched SLA resource. A missing
// definition or empty measurement history always passes. Custom thresholds
// only tighten the server-side verdict, never loosen it.
func Evaluate(resource *SLAResource, in Inputs) Result {
	if resource == nil || resource.Definition == nil {
		return Result{Status: StatusNoDefinition, WithinSLA: true}
	}
	if len(resource.Measurements) == 0 {
		return Result{Status: StatusNoData, WithinSLA: true}
	}

	latest := resource.Measurements[0]
	breached := !latest.WithinSLA
	if in.MinUptime != nil && latest.UptimePercentage < *in.MinUptime {
		breached = true
	}
	if in.MaxLatencyP95 != nil && latest.LatencyP95MS != nil && *latest.LatencyP95MS > *in.MaxLatencyP95 {
		breached = true
	}

	result := Result{
		Status:          StatusOK,
		WithinSLA:       !breached,
		Uptime:          &latest.UptimePercentage,
		LatencyP95:      latest.LatencyP95MS,
		ViolationsCount: len(resource.Violations),
	}
	if breached {
		result.Status = StatusBreached
	}
	return result
}
