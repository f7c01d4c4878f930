package gate

import "testing"

func fptr(v float64) *float64 { return &v }

func lookupFrom(env map[string]string) func(string) string {
	return func(key string) string { return env[key] }
}

func TestParseInputsDefaults(t *testing.T) {
	in, err := ParseInputs(lookupFrom(map[string]string{
		"INPUT_API_ID":    "api-1",
		"INPUT_API_TOKEN": "tok",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.PlatformURL != DefaultPlatformURL {
		t.Fatalf("expected default platform url, got %q", in.PlatformURL)
	}
	if !in.FailOnBreach {
		t.Fatal("expected fail-on-breach to default to true")
	}
	if in.MinUptime != nil || in.MaxLatencyP95 != nil {
		t.Fatal("expected no custom thresholds by default")
	}
}

func TestParseInputsFailOnBreachOnlyLiteralFalseDisables(t *testing.T) {
	cases := map[string]bool{
		"false": false,
		"FALSE": true,
		"no":    true,
		"0":     true,
		"":      true,
		"true":  true,
	}
	for raw, want := range cases {
		in, err := ParseInputs(lookupFrom(map[string]string{
			"INPUT_API_ID":         "api-1",
			"INPUT_API_TOKEN":      "tok",
			"INPUT_FAIL_ON_BREACH": raw,
		}))
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", raw, err)
		}
		if in.FailOnBreach != want {
			t.Fatalf("fail-on-breach %q: got %v, want %v", raw, in.FailOnBreach, want)
		}
	}
}

func TestParseInputsRequiredFields(t *testing.T) {
	if _, err := ParseInputs(lookupFrom(map[string]string{"INPUT_API_TOKEN": "tok"})); err == nil {
		t.Fatal("expected error without api-id")
	}
	if _, err := ParseInputs(lookupFrom(map[string]string{"INPUT_API_ID": "api-1"})); err == nil {
		t.Fatal("expected error without api-token")
	}
}

func TestParseInputsThresholds(t *testing.T) {
	in, err := ParseInputs(lookupFrom(map[string]string{
		"INPUT_API_ID":          "api-1",
		"INPUT_API_TOKEN":       "tok",
		"INPUT_MIN_UPTIME":      "99.95",
		"INPUT_MAX_LATENCY_P95": "250",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.MinUptime == nil || *in.MinUptime != 99.95 {
		t.Fatalf("unexpected min-uptime %v", in.MinUptime)
	}
	if in.MaxLatencyP95 == nil || *in.MaxLatencyP95 != 250 {
		t.Fatalf("unexpected max-latency-p95 %v", in.MaxLatencyP95)
	}

	if _, err := ParseInputs(lookupFrom(map[string]string{
		"INPUT_API_ID":     "api-1",
		"INPUT_API_TOKEN":  "tok",
		"INPUT_MIN_UPTIME": "lots",
	})); err == nil {
		t.Fatal("expected error for unparseable threshold")
	}
}

func TestEvaluateNoDefinitionPasses(t *testing.T) {
	result := Evaluate(nil, Inputs{FailOnBreach: true})
	if result.Status != StatusNoDefinition || !result.WithinSLA {
		t.Fatalf("unexpected result %+v", result)
	}

	result = Evaluate(&SLAResource{}, Inputs{FailOnBreach: true})
	if result.Status != StatusNoDefinition || !result.WithinSLA {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestEvaluateNoMeasurementsPasses(t *testing.T) {
	resource := &SLAResource{Definition: &Definition{ID: "sla-1"}}
	result := Evaluate(resource, Inputs{FailOnBreach: true})
	if result.Status != StatusNoData || !result.WithinSLA {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestEvaluateUsesLatestMeasurement(t *testing.T) {
	resource := &SLAResource{
		Definition: &Definition{ID: "sla-1"},
		Measurements: []Measurement{
			{ID: "m-newest", WithinSLA: true, UptimePercentage: 99.99, LatencyP95MS: fptr(120)},
			{ID: "m-older", WithinSLA: false, UptimePercentage: 80},
		},
		Violations: []Violation{{ID: "v-1"}, {ID: "v-2"}},
	}
	result := Evaluate(resource, Inputs{})
	if result.Status != StatusOK || !result.WithinSLA {
		t.Fatalf("expected latest measurement to decide, got %+v", result)
	}
	if result.ViolationsCount != 2 {
		t.Fatalf("expected violations count 2, got %d", result.ViolationsCount)
	}
}

func TestEvaluateCustomThresholdsOnlyTighten(t *testing.T) {
	resource := &SLAResource{
		Definition: &Definition{ID: "sla-1"},
		Measurements: []Measurement{
			{WithinSLA: true, UptimePercentage: 99.5, LatencyP95MS: fptr(200)},
		},
	}

	// Server says fine, but the caller demands more uptime.
	result := Evaluate(resource, Inputs{MinUptime: fptr(99.99)})
	if result.Status != StatusBreached || result.WithinSLA {
		t.Fatalf("expected min-uptime override to breach, got %+v", result)
	}

	// A looser threshold cannot rescue a server-side breach.
	resource.Measurements[0].WithinSLA = false
	result = Evaluate(resource, Inputs{MinUptime: fptr(1)})
	if result.Status != StatusBreached {
		t.Fatalf("expected server breach to stand, got %+v", result)
	}
}

func TestEvaluateMaxLatencyThreshold(t *testing.T) {
	resource := &SLAResource{
		Definition: &Definition{ID: "sla-1"},
		Measurements: []Measurement{
			{WithinSLA: true, UptimePercentage: 100, LatencyP95MS: fptr(300)},
		},
	}
	result := Evaluate(resource, Inputs{MaxLatencyP95: fptr(250)})
	if result.Status != StatusBreached {
		t.Fatalf("expected p95 override to breach, got %+v", result)
	}

	// No observed p95 means the latency threshold cannot trip.
	resource.Measurements[0].LatencyP95MS = nil
	result = Evaluate(resource, Inputs{MaxLatencyP95: fptr(250)})
	if result.Status != StatusOK {
		t.Fatalf("expected pass without observed latency, got %+v", result)
	}
}
