package gate

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestRunner(t *testing.T) (*Runner, *bytes.Buffer, string) {
	t.Helper()
	outputPath := filepath.Join(t.TempDir(), "github_output")
	var stdout bytes.Buffer
	runner := &Runner{
		Stdout:  &stdout,
		Stderr:  &stdout,
		Outputs: NewOutputWriter(outputPath, &stdout),
	}
	return runner, &stdout, outputPath
}

func serveJSON(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer tok" {
			t.Errorf("unexpected authorization header %q", auth)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func readOutputs(t *testing.T, path string) map[string]string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read outputs: %v", err)
	}
	outputs := map[string]string{}
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			t.Fatalf("malformed output line %q", line)
		}
		outputs[key] = value
	}
	return outputs
}

func TestRunMissingDefinitionPasses(t *testing.T) {
	server := serveJSON(t, http.StatusNotFound, `{"error":"sla definition not found"}`)
	client, err := NewClient(server.URL, "tok")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	runner, _, outputPath := newTestRunner(t)

	code := runner.Run(context.Background(), Inputs{APIID: "api-1", FailOnBreach: true}, client)
	if code != ExitPass {
		t.Fatalf("expected pass on missing definition, got exit %d", code)
	}
	outputs := readOutputs(t, outputPath)
	if outputs["sla-status"] != StatusNoDefinition {
		t.Fatalf("unexpected sla-status output %q", outputs["sla-status"])
	}
	if outputs["within-sla"] != "true" {
		t.Fatalf("unexpected within-sla output %q", outputs["within-sla"])
	}
}

func TestRunNoMeasurementsPasses(t *testing.T) {
	server := serveJSON(t, http.StatusOK, `{"definition":{"id":"sla-1","api_id":"api-1"},"measurements":[],"violations":[]}`)
	client, err := NewClient(server.URL, "tok")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	runner, _, outputPath := newTestRunner(t)

	code := runner.Run(context.Background(), Inputs{APIID: "api-1", FailOnBreach: true}, client)
	if code != ExitPass {
		t.Fatalf("expected pass without measurements, got exit %d", code)
	}
	if got := readOutputs(t, outputPath)["sla-status"]; got != StatusNoData {
		t.Fatalf("unexpected sla-status output %q", got)
	}
}

func TestRunBreachFailsBuild(t *testing.T) {
	body := `{
		"definition": {"id": "sla-1", "api_id": "api-1"},
		"measurements": [
			{"id": "m-1", "uptime_percentage": 97.5, "latency_p95_ms": 420, "is_within_sla": false}
		],
		"violations": [{"id": "v-1", "violation_type": "uptime", "severity": "critical"}]
	}`
	server := serveJSON(t, http.StatusOK, body)
	client, err := NewClient(server.URL, "tok")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	runner, stdout, outputPath := newTestRunner(t)

	code := runner.Run(context.Background(), Inputs{APIID: "api-1", FailOnBreach: true}, client)
	if code != ExitFail {
		t.Fatalf("expected failure, got exit %d", code)
	}
	if !strings.Contains(stdout.String(), "::error::SLA is breached") {
		t.Fatalf("expected error annotation, got:\n%s", stdout.String())
	}
	outputs := readOutputs(t, outputPath)
	if outputs["sla-status"] != StatusBreached || outputs["within-sla"] != "false" {
		t.Fatalf("unexpected outputs %v", outputs)
	}
	if outputs["uptime"] != "97.5" || outputs["violations-count"] != "1" {
		t.Fatalf("unexpected outputs %v", outputs)
	}
}

func TestRunBreachWithFailOnBreachDisabledWarnsAndPasses(t *testing.T) {
	body := `{
		"definition": {"id": "sla-1", "api_id": "api-1"},
		"measurements": [{"id": "m-1", "uptime_percentage": 90, "is_within_sla": false}],
		"violations": []
	}`
	server := serveJSON(t, http.StatusOK, body)
	client, err := NewClient(server.URL, "tok")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	runner, stdout, _ := newTestRunner(t)

	code := runner.Run(context.Background(), Inputs{APIID: "api-1", FailOnBreach: false}, client)
	if code != ExitPass {
		t.Fatalf("expected pass with fail-on-breach disabled, got exit %d", code)
	}
	if !strings.Contains(stdout.String(), "::warning::") {
		t.Fatalf("expected warning annotation, got:\n%s", stdout.String())
	}
}

func TestRunCustomUptimeThresholdFailsHealthyMeasurement(t *testing.T) {
	body := `{
		"definition": {"id": "sla-1", "api_id": "api-1"},
		"measurements": [{"id": "m-1", "uptime_percentage": 99.5, "is_within_sla": true}],
		"violations": []
	}`
	server := serveJSON(t, http.StatusOK, body)
	client, err := NewClient(server.URL, "tok")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	runner, _, _ := newTestRunner(t)

	in := Inputs{APIID: "api-1", FailOnBreach: true, MinUptime: fptr(99.99)}
	if code := runner.Run(context.Background(), in, client); code != ExitFail {
		t.Fatalf("expected min-uptime override to fail the build, got exit %d", code)
	}
}

func TestRunServerErrorAlwaysFails(t *testing.T) {
	server := serveJSON(t, http.StatusInternalServerError, `{"error":"boom"}`)
	client, err := NewClient(server.URL, "tok")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	runner, stdout, _ := newTestRunner(t)

	// Infrastructure failures fail the build even with fail-on-breach off.
	code := runner.Run(context.Background(), Inputs{APIID: "api-1", FailOnBreach: false}, client)
	if code != ExitFail {
		t.Fatalf("expected failure on server error, got exit %d", code)
	}
	if !strings.Contains(stdout.String(), "failed to fetch SLA resource") {
		t.Fatalf("expected fetch error annotation, got:\n%s", stdout.String())
	}
}

func TestNewClientNormalizesBaseURL(t *testing.T) {
	client, err := NewClient("api.kineticapi.com/", "tok")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.baseURL != "https://api.kineticapi.com" {
		t.Fatalf("unexpected base url %q", client.baseURL)
	}

	if _, err := NewClient("  ", "tok"); err == nil {
		t.Fatal("expected error for empty base url")
	}
}
