package gate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
)

// Exit codes follow the pipeline contract: zero passes the build, one
// fails it. Infrastructure failures (network, non-404 HTTP errors) always
// exit one regardless of fail-on-breach.
const (
	ExitPass = 0
	ExitFail = 1
)

// Runner executes the gate end to end and emits pipeline outputs.
type Runner struct {
	Stdout  io.Writer
	Stderr  io.Writer
	Outputs *OutputWriter
}

// NewRunner wires a Runner to process stdout/stderr and the GITHUB_OUTPUT
// file when present.
func NewRunner() *Runner {
	return &Runner{
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Outputs: NewOutputWriter(os.Getenv("GITHUB_OUTPUT"), os.Stdout),
	}
}

// Run fetches the SLA resource, evaluates the verdict, writes outputs, and
// returns the process exit code.
func (r *Runner) Run(ctx context.Context, in Inputs, client *Client) int {
	fmt.Fprintln(r.Stdout, "::group::SLA Gate")
	defer fmt.Fprintln(r.Stdout, "::endgroup::")

	fmt.Fprintf(r.Stdout, "Checking SLA status for API %s against %s\n", in.APIID, in.PlatformURL)

	resource, err := client.FetchSLA(ctx, in.APIID)
	if err != nil {
		var apiErr APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			// No SLA resource is not a failure; the API simply has no
			// definition to gate on.
			resource = nil
		} else {
			fmt.Fprintf(r.Stderr, "::error::failed to fetch SLA resource: %v\n", err)
			return ExitFail
		}
	}

	result := Evaluate(resource, in)
	r.writeOutputs(result)

	switch result.Status {
	case StatusNoDefinition:
		fmt.Fprintln(r.Stdout, "No SLA definition configured; gate passes.")
		return ExitPass
	case StatusNoData:
		fmt.Fprintln(r.Stdout, "SLA definition present but no measurements yet; gate passes.")
		return ExitPass
	case StatusOK:
		fmt.Fprintf(r.Stdout, "Latest measurement is within SLA (uptime %s, p95 %s).\n",
			formatFloat(result.Uptime), formatFloat(result.LatencyP95))
		return ExitPass
	}

	fmt.Fprintf(r.Stdout, "SLA breached (uptime %s, p95 %s, %d recent violations).\n",
		formatFloat(result.Uptime), formatFloat(result.LatencyP95), result.ViolationsCount)
	if !in.FailOnBreach {
		fmt.Fprintln(r.Stdout, "::warning::SLA is breached but fail-on-breach is disabled; gate passes.")
		return ExitPass
	}
	fmt.Fprintln(r.Stderr, "::error::SLA is breached; failing the build.")
	return ExitFail
}

func (r *Runner) writeOutputs(result Result) {
	r.setOutput("sla-status", result.Status)
	r.setOutput("within-sla", strconv.FormatBool(result.WithinSLA))
	r.setOutput("uptime", formatFloat(result.Uptime))
	r.setOutput("latency-p95", formatFloat(result.LatencyP95))
	r.setOutput("violations-count", strconv.Itoa(result.ViolationsCount))
}

func (r *Runner) setOutput(key, value string) {
	if err := r.Outputs.Set(key, value); err != nil {
		fmt.Fprintf(r.Stderr, "::warning::failed to write output %s: %v\n", key, err)
	}
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
