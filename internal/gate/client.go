package gate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client provides typed access to the platform's provider SLA resource.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// NewClient constructs a Client pointing at the provided platform base URL.
func NewClient(base, token string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		return nil, errors.New("platform url is required")
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "https://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid platform base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		token:      strings.TrimSpace(token),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// APIError represents an error response from the platform.
type APIError struct {
	Status  int
	Message string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("platform request failed with status %d", e.Status)
	}
	return fmt.Sprintf("platform request failed (%d): %s", e.Status, e.Message)
}

// SLAResource mirrors the provider SLA resource wire shape.
type SLAResource struct {
	Definition   *Definition   `json:"definition"`
	Measurements []Measurement `json:"measurements"`
	Violations   []Violation   `json:"violations"`
}

// Definition is the configured SLA for the API.
type Definition struct {
	ID                 string   `json:"id"`
	APIID              string   `json:"api_id"`
	IsActive           bool     `json:"is_active"`
	MeasurementWindow  string   `json:"measurement_window"`
	UptimeTarget       *float64 `json:"uptime_target"`
	ErrorRateTarget    *float64 `json:"error_rate_target"`
	LatencyP50TargetMS *float64 `json:"latency_p50_target_ms"`
	LatencyP95TargetMS *float64 `json:"latency_p95_target_ms"`
}

// Measurement is one windowed evaluation result, newest first in the
// resource's list.
type Measurement struct {
	ID               string    `json:"id"`
	WindowStart      time.Time `json:"window_start"`
	WindowEnd        time.Time `json:"window_end"`
	TotalRequests    int64     `json:"total_requests"`
	FailedRequests   int64     `json:"failed_requests"`
	UptimePercentage float64   `json:"uptime_percentage"`
	ErrorRate        float64   `json:"error_rate"`
	LatencyP50MS     *float64  `json:"latency_p50_ms"`
	LatencyP95MS     *float64  `json:"latency_p95_ms"`
	WithinSLA        bool      `json:"is_within_sla"`
}

// Violation is one breached dimension record.
type Violation struct {
	ID            string  `json:"id"`
	ViolationType string  `json:"violation_type"`
	Severity      string  `json:"severity"`
	ActualValue   float64 `json:"actual_value"`
	TargetValue   float64 `json:"target_value"`
}

// FetchSLA retrieves the SLA resource for an API. A 404 is surfaced as an
// APIError with that status so callers can treat it as "no definition".
func (c *Client) FetchSLA(ctx context.Context, apiID string) (*SLAResource, error) {
	if c == nil {
		return nil, errors.New("client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	endpoint := fmt.Sprintf("%s/api/apis/%s/sla", c.baseURL, url.PathEscape(apiID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, APIError{Status: resp.StatusCode, Message: extractError(resp.Body)}
	}

	var resource SLAResource
	if err := json.NewDecoder(resp.Body).Decode(&resource); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &resource, nil
}

func extractError(body io.Reader) string {
	if body == nil {
		return ""
	}
	var payload struct {
		Error string `json:"error"`
	}
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return ""
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return strings.TrimSpace(string(data))
	}
	return strings.TrimSpace(payload.Error)
}
