package httpx

import (
	"bufio"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Shoofai/apimarketplace-sub002/internal/domain"
	"github.com/Shoofai/apimarketplace-sub002/internal/repository"
	"github.com/Shoofai/apimarketplace-sub002/internal/service/sla"
	"github.com/Shoofai/apimarketplace-sub002/internal/ws"
)

// ComputeRunner executes one SLA compute pass.
type ComputeRunner interface {
	Run(ctx context.Context) (sla.Summary, error)
}

// StatusProvider serves the public status summary for an API.
type StatusProvider interface {
	Status(ctx context.Context, apiID string) (*sla.StatusReport, error)
}

// ResourceProvider serves the provider-facing SLA resource.
type ResourceProvider interface {
	Resource(ctx context.Context, apiID string) (*sla.Resource, error)
}

// Router wires HTTP endpoints to services.
type Router struct {
	mux          *http.ServeMux
	logger       *slog.Logger
	compute      ComputeRunner
	status       StatusProvider
	resource     ResourceProvider
	requestLogs  repository.RequestLogRepository
	hub          *ws.Hub
	upgrader     websocket.Upgrader
	limiter      RateLimiter
	jwtSecret    string
	cronSecret   string
	gatewayToken string
	dbHealth     func(context.Context) error

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	rateLimitHits      *prometheus.CounterVec
}

const (
	rateWindowDefault  = time.Minute
	rateWindowRealtime = 30 * time.Second
	rateLimitStatus    = 60
	rateLimitProvider  = 120
	rateLimitIngest    = 600
	rateLimitWebsocket = 30
	healthCheckTimeout = 2 * time.Second
	ingestMaxBatchSize = 1000
)

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, compute ComputeRunner, status StatusProvider, resource ResourceProvider, requestLogs repository.RequestLogRepository, hub *ws.Hub, limiter RateLimiter, jwtSecret, cronSecret, gatewayToken string, dbHealth func(context.Context) error) *Router {
	r := &Router{
		mux:         http.NewServeMux(),
		logger:      logger,
		compute:     compute,
		status:      status,
		resource:    resource,
		requestLogs: requestLogs,
		hub:         hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		limiter:      limiter,
		jwtSecret:    jwtSecret,
		cronSecret:   strings.TrimSpace(cronSecret),
		gatewayToken: strings.TrimSpace(gatewayToken),
		dbHealth:     dbHealth,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.audit("/healthz", r.handleHealthz))
	r.mux.Handle("/metrics", promhttp.Handler())
	r.mux.HandleFunc("/api/cron/compute-sla", r.audit("/api/cron/compute-sla", r.handleComputeSLA))
	r.mux.HandleFunc("/api/apis/", r.audit("/api/apis/{id}", r.handleAPISubroutes))
	r.mux.HandleFunc("/api/ingest/requests", r.audit("/api/ingest/requests", r.handleIngestRequests))
	r.mux.HandleFunc("/ws/notifications", r.audit("/ws/notifications", r.handlerAuthRate("/ws/notifications", rateLimitWebsocket, rateWindowRealtime, r.handleNotificationsWS)))
}

// handleComputeSLA triggers one SLA compute run. Only trusted schedulers
// holding the shared secret may invoke it.
func (r *Router) handleComputeSLA(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet && req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	if !r.verifyCronSecret(w, req) {
		return
	}
	summary, err := r.compute.Run(req.Context())
	if err != nil {
		r.logger.Error("sla compute run failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (r *Router) handleAPISubroutes(w http.ResponseWriter, req *http.Request) {
	trimmed := strings.TrimPrefix(req.URL.Path, "/api/apis/")
	parts := strings.Split(trimmed, "/")
	if len(parts) != 2 || parts[0] == "" {
		r.notFound(w)
		return
	}
	apiID := parts[0]
	switch parts[1] {
	case "status":
		r.withRateLimit("/api/apis/{id}/status", rateLimitStatus, rateWindowDefault, rateLimitKeyIP, func(w http.ResponseWriter, req *http.Request) {
			r.handleAPIStatus(w, req, apiID)
		})(w, req)
	case "sla":
		r.handlerAuthRate("/api/apis/{id}/sla", rateLimitProvider, rateWindowDefault, func(w http.ResponseWriter, req *http.Request) {
			r.handleAPISLA(w, req, apiID)
		})(w, req)
	default:
		r.notFound(w)
	}
}

// handleAPIStatus serves the public status page summary. No auth; the
// service itself rejects unpublished APIs as not found.
func (r *Router) handleAPIStatus(w http.ResponseWriter, req *http.Request, apiID string) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	report, err := r.status.Status(req.Context(), apiID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			r.notFound(w)
			return
		}
		r.logger.Error("status lookup failed", "api_id", apiID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute status")
		return
	}
	writeJSON(w, http.StatusOK, statusResponseFrom(report))
}

// handleAPISLA serves the authenticated provider SLA resource.
func (r *Router) handleAPISLA(w http.ResponseWriter, req *http.Request, apiID string) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	if _, ok := authInfoFromContext(req.Context()); !ok {
		r.logger.Error("auth context missing for sla resource", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	resource, err := r.resource.Resource(req.Context(), apiID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			r.notFound(w)
			return
		}
		r.logger.Error("sla resource lookup failed", "api_id", apiID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load sla resource")
		return
	}
	writeJSON(w, http.StatusOK, slaResourceResponseFrom(resource))
}

// handleIngestRequests accepts batched request log rows from the API
// gateway, guarded by a shared token.
func (r *Router) handleIngestRequests(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	if !r.verifyGatewayToken(w, req) {
		return
	}
	decision := r.limiter.Allow("gateway:ingest", rateLimitIngest, rateWindowDefault)
	r.applyRateHeaders(w, rateLimitIngest, decision)
	if !decision.allowed {
		r.recordRateLimitHit("/api/ingest/requests", "gateway")
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var payload struct {
		Entries []struct {
			APIID      string   `json:"api_id"`
			Method     string   `json:"method"`
			Path       string   `json:"path"`
			StatusCode *int     `json:"status_code"`
			LatencyMS  *float64 `json:"latency_ms"`
			Timestamp  string   `json:"timestamp"`
		} `json:"entries"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(payload.Entries) == 0 {
		writeError(w, http.StatusBadRequest, "entries are required")
		return
	}
	if len(payload.Entries) > ingestMaxBatchSize {
		writeError(w, http.StatusBadRequest, "batch too large")
		return
	}

	now := time.Now().UTC()
	entries := make([]domain.RequestLogEntry, 0, len(payload.Entries))
	for _, entry := range payload.Entries {
		apiID := strings.TrimSpace(entry.APIID)
		if apiID == "" {
			writeError(w, http.StatusBadRequest, "api_id is required on every entry")
			return
		}
		createdAt := now
		if entry.Timestamp != "" {
			parsed, err := time.Parse(time.RFC3339Nano, entry.Timestamp)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid timestamp format")
				return
			}
			createdAt = parsed.UTC()
		}
		entries = append(entries, domain.RequestLogEntry{
			APIID:      apiID,
			Method:     strings.TrimSpace(entry.Method),
			Path:       entry.Path,
			StatusCode: entry.StatusCode,
			LatencyMS:  entry.LatencyMS,
			CreatedAt:  createdAt,
		})
	}
	if err := r.requestLogs.InsertRequestLogs(req.Context(), entries); err != nil {
		r.logger.Error("request log ingest failed", "count", len(entries), "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store request logs")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "accepted", "count": len(entries)})
}

// handleNotificationsWS subscribes a dashboard socket to its organization's
// notification stream.
func (r *Router) handleNotificationsWS(w http.ResponseWriter, req *http.Request) {
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for notifications websocket", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	organizationID := req.URL.Query().Get("organization_id")
	if organizationID == "" {
		organizationID = info.OrganizationID
	}
	if organizationID == "" {
		writeError(w, http.StatusBadRequest, "organization_id query parameter required")
		return
	}
	if info.OrganizationID != "" && info.OrganizationID != organizationID {
		writeError(w, http.StatusForbidden, "organization mismatch")
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn, r.logger)
	r.hub.Register(organizationID, client)
	go func() {
		defer func() {
			r.hub.Unregister(organizationID, client)
			client.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		r.recordRequestMetrics(req.Method, route, status, duration)

		actor := "anonymous"
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if info, ok := authInfoFromContext(ctx); ok {
			actor = "user"
			fields = append(fields, "user_id", info.UserID)
			if info.OrganizationID != "" {
				fields = append(fields, "organization_id", info.OrganizationID)
			}
		} else if strings.HasPrefix(req.URL.Path, "/api/cron/") {
			actor = "scheduler"
		} else if strings.HasPrefix(req.URL.Path, "/api/ingest/") {
			actor = "gateway"
		}
		fields = append(fields, "actor", actor)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}

func (r *Router) applyRateHeaders(w http.ResponseWriter, limit int, decision rateDecision) {
	if limit <= 0 {
		return
	}
	remaining := limit - decision.count
	if remaining < 0 {
		remaining = 0
	}
	headers := w.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if !decision.windowEnd.IsZero() {
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.windowEnd.Unix(), 10))
	}
}

// verifyCronSecret ensures compute triggers carry the scheduler secret,
// either as a bearer token or in X-Cron-Secret.
func (r *Router) verifyCronSecret(w http.ResponseWriter, req *http.Request) bool {
	expected := r.cronSecret
	if expected == "" {
		r.logger.Error("cron secret not configured", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "scheduler authentication misconfigured")
		return false
	}
	candidate := ""
	if token, err := bearerToken(req.Header.Get("Authorization")); err == nil {
		candidate = token
	}
	if candidate == "" {
		candidate = strings.TrimSpace(req.Header.Get("X-Cron-Secret"))
	}
	if len(candidate) != len(expected) || subtle.ConstantTimeCompare([]byte(candidate), []byte(expected)) != 1 {
		r.logger.Warn("cron secret mismatch", "path", req.URL.Path)
		writeError(w, http.StatusUnauthorized, "invalid scheduler credentials")
		return false
	}
	return true
}

// verifyGatewayToken ensures ingest calls include the configured token.
func (r *Router) verifyGatewayToken(w http.ResponseWriter, req *http.Request) bool {
	expected := r.gatewayToken
	if expected == "" {
		r.logger.Error("gateway ingest token not configured", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "gateway authentication misconfigured")
		return false
	}
	token := strings.TrimSpace(req.Header.Get("X-Gateway-Token"))
	if len(token) != len(expected) || subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
		r.logger.Warn("gateway token mismatch", "path", req.URL.Path)
		writeError(w, http.StatusUnauthorized, "invalid gateway token")
		return false
	}
	return true
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}
