package sla

import (
	"context"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/Shoofai/apimarketplace-sub002/internal/domain"
	"github.com/Shoofai/apimarketplace-sub002/internal/repository"
	"github.com/Shoofai/apimarketplace-sub002/internal/service/notify"
)

const (
	defaultFetchLimit  = 50000
	defaultEvalTimeout = 30 * time.Second
)

// Dispatcher forwards a notification event to its consumers.
type Dispatcher interface {
	Dispatch(ctx context.Context, event notify.Event) error
}

// Summary reports the outcome of one compute run.
type Summary struct {
	Processed  int       `json:"processed"`
	Violations int       `json:"violations"`
	RanAt      time.Time `json:"ran_at"`
}

// Job evaluates every active SLA definition against its trailing request
// log window, persisting measurements and violations and notifying the
// owning provider on breach.
type Job struct {
	definitions  repository.SLADefinitionRepository
	logs         repository.RequestLogRepository
	measurements repository.SLAMeasurementRepository
	violations   repository.SLAViolationRepository
	apis         repository.APIRepository
	orgs         repository.OrganizationRepository
	dispatcher   Dispatcher
	logger       *slog.Logger

	fetchLimit  int
	evalTimeout time.Duration
	interval    time.Duration
	now         func() time.Time
	metrics     *jobMetrics
}

// JobOptions tunes job behaviour. Zero values select defaults; Interval
// zero disables the internal scheduler loop.
type JobOptions struct {
	FetchLimit  int
	EvalTimeout time.Duration
	Interval    time.Duration
}

// NewJob constructs a compute job.
func NewJob(
	definitions repository.SLADefinitionRepository,
	logs repository.RequestLogRepository,
	measurements repository.SLAMeasurementRepository,
	violations repository.SLAViolationRepository,
	apis repository.APIRepository,
	orgs repository.OrganizationRepository,
	dispatcher Dispatcher,
	logger *slog.Logger,
	opts JobOptions,
) *Job {
	fetchLimit := opts.FetchLimit
	if fetchLimit <= 0 {
		fetchLimit = defaultFetchLimit
	}
	evalTimeout := opts.EvalTimeout
	if evalTimeout <= 0 {
		evalTimeout = defaultEvalTimeout
	}
	if logger != nil {
		logger = logger.With("component", "sla_compute")
	}
	return &Job{
		definitions:  definitions,
		logs:         logs,
		measurements: measurements,
		violations:   violations,
		apis:         apis,
		orgs:         orgs,
		dispatcher:   dispatcher,
		logger:       logger,
		fetchLimit:   fetchLimit,
		evalTimeout:  evalTimeout,
		interval:     opts.Interval,
		now:          time.Now,
		metrics:      newJobMetrics(),
	}
}

// Run executes one complete compute pass. A single timestamp is captured up
// front and shared by every definition so all measurements in the run close
// on the same window end. Per-definition failures are logged and skipped;
// only a failure to list definitions aborts the run.
func (j *Job) Run(ctx context.Context) (Summary, error) {
	started := time.Now()
	now := j.now().UTC()

	definitions, err := j.definitions.ListActiveSLADefinitions(ctx)
	if err != nil {
		j.metrics.observeRun(false, time.Since(started))
		return Summary{}, fmt.Errorf("list active sla definitions: %w", err)
	}

	summary := Summary{RanAt: now}
	for _, def := range definitions {
		summary.Processed++
		written, err := j.processDefinition(ctx, def, now)
		if err != nil {
			j.logger.Error("sla evaluation failed", "sla_id", def.ID, "api_id", def.APIID, "error", err)
			continue
		}
		summary.Violations += written
	}

	j.metrics.observeRun(true, time.Since(started))
	j.metrics.addProcessed(summary.Processed, summary.Violations)
	j.logger.Info("sla compute run finished",
		"processed", summary.Processed,
		"violations", summary.Violations,
		"duration_ms", time.Since(started).Milliseconds())
	return summary, nil
}

// processDefinition evaluates a single definition and returns the number of
// violation rows written.
func (j *Job) processDefinition(parent context.Context, def domain.SLADefinition, now time.Time) (int, error) {
	ctx, cancel := context.WithTimeout(parent, j.evalTimeout)
	defer cancel()

	windowEnd := now
	windowStart := now.Add(-time.Duration(windowMinutes(def.MeasurementWindow)) * time.Minute)

	rows, err := j.logs.ListRequestLogs(ctx, def.APIID, windowStart, windowEnd, j.fetchLimit)
	if err != nil {
		return 0, fmt.Errorf("fetch request logs: %w", err)
	}

	stats := Aggregate(rows)
	withinSLA, breaches := Classify(def, stats)

	measurement := &domain.SLAMeasurement{
		ID:               uuid.NewString(),
		APIID:            def.APIID,
		SLAID:            def.ID,
		WindowStart:      windowStart,
		WindowEnd:        windowEnd,
		TotalRequests:    stats.TotalRequests,
		FailedRequests:   stats.FailedRequests,
		UptimePercentage: stats.UptimePercentage,
		ErrorRate:        stats.ErrorRate,
		LatencyP50MS:     stats.LatencyP50MS,
		LatencyP95MS:     stats.LatencyP95MS,
		WithinSLA:        withinSLA,
		CreatedAt:        now,
	}
	var measurementID *string
	if err := j.measurements.InsertSLAMeasurement(ctx, measurement); err != nil {
		// Violations still get written, just without a parent reference.
		j.logger.Warn("failed to persist sla measurement", "sla_id", def.ID, "error", err)
	} else {
		measurementID = &measurement.ID
	}

	if withinSLA {
		return 0, nil
	}

	written := 0
	for _, breach := range breaches {
		violation := &domain.SLAViolation{
			ID:            uuid.NewString(),
			APIID:         def.APIID,
			SLAID:         def.ID,
			MeasurementID: measurementID,
			ViolationType: breach.Type,
			Severity:      breach.Severity,
			ActualValue:   breach.Actual,
			TargetValue:   breach.Target,
			CreatedAt:     now,
		}
		if err := j.violations.InsertSLAViolation(ctx, violation); err != nil {
			j.logger.Warn("failed to persist sla violation", "sla_id", def.ID, "type", breach.Type, "error", err)
			continue
		}
		written++
	}

	j.notifyBreaches(ctx, def, breaches)
	return written, nil
}

// notifyBreaches sends one event summarizing all breached dimensions to the
// owner of the API's organization. Best effort: lookup or dispatch failures
// are logged and do not fail the definition.
func (j *Job) notifyBreaches(ctx context.Context, def domain.SLADefinition, breaches []Breach) {
	if j.dispatcher == nil || len(breaches) == 0 {
		return
	}
	api, err := j.apis.GetAPIByID(ctx, def.APIID)
	if err != nil {
		j.logger.Warn("failed to load api for sla notification", "api_id", def.APIID, "error", err)
		return
	}
	owner, err := j.orgs.GetOwnerMember(ctx, api.OrganizationID)
	if err != nil {
		j.logger.Warn("failed to resolve organization owner", "organization_id", api.OrganizationID, "error", err)
		return
	}

	types := make([]string, 0, len(breaches))
	for _, breach := range breaches {
		types = append(types, string(breach.Type))
	}
	event := notify.Event{
		Type:           notify.EventSLAViolation,
		UserID:         owner.UserID,
		OrganizationID: api.OrganizationID,
		Title:          "SLA Violation Detected",
		Body:           fmt.Sprintf("%s breached its SLA on: %s", api.Name, strings.Join(types, ", ")),
		Link:           "/dashboard/provider/apis/" + def.APIID,
		Metadata: map[string]any{
			"api_id":   def.APIID,
			"sla_id":   def.ID,
			"breaches": types,
		},
	}
	if err := j.dispatcher.Dispatch(ctx, event); err != nil {
		j.logger.Warn("failed to dispatch sla violation notification", "api_id", def.APIID, "error", err)
	}
}

// RunLoop invokes Run on a fixed interval until the context is cancelled.
// The HTTP cron trigger remains usable alongside; no lock prevents the two
// from overlapping, so double-fired runs can double-write measurements.
func (j *Job) RunLoop(ctx context.Context) {
	if j == nil || j.interval <= 0 {
		return
	}
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info("sla compute scheduler started", "interval", j.interval)
	for {
		select {
		case <-ctx.Done():
			j.logger.Info("sla compute scheduler stopped")
			return
		case <-ticker.C:
			if _, err := j.Run(ctx); err != nil {
				j.logger.Error("scheduled sla compute run failed", "error", err)
			}
		}
	}
}

// windowMinutes resolves a measurement window token to minutes, defaulting
// to one hour for anything unrecognized.
func windowMinutes(window string) int {
	switch window {
	case domain.Window6h:
		return 360
	case domain.Window24h:
		return 1440
	default:
		return 60
	}
}
