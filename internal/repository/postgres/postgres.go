package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shoofai/apimarketplace-sub002/internal/domain"
	"github.com/Shoofai/apimarketplace-sub002/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.APIRepository            = (*Repository)(nil)
	_ repository.OrganizationRepository   = (*Repository)(nil)
	_ repository.SLADefinitionRepository  = (*Repository)(nil)
	_ repository.RequestLogRepository     = (*Repository)(nil)
	_ repository.SLAMeasurementRepository = (*Repository)(nil)
	_ repository.SLAViolationRepository   = (*Repository)(nil)
	_ repository.IncidentRepository       = (*Repository)(nil)
	_ repository.NotificationRepository   = (*Repository)(nil)
)

// GetAPIByID fetches an API listing.
func (r *Repository) GetAPIByID(ctx context.Context, apiID string) (*domain.API, error) {
	const query = `SELECT id, organization_id, name, slug, status, base_url, created_at
		FROM apis WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, apiID)
	var api domain.API
	if err := row.Scan(&api.ID, &api.OrganizationID, &api.Name, &api.Slug, &api.Status, &api.BaseURL, &api.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &api, nil
}

// GetOrganizationByID returns an organization by identifier.
func (r *Repository) GetOrganizationByID(ctx context.Context, organizationID string) (*domain.Organization, error) {
	const query = `SELECT id, name, slug, created_at FROM organizations WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, organizationID)
	var org domain.Organization
	if err := row.Scan(&org.ID, &org.Name, &org.Slug, &org.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &org, nil
}

// GetOwnerMember returns the owner-role member of an organization.
func (r *Repository) GetOwnerMember(ctx context.Context, organizationID string) (*domain.OrganizationMember, error) {
	const query = `SELECT organization_id, user_id, role, created_at
		FROM organization_members
		WHERE organization_id = $1 AND role = $2
		ORDER BY created_at ASC
		LIMIT 1`
	row := r.pool.QueryRow(ctx, query, organizationID, domain.RoleOwner)
	var member domain.OrganizationMember
	if err := row.Scan(&member.OrganizationID, &member.UserID, &member.Role, &member.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &member, nil
}

// ListActiveSLADefinitions returns every active SLA definition.
func (r *Repository) ListActiveSLADefinitions(ctx context.Context) ([]domain.SLADefinition, error) {
	const query = `SELECT id, api_id, is_active, measurement_window,
			uptime_target, error_rate_target, latency_p50_target_ms, latency_p95_target_ms,
			created_at, updated_at
		FROM sla_definitions
		WHERE is_active = TRUE
		ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	definitions := make([]domain.SLADefinition, 0)
	for rows.Next() {
		var def domain.SLADefinition
		if err := rows.Scan(&def.ID, &def.APIID, &def.IsActive, &def.MeasurementWindow,
			&def.UptimeTarget, &def.ErrorRateTarget, &def.LatencyP50TargetMS, &def.LatencyP95TargetMS,
			&def.CreatedAt, &def.UpdatedAt); err != nil {
			return nil, err
		}
		definitions = append(definitions, def)
	}
	return definitions, rows.Err()
}

// GetSLADefinitionByAPI returns the SLA definition for an API.
func (r *Repository) GetSLADefinitionByAPI(ctx context.Context, apiID string) (*domain.SLADefinition, error) {
	const query = `SELECT id, api_id, is_active, measurement_window,
			uptime_target, error_rate_target, latency_p50_target_ms, latency_p95_target_ms,
			created_at, updated_at
		FROM sla_definitions WHERE api_id = $1`
	row := r.pool.QueryRow(ctx, query, apiID)
	var def domain.SLADefinition
	if err := row.Scan(&def.ID, &def.APIID, &def.IsActive, &def.MeasurementWindow,
		&def.UptimeTarget, &def.ErrorRateTarget, &def.LatencyP50TargetMS, &def.LatencyP95TargetMS,
		&def.CreatedAt, &def.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &def, nil
}

// InsertRequestLogs appends a batch of API call log rows.
func (r *Repository) InsertRequestLogs(ctx context.Context, entries []domain.RequestLogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	const query = `INSERT INTO request_logs (api_id, method, path, status_code, latency_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	batch := &pgx.Batch{}
	for _, entry := range entries {
		batch.Queue(query, entry.APIID, entry.Method, entry.Path, entry.StatusCode, entry.LatencyMS, entry.CreatedAt)
	}
	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range entries {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// ListRequestLogs returns log rows for an API within [from, to), capped at limit.
func (r *Repository) ListRequestLogs(ctx context.Context, apiID string, from, to time.Time, limit int) ([]domain.RequestLogEntry, error) {
	if limit <= 0 {
		limit = 1000
	}
	const query = `SELECT id, api_id, method, path, status_code, latency_ms, created_at
		FROM request_logs
		WHERE api_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at ASC
		LIMIT $4`
	rows, err := r.pool.Query(ctx, query, apiID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.RequestLogEntry, 0)
	for rows.Next() {
		var entry domain.RequestLogEntry
		if err := rows.Scan(&entry.ID, &entry.APIID, &entry.Method, &entry.Path, &entry.StatusCode, &entry.LatencyMS, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// InsertSLAMeasurement writes one immutable measurement row.
func (r *Repository) InsertSLAMeasurement(ctx context.Context, measurement *domain.SLAMeasurement) error {
	const query = `INSERT INTO sla_measurements (
			id, api_id, sla_id, window_start, window_end,
			total_requests, failed_requests, uptime_percentage, error_rate,
			latency_p50_ms, latency_p95_ms, is_within_sla, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	_, err := r.pool.Exec(ctx, query,
		measurement.ID, measurement.APIID, measurement.SLAID,
		measurement.WindowStart, measurement.WindowEnd,
		measurement.TotalRequests, measurement.FailedRequests,
		measurement.UptimePercentage, measurement.ErrorRate,
		measurement.LatencyP50MS, measurement.LatencyP95MS,
		measurement.WithinSLA, measurement.CreatedAt)
	return err
}

// ListSLAMeasurements returns recent measurements for a definition, newest first.
func (r *Repository) ListSLAMeasurements(ctx context.Context, slaID string, limit int) ([]domain.SLAMeasurement, error) {
	if limit <= 0 {
		limit = 30
	}
	const query = `SELECT id, api_id, sla_id, window_start, window_end,
			total_requests, failed_requests, uptime_percentage, error_rate,
			latency_p50_ms, latency_p95_ms, is_within_sla, created_at
		FROM sla_measurements
		WHERE sla_id = $1
		ORDER BY window_end DESC
		LIMIT $2`
	rows, err := r.pool.Query(ctx, query, slaID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	measurements := make([]domain.SLAMeasurement, 0)
	for rows.Next() {
		var m domain.SLAMeasurement
		if err := rows.Scan(&m.ID, &m.APIID, &m.SLAID, &m.WindowStart, &m.WindowEnd,
			&m.TotalRequests, &m.FailedRequests, &m.UptimePercentage, &m.ErrorRate,
			&m.LatencyP50MS, &m.LatencyP95MS, &m.WithinSLA, &m.CreatedAt); err != nil {
			return nil, err
		}
		measurements = append(measurements, m)
	}
	return measurements, rows.Err()
}

// InsertSLAViolation writes one breach record.
func (r *Repository) InsertSLAViolation(ctx context.Context, violation *domain.SLAViolation) error {
	const query = `INSERT INTO sla_violations (
			id, api_id, sla_id, measurement_id, violation_type, severity,
			actual_value, target_value, acknowledged, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	_, err := r.pool.Exec(ctx, query,
		violation.ID, violation.APIID, violation.SLAID, violation.MeasurementID,
		string(violation.ViolationType), violation.Severity,
		violation.ActualValue, violation.TargetValue,
		violation.Acknowledged, violation.CreatedAt)
	return err
}

// ListSLAViolations returns recent violations for a definition, newest first.
func (r *Repository) ListSLAViolations(ctx context.Context, slaID string, limit int) ([]domain.SLAViolation, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `SELECT id, api_id, sla_id, measurement_id, violation_type, severity,
			actual_value, target_value, acknowledged, created_at
		FROM sla_violations
		WHERE sla_id = $1
		ORDER BY created_at DESC
		LIMIT $2`
	rows, err := r.pool.Query(ctx, query, slaID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	violations := make([]domain.SLAViolation, 0)
	for rows.Next() {
		var v domain.SLAViolation
		var violationType string
		if err := rows.Scan(&v.ID, &v.APIID, &v.SLAID, &v.MeasurementID, &violationType, &v.Severity,
			&v.ActualValue, &v.TargetValue, &v.Acknowledged, &v.CreatedAt); err != nil {
			return nil, err
		}
		v.ViolationType = domain.ViolationType(violationType)
		violations = append(violations, v)
	}
	return violations, rows.Err()
}

// ListIncidents returns incidents declared for an API since the given time,
// most recent first.
func (r *Repository) ListIncidents(ctx context.Context, apiID string, since time.Time, limit int) ([]domain.Incident, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `SELECT id, api_id, title, status, severity, started_at, resolved_at, created_at
		FROM incidents
		WHERE api_id = $1 AND started_at >= $2
		ORDER BY started_at DESC
		LIMIT $3`
	rows, err := r.pool.Query(ctx, query, apiID, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	incidents := make([]domain.Incident, 0)
	for rows.Next() {
		var incident domain.Incident
		if err := rows.Scan(&incident.ID, &incident.APIID, &incident.Title, &incident.Status,
			&incident.Severity, &incident.StartedAt, &incident.ResolvedAt, &incident.CreatedAt); err != nil {
			return nil, err
		}
		incidents = append(incidents, incident)
	}
	return incidents, rows.Err()
}

// InsertNotification stores one in-app notification.
func (r *Repository) InsertNotification(ctx context.Context, notification *domain.Notification) error {
	const query = `INSERT INTO notifications (
			id, user_id, organization_id, type, title, body, link, metadata, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err := r.pool.Exec(ctx, query,
		notification.ID, notification.UserID, notification.OrganizationID,
		notification.Type, notification.Title, notification.Body, notification.Link,
		notification.Metadata, notification.CreatedAt)
	return err
}
