package repository

import (
	"context"
	"time"

	"github.com/Shoofai/apimarketplace-sub002/internal/domain"
)

// APIRepository reads marketplace API listings.
type APIRepository interface {
	GetAPIByID(ctx context.Context, apiID string) (*domain.API, error)
}

// OrganizationRepository reads provider organizations and memberships.
type OrganizationRepository interface {
	GetOrganizationByID(ctx context.Context, organizationID string) (*domain.Organization, error)
	GetOwnerMember(ctx context.Context, organizationID string) (*domain.OrganizationMember, error)
}

// SLADefinitionRepository reads per-API SLA configuration. Definitions are
// authored by the provider dashboard and read-only here.
type SLADefinitionRepository interface {
	ListActiveSLADefinitions(ctx context.Context) ([]domain.SLADefinition, error)
	GetSLADefinitionByAPI(ctx context.Context, apiID string) (*domain.SLADefinition, error)
}

// RequestLogRepository accesses the append-only API call log.
type RequestLogRepository interface {
	InsertRequestLogs(ctx context.Context, entries []domain.RequestLogEntry) error
	ListRequestLogs(ctx context.Context, apiID string, from, to time.Time, limit int) ([]domain.RequestLogEntry, error)
}

// SLAMeasurementRepository persists windowed SLA evaluation results.
type SLAMeasurementRepository interface {
	InsertSLAMeasurement(ctx context.Context, measurement *domain.SLAMeasurement) error
	ListSLAMeasurements(ctx context.Context, slaID string, limit int) ([]domain.SLAMeasurement, error)
}

// SLAViolationRepository persists per-dimension breach records.
type SLAViolationRepository interface {
	InsertSLAViolation(ctx context.Context, violation *domain.SLAViolation) error
	ListSLAViolations(ctx context.Context, slaID string, limit int) ([]domain.SLAViolation, error)
}

// IncidentRepository reads provider-declared incidents.
type IncidentRepository interface {
	ListIncidents(ctx context.Context, apiID string, since time.Time, limit int) ([]domain.Incident, error)
}

// NotificationRepository stores in-app notifications.
type NotificationRepository interface {
	InsertNotification(ctx context.Context, notification *domain.Notification) error
}
