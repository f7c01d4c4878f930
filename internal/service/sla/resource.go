package sla

import (
	"context"

	"github.com/Shoofai/apimarketplace-sub002/internal/domain"
	"github.com/Shoofai/apimarketplace-sub002/internal/repository"
)

const (
	resourceMeasurementLimit = 30
	resourceViolationLimit   = 50
)

// Resource is the provider-facing SLA view: the definition plus its recent
// measurement and violation history. Consumed by dashboards and the CI gate.
type Resource struct {
	Definition   domain.SLADefinition
	Measurements []domain.SLAMeasurement
	Violations   []domain.SLAViolation
}

// ResourceService reads the provider SLA resource for one API.
type ResourceService struct {
	definitions  repository.SLADefinitionRepository
	measurements repository.SLAMeasurementRepository
	violations   repository.SLAViolationRepository
}

// NewResourceService constructs a ResourceService.
func NewResourceService(definitions repository.SLADefinitionRepository, measurements repository.SLAMeasurementRepository, violations repository.SLAViolationRepository) *ResourceService {
	return &ResourceService{
		definitions:  definitions,
		measurements: measurements,
		violations:   violations,
	}
}

// Resource loads the SLA resource for an API. Returns
// repository.ErrNotFound when no definition exists.
func (s *ResourceService) Resource(ctx context.Context, apiID string) (*Resource, error) {
	def, err := s.definitions.GetSLADefinitionByAPI(ctx, apiID)
	if err != nil {
		return nil, err
	}
	measurements, err := s.measurements.ListSLAMeasurements(ctx, def.ID, resourceMeasurementLimit)
	if err != nil {
		return nil, err
	}
	violations, err := s.violations.ListSLAViolations(ctx, def.ID, resourceViolationLimit)
	if err != nil {
		return nil, err
	}
	return &Resource{
		Definition:   *def,
		Measurements: measurements,
		Violations:   violations,
	}, nil
}
