package domain

import "time"

// Incident status values. Anything other than resolved with a nil
// ResolvedAt counts as an open incident on the status page.
const (
	IncidentInvestigating = "investigating"
	IncidentIdentified    = "identified"
	IncidentMonitoring    = "monitoring"
	IncidentResolved      = "resolved"
)

// Incident is a provider-declared service disruption. Incidents are managed
// outside the SLA machinery and feed only the public status page.
type Incident struct {
	ID         string
	APIID      string
	Title      string
	Status     string
	Severity   string
	StartedAt  time.Time
	ResolvedAt *time.Time
	CreatedAt  time.Time
}
