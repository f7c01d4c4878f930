package domain

import "time"

// API lifecycle states.
const (
	APIStatusDraft     = "draft"
	APIStatusPublished = "published"
	APIStatusSuspended = "suspended"
)

// API describes a listed API product on the marketplace.
type API struct {
	ID             string
	OrganizationID string
	Name           string
	Slug           string
	Status         string
	BaseURL        string
	CreatedAt      time.Time
}
