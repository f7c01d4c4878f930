package domain

import "time"

// Membership roles within a provider organization.
const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

// Organization represents a provider account owning one or more APIs.
type Organization struct {
	ID        string
	Name      string
	Slug      string
	CreatedAt time.Time
}

// OrganizationMember links a user to an organization with a role.
type OrganizationMember struct {
	OrganizationID string
	UserID         string
	Role           string
	CreatedAt      time.Time
}
