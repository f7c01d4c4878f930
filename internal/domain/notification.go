package domain

import "time"

// Notification is a persisted in-app message for a user.
type Notification struct {
	ID             string
	UserID         string
	OrganizationID string
	Type           string
	Title          string
	Body           string
	Link           string
	Metadata       []byte
	ReadAt         *time.Time
	CreatedAt      time.Time
}
