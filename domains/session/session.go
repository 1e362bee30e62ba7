package session

import (
	"context"
	"time"
)

type Status string

const (
	StatusQueued Status = "QUEUED"
	StatusActive Status = "ACTIVE"
	StatusPaused Status = "PAUSED"
	StatusClosed Status = "CLOSED"
)

type Session struct {
	ID             string    `json:"id"`
	ContactID      string    `json:"contact_id"`
	ConnectionID   string    `json:"connection_id"`
	OrganizationID string    `json:"organization_id"`
	Status         Status    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

type GetOrCreateRequest struct {
	ContactID      string
	ConnectionID   string
	OrganizationID string
}

type ISessionManager interface {
	// GetOrCreateSession returns the open session for the triple, creating a
	// QUEUED one when there is none.
	GetOrCreateSession(ctx context.Context, req GetOrCreateRequest) (Session, error)
}
