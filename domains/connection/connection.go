package connection

import (
	"context"
	"time"
)

type Status string

const (
	StatusConnected    Status = "CONNECTED"
	StatusConnecting   Status = "CONNECTING"
	StatusDisconnected Status = "DISCONNECTED"
	StatusQRCode       Status = "QR_CODE"
)

// StatusFromState maps a provider connection state string to a Status.
// Unrecognised states are treated as disconnected.
func StatusFromState(state string) Status {
	switch state {
	case "open", "connected":
		return StatusConnected
	case "connecting":
		return StatusConnecting
	case "close", "closed", "disconnected":
		return StatusDisconnected
	case "qr", "qrcode":
		return StatusQRCode
	default:
		return StatusDisconnected
	}
}

type Connection struct {
	ID                    string     `json:"id"`
	OrganizationID        string     `json:"organization_id"`
	Name                  string     `json:"name"`
	Provider              string     `json:"provider"`
	ProviderToken         string     `json:"-"`
	Status                Status     `json:"status"`
	CloudAPIPhoneNumberID string     `json:"cloud_api_phone_number_id,omitempty"`
	LastConnected         *time.Time `json:"last_connected,omitempty"`
}

// Projection is the subset of a Connection the pipeline needs. It is what the
// cache stores, so it carries no credentials.
type Projection struct {
	ID                    string `json:"id"`
	OrganizationID        string `json:"organization_id"`
	Provider              string `json:"provider"`
	Status                Status `json:"status"`
	CloudAPIPhoneNumberID string `json:"cloud_api_phone_number_id,omitempty"`
}

func (c Connection) Projection() Projection {
	return Projection{
		ID:                    c.ID,
		OrganizationID:        c.OrganizationID,
		Provider:              c.Provider,
		Status:                c.Status,
		CloudAPIPhoneNumberID: c.CloudAPIPhoneNumberID,
	}
}

type StatusUpdate struct {
	Status Status
	// LastConnected is left untouched when nil.
	LastConnected *time.Time
}

type IConnectionRepository interface {
	// Finders return (nil, nil) when nothing matches.
	FindByID(ctx context.Context, id string) (*Connection, error)
	FindByToken(ctx context.Context, token string) (*Connection, error)
	FindByCloudPhoneNumberID(ctx context.Context, phoneNumberID string) (*Connection, error)
	UpdateStatus(ctx context.Context, id string, update StatusUpdate) error
}
