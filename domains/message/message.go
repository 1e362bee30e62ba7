package message

import (
	"context"
	"strings"
	"time"
)

type Direction string

const (
	DirectionInbound  Direction = "INBOUND"
	DirectionOutbound Direction = "OUTBOUND"
)

type Status string

const (
	StatusDelivered Status = "delivered"
	StatusSent      Status = "sent"
	StatusRead      Status = "read"
	StatusFailed    Status = "failed"
)

// ParseStatus maps the delivery states used by the providers onto Status.
// It returns false for states the pipeline does not track (e.g. "pending").
func ParseStatus(s string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sent", "server_ack", "serverack":
		return StatusSent, true
	case "delivered", "delivery_ack", "deliveryack":
		return StatusDelivered, true
	case "read", "read_ack", "readack", "played":
		return StatusRead, true
	case "failed", "error":
		return StatusFailed, true
	default:
		return "", false
	}
}

type Message struct {
	ID           string    `json:"id"`
	WaMessageID  string    `json:"wa_message_id"`
	SessionID    string    `json:"session_id"`
	ConnectionID string    `json:"connection_id"`
	ContactID    string    `json:"contact_id"`
	Direction    Direction `json:"direction"`
	Status       Status    `json:"status"`
	Type         string    `json:"type"`
	Content      string    `json:"content,omitempty"`
	MediaURL     string    `json:"media_url,omitempty"`
	MimeType     string    `json:"mime_type,omitempty"`
	FileName     string    `json:"file_name,omitempty"`
	Caption      string    `json:"caption,omitempty"`
	IsGroup      bool      `json:"is_group"`
	Participant  string    `json:"participant,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	CreatedAt    time.Time `json:"created_at"`
}

type IMessageRepository interface {
	Create(ctx context.Context, m *Message) error
	// UpdateStatusByWaMessageID returns the number of rows changed; zero is
	// not an error.
	UpdateStatusByWaMessageID(ctx context.Context, waMessageID string, status Status) (int64, error)
	ExistsByWaMessageID(ctx context.Context, waMessageID string) (bool, error)
}
