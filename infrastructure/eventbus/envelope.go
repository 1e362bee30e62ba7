package eventbus

import (
	"time"

	"github.com/AzielCF/az-wap-ingest/domains/webhook"
	"github.com/google/uuid"
)

type Meta struct {
	ID string `json:"id"`
	// CorrelationID is the trace ID of the request that produced the event.
	CorrelationID string    `json:"correlation_id,omitempty"`
	Producer      string    `json:"producer,omitempty"`
	Time          time.Time `json:"time"`
	Type          string    `json:"type"`
}

type Envelope struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}

// EventData is the body published for one processed webhook. The raw provider
// payload is not forwarded.
type EventData struct {
	Provider     webhook.ProviderName `json:"provider"`
	ConnectionID string               `json:"connection_id,omitempty"`
	InstanceID   string               `json:"instance_id,omitempty"`
	Timestamp    time.Time            `json:"timestamp"`
	Payload      webhook.EventData    `json:"payload"`
}

// RoutingKey returns the topic routing key for an event kind.
func RoutingKey(kind webhook.EventKind) string {
	return "webhook." + string(kind)
}

// NewEnvelope wraps a processed webhook for publishing.
func NewEnvelope(w *webhook.NormalizedWebhook, provider webhook.ProviderName, connectionID, traceID, producer string) Envelope {
	return Envelope{
		Meta: Meta{
			ID:            uuid.NewString(),
			CorrelationID: traceID,
			Producer:      producer,
			Time:          time.Now().UTC(),
			Type:          string(w.Event),
		},
		Data: EventData{
			Provider:     provider,
			ConnectionID: connectionID,
			InstanceID:   w.InstanceID,
			Timestamp:    w.Timestamp,
			Payload:      w.Data,
		},
	}
}
