package webhook

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/AzielCF/az-wap-ingest/domains/connection"
	"github.com/AzielCF/az-wap-ingest/domains/message"
	"github.com/AzielCF/az-wap-ingest/pkg/tracectx"
)

type EventKind string

const (
	EventMessageReceived      EventKind = "message.received"
	EventMessageSent          EventKind = "message.sent"
	EventMessageUpdated       EventKind = "message.updated"
	EventInstanceConnected    EventKind = "instance.connected"
	EventInstanceDisconnected EventKind = "instance.disconnected"
	EventInstanceQR           EventKind = "instance.qr"
	EventCallReceived         EventKind = "call.received"
	EventPresenceUpdate       EventKind = "presence.update"
	EventGroupUpdate          EventKind = "group.update"
	EventUnmapped             EventKind = "unmapped"
)

type ProviderName string

const (
	ProviderUAZapi    ProviderName = "uazapi"
	ProviderEvolution ProviderName = "evolution"
	ProviderCloudAPI  ProviderName = "cloudapi"
)

// ProviderNames lists every provider the pipeline accepts.
func ProviderNames() []ProviderName {
	return []ProviderName{ProviderUAZapi, ProviderEvolution, ProviderCloudAPI}
}

func ParseProviderName(s string) ProviderName {
	return ProviderName(strings.ToLower(strings.TrimSpace(s)))
}

type ProviderType string

const (
	ProviderTypeUnofficial ProviderType = "UNOFFICIAL"
	ProviderTypeOfficial   ProviderType = "OFFICIAL"
)

type MessageType string

const (
	MessageTypeText     MessageType = "TEXT"
	MessageTypeImage    MessageType = "IMAGE"
	MessageTypeVideo    MessageType = "VIDEO"
	MessageTypeAudio    MessageType = "AUDIO"
	MessageTypeVoice    MessageType = "VOICE"
	MessageTypeDocument MessageType = "DOCUMENT"
	MessageTypeLocation MessageType = "LOCATION"
	MessageTypeContact  MessageType = "CONTACT"
	MessageTypeSticker  MessageType = "STICKER"
	MessageTypePoll     MessageType = "POLL"
)

type MessageContent struct {
	Text     string `json:"text,omitempty"`
	MediaURL string `json:"media_url,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	FileName string `json:"file_name,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

// NormalizedMessage is a provider message in canonical form. Phone fields hold
// digits only.
type NormalizedMessage struct {
	ID          string         `json:"id"`
	From        string         `json:"from"`
	To          string         `json:"to,omitempty"`
	SenderName  string         `json:"sender_name,omitempty"`
	Participant string         `json:"participant,omitempty"`
	Type        MessageType    `json:"type"`
	Content     MessageContent `json:"content"`
	IsFromMe    bool           `json:"is_from_me"`
	IsGroup     bool           `json:"is_group"`
	Timestamp   time.Time      `json:"timestamp"`
}

// NormalizedWebhook is the canonical event every adapter produces.
type NormalizedWebhook struct {
	Event      EventKind `json:"event"`
	InstanceID string    `json:"instance_id"`
	// InstanceToken is the provider token found in the payload, if any.
	InstanceToken string `json:"-"`
	// ConnectionID is set by the HTTP route when the URL names the connection.
	ConnectionID string          `json:"connection_id,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
	Data         EventData       `json:"data"`
	Raw          json.RawMessage `json:"raw"`
}

// Message returns the message carried by message.received/message.sent events.
func (w *NormalizedWebhook) Message() (NormalizedMessage, bool) {
	d, ok := w.Data.(MessageData)
	return d.Message, ok
}

// EventData is implemented only by the payload types in this package.
type EventData interface {
	eventData()
}

type MessageData struct {
	Message NormalizedMessage `json:"message"`
}

type StatusData struct {
	MessageID string         `json:"message_id"`
	ChatID    string         `json:"chat_id,omitempty"`
	Status    message.Status `json:"status,omitempty"`
	// RawStatus is the provider's own status string.
	RawStatus string `json:"raw_status"`
}

type InstanceData struct {
	Status connection.Status `json:"status"`
	QRCode string            `json:"qr_code,omitempty"`
	Reason string            `json:"reason,omitempty"`
}

type CallData struct {
	CallID  string `json:"call_id"`
	From    string `json:"from"`
	Status  string `json:"status"`
	IsVideo bool   `json:"is_video"`
}

type PresenceData struct {
	ChatID   string `json:"chat_id"`
	Presence string `json:"presence"`
}

type GroupAction string

const (
	GroupActionCreate            GroupAction = "create"
	GroupActionParticipantAdd    GroupAction = "participant_add"
	GroupActionParticipantRemove GroupAction = "participant_remove"
	GroupActionUpdate            GroupAction = "update"
)

// GroupActionFrom maps a provider group action; unknown actions become update.
func GroupActionFrom(action string) GroupAction {
	switch strings.ToLower(action) {
	case "create":
		return GroupActionCreate
	case "add":
		return GroupActionParticipantAdd
	case "remove", "leave":
		return GroupActionParticipantRemove
	default:
		return GroupActionUpdate
	}
}

type GroupData struct {
	GroupID      string      `json:"group_id"`
	Action       GroupAction `json:"action"`
	Participants []string    `json:"participants,omitempty"`
	Subject      string      `json:"subject,omitempty"`
}

type UnmappedData struct {
	ProviderEvent string `json:"provider_event"`
}

func (MessageData) eventData()  {}
func (StatusData) eventData()   {}
func (InstanceData) eventData() {}
func (CallData) eventData()     {}
func (PresenceData) eventData() {}
func (GroupData) eventData()    {}
func (UnmappedData) eventData() {}

// IProviderAdapter turns one provider's webhook body into canonical events.
// NormalizeWebhook never panics on unexpected shapes and always preserves raw.
type IProviderAdapter interface {
	ProviderType() ProviderType
	ProviderName() ProviderName
	NormalizeWebhook(raw []byte) NormalizedWebhook
}

// IBatchNormalizer is implemented by adapters whose bodies may carry several
// events.
type IBatchNormalizer interface {
	NormalizeBatch(raw []byte) []NormalizedWebhook
}

type ProcessResult struct {
	Event     EventKind `json:"event"`
	MessageID string    `json:"message_id,omitempty"`
	Processed bool      `json:"processed"`
	Reason    string    `json:"reason,omitempty"`
}

type IWebhookProcessor interface {
	ProcessWebhookEvent(ctx context.Context, w *NormalizedWebhook, provider ProviderName, tc *tracectx.Context) (ProcessResult, error)
}

type IngestOptions struct {
	ConnectionID string
}

type IngestResult struct {
	Provider ProviderName    `json:"provider"`
	TraceID  string          `json:"trace_id,omitempty"`
	Queued   bool            `json:"queued"`
	Events   []ProcessResult `json:"events"`
}

type IIngestUsecase interface {
	Ingest(ctx context.Context, provider ProviderName, body []byte, opts IngestOptions) (IngestResult, error)
}
