package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domainCache "github.com/AzielCF/az-wap-ingest/domains/cache"
	"github.com/AzielCF/az-wap-ingest/domains/connection"
	"github.com/AzielCF/az-wap-ingest/domains/contact"
	"github.com/AzielCF/az-wap-ingest/domains/message"
	"github.com/AzielCF/az-wap-ingest/domains/session"
	"github.com/AzielCF/az-wap-ingest/domains/webhook"
	"github.com/AzielCF/az-wap-ingest/infrastructure/eventbus"
	"github.com/AzielCF/az-wap-ingest/infrastructure/lock"
	"github.com/AzielCF/az-wap-ingest/pkg/sanitize"
	"github.com/AzielCF/az-wap-ingest/pkg/tracectx"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	ReasonBotEcho            = "Bot echo ignored"
	ReasonMissingSender      = "Message has no sender"
	ReasonConnectionNotFound = "Connection not found"
	ReasonDuplicate          = "Message already processed"
)

// ProcessorDeps are the collaborators of the webhook processor. Publisher may
// be nil.
type ProcessorDeps struct {
	Cache       domainCache.IEntityCache
	Contacts    contact.IContactRepository
	Connections connection.IConnectionRepository
	Messages    message.IMessageRepository
	Sessions    session.ISessionManager
	Locks       *lock.Manager
	Publisher   eventbus.Publisher
	// BotSignature marks content sent by this system; empty disables echo detection.
	BotSignature string
	// Producer is stamped on published envelopes.
	Producer string
}

type webhookProcessor struct {
	cache        domainCache.IEntityCache
	contacts     contact.IContactRepository
	connections  connection.IConnectionRepository
	messages     message.IMessageRepository
	sessions     session.ISessionManager
	locks        *lock.Manager
	publisher    eventbus.Publisher
	botSignature string
	producer     string
	now          func() time.Time
}

func NewWebhookProcessor(deps ProcessorDeps) webhook.IWebhookProcessor {
	publisher := deps.Publisher
	if publisher == nil {
		publisher = eventbus.NewNoopPublisher()
	}
	return &webhookProcessor{
		cache:        deps.Cache,
		contacts:     deps.Contacts,
		connections:  deps.Connections,
		messages:     deps.Messages,
		sessions:     deps.Sessions,
		locks:        deps.Locks,
		publisher:    publisher,
		botSignature: deps.BotSignature,
		producer:     deps.Producer,
		now:          time.Now,
	}
}

func (p *webhookProcessor) ProcessWebhookEvent(ctx context.Context, w *webhook.NormalizedWebhook, provider webhook.ProviderName, tc *tracectx.Context) (webhook.ProcessResult, error) {
	if tc == nil {
		tc = tracectx.New()
	}
	ctx = tracectx.WithContext(ctx, tc)

	h := &eventHandler{
		p:        p,
		provider: provider,
		result:   webhook.ProcessResult{Event: w.Event, Processed: true},
		log: tracectx.Logger(ctx).WithFields(logrus.Fields{
			"provider": provider,
			"event":    w.Event,
			"instance": w.InstanceID,
		}),
	}
	if msg, ok := w.Message(); ok {
		h.result.MessageID = msg.ID
	} else if st, ok := w.Data.(webhook.StatusData); ok {
		h.result.MessageID = st.MessageID
	}

	if err := webhook.Dispatch(ctx, w, h); err != nil {
		h.log.WithError(err).Error("[WEBHOOK] Failed to process event")
		return h.result, err
	}

	if h.result.Processed && w.Event != webhook.EventUnmapped {
		p.publish(ctx, w, provider, h.connectionID, tc.TraceID)
	}
	return h.result, nil
}

// publish is best effort; the event is already persisted. Consumers only
// ever see sanitized user content.
func (p *webhookProcessor) publish(ctx context.Context, w *webhook.NormalizedWebhook, provider webhook.ProviderName, connectionID, traceID string) {
	out := *w
	out.Data = p.sanitizedData(w.Data)
	env := eventbus.NewEnvelope(&out, provider, connectionID, traceID, p.producer)
	if err := p.publisher.Publish(ctx, eventbus.RoutingKey(w.Event), env); err != nil {
		tracectx.Logger(ctx).WithError(err).WithField("event", w.Event).Warn("[WEBHOOK] Failed to publish event")
	}
}

// eventHandler handles a single event. It is created per call so that it can
// carry the result and the resolved connection.
type eventHandler struct {
	p            *webhookProcessor
	provider     webhook.ProviderName
	result       webhook.ProcessResult
	connectionID string
	log          *logrus.Entry
}

func (h *eventHandler) skip(reason string) {
	h.result.Processed = false
	h.result.Reason = reason
}

func (h *eventHandler) OnMessageReceived(ctx context.Context, w *webhook.NormalizedWebhook, d webhook.MessageData) error {
	res, err := h.p.locks.WithMessageLock(ctx, d.Message.ID, func(ctx context.Context) error {
		return h.storeMessage(ctx, w, d.Message)
	})
	if err != nil {
		return err
	}
	if !res.Processed {
		h.log.WithField("message_id", d.Message.ID).Info("[WEBHOOK] " + res.Reason)
		h.skip(res.Reason)
	}
	return nil
}

func (h *eventHandler) storeMessage(ctx context.Context, w *webhook.NormalizedWebhook, msg webhook.NormalizedMessage) error {
	p := h.p
	log := h.log.WithField("message_id", msg.ID)

	if p.isBotEcho(msg.Content) {
		log.Debug("[WEBHOOK] Dropping bot echo")
		h.skip(ReasonBotEcho)
		return nil
	}
	// Messages typed on the phone belong to the conversation with the recipient.
	phone, senderName := msg.From, msg.SenderName
	direction, status := message.DirectionInbound, message.StatusDelivered
	if msg.IsFromMe {
		phone, senderName = msg.To, ""
		direction, status = message.DirectionOutbound, message.StatusSent
	}
	if phone == "" {
		log.Warn("[WEBHOOK] Message without counterpart phone")
		h.skip(ReasonMissingSender)
		return nil
	}

	ct, err := h.contactFor(ctx, phone, senderName)
	if err != nil {
		return err
	}

	conn, err := h.resolveConnection(ctx, w)
	if err != nil {
		return err
	}
	if conn == nil {
		log.Warn("[WEBHOOK] No connection matches the webhook, dropping message")
		h.skip(ReasonConnectionNotFound)
		return nil
	}
	h.connectionID = conn.ID

	sess, err := p.sessions.GetOrCreateSession(ctx, session.GetOrCreateRequest{
		ContactID:      ct.ID,
		ConnectionID:   conn.ID,
		OrganizationID: conn.OrganizationID,
	})
	if err != nil {
		return fmt.Errorf("failed to get session for contact %s: %w", ct.ID, err)
	}

	clean := p.sanitizeMessage(msg)
	if clean.Content.MediaURL == "" && msg.Content.MediaURL != "" {
		log.Warn("[WEBHOOK] Discarding media URL with unsupported scheme")
	}

	// Messages without a provider id cannot be deduplicated.
	if msg.ID != "" {
		exists, err := p.messages.ExistsByWaMessageID(ctx, msg.ID)
		if err != nil {
			return fmt.Errorf("failed to check message %s: %w", msg.ID, err)
		}
		if exists {
			log.Debug("[WEBHOOK] Message already stored")
			h.skip(ReasonDuplicate)
			return nil
		}
	}

	now := p.now().UTC()
	sentAt := msg.Timestamp
	if sentAt.IsZero() {
		sentAt = now
	}
	record := &message.Message{
		ID:           uuid.NewString(),
		WaMessageID:  msg.ID,
		SessionID:    sess.ID,
		ConnectionID: conn.ID,
		ContactID:    ct.ID,
		Direction:    direction,
		Status:       status,
		Type:         strings.ToLower(string(msg.Type)),
		Content:      clean.Content.Text,
		MediaURL:     clean.Content.MediaURL,
		MimeType:     msg.Content.MimeType,
		FileName:     clean.Content.FileName,
		Caption:      clean.Content.Caption,
		IsGroup:      msg.IsGroup,
		Participant:  msg.Participant,
		Timestamp:    sentAt,
		CreatedAt:    now,
	}
	if err := p.messages.Create(ctx, record); err != nil {
		return fmt.Errorf("failed to store message %s: %w", msg.ID, err)
	}

	log.WithFields(logrus.Fields{
		"connection_id": conn.ID,
		"session_id":    sess.ID,
		"type":          record.Type,
		"direction":     record.Direction,
	}).Info("[WEBHOOK] Stored message")
	return nil
}

// contactFor returns the contact for phone, creating it on first contact. A
// concurrent creation of the same contact is resolved by re-reading it.
func (h *eventHandler) contactFor(ctx context.Context, phone, senderName string) (*contact.Contact, error) {
	p := h.p
	existing, err := p.cache.GetCachedContact(ctx, phone)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	name := sanitize.ContactName(senderName)
	if name == "" {
		name = phone
	}
	created := &contact.Contact{
		ID:          uuid.NewString(),
		PhoneNumber: phone,
		Name:        name,
		CreatedAt:   p.now().UTC(),
	}

	err = p.contacts.Create(ctx, created)
	switch {
	case err == nil:
		p.cache.UpdateContactCache(ctx, *created)
		h.log.WithField("contact_id", created.ID).Info("[WEBHOOK] Created contact")
		return created, nil
	case errors.Is(err, contact.ErrAlreadyExists):
		winner, err := p.contacts.FindByPhone(ctx, phone)
		if err != nil {
			return nil, fmt.Errorf("failed to reload contact %s: %w", phone, err)
		}
		if winner == nil {
			return nil, fmt.Errorf("contact %s reported as existing but not found", phone)
		}
		p.cache.UpdateContactCache(ctx, *winner)
		return winner, nil
	default:
		return nil, fmt.Errorf("failed to create contact %s: %w", phone, err)
	}
}

// resolveConnection finds the connection a webhook belongs to. The route hint
// wins, then the payload token, then the provider instance identifier.
func (h *eventHandler) resolveConnection(ctx context.Context, w *webhook.NormalizedWebhook) (*connection.Projection, error) {
	cache := h.p.cache
	if w.ConnectionID != "" {
		return cache.GetCachedConnection(ctx, w.ConnectionID)
	}
	if w.InstanceToken != "" {
		conn, err := cache.GetCachedConnectionByToken(ctx, w.InstanceToken)
		if err != nil || conn != nil {
			return conn, err
		}
	}
	if w.InstanceID == "" {
		return nil, nil
	}
	if h.provider == webhook.ProviderCloudAPI {
		return cache.GetCachedConnectionByCloudPhoneID(ctx, w.InstanceID)
	}
	return cache.GetCachedConnection(ctx, w.InstanceID)
}

func (h *eventHandler) OnMessageSent(ctx context.Context, w *webhook.NormalizedWebhook, d webhook.MessageData) error {
	return h.updateStatus(ctx, d.Message.ID, message.StatusSent)
}

// OnMessageUpdated applies a delivery receipt. Receipts carry no user content,
// so nothing is sanitized here.
func (h *eventHandler) OnMessageUpdated(ctx context.Context, w *webhook.NormalizedWebhook, d webhook.StatusData) error {
	if d.Status == "" {
		h.log.WithField("raw_status", d.RawStatus).Debug("[WEBHOOK] Ignoring untracked message status")
		return nil
	}
	return h.updateStatus(ctx, d.MessageID, d.Status)
}

func (h *eventHandler) updateStatus(ctx context.Context, waMessageID string, status message.Status) error {
	if waMessageID == "" {
		h.log.Debug("[WEBHOOK] Status update without message id")
		return nil
	}
	n, err := h.p.messages.UpdateStatusByWaMessageID(ctx, waMessageID, status)
	if err != nil {
		return fmt.Errorf("failed to update status of %s: %w", waMessageID, err)
	}
	h.log.WithFields(logrus.Fields{
		"message_id": waMessageID,
		"status":     status,
		"rows":       n,
	}).Debug("[WEBHOOK] Message status updated")
	return nil
}

func (h *eventHandler) OnInstanceConnected(ctx context.Context, w *webhook.NormalizedWebhook, d webhook.InstanceData) error {
	now := h.p.now().UTC()
	return h.setConnectionStatus(ctx, w, connection.StatusUpdate{
		Status:        connection.StatusConnected,
		LastConnected: &now,
	})
}

func (h *eventHandler) OnInstanceDisconnected(ctx context.Context, w *webhook.NormalizedWebhook, d webhook.InstanceData) error {
	status := d.Status
	if status == "" || status == connection.StatusConnected {
		status = connection.StatusDisconnected
	}
	return h.setConnectionStatus(ctx, w, connection.StatusUpdate{Status: status})
}

// OnInstanceQR marks the connection as pairing. The QR payload is not stored.
func (h *eventHandler) OnInstanceQR(ctx context.Context, w *webhook.NormalizedWebhook, d webhook.InstanceData) error {
	return h.setConnectionStatus(ctx, w, connection.StatusUpdate{Status: connection.StatusConnecting})
}

func (h *eventHandler) setConnectionStatus(ctx context.Context, w *webhook.NormalizedWebhook, update connection.StatusUpdate) error {
	conn, err := h.resolveConnection(ctx, w)
	if err != nil {
		return err
	}
	if conn == nil {
		h.log.Warn("[WEBHOOK] Instance event for unknown connection")
		h.skip(ReasonConnectionNotFound)
		return nil
	}
	h.connectionID = conn.ID

	if err := h.p.connections.UpdateStatus(ctx, conn.ID, update); err != nil {
		return fmt.Errorf("failed to update connection %s: %w", conn.ID, err)
	}
	h.p.cache.InvalidateConnectionCache(ctx, conn.ID, w.InstanceToken)

	h.log.WithFields(logrus.Fields{
		"connection_id": conn.ID,
		"status":        update.Status,
	}).Info("[WEBHOOK] Connection status updated")
	return nil
}

func (h *eventHandler) OnCallReceived(ctx context.Context, w *webhook.NormalizedWebhook, d webhook.CallData) error {
	h.log.WithFields(logrus.Fields{
		"call_id":  d.CallID,
		"from":     d.From,
		"is_video": d.IsVideo,
	}).Debug("[WEBHOOK] Call received")
	return nil
}

func (h *eventHandler) OnPresenceUpdate(ctx context.Context, w *webhook.NormalizedWebhook, d webhook.PresenceData) error {
	h.log.WithFields(logrus.Fields{
		"chat_id":  d.ChatID,
		"presence": d.Presence,
	}).Debug("[WEBHOOK] Presence update")
	return nil
}

func (h *eventHandler) OnGroupUpdate(ctx context.Context, w *webhook.NormalizedWebhook, d webhook.GroupData) error {
	h.log.WithFields(logrus.Fields{
		"group_id":     d.GroupID,
		"action":       d.Action,
		"participants": len(d.Participants),
	}).Debug("[WEBHOOK] Group update")
	return nil
}

func (h *eventHandler) OnUnmapped(ctx context.Context, w *webhook.NormalizedWebhook, d webhook.UnmappedData) error {
	h.log.WithField("provider_event", d.ProviderEvent).Debug("[WEBHOOK] Unmapped event ignored")
	return nil
}

func (p *webhookProcessor) isBotEcho(c webhook.MessageContent) bool {
	if p.botSignature == "" {
		return false
	}
	return strings.Contains(c.Text, p.botSignature) || strings.Contains(c.Caption, p.botSignature)
}

func (p *webhookProcessor) stripSignature(s string) string {
	if p.botSignature == "" {
		return s
	}
	return strings.ReplaceAll(s, p.botSignature, "")
}

// sanitizeMessage returns a copy of msg whose user-controlled fields are safe to
// store and forward. Raw is never touched.
func (p *webhookProcessor) sanitizeMessage(msg webhook.NormalizedMessage) webhook.NormalizedMessage {
	mediaURL, ok := sanitize.URL(msg.Content.MediaURL)
	if !ok {
		mediaURL = ""
	}
	msg.SenderName = sanitize.ContactName(msg.SenderName)
	msg.Content = webhook.MessageContent{
		Text:     sanitize.Content(p.stripSignature(msg.Content.Text)),
		MediaURL: mediaURL,
		MimeType: msg.Content.MimeType,
		FileName: sanitize.FileName(msg.Content.FileName),
		Caption:  sanitize.Content(p.stripSignature(msg.Content.Caption)),
	}
	return msg
}

func (p *webhookProcessor) sanitizedData(d webhook.EventData) webhook.EventData {
	switch v := d.(type) {
	case webhook.MessageData:
		return webhook.MessageData{Message: p.sanitizeMessage(v.Message)}
	case webhook.GroupData:
		v.Subject = sanitize.ContactName(v.Subject)
		return v
	default:
		return d
	}
}
