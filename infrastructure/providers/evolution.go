package providers

import (
	"strings"
	"time"

	"github.com/AzielCF/az-wap-ingest/domains/connection"
	"github.com/AzielCF/az-wap-ingest/domains/webhook"
	"github.com/tidwall/gjson"
)

type evolutionHandler func(a *EvolutionAdapter, root gjson.Result, w *webhook.NormalizedWebhook)

// Keys are normalized with eventKey, so MESSAGES_UPSERT and messages.upsert
// both hit the same entry.
var evolutionEvents = map[string]evolutionHandler{
	"messages.upsert":           (*EvolutionAdapter).onMessagesUpsert,
	"send.message":              (*EvolutionAdapter).onSendMessage,
	"messages.update":           (*EvolutionAdapter).onMessagesUpdate,
	"connection.update":         (*EvolutionAdapter).onConnectionUpdate,
	"qrcode.updated":            (*EvolutionAdapter).onQRCodeUpdated,
	"call":                      (*EvolutionAdapter).onCall,
	"presence.update":           (*EvolutionAdapter).onPresenceUpdate,
	"groups.upsert":             (*EvolutionAdapter).onGroupsUpsert,
	"groups.update":             (*EvolutionAdapter).onGroupsUpdate,
	"group.participants.update": (*EvolutionAdapter).onGroupParticipants,
}

// EvolutionAdapter normalizes Evolution API webhooks. Message bodies are
// Baileys WebMessageInfo objects.
type EvolutionAdapter struct {
	baseAdapter
}

func NewEvolutionAdapter() *EvolutionAdapter {
	return &EvolutionAdapter{baseAdapter{
		name: webhook.ProviderEvolution,
		kind: webhook.ProviderTypeUnofficial,
		now:  time.Now,
	}}
}

func (a *EvolutionAdapter) NormalizeWebhook(raw []byte) webhook.NormalizedWebhook {
	w := a.envelope(raw)
	root, ok := parse(raw)
	if !ok {
		a.unmapped(&w, "")
		return w
	}

	w.InstanceID = firstString(root, "instance", "instanceName", "data.instanceId")
	w.InstanceToken = firstString(root, "apikey", "apiKey")
	w.Timestamp = parseTimestamp(root.Get("date_time"), w.Timestamp)

	name := firstString(root, "event")
	handle, ok := evolutionEvents[eventKey(name)]
	if !ok {
		a.unmapped(&w, name)
		return w
	}
	handle(a, root, &w)
	return w
}

func (a *EvolutionAdapter) message(root gjson.Result, w *webhook.NormalizedWebhook) (webhook.NormalizedMessage, bool) {
	data := payloadOf(root, "data")
	if batch := data.Get("messages.0"); batch.Exists() {
		data = batch
	}
	if !data.Get("key").Exists() {
		return webhook.NormalizedMessage{}, false
	}
	return normalizeBaileysMessage(data, firstString(root, "sender"), w.Timestamp), true
}

func (a *EvolutionAdapter) onMessagesUpsert(root gjson.Result, w *webhook.NormalizedWebhook) {
	msg, ok := a.message(root, w)
	if !ok {
		a.unmapped(w, "messages.upsert")
		return
	}
	w.Event = webhook.EventMessageReceived
	w.Data = webhook.MessageData{Message: msg}
}

func (a *EvolutionAdapter) onSendMessage(root gjson.Result, w *webhook.NormalizedWebhook) {
	msg, ok := a.message(root, w)
	if !ok {
		a.unmapped(w, "send.message")
		return
	}
	msg.IsFromMe = true
	w.Event = webhook.EventMessageSent
	w.Data = webhook.MessageData{Message: msg}
}

func (a *EvolutionAdapter) onMessagesUpdate(root gjson.Result, w *webhook.NormalizedWebhook) {
	data := payloadOf(root, "data")
	w.Event = webhook.EventMessageUpdated
	w.Data = statusUpdate(data,
		[]string{"keyId", "key.id", "id"},
		[]string{"remoteJid", "key.remoteJid"},
		[]string{"status", "update.status"},
	)
}

func (a *EvolutionAdapter) onConnectionUpdate(root gjson.Result, w *webhook.NormalizedWebhook) {
	data := payloadOf(root, "data")
	instanceEvent(w, webhook.InstanceData{
		Status: connection.StatusFromState(strings.ToLower(firstString(data, "state", "status"))),
		Reason: data.Get("statusReason").String(),
	})
}

func (a *EvolutionAdapter) onQRCodeUpdated(root gjson.Result, w *webhook.NormalizedWebhook) {
	data := payloadOf(root, "data")
	w.Event = webhook.EventInstanceQR
	w.Data = webhook.InstanceData{
		Status: connection.StatusQRCode,
		QRCode: firstString(data, "qrcode.base64", "qrcode.code", "qrcode", "base64"),
	}
}

func (a *EvolutionAdapter) onCall(root gjson.Result, w *webhook.NormalizedWebhook) {
	data := payloadOf(root, "data")
	w.Event = webhook.EventCallReceived
	w.Data = webhook.CallData{
		CallID:  firstString(data, "id"),
		From:    phoneFromJID(firstString(data, "from", "chatId")),
		Status:  "ringing",
		IsVideo: data.Get("isVideo").Bool(),
	}
}

func (a *EvolutionAdapter) onPresenceUpdate(root gjson.Result, w *webhook.NormalizedWebhook) {
	data := payloadOf(root, "data")
	w.Event = webhook.EventPresenceUpdate
	w.Data = webhook.PresenceData{
		ChatID:   phoneFromJID(firstString(data, "id")),
		Presence: presenceOf(data),
	}
}

func (a *EvolutionAdapter) onGroupsUpsert(root gjson.Result, w *webhook.NormalizedWebhook) {
	a.group(root, w, webhook.GroupActionCreate)
}

func (a *EvolutionAdapter) onGroupsUpdate(root gjson.Result, w *webhook.NormalizedWebhook) {
	a.group(root, w, webhook.GroupActionUpdate)
}

func (a *EvolutionAdapter) onGroupParticipants(root gjson.Result, w *webhook.NormalizedWebhook) {
	data := payloadOf(root, "data")
	a.group(root, w, webhook.GroupActionFrom(firstString(data, "action")))
}

func (a *EvolutionAdapter) group(root gjson.Result, w *webhook.NormalizedWebhook, action webhook.GroupAction) {
	data := payloadOf(root, "data")
	w.Event = webhook.EventGroupUpdate
	w.Data = webhook.GroupData{
		GroupID:      firstString(data, "id"),
		Action:       action,
		Participants: phoneList(data.Get("participants")),
		Subject:      firstString(data, "subject"),
	}
}
