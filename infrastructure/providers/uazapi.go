package providers

import (
	"strings"
	"time"

	"github.com/AzielCF/az-wap-ingest/domains/connection"
	"github.com/AzielCF/az-wap-ingest/domains/webhook"
	"github.com/tidwall/gjson"
)

type uazapiHandler func(a *UAZapiAdapter, root gjson.Result, w *webhook.NormalizedWebhook)

var uazapiEvents = map[string]uazapiHandler{
	"messages":        (*UAZapiAdapter).onMessages,
	"messages.update": (*UAZapiAdapter).onMessagesUpdate,
	"connection":      (*UAZapiAdapter).onConnection,
	"qrcode":          (*UAZapiAdapter).onQRCode,
	"call":            (*UAZapiAdapter).onCall,
	"presence":        (*UAZapiAdapter).onPresence,
	"groups":          (*UAZapiAdapter).onGroups,
}

// UAZapiAdapter normalizes UAZapi webhooks. UAZapi forwards either the raw
// Baileys message under "data" or its own flattened message under "message";
// both are accepted.
type UAZapiAdapter struct {
	baseAdapter
}

func NewUAZapiAdapter() *UAZapiAdapter {
	return &UAZapiAdapter{baseAdapter{
		name: webhook.ProviderUAZapi,
		kind: webhook.ProviderTypeUnofficial,
		now:  time.Now,
	}}
}

func (a *UAZapiAdapter) NormalizeWebhook(raw []byte) webhook.NormalizedWebhook {
	w := a.envelope(raw)
	root, ok := parse(raw)
	if !ok {
		a.unmapped(&w, "")
		return w
	}

	w.InstanceID = firstString(root, "instance", "instanceId", "instanceName", "instance.id", "instance.name")
	w.InstanceToken = firstString(root, "token", "instanceToken", "instance.token")
	w.Timestamp = parseTimestamp(root.Get("timestamp"), w.Timestamp)

	name := firstString(root, "event", "EventType")
	handle, ok := uazapiEvents[eventKey(name)]
	if !ok {
		a.unmapped(&w, name)
		return w
	}
	handle(a, root, &w)
	return w
}

func (a *UAZapiAdapter) onMessages(root gjson.Result, w *webhook.NormalizedWebhook) {
	owner := firstString(root, "owner", "instance.owner")
	data := payloadOf(root, "data")
	if batch := data.Get("messages.0"); batch.Exists() {
		data = batch
	}

	var msg webhook.NormalizedMessage
	switch {
	case data.Get("key").Exists():
		msg = normalizeBaileysMessage(data, owner, w.Timestamp)
	case root.Get("message").IsObject():
		msg = normalizeUAZapiMessage(root.Get("message"), owner, w.Timestamp)
	default:
		a.unmapped(w, "messages")
		return
	}

	// Messages typed on the phone arrive here too; IsFromMe tells them apart.
	w.Event = webhook.EventMessageReceived
	w.Data = webhook.MessageData{Message: msg}
}

// onMessagesUpdate only reads the delivery status; the message body is not
// re-normalized.
func (a *UAZapiAdapter) onMessagesUpdate(root gjson.Result, w *webhook.NormalizedWebhook) {
	data := payloadOf(root, "data", "event", "message")
	w.Event = webhook.EventMessageUpdated
	w.Data = statusUpdate(data,
		[]string{"key.id", "messageid", "messageId", "id", "MessageIDs.0"},
		[]string{"key.remoteJid", "remoteJid", "chatid", "Chat"},
		[]string{"update.status", "status", "state", "Type"},
	)
}

func (a *UAZapiAdapter) onConnection(root gjson.Result, w *webhook.NormalizedWebhook) {
	data := payloadOf(root, "data", "instance")
	state := firstString(data, "state", "status", "connection")
	if state == "" {
		state = firstString(root, "state", "status")
	}
	instanceEvent(w, webhook.InstanceData{
		Status: connection.StatusFromState(strings.ToLower(state)),
		QRCode: firstString(data, "qrcode"),
		Reason: data.Get("statusReason").String(),
	})
}

func (a *UAZapiAdapter) onQRCode(root gjson.Result, w *webhook.NormalizedWebhook) {
	data := payloadOf(root, "data", "instance")
	qr := firstString(data, "qrcode.base64", "qrcode.code", "qrcode", "base64", "code", "qr")
	if qr == "" {
		qr = firstString(root, "qrcode", "qr")
	}
	w.Event = webhook.EventInstanceQR
	w.Data = webhook.InstanceData{Status: connection.StatusQRCode, QRCode: qr}
}

// onCall only ever sees the offer, so the status is always ringing.
func (a *UAZapiAdapter) onCall(root gjson.Result, w *webhook.NormalizedWebhook) {
	data := payloadOf(root, "data", "event", "call")
	w.Event = webhook.EventCallReceived
	w.Data = webhook.CallData{
		CallID:  firstString(data, "id", "callId", "CallID"),
		From:    phoneFromJID(firstString(data, "from", "chatId", "From", "CallCreator")),
		Status:  "ringing",
		IsVideo: data.Get("isVideo").Bool(),
	}
}

func (a *UAZapiAdapter) onPresence(root gjson.Result, w *webhook.NormalizedWebhook) {
	data := payloadOf(root, "data", "event")
	w.Event = webhook.EventPresenceUpdate
	w.Data = webhook.PresenceData{
		ChatID:   phoneFromJID(firstString(data, "id", "chatid", "from", "From")),
		Presence: presenceOf(data),
	}
}

func (a *UAZapiAdapter) onGroups(root gjson.Result, w *webhook.NormalizedWebhook) {
	data := payloadOf(root, "data", "event")
	w.Event = webhook.EventGroupUpdate
	w.Data = webhook.GroupData{
		GroupID:      firstString(data, "id", "groupId", "JID"),
		Action:       webhook.GroupActionFrom(firstString(data, "action", "Action")),
		Participants: phoneList(data.Get("participants")),
		Subject:      firstString(data, "subject", "name", "Name"),
	}
}

// normalizeUAZapiMessage reads UAZapi's flattened message object
// (messageid, chatid, sender, text, fileURL, messageType).
func normalizeUAZapiMessage(m gjson.Result, owner string, fallback time.Time) webhook.NormalizedMessage {
	chat := firstString(m, "chatid", "chatId")
	msg := webhook.NormalizedMessage{
		ID:         firstString(m, "messageid", "messageId", "id"),
		IsFromMe:   m.Get("fromMe").Bool(),
		IsGroup:    m.Get("isGroup").Bool() || isGroupJID(chat),
		SenderName: firstString(m, "senderName"),
		Timestamp:  parseTimestamp(m.Get("messageTimestamp"), fallback),
	}

	remote := chat
	if isHiddenUserJID(remote) {
		if pn := firstString(m, "sender_pn"); pn != "" {
			remote = pn
		}
	}
	setParties(&msg, phoneFromJID(remote), phoneFromJID(owner))
	if msg.IsGroup {
		msg.Participant = phoneFromJID(firstString(m, "sender_pn", "sender"))
	}

	label := firstString(m, "messageType", "mediaType", "type")
	msg.Content = webhook.MessageContent{
		Text:     firstString(m, "text", "content", "content.text"),
		MediaURL: firstString(m, "fileURL", "content.URL", "content.url"),
		MimeType: firstString(m, "mimetype", "content.mimetype"),
		FileName: firstString(m, "content.fileName", "fileName"),
		Caption:  firstString(m, "content.caption", "caption"),
	}
	ptt := m.Get("content.PTT").Bool() || m.Get("content.ptt").Bool()
	hasDocument := strings.Contains(strings.ToLower(label), "document")
	msg.Type = detectType(label, msg.Content.MimeType, hasDocument, ptt)
	return msg
}
