// Package providers holds one adapter per WhatsApp broker. Each adapter turns
// the broker's webhook body into webhook.NormalizedWebhook values.
package providers

import (
	"bytes"
	"strings"
	"time"

	"github.com/AzielCF/az-wap-ingest/domains/connection"
	"github.com/AzielCF/az-wap-ingest/domains/message"
	"github.com/AzielCF/az-wap-ingest/domains/webhook"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

type baseAdapter struct {
	name webhook.ProviderName
	kind webhook.ProviderType
	now  func() time.Time
}

func (b baseAdapter) ProviderName() webhook.ProviderName {
	return b.name
}

func (b baseAdapter) ProviderType() webhook.ProviderType {
	return b.kind
}

// envelope starts every result as unmapped with a private copy of raw, so
// nothing downstream can alias the caller's buffer.
func (b baseAdapter) envelope(raw []byte) webhook.NormalizedWebhook {
	return webhook.NormalizedWebhook{
		Event:     webhook.EventUnmapped,
		Timestamp: b.now().UTC(),
		Data:      webhook.UnmappedData{},
		Raw:       bytes.Clone(raw),
	}
}

func (b baseAdapter) unmapped(w *webhook.NormalizedWebhook, providerEvent string) {
	w.Event = webhook.EventUnmapped
	w.Data = webhook.UnmappedData{ProviderEvent: providerEvent}
	logrus.WithFields(logrus.Fields{
		"provider": b.name,
		"event":    providerEvent,
		"instance": w.InstanceID,
	}).Warn("[WEBHOOK] Unmapped provider event")
}

// parse returns the document root, or false when raw is not a JSON object.
func parse(raw []byte) (gjson.Result, bool) {
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, false
	}
	root := gjson.ParseBytes(raw)
	return root, root.IsObject()
}

// firstString returns the first non-empty string among the given paths.
func firstString(r gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := r.Get(p); v.Exists() && v.Type == gjson.String && v.Str != "" {
			return v.Str
		}
	}
	return ""
}

// firstExisting returns the first path that exists in r.
func firstExisting(r gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		if v := r.Get(p); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}

// first unwraps single-element batches: Baileys sends some events as arrays.
func first(r gjson.Result) gjson.Result {
	if r.IsArray() {
		return r.Get("0")
	}
	return r
}

// parseTimestamp accepts unix seconds, unix milliseconds, numeric strings,
// protobuf Long objects and RFC 3339.
func parseTimestamp(r gjson.Result, fallback time.Time) time.Time {
	if !r.Exists() {
		return fallback
	}
	if r.IsObject() {
		r = r.Get("low")
	}
	if r.Type == gjson.String {
		if t, err := time.Parse(time.RFC3339, r.Str); err == nil {
			return t.UTC()
		}
	}
	n := r.Int()
	switch {
	case n <= 0:
		return fallback
	case n > 1e12:
		return time.UnixMilli(n).UTC()
	default:
		return time.Unix(n, 0).UTC()
	}
}

// eventKey lowercases a provider event name and treats "_" and "." alike.
func eventKey(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", ".")
}

// payloadOf returns the first object (or first element of an array) found at
// the given paths.
func payloadOf(root gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		if v := root.Get(p); v.IsObject() || v.IsArray() {
			return first(v)
		}
	}
	return gjson.Result{}
}

// instanceEvent maps a connection status to its instance.* kind: CONNECTED is
// connected, QR_CODE is qr and everything else is disconnected.
func instanceEvent(w *webhook.NormalizedWebhook, data webhook.InstanceData) {
	switch data.Status {
	case connection.StatusConnected:
		w.Event = webhook.EventInstanceConnected
	case connection.StatusQRCode:
		w.Event = webhook.EventInstanceQR
	default:
		w.Event = webhook.EventInstanceDisconnected
	}
	w.Data = data
}

// baileysAckStatus names the numeric WebMessageInfo.Status values.
var baileysAckStatus = map[int64]string{
	0: "error",
	1: "pending",
	2: "server_ack",
	3: "delivery_ack",
	4: "read",
	5: "played",
}

// statusUpdate builds a message.updated payload. idPaths are tried in order
// for the provider message id.
func statusUpdate(data gjson.Result, idPaths, chatPaths, statusPaths []string) webhook.StatusData {
	raw := ""
	if v := firstExisting(data, statusPaths...); v.Exists() {
		raw = v.String()
		if v.Type == gjson.Number {
			raw = baileysAckStatus[v.Int()]
		}
	}
	status, _ := message.ParseStatus(raw)
	return webhook.StatusData{
		MessageID: firstString(data, idPaths...),
		ChatID:    phoneFromJID(firstString(data, chatPaths...)),
		Status:    status,
		RawStatus: raw,
	}
}

// phoneList reads participants given either as JID strings or as objects.
func phoneList(r gjson.Result) []string {
	var out []string
	r.ForEach(func(_, v gjson.Result) bool {
		jid := v.String()
		if v.IsObject() {
			jid = firstString(v, "phoneNumber", "id", "jid", "JID")
		}
		if phone := phoneFromJID(jid); phone != "" {
			out = append(out, phone)
		}
		return true
	})
	return out
}

func presenceOf(data gjson.Result) string {
	presence := ""
	data.Get("presences").ForEach(func(_, v gjson.Result) bool {
		presence = v.Get("lastKnownPresence").String()
		return false
	})
	if presence == "" {
		presence = firstString(data, "lastKnownPresence", "presence", "state", "State")
	}
	return presence
}
