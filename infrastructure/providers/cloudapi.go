package providers

import (
	"fmt"
	"time"

	"github.com/AzielCF/az-wap-ingest/domains/webhook"
	"github.com/tidwall/gjson"
)

// CloudAPIAdapter normalizes Meta WhatsApp Cloud API webhooks. One delivery
// can carry several messages and statuses, so NormalizeBatch is the primary
// entry point. The Cloud API sends no connection events.
type CloudAPIAdapter struct {
	baseAdapter
}

func NewCloudAPIAdapter() *CloudAPIAdapter {
	return &CloudAPIAdapter{baseAdapter{
		name: webhook.ProviderCloudAPI,
		kind: webhook.ProviderTypeOfficial,
		now:  time.Now,
	}}
}

// NormalizeWebhook returns the first event of the body.
func (a *CloudAPIAdapter) NormalizeWebhook(raw []byte) webhook.NormalizedWebhook {
	return a.NormalizeBatch(raw)[0]
}

// NormalizeBatch returns one event per message and per status, in body order.
// It never returns an empty slice.
func (a *CloudAPIAdapter) NormalizeBatch(raw []byte) []webhook.NormalizedWebhook {
	base := a.envelope(raw)
	root, ok := parse(raw)
	if !ok {
		a.unmapped(&base, "")
		return []webhook.NormalizedWebhook{base}
	}

	var (
		out   []webhook.NormalizedWebhook
		field string
	)
	root.Get("entry").ForEach(func(_, entry gjson.Result) bool {
		entry.Get("changes").ForEach(func(_, change gjson.Result) bool {
			if field == "" {
				field = change.Get("field").String()
			}
			value := change.Get("value")
			phoneNumberID := value.Get("metadata.phone_number_id").String()
			owner := value.Get("metadata.display_phone_number").String()

			names := map[string]string{}
			value.Get("contacts").ForEach(func(_, c gjson.Result) bool {
				names[c.Get("wa_id").String()] = c.Get("profile.name").String()
				return true
			})

			value.Get("messages").ForEach(func(_, m gjson.Result) bool {
				w := base
				w.InstanceID = phoneNumberID
				w.Event = webhook.EventMessageReceived
				w.Data = webhook.MessageData{Message: cloudMessage(m, owner, names, base.Timestamp)}
				out = append(out, w)
				return true
			})

			value.Get("statuses").ForEach(func(_, s gjson.Result) bool {
				w := base
				w.InstanceID = phoneNumberID
				w.Event = webhook.EventMessageUpdated
				w.Timestamp = parseTimestamp(s.Get("timestamp"), base.Timestamp)
				w.Data = statusUpdate(s, []string{"id"}, []string{"recipient_id"}, []string{"status"})
				out = append(out, w)
				return true
			})
			return true
		})
		return true
	})

	if len(out) == 0 {
		if field == "" {
			field = root.Get("object").String()
		}
		a.unmapped(&base, field)
		return []webhook.NormalizedWebhook{base}
	}
	return out
}

func cloudMessage(m gjson.Result, owner string, names map[string]string, fallback time.Time) webhook.NormalizedMessage {
	from := m.Get("from").String()
	typ := m.Get("type").String()
	node := m.Get(typ)

	msg := webhook.NormalizedMessage{
		ID:         m.Get("id").String(),
		From:       digitsOnly(from),
		To:         digitsOnly(owner),
		SenderName: names[from],
		Timestamp:  parseTimestamp(m.Get("timestamp"), fallback),
	}

	switch typ {
	case "text":
		msg.Content.Text = node.Get("body").String()
	case "image", "video", "audio", "document", "sticker":
		msg.Content = webhook.MessageContent{
			MediaURL: node.Get("url").String(),
			MimeType: node.Get("mime_type").String(),
			FileName: node.Get("filename").String(),
			Caption:  node.Get("caption").String(),
		}
	case "location":
		msg.Content.Text = cloudLocationText(node)
	case "contacts":
		msg.Content.Text = m.Get("contacts.0.name.formatted_name").String()
	case "interactive":
		msg.Content.Text = firstString(node, "button_reply.title", "list_reply.title", "nfm_reply.body")
	case "button":
		msg.Content.Text = node.Get("text").String()
	case "reaction":
		msg.Content.Text = node.Get("emoji").String()
	}

	msg.Type = detectType(typ, msg.Content.MimeType, typ == "document", node.Get("voice").Bool())
	return msg
}

func cloudLocationText(v gjson.Result) string {
	coords := fmt.Sprintf("%f,%f", v.Get("latitude").Float(), v.Get("longitude").Float())
	if name := firstString(v, "name", "address"); name != "" {
		return name + " (" + coords + ")"
	}
	return coords
}
