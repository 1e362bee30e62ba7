package providers

import (
	"fmt"
	"strings"
	"time"

	"github.com/AzielCF/az-wap-ingest/domains/webhook"
	"github.com/tidwall/gjson"
)

// mediaNodes are the Baileys message nodes that carry a downloadable file.
var mediaNodes = []string{
	"imageMessage",
	"videoMessage",
	"audioMessage",
	"documentMessage",
	"documentWithCaptionMessage.message.documentMessage",
	"stickerMessage",
	"ptvMessage",
}

// normalizeBaileysMessage reads a WebMessageInfo-shaped object (key, message,
// messageType, pushName, messageTimestamp). UAZapi and Evolution both forward
// it as is. owner is the instance's own number, used to fill From/To.
func normalizeBaileysMessage(data gjson.Result, owner string, fallback time.Time) webhook.NormalizedMessage {
	key := data.Get("key")
	remoteJid := key.Get("remoteJid").String()
	if isHiddenUserJID(remoteJid) {
		if alt := firstString(key, "senderPn", "remoteJidAlt"); alt != "" {
			remoteJid = alt
		}
	}

	msg := webhook.NormalizedMessage{
		ID:         key.Get("id").String(),
		IsFromMe:   key.Get("fromMe").Bool(),
		IsGroup:    isGroupJID(remoteJid),
		SenderName: data.Get("pushName").String(),
		Timestamp:  parseTimestamp(data.Get("messageTimestamp"), fallback),
	}
	setParties(&msg, phoneFromJID(remoteJid), phoneFromJID(owner))
	if msg.IsGroup {
		msg.Participant = phoneFromJID(firstString(key, "participantPn", "participant"))
	}

	body := data.Get("message")
	content, inferred, hasDocument, ptt := baileysContent(body)
	if content.MediaURL == "" {
		content.MediaURL = firstString(body, "mediaUrl")
	}
	msg.Content = content

	label := data.Get("messageType").String()
	if _, ok := explicitType(label); !ok && content.MimeType == "" && !hasDocument {
		label = inferred
	}
	msg.Type = detectType(label, content.MimeType, hasDocument, ptt)
	return msg
}

// setParties fills From/To. From is always the sender: the remote party for
// inbound messages, the instance owner for our own.
func setParties(msg *webhook.NormalizedMessage, remote, owner string) {
	if msg.IsFromMe {
		msg.From = owner
		msg.To = remote
		return
	}
	msg.From = remote
	msg.To = owner
}

// baileysContent extracts the displayable content of a Baileys message node.
// inferred is the node name, used when no explicit type label is present.
func baileysContent(body gjson.Result) (content webhook.MessageContent, inferred string, hasDocument, ptt bool) {
	if v := body.Get("conversation"); v.Exists() {
		return webhook.MessageContent{Text: v.String()}, "conversation", false, false
	}
	if v := body.Get("extendedTextMessage"); v.Exists() {
		return webhook.MessageContent{Text: v.Get("text").String()}, "extendedTextMessage", false, false
	}

	for _, path := range mediaNodes {
		node := body.Get(path)
		if !node.Exists() {
			continue
		}
		content = webhook.MessageContent{
			MediaURL: node.Get("url").String(),
			MimeType: node.Get("mimetype").String(),
			FileName: firstString(node, "fileName", "title"),
			Caption:  node.Get("caption").String(),
		}
		isDoc := strings.HasPrefix(path, "document")
		return content, path[strings.LastIndexByte(path, '.')+1:], isDoc, node.Get("ptt").Bool()
	}

	if v := firstExisting(body, "locationMessage", "liveLocationMessage"); v.Exists() {
		return webhook.MessageContent{Text: locationText(v)}, "locationMessage", false, false
	}
	if v := body.Get("contactMessage"); v.Exists() {
		return webhook.MessageContent{Text: firstString(v, "displayName", "vcard")}, "contactMessage", false, false
	}
	if v := body.Get("contactsArrayMessage"); v.Exists() {
		return webhook.MessageContent{Text: v.Get("displayName").String()}, "contactsArrayMessage", false, false
	}
	if v := firstExisting(body, "pollCreationMessage", "pollCreationMessageV2", "pollCreationMessageV3"); v.Exists() {
		return webhook.MessageContent{Text: v.Get("name").String()}, "pollCreationMessage", false, false
	}
	if v := body.Get("reactionMessage"); v.Exists() {
		return webhook.MessageContent{Text: v.Get("text").String()}, "reactionMessage", false, false
	}
	if v := firstExisting(body, "buttonsResponseMessage", "listResponseMessage", "templateButtonReplyMessage"); v.Exists() {
		return webhook.MessageContent{Text: firstString(v, "selectedDisplayText", "title", "selectedId")}, "buttonsResponseMessage", false, false
	}
	return webhook.MessageContent{}, "", false, false
}

func locationText(v gjson.Result) string {
	lat, lng := v.Get("degreesLatitude").Float(), v.Get("degreesLongitude").Float()
	coords := fmt.Sprintf("%f,%f", lat, lng)
	if name := firstString(v, "name", "address"); name != "" {
		return name + " (" + coords + ")"
	}
	return coords
}
