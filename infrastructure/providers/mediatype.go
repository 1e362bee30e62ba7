package providers

import (
	"strings"

	"github.com/AzielCF/az-wap-ingest/domains/webhook"
)

var explicitTypes = map[string]webhook.MessageType{
	"conversation":        webhook.MessageTypeText,
	"extendedtext":        webhook.MessageTypeText,
	"text":                webhook.MessageTypeText,
	"chat":                webhook.MessageTypeText,
	"image":               webhook.MessageTypeImage,
	"video":               webhook.MessageTypeVideo,
	"ptv":                 webhook.MessageTypeVideo,
	"audio":               webhook.MessageTypeAudio,
	"ptt":                 webhook.MessageTypeVoice,
	"voice":               webhook.MessageTypeVoice,
	"document":            webhook.MessageTypeDocument,
	"documentwithcaption": webhook.MessageTypeDocument,
	"location":            webhook.MessageTypeLocation,
	"livelocation":        webhook.MessageTypeLocation,
	"contact":             webhook.MessageTypeContact,
	"contacts":            webhook.MessageTypeContact,
	"contactsarray":       webhook.MessageTypeContact,
	"vcard":               webhook.MessageTypeContact,
	"sticker":             webhook.MessageTypeSticker,
	"poll":                webhook.MessageTypePoll,
	"pollcreation":        webhook.MessageTypePoll,
	"pollcreationv2":      webhook.MessageTypePoll,
	"pollcreationv3":      webhook.MessageTypePoll,
	"interactive":         webhook.MessageTypeText,
	"button":              webhook.MessageTypeText,
	"buttonsresponse":     webhook.MessageTypeText,
	"listresponse":        webhook.MessageTypeText,
	"templatebuttonreply": webhook.MessageTypeText,
	"reaction":            webhook.MessageTypeText,
}

// explicitType maps a provider type label ("imageMessage", "ImageMessage",
// "image", "ptt") to a MessageType.
func explicitType(label string) (webhook.MessageType, bool) {
	key := strings.ToLower(strings.TrimSpace(label))
	if key == "" {
		return "", false
	}
	if t, ok := explicitTypes[key]; ok {
		return t, true
	}
	t, ok := explicitTypes[strings.Replace(key, "message", "", 1)]
	return t, ok
}

// detectType prefers the explicit label and falls back to the MIME type,
// since not every payload variant fills the label.
func detectType(label, mimeType string, hasDocument, ptt bool) webhook.MessageType {
	if t, ok := explicitType(label); ok {
		if t == webhook.MessageTypeAudio && ptt {
			return webhook.MessageTypeVoice
		}
		return t
	}
	return sniffMimeType(mimeType, hasDocument, ptt)
}

func sniffMimeType(mimeType string, hasDocument, ptt bool) webhook.MessageType {
	mt := strings.ToLower(mimeType)
	switch {
	case strings.HasPrefix(mt, "image/"):
		return webhook.MessageTypeImage
	case strings.HasPrefix(mt, "video/"):
		return webhook.MessageTypeVideo
	case strings.HasPrefix(mt, "audio/"):
		if ptt {
			return webhook.MessageTypeVoice
		}
		return webhook.MessageTypeAudio
	case hasDocument || mt != "":
		return webhook.MessageTypeDocument
	default:
		return webhook.MessageTypeText
	}
}
