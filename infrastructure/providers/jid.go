package providers

import (
	"strings"

	"go.mau.fi/whatsmeow/types"
)

// phoneFromJID reduces a WhatsApp JID (or a bare number) to its digits.
// "5511999@s.whatsapp.net" and "5511999:12@s.whatsapp.net" both give "5511999".
func phoneFromJID(jid string) string {
	jid = strings.TrimSpace(jid)
	if jid == "" {
		return ""
	}
	if parsed, err := types.ParseJID(jid); err == nil && parsed.User != "" {
		return digitsOnly(parsed.User)
	}
	if i := strings.IndexByte(jid, '@'); i >= 0 {
		jid = jid[:i]
	}
	if i := strings.IndexByte(jid, ':'); i >= 0 {
		jid = jid[:i]
	}
	return digitsOnly(jid)
}

func isGroupJID(jid string) bool {
	return strings.HasSuffix(strings.TrimSpace(jid), "@"+types.GroupServer)
}

func isHiddenUserJID(jid string) bool {
	return strings.HasSuffix(strings.TrimSpace(jid), "@"+types.HiddenUserServer)
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
