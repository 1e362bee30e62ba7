// Package sanitize cleans untrusted text coming from provider payloads before
// it is stored. All functions are pure.
package sanitize

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
)

// MaxLength bounds contact names and file names.
const MaxLength = 255

// maxPasses bounds the fixpoint loop in Content. Input that is still changing
// after this many passes is treated as hostile.
const maxPasses = 8

// eventHandlerPattern matches DOM event handler attributes only, so plain words
// such as "one = 1" survive.
var eventHandlerPattern = regexp.MustCompile(`(?i)\bon(?:` +
	`abort|afterprint|animation(?:start|end|iteration)|auxclick|beforeinput|beforeprint|beforeunload|begin|blur|` +
	`cancel|canplay(?:through)?|change|click|close|contextmenu|copy|cuechange|cut|` +
	`dblclick|drag(?:start|end|enter|leave|over|exit)?|drop|durationchange|emptied|end|ended|error|` +
	`focus(?:in|out)?|formdata|hashchange|input|invalid|key(?:down|press|up)|` +
	`load(?:eddata|edmetadata|start|end)?|message|mouse(?:down|enter|leave|move|out|over|up|wheel)|` +
	`offline|online|pagehide|pageshow|paste|pause|play|playing|pointer(?:down|enter|leave|move|out|over|up|cancel)|` +
	`popstate|progress|ratechange|repeat|reset|resize|scroll(?:end)?|search|seeked|seeking|select(?:start|ionchange)?|` +
	`show|stalled|storage|submit|suspend|timeupdate|toggle|touch(?:start|end|move|cancel)|` +
	`transition(?:start|end|run|cancel)|unload|volumechange|waiting|wheel` +
	`)\s*=`)

var (
	dangerousPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)javascript\s*:`),
		regexp.MustCompile(`(?i)data\s*:\s*text/html`),
		eventHandlerPattern,
	}

	fileNameReplacer = strings.NewReplacer("/", "_", `\`, "_", "\x00", "_")

	// stripHTML is a variable so tests can force the failure path.
	stripHTML = stripTags
)

// Content strips every HTML tag (keeping inner text), script-like elements
// with their content, dangerous URI schemes and inline event handlers.
// It returns "" if anything goes wrong.
func Content(text string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithField("panic", r).Error("[SANITIZE] Content sanitization failed, dropping content")
			out = ""
		}
	}()

	current := text
	for i := 0; i < maxPasses; i++ {
		next := contentPass(current)
		if next == current {
			return next
		}
		current = next
	}
	return ""
}

// ContactName strips HTML and truncates to MaxLength runes. It falls back to
// the truncated raw name on failure, so the result is empty only if the input
// was.
func ContactName(name string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithField("panic", r).Warn("[SANITIZE] Contact name sanitization failed, using raw name")
			out = truncate(name, MaxLength)
		}
	}()

	return truncate(strings.TrimSpace(stripHTML(name)), MaxLength)
}

// FileName makes name safe to use as a single path element.
func FileName(name string) string {
	cleaned := fileNameReplacer.Replace(name)
	cleaned = strings.ReplaceAll(cleaned, "..", "__")

	var b strings.Builder
	b.Grow(len(cleaned))
	for _, r := range cleaned {
		if isFileNameRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return truncate(b.String(), MaxLength)
}

// URL returns the normalized URL when it is an absolute http(s) URL.
func URL(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if u.Host == "" {
		return "", false
	}
	return u.String(), true
}

func contentPass(text string) string {
	out := stripHTML(text)
	for _, re := range dangerousPatterns {
		out = re.ReplaceAllString(out, "")
	}
	return strings.TrimSpace(out)
}

func stripTags(text string) string {
	if !strings.ContainsAny(text, "<&") {
		return text
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		panic(err)
	}
	doc.Find("script, style, iframe, object, embed, noscript, template").Remove()
	return doc.Text()
}

func isFileNameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.', r == '_', r == '-':
		return true
	}
	return false
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
