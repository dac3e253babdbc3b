// Package jid normalizes WhatsApp identifiers (JIDs) into a canonical,
// comparable form. A raw JID looks like "5551234567:12@s.whatsapp.net" where
// ":12" is a per-device suffix that must not affect identity comparison.
package jid

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultPreviewLen is the preview width used for the recent-senders log.
const DefaultPreviewLen = 80

// Normalize canonicalizes a JID: lowercase, device suffix stripped from the
// local part, and the legacy "whatsapp.net" domain rewritten to
// "s.whatsapp.net". Other domains ("lid", "g.us") pass through unchanged.
// Empty input yields an empty identity.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}
	raw = strings.ToLower(raw)

	local, domain, hasDomain := strings.Cut(raw, "@")
	if i := strings.IndexByte(local, ':'); i >= 0 {
		local = local[:i]
	}
	if !hasDomain || domain == "" {
		return local
	}
	if domain == "whatsapp.net" {
		domain = "s.whatsapp.net"
	}
	return local + "@" + domain
}

// Digits strips everything but decimal digits.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// PhoneFromJID extracts the base phone number from a JID's local part.
// Legacy signal only; not used for primary authorization.
func PhoneFromJID(jid string) string {
	local, _, _ := strings.Cut(jid, "@")
	local, _, _ = strings.Cut(local, ":")
	return Digits(local)
}

// Fold lowercases, trims and strips diacritics so that group subjects can be
// compared insensitively ("Café" matches "cafe").
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

// Preview shortens text to at most n runes, appending an ellipsis when
// truncated. n <= 0 falls back to DefaultPreviewLen.
func Preview(s string, n int) string {
	if n <= 0 {
		n = DefaultPreviewLen
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-1]) + "…"
}
