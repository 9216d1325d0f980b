// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const defaultRegion = "MX"

// NormalizeE164 formats a phone number to E.164. If parsing fails, it returns the trimmed input.
func NormalizeE164(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}

	number, err := phonenumbers.Parse(trimmed, defaultRegion)
	if err != nil {
		return trimmed
	}

	if !phonenumbers.IsValidNumber(number) {
		return trimmed
	}

	return phonenumbers.Format(number, phonenumbers.E164)
}

// ToWhatsAppJID converts a phone number to the gateway's JID form
// (digits only, no plus, @s.whatsapp.net suffix).
func ToWhatsAppJID(input string) string {
	normalized := strings.TrimPrefix(NormalizeE164(input), "+")
	if normalized == "" {
		return ""
	}
	return normalized + "@s.whatsapp.net"
}

// FromWhatsAppJID extracts the bare phone number from a gateway JID.
func FromWhatsAppJID(jid string) string {
	number, _, found := strings.Cut(jid, "@")
	if !found {
		return jid
	}
	return "+" + number
}
