package privacy

import (
	"net/url"
	"strings"

	"orderbridge/internal/constants"
)

// keepTail replaces all but the last n bytes of s with '*'
func keepTail(s string, n int) string {
	hidden := len(s) - n
	if hidden <= 0 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", hidden) + s[hidden:]
}

// MaskPhoneNumber keeps a leading "+" and the last digits:
// "+1234567890" -> "+******7890"
func MaskPhoneNumber(phone string) string {
	digits, international := strings.CutPrefix(phone, "+")
	masked := keepTail(digits, constants.DefaultPhoneMaskLength)
	if international {
		return "+" + masked
	}
	return masked
}

// MaskMediaID hides a provider media identifier but its last characters
func MaskMediaID(mediaID string) string {
	return keepTail(mediaID, constants.DefaultMediaIDMaskLength)
}

// MaskURL drops everything but scheme, host and path. Provider media URLs
// carry signed tokens in the query string.
func MaskURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "[invalid-url]"
	}
	return (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: u.Path}).String()
}

// MaskRecipient masks a WhatsApp recipient, which is normally a phone number
// without the leading "+"
func MaskRecipient(recipient string) string {
	if strings.Trim(strings.TrimPrefix(recipient, "+"), "0123456789") == "" {
		return MaskPhoneNumber(recipient)
	}
	return keepTail(recipient, 4)
}

var fieldMaskers = map[string]func(string) string{
	"phone":        MaskPhoneNumber,
	"phone_number": MaskPhoneNumber,
	"from":         MaskPhoneNumber,
	"to":           MaskPhoneNumber,
	"recipient":    MaskRecipient,
	"media_id":     MaskMediaID,
	"url":          MaskURL,
	"source_url":   MaskURL,
	"media_url":    MaskURL,
}

// MaskSensitiveFields returns a copy of fields with known identifier fields
// masked. Non-string values are copied as they are.
func MaskSensitiveFields(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return nil
	}

	out := make(map[string]interface{}, len(fields))
	for key, value := range fields {
		s, isString := value.(string)
		if mask, ok := fieldMaskers[key]; ok && isString {
			out[key] = mask(s)
			continue
		}
		out[key] = value
	}
	return out
}
