// Package email holds small helpers for addressing node operators.
package email

import (
	"net/mail"
	"strings"
	"unicode"
)

const fallbackName = "there"

// FirstName picks a name to greet the owner of addr with. A display name
// ("Ada Lovelace <ada@example.com>") wins; otherwise the first segment of the
// local part is used, so "grace.hopper@example.com" yields "Grace".
func FirstName(addr string) string {
	local := strings.TrimSpace(addr)
	if parsed, err := mail.ParseAddress(local); err == nil {
		if fields := strings.Fields(parsed.Name); len(fields) > 0 {
			return capitalize(fields[0])
		}
		local = parsed.Address
	}
	if at := strings.IndexByte(local, '@'); at >= 0 {
		local = local[:at]
	}

	parts := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+' || unicode.IsDigit(r)
	})
	if len(parts) == 0 {
		return fallbackName
	}
	return capitalize(parts[0])
}

func capitalize(s string) string {
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
