// Package email derives presentable defaults from addresses so signup never
// produces a nameless account.
package email

import (
	"strings"
	"unicode"
)

// DisplayName builds a readable name from the address's local part:
// "jane.a-doe@example.com" becomes "Jane Doe". An unusable local part
// falls back to "Member".
func DisplayName(email string) string {
	localPart := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		localPart = email[:at]
	}

	parts := strings.FieldsFunc(localPart, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})
	if len(parts) == 0 {
		return "Member"
	}

	name := capitalize(parts[0])
	if len(parts) > 1 {
		name += " " + capitalize(parts[len(parts)-1])
	}
	return name
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
