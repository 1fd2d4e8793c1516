package email

import "strings"

// Normalize trims surrounding whitespace and lowercases the domain part.
// The local part is kept as typed since some mail hosts treat it as
// case-sensitive.
func Normalize(address string) string {
	address = strings.TrimSpace(address)
	at := strings.LastIndexByte(address, '@')
	if at < 0 {
		return address
	}
	return address[:at] + "@" + strings.ToLower(address[at+1:])
}

// Fold returns the form used for case-insensitive uniqueness checks.
func Fold(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
