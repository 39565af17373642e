package util

import (
	"net/mail"
	"strings"
	"unicode/utf8"
)

// Ellipsis is appended to values cut by Truncate.
const Ellipsis = "..."

// Truncate keeps the first max runes of s and appends Ellipsis when s is
// longer than max runes. Values at or under the limit come back unchanged.
func Truncate(s string, max int) string {
	if max < 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i] + Ellipsis
		}
		n++
	}
	return s
}

// SenderAddress returns the lowercased address from a From header, dropping a
// +tag in the local part. Lists fall back to the first parsable entry.
// Returns "" when nothing parses.
func SenderAddress(from string) string {
	from = strings.TrimSpace(from)
	if from == "" {
		return ""
	}
	addr, err := mail.ParseAddress(from)
	if err != nil {
		addr = nil
		for _, part := range strings.Split(from, ",") {
			if a, e := mail.ParseAddress(strings.TrimSpace(part)); e == nil {
				addr = a
				break
			}
		}
		if addr == nil {
			return ""
		}
	}

	email := strings.ToLower(addr.Address)
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return email
	}
	if plus := strings.IndexByte(local, '+'); plus >= 0 {
		local = local[:plus]
	}
	return local + "@" + domain
}
