package util

import (
	"strings"
	"time"
)

// ParseDateRFC3339 converts a Date header into UTC RFC3339, or "" if none of
// the layouts Gmail commonly produces match.
func ParseDateRFC3339(h string) string {
	h = strings.TrimSpace(h)
	if h == "" {
		return ""
	}
	// Strip a trailing comment such as "(UTC)" or "(PDT)".
	if i := strings.LastIndex(h, " ("); i > 0 && strings.HasSuffix(h, ")") {
		h = h[:i]
	}
	layouts := []string{
		time.RFC1123Z,
		time.RFC1123,
		time.RFC822Z,
		time.RFC822,
		time.RFC850,
		time.RFC3339,
		"Mon, 2 Jan 2006 15:04:05 -0700",
		"2 Jan 2006 15:04:05 -0700",
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, h); err == nil {
			return t.UTC().Format(time.RFC3339)
		}
	}
	return ""
}
