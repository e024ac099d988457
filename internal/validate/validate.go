package validate

import (
	"regexp"
	"strings"
)

var (
	reID     = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	reLocale = regexp.MustCompile(`^[a-z]{2}(-[A-Za-z]{2})?$`)
)

// ID validates a simple resource identifier (product/variant/order ids).
func ID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != "" && reID.MatchString(s)
}

// Locale validates a BCP-47-ish language tag ("en", "de-AT").
func Locale(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != "" && reLocale.MatchString(s)
}

// Name validates a displayable name with a reasonable max length.
func Name(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 120 {
		return "", false
	}
	return s, true
}
