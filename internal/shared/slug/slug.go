package slug

import (
	"regexp"
	"strings"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// FromName lowercases s and collapses everything that is not [a-z0-9] into single dashes.
// fallback is returned when nothing usable remains.
func FromName(s, fallback string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonAlnum.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return fallback
	}
	return s
}

// WithSuffix appends a short disambiguator, used when a slug is already taken.
func WithSuffix(s, suffix string) string {
	suffix = FromName(suffix, "")
	if suffix == "" {
		return s
	}
	return s + "-" + suffix
}
