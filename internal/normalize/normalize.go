// Package normalize provides utilities for normalizing and sanitizing data.
package normalize

import (
	"net/url"
	"regexp"
	"strings"
)

// isbnPattern accepts ISBN-10 (nine digits plus a digit or X check char)
// and ISBN-13 (thirteen digits) after stripping separators.
var isbnPattern = regexp.MustCompile(`^(?:\d{9}[\dX]|\d{13})$`)

// nonISBNChars matches everything that is not an ISBN digit or check char.
var nonISBNChars = regexp.MustCompile(`[^0-9Xx]`)

// ISBN strips separators from a raw ISBN string, uppercases the check
// character, and returns the canonical form. Returns "" when the remainder
// is not a valid ISBN-10 or ISBN-13 shape.
func ISBN(raw string) string {
	cleaned := strings.ToUpper(nonISBNChars.ReplaceAllString(raw, ""))
	if !isbnPattern.MatchString(cleaned) {
		return ""
	}
	return cleaned
}

// bareDomain matches host-only values like "example.com/path" that arrive
// without a scheme in hand-edited spreadsheets.
var bareDomain = regexp.MustCompile(`(?i)^[a-z0-9.-]+\.[a-z]{2,}(/|$)`)

// HTTPURL trims a raw value and returns it only when it parses as an
// absolute http or https URL. Returns "" otherwise.
func HTTPURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return ""
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ""
	}
	return trimmed
}

// CoerceHTTPURL is HTTPURL with a https:// prefix added for scheme-less
// bare-domain values. Returns "" when no valid absolute URL can be formed.
func CoerceHTTPURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	if bareDomain.MatchString(trimmed) {
		trimmed = "https://" + trimmed
	}
	return HTTPURL(trimmed)
}

// HTTPOrRootRelativeURL accepts absolute http(s) URLs and root-relative
// paths (uploaded images live under "/uploads/..."). Returns "" otherwise.
func HTTPOrRootRelativeURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "/") {
		return trimmed
	}
	return HTTPURL(trimmed)
}

// UpgradeHTTPS rewrites a plain http:// URL to https://. External image hosts
// serve both, and mixed-content blocking makes http covers useless in browsers.
func UpgradeHTTPS(u string) string {
	if strings.HasPrefix(u, "http://") {
		return "https://" + strings.TrimPrefix(u, "http://")
	}
	return u
}
