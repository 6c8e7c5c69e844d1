// Package codes canonicalizes free-form release identifiers and
// transcodes them into provider-internal content IDs.
//
// A canonical code has the shape PREFIX-NUMBER (uppercase alphanumeric
// prefix of 2-6 runes, 3-5 digit number), e.g. SONE-638. Providers key
// their catalogs by a derived content ID such as "sone00638"; the
// derivation rules differ per label prefix and are kept in a data-driven
// rule table so new prefixes are a table edit, not a code change.
package codes

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

var (
	codePattern      = regexp.MustCompile(`^[A-Za-z0-9]{2,6}-?\d{3,5}$`)
	contentIDPattern = regexp.MustCompile(`^[a-zA-Z]+\d+$`)
	extractPattern   = regexp.MustCompile(`[A-Za-z0-9]{2,6}-?\d{3,5}`)
	invertPattern    = regexp.MustCompile(`^([a-zA-Z]+)(\d+)`)
	stripPattern     = regexp.MustCompile(`[^A-Za-z0-9-]`)
)

// Normalize canonicalizes a raw identifier: full-width runes are folded
// to their narrow forms, everything but letters, digits and hyphen is
// stripped, and the result is uppercased. It never fails; Validate
// gates whether the result is usable.
func Normalize(raw string) string {
	folded := width.Fold.String(norm.NFKC.String(raw))
	return strings.ToUpper(stripPattern.ReplaceAllString(folded, ""))
}

// Validate reports whether code looks like a canonical code or an
// already-derived content ID (letters directly followed by digits).
func Validate(code string) bool {
	if code == "" {
		return false
	}
	if contentIDPattern.MatchString(code) {
		return true
	}
	return codePattern.MatchString(code)
}

// Extract finds the first canonical-code-shaped token in a free-form
// string (typically a file name with release-group noise around the
// code) and returns it normalized. The second result is false when no
// token matches.
func Extract(raw string) (string, bool) {
	match := extractPattern.FindString(width.Fold.String(norm.NFKC.String(raw)))
	if match == "" {
		return "", false
	}
	return Normalize(match), true
}

// ToCanonical is the best-effort inverse of content-ID derivation:
// leading letters become the uppercased prefix, the digit run loses its
// zero padding. Inputs that do not match (namespaced IDs such as
// h_1240milk00225) are returned uppercased as-is; padding width is not
// recoverable, so round-tripping only holds for default-rule codes.
func ToCanonical(contentID string) string {
	match := invertPattern.FindStringSubmatch(contentID)
	if match == nil {
		return strings.ToUpper(contentID)
	}
	prefix := strings.ToUpper(match[1])
	number := strings.TrimLeft(match[2], "0")
	if number == "" {
		number = "0"
	}
	return prefix + "-" + number
}
