package canonical

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	// Canonical identifiers: lowercase alphanumeric plus '.', '_', '-'.
	canonicalIDRe = regexp.MustCompile(`^[a-z0-9._-]+$`)
	invalidIDRe   = regexp.MustCompile(`[^a-z0-9._-]`)
	underscoreRe  = regexp.MustCompile(`_+`)
)

// NormalizeUnicode returns the NFC form of s, so equivalent Unicode
// sequences serialize identically.
func NormalizeUnicode(s string) string {
	return norm.NFC.String(s)
}

// NormalizeWhitespace trims s and collapses internal whitespace runs to
// single spaces.
func NormalizeWhitespace(s string) string {
	return whitespaceRe.ReplaceAllString(strings.TrimSpace(s), " ")
}

// String canonicalizes a string value: NFC normalization, trim, and
// whitespace collapse.
func String(s string) string {
	return NormalizeWhitespace(NormalizeUnicode(s))
}

// ValidateID reports whether s is a canonical identifier.
func ValidateID(s string) bool {
	return canonicalIDRe.MatchString(s)
}

// ToID converts an arbitrary string to a canonical identifier: lowercase,
// invalid characters replaced by '_', runs collapsed, edges stripped.
func ToID(s string) (string, error) {
	s = strings.ToLower(NormalizeUnicode(s))
	s = invalidIDRe.ReplaceAllString(s, "_")
	s = underscoreRe.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "", newError(CodeInvalidID, "canonical ID cannot be empty")
	}
	return s, nil
}
