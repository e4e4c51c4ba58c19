package names

import (
	"strings"
)

// WildcardToken stands in for the space or hyphen joining a compound given name.
const WildcardToken = "+"

var joinReplacer = strings.NewReplacer(" ", WildcardToken, "-", WildcardToken)

// StripInitials trims the name and removes every initial ("J.", "Q.") from it.
//
// For each period, the span from the nearest preceding space (or the start of
// the string) through the period is removed and the result re-trimmed, so
// "Robert J. Smith" becomes "Robert  Smith" and "J. Edgar" becomes "Edgar".
func StripInitials(name string) string {
	s := strings.TrimSpace(name)
	for {
		dot := strings.IndexByte(s, '.')
		if dot < 0 {
			return s
		}
		start := strings.LastIndexByte(s[:dot], ' ') + 1
		s = strings.TrimSpace(s[:start] + s[dot+1:])
	}
}

// NormalizeKey reduces a raw name to the key used for dictionary comparison:
// initials stripped and every space or hyphen replaced by the wildcard token.
// It returns "" when nothing usable remains.
func NormalizeKey(name string) string {
	s := StripInitials(name)
	if s == "" {
		return ""
	}
	return joinReplacer.Replace(s)
}

// HasWildcard reports whether a key or pattern contains the wildcard token.
func HasWildcard(s string) bool {
	return strings.Contains(s, WildcardToken)
}

// stripWildcard removes every wildcard token.
func stripWildcard(s string) string {
	return strings.ReplaceAll(s, WildcardToken, "")
}

// fold maps s to the key used for case-insensitive comparison. Each rune is
// upper-cased on its own with the simple Unicode mapping, so "ß" is never
// expanded to "SS" and "σ" and "ς" compare equal.
func fold(s string) string {
	return strings.ToUpper(s)
}
