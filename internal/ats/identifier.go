package ats

import "strings"

// invalidIdentifiers are strings extractors commonly pick up from embed URLs
// and JS templates that are never real tenant identifiers.
var invalidIdentifiers = map[string]struct{}{
	"embed":          {},
	"job_board":      {},
	"js":             {},
	"css":            {},
	"api":            {},
	"jobs":           {},
	"undefined":      {},
	"${boardtoken}":  {},
	"${ghslug}":      {},
	"${board_token}": {},
}

// ValidIdentifier reports whether a captured identifier can key a vendor API.
// Blocklisted values, unresolved template placeholders, strings carrying
// HTML/JS fragments and anything over 100 chars are rejected; callers clear
// stored identifiers that fail this check so detection runs again.
func ValidIdentifier(id string) bool {
	if id == "" || len(id) > 100 {
		return false
	}
	if _, bad := invalidIdentifiers[strings.ToLower(id)]; bad {
		return false
	}
	if strings.ContainsAny(id, "<>{}()\"'`;= \t\n") {
		return false
	}
	return true
}
