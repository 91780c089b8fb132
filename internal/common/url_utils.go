package common

import (
	"net/url"
	"strings"
)

// ResolveURL resolves a possibly relative href against a base URL, the way a
// browser would. Returns the href unchanged when the base cannot be parsed.
func ResolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return base
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}

	ref, err := url.Parse(href)
	if err != nil {
		return href
	}

	return baseURL.ResolveReference(ref).String()
}

// NormalizeJobURL canonicalizes a job posting URL for identity comparison:
// lowercased, query string and fragment dropped, trailing slashes trimmed.
// Two crawls of the same posting produce the same normalized URL even when
// the ATS appends tracking parameters.
func NormalizeJobURL(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return ""
	}

	if idx := strings.IndexAny(trimmed, "?#"); idx >= 0 {
		trimmed = trimmed[:idx]
	}

	return strings.ToLower(strings.TrimRight(trimmed, "/"))
}

// HostOf returns the lowercased host portion of a URL, without port or
// "www." prefix. Returns "" when the URL does not parse.
func HostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(parsed.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// BaseDomain reduces a host to its registrable two-label form, so
// "careers.acme.com" and "www.acme.com" both map to "acme.com". Multi-label
// public suffixes are not special-cased; careers pages on .co.uk style
// domains still compare consistently against themselves.
func BaseDomain(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		return strings.Join(parts[len(parts)-2:], ".")
	}
	return host
}

// SameBaseDomain reports whether two hosts share a registrable domain.
func SameBaseDomain(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return BaseDomain(a) == BaseDomain(b)
}
