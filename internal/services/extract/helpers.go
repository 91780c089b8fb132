package extract

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// cleanText collapses runs of whitespace and trims the result.
func cleanText(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// absoluteURL resolves href against base. Unparseable input returns href
// unchanged so the caller still records something traceable.
func absoluteURL(base, href string) string {
	if href == "" {
		return base
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	h, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(h).String()
}

// joinLocation builds "City, State, Country" from whichever parts are
// present, falling back when all are empty.
func joinLocation(city, state, country, fallback string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{city, state, country} {
		if p = cleanText(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return fallback
	}
	return strings.Join(parts, ", ")
}

// nameOrString handles API fields that are either a bare string or an object
// with a "name" key.
func nameOrString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Name
	}
	return ""
}

// rawTrue reports whether a raw JSON value is boolean true or the string
// "true". Some vendor APIs flip between the two encodings.
func rawTrue(raw json.RawMessage) bool {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	return s == "true"
}

var navTextRe = regexp.MustCompile(`(?i)^(view\s+(all|more|jobs?)|see\s+(all|more)|apply\s+now|learn\s+more|read\s+more|click\s+here|back\s+to|home|about|contact|careers?|jobs?|openings?)$`)

// isNavigationText filters link labels that are UI chrome rather than job
// titles.
func isNavigationText(text string) bool {
	return navTextRe.MatchString(strings.TrimSpace(text))
}
