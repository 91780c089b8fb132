package fetcher

import (
	"strings"
)

// robotsRule is a single Allow/Disallow line scoped to a user-agent group.
type robotsRule struct {
	allow bool
	path  string
}

// robotsRules holds the parsed rule groups of one robots.txt file, keyed by
// lowercased user-agent token.
type robotsRules struct {
	groups map[string][]robotsRule
}

// parseRobots parses the subset of robots.txt that matters for polite
// crawling: User-agent groups with Allow/Disallow path rules. Unknown
// directives (Sitemap, Crawl-delay, ...) are ignored.
func parseRobots(body string) *robotsRules {
	rules := &robotsRules{groups: make(map[string][]robotsRule)}

	var currentAgents []string
	lastWasAgent := false

	for _, line := range strings.Split(body, "\n") {
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "user-agent":
			agent := strings.ToLower(value)
			if lastWasAgent {
				currentAgents = append(currentAgents, agent)
			} else {
				currentAgents = []string{agent}
			}
			if _, exists := rules.groups[agent]; !exists {
				rules.groups[agent] = []robotsRule{}
			}
			lastWasAgent = true

		case "allow", "disallow":
			lastWasAgent = false
			if len(currentAgents) == 0 {
				continue
			}
			// An empty Disallow allows everything; record nothing.
			if value == "" {
				continue
			}
			rule := robotsRule{allow: key == "allow", path: value}
			for _, agent := range currentAgents {
				rules.groups[agent] = append(rules.groups[agent], rule)
			}

		default:
			lastWasAgent = false
		}
	}

	return rules
}

// Allowed reports whether the user agent may fetch the path. Group selection
// picks the longest agent token contained in the user agent, falling back to
// "*". Within a group the longest matching path rule wins; ties go to Allow.
func (r *robotsRules) Allowed(userAgent, path string) bool {
	if r == nil || len(r.groups) == 0 {
		return true
	}
	if path == "" {
		path = "/"
	}

	group := r.selectGroup(userAgent)
	if group == nil {
		return true
	}

	bestLen := -1
	bestAllow := true
	for _, rule := range group {
		if !pathMatches(rule.path, path) {
			continue
		}
		specificity := len(rule.path)
		if specificity > bestLen || (specificity == bestLen && rule.allow && !bestAllow) {
			bestLen = specificity
			bestAllow = rule.allow
		}
	}

	if bestLen < 0 {
		return true
	}
	return bestAllow
}

func (r *robotsRules) selectGroup(userAgent string) []robotsRule {
	ua := strings.ToLower(userAgent)

	var best []robotsRule
	bestLen := -1
	for agent, rules := range r.groups {
		if agent == "*" {
			continue
		}
		if strings.Contains(ua, agent) && len(agent) > bestLen {
			best = rules
			bestLen = len(agent)
		}
	}
	if bestLen >= 0 {
		return best
	}

	if rules, ok := r.groups["*"]; ok {
		return rules
	}
	return nil
}

// pathMatches implements robots.txt path matching with "*" wildcards and the
// "$" end anchor.
func pathMatches(pattern, path string) bool {
	anchored := strings.HasSuffix(pattern, "$")
	if anchored {
		pattern = strings.TrimSuffix(pattern, "$")
	}

	segments := strings.Split(pattern, "*")

	pos := 0
	for i, segment := range segments {
		if segment == "" {
			continue
		}
		if i == 0 {
			if !strings.HasPrefix(path, segment) {
				return false
			}
			pos = len(segment)
			continue
		}
		idx := strings.Index(path[pos:], segment)
		if idx < 0 {
			return false
		}
		pos += idx + len(segment)
	}

	if anchored {
		// The last literal segment must reach the end of the path.
		if strings.HasSuffix(pattern, "*") {
			return true
		}
		return pos == len(path)
	}
	return true
}
