package fetcher

import (
	"testing"
)

const sampleRobots = `# crawl policy
User-agent: *
Disallow: /admin
Disallow: /private/
Allow: /private/jobs

User-agent: badbot
Disallow: /

User-agent: goodbot
Allow: /
`

func TestRobotsAllowed(t *testing.T) {
	rules := parseRobots(sampleRobots)

	tests := []struct {
		name string
		ua   string
		path string
		want bool
	}{
		{"wildcard allows root", "reperio/1.0", "/", true},
		{"wildcard blocks admin", "reperio/1.0", "/admin", false},
		{"wildcard blocks admin subpath", "reperio/1.0", "/admin/users", false},
		{"wildcard blocks private", "reperio/1.0", "/private/data", false},
		{"longer allow wins over disallow", "reperio/1.0", "/private/jobs", true},
		{"specific agent fully blocked", "Mozilla badbot/2.0", "/careers", false},
		{"specific agent fully allowed", "goodbot", "/admin", true},
		{"unrelated path allowed", "reperio/1.0", "/careers", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rules.Allowed(tt.ua, tt.path); got != tt.want {
				t.Errorf("Allowed(%q, %q) = %v, want %v", tt.ua, tt.path, got, tt.want)
			}
		})
	}
}

func TestRobotsEmptyDisallowAllowsAll(t *testing.T) {
	rules := parseRobots("User-agent: *\nDisallow:\n")
	if !rules.Allowed("any", "/anything") {
		t.Error("empty Disallow should allow everything")
	}
}

func TestRobotsNoRulesAllowsAll(t *testing.T) {
	rules := parseRobots("")
	if !rules.Allowed("any", "/x") {
		t.Error("empty robots.txt should allow everything")
	}

	var nilRules *robotsRules
	if !nilRules.Allowed("any", "/x") {
		t.Error("nil rules should allow everything")
	}
}

func TestRobotsSharedGroup(t *testing.T) {
	// Two consecutive User-agent lines share the rule block that follows.
	rules := parseRobots("User-agent: alpha\nUser-agent: beta\nDisallow: /x\n")

	if rules.Allowed("alpha", "/x") {
		t.Error("alpha should be blocked from /x")
	}
	if rules.Allowed("beta", "/x/y") {
		t.Error("beta should be blocked from /x/y")
	}
	if !rules.Allowed("gamma", "/x") {
		t.Error("gamma has no group and no wildcard, should be allowed")
	}
}

func TestPathMatches(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"/jobs", "/jobs", true},
		{"/jobs", "/jobs/123", true},
		{"/jobs", "/careers", false},
		{"/*/apply", "/jobs/apply", true},
		{"/*/apply", "/apply", false},
		{"/jobs$", "/jobs", true},
		{"/jobs$", "/jobs/123", false},
		{"/*.json$", "/boards/acme.json", true},
		{"/*.json$", "/boards/acme.json.bak", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+" vs "+tt.path, func(t *testing.T) {
			if got := pathMatches(tt.pattern, tt.path); got != tt.want {
				t.Errorf("pathMatches(%q, %q) = %v, want %v", tt.pattern, tt.path, got, tt.want)
			}
		})
	}
}
