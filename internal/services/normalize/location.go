package normalize

import (
	"regexp"
	"strings"

	"github.com/ternarybob/reperio/internal/models"
)

var (
	// cityStateRe recognizes a "City, ST" shape so bare city strings still
	// classify as onsite.
	cityStateRe = regexp.MustCompile(`[A-Za-z]+,\s*[A-Z]{2}`)

	locationPrefixRe = regexp.MustCompile(`(?i)^\s*(located?\s*(in|at)?|based\s*(in|at)?)\s*`)
	locationSuffixRe = regexp.MustCompile(`(?i)\s*(area|region|office)?\s*$`)
)

type locationTable struct {
	RemotePatterns []string     `yaml:"remote_patterns"`
	HybridPatterns []string     `yaml:"hybrid_patterns"`
	OnsitePatterns []string     `yaml:"onsite_patterns"`
	Countries      []tableEntry `yaml:"countries"`
	USStates       []string     `yaml:"us_states"`
	TechHubs       []struct {
		Match string `yaml:"match"`
		Name  string `yaml:"name"`
	} `yaml:"tech_hubs"`
}

type techHub struct {
	match string
	name  string
}

// locationNormalizer classifies raw location strings into a location type
// and a list of canonical place names.
type locationNormalizer struct {
	remote    []*regexp.Regexp
	hybrid    []*regexp.Regexp
	onsite    []*regexp.Regexp
	countries []patternGroup
	statesRe  *regexp.Regexp
	hubs      []techHub
}

func newLocationNormalizer(tablesDir string) (*locationNormalizer, error) {
	var table locationTable
	if err := loadTable("locations", tablesDir, &table); err != nil {
		return nil, err
	}

	remote, err := compilePatterns(table.RemotePatterns)
	if err != nil {
		return nil, err
	}
	hybrid, err := compilePatterns(table.HybridPatterns)
	if err != nil {
		return nil, err
	}
	onsite, err := compilePatterns(table.OnsitePatterns)
	if err != nil {
		return nil, err
	}
	countries, err := compileGroups(table.Countries)
	if err != nil {
		return nil, err
	}

	hubs := make([]techHub, 0, len(table.TechHubs))
	for _, h := range table.TechHubs {
		hubs = append(hubs, techHub{match: strings.ToLower(h.Match), name: h.Name})
	}

	// State abbreviations match case-sensitively, or "3 days in office"
	// would read as Indiana.
	statesRe, err := regexp.Compile(`\b(` + strings.Join(table.USStates, "|") + `)\b`)
	if err != nil {
		return nil, err
	}

	return &locationNormalizer{
		remote:    remote,
		hybrid:    hybrid,
		onsite:    onsite,
		countries: countries,
		statesRe:  statesRe,
		hubs:      hubs,
	}, nil
}

// Normalize classifies a raw location string. A string that reads both
// remote and hybrid resolves to hybrid. The returned names keep the order
// hubs and countries are declared in.
func (n *locationNormalizer) Normalize(raw string) (string, []string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	return n.detectType(raw), n.extractLocations(raw)
}

func (n *locationNormalizer) detectType(text string) string {
	if matchAny(n.remote, text) {
		if matchAny(n.hybrid, text) {
			return models.LocationTypeHybrid
		}
		return models.LocationTypeRemote
	}
	if matchAny(n.hybrid, text) {
		return models.LocationTypeHybrid
	}
	if matchAny(n.onsite, text) {
		return models.LocationTypeOnsite
	}
	// A plain place name implies an office.
	if n.looksLikeLocation(text) {
		return models.LocationTypeOnsite
	}
	return ""
}

func (n *locationNormalizer) looksLikeLocation(text string) bool {
	lower := strings.ToLower(text)
	for _, hub := range n.hubs {
		if strings.Contains(lower, hub.match) {
			return true
		}
	}
	if n.statesRe.MatchString(text) {
		return true
	}
	for _, group := range n.countries {
		if matchAny(group.patterns, text) {
			return true
		}
	}
	return cityStateRe.MatchString(text)
}

func (n *locationNormalizer) extractLocations(text string) []string {
	var locations []string
	seen := make(map[string]bool)
	lower := strings.ToLower(text)

	for _, hub := range n.hubs {
		if strings.Contains(lower, hub.match) && !seen[hub.name] {
			seen[hub.name] = true
			locations = append(locations, hub.name)
		}
	}
	for _, group := range n.countries {
		if matchAny(group.patterns, text) && !seen[group.name] {
			seen[group.name] = true
			locations = append(locations, group.name)
		}
	}

	if len(locations) == 0 {
		if cleaned := n.cleanLocation(text); cleaned != "" {
			locations = append(locations, cleaned)
		}
	}
	return locations
}

// cleanLocation strips framing words and work-mode markers so an unknown
// place name survives as itself.
func (n *locationNormalizer) cleanLocation(text string) string {
	text = locationPrefixRe.ReplaceAllString(text, "")
	text = locationSuffixRe.ReplaceAllString(text, "")
	for _, re := range n.remote {
		text = re.ReplaceAllString(text, "")
	}
	for _, re := range n.hybrid {
		text = re.ReplaceAllString(text, "")
	}
	text = strings.Join(strings.Fields(text), " ")
	text = strings.Trim(text, " ,;-")
	if len(text) <= 1 {
		return ""
	}
	return text
}
