package discovery

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
)

const (
	ycDirectoryURL   = "https://www.ycombinator.com/companies"
	waasDirectoryURL = "https://www.workatastartup.com/companies"
	waasCompanyBase  = "https://www.workatastartup.com/companies/"
)

var (
	nextDataPattern    = regexp.MustCompile(`(?s)<script id="__NEXT_DATA__" type="application/json">(.+?)</script>`)
	ycCompanyHrefPattern = regexp.MustCompile(`href="/companies/([a-zA-Z0-9_-]+)"`)
)

// ycCompaniesSource reads the Y Combinator company directory and the Work at
// a Startup directory. Both are Next.js apps whose full dataset ships in the
// page's embedded JSON; an anchor scan covers the directory when the embed
// moves. Candidates cost no per-company HTTP, so everything is emitted and
// the admission rule handles duplicates.
type ycCompaniesSource struct {
	fetcher interfaces.Fetcher
	logger  arbor.ILogger
	progress
}

func newYCCompaniesSource(fetcher interfaces.Fetcher, logger arbor.ILogger) *ycCompaniesSource {
	return &ycCompaniesSource{fetcher: fetcher, logger: logger}
}

func (s *ycCompaniesSource) Name() string { return "yc_companies" }

func (s *ycCompaniesSource) Discover(ctx context.Context, emit EmitFunc) error {
	s.discoverDirectory(ctx, emit)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	s.discoverWorkAtAStartup(ctx, emit)
	return ctx.Err()
}

func (s *ycCompaniesSource) discoverDirectory(ctx context.Context, emit EmitFunc) {
	body := fetchPage(ctx, s.fetcher, ycDirectoryURL)
	if body == "" {
		s.logger.Warn().Str("url", ycDirectoryURL).Msg("YC directory unavailable")
		return
	}

	companies := embeddedCompanyList(body, "companies")
	if len(companies) == 0 {
		// The embed moved; fall back to enumerating company anchors. These
		// carry no website, so they land in the queue for enrichment.
		seen := make(map[string]struct{})
		for _, m := range ycCompanyHrefPattern.FindAllStringSubmatch(body, -1) {
			slug := m[1]
			if _, dup := seen[slug]; dup {
				continue
			}
			seen[slug] = struct{}{}
			emit(&models.DiscoveredCompany{
				Name:      slugToName(slug),
				Source:    "yc_companies",
				SourceURL: ycDirectoryURL + "/" + slug,
				Country:   "US",
			})
		}
		s.logger.Info().Int("companies", len(seen)).Msg("YC directory scanned via anchors")
		return
	}

	s.total.Store(int64(len(companies)))
	for _, raw := range companies {
		if ctx.Err() != nil {
			return
		}
		company, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		s.current.Add(1)

		if status := jsonString(company, "status"); status != "" && status != "Active" {
			continue
		}
		name := jsonString(company, "name")
		if name == "" {
			continue
		}

		location := jsonString(company, "all_locations")
		if location == "" {
			location = jsonString(company, "location")
		}
		d := &models.DiscoveredCompany{
			Name:          name,
			WebsiteURL:    jsonString(company, "website"),
			Location:      location,
			Description:   jsonString(company, "one_liner"),
			Industry:      firstTag(company),
			EmployeeCount: jsonString(company, "team_size"),
			FundingStage:  jsonString(company, "batch"),
			Source:        "yc_companies",
			SourceURL:     ycDirectoryURL,
		}
		if looksUS(location) {
			d.Country = "US"
		}
		emit(d)
	}
}

func (s *ycCompaniesSource) discoverWorkAtAStartup(ctx context.Context, emit EmitFunc) {
	body := fetchPage(ctx, s.fetcher, waasDirectoryURL)
	if body == "" {
		return
	}

	companies := embeddedCompanyList(body, "companies", "startups")
	for _, raw := range companies {
		if ctx.Err() != nil {
			return
		}
		company, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		name := jsonString(company, "name")
		slug := jsonString(company, "slug")
		if name == "" || slug == "" {
			continue
		}
		emit(&models.DiscoveredCompany{
			Name:       name,
			WebsiteURL: jsonString(company, "website"),
			CareersURL: waasCompanyBase + slug,
			Source:     "yc_companies_waas",
			SourceURL:  waasDirectoryURL,
			Country:    "US",
		})
	}
}

// embeddedCompanyList pulls the page's __NEXT_DATA__ JSON and walks it for
// the first object array stored under one of the given keys.
func embeddedCompanyList(body string, keys ...string) []interface{} {
	m := nextDataPattern.FindStringSubmatch(body)
	if m == nil {
		return nil
	}
	var root interface{}
	if err := json.Unmarshal([]byte(m[1]), &root); err != nil {
		return nil
	}
	return findObjectList(root, keys)
}

// findObjectList searches a decoded JSON tree depth-first for an array of
// objects stored under any of the wanted keys.
func findObjectList(v interface{}, keys []string) []interface{} {
	switch node := v.(type) {
	case map[string]interface{}:
		for _, key := range keys {
			if arr, ok := node[key].([]interface{}); ok && len(arr) > 0 {
				if _, isObj := arr[0].(map[string]interface{}); isObj {
					return arr
				}
			}
		}
		for _, child := range node {
			if found := findObjectList(child, keys); found != nil {
				return found
			}
		}
	case []interface{}:
		for _, child := range node {
			if found := findObjectList(child, keys); found != nil {
				return found
			}
		}
	}
	return nil
}

// jsonString reads a string-ish field from a decoded JSON object; numbers
// are formatted, everything else reads as "".
func jsonString(m map[string]interface{}, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func firstTag(m map[string]interface{}) string {
	tags, ok := m["tags"].([]interface{})
	if !ok || len(tags) == 0 {
		return ""
	}
	tag, _ := tags[0].(string)
	return tag
}
