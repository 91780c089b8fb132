// Package ats holds the static registry of applicant tracking system
// families and the detector that classifies careers URLs and pages into one
// of them.
package ats

import (
	"fmt"
	"regexp"
	"strings"
)

// Family names for vendors the pipeline has first-class support for.
const (
	FamilyGreenhouse      = "greenhouse"
	FamilyLever           = "lever"
	FamilyAshby           = "ashby"
	FamilyWorkable        = "workable"
	FamilyWorkday         = "workday"
	FamilyBambooHR        = "bamboohr"
	FamilyRecruitee       = "recruitee"
	FamilySmartRecruiters = "smartrecruiters"
	FamilyJobvite         = "jobvite"
)

// Family describes one ATS vendor: how to recognize it from URLs, page HTML
// and embed scripts, how to pull the tenant identifier out, and how to build
// its API and public board URLs from that identifier.
type Family struct {
	Name string

	// URLPatterns are tried in order against a URL; the first capture group,
	// when present, is the tenant identifier.
	URLPatterns []*regexp.Regexp

	// HTMLPatterns are case-insensitive markers that indicate the family when
	// found anywhere in page HTML.
	HTMLPatterns []*regexp.Regexp

	// IdentifierPatterns are applied in order to page HTML once the family is
	// known: data attributes first, then inline JS config, then embed-URL
	// parameters, then direct board-URL mentions.
	IdentifierPatterns []*regexp.Regexp

	// APITemplate is the JSON listing endpoint keyed by identifier, empty
	// when the family has no public listing API.
	APITemplate string

	// DetailTemplate is the single-posting endpoint keyed by identifier and
	// posting id, empty when the family has none.
	DetailTemplate string

	// CareersTemplate inverts an identifier back into the public board URL.
	CareersTemplate string
}

// APIURL returns the listing endpoint for an identifier, or "" when the
// family has no JSON API.
func (f *Family) APIURL(identifier string) string {
	if f.APITemplate == "" || identifier == "" {
		return ""
	}
	return fmt.Sprintf(f.APITemplate, identifier)
}

// DetailURL returns the single-posting endpoint, or "" when unsupported.
func (f *Family) DetailURL(identifier, postingID string) string {
	if f.DetailTemplate == "" || identifier == "" || postingID == "" {
		return ""
	}
	return fmt.Sprintf(f.DetailTemplate, identifier, postingID)
}

// CareersURL inverts an identifier into the public board URL, or "" when the
// family has no stable template.
func (f *Family) CareersURL(identifier string) string {
	if f.CareersTemplate == "" || identifier == "" {
		return ""
	}
	return fmt.Sprintf(f.CareersTemplate, identifier)
}

func rx(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(p))
	}
	return out
}

// families is ordered: URL detection returns the first match, so broad
// patterns (teamtailor's custom-domain catch-all, wellfound) sit last.
var families = []*Family{
	{
		Name: FamilyGreenhouse,
		URLPatterns: rx(
			`(?i)boards\.greenhouse\.io/([^/]+)`,
			`(?i)job-boards\.greenhouse\.io/([^/]+)`,
			`(?i)([^.]+)\.greenhouse\.io`,
		),
		HTMLPatterns: rx(`(?i)greenhouse\.io`, `(?i)grnhse_`, `(?i)greenhouse-job-board`),
		IdentifierPatterns: rx(
			`data-board-token="([^"]+)"`,
			`Grnhse\.Settings\.boardToken\s*=\s*['"]([^'"]+)['"]`,
			`boards\.greenhouse\.io/embed/job_board[^"']*[?&]for=([^&"'#\s]+)`,
			`boardToken["']?\s*[:=]\s*["']([^"']+)["']`,
			`"board_token"\s*:\s*"([^"]+)"`,
			`'board_token'\s*:\s*'([^']+)'`,
			`board:\s*["']([^"']+)["']`,
			`boards-api\.greenhouse\.io/v1/boards/([^/"'?#\s]+)`,
			`boards\.greenhouse\.io/([a-zA-Z0-9_-]+)`,
			`<iframe[^>]+src="[^"]*boards\.greenhouse\.io/([a-zA-Z0-9_-]+)`,
		),
		APITemplate:     "https://boards-api.greenhouse.io/v1/boards/%s/jobs",
		DetailTemplate:  "https://boards-api.greenhouse.io/v1/boards/%s/jobs/%s",
		CareersTemplate: "https://boards.greenhouse.io/%s",
	},
	{
		Name: FamilyLever,
		URLPatterns: rx(
			`(?i)jobs\.lever\.co/([^/]+)`,
			`(?i)([^.]+)\.lever\.co`,
		),
		HTMLPatterns: rx(`(?i)lever\.co`, `(?i)lever-jobs`, `(?i)LeverJobsContainer`),
		IdentifierPatterns: rx(
			`data-lever-site="([^"]+)"`,
			`jobs\.lever\.co/([^/"']+)/embed`,
			`jobs\.lever\.co/([^/"']+)`,
		),
		APITemplate:     "https://jobs.lever.co/%s?mode=json",
		CareersTemplate: "https://jobs.lever.co/%s",
	},
	{
		Name: FamilyAshby,
		URLPatterns: rx(
			`(?i)jobs\.ashbyhq\.com/([^/]+)`,
			`(?i)([^.]+)\.ashbyhq\.com`,
		),
		HTMLPatterns: rx(`(?i)ashbyhq\.com`, `(?i)ashby-job-posting`),
		IdentifierPatterns: rx(
			`jobs\.ashbyhq\.com/([^/"']+)/embed`,
			`jobs\.ashbyhq\.com/([^/"']+)`,
			`api\.ashbyhq\.com/posting-api/job-board/([^/"']+)`,
		),
		APITemplate:     "https://api.ashbyhq.com/posting-api/job-board/%s",
		DetailTemplate:  "https://api.ashbyhq.com/posting-api/job-board/%s/posting/%s",
		CareersTemplate: "https://jobs.ashbyhq.com/%s",
	},
	{
		Name: FamilyWorkable,
		URLPatterns: rx(
			`(?i)apply\.workable\.com/([^/]+)`,
			`(?i)([^.]+)\.workable\.com`,
		),
		HTMLPatterns: rx(`(?i)workable\.com`, `(?i)whr-embed`, `(?i)workable-job-widget`),
		IdentifierPatterns: rx(
			`apply\.workable\.com/([^/"']+)`,
			`workable\.com/integrations/embed/([^/"']+)`,
			`"subdomain"\s*:\s*"([^"]+)"`,
		),
		APITemplate:     "https://apply.workable.com/api/v1/widget/accounts/%s",
		DetailTemplate:  "https://apply.workable.com/api/v2/accounts/%s/jobs/%s",
		CareersTemplate: "https://apply.workable.com/%s",
	},
	{
		Name: FamilyWorkday,
		URLPatterns: rx(
			`(?i)([^.]+)\.wd\d+\.myworkdayjobs\.com`,
			`(?i)workday\.com`,
		),
		HTMLPatterns: rx(`(?i)workday`, `(?i)wd-candidate`),
	},
	{
		Name: FamilyBambooHR,
		URLPatterns: rx(
			`(?i)([^.]+)\.bamboohr\.com/careers`,
			`(?i)([^.]+)\.bamboohr\.com/jobs`,
		),
		HTMLPatterns:       rx(`(?i)bamboohr\.com`, `(?i)bamboo-job-board`),
		IdentifierPatterns: rx(`([^./]+)\.bamboohr\.com`),
		CareersTemplate:    "https://%s.bamboohr.com/careers",
	},
	{
		Name: "zoho_recruit",
		URLPatterns: rx(
			`(?i)careers\.zohorecruitcloud\.com/([^/]+)`,
			`(?i)([^.]+)\.zohorecruit\.com`,
			`(?i)recruit\.zoho\.com/([^/]+)`,
		),
		HTMLPatterns: rx(`(?i)zohorecruit`, `(?i)zohorecruitcloud`, `(?i)zoho-recruit`),
	},
	{
		Name: "bullhorn",
		URLPatterns: rx(
			`(?i)([^.]+)\.bullhornstaffing\.com`,
			`(?i)cls\d+\.bullhornstaffing\.com/([^/]+)`,
		),
		HTMLPatterns: rx(`(?i)bullhorn`, `(?i)bullhornstaffing`),
	},
	{
		Name: "gem",
		URLPatterns: rx(
			`(?i)jobs\.gem\.com/([^/]+)`,
			`(?i)([^.]+)\.gem\.com/careers`,
		),
		HTMLPatterns: rx(`(?i)gem\.com/jobs`, `(?i)gem-careers`),
	},
	{
		Name: "jazzhr",
		URLPatterns: rx(
			`(?i)([^.]+)\.applytojob\.com`,
			`(?i)app\.jazz\.co/([^/]+)`,
		),
		HTMLPatterns: rx(`(?i)jazzhr`, `(?i)applytojob\.com`, `(?i)jazz\.co`),
	},
	{
		Name: "freshteam",
		URLPatterns: rx(
			`(?i)([^.]+)\.freshteam\.com/jobs`,
			`(?i)([^.]+)\.freshteam\.com`,
		),
		HTMLPatterns: rx(`(?i)freshteam`, `(?i)freshworks`),
	},
	{
		Name: FamilyRecruitee,
		URLPatterns: rx(
			`(?i)([^.]+)\.recruitee\.com`,
			`(?i)careers\.recruitee\.com/([^/]+)`,
		),
		HTMLPatterns:       rx(`(?i)recruitee`, `(?i)recruitee-careers`),
		IdentifierPatterns: rx(`([^./]+)\.recruitee\.com`),
		CareersTemplate:    "https://%s.recruitee.com",
	},
	{
		Name: "pinpoint",
		URLPatterns: rx(
			`(?i)([^.]+)\.pinpointhq\.com`,
			`(?i)careers\.([^.]+)\.pinpointhq\.com`,
		),
		HTMLPatterns: rx(`(?i)pinpointhq`, `(?i)pinpoint-careers`),
	},
	{
		Name: "pcrecruiter",
		URLPatterns: rx(
			`(?i)([^.]+)\.pcrecruiter\.net`,
			`(?i)jobs\.pcrecruiter\.net/([^/]+)`,
		),
		HTMLPatterns: rx(`(?i)pcrecruiter`),
	},
	{
		Name: "recruitcrm",
		URLPatterns: rx(
			`(?i)([^.]+)\.recruitcrm\.io`,
			`(?i)portal\.recruitcrm\.io/([^/]+)`,
		),
		HTMLPatterns: rx(`(?i)recruitcrm`),
	},
	{
		Name: "manatal",
		URLPatterns: rx(
			`(?i)([^.]+)\.manatal\.com`,
			`(?i)jobs\.manatal\.com/([^/]+)`,
		),
		HTMLPatterns: rx(`(?i)manatal`),
	},
	{
		Name: "recooty",
		URLPatterns: rx(
			`(?i)([^.]+)\.recooty\.com`,
			`(?i)jobs\.recooty\.com/([^/]+)`,
		),
		HTMLPatterns: rx(`(?i)recooty`),
	},
	{
		Name: "successfactors",
		URLPatterns: rx(
			`(?i)([^.]+)\.successfactors\.com`,
			`(?i)careers\.([^.]+)\.successfactors\.eu`,
			`(?i)performancemanager\d*\.successfactors\.com/([^/]+)`,
		),
		HTMLPatterns: rx(`(?i)successfactors`, `(?i)SAP.*SuccessFactors`),
	},
	{
		Name: "gohire",
		URLPatterns: rx(
			`(?i)([^.]+)\.gohire\.io`,
			`(?i)careers\.gohire\.io/([^/]+)`,
		),
		HTMLPatterns: rx(`(?i)gohire`),
	},
	{
		Name: "folkshr",
		URLPatterns: rx(
			`(?i)([^.]+)\.folkshr\.com`,
			`(?i)careers\.folkshr\.com/([^/]+)`,
		),
		HTMLPatterns: rx(`(?i)folkshr`, `(?i)folks-careers`),
	},
	{
		Name: "boon",
		URLPatterns: rx(
			`(?i)([^.]+)\.goboon\.co`,
			`(?i)referrals\.goboon\.co/([^/]+)`,
		),
		HTMLPatterns: rx(`(?i)goboon\.co`, `(?i)boon-referral`),
	},
	{
		Name: "talentreef",
		URLPatterns: rx(
			`(?i)([^.]+)\.talentreef\.com`,
			`(?i)careers\.talentreef\.com/([^/]+)`,
		),
		HTMLPatterns: rx(`(?i)talentreef`),
	},
	{
		Name: "eddy",
		URLPatterns: rx(
			`(?i)([^.]+)\.eddy\.com/careers`,
			`(?i)careers\.eddy\.com/([^/]+)`,
		),
		HTMLPatterns: rx(`(?i)eddy\.com/careers`),
	},
	{
		Name: FamilyJobvite,
		URLPatterns: rx(
			`(?i)jobs\.jobvite\.com/([^/]+)`,
			`(?i)([^.]+)\.jobvite\.com`,
		),
		HTMLPatterns:       rx(`(?i)jobvite`),
		IdentifierPatterns: rx(`jobs\.jobvite\.com/([^/"']+)`),
		CareersTemplate:    "https://jobs.jobvite.com/%s",
	},
	{
		Name: "icims",
		URLPatterns: rx(
			`(?i)careers-([^.]+)\.icims\.com`,
			`(?i)([^.]+)\.icims\.com`,
		),
		HTMLPatterns: rx(`(?i)icims`),
		IdentifierPatterns: rx(
			`careers-([^.]+)\.icims\.com`,
			`([^./]+)\.icims\.com`,
		),
	},
	{
		Name: FamilySmartRecruiters,
		URLPatterns: rx(
			`(?i)jobs\.smartrecruiters\.com/([^/]+)`,
			`(?i)([^.]+)\.smartrecruiters\.com`,
		),
		HTMLPatterns:       rx(`(?i)smartrecruiters`),
		IdentifierPatterns: rx(`jobs\.smartrecruiters\.com/([^/"']+)`),
		APITemplate:        "https://api.smartrecruiters.com/v1/companies/%s/postings",
		CareersTemplate:    "https://jobs.smartrecruiters.com/%s",
	},
	{
		Name: "rippling",
		URLPatterns: rx(
			`(?i)ats\.rippling\.com/([^/]+)`,
			`(?i)([^.]+)\.rippling\.com/jobs`,
		),
		HTMLPatterns: rx(`(?i)rippling\.com`, `(?i)ats\.rippling`),
	},
	{
		Name: "scalis",
		URLPatterns: rx(
			`(?i)([^.]+)\.scalis\.ai/jobs`,
			`(?i)scalis\.ai/([^/]+)`,
		),
		HTMLPatterns: rx(`(?i)scalis\.ai`, `(?i)scalis-careers`),
	},
	{
		Name: "paylocity",
		URLPatterns: rx(
			`(?i)recruiting\.paylocity\.com/recruiting/jobs/([^/]+)`,
			`(?i)([^.]+)\.paylocity\.com`,
		),
		HTMLPatterns: rx(`(?i)paylocity`, `(?i)recruiting\.paylocity`),
	},
	{
		Name: "breezy",
		URLPatterns: rx(
			`(?i)([^.]+)\.breezy\.hr`,
			`(?i)breezy\.hr/p/([^/]+)`,
		),
		HTMLPatterns: rx(`(?i)breezy\.hr`, `(?i)breezyhr`),
	},
	{
		Name: "personio",
		URLPatterns: rx(
			`(?i)([^.]+)\.jobs\.personio\.de`,
			`(?i)([^.]+)\.jobs\.personio\.com`,
		),
		HTMLPatterns: rx(`(?i)personio`, `(?i)jobs\.personio`),
	},
	{
		// Teamtailor boards often sit on vanity domains; the career.<x>.com
		// pattern is deliberately last so real vendors win first.
		Name: "teamtailor",
		URLPatterns: rx(
			`(?i)([^.]+)\.teamtailor\.com`,
			`(?i)career\.([^.]+)\.com`,
		),
		HTMLPatterns: rx(`(?i)teamtailor`, `(?i)career-page`),
	},
	{
		Name: "wellfound",
		URLPatterns: rx(
			`(?i)wellfound\.com/company/([^/]+)`,
			`(?i)angel\.co/company/([^/]+)`,
		),
		HTMLPatterns: rx(`(?i)wellfound\.com`, `(?i)angel\.co`),
	},
}

var familyIndex = func() map[string]*Family {
	idx := make(map[string]*Family, len(families))
	for _, f := range families {
		idx[f.Name] = f
	}
	return idx
}()

// Families returns the registry in detection order.
func Families() []*Family {
	return families
}

// Lookup returns the family entry for a name, or nil when unknown.
func Lookup(name string) *Family {
	return familyIndex[strings.ToLower(name)]
}

// embedPatterns match <script src>, inline script bodies and <iframe src>.
// Ordered: embed-specific shapes before bare board URLs.
type embedPattern struct {
	re     *regexp.Regexp
	family string
}

var embedPatterns = []embedPattern{
	{regexp.MustCompile(`(?i)jobs\.ashbyhq\.com/([^/]+)/embed`), FamilyAshby},
	{regexp.MustCompile(`(?i)jobs\.ashbyhq\.com/([^/"']+)`), FamilyAshby},
	{regexp.MustCompile(`(?i)boards\.greenhouse\.io/embed/job_board[^"']*for=([^&"']+)`), FamilyGreenhouse},
	{regexp.MustCompile(`(?i)boards\.greenhouse\.io/([^/"']+)`), FamilyGreenhouse},
	{regexp.MustCompile(`(?i)boards-api\.greenhouse\.io/v1/boards/([^/"']+)`), FamilyGreenhouse},
	{regexp.MustCompile(`(?i)jobs\.lever\.co/([^/"']+)/embed`), FamilyLever},
	{regexp.MustCompile(`(?i)jobs\.lever\.co/([^/"']+)`), FamilyLever},
	{regexp.MustCompile(`(?i)apply\.workable\.com/([^/"']+)`), FamilyWorkable},
	{regexp.MustCompile(`(?i)workable\.com/integrations/embed/([^/"']+)`), FamilyWorkable},
	{regexp.MustCompile(`(?i)([^./]+)\.recruitee\.com`), FamilyRecruitee},
	{regexp.MustCompile(`(?i)([^./]+)\.bamboohr\.com`), FamilyBambooHR},
	{regexp.MustCompile(`(?i)jobs\.smartrecruiters\.com/([^/"']+)`), FamilySmartRecruiters},
	{regexp.MustCompile(`(?i)jobs\.jobvite\.com/([^/"']+)`), FamilyJobvite},
}

// DetectFromEmbed matches a script src, inline script body or iframe src
// against the embed patterns, returning ("", "") when nothing matches.
func DetectFromEmbed(content string) (string, string) {
	for _, ep := range embedPatterns {
		if m := ep.re.FindStringSubmatch(content); m != nil {
			id := m[1]
			if !ValidIdentifier(id) {
				id = ""
			}
			return ep.family, id
		}
	}
	return "", ""
}

// DetectFromURL matches a URL against every family's URL patterns in registry
// order. The identifier is cleared when it fails validation; the family is
// still reported.
func DetectFromURL(url string) (string, string) {
	for _, f := range families {
		for _, re := range f.URLPatterns {
			m := re.FindStringSubmatch(url)
			if m == nil {
				continue
			}
			identifier := ""
			if len(m) > 1 {
				identifier = m[1]
			}
			if identifier != "" && !ValidIdentifier(identifier) {
				identifier = ""
			}
			return f.Name, identifier
		}
	}
	return "", ""
}

// DetectFromHTML scans page HTML for family markers, returning the first
// family whose patterns match.
func DetectFromHTML(html string) string {
	for _, f := range families {
		for _, re := range f.HTMLPatterns {
			if re.MatchString(html) {
				return f.Name
			}
		}
	}
	return ""
}

// ExtractIdentifier applies the family's ordered identifier patterns to page
// HTML. Greenhouse direct-board matches additionally require length > 2 so
// path fragments like "js" never win.
func ExtractIdentifier(html, family string) string {
	f := Lookup(family)
	if f == nil {
		return ""
	}
	for _, re := range f.IdentifierPatterns {
		if family == FamilyGreenhouse {
			// Iterate all matches: the first candidate may be a blocklisted
			// fragment ("embed") while a later one is the real slug.
			for _, m := range re.FindAllStringSubmatch(html, -1) {
				id := m[1]
				if ValidIdentifier(id) && len(id) > 2 {
					return id
				}
			}
			continue
		}
		if m := re.FindStringSubmatch(html); m != nil && ValidIdentifier(m[1]) {
			return m[1]
		}
	}
	return ""
}
