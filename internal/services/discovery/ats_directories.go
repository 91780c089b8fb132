package discovery

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/reperio/internal/ats"
	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
)

// boardVerifyConcurrency bounds parallel HEAD probes against vendor boards.
const boardVerifyConcurrency = 20

// boardDirectory describes how to gather candidate board slugs for one ATS
// vendor: a curated seed list plus pages to scrape for board URLs.
type boardDirectory struct {
	family      string
	scrapeURLs  []string
	slugPattern *regexp.Regexp
	knownSlugs  []string
}

var boardDirectories = []boardDirectory{
	{
		family: ats.FamilyGreenhouse,
		scrapeURLs: []string{
			"https://boards.greenhouse.io/sitemap.xml",
			"https://boards.greenhouse.io/robots.txt",
		},
		slugPattern: regexp.MustCompile(`boards\.greenhouse\.io/([a-zA-Z0-9_-]+)`),
		knownSlugs: []string{
			"stripe", "airbnb", "doordash", "databricks", "figma", "notion",
			"discord", "reddit", "robinhood", "instacart", "flexport",
			"benchling", "airtable", "amplitude", "brex", "checkr", "chime",
			"coursera", "datadog", "duolingo", "gusto", "lattice", "loom",
			"mixpanel", "mongodb", "nextdoor", "okta", "opendoor",
			"pagerduty", "pinterest", "plaid", "postman", "quora", "retool",
			"samsara", "scaleai", "sentry", "sofi", "sourcegraph", "strava",
			"thumbtack", "twilio", "udemy", "vanta", "verkada", "webflow",
			"zapier", "tempus", "cityblockhealth", "flatironhealth",
		},
	},
	{
		family: ats.FamilyLever,
		knownSlugs: []string{
			"palantir", "anduril", "twitch", "lyft", "medium", "eventbrite",
			"zoox", "nuro", "kraken", "attentive", "outreach", "wealthsimple",
			"plusgrade", "voleon", "matchgroup", "highspot", "spothero",
			"welocalize", "veeva", "octoenergy", "mistral", "saronic",
		},
	},
	{
		family: ats.FamilyAshby,
		knownSlugs: []string{
			"openai", "ramp", "linear", "replit", "modal", "supabase", "deel",
			"mercury", "sierra", "elevenlabs", "runway", "hex", "census",
			"dagster", "clerk", "resend", "browserbase", "warp", "cursor",
			"vapi", "wander", "docker", "monad", "astranis", "kikoff",
		},
	},
}

// reservedBoardSlugs are path segments on vendor hosts that are not tenant
// boards. Aggregator mirrors under "builtin*" are skipped by prefix.
var reservedBoardSlugs = map[string]struct{}{
	"sitemap": {}, "robots": {}, "api": {}, "embed": {}, "jobs": {},
	"search": {}, "terms": {}, "privacy": {},
}

// atsDirectoriesSource finds new boards directly on the ATS vendors' own
// hosts: curated slug lists and vendor sitemaps give candidates, and a HEAD
// against the board URL confirms the tenant exists.
type atsDirectoriesSource struct {
	fetcher     interfaces.Fetcher
	dedup       *Dedup
	concurrency int
	logger      arbor.ILogger
	progress
}

func newATSDirectoriesSource(fetcher interfaces.Fetcher, dedup *Dedup, logger arbor.ILogger) *atsDirectoriesSource {
	return &atsDirectoriesSource{
		fetcher:     fetcher,
		dedup:       dedup,
		concurrency: boardVerifyConcurrency,
		logger:      logger,
	}
}

func (s *atsDirectoriesSource) Name() string { return "ats_directories" }

func (s *atsDirectoriesSource) Discover(ctx context.Context, emit EmitFunc) error {
	type candidate struct {
		family     string
		slug       string
		careersURL string
	}

	var candidates []candidate
	for _, dir := range boardDirectories {
		family := ats.Lookup(dir.family)
		if family == nil {
			continue
		}
		for slug := range s.collectSlugs(ctx, dir) {
			if !ats.ValidIdentifier(slug) || s.dedup.IsBoardKnown(dir.family, slug) {
				continue
			}
			url := family.CareersURL(slug)
			if url == "" {
				continue
			}
			candidates = append(candidates, candidate{dir.family, slug, url})
		}
	}
	s.total.Store(int64(len(candidates)))

	s.logger.Info().
		Int("candidates", len(candidates)).
		Msg("Verifying candidate boards")

	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup
	for _, c := range candidates {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		c := c
		common.SafeGo(s.logger, "verify-board", func() {
			defer wg.Done()
			defer func() { <-sem }()
			defer s.current.Add(1)

			if !headOK(ctx, s.fetcher, c.careersURL) {
				return
			}
			emit(&models.DiscoveredCompany{
				Name:          slugToName(c.slug),
				CareersURL:    c.careersURL,
				SourceURL:     c.careersURL,
				Source:        "ats_directories_" + c.family,
				ATSFamily:     c.family,
				ATSIdentifier: c.slug,
			})
		})
	}
	wg.Wait()
	return ctx.Err()
}

// collectSlugs merges the curated seed list with slugs scraped from the
// vendor's own sitemap and robots pages.
func (s *atsDirectoriesSource) collectSlugs(ctx context.Context, dir boardDirectory) map[string]struct{} {
	slugs := make(map[string]struct{}, len(dir.knownSlugs))
	for _, slug := range dir.knownSlugs {
		slugs[strings.ToLower(slug)] = struct{}{}
	}
	if dir.slugPattern == nil {
		return slugs
	}
	for _, u := range dir.scrapeURLs {
		body := fetchPage(ctx, s.fetcher, u)
		if body == "" {
			continue
		}
		for _, m := range dir.slugPattern.FindAllStringSubmatch(body, -1) {
			slug := strings.ToLower(m[1])
			if _, reserved := reservedBoardSlugs[slug]; reserved || strings.HasPrefix(slug, "builtin") {
				continue
			}
			slugs[slug] = struct{}{}
		}
	}
	return slugs
}
