package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/reperio/internal/ats"
	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
)

const (
	hnSearchURL    = "https://hn.algolia.com/api/v1/search_by_date?query=who%20is%20hiring&tags=ask_hn&hitsPerPage=5"
	hnItemURL      = "https://hacker-news.firebaseio.com/v0/item/%s.json"
	hnMaxComments  = 200
	hnCommentFetch = 20

	ycCompaniesAPI = "https://api.ycombinator.com/v0.1/companies"
	ycAPILimit     = 500
)

type aggregatorPage struct {
	url   string
	label string
}

// Job listing pages that link out to hosted ATS boards. Remote boards list
// the apply URL directly; accelerator portfolios link careers pages.
var aggregatorPages = []aggregatorPage{
	{"https://remotive.com/remote-jobs/software-dev", "remotive"},
	{"https://remotive.com/remote-jobs/product", "remotive"},
	{"https://remotive.com/remote-jobs/design", "remotive"},
	{"https://remotive.com/remote-jobs/data", "remotive"},
	{"https://weworkremotely.com/remote-jobs/full-stack-programming", "weworkremotely"},
	{"https://weworkremotely.com/remote-jobs/front-end-programming", "weworkremotely"},
	{"https://weworkremotely.com/remote-jobs/back-end-programming", "weworkremotely"},
	{"https://weworkremotely.com/remote-jobs/devops-sysadmin", "weworkremotely"},
	{"https://weworkremotely.com/remote-jobs/product", "weworkremotely"},
	{"https://weworkremotely.com/remote-jobs/design", "weworkremotely"},
	{"https://weworkremotely.com/remote-jobs/data", "weworkremotely"},
	{"https://remoteok.com/remote-dev-jobs", "remote_ok"},
	{"https://www.workatastartup.com/jobs", "workatastartup"},
	{"https://www.techstars.com/portfolio", "techstars"},
	{"https://www.crunchboard.com/jobs", "crunchboard"},
}

type boardRef struct {
	family     string
	identifier string
}

// boardRefPatterns recognize hosted board URLs inside arbitrary page HTML.
// Tighter than the registry's URL patterns: against a whole document the
// identifier charset must be explicit or the capture runs past the slug.
var boardRefPatterns = []struct {
	family  string
	pattern *regexp.Regexp
}{
	{ats.FamilyGreenhouse, regexp.MustCompile(`(?i)boards\.greenhouse\.io/([a-zA-Z0-9_-]+)`)},
	{ats.FamilyGreenhouse, regexp.MustCompile(`(?i)job-boards\.greenhouse\.io/([a-zA-Z0-9_-]+)`)},
	{ats.FamilyLever, regexp.MustCompile(`(?i)jobs\.lever\.co/([a-zA-Z0-9_-]+)`)},
	{ats.FamilyAshby, regexp.MustCompile(`(?i)jobs\.ashbyhq\.com/([a-zA-Z0-9_-]+)`)},
	{ats.FamilyWorkable, regexp.MustCompile(`(?i)apply\.workable\.com/([a-zA-Z0-9_-]+)`)},
	{ats.FamilySmartRecruiters, regexp.MustCompile(`(?i)jobs\.smartrecruiters\.com/([a-zA-Z0-9_-]+)`)},
	{ats.FamilyJobvite, regexp.MustCompile(`(?i)jobs\.jobvite\.com/([a-zA-Z0-9_-]+)`)},
	{ats.FamilyBambooHR, regexp.MustCompile(`(?i)https?://([a-zA-Z0-9_-]+)\.bamboohr\.com/(?:jobs|careers)`)},
	{ats.FamilyRecruitee, regexp.MustCompile(`(?i)https?://([a-zA-Z0-9_-]+)\.recruitee\.com`)},
}

// Path segments on vendor hosts that are never tenant boards.
var boardSkipIDs = map[string]struct{}{
	"embed": {}, "jobs": {}, "api": {}, "static": {}, "assets": {}, "cdn": {},
	"www": {}, "app": {}, "admin": {}, "login": {}, "signup": {}, "careers": {},
}

// extractBoardRefs returns the hosted ATS boards referenced in an HTML
// fragment, deduplicated by family and identifier.
func extractBoardRefs(html string) []boardRef {
	var refs []boardRef
	seen := make(map[string]struct{})
	for _, bp := range boardRefPatterns {
		for _, m := range bp.pattern.FindAllStringSubmatch(html, -1) {
			id := strings.ToLower(m[1])
			if _, skip := boardSkipIDs[id]; skip {
				continue
			}
			if !ats.ValidIdentifier(id) {
				continue
			}
			key := bp.family + ":" + id
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			refs = append(refs, boardRef{family: bp.family, identifier: id})
		}
	}
	return refs
}

// jobAggregatorsSource scrapes job boards and accelerator portfolios for
// links to hosted ATS boards, plus the Hacker News "Who is hiring" threads
// and the Y Combinator companies API.
type jobAggregatorsSource struct {
	fetcher interfaces.Fetcher
	dedup   *Dedup
	logger  arbor.ILogger
	progress
}

func newJobAggregatorsSource(fetcher interfaces.Fetcher, dedup *Dedup, logger arbor.ILogger) *jobAggregatorsSource {
	return &jobAggregatorsSource{fetcher: fetcher, dedup: dedup, logger: logger}
}

func (s *jobAggregatorsSource) Name() string { return "job_aggregators" }

func (s *jobAggregatorsSource) Discover(ctx context.Context, emit EmitFunc) error {
	s.total.Store(int64(len(aggregatorPages)) + 2)
	seen := make(map[string]struct{})

	for _, page := range aggregatorPages {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		body := fetchPage(ctx, s.fetcher, page.url)
		if body != "" {
			count := s.emitBoards(body, page.label, seen, emit)
			s.logger.Debug().
				Str("page", page.url).
				Int("boards", count).
				Msg("Aggregator page scraped")
			if page.label == "workatastartup" {
				s.emitEmbeddedStartups(body, emit)
			}
		}
		s.current.Add(1)
	}

	s.discoverHNHiring(ctx, seen, emit)
	s.current.Add(1)

	s.discoverYCAPI(ctx, emit)
	s.current.Add(1)

	return ctx.Err()
}

// emitBoards turns board references in HTML into discovered companies. The
// vendor board URL doubles as the careers URL; company names are derived
// from the tenant slug.
func (s *jobAggregatorsSource) emitBoards(html, label string, seen map[string]struct{}, emit EmitFunc) int {
	count := 0
	for _, ref := range extractBoardRefs(html) {
		key := ref.family + ":" + ref.identifier
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if s.dedup.IsBoardKnown(ref.family, ref.identifier) {
			continue
		}
		family := ats.Lookup(ref.family)
		if family == nil {
			continue
		}
		careersURL := family.CareersURL(ref.identifier)
		if careersURL == "" {
			continue
		}
		emit(&models.DiscoveredCompany{
			Name:          slugToName(ref.identifier),
			CareersURL:    careersURL,
			Source:        "job_aggregators_" + label,
			SourceURL:     careersURL,
			ATSFamily:     ref.family,
			ATSIdentifier: ref.identifier,
			Country:       "US",
		})
		count++
	}
	return count
}

var initialStatePattern = regexp.MustCompile(`(?s)window\.__INITIAL_STATE__\s*=\s*(\{.*?\})</script>`)

// emitEmbeddedStartups reads the state JSON Work at a Startup embeds in its
// jobs page. Unlike anchor scraping this path carries company websites.
func (s *jobAggregatorsSource) emitEmbeddedStartups(html string, emit EmitFunc) {
	m := initialStatePattern.FindStringSubmatch(html)
	if m == nil {
		return
	}
	var state map[string]interface{}
	if err := json.Unmarshal([]byte(m[1]), &state); err != nil {
		return
	}
	for _, entry := range findObjectList(state, []string{"companies", "items"}) {
		co, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		website := jsonString(co, "website")
		careersURL := jsonString(co, "jobsUrl")
		if careersURL == "" {
			careersURL = jsonString(co, "careersUrl")
		}
		if website == "" || careersURL == "" {
			continue
		}
		family, identifier := ats.DetectFromURL(careersURL)
		if family == "" {
			continue
		}
		emit(&models.DiscoveredCompany{
			Name:          jsonString(co, "name"),
			WebsiteURL:    website,
			CareersURL:    careersURL,
			Source:        "job_aggregators_workatastartup",
			SourceURL:     careersURL,
			ATSFamily:     family,
			ATSIdentifier: identifier,
			Country:       "US",
		})
	}
}

// discoverHNHiring walks recent "Ask HN: Who is hiring?" threads. Thread
// comments routinely paste board URLs straight from the poster's ATS.
func (s *jobAggregatorsSource) discoverHNHiring(ctx context.Context, seen map[string]struct{}, emit EmitFunc) {
	body := fetchPage(ctx, s.fetcher, hnSearchURL)
	if body == "" {
		return
	}
	var search struct {
		Hits []struct {
			ObjectID string `json:"objectID"`
		} `json:"hits"`
	}
	if err := json.Unmarshal([]byte(body), &search); err != nil {
		s.logger.Warn().Err(err).Msg("HN search response unreadable")
		return
	}

	for _, hit := range search.Hits {
		if ctx.Err() != nil || hit.ObjectID == "" {
			continue
		}
		item := fetchPage(ctx, s.fetcher, fmt.Sprintf(hnItemURL, hit.ObjectID))
		if item == "" {
			continue
		}
		var thread struct {
			Kids []int64 `json:"kids"`
		}
		if err := json.Unmarshal([]byte(item), &thread); err != nil {
			continue
		}
		kids := thread.Kids
		if len(kids) > hnMaxComments {
			kids = kids[:hnMaxComments]
		}

		count := 0
		for _, text := range s.fetchComments(ctx, kids) {
			count += s.emitBoards(text, "hn_hiring", seen, emit)
		}
		s.logger.Debug().
			Str("thread", hit.ObjectID).
			Int("comments", len(kids)).
			Int("boards", count).
			Msg("HN hiring thread scanned")
	}
}

// fetchComments pulls comment bodies concurrently, bounded so the Firebase
// API is not hammered. Extraction stays on the calling goroutine.
func (s *jobAggregatorsSource) fetchComments(ctx context.Context, ids []int64) []string {
	texts := make([]string, len(ids))
	sem := make(chan struct{}, hnCommentFetch)
	var wg sync.WaitGroup
	for i, id := range ids {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		i, id := i, id
		common.SafeGo(s.logger, "hn-comment", func() {
			defer wg.Done()
			defer func() { <-sem }()

			body := fetchPage(ctx, s.fetcher, fmt.Sprintf(hnItemURL, strconv.FormatInt(id, 10)))
			if body == "" {
				return
			}
			var comment struct {
				Text string `json:"text"`
			}
			if json.Unmarshal([]byte(body), &comment) == nil {
				texts[i] = comment.Text
			}
		})
	}
	wg.Wait()
	return texts
}

// discoverYCAPI reads Y Combinator's public companies API and keeps entries
// whose jobs URL already points at a recognizable ATS board.
func (s *jobAggregatorsSource) discoverYCAPI(ctx context.Context, emit EmitFunc) {
	body := fetchPage(ctx, s.fetcher, ycCompaniesAPI)
	if body == "" {
		return
	}
	var companies []map[string]interface{}
	if err := json.Unmarshal([]byte(body), &companies); err != nil {
		s.logger.Debug().Err(err).Msg("YC API response unreadable")
		return
	}
	if len(companies) > ycAPILimit {
		companies = companies[:ycAPILimit]
	}

	for _, co := range companies {
		website := jsonString(co, "website")
		if website == "" {
			continue
		}
		careersURL := jsonString(co, "jobsUrl")
		if careersURL == "" {
			careersURL = jsonString(co, "jobs_url")
		}
		if careersURL == "" {
			continue
		}
		family, identifier := ats.DetectFromURL(careersURL)
		if family == "" {
			continue
		}
		name := jsonString(co, "name")
		if name == "" {
			name = slugToName(identifier)
		}
		emit(&models.DiscoveredCompany{
			Name:          name,
			WebsiteURL:    website,
			CareersURL:    careersURL,
			Description:   jsonString(co, "one_liner"),
			Source:        "job_aggregators_yc",
			SourceURL:     ycCompaniesAPI,
			ATSFamily:     family,
			ATSIdentifier: identifier,
			Country:       "US",
		})
	}
}
