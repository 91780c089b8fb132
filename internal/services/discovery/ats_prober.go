package discovery

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/reperio/internal/ats"
	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
)

// Families probed, in order. Each needs at least one site pattern: a board
// that cannot be verified against the company's own domain is worthless, so
// bamboohr (which never exposes the tenant's website) is not probed.
var proberFamilies = []string{
	ats.FamilyGreenhouse,
	ats.FamilyLever,
	ats.FamilyAshby,
	ats.FamilyWorkable,
	ats.FamilySmartRecruiters,
	ats.FamilyRecruitee,
	ats.FamilyJobvite,
}

// proberSitePatterns pull the tenant's own website out of a rendered board
// page, per family. Vendors embed it in page-config JSON under different
// keys.
var proberSitePatterns = map[string][]*regexp.Regexp{
	ats.FamilyGreenhouse: {
		regexp.MustCompile(`(?i)"company_website":\s*"https?://(?:www\.)?([^/"]+)"`),
		regexp.MustCompile(`(?i)<a[^>]+href="https?://(?:www\.)?([a-z0-9-]+\.[a-z]{2,})"[^>]*class="[^"]*company`),
	},
	ats.FamilyLever: {
		regexp.MustCompile(`(?i)"websiteUrl":\s*"https?://(?:www\.)?([^/"]+)"`),
	},
	ats.FamilyAshby: {
		regexp.MustCompile(`(?i)"website":\s*"https?://(?:www\.)?([^/"]+)"`),
		regexp.MustCompile(`(?i)"companyWebsite":\s*"https?://(?:www\.)?([^/"]+)"`),
	},
	ats.FamilyWorkable: {
		regexp.MustCompile(`(?i)"website":\s*"https?://(?:www\.)?([^/"]+)"`),
	},
	ats.FamilySmartRecruiters: {
		regexp.MustCompile(`(?i)"companyUrl":\s*"https?://(?:www\.)?([^/"]+)"`),
	},
	ats.FamilyRecruitee: {
		regexp.MustCompile(`(?i)"website":\s*"https?://(?:www\.)?([^/"]+)"`),
	},
	ats.FamilyJobvite: {
		regexp.MustCompile(`(?i)"companyWebsite":\s*"https?://(?:www\.)?([^/"]+)"`),
	},
}

// extractBoardSite returns the company domain a hosted board page claims to
// belong to, or "" when the page exposes none.
func extractBoardSite(html, family string) string {
	for _, pattern := range proberSitePatterns[family] {
		if m := pattern.FindStringSubmatch(html); m != nil {
			domain := strings.ToLower(m[1])
			if strings.Contains(domain, ".") {
				return domain
			}
		}
	}
	return ""
}

// domainsMatch reports whether a board's claimed domain and a company's
// recorded domain identify the same company: exact, subdomain of each other,
// or sharing a base label long enough to not match by accident.
func domainsMatch(ours, theirs string) bool {
	ours, theirs = models.NormalizeDomain(ours), models.NormalizeDomain(theirs)
	if ours == "" || theirs == "" {
		return false
	}
	if ours == theirs {
		return true
	}
	if strings.HasSuffix(ours, "."+theirs) || strings.HasSuffix(theirs, "."+ours) {
		return true
	}
	ourBase := strings.SplitN(ours, ".", 2)[0]
	theirBase := strings.SplitN(theirs, ".", 2)[0]
	return ourBase == theirBase && len(ourBase) > 3
}

var slugCleanPattern = regexp.MustCompile(`[^a-z0-9\s-]`)

// candidateSlugs guesses the tenant slugs a company might have registered:
// the bare domain label with and without separators, then the name joined,
// hyphenated, and truncated to its first word.
func candidateSlugs(name, domain string) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(s string) {
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	if domain != "" {
		base := strings.ToLower(strings.SplitN(domain, ".", 2)[0])
		add(base)
		add(strings.ReplaceAll(base, "-", ""))
		add(strings.ReplaceAll(base, "_", ""))
	}
	if name != "" {
		clean := slugCleanPattern.ReplaceAllString(strings.ToLower(name), "")
		if words := strings.Fields(clean); len(words) > 0 {
			add(strings.Join(words, ""))
			add(strings.Join(words, "-"))
			add(words[0])
		}
	}
	return out
}

// atsProberSource guesses board slugs for companies that have no detected
// ATS and probes them against each vendor. A hit only counts when the board
// page names the company's own domain, so "acme" on one vendor belonging to
// a different Acme is rejected. Verified hits update the company row in
// place; this source emits nothing.
type atsProberSource struct {
	companies   interfaces.CompanyStorage
	fetcher     interfaces.Fetcher
	dedup       *Dedup
	limit       int
	concurrency int
	logger      arbor.ILogger
	updated     atomic.Int64
	progress
}

func newATSProberSource(companies interfaces.CompanyStorage, fetcher interfaces.Fetcher, dedup *Dedup, limit, concurrency int, logger arbor.ILogger) *atsProberSource {
	return &atsProberSource{
		companies:   companies,
		fetcher:     fetcher,
		dedup:       dedup,
		limit:       limit,
		concurrency: concurrency,
		logger:      logger,
	}
}

func (s *atsProberSource) Name() string { return "ats_prober" }

// UpdatedCompanies returns how many companies gained a verified board.
func (s *atsProberSource) UpdatedCompanies() int { return int(s.updated.Load()) }

func (s *atsProberSource) Discover(ctx context.Context, emit EmitFunc) error {
	companies, err := s.companies.ListActive()
	if err != nil {
		return err
	}

	var targets []*models.Company
	for _, c := range companies {
		if c.ATSFamily != "" || c.Domain == "" {
			continue
		}
		targets = append(targets, c)
		if len(targets) >= s.limit {
			break
		}
	}
	s.total.Store(int64(len(targets)))

	s.logger.Info().
		Int("companies", len(targets)).
		Int("families", len(proberFamilies)).
		Msg("Probing companies for hosted boards")

	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup
	for _, company := range targets {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		company := company
		common.SafeGo(s.logger, "probe-ats", func() {
			defer wg.Done()
			defer func() { <-sem }()
			defer s.current.Add(1)
			s.probeCompany(ctx, company)
		})
	}
	wg.Wait()

	s.logger.Info().
		Int64("verified", s.updated.Load()).
		Msg("Board probing complete")
	return ctx.Err()
}

// probeCompany tries each candidate slug against each vendor and stops at
// the first verified board.
func (s *atsProberSource) probeCompany(ctx context.Context, company *models.Company) {
	for _, slug := range candidateSlugs(company.Name, company.Domain) {
		if !ats.ValidIdentifier(slug) {
			continue
		}
		for _, name := range proberFamilies {
			if ctx.Err() != nil {
				return
			}
			family := ats.Lookup(name)
			boardURL := family.CareersURL(slug)
			if boardURL == "" || !headOK(ctx, s.fetcher, boardURL) {
				continue
			}
			html := fetchPage(ctx, s.fetcher, boardURL)
			if html == "" {
				continue
			}
			site := extractBoardSite(html, name)
			if site == "" || !domainsMatch(company.Domain, site) {
				continue
			}

			company.ATSFamily = name
			company.ATSIdentifier = slug
			company.CareersURL = boardURL
			if err := s.companies.Update(company); err != nil {
				s.logger.Warn().Str("company", company.Domain).Err(err).Msg("Verified board not saved")
				return
			}
			s.dedup.MarkDiscovered(company.Domain, name, slug)
			s.updated.Add(1)
			s.logger.Info().
				Str("company", company.Domain).
				Str("ats", name).
				Str("board", slug).
				Msg("Verified hosted board")
			return
		}
	}
}
