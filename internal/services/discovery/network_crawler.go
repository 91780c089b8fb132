package discovery

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/reperio/internal/ats"
	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
)

const (
	networkCompanyConcurrency = 10
	networkPathConcurrency    = 10
	networkMaxPerCompany      = 100
)

// Pages on an existing company's site that tend to list other companies:
// customer walls, case studies, portfolios, integration directories.
var networkDiscoveryPaths = []string{
	"/",
	"/customers",
	"/customer",
	"/our-customers",
	"/customer-stories",
	"/customer-success",
	"/case-studies",
	"/case-study",
	"/casestudies",
	"/success-stories",
	"/stories",
	"/testimonials",
	"/reviews",
	"/wall-of-love",
	"/examples",
	"/showcase",
	"/gallery",
	"/made-with",
	"/built-with",
	"/powered-by",
	"/clients",
	"/our-clients",
	"/partners",
	"/our-partners",
	"/partner",
	"/integrations",
	"/ecosystem",
	"/marketplace",
	"/portfolio",
	"/companies",
	"/startups",
	"/investments",
	"/about",
	"/about-us",
	"/company",
	"/who-uses",
	"/who-uses-us",
	"/trusted-by",
	"/logos",
	"/press",
	"/press-kit",
}

// Career paths probed on a discovered site when its homepage gives nothing.
var networkCareerPaths = []string{
	"/careers",
	"/jobs",
	"/join",
	"/join-us",
	"/work-with-us",
}

// Outbound domains that are social networks, press, infrastructure or
// ubiquitous SaaS, never a hiring target worth following.
var networkSkipDomains = map[string]struct{}{
	"twitter.com": {}, "x.com": {}, "facebook.com": {}, "linkedin.com": {},
	"instagram.com": {}, "youtube.com": {}, "tiktok.com": {}, "pinterest.com": {},
	"reddit.com": {}, "threads.net": {},
	"google.com": {}, "apple.com": {}, "microsoft.com": {}, "amazon.com": {}, "meta.com": {},
	"medium.com": {}, "techcrunch.com": {}, "forbes.com": {}, "bloomberg.com": {},
	"reuters.com": {}, "nytimes.com": {}, "wsj.com": {}, "wired.com": {},
	"theverge.com": {}, "venturebeat.com": {}, "crunchbase.com": {},
	"producthunt.com": {}, "substack.com": {},
	"github.com": {}, "gitlab.com": {}, "bitbucket.org": {}, "npmjs.com": {},
	"pypi.org": {}, "stackoverflow.com": {},
	"cloudflare.com": {}, "amazonaws.com": {}, "azure.com": {},
	"vercel.com": {}, "netlify.com": {}, "heroku.com": {}, "fly.io": {},
	"slack.com": {}, "zoom.us": {}, "notion.so": {}, "figma.com": {}, "miro.com": {},
	"intercom.com": {}, "hubspot.com": {}, "salesforce.com": {}, "zendesk.com": {},
	"stripe.com": {}, "twilio.com": {}, "sendgrid.com": {}, "mailchimp.com": {},
	"google-analytics.com": {}, "segment.com": {}, "amplitude.com": {}, "mixpanel.com": {},
	"dropbox.com": {}, "box.com": {},
	"wordpress.com": {}, "squarespace.com": {}, "wix.com": {}, "webflow.io": {},
	"typeform.com": {}, "calendly.com": {}, "loom.com": {},
}

// Substrings that mark a domain as government, education or infrastructure.
var networkSkipFragments = []string{".gov", ".edu", ".org", "cdn.", "static.", "api.", "docs."}

var outboundLinkPattern = regexp.MustCompile(`(?i)href=["']?(https?://(?:www\.)?([a-zA-Z0-9][-a-zA-Z0-9]*\.[a-zA-Z]{2,})(?:/[^"'>\s]*)?)["']?`)

var careerLinkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)href=["']([^"']*(?:/careers|/jobs|/join-us|/hiring)[^"']*)["']`),
	regexp.MustCompile(`(?i)href=["']([^"']+)["'][^>]*>[^<]*(?:Careers|Jobs|Join Us|We're Hiring)`),
}

type outboundSite struct {
	domain     string
	websiteURL string
	sourceURL  string
}

// networkCrawlerSource walks the customer, portfolio and partner pages of
// companies already in the catalog, follows outbound links to unknown
// domains, and keeps the ones that turn out to have a careers page. Each
// source company is visited once; a timestamp on the row excludes it from
// later runs.
type networkCrawlerSource struct {
	companies interfaces.CompanyStorage
	fetcher   interfaces.Fetcher
	dedup     *Dedup
	limit     int
	logger    arbor.ILogger
	progress
}

func newNetworkCrawlerSource(companies interfaces.CompanyStorage, fetcher interfaces.Fetcher, dedup *Dedup, limit int, logger arbor.ILogger) *networkCrawlerSource {
	return &networkCrawlerSource{
		companies: companies,
		fetcher:   fetcher,
		dedup:     dedup,
		limit:     limit,
		logger:    logger,
	}
}

func (s *networkCrawlerSource) Name() string { return "network_crawler" }

func (s *networkCrawlerSource) Discover(ctx context.Context, emit EmitFunc) error {
	companies, err := s.companies.ListForNetworkCrawl(s.limit)
	if err != nil {
		return err
	}
	s.total.Store(int64(len(companies)))
	if len(companies) == 0 {
		s.logger.Info().Msg("No uncrawled companies for network discovery")
		return nil
	}

	s.logger.Info().
		Int("companies", len(companies)).
		Int("concurrency", networkCompanyConcurrency).
		Msg("Crawling company networks")

	sem := make(chan struct{}, networkCompanyConcurrency)
	var wg sync.WaitGroup
	for _, company := range companies {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		company := company
		common.SafeGo(s.logger, "network-crawl", func() {
			defer wg.Done()
			defer func() { <-sem }()
			defer s.current.Add(1)

			found := s.crawlCompany(ctx, company, emit)
			if found > 0 {
				s.logger.Info().
					Str("company", company.Domain).
					Int("found", found).
					Msg("Network crawl yielded companies")
			}

			now := time.Now().UTC()
			company.LastCrawledForNetwork = &now
			if err := s.companies.Update(company); err != nil {
				s.logger.Warn().Str("company", company.Domain).Err(err).Msg("Crawl timestamp not saved")
			}
		})
	}
	wg.Wait()
	return ctx.Err()
}

// crawlCompany follows one company's outbound links and emits every linked
// site that shows a careers page or an embedded ATS.
func (s *networkCrawlerSource) crawlCompany(ctx context.Context, company *models.Company, emit EmitFunc) int {
	sites := s.outboundSites(ctx, company.Domain)
	found := 0
	for _, site := range sites {
		if ctx.Err() != nil || found >= networkMaxPerCompany {
			break
		}
		if d := s.checkForCareers(ctx, site); d != nil {
			emit(d)
			found++
		}
	}
	return found
}

// outboundSites fetches the company's discovery pages and collects outbound
// domains nobody has seen yet. Pages are fetched concurrently; link
// extraction keeps page order so results are stable.
func (s *networkCrawlerSource) outboundSites(ctx context.Context, domain string) []outboundSite {
	baseURL := "https://" + domain

	bodies := make([]string, len(networkDiscoveryPaths))
	sem := make(chan struct{}, networkPathConcurrency)
	var wg sync.WaitGroup
	for i, path := range networkDiscoveryPaths {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		i, path := i, path
		common.SafeGo(s.logger, "network-page", func() {
			defer wg.Done()
			defer func() { <-sem }()
			bodies[i] = fetchPage(ctx, s.fetcher, baseURL+path)
		})
	}
	wg.Wait()

	var sites []outboundSite
	seen := make(map[string]struct{})
	for _, body := range bodies {
		if body == "" {
			continue
		}
		for _, m := range outboundLinkPattern.FindAllStringSubmatch(body, -1) {
			linkURL, linkDomain := m[1], models.NormalizeDomain(m[2])
			if linkDomain == domain || !crawlableDomain(linkDomain) {
				continue
			}
			if _, dup := seen[linkDomain]; dup {
				continue
			}
			seen[linkDomain] = struct{}{}
			if s.dedup.IsDomainKnown(linkDomain) {
				continue
			}
			sites = append(sites, outboundSite{domain: linkDomain, websiteURL: linkURL, sourceURL: baseURL})
		}
	}
	return sites
}

func crawlableDomain(domain string) bool {
	if len(domain) < 4 || !strings.Contains(domain, ".") {
		return false
	}
	if _, skip := networkSkipDomains[domain]; skip {
		return false
	}
	for _, fragment := range networkSkipFragments {
		if strings.Contains(domain, fragment) {
			return false
		}
	}
	return true
}

// checkForCareers decides whether a linked site is worth keeping: an ATS
// embed anywhere on the homepage or a careers page wins, anything else is
// dropped. ATS hits carry the board URL; plain careers pages are emitted
// under a separate source label so downstream detection knows to retry.
func (s *networkCrawlerSource) checkForCareers(ctx context.Context, site outboundSite) *models.DiscoveredCompany {
	baseURL := "https://" + site.domain

	if html := fetchPage(ctx, s.fetcher, baseURL); html != "" {
		if d := s.companyFromATS(html, site); d != nil {
			return d
		}
		if link := findCareerLink(html, baseURL); link != "" {
			if d := s.checkCareersPage(ctx, link, site); d != nil {
				return d
			}
		}
	}

	for _, path := range networkCareerPaths {
		if ctx.Err() != nil {
			return nil
		}
		if d := s.checkCareersPage(ctx, baseURL+path, site); d != nil {
			return d
		}
	}
	return nil
}

func (s *networkCrawlerSource) checkCareersPage(ctx context.Context, pageURL string, site outboundSite) *models.DiscoveredCompany {
	html := fetchPage(ctx, s.fetcher, pageURL)
	if html == "" {
		return nil
	}
	if d := s.companyFromATS(html, site); d != nil {
		return d
	}
	if ats.LooksLikeCareersPage(html) {
		return &models.DiscoveredCompany{
			Name:       slugToName(strings.SplitN(site.domain, ".", 2)[0]),
			Domain:     site.domain,
			WebsiteURL: "https://" + site.domain,
			CareersURL: pageURL,
			Source:     "network_crawler_careers",
			SourceURL:  site.sourceURL,
		}
	}
	return nil
}

func (s *networkCrawlerSource) companyFromATS(html string, site outboundSite) *models.DiscoveredCompany {
	family, identifier := ats.DetectFromEmbed(html)
	if family == "" || identifier == "" {
		return nil
	}
	f := ats.Lookup(family)
	if f == nil {
		return nil
	}
	careersURL := f.CareersURL(identifier)
	if careersURL == "" {
		return nil
	}
	return &models.DiscoveredCompany{
		Name:          slugToName(strings.SplitN(site.domain, ".", 2)[0]),
		Domain:        site.domain,
		WebsiteURL:    "https://" + site.domain,
		CareersURL:    careersURL,
		Source:        "network_crawler",
		SourceURL:     site.sourceURL,
		ATSFamily:     family,
		ATSIdentifier: identifier,
	}
}

// findCareerLink scans HTML for a careers or jobs link, resolving relative
// paths against the page URL.
func findCareerLink(html, baseURL string) string {
	for _, pattern := range careerLinkPatterns {
		m := pattern.FindStringSubmatch(html)
		if m == nil {
			continue
		}
		link := m[1]
		switch {
		case strings.HasPrefix(link, "http"):
			return link
		case strings.HasPrefix(link, "/"):
			return strings.TrimSuffix(baseURL, "/") + link
		default:
			return baseURL + "/" + link
		}
	}
	return ""
}
