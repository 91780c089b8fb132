package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/reperio/internal/ats"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
)

const (
	googleSearchAPI     = "https://www.googleapis.com/customsearch/v1"
	googleFallbackLimit = 50
)

// errSearchQuota stops the source when the API answers 429; every further
// query would burn budget for nothing.
var errSearchQuota = errors.New("search quota exhausted")

// Board hosts searched during ATS fallback, in order of market share.
var googleATSSites = []struct {
	family string
	host   string
}{
	{ats.FamilyGreenhouse, "boards.greenhouse.io"},
	{ats.FamilyLever, "jobs.lever.co"},
	{ats.FamilyAshby, "jobs.ashbyhq.com"},
	{ats.FamilyWorkable, "apply.workable.com"},
	{ats.FamilySmartRecruiters, "jobs.smartrecruiters.com"},
}

var googleDiscoveryQueries = []string{
	`"Series A" careers hiring software`,
	`"Series B" careers hiring engineer`,
	`"seed round" startup careers`,
	`"raised" "million" careers tech startup`,
	`"YC W24" careers`,
	`"YC S24" careers`,
	`AI startup careers hiring -linkedin -indeed`,
	`fintech startup careers hiring -linkedin -indeed`,
	`developer tools startup careers -linkedin -indeed`,
	`B2B SaaS startup careers hiring -linkedin -indeed`,
}

// Aggregators and job boards that dominate careers-related search results.
var googleSkipDomains = []string{
	"linkedin.com", "indeed.com", "glassdoor.com",
	"monster.com", "ziprecruiter.com", "wellfound.com",
}

// googleSearchSource finds boards and companies through the Custom Search
// API. Each query costs money, so the source never runs on a schedule; it
// only runs when named explicitly. Two passes: board fallback for companies
// where probing failed (updates rows in place), then open-ended discovery
// queries for companies nobody links to yet.
type googleSearchSource struct {
	companies interfaces.CompanyStorage
	fetcher   interfaces.Fetcher
	dedup     *Dedup
	apiKey    string
	cx        string
	limiter   *rate.Limiter
	logger    arbor.ILogger
	updated   atomic.Int64
	progress
}

func newGoogleSearchSource(companies interfaces.CompanyStorage, fetcher interfaces.Fetcher, dedup *Dedup, apiKey, cx string, logger arbor.ILogger) *googleSearchSource {
	return &googleSearchSource{
		companies: companies,
		fetcher:   fetcher,
		dedup:     dedup,
		apiKey:    apiKey,
		cx:        cx,
		limiter:   rate.NewLimiter(rate.Every(time.Second), 1),
		logger:    logger,
	}
}

func (s *googleSearchSource) Name() string { return "google_search" }

// UpdatedCompanies returns how many companies gained a board via fallback.
func (s *googleSearchSource) UpdatedCompanies() int { return int(s.updated.Load()) }

func (s *googleSearchSource) Discover(ctx context.Context, emit EmitFunc) error {
	if s.apiKey == "" || s.cx == "" {
		return fmt.Errorf("google search credentials not configured")
	}

	targets, err := s.fallbackTargets()
	if err != nil {
		return err
	}
	s.total.Store(int64(len(targets) + len(googleDiscoveryQueries)))

	s.logger.Info().
		Int("companies", len(targets)).
		Msg("Searching for boards of companies without detection")

	for _, company := range targets {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := s.fallbackBoard(ctx, company)
		s.current.Add(1)
		if errors.Is(err, errSearchQuota) {
			s.logger.Warn().Msg("Search quota exhausted, stopping source")
			return nil
		}
		if err != nil {
			return err
		}
	}

	seen := make(map[string]struct{})
	for _, query := range googleDiscoveryQueries {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := s.discoverQuery(ctx, query, seen, emit)
		s.current.Add(1)
		if errors.Is(err, errSearchQuota) {
			s.logger.Warn().Msg("Search quota exhausted, stopping source")
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *googleSearchSource) fallbackTargets() ([]*models.Company, error) {
	companies, err := s.companies.ListActive()
	if err != nil {
		return nil, err
	}
	var targets []*models.Company
	for _, c := range companies {
		if c.ATSFamily != "" || c.Domain == "" || c.Name == "" {
			continue
		}
		targets = append(targets, c)
		if len(targets) >= googleFallbackLimit {
			break
		}
	}
	return targets, nil
}

// fallbackBoard searches each vendor's host for the company by name. A hit
// counts only when the result title carries the company name, otherwise a
// same-slug stranger would be attached.
func (s *googleSearchSource) fallbackBoard(ctx context.Context, company *models.Company) error {
	for _, site := range googleATSSites {
		items, err := s.search(ctx, fmt.Sprintf("site:%s %q", site.host, company.Name), 3)
		if err != nil {
			return err
		}
		for _, item := range items {
			family, identifier := ats.DetectFromURL(item.Link)
			if family != site.family || identifier == "" {
				continue
			}
			if !strings.Contains(strings.ToLower(item.Title), strings.ToLower(company.Name)) {
				continue
			}

			company.ATSFamily = family
			company.ATSIdentifier = identifier
			company.CareersURL = item.Link
			if err := s.companies.Update(company); err != nil {
				return fmt.Errorf("save board for %s: %w", company.Domain, err)
			}
			s.dedup.MarkDiscovered(company.Domain, family, identifier)
			s.updated.Add(1)
			s.logger.Info().
				Str("company", company.Domain).
				Str("ats", family).
				Str("board", identifier).
				Msg("Board found via search")
			return nil
		}
	}
	return nil
}

// discoverQuery emits companies behind careers pages a query surfaces.
func (s *googleSearchSource) discoverQuery(ctx context.Context, query string, seen map[string]struct{}, emit EmitFunc) error {
	s.logger.Info().Str("query", query).Msg("Running discovery query")
	items, err := s.search(ctx, query, 10)
	if err != nil {
		return err
	}

	for _, item := range items {
		link := strings.ToLower(item.Link)
		if link == "" || containsAny(link, googleSkipDomains) {
			continue
		}
		parsed, err := url.Parse(item.Link)
		if err != nil || parsed.Host == "" {
			continue
		}
		domain := models.NormalizeDomain(parsed.Host)
		if _, dup := seen[domain]; dup {
			continue
		}
		seen[domain] = struct{}{}
		if s.dedup.IsDomainKnown(domain) {
			continue
		}

		family, identifier := ats.DetectFromURL(item.Link)
		careersURL := ""
		if family != "" || containsAny(link, []string{"/careers", "/jobs", "/join", "/hiring"}) {
			careersURL = item.Link
		}

		name := item.Title
		for _, sep := range []string{" - ", " | "} {
			if idx := strings.Index(name, sep); idx > 0 {
				name = name[:idx]
			}
		}
		name = strings.TrimSpace(truncate(name, 50))

		emit(&models.DiscoveredCompany{
			Name:          name,
			Domain:        domain,
			WebsiteURL:    "https://" + domain,
			CareersURL:    careersURL,
			Description:   truncate(item.Snippet, 500),
			Source:        "google_search",
			SourceURL:     item.Link,
			ATSFamily:     family,
			ATSIdentifier: identifier,
		})
	}
	return nil
}

type searchItem struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

func (s *googleSearchSource) search(ctx context.Context, query string, num int) ([]searchItem, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("key", s.apiKey)
	params.Set("cx", s.cx)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(num))

	resp, err := s.fetcher.Fetch(ctx, googleSearchAPI+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	if resp.StatusCode == 429 {
		return nil, errSearchQuota
	}
	if resp.Body == nil {
		s.logger.Warn().Int("status", resp.StatusCode).Msg("Search API error")
		return nil, nil
	}

	var result struct {
		Items []searchItem `json:"items"`
	}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, fmt.Errorf("search response: %w", err)
	}
	return result.Items, nil
}
