package ats

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/interfaces"
)

// Detection strategies, tried in order across attempts.
const (
	StrategyHTTP      = "http"
	StrategyBrowser   = "browser"
	StrategySearch    = "search"
	StrategyExhausted = "exhausted"
)

// MaxDetectionAttempts is the attempt count at which a company is marked
// custom instead of retried.
const MaxDetectionAttempts = 4

// DetectInput identifies the company pages to inspect.
type DetectInput struct {
	Domain     string
	CareersURL string
	WebsiteURL string
	Name       string
}

// Detection is the outcome of ATS detection for one company. ParentDomain is
// set when the careers page redirected to a different company's site, which
// marks the company as hiring through its parent.
type Detection struct {
	Family       string
	Identifier   string
	ParentDomain string
	CareersURL   string
	Strategy     string
}

// Found reports whether a family was identified.
func (d *Detection) Found() bool {
	return d != nil && d.Family != ""
}

// badCareersURL matches URLs that are clearly not careers pages: news
// articles, blog posts, social links and shorteners that discovery sources
// sometimes hand us.
var badCareersURL = regexp.MustCompile(`(?i)/news/|/article/|/blog/|/press/|/press-release|slack\.com/|discord\.gg/|discord\.com/invite|community\.|forum\.|/layoffs|dub\.co/|bit\.ly/|t\.co/|linkedin\.com/posts|twitter\.com/|x\.com/`)

// ValidCareersURL rejects URLs that cannot be careers pages.
func ValidCareersURL(rawURL string) bool {
	if rawURL == "" {
		return false
	}
	return !badCareersURL.MatchString(rawURL)
}

// Redirects to these hosts are ATS boards, not parent companies.
var parentExemptHosts = []string{
	"greenhouse.io", "lever.co", "ashbyhq.com", "workable.com",
	"myworkdayjobs.com", "bamboohr.com", "recruitee.com",
	"smartrecruiters.com", "jobvite.com", "icims.com",
	"rippling.com", "personio.de", "personio.com", "teamtailor.com",
}

// ParentCompanyRedirect reports whether a redirect landed on a different
// company's site. Returns the parent's base domain when it did.
func ParentCompanyRedirect(originalDomain, redirectURL string) (bool, string) {
	if originalDomain == "" || redirectURL == "" {
		return false, ""
	}

	parsed, err := url.Parse(redirectURL)
	if err != nil || parsed.Host == "" {
		return false, ""
	}
	redirectHost := strings.ToLower(parsed.Host)

	for _, ats := range parentExemptHosts {
		if strings.HasSuffix(redirectHost, ats) {
			return false, ""
		}
	}

	originalBase := baseDomain(strings.ToLower(originalDomain))
	redirectBase := baseDomain(redirectHost)
	if originalBase != redirectBase {
		return true, redirectBase
	}
	return false, ""
}

func baseDomain(host string) string {
	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		return strings.Join(parts[len(parts)-2:], ".")
	}
	return host
}

// Link shapes that suggest an individual job posting.
var jobLinkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)href="([^"]+/jobs?/[^"]+)"`),
	regexp.MustCompile(`(?i)href="([^"]+/positions?/[^"]+)"`),
	regexp.MustCompile(`(?i)href="([^"]+/careers?/[^"]+)"`),
	regexp.MustCompile(`(?i)href="([^"]+/openings?/[^"]+)"`),
	regexp.MustCompile(`(?i)href="([^"]+/opportunities?/[^"]+)"`),
	regexp.MustCompile(`(?i)href="([^"]+/apply/[^"]+)"`),
	regexp.MustCompile(`(?i)href="([^"]+\?gh_jid=\d+[^"]*)"`),
}

// ExtractJobLinks pulls up to three candidate job posting links out of a
// careers page. Following one of these usually lands on the hosted ATS even
// when the listing page itself carries no recognizable markup.
func ExtractJobLinks(html, baseURL string) []string {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	var links []string
	seen := make(map[string]bool)
	trimmedBase := strings.TrimRight(baseURL, "/")

	for _, pattern := range jobLinkPatterns {
		for _, match := range pattern.FindAllStringSubmatch(html, -1) {
			raw := match[1]

			var resolved string
			switch {
			case strings.HasPrefix(raw, "//"):
				resolved = parsed.Scheme + ":" + raw
			case strings.HasPrefix(raw, "/"):
				resolved = parsed.Scheme + "://" + parsed.Host + raw
			case strings.HasPrefix(raw, "http"):
				resolved = raw
			default:
				resolved = parsed.Scheme + "://" + parsed.Host + "/" + raw
			}

			if seen[resolved] || len(resolved) < 20 {
				continue
			}
			if strings.TrimRight(resolved, "/") == trimmedBase {
				continue
			}

			seen[resolved] = true
			links = append(links, resolved)
			if len(links) >= 3 {
				return links
			}
		}
	}

	return links
}

var iframeSrcPattern = regexp.MustCompile(`(?i)<iframe[^>]+src=["']([^"']+)["']`)

// DetectFromIframes inspects iframe src attributes for hosted ATS URLs.
func DetectFromIframes(html string) (string, string) {
	for _, match := range iframeSrcPattern.FindAllStringSubmatch(html, -1) {
		if family, identifier := DetectFromURL(match[1]); family != "" {
			return family, identifier
		}
	}
	return "", ""
}

var careersPageIndicators = []string{
	"job opening",
	"open position",
	"career opportunities",
	"we're hiring",
	"we are hiring",
	"join our team",
	"current openings",
	"apply now",
	"view all jobs",
	"browse jobs",
}

// LooksLikeCareersPage reports whether HTML reads like a jobs page even when
// no recognized ATS markup is present.
func LooksLikeCareersPage(html string) bool {
	lower := strings.ToLower(html)
	for _, indicator := range careersPageIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}

// Extra paths the browser tier tries beyond the standard probe list.
var browserCareerPaths = []string{
	"/join",
	"/join-us",
	"/about/careers",
	"/work-with-us",
	"/openings",
	"/team/jobs",
	"/company/careers",
	"/about/jobs",
	"/hiring",
}

var careerSubdomains = []string{"careers", "jobs", "hire", "work"}

// Board hosts searched when the search tier looks for a company's ATS board.
var searchBoardHosts = []struct {
	family string
	host   string
}{
	{FamilyGreenhouse, "boards.greenhouse.io"},
	{FamilyLever, "jobs.lever.co"},
	{FamilyAshby, "jobs.ashbyhq.com"},
}

// Detector resolves which ATS family a company hires through. Each call uses
// progressively more expensive strategies keyed off the company's attempt
// count: plain HTTP first, then a rendered browser pass, then web search.
type Detector struct {
	fetcher   interfaces.Fetcher
	render    interfaces.RenderService
	searchKey string
	searchCX  string
	logger    arbor.ILogger
}

// NewDetector creates a detector. render may be nil, which disables the
// browser tier.
func NewDetector(fetcher interfaces.Fetcher, render interfaces.RenderService, logger arbor.ILogger) *Detector {
	return &Detector{
		fetcher: fetcher,
		render:  render,
		logger:  logger,
	}
}

// SetSearchCredentials enables the search tier with a Google Custom Search
// API key and engine ID.
func (d *Detector) SetSearchCredentials(apiKey, cx string) {
	d.searchKey = apiKey
	d.searchCX = cx
}

// DetectTiered runs the strategy matching the company's attempt count and
// reports which strategy ran. Callers mark the company custom once attempts
// reach MaxDetectionAttempts without a hit.
func (d *Detector) DetectTiered(ctx context.Context, in DetectInput, attempts int) (*Detection, error) {
	switch attempts {
	case 0:
		det, err := d.DetectHTTP(ctx, in)
		if det != nil {
			det.Strategy = StrategyHTTP
		}
		return det, err
	case 1:
		det, err := d.DetectBrowser(ctx, in)
		if det != nil {
			det.Strategy = StrategyBrowser
		}
		return det, err
	case 2:
		det, err := d.DetectSearch(ctx, in)
		if det != nil {
			det.Strategy = StrategySearch
		}
		return det, err
	default:
		return &Detection{Strategy: StrategyExhausted}, nil
	}
}

// DetectHTTP is the fast first pass: URL pattern matching, one or two page
// fetches, then job link redirects.
func (d *Detector) DetectHTTP(ctx context.Context, in DetectInput) (*Detection, error) {
	var htmlContent string
	var parentDomain string

	careersURL := in.CareersURL
	if careersURL != "" && !ValidCareersURL(careersURL) {
		d.logger.Debug().Str("url", careersURL).Msg("Ignoring careers URL that is not a careers page")
		careersURL = ""
	}

	if careersURL != "" {
		if family, identifier := DetectFromURL(careersURL); family != "" {
			return &Detection{Family: family, Identifier: identifier}, nil
		}

		res, err := d.fetcher.Fetch(ctx, careersURL)
		if err == nil && res.StatusCode == 200 && res.Body != nil {
			htmlContent = string(res.Body)

			if family, identifier := DetectFromURL(res.FinalURL); family != "" {
				return &Detection{Family: family, Identifier: identifier}, nil
			}

			if isParent, parent := ParentCompanyRedirect(in.Domain, res.FinalURL); isParent {
				d.logger.Debug().Str("domain", in.Domain).Str("parent", parent).Msg("Careers page redirects to a different company")
				parentDomain = parent
			}

			if family := DetectFromHTML(htmlContent); family != "" {
				identifier := ExtractIdentifier(htmlContent, family)
				return &Detection{Family: family, Identifier: identifier, ParentDomain: parentDomain}, nil
			}
		} else if err != nil {
			d.logger.Debug().Err(err).Str("url", careersURL).Msg("Failed to fetch careers URL")
		}
	}

	if in.Domain != "" && htmlContent == "" {
		if found := d.FindCareersURL(ctx, in.Domain); found != "" && found != careersURL {
			if family, identifier := DetectFromURL(found); family != "" {
				return &Detection{Family: family, Identifier: identifier, CareersURL: found}, nil
			}

			res, err := d.fetcher.Fetch(ctx, found)
			if err == nil && res.StatusCode == 200 && res.Body != nil {
				htmlContent = string(res.Body)

				if family, identifier := DetectFromURL(res.FinalURL); family != "" {
					return &Detection{Family: family, Identifier: identifier, CareersURL: found}, nil
				}
				if family := DetectFromHTML(htmlContent); family != "" {
					identifier := ExtractIdentifier(htmlContent, family)
					return &Detection{Family: family, Identifier: identifier, CareersURL: found}, nil
				}
			}
		}
	}

	if in.WebsiteURL != "" && htmlContent == "" {
		for _, path := range []string{"/careers", "/jobs"} {
			probeURL := strings.TrimRight(in.WebsiteURL, "/") + path
			res, err := d.fetcher.Fetch(ctx, probeURL)
			if err != nil || res.StatusCode != 200 || res.Body == nil {
				continue
			}
			htmlContent = string(res.Body)

			if family, identifier := DetectFromURL(res.FinalURL); family != "" {
				return &Detection{Family: family, Identifier: identifier}, nil
			}
			if family := DetectFromHTML(htmlContent); family != "" {
				identifier := ExtractIdentifier(htmlContent, family)
				return &Detection{Family: family, Identifier: identifier}, nil
			}
			break
		}
	}

	if htmlContent != "" {
		baseURL := careersURL
		if baseURL == "" {
			baseURL = in.WebsiteURL
		}
		if baseURL == "" {
			baseURL = "https://" + in.Domain
		}

		links := ExtractJobLinks(htmlContent, baseURL)
		if len(links) > 2 {
			links = links[:2]
		}
		for _, link := range links {
			res, err := d.fetcher.Fetch(ctx, link)
			if err != nil {
				continue
			}

			if family, identifier := DetectFromURL(res.FinalURL); family != "" {
				d.logger.Debug().Str("job_link", link).Str("family", family).Msg("ATS detected from job link redirect")
				return &Detection{Family: family, Identifier: identifier, ParentDomain: parentDomain}, nil
			}
			if res.StatusCode == 200 && res.Body != nil {
				if family := DetectFromHTML(string(res.Body)); family != "" {
					identifier := ExtractIdentifier(string(res.Body), family)
					return &Detection{Family: family, Identifier: identifier, ParentDomain: parentDomain}, nil
				}
			}
		}
	}

	return &Detection{ParentDomain: parentDomain}, nil
}

// DetectBrowser renders candidate pages with a headless browser so
// JavaScript-built careers pages and embedded widgets become visible.
func (d *Detector) DetectBrowser(ctx context.Context, in DetectInput) (*Detection, error) {
	if d.render == nil {
		d.logger.Debug().Str("domain", in.Domain).Msg("Browser rendering unavailable, skipping tier")
		return &Detection{}, nil
	}

	var candidates []string
	if in.CareersURL != "" && ValidCareersURL(in.CareersURL) {
		candidates = append(candidates, in.CareersURL)
	}

	baseURL := in.WebsiteURL
	if baseURL == "" && in.Domain != "" {
		baseURL = "https://" + in.Domain
	}
	if baseURL != "" {
		for _, path := range browserCareerPaths {
			candidates = append(candidates, strings.TrimRight(baseURL, "/")+path)
		}
	}
	if in.Domain != "" {
		base := strings.TrimPrefix(in.Domain, "www.")
		for _, sub := range careerSubdomains {
			candidates = append(candidates, fmt.Sprintf("https://%s.%s", sub, base))
		}
	}

	var discovered string
	for _, candidate := range candidates {
		html, err := d.render.Render(ctx, candidate)
		if err != nil || html == "" {
			continue
		}

		if family := DetectFromHTML(html); family != "" {
			identifier := ExtractIdentifier(html, family)
			d.logger.Info().Str("url", candidate).Str("family", family).Msg("ATS found in rendered page")
			return &Detection{Family: family, Identifier: identifier, CareersURL: candidate}, nil
		}

		if family, identifier := DetectFromIframes(html); family != "" {
			d.logger.Info().Str("url", candidate).Str("family", family).Msg("ATS found in iframe")
			return &Detection{Family: family, Identifier: identifier, CareersURL: candidate}, nil
		}

		if discovered == "" && LooksLikeCareersPage(html) {
			discovered = candidate
		}

		for _, link := range ExtractJobLinks(html, candidate) {
			jobHTML, err := d.render.Render(ctx, link)
			if err != nil || jobHTML == "" {
				continue
			}
			if family, identifier := DetectFromURL(link); family != "" {
				d.logger.Info().Str("job_link", link).Str("family", family).Msg("ATS found from job link")
				return &Detection{Family: family, Identifier: identifier, CareersURL: candidate}, nil
			}
			if family := DetectFromHTML(jobHTML); family != "" {
				identifier := ExtractIdentifier(jobHTML, family)
				return &Detection{Family: family, Identifier: identifier, CareersURL: candidate}, nil
			}
		}
	}

	d.logger.Debug().Str("domain", in.Domain).Msg("Browser detection found no ATS")
	return &Detection{CareersURL: discovered}, nil
}

type searchResponse struct {
	Items []struct {
		Link string `json:"link"`
	} `json:"items"`
}

// DetectSearch queries Google Custom Search for the company's ATS board.
// Skipped silently when credentials are not configured.
func (d *Detector) DetectSearch(ctx context.Context, in DetectInput) (*Detection, error) {
	if d.searchKey == "" || d.searchCX == "" {
		d.logger.Debug().Msg("Search API not configured, skipping tier")
		return &Detection{}, nil
	}

	var queries []string
	if in.Name != "" {
		queries = append(queries, fmt.Sprintf("%q careers jobs", in.Name))
	}
	if in.Domain != "" {
		queries = append(queries, fmt.Sprintf("site:%s careers OR jobs OR openings", in.Domain))
	}
	if in.Name != "" {
		for _, board := range searchBoardHosts {
			queries = append(queries, fmt.Sprintf("site:%s %q", board.host, in.Name))
		}
	}

	for _, query := range queries {
		searchURL := fmt.Sprintf(
			"https://www.googleapis.com/customsearch/v1?key=%s&cx=%s&q=%s&num=5",
			url.QueryEscape(d.searchKey), url.QueryEscape(d.searchCX), url.QueryEscape(query),
		)

		res, err := d.fetcher.Fetch(ctx, searchURL)
		if err != nil {
			d.logger.Debug().Err(err).Str("query", query).Msg("Search query failed")
			continue
		}
		if res.StatusCode == 429 {
			d.logger.Warn().Msg("Search API rate limited")
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return &Detection{}, ctx.Err()
			}
			continue
		}
		if res.StatusCode != 200 || res.Body == nil {
			continue
		}

		var parsed searchResponse
		if err := json.Unmarshal(res.Body, &parsed); err != nil {
			continue
		}

		for _, item := range parsed.Items {
			if family, identifier := DetectFromURL(item.Link); family != "" {
				d.logger.Info().Str("query", query).Str("url", item.Link).Str("family", family).Msg("ATS found via search")
				return &Detection{Family: family, Identifier: identifier, CareersURL: item.Link}, nil
			}
		}
	}

	d.logger.Debug().Str("domain", in.Domain).Msg("Search detection found no ATS")
	return &Detection{}, nil
}
