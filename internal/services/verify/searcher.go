package verify

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/interfaces"
)

// SearchResult is the outcome of looking for one job on one board.
// Confidence reflects how trustworthy the answer is: a clean empty result
// page is strong evidence of absence, a timeout or blocked page is not.
type SearchResult struct {
	Found       bool
	Confidence  float64
	ListingURL  string
	ResultCount int
}

// Searcher finds a (company, title) pair on an external job board.
type Searcher interface {
	Search(ctx context.Context, company, title, board string) (*SearchResult, error)
}

// boardSearcher renders board search pages through the headless browser and
// matches result cards against the expected company and title. LinkedIn's
// public jobs search works unauthenticated; Indeed blocks direct scraping so
// it is searched through Bing with a site: operator.
type boardSearcher struct {
	render  interfaces.RenderService
	limiter interfaces.RateLimiter
	logger  arbor.ILogger
}

// NewSearcher creates a board searcher backed by the render service.
func NewSearcher(render interfaces.RenderService, limiter interfaces.RateLimiter, logger arbor.ILogger) Searcher {
	return &boardSearcher{render: render, limiter: limiter, logger: logger}
}

func (b *boardSearcher) Search(ctx context.Context, company, title, board string) (*SearchResult, error) {
	switch board {
	case "linkedin":
		return b.searchLinkedIn(ctx, company, title)
	case "indeed":
		return b.searchViaBing(ctx, company, title, "indeed.com")
	default:
		return nil, fmt.Errorf("unsupported board %q", board)
	}
}

// searchLinkedIn queries the public LinkedIn jobs search, which answers
// without a session, and scans the result cards.
func (b *boardSearcher) searchLinkedIn(ctx context.Context, company, title string) (*SearchResult, error) {
	keywords := url.QueryEscape(company + " " + title)
	searchURL := "https://www.linkedin.com/jobs/search?keywords=" + keywords + "&location=United%20States"

	doc, finalURL, err := b.renderDoc(ctx, "linkedin.com", searchURL)
	if err != nil {
		return &SearchResult{Found: false, Confidence: 0.3}, nil
	}
	if strings.Contains(finalURL, "authwall") || strings.Contains(finalURL, "login") {
		b.logger.Debug().Str("company", company).Msg("LinkedIn pushed the search behind the auth wall")
		return &SearchResult{Found: false, Confidence: 0.5}, nil
	}

	cards := doc.Find(".base-card, .base-search-card, .job-search-card")
	if cards.Length() == 0 {
		return &SearchResult{Found: false, Confidence: 0.9}, nil
	}

	titleWords := significantWords(title)
	result := &SearchResult{Found: false, Confidence: 0.8, ResultCount: cards.Length()}

	cards.EachWithBreak(func(i int, card *goquery.Selection) bool {
		if i >= 20 {
			return false
		}
		cardCompany := strings.TrimSpace(card.Find("h4, .base-search-card__subtitle, .job-search-card__subtitle").First().Text())
		cardTitle := strings.TrimSpace(card.Find("h3, .base-search-card__title, .job-search-card__title").First().Text())

		if !fuzzyCompanyMatch(company, cardCompany) {
			return true
		}
		if wordOverlap(titleWords, significantWords(cardTitle)) < 0.5 {
			return true
		}

		result.Found = true
		result.Confidence = 0.85
		result.ListingURL, _ = card.Find("a").First().Attr("href")
		return false
	})
	return result, nil
}

// searchViaBing runs a site:-scoped web search and checks whether any result
// from the target site mentions the company and enough of the title.
func (b *boardSearcher) searchViaBing(ctx context.Context, company, title, site string) (*SearchResult, error) {
	query := url.QueryEscape(company + " " + title + " site:" + site)
	searchURL := "https://www.bing.com/search?q=" + query

	doc, _, err := b.renderDoc(ctx, "bing.com", searchURL)
	if err != nil {
		return &SearchResult{Found: false, Confidence: 0.3}, nil
	}

	links := doc.Find("#b_results .b_algo h2 a, .b_algo a")
	if links.Length() == 0 {
		return &SearchResult{Found: false, Confidence: 0.85}, nil
	}

	companyLower := strings.ToLower(company)
	titleWords := significantWords(title)
	result := &SearchResult{Found: false, Confidence: 0.75, ResultCount: links.Length()}

	links.EachWithBreak(func(i int, link *goquery.Selection) bool {
		if i >= 10 {
			return false
		}
		href, _ := link.Attr("href")
		if !strings.Contains(href, site) {
			return true
		}
		text := strings.ToLower(link.Text())

		companyHit := strings.Contains(text, companyLower)
		if !companyHit {
			for _, w := range strings.Fields(companyLower) {
				if len(w) > 3 && strings.Contains(text, w) {
					companyHit = true
					break
				}
			}
		}
		if !companyHit {
			return true
		}

		matching := 0
		for _, w := range titleWords {
			if strings.Contains(text, w) {
				matching++
			}
		}
		need := len(titleWords) * 3 / 10
		if need < 1 {
			need = 1
		}
		if len(titleWords) == 0 || matching < need {
			return true
		}

		result.Found = true
		result.Confidence = 0.85
		result.ListingURL = href
		return false
	})
	return result, nil
}

// renderDoc rate-limits the host, renders the URL and parses the HTML.
func (b *boardSearcher) renderDoc(ctx context.Context, host, pageURL string) (*goquery.Document, string, error) {
	if err := b.limiter.Wait(ctx, host); err != nil {
		return nil, "", err
	}
	html, err := b.render.Render(ctx, pageURL)
	if err != nil {
		b.limiter.ReportResult(host, 0, err)
		b.logger.Debug().Str("url", pageURL).Err(err).Msg("Board search render failed")
		return nil, "", err
	}
	b.limiter.ReportResult(host, 200, nil)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, "", err
	}
	return doc, pageURL, nil
}

var (
	wordPattern          = regexp.MustCompile(`\b[a-z]+\b`)
	companySuffixPattern = regexp.MustCompile(`\s*(inc\.?|corp\.?|llc|ltd\.?|co\.?|company|technologies|labs?)\s*$`)
	punctPattern         = regexp.MustCompile(`[^\w\s]`)
)

// stopWords are dropped before title matching: generic hiring vocabulary
// would otherwise make every posting look like every other posting.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "at": {}, "in": {},
	"on": {}, "for": {}, "to": {}, "of": {}, "is": {}, "are": {}, "was": {},
	"were": {}, "be": {}, "been": {}, "being": {}, "have": {}, "has": {},
	"had": {}, "do": {}, "does": {}, "did": {}, "will": {}, "would": {},
	"could": {}, "should": {}, "may": {}, "might": {}, "must": {}, "shall": {},
	"can": {}, "need": {}, "we": {}, "you": {}, "our": {}, "your": {},
	"their": {}, "this": {}, "that": {}, "with": {}, "from": {}, "by": {},
	"as": {}, "about": {}, "job": {}, "position": {}, "role": {},
	"opportunity": {}, "career": {}, "hiring": {}, "apply": {}, "now": {},
	"remote": {}, "hybrid": {}, "onsite": {}, "full": {}, "time": {}, "part": {},
}

func significantWords(text string) []string {
	words := wordPattern.FindAllString(strings.ToLower(text), -1)
	out := make([]string, 0, len(words))
	for _, w := range words {
		if _, stop := stopWords[w]; stop || len(w) <= 2 {
			continue
		}
		out = append(out, w)
	}
	return out
}

// wordOverlap returns the fraction of expected words present in actual.
func wordOverlap(expected, actual []string) float64 {
	if len(expected) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(actual))
	for _, w := range actual {
		set[w] = struct{}{}
	}
	hits := 0
	for _, w := range expected {
		if _, ok := set[w]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(expected))
}

// fuzzyCompanyMatch compares company names after stripping corporate
// suffixes and punctuation. Containment either way counts, as do half the
// expected words appearing.
func fuzzyCompanyMatch(expected, actual string) bool {
	expected = normalizeCompany(expected)
	actual = normalizeCompany(actual)
	if expected == "" || actual == "" {
		return false
	}
	if expected == actual || strings.Contains(actual, expected) || strings.Contains(expected, actual) {
		return true
	}
	return wordOverlap(strings.Fields(expected), strings.Fields(actual)) >= 0.5
}

func normalizeCompany(name string) string {
	name = strings.ToLower(name)
	name = companySuffixPattern.ReplaceAllString(name, "")
	name = punctPattern.ReplaceAllString(name, "")
	return strings.TrimSpace(name)
}
