package discovery

import (
	"context"
	"encoding/xml"
	"regexp"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
)

// fundingMaxAgeDays bounds how far back feed items are considered.
const fundingMaxAgeDays = 30

type fundingFeed struct {
	url  string
	name string
}

var fundingFeeds = []fundingFeed{
	{"https://techcrunch.com/category/startups/feed/", "techcrunch_startups"},
	{"https://techcrunch.com/tag/funding/feed/", "techcrunch_funding"},
	{"https://venturebeat.com/category/business/funding/feed/", "venturebeat_funding"},
	{"https://news.crunchbase.com/feed/", "crunchbase_news"},
	{"https://www.saastr.com/feed/", "saastr"},
	{"https://review.firstround.com/feed.xml", "first_round_review"},
}

var fundingKeywords = []string{
	"raises", "raised", "funding", "series a", "series b", "series c",
	"series d", "seed round", "seed funding", "million", "billion",
}

// Name patterns require funding context: a capitalized token right before a
// raise verb, or right after a dollar amount.
var fundingNamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`([A-Z][a-zA-Z0-9]+(?:\.[A-Z][a-zA-Z0-9]+)?)\s+(?i:raises?|raised|secures?|secured|closes?|closed)\s+\$\d+`),
	regexp.MustCompile(`\$\d+(?:\.\d+)?\s*(?i:million|billion|M|B)\s+(?i:for|to|into)\s+([A-Z][a-zA-Z0-9]+(?:\.[A-Z][a-zA-Z0-9]+)?)`),
}

var fundingURLPattern = regexp.MustCompile(`https?://(?:www\.)?([a-zA-Z0-9-]+\.[a-z]{2,})`)

// Words a name regex can capture that are never company names.
var fundingSkipWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "this": {}, "that": {}, "these": {}, "those": {},
	"series": {}, "round": {}, "seed": {}, "funding": {}, "million": {}, "billion": {},
	"startup": {}, "company": {}, "venture": {}, "capital": {}, "investment": {},
	"today": {}, "monday": {}, "tuesday": {}, "wednesday": {}, "thursday": {},
	"friday": {}, "saturday": {}, "sunday": {}, "announces": {}, "raises": {},
	"has": {}, "will": {}, "can": {}, "could": {}, "would": {}, "should": {},
	"last": {}, "next": {}, "first": {}, "second": {}, "third": {},
	"year": {}, "month": {}, "week": {}, "day": {}, "time": {},
	"new": {}, "old": {}, "big": {}, "small": {}, "more": {}, "less": {},
	"all": {}, "some": {}, "any": {}, "most": {}, "many": {}, "few": {},
	"now": {}, "then": {}, "here": {}, "there": {}, "just": {}, "only": {},
	"also": {}, "even": {}, "still": {}, "already": {}, "yet": {},
	"net": {}, "gross": {}, "total": {}, "average": {}, "median": {},
	"stakes": {}, "shares": {}, "equity": {}, "stock": {}, "bond": {},
}

// Domains in article bodies that are press or social sites, never the
// funded company.
var fundingSkipDomains = map[string]struct{}{
	"techcrunch.com": {}, "venturebeat.com": {}, "crunchbase.com": {},
	"twitter.com": {}, "linkedin.com": {}, "facebook.com": {},
	"youtube.com": {}, "google.com": {}, "medium.com": {},
	"substack.com": {}, "saastr.com": {}, "firstround.com": {},
}

// Checked in order; the first stage mentioned wins. Pre-seed sits before the
// seed entries because "pre-seed round" contains both.
var fundingStages = []struct {
	marker string
	stage  string
}{
	{"pre-seed", "Pre-Seed"},
	{"series d", "Series D"},
	{"series c", "Series C"},
	{"series b", "Series B"},
	{"series a", "Series A"},
	{"seed round", "Seed"},
	{"seed funding", "Seed"},
}

// fundingNewsSource mines startup funding feeds: items with funding keywords
// give company names via regex templates and websites via in-article links.
type fundingNewsSource struct {
	fetcher interfaces.Fetcher
	logger  arbor.ILogger
	progress
}

func newFundingNewsSource(fetcher interfaces.Fetcher, logger arbor.ILogger) *fundingNewsSource {
	return &fundingNewsSource{fetcher: fetcher, logger: logger}
}

func (s *fundingNewsSource) Name() string { return "funding_news" }

func (s *fundingNewsSource) Discover(ctx context.Context, emit EmitFunc) error {
	s.total.Store(int64(len(fundingFeeds)))
	seenNames := make(map[string]struct{})

	for _, feed := range fundingFeeds {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		body := fetchPage(ctx, s.fetcher, feed.url)
		if body == "" {
			s.logger.Warn().Str("feed", feed.url).Msg("Feed unavailable")
			s.current.Add(1)
			continue
		}

		items, err := parseFeed(body)
		if err != nil {
			s.logger.Warn().Str("feed", feed.url).Err(err).Msg("Feed parse failed")
			s.current.Add(1)
			continue
		}

		for _, item := range items {
			s.processItem(item, feed.name, seenNames, emit)
		}
		s.current.Add(1)
	}
	return nil
}

func (s *fundingNewsSource) processItem(item feedItem, feedName string, seenNames map[string]struct{}, emit EmitFunc) {
	if !recentEnough(item.date(), fundingMaxAgeDays) {
		return
	}

	desc := stripTags(item.description())
	content := strings.ToLower(item.Title + " " + desc)
	if !containsAny(content, fundingKeywords) {
		return
	}

	stage := extractFundingStage(content)
	for _, mention := range extractFundedCompanies(item.Title + " " + desc) {
		key := strings.ToLower(mention.name)
		if _, dup := seenNames[key]; dup {
			continue
		}
		seenNames[key] = struct{}{}

		emit(&models.DiscoveredCompany{
			Name:         mention.name,
			WebsiteURL:   mention.website,
			Description:  truncate(desc, 500),
			FundingStage: stage,
			Source:       "funding_news_" + feedName,
			SourceURL:    item.link(),
			Country:      "US",
		})
	}
}

type fundedMention struct {
	name    string
	website string
}

// extractFundedCompanies pulls candidate company names out of an article:
// the regex templates first, then domains linked in the body.
func extractFundedCompanies(text string) []fundedMention {
	var mentions []fundedMention
	found := make(map[string]struct{})

	for _, pattern := range fundingNamePatterns {
		for _, m := range pattern.FindAllStringSubmatch(text, -1) {
			name := strings.TrimSpace(m[1])
			if len(name) < 3 || len(name) > 40 {
				continue
			}
			if name[0] < 'A' || name[0] > 'Z' {
				continue
			}
			if fundingSkipWord(name) {
				continue
			}
			key := strings.ToLower(name)
			if _, dup := found[key]; dup {
				continue
			}
			found[key] = struct{}{}
			mentions = append(mentions, fundedMention{name: name})
		}
	}

	for _, m := range fundingURLPattern.FindAllStringSubmatch(text, -1) {
		domain := strings.ToLower(m[1])
		if _, skip := fundingSkipDomains[domain]; skip {
			continue
		}
		name := slugToName(strings.SplitN(domain, ".", 2)[0])
		key := strings.ToLower(name)
		if _, dup := found[key]; dup {
			continue
		}
		found[key] = struct{}{}
		mentions = append(mentions, fundedMention{name: name, website: "https://" + domain})
	}
	return mentions
}

func fundingSkipWord(name string) bool {
	if _, skip := fundingSkipWords[strings.ToLower(name)]; skip {
		return true
	}
	for _, w := range strings.Fields(strings.ToLower(name)) {
		if _, skip := fundingSkipWords[w]; skip {
			return true
		}
	}
	return false
}

func extractFundingStage(content string) string {
	for _, s := range fundingStages {
		if strings.Contains(content, s.marker) {
			return s.stage
		}
	}
	return ""
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

// Feed parsing. One item shape covers both RSS <item> and Atom <entry>;
// encoding/xml matches on local names, so the Atom namespace needs no
// special casing.

type feedDocument struct {
	Channel struct {
		Items []feedItem `xml:"item"`
	} `xml:"channel"`
	Entries []feedItem `xml:"entry"`
}

type feedItem struct {
	Title       string     `xml:"title"`
	Description string     `xml:"description"`
	Encoded     string     `xml:"encoded"` // RSS content:encoded
	Content     string     `xml:"content"` // Atom
	Summary     string     `xml:"summary"` // Atom
	Links       []feedLink `xml:"link"`
	PubDate     string     `xml:"pubDate"`
	Published   string     `xml:"published"` // Atom
	Updated     string     `xml:"updated"`   // Atom
}

type feedLink struct {
	Href string `xml:"href,attr"`
	Text string `xml:",chardata"`
}

func parseFeed(body string) ([]feedItem, error) {
	var doc feedDocument
	if err := xml.Unmarshal([]byte(body), &doc); err != nil {
		return nil, err
	}
	return append(doc.Channel.Items, doc.Entries...), nil
}

func (i feedItem) description() string {
	for _, s := range []string{i.Description, i.Encoded, i.Content, i.Summary} {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// link prefers an Atom href attribute, falling back to RSS element text.
func (i feedItem) link() string {
	for _, l := range i.Links {
		if l.Href != "" {
			return l.Href
		}
	}
	for _, l := range i.Links {
		if t := strings.TrimSpace(l.Text); t != "" {
			return t
		}
	}
	return ""
}

func (i feedItem) date() string {
	for _, s := range []string{i.PubDate, i.Published, i.Updated} {
		if s != "" {
			return s
		}
	}
	return ""
}

var feedDateFormats = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02",
}

// recentEnough reports whether a feed date falls inside the age window.
// Missing or unparsable dates count as recent so odd feeds are not dropped
// wholesale.
func recentEnough(dateStr string, maxAgeDays int) bool {
	dateStr = strings.TrimSpace(dateStr)
	if dateStr == "" {
		return true
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -maxAgeDays)
	for _, format := range feedDateFormats {
		if parsed, err := time.Parse(format, dateStr); err == nil {
			return parsed.After(cutoff)
		}
	}
	return true
}
