package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/ternarybob/arbor"
	"golang.org/x/oauth2"

	"github.com/ternarybob/reperio/internal/models"
)

const (
	githubMaxPages    = 10
	githubOrgsPerPage = 30
)

// Locations used for org search queries. GitHub's search is the only public
// way to enumerate orgs, and location restriction keeps the result set
// mostly hiring-relevant US companies.
var githubOrgLocations = []string{
	"San Francisco", "New York", "Austin", "Seattle", "Boston",
	"Los Angeles", "Chicago", "Denver", "Atlanta", "Miami",
}

var githubEduKeywords = []string{
	"university", "college", "school", ".edu", "academy", "institute",
}

var githubNonCompanyKeywords = []string{
	"foundation", "nonprofit", "non-profit", "government", "sports team",
	"church", "museum",
}

// githubOrgsSource finds companies through their GitHub organizations:
// location-restricted org searches, then a profile fetch per org for the
// website and location that admission needs.
type githubOrgsSource struct {
	client *github.Client
	dedup  *Dedup
	logger arbor.ILogger
	progress
}

// newGitHubOrgsSource builds the source. An empty token uses unauthenticated
// requests, which hit GitHub's anonymous rate limit quickly; the source stops
// cleanly when that happens.
func newGitHubOrgsSource(token string, dedup *Dedup, logger arbor.ILogger) *githubOrgsSource {
	var hc *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		hc = oauth2.NewClient(context.Background(), ts)
	}
	return &githubOrgsSource{client: github.NewClient(hc), dedup: dedup, logger: logger}
}

func (s *githubOrgsSource) Name() string { return "github_orgs" }

func (s *githubOrgsSource) Discover(ctx context.Context, emit EmitFunc) error {
	queries := make([]string, 0, len(githubOrgLocations)+1)
	for _, loc := range githubOrgLocations {
		queries = append(queries, fmt.Sprintf("location:%q type:org", loc))
	}
	// Recently created orgs regardless of location; young companies set up
	// GitHub long before they publish a careers page.
	cutoff := time.Now().UTC().AddDate(0, -6, 0).Format("2006-01-02")
	queries = append(queries, "type:org created:>"+cutoff)

	s.total.Store(int64(len(queries)))
	seen := make(map[string]struct{})

	for _, query := range queries {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := s.discoverQuery(ctx, query, seen, emit)
		s.current.Add(1)
		if err != nil {
			var rateErr *github.RateLimitError
			if errors.As(err, &rateErr) {
				s.logger.Warn().Str("query", query).Msg("GitHub rate limit reached, stopping source")
				return nil
			}
			s.logger.Warn().Str("query", query).Err(err).Msg("GitHub org search failed")
		}
	}
	return nil
}

func (s *githubOrgsSource) discoverQuery(ctx context.Context, query string, seen map[string]struct{}, emit EmitFunc) error {
	opts := &github.SearchOptions{
		Sort:        "followers",
		ListOptions: github.ListOptions{PerPage: githubOrgsPerPage},
	}
	for page := 1; page <= githubMaxPages; page++ {
		opts.Page = page
		result, resp, err := s.client.Search.Users(ctx, query, opts)
		if err != nil {
			return err
		}
		for _, user := range result.Users {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			login := user.GetLogin()
			if login == "" || user.GetType() != "Organization" {
				continue
			}
			if _, dup := seen[login]; dup {
				continue
			}
			seen[login] = struct{}{}
			if err := s.inspectOrg(ctx, login, emit); err != nil {
				return err
			}
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
	}
	return nil
}

// inspectOrg fetches the org profile and emits it when it looks like a
// hiring company: a real website, enough public code to suggest an
// engineering team, and none of the institution markers.
func (s *githubOrgsSource) inspectOrg(ctx context.Context, login string, emit EmitFunc) error {
	org, _, err := s.client.Organizations.Get(ctx, login)
	if err != nil {
		var rateErr *github.RateLimitError
		if errors.As(err, &rateErr) {
			return err
		}
		s.logger.Debug().Str("org", login).Err(err).Msg("Org profile fetch failed")
		return nil
	}

	website := strings.TrimSpace(org.GetBlog())
	if website == "" || org.GetPublicRepos() < 3 {
		return nil
	}
	if !strings.Contains(website, "://") {
		website = "https://" + website
	}
	if strings.Contains(website, "github.com") || strings.Contains(website, "github.io") {
		return nil
	}

	haystack := strings.ToLower(org.GetName() + " " + org.GetDescription() + " " + website)
	for _, kw := range githubEduKeywords {
		if strings.Contains(haystack, kw) {
			return nil
		}
	}
	for _, kw := range githubNonCompanyKeywords {
		if strings.Contains(haystack, kw) {
			return nil
		}
	}

	name := org.GetName()
	if name == "" {
		name = login
	}
	d := &models.DiscoveredCompany{
		Name:        name,
		WebsiteURL:  website,
		Location:    org.GetLocation(),
		Description: org.GetDescription(),
		Source:      "github_orgs",
		SourceURL:   org.GetHTMLURL(),
	}
	d.Normalize()
	if d.Domain != "" && s.dedup.IsDomainKnown(d.Domain) {
		return nil
	}
	if looksUS(org.GetLocation()) {
		d.Country = "US"
	}
	emit(d)
	return nil
}
