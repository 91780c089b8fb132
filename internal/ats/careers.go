package ats

import (
	"context"
	"net/url"
	"regexp"
	"strings"
)

// Paths probed in order when hunting for a careers page on a bare domain.
var careerProbePaths = []string{
	"/careers",
	"/jobs",
	"/careers/",
	"/jobs/",
	"/join-us",
	"/join",
	"/work-with-us",
	"/about/careers",
	"/company/careers",
}

// Hosted hiring platforms. A careers URL on one of these hosts is valid for
// any company domain.
var hiringPlatformHosts = []string{
	"greenhouse.io",
	"lever.co",
	"ashbyhq.com",
	"workable.com",
	"myworkdayjobs.com",
	"bamboohr.com",
	"zohorecruit.com",
	"zohorecruitcloud.com",
	"bullhornstaffing.com",
	"gem.com",
	"applytojob.com",
	"jazz.co",
	"freshteam.com",
	"recruitee.com",
	"pinpointhq.com",
	"pcrecruiter.net",
	"recruitcrm.io",
	"manatal.com",
	"recooty.com",
	"successfactors.com",
	"successfactors.eu",
	"gohire.io",
	"folkshr.com",
	"goboon.co",
	"talentreef.com",
	"eddy.com",
	"jobvite.com",
	"icims.com",
	"smartrecruiters.com",
	"rippling.com",
	"scalis.ai",
	"paylocity.com",
	"breezy.hr",
	"personio.de",
	"personio.com",
	"teamtailor.com",
	"wellfound.com",
	"angel.co",
}

// ValidCareersURLForDomain checks that a careers URL belongs to the company
// that owns companyDomain. Valid when the URL shares the company's base
// domain, sits on a hosted hiring platform, or carries the company name in
// its host or path. Everything else points at some other company's jobs.
func ValidCareersURLForDomain(careersURL, companyDomain string) bool {
	parsed, err := url.Parse(careersURL)
	if err != nil || parsed.Host == "" {
		return false
	}

	careersHost := strings.ToLower(parsed.Host)
	companyDomain = strings.ToLower(companyDomain)

	if baseDomain(companyDomain) == baseDomain(careersHost) {
		return true
	}

	for _, platform := range hiringPlatformHosts {
		if strings.HasSuffix(careersHost, platform) {
			return true
		}
	}

	companyName := companyDomain
	if idx := strings.Index(companyDomain, "."); idx > 0 {
		companyName = companyDomain[:idx]
	}
	if strings.Contains(careersHost, companyName) || strings.Contains(strings.ToLower(parsed.Path), companyName) {
		return true
	}

	return false
}

var careersHrefPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)href="([^"]*(?:careers|jobs)[^"]*)"`),
	regexp.MustCompile(`(?i)href='([^']*(?:careers|jobs)[^']*)'`),
}

// FindCareersURL probes common careers paths on a domain, then scans the
// homepage for careers links. Returns "" when nothing checks out.
func (d *Detector) FindCareersURL(ctx context.Context, domain string) string {
	baseURL := "https://" + domain

	for _, path := range careerProbePaths {
		res, err := d.fetcher.Head(ctx, baseURL+path)
		if err != nil || res.StatusCode != 200 {
			continue
		}

		finalURL := res.FinalURL
		if family, _ := DetectFromURL(finalURL); family != "" {
			if ValidCareersURLForDomain(finalURL, domain) {
				return finalURL
			}
			d.logger.Debug().
				Str("domain", domain).
				Str("careers_url", finalURL).
				Msg("Skipping careers URL that belongs to a different company")
			continue
		}

		return finalURL
	}

	res, err := d.fetcher.Fetch(ctx, baseURL)
	if err != nil || res.StatusCode != 200 || res.Body == nil {
		return ""
	}

	html := string(res.Body)
	for _, pattern := range careersHrefPatterns {
		for _, match := range pattern.FindAllStringSubmatch(html, -1) {
			href := match[1]
			if strings.HasPrefix(href, "http") {
				if ValidCareersURLForDomain(href, domain) {
					return href
				}
				d.logger.Debug().
					Str("domain", domain).
					Str("careers_url", href).
					Msg("Skipping external careers link that belongs to a different company")
				continue
			}
			if strings.HasPrefix(href, "/") {
				return baseURL + href
			}
		}
	}

	return ""
}
