package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/reperio/internal/models"
)

type leverPosting struct {
	ID               string `json:"id"`
	Text             string `json:"text"`
	HostedURL        string `json:"hostedUrl"`
	ApplyURL         string `json:"applyUrl"`
	DescriptionPlain string `json:"descriptionPlain"`
	Categories       struct {
		Location   string `json:"location"`
		Department string `json:"department"`
		Team       string `json:"team"`
		Commitment string `json:"commitment"`
	} `json:"categories"`
}

var leverPostingURLRe = regexp.MustCompile(`/[a-f0-9-]{36}/?$`)

// extractLever parses the ?mode=json listing (a bare array) when present,
// otherwise the server-rendered board.
func extractLever(p *page) []*models.ExtractedJob {
	if looksLikeJSON(p.content) {
		var postings []leverPosting
		if err := json.Unmarshal([]byte(p.content), &postings); err == nil && len(postings) > 0 {
			return leverFromJSON(postings, p.identifier)
		}
	}
	return leverFromHTML(p)
}

func leverFromJSON(postings []leverPosting, identifier string) []*models.ExtractedJob {
	jobs := make([]*models.ExtractedJob, 0, len(postings))
	for _, posting := range postings {
		if posting.Text == "" {
			continue
		}
		sourceURL := posting.HostedURL
		if identifier != "" && posting.ID != "" {
			sourceURL = fmt.Sprintf("https://jobs.lever.co/%s/%s", identifier, posting.ID)
		}
		if sourceURL == "" {
			sourceURL = posting.ApplyURL
		}
		department := posting.Categories.Department
		if department == "" {
			department = posting.Categories.Team
		}
		jobs = append(jobs, &models.ExtractedJob{
			Title:          posting.Text,
			SourceURL:      sourceURL,
			Description:    posting.DescriptionPlain,
			Location:       posting.Categories.Location,
			Department:     department,
			EmploymentType: posting.Categories.Commitment,
		})
	}
	return jobs
}

func leverFromHTML(p *page) []*models.ExtractedJob {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.content))
	if err != nil {
		return nil
	}

	var jobs []*models.ExtractedJob

	doc.Find(".posting").Each(func(_ int, sel *goquery.Selection) {
		title := cleanText(sel.Find(`.posting-title h5, .posting-title a, [data-qa="posting-name"]`).First().Text())
		if title == "" {
			return
		}
		link := sel.Find(`a.posting-title, a[data-qa="posting-name"]`).First()
		if link.Length() == 0 {
			link = sel.Find("a[href]").First()
		}
		href, _ := link.Attr("href")
		jobs = append(jobs, &models.ExtractedJob{
			Title:          title,
			SourceURL:      absoluteURL(p.sourceURL, href),
			Location:       cleanText(sel.Find(`.posting-categories .location, .location, [data-qa="posting-location"]`).First().Text()),
			Department:     cleanText(sel.Find(`.posting-categories .department, .department, [data-qa="posting-department"]`).First().Text()),
			EmploymentType: cleanText(sel.Find(`.posting-categories .commitment, .commitment, [data-qa="posting-commitment"]`).First().Text()),
		})
	})
	if len(jobs) > 0 {
		return jobs
	}

	if jobs = extractJSONLD(doc, p.sourceURL); len(jobs) > 0 {
		return jobs
	}

	// Posting links carry a UUID path segment; everything else on
	// jobs.lever.co is a category page.
	seen := make(map[string]bool)
	doc.Find(`a[href*="jobs.lever.co"]`).Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if href == "" || seen[href] || !leverPostingURLRe.MatchString(href) {
			return
		}
		seen[href] = true
		title := cleanText(sel.Text())
		if len(title) > 3 {
			jobs = append(jobs, &models.ExtractedJob{Title: title, SourceURL: href})
		}
	})
	return jobs
}
