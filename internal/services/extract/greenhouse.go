package extract

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/reperio/internal/models"
)

type greenhouseJobList struct {
	Jobs []greenhouseJob `json:"jobs"`
}

type greenhouseJob struct {
	Title       string          `json:"title"`
	AbsoluteURL string          `json:"absolute_url"`
	UpdatedAt   string          `json:"updated_at"`
	Location    json.RawMessage `json:"location"`
	Departments []struct {
		Name string `json:"name"`
	} `json:"departments"`
}

// extractGreenhouse parses the boards-api jobs listing when the crawl fetched
// JSON, otherwise falls back to board markup.
func extractGreenhouse(p *page) []*models.ExtractedJob {
	if looksLikeJSON(p.content) {
		var list greenhouseJobList
		if err := json.Unmarshal([]byte(p.content), &list); err == nil && len(list.Jobs) > 0 {
			return greenhouseFromJSON(&list)
		}
	}
	return greenhouseFromHTML(p)
}

func greenhouseFromJSON(list *greenhouseJobList) []*models.ExtractedJob {
	jobs := make([]*models.ExtractedJob, 0, len(list.Jobs))
	for _, j := range list.Jobs {
		if j.Title == "" {
			continue
		}
		var departments []string
		for _, d := range j.Departments {
			if d.Name != "" {
				departments = append(departments, d.Name)
			}
		}
		jobs = append(jobs, &models.ExtractedJob{
			Title:      j.Title,
			SourceURL:  j.AbsoluteURL,
			Location:   nameOrString(j.Location),
			Department: strings.Join(departments, ", "),
			PostedAt:   j.UpdatedAt,
		})
	}
	return jobs
}

func greenhouseFromHTML(p *page) []*models.ExtractedJob {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.content))
	if err != nil {
		return nil
	}

	var jobs []*models.ExtractedJob

	// Classic board markup: one .opening per posting.
	doc.Find(".opening").Each(func(_ int, sel *goquery.Selection) {
		link := sel.Find("a").First()
		title := cleanText(link.Text())
		href, _ := link.Attr("href")
		if title == "" || href == "" {
			return
		}
		jobs = append(jobs, &models.ExtractedJob{
			Title:     title,
			SourceURL: absoluteURL(p.sourceURL, href),
			Location:  cleanText(sel.Find(".location").First().Text()),
		})
	})
	if len(jobs) > 0 {
		return jobs
	}

	// Newer job-board layouts use card containers.
	doc.Find(".job-card, .job-post, [data-job-id]").Each(func(_ int, sel *goquery.Selection) {
		if job := jobFromCard(sel, p.sourceURL); job != nil {
			jobs = append(jobs, job)
		}
	})
	if len(jobs) > 0 {
		return jobs
	}

	// Bare links into /jobs/ paths.
	seen := make(map[string]bool)
	doc.Find(`a[href*="/jobs/"]`).Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if href == "" || seen[href] {
			return
		}
		seen[href] = true
		title := cleanText(sel.Text())
		if len(title) > 3 {
			jobs = append(jobs, &models.ExtractedJob{
				Title:     title,
				SourceURL: absoluteURL(p.sourceURL, href),
			})
		}
	})

	jobs = append(jobs, extractJSONLD(doc, p.sourceURL)...)
	return jobs
}

// jobFromCard parses a generic job-card container: heading or first link for
// the title, class-hinted children for location and department.
func jobFromCard(sel *goquery.Selection, baseURL string) *models.ExtractedJob {
	titleSel := sel.Find("h2, h3, .job-title, [data-job-title]").First()
	if titleSel.Length() == 0 {
		titleSel = sel.Find("a").First()
	}
	title := cleanText(titleSel.Text())
	if title == "" {
		return nil
	}

	href, _ := sel.Find("a[href]").First().Attr("href")
	return &models.ExtractedJob{
		Title:      title,
		SourceURL:  absoluteURL(baseURL, href),
		Location:   cleanText(sel.Find(".location, [data-location]").First().Text()),
		Department: cleanText(sel.Find(".department, [data-department]").First().Text()),
	}
}
