package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/reperio/internal/models"
)

type ashbyJobList struct {
	Jobs []ashbyJob `json:"jobs"`
}

type ashbyJob struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	Location       json.RawMessage `json:"location"`
	Team           json.RawMessage `json:"team"`
	Department     json.RawMessage `json:"department"`
	EmploymentType string          `json:"employmentType"`
	PublishedAt    string          `json:"publishedAt"`
	JobURL         string          `json:"jobUrl"`
	ApplyURL       string          `json:"applyUrl"`
}

var uuidPathRe = regexp.MustCompile(`/[a-f0-9-]{36}/?$`)

// extractAshby parses the posting-api job board payload, then the
// __NEXT_DATA__ blob the hosted board embeds, then plain markup.
func extractAshby(p *page) []*models.ExtractedJob {
	if looksLikeJSON(p.content) {
		var list ashbyJobList
		if err := json.Unmarshal([]byte(p.content), &list); err == nil && len(list.Jobs) > 0 {
			return ashbyFromJSON(&list, p.identifier)
		}
	}
	return ashbyFromHTML(p)
}

func ashbyFromJSON(list *ashbyJobList, identifier string) []*models.ExtractedJob {
	jobs := make([]*models.ExtractedJob, 0, len(list.Jobs))
	for _, j := range list.Jobs {
		if j.Title == "" {
			continue
		}
		sourceURL := j.JobURL
		if sourceURL == "" {
			if identifier != "" {
				sourceURL = fmt.Sprintf("https://jobs.ashbyhq.com/%s/%s", identifier, j.ID)
			} else {
				sourceURL = j.ApplyURL
			}
		}
		department := nameOrString(j.Team)
		if department == "" {
			department = nameOrString(j.Department)
		}
		jobs = append(jobs, &models.ExtractedJob{
			Title:          j.Title,
			SourceURL:      sourceURL,
			Location:       nameOrString(j.Location),
			Department:     department,
			EmploymentType: j.EmploymentType,
			PostedAt:       j.PublishedAt,
		})
	}
	return jobs
}

// ashbyNextData mirrors the slice of props.pageProps the hosted board ships.
type ashbyNextData struct {
	Props struct {
		PageProps struct {
			JobPostings []struct {
				ID             string `json:"id"`
				Title          string `json:"title"`
				LocationName   string `json:"locationName"`
				TeamName       string `json:"teamName"`
				EmploymentType string `json:"employmentType"`
			} `json:"jobPostings"`
		} `json:"pageProps"`
	} `json:"props"`
}

func ashbyFromHTML(p *page) []*models.ExtractedJob {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.content))
	if err != nil {
		return nil
	}

	var jobs []*models.ExtractedJob

	if raw := doc.Find("script#__NEXT_DATA__").First().Text(); raw != "" {
		var data ashbyNextData
		if err := json.Unmarshal([]byte(raw), &data); err == nil {
			for _, posting := range data.Props.PageProps.JobPostings {
				if posting.Title == "" {
					continue
				}
				jobs = append(jobs, &models.ExtractedJob{
					Title:          posting.Title,
					SourceURL:      absoluteURL(p.sourceURL, "/"+posting.ID),
					Location:       posting.LocationName,
					Department:     posting.TeamName,
					EmploymentType: posting.EmploymentType,
				})
			}
			if len(jobs) > 0 {
				return jobs
			}
		}
	}

	doc.Find(`[class*="JobPosting"], [class*="job-posting"]`).Each(func(_ int, sel *goquery.Selection) {
		title := cleanText(sel.Find(`h3, h4, [class*="title"]`).First().Text())
		if title == "" {
			return
		}
		href, _ := sel.Find("a[href]").First().Attr("href")
		jobs = append(jobs, &models.ExtractedJob{
			Title:      title,
			SourceURL:  absoluteURL(p.sourceURL, href),
			Location:   cleanText(sel.Find(`[class*="location"]`).First().Text()),
			Department: cleanText(sel.Find(`[class*="team"], [class*="department"]`).First().Text()),
		})
	})
	if len(jobs) > 0 {
		return jobs
	}

	// Posting URLs end in a UUID.
	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if href == "" || seen[href] || !uuidPathRe.MatchString(href) {
			return
		}
		seen[href] = true
		title := cleanText(sel.Text())
		if len(title) > 5 && !isNavigationText(title) {
			jobs = append(jobs, &models.ExtractedJob{
				Title:     title,
				SourceURL: absoluteURL(p.sourceURL, href),
			})
		}
	})
	return jobs
}
