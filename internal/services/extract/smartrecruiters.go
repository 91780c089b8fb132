package extract

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/reperio/internal/models"
)

type smartRecruitersList struct {
	Content  []smartRecruitersPosting `json:"content"`
	Postings []smartRecruitersPosting `json:"postings"`
	Jobs     []smartRecruitersPosting `json:"jobs"`
}

type smartRecruitersPosting struct {
	Name     string `json:"name"`
	Title    string `json:"title"`
	Location struct {
		City    string          `json:"city"`
		Region  string          `json:"region"`
		Country string          `json:"country"`
		Remote  json.RawMessage `json:"remote"`
	} `json:"location"`
	Department struct {
		Label string `json:"label"`
	} `json:"department"`
	TypeOfEmployment struct {
		Label string `json:"label"`
	} `json:"typeOfEmployment"`
	ReleasedDate string `json:"releasedDate"`
	CreatedOn    string `json:"createdOn"`
	Ref          string `json:"ref"`
	ApplyURL     string `json:"applyUrl"`
}

// extractSmartRecruiters parses the public postings API, accepting the three
// envelope keys the vendor has shipped over time.
func extractSmartRecruiters(p *page) []*models.ExtractedJob {
	if looksLikeJSON(p.content) {
		var list smartRecruitersList
		if err := json.Unmarshal([]byte(p.content), &list); err == nil {
			postings := list.Content
			if len(postings) == 0 {
				postings = list.Postings
			}
			if len(postings) == 0 {
				postings = list.Jobs
			}
			if jobs := smartRecruitersFromJSON(postings); len(jobs) > 0 {
				return jobs
			}
		}
	}
	return smartRecruitersFromHTML(p)
}

func smartRecruitersFromJSON(postings []smartRecruitersPosting) []*models.ExtractedJob {
	jobs := make([]*models.ExtractedJob, 0, len(postings))
	for _, posting := range postings {
		title := posting.Name
		if title == "" {
			title = posting.Title
		}
		if title == "" {
			continue
		}
		sourceURL := posting.ApplyURL
		if sourceURL == "" {
			sourceURL = posting.Ref
		}
		postedAt := posting.ReleasedDate
		if postedAt == "" {
			postedAt = posting.CreatedOn
		}
		jobs = append(jobs, &models.ExtractedJob{
			Title:          title,
			SourceURL:      sourceURL,
			Location:       joinLocation(posting.Location.City, posting.Location.Region, posting.Location.Country, ""),
			Department:     posting.Department.Label,
			EmploymentType: posting.TypeOfEmployment.Label,
			PostedAt:       postedAt,
			Remote:         rawTrue(posting.Location.Remote),
		})
	}
	return jobs
}

func smartRecruitersFromHTML(p *page) []*models.ExtractedJob {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.content))
	if err != nil {
		return nil
	}

	var jobs []*models.ExtractedJob
	doc.Find(`.job-card, .opening, [class*="job-item"], [data-job-id], .job-listing`).Each(func(_ int, sel *goquery.Selection) {
		titleSel := sel.Find("a, h2, h3, h4, .job-title, .opening-title").First()
		title := cleanText(titleSel.Text())
		if title == "" {
			return
		}
		href, _ := titleSel.Attr("href")
		if href == "" {
			href, _ = sel.Find("a[href]").First().Attr("href")
		}
		jobs = append(jobs, &models.ExtractedJob{
			Title:          title,
			SourceURL:      absoluteURL(p.sourceURL, href),
			Location:       cleanText(sel.Find(".location, .job-location").First().Text()),
			Department:     cleanText(sel.Find(".department").First().Text()),
			EmploymentType: cleanText(sel.Find(".job-type, .type").First().Text()),
		})
	})
	return jobs
}
