package extract

import (
	"encoding/json"

	"github.com/ternarybob/reperio/internal/models"
)

type workableJobList struct {
	Jobs []workableJob `json:"jobs"`
}

type workableJob struct {
	Title          string `json:"title"`
	Shortcode      string `json:"shortcode"`
	URL            string `json:"url"`
	Shortlink      string `json:"shortlink"`
	City           string `json:"city"`
	State          string `json:"state"`
	Country        string `json:"country"`
	Department     string `json:"department"`
	EmploymentType string `json:"employment_type"`
	Type           string `json:"type"`
	PublishedOn    string `json:"published_on"`
	CreatedAt      string `json:"created_at"`
}

// extractWorkable only understands the widget API payload; the hosted board
// is a JS app that renders nothing crawlable.
func extractWorkable(p *page) []*models.ExtractedJob {
	if !looksLikeJSON(p.content) {
		return nil
	}
	var list workableJobList
	if err := json.Unmarshal([]byte(p.content), &list); err != nil {
		return nil
	}

	jobs := make([]*models.ExtractedJob, 0, len(list.Jobs))
	for _, j := range list.Jobs {
		if j.Title == "" {
			continue
		}
		sourceURL := j.URL
		if sourceURL == "" {
			sourceURL = j.Shortlink
		}
		employmentType := j.EmploymentType
		if employmentType == "" {
			employmentType = j.Type
		}
		postedAt := j.PublishedOn
		if postedAt == "" {
			postedAt = j.CreatedAt
		}
		jobs = append(jobs, &models.ExtractedJob{
			Title:          j.Title,
			SourceURL:      sourceURL,
			Location:       joinLocation(j.City, j.State, j.Country, ""),
			Department:     j.Department,
			EmploymentType: employmentType,
			PostedAt:       postedAt,
		})
	}
	return jobs
}
