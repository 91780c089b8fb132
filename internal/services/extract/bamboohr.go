package extract

import (
	"encoding/json"

	"github.com/ternarybob/reperio/internal/models"
)

type bambooHRList struct {
	Result []bambooHRJob `json:"result"`
}

type bambooHRJob struct {
	JobOpeningName        string          `json:"jobOpeningName"`
	Title                 string          `json:"title"`
	DepartmentLabel       string          `json:"departmentLabel"`
	EmploymentStatusLabel string          `json:"employmentStatusLabel"`
	Location              json.RawMessage `json:"location"`
	City                  string          `json:"city"`
	State                 string          `json:"state"`
	Country               string          `json:"country"`
	JobOpeningShareURL    string          `json:"jobOpeningShareUrl"`
	URL                   string          `json:"url"`
	IsRemote              json.RawMessage `json:"isRemote"`
}

// extractBambooHR parses the careers/list payload. Location arrives either
// as a {city,state} object or as city/state fields on the job itself.
func extractBambooHR(p *page) []*models.ExtractedJob {
	if !looksLikeJSON(p.content) {
		return nil
	}
	var list bambooHRList
	if err := json.Unmarshal([]byte(p.content), &list); err != nil {
		return nil
	}

	jobs := make([]*models.ExtractedJob, 0, len(list.Result))
	for _, j := range list.Result {
		title := j.JobOpeningName
		if title == "" {
			title = j.Title
		}
		if title == "" {
			continue
		}
		location := bambooLocation(j.Location)
		if location == "" {
			location = joinLocation(j.City, j.State, j.Country, "")
		}
		sourceURL := j.JobOpeningShareURL
		if sourceURL == "" {
			sourceURL = j.URL
		}
		jobs = append(jobs, &models.ExtractedJob{
			Title:          title,
			SourceURL:      sourceURL,
			Location:       location,
			Department:     j.DepartmentLabel,
			EmploymentType: j.EmploymentStatusLabel,
			Remote:         rawTrue(j.IsRemote),
		})
	}
	return jobs
}

func bambooLocation(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		City  string `json:"city"`
		State string `json:"state"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return joinLocation(obj.City, obj.State, "", "")
	}
	return ""
}
