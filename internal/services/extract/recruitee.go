package extract

import (
	"encoding/json"

	"github.com/ternarybob/reperio/internal/models"
)

type recruiteeOfferList struct {
	Offers []recruiteeOffer `json:"offers"`
}

type recruiteeOffer struct {
	Title          string          `json:"title"`
	Position       string          `json:"position"`
	Location       string          `json:"location"`
	City           string          `json:"city"`
	Country        string          `json:"country"`
	Department     json.RawMessage `json:"department"`
	Category       json.RawMessage `json:"category"`
	CareersURL     string          `json:"careers_url"`
	URL            string          `json:"url"`
	EmploymentType string          `json:"employment_type_code"`
	Remote         json.RawMessage `json:"remote"`
	CreatedAt      string          `json:"created_at"`
}

// extractRecruitee parses the careers-site offers API.
func extractRecruitee(p *page) []*models.ExtractedJob {
	if !looksLikeJSON(p.content) {
		return nil
	}
	var list recruiteeOfferList
	if err := json.Unmarshal([]byte(p.content), &list); err != nil {
		return nil
	}

	jobs := make([]*models.ExtractedJob, 0, len(list.Offers))
	for _, offer := range list.Offers {
		title := offer.Title
		if title == "" {
			title = offer.Position
		}
		if title == "" {
			continue
		}
		location := offer.Location
		if location == "" {
			location = joinLocation(offer.City, "", offer.Country, "")
		}
		sourceURL := offer.CareersURL
		if sourceURL == "" {
			sourceURL = offer.URL
		}
		department := nameOrString(offer.Department)
		if department == "" {
			department = nameOrString(offer.Category)
		}
		jobs = append(jobs, &models.ExtractedJob{
			Title:          title,
			SourceURL:      sourceURL,
			Location:       location,
			Department:     department,
			EmploymentType: offer.EmploymentType,
			PostedAt:       offer.CreatedAt,
			Remote:         rawTrue(offer.Remote),
		})
	}
	return jobs
}
