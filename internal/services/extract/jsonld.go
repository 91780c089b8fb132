package extract

import (
	"encoding/json"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/reperio/internal/models"
)

// extractJSONLD pulls schema.org JobPosting objects out of every
// application/ld+json script on the page. Postings can hide inside @graph,
// itemListElement or mainEntity wrappers, so the walk recurses through those.
func extractJSONLD(doc *goquery.Document, baseURL string) []*models.ExtractedJob {
	var jobs []*models.ExtractedJob
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		text := sel.Text()
		if text == "" {
			return
		}
		var data any
		if err := json.Unmarshal([]byte(text), &data); err != nil {
			return
		}
		walkJSONLD(data, baseURL, &jobs)
	})
	return jobs
}

func walkJSONLD(data any, baseURL string, jobs *[]*models.ExtractedJob) {
	switch v := data.(type) {
	case []any:
		for _, item := range v {
			walkJSONLD(item, baseURL, jobs)
		}
	case map[string]any:
		if typ, _ := v["@type"].(string); typ == "JobPosting" {
			if job := jobFromJSONLD(v, baseURL); job != nil {
				*jobs = append(*jobs, job)
			}
		}
		for _, key := range []string{"@graph", "itemListElement", "mainEntity"} {
			if nested, ok := v[key]; ok {
				walkJSONLD(nested, baseURL, jobs)
			}
		}
	}
}

func jobFromJSONLD(data map[string]any, baseURL string) *models.ExtractedJob {
	title, _ := data["title"].(string)
	if title == "" {
		title, _ = data["name"].(string)
	}
	if title == "" {
		return nil
	}

	sourceURL, _ := data["url"].(string)
	if sourceURL == "" {
		sourceURL = baseURL
	}
	description, _ := data["description"].(string)
	postedAt, _ := data["datePosted"].(string)
	employmentType := jsonLDEmploymentType(data["employmentType"])

	return &models.ExtractedJob{
		Title:          title,
		SourceURL:      sourceURL,
		Description:    description,
		Location:       jsonLDLocation(data["jobLocation"]),
		PostedAt:       postedAt,
		EmploymentType: employmentType,
		Salary:         jsonLDSalary(data["baseSalary"]),
	}
}

// jsonLDEmploymentType handles both the single-string and array encodings of
// schema.org employmentType.
func jsonLDEmploymentType(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		if len(t) > 0 {
			s, _ := t[0].(string)
			return s
		}
	}
	return ""
}

// jsonLDLocation flattens a jobLocation value: plain string, Place object
// with a PostalAddress, or a list of either (first entry wins).
func jsonLDLocation(v any) string {
	switch loc := v.(type) {
	case string:
		return loc
	case []any:
		if len(loc) > 0 {
			return jsonLDLocation(loc[0])
		}
	case map[string]any:
		switch addr := loc["address"].(type) {
		case string:
			return addr
		case map[string]any:
			city, _ := addr["addressLocality"].(string)
			state, _ := addr["addressRegion"].(string)
			country, _ := addr["addressCountry"].(string)
			return joinLocation(city, state, country, "")
		}
		name, _ := loc["name"].(string)
		return name
	}
	return ""
}

// jsonLDSalary renders a MonetaryAmount's min/max into display text.
func jsonLDSalary(v any) string {
	salary, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	value, ok := salary["value"].(map[string]any)
	if !ok {
		return ""
	}
	currency, _ := salary["currency"].(string)
	if currency == "" {
		currency = "USD"
	}
	minVal, hasMin := jsonNumber(value["minValue"])
	maxVal, hasMax := jsonNumber(value["maxValue"])

	switch {
	case hasMin && hasMax:
		return fmt.Sprintf("%s %.0f - %.0f", currency, minVal, maxVal)
	case hasMin:
		return fmt.Sprintf("%s %.0f+", currency, minVal)
	case hasMax:
		return fmt.Sprintf("Up to %s %.0f", currency, maxVal)
	}
	return ""
}

func jsonNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		var f float64
		if _, err := fmt.Sscanf(n, "%f", &f); err == nil {
			return f, true
		}
	}
	return 0, false
}
