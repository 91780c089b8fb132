package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/ternarybob/reperio/internal/models"
)

// jobSelectors are tried in order; the first selector that yields parseable
// postings wins.
var jobSelectors = []string{
	".job", ".job-listing", ".job-post", ".job-card",
	".career", ".opening", ".position", ".vacancy",
	"[data-job]", "[data-job-id]", "[data-posting]",
	".jobs-list li", ".careers-list li", ".openings-list li",
	".jobs-table tr", "table.jobs tr",
}

// noiseSelectors are stripped before any matching so menus and cookie
// banners never masquerade as postings.
var noiseSelectors = []string{
	"nav", "footer", "header", ".nav", ".footer", ".header",
	".sidebar", ".menu", ".cookie", ".banner", ".popup",
}

var jobPathRe = regexp.MustCompile(`(?i)/(jobs?|careers?|positions?|openings?|opportunities|apply)/`)

// extractGeneric handles pages with no recognized ATS: JSON-LD first, then a
// selector cascade, then job-path links, then repeated-structure analysis.
func extractGeneric(p *page) []*models.ExtractedJob {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.content))
	if err != nil {
		return nil
	}

	for _, selector := range noiseSelectors {
		doc.Find(selector).Remove()
	}

	if jobs := extractJSONLD(doc, p.sourceURL); len(jobs) > 0 {
		return jobs
	}

	for _, selector := range jobSelectors {
		var jobs []*models.ExtractedJob
		doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			if job := parseJobElement(sel, p.sourceURL); job != nil {
				jobs = append(jobs, job)
			}
		})
		if len(jobs) > 0 {
			return jobs
		}
	}

	if jobs := genericFromLinks(doc, p.sourceURL); len(jobs) > 0 {
		return jobs
	}

	return genericFromStructure(doc, p.sourceURL)
}

// parseJobElement reads one candidate container: heading or first anchor for
// the title (at least 5 chars), class-hinted children for the rest.
func parseJobElement(sel *goquery.Selection, baseURL string) *models.ExtractedJob {
	titleSel := sel.Find(`h1, h2, h3, h4, .title, [class*="title"]`).First()
	if titleSel.Length() == 0 {
		titleSel = sel.Find("a").First()
	}
	title := cleanText(titleSel.Text())
	if len(title) < 5 {
		return nil
	}

	href, _ := sel.Find("a[href]").First().Attr("href")
	return &models.ExtractedJob{
		Title:      title,
		SourceURL:  absoluteURL(baseURL, href),
		Location:   cleanText(sel.Find(`.location, [class*="location"], [data-location]`).First().Text()),
		Department: cleanText(sel.Find(`.department, [class*="department"], [class*="team"]`).First().Text()),
	}
}

func genericFromLinks(doc *goquery.Document, baseURL string) []*models.ExtractedJob {
	var jobs []*models.ExtractedJob
	seen := make(map[string]bool)

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if href == "" || strings.HasPrefix(href, "#") || !jobPathRe.MatchString(href) {
			return
		}
		full := absoluteURL(baseURL, href)
		if seen[full] {
			return
		}
		seen[full] = true

		title := cleanText(sel.Text())
		if len(title) > 5 && !isNavigationText(title) {
			jobs = append(jobs, &models.ExtractedJob{Title: title, SourceURL: full})
		}
	})
	return jobs
}

// genericFromStructure groups container elements by a shape signature (sorted
// class list plus leading child tags) and treats any signature occurring at
// least three times as a listing row.
func genericFromStructure(doc *goquery.Document, baseURL string) []*models.ExtractedJob {
	groups := make(map[string][]*goquery.Selection)
	var order []string

	doc.Find("div, article, section, li").Each(func(_ int, sel *goquery.Selection) {
		sig := structureSignature(sel)
		if _, ok := groups[sig]; !ok {
			order = append(order, sig)
		}
		groups[sig] = append(groups[sig], sel)
	})

	for _, sig := range order {
		elements := groups[sig]
		if len(elements) < 3 {
			continue
		}
		var jobs []*models.ExtractedJob
		for _, sel := range elements {
			if job := parseJobElement(sel, baseURL); job != nil {
				jobs = append(jobs, job)
			}
		}
		if len(jobs) > 0 {
			return jobs
		}
	}
	return nil
}

func structureSignature(sel *goquery.Selection) string {
	classAttr, _ := sel.Attr("class")
	classes := strings.Fields(classAttr)
	sort.Strings(classes)

	var children []string
	for node := sel.Nodes[0].FirstChild; node != nil && len(children) < 5; node = node.NextSibling {
		if node.Type == html.ElementNode {
			children = append(children, node.Data)
		}
	}
	return strings.Join(classes, " ") + "|" + strings.Join(children, ",")
}
