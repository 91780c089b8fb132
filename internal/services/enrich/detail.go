package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/reperio/internal/ats"
	"github.com/ternarybob/reperio/internal/models"
)

// Minimum plain-text lengths before a scraped block counts as a description.
// Vendor selectors can match boilerplate stubs; the generic cascade matches
// whole-page noise, so it needs a higher floor.
const (
	minPostingTextLen = 50
	minGenericTextLen = 100
)

// jobDetail is what one detail fetch produced. gone means the posting no
// longer exists upstream; text empty (and gone false) means nothing usable
// was found.
type jobDetail struct {
	html     string
	text     string
	postedAt string
	gone     bool
}

var (
	ghJIDRe        = regexp.MustCompile(`[?&]gh_jid=(\d+)`)
	ghJobPathRe    = regexp.MustCompile(`/jobs/(\d+)`)
	ghCareerPathRe = regexp.MustCompile(`/careers/(\d+)`)
	uuidRe         = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
	workableCodeRe = regexp.MustCompile(`/j/([A-Za-z0-9]+)`)
	windowJobRe    = regexp.MustCompile(`(?s)window\.job\s*=\s*(\{.*?\});`)
	datePostedRe   = regexp.MustCompile(`"datePosted"\s*:\s*"([^"]+)"`)
	postedDateRe   = regexp.MustCompile(`(?i)posted:?\s*(\d{4}-\d{2}-\d{2})`)
)

func (s *Service) detail(ctx context.Context, job *models.Job, company *models.Company) (*jobDetail, error) {
	switch company.ATSFamily {
	case ats.FamilyGreenhouse:
		return s.detailGreenhouse(ctx, job, company)
	case ats.FamilyLever:
		return s.detailLever(ctx, job)
	case ats.FamilyAshby:
		return s.detailAshby(ctx, job, company)
	case ats.FamilyWorkable:
		return s.detailWorkable(ctx, job, company)
	default:
		return s.detailGeneric(ctx, job)
	}
}

// greenhouseJobID digs the numeric posting id out of a job URL. Boards link
// postings three ways: a gh_jid query parameter, /jobs/<id>, or a hosted
// careers path /careers/<id>.
func greenhouseJobID(url string) string {
	for _, re := range []*regexp.Regexp{ghJIDRe, ghJobPathRe, ghCareerPathRe} {
		if m := re.FindStringSubmatch(url); m != nil {
			return m[1]
		}
	}
	return ""
}

func (s *Service) detailGreenhouse(ctx context.Context, job *models.Job, company *models.Company) (*jobDetail, error) {
	id := greenhouseJobID(job.SourceURL)
	if id == "" {
		return nil, fmt.Errorf("no posting id in %s", job.SourceURL)
	}
	url := ats.Lookup(ats.FamilyGreenhouse).DetailURL(company.ATSIdentifier, id)
	if url == "" {
		return nil, fmt.Errorf("no detail endpoint for identifier %q", company.ATSIdentifier)
	}

	res, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	if res.StatusCode == 404 {
		return &jobDetail{gone: true}, nil
	}
	if res.Body == nil {
		return nil, fmt.Errorf("greenhouse detail returned %d", res.StatusCode)
	}

	var detail struct {
		Content   string `json:"content"`
		UpdatedAt string `json:"updated_at"`
	}
	if err := json.Unmarshal(res.Body, &detail); err != nil {
		return nil, err
	}
	// The boards API returns the posting body HTML-escaped.
	content := html.UnescapeString(detail.Content)
	return &jobDetail{
		html:     content,
		text:     htmlToText(content),
		postedAt: detail.UpdatedAt,
	}, nil
}

func (s *Service) detailLever(ctx context.Context, job *models.Job) (*jobDetail, error) {
	res, err := s.fetcher.Fetch(ctx, job.SourceURL)
	if err != nil {
		return nil, err
	}
	if res.StatusCode == 404 {
		return &jobDetail{gone: true}, nil
	}
	if res.Body == nil {
		return nil, fmt.Errorf("posting page returned %d", res.StatusCode)
	}

	page := string(res.Body)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, err
	}

	// Posting pages embed a complete schema.org JobPosting; prefer it.
	if det := jsonLDDetail(doc); det != nil {
		return det, nil
	}

	if sel := doc.Find(".posting-description").First(); sel.Length() > 0 {
		inner, _ := sel.Html()
		if text := htmlToText(inner); len(text) > minPostingTextLen {
			det := &jobDetail{html: inner, text: text}
			if m := datePostedRe.FindStringSubmatch(page); m != nil {
				det.postedAt = m[1]
			}
			return det, nil
		}
	}
	return &jobDetail{}, nil
}

type ashbyPosting struct {
	ID              string `json:"id"`
	JobURL          string `json:"jobUrl"`
	ApplyURL        string `json:"applyUrl"`
	DescriptionHTML string `json:"descriptionHtml"`
	Description     string `json:"description"`
	PublishedAt     string `json:"publishedAt"`
	CreatedAt       string `json:"createdAt"`
}

func (p *ashbyPosting) detail() *jobDetail {
	content := p.DescriptionHTML
	if content == "" {
		content = p.Description
	}
	posted := p.PublishedAt
	if posted == "" {
		posted = p.CreatedAt
	}
	return &jobDetail{html: content, text: htmlToText(content), postedAt: posted}
}

func (s *Service) detailAshby(ctx context.Context, job *models.Job, company *models.Company) (*jobDetail, error) {
	family := ats.Lookup(ats.FamilyAshby)
	id := uuidRe.FindString(job.SourceURL)

	// Single-posting endpoint first. Any miss falls through to the board
	// listing, which decides whether the posting is really gone.
	if id != "" {
		if url := family.DetailURL(company.ATSIdentifier, id); url != "" {
			res, err := s.fetcher.Fetch(ctx, url)
			if err == nil && res.Body != nil {
				var p ashbyPosting
				if json.Unmarshal(res.Body, &p) == nil {
					if det := p.detail(); det.text != "" {
						return det, nil
					}
				}
			}
		}
	}

	listURL := family.APIURL(company.ATSIdentifier)
	if listURL == "" {
		return nil, fmt.Errorf("no board endpoint for identifier %q", company.ATSIdentifier)
	}
	res, err := s.fetcher.Fetch(ctx, listURL)
	if err != nil {
		return nil, err
	}
	if res.Body == nil {
		return nil, fmt.Errorf("ashby board returned %d", res.StatusCode)
	}

	var board struct {
		Jobs []ashbyPosting `json:"jobs"`
	}
	if err := json.Unmarshal(res.Body, &board); err != nil {
		return nil, err
	}
	for i := range board.Jobs {
		p := &board.Jobs[i]
		if (id != "" && p.ID == id) || urlsRelate(p.JobURL, job.SourceURL) || urlsRelate(p.ApplyURL, job.SourceURL) {
			return p.detail(), nil
		}
	}

	// The board answered and the posting is not on it.
	return &jobDetail{gone: true}, nil
}

func (s *Service) detailWorkable(ctx context.Context, job *models.Job, company *models.Company) (*jobDetail, error) {
	if m := workableCodeRe.FindStringSubmatch(job.SourceURL); m != nil {
		url := ats.Lookup(ats.FamilyWorkable).DetailURL(company.ATSIdentifier, m[1])
		if url != "" {
			res, err := s.fetcher.Fetch(ctx, url)
			if err != nil {
				return nil, err
			}
			if res.StatusCode == 404 {
				return &jobDetail{gone: true}, nil
			}
			if res.Body != nil {
				var detail struct {
					Description     string `json:"description"`
					FullDescription string `json:"full_description"`
					PublishedOn     string `json:"published_on"`
					CreatedAt       string `json:"created_at"`
				}
				if err := json.Unmarshal(res.Body, &detail); err != nil {
					return nil, err
				}
				content := detail.FullDescription
				if content == "" {
					content = detail.Description
				}
				if text := htmlToText(content); text != "" {
					posted := detail.PublishedOn
					if posted == "" {
						posted = detail.CreatedAt
					}
					return &jobDetail{html: content, text: text, postedAt: posted}, nil
				}
			}
		}
	}

	// No shortcode in the URL: scrape the posting page's window.job config.
	return s.workableFromPage(ctx, job)
}

func (s *Service) workableFromPage(ctx context.Context, job *models.Job) (*jobDetail, error) {
	res, err := s.fetcher.Fetch(ctx, job.SourceURL)
	if err != nil {
		return nil, err
	}
	if res.StatusCode == 404 {
		return &jobDetail{gone: true}, nil
	}
	if res.Body == nil {
		return nil, fmt.Errorf("posting page returned %d", res.StatusCode)
	}

	page := string(res.Body)
	if m := windowJobRe.FindStringSubmatch(page); m != nil {
		var detail struct {
			Description string `json:"description"`
			PublishedOn string `json:"published_on"`
			CreatedAt   string `json:"created_at"`
		}
		if json.Unmarshal([]byte(m[1]), &detail) == nil {
			if text := htmlToText(detail.Description); text != "" {
				posted := detail.PublishedOn
				if posted == "" {
					posted = detail.CreatedAt
				}
				return &jobDetail{html: detail.Description, text: text, postedAt: posted}, nil
			}
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, err
	}
	if sel := doc.Find(".job-description").First(); sel.Length() > 0 {
		inner, _ := sel.Html()
		if text := htmlToText(inner); len(text) > minPostingTextLen {
			return &jobDetail{html: inner, text: text}, nil
		}
	}
	return &jobDetail{}, nil
}

// genericSelectors are tried in order on pages with no recognized vendor.
var genericSelectors = []string{".job-description", ".posting-description", ".description", "article"}

func (s *Service) detailGeneric(ctx context.Context, job *models.Job) (*jobDetail, error) {
	res, err := s.fetcher.Fetch(ctx, job.SourceURL)
	if err != nil {
		return nil, err
	}
	if res.StatusCode == 404 {
		return &jobDetail{gone: true}, nil
	}
	if res.Body == nil {
		return nil, fmt.Errorf("posting page returned %d", res.StatusCode)
	}

	page := string(res.Body)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, err
	}

	if det := jsonLDDetail(doc); det != nil {
		return det, nil
	}

	for _, selector := range genericSelectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		inner, _ := sel.Html()
		text := htmlToText(inner)
		if len(text) <= minGenericTextLen {
			continue
		}
		det := &jobDetail{html: inner, text: text}
		if m := datePostedRe.FindStringSubmatch(page); m != nil {
			det.postedAt = m[1]
		} else if m := postedDateRe.FindStringSubmatch(page); m != nil {
			det.postedAt = m[1]
		}
		return det, nil
	}
	return &jobDetail{}, nil
}

// jsonLDDetail pulls description and datePosted out of an embedded schema.org
// JobPosting. Pages wrap the posting in a bare object, an array, or @graph.
func jsonLDDetail(doc *goquery.Document) *jobDetail {
	var det *jobDetail
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		var data any
		if err := json.Unmarshal([]byte(sel.Text()), &data); err != nil {
			return true
		}
		if d := jobPostingFrom(data); d != nil {
			det = d
			return false
		}
		return true
	})
	return det
}

func jobPostingFrom(data any) *jobDetail {
	switch v := data.(type) {
	case []any:
		for _, item := range v {
			if d := jobPostingFrom(item); d != nil {
				return d
			}
		}
	case map[string]any:
		if typ, _ := v["@type"].(string); typ == "JobPosting" {
			desc, _ := v["description"].(string)
			text := htmlToText(desc)
			if len(text) < minPostingTextLen {
				return nil
			}
			posted, _ := v["datePosted"].(string)
			return &jobDetail{html: desc, text: text, postedAt: posted}
		}
		for _, key := range []string{"@graph", "mainEntity"} {
			if nested, ok := v[key]; ok {
				if d := jobPostingFrom(nested); d != nil {
					return d
				}
			}
		}
	}
	return nil
}
