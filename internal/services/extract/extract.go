// Package extract turns crawled careers pages and ATS API responses into
// structured job postings. Each supported ATS family has a dedicated parser
// that understands the vendor's JSON shape and board markup; unknown layouts
// fall through to a generic selector cascade and, as a last resort, LLM
// extraction.
package extract

import (
	"context"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/reperio/internal/ats"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
)

// page carries one fetched document through a family parser.
type page struct {
	content    string
	sourceURL  string
	identifier string
}

type familyFunc func(p *page) []*models.ExtractedJob

// Service dispatches extraction by ATS family.
type Service struct {
	families map[string]familyFunc
	llm      *llmExtractor
	logger   arbor.ILogger
}

// NewService creates the extraction service. The LLM service may be nil, in
// which case the fallback tier is skipped.
func NewService(llmService interfaces.LLMService, kv interfaces.KVStorage, logger arbor.ILogger) *Service {
	s := &Service{
		logger: logger,
	}
	s.families = map[string]familyFunc{
		ats.FamilyGreenhouse:      extractGreenhouse,
		ats.FamilyLever:           extractLever,
		ats.FamilyAshby:           extractAshby,
		ats.FamilyWorkable:        extractWorkable,
		ats.FamilySmartRecruiters: extractSmartRecruiters,
		ats.FamilyRecruitee:       extractRecruitee,
		ats.FamilyBambooHR:        extractBambooHR,
	}
	if llmService != nil {
		s.llm = newLLMExtractor(llmService, kv, logger)
	}
	return s
}

// Extract parses the fetched content into postings. A family parser that
// finds nothing does not error; the caller decides whether an empty board is
// meaningful. The returned slice drops entries without a usable title and
// fills missing posting URLs with the page URL.
func (s *Service) Extract(ctx context.Context, in *interfaces.ExtractInput) ([]*models.ExtractedJob, error) {
	p := &page{
		content:   string(in.Content),
		sourceURL: in.SourceURL,
	}
	if in.Company != nil {
		p.identifier = in.Company.ATSIdentifier
	}

	family := ""
	if in.Company != nil {
		family = in.Company.ATSFamily
	}

	var jobs []*models.ExtractedJob
	if fn, ok := s.families[family]; ok {
		jobs = fn(p)
	} else {
		jobs = extractGeneric(p)
	}

	if len(jobs) == 0 && s.llm != nil && s.llm.available() {
		llmJobs, err := s.llm.extract(ctx, p)
		if err != nil {
			s.logger.Warn().
				Str("url", in.SourceURL).
				Err(err).
				Msg("LLM extraction failed")
		} else {
			jobs = llmJobs
		}
	}

	jobs = sanitize(jobs, in.SourceURL)

	s.logger.Info().
		Str("url", in.SourceURL).
		Str("ats_family", family).
		Int("jobs", len(jobs)).
		Msg("Extraction complete")

	return jobs, nil
}

// sanitize enforces the floor every parser shares: non-empty title, a source
// URL, and one entry per URL. Raw jobs are keyed by (company, source URL) so
// a second posting on the same URL would only overwrite the first anyway.
func sanitize(jobs []*models.ExtractedJob, pageURL string) []*models.ExtractedJob {
	seen := make(map[string]bool, len(jobs))
	out := make([]*models.ExtractedJob, 0, len(jobs))
	for _, j := range jobs {
		j.Title = cleanText(j.Title)
		if j.Title == "" {
			continue
		}
		if j.SourceURL == "" {
			j.SourceURL = pageURL
		}
		if seen[j.SourceURL] {
			continue
		}
		seen[j.SourceURL] = true
		out = append(out, j)
	}
	return out
}

// looksLikeJSON reports whether content starts with a JSON object or array
// once leading whitespace is skipped.
func looksLikeJSON(content string) bool {
	trimmed := strings.TrimLeft(content, " \t\r\n")
	return strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")
}

// Compile-time interface check
var _ interfaces.ExtractorService = (*Service)(nil)
