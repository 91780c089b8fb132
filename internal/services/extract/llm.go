package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
)

const (
	llmMaxContentChars = 30000
	llmCachePrefix     = "llm:extract:"
	llmCacheTTL        = 7 * 24 * time.Hour
)

const llmSystemPrompt = `You are a job listing extractor. Given the text of a careers page, extract all job listings.

For each job, extract:
- title: The job title (required)
- location: Location if mentioned, or "Remote" if remote
- department: Department/team if mentioned
- employment_type: Full-time, Part-time, Contract, etc. if mentioned
- url_path: The relative URL path to the job posting if visible (e.g., /jobs/123)

Only extract actual job postings, not navigation items, headers, or other page elements.
Respond with JSON only, no prose: {"jobs": [{"title": ..., "location": ..., "department": ..., "employment_type": ..., "url_path": ...}]}
If no jobs are found, respond with {"jobs": []}.`

// llmListing is one posting as the model reports it.
type llmListing struct {
	Title          string `json:"title"`
	Location       string `json:"location"`
	Department     string `json:"department"`
	EmploymentType string `json:"employment_type"`
	URLPath        string `json:"url_path"`
}

type llmResponse struct {
	Jobs []llmListing `json:"jobs"`
}

// llmExtractor is the last extraction tier. Results are cached in the KV
// store keyed by a hash of the simplified page so repeated crawls of an
// unchanged page never pay for a second completion.
type llmExtractor struct {
	llm    interfaces.LLMService
	kv     interfaces.KVStorage
	logger arbor.ILogger
}

func newLLMExtractor(llm interfaces.LLMService, kv interfaces.KVStorage, logger arbor.ILogger) *llmExtractor {
	return &llmExtractor{llm: llm, kv: kv, logger: logger}
}

func (e *llmExtractor) available() bool {
	return e.llm != nil
}

func (e *llmExtractor) extract(ctx context.Context, p *page) ([]*models.ExtractedJob, error) {
	simplified := simplifyContent(p.content, llmMaxContentChars)
	if simplified == "" {
		return nil, nil
	}

	sum := sha256.Sum256([]byte(simplified))
	cacheKey := llmCachePrefix + hex.EncodeToString(sum[:8])

	if cached, err := e.kv.Get(cacheKey); err == nil && cached != nil {
		var jobs []*models.ExtractedJob
		if err := json.Unmarshal(cached, &jobs); err == nil {
			e.logger.Debug().Str("key", cacheKey).Int("jobs", len(jobs)).Msg("LLM extraction cache hit")
			return jobs, nil
		}
	}

	e.logger.Info().
		Str("url", p.sourceURL).
		Int("content_chars", len(simplified)).
		Msg("Running LLM extraction")

	reply, err := e.llm.Chat(ctx, []interfaces.Message{
		{Role: "system", Content: llmSystemPrompt},
		{Role: "user", Content: "Extract job listings from this page:\n\n" + simplified},
	})
	if err != nil {
		return nil, fmt.Errorf("llm extraction: %w", err)
	}

	var parsed llmResponse
	if err := json.Unmarshal([]byte(stripCodeFence(reply)), &parsed); err != nil {
		return nil, fmt.Errorf("parse llm response: %w", err)
	}

	jobs := make([]*models.ExtractedJob, 0, len(parsed.Jobs))
	for _, listing := range parsed.Jobs {
		if listing.Title == "" {
			continue
		}
		sourceURL := p.sourceURL
		if listing.URLPath != "" {
			sourceURL = absoluteURL(p.sourceURL, listing.URLPath)
		}
		jobs = append(jobs, &models.ExtractedJob{
			Title:          listing.Title,
			SourceURL:      sourceURL,
			Location:       listing.Location,
			Department:     listing.Department,
			EmploymentType: listing.EmploymentType,
		})
	}

	if encoded, err := json.Marshal(jobs); err == nil {
		if err := e.kv.SetWithTTL(cacheKey, encoded, llmCacheTTL); err != nil {
			e.logger.Warn().Err(err).Msg("Failed to cache LLM extraction")
		}
	}

	return jobs, nil
}

// simplifyContent reduces a page to its text so completions stay inside the
// token budget: scripts, styles, media and chrome are stripped, whitespace
// collapsed, and the result truncated at maxChars.
func simplifyContent(content string, maxChars int) string {
	if !strings.Contains(content, "<") {
		return truncate(strings.TrimSpace(content), maxChars)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return truncate(strings.TrimSpace(content), maxChars)
	}

	doc.Find("script, style, noscript, svg, img, video, audio, iframe").Remove()
	for _, selector := range []string{"nav", "header", "footer", ".nav", ".header", ".footer", ".cookie", ".banner", ".popup", ".modal"} {
		doc.Find(selector).Remove()
	}

	var lines []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return truncate(strings.Join(lines, "\n"), maxChars)
}

func truncate(s string, maxChars int) string {
	if len(s) <= maxChars {
		return s
	}
	return s[:maxChars] + "\n... [truncated]"
}

// stripCodeFence removes a markdown fence the model may wrap JSON in.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
