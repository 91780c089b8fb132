// Package enrich backfills full descriptions and accurate posted dates onto
// jobs whose listing row carried neither. Each supported ATS family has a
// detail path (vendor detail API or posting page); everything else goes
// through a generic page scrape. A 404 means the posting is gone upstream, so
// the job is delisted rather than counted as a failure.
package enrich

import (
	"context"
	"strings"
	"sync"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
)

// maxDescriptionChars caps the stored plain-text description.
const maxDescriptionChars = 10000

// Service enriches jobs. Safe for concurrent use.
type Service struct {
	jobs        interfaces.JobStorage
	companies   interfaces.CompanyStorage
	fetcher     interfaces.Fetcher
	families    []string
	concurrency int
	batchSize   int
	retryAfter  time.Duration
	logger      arbor.ILogger
}

func NewService(
	jobs interfaces.JobStorage,
	companies interfaces.CompanyStorage,
	fetcher interfaces.Fetcher,
	cfg common.EnrichConfig,
	logger arbor.ILogger,
) *Service {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Service{
		jobs:        jobs,
		companies:   companies,
		fetcher:     fetcher,
		families:    cfg.Families,
		concurrency: concurrency,
		batchSize:   batchSize,
		retryAfter:  cfg.RetryAfter,
		logger:      logger,
	}
}

// EnrichJob fetches detail for one job and persists the result.
func (s *Service) EnrichJob(ctx context.Context, job *models.Job, company *models.Company) models.EnrichOutcome {
	outcome, _ := s.enrichOne(ctx, job, company)
	return outcome
}

// EnrichBacklog drains the enrichment backlog in batches until no eligible
// jobs remain, limit jobs have been handled, or the context is cancelled.
// Jobs that fail are stamped with EnrichFailedAt so the selection query stops
// returning them and the loop terminates.
func (s *Service) EnrichBacklog(ctx context.Context, families []string, limit int) (*models.EnrichSummary, error) {
	if len(families) == 0 {
		families = s.families
	}

	summary := &models.EnrichSummary{}
	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		batchSize := s.batchSize
		if limit > 0 {
			if left := limit - summary.Total(); left < batchSize {
				batchSize = left
			}
		}
		if batchSize <= 0 {
			return summary, nil
		}

		batch, err := s.jobs.ListNeedingEnrichment(families, s.retryAfter, batchSize)
		if err != nil {
			return summary, err
		}
		if len(batch) == 0 {
			s.logger.Info().
				Int("enriched", summary.Enriched).
				Int("delisted", summary.Delisted).
				Int("failed", summary.Failed).
				Msg("Enrichment backlog drained")
			return summary, nil
		}

		s.logger.Info().Int("jobs", len(batch)).Msg("Enriching batch")
		if s.enrichBatch(ctx, batch, summary) == 0 {
			s.logger.Warn().Msg("Enrichment batch made no progress, stopping")
			return summary, nil
		}
	}
}

// enrichBatch fans a batch out under the concurrency semaphore and reports
// how many jobs were durably advanced (enriched, delisted, or stamped
// failed). Zero progress means persistence is broken and looping would spin.
func (s *Service) enrichBatch(ctx context.Context, batch []*models.Job, summary *models.EnrichSummary) int {
	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	progressed := 0

	for _, job := range batch {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		job := job
		common.SafeGo(s.logger, "enrich-job", func() {
			defer wg.Done()
			defer func() { <-sem }()

			company, err := s.companies.Get(job.CompanyID)
			if err != nil {
				s.logger.Warn().
					Str("job_id", job.ID).
					Str("company_id", job.CompanyID).
					Err(err).
					Msg("Company missing for job")
				mu.Lock()
				summary.Add(models.EnrichOutcomeFailed)
				mu.Unlock()
				return
			}

			outcome, ok := s.enrichOne(ctx, job, company)
			mu.Lock()
			summary.Add(outcome)
			if ok {
				progressed++
			}
			mu.Unlock()
		})
	}
	wg.Wait()
	return progressed
}

// enrichOne runs the family detail path and persists whatever it decided.
// The second return reports whether the decision was durably recorded.
func (s *Service) enrichOne(ctx context.Context, job *models.Job, company *models.Company) (models.EnrichOutcome, bool) {
	det, err := s.detail(ctx, job, company)
	now := time.Now().UTC()

	if err == nil && det.gone {
		if derr := s.jobs.Delist(job.ID, models.DelistReasonRemovedFromATS); derr != nil {
			s.logger.Error().Str("job_id", job.ID).Err(derr).Msg("Failed to delist job")
			return models.EnrichOutcomeFailed, false
		}
		s.logger.Info().
			Str("job_id", job.ID).
			Str("url", job.SourceURL).
			Msg("Posting gone upstream, job delisted")
		return models.EnrichOutcomeDelisted, true
	}

	if err != nil || det.text == "" {
		if err != nil {
			s.logger.Debug().Str("job_id", job.ID).Str("url", job.SourceURL).Err(err).Msg("Enrichment failed")
		} else {
			s.logger.Debug().Str("job_id", job.ID).Str("url", job.SourceURL).Msg("No description found")
		}
		job.EnrichFailedAt = &now
		job.UpdatedAt = now
		if uerr := s.jobs.Update(job); uerr != nil {
			s.logger.Error().Str("job_id", job.ID).Err(uerr).Msg("Failed to record enrichment failure")
			return models.EnrichOutcomeFailed, false
		}
		return models.EnrichOutcomeFailed, true
	}

	job.Description = truncate(det.text, maxDescriptionChars)
	job.DescriptionMarkdown = s.markdown(job.SourceURL, det.html)
	if t := parseTime(det.postedAt); t != nil {
		job.PostedAt = t
	}
	job.EnrichFailedAt = nil
	job.UpdatedAt = now
	if uerr := s.jobs.Update(job); uerr != nil {
		s.logger.Error().Str("job_id", job.ID).Err(uerr).Msg("Failed to save enriched job")
		return models.EnrichOutcomeFailed, false
	}

	s.logger.Debug().
		Str("job_id", job.ID).
		Int("description_len", len(job.Description)).
		Msg("Job enriched")
	return models.EnrichOutcomeEnriched, true
}

// markdown renders the description HTML as markdown. A failed or empty
// conversion leaves the field unset; the plain text is already stored.
func (s *Service) markdown(sourceURL, descriptionHTML string) string {
	conv := md.NewConverter(sourceURL, true, nil)
	out, err := conv.ConvertString(descriptionHTML)
	if err != nil || strings.TrimSpace(out) == "" {
		return ""
	}
	return out
}

// Compile-time interface check
var _ interfaces.EnricherService = (*Service)(nil)
