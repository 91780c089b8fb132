// Package pipeline chains discovery, crawl, enrichment, and embeddings into
// one recorded corpus refresh and runs individual stages on demand. Every
// execution claims an exclusive operation key and writes a PipelineRun row; a
// full run adds an umbrella row that its stage rows reference. Cancellation
// is cooperative through the run rows: a watcher goroutine polls them and
// pulls the stage's context when one is flipped to cancelled, so the stage
// services only ever see a context.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
)

const (
	// defaultCrawlLimit caps companies visited per crawl stage when the
	// caller does not say otherwise. A scheduled run every few hours works
	// through the corpus in slices instead of hammering every ATS at once.
	defaultCrawlLimit = 100

	// defaultQueueLimit caps discovery queue items processed per stage run.
	defaultQueueLimit = 500

	cancelReason = "Cancelled by user"
)

// Service orchestrates the corpus stages. Safe for concurrent use; the
// operation registry refuses overlapping executions of the same operation.
type Service struct {
	discovery interfaces.DiscoveryService
	crawler   interfaces.CrawlerService
	enricher  interfaces.EnricherService
	embedder  interfaces.EmbedderService

	companies interfaces.CompanyStorage
	jobs      interfaces.JobStorage
	queue     interfaces.QueueStorage
	runs      interfaces.RunStorage

	registry      *registry
	recrawlAfter  time.Duration
	crawlBatch    int
	watchInterval time.Duration
	logger        arbor.ILogger
}

func NewService(
	discovery interfaces.DiscoveryService,
	crawler interfaces.CrawlerService,
	enricher interfaces.EnricherService,
	embedder interfaces.EmbedderService,
	companies interfaces.CompanyStorage,
	jobs interfaces.JobStorage,
	queue interfaces.QueueStorage,
	runs interfaces.RunStorage,
	cfg common.CrawlConfig,
	logger arbor.ILogger,
) *Service {
	recrawlAfter := cfg.RecrawlAfter
	if recrawlAfter <= 0 {
		recrawlAfter = 24 * time.Hour
	}
	crawlBatch := cfg.BatchSize
	if crawlBatch <= 0 {
		crawlBatch = 500
	}
	return &Service{
		discovery:     discovery,
		crawler:       crawler,
		enricher:      enricher,
		embedder:      embedder,
		companies:     companies,
		jobs:          jobs,
		queue:         queue,
		runs:          runs,
		registry:      newRegistry(),
		recrawlAfter:  recrawlAfter,
		crawlBatch:    crawlBatch,
		watchInterval: 2 * time.Second,
		logger:        logger,
	}
}

// RunFullPipeline executes the non-skipped stages in order and blocks until
// they finish. A stage failure is logged on the umbrella run and the
// remaining stages still execute; cancelling the umbrella stops the current
// stage and skips the rest.
func (s *Service) RunFullPipeline(ctx context.Context, opts models.PipelineOptions) (*models.PipelineRun, error) {
	if !s.registry.start(opFullPipeline) {
		return nil, interfaces.ErrOperationRunning
	}
	defer s.registry.end(opFullPipeline)

	run := &models.PipelineRun{
		ID:        uuid.NewString(),
		Stage:     models.StageFullPipeline,
		Status:    models.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := s.runs.SavePipelineRun(run); err != nil {
		return nil, err
	}
	s.logger.Info().Str("run_id", run.ID).Msg("Full pipeline started")

	type stage struct {
		name  string
		skip  bool
		limit int
		batch int
	}
	stages := []stage{
		{name: models.StageDiscovery, skip: opts.SkipDiscovery, limit: opts.DiscoveryLimit},
		{name: models.StageCrawl, skip: opts.SkipCrawl, limit: opts.CrawlLimit},
		{name: models.StageEnrichment, skip: opts.SkipEnrichment, limit: opts.EnrichLimit},
		{name: models.StageEmbeddings, skip: opts.SkipEmbeddings, batch: opts.EmbedBatchSize},
	}

	executed, failed := 0, 0
	for _, st := range stages {
		if st.skip {
			s.appendLog(run, "info", "Stage skipped: "+st.name, nil)
			continue
		}
		if ctx.Err() != nil || s.runCancelled(run.ID) {
			run.CurrentStep = "Cancelled"
			return s.finalizeRun(run, models.RunStatusCancelled, cancelReason), nil
		}

		run.CurrentStep = "Stage: " + st.name
		s.registry.step(opFullPipeline, st.name)
		s.appendLog(run, "info", "Stage started: "+st.name, nil)

		executed++
		stageRun, err := s.executeStage(ctx, st.name, "", st.limit, st.batch, run.ID)
		if stageRun != nil {
			run.Processed += stageRun.Processed
			run.Failed += stageRun.Failed
		}
		switch {
		case errors.Is(err, interfaces.ErrOperationRunning):
			failed++
			s.appendLog(run, "warn", "Stage already running elsewhere, skipped: "+st.name, nil)
		case err != nil:
			failed++
			s.appendLog(run, "error", "Stage failed: "+st.name, map[string]interface{}{
				"error": err.Error(),
			})
		default:
			s.appendLog(run, "info", "Stage finished: "+st.name, map[string]interface{}{
				"status":    string(stageRun.Status),
				"run":       shortID(stageRun.ID),
				"processed": stageRun.Processed,
				"failed":    stageRun.Failed,
			})
		}
	}

	status := models.RunStatusCompleted
	errMsg := ""
	switch {
	case ctx.Err() != nil || s.runCancelled(run.ID):
		status = models.RunStatusCancelled
		errMsg = cancelReason
		run.CurrentStep = "Cancelled"
	case executed > 0 && failed == executed:
		status = models.RunStatusFailed
		errMsg = fmt.Sprintf("all %d stages failed", failed)
		run.CurrentStep = ""
	case failed > 0:
		errMsg = fmt.Sprintf("%d of %d stages failed", failed, executed)
		run.CurrentStep = ""
	default:
		run.CurrentStep = ""
	}
	run = s.finalizeRun(run, status, errMsg)

	s.logger.Info().
		Str("run_id", run.ID).
		Str("status", string(run.Status)).
		Int("processed", run.Processed).
		Int("failed", run.Failed).
		Msg("Full pipeline finished")
	return run, nil
}

// RunStage executes one stage by name and blocks until it finishes. family
// narrows crawl or enrichment to one ATS family. limit caps the stage's work;
// for the embeddings stage it overrides the batch size instead.
func (s *Service) RunStage(ctx context.Context, stage, family string, limit int) (*models.PipelineRun, error) {
	batchSize := 0
	if stage == models.StageEmbeddings {
		batchSize, limit = limit, 0
	}
	return s.executeStage(ctx, stage, family, limit, batchSize, "")
}

// CancelRun flips any run type to cancelled so its owning loop stops at the
// next checkpoint. The row is finalized immediately for API visibility; the
// owning loop re-stamps the same state when it notices.
func (s *Service) CancelRun(runID string) error {
	now := time.Now().UTC()

	if run, err := s.runs.GetPipelineRun(runID); err == nil {
		if run.Status != models.RunStatusRunning {
			return interfaces.ErrRunNotRunning
		}
		run.Status = models.RunStatusCancelled
		run.Error = cancelReason
		run.CurrentStep = "Cancelled"
		run.CompletedAt = &now
		s.logger.Info().Str("run_id", runID).Str("stage", run.Stage).Msg("Pipeline run cancelled")
		return s.runs.SavePipelineRun(run)
	}

	if run, err := s.runs.GetDiscoveryRun(runID); err == nil {
		if run.Status != models.RunStatusRunning {
			return interfaces.ErrRunNotRunning
		}
		run.Status = models.RunStatusCancelled
		run.Error = cancelReason
		run.CurrentStep = "Cancelled"
		run.CompletedAt = &now
		s.logger.Info().Str("run_id", runID).Str("source", run.Source).Msg("Discovery run cancelled")
		return s.runs.SaveDiscoveryRun(run)
	}

	if run, err := s.runs.GetMaintenanceRun(runID); err == nil {
		if run.Status != models.RunStatusRunning {
			return interfaces.ErrRunNotRunning
		}
		run.Status = models.RunStatusCancelled
		run.Error = cancelReason
		run.CompletedAt = &now
		s.logger.Info().Str("run_id", runID).Msg("Maintenance run cancelled")
		return s.runs.SaveMaintenanceRun(run)
	}

	if run, err := s.runs.GetVerificationRun(runID); err == nil {
		if run.Status != models.RunStatusRunning {
			return interfaces.ErrRunNotRunning
		}
		run.Status = models.RunStatusCancelled
		run.Error = cancelReason
		run.CompletedAt = &now
		s.logger.Info().Str("run_id", runID).Msg("Verification run cancelled")
		return s.runs.SaveVerificationRun(run)
	}

	return interfaces.ErrRunNotFound
}

// Running lists in-flight exclusive operations, oldest first.
func (s *Service) Running() []models.OperationStatus {
	return s.registry.snapshot()
}

// Stats snapshots corpus health for the status endpoint.
func (s *Service) Stats() (*models.PipelineStats, error) {
	stats := &models.PipelineStats{}

	var err error
	if stats.Companies.Total, err = s.companies.Count(); err != nil {
		return nil, err
	}
	if stats.Companies.Active, err = s.companies.CountActive(); err != nil {
		return nil, err
	}
	byFamily, err := s.companies.CountByATSFamily()
	if err != nil {
		return nil, err
	}
	for _, n := range byFamily {
		stats.Companies.WithATS += n
	}
	if stats.Companies.CrawledToday, err = s.companies.CountCrawledSince(time.Now().UTC().Add(-24 * time.Hour)); err != nil {
		return nil, err
	}

	if stats.Jobs.Total, err = s.jobs.Count(); err != nil {
		return nil, err
	}
	if stats.Jobs.Active, err = s.jobs.CountActive(); err != nil {
		return nil, err
	}
	if stats.Jobs.WithDescription, err = s.jobs.CountDescribed(); err != nil {
		return nil, err
	}
	if stats.Jobs.WithPostedAt, err = s.jobs.CountPosted(); err != nil {
		return nil, err
	}
	if stats.Jobs.WithEmbedding, err = s.jobs.CountEmbedded(); err != nil {
		return nil, err
	}

	queue, err := s.queue.CountByStatus()
	if err != nil {
		return nil, err
	}
	stats.Queue = queue
	return stats, nil
}

type stageBody func(ctx context.Context, run *models.PipelineRun) error

func (s *Service) stageBinding(stage, family string, limit, batchSize int) (string, stageBody, error) {
	switch stage {
	case models.StageDiscovery:
		return opDiscovery, func(ctx context.Context, run *models.PipelineRun) error {
			return s.runDiscoveryStage(ctx, run, limit)
		}, nil
	case models.StageCrawl:
		return crawlKey(family), func(ctx context.Context, run *models.PipelineRun) error {
			return s.runCrawlStage(ctx, run, family, limit)
		}, nil
	case models.StageEnrichment:
		return enrichKey(family), func(ctx context.Context, run *models.PipelineRun) error {
			return s.runEnrichmentStage(ctx, run, family, limit)
		}, nil
	case models.StageEmbeddings:
		return opEmbeddings, func(ctx context.Context, run *models.PipelineRun) error {
			return s.runEmbeddingsStage(ctx, run, batchSize)
		}, nil
	default:
		return "", nil, fmt.Errorf("unknown pipeline stage %q", stage)
	}
}

// executeStage claims the stage's operation key, records a PipelineRun row,
// and runs the stage body under run-row cancellation watch. parentID links a
// stage launched by a full pipeline run to its umbrella row; such stages also
// stop when the umbrella is cancelled.
func (s *Service) executeStage(ctx context.Context, stage, family string, limit, batchSize int, parentID string) (*models.PipelineRun, error) {
	key, body, err := s.stageBinding(stage, family, limit, batchSize)
	if err != nil {
		return nil, err
	}
	if !s.registry.start(key) {
		return nil, interfaces.ErrOperationRunning
	}
	defer s.registry.end(key)

	run := &models.PipelineRun{
		ID:        uuid.NewString(),
		Stage:     stage,
		Status:    models.RunStatusRunning,
		Cascade:   parentID != "",
		StartedAt: time.Now().UTC(),
	}
	if err := s.runs.SavePipelineRun(run); err != nil {
		return nil, err
	}
	if parentID != "" {
		s.appendLog(run, "info", "Launched by full pipeline run", map[string]interface{}{
			"pipeline_run": shortID(parentID),
		})
	}

	watched, stop := s.watchRuns(ctx, run.ID, parentID)
	defer stop()

	bodyErr := body(watched, run)

	switch {
	case watched.Err() != nil || s.runCancelled(run.ID):
		run.CurrentStep = "Cancelled"
		return s.finalizeRun(run, models.RunStatusCancelled, cancelReason), nil
	case bodyErr != nil:
		return s.finalizeRun(run, models.RunStatusFailed, bodyErr.Error()), bodyErr
	default:
		run.CurrentStep = ""
		return s.finalizeRun(run, models.RunStatusCompleted, ""), nil
	}
}

// runDiscoveryStage fires the configured discovery sources, then promotes
// pending queue items into companies. Per-source detail lives in the
// DiscoveryRun rows; this row aggregates.
func (s *Service) runDiscoveryStage(ctx context.Context, run *models.PipelineRun, limit int) error {
	if limit <= 0 {
		limit = defaultQueueLimit
	}

	run.CurrentStep = "Running discovery sources"
	s.appendLog(run, "info", "Discovery sources started", nil)

	sourceRuns, err := s.discovery.RunDiscovery(ctx, nil)
	if err != nil {
		return err
	}
	found, created, queued, sourceErrors := 0, 0, 0, 0
	for _, sr := range sourceRuns {
		found += sr.CompaniesFound
		created += sr.CompaniesNew
		queued += sr.CompaniesQueued
		sourceErrors += sr.Errors
	}
	run.Processed += found
	run.Failed += sourceErrors
	s.appendLog(run, "info", "Discovery sources finished", map[string]interface{}{
		"sources": len(sourceRuns),
		"found":   found,
		"new":     created,
		"queued":  queued,
	})

	if ctx.Err() != nil || s.runCancelled(run.ID) {
		return ctx.Err()
	}

	run.CurrentStep = "Processing discovery queue"
	result, err := s.discovery.ProcessQueue(ctx, limit)
	if err != nil {
		return err
	}
	run.Processed += result.Processed
	run.Failed += result.Failed
	s.appendLog(run, "info", "Discovery queue processed", map[string]interface{}{
		"processed": result.Processed,
		"created":   result.Created,
		"updated":   result.Updated,
		"review":    result.Review,
		"failed":    result.Failed,
	})
	return nil
}

// runCrawlStage visits companies due for a crawl. The eligible set is
// snapshotted once up front: failed and skipped crawls keep their crawl
// timestamp untouched, so re-selecting between batches would return the same
// companies forever.
func (s *Service) runCrawlStage(ctx context.Context, run *models.PipelineRun, family string, limit int) error {
	if limit <= 0 {
		limit = defaultCrawlLimit
	}

	cutoff := time.Now().UTC().Add(-s.recrawlAfter)
	companies, err := s.companies.ListCrawlable(family, cutoff, limit)
	if err != nil {
		return err
	}
	if len(companies) == 0 {
		s.appendLog(run, "info", "No companies due for crawling", nil)
		return nil
	}
	s.appendLog(run, "info", "Crawl started", map[string]interface{}{
		"companies": len(companies),
		"family":    family,
	})

	total := &models.CrawlSummary{}
	for start := 0; start < len(companies); start += s.crawlBatch {
		if ctx.Err() != nil || s.runCancelled(run.ID) {
			return ctx.Err()
		}
		end := start + s.crawlBatch
		if end > len(companies) {
			end = len(companies)
		}
		ids := make([]string, 0, end-start)
		for _, company := range companies[start:end] {
			ids = append(ids, company.ID)
		}

		run.CurrentStep = fmt.Sprintf("Crawling companies %d-%d of %d", start+1, end, len(companies))
		summary := s.crawler.CrawlCompanies(ctx, ids, 0)
		total.Merge(summary)

		run.Processed += summary.Success + summary.Unchanged + summary.Skipped
		run.Failed += summary.Failed
		s.appendLog(run, "info", "Crawl batch finished", map[string]interface{}{
			"success":   summary.Success,
			"unchanged": summary.Unchanged,
			"failed":    summary.Failed,
			"skipped":   summary.Skipped,
			"jobs":      summary.JobsFound,
		})
	}

	s.appendLog(run, "info", "Crawl finished", map[string]interface{}{
		"success":    total.Success,
		"unchanged":  total.Unchanged,
		"failed":     total.Failed,
		"skipped":    total.Skipped,
		"jobs_found": total.JobsFound,
	})
	return nil
}

func (s *Service) runEnrichmentStage(ctx context.Context, run *models.PipelineRun, family string, limit int) error {
	var families []string
	if family != "" {
		families = []string{family}
	}

	run.CurrentStep = "Enriching job backlog"
	summary, err := s.enricher.EnrichBacklog(ctx, families, limit)
	if summary != nil {
		run.Processed += summary.Enriched + summary.Delisted
		run.Failed += summary.Failed
		s.appendLog(run, "info", "Enrichment finished", map[string]interface{}{
			"enriched": summary.Enriched,
			"delisted": summary.Delisted,
			"failed":   summary.Failed,
		})
	}
	return err
}

func (s *Service) runEmbeddingsStage(ctx context.Context, run *models.PipelineRun, batchSize int) error {
	run.CurrentStep = "Embedding job backlog"
	summary, err := s.embedder.EmbedBacklog(ctx, batchSize)
	if summary != nil {
		run.Processed += summary.Processed
		run.Failed += summary.Failed
		s.appendLog(run, "info", "Embeddings finished", map[string]interface{}{
			"processed": summary.Processed,
			"chunked":   summary.Chunked,
			"failed":    summary.Failed,
			"batches":   summary.Batches,
			"remaining": summary.Remaining,
		})
	}
	return err
}

// watchRuns derives a context that is cancelled as soon as one of the given
// run rows is flipped to cancelled. Empty ids are skipped.
func (s *Service) watchRuns(ctx context.Context, runIDs ...string) (context.Context, context.CancelFunc) {
	watched, cancel := context.WithCancel(ctx)

	ids := make([]string, 0, len(runIDs))
	for _, id := range runIDs {
		if id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return watched, cancel
	}

	common.SafeGo(s.logger, "pipeline-run-watch", func() {
		ticker := time.NewTicker(s.watchInterval)
		defer ticker.Stop()
		for {
			select {
			case <-watched.Done():
				return
			case <-ticker.C:
				for _, id := range ids {
					if s.runCancelled(id) {
						cancel()
						return
					}
				}
			}
		}
	})
	return watched, cancel
}

func (s *Service) runCancelled(runID string) bool {
	run, err := s.runs.GetPipelineRun(runID)
	return err == nil && run.Status == models.RunStatusCancelled
}

func (s *Service) finalizeRun(run *models.PipelineRun, status models.RunStatus, errMsg string) *models.PipelineRun {
	now := time.Now().UTC()
	run.Status = status
	run.Error = errMsg
	run.CompletedAt = &now
	if err := s.runs.SavePipelineRun(run); err != nil {
		s.logger.Error().Str("run_id", run.ID).Err(err).Msg("Failed to finalize pipeline run")
	}
	return run
}

// appendLog adds one run log line and persists the run. Callers serialize
// access to run.
func (s *Service) appendLog(run *models.PipelineRun, level, msg string, data map[string]interface{}) {
	run.Logs = append(run.Logs, models.RunLogEntry{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Message:   msg,
		RunID:     shortID(run.ID),
		Data:      data,
	})
	if err := s.runs.SavePipelineRun(run); err != nil {
		s.logger.Warn().Str("run_id", run.ID).Err(err).Msg("Failed to persist run log")
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Compile-time interface check
var _ interfaces.PipelineService = (*Service)(nil)
