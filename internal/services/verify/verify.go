package verify

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
)

// SupportedBoards are the job boards the searcher knows how to query.
var SupportedBoards = []string{"linkedin", "indeed"}

// Service checks stored jobs against external job boards and records each
// outcome as a JobBoardListing. Safe for concurrent use; sweeps within one
// run are sequential because the board search itself is the bottleneck and
// parallel hits on the same search engine only buy blocks.
type Service struct {
	jobs      interfaces.JobStorage
	companies interfaces.CompanyStorage
	listings  interfaces.ListingStorage
	runs      interfaces.RunStorage
	searcher  Searcher
	maxJobs   int
	reverify  time.Duration
	logger    arbor.ILogger
}

var _ interfaces.VerifierService = (*Service)(nil)

func NewService(
	jobs interfaces.JobStorage,
	companies interfaces.CompanyStorage,
	listings interfaces.ListingStorage,
	runs interfaces.RunStorage,
	searcher Searcher,
	cfg common.VerifyConfig,
	logger arbor.ILogger,
) *Service {
	maxJobs := cfg.MaxJobs
	if maxJobs <= 0 {
		maxJobs = 100
	}
	reverify := cfg.ReverifyAfter
	if reverify <= 0 {
		reverify = 7 * 24 * time.Hour
	}
	return &Service{
		jobs:      jobs,
		companies: companies,
		listings:  listings,
		runs:      runs,
		searcher:  searcher,
		maxJobs:   maxJobs,
		reverify:  reverify,
		logger:    logger,
	}
}

// VerifyJob checks one job against the given boards (nil means all supported
// boards) and returns found-status per board.
func (s *Service) VerifyJob(ctx context.Context, jobID string, boards []string) (map[string]bool, error) {
	job, err := s.jobs.Get(jobID)
	if err != nil {
		return nil, fmt.Errorf("loading job: %w", err)
	}
	company, err := s.companies.Get(job.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("loading company: %w", err)
	}

	if len(boards) == 0 {
		boards = SupportedBoards
	}

	results := make(map[string]bool, len(boards))
	for _, board := range boards {
		if !boardSupported(board) {
			s.logger.Warn().Str("board", board).Msg("Unsupported board")
			continue
		}
		found, err := s.verifyOne(ctx, job, company, board)
		if err != nil {
			return results, err
		}
		results[board] = found
	}
	return results, nil
}

// verifyOne searches one board and upserts the listing row.
func (s *Service) verifyOne(ctx context.Context, job *models.Job, company *models.Company, board string) (bool, error) {
	result, err := s.searcher.Search(ctx, company.Name, job.Title, board)
	if err != nil {
		return false, err
	}

	listing := &models.JobBoardListing{
		ID:                uuid.NewString(),
		JobID:             job.ID,
		Board:             board,
		Found:             result.Found,
		Confidence:        result.Confidence,
		ListingURL:        result.ListingURL,
		SearchQuery:       fmt.Sprintf("%q %q site:%s", company.Name, job.Title, board),
		SearchResultCount: result.ResultCount,
		VerifiedAt:        time.Now().UTC(),
	}
	if err := s.listings.Save(listing); err != nil {
		return result.Found, fmt.Errorf("saving listing: %w", err)
	}

	s.logger.Info().
		Str("job", job.Title).
		Str("company", company.Name).
		Str("board", board).
		Bool("found", result.Found).
		Msg("Verified job on board")
	return result.Found, nil
}

// VerifyBatch sweeps active jobs needing a check on the board under a
// recorded VerificationRun. Jobs never checked on the board go first, then
// the stalest checks.
func (s *Service) VerifyBatch(ctx context.Context, board string, limit int) (*models.VerificationRun, error) {
	if !boardSupported(board) {
		return nil, fmt.Errorf("unsupported board %q", board)
	}
	if limit <= 0 {
		limit = s.maxJobs
	}

	run := &models.VerificationRun{
		ID:        uuid.NewString(),
		Status:    models.RunStatusRunning,
		Boards:    []string{board},
		StartedAt: time.Now().UTC(),
	}
	if err := s.runs.SaveVerificationRun(run); err != nil {
		return nil, fmt.Errorf("creating verification run: %w", err)
	}

	candidates, err := s.jobsNeedingVerification(board, limit)
	if err != nil {
		s.appendLog(run, "error", "Selecting jobs failed: "+err.Error(), nil)
		return s.finalizeRun(run, models.RunStatusFailed, err.Error()), err
	}

	s.appendLog(run, "info", "Verification sweep started", map[string]interface{}{
		"board": board,
		"jobs":  len(candidates),
	})

	found := 0
	for _, job := range candidates {
		if ctx.Err() != nil || s.runCancelled(run.ID) {
			s.appendLog(run, "warn", "Verification cancelled", nil)
			return s.finalizeRun(run, models.RunStatusCancelled, ""), nil
		}

		company, err := s.companies.Get(job.CompanyID)
		if err != nil {
			run.Errors++
			continue
		}
		hit, err := s.verifyOne(ctx, job, company, board)
		if err != nil {
			run.Errors++
			s.logger.Warn().Str("job", job.Title).Err(err).Msg("Verification failed")
			continue
		}
		run.JobsChecked++
		if hit {
			found++
			run.ListingsFound++
		}

		if run.JobsChecked%10 == 0 {
			s.appendLog(run, "info", "Verification progress", map[string]interface{}{
				"checked": run.JobsChecked,
				"found":   found,
			})
		}
	}

	s.appendLog(run, "info", "Verification sweep finished", map[string]interface{}{
		"checked": run.JobsChecked,
		"found":   found,
		"errors":  run.Errors,
	})
	return s.finalizeRun(run, models.RunStatusCompleted, ""), nil
}

// jobsNeedingVerification picks active jobs with no listing row on the board
// or one older than the reverify window, never-checked first, then stalest.
func (s *Service) jobsNeedingVerification(board string, limit int) ([]*models.Job, error) {
	active, err := s.jobs.ListActive(0)
	if err != nil {
		return nil, err
	}
	cutoff := time.Now().UTC().Add(-s.reverify)

	type candidate struct {
		job          *models.Job
		lastVerified time.Time // zero when never checked
	}
	var candidates []candidate
	for _, job := range active {
		listing, err := s.listings.GetByJobAndBoard(job.ID, board)
		if err != nil {
			candidates = append(candidates, candidate{job: job})
			continue
		}
		if listing.VerifiedAt.Before(cutoff) {
			candidates = append(candidates, candidate{job: job, lastVerified: listing.VerifiedAt})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].lastVerified.Before(candidates[j].lastVerified)
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	jobs := make([]*models.Job, len(candidates))
	for i, c := range candidates {
		jobs[i] = c.job
	}
	return jobs, nil
}

// Stats reports per-board coverage and uniqueness over active jobs.
func (s *Service) Stats(board string) (*models.VerifyStats, error) {
	totalJobs, err := s.jobs.CountActive()
	if err != nil {
		return nil, err
	}
	listings, err := s.listings.ListByBoard(board)
	if err != nil {
		return nil, err
	}

	boards := make(map[string]models.BoardStats)
	for _, l := range listings {
		// Listings for delisted jobs are kept but excluded from rates.
		if job, err := s.jobs.Get(l.JobID); err != nil || !job.IsActive {
			continue
		}
		st := boards[l.Board]
		st.Verified++
		if l.Found {
			st.Found++
		} else {
			st.Unique++
		}
		if st.LastVerified == nil || l.VerifiedAt.After(*st.LastVerified) {
			t := l.VerifiedAt
			st.LastVerified = &t
		}
		boards[l.Board] = st
	}
	for name, st := range boards {
		if st.Verified > 0 {
			st.UniquenessRate = float64(st.Unique) / float64(st.Verified)
		}
		if totalJobs > 0 {
			st.CoverageRate = float64(st.Verified) / float64(totalJobs)
		}
		boards[name] = st
	}

	recent, err := s.runs.ListVerificationRuns(10)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to list verification runs")
		recent = nil
	}

	return &models.VerifyStats{
		TotalJobs:  totalJobs,
		Boards:     boards,
		RecentRuns: recent,
	}, nil
}

func boardSupported(board string) bool {
	for _, b := range SupportedBoards {
		if b == board {
			return true
		}
	}
	return false
}

func (s *Service) runCancelled(runID string) bool {
	run, err := s.runs.GetVerificationRun(runID)
	return err == nil && run.Status == models.RunStatusCancelled
}

func (s *Service) finalizeRun(run *models.VerificationRun, status models.RunStatus, errMsg string) *models.VerificationRun {
	now := time.Now().UTC()
	run.Status = status
	run.Error = errMsg
	run.CompletedAt = &now
	if err := s.runs.SaveVerificationRun(run); err != nil {
		s.logger.Error().Str("run_id", run.ID).Err(err).Msg("Failed to finalize verification run")
	}
	return run
}

// appendLog adds one run log line and persists the run.
func (s *Service) appendLog(run *models.VerificationRun, level, msg string, data map[string]interface{}) {
	run.Logs = append(run.Logs, models.RunLogEntry{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Message:   msg,
		RunID:     shortID(run.ID),
		Data:      data,
	})
	if err := s.runs.SaveVerificationRun(run); err != nil {
		s.logger.Warn().Str("run_id", run.ID).Err(err).Msg("Failed to persist run log")
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
