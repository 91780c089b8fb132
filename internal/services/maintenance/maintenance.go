// Package maintenance re-checks companies that already have jobs on file. A
// fresh listing fetch is diffed against the stored active set: postings that
// vanished upstream are delisted, new ones are normalized in, and survivors
// get their verification time bumped. An extractor returning zero jobs means
// the current set is unknown, never that everything was removed, so no
// deletions happen on an empty read.
package maintenance

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/reperio/internal/ats"
	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
)

// defaultSweepLimit caps companies per sweep when the caller passes 0.
const defaultSweepLimit = 100

// Service diffs live listings against stored jobs. Safe for concurrent use.
type Service struct {
	companies   interfaces.CompanyStorage
	jobs        interfaces.JobStorage
	runs        interfaces.RunStorage
	fetcher     interfaces.Fetcher
	render      interfaces.RenderService
	extractor   interfaces.ExtractorService
	normalizer  interfaces.NormalizerService
	concurrency int
	maxAge      time.Duration
	logger      arbor.ILogger
}

func NewService(
	companies interfaces.CompanyStorage,
	jobs interfaces.JobStorage,
	runs interfaces.RunStorage,
	fetcher interfaces.Fetcher,
	render interfaces.RenderService,
	extractor interfaces.ExtractorService,
	normalizer interfaces.NormalizerService,
	cfg common.MaintenanceConfig,
	logger arbor.ILogger,
) *Service {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	return &Service{
		companies:   companies,
		jobs:        jobs,
		runs:        runs,
		fetcher:     fetcher,
		render:      render,
		extractor:   extractor,
		normalizer:  normalizer,
		concurrency: concurrency,
		maxAge:      maxAge,
		logger:      logger,
	}
}

// MaintainCompany diffs one company's live listing against its active jobs.
func (s *Service) MaintainCompany(ctx context.Context, companyID string) *models.MaintainResult {
	company, err := s.companies.Get(companyID)
	if err != nil {
		return &models.MaintainResult{
			CompanyID: companyID,
			Outcome:   models.MaintainOutcomeFailed,
			Reason:    models.MaintainReasonNotFound,
		}
	}
	return s.maintainCompany(ctx, company)
}

// RunMaintenance sweeps stale companies under a recorded MaintenanceRun.
// Cancellation is cooperative: the loop re-reads the run row between
// companies and stops when an operator has marked it cancelled.
func (s *Service) RunMaintenance(ctx context.Context, family, companyID string, limit int) (*models.MaintenanceRun, error) {
	if limit <= 0 {
		limit = defaultSweepLimit
	}

	run := &models.MaintenanceRun{
		ID:        uuid.NewString(),
		RunType:   runType(family, companyID),
		ATSFamily: family,
		CompanyID: companyID,
		Status:    models.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := s.runs.SaveMaintenanceRun(run); err != nil {
		return nil, err
	}

	companies, err := s.selectCompanies(family, companyID, limit)
	if err != nil {
		return s.finalizeRun(run, models.RunStatusFailed, err.Error()), err
	}
	if len(companies) == 0 {
		s.appendLog(run, "info", "No companies to maintain", nil)
		return s.finalizeRun(run, models.RunStatusCompleted, ""), nil
	}

	s.appendLog(run, "info", "Maintenance sweep started", map[string]interface{}{
		"companies": len(companies),
		"family":    family,
	})

	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	cancelled := false

	for _, company := range companies {
		if ctx.Err() != nil || s.runCancelled(run.ID) {
			cancelled = true
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		company := company
		common.SafeGo(s.logger, "maintain-company", func() {
			defer wg.Done()
			defer func() { <-sem }()

			res := s.maintainCompany(ctx, company)

			mu.Lock()
			defer mu.Unlock()
			run.CompaniesChecked++
			run.JobsVerified += res.Verified
			run.JobsNew += res.New
			run.JobsDelisted += res.Delisted
			run.JobsUnchanged += res.Verified
			if res.Outcome == models.MaintainOutcomeFailed {
				run.Errors++
			}
			if res.New > 0 || res.Delisted > 0 {
				s.appendLog(run, "info", company.Name+": listing changed", map[string]interface{}{
					"new":      res.New,
					"delisted": res.Delisted,
					"verified": res.Verified,
				})
			} else if serr := s.runs.SaveMaintenanceRun(run); serr != nil {
				s.logger.Warn().Str("run_id", run.ID).Err(serr).Msg("Failed to persist run counters")
			}
		})
	}
	wg.Wait()

	status := models.RunStatusCompleted
	if cancelled || ctx.Err() != nil {
		status = models.RunStatusCancelled
	}
	run = s.finalizeRun(run, status, "")

	s.logger.Info().
		Str("run_id", run.ID).
		Int("companies", run.CompaniesChecked).
		Int("verified", run.JobsVerified).
		Int("new", run.JobsNew).
		Int("delisted", run.JobsDelisted).
		Int("errors", run.Errors).
		Msg("Maintenance sweep finished")
	return run, nil
}

func runType(family, companyID string) string {
	switch {
	case companyID != "":
		return models.MaintenanceRunCompany
	case family != "":
		return models.MaintenanceRunATSFamily
	default:
		return models.MaintenanceRunFull
	}
}

func (s *Service) selectCompanies(family, companyID string, limit int) ([]*models.Company, error) {
	if companyID != "" {
		company, err := s.companies.Get(companyID)
		if err != nil {
			return nil, err
		}
		return []*models.Company{company}, nil
	}
	return s.companies.ListMaintainable(family, time.Now().UTC().Add(-s.maxAge), limit)
}

// maintainCompany fetches the live listing and applies the three-way diff.
func (s *Service) maintainCompany(ctx context.Context, company *models.Company) *models.MaintainResult {
	res := &models.MaintainResult{CompanyID: company.ID, CompanyName: company.Name}

	if company.CareersURL == "" {
		res.Outcome = models.MaintainOutcomeSkipped
		res.Reason = models.MaintainReasonNoCareersURL
		return res
	}

	url := s.fetchURL(company)
	body, status, rendered := s.fetchListing(ctx, company, url)
	if len(body) == 0 || (status != 200 && status != 201) {
		s.logger.Warn().
			Str("company", company.Name).
			Str("url", url).
			Int("status", status).
			Msg("Maintenance fetch failed")
		res.Outcome = models.MaintainOutcomeFailed
		res.Reason = models.MaintainReasonFetchFailed
		return res
	}

	extracted, err := s.extractor.Extract(ctx, &interfaces.ExtractInput{
		Company:   company,
		Content:   body,
		SourceURL: url,
		Rendered:  rendered,
	})
	if err != nil {
		s.logger.Warn().Str("company", company.Name).Err(err).Msg("Maintenance extraction failed")
		res.Outcome = models.MaintainOutcomeFailed
		res.Reason = models.MaintainReasonExtractFailed
		return res
	}

	now := time.Now().UTC()

	if len(extracted) == 0 {
		// Unknown current set. A transient empty page must not delist the
		// whole company, so only the maintenance timestamp moves.
		s.logger.Warn().Str("company", company.Name).Msg("Empty extraction, current set unknown")
		res.Outcome = models.MaintainOutcomeUnknown
		s.touchMaintained(company, now)
		return res
	}

	existing, err := s.jobs.ListActiveByCompany(company.ID)
	if err != nil {
		s.logger.Error().Str("company", company.Name).Err(err).Msg("Failed to load active jobs")
		res.Outcome = models.MaintainOutcomeFailed
		res.Reason = models.MaintainReasonException
		return res
	}

	custom := company.ATSFamily == models.ATSFamilyCustom
	current := make(map[string]*models.ExtractedJob, len(extracted))
	for _, ex := range extracted {
		if key := jobKey(ex.SourceURL, ex.Title, url, custom); key != "" {
			current[key] = ex
		}
	}

	// Walk the stored active set: survivors get verified, the rest delisted.
	seen := make(map[string]bool, len(existing))
	for _, job := range existing {
		key := jobKey(job.SourceURL, job.Title, url, custom)
		if key == "" {
			continue
		}
		seen[key] = true
		if _, ok := current[key]; ok {
			job.LastVerifiedAt = &now
			job.UpdatedAt = now
			if uerr := s.jobs.Update(job); uerr != nil {
				s.logger.Warn().Str("job_id", job.ID).Err(uerr).Msg("Failed to stamp verification")
				continue
			}
			res.Verified++
		} else {
			if derr := s.jobs.Delist(job.ID, models.DelistReasonRemovedFromATS); derr != nil {
				s.logger.Warn().Str("job_id", job.ID).Err(derr).Msg("Failed to delist job")
				continue
			}
			res.Delisted++
		}
	}

	// Postings with no active row are inserted through the normalizer.
	for key, ex := range current {
		if seen[key] {
			continue
		}
		if _, nerr := s.normalizer.NormalizeAndSave(company.ID, ex); nerr != nil {
			s.logger.Warn().
				Str("company", company.Name).
				Str("url", ex.SourceURL).
				Err(nerr).
				Msg("Failed to insert job during maintenance")
			continue
		}
		res.New++
	}

	res.Outcome = models.MaintainOutcomeSuccess
	s.touchMaintained(company, now)

	if res.Delisted > 0 || res.New > 0 {
		s.logger.Info().
			Str("company", company.Name).
			Int("new", res.New).
			Int("delisted", res.Delisted).
			Int("verified", res.Verified).
			Msg("Maintenance diff applied")
	}
	return res
}

// fetchURL picks the vendor JSON API when the family has one and the
// identifier is usable; everything else goes through the careers page.
func (s *Service) fetchURL(company *models.Company) string {
	if family := ats.Lookup(company.ATSFamily); family != nil && ats.ValidIdentifier(company.ATSIdentifier) {
		if api := family.APIURL(company.ATSIdentifier); api != "" {
			return api
		}
	}
	return company.CareersURL
}

// fetchListing retrieves the listing body, routing custom companies through
// the browser when one is available.
func (s *Service) fetchListing(ctx context.Context, company *models.Company, url string) ([]byte, int, bool) {
	if company.ATSFamily == models.ATSFamilyCustom && s.render != nil {
		html, err := s.render.Render(ctx, url)
		if err == nil && html != "" {
			return []byte(html), 200, true
		}
		if err != nil {
			s.logger.Warn().
				Str("company", company.Name).
				Str("url", url).
				Err(err).
				Msg("Render failed, falling back to plain fetch")
		}
	}

	res, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		s.logger.Warn().Str("url", url).Err(err).Msg("Fetch failed")
		return nil, 0, false
	}
	return res.Body, res.StatusCode, false
}

func (s *Service) touchMaintained(company *models.Company, now time.Time) {
	company.LastMaintenanceAt = &now
	company.UpdatedAt = now
	if err := s.companies.Update(company); err != nil {
		s.logger.Warn().Str("company", company.Name).Err(err).Msg("Failed to update maintenance timestamp")
	}
}

func (s *Service) runCancelled(runID string) bool {
	run, err := s.runs.GetMaintenanceRun(runID)
	return err == nil && run.Status == models.RunStatusCancelled
}

func (s *Service) finalizeRun(run *models.MaintenanceRun, status models.RunStatus, errMsg string) *models.MaintenanceRun {
	now := time.Now().UTC()
	run.Status = status
	run.Error = errMsg
	run.CompletedAt = &now
	if err := s.runs.SaveMaintenanceRun(run); err != nil {
		s.logger.Error().Str("run_id", run.ID).Err(err).Msg("Failed to finalize maintenance run")
	}
	return run
}

// appendLog adds one run log line and persists the run. Callers serialize
// access to run.
func (s *Service) appendLog(run *models.MaintenanceRun, level, msg string, data map[string]interface{}) {
	run.Logs = append(run.Logs, models.RunLogEntry{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Message:   msg,
		RunID:     shortID(run.ID),
		Data:      data,
	})
	if err := s.runs.SaveMaintenanceRun(run); err != nil {
		s.logger.Warn().Str("run_id", run.ID).Err(err).Msg("Failed to persist run log")
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// jobKey is the identity used for set comparison. Custom pages often carry
// unstable or missing posting URLs; a missing URL is backfilled with the
// listing page URL during extraction, so for custom companies both cases
// fall back to the normalized title.
func jobKey(sourceURL, title, pageURL string, custom bool) string {
	key := normalizeURL(sourceURL)
	if custom && (key == "" || key == normalizeURL(pageURL)) {
		if t := strings.ToLower(strings.TrimSpace(title)); t != "" {
			return t
		}
	}
	return key
}

// normalizeURL canonicalizes a posting URL for comparison: query string
// dropped, trailing slashes dropped, lowercased.
func normalizeURL(url string) string {
	if url == "" {
		return ""
	}
	if i := strings.IndexByte(url, '?'); i >= 0 {
		url = url[:i]
	}
	url = strings.TrimRight(url, "/")
	return strings.ToLower(url)
}

// Compile-time interface check
var _ interfaces.MaintenanceService = (*Service)(nil)
