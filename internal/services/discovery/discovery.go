// Package discovery finds companies that hire and feeds them into the
// company table. Sources run concurrently, each under its own recorded run,
// and stream partial candidates to the orchestrator. Candidates complete
// enough to crawl are inserted directly; the rest land on a review queue
// that a second pass enriches with careers-page and ATS detection before
// promoting. A shared dedup set keeps parallel sources from fighting over
// the same domain.
package discovery

import (
	"context"
	"errors"
	"fmt"
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

// defaultQueueBatch caps queue items per ProcessQueue pass when the caller
// passes 0.
const defaultQueueBatch = 50

// DefaultSourceNames are the sources a run fires when none are named.
// google_search is absent: each query spends paid API quota, so it only runs
// when an operator asks for it by name.
var DefaultSourceNames = []string{
	"ats_directories",
	"yc_companies",
	"github_orgs",
	"funding_news",
	"job_aggregators",
	"ats_prober",
	"network_crawler",
}

// Service orchestrates discovery sources and the review queue. Safe for
// concurrent use.
type Service struct {
	companies interfaces.CompanyStorage
	queue     interfaces.QueueStorage
	runs      interfaces.RunStorage
	fetcher   interfaces.Fetcher
	detector  *ats.Detector
	cfg       common.DiscoveryConfig
	searchCfg common.SearchConfig
	logger    arbor.ILogger

	// sources, when non-empty, replaces name-based construction. Tests use
	// it to inject fakes.
	sources []Source
}

var _ interfaces.DiscoveryService = (*Service)(nil)

func NewService(
	companies interfaces.CompanyStorage,
	queue interfaces.QueueStorage,
	runs interfaces.RunStorage,
	fetcher interfaces.Fetcher,
	detector *ats.Detector,
	cfg common.DiscoveryConfig,
	searchCfg common.SearchConfig,
	logger arbor.ILogger,
) *Service {
	if cfg.ProberLimit <= 0 {
		cfg.ProberLimit = 500
	}
	if cfg.ProberConcurrency <= 0 {
		cfg.ProberConcurrency = 20
	}
	if cfg.QueueRetryLimit <= 0 {
		cfg.QueueRetryLimit = 3
	}
	if cfg.NetworkCrawlLimit <= 0 {
		cfg.NetworkCrawlLimit = 200
	}
	return &Service{
		companies: companies,
		queue:     queue,
		runs:      runs,
		fetcher:   fetcher,
		detector:  detector,
		cfg:       cfg,
		searchCfg: searchCfg,
		logger:    logger,
	}
}

// WithSources replaces name-based source construction with a fixed set.
func (s *Service) WithSources(sources ...Source) *Service {
	s.sources = sources
	return s
}

// RunDiscovery fires the named sources concurrently, each under its own
// recorded DiscoveryRun, and blocks until all of them finish. An empty
// sources slice runs the configured set, or DefaultSourceNames when the
// config names none.
func (s *Service) RunDiscovery(ctx context.Context, sourceNames []string) ([]*models.DiscoveryRun, error) {
	dedup := NewDedup()
	if err := s.hydrateDedup(dedup); err != nil {
		return nil, fmt.Errorf("hydrating dedup: %w", err)
	}

	sources, err := s.buildSources(sourceNames, dedup)
	if err != nil {
		return nil, err
	}

	domains, boards := dedup.Size()
	s.logger.Info().
		Int("sources", len(sources)).
		Int("known_domains", domains).
		Int("known_boards", boards).
		Msg("Starting discovery")

	runs := make([]*models.DiscoveryRun, len(sources))
	for i, src := range sources {
		run := &models.DiscoveryRun{
			ID:        uuid.NewString(),
			Source:    src.Name(),
			Status:    models.RunStatusRunning,
			StartedAt: time.Now().UTC(),
		}
		if err := s.runs.SaveDiscoveryRun(run); err != nil {
			return nil, fmt.Errorf("saving discovery run: %w", err)
		}
		runs[i] = run
	}

	var wg sync.WaitGroup
	for i, src := range sources {
		src, run := src, runs[i]
		wg.Add(1)
		common.SafeGo(s.logger, "discovery-"+src.Name(), func() {
			defer wg.Done()
			s.runSource(ctx, run, src, dedup)
		})
	}
	wg.Wait()

	return runs, nil
}

// runSource drives one source to completion under its run record. The emit
// closure serializes admissions for this run; sources may call it from many
// goroutines at once.
func (s *Service) runSource(ctx context.Context, run *models.DiscoveryRun, src Source, dedup *Dedup) {
	sctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.appendLog(run, "info", "Starting discovery from "+src.Name(), nil)

	var mu sync.Mutex
	emissions := 0
	emit := func(d *models.DiscoveredCompany) {
		mu.Lock()
		defer mu.Unlock()
		if sctx.Err() != nil {
			return
		}
		run.CompaniesFound++
		run.CurrentStep = d.Name
		emissions++

		outcome, err := s.admit(d, dedup)
		switch outcome {
		case admitNew:
			run.CompaniesNew++
		case admitQueued:
			run.CompaniesQueued++
		case admitDuplicate:
			run.Duplicates++
		case admitNonUS:
			run.NonUS++
		case admitError:
			run.Errors++
			s.logger.Warn().
				Str("source", src.Name()).
				Str("company", d.Name).
				Err(err).
				Msg("Failed to admit discovered company")
		}

		if p, ok := src.(progressReporter); ok {
			run.ProgressCount, run.ProgressTotal = p.Progress()
		}
		if emissions%5 == 0 {
			// Operator cancellation arrives through the run row, not the
			// context. Re-read before persisting progress: the save below
			// writes the whole row and would otherwise bury the operator's
			// status change.
			if s.runCancelled(run.ID) {
				cancel()
				return
			}
			s.appendLog(run, "info", "Progress", map[string]interface{}{
				"found":      run.CompaniesFound,
				"new":        run.CompaniesNew,
				"queued":     run.CompaniesQueued,
				"duplicates": run.Duplicates,
			})
		}
	}

	err := src.Discover(sctx, emit)

	mu.Lock()
	defer mu.Unlock()
	if u, ok := src.(companyUpdater); ok {
		run.Updated = u.UpdatedCompanies()
	}
	if p, ok := src.(progressReporter); ok {
		run.ProgressCount, run.ProgressTotal = p.Progress()
	}
	run.CurrentStep = ""

	switch {
	case s.runCancelled(run.ID) || errors.Is(err, context.Canceled):
		s.finalizeRun(run, models.RunStatusCancelled, "")
	case err != nil:
		s.appendLog(run, "error", "Discovery failed", map[string]interface{}{"error": err.Error()})
		s.finalizeRun(run, models.RunStatusFailed, err.Error())
	default:
		s.appendLog(run, "info", fmt.Sprintf("Run completed: %d new, %d queued, %d duplicates, %d filtered",
			run.CompaniesNew, run.CompaniesQueued, run.Duplicates, run.NonUS), nil)
		s.finalizeRun(run, models.RunStatusCompleted, "")
	}
}

type admitOutcome int

const (
	admitNew admitOutcome = iota
	admitQueued
	admitDuplicate
	admitNonUS
	admitError
)

// admit routes one candidate: filter, claim its domain, then insert or
// queue. The domain is claimed before the insert so a concurrent source
// emitting the same domain loses here rather than at the storage check.
func (s *Service) admit(d *models.DiscoveredCompany, dedup *Dedup) (admitOutcome, error) {
	d.Normalize()

	if s.cfg.USOnly && !usEvidence(d) {
		return admitNonUS, nil
	}
	if d.Domain != "" && !dedup.ClaimDomain(d.Domain) {
		return admitDuplicate, nil
	}
	if d.ATSFamily != "" && d.ATSIdentifier != "" {
		dedup.AddBoard(d.ATSFamily, d.ATSIdentifier)
	}

	if d.Complete() {
		company := companyFromDiscovered(d)
		if err := s.companies.Create(company); err != nil {
			if errors.Is(err, interfaces.ErrDuplicateDomain) {
				return admitDuplicate, nil
			}
			return admitError, err
		}
		return admitNew, nil
	}

	item := models.NewQueueItem(uuid.NewString(), d)
	if err := s.queue.Enqueue(item); err != nil {
		if errors.Is(err, interfaces.ErrDuplicateDomain) {
			return admitDuplicate, nil
		}
		return admitError, err
	}
	return admitQueued, nil
}

// Sources that curate US-centric inputs are trusted when a candidate
// carries no location signal at all.
var usTrustedSources = []string{"yc_companies", "github_orgs", "funding_news", "job_aggregators"}

// usEvidence reports whether a candidate looks like a US company. An
// explicit country always decides; after that, a verified careers page or
// ATS board is taken as reachable-and-relevant, and trusted sources pass.
func usEvidence(d *models.DiscoveredCompany) bool {
	if c := strings.TrimSpace(d.Country); c != "" {
		return strings.EqualFold(c, "US") || looksUS(c)
	}
	if d.Location != "" {
		return looksUS(d.Location)
	}
	if d.CareersURL != "" && d.ATSFamily != "" {
		return true
	}
	if strings.Contains(d.Source, "_careers") {
		return true
	}
	if looksUSDomain(d.Domain) {
		return true
	}
	for _, prefix := range usTrustedSources {
		if strings.HasPrefix(d.Source, prefix) {
			return true
		}
	}
	return false
}

func companyFromDiscovered(d *models.DiscoveredCompany) *models.Company {
	return &models.Company{
		ID:              uuid.NewString(),
		Name:            d.Name,
		Domain:          d.Domain,
		CareersURL:      d.CareersURL,
		WebsiteURL:      d.WebsiteURL,
		ATSFamily:       d.ATSFamily,
		ATSIdentifier:   d.ATSIdentifier,
		DiscoverySource: d.Source,
		Country:         d.Country,
		Location:        d.Location,
		Description:     d.Description,
		Industry:        d.Industry,
		EmployeeCount:   d.EmployeeCount,
		FundingStage:    d.FundingStage,
		CrawlPriority:   models.CrawlPriorityDiscovered,
		IsActive:        true,
	}
}

// hydrateDedup seeds the dedup set from companies on file and domains
// already waiting in the queue. Inactive companies are not loaded; an
// emission colliding with one still bounces off the unique domain index.
func (s *Service) hydrateDedup(dedup *Dedup) error {
	companies, err := s.companies.ListActive()
	if err != nil {
		return err
	}
	for _, c := range companies {
		dedup.AddDomain(c.Domain)
		if c.ATSFamily != "" && c.ATSIdentifier != "" {
			dedup.AddBoard(c.ATSFamily, c.ATSIdentifier)
		}
	}
	domains, err := s.queue.ListPendingDomains()
	if err != nil {
		return err
	}
	for _, domain := range domains {
		dedup.AddDomain(domain)
	}
	return nil
}

func (s *Service) buildSources(names []string, dedup *Dedup) ([]Source, error) {
	if len(s.sources) > 0 {
		return s.sources, nil
	}
	if len(names) == 0 {
		names = s.cfg.Sources
	}
	if len(names) == 0 {
		names = DefaultSourceNames
	}
	out := make([]Source, 0, len(names))
	for _, name := range names {
		src, err := s.newSource(strings.ToLower(strings.TrimSpace(name)), dedup)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, nil
}

func (s *Service) newSource(name string, dedup *Dedup) (Source, error) {
	switch name {
	case "ats_directories":
		return newATSDirectoriesSource(s.fetcher, dedup, s.logger), nil
	case "yc_companies":
		return newYCCompaniesSource(s.fetcher, s.logger), nil
	case "github_orgs":
		return newGitHubOrgsSource(s.cfg.GitHubToken, dedup, s.logger), nil
	case "funding_news":
		return newFundingNewsSource(s.fetcher, s.logger), nil
	case "job_aggregators":
		return newJobAggregatorsSource(s.fetcher, dedup, s.logger), nil
	case "ats_prober":
		return newATSProberSource(s.companies, s.fetcher, dedup, s.cfg.ProberLimit, s.cfg.ProberConcurrency, s.logger), nil
	case "network_crawler":
		return newNetworkCrawlerSource(s.companies, s.fetcher, dedup, s.cfg.NetworkCrawlLimit, s.logger), nil
	case "google_search":
		return newGoogleSearchSource(s.companies, s.fetcher, dedup, s.searchCfg.GoogleAPIKey, s.searchCfg.GoogleCX, s.logger), nil
	default:
		return nil, fmt.Errorf("unknown discovery source %q", name)
	}
}

// ProcessQueue drains up to limit pending queue items, resolving careers
// URLs and ATS boards before creating or updating companies.
func (s *Service) ProcessQueue(ctx context.Context, limit int) (*models.QueueProcessResult, error) {
	if limit <= 0 {
		limit = defaultQueueBatch
	}

	items, err := s.queue.ListByStatus(models.QueueStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("listing pending queue items: %w", err)
	}

	result := &models.QueueProcessResult{}
	for _, item := range items {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		item.Status = models.QueueStatusProcessing
		if err := s.queue.Update(item); err != nil {
			s.logger.Warn().Str("item", item.ID).Err(err).Msg("Failed to mark queue item processing")
			continue
		}
		s.processQueueItem(ctx, item, result)
	}

	s.logger.Info().
		Int("processed", result.Processed).
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("review", result.Review).
		Int("failed", result.Failed).
		Msg("Queue pass finished")
	return result, nil
}

// processQueueItem promotes one queue item. Ordering matters: an existing
// company short-circuits everything, then careers and ATS resolution each
// run at most once, then a domain-less board item gets a domain backfilled
// from the board page before the final create.
func (s *Service) processQueueItem(ctx context.Context, item *models.DiscoveryQueueItem, result *models.QueueProcessResult) {
	result.Processed++

	if item.Domain != "" {
		if existing, err := s.companies.GetByDomain(item.Domain); err == nil {
			s.mergeIntoCompany(existing, item)
			s.completeItem(item, existing.ID)
			result.Updated++
			return
		}
	}

	if item.ATSFamily != "" && item.CareersURL == "" {
		if family := ats.Lookup(item.ATSFamily); family != nil {
			item.CareersURL = family.CareersURL(item.ATSIdentifier)
		}
	}
	if item.CareersURL == "" && item.Domain != "" {
		item.CareersURL = s.detector.FindCareersURL(ctx, item.Domain)
	}
	if item.ATSFamily == "" && item.CareersURL != "" {
		det, err := s.detector.DetectHTTP(ctx, ats.DetectInput{
			Domain:     item.Domain,
			CareersURL: item.CareersURL,
			WebsiteURL: item.WebsiteURL,
			Name:       item.Name,
		})
		if err != nil {
			s.failItem(item, "ats detection: "+err.Error(), result)
			return
		}
		if det.Found() {
			item.ATSFamily = det.Family
			item.ATSIdentifier = det.Identifier
		}
		if det.CareersURL != "" {
			item.CareersURL = det.CareersURL
		}
	}

	// Hosted-board emissions often arrive with no company domain. The board
	// page usually links the company site; recover it so dedup and the
	// domain uniqueness check can do their jobs. When no site is recoverable
	// the company is still created, domain-less.
	if item.Domain == "" && item.ATSFamily != "" && item.CareersURL != "" {
		if body := fetchPage(ctx, s.fetcher, item.CareersURL); body != "" {
			if site := extractBoardSite(body, item.ATSFamily); site != "" {
				item.Domain = models.NormalizeDomain(site)
				if existing, err := s.companies.GetByDomain(item.Domain); err == nil {
					s.mergeIntoCompany(existing, item)
					s.completeItem(item, existing.ID)
					result.Updated++
					return
				}
			}
		}
	}

	if item.CareersURL == "" {
		now := time.Now().UTC()
		item.Status = models.QueueStatusReview
		item.ErrorMessage = "no careers page found"
		item.ProcessedAt = &now
		if err := s.queue.Update(item); err != nil {
			s.logger.Warn().Str("item", item.ID).Err(err).Msg("Failed to move queue item to review")
		}
		result.Review++
		return
	}

	company := companyFromQueueItem(item)
	if err := s.companies.Create(company); err != nil {
		if errors.Is(err, interfaces.ErrDuplicateDomain) {
			if existing, err2 := s.companies.GetByDomain(company.Domain); err2 == nil {
				s.mergeIntoCompany(existing, item)
				s.completeItem(item, existing.ID)
				result.Updated++
				return
			}
		}
		s.failItem(item, "creating company: "+err.Error(), result)
		return
	}
	s.completeItem(item, company.ID)
	result.Created++
}

// mergeIntoCompany fills gaps on an existing company from a queue item.
// Existing values always win.
func (s *Service) mergeIntoCompany(company *models.Company, item *models.DiscoveryQueueItem) {
	changed := false
	if company.CareersURL == "" && item.CareersURL != "" {
		company.CareersURL = item.CareersURL
		changed = true
	}
	if company.WebsiteURL == "" && item.WebsiteURL != "" {
		company.WebsiteURL = item.WebsiteURL
		changed = true
	}
	if company.ATSFamily == "" && item.ATSFamily != "" {
		company.ATSFamily = item.ATSFamily
		company.ATSIdentifier = item.ATSIdentifier
		changed = true
	}
	if company.Location == "" && item.Location != "" {
		company.Location = item.Location
		changed = true
	}
	if company.Country == "" && item.Country != "" {
		company.Country = item.Country
		changed = true
	}
	if company.Description == "" && item.Description != "" {
		company.Description = item.Description
		changed = true
	}
	if company.Industry == "" && item.Industry != "" {
		company.Industry = item.Industry
		changed = true
	}
	if company.EmployeeCount == "" && item.EmployeeCount != "" {
		company.EmployeeCount = item.EmployeeCount
		changed = true
	}
	if company.FundingStage == "" && item.FundingStage != "" {
		company.FundingStage = item.FundingStage
		changed = true
	}
	if !changed {
		return
	}
	if err := s.companies.Update(company); err != nil {
		s.logger.Warn().Str("company", company.Name).Err(err).Msg("Failed to merge queue item into company")
	}
}

func (s *Service) completeItem(item *models.DiscoveryQueueItem, companyID string) {
	now := time.Now().UTC()
	item.Status = models.QueueStatusCompleted
	item.CompanyID = companyID
	item.ErrorMessage = ""
	item.ProcessedAt = &now
	if err := s.queue.Update(item); err != nil {
		s.logger.Warn().Str("item", item.ID).Err(err).Msg("Failed to complete queue item")
	}
}

// failItem counts a failure against the item and either requeues it or,
// past the retry limit, marks it failed for good.
func (s *Service) failItem(item *models.DiscoveryQueueItem, reason string, result *models.QueueProcessResult) {
	item.RetryCount++
	item.ErrorMessage = truncate(reason, 500)
	if item.RetryCount >= s.cfg.QueueRetryLimit {
		now := time.Now().UTC()
		item.Status = models.QueueStatusFailed
		item.ProcessedAt = &now
		result.Failed++
	} else {
		item.Status = models.QueueStatusPending
	}
	if err := s.queue.Update(item); err != nil {
		s.logger.Warn().Str("item", item.ID).Err(err).Msg("Failed to record queue item failure")
	}
}

func companyFromQueueItem(item *models.DiscoveryQueueItem) *models.Company {
	return &models.Company{
		ID:              uuid.NewString(),
		Name:            item.Name,
		Domain:          item.Domain,
		CareersURL:      item.CareersURL,
		WebsiteURL:      item.WebsiteURL,
		ATSFamily:       item.ATSFamily,
		ATSIdentifier:   item.ATSIdentifier,
		DiscoverySource: item.Source,
		Country:         item.Country,
		Location:        item.Location,
		Description:     item.Description,
		Industry:        item.Industry,
		EmployeeCount:   item.EmployeeCount,
		FundingStage:    item.FundingStage,
		CrawlPriority:   models.CrawlPriorityDiscovered,
		IsActive:        true,
	}
}

// DiscoverCompany resolves one operator-supplied company through the same
// ladder queue items go through: existing-company merge, careers page
// lookup, ATS detection, create. Unlike the queue path, an unresolvable
// careers page is not fatal; the company is still created so crawl retries
// can pick it up later.
func (s *Service) DiscoverCompany(ctx context.Context, name, domain, websiteURL string) (*models.Company, error) {
	domain = models.NormalizeDomain(domain)
	if domain == "" && websiteURL != "" {
		domain = models.NormalizeDomain(common.HostOf(websiteURL))
	}
	if domain == "" {
		return nil, fmt.Errorf("a domain or website URL is required")
	}
	if name == "" {
		name = domain
	}

	item := &models.DiscoveryQueueItem{
		Name:       name,
		Domain:     domain,
		WebsiteURL: websiteURL,
		Source:     "manual",
	}

	if existing, err := s.companies.GetByDomain(domain); err == nil {
		item.CareersURL = s.detector.FindCareersURL(ctx, domain)
		s.resolveATS(ctx, item)
		s.mergeIntoCompany(existing, item)
		return s.companies.GetByDomain(domain)
	}

	item.CareersURL = s.detector.FindCareersURL(ctx, domain)
	s.resolveATS(ctx, item)

	company := companyFromQueueItem(item)
	// Operator-added companies outrank discovered ones in the crawl order.
	company.CrawlPriority = models.CrawlPriorityDefault
	if err := s.companies.Create(company); err != nil {
		if errors.Is(err, interfaces.ErrDuplicateDomain) {
			if existing, err2 := s.companies.GetByDomain(domain); err2 == nil {
				s.mergeIntoCompany(existing, item)
				return s.companies.GetByDomain(domain)
			}
		}
		return nil, fmt.Errorf("creating company: %w", err)
	}

	s.logger.Info().
		Str("company", company.Name).
		Str("domain", company.Domain).
		Str("ats_family", company.ATSFamily).
		Msg("Company discovered manually")
	return company, nil
}

// resolveATS runs board detection against whatever URLs the item has. A
// detection error is logged, not returned: the caller still wants the
// company even if the board is unknown today.
func (s *Service) resolveATS(ctx context.Context, item *models.DiscoveryQueueItem) {
	if item.ATSFamily != "" || item.CareersURL == "" {
		return
	}
	det, err := s.detector.DetectHTTP(ctx, ats.DetectInput{
		Domain:     item.Domain,
		CareersURL: item.CareersURL,
		WebsiteURL: item.WebsiteURL,
		Name:       item.Name,
	})
	if err != nil {
		s.logger.Warn().Str("domain", item.Domain).Err(err).Msg("ATS detection failed")
		return
	}
	if det.Found() {
		item.ATSFamily = det.Family
		item.ATSIdentifier = det.Identifier
	}
	if det.CareersURL != "" {
		item.CareersURL = det.CareersURL
	}
}

// Stats reports queue depth by status, recent runs and company totals.
func (s *Service) Stats() (*models.DiscoveryStats, error) {
	queueCounts, err := s.queue.CountByStatus()
	if err != nil {
		return nil, err
	}
	recent, err := s.runs.ListDiscoveryRuns(10)
	if err != nil {
		return nil, err
	}
	running := 0
	for _, r := range recent {
		if r.Status == models.RunStatusRunning {
			running++
		}
	}
	total, err := s.companies.Count()
	if err != nil {
		return nil, err
	}
	withATS, err := s.companies.ListActiveWithATS()
	if err != nil {
		return nil, err
	}
	return &models.DiscoveryStats{
		Queue:          queueCounts,
		RecentRuns:     recent,
		RunningCount:   running,
		TotalCompanies: total,
		ReadyForCrawl:  len(withATS),
	}, nil
}

func (s *Service) runCancelled(runID string) bool {
	run, err := s.runs.GetDiscoveryRun(runID)
	return err == nil && run.Status == models.RunStatusCancelled
}

func (s *Service) finalizeRun(run *models.DiscoveryRun, status models.RunStatus, errMsg string) {
	now := time.Now().UTC()
	run.Status = status
	run.Error = errMsg
	run.CompletedAt = &now
	if err := s.runs.SaveDiscoveryRun(run); err != nil {
		s.logger.Error().Str("run_id", run.ID).Err(err).Msg("Failed to finalize discovery run")
	}
}

// appendLog adds one run log line and persists the run. Callers serialize
// access to run.
func (s *Service) appendLog(run *models.DiscoveryRun, level, msg string, data map[string]interface{}) {
	run.Logs = append(run.Logs, models.RunLogEntry{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Message:   msg,
		RunID:     shortRunID(run.ID),
		Data:      data,
	})
	if err := s.runs.SaveDiscoveryRun(run); err != nil {
		s.logger.Warn().Str("run_id", run.ID).Err(err).Msg("Failed to persist run log")
	}
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
