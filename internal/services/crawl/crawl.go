// Package crawl fetches company job listings and drives them through
// extraction and normalization. One crawl covers a single company: pick the
// listing URL (vendor API when the identifier is known, careers page
// otherwise), fetch, skip work when the body hash matches the latest
// snapshot, then persist a snapshot and hand the body to the extractor.
package crawl

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/reperio/internal/ats"
	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
)

// Service crawls companies. Safe for concurrent use; all mutable state lives
// in storage.
type Service struct {
	companies   interfaces.CompanyStorage
	snapshots   interfaces.SnapshotStorage
	fetcher     interfaces.Fetcher
	render      interfaces.RenderService
	detector    *ats.Detector
	extractor   interfaces.ExtractorService
	normalizer  interfaces.NormalizerService
	concurrency int
	logger      arbor.ILogger
}

// NewService creates the crawl service. render may be nil, which routes
// custom companies through the plain fetcher instead of the browser.
func NewService(
	companies interfaces.CompanyStorage,
	snapshots interfaces.SnapshotStorage,
	fetcher interfaces.Fetcher,
	render interfaces.RenderService,
	detector *ats.Detector,
	extractor interfaces.ExtractorService,
	normalizer interfaces.NormalizerService,
	cfg common.CrawlConfig,
	logger arbor.ILogger,
) *Service {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	return &Service{
		companies:   companies,
		snapshots:   snapshots,
		fetcher:     fetcher,
		render:      render,
		detector:    detector,
		extractor:   extractor,
		normalizer:  normalizer,
		concurrency: concurrency,
		logger:      logger,
	}
}

// CrawlCompany crawls one company end to end. Failures come back as a failed
// outcome with a reason code; the only panics this can surface are
// programming errors.
func (s *Service) CrawlCompany(ctx context.Context, companyID string) *models.CrawlResult {
	result := &models.CrawlResult{CompanyID: companyID, Outcome: models.CrawlOutcomeFailed}

	company, err := s.companies.Get(companyID)
	if err != nil {
		s.logger.Warn().Str("company_id", companyID).Err(err).Msg("Company not found")
		result.Reason = models.CrawlReasonNotFound
		return result
	}
	result.CompanyName = company.Name

	if !company.IsActive {
		result.Outcome = models.CrawlOutcomeSkipped
		return result
	}
	if company.CareersURL == "" {
		s.logger.Warn().Str("company", company.Name).Msg("Company has no careers URL")
		result.Reason = models.CrawlReasonNoCareersURL
		return result
	}

	// Companies that arrived without a detected family get one detection
	// pass before crawling, so a recognizable board is fetched through its
	// API on the very first crawl.
	if company.ATSFamily == "" {
		s.detectATS(ctx, company)
	}

	fetchURL := s.fetchURL(company)
	s.logger.Info().
		Str("company", company.Name).
		Str("url", fetchURL).
		Msg("Crawling company")

	body, statusCode, rendered := s.fetchListing(ctx, company, fetchURL)
	if len(body) == 0 {
		// A 404 from a board that used to work usually means the tenant
		// moved: the identifier changed, not the vendor. Re-read the careers
		// page for a fresh identifier and retry exactly once.
		if statusCode == 404 && company.ATSFamily != "" && company.ATSIdentifier != "" {
			s.logger.Info().
				Str("company", company.Name).
				Str("family", company.ATSFamily).
				Str("identifier", company.ATSIdentifier).
				Msg("Board returned 404, attempting identifier rediscovery")

			if !s.rediscoverIdentifier(ctx, company) {
				result.Reason = models.CrawlReasonFetchFailed
				return result
			}
			result.Rediscovered = true

			fetchURL = s.fetchURL(company)
			s.logger.Info().
				Str("company", company.Name).
				Str("identifier", company.ATSIdentifier).
				Str("url", fetchURL).
				Msg("Retrying with rediscovered identifier")

			body, statusCode, rendered = s.fetchListing(ctx, company, fetchURL)
			if len(body) == 0 {
				s.logger.Warn().
					Str("company", company.Name).
					Int("status", statusCode).
					Msg("Fetch still failing after rediscovery")
				result.Reason = models.CrawlReasonFetchFailedAfterRediscover
				return result
			}
		} else {
			s.logger.Warn().
				Str("company", company.Name).
				Int("status", statusCode).
				Msg("Failed to fetch listing")
			result.Reason = models.CrawlReasonFetchFailed
			return result
		}
	}

	sum := sha256.Sum256(body)
	bodyHash := hex.EncodeToString(sum[:])
	now := time.Now().UTC()

	if last, err := s.snapshots.GetLatestForCompany(company.ID); err == nil && last.HTMLHash == bodyHash {
		s.logger.Info().Str("company", company.Name).Msg("No changes detected")
		s.touchCrawled(company, now)
		result.Outcome = models.CrawlOutcomeUnchanged
		result.SnapshotID = last.ID
		return result
	}

	snapshot := &models.CrawlSnapshot{
		ID:         uuid.NewString(),
		CompanyID:  company.ID,
		URL:        fetchURL,
		HTMLHash:   bodyHash,
		HTML:       string(body),
		StatusCode: statusCode,
		Rendered:   rendered,
		CrawledAt:  now,
	}
	if err := s.snapshots.Save(snapshot); err != nil {
		s.logger.Error().Str("company", company.Name).Err(err).Msg("Failed to save snapshot")
		result.Reason = models.CrawlReasonException
		return result
	}
	s.touchCrawled(company, now)
	result.SnapshotID = snapshot.ID

	result.JobsFound, result.JobsNew, result.JobsUpdated = s.extractAndNormalize(ctx, company, snapshot)
	result.Outcome = models.CrawlOutcomeSuccess

	s.logger.Info().
		Str("company", company.Name).
		Str("snapshot_id", snapshot.ID).
		Int("body_size", len(body)).
		Int("jobs", result.JobsFound).
		Msg("Crawl complete")
	return result
}

// CrawlCompanies crawls companies in parallel under a bounded semaphore.
func (s *Service) CrawlCompanies(ctx context.Context, companyIDs []string, concurrency int) *models.CrawlSummary {
	if concurrency <= 0 {
		concurrency = s.concurrency
	}

	summary := &models.CrawlSummary{}
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)

	for _, id := range companyIDs {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		id := id
		common.SafeGo(s.logger, "crawl-company", func() {
			defer wg.Done()
			defer func() { <-sem }()

			r := s.CrawlCompany(ctx, id)
			mu.Lock()
			summary.Add(r)
			mu.Unlock()
		})
	}
	wg.Wait()

	return summary
}

// CrawlByFamily crawls active companies of one ATS family, highest priority
// first.
func (s *Service) CrawlByFamily(ctx context.Context, family string, limit, concurrency int) (*models.CrawlSummary, error) {
	companies, err := s.companies.ListByATSFamily(family)
	if err != nil {
		return nil, err
	}

	eligible := make([]*models.Company, 0, len(companies))
	for _, c := range companies {
		if c.CareersURL == "" {
			continue
		}
		eligible = append(eligible, c)
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].CrawlPriority > eligible[j].CrawlPriority
	})
	if limit > 0 && len(eligible) > limit {
		eligible = eligible[:limit]
	}

	ids := make([]string, len(eligible))
	for i, c := range eligible {
		ids[i] = c.ID
	}

	s.logger.Info().
		Str("family", family).
		Int("companies", len(ids)).
		Msg("Crawling family")
	return s.CrawlCompanies(ctx, ids, concurrency), nil
}

// fetchURL picks the vendor JSON API when the family has one and the
// identifier is usable; every other company is fetched through its careers
// page.
func (s *Service) fetchURL(company *models.Company) string {
	if family := ats.Lookup(company.ATSFamily); family != nil && ats.ValidIdentifier(company.ATSIdentifier) {
		if api := family.APIURL(company.ATSIdentifier); api != "" {
			return api
		}
	}
	return company.CareersURL
}

// fetchListing retrieves the listing body. Custom companies go through the
// browser when one is available; a body from the renderer implies the page
// loaded, so the status is reported as 200.
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

// touchCrawled bumps the crawl timestamp. Failing the bump is logged, not
// fatal: the snapshot is already durable.
func (s *Service) touchCrawled(company *models.Company, now time.Time) {
	company.LastCrawledAt = &now
	company.UpdatedAt = now
	if err := s.companies.Update(company); err != nil {
		s.logger.Warn().Str("company", company.Name).Err(err).Msg("Failed to update crawl timestamp")
	}
}

// detectATS runs one tiered detection pass and persists the outcome,
// including attempt bookkeeping. Companies whose attempts exhaust are marked
// custom so they stop consuming detector work and route to the rendering
// path instead.
func (s *Service) detectATS(ctx context.Context, company *models.Company) {
	det, err := s.detector.DetectTiered(ctx, ats.DetectInput{
		Domain:     company.Domain,
		CareersURL: company.CareersURL,
		WebsiteURL: company.WebsiteURL,
		Name:       company.Name,
	}, company.ATSDetectionAttempts)

	now := time.Now().UTC()
	company.ATSDetectionLastAt = &now
	company.UpdatedAt = now

	if err != nil || !det.Found() {
		// A failed browser pass can still have located the careers page.
		if det != nil && det.CareersURL != "" && company.CareersURL == "" {
			company.CareersURL = det.CareersURL
		}
		if det != nil && det.ParentDomain != "" {
			s.assignParent(company, det.ParentDomain, now)
			return
		}

		company.ATSDetectionAttempts++
		exhausted := det != nil && det.Strategy == ats.StrategyExhausted
		if exhausted || company.ATSDetectionAttempts >= ats.MaxDetectionAttempts {
			company.ATSFamily = models.ATSFamilyCustom
			s.logger.Info().
				Str("company", company.Name).
				Int("attempts", company.ATSDetectionAttempts).
				Msg("Detection exhausted, routing to the rendering path")
		}
		if err := s.companies.Update(company); err != nil {
			s.logger.Warn().Str("company", company.Name).Err(err).Msg("Failed to persist detection attempt")
		}
		return
	}

	company.ATSFamily = det.Family
	if ats.ValidIdentifier(det.Identifier) {
		company.ATSIdentifier = det.Identifier
	}
	if det.CareersURL != "" {
		company.CareersURL = det.CareersURL
	}
	if err := s.companies.Update(company); err != nil {
		s.logger.Warn().Str("company", company.Name).Err(err).Msg("Failed to persist detection")
		return
	}
	s.logger.Info().
		Str("company", company.Name).
		Str("family", det.Family).
		Str("identifier", company.ATSIdentifier).
		Str("strategy", det.Strategy).
		Msg("ATS detected")
}

// assignParent records that a company hires through another company's site:
// its careers page redirected to a different registrable domain that is not
// a hosted ATS. A stub parent row is created when the domain is new.
func (s *Service) assignParent(company *models.Company, parentDomain string, now time.Time) {
	parent, err := s.companies.GetByDomain(parentDomain)
	if err != nil {
		parent = &models.Company{
			ID:              uuid.NewString(),
			Name:            parentDomain,
			Domain:          models.NormalizeDomain(parentDomain),
			DiscoverySource: "parent_redirect",
			CrawlPriority:   models.CrawlPriorityDiscovered,
			IsActive:        true,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.companies.Create(parent); err != nil {
			s.logger.Warn().Str("parent_domain", parentDomain).Err(err).Msg("Failed to create parent company stub")
			parent = nil
		}
	}

	company.ATSFamily = models.ATSFamilyUsesParentATS
	company.ATSIdentifier = parentDomain
	if parent != nil {
		company.ParentCompanyID = parent.ID
	}
	if err := s.companies.Update(company); err != nil {
		s.logger.Warn().Str("company", company.Name).Err(err).Msg("Failed to persist parent assignment")
		return
	}
	s.logger.Info().
		Str("company", company.Name).
		Str("parent_domain", parentDomain).
		Msg("Company hires through parent site")
}

// rediscoverIdentifier re-reads the careers page looking for a fresh
// identifier after the board API started answering 404. Embed scripts first,
// then iframes, then the family's HTML extraction patterns, then job-link
// redirects. Only an identifier for the same family that differs from the
// current one counts; the careers URL is rebuilt from the family template so
// both stay in sync.
func (s *Service) rediscoverIdentifier(ctx context.Context, company *models.Company) bool {
	if company.CareersURL == "" {
		return false
	}

	res, err := s.fetcher.Fetch(ctx, company.CareersURL)
	if err != nil || res.StatusCode != 200 || len(res.Body) == 0 {
		s.logger.Warn().
			Str("company", company.Name).
			Err(err).
			Msg("Failed to fetch careers page for rediscovery")
		return false
	}
	html := string(res.Body)

	if family, id := ats.DetectFromEmbed(html); s.usableIdentifier(company, family, id) {
		s.applyRediscoveredIdentifier(company, id, "embed_script")
		return true
	}
	if family, id := ats.DetectFromIframes(html); s.usableIdentifier(company, family, id) {
		s.applyRediscoveredIdentifier(company, id, "iframe")
		return true
	}
	if id := ats.ExtractIdentifier(html, company.ATSFamily); s.usableIdentifier(company, company.ATSFamily, id) {
		s.applyRediscoveredIdentifier(company, id, "html_patterns")
		return true
	}

	for _, link := range ats.ExtractJobLinks(html, company.CareersURL) {
		head, err := s.fetcher.Head(ctx, link)
		if err != nil {
			continue
		}
		if family, id := ats.DetectFromURL(head.FinalURL); s.usableIdentifier(company, family, id) {
			s.applyRediscoveredIdentifier(company, id, "job_link_redirect")
			return true
		}
	}

	s.logger.Warn().
		Str("company", company.Name).
		Str("family", company.ATSFamily).
		Msg("Could not rediscover identifier")
	return false
}

// usableIdentifier accepts a candidate only when it belongs to the company's
// own family, passes validation, and is actually different.
func (s *Service) usableIdentifier(company *models.Company, family, id string) bool {
	return family == company.ATSFamily && ats.ValidIdentifier(id) && id != company.ATSIdentifier
}

func (s *Service) applyRediscoveredIdentifier(company *models.Company, identifier, via string) {
	old := company.ATSIdentifier
	company.ATSIdentifier = identifier
	if family := ats.Lookup(company.ATSFamily); family != nil {
		if url := family.CareersURL(identifier); url != "" {
			company.CareersURL = url
		}
	}
	company.UpdatedAt = time.Now().UTC()
	if err := s.companies.Update(company); err != nil {
		s.logger.Warn().Str("company", company.Name).Err(err).Msg("Failed to persist rediscovered identifier")
	}
	s.logger.Info().
		Str("company", company.Name).
		Str("old_identifier", old).
		Str("identifier", identifier).
		Str("via", via).
		Msg("Rediscovered board identifier")
}

// extractAndNormalize runs the family extractor over a snapshot and upserts
// every posting. Extraction problems never fail the crawl: the snapshot is
// already stored and the next crawl gets another chance.
func (s *Service) extractAndNormalize(ctx context.Context, company *models.Company, snapshot *models.CrawlSnapshot) (found, created, updated int) {
	jobs, err := s.extractor.Extract(ctx, &interfaces.ExtractInput{
		Company:   company,
		Content:   []byte(snapshot.HTML),
		SourceURL: snapshot.URL,
		Rendered:  snapshot.Rendered,
	})
	if err != nil {
		s.logger.Error().Str("company", company.Name).Err(err).Msg("Extraction failed")
		return 0, 0, 0
	}
	if len(jobs) == 0 {
		return 0, 0, 0
	}

	for _, extracted := range jobs {
		job, err := s.normalizer.NormalizeAndSave(company.ID, extracted)
		if err != nil {
			s.logger.Error().
				Str("company", company.Name).
				Str("title", extracted.Title).
				Err(err).
				Msg("Failed to normalize job")
			continue
		}
		found++
		if job.CreatedAt.Before(snapshot.CrawledAt) {
			updated++
		} else {
			created++
		}
	}

	s.logger.Info().
		Str("company", company.Name).
		Int("extracted", len(jobs)).
		Int("saved", found).
		Msg("Jobs saved")
	return found, created, updated
}

// Compile-time interface check
var _ interfaces.CrawlerService = (*Service)(nil)
