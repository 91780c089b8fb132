package badger

import (
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// defaultEnrichRetryWindow keeps jobs whose enrichment recently failed out of
// the selection query so the continuous batch loop terminates.
const defaultEnrichRetryWindow = 24 * time.Hour

// upsertStripes sizes the lock array that serializes Upsert per posting.
const upsertStripes = 64

// JobStorage implements the JobStorage interface for Badger
type JobStorage struct {
	db     *BadgerDB
	logger arbor.ILogger

	// Stripe locks keyed by (CompanyID, SourceURL). Upsert is a read-modify-
	// write and badgerhold has no composite unique index, so two concurrent
	// crawls of the same company could otherwise both miss the lookup and
	// insert duplicate rows for one posting.
	upsertLocks [upsertStripes]sync.Mutex
}

// NewJobStorage creates a new JobStorage instance
func NewJobStorage(db *BadgerDB, logger arbor.ILogger) interfaces.JobStorage {
	return &JobStorage{
		db:     db,
		logger: logger,
	}
}

// Upsert inserts the job or refreshes the row keyed by (company, source URL).
// A refresh keeps identity and lifecycle state (ID, CreatedAt, active flag,
// delist fields, enrichment state) and overwrites the normalization fields,
// so re-extraction never resurrects a delisted job or erases a description.
func (s *JobStorage) Upsert(job *models.Job) (*models.Job, error) {
	if job.CompanyID == "" || job.SourceURL == "" {
		return nil, fmt.Errorf("company ID and source URL are required")
	}

	lock := s.upsertLock(job.CompanyID, job.SourceURL)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now().UTC()
	existing, err := s.GetBySourceURL(job.CompanyID, job.SourceURL)
	if err != nil && !IsNotFound(err) {
		return nil, err
	}

	if existing != nil {
		job.ID = existing.ID
		job.CreatedAt = existing.CreatedAt
		job.IsActive = existing.IsActive
		job.DelistedAt = existing.DelistedAt
		job.DelistReason = existing.DelistReason
		job.LastVerifiedAt = existing.LastVerifiedAt
		job.EnrichFailedAt = existing.EnrichFailedAt
		if job.Description == "" {
			job.Description = existing.Description
			job.DescriptionMarkdown = existing.DescriptionMarkdown
		}
		if job.PostedAt == nil {
			job.PostedAt = existing.PostedAt
		}
		if len(job.Embedding) == 0 {
			job.Embedding = existing.Embedding
		}
	} else {
		if job.ID == "" {
			return nil, fmt.Errorf("job ID is required")
		}
		job.CreatedAt = now
		job.IsActive = true
	}
	job.UpdatedAt = now

	if err := s.db.Store().Upsert(job.ID, job); err != nil {
		return nil, fmt.Errorf("failed to upsert job: %w", err)
	}
	return job, nil
}

// upsertLock returns the stripe lock for one (company, source URL) pair.
func (s *JobStorage) upsertLock(companyID, sourceURL string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(companyID))
	h.Write([]byte{'|'})
	h.Write([]byte(sourceURL))
	return &s.upsertLocks[h.Sum32()%upsertStripes]
}

func (s *JobStorage) Update(job *models.Job) error {
	if job.ID == "" {
		return fmt.Errorf("job ID is required")
	}
	job.UpdatedAt = time.Now().UTC()

	if err := s.db.Store().Update(job.ID, job); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("job %s: %w", job.ID, ErrNotFound)
		}
		return fmt.Errorf("failed to update job: %w", err)
	}
	return nil
}

func (s *JobStorage) Get(id string) (*models.Job, error) {
	var job models.Job
	if err := s.db.Store().Get(id, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

func (s *JobStorage) GetBySourceURL(companyID, sourceURL string) (*models.Job, error) {
	var jobs []models.Job
	err := s.db.Store().Find(&jobs,
		badgerhold.Where("CompanyID").Eq(companyID).And("SourceURL").Eq(sourceURL).Limit(1))
	if err != nil {
		return nil, fmt.Errorf("failed to find job: %w", err)
	}
	if len(jobs) == 0 {
		return nil, fmt.Errorf("job for %s: %w", sourceURL, ErrNotFound)
	}
	return &jobs[0], nil
}

func (s *JobStorage) ListActiveByCompany(companyID string) ([]*models.Job, error) {
	var jobs []models.Job
	err := s.db.Store().Find(&jobs,
		badgerhold.Where("CompanyID").Eq(companyID).And("IsActive").Eq(true))
	if err != nil {
		return nil, fmt.Errorf("failed to list company jobs: %w", err)
	}
	return jobPointers(jobs), nil
}

// ListNeedingEnrichment returns active jobs with no description, restricted
// to companies in the given ATS families (empty means all). Jobs whose last
// enrichment attempt failed within retryAfter are skipped so repeated batches
// converge; retryAfter <= 0 falls back to the 24h default.
func (s *JobStorage) ListNeedingEnrichment(families []string, retryAfter time.Duration, limit int) ([]*models.Job, error) {
	allowed, err := s.companyIDsForFamilies(families)
	if err != nil {
		return nil, err
	}

	var jobs []models.Job
	err = s.db.Store().Find(&jobs,
		badgerhold.Where("IsActive").Eq(true).And("Description").Eq(""))
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs needing enrichment: %w", err)
	}

	if retryAfter <= 0 {
		retryAfter = defaultEnrichRetryWindow
	}

	// Pointer-field filters run in-memory to avoid IsNil() reflection panics.
	retryBefore := time.Now().UTC().Add(-retryAfter)
	result := make([]*models.Job, 0, len(jobs))
	for i := range jobs {
		j := &jobs[i]
		if allowed != nil && !allowed[j.CompanyID] {
			continue
		}
		if j.EnrichFailedAt != nil && j.EnrichFailedAt.After(retryBefore) {
			continue
		}
		result = append(result, j)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

// ListNeedingEmbedding returns active jobs with a description whose embedding
// vector has not been written yet. Jobs without a description are excluded:
// a title-only vector captures too little, and enrichment makes them eligible
// once it backfills the description.
func (s *JobStorage) ListNeedingEmbedding(limit int) ([]*models.Job, error) {
	var jobs []models.Job
	if err := s.db.Store().Find(&jobs, badgerhold.Where("IsActive").Eq(true)); err != nil {
		return nil, fmt.Errorf("failed to list jobs needing embedding: %w", err)
	}

	result := make([]*models.Job, 0, len(jobs))
	for i := range jobs {
		if len(jobs[i].Embedding) > 0 || jobs[i].Description == "" {
			continue
		}
		result = append(result, &jobs[i])
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (s *JobStorage) ListActive(limit int) ([]*models.Job, error) {
	query := badgerhold.Where("IsActive").Eq(true).SortBy("CreatedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var jobs []models.Job
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("failed to list active jobs: %w", err)
	}
	return jobPointers(jobs), nil
}

// Delist marks a job inactive with a reason. Idempotent.
func (s *JobStorage) Delist(id, reason string) error {
	job, err := s.Get(id)
	if err != nil {
		return err
	}
	job.Delist(reason, time.Now().UTC())

	if err := s.db.Store().Update(job.ID, job); err != nil {
		return fmt.Errorf("failed to delist job: %w", err)
	}
	return nil
}

func (s *JobStorage) Count() (int, error) {
	count, err := s.db.Store().Count(&models.Job{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return int(count), nil
}

func (s *JobStorage) CountActive() (int, error) {
	count, err := s.db.Store().Count(&models.Job{}, badgerhold.Where("IsActive").Eq(true))
	if err != nil {
		return 0, fmt.Errorf("failed to count active jobs: %w", err)
	}
	return int(count), nil
}

func (s *JobStorage) CountEmbedded() (int, error) {
	var jobs []models.Job
	if err := s.db.Store().Find(&jobs, badgerhold.Where("IsActive").Eq(true)); err != nil {
		return 0, fmt.Errorf("failed to count embedded jobs: %w", err)
	}

	count := 0
	for i := range jobs {
		if len(jobs[i].Embedding) > 0 {
			count++
		}
	}
	return count, nil
}

func (s *JobStorage) CountDescribed() (int, error) {
	var jobs []models.Job
	if err := s.db.Store().Find(&jobs, badgerhold.Where("IsActive").Eq(true)); err != nil {
		return 0, fmt.Errorf("failed to count described jobs: %w", err)
	}

	count := 0
	for i := range jobs {
		if jobs[i].Description != "" {
			count++
		}
	}
	return count, nil
}

func (s *JobStorage) CountPosted() (int, error) {
	var jobs []models.Job
	if err := s.db.Store().Find(&jobs, badgerhold.Where("IsActive").Eq(true)); err != nil {
		return 0, fmt.Errorf("failed to count posted jobs: %w", err)
	}

	count := 0
	for i := range jobs {
		if jobs[i].PostedAt != nil {
			count++
		}
	}
	return count, nil
}

func (s *JobStorage) CountByRoleFamily() (map[string]int, error) {
	var jobs []models.Job
	if err := s.db.Store().Find(&jobs, badgerhold.Where("IsActive").Eq(true)); err != nil {
		return nil, fmt.Errorf("failed to count jobs by role family: %w", err)
	}

	counts := make(map[string]int)
	for i := range jobs {
		counts[jobs[i].RoleFamily]++
	}
	return counts, nil
}

// companyIDsForFamilies resolves ATS families to a company ID membership set.
// Returns nil (match all) when no families are given.
func (s *JobStorage) companyIDsForFamilies(families []string) (map[string]bool, error) {
	if len(families) == 0 {
		return nil, nil
	}

	var companies []models.Company
	err := s.db.Store().Find(&companies,
		badgerhold.Where("ATSFamily").In(toInterfaces(families)...))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve companies for families: %w", err)
	}

	allowed := make(map[string]bool, len(companies))
	for i := range companies {
		allowed[companies[i].ID] = true
	}
	return allowed, nil
}

func toInterfaces(values []string) []interface{} {
	result := make([]interface{}, len(values))
	for i, v := range values {
		result[i] = v
	}
	return result
}

func jobPointers(jobs []models.Job) []*models.Job {
	result := make([]*models.Job, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result
}
