package badger

import (
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// JobRawStorage implements the JobRawStorage interface for Badger
type JobRawStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewJobRawStorage creates a new JobRawStorage instance
func NewJobRawStorage(db *BadgerDB, logger arbor.ILogger) interfaces.JobRawStorage {
	return &JobRawStorage{
		db:     db,
		logger: logger,
	}
}

// Upsert inserts the raw job or, when a row already exists for the same
// (company, source URL), rewrites that row in place and returns it. The
// returned record carries the surviving ID.
func (s *JobRawStorage) Upsert(raw *models.JobRaw) (*models.JobRaw, error) {
	if raw.CompanyID == "" || raw.SourceURL == "" {
		return nil, fmt.Errorf("company ID and source URL are required")
	}
	if raw.ExtractedAt.IsZero() {
		raw.ExtractedAt = time.Now().UTC()
	}

	existing, err := s.GetBySourceURL(raw.CompanyID, raw.SourceURL)
	if err != nil && !IsNotFound(err) {
		return nil, err
	}
	if existing != nil {
		raw.ID = existing.ID
	}
	if raw.ID == "" {
		return nil, fmt.Errorf("raw job ID is required for insert")
	}

	if err := s.db.Store().Upsert(raw.ID, raw); err != nil {
		return nil, fmt.Errorf("failed to upsert raw job: %w", err)
	}
	return raw, nil
}

func (s *JobRawStorage) Get(id string) (*models.JobRaw, error) {
	var raw models.JobRaw
	if err := s.db.Store().Get(id, &raw); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("raw job %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get raw job: %w", err)
	}
	return &raw, nil
}

func (s *JobRawStorage) GetBySourceURL(companyID, sourceURL string) (*models.JobRaw, error) {
	var raws []models.JobRaw
	err := s.db.Store().Find(&raws,
		badgerhold.Where("CompanyID").Eq(companyID).And("SourceURL").Eq(sourceURL).Limit(1))
	if err != nil {
		return nil, fmt.Errorf("failed to find raw job: %w", err)
	}
	if len(raws) == 0 {
		return nil, fmt.Errorf("raw job for %s: %w", sourceURL, ErrNotFound)
	}
	return &raws[0], nil
}

func (s *JobRawStorage) ListByCompany(companyID string) ([]*models.JobRaw, error) {
	var raws []models.JobRaw
	if err := s.db.Store().Find(&raws, badgerhold.Where("CompanyID").Eq(companyID)); err != nil {
		return nil, fmt.Errorf("failed to list raw jobs: %w", err)
	}

	result := make([]*models.JobRaw, len(raws))
	for i := range raws {
		result[i] = &raws[i]
	}
	return result, nil
}

func (s *JobRawStorage) Count() (int, error) {
	count, err := s.db.Store().Count(&models.JobRaw{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count raw jobs: %w", err)
	}
	return int(count), nil
}
