package badger

import (
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// SnapshotStorage implements the SnapshotStorage interface for Badger
type SnapshotStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSnapshotStorage creates a new SnapshotStorage instance
func NewSnapshotStorage(db *BadgerDB, logger arbor.ILogger) interfaces.SnapshotStorage {
	return &SnapshotStorage{
		db:     db,
		logger: logger,
	}
}

func (s *SnapshotStorage) Save(snapshot *models.CrawlSnapshot) error {
	if snapshot.ID == "" {
		return fmt.Errorf("snapshot ID is required")
	}
	if snapshot.CrawledAt.IsZero() {
		snapshot.CrawledAt = time.Now().UTC()
	}

	if err := s.db.Store().Insert(snapshot.ID, snapshot); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (s *SnapshotStorage) Get(id string) (*models.CrawlSnapshot, error) {
	var snapshot models.CrawlSnapshot
	if err := s.db.Store().Get(id, &snapshot); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("snapshot %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return &snapshot, nil
}

// GetLatestForCompany returns the company's most recent snapshot, or
// ErrNotFound when the company was never crawled.
func (s *SnapshotStorage) GetLatestForCompany(companyID string) (*models.CrawlSnapshot, error) {
	var snapshots []models.CrawlSnapshot
	err := s.db.Store().Find(&snapshots,
		badgerhold.Where("CompanyID").Eq(companyID).SortBy("CrawledAt").Reverse().Limit(1))
	if err != nil {
		return nil, fmt.Errorf("failed to find latest snapshot: %w", err)
	}
	if len(snapshots) == 0 {
		return nil, fmt.Errorf("company %s has no snapshots: %w", companyID, ErrNotFound)
	}
	return &snapshots[0], nil
}

func (s *SnapshotStorage) DeleteForCompany(companyID string) error {
	err := s.db.Store().DeleteMatching(&models.CrawlSnapshot{}, badgerhold.Where("CompanyID").Eq(companyID))
	if err != nil {
		return fmt.Errorf("failed to delete snapshots: %w", err)
	}
	return nil
}

func (s *SnapshotStorage) Count() (int, error) {
	count, err := s.db.Store().Count(&models.CrawlSnapshot{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return int(count), nil
}
