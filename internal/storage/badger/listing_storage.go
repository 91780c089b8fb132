package badger

import (
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// ListingStorage implements the ListingStorage interface for Badger
type ListingStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewListingStorage creates a new ListingStorage instance
func NewListingStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ListingStorage {
	return &ListingStorage{
		db:     db,
		logger: logger,
	}
}

// Save upserts a listing keyed by (job, board): re-verification of the same
// board updates the existing row in place.
func (s *ListingStorage) Save(listing *models.JobBoardListing) error {
	if listing.JobID == "" || listing.Board == "" {
		return fmt.Errorf("job ID and board are required")
	}

	existing, err := s.GetByJobAndBoard(listing.JobID, listing.Board)
	if err != nil && !IsNotFound(err) {
		return err
	}
	if existing != nil {
		listing.ID = existing.ID
	} else if listing.ID == "" {
		return fmt.Errorf("listing ID is required")
	}
	if listing.VerifiedAt.IsZero() {
		listing.VerifiedAt = time.Now().UTC()
	}

	if err := s.db.Store().Upsert(listing.ID, listing); err != nil {
		return fmt.Errorf("failed to save listing: %w", err)
	}
	return nil
}

func (s *ListingStorage) GetByJobAndBoard(jobID, board string) (*models.JobBoardListing, error) {
	var listings []models.JobBoardListing
	err := s.db.Store().Find(&listings,
		badgerhold.Where("JobID").Eq(jobID).And("Board").Eq(board).Limit(1))
	if err != nil {
		return nil, fmt.Errorf("failed to find listing: %w", err)
	}
	if len(listings) == 0 {
		return nil, fmt.Errorf("listing for job %s on %s: %w", jobID, board, ErrNotFound)
	}
	return &listings[0], nil
}

func (s *ListingStorage) ListByJob(jobID string) ([]*models.JobBoardListing, error) {
	var listings []models.JobBoardListing
	err := s.db.Store().Find(&listings, badgerhold.Where("JobID").Eq(jobID))
	if err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}

	result := make([]*models.JobBoardListing, len(listings))
	for i := range listings {
		result[i] = &listings[i]
	}
	return result, nil
}

// ListByBoard returns every listing for one board, or all listings when
// board is empty. The verification stats rollup aggregates over this.
func (s *ListingStorage) ListByBoard(board string) ([]*models.JobBoardListing, error) {
	var query *badgerhold.Query
	if board == "" {
		query = badgerhold.Where("ID").Ne("")
	} else {
		query = badgerhold.Where("Board").Eq(board)
	}

	var listings []models.JobBoardListing
	if err := s.db.Store().Find(&listings, query); err != nil {
		return nil, fmt.Errorf("failed to list listings by board: %w", err)
	}

	result := make([]*models.JobBoardListing, len(listings))
	for i := range listings {
		result[i] = &listings[i]
	}
	return result, nil
}

func (s *ListingStorage) Count() (int, error) {
	count, err := s.db.Store().Count(&models.JobBoardListing{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count listings: %w", err)
	}
	return int(count), nil
}
