package badger

import (
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// QueueStorage implements the QueueStorage interface for Badger
type QueueStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewQueueStorage creates a new QueueStorage instance
func NewQueueStorage(db *BadgerDB, logger arbor.ILogger) interfaces.QueueStorage {
	return &QueueStorage{
		db:     db,
		logger: logger,
	}
}

// Enqueue inserts a pending queue item. Reports ErrDuplicateDomain when the
// domain already has a queue row, so sources cannot double-enqueue a company.
func (s *QueueStorage) Enqueue(item *models.DiscoveryQueueItem) error {
	if item.ID == "" {
		return fmt.Errorf("queue item ID is required")
	}
	if item.Domain != "" {
		existing, err := s.GetByDomain(item.Domain)
		if err != nil && !IsNotFound(err) {
			return err
		}
		if existing != nil {
			return fmt.Errorf("domain %s already queued: %w", item.Domain, interfaces.ErrDuplicateDomain)
		}
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	if item.Status == "" {
		item.Status = models.QueueStatusPending
	}

	if err := s.db.Store().Insert(item.ID, item); err != nil {
		if IsDuplicate(err) {
			return fmt.Errorf("queue item %s: %w", item.ID, ErrDuplicate)
		}
		return fmt.Errorf("failed to enqueue item: %w", err)
	}
	return nil
}

func (s *QueueStorage) Update(item *models.DiscoveryQueueItem) error {
	if item.ID == "" {
		return fmt.Errorf("queue item ID is required")
	}
	if err := s.db.Store().Update(item.ID, item); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("queue item %s: %w", item.ID, ErrNotFound)
		}
		return fmt.Errorf("failed to update queue item: %w", err)
	}
	return nil
}

func (s *QueueStorage) Get(id string) (*models.DiscoveryQueueItem, error) {
	var item models.DiscoveryQueueItem
	if err := s.db.Store().Get(id, &item); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("queue item %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get queue item: %w", err)
	}
	return &item, nil
}

func (s *QueueStorage) GetByDomain(domain string) (*models.DiscoveryQueueItem, error) {
	var items []models.DiscoveryQueueItem
	err := s.db.Store().Find(&items, badgerhold.Where("Domain").Eq(domain).Limit(1))
	if err != nil {
		return nil, fmt.Errorf("failed to find queue item by domain: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("queue item for %s: %w", domain, ErrNotFound)
	}
	return &items[0], nil
}

func (s *QueueStorage) ListByStatus(status models.QueueStatus, limit int) ([]*models.DiscoveryQueueItem, error) {
	query := badgerhold.Where("Status").Eq(status).SortBy("CreatedAt")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var items []models.DiscoveryQueueItem
	if err := s.db.Store().Find(&items, query); err != nil {
		return nil, fmt.Errorf("failed to list queue items: %w", err)
	}

	result := make([]*models.DiscoveryQueueItem, len(items))
	for i := range items {
		result[i] = &items[i]
	}
	return result, nil
}

// ListPendingDomains returns the domains of all pending and processing items,
// used to seed the dedup index at discovery start.
func (s *QueueStorage) ListPendingDomains() ([]string, error) {
	var items []models.DiscoveryQueueItem
	err := s.db.Store().Find(&items,
		badgerhold.Where("Status").In(models.QueueStatusPending, models.QueueStatusProcessing))
	if err != nil {
		return nil, fmt.Errorf("failed to list pending domains: %w", err)
	}

	domains := make([]string, 0, len(items))
	for i := range items {
		if items[i].Domain != "" {
			domains = append(domains, items[i].Domain)
		}
	}
	return domains, nil
}

func (s *QueueStorage) CountByStatus() (map[models.QueueStatus]int, error) {
	var items []models.DiscoveryQueueItem
	if err := s.db.Store().Find(&items, nil); err != nil {
		return nil, fmt.Errorf("failed to count queue items: %w", err)
	}

	counts := make(map[models.QueueStatus]int)
	for i := range items {
		counts[items[i].Status]++
	}
	return counts, nil
}

func (s *QueueStorage) Delete(id string) error {
	if err := s.db.Store().Delete(id, &models.DiscoveryQueueItem{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete queue item: %w", err)
	}
	return nil
}
