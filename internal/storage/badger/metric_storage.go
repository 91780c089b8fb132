package badger

import (
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// MetricStorage implements the MetricStorage interface for Badger
type MetricStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewMetricStorage creates a new MetricStorage instance
func NewMetricStorage(db *BadgerDB, logger arbor.ILogger) interfaces.MetricStorage {
	return &MetricStorage{
		db:     db,
		logger: logger,
	}
}

func (s *MetricStorage) Record(metric *models.Metric) error {
	if metric.ID == "" {
		return fmt.Errorf("metric ID is required")
	}
	if metric.Name == "" {
		return fmt.Errorf("metric name is required")
	}
	if metric.RecordedAt.IsZero() {
		metric.RecordedAt = time.Now().UTC()
	}

	if err := s.db.Store().Insert(metric.ID, metric); err != nil {
		return fmt.Errorf("failed to record metric: %w", err)
	}
	return nil
}

func (s *MetricStorage) ListByName(name string, limit int) ([]*models.Metric, error) {
	query := badgerhold.Where("Name").Eq(name).SortBy("RecordedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var metrics []models.Metric
	if err := s.db.Store().Find(&metrics, query); err != nil {
		return nil, fmt.Errorf("failed to list metrics: %w", err)
	}

	result := make([]*models.Metric, len(metrics))
	for i := range metrics {
		result[i] = &metrics[i]
	}
	return result, nil
}
