package badger

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// RunStorage implements the RunStorage interface for Badger. Run records are
// saved whole on every mutation so log appends survive a crash.
type RunStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewRunStorage creates a new RunStorage instance
func NewRunStorage(db *BadgerDB, logger arbor.ILogger) interfaces.RunStorage {
	return &RunStorage{
		db:     db,
		logger: logger,
	}
}

func (s *RunStorage) SavePipelineRun(run *models.PipelineRun) error {
	if run.ID == "" {
		return fmt.Errorf("run ID is required")
	}
	if err := s.db.Store().Upsert(run.ID, run); err != nil {
		return fmt.Errorf("failed to save pipeline run: %w", err)
	}
	return nil
}

func (s *RunStorage) GetPipelineRun(id string) (*models.PipelineRun, error) {
	var run models.PipelineRun
	if err := s.db.Store().Get(id, &run); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("pipeline run %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get pipeline run: %w", err)
	}
	return &run, nil
}

func (s *RunStorage) ListPipelineRuns(limit int) ([]*models.PipelineRun, error) {
	query := badgerhold.Where("ID").Ne("").SortBy("StartedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var runs []models.PipelineRun
	if err := s.db.Store().Find(&runs, query); err != nil {
		return nil, fmt.Errorf("failed to list pipeline runs: %w", err)
	}

	result := make([]*models.PipelineRun, len(runs))
	for i := range runs {
		result[i] = &runs[i]
	}
	return result, nil
}

// ListRunningPipelineRuns returns pipeline runs still marked running, newest
// first.
func (s *RunStorage) ListRunningPipelineRuns() ([]*models.PipelineRun, error) {
	query := badgerhold.Where("Status").Eq(models.RunStatusRunning).SortBy("StartedAt").Reverse()

	var runs []models.PipelineRun
	if err := s.db.Store().Find(&runs, query); err != nil {
		return nil, fmt.Errorf("failed to list running pipeline runs: %w", err)
	}

	result := make([]*models.PipelineRun, len(runs))
	for i := range runs {
		result[i] = &runs[i]
	}
	return result, nil
}

func (s *RunStorage) SaveDiscoveryRun(run *models.DiscoveryRun) error {
	if run.ID == "" {
		return fmt.Errorf("run ID is required")
	}
	if err := s.db.Store().Upsert(run.ID, run); err != nil {
		return fmt.Errorf("failed to save discovery run: %w", err)
	}
	return nil
}

func (s *RunStorage) GetDiscoveryRun(id string) (*models.DiscoveryRun, error) {
	var run models.DiscoveryRun
	if err := s.db.Store().Get(id, &run); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("discovery run %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get discovery run: %w", err)
	}
	return &run, nil
}

func (s *RunStorage) ListDiscoveryRuns(limit int) ([]*models.DiscoveryRun, error) {
	query := badgerhold.Where("ID").Ne("").SortBy("StartedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var runs []models.DiscoveryRun
	if err := s.db.Store().Find(&runs, query); err != nil {
		return nil, fmt.Errorf("failed to list discovery runs: %w", err)
	}

	result := make([]*models.DiscoveryRun, len(runs))
	for i := range runs {
		result[i] = &runs[i]
	}
	return result, nil
}

func (s *RunStorage) SaveMaintenanceRun(run *models.MaintenanceRun) error {
	if run.ID == "" {
		return fmt.Errorf("run ID is required")
	}
	if err := s.db.Store().Upsert(run.ID, run); err != nil {
		return fmt.Errorf("failed to save maintenance run: %w", err)
	}
	return nil
}

func (s *RunStorage) GetMaintenanceRun(id string) (*models.MaintenanceRun, error) {
	var run models.MaintenanceRun
	if err := s.db.Store().Get(id, &run); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("maintenance run %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get maintenance run: %w", err)
	}
	return &run, nil
}

func (s *RunStorage) SaveVerificationRun(run *models.VerificationRun) error {
	if run.ID == "" {
		return fmt.Errorf("run ID is required")
	}
	if err := s.db.Store().Upsert(run.ID, run); err != nil {
		return fmt.Errorf("failed to save verification run: %w", err)
	}
	return nil
}

func (s *RunStorage) GetVerificationRun(id string) (*models.VerificationRun, error) {
	var run models.VerificationRun
	if err := s.db.Store().Get(id, &run); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("verification run %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get verification run: %w", err)
	}
	return &run, nil
}

func (s *RunStorage) ListVerificationRuns(limit int) ([]*models.VerificationRun, error) {
	query := badgerhold.Where("ID").Ne("").SortBy("StartedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var runs []models.VerificationRun
	if err := s.db.Store().Find(&runs, query); err != nil {
		return nil, fmt.Errorf("failed to list verification runs: %w", err)
	}

	result := make([]*models.VerificationRun, len(runs))
	for i := range runs {
		result[i] = &runs[i]
	}
	return result, nil
}
