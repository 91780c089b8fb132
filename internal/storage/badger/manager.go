package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db       *BadgerDB
	company  interfaces.CompanyStorage
	snapshot interfaces.SnapshotStorage
	jobRaw   interfaces.JobRawStorage
	job      interfaces.JobStorage
	queue    interfaces.QueueStorage
	run      interfaces.RunStorage
	listing  interfaces.ListingStorage
	metric   interfaces.MetricStorage
	kv       interfaces.KVStorage
	logger   arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:       db,
		company:  NewCompanyStorage(db, logger),
		snapshot: NewSnapshotStorage(db, logger),
		jobRaw:   NewJobRawStorage(db, logger),
		job:      NewJobStorage(db, logger),
		queue:    NewQueueStorage(db, logger),
		run:      NewRunStorage(db, logger),
		listing:  NewListingStorage(db, logger),
		metric:   NewMetricStorage(db, logger),
		kv:       NewKVStorage(db, logger),
		logger:   logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// CompanyStorage returns the Company storage interface
func (m *Manager) CompanyStorage() interfaces.CompanyStorage {
	return m.company
}

// SnapshotStorage returns the crawl Snapshot storage interface
func (m *Manager) SnapshotStorage() interfaces.SnapshotStorage {
	return m.snapshot
}

// JobRawStorage returns the raw Job storage interface
func (m *Manager) JobRawStorage() interfaces.JobRawStorage {
	return m.jobRaw
}

// JobStorage returns the Job storage interface
func (m *Manager) JobStorage() interfaces.JobStorage {
	return m.job
}

// QueueStorage returns the discovery Queue storage interface
func (m *Manager) QueueStorage() interfaces.QueueStorage {
	return m.queue
}

// RunStorage returns the Run storage interface
func (m *Manager) RunStorage() interfaces.RunStorage {
	return m.run
}

// ListingStorage returns the board Listing storage interface
func (m *Manager) ListingStorage() interfaces.ListingStorage {
	return m.listing
}

// MetricStorage returns the Metric storage interface
func (m *Manager) MetricStorage() interfaces.MetricStorage {
	return m.metric
}

// KVStorage returns the KeyValue storage interface
func (m *Manager) KVStorage() interfaces.KVStorage {
	return m.kv
}

// DB returns the underlying database connection
func (m *Manager) DB() interface{} {
	if m.db != nil {
		return m.db.Store()
	}
	return nil
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
