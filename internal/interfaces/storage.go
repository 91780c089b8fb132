package interfaces

import (
	"errors"
	"time"

	"github.com/ternarybob/reperio/internal/models"
)

// ErrDuplicateDomain reports that an insert collided with an existing row's
// normalized domain. Parallel discovery sources resolve it as a duplicate
// outcome instead of a failure.
var ErrDuplicateDomain = errors.New("duplicate domain")

// CompanyStorage - interface for company persistence
type CompanyStorage interface {
	// Create inserts a new company. Returns ErrDuplicateDomain when another
	// company already owns the normalized domain.
	Create(company *models.Company) error
	Update(company *models.Company) error
	Get(id string) (*models.Company, error)
	GetByDomain(domain string) (*models.Company, error)
	Delete(id string) error

	// List operations
	ListActive() ([]*models.Company, error)
	ListActiveWithATS() ([]*models.Company, error)
	ListByATSFamily(family string) ([]*models.Company, error)
	ListCrawlable(family string, olderThan time.Time, limit int) ([]*models.Company, error)
	ListMaintainable(family string, olderThan time.Time, limit int) ([]*models.Company, error)
	ListForNetworkCrawl(limit int) ([]*models.Company, error)

	// Stats operations
	Count() (int, error)
	CountActive() (int, error)
	CountByATSFamily() (map[string]int, error)
	CountCrawledSince(since time.Time) (int, error)
}

// SnapshotStorage - interface for crawl snapshot persistence
type SnapshotStorage interface {
	Save(snapshot *models.CrawlSnapshot) error
	Get(id string) (*models.CrawlSnapshot, error)
	GetLatestForCompany(companyID string) (*models.CrawlSnapshot, error)
	DeleteForCompany(companyID string) error
	Count() (int, error)
}

// JobRawStorage - interface for raw extracted job persistence
type JobRawStorage interface {
	// Upsert inserts or replaces the raw job keyed by (company, source URL).
	Upsert(raw *models.JobRaw) (*models.JobRaw, error)
	Get(id string) (*models.JobRaw, error)
	GetBySourceURL(companyID, sourceURL string) (*models.JobRaw, error)
	ListByCompany(companyID string) ([]*models.JobRaw, error)
	Count() (int, error)
}

// JobStorage - interface for normalized job persistence
type JobStorage interface {
	// Upsert inserts or updates the job keyed by (company, source URL).
	Upsert(job *models.Job) (*models.Job, error)
	Update(job *models.Job) error
	Get(id string) (*models.Job, error)
	GetBySourceURL(companyID, sourceURL string) (*models.Job, error)

	// List operations
	ListActiveByCompany(companyID string) ([]*models.Job, error)
	ListNeedingEnrichment(families []string, retryAfter time.Duration, limit int) ([]*models.Job, error)
	ListNeedingEmbedding(limit int) ([]*models.Job, error)
	ListActive(limit int) ([]*models.Job, error)

	// Delist marks a job inactive with a reason, idempotently.
	Delist(id, reason string) error

	// Stats operations
	Count() (int, error)
	CountActive() (int, error)
	CountEmbedded() (int, error)
	CountDescribed() (int, error)
	CountPosted() (int, error)
	CountByRoleFamily() (map[string]int, error)
}

// QueueStorage - interface for the discovery review queue
type QueueStorage interface {
	Enqueue(item *models.DiscoveryQueueItem) error
	Update(item *models.DiscoveryQueueItem) error
	Get(id string) (*models.DiscoveryQueueItem, error)
	GetByDomain(domain string) (*models.DiscoveryQueueItem, error)
	ListByStatus(status models.QueueStatus, limit int) ([]*models.DiscoveryQueueItem, error)
	ListPendingDomains() ([]string, error)
	CountByStatus() (map[models.QueueStatus]int, error)
	Delete(id string) error
}

// RunStorage - interface for pipeline/discovery/maintenance run records
type RunStorage interface {
	SavePipelineRun(run *models.PipelineRun) error
	GetPipelineRun(id string) (*models.PipelineRun, error)
	ListPipelineRuns(limit int) ([]*models.PipelineRun, error)
	ListRunningPipelineRuns() ([]*models.PipelineRun, error)

	SaveDiscoveryRun(run *models.DiscoveryRun) error
	GetDiscoveryRun(id string) (*models.DiscoveryRun, error)
	ListDiscoveryRuns(limit int) ([]*models.DiscoveryRun, error)

	SaveMaintenanceRun(run *models.MaintenanceRun) error
	GetMaintenanceRun(id string) (*models.MaintenanceRun, error)

	SaveVerificationRun(run *models.VerificationRun) error
	GetVerificationRun(id string) (*models.VerificationRun, error)
	ListVerificationRuns(limit int) ([]*models.VerificationRun, error)
}

// ListingStorage - interface for job board listing verification results
type ListingStorage interface {
	Save(listing *models.JobBoardListing) error
	GetByJobAndBoard(jobID, board string) (*models.JobBoardListing, error)
	ListByJob(jobID string) ([]*models.JobBoardListing, error)
	ListByBoard(board string) ([]*models.JobBoardListing, error)
	Count() (int, error)
}

// MetricStorage - interface for point-in-time pipeline metrics
type MetricStorage interface {
	Record(metric *models.Metric) error
	ListByName(name string, limit int) ([]*models.Metric, error)
}

// KVStorage - interface for small key/value state (LLM extraction cache,
// robots cache spill, cursor positions)
type KVStorage interface {
	Set(key string, value []byte) error
	SetWithTTL(key string, value []byte, ttl time.Duration) error
	Get(key string) ([]byte, error)
	Has(key string) (bool, error)
	Delete(key string) error
}

// StorageManager - composite interface for all storage operations
type StorageManager interface {
	CompanyStorage() CompanyStorage
	SnapshotStorage() SnapshotStorage
	JobRawStorage() JobRawStorage
	JobStorage() JobStorage
	QueueStorage() QueueStorage
	RunStorage() RunStorage
	ListingStorage() ListingStorage
	MetricStorage() MetricStorage
	KVStorage() KVStorage
	DB() interface{}
	Close() error
}
