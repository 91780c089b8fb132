package interfaces

import (
	"github.com/ternarybob/reperio/internal/models"
)

// NormalizerService derives canonical jobs from raw extractor output. Raw
// and canonical rows are both keyed by (company, source URL), so repeated
// normalization of the same posting rewrites in place.
type NormalizerService interface {
	// NormalizeAndSave stores one extracted job as a JobRaw row and writes
	// the derived canonical Job.
	NormalizeAndSave(companyID string, extracted *models.ExtractedJob) (*models.Job, error)

	// Normalize recomputes the canonical Job for an already-stored raw job.
	Normalize(raw *models.JobRaw) (*models.Job, error)

	// NormalizeCompanyJobs renormalizes every raw job stored for a company.
	NormalizeCompanyJobs(companyID string) ([]*models.Job, error)
}
