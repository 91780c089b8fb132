package interfaces

import (
	"context"

	"github.com/ternarybob/reperio/internal/models"
)

// MaintenanceService re-checks companies whose jobs are already on file. A
// fresh listing fetch is diffed against the stored active set: postings that
// vanished are delisted, new ones are normalized in, and survivors get their
// verification time bumped.
type MaintenanceService interface {
	// MaintainCompany diffs one company's live listing against its active
	// jobs and applies the result. Failures surface through the result's
	// outcome and reason code rather than an error.
	MaintainCompany(ctx context.Context, companyID string) *models.MaintainResult

	// RunMaintenance sweeps stale companies under a recorded MaintenanceRun.
	// family narrows the sweep to one ATS family; companyID narrows it to a
	// single company; limit caps the company count (0 uses the default).
	RunMaintenance(ctx context.Context, family, companyID string, limit int) (*models.MaintenanceRun, error)
}
