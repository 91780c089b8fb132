package common

import (
	"strings"

	"github.com/google/uuid"
)

// NewCompanyID generates a unique company ID with the "com_" prefix
// Format: com_<uuid>
func NewCompanyID() string {
	return "com_" + uuid.New().String()
}

// NewJobID generates a unique job ID with the "job_" prefix
func NewJobID() string {
	return "job_" + uuid.New().String()
}

// NewSnapshotID generates a unique crawl snapshot ID with the "snap_" prefix
func NewSnapshotID() string {
	return "snap_" + uuid.New().String()
}

// NewRunID generates a unique run ID with the "run_" prefix
func NewRunID() string {
	return "run_" + uuid.New().String()
}

// NewQueueItemID generates a unique discovery queue item ID
func NewQueueItemID() string {
	return "dq_" + uuid.New().String()
}

// NewMetricID generates a unique metric row ID with the "met_" prefix
func NewMetricID() string {
	return "met_" + uuid.New().String()
}

// ShortID returns the first 8 characters of an ID's uuid portion for
// compact log output.
func ShortID(id string) string {
	if idx := strings.Index(id, "_"); idx >= 0 {
		id = id[idx+1:]
	}
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
