package models

import "time"

// Delist reasons. Delisting never deletes a row; it flips IsActive and stamps
// DelistedAt with one of these reasons.
const (
	DelistReasonRemovedFromATS  = "removed_from_ats"
	DelistReasonCompanyInactive = "company_inactive"
	DelistReasonPageNotFound    = "page_not_found"
)

// Canonical location types.
const (
	LocationTypeRemote = "remote"
	LocationTypeHybrid = "hybrid"
	LocationTypeOnsite = "onsite"
)

// JobRaw holds extractor output verbatim, before normalization. Unique on
// (CompanyID, SourceURL); re-extraction of the same posting mutates the row
// in place.
type JobRaw struct {
	ID                string    `json:"id"`
	CompanyID         string    `json:"company_id" badgerhold:"index"`
	SourceURL         string    `json:"source_url"`
	TitleRaw          string    `json:"title_raw"`
	DescriptionRaw    string    `json:"description_raw,omitempty"`
	LocationRaw       string    `json:"location_raw,omitempty"`
	DepartmentRaw     string    `json:"department_raw,omitempty"`
	EmploymentTypeRaw string    `json:"employment_type_raw,omitempty"`
	PostedAtRaw       string    `json:"posted_at_raw,omitempty"`
	SalaryRaw         string    `json:"salary_raw,omitempty"`
	ExtractedAt       time.Time `json:"extracted_at"`
}

// Job is the canonical posting derived from a JobRaw. Unique on
// (CompanyID, SourceURL). A Job exists iff its JobRaw does.
type Job struct {
	ID        string `json:"id"`
	CompanyID string `json:"company_id" badgerhold:"index"`
	RawJobID  string `json:"raw_job_id,omitempty"`

	Title               string `json:"title"`
	Description         string `json:"description,omitempty"`
	DescriptionMarkdown string `json:"description_markdown,omitempty"`
	SourceURL           string `json:"source_url"`

	RoleFamily         string   `json:"role_family" badgerhold:"index"`
	RoleSpecialization string   `json:"role_specialization,omitempty"`
	Seniority          string   `json:"seniority,omitempty"`
	LocationType       string   `json:"location_type,omitempty"`
	Locations          []string `json:"locations,omitempty"`
	Skills             []string `json:"skills,omitempty"`
	MinSalary          *int     `json:"min_salary,omitempty"`
	MaxSalary          *int     `json:"max_salary,omitempty"`
	EmploymentType     string   `json:"employment_type,omitempty"`

	PostedAt       *time.Time `json:"posted_at,omitempty"`
	FreshnessScore float64    `json:"freshness_score"`
	Embedding      []float32  `json:"embedding,omitempty"`

	IsActive       bool       `json:"is_active" badgerhold:"index"`
	LastVerifiedAt *time.Time `json:"last_verified_at,omitempty"`
	DelistedAt     *time.Time `json:"delisted_at,omitempty"`
	DelistReason   string     `json:"delist_reason,omitempty"`
	EnrichFailedAt *time.Time `json:"enrich_failed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Delist marks the job inactive with a reason. Idempotent: an already
// delisted job keeps its original DelistedAt.
func (j *Job) Delist(reason string, now time.Time) {
	if !j.IsActive && j.DelistedAt != nil {
		return
	}
	j.IsActive = false
	j.DelistedAt = &now
	j.DelistReason = reason
	j.UpdatedAt = now
}

// ExtractedJob is a single posting as produced by an extractor, before any
// normalization. String fields carry source text verbatim.
type ExtractedJob struct {
	Title          string   `json:"title"`
	SourceURL      string   `json:"source_url"`
	Description    string   `json:"description,omitempty"`
	Location       string   `json:"location,omitempty"`
	Department     string   `json:"department,omitempty"`
	EmploymentType string   `json:"employment_type,omitempty"`
	PostedAt       string   `json:"posted_at,omitempty"`
	Salary         string   `json:"salary,omitempty"`
	Remote         bool     `json:"remote,omitempty"`
	Requirements   []string `json:"requirements,omitempty"`
}
