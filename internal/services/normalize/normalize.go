// Package normalize derives canonical jobs from raw extractor output: role
// family and specialization, seniority, location type and canonical places,
// skills, salary bounds, employment type, posted date and a freshness score.
// The classification tables ship embedded in the binary as YAML and can be
// overridden per file from a configured directory.
package normalize

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
)

// Service normalizes raw jobs into canonical ones. Both rows are keyed by
// (company, source URL); normalizing the same posting twice rewrites in
// place and never duplicates.
type Service struct {
	raws      interfaces.JobRawStorage
	jobs      interfaces.JobStorage
	roles     *roleMapper
	seniority *seniorityDetector
	locations *locationNormalizer
	skills    *skillExtractor
	halfLife  float64 // days
	logger    arbor.ILogger
}

// NewService loads the classification tables and builds the normalizer.
// Fails when a table (embedded or override) does not compile.
func NewService(raws interfaces.JobRawStorage, jobs interfaces.JobStorage, cfg common.NormalizeConfig, logger arbor.ILogger) (*Service, error) {
	roles, err := newRoleMapper(cfg.TablesDir)
	if err != nil {
		return nil, fmt.Errorf("roles table: %w", err)
	}
	seniority, err := newSeniorityDetector(cfg.TablesDir)
	if err != nil {
		return nil, fmt.Errorf("seniority table: %w", err)
	}
	locations, err := newLocationNormalizer(cfg.TablesDir)
	if err != nil {
		return nil, fmt.Errorf("locations table: %w", err)
	}
	skills, err := newSkillExtractor(cfg.TablesDir)
	if err != nil {
		return nil, fmt.Errorf("skills table: %w", err)
	}

	halfLife := float64(cfg.FreshnessHalfLifeDays)
	if halfLife <= 0 {
		halfLife = 14
	}

	return &Service{
		raws:      raws,
		jobs:      jobs,
		roles:     roles,
		seniority: seniority,
		locations: locations,
		skills:    skills,
		halfLife:  halfLife,
		logger:    logger,
	}, nil
}

// NormalizeAndSave persists one extracted job as a raw row and derives its
// canonical Job.
func (s *Service) NormalizeAndSave(companyID string, extracted *models.ExtractedJob) (*models.Job, error) {
	location := extracted.Location
	if location == "" && extracted.Remote {
		// Some ATS APIs assert remote as a flag with no location text.
		location = "Remote"
	}

	raw := &models.JobRaw{
		ID:                uuid.NewString(),
		CompanyID:         companyID,
		SourceURL:         extracted.SourceURL,
		TitleRaw:          extracted.Title,
		DescriptionRaw:    extracted.Description,
		LocationRaw:       location,
		DepartmentRaw:     extracted.Department,
		EmploymentTypeRaw: extracted.EmploymentType,
		PostedAtRaw:       extracted.PostedAt,
		SalaryRaw:         extracted.Salary,
		ExtractedAt:       time.Now().UTC(),
	}
	stored, err := s.raws.Upsert(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to store raw job: %w", err)
	}
	return s.Normalize(stored)
}

// Normalize derives the canonical Job for a stored raw job and upserts it.
// Lifecycle state (active flag, delist fields, enrichment results) on an
// existing Job survives renormalization.
func (s *Service) Normalize(raw *models.JobRaw) (*models.Job, error) {
	family, specialization := s.roles.MapTitle(raw.TitleRaw)
	seniority := s.seniority.Detect(raw.TitleRaw, raw.DescriptionRaw)
	locationType, locations := s.locations.Normalize(raw.LocationRaw)
	skills := s.skills.Extract(raw.TitleRaw, raw.DescriptionRaw)
	minSalary, maxSalary := parseSalary(raw.SalaryRaw)
	postedAt := parseDate(raw.PostedAtRaw)

	job := &models.Job{
		ID:                 uuid.NewString(),
		CompanyID:          raw.CompanyID,
		RawJobID:           raw.ID,
		Title:              raw.TitleRaw,
		Description:        raw.DescriptionRaw,
		SourceURL:          raw.SourceURL,
		RoleFamily:         family,
		RoleSpecialization: specialization,
		Seniority:          seniority,
		LocationType:       locationType,
		Locations:          locations,
		Skills:             skills,
		MinSalary:          minSalary,
		MaxSalary:          maxSalary,
		EmploymentType:     normalizeEmploymentType(raw.EmploymentTypeRaw),
		PostedAt:           postedAt,
		FreshnessScore:     s.freshness(postedAt, time.Now().UTC()),
	}

	stored, err := s.jobs.Upsert(job)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert job: %w", err)
	}

	s.logger.Debug().
		Str("title", stored.Title).
		Str("role_family", family).
		Str("seniority", seniority).
		Int("skills", len(skills)).
		Msg("Job normalized")

	return stored, nil
}

// NormalizeCompanyJobs renormalizes every raw job stored for a company. A
// raw row that fails to normalize is logged and skipped.
func (s *Service) NormalizeCompanyJobs(companyID string) ([]*models.Job, error) {
	raws, err := s.raws.ListByCompany(companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list raw jobs: %w", err)
	}

	jobs := make([]*models.Job, 0, len(raws))
	for _, raw := range raws {
		job, err := s.Normalize(raw)
		if err != nil {
			s.logger.Warn().Err(err).Str("raw_id", raw.ID).Msg("Failed to normalize raw job")
			continue
		}
		jobs = append(jobs, job)
	}

	s.logger.Info().
		Str("company_id", companyID).
		Int("total", len(raws)).
		Int("normalized", len(jobs)).
		Msg("Company jobs normalized")

	return jobs, nil
}

// freshness scores a posting by exponential decay: 1.0 today, 0.5 after one
// half-life. Unknown dates sit at the midpoint.
func (s *Service) freshness(postedAt *time.Time, now time.Time) float64 {
	if postedAt == nil {
		return 0.5
	}
	days := now.Sub(*postedAt).Hours() / 24
	if days < 0 {
		days = 0
	}
	return math.Pow(0.5, days/s.halfLife)
}

var (
	salaryKRe      = regexp.MustCompile(`(?i)(\d+)k`)
	salaryNumberRe = regexp.MustCompile(`\d+`)
)

// parseSalary pulls the first two numbers out of a raw salary string.
// Currency symbols and separators are stripped and k-notation expands to
// thousands; a single number means min == max.
func parseSalary(raw string) (*int, *int) {
	if raw == "" {
		return nil, nil
	}

	cleaned := strings.NewReplacer(",", "", "$", "", "£", "", "€", "").Replace(raw)
	cleaned = salaryKRe.ReplaceAllStringFunc(cleaned, func(m string) string {
		n, err := strconv.Atoi(m[:len(m)-1])
		if err != nil {
			return m
		}
		return strconv.Itoa(n * 1000)
	})

	numbers := salaryNumberRe.FindAllString(cleaned, 2)
	if len(numbers) == 0 {
		return nil, nil
	}

	first, err := strconv.Atoi(numbers[0])
	if err != nil {
		return nil, nil
	}
	if len(numbers) == 1 {
		low, high := first, first
		return &low, &high
	}

	second, err := strconv.Atoi(numbers[1])
	if err != nil {
		low, high := first, first
		return &low, &high
	}

	low, high := first, second
	if low > high {
		low, high = high, low
	}
	return &low, &high
}

// normalizeEmploymentType maps free-form employment strings onto the
// canonical set. Unknown values map to empty.
func normalizeEmploymentType(raw string) string {
	if raw == "" {
		return ""
	}
	lower := strings.ToLower(raw)
	switch {
	case containsAny(lower, "full-time", "full time", "full_time", "fulltime", "permanent"):
		return "full_time"
	case containsAny(lower, "part-time", "part time", "part_time", "parttime"):
		return "part_time"
	case containsAny(lower, "contract"):
		return "contract"
	case containsAny(lower, "freelance"):
		return "freelance"
	case containsAny(lower, "intern"):
		return "internship"
	}
	return ""
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// dateLayouts covers the timestamp shapes ATS APIs and JSON-LD actually
// emit: RFC 3339 variants, bare dates, RSS-style stamps and a few human
// formats.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05 MST",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	"01/02/2006",
}

// parseDate tries each known layout in order; nil when nothing fits.
func parseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// Compile-time interface check
var _ interfaces.NormalizerService = (*Service)(nil)
