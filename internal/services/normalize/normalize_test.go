package normalize

import (
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/models"
	"github.com/ternarybob/reperio/internal/storage/badger"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	logger := arbor.NewLogger()
	db, err := badger.NewBadgerDB(logger, &common.BadgerConfig{Path: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	svc, err := NewService(
		badger.NewJobRawStorage(db, logger),
		badger.NewJobStorage(db, logger),
		common.NormalizeConfig{FreshnessHalfLifeDays: 14},
		logger,
	)
	if err != nil {
		t.Fatal(err)
	}
	return svc
}

func TestRoleMapping(t *testing.T) {
	mapper, err := newRoleMapper("")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		title  string
		family string
		spec   string
	}{
		{"Senior Software Engineer", "software_engineering", ""},
		{"Staff Backend Engineer", "software_engineering", "backend"},
		{"Frontend Developer", "software_engineering", "frontend"},
		{"DevOps Engineer", "infrastructure", "devops"},
		{"Machine Learning Engineer", "data", "ml"},
		{"Data Scientist", "data", ""},
		{"Product Manager", "product", ""},
		{"Engineering Manager", "engineering_management", ""},
		{"Account Executive", "sales", ""},
		{"Executive Assistant", "other", ""},
	}
	for _, tt := range tests {
		family, spec := mapper.MapTitle(tt.title)
		if family != tt.family {
			t.Errorf("MapTitle(%q) family = %q, want %q", tt.title, family, tt.family)
		}
		if spec != tt.spec {
			t.Errorf("MapTitle(%q) specialization = %q, want %q", tt.title, spec, tt.spec)
		}
	}
}

func TestSeniorityFromTitle(t *testing.T) {
	detector, err := newSeniorityDetector("")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		title string
		want  string
	}{
		{"Senior Software Engineer", "senior"},
		{"Staff Engineer", "staff"},
		{"Principal Engineer", "principal"},
		{"VP of Engineering", "vp"},
		{"Head of Data", "director"},
		{"Engineering Intern", "intern"},
		{"Jr. Developer", "junior"},
		{"Software Engineer II", "mid"},
		{"Software Engineer", "mid"}, // no signal, table default
	}
	for _, tt := range tests {
		if got := detector.Detect(tt.title, ""); got != tt.want {
			t.Errorf("Detect(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}

func TestSeniorityFromExperience(t *testing.T) {
	detector, err := newSeniorityDetector("")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		description string
		want        string
	}{
		{"You bring 5+ years of experience building APIs.", "senior"},
		{"At least 10 years of experience required.", "staff"},
		{"We expect 1 year of experience with Go.", "junior"},
		{"3-5 years building distributed systems.", "mid"}, // range midpoint
		{"No requirements listed.", "mid"},
	}
	for _, tt := range tests {
		if got := detector.Detect("Software Engineer", tt.description); got != tt.want {
			t.Errorf("Detect(description=%q) = %q, want %q", tt.description, got, tt.want)
		}
	}
}

func TestLocationTypes(t *testing.T) {
	normalizer, err := newLocationNormalizer("")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		raw      string
		wantType string
	}{
		{"Remote", models.LocationTypeRemote},
		{"Fully remote, US timezones", models.LocationTypeRemote},
		{"Remote or from our SF office", models.LocationTypeHybrid},
		{"Hybrid - New York", models.LocationTypeHybrid},
		{"3 days in office", models.LocationTypeHybrid},
		{"On-site in Austin", models.LocationTypeOnsite},
		{"San Francisco, CA", models.LocationTypeOnsite},
		{"Boise, ID", models.LocationTypeOnsite},
		{"TBD", ""},
		{"", ""},
	}
	for _, tt := range tests {
		gotType, _ := normalizer.Normalize(tt.raw)
		if gotType != tt.wantType {
			t.Errorf("Normalize(%q) type = %q, want %q", tt.raw, gotType, tt.wantType)
		}
	}
}

func TestLocationCanonicalNames(t *testing.T) {
	normalizer, err := newLocationNormalizer("")
	if err != nil {
		t.Fatal(err)
	}

	_, locations := normalizer.Normalize("NYC or London")
	if len(locations) != 2 || locations[0] != "New York, NY" || locations[1] != "London, UK" {
		t.Fatalf("locations = %v, want [New York, NY; London, UK]", locations)
	}

	// Unknown places survive cleaned rather than being dropped.
	_, locations = normalizer.Normalize("Based in Winterfell area")
	if len(locations) != 1 || locations[0] != "Winterfell" {
		t.Errorf("locations = %v, want [Winterfell]", locations)
	}

	// A bare "Remote" leaves nothing behind once the marker is stripped.
	_, locations = normalizer.Normalize("Remote")
	if len(locations) != 0 {
		t.Errorf("locations = %v, want none", locations)
	}
}

func TestSkillExtraction(t *testing.T) {
	extractor, err := newSkillExtractor("")
	if err != nil {
		t.Fatal(err)
	}

	got := extractor.Extract(
		"Senior Golang Engineer",
		"Experience with Kubernetes and PostgreSQL. We deploy on AWS with Terraform.",
	)
	want := []string{"aws", "golang", "kubernetes", "postgresql", "sql", "terraform"}
	if len(got) != len(want) {
		t.Fatalf("Extract() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Extract() = %v, want %v", got, want)
		}
	}
}

func TestSkillAliasesNeedWordBoundaries(t *testing.T) {
	extractor, err := newSkillExtractor("")
	if err != nil {
		t.Fatal(err)
	}

	// "Go" alone is too ambiguous to be an alias; "golang" is required.
	if got := extractor.Extract("Go Developer", "You will go far."); len(got) != 0 {
		t.Errorf("Extract(Go Developer) = %v, want none", got)
	}
	if got := extractor.Extract("Golang Developer", ""); len(got) != 1 || got[0] != "golang" {
		t.Errorf("Extract(Golang Developer) = %v, want [golang]", got)
	}
}

func TestParseSalary(t *testing.T) {
	tests := []struct {
		raw      string
		min, max int
		none     bool
	}{
		{"$150,000 - $190,000", 150000, 190000, false},
		{"150k-190k", 150000, 190000, false},
		{"£190k - £150k", 150000, 190000, false}, // reversed bounds swap
		{"Up to $80k", 80000, 80000, false},
		{"Competitive", 0, 0, true},
		{"", 0, 0, true},
	}
	for _, tt := range tests {
		min, max := parseSalary(tt.raw)
		if tt.none {
			if min != nil || max != nil {
				t.Errorf("parseSalary(%q) = (%v, %v), want (nil, nil)", tt.raw, min, max)
			}
			continue
		}
		if min == nil || max == nil {
			t.Fatalf("parseSalary(%q) = (%v, %v), want values", tt.raw, min, max)
		}
		if *min != tt.min || *max != tt.max {
			t.Errorf("parseSalary(%q) = (%d, %d), want (%d, %d)", tt.raw, *min, *max, tt.min, tt.max)
		}
	}
}

func TestNormalizeEmploymentType(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"Full-time", "full_time"},
		{"FULL_TIME", "full_time"},
		{"Permanent", "full_time"},
		{"Part time", "part_time"},
		{"Contractor", "contract"},
		{"Internship", "internship"},
		{"Freelance", "freelance"},
		{"Casual", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := normalizeEmploymentType(tt.raw); got != tt.want {
			t.Errorf("normalizeEmploymentType(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestParseDate(t *testing.T) {
	if got := parseDate("2024-01-15T12:30:00Z"); got == nil || got.Year() != 2024 || got.Month() != time.January {
		t.Errorf("parseDate(RFC3339) = %v", got)
	}
	if got := parseDate("2024-01-15"); got == nil || got.Day() != 15 {
		t.Errorf("parseDate(bare date) = %v", got)
	}
	if got := parseDate("January 15, 2024"); got == nil || got.Day() != 15 {
		t.Errorf("parseDate(human date) = %v", got)
	}
	if got := parseDate("sometime soon"); got != nil {
		t.Errorf("parseDate(garbage) = %v, want nil", got)
	}
	if got := parseDate(""); got != nil {
		t.Errorf("parseDate(empty) = %v, want nil", got)
	}
}

func TestFreshnessDecay(t *testing.T) {
	s := &Service{halfLife: 14}
	now := time.Now().UTC()

	if got := s.freshness(nil, now); got != 0.5 {
		t.Errorf("freshness(nil) = %v, want 0.5", got)
	}

	posted := now.Add(-14 * 24 * time.Hour)
	if got := s.freshness(&posted, now); got < 0.499 || got > 0.501 {
		t.Errorf("freshness(one half-life) = %v, want ~0.5", got)
	}

	posted = now.Add(-28 * 24 * time.Hour)
	if got := s.freshness(&posted, now); got < 0.249 || got > 0.251 {
		t.Errorf("freshness(two half-lives) = %v, want ~0.25", got)
	}

	// Future dates clamp instead of inflating the score past 1.0.
	posted = now.Add(24 * time.Hour)
	if got := s.freshness(&posted, now); got != 1.0 {
		t.Errorf("freshness(future) = %v, want 1.0", got)
	}
}

func TestNormalizeAndSave(t *testing.T) {
	svc := newTestService(t)

	extracted := &models.ExtractedJob{
		Title:          "Senior Backend Engineer",
		SourceURL:      "https://boards.greenhouse.io/acme/jobs/123",
		Description:    "Build APIs in Go. 5+ years of experience with PostgreSQL and AWS.",
		Location:       "Remote (US)",
		Department:     "Engineering",
		EmploymentType: "Full-time",
		Salary:         "$150k - $190k",
		PostedAt:       "2024-01-15T00:00:00Z",
	}

	job, err := svc.NormalizeAndSave("company-1", extracted)
	if err != nil {
		t.Fatalf("NormalizeAndSave() error: %v", err)
	}

	if job.RoleFamily != "software_engineering" {
		t.Errorf("RoleFamily = %q", job.RoleFamily)
	}
	if job.RoleSpecialization != "backend" {
		t.Errorf("RoleSpecialization = %q", job.RoleSpecialization)
	}
	if job.Seniority != "senior" {
		t.Errorf("Seniority = %q", job.Seniority)
	}
	if job.LocationType != models.LocationTypeRemote {
		t.Errorf("LocationType = %q", job.LocationType)
	}
	if len(job.Locations) != 1 || job.Locations[0] != "US" {
		t.Errorf("Locations = %v, want [US]", job.Locations)
	}
	if job.EmploymentType != "full_time" {
		t.Errorf("EmploymentType = %q", job.EmploymentType)
	}
	if job.MinSalary == nil || *job.MinSalary != 150000 || job.MaxSalary == nil || *job.MaxSalary != 190000 {
		t.Errorf("salary = (%v, %v), want (150000, 190000)", job.MinSalary, job.MaxSalary)
	}
	if job.PostedAt == nil || job.PostedAt.Year() != 2024 {
		t.Errorf("PostedAt = %v", job.PostedAt)
	}
	if job.FreshnessScore <= 0 || job.FreshnessScore > 1 {
		t.Errorf("FreshnessScore = %v", job.FreshnessScore)
	}
	if !job.IsActive {
		t.Error("new job should be active")
	}

	raw, err := svc.raws.GetBySourceURL("company-1", extracted.SourceURL)
	if err != nil {
		t.Fatalf("raw job not stored: %v", err)
	}
	if job.RawJobID != raw.ID {
		t.Errorf("RawJobID = %q, want %q", job.RawJobID, raw.ID)
	}
}

func TestNormalizeAndSaveIsIdempotent(t *testing.T) {
	svc := newTestService(t)

	extracted := &models.ExtractedJob{
		Title:     "Platform Engineer",
		SourceURL: "https://jobs.lever.co/acme/abc",
		Location:  "London",
	}

	first, err := svc.NormalizeAndSave("company-1", extracted)
	if err != nil {
		t.Fatal(err)
	}

	extracted.Title = "Senior Platform Engineer"
	second, err := svc.NormalizeAndSave("company-1", extracted)
	if err != nil {
		t.Fatal(err)
	}

	if second.ID != first.ID {
		t.Errorf("renormalization created a new job: %q vs %q", second.ID, first.ID)
	}
	if second.Title != "Senior Platform Engineer" || second.Seniority != "senior" {
		t.Errorf("renormalization did not refresh fields: %q / %q", second.Title, second.Seniority)
	}

	count, err := svc.jobs.Count()
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("job count = %d, want 1", count)
	}
	rawCount, err := svc.raws.Count()
	if err != nil {
		t.Fatal(err)
	}
	if rawCount != 1 {
		t.Errorf("raw count = %d, want 1", rawCount)
	}
}

func TestRenormalizationKeepsDelistedState(t *testing.T) {
	svc := newTestService(t)

	extracted := &models.ExtractedJob{
		Title:     "Data Engineer",
		SourceURL: "https://boards.greenhouse.io/acme/jobs/9",
	}
	job, err := svc.NormalizeAndSave("company-1", extracted)
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.jobs.Delist(job.ID, models.DelistReasonRemovedFromATS); err != nil {
		t.Fatal(err)
	}

	again, err := svc.NormalizeAndSave("company-1", extracted)
	if err != nil {
		t.Fatal(err)
	}
	if again.IsActive {
		t.Error("renormalization resurrected a delisted job")
	}
	if again.DelistReason != models.DelistReasonRemovedFromATS {
		t.Errorf("DelistReason = %q", again.DelistReason)
	}
}

func TestRemoteFlagWithoutLocationText(t *testing.T) {
	svc := newTestService(t)

	job, err := svc.NormalizeAndSave("company-1", &models.ExtractedJob{
		Title:     "Support Engineer",
		SourceURL: "https://example.com/jobs/1",
		Remote:    true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if job.LocationType != models.LocationTypeRemote {
		t.Errorf("LocationType = %q, want remote", job.LocationType)
	}
}

func TestNormalizeCompanyJobs(t *testing.T) {
	svc := newTestService(t)

	for _, url := range []string{"https://a.example/1", "https://a.example/2"} {
		if _, err := svc.NormalizeAndSave("company-1", &models.ExtractedJob{
			Title:     "Software Engineer",
			SourceURL: url,
		}); err != nil {
			t.Fatal(err)
		}
	}

	jobs, err := svc.NormalizeCompanyJobs("company-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 2 {
		t.Fatalf("normalized %d jobs, want 2", len(jobs))
	}

	count, err := svc.jobs.Count()
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("job count = %d, want 2", count)
	}
}
