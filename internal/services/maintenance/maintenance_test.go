package maintenance

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
	"github.com/ternarybob/reperio/internal/services/extract"
	"github.com/ternarybob/reperio/internal/services/normalize"
	"github.com/ternarybob/reperio/internal/storage/badger"
)

// stubFetcher serves canned responses keyed by exact URL; everything else
// answers 404 with a nil body.
type stubFetcher struct {
	mu        sync.Mutex
	responses map[string]*interfaces.FetchResult
	calls     []string
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{responses: make(map[string]*interfaces.FetchResult)}
}

func (f *stubFetcher) serve(url, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[url] = &interfaces.FetchResult{Body: []byte(body), StatusCode: 200, FinalURL: url}
}

func (f *stubFetcher) Fetch(_ context.Context, url string) (*interfaces.FetchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if res, ok := f.responses[url]; ok {
		return res, nil
	}
	return &interfaces.FetchResult{StatusCode: 404, FinalURL: url}, nil
}

func (f *stubFetcher) FetchWithTimeout(ctx context.Context, url string, _ time.Duration) (*interfaces.FetchResult, error) {
	return f.Fetch(ctx, url)
}

func (f *stubFetcher) Head(ctx context.Context, url string) (*interfaces.FetchResult, error) {
	return f.Fetch(ctx, url)
}

func (f *stubFetcher) fetched(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == url {
			return true
		}
	}
	return false
}

type stubRenderer struct {
	html map[string]string
}

func (r *stubRenderer) Render(_ context.Context, url string) (string, error) {
	if h, ok := r.html[url]; ok {
		return h, nil
	}
	return "", fmt.Errorf("no render fixture for %s", url)
}

func (r *stubRenderer) Close() error { return nil }

type harness struct {
	logger     arbor.ILogger
	fetcher    *stubFetcher
	companies  interfaces.CompanyStorage
	jobs       interfaces.JobStorage
	runs       interfaces.RunStorage
	normalizer interfaces.NormalizerService
	extractor  interfaces.ExtractorService
	svc        *Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	logger := arbor.NewLogger()
	db, err := badger.NewBadgerDB(logger, &common.BadgerConfig{Path: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	h := &harness{
		logger:    logger,
		fetcher:   newStubFetcher(),
		companies: badger.NewCompanyStorage(db, logger),
		jobs:      badger.NewJobStorage(db, logger),
		runs:      badger.NewRunStorage(db, logger),
		extractor: extract.NewService(nil, nil, logger),
	}
	h.normalizer, err = normalize.NewService(
		badger.NewJobRawStorage(db, logger),
		badger.NewJobStorage(db, logger),
		common.NormalizeConfig{FreshnessHalfLifeDays: 14},
		logger,
	)
	if err != nil {
		t.Fatal(err)
	}
	h.svc = h.newService(nil)
	return h
}

func (h *harness) newService(render interfaces.RenderService) *Service {
	return NewService(h.companies, h.jobs, h.runs, h.fetcher, render,
		h.extractor, h.normalizer, common.MaintenanceConfig{Concurrency: 2, MaxAge: 24 * time.Hour}, h.logger)
}

func (h *harness) addCompany(t *testing.T, c *models.Company) *models.Company {
	t.Helper()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	if err := h.companies.Create(c); err != nil {
		t.Fatal(err)
	}
	return c
}

func (h *harness) addJob(t *testing.T, companyID, sourceURL, title string) *models.Job {
	t.Helper()
	saved, err := h.jobs.Upsert(&models.Job{
		ID:         uuid.NewString(),
		CompanyID:  companyID,
		SourceURL:  sourceURL,
		Title:      title,
		RoleFamily: "software_engineering",
		IsActive:   true,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return saved
}

func greenhouseCompany(h *harness, t *testing.T, name, identifier string) *models.Company {
	return h.addCompany(t, &models.Company{
		Name:          name,
		Domain:        name + ".example",
		CareersURL:    "https://boards.greenhouse.io/" + identifier,
		ATSFamily:     "greenhouse",
		ATSIdentifier: identifier,
		IsActive:      true,
	})
}

func ghListing(identifier string, ids ...int) string {
	out := `{"jobs":[`
	for i, id := range ids {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf(
			`{"title":"Engineer %d","absolute_url":"https://boards.greenhouse.io/%s/jobs/%d","location":{"name":"Remote"}}`,
			id, identifier, id)
	}
	return out + `]}`
}

func TestMaintainDiffsListing(t *testing.T) {
	h := newHarness(t)
	c := greenhouseCompany(h, t, "acme", "acmeco")

	u1 := h.addJob(t, c.ID, "https://boards.greenhouse.io/acmeco/jobs/1", "Engineer 1")
	u2 := h.addJob(t, c.ID, "https://boards.greenhouse.io/acmeco/jobs/2", "Engineer 2")
	u3 := h.addJob(t, c.ID, "https://boards.greenhouse.io/acmeco/jobs/3", "Engineer 3")

	// Live board now has 2, 3 and 4: job 1 disappeared, job 4 is new.
	h.fetcher.serve("https://boards-api.greenhouse.io/v1/boards/acmeco/jobs", ghListing("acmeco", 2, 3, 4))

	res := h.svc.MaintainCompany(context.Background(), c.ID)
	if res.Outcome != models.MaintainOutcomeSuccess {
		t.Fatalf("outcome = %s (reason %s), want success", res.Outcome, res.Reason)
	}
	if res.Verified != 2 || res.New != 1 || res.Delisted != 1 {
		t.Fatalf("verified/new/delisted = %d/%d/%d, want 2/1/1", res.Verified, res.New, res.Delisted)
	}

	gone, _ := h.jobs.Get(u1.ID)
	if gone.IsActive {
		t.Error("removed job still active")
	}
	if gone.DelistedAt == nil || gone.DelistReason != models.DelistReasonRemovedFromATS {
		t.Errorf("delist fields = %v/%q", gone.DelistedAt, gone.DelistReason)
	}

	for _, id := range []string{u2.ID, u3.ID} {
		kept, _ := h.jobs.Get(id)
		if !kept.IsActive {
			t.Errorf("surviving job %s delisted", id)
		}
		if kept.LastVerifiedAt == nil {
			t.Errorf("surviving job %s missing verification stamp", id)
		}
	}

	added, err := h.jobs.GetBySourceURL(c.ID, "https://boards.greenhouse.io/acmeco/jobs/4")
	if err != nil {
		t.Fatalf("new job not inserted: %v", err)
	}
	if !added.IsActive {
		t.Error("new job inserted inactive")
	}

	stored, _ := h.companies.Get(c.ID)
	if stored.LastMaintenanceAt == nil {
		t.Error("LastMaintenanceAt not stamped")
	}
}

func TestMaintainIsIdempotent(t *testing.T) {
	h := newHarness(t)
	c := greenhouseCompany(h, t, "acme", "acmeco")

	h.addJob(t, c.ID, "https://boards.greenhouse.io/acmeco/jobs/1", "Engineer 1")
	h.addJob(t, c.ID, "https://boards.greenhouse.io/acmeco/jobs/2", "Engineer 2")
	h.addJob(t, c.ID, "https://boards.greenhouse.io/acmeco/jobs/3", "Engineer 3")
	h.fetcher.serve("https://boards-api.greenhouse.io/v1/boards/acmeco/jobs", ghListing("acmeco", 2, 3, 4))

	first := h.svc.MaintainCompany(context.Background(), c.ID)
	if first.Delisted != 1 || first.New != 1 {
		t.Fatalf("first pass delisted/new = %d/%d, want 1/1", first.Delisted, first.New)
	}

	// Nothing changed upstream: the second pass only re-verifies.
	second := h.svc.MaintainCompany(context.Background(), c.ID)
	if second.Outcome != models.MaintainOutcomeSuccess {
		t.Fatalf("second outcome = %s", second.Outcome)
	}
	if second.Verified != 3 || second.New != 0 || second.Delisted != 0 {
		t.Errorf("second pass verified/new/delisted = %d/%d/%d, want 3/0/0",
			second.Verified, second.New, second.Delisted)
	}
}

func TestMaintainNormalizesURLsForComparison(t *testing.T) {
	h := newHarness(t)
	c := greenhouseCompany(h, t, "acme", "acmeco")

	// Stored with a tracking parameter; the board serves uppercase host and a
	// trailing slash. Both normalize to the same key.
	job := h.addJob(t, c.ID, "https://boards.greenhouse.io/acmeco/jobs/77?gh_src=newsletter", "Engineer 77")
	h.fetcher.serve("https://boards-api.greenhouse.io/v1/boards/acmeco/jobs",
		`{"jobs":[{"title":"Engineer 77","absolute_url":"https://Boards.Greenhouse.io/acmeco/jobs/77/","location":{"name":"Remote"}}]}`)

	res := h.svc.MaintainCompany(context.Background(), c.ID)
	if res.Verified != 1 || res.Delisted != 0 || res.New != 0 {
		t.Fatalf("verified/delisted/new = %d/%d/%d, want 1/0/0", res.Verified, res.Delisted, res.New)
	}

	kept, _ := h.jobs.Get(job.ID)
	if !kept.IsActive || kept.LastVerifiedAt == nil {
		t.Error("job with equivalent URL was not verified")
	}
}

func TestEmptyExtractionDelistsNothing(t *testing.T) {
	h := newHarness(t)
	c := greenhouseCompany(h, t, "acme", "acmeco")

	j1 := h.addJob(t, c.ID, "https://boards.greenhouse.io/acmeco/jobs/1", "Engineer 1")
	j2 := h.addJob(t, c.ID, "https://boards.greenhouse.io/acmeco/jobs/2", "Engineer 2")
	h.fetcher.serve("https://boards-api.greenhouse.io/v1/boards/acmeco/jobs", `{"jobs":[]}`)

	res := h.svc.MaintainCompany(context.Background(), c.ID)
	if res.Outcome != models.MaintainOutcomeUnknown {
		t.Fatalf("outcome = %s, want unknown", res.Outcome)
	}
	if res.Delisted != 0 {
		t.Errorf("delisted %d jobs on an empty read", res.Delisted)
	}

	for _, id := range []string{j1.ID, j2.ID} {
		job, _ := h.jobs.Get(id)
		if !job.IsActive {
			t.Errorf("job %s delisted on an empty read", id)
		}
	}

	stored, _ := h.companies.Get(c.ID)
	if stored.LastMaintenanceAt == nil {
		t.Error("empty read should still bump LastMaintenanceAt")
	}
}

func TestMaintainFetchFailure(t *testing.T) {
	h := newHarness(t)
	c := greenhouseCompany(h, t, "acme", "acmeco")
	job := h.addJob(t, c.ID, "https://boards.greenhouse.io/acmeco/jobs/1", "Engineer 1")

	// No fixture: the board answers 404.
	res := h.svc.MaintainCompany(context.Background(), c.ID)
	if res.Outcome != models.MaintainOutcomeFailed || res.Reason != models.MaintainReasonFetchFailed {
		t.Fatalf("outcome/reason = %s/%s, want failed/fetch_failed", res.Outcome, res.Reason)
	}

	kept, _ := h.jobs.Get(job.ID)
	if !kept.IsActive {
		t.Error("fetch failure delisted a job")
	}
	stored, _ := h.companies.Get(c.ID)
	if stored.LastMaintenanceAt != nil {
		t.Error("failed pass should not bump LastMaintenanceAt")
	}
}

func TestMaintainCompanyNotFound(t *testing.T) {
	h := newHarness(t)
	res := h.svc.MaintainCompany(context.Background(), uuid.NewString())
	if res.Outcome != models.MaintainOutcomeFailed || res.Reason != models.MaintainReasonNotFound {
		t.Fatalf("outcome/reason = %s/%s, want failed/not_found", res.Outcome, res.Reason)
	}
}

func TestCustomCompanyMatchesByTitle(t *testing.T) {
	h := newHarness(t)
	careers := "https://startup.example/careers"
	render := &stubRenderer{html: map[string]string{
		careers: `<html><body>
<script type="application/ld+json">
{"@type":"JobPosting","title":"Staff Engineer","jobLocation":{"address":{"addressLocality":"Denver","addressRegion":"CO"}}}
</script>
</body></html>`,
	}}
	svc := h.newService(render)

	c := h.addCompany(t, &models.Company{
		Name:       "Startup",
		Domain:     "startup.example",
		CareersURL: careers,
		ATSFamily:  models.ATSFamilyCustom,
		IsActive:   true,
	})

	// The first job came from a posting with no URL of its own, so its stored
	// source URL is the careers page; matching has to go through the title.
	// The second had a real posting URL that is now gone.
	titled := h.addJob(t, c.ID, careers, "STAFF ENGINEER")
	gone := h.addJob(t, c.ID, "https://startup.example/jobs/platform-engineer", "Platform Engineer")

	res := svc.MaintainCompany(context.Background(), c.ID)
	if res.Outcome != models.MaintainOutcomeSuccess {
		t.Fatalf("outcome = %s (reason %s), want success", res.Outcome, res.Reason)
	}
	if res.Verified != 1 || res.Delisted != 1 || res.New != 0 {
		t.Fatalf("verified/delisted/new = %d/%d/%d, want 1/1/0", res.Verified, res.Delisted, res.New)
	}

	kept, _ := h.jobs.Get(titled.ID)
	if !kept.IsActive || kept.LastVerifiedAt == nil {
		t.Error("title-matched job was not verified")
	}
	removed, _ := h.jobs.Get(gone.ID)
	if removed.IsActive {
		t.Error("vanished posting still active")
	}
}

func TestRunMaintenanceRecordsRun(t *testing.T) {
	h := newHarness(t)

	acme := greenhouseCompany(h, t, "acme", "acmeco")
	h.addJob(t, acme.ID, "https://boards.greenhouse.io/acmeco/jobs/1", "Engineer 1")
	h.fetcher.serve("https://boards-api.greenhouse.io/v1/boards/acmeco/jobs", ghListing("acmeco", 1, 2))

	beta := greenhouseCompany(h, t, "beta", "betaco")
	h.addJob(t, beta.ID, "https://boards.greenhouse.io/betaco/jobs/9", "Engineer 9")
	h.fetcher.serve("https://boards-api.greenhouse.io/v1/boards/betaco/jobs", ghListing("betaco", 9))

	run, err := h.svc.RunMaintenance(context.Background(), "", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != models.RunStatusCompleted {
		t.Fatalf("status = %s, want completed", run.Status)
	}
	if run.RunType != models.MaintenanceRunFull {
		t.Errorf("run type = %s, want full", run.RunType)
	}
	if run.CompaniesChecked != 2 || run.JobsVerified != 2 || run.JobsNew != 1 || run.JobsDelisted != 0 {
		t.Errorf("checked/verified/new/delisted = %d/%d/%d/%d, want 2/2/1/0",
			run.CompaniesChecked, run.JobsVerified, run.JobsNew, run.JobsDelisted)
	}
	if run.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}
	if len(run.Logs) == 0 {
		t.Error("run has no log entries")
	}

	stored, err := h.runs.GetMaintenanceRun(run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.CompaniesChecked != run.CompaniesChecked || stored.Status != run.Status {
		t.Error("persisted run does not match returned run")
	}

	// Both companies were just maintained, so an immediate second sweep finds
	// nothing stale.
	again, err := h.svc.RunMaintenance(context.Background(), "", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if again.CompaniesChecked != 0 {
		t.Errorf("second sweep checked %d companies, want 0", again.CompaniesChecked)
	}
	if again.Status != models.RunStatusCompleted {
		t.Errorf("second sweep status = %s", again.Status)
	}
}

func TestRunMaintenanceFamilyFilter(t *testing.T) {
	h := newHarness(t)

	acme := greenhouseCompany(h, t, "acme", "acmeco")
	h.addJob(t, acme.ID, "https://boards.greenhouse.io/acmeco/jobs/1", "Engineer 1")
	h.fetcher.serve("https://boards-api.greenhouse.io/v1/boards/acmeco/jobs", ghListing("acmeco", 1))

	lever := h.addCompany(t, &models.Company{
		Name:          "Levered",
		Domain:        "levered.example",
		CareersURL:    "https://jobs.lever.co/levered",
		ATSFamily:     "lever",
		ATSIdentifier: "levered",
		IsActive:      true,
	})

	run, err := h.svc.RunMaintenance(context.Background(), "greenhouse", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if run.RunType != models.MaintenanceRunATSFamily || run.ATSFamily != "greenhouse" {
		t.Errorf("run type/family = %s/%s", run.RunType, run.ATSFamily)
	}
	if run.CompaniesChecked != 1 {
		t.Errorf("checked %d companies, want 1", run.CompaniesChecked)
	}
	if h.fetcher.fetched("https://jobs.lever.co/levered?mode=json") {
		t.Error("family filter fetched a lever company")
	}

	stored, _ := h.companies.Get(lever.ID)
	if stored.LastMaintenanceAt != nil {
		t.Error("filtered-out company was stamped")
	}
}

func TestRunMaintenanceSingleCompany(t *testing.T) {
	h := newHarness(t)
	c := greenhouseCompany(h, t, "acme", "acmeco")
	h.addJob(t, c.ID, "https://boards.greenhouse.io/acmeco/jobs/1", "Engineer 1")
	h.fetcher.serve("https://boards-api.greenhouse.io/v1/boards/acmeco/jobs", ghListing("acmeco", 1))

	run, err := h.svc.RunMaintenance(context.Background(), "", c.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if run.RunType != models.MaintenanceRunCompany || run.CompanyID != c.ID {
		t.Errorf("run type/company = %s/%s", run.RunType, run.CompanyID)
	}
	if run.CompaniesChecked != 1 || run.JobsVerified != 1 {
		t.Errorf("checked/verified = %d/%d, want 1/1", run.CompaniesChecked, run.JobsVerified)
	}
}

func TestRunMaintenanceHonorsCancellation(t *testing.T) {
	h := newHarness(t)
	greenhouseCompany(h, t, "acme", "acmeco")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := h.svc.RunMaintenance(ctx, "", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != models.RunStatusCancelled {
		t.Fatalf("status = %s, want cancelled", run.Status)
	}
	if run.CompaniesChecked != 0 {
		t.Errorf("cancelled run checked %d companies", run.CompaniesChecked)
	}
}
