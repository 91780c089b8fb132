package crawl

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/reperio/internal/ats"
	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
	"github.com/ternarybob/reperio/internal/services/extract"
	"github.com/ternarybob/reperio/internal/services/normalize"
	"github.com/ternarybob/reperio/internal/storage/badger"
)

const greenhouseListing = `{"jobs":[
  {"title":"Senior Backend Engineer","absolute_url":"https://boards.greenhouse.io/acmeco/jobs/101","updated_at":"2024-01-15T10:00:00Z","location":{"name":"Remote (US)"},"departments":[{"name":"Engineering"}]},
  {"title":"Product Manager","absolute_url":"https://boards.greenhouse.io/acmeco/jobs/102","location":{"name":"New York, NY"},"departments":[{"name":"Product"}]}
]}`

// stubFetcher serves canned responses keyed by exact URL. URLs without a
// fixture answer 404, matching the real fetcher's non-2xx contract.
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

func (f *stubFetcher) serveRedirect(url, finalURL, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[url] = &interfaces.FetchResult{Body: []byte(body), StatusCode: 200, FinalURL: finalURL}
}

func (f *stubFetcher) serveStatus(url string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[url] = &interfaces.FetchResult{StatusCode: status, FinalURL: url}
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

// stubRenderer returns fixture HTML per URL and errors for everything else.
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
	snapshots  interfaces.SnapshotStorage
	jobs       interfaces.JobStorage
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
		snapshots: badger.NewSnapshotStorage(db, logger),
		jobs:      badger.NewJobStorage(db, logger),
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
	detector := ats.NewDetector(h.fetcher, render, h.logger)
	return NewService(h.companies, h.snapshots, h.fetcher, render, detector,
		h.extractor, h.normalizer, common.CrawlConfig{Concurrency: 2}, h.logger)
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

func TestCrawlDetectsAndFetchesGreenhouse(t *testing.T) {
	h := newHarness(t)

	careers := "https://acme-robotics.example/careers"
	h.fetcher.serve(careers, `<html><head>
<script src="https://boards.greenhouse.io/embed/job_board/js?for=acmeco"></script>
</head><body>Open roles</body></html>`)
	h.fetcher.serve("https://boards-api.greenhouse.io/v1/boards/acmeco/jobs", greenhouseListing)

	c := h.addCompany(t, &models.Company{
		Name:       "Acme Robotics",
		Domain:     "acme-robotics.example",
		CareersURL: careers,
		IsActive:   true,
	})

	res := h.svc.CrawlCompany(context.Background(), c.ID)
	if res.Outcome != models.CrawlOutcomeSuccess {
		t.Fatalf("outcome = %s (reason %s), want success", res.Outcome, res.Reason)
	}
	if res.JobsFound != 2 || res.JobsNew != 2 || res.JobsUpdated != 0 {
		t.Errorf("jobs found/new/updated = %d/%d/%d, want 2/2/0", res.JobsFound, res.JobsNew, res.JobsUpdated)
	}

	stored, err := h.companies.Get(c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.ATSFamily != ats.FamilyGreenhouse {
		t.Errorf("ATSFamily = %q, want greenhouse", stored.ATSFamily)
	}
	if stored.ATSIdentifier != "acmeco" {
		t.Errorf("ATSIdentifier = %q, want acmeco", stored.ATSIdentifier)
	}
	if stored.LastCrawledAt == nil {
		t.Error("LastCrawledAt not set")
	}

	snap, err := h.snapshots.Get(res.SnapshotID)
	if err != nil {
		t.Fatal(err)
	}
	if snap.URL != "https://boards-api.greenhouse.io/v1/boards/acmeco/jobs" {
		t.Errorf("snapshot URL = %q, want the boards API endpoint", snap.URL)
	}
	if snap.Rendered {
		t.Error("snapshot marked rendered for a plain fetch")
	}
	if snap.HTMLHash == "" {
		t.Error("snapshot hash empty")
	}

	job, err := h.jobs.GetBySourceURL(c.ID, "https://boards.greenhouse.io/acmeco/jobs/101")
	if err != nil {
		t.Fatalf("normalized job not stored: %v", err)
	}
	if job.Title != "Senior Backend Engineer" {
		t.Errorf("Title = %q", job.Title)
	}
	if job.RoleFamily != "software_engineering" || job.Seniority != "senior" {
		t.Errorf("RoleFamily/Seniority = %q/%q", job.RoleFamily, job.Seniority)
	}
	if job.LocationType != "remote" {
		t.Errorf("LocationType = %q, want remote", job.LocationType)
	}
}

func TestCrawlUnchangedListingSkipsSnapshot(t *testing.T) {
	h := newHarness(t)

	api := "https://boards-api.greenhouse.io/v1/boards/acmeco/jobs"
	h.fetcher.serve(api, greenhouseListing)
	c := h.addCompany(t, &models.Company{
		Name:          "Acme",
		Domain:        "acme.example",
		CareersURL:    "https://boards.greenhouse.io/acmeco",
		ATSFamily:     ats.FamilyGreenhouse,
		ATSIdentifier: "acmeco",
		IsActive:      true,
	})

	first := h.svc.CrawlCompany(context.Background(), c.ID)
	if first.Outcome != models.CrawlOutcomeSuccess {
		t.Fatalf("first crawl outcome = %s (reason %s)", first.Outcome, first.Reason)
	}

	second := h.svc.CrawlCompany(context.Background(), c.ID)
	if second.Outcome != models.CrawlOutcomeUnchanged {
		t.Fatalf("second crawl outcome = %s, want unchanged", second.Outcome)
	}
	if second.SnapshotID != first.SnapshotID {
		t.Errorf("unchanged crawl reported snapshot %q, want %q", second.SnapshotID, first.SnapshotID)
	}
	if second.JobsFound != 0 {
		t.Errorf("unchanged crawl extracted %d jobs", second.JobsFound)
	}

	n, err := h.snapshots.Count()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("snapshot count = %d, want 1", n)
	}
}

func TestRecrawlCountsExistingJobsAsUpdated(t *testing.T) {
	h := newHarness(t)

	api := "https://boards-api.greenhouse.io/v1/boards/acmeco/jobs"
	h.fetcher.serve(api, greenhouseListing)
	c := h.addCompany(t, &models.Company{
		Name:          "Acme",
		Domain:        "acme.example",
		CareersURL:    "https://boards.greenhouse.io/acmeco",
		ATSFamily:     ats.FamilyGreenhouse,
		ATSIdentifier: "acmeco",
		IsActive:      true,
	})

	first := h.svc.CrawlCompany(context.Background(), c.ID)
	if first.JobsNew != 2 {
		t.Fatalf("first crawl JobsNew = %d, want 2", first.JobsNew)
	}

	// Same postings, different byte body: the hash changes but every job
	// already exists.
	h.fetcher.serve(api, greenhouseListing+"\n")

	second := h.svc.CrawlCompany(context.Background(), c.ID)
	if second.Outcome != models.CrawlOutcomeSuccess {
		t.Fatalf("second crawl outcome = %s (reason %s)", second.Outcome, second.Reason)
	}
	if second.JobsNew != 0 || second.JobsUpdated != 2 {
		t.Errorf("second crawl new/updated = %d/%d, want 0/2", second.JobsNew, second.JobsUpdated)
	}
	if second.SnapshotID == first.SnapshotID {
		t.Error("changed body reused the old snapshot")
	}
}

func TestCrawlRediscoversMovedBoard(t *testing.T) {
	h := newHarness(t)

	careers := "https://acme.example/careers"
	h.fetcher.serveStatus("https://boards-api.greenhouse.io/v1/boards/oldco/jobs", 404)
	h.fetcher.serve(careers, `<html>
<script src="https://boards.greenhouse.io/embed/job_board/js?for=newco"></script>
</html>`)
	h.fetcher.serve("https://boards-api.greenhouse.io/v1/boards/newco/jobs", greenhouseListing)

	c := h.addCompany(t, &models.Company{
		Name:          "Acme",
		Domain:        "acme.example",
		CareersURL:    careers,
		ATSFamily:     ats.FamilyGreenhouse,
		ATSIdentifier: "oldco",
		IsActive:      true,
	})

	res := h.svc.CrawlCompany(context.Background(), c.ID)
	if res.Outcome != models.CrawlOutcomeSuccess {
		t.Fatalf("outcome = %s (reason %s), want success", res.Outcome, res.Reason)
	}
	if !res.Rediscovered {
		t.Error("result not marked rediscovered")
	}
	if res.JobsFound != 2 {
		t.Errorf("JobsFound = %d, want 2", res.JobsFound)
	}

	stored, err := h.companies.Get(c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.ATSIdentifier != "newco" {
		t.Errorf("ATSIdentifier = %q, want newco", stored.ATSIdentifier)
	}
	if stored.CareersURL != "https://boards.greenhouse.io/newco" {
		t.Errorf("CareersURL = %q, want the rebuilt board URL", stored.CareersURL)
	}

	snap, err := h.snapshots.Get(res.SnapshotID)
	if err != nil {
		t.Fatal(err)
	}
	if snap.URL != "https://boards-api.greenhouse.io/v1/boards/newco/jobs" {
		t.Errorf("snapshot URL = %q, want the new board endpoint", snap.URL)
	}
}

func TestCrawlFailsWhenRediscoveredBoardAlso404s(t *testing.T) {
	h := newHarness(t)

	careers := "https://acme.example/careers"
	h.fetcher.serveStatus("https://boards-api.greenhouse.io/v1/boards/oldco/jobs", 404)
	h.fetcher.serveStatus("https://boards-api.greenhouse.io/v1/boards/newco/jobs", 404)
	h.fetcher.serve(careers, `<script src="https://boards.greenhouse.io/embed/job_board/js?for=newco"></script>`)

	c := h.addCompany(t, &models.Company{
		Name:          "Acme",
		Domain:        "acme.example",
		CareersURL:    careers,
		ATSFamily:     ats.FamilyGreenhouse,
		ATSIdentifier: "oldco",
		IsActive:      true,
	})

	res := h.svc.CrawlCompany(context.Background(), c.ID)
	if res.Outcome != models.CrawlOutcomeFailed {
		t.Fatalf("outcome = %s, want failed", res.Outcome)
	}
	if res.Reason != models.CrawlReasonFetchFailedAfterRediscover {
		t.Errorf("reason = %q, want %q", res.Reason, models.CrawlReasonFetchFailedAfterRediscover)
	}
	if !res.Rediscovered {
		t.Error("result not marked rediscovered")
	}

	// The identifier update sticks even though the retry failed; the board
	// may simply be empty right now.
	stored, _ := h.companies.Get(c.ID)
	if stored.ATSIdentifier != "newco" {
		t.Errorf("ATSIdentifier = %q, want newco", stored.ATSIdentifier)
	}
}

func TestCrawlRediscoveryRejectsSameIdentifier(t *testing.T) {
	h := newHarness(t)

	careers := "https://acme.example/careers"
	h.fetcher.serveStatus("https://boards-api.greenhouse.io/v1/boards/oldco/jobs", 404)
	// The careers page still points at the dead board, so rediscovery has
	// nothing new to offer.
	h.fetcher.serve(careers, `<script src="https://boards.greenhouse.io/embed/job_board/js?for=oldco"></script>`)

	c := h.addCompany(t, &models.Company{
		Name:          "Acme",
		Domain:        "acme.example",
		CareersURL:    careers,
		ATSFamily:     ats.FamilyGreenhouse,
		ATSIdentifier: "oldco",
		IsActive:      true,
	})

	res := h.svc.CrawlCompany(context.Background(), c.ID)
	if res.Outcome != models.CrawlOutcomeFailed || res.Reason != models.CrawlReasonFetchFailed {
		t.Fatalf("outcome/reason = %s/%s, want failed/fetch_failed", res.Outcome, res.Reason)
	}
	if res.Rediscovered {
		t.Error("unchanged identifier counted as rediscovery")
	}
}

func TestCrawlReasonCodes(t *testing.T) {
	h := newHarness(t)

	res := h.svc.CrawlCompany(context.Background(), "no-such-company")
	if res.Outcome != models.CrawlOutcomeFailed || res.Reason != models.CrawlReasonNotFound {
		t.Errorf("missing company outcome/reason = %s/%s", res.Outcome, res.Reason)
	}

	inactive := h.addCompany(t, &models.Company{
		Name:       "Dormant",
		Domain:     "dormant.example",
		CareersURL: "https://dormant.example/careers",
		IsActive:   false,
	})
	res = h.svc.CrawlCompany(context.Background(), inactive.ID)
	if res.Outcome != models.CrawlOutcomeSkipped {
		t.Errorf("inactive company outcome = %s, want skipped", res.Outcome)
	}

	noURL := h.addCompany(t, &models.Company{
		Name:     "Mystery",
		Domain:   "mystery.example",
		IsActive: true,
	})
	res = h.svc.CrawlCompany(context.Background(), noURL.ID)
	if res.Outcome != models.CrawlOutcomeFailed || res.Reason != models.CrawlReasonNoCareersURL {
		t.Errorf("no-careers-url outcome/reason = %s/%s", res.Outcome, res.Reason)
	}
}

func TestCrawlCompaniesSummary(t *testing.T) {
	h := newHarness(t)

	h.fetcher.serve("https://boards-api.greenhouse.io/v1/boards/acmeco/jobs", greenhouseListing)
	ok := h.addCompany(t, &models.Company{
		Name:          "Acme",
		Domain:        "acme.example",
		CareersURL:    "https://boards.greenhouse.io/acmeco",
		ATSFamily:     ats.FamilyGreenhouse,
		ATSIdentifier: "acmeco",
		IsActive:      true,
	})
	noURL := h.addCompany(t, &models.Company{
		Name:     "Mystery",
		Domain:   "mystery.example",
		IsActive: true,
	})
	inactive := h.addCompany(t, &models.Company{
		Name:       "Dormant",
		Domain:     "dormant.example",
		CareersURL: "https://dormant.example/careers",
		IsActive:   false,
	})

	summary := h.svc.CrawlCompanies(context.Background(), []string{ok.ID, noURL.ID, inactive.ID}, 2)
	if summary.Success != 1 || summary.Failed != 1 || summary.Skipped != 1 {
		t.Errorf("summary success/failed/skipped = %d/%d/%d, want 1/1/1",
			summary.Success, summary.Failed, summary.Skipped)
	}
	if summary.JobsFound != 2 {
		t.Errorf("summary JobsFound = %d, want 2", summary.JobsFound)
	}
}

func TestCrawlByFamilyHonorsPriorityAndLimit(t *testing.T) {
	h := newHarness(t)

	listing := func(id string) string {
		return fmt.Sprintf(`{"jobs":[{"title":"Engineer","absolute_url":"https://boards.greenhouse.io/%s/jobs/1"}]}`, id)
	}
	for _, id := range []string{"alpha", "bravo"} {
		h.fetcher.serve("https://boards-api.greenhouse.io/v1/boards/"+id+"/jobs", listing(id))
	}

	add := func(name, id string, priority int, careersURL string) {
		h.addCompany(t, &models.Company{
			Name:          name,
			Domain:        name + ".example",
			CareersURL:    careersURL,
			ATSFamily:     ats.FamilyGreenhouse,
			ATSIdentifier: id,
			CrawlPriority: priority,
			IsActive:      true,
		})
	}
	add("alpha", "alpha", 90, "https://boards.greenhouse.io/alpha")
	add("bravo", "bravo", 50, "https://boards.greenhouse.io/bravo")
	add("charlie", "charlie", 10, "https://boards.greenhouse.io/charlie")
	add("delta", "delta", 95, "") // no careers URL, never eligible

	summary, err := h.svc.CrawlByFamily(context.Background(), ats.FamilyGreenhouse, 2, 1)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Success != 2 {
		t.Errorf("summary.Success = %d, want 2", summary.Success)
	}
	if h.fetcher.fetched("https://boards-api.greenhouse.io/v1/boards/charlie/jobs") {
		t.Error("limit 2 still crawled the lowest-priority company")
	}
	if h.fetcher.fetched("https://boards-api.greenhouse.io/v1/boards/delta/jobs") {
		t.Error("company without a careers URL was crawled")
	}
}

func TestCustomCompanyUsesRenderer(t *testing.T) {
	h := newHarness(t)

	careers := "https://weird.example/jobs"
	render := &stubRenderer{html: map[string]string{
		careers: `<html><body>
<script type="application/ld+json">
{"@type":"JobPosting","title":"Platform Engineer","url":"https://weird.example/jobs/platform-engineer","jobLocation":{"address":{"addressLocality":"Denver","addressRegion":"CO"}}}
</script>
</body></html>`,
	}}
	svc := h.newService(render)

	c := h.addCompany(t, &models.Company{
		Name:       "Weird Machines",
		Domain:     "weird.example",
		CareersURL: careers,
		ATSFamily:  models.ATSFamilyCustom,
		IsActive:   true,
	})

	res := svc.CrawlCompany(context.Background(), c.ID)
	if res.Outcome != models.CrawlOutcomeSuccess {
		t.Fatalf("outcome = %s (reason %s), want success", res.Outcome, res.Reason)
	}
	if res.JobsFound != 1 {
		t.Errorf("JobsFound = %d, want 1", res.JobsFound)
	}

	snap, err := h.snapshots.Get(res.SnapshotID)
	if err != nil {
		t.Fatal(err)
	}
	if !snap.Rendered {
		t.Error("snapshot not marked rendered")
	}
	if h.fetcher.fetched(careers) {
		t.Error("renderer succeeded but the plain fetcher was still used")
	}
}

func TestCustomCompanyFallsBackToPlainFetch(t *testing.T) {
	h := newHarness(t)

	careers := "https://plain.example/jobs"
	h.fetcher.serve(careers, `<html><body><div class="job"><a href="/jobs/engineer">Engineer</a></div></body></html>`)
	svc := h.newService(&stubRenderer{}) // renders nothing

	c := h.addCompany(t, &models.Company{
		Name:       "Plain",
		Domain:     "plain.example",
		CareersURL: careers,
		ATSFamily:  models.ATSFamilyCustom,
		IsActive:   true,
	})

	res := svc.CrawlCompany(context.Background(), c.ID)
	if res.Outcome != models.CrawlOutcomeSuccess {
		t.Fatalf("outcome = %s (reason %s), want success", res.Outcome, res.Reason)
	}

	snap, err := h.snapshots.Get(res.SnapshotID)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Rendered {
		t.Error("fallback fetch marked as rendered")
	}
}

func TestCrawlAssignsParentCompanyOnRedirect(t *testing.T) {
	h := newHarness(t)

	careers := "https://subsidiary.example/careers"
	parentPage := "<html><body><h1>Careers at MegaCorp</h1></body></html>"
	h.fetcher.serveRedirect(careers, "https://megacorp.example/careers", parentPage)

	c := h.addCompany(t, &models.Company{
		Name:       "Subsidiary",
		Domain:     "subsidiary.example",
		CareersURL: careers,
		IsActive:   true,
	})

	res := h.svc.CrawlCompany(context.Background(), c.ID)
	if res.Outcome != models.CrawlOutcomeSuccess {
		t.Fatalf("outcome = %s (reason %s), want success", res.Outcome, res.Reason)
	}

	stored, err := h.companies.Get(c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.ATSFamily != models.ATSFamilyUsesParentATS {
		t.Errorf("ATSFamily = %q, want uses_parent_ats", stored.ATSFamily)
	}
	if stored.ATSIdentifier != "megacorp.example" {
		t.Errorf("ATSIdentifier = %q, want the parent domain", stored.ATSIdentifier)
	}
	if stored.ParentCompanyID == "" {
		t.Fatal("ParentCompanyID not set")
	}

	parent, err := h.companies.GetByDomain("megacorp.example")
	if err != nil {
		t.Fatalf("parent stub not created: %v", err)
	}
	if parent.ID != stored.ParentCompanyID {
		t.Error("ParentCompanyID does not reference the stub")
	}
	if parent.DiscoverySource != "parent_redirect" {
		t.Errorf("parent DiscoverySource = %q", parent.DiscoverySource)
	}
}

func TestDetectionExhaustionMarksCustom(t *testing.T) {
	h := newHarness(t)

	careers := "https://opaque.example/careers"
	h.fetcher.serve(careers, "<html><body>Join us</body></html>")

	c := h.addCompany(t, &models.Company{
		Name:                 "Opaque",
		Domain:               "opaque.example",
		CareersURL:           careers,
		IsActive:             true,
		ATSDetectionAttempts: ats.MaxDetectionAttempts - 1,
	})

	res := h.svc.CrawlCompany(context.Background(), c.ID)
	if res.Outcome != models.CrawlOutcomeSuccess {
		t.Fatalf("outcome = %s (reason %s), want success", res.Outcome, res.Reason)
	}

	stored, err := h.companies.Get(c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.ATSFamily != models.ATSFamilyCustom {
		t.Errorf("ATSFamily = %q, want custom after exhaustion", stored.ATSFamily)
	}
	if stored.ATSDetectionAttempts != ats.MaxDetectionAttempts {
		t.Errorf("attempts = %d, want %d", stored.ATSDetectionAttempts, ats.MaxDetectionAttempts)
	}
	if stored.ATSDetectionLastAt == nil {
		t.Error("ATSDetectionLastAt not stamped")
	}
}

func TestFetchURLPrefersVendorAPI(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name    string
		company models.Company
		want    string
	}{
		{
			"known family and identifier",
			models.Company{ATSFamily: ats.FamilyGreenhouse, ATSIdentifier: "acmeco", CareersURL: "https://acme.example/careers"},
			"https://boards-api.greenhouse.io/v1/boards/acmeco/jobs",
		},
		{
			"family without a listing API",
			models.Company{ATSFamily: ats.FamilyBambooHR, ATSIdentifier: "acmeco", CareersURL: "https://acmeco.bamboohr.com/careers"},
			"https://acmeco.bamboohr.com/careers",
		},
		{
			"custom family",
			models.Company{ATSFamily: models.ATSFamilyCustom, CareersURL: "https://acme.example/careers"},
			"https://acme.example/careers",
		},
		{
			"missing identifier",
			models.Company{ATSFamily: ats.FamilyGreenhouse, CareersURL: "https://acme.example/careers"},
			"https://acme.example/careers",
		},
	}
	for _, tt := range tests {
		if got := h.svc.fetchURL(&tt.company); got != tt.want {
			t.Errorf("%s: fetchURL = %q, want %q", tt.name, got, tt.want)
		}
	}
}
