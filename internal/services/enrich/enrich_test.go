package enrich

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
	"github.com/ternarybob/reperio/internal/storage/badger"
)

// stubFetcher serves canned responses keyed by exact URL; everything else
// answers 404 with a nil body, matching the real fetcher's contract.
type stubFetcher struct {
	mu        sync.Mutex
	responses map[string]*interfaces.FetchResult
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{responses: make(map[string]*interfaces.FetchResult)}
}

func (f *stubFetcher) serve(url, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[url] = &interfaces.FetchResult{Body: []byte(body), StatusCode: 200, FinalURL: url}
}

func (f *stubFetcher) serveStatus(url string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[url] = &interfaces.FetchResult{StatusCode: status, FinalURL: url}
}

func (f *stubFetcher) Fetch(_ context.Context, url string) (*interfaces.FetchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
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

type harness struct {
	fetcher   *stubFetcher
	companies interfaces.CompanyStorage
	jobs      interfaces.JobStorage
	svc       *Service
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
		fetcher:   newStubFetcher(),
		companies: badger.NewCompanyStorage(db, logger),
		jobs:      badger.NewJobStorage(db, logger),
	}
	h.svc = NewService(h.jobs, h.companies, h.fetcher, common.EnrichConfig{
		Concurrency: 2,
		BatchSize:   10,
		Families:    []string{"greenhouse", "ashby", "workable"},
	}, logger)
	return h
}

func (h *harness) addCompany(t *testing.T, name, family, identifier string) *models.Company {
	t.Helper()
	now := time.Now().UTC()
	c := &models.Company{
		ID:            uuid.NewString(),
		Name:          name,
		Domain:        name + ".example",
		ATSFamily:     family,
		ATSIdentifier: identifier,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := h.companies.Create(c); err != nil {
		t.Fatal(err)
	}
	return c
}

func (h *harness) addJob(t *testing.T, companyID, sourceURL string) *models.Job {
	t.Helper()
	saved, err := h.jobs.Upsert(&models.Job{
		ID:         uuid.NewString(),
		CompanyID:  companyID,
		SourceURL:  sourceURL,
		Title:      "Engineer",
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

func TestEnrichGreenhouseJob(t *testing.T) {
	h := newHarness(t)
	c := h.addCompany(t, "acme", "greenhouse", "acmeco")
	job := h.addJob(t, c.ID, "https://boards.greenhouse.io/acmeco/jobs/4012345")

	h.fetcher.serve(
		"https://boards-api.greenhouse.io/v1/boards/acmeco/jobs/4012345",
		`{"id":4012345,"title":"Senior Backend Engineer","content":"&lt;p&gt;We build robots that assemble other robots.&lt;/p&gt;&lt;ul&gt;&lt;li&gt;Go&lt;/li&gt;&lt;li&gt;Postgres&lt;/li&gt;&lt;/ul&gt;","updated_at":"2024-02-01T09:30:00Z"}`,
	)

	outcome := h.svc.EnrichJob(context.Background(), job, c)
	if outcome != models.EnrichOutcomeEnriched {
		t.Fatalf("outcome = %s, want enriched", outcome)
	}

	stored, err := h.jobs.Get(job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Description == "" {
		t.Fatal("description not written")
	}
	if got := stored.Description; got != "We build robots that assemble other robots. Go Postgres" {
		t.Errorf("Description = %q", got)
	}
	if stored.DescriptionMarkdown == "" {
		t.Error("markdown rendering not written")
	}
	if stored.PostedAt == nil || stored.PostedAt.Format("2006-01-02") != "2024-02-01" {
		t.Errorf("PostedAt = %v, want 2024-02-01", stored.PostedAt)
	}
	if stored.EnrichFailedAt != nil {
		t.Error("EnrichFailedAt set on success")
	}
}

func TestEnrichDelistsOn404(t *testing.T) {
	h := newHarness(t)
	c := h.addCompany(t, "acme", "greenhouse", "acmeco")
	job := h.addJob(t, c.ID, "https://acme.example/careers/hire?gh_jid=555001")

	// No fixture: the detail endpoint answers 404.
	outcome := h.svc.EnrichJob(context.Background(), job, c)
	if outcome != models.EnrichOutcomeDelisted {
		t.Fatalf("outcome = %s, want delisted", outcome)
	}

	stored, err := h.jobs.Get(job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.IsActive {
		t.Error("job still active after upstream 404")
	}
	if stored.DelistedAt == nil {
		t.Error("DelistedAt not stamped")
	}
	if stored.DelistReason != models.DelistReasonRemovedFromATS {
		t.Errorf("DelistReason = %q, want removed_from_ats", stored.DelistReason)
	}
}

func TestEnrichLeverPrefersJSONLD(t *testing.T) {
	h := newHarness(t)
	c := h.addCompany(t, "acme", "lever", "acme")
	url := "https://jobs.lever.co/acme/0aa0aa00-1111-2222-3333-444444444444"
	job := h.addJob(t, c.ID, url)

	h.fetcher.serve(url, `<html><head>
<script type="application/ld+json">{"@type":"JobPosting","title":"Backend Engineer","description":"<p>Build event pipelines that move billions of messages a day between exchanges.</p>","datePosted":"2024-03-10"}</script>
</head><body><div class="posting-description">ignored when structured data is present</div></body></html>`)

	outcome := h.svc.EnrichJob(context.Background(), job, c)
	if outcome != models.EnrichOutcomeEnriched {
		t.Fatalf("outcome = %s, want enriched", outcome)
	}

	stored, _ := h.jobs.Get(job.ID)
	if stored.Description != "Build event pipelines that move billions of messages a day between exchanges." {
		t.Errorf("Description = %q", stored.Description)
	}
	if stored.PostedAt == nil || stored.PostedAt.Format("2006-01-02") != "2024-03-10" {
		t.Errorf("PostedAt = %v, want 2024-03-10", stored.PostedAt)
	}
}

func TestEnrichLeverFallsBackToPostingDescription(t *testing.T) {
	h := newHarness(t)
	c := h.addCompany(t, "acme", "lever", "acme")
	url := "https://jobs.lever.co/acme/posting-2"
	job := h.addJob(t, c.ID, url)

	h.fetcher.serve(url, `<html><body>
<div class="posting-description"><p>We are hiring a platform engineer to own our build and deploy systems end to end.</p></div>
</body></html>`)

	if outcome := h.svc.EnrichJob(context.Background(), job, c); outcome != models.EnrichOutcomeEnriched {
		t.Fatalf("outcome = %s, want enriched", outcome)
	}

	stored, _ := h.jobs.Get(job.ID)
	if stored.Description == "" {
		t.Error("description not written from posting-description fallback")
	}
}

func TestEnrichAshbyFindsPostingOnBoard(t *testing.T) {
	h := newHarness(t)
	c := h.addCompany(t, "acme", "ashby", "acme")
	const postingID = "11111111-2222-3333-4444-555555555555"
	job := h.addJob(t, c.ID, "https://jobs.ashbyhq.com/acme/"+postingID)

	// Detail endpoint has no fixture (404); the board listing carries the
	// posting.
	h.fetcher.serve(
		"https://api.ashbyhq.com/posting-api/job-board/acme",
		`{"jobs":[{"id":"`+postingID+`","jobUrl":"https://jobs.ashbyhq.com/acme/`+postingID+`","descriptionHtml":"<p>Design the control plane for our fleet of autonomous drones.</p>","publishedAt":"2024-01-20T00:00:00Z"}]}`,
	)

	if outcome := h.svc.EnrichJob(context.Background(), job, c); outcome != models.EnrichOutcomeEnriched {
		t.Fatalf("outcome = %s, want enriched", outcome)
	}

	stored, _ := h.jobs.Get(job.ID)
	if stored.Description != "Design the control plane for our fleet of autonomous drones." {
		t.Errorf("Description = %q", stored.Description)
	}
	if stored.PostedAt == nil {
		t.Error("PostedAt not backfilled from publishedAt")
	}
}

func TestEnrichAshbyDelistsWhenMissingFromBoard(t *testing.T) {
	h := newHarness(t)
	c := h.addCompany(t, "acme", "ashby", "acme")
	job := h.addJob(t, c.ID, "https://jobs.ashbyhq.com/acme/11111111-2222-3333-4444-555555555555")

	h.fetcher.serve(
		"https://api.ashbyhq.com/posting-api/job-board/acme",
		`{"jobs":[{"id":"99999999-8888-7777-6666-555555555555","jobUrl":"https://jobs.ashbyhq.com/acme/other-posting","descriptionHtml":"<p>different role</p>"}]}`,
	)

	if outcome := h.svc.EnrichJob(context.Background(), job, c); outcome != models.EnrichOutcomeDelisted {
		t.Fatalf("outcome = %s, want delisted", outcome)
	}

	stored, _ := h.jobs.Get(job.ID)
	if stored.IsActive {
		t.Error("job still active after vanishing from the board")
	}
}

func TestEnrichWorkableShortcode(t *testing.T) {
	h := newHarness(t)
	c := h.addCompany(t, "acme", "workable", "acme")
	job := h.addJob(t, c.ID, "https://apply.workable.com/acme/j/AB12CD34/")

	h.fetcher.serve(
		"https://apply.workable.com/api/v2/accounts/acme/jobs/AB12CD34",
		`{"title":"Data Engineer","full_description":"<p>Own the ingestion pipelines feeding our analytics warehouse.</p>","published_on":"2024-04-02"}`,
	)

	if outcome := h.svc.EnrichJob(context.Background(), job, c); outcome != models.EnrichOutcomeEnriched {
		t.Fatalf("outcome = %s, want enriched", outcome)
	}

	stored, _ := h.jobs.Get(job.ID)
	if stored.Description != "Own the ingestion pipelines feeding our analytics warehouse." {
		t.Errorf("Description = %q", stored.Description)
	}
	if stored.PostedAt == nil || stored.PostedAt.Format("2006-01-02") != "2024-04-02" {
		t.Errorf("PostedAt = %v, want 2024-04-02", stored.PostedAt)
	}
}

func TestEnrichGenericSelectorCascade(t *testing.T) {
	h := newHarness(t)
	c := h.addCompany(t, "startup", "", "")
	url := "https://startup.example/jobs/sre"
	job := h.addJob(t, c.ID, url)

	h.fetcher.serve(url, `<html><body>
<div class="job-description"><p>We are looking for a site reliability engineer to run our global edge network. You will own observability, incident response and capacity planning across three regions.</p></div>
</body></html>`)

	if outcome := h.svc.EnrichJob(context.Background(), job, c); outcome != models.EnrichOutcomeEnriched {
		t.Fatalf("outcome = %s, want enriched", outcome)
	}

	stored, _ := h.jobs.Get(job.ID)
	if stored.Description == "" {
		t.Error("description not written from generic cascade")
	}
	if stored.PostedAt != nil {
		t.Errorf("PostedAt = %v for a page with no date", stored.PostedAt)
	}
}

func TestEnrichFailureStampsRetry(t *testing.T) {
	h := newHarness(t)
	c := h.addCompany(t, "startup", "", "")
	url := "https://startup.example/jobs/flaky"
	job := h.addJob(t, c.ID, url)
	h.fetcher.serveStatus(url, 500)

	if outcome := h.svc.EnrichJob(context.Background(), job, c); outcome != models.EnrichOutcomeFailed {
		t.Fatalf("outcome = %s, want failed", outcome)
	}

	stored, _ := h.jobs.Get(job.ID)
	if stored.EnrichFailedAt == nil {
		t.Error("EnrichFailedAt not stamped")
	}
	if !stored.IsActive {
		t.Error("transient failure delisted the job")
	}
}

func TestEnrichBacklogDrains(t *testing.T) {
	h := newHarness(t)
	c := h.addCompany(t, "acme", "greenhouse", "acmeco")

	h.addJob(t, c.ID, "https://boards.greenhouse.io/acmeco/jobs/101")
	h.addJob(t, c.ID, "https://boards.greenhouse.io/acmeco/jobs/102")
	h.addJob(t, c.ID, "https://boards.greenhouse.io/acmeco/jobs/103") // stays 404

	detail := `{"content":"&lt;p&gt;A role description long enough to matter.&lt;/p&gt;","updated_at":"2024-02-01T00:00:00Z"}`
	h.fetcher.serve("https://boards-api.greenhouse.io/v1/boards/acmeco/jobs/101", detail)
	h.fetcher.serve("https://boards-api.greenhouse.io/v1/boards/acmeco/jobs/102", detail)

	summary, err := h.svc.EnrichBacklog(context.Background(), nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Enriched != 2 || summary.Delisted != 1 || summary.Failed != 0 {
		t.Errorf("summary enriched/delisted/failed = %d/%d/%d, want 2/1/0",
			summary.Enriched, summary.Delisted, summary.Failed)
	}

	// Everything is either described or delisted; a second pass finds nothing.
	again, err := h.svc.EnrichBacklog(context.Background(), nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if again.Total() != 0 {
		t.Errorf("second pass touched %d jobs, want 0", again.Total())
	}
}

func TestEnrichBacklogHonorsLimit(t *testing.T) {
	h := newHarness(t)
	c := h.addCompany(t, "acme", "greenhouse", "acmeco")

	detail := `{"content":"&lt;p&gt;A role description long enough to matter.&lt;/p&gt;","updated_at":"2024-02-01T00:00:00Z"}`
	for _, id := range []string{"201", "202", "203"} {
		h.addJob(t, c.ID, "https://boards.greenhouse.io/acmeco/jobs/"+id)
		h.fetcher.serve("https://boards-api.greenhouse.io/v1/boards/acmeco/jobs/"+id, detail)
	}

	summary, err := h.svc.EnrichBacklog(context.Background(), nil, 2)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Total() != 2 {
		t.Errorf("limited run touched %d jobs, want 2", summary.Total())
	}

	// The job left behind is still eligible.
	rest, err := h.svc.EnrichBacklog(context.Background(), nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if rest.Enriched != 1 {
		t.Errorf("follow-up enriched %d jobs, want 1", rest.Enriched)
	}
}

func TestEnrichBacklogHonorsCancellation(t *testing.T) {
	h := newHarness(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := h.svc.EnrichBacklog(ctx, nil, 0)
	if err == nil {
		t.Fatal("expected a context error")
	}
	if summary.Total() != 0 {
		t.Errorf("cancelled run touched %d jobs", summary.Total())
	}
}
