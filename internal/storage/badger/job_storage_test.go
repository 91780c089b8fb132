package badger

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

func newTestDB(t *testing.T) *BadgerDB {
	t.Helper()

	options := badgerhold.DefaultOptions
	options.Dir = t.TempDir()
	options.ValueDir = options.Dir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	return &BadgerDB{store: store}
}

func TestJobUpsertRefreshesInPlace(t *testing.T) {
	db := newTestDB(t)
	logger := arbor.NewLogger()
	storage := NewJobStorage(db, logger)

	first := &models.Job{
		ID:        "job-1",
		CompanyID: "co-1",
		Title:     "Software Engineer",
		SourceURL: "https://boards.greenhouse.io/acme/jobs/100",
	}
	saved, err := storage.Upsert(first)
	if err != nil {
		t.Fatalf("Failed to upsert job: %v", err)
	}
	if !saved.IsActive {
		t.Error("Expected new job to be active")
	}
	createdAt := saved.CreatedAt

	// Re-extraction of the same posting must mutate the row, not add one.
	second := &models.Job{
		ID:        "job-2",
		CompanyID: "co-1",
		Title:     "Senior Software Engineer",
		SourceURL: "https://boards.greenhouse.io/acme/jobs/100",
	}
	saved, err = storage.Upsert(second)
	if err != nil {
		t.Fatalf("Failed to re-upsert job: %v", err)
	}
	if saved.ID != "job-1" {
		t.Errorf("Expected refresh to keep ID job-1, got %s", saved.ID)
	}
	if !saved.CreatedAt.Equal(createdAt) {
		t.Error("Expected refresh to keep CreatedAt")
	}
	if saved.Title != "Senior Software Engineer" {
		t.Errorf("Expected refreshed title, got %s", saved.Title)
	}

	count, err := storage.Count()
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("Expected 1 job after refresh, got %d", count)
	}
}

func TestJobUpsertConcurrentSamePosting(t *testing.T) {
	db := newTestDB(t)
	logger := arbor.NewLogger()
	storage := NewJobStorage(db, logger)

	// Parallel crawls can extract the same posting at the same time; the
	// (company, source URL) key must still resolve to a single row.
	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			job := &models.Job{
				ID:        fmt.Sprintf("job-c%d", i),
				CompanyID: "co-1",
				Title:     "Platform Engineer",
				SourceURL: "https://boards.greenhouse.io/acme/jobs/500",
			}
			if _, err := storage.Upsert(job); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Concurrent upsert failed: %v", err)
	}

	count, err := storage.Count()
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("Expected 1 job after concurrent upserts, got %d", count)
	}

	jobs, err := storage.ListActiveByCompany("co-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 1 {
		t.Fatalf("Expected a single active row for the posting, got %d", len(jobs))
	}
}

func TestJobUpsertKeepsDescriptionAndDelistState(t *testing.T) {
	db := newTestDB(t)
	logger := arbor.NewLogger()
	storage := NewJobStorage(db, logger)

	job := &models.Job{
		ID:          "job-1",
		CompanyID:   "co-1",
		Title:       "Backend Engineer",
		Description: "Full description from enrichment",
		SourceURL:   "https://jobs.lever.co/acme/abc",
	}
	if _, err := storage.Upsert(job); err != nil {
		t.Fatal(err)
	}
	if err := storage.Delist("job-1", models.DelistReasonRemovedFromATS); err != nil {
		t.Fatal(err)
	}

	// A crawl re-extracting the listing page carries no description and must
	// not erase the enriched one or resurrect the delisted row.
	refresh := &models.Job{
		ID:        "job-x",
		CompanyID: "co-1",
		Title:     "Backend Engineer",
		SourceURL: "https://jobs.lever.co/acme/abc",
	}
	saved, err := storage.Upsert(refresh)
	if err != nil {
		t.Fatal(err)
	}
	if saved.Description != "Full description from enrichment" {
		t.Error("Expected refresh to preserve description")
	}
	if saved.IsActive {
		t.Error("Expected refresh to keep the job delisted")
	}
	if saved.DelistReason != models.DelistReasonRemovedFromATS {
		t.Errorf("Expected delist reason preserved, got %s", saved.DelistReason)
	}
}

func TestJobDelistIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	logger := arbor.NewLogger()
	storage := NewJobStorage(db, logger)

	job := &models.Job{
		ID:        "job-1",
		CompanyID: "co-1",
		Title:     "Engineer",
		SourceURL: "https://example.com/jobs/1",
	}
	if _, err := storage.Upsert(job); err != nil {
		t.Fatal(err)
	}

	if err := storage.Delist("job-1", models.DelistReasonRemovedFromATS); err != nil {
		t.Fatal(err)
	}
	first, err := storage.Get("job-1")
	if err != nil {
		t.Fatal(err)
	}
	delistedAt := first.DelistedAt

	time.Sleep(5 * time.Millisecond)
	if err := storage.Delist("job-1", models.DelistReasonPageNotFound); err != nil {
		t.Fatal(err)
	}
	second, err := storage.Get("job-1")
	if err != nil {
		t.Fatal(err)
	}
	if !second.DelistedAt.Equal(*delistedAt) {
		t.Error("Expected second delist to keep the original DelistedAt")
	}
	if second.DelistReason != models.DelistReasonRemovedFromATS {
		t.Error("Expected second delist to keep the original reason")
	}
}

func TestListNeedingEnrichmentFiltersByFamily(t *testing.T) {
	db := newTestDB(t)
	logger := arbor.NewLogger()
	companies := NewCompanyStorage(db, logger)
	jobs := NewJobStorage(db, logger)

	ghCo := &models.Company{ID: "co-gh", Name: "Acme", Domain: "acme.com", ATSFamily: "greenhouse", IsActive: true}
	leverCo := &models.Company{ID: "co-lv", Name: "Beta", Domain: "beta.com", ATSFamily: "lever", IsActive: true}
	if err := companies.Create(ghCo); err != nil {
		t.Fatal(err)
	}
	if err := companies.Create(leverCo); err != nil {
		t.Fatal(err)
	}

	failedAt := time.Now().UTC().Add(-time.Hour)
	seed := []*models.Job{
		{ID: "j1", CompanyID: "co-gh", Title: "A", SourceURL: "https://a/1"},
		{ID: "j2", CompanyID: "co-gh", Title: "B", SourceURL: "https://a/2", Description: "already enriched"},
		{ID: "j3", CompanyID: "co-lv", Title: "C", SourceURL: "https://b/1"},
	}
	for _, j := range seed {
		if _, err := jobs.Upsert(j); err != nil {
			t.Fatal(err)
		}
	}
	// Recent failure keeps a job out of the batch until the window passes.
	j4 := &models.Job{ID: "j4", CompanyID: "co-gh", Title: "D", SourceURL: "https://a/3"}
	if _, err := jobs.Upsert(j4); err != nil {
		t.Fatal(err)
	}
	j4.EnrichFailedAt = &failedAt
	if err := jobs.Update(j4); err != nil {
		t.Fatal(err)
	}

	got, err := jobs.ListNeedingEnrichment([]string{"greenhouse"}, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("Expected 1 greenhouse job needing enrichment, got %d", len(got))
	}
	if got[0].ID != "j1" {
		t.Errorf("Expected j1, got %s", got[0].ID)
	}

	all, err := jobs.ListNeedingEnrichment(nil, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("Expected 2 jobs needing enrichment across families, got %d", len(all))
	}

	// A shorter window lets the recently failed job back in.
	retried, err := jobs.ListNeedingEnrichment([]string{"greenhouse"}, 30*time.Minute, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(retried) != 2 {
		t.Fatalf("Expected 2 greenhouse jobs with a 30m retry window, got %d", len(retried))
	}
}

func TestListNeedingEmbedding(t *testing.T) {
	db := newTestDB(t)
	logger := arbor.NewLogger()
	storage := NewJobStorage(db, logger)

	withVec := &models.Job{ID: "j1", CompanyID: "co-1", Title: "A", SourceURL: "https://a/1", Description: "Build things", Embedding: []float32{0.1, 0.2}}
	without := &models.Job{ID: "j2", CompanyID: "co-1", Title: "B", SourceURL: "https://a/2", Description: "Ship things"}
	undescribed := &models.Job{ID: "j3", CompanyID: "co-1", Title: "C", SourceURL: "https://a/3"}
	for _, j := range []*models.Job{withVec, without, undescribed} {
		if _, err := storage.Upsert(j); err != nil {
			t.Fatal(err)
		}
	}

	// j1 already has a vector and j3 has no description yet; only j2 is
	// eligible.
	got, err := storage.ListNeedingEmbedding(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "j2" {
		t.Fatalf("Expected only j2 to need an embedding, got %d rows", len(got))
	}

	embedded, err := storage.CountEmbedded()
	if err != nil {
		t.Fatal(err)
	}
	if embedded != 1 {
		t.Errorf("Expected 1 embedded job, got %d", embedded)
	}
}

func TestCompanyDuplicateDomain(t *testing.T) {
	db := newTestDB(t)
	logger := arbor.NewLogger()
	storage := NewCompanyStorage(db, logger)

	first := &models.Company{ID: "co-1", Name: "Acme", Domain: "acme.com", IsActive: true}
	if err := storage.Create(first); err != nil {
		t.Fatal(err)
	}

	// www-prefixed and mixed-case domains normalize to the same dedup key.
	dup := &models.Company{ID: "co-2", Name: "Acme Inc", Domain: "WWW.Acme.com", IsActive: true}
	err := storage.Create(dup)
	if !IsDuplicate(err) {
		t.Fatalf("Expected duplicate domain error, got %v", err)
	}

	count, err := storage.Count()
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("Expected 1 company, got %d", count)
	}
}

func TestListCrawlableOrdering(t *testing.T) {
	db := newTestDB(t)
	logger := arbor.NewLogger()
	storage := NewCompanyStorage(db, logger)

	old := time.Now().UTC().Add(-48 * time.Hour)
	older := time.Now().UTC().Add(-96 * time.Hour)

	seed := []*models.Company{
		{ID: "co-recent", Name: "Recent", Domain: "recent.com", ATSFamily: "lever", IsActive: true, CrawlPriority: 50, LastCrawledAt: &old},
		{ID: "co-stale", Name: "Stale", Domain: "stale.com", ATSFamily: "lever", IsActive: true, CrawlPriority: 50, LastCrawledAt: &older},
		{ID: "co-never", Name: "Never", Domain: "never.com", ATSFamily: "lever", IsActive: true, CrawlPriority: 30},
	}
	for _, c := range seed {
		if err := storage.Create(c); err != nil {
			t.Fatal(err)
		}
	}

	got, err := storage.ListCrawlable("", time.Now().UTC().Add(-time.Hour), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 crawlable companies, got %d", len(got))
	}
	if got[0].ID != "co-never" {
		t.Errorf("Expected never-crawled company first, got %s", got[0].ID)
	}
	if got[1].ID != "co-stale" {
		t.Errorf("Expected oldest crawl next, got %s", got[1].ID)
	}

	lever, err := storage.ListCrawlable("lever", time.Now().UTC().Add(-time.Hour), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(lever) != 3 {
		t.Fatalf("Expected 3 lever companies, got %d", len(lever))
	}
	none, err := storage.ListCrawlable("greenhouse", time.Now().UTC().Add(-time.Hour), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Fatalf("Expected no greenhouse companies, got %d", len(none))
	}
}

func TestQueueEnqueueDuplicateDomain(t *testing.T) {
	db := newTestDB(t)
	logger := arbor.NewLogger()
	storage := NewQueueStorage(db, logger)

	item := &models.DiscoveryQueueItem{ID: "q-1", Name: "Acme", Domain: "acme.com", Source: "yc_companies"}
	if err := storage.Enqueue(item); err != nil {
		t.Fatal(err)
	}

	dup := &models.DiscoveryQueueItem{ID: "q-2", Name: "Acme", Domain: "acme.com", Source: "github_orgs"}
	if err := storage.Enqueue(dup); !IsDuplicate(err) {
		t.Fatalf("Expected duplicate error, got %v", err)
	}

	domains, err := storage.ListPendingDomains()
	if err != nil {
		t.Fatal(err)
	}
	if len(domains) != 1 || domains[0] != "acme.com" {
		t.Fatalf("Expected pending domains [acme.com], got %v", domains)
	}
}

func TestSnapshotLatestForCompany(t *testing.T) {
	db := newTestDB(t)
	logger := arbor.NewLogger()
	storage := NewSnapshotStorage(db, logger)

	earlier := &models.CrawlSnapshot{
		ID:        "snap-1",
		CompanyID: "co-1",
		HTMLHash:  "aaa",
		CrawledAt: time.Now().UTC().Add(-time.Hour),
	}
	latest := &models.CrawlSnapshot{
		ID:        "snap-2",
		CompanyID: "co-1",
		HTMLHash:  "bbb",
		CrawledAt: time.Now().UTC(),
	}
	if err := storage.Save(earlier); err != nil {
		t.Fatal(err)
	}
	if err := storage.Save(latest); err != nil {
		t.Fatal(err)
	}

	got, err := storage.GetLatestForCompany("co-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.HTMLHash != "bbb" {
		t.Errorf("Expected latest snapshot bbb, got %s", got.HTMLHash)
	}
}

func TestKVStorageRoundTrip(t *testing.T) {
	db := newTestDB(t)
	logger := arbor.NewLogger()
	storage := NewKVStorage(db, logger)

	if err := storage.Set("llm:cache:abc123", []byte(`{"jobs":[]}`)); err != nil {
		t.Fatal(err)
	}

	has, err := storage.Has("llm:cache:abc123")
	if err != nil {
		t.Fatal(err)
	}
	if !has {
		t.Error("Expected key to exist")
	}

	value, err := storage.Get("llm:cache:abc123")
	if err != nil {
		t.Fatal(err)
	}
	if string(value) != `{"jobs":[]}` {
		t.Errorf("Unexpected value: %s", value)
	}

	if err := storage.Delete("llm:cache:abc123"); err != nil {
		t.Fatal(err)
	}
	has, err = storage.Has("llm:cache:abc123")
	if err != nil {
		t.Fatal(err)
	}
	if has {
		t.Error("Expected key to be gone after delete")
	}

	if _, err := storage.Get("missing"); !IsNotFound(err) {
		t.Fatalf("Expected not-found error, got %v", err)
	}
}
