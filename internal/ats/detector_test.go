package ats

import (
	"context"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/interfaces"
)

// stubFetcher serves canned pages keyed by URL. Unknown URLs return 404.
type stubFetcher struct {
	pages map[string]stubPage
	calls []string
}

type stubPage struct {
	body     string
	status   int
	finalURL string
}

func (s *stubFetcher) lookup(url string) *interfaces.FetchResult {
	s.calls = append(s.calls, url)
	page, ok := s.pages[url]
	if !ok {
		return &interfaces.FetchResult{StatusCode: 404, FinalURL: url}
	}
	status := page.status
	if status == 0 {
		status = 200
	}
	finalURL := page.finalURL
	if finalURL == "" {
		finalURL = url
	}
	res := &interfaces.FetchResult{StatusCode: status, FinalURL: finalURL}
	if status == 200 {
		res.Body = []byte(page.body)
	}
	return res
}

func (s *stubFetcher) Fetch(_ context.Context, url string) (*interfaces.FetchResult, error) {
	return s.lookup(url), nil
}

func (s *stubFetcher) FetchWithTimeout(_ context.Context, url string, _ time.Duration) (*interfaces.FetchResult, error) {
	return s.lookup(url), nil
}

func (s *stubFetcher) Head(_ context.Context, url string) (*interfaces.FetchResult, error) {
	res := s.lookup(url)
	res.Body = nil
	return res, nil
}

func newTestDetector(fetcher interfaces.Fetcher) *Detector {
	return NewDetector(fetcher, nil, arbor.NewLogger())
}

func TestDetectHTTP_CareersURLIsBoardURL(t *testing.T) {
	d := newTestDetector(&stubFetcher{})

	det, err := d.DetectHTTP(context.Background(), DetectInput{
		Domain:     "acme.com",
		CareersURL: "https://boards.greenhouse.io/acme",
	})
	if err != nil {
		t.Fatalf("DetectHTTP failed: %v", err)
	}
	if det.Family != FamilyGreenhouse || det.Identifier != "acme" {
		t.Errorf("got (%q, %q), want (greenhouse, acme)", det.Family, det.Identifier)
	}
}

func TestDetectHTTP_EmbedTokenInHTML(t *testing.T) {
	fetcher := &stubFetcher{pages: map[string]stubPage{
		"https://acme.com/careers": {
			body: `<html><body>
				<div id="grnhse_app" data-board-token="acme"></div>
				<script src="https://boards.greenhouse.io/embed/job_board/js?for=acme"></script>
			</body></html>`,
		},
	}}
	d := newTestDetector(fetcher)

	det, err := d.DetectHTTP(context.Background(), DetectInput{
		Domain:     "acme.com",
		CareersURL: "https://acme.com/careers",
	})
	if err != nil {
		t.Fatalf("DetectHTTP failed: %v", err)
	}
	if det.Family != FamilyGreenhouse {
		t.Fatalf("family = %q, want greenhouse", det.Family)
	}
	if det.Identifier != "acme" {
		t.Errorf("identifier = %q, want acme", det.Identifier)
	}
}

func TestDetectHTTP_RedirectToBoard(t *testing.T) {
	fetcher := &stubFetcher{pages: map[string]stubPage{
		"https://acme.com/careers": {
			body:     `<html><body>jobs</body></html>`,
			finalURL: "https://jobs.lever.co/acme",
		},
	}}
	d := newTestDetector(fetcher)

	det, err := d.DetectHTTP(context.Background(), DetectInput{
		Domain:     "acme.com",
		CareersURL: "https://acme.com/careers",
	})
	if err != nil {
		t.Fatalf("DetectHTTP failed: %v", err)
	}
	if det.Family != FamilyLever || det.Identifier != "acme" {
		t.Errorf("got (%q, %q), want (lever, acme)", det.Family, det.Identifier)
	}
}

func TestDetectHTTP_ParentCompanyRedirect(t *testing.T) {
	fetcher := &stubFetcher{pages: map[string]stubPage{
		"https://brand.com/careers": {
			body:     `<html><body><h1>Welcome to Megacorp hiring</h1></body></html>`,
			finalURL: "https://megacorp.com/careers",
		},
	}}
	d := newTestDetector(fetcher)

	det, err := d.DetectHTTP(context.Background(), DetectInput{
		Domain:     "brand.com",
		CareersURL: "https://brand.com/careers",
	})
	if err != nil {
		t.Fatalf("DetectHTTP failed: %v", err)
	}
	if det.Found() {
		t.Fatalf("unexpected detection: %+v", det)
	}
	if det.ParentDomain != "megacorp.com" {
		t.Errorf("ParentDomain = %q, want megacorp.com", det.ParentDomain)
	}
}

func TestDetectHTTP_SkipsNewsURLAndProbesDomain(t *testing.T) {
	fetcher := &stubFetcher{pages: map[string]stubPage{
		"https://acme.com/careers": {
			body: `<div data-lever-site="acme" class="lever-jobs"></div>`,
		},
	}}
	d := newTestDetector(fetcher)

	det, err := d.DetectHTTP(context.Background(), DetectInput{
		Domain:     "acme.com",
		CareersURL: "https://techcrunch.com/news/acme-raises-series-b",
	})
	if err != nil {
		t.Fatalf("DetectHTTP failed: %v", err)
	}
	if det.Family != FamilyLever || det.Identifier != "acme" {
		t.Errorf("got (%q, %q), want (lever, acme)", det.Family, det.Identifier)
	}

	for _, call := range fetcher.calls {
		if call == "https://techcrunch.com/news/acme-raises-series-b" {
			t.Error("news URL should never be fetched")
		}
	}
}

func TestDetectHTTP_JobLinkRedirect(t *testing.T) {
	fetcher := &stubFetcher{pages: map[string]stubPage{
		"https://acme.com/careers": {
			body: `<html><body>
				<a href="https://acme.com/jobs/senior-engineer-123">Senior Engineer</a>
			</body></html>`,
		},
		"https://acme.com/jobs/senior-engineer-123": {
			body:     `<div class="posting"></div>`,
			finalURL: "https://jobs.lever.co/acme/7f2a09b1",
		},
	}}
	d := newTestDetector(fetcher)

	det, err := d.DetectHTTP(context.Background(), DetectInput{
		Domain:     "acme.com",
		CareersURL: "https://acme.com/careers",
	})
	if err != nil {
		t.Fatalf("DetectHTTP failed: %v", err)
	}
	if det.Family != FamilyLever || det.Identifier != "acme" {
		t.Errorf("got (%q, %q), want (lever, acme)", det.Family, det.Identifier)
	}
}

func TestDetectTiered_ExhaustedAfterThreeAttempts(t *testing.T) {
	d := newTestDetector(&stubFetcher{})

	det, err := d.DetectTiered(context.Background(), DetectInput{Domain: "acme.com"}, 3)
	if err != nil {
		t.Fatalf("DetectTiered failed: %v", err)
	}
	if det.Found() {
		t.Errorf("unexpected detection: %+v", det)
	}
	if det.Strategy != StrategyExhausted {
		t.Errorf("strategy = %q, want exhausted", det.Strategy)
	}
}

func TestFindCareersURL(t *testing.T) {
	t.Run("probe path hit", func(t *testing.T) {
		fetcher := &stubFetcher{pages: map[string]stubPage{
			"https://acme.com/careers": {body: "jobs page"},
		}}
		d := newTestDetector(fetcher)

		got := d.FindCareersURL(context.Background(), "acme.com")
		if got != "https://acme.com/careers" {
			t.Errorf("FindCareersURL = %q", got)
		}
	})

	t.Run("probe redirects to board for same company", func(t *testing.T) {
		fetcher := &stubFetcher{pages: map[string]stubPage{
			"https://acme.com/careers": {finalURL: "https://boards.greenhouse.io/acme"},
		}}
		d := newTestDetector(fetcher)

		got := d.FindCareersURL(context.Background(), "acme.com")
		if got != "https://boards.greenhouse.io/acme" {
			t.Errorf("FindCareersURL = %q", got)
		}
	})

	t.Run("homepage link fallback", func(t *testing.T) {
		fetcher := &stubFetcher{pages: map[string]stubPage{
			"https://acme.com": {body: `<nav><a href="/company/careers">Careers</a></nav>`},
		}}
		d := newTestDetector(fetcher)

		got := d.FindCareersURL(context.Background(), "acme.com")
		if got != "https://acme.com/company/careers" {
			t.Errorf("FindCareersURL = %q", got)
		}
	})

	t.Run("nothing found", func(t *testing.T) {
		d := newTestDetector(&stubFetcher{})

		if got := d.FindCareersURL(context.Background(), "acme.com"); got != "" {
			t.Errorf("FindCareersURL = %q, want empty", got)
		}
	})
}

func TestValidCareersURLForDomain(t *testing.T) {
	tests := []struct {
		name       string
		careersURL string
		domain     string
		want       bool
	}{
		{"same domain", "https://acme.com/careers", "acme.com", true},
		{"careers subdomain", "https://careers.acme.com", "acme.com", true},
		{"www variant", "https://www.acme.com/jobs", "acme.com", true},
		{"hosted board", "https://boards.greenhouse.io/acme", "acme.com", true},
		{"hosted workable", "https://apply.workable.com/acme", "acme.com", true},
		{"company name in foreign host", "https://acme.somejobsite.com/listings", "acme.com", true},
		{"company name in path", "https://jobs.example.com/acme/openings", "acme.com", true},
		{"different company", "https://othercorp.com/careers", "acme.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidCareersURLForDomain(tt.careersURL, tt.domain); got != tt.want {
				t.Errorf("ValidCareersURLForDomain(%q, %q) = %v, want %v",
					tt.careersURL, tt.domain, got, tt.want)
			}
		})
	}
}

func TestParentCompanyRedirect(t *testing.T) {
	tests := []struct {
		name       string
		domain     string
		redirect   string
		wantParent string
	}{
		{"different company", "brand.com", "https://megacorp.com/careers", "megacorp.com"},
		{"same base domain", "brand.com", "https://careers.brand.com/jobs", ""},
		{"ats board is not a parent", "brand.com", "https://boards.greenhouse.io/brand", ""},
		{"workable is not a parent", "brand.com", "https://apply.workable.com/brand", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isParent, parent := ParentCompanyRedirect(tt.domain, tt.redirect)
			if (parent != "") != isParent {
				t.Errorf("inconsistent result: isParent=%v parent=%q", isParent, parent)
			}
			if parent != tt.wantParent {
				t.Errorf("parent = %q, want %q", parent, tt.wantParent)
			}
		})
	}
}

func TestExtractJobLinks(t *testing.T) {
	html := `<html><body>
		<a href="https://acme.com/jobs/senior-engineer-123">Senior Engineer</a>
		<a href="https://acme.com/jobs/staff-designer-456">Staff Designer</a>
		<a href="https://acme.com/positions/pm-789">PM</a>
		<a href="https://acme.com/apply/never-reached-111">Overflow</a>
		<a href="/careers">All jobs</a>
	</body></html>`

	links := ExtractJobLinks(html, "https://acme.com/careers")
	if len(links) != 3 {
		t.Fatalf("got %d links, want 3: %v", len(links), links)
	}
	// Job-shaped links win before position-shaped ones; the cap cuts off the
	// apply link entirely.
	want := []string{
		"https://acme.com/jobs/senior-engineer-123",
		"https://acme.com/jobs/staff-designer-456",
		"https://acme.com/positions/pm-789",
	}
	for i, link := range links {
		if link != want[i] {
			t.Errorf("links[%d] = %q, want %q", i, link, want[i])
		}
	}
}

func TestDetectFromIframes(t *testing.T) {
	html := `<html><body>
		<iframe src="https://www.youtube.com/embed/abc"></iframe>
		<iframe src="https://jobs.ashbyhq.com/acme/embed"></iframe>
	</body></html>`

	family, identifier := DetectFromIframes(html)
	if family != FamilyAshby || identifier != "acme" {
		t.Errorf("got (%q, %q), want (ashby, acme)", family, identifier)
	}

	if family, _ := DetectFromIframes(`<iframe src="https://maps.google.com/embed"></iframe>`); family != "" {
		t.Errorf("unexpected family %q for unrelated iframe", family)
	}
}
