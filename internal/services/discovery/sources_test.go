package discovery

import (
	"reflect"
	"testing"
)

func TestExtractBoardRefs(t *testing.T) {
	html := `<html><body>
<a href="https://boards.greenhouse.io/acmeco">Acme</a>
<a href="https://jobs.lever.co/beta-labs/1234">Beta</a>
<a href="https://gamma.bamboohr.com/careers">Gamma</a>
<a href="https://boards.greenhouse.io/acmeco?src=list">Acme again</a>
<a href="https://boards.greenhouse.io/embed/job_board">widget</a>
</body></html>`

	refs := extractBoardRefs(html)
	got := make(map[string]string, len(refs))
	for _, ref := range refs {
		got[ref.family+":"+ref.identifier] = ref.identifier
	}

	for _, want := range []string{"greenhouse:acmeco", "lever:beta-labs", "bamboohr:gamma"} {
		if _, ok := got[want]; !ok {
			t.Errorf("missing board ref %s in %v", want, refs)
		}
	}
	if len(refs) != 3 {
		t.Errorf("refs = %d (%v), want 3: duplicate or vendor path leaked through", len(refs), refs)
	}
}

func TestCandidateSlugs(t *testing.T) {
	got := candidateSlugs("Acme Robotics", "acme-robotics.example")
	want := []string{"acme-robotics", "acmerobotics", "acme"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("slugs = %v, want %v", got, want)
	}

	// Name-only companies still get a guess.
	got = candidateSlugs("Vandelay Industries, Inc.", "")
	want = []string{"vandelayindustriesinc", "vandelay-industries-inc", "vandelay"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("name-only slugs = %v, want %v", got, want)
	}
}

func TestDomainsMatch(t *testing.T) {
	cases := []struct {
		ours, theirs string
		want         bool
	}{
		{"acme.example", "acme.example", true},
		{"www.acme.example", "acme.example", true},
		{"acme.example", "jobs.acme.example", true},
		{"acme.io", "acme.com", true},
		{"box.io", "box.com", false}, // base label too short to trust
		{"acme.example", "acmeinc.example", false},
		{"acme.example", "", false},
	}
	for _, c := range cases {
		if got := domainsMatch(c.ours, c.theirs); got != c.want {
			t.Errorf("domainsMatch(%q, %q) = %v, want %v", c.ours, c.theirs, got, c.want)
		}
	}
}

func TestExtractBoardSite(t *testing.T) {
	cases := []struct {
		family, html, want string
	}{
		{"greenhouse", `{"company_website":"https://www.acme.example/about"}`, "acme.example"},
		{"lever", `{"websiteUrl":"https://beta.example"}`, "beta.example"},
		{"ashby", `{"companyWebsite":"https://gamma.example"}`, "gamma.example"},
		{"greenhouse", `{"company_website":"https://localhost"}`, ""}, // no dot, not a domain
		{"greenhouse", `<p>nothing here</p>`, ""},
	}
	for _, c := range cases {
		if got := extractBoardSite(c.html, c.family); got != c.want {
			t.Errorf("extractBoardSite(%s) = %q, want %q", c.family, got, c.want)
		}
	}
}

func TestParseFeedReadsRSSAndAtom(t *testing.T) {
	rss := `<?xml version="1.0"?>
<rss version="2.0"><channel>
<item>
  <title>Acme raises $20 million Series B</title>
  <link>https://news.example/acme-series-b</link>
  <description>Acme closed a $20 million Series B round.</description>
  <pubDate>Mon, 02 Jan 2006 15:04:05 -0700</pubDate>
</item>
</channel></rss>`

	items, err := parseFeed(rss)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("rss items = %d, want 1", len(items))
	}
	if items[0].Title != "Acme raises $20 million Series B" {
		t.Errorf("title = %q", items[0].Title)
	}
	if items[0].link() != "https://news.example/acme-series-b" {
		t.Errorf("link = %q", items[0].link())
	}
	if items[0].description() == "" {
		t.Error("description empty")
	}

	atom := `<?xml version="1.0"?>
<feed xmlns="http://www.w3.org/2005/Atom">
<entry>
  <title>Beta secures seed funding</title>
  <link href="https://news.example/beta-seed"/>
  <summary>Beta secured seed funding to build robots.</summary>
  <updated>2006-01-02T15:04:05Z</updated>
</entry>
</feed>`

	items, err = parseFeed(atom)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("atom entries = %d, want 1", len(items))
	}
	if items[0].link() != "https://news.example/beta-seed" {
		t.Errorf("atom link = %q", items[0].link())
	}
	if items[0].description() != "Beta secured seed funding to build robots." {
		t.Errorf("atom description = %q", items[0].description())
	}
	if items[0].date() == "" {
		t.Error("atom date empty")
	}
}

func TestExtractFundedCompanies(t *testing.T) {
	text := "Acme raises $20 million Series B to expand. " +
		"Investors put $5M into Brightline after its pilot. " +
		"Startup raises $10 million." // "Startup" is a generic word, not a name

	mentions := extractFundedCompanies(text)
	names := make(map[string]string, len(mentions))
	for _, m := range mentions {
		names[m.name] = m.website
	}
	if _, ok := names["Acme"]; !ok {
		t.Errorf("Acme not extracted: %v", mentions)
	}
	if _, ok := names["Brightline"]; !ok {
		t.Errorf("Brightline not extracted: %v", mentions)
	}
	if _, ok := names["Startup"]; ok {
		t.Error("generic word extracted as a company name")
	}

	// An in-article link yields both a name and a website.
	mentions = extractFundedCompanies("Read more at https://acmecorp.io/announcement")
	if len(mentions) != 1 || mentions[0].website != "https://acmecorp.io" {
		t.Fatalf("url mention = %v", mentions)
	}
	if mentions[0].name != "Acmecorp" {
		t.Errorf("url-derived name = %q", mentions[0].name)
	}

	// Aggregator's own domain is not a company.
	if got := extractFundedCompanies("via https://techcrunch.com/2026/01/01/story"); len(got) != 0 {
		t.Errorf("skip domain leaked: %v", got)
	}
}

func TestExtractFundingStage(t *testing.T) {
	cases := []struct {
		content, want string
	}{
		{"acme closed a pre-seed round of $1m", "Pre-Seed"},
		{"beta announced its seed round", "Seed"},
		{"gamma raised a series b led by example ventures", "Series B"},
		{"delta hired a new cfo", ""},
	}
	for _, c := range cases {
		if got := extractFundingStage(c.content); got != c.want {
			t.Errorf("extractFundingStage(%q) = %q, want %q", c.content, got, c.want)
		}
	}
}

func TestCrawlableDomain(t *testing.T) {
	cases := []struct {
		domain string
		want   bool
	}{
		{"acme.example", true},
		{"twitter.com", false},
		{"cdn.acme.example", false},
		{"city.gov", false},
		{"docs.acme.example", false},
		{"ab", false},
		{"a.b", false},
	}
	for _, c := range cases {
		if got := crawlableDomain(c.domain); got != c.want {
			t.Errorf("crawlableDomain(%q) = %v, want %v", c.domain, got, c.want)
		}
	}
}

func TestFindCareerLink(t *testing.T) {
	base := "https://acme.example"

	if got := findCareerLink(`<a href="/careers">Open roles</a>`, base); got != "https://acme.example/careers" {
		t.Errorf("relative link = %q", got)
	}
	if got := findCareerLink(`<a href="https://jobs.acme.example/list">Jobs</a>`, base); got != "https://jobs.acme.example/list" {
		t.Errorf("absolute link = %q", got)
	}
	if got := findCareerLink(`<a href="/join-the-team">We're Hiring</a>`, base); got != "https://acme.example/join-the-team" {
		t.Errorf("anchor-text link = %q", got)
	}
	if got := findCareerLink(`<a href="/about">About</a>`, base); got != "" {
		t.Errorf("unrelated link = %q", got)
	}
}

func TestSlugToName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"acme-robotics", "Acme Robotics"},
		{"acme_labs", "Acme Labs"},
		{"acme", "Acme"},
	}
	for _, c := range cases {
		if got := slugToName(c.in); got != c.want {
			t.Errorf("slugToName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestStripTags(t *testing.T) {
	in := `<p>Acme raised <b>$20M</b><br/>to expand.</p>`
	if got := stripTags(in); got != "Acme raised $20M to expand." {
		t.Errorf("stripTags = %q", got)
	}
}

func TestTruncateRespectsRuneBoundaries(t *testing.T) {
	if got := truncate("hello", 10); got != "hello" {
		t.Errorf("short string changed: %q", got)
	}
	if got := truncate("hello world", 5); got != "hello" {
		t.Errorf("truncate = %q", got)
	}
	// Never cut a multibyte rune in half.
	s := "héllo"
	got := truncate(s, 2)
	if got != "h" {
		t.Errorf("truncate(%q, 2) = %q, want %q", s, got, "h")
	}
}
