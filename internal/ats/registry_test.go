package ats

import (
	"strings"
	"testing"
)

func TestDetectFromURL(t *testing.T) {
	tests := []struct {
		name           string
		url            string
		wantFamily     string
		wantIdentifier string
	}{
		{"greenhouse board", "https://boards.greenhouse.io/acme", FamilyGreenhouse, "acme"},
		{"greenhouse new boards host", "https://job-boards.greenhouse.io/acme", FamilyGreenhouse, "acme"},
		{"lever board", "https://jobs.lever.co/acme", FamilyLever, "acme"},
		{"lever posting", "https://jobs.lever.co/acme/7f2a09b1", FamilyLever, "acme"},
		{"ashby board", "https://jobs.ashbyhq.com/acme", FamilyAshby, "acme"},
		{"workable board", "https://apply.workable.com/acme", FamilyWorkable, "acme"},
		{"workday tenant", "https://acme.wd5.myworkdayjobs.com/External", FamilyWorkday, "acme"},
		{"bamboohr careers", "https://acme.bamboohr.com/careers", FamilyBambooHR, "acme"},
		{"recruitee board", "https://acme.recruitee.com", FamilyRecruitee, "acme"},
		{"smartrecruiters board", "https://jobs.smartrecruiters.com/Acme", FamilySmartRecruiters, "Acme"},
		{"jobvite board", "https://jobs.jobvite.com/acme", FamilyJobvite, "acme"},
		{"icims careers host", "https://careers-acme.icims.com/jobs", "icims", "acme"},
		{"breezy board", "https://acme.breezy.hr", "breezy", "acme"},
		{"teamtailor vanity domain", "https://career.acme.com/openings", "teamtailor", "acme"},
		{"wellfound company page", "https://wellfound.com/company/acme", "wellfound", "acme"},
		{"uppercase host still matches", "https://BOARDS.GREENHOUSE.IO/acme", FamilyGreenhouse, "acme"},
		{"plain marketing site", "https://example.com/about", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			family, identifier := DetectFromURL(tt.url)
			if family != tt.wantFamily {
				t.Errorf("DetectFromURL(%q) family = %q, want %q", tt.url, family, tt.wantFamily)
			}
			if identifier != tt.wantIdentifier {
				t.Errorf("DetectFromURL(%q) identifier = %q, want %q", tt.url, identifier, tt.wantIdentifier)
			}
		})
	}
}

func TestDetectFromURL_InvalidIdentifierKeepsFamily(t *testing.T) {
	// The embed path segment matches the board pattern but is a blocklisted
	// identifier. The family is still reported so callers know what they hit.
	family, identifier := DetectFromURL("https://boards.greenhouse.io/embed")
	if family != FamilyGreenhouse {
		t.Errorf("family = %q, want %q", family, FamilyGreenhouse)
	}
	if identifier != "" {
		t.Errorf("identifier = %q, want empty", identifier)
	}
}

func TestDetectFromHTML(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			"greenhouse embed script",
			`<script src="https://boards.greenhouse.io/embed/job_board/js?for=acme"></script>`,
			FamilyGreenhouse,
		},
		{
			"greenhouse app div",
			`<div id="grnhse_app"></div>`,
			FamilyGreenhouse,
		},
		{
			"lever jobs container",
			`<div class="lever-jobs"></div>`,
			FamilyLever,
		},
		{
			"lever container uppercase marker",
			`<div id="LeverJobsContainer"></div>`,
			FamilyLever,
		},
		{
			"ashby posting",
			`<div class="ashby-job-posting"></div>`,
			FamilyAshby,
		},
		{
			"workable widget",
			`<div class="whr-embed"></div>`,
			FamilyWorkable,
		},
		{
			"bamboohr link",
			`<link href="https://acme.bamboohr.com/js/embed.css">`,
			FamilyBambooHR,
		},
		{
			"no markers",
			`<html><body><h1>About us</h1></body></html>`,
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectFromHTML(tt.html); got != tt.want {
				t.Errorf("DetectFromHTML() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractIdentifier(t *testing.T) {
	tests := []struct {
		name   string
		html   string
		family string
		want   string
	}{
		{
			"greenhouse data attribute",
			`<div id="grnhse_app" data-board-token="acme"></div>`,
			FamilyGreenhouse,
			"acme",
		},
		{
			"greenhouse settings token",
			`<script>Grnhse.Settings.boardToken = 'acme';</script>`,
			FamilyGreenhouse,
			"acme",
		},
		{
			"greenhouse embed for parameter",
			`<script src="https://boards.greenhouse.io/embed/job_board/js?for=acme"></script>`,
			FamilyGreenhouse,
			"acme",
		},
		{
			"greenhouse json config",
			`<script>{"board_token": "acme"}</script>`,
			FamilyGreenhouse,
			"acme",
		},
		{
			"greenhouse api url",
			`fetch("https://boards-api.greenhouse.io/v1/boards/acme/jobs")`,
			FamilyGreenhouse,
			"acme",
		},
		{
			"greenhouse skips embed fragment for real slug",
			`<a href="https://boards.greenhouse.io/embed"></a><a href="https://boards.greenhouse.io/acme"></a>`,
			FamilyGreenhouse,
			"acme",
		},
		{
			"greenhouse template placeholder rejected",
			`<div data-board-token="${boardToken}"></div>`,
			FamilyGreenhouse,
			"",
		},
		{
			"lever data attribute",
			`<div data-lever-site="acme"></div>`,
			FamilyLever,
			"acme",
		},
		{
			"lever embed url",
			`<script src="https://jobs.lever.co/acme/embed"></script>`,
			FamilyLever,
			"acme",
		},
		{
			"ashby embed url",
			`<iframe src="https://jobs.ashbyhq.com/acme/embed"></iframe>`,
			FamilyAshby,
			"acme",
		},
		{
			"workable subdomain config",
			`<script>var config = {"subdomain": "acme"};</script>`,
			FamilyWorkable,
			"acme",
		},
		{
			"recruitee host",
			`<script src="https://acme.recruitee.com/widget.js"></script>`,
			FamilyRecruitee,
			"acme",
		},
		{
			"unknown family",
			`<div data-board-token="acme"></div>`,
			"no_such_vendor",
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractIdentifier(tt.html, tt.family); got != tt.want {
				t.Errorf("ExtractIdentifier(%s) = %q, want %q", tt.family, got, tt.want)
			}
		})
	}
}

func TestValidIdentifier(t *testing.T) {
	tests := []struct {
		identifier string
		want       bool
	}{
		{"acme", true},
		{"acme-corp", true},
		{"Acme_2", true},
		{"", false},
		{"embed", false},
		{"job_board", false},
		{"JS", false},
		{"api", false},
		{"undefined", false},
		{"${boardToken}", false},
		{"${ghSlug}", false},
		{"acme corp", false},
		{"<script>alert(1)</script>", false},
		{"acme;drop", false},
		{"a=b", false},
		{strings.Repeat("a", 101), false},
		{strings.Repeat("a", 100), true},
	}

	for _, tt := range tests {
		t.Run(tt.identifier, func(t *testing.T) {
			if got := ValidIdentifier(tt.identifier); got != tt.want {
				t.Errorf("ValidIdentifier(%q) = %v, want %v", tt.identifier, got, tt.want)
			}
		})
	}
}

func TestFamilyURLTemplates(t *testing.T) {
	tests := []struct {
		family string
		want   string
	}{
		{FamilyGreenhouse, "https://boards-api.greenhouse.io/v1/boards/acme/jobs"},
		{FamilyLever, "https://jobs.lever.co/acme?mode=json"},
		{FamilyAshby, "https://api.ashbyhq.com/posting-api/job-board/acme"},
		{FamilyWorkable, "https://apply.workable.com/api/v1/widget/accounts/acme"},
		{FamilySmartRecruiters, "https://api.smartrecruiters.com/v1/companies/acme/postings"},
	}

	for _, tt := range tests {
		t.Run(tt.family, func(t *testing.T) {
			f := Lookup(tt.family)
			if f == nil {
				t.Fatalf("Lookup(%q) returned nil", tt.family)
			}
			if got := f.APIURL("acme"); got != tt.want {
				t.Errorf("APIURL = %q, want %q", got, tt.want)
			}
		})
	}

	if got := Lookup(FamilyGreenhouse).DetailURL("acme", "12345"); got != "https://boards-api.greenhouse.io/v1/boards/acme/jobs/12345" {
		t.Errorf("greenhouse DetailURL = %q", got)
	}
	if got := Lookup(FamilyWorkday).APIURL("acme"); got != "" {
		t.Errorf("workday APIURL = %q, want empty", got)
	}
	if got := Lookup(FamilyGreenhouse).CareersURL("acme"); got != "https://boards.greenhouse.io/acme" {
		t.Errorf("greenhouse CareersURL = %q", got)
	}
	if got := Lookup(FamilyBambooHR).CareersURL("acme"); got != "https://acme.bamboohr.com/careers" {
		t.Errorf("bamboohr CareersURL = %q", got)
	}
}

func TestDetectFromEmbed(t *testing.T) {
	tests := []struct {
		name           string
		content        string
		wantFamily     string
		wantIdentifier string
	}{
		{
			"ashby embed",
			"https://jobs.ashbyhq.com/acme/embed",
			FamilyAshby,
			"acme",
		},
		{
			"greenhouse embed with for param",
			"https://boards.greenhouse.io/embed/job_board?for=acme",
			FamilyGreenhouse,
			"acme",
		},
		{
			"inline script referencing board",
			`window.open("https://boards.greenhouse.io/acme")`,
			FamilyGreenhouse,
			"acme",
		},
		{
			"lever embed",
			"https://jobs.lever.co/acme/embed",
			FamilyLever,
			"acme",
		},
		{
			"unrelated script",
			"https://cdn.example.com/analytics.js",
			"",
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			family, identifier := DetectFromEmbed(tt.content)
			if family != tt.wantFamily || identifier != tt.wantIdentifier {
				t.Errorf("DetectFromEmbed(%q) = (%q, %q), want (%q, %q)",
					tt.content, family, identifier, tt.wantFamily, tt.wantIdentifier)
			}
		})
	}
}

func TestFamiliesOrderStable(t *testing.T) {
	all := Families()
	if len(all) < 30 {
		t.Fatalf("expected at least 30 families, got %d", len(all))
	}
	if all[0].Name != FamilyGreenhouse {
		t.Errorf("first family = %q, want greenhouse", all[0].Name)
	}
	// The vanity-domain catch-alls must stay last so real vendors win.
	lastTwo := []string{all[len(all)-2].Name, all[len(all)-1].Name}
	if lastTwo[0] != "teamtailor" || lastTwo[1] != "wellfound" {
		t.Errorf("last families = %v, want [teamtailor wellfound]", lastTwo)
	}
}
