package common

import (
	"strings"
	"testing"
)

func TestResolveURL(t *testing.T) {
	tests := []struct {
		name string
		base string
		href string
		want string
	}{
		{"absolute href wins", "https://acme.com/careers", "https://boards.greenhouse.io/acme", "https://boards.greenhouse.io/acme"},
		{"root relative", "https://acme.com/careers/all", "/jobs/123", "https://acme.com/jobs/123"},
		{"relative to directory", "https://acme.com/careers/", "openings/42", "https://acme.com/careers/openings/42"},
		{"protocol relative", "https://acme.com/careers", "//jobs.lever.co/acme", "https://jobs.lever.co/acme"},
		{"empty href returns base", "https://acme.com/careers", "", "https://acme.com/careers"},
		{"whitespace trimmed", "https://acme.com/", "  /jobs/1  ", "https://acme.com/jobs/1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveURL(tt.base, tt.href); got != tt.want {
				t.Errorf("ResolveURL(%q, %q) = %q, want %q", tt.base, tt.href, got, tt.want)
			}
		})
	}
}

func TestNormalizeJobURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"strips query", "https://boards.greenhouse.io/acme/jobs/123?gh_src=abc", "https://boards.greenhouse.io/acme/jobs/123"},
		{"strips fragment", "https://jobs.lever.co/acme/uuid#apply", "https://jobs.lever.co/acme/uuid"},
		{"trims trailing slash", "https://acme.com/jobs/123/", "https://acme.com/jobs/123"},
		{"lowercases", "https://Acme.com/Jobs/123", "https://acme.com/jobs/123"},
		{"empty", "", ""},
		{"all together", "HTTPS://Acme.com/Jobs/123/?utm=x#top", "https://acme.com/jobs/123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeJobURL(tt.in); got != tt.want {
				t.Errorf("NormalizeJobURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestBaseDomain(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"careers.acme.com", "acme.com"},
		{"www.acme.com", "acme.com"},
		{"acme.com", "acme.com"},
		{"ACME.COM", "acme.com"},
		{"localhost", "localhost"},
		{"a.b.c.d.acme.io", "acme.io"},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			if got := BaseDomain(tt.host); got != tt.want {
				t.Errorf("BaseDomain(%q) = %q, want %q", tt.host, got, tt.want)
			}
		})
	}
}

func TestSameBaseDomain(t *testing.T) {
	if !SameBaseDomain("careers.acme.com", "www.acme.com") {
		t.Error("subdomains of the same registrable domain should match")
	}
	if SameBaseDomain("acme.com", "megacorp.com") {
		t.Error("different domains should not match")
	}
	if SameBaseDomain("", "acme.com") {
		t.Error("empty host should never match")
	}
}

func TestHostOf(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://www.acme.com/careers", "acme.com"},
		{"https://boards.greenhouse.io/acme", "boards.greenhouse.io"},
		{"https://acme.com:8443/jobs", "acme.com"},
		{"not a url at all ://", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := HostOf(tt.in); got != tt.want {
				t.Errorf("HostOf(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestShortID(t *testing.T) {
	runID := NewRunID()
	if !strings.HasPrefix(runID, "run_") {
		t.Errorf("NewRunID() = %q, want run_ prefix", runID)
	}

	short := ShortID(runID)
	if len(short) != 8 {
		t.Errorf("ShortID(%q) = %q, want 8 characters", runID, short)
	}
	if strings.Contains(short, "_") {
		t.Errorf("ShortID(%q) = %q, should drop the prefix", runID, short)
	}

	if got := ShortID("abc"); got != "abc" {
		t.Errorf("ShortID(short input) = %q, want abc", got)
	}
}
