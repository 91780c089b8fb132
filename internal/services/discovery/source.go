package discovery

import (
	"context"
	"regexp"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
)

// EmitFunc receives one discovered company. The orchestrator's emit is safe
// to call from a source's worker goroutines.
type EmitFunc func(*models.DiscoveredCompany)

// Source produces candidate companies. Sources hold the run's shared Dedup
// and check it before spending HTTP work on a domain or board that is
// already known; the orchestrator makes the final call on every emission.
type Source interface {
	// Name is the source key recorded on runs and used for source selection.
	Name() string

	// Discover streams candidates to emit until the source is exhausted or
	// the context is cancelled.
	Discover(ctx context.Context, emit EmitFunc) error
}

// progressReporter is implemented by sources that know their work size up
// front, so run telemetry can show "x of y" instead of a bare count.
type progressReporter interface {
	Progress() (current, total int)
}

// companyUpdater is implemented by sources that repair existing company rows
// in place instead of emitting candidates.
type companyUpdater interface {
	UpdatedCompanies() int
}

// progress is an embeddable x-of-y tracker safe for concurrent updates.
type progress struct {
	current atomic.Int64
	total   atomic.Int64
}

func (p *progress) Progress() (current, total int) {
	return int(p.current.Load()), int(p.total.Load())
}

// fetchPage retrieves a URL and returns its body as a string, or "" for any
// non-200 outcome. Sources treat missing pages as absence, not failure.
func fetchPage(ctx context.Context, fetcher interfaces.Fetcher, url string) string {
	res, err := fetcher.Fetch(ctx, url)
	if err != nil || res.StatusCode != 200 || res.Body == nil {
		return ""
	}
	return string(res.Body)
}

// headOK reports whether a HEAD request answered 200.
func headOK(ctx context.Context, fetcher interfaces.Fetcher, url string) bool {
	res, err := fetcher.Head(ctx, url)
	return err == nil && res.StatusCode == 200
}

// slugToName turns a board slug or domain label into a display name:
// "acme-robotics" -> "Acme Robotics".
func slugToName(slug string) string {
	slug = strings.NewReplacer("-", " ", "_", " ").Replace(slug)
	words := strings.Fields(slug)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// stripTags removes HTML tags and collapses whitespace, for feed summaries
// and comment bodies that arrive as markup.
func stripTags(s string) string {
	s = tagPattern.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// truncate shortens a string to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
