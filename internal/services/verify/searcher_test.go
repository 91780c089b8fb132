package verify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

type fakeRender struct {
	html map[string]string
}

func (r *fakeRender) Render(_ context.Context, url string) (string, error) {
	return r.html[url], nil
}

func (r *fakeRender) Close() error { return nil }

type noopLimiter struct{}

func (noopLimiter) Wait(context.Context, string) error { return nil }
func (noopLimiter) ReportResult(string, int, error)    {}

func TestSignificantWords(t *testing.T) {
	words := significantWords("Senior Software Engineer - Remote Full Time Opportunity")
	assert.Equal(t, []string{"senior", "software", "engineer"}, words)
}

func TestFuzzyCompanyMatch(t *testing.T) {
	tests := []struct {
		expected, actual string
		want             bool
	}{
		{"Acme", "Acme Inc.", true},
		{"Acme Labs", "Acme", true},
		{"Stripe", "Stripe, Inc.", true},
		{"Acme Robotics Corp", "Acme Robotics", true},
		{"Acme", "Globex", false},
		{"", "Acme", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, fuzzyCompanyMatch(tt.expected, tt.actual),
			"%q vs %q", tt.expected, tt.actual)
	}
}

func TestWordOverlap(t *testing.T) {
	assert.InDelta(t, 1.0, wordOverlap([]string{"platform", "engineer"}, []string{"platform", "engineer", "senior"}), 0.001)
	assert.InDelta(t, 0.5, wordOverlap([]string{"platform", "engineer"}, []string{"engineer"}), 0.001)
	assert.Zero(t, wordOverlap(nil, []string{"engineer"}))
}

const linkedInFixture = `<html><body>
<ul class="jobs-search__results-list">
  <li class="base-search-card">
    <h3 class="base-search-card__title">Senior Platform Engineer</h3>
    <h4 class="base-search-card__subtitle">Acme Inc</h4>
    <a href="https://www.linkedin.com/jobs/view/4242"></a>
  </li>
  <li class="base-search-card">
    <h3 class="base-search-card__title">Account Executive</h3>
    <h4 class="base-search-card__subtitle">Globex</h4>
    <a href="https://www.linkedin.com/jobs/view/9999"></a>
  </li>
</ul>
</body></html>`

func TestSearchLinkedInMatchesCard(t *testing.T) {
	render := &fakeRender{html: map[string]string{}}
	searcher := NewSearcher(render, noopLimiter{}, arbor.NewLogger())

	// Any rendered URL returns the fixture.
	render.html["https://www.linkedin.com/jobs/search?keywords=Acme+Senior+Platform+Engineer&location=United%20States"] = linkedInFixture

	result, err := searcher.Search(context.Background(), "Acme", "Senior Platform Engineer", "linkedin")
	require.NoError(t, err)
	assert.True(t, result.Found)
	assert.Equal(t, "https://www.linkedin.com/jobs/view/4242", result.ListingURL)
	assert.Equal(t, 2, result.ResultCount)
}

func TestSearchLinkedInNoCardsMeansConfidentAbsence(t *testing.T) {
	render := &fakeRender{html: map[string]string{}}
	searcher := NewSearcher(render, noopLimiter{}, arbor.NewLogger())

	result, err := searcher.Search(context.Background(), "Acme", "Platform Engineer", "linkedin")
	require.NoError(t, err)
	assert.False(t, result.Found)
	assert.InDelta(t, 0.9, result.Confidence, 0.001)
}

func TestSearchRejectsUnknownBoard(t *testing.T) {
	searcher := NewSearcher(&fakeRender{}, noopLimiter{}, arbor.NewLogger())
	_, err := searcher.Search(context.Background(), "Acme", "SWE", "monster")
	assert.Error(t, err)
}
