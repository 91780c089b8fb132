package models

// EnrichOutcome classifies what happened to one job during enrichment.
type EnrichOutcome string

const (
	// EnrichOutcomeEnriched means a description was written.
	EnrichOutcomeEnriched EnrichOutcome = "enriched"
	// EnrichOutcomeDelisted means the posting is gone upstream and the job
	// was marked inactive.
	EnrichOutcomeDelisted EnrichOutcome = "delisted"
	// EnrichOutcomeFailed means no description could be obtained this pass.
	EnrichOutcomeFailed EnrichOutcome = "failed"
)

// EnrichSummary aggregates outcomes across an enrichment run.
type EnrichSummary struct {
	Enriched int `json:"enriched"`
	Delisted int `json:"delisted"`
	Failed   int `json:"failed"`
}

// Add folds one outcome into the summary.
func (s *EnrichSummary) Add(o EnrichOutcome) {
	switch o {
	case EnrichOutcomeEnriched:
		s.Enriched++
	case EnrichOutcomeDelisted:
		s.Delisted++
	default:
		s.Failed++
	}
}

// Total reports how many jobs the run touched.
func (s *EnrichSummary) Total() int {
	return s.Enriched + s.Delisted + s.Failed
}
