package models

// EmbedSummary aggregates one embedding backlog drain.
type EmbedSummary struct {
	Processed int `json:"processed"`
	Chunked   int `json:"chunked"` // jobs whose text needed chunking + pooling
	Failed    int `json:"failed"`
	Batches   int `json:"batches"`
	Remaining int `json:"remaining"`
}
