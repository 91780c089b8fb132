package models

import "time"

// Metric is a named measurement with optional labels, written by engines for
// operational dashboards.
type Metric struct {
	ID         string            `json:"id"`
	Name       string            `json:"name" badgerhold:"index"`
	Value      float64           `json:"value"`
	Labels     map[string]string `json:"labels,omitempty"`
	RecordedAt time.Time         `json:"recorded_at"`
}
