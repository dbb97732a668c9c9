package radar

import "time"

// Snapshot is one immutable batch of points produced by a single fetch cycle.
type Snapshot struct {
	ID          string       `json:"id"`
	Timestamp   time.Time    `json:"timestamp"`
	SourceLabel string       `json:"source"`
	Bounds      Bounds       `json:"bounds"`
	Points      []RadarPoint `json:"points"`
}

// TotalPoints is the number of points in the batch.
func (s Snapshot) TotalPoints() int { return len(s.Points) }

// Meta is the batch-level metadata of a snapshot without its points.
type Meta struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	SourceLabel string    `json:"source"`
	TotalPoints int       `json:"total_points"`
	Bounds      Bounds    `json:"bounds"`
}

// Meta returns the batch-level metadata.
func (s Snapshot) Meta() Meta {
	return Meta{
		ID:          s.ID,
		Timestamp:   s.Timestamp,
		SourceLabel: s.SourceLabel,
		TotalPoints: len(s.Points),
		Bounds:      s.Bounds,
	}
}
