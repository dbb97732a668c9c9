package api

import (
	"time"

	"github.com/couchcryptid/storm-radar-service/internal/radar"
)

// FeatureCollection is the GeoJSON envelope returned by the radar routes.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
	Metadata Metadata  `json:"metadata"`
}

// Feature is one radar point as a GeoJSON Point feature.
type Feature struct {
	Type       string            `json:"type"`
	Geometry   Geometry          `json:"geometry"`
	Properties FeatureProperties `json:"properties"`
}

// Geometry holds [longitude, latitude] in GeoJSON order.
type Geometry struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// FeatureProperties carries the classification of one radar point.
type FeatureProperties struct {
	Reflectivity  float64             `json:"reflectivity"`
	Precipitation radar.Precipitation `json:"precipitation"`
	Color         string              `json:"color"`
	Source        radar.Source        `json:"source"`
}

// Metadata describes the snapshot a collection was drawn from.
type Metadata struct {
	Timestamp   *time.Time   `json:"timestamp,omitempty"`
	Source      string       `json:"source,omitempty"`
	TotalPoints int          `json:"total_points"`
	Bounds      radar.Bounds `json:"bounds"`
}

func toFeatures(points []radar.RadarPoint) []Feature {
	features := make([]Feature, len(points))
	for i, p := range points {
		features[i] = Feature{
			Type: "Feature",
			Geometry: Geometry{
				Type:        "Point",
				Coordinates: [2]float64{p.Longitude(), p.Latitude()},
			},
			Properties: FeatureProperties{
				Reflectivity:  p.Reflectivity(),
				Precipitation: p.Precipitation(),
				Color:         p.Color(),
				Source:        p.Source(),
			},
		}
	}
	return features
}

// NewFeatureCollection renders a snapshot.
func NewFeatureCollection(snap radar.Snapshot) FeatureCollection {
	return FeatureCollection{
		Type:     "FeatureCollection",
		Features: toFeatures(snap.Points),
		Metadata: Metadata{
			Timestamp:   &snap.Timestamp,
			Source:      snap.SourceLabel,
			TotalPoints: snap.TotalPoints(),
			Bounds:      snap.Bounds,
		},
	}
}
