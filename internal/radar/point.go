package radar

import (
	"encoding/json"
	"math"
)

// Source records which kind of producer emitted a point. It is provenance
// for debugging only.
type Source string

const (
	SourceDecodedGrid    Source = "decoded-grid"
	SourceViewerProduct  Source = "viewer-product"
	SourceDerivedStation Source = "derived-station"
	SourceSynthetic      Source = "synthetic"
)

// RadarPoint is a classified reflectivity sample. Fields are read-only so
// precipitation and color always match the reflectivity under the point's
// policy.
type RadarPoint struct {
	lat    float64
	lon    float64
	dbz    float64
	class  Classification
	policy string
	source Source
	field  string
}

// NewPoint classifies dbz with policy and returns the resulting point.
func NewPoint(lat, lon, dbz float64, policy Policy, source Source, originField string) RadarPoint {
	return RadarPoint{
		lat:    lat,
		lon:    lon,
		dbz:    dbz,
		class:  policy.Classify(dbz),
		policy: policy.Name(),
		source: source,
		field:  originField,
	}
}

// Latitude is the point latitude in degrees.
func (p RadarPoint) Latitude() float64 {
	return p.lat
}

// Longitude is the point longitude in degrees.
func (p RadarPoint) Longitude() float64 {
	return p.lon
}

// Reflectivity is the point intensity in dBZ.
func (p RadarPoint) Reflectivity() float64 {
	return p.dbz
}

// Precipitation is the category assigned by the point's policy.
func (p RadarPoint) Precipitation() Precipitation {
	return p.class.Precipitation
}

// Color is the hex display color for the category.
func (p RadarPoint) Color() string {
	return p.class.Color
}

// Policy names the classification policy that was applied.
func (p RadarPoint) Policy() string {
	return p.policy
}

// Source records which acquisition path produced the point.
func (p RadarPoint) Source() Source {
	return p.source
}

// OriginField is the grid field or pattern the point came from.
func (p RadarPoint) OriginField() string {
	return p.field
}

// Finite reports whether all numeric fields are finite.
func (p RadarPoint) Finite() bool {
	return isFinite(p.lat) && isFinite(p.lon) && isFinite(p.dbz)
}

type pointJSON struct {
	Latitude      float64       `json:"latitude"`
	Longitude     float64       `json:"longitude"`
	Reflectivity  float64       `json:"reflectivity"`
	Precipitation Precipitation `json:"precipitation"`
	Color         string        `json:"color"`
	Policy        string        `json:"policy"`
	Source        Source        `json:"source"`
	OriginField   string        `json:"origin_field,omitempty"`
}

// MarshalJSON emits the public point shape.
func (p RadarPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(pointJSON{
		Latitude:      p.lat,
		Longitude:     p.lon,
		Reflectivity:  p.dbz,
		Precipitation: p.class.Precipitation,
		Color:         p.class.Color,
		Policy:        p.policy,
		Source:        p.source,
		OriginField:   p.field,
	})
}

// UnmarshalJSON rebuilds the point from its reflectivity and policy; any
// precipitation or color in the payload is ignored.
func (p *RadarPoint) UnmarshalJSON(data []byte) error {
	var raw pointJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	policy, _ := PolicyByName(raw.Policy)
	*p = NewPoint(raw.Latitude, raw.Longitude, raw.Reflectivity, policy, raw.Source, raw.OriginField)
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
