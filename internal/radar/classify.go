package radar

import "math"

// Precipitation is the coarse intensity category derived from reflectivity.
type Precipitation string

const (
	PrecipNone     Precipitation = "none"
	PrecipLight    Precipitation = "light"
	PrecipModerate Precipitation = "moderate"
	PrecipHeavy    Precipitation = "heavy"
	PrecipExtreme  Precipitation = "extreme"
)

// Rank orders categories from none (0) to extreme (4). Unknown values rank -1.
func (p Precipitation) Rank() int {
	switch p {
	case PrecipNone:
		return 0
	case PrecipLight:
		return 1
	case PrecipModerate:
		return 2
	case PrecipHeavy:
		return 3
	case PrecipExtreme:
		return 4
	default:
		return -1
	}
}

// Classification is the pair of derived fields for one reflectivity value.
type Classification struct {
	Precipitation Precipitation
	Color         string
}

// band is one row of a breakpoint table. lower is inclusive.
type band struct {
	lower  float64
	precip Precipitation
	color  string
}

// Policy maps reflectivity to a Classification using an ordered breakpoint
// table. The zero Policy is not usable; use FiveBand or ThreeBand.
type Policy struct {
	name  string
	bands []band
}

var (
	// FiveBand is the fine-grained table used for measured reflectivity.
	FiveBand = Policy{
		name: "five-band",
		bands: []band{
			{lower: math.Inf(-1), precip: PrecipNone, color: "#ffffff"},
			{lower: 10, precip: PrecipLight, color: "#00ff00"},
			{lower: 20, precip: PrecipModerate, color: "#ffff00"},
			{lower: 30, precip: PrecipHeavy, color: "#ff8000"},
			{lower: 40, precip: PrecipExtreme, color: "#ff0000"},
			{lower: 50, precip: PrecipExtreme, color: "#800080"},
		},
	}

	// ThreeBand is the coarse table used for estimated reflectivity. It has
	// three precipitation classes but four colors; the 45 dBZ cutoff only
	// changes the color.
	ThreeBand = Policy{
		name: "three-band",
		bands: []band{
			{lower: math.Inf(-1), precip: PrecipLight, color: "#00ff00"},
			{lower: 20, precip: PrecipModerate, color: "#ffff00"},
			{lower: 35, precip: PrecipHeavy, color: "#ff8000"},
			{lower: 45, precip: PrecipHeavy, color: "#ff0000"},
		},
	}
)

// Name identifies the policy in storage and logs.
func (p Policy) Name() string { return p.name }

// Classify returns the category and color for dbz. It is total: NaN falls
// into the lowest band.
func (p Policy) Classify(dbz float64) Classification {
	if len(p.bands) == 0 {
		return Classification{Precipitation: PrecipNone, Color: "#ffffff"}
	}
	for i := len(p.bands) - 1; i > 0; i-- {
		if dbz >= p.bands[i].lower {
			return Classification{Precipitation: p.bands[i].precip, Color: p.bands[i].color}
		}
	}
	return Classification{Precipitation: p.bands[0].precip, Color: p.bands[0].color}
}

// PolicyByName resolves a stored policy name. Unknown names resolve to
// FiveBand with ok=false.
func PolicyByName(name string) (Policy, bool) {
	switch name {
	case FiveBand.name:
		return FiveBand, true
	case ThreeBand.name:
		return ThreeBand, true
	default:
		return FiveBand, false
	}
}
