package synthetic

import (
	"math"

	"github.com/couchcryptid/storm-radar-service/internal/radar"
)

const (
	pointsPerDegree = 50
	positionJitter  = 0.25
	reflectivityMin = 10.0
)

type pattern int

const (
	patternRing pattern = iota
	patternScatter
	patternLine
)

type system struct {
	lat, lon  float64
	intensity float64
	size      float64
	heading   float64
}

// regionalSystems places 3 to 6 systems with intensity in [20,50) dBZ and
// size in [3,11) degrees. Reflectivity decays linearly from the centre; only
// points above 10 dBZ inside CONUS are kept.
func (g *Generator) regionalSystems() []radar.RadarPoint {
	n := 3 + g.rng.IntN(4)
	var points []radar.RadarPoint
	for range n {
		s := system{
			lat:       g.uniform(radar.CONUS.MinLat, radar.CONUS.MaxLat),
			lon:       g.uniform(radar.CONUS.MinLon, radar.CONUS.MaxLon),
			intensity: g.uniform(20, 50),
			size:      g.uniform(3, 11),
			heading:   g.uniform(0, math.Pi),
		}
		points = append(points, g.scatterSystem(s)...)
	}
	return points
}

func (g *Generator) scatterSystem(s system) []radar.RadarPoint {
	count := int(pointsPerDegree * s.size)
	points := make([]radar.RadarPoint, 0, count)
	for range count {
		dLat, dLon := g.offset(pattern(g.rng.IntN(3)), s)
		dLat += g.uniform(-positionJitter, positionJitter)
		dLon += g.uniform(-positionJitter, positionJitter)

		dist := math.Hypot(dLat, dLon)
		dbz := s.intensity*(1-dist/s.size) + g.uniform(-5, 5)
		lat, lon := s.lat+dLat, s.lon+dLon
		if dbz <= reflectivityMin || !radar.CONUS.Contains(lat, lon) {
			continue
		}
		points = append(points, radar.NewPoint(lat, lon, dbz, radar.FiveBand, radar.SourceSynthetic, "regional"))
	}
	return points
}

func (g *Generator) offset(p pattern, s system) (float64, float64) {
	half := s.size / 2
	switch p {
	case patternRing:
		angle := g.uniform(0, 2*math.Pi)
		r := half * g.uniform(0.6, 1)
		return r * math.Sin(angle), r * math.Cos(angle)
	case patternLine:
		t := g.uniform(-half, half)
		across := g.uniform(-0.3, 0.3)
		sin, cos := math.Sincos(s.heading)
		return t*sin + across*cos, t*cos - across*sin
	default:
		return g.uniform(-half, half), g.uniform(-half, half)
	}
}
