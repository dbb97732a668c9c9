package synthetic

import (
	"math"

	"github.com/couchcryptid/storm-radar-service/internal/radar"
)

// localPattern describes one per-station layout: how many points, how far
// they spread and how strong the centre is.
type localPattern struct {
	name      string
	minPoints int
	maxPoints int
	spread    float64
	minDBZ    float64
	maxDBZ    float64
	elongated bool
}

var localPatterns = []localPattern{
	{name: "cell", minPoints: 5, maxPoints: 12, spread: 0.3, minDBZ: 45, maxDBZ: 60},
	{name: "front", minPoints: 10, maxPoints: 24, spread: 1.5, minDBZ: 25, maxDBZ: 40, elongated: true},
	{name: "showers", minPoints: 5, maxPoints: 20, spread: 1.2, minDBZ: 12, maxDBZ: 28},
}

// stationPatterns emits 5 to 24 points around every station using a randomly
// chosen local pattern, classified with radar.ThreeBand.
func (g *Generator) stationPatterns() []radar.RadarPoint {
	var points []radar.RadarPoint
	for _, st := range g.stations {
		p := localPatterns[g.rng.IntN(len(localPatterns))]
		n := p.minPoints + g.rng.IntN(p.maxPoints-p.minPoints+1)
		peak := g.uniform(p.minDBZ, p.maxDBZ)
		heading := g.uniform(0, math.Pi)

		for range n {
			var dLat, dLon float64
			if p.elongated {
				t := g.uniform(-p.spread, p.spread)
				across := g.uniform(-0.15, 0.15)
				sin, cos := math.Sincos(heading)
				dLat, dLon = t*sin+across*cos, t*cos-across*sin
			} else {
				dLat = g.uniform(-p.spread, p.spread)
				dLon = g.uniform(-p.spread, p.spread)
			}

			falloff := math.Hypot(dLat, dLon) / (p.spread * math.Sqrt2)
			dbz := peak*(1-0.5*falloff) + g.uniform(-3, 3)
			dbz = math.Min(math.Max(dbz, 0), 70)

			lat := inside(st.Lat, dLat, radar.CONUS.MinLat, radar.CONUS.MaxLat)
			lon := inside(st.Lon, dLon, radar.CONUS.MinLon, radar.CONUS.MaxLon)
			points = append(points, radar.NewPoint(lat, lon, dbz, radar.ThreeBand, radar.SourceSynthetic, p.name))
		}
	}
	return points
}

// inside offsets centre by d, mirroring the offset when it would leave
// [lo, hi] and clamping a centre that is itself outside.
func inside(centre, d, lo, hi float64) float64 {
	v := centre + d
	if v < lo || v > hi {
		v = centre - d
	}
	return math.Min(math.Max(v, lo), hi)
}
