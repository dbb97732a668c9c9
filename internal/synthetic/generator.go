// Package synthetic produces plausible radar point sets when no live source
// answers. Output is always non-empty and inside radar.CONUS.
package synthetic

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/couchcryptid/storm-radar-service/internal/radar"
)

// Mode selects how points are laid out.
type Mode string

const (
	// ModeRegional scatters 3 to 6 weather systems across the continent.
	ModeRegional Mode = "regional"
	// ModeStations places a small local pattern around each station.
	ModeStations Mode = "stations"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeRegional, ModeStations:
		return m, nil
	default:
		return "", fmt.Errorf("unknown synthetic mode %q", s)
	}
}

// Generator is safe for concurrent use.
type Generator struct {
	mode     Mode
	stations []radar.Station

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a Generator. A nil rng is seeded randomly.
func New(mode Mode, stations []radar.Station, rng *rand.Rand) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Generator{mode: mode, stations: stations, rng: rng}
}

// Name is the source label reported for synthetic snapshots.
func (g *Generator) Name() string { return "synthetic-" + string(g.mode) }

// Generate returns a non-empty point set for the configured mode.
func (g *Generator) Generate() []radar.RadarPoint {
	g.mu.Lock()
	defer g.mu.Unlock()

	var points []radar.RadarPoint
	if g.mode == ModeStations && len(g.stations) > 0 {
		points = g.stationPatterns()
	}
	for attempt := 0; len(points) == 0 && attempt < 3; attempt++ {
		points = g.regionalSystems()
	}
	if len(points) == 0 {
		lat := (radar.CONUS.MinLat + radar.CONUS.MaxLat) / 2
		lon := (radar.CONUS.MinLon + radar.CONUS.MaxLon) / 2
		points = []radar.RadarPoint{radar.NewPoint(lat, lon, 15, radar.FiveBand, radar.SourceSynthetic, "")}
	}
	return points
}

func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}
