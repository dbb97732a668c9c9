// Command genfixture writes a gzipped GRIB2 file shaped like an MRMS product.
// Synthetic storm systems are rasterized onto a regular CONUS grid and
// encoded as a reflectivity field plus a precipitation-rate field, so the
// decoder's reflectivity passthrough and non-reflectivity scaling both run.
//
// Usage:
//
//	go run ./cmd/genfixture -out testdata/MRMS_BREF_latest.grib2.gz -seed 42
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"time"

	"github.com/couchcryptid/storm-radar-service/internal/grib"
	"github.com/couchcryptid/storm-radar-service/internal/radar"
	"github.com/couchcryptid/storm-radar-service/internal/synthetic"
)

// fixtureTime is the reference time stamped into every message.
var fixtureTime = time.Date(2024, time.May, 20, 18, 0, 0, 0, time.UTC)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the gzipped GRIB2 fixture")
	seed := flag.Uint64("seed", 1, "random seed for the synthetic storm systems")
	resolution := flag.Float64("resolution", 0.5, "grid spacing in degrees")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if *resolution <= 0 {
		return fmt.Errorf("resolution must be positive, got %v", *resolution)
	}

	gen := synthetic.New(synthetic.ModeRegional, nil, rand.New(rand.NewPCG(*seed, *seed)))
	points := gen.Generate()

	msgs, err := buildMessages(points, *resolution, fixtureTime)
	if err != nil {
		return err
	}
	data, err := grib.EncodeGzip(msgs...)
	if err != nil {
		return fmt.Errorf("encode fixture: %w", err)
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", *out, err)
	}

	g := msgs[0].Grid
	log.Printf("wrote %s: %d synthetic points on a %dx%d grid, %d bytes", *out, len(points), g.Ni, g.Nj, len(data))
	return nil
}

// buildMessages rasterizes points onto a CONUS grid with spacing res. Each
// cell keeps the strongest reflectivity that falls in it; empty cells are
// missing. Longitudes are written in the 0-360 convention MRMS uses.
func buildMessages(points []radar.RadarPoint, res float64, ref time.Time) ([]grib.Message, error) {
	b := radar.CONUS
	grid := grib.Grid{
		Ni:  int(math.Round((b.MaxLon-b.MinLon)/res)) + 1,
		Nj:  int(math.Round((b.MaxLat-b.MinLat)/res)) + 1,
		La1: b.MaxLat,
		Lo1: b.MinLon + 360,
		Di:  res,
		Dj:  res,
	}

	dbz := make([]float64, grid.Ni*grid.Nj)
	for i := range dbz {
		dbz[i] = math.NaN()
	}
	for _, p := range points {
		i := int(math.Round((p.Longitude() - b.MinLon) / res))
		j := int(math.Round((b.MaxLat - p.Latitude()) / res))
		if i < 0 || i >= grid.Ni || j < 0 || j >= grid.Nj {
			continue
		}
		k := j*grid.Ni + i
		if math.IsNaN(dbz[k]) || p.Reflectivity() > dbz[k] {
			dbz[k] = p.Reflectivity()
		}
	}

	// precipitation rate is written so that the decoder's x10 scaling maps it
	// back near the reflectivity it came from
	rate := make([]float64, len(dbz))
	for i, v := range dbz {
		rate[i] = v / 10
	}

	msgs := make([]grib.Message, 0, 2)
	for _, f := range []struct {
		name    string
		values  []float64
		decimal int
	}{
		{"BREF_1HR_MAX", dbz, 1},
		{"PrecipRate", rate, 2},
	} {
		d, c, n, ok := grib.ParameterCodes(f.name)
		if !ok {
			return nil, fmt.Errorf("no parameter codes for %s", f.name)
		}
		msgs = append(msgs, grib.Message{
			Discipline:   d,
			Category:     c,
			Number:       n,
			Reference:    ref,
			Grid:         grid,
			Values:       f.values,
			DecimalScale: f.decimal,
		})
	}
	return msgs, nil
}
