// Command validate decodes a gridded radar file phase by phase and checks the
// decoder's output invariants: every emitted point is finite, inside CONUS,
// classified consistently with its reflectivity, and no field yields more
// points than its sampling stride allows.
//
// Usage:
//
//	go run ./cmd/validate -file testdata/MRMS_BREF_latest.grib2.gz
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"

	"github.com/couchcryptid/storm-radar-service/internal/grib"
	"github.com/couchcryptid/storm-radar-service/internal/radar"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	file := flag.String("file", "", "path to a GRIB2 file, gzipped or raw")
	flag.Parse()

	if *file == "" {
		flag.Usage()
		os.Exit(1)
	}

	raw, err := os.ReadFile(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read %s: %v\n", *file, err)
		os.Exit(1)
	}

	os.Exit(run(os.Stdout, raw))
}

func run(out io.Writer, raw []byte) int {
	fmt.Fprintln(out, "=== Radar Grid Decode Validation ===")
	fmt.Fprintln(out)

	var (
		data    []byte
		fields  []grib.Field
		sampled int
	)
	phases := []*phase{
		validateDecompression(raw, &data),
	}
	if phases[0].passed() {
		phases = append(phases, validateParsing(data, &fields))
	}
	if len(fields) > 0 {
		phases = append(phases,
			validateFieldArrays(fields),
			validateSampling(fields, &sampled),
			validateDecoder(raw, sampled),
		)
	}

	// ── Report results ──
	fmt.Fprintln(out)
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Payload: %d bytes raw, %d bytes decompressed, %d fields, %d points\n",
		len(raw), len(data), len(fields), sampled)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

// ── Phase 1: Decompression ──

func validateDecompression(raw []byte, data *[]byte) *phase {
	p := &phase{name: "Phase 1: Decompression"}

	out, err := grib.Decompress(raw)
	if err != nil {
		p.errorf("%v", err)
		return p
	}
	if !bytes.HasPrefix(out, []byte("GRIB")) {
		p.errorf("decompressed payload does not start with GRIB magic")
	}
	*data = out
	return p
}

// ── Phase 2: GRIB2 Parsing ──

func validateParsing(data []byte, fields *[]grib.Field) *phase {
	p := &phase{name: "Phase 2: GRIB2 Parsing"}

	parsed, err := grib.ParseFields(data)
	if err != nil {
		p.errorf("%v", err)
		return p
	}
	complete := 0
	for _, f := range parsed {
		if f.Complete() {
			complete++
		}
	}
	if complete == 0 {
		p.errorf("none of %d fields has values and coordinates", len(parsed))
	}
	*fields = parsed
	return p
}

// ── Phase 3: Field Arrays ──
// Coordinates must be in range and values finite or NaN (missing).

func validateFieldArrays(fields []grib.Field) *phase {
	p := &phase{name: "Phase 3: Field Arrays"}

	for _, f := range fields {
		if !f.Complete() {
			continue
		}
		for i := range f.Values {
			if math.IsInf(f.Values[i], 0) {
				p.errorf("%s[%d]: infinite value", f.Name, i)
			}
			lat, lon := f.Coord(i)
			if lat < -90 || lat > 90 {
				p.errorf("%s[%d]: latitude %.4f out of range", f.Name, i, lat)
			}
			if lon < -180 || lon >= 360 {
				p.errorf("%s[%d]: longitude %.4f out of range", f.Name, i, lon)
			}
		}
	}
	return p
}

// ── Phase 4: Sampling ──

func validateSampling(fields []grib.Field, total *int) *phase {
	p := &phase{name: "Phase 4: Sampling and Classification"}

	for _, f := range fields {
		if !f.Complete() {
			continue
		}
		points := grib.SampleField(f)
		*total += len(points)

		n, stride := len(f.Values), grib.Stride(len(f.Values))
		if limit := (n + stride - 1) / stride; len(points) > limit {
			p.errorf("%s: %d points exceeds stride limit %d", f.Name, len(points), limit)
		}
		for i, pt := range points {
			checkPoint(p, f, i, pt)
		}
	}
	return p
}

func checkPoint(p *phase, f grib.Field, i int, pt radar.RadarPoint) {
	if !pt.Finite() {
		p.errorf("%s point %d: non-finite values", f.Name, i)
		return
	}
	if !radar.CONUS.Contains(pt.Latitude(), pt.Longitude()) {
		p.errorf("%s point %d: (%.4f, %.4f) outside CONUS", f.Name, i, pt.Latitude(), pt.Longitude())
	}
	if pt.Reflectivity() < 0 {
		p.errorf("%s point %d: negative reflectivity %.2f", f.Name, i, pt.Reflectivity())
	}
	if !grib.IsReflectivity(f.Name) && pt.Reflectivity() > 70 {
		p.errorf("%s point %d: scaled value %.2f above 70", f.Name, i, pt.Reflectivity())
	}
	want := radar.FiveBand.Classify(pt.Reflectivity())
	if pt.Precipitation() != want.Precipitation || pt.Color() != want.Color {
		p.errorf("%s point %d: %.2f dBZ classified %s/%s, want %s/%s", f.Name, i, pt.Reflectivity(),
			pt.Precipitation(), pt.Color(), want.Precipitation, want.Color)
	}
	if pt.OriginField() != f.Name {
		p.errorf("%s point %d: origin field %q", f.Name, i, pt.OriginField())
	}
}

// ── Phase 5: Decoder ──
// The full decoder must agree with the per-field phases.

func validateDecoder(raw []byte, sampled int) *phase {
	p := &phase{name: "Phase 5: Decoder End-to-End"}

	points, err := grib.NewDecoder(slog.New(slog.NewTextHandler(io.Discard, nil))).Decode(raw)
	if err != nil {
		p.errorf("%v", err)
		return p
	}
	if len(points) != sampled {
		p.errorf("decoder emitted %d points, sampling phase %d", len(points), sampled)
	}
	return p
}
