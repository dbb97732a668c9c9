package grib

import (
	"math"

	"github.com/couchcryptid/storm-radar-service/internal/radar"
)

const (
	// MaxPointsPerField is the thinning target for one field.
	MaxPointsPerField = 1000

	// nonReflectivityScale converts non-dBZ fields into a dBZ-like range.
	nonReflectivityScale = 10.0
	maxReflectivity      = 70.0
)

// Stride is the sampling step for a field of n values:
// max(1, floor(n / MaxPointsPerField)).
func Stride(n int) int {
	if s := n / MaxPointsPerField; s > 1 {
		return s
	}
	return 1
}

// SampleField thins f by Stride, drops missing or negative values and points
// outside radar.CONUS, and classifies the rest with radar.FiveBand. Emitted
// points keep the field's index order. Coordinates are computed only for the
// sampled indices. f must be Complete.
func SampleField(f Field) []radar.RadarPoint {
	n := len(f.Values)
	stride := Stride(n)
	passthrough := IsReflectivity(f.Name)

	points := make([]radar.RadarPoint, 0, n/stride+1)
	for i := 0; i < n; i += stride {
		v := f.Values[i]
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			continue
		}
		if !passthrough {
			v = math.Min(math.Max(v*nonReflectivityScale, 0), maxReflectivity)
		}

		lat, lon := f.Coord(i)
		lon = radar.NormalizeLongitude(lon)
		if math.IsNaN(lat) || math.IsNaN(lon) || !radar.CONUS.Contains(lat, lon) {
			continue
		}
		points = append(points, radar.NewPoint(lat, lon, v, radar.FiveBand, radar.SourceDecodedGrid, f.Name))
	}
	return points
}
