package grib

import (
	"math"
	"testing"

	"github.com/couchcryptid/storm-radar-service/internal/radar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniformField(name string, n int, value float64) Field {
	f := Field{
		Name:       name,
		Values:     make([]float64, n),
		GridPoints: n,
	}
	f.Coord = func(i int) (float64, float64) {
		return 30 + float64(i%100)*0.1, 260 + float64(i/100)*0.1
	}
	for i := range n {
		f.Values[i] = value
	}
	return f
}

func listCoords(lats, lons []float64) func(int) (float64, float64) {
	return func(i int) (float64, float64) { return lats[i], lons[i] }
}

func TestStride(t *testing.T) {
	tests := []struct {
		n, want int
	}{
		{0, 1},
		{999, 1},
		{1000, 1},
		{1999, 1},
		{2000, 2},
		{2500, 2},
		{1_000_000, 1000},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Stride(tt.n), "n=%d", tt.n)
	}
}

func TestSampleField_Thinning(t *testing.T) {
	for _, n := range []int{10, 1000, 2500, 7000} {
		f := uniformField("MergedReflectivityQC", n, 30)
		points := SampleField(f)

		stride := Stride(n)
		assert.LessOrEqual(t, len(points), (n+stride-1)/stride, "n=%d", n)
		assert.NotEmpty(t, points)
	}
}

func TestSampleField_KeepsIndexOrder(t *testing.T) {
	f := uniformField("REFC", 4000, 30)
	points := SampleField(f)
	require.Len(t, points, 1000)

	for i := 1; i < len(points); i++ {
		prev, cur := points[i-1], points[i]
		before := prev.Longitude() < cur.Longitude() ||
			(prev.Longitude() == cur.Longitude() && prev.Latitude() < cur.Latitude())
		assert.True(t, before, "point %d out of order", i)
	}
}

func TestSampleField_ScalesNonReflectivity(t *testing.T) {
	f := uniformField("PRATE", 3, 0)
	f.Values = []float64{0.5, 3, 9}

	points := SampleField(f)
	require.Len(t, points, 3)
	assert.InDelta(t, 5, points[0].Reflectivity(), 1e-9)
	assert.InDelta(t, 30, points[1].Reflectivity(), 1e-9)
	assert.InDelta(t, 70, points[2].Reflectivity(), 1e-9)
	assert.Equal(t, radar.PrecipExtreme, points[2].Precipitation())
}

func TestSampleField_ReflectivityPassesThrough(t *testing.T) {
	f := uniformField("MergedBaseReflectivityQC", 1, 75)
	points := SampleField(f)
	require.Len(t, points, 1)
	assert.Equal(t, 75.0, points[0].Reflectivity())
}

func TestSampleField_DropsInvalidValues(t *testing.T) {
	f := uniformField("REFC", 4, 0)
	f.Values = []float64{math.NaN(), math.Inf(1), -5, 0}

	points := SampleField(f)
	require.Len(t, points, 1)
	assert.Equal(t, 0.0, points[0].Reflectivity())
	assert.Equal(t, radar.PrecipNone, points[0].Precipitation())
}

func TestSampleField_AllPointsInsideCONUS(t *testing.T) {
	f := uniformField("REFC", 5, 20)
	f.Coord = listCoords([]float64{10, 35, 35, 55, 35}, []float64{260, 260, 200, 260, -80})

	points := SampleField(f)
	require.Len(t, points, 2)
	for _, p := range points {
		assert.True(t, radar.CONUS.Contains(p.Latitude(), p.Longitude()))
		assert.LessOrEqual(t, p.Longitude(), 180.0)
	}
}

func TestSampleField_ComputesCoordinatesOnlyForSampledIndices(t *testing.T) {
	f := uniformField("REFC", 1_000_000, 30)
	grid := f.Coord
	calls := 0
	f.Coord = func(i int) (float64, float64) {
		calls++
		return grid(i)
	}

	points := SampleField(f)
	assert.NotEmpty(t, points)
	assert.Equal(t, 1000, calls)
}
