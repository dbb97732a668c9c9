package radar

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPoint_DerivesClassification(t *testing.T) {
	p := NewPoint(35.2, -97.4, 42, FiveBand, SourceDecodedGrid, "BREF_1HR_MAX")

	assert.Equal(t, 35.2, p.Latitude())
	assert.Equal(t, -97.4, p.Longitude())
	assert.Equal(t, 42.0, p.Reflectivity())
	assert.Equal(t, PrecipExtreme, p.Precipitation())
	assert.Equal(t, "#ff0000", p.Color())
	assert.Equal(t, "five-band", p.Policy())
	assert.Equal(t, SourceDecodedGrid, p.Source())
	assert.Equal(t, "BREF_1HR_MAX", p.OriginField())
}

func TestRadarPoint_UnmarshalIgnoresForgedClassification(t *testing.T) {
	payload := []byte(`{"latitude":30,"longitude":-90,"reflectivity":25,"precipitation":"extreme","color":"#000000","policy":"three-band","source":"derived-station"}`)

	var p RadarPoint
	require.NoError(t, json.Unmarshal(payload, &p))

	assert.Equal(t, PrecipModerate, p.Precipitation())
	assert.Equal(t, "#ffff00", p.Color())
	assert.Equal(t, SourceDerivedStation, p.Source())
}

func TestRadarPoint_MarshalShape(t *testing.T) {
	p := NewPoint(40, -100, 15, FiveBand, SourceSynthetic, "")
	data, err := json.Marshal(p)
	require.NoError(t, err)

	assert.JSONEq(t, `{"latitude":40,"longitude":-100,"reflectivity":15,"precipitation":"light","color":"#00ff00","policy":"five-band","source":"synthetic"}`, string(data))
}

func TestFilterCONUS(t *testing.T) {
	points := []RadarPoint{
		NewPoint(24.0, -125.0, 20, FiveBand, SourceSynthetic, ""),
		NewPoint(49.0, -66.0, 20, FiveBand, SourceSynthetic, ""),
		NewPoint(23.99, -100, 20, FiveBand, SourceSynthetic, ""),
		NewPoint(30, -65.9, 20, FiveBand, SourceSynthetic, ""),
		NewPoint(math.NaN(), -100, 20, FiveBand, SourceSynthetic, ""),
		NewPoint(30, -100, math.Inf(1), FiveBand, SourceSynthetic, ""),
	}

	kept := FilterCONUS(points)
	require.Len(t, kept, 2)
	assert.Equal(t, 24.0, kept[0].Latitude())
	assert.Equal(t, 49.0, kept[1].Latitude())
}

func TestExtent(t *testing.T) {
	assert.Equal(t, Bounds{}, Extent(nil))

	b := Extent([]RadarPoint{
		NewPoint(30, -100, 20, FiveBand, SourceSynthetic, ""),
		NewPoint(40, -90, 20, FiveBand, SourceSynthetic, ""),
		NewPoint(35, -110, 20, FiveBand, SourceSynthetic, ""),
	})
	assert.Equal(t, Bounds{MinLat: 30, MaxLat: 40, MinLon: -110, MaxLon: -90}, b)
	assert.True(t, b.Valid())
	assert.False(t, Bounds{MinLat: 10, MaxLat: 5}.Valid())
}

func TestNormalizeLongitude(t *testing.T) {
	assert.Equal(t, -100.0, NormalizeLongitude(260))
	assert.Equal(t, -100.0, NormalizeLongitude(-100))
	assert.Equal(t, 180.0, NormalizeLongitude(180))
}
