package main

import (
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/couchcryptid/storm-radar-service/internal/grib"
	"github.com/couchcryptid/storm-radar-service/internal/radar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessages_Rasterizes(t *testing.T) {
	points := []radar.RadarPoint{
		radar.NewPoint(49.0, -125.0, 30, radar.FiveBand, radar.SourceSynthetic, "regional"),
		radar.NewPoint(49.1, -124.9, 45, radar.FiveBand, radar.SourceSynthetic, "regional"),
		radar.NewPoint(24.0, -66.0, 12, radar.FiveBand, radar.SourceSynthetic, "regional"),
	}

	msgs, err := buildMessages(points, 1, fixtureTime)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	g := msgs[0].Grid
	assert.Equal(t, 60, g.Ni)
	assert.Equal(t, 26, g.Nj)
	assert.Equal(t, 235.0, g.Lo1)

	dbz := msgs[0].Values
	assert.Equal(t, 45.0, dbz[0], "strongest point wins the cell")
	assert.Equal(t, 12.0, dbz[len(dbz)-1])
	assert.True(t, math.IsNaN(dbz[1]))

	assert.InDelta(t, 4.5, msgs[1].Values[0], 1e-9)
}

func TestBuildMessages_Decodes(t *testing.T) {
	points := []radar.RadarPoint{
		radar.NewPoint(35.0, -97.0, 42, radar.FiveBand, radar.SourceSynthetic, "regional"),
	}
	// a coarse grid keeps the stride at 1 so the storm cell survives sampling
	msgs, err := buildMessages(points, 10, fixtureTime)
	require.NoError(t, err)

	raw, err := grib.EncodeGzip(msgs...)
	require.NoError(t, err)

	decoded, err := grib.NewDecoder(slog.New(slog.NewTextHandler(io.Discard, nil))).Decode(raw)
	require.NoError(t, err)
	require.Len(t, decoded, 2)

	assert.Equal(t, "BREF_1HR_MAX", decoded[0].OriginField())
	assert.Equal(t, "PrecipRate", decoded[1].OriginField())
	for _, p := range decoded {
		assert.Equal(t, 39.0, p.Latitude())
		assert.Equal(t, -95.0, p.Longitude())
		assert.InDelta(t, 42, p.Reflectivity(), 0.1)
		assert.Equal(t, radar.PrecipExtreme, p.Precipitation())
	}
}
