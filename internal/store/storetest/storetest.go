// Package storetest is the behavioural suite every store.Store backend runs.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/couchcryptid/storm-radar-service/internal/radar"
	"github.com/couchcryptid/storm-radar-service/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store. Run closes it.
type Factory func(t *testing.T) store.Store

var base = time.Date(2024, 5, 20, 18, 0, 0, 0, time.UTC)

// Snapshot builds a test snapshot at base+offset.
func Snapshot(id string, offset time.Duration, points ...radar.RadarPoint) radar.Snapshot {
	return radar.Snapshot{
		ID:          id,
		Timestamp:   base.Add(offset),
		SourceLabel: "mrms",
		Bounds:      radar.Extent(points),
		Points:      points,
	}
}

func pointsFixture() []radar.RadarPoint {
	return []radar.RadarPoint{
		radar.NewPoint(35.25, -97.5, 42.5, radar.FiveBand, radar.SourceDecodedGrid, "BREF_1HR_MAX"),
		radar.NewPoint(41.5, -88.0, 12, radar.ThreeBand, radar.SourceDerivedStation, "KLOT"),
		radar.NewPoint(30.0, -90.0, 55, radar.FiveBand, radar.SourceSynthetic, ""),
	}
}

// Run executes the suite against fresh stores from newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"LatestEmpty", testLatestEmpty},
		{"RoundTrip", testRoundTrip},
		{"LatestIsMaxTimestamp", testLatestIsMaxTimestamp},
		{"PointsInBounds", testPointsInBounds},
		{"PointsInBoundsAtTimestamp", testPointsInBoundsAtTimestamp},
		{"InvalidBounds", testInvalidBounds},
		{"DeleteBefore", testDeleteBefore},
		{"Ping", testPing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

func testLatestEmpty(t *testing.T, s store.Store) {
	_, err := s.Latest(context.Background())
	assert.True(t, errors.Is(err, store.ErrNotFound), "got %v", err)

	_, err = s.PointsInBounds(context.Background(), store.Query{Bounds: radar.CONUS})
	assert.True(t, errors.Is(err, store.ErrNotFound), "got %v", err)
}

func testRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	in := Snapshot("snap-1", 0, pointsFixture()...)
	require.NoError(t, s.StoreSnapshot(ctx, in))

	got, err := s.Latest(ctx)
	require.NoError(t, err)

	assert.Equal(t, in.ID, got.ID)
	assert.True(t, in.Timestamp.Equal(got.Timestamp), "timestamp %v != %v", got.Timestamp, in.Timestamp)
	assert.Equal(t, in.SourceLabel, got.SourceLabel)
	assert.Equal(t, in.Bounds, got.Bounds)
	require.Len(t, got.Points, len(in.Points))
	for i, want := range in.Points {
		p := got.Points[i]
		assert.Equal(t, want.Latitude(), p.Latitude())
		assert.Equal(t, want.Longitude(), p.Longitude())
		assert.Equal(t, want.Reflectivity(), p.Reflectivity())
		assert.Equal(t, want.Precipitation(), p.Precipitation())
		assert.Equal(t, want.Color(), p.Color())
		assert.Equal(t, want.Policy(), p.Policy())
		assert.Equal(t, want.Source(), p.Source())
		assert.Equal(t, want.OriginField(), p.OriginField())
	}
}

func testLatestIsMaxTimestamp(t *testing.T, s store.Store) {
	ctx := context.Background()
	pts := pointsFixture()
	require.NoError(t, s.StoreSnapshot(ctx, Snapshot("newer", 10*time.Minute, pts[0])))
	require.NoError(t, s.StoreSnapshot(ctx, Snapshot("older", 0, pts[1], pts[2])))

	got, err := s.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "newer", got.ID)
	assert.Len(t, got.Points, 1)
}

func testPointsInBounds(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.StoreSnapshot(ctx, Snapshot("old", 0, pointsFixture()...)))
	require.NoError(t, s.StoreSnapshot(ctx, Snapshot("new", 10*time.Minute, pointsFixture()[:2]...)))

	got, err := s.PointsInBounds(ctx, store.Query{
		Bounds: radar.Bounds{MinLat: 29, MaxLat: 36, MinLon: -98, MaxLon: -89},
	})
	require.NoError(t, err)
	require.Len(t, got, 1, "only the latest snapshot is searched")
	assert.Equal(t, 35.25, got[0].Latitude())

	got, err = s.PointsInBounds(ctx, store.Query{Bounds: radar.Bounds{MinLat: 0, MaxLat: 1, MinLon: 0, MaxLon: 1}})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testPointsInBoundsAtTimestamp(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.StoreSnapshot(ctx, Snapshot("old", 0, pointsFixture()...)))
	require.NoError(t, s.StoreSnapshot(ctx, Snapshot("new", 10*time.Minute, pointsFixture()[:1]...)))

	got, err := s.PointsInBounds(ctx, store.Query{Bounds: radar.CONUS, Timestamp: base})
	require.NoError(t, err)
	assert.Len(t, got, 3)

	_, err = s.PointsInBounds(ctx, store.Query{Bounds: radar.CONUS, Timestamp: base.Add(time.Minute)})
	assert.True(t, errors.Is(err, store.ErrNotFound), "got %v", err)
}

func testInvalidBounds(t *testing.T, s store.Store) {
	require.NoError(t, s.StoreSnapshot(context.Background(), Snapshot("a", 0, pointsFixture()...)))

	_, err := s.PointsInBounds(context.Background(), store.Query{
		Bounds: radar.Bounds{MinLat: 40, MaxLat: 30, MinLon: -100, MaxLon: -90},
	})
	require.Error(t, err)
	assert.False(t, errors.Is(err, store.ErrNotFound))
}

func testDeleteBefore(t *testing.T, s store.Store) {
	ctx := context.Background()
	pts := pointsFixture()
	require.NoError(t, s.StoreSnapshot(ctx, Snapshot("a", 0, pts...)))
	require.NoError(t, s.StoreSnapshot(ctx, Snapshot("b", time.Hour, pts...)))
	require.NoError(t, s.StoreSnapshot(ctx, Snapshot("c", 2*time.Hour, pts...)))

	n, err := s.DeleteBefore(ctx, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.PointsInBounds(ctx, store.Query{Bounds: radar.CONUS, Timestamp: base})
	assert.True(t, errors.Is(err, store.ErrNotFound), "deleted snapshot points must be gone")

	got, err := s.PointsInBounds(ctx, store.Query{Bounds: radar.CONUS, Timestamp: base.Add(time.Hour)})
	require.NoError(t, err)
	assert.Len(t, got, 3)

	n, err = s.DeleteBefore(ctx, base)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testPing(t *testing.T, s store.Store) {
	assert.NoError(t, s.Ping(context.Background()))
}
