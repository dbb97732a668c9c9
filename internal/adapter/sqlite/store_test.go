package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/storm-radar-service/internal/radar"
	"github.com/couchcryptid/storm-radar-service/internal/store"
	"github.com/couchcryptid/storm-radar-service/internal/store/storetest"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", clockwork.NewFakeClockAt(time.Date(2024, 5, 20, 18, 5, 0, 0, time.UTC)))
	require.NoError(t, err)
	return s
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return openMemory(t) })
}

func TestStore_FileDatabaseSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "radar.db")
	clock := clockwork.NewFakeClock()

	s, err := Open(path, clock)
	require.NoError(t, err)
	p := radar.NewPoint(35, -97, 33, radar.FiveBand, radar.SourceDecodedGrid, "REFC")
	require.NoError(t, s.StoreSnapshot(context.Background(), storetest.Snapshot("persisted", 0, p)))
	require.NoError(t, s.Close())

	s, err = Open(path, clock)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "persisted", got.ID)
	require.Len(t, got.Points, 1)
	assert.Equal(t, radar.PrecipHeavy, got.Points[0].Precipitation())
}

func TestStore_FailedInsertLeavesNothingBehind(t *testing.T) {
	s := openMemory(t)
	defer s.Close()
	ctx := context.Background()

	p := radar.NewPoint(35, -97, 33, radar.FiveBand, radar.SourceDecodedGrid, "")
	require.NoError(t, s.StoreSnapshot(ctx, storetest.Snapshot("dup", 0, p)))
	// same primary key, later timestamp: the snapshot insert fails
	require.Error(t, s.StoreSnapshot(ctx, storetest.Snapshot("dup", time.Hour, p, p)))

	got, err := s.Latest(ctx)
	require.NoError(t, err)
	assert.True(t, got.Timestamp.Equal(storetest.Snapshot("", 0).Timestamp))
	assert.Len(t, got.Points, 1)

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM radar_points`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestStore_PersistsClassificationColumns(t *testing.T) {
	s := openMemory(t)
	defer s.Close()

	p := radar.NewPoint(35, -97, 52, radar.FiveBand, radar.SourceDecodedGrid, "")
	require.NoError(t, s.StoreSnapshot(context.Background(), storetest.Snapshot("a", 0, p)))

	var precip, color string
	var created int64
	require.NoError(t, s.db.QueryRow(`SELECT precipitation, color, created_at FROM radar_points`).Scan(&precip, &color, &created))
	assert.Equal(t, "extreme", precip)
	assert.Equal(t, "#800080", color)
	assert.Equal(t, time.Date(2024, 5, 20, 18, 5, 0, 0, time.UTC).UnixNano(), created)
}
