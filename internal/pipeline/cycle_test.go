package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/storm-radar-service/internal/acquisition"
	"github.com/couchcryptid/storm-radar-service/internal/observability"
	"github.com/couchcryptid/storm-radar-service/internal/pipeline"
	"github.com/couchcryptid/storm-radar-service/internal/radar"
	"github.com/couchcryptid/storm-radar-service/internal/store"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type stubAcquirer struct {
	res     acquisition.Result
	started chan struct{}
	release chan struct{}
}

func (s *stubAcquirer) AcquireLatest(_ context.Context) acquisition.Result {
	if s.started != nil {
		close(s.started)
		<-s.release
	}
	return s.res
}

type flakyStore struct {
	store.Store
	mu       sync.Mutex
	failures int
	calls    int
}

func (f *flakyStore) StoreSnapshot(ctx context.Context, snap radar.Snapshot) error {
	f.mu.Lock()
	f.calls++
	fail := f.calls <= f.failures
	f.mu.Unlock()
	if fail {
		return errors.New("database is locked")
	}
	return f.Store.StoreSnapshot(ctx, snap)
}

type recordingPublisher struct {
	published []radar.Snapshot
	err       error
}

func (r *recordingPublisher) Publish(_ context.Context, snap radar.Snapshot) error {
	r.published = append(r.published, snap)
	return r.err
}

var cycleStart = time.Date(2024, 5, 20, 18, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func acquiredPoints() acquisition.Result {
	return acquisition.Result{
		Source: "mrms",
		Points: []radar.RadarPoint{
			radar.NewPoint(35.0, -97.0, 25, radar.FiveBand, radar.SourceDecodedGrid, "BREF_1HR_MAX"),
			radar.NewPoint(40.0, -90.0, 45, radar.FiveBand, radar.SourceDecodedGrid, "BREF_1HR_MAX"),
		},
	}
}

// --- tests ---

func TestCycle_Run_StoresSnapshot(t *testing.T) {
	st := store.NewMemoryStore()
	pub := &recordingPublisher{}
	clock := clockwork.NewFakeClockAt(cycleStart)
	metrics := observability.NewMetricsForTesting()

	c := pipeline.New(&stubAcquirer{res: acquiredPoints()}, st, pub, clock, pipeline.Options{}, metrics, discardLogger())

	snap, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, cycleStart, snap.Timestamp)
	assert.Equal(t, "mrms", snap.SourceLabel)
	want := radar.Bounds{MinLat: 35, MaxLat: 40, MinLon: -97, MaxLon: -90}
	if diff := cmp.Diff(want, snap.Bounds); diff != "" {
		t.Errorf("bounds mismatch (-want +got):\n%s", diff)
	}

	latest, err := st.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, snap.ID, latest.ID)
	assert.Len(t, latest.Points, 2)

	require.Len(t, pub.published, 1)
	assert.Equal(t, snap.ID, pub.published[0].ID)

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Cycles.WithLabelValues("stored")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.SnapshotPoints), 0)
}

func TestCycle_Run_UniqueIDs(t *testing.T) {
	st := store.NewMemoryStore()
	clock := clockwork.NewFakeClockAt(cycleStart)
	c := pipeline.New(&stubAcquirer{res: acquiredPoints()}, st, nil, clock, pipeline.Options{}, observability.NewMetricsForTesting(), discardLogger())

	first, err := c.Run(context.Background())
	require.NoError(t, err)
	clock.Advance(10 * time.Minute)
	second, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.True(t, second.Timestamp.After(first.Timestamp))

	latest, err := st.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
}

func TestCycle_Readiness(t *testing.T) {
	c := pipeline.New(&stubAcquirer{res: acquiredPoints()}, store.NewMemoryStore(), nil,
		clockwork.NewFakeClockAt(cycleStart), pipeline.Options{}, observability.NewMetricsForTesting(), discardLogger())

	require.Error(t, c.CheckReadiness(context.Background()))

	_, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.NoError(t, c.CheckReadiness(context.Background()))
}

func TestCycle_Run_PublishFailureIsNotFatal(t *testing.T) {
	st := store.NewMemoryStore()
	pub := &recordingPublisher{err: errors.New("broker unavailable")}
	c := pipeline.New(&stubAcquirer{res: acquiredPoints()}, st, pub,
		clockwork.NewFakeClockAt(cycleStart), pipeline.Options{}, observability.NewMetricsForTesting(), discardLogger())

	snap, err := c.Run(context.Background())
	require.NoError(t, err)

	latest, err := st.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, snap.ID, latest.ID)
}

func TestCycle_Run_StoreFailure(t *testing.T) {
	st := &flakyStore{Store: store.NewMemoryStore(), failures: 10}
	metrics := observability.NewMetricsForTesting()
	pub := &recordingPublisher{}
	c := pipeline.New(&stubAcquirer{res: acquiredPoints()}, st, pub,
		clockwork.NewFakeClockAt(cycleStart), pipeline.Options{StoreRetries: -1}, metrics, discardLogger())

	_, err := c.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, st.calls, "negative retries disables retrying")
	assert.Empty(t, pub.published, "unstored snapshots are not published")
	assert.Error(t, c.CheckReadiness(context.Background()))
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Cycles.WithLabelValues("failed")), 0)
}

func TestCycle_Run_RetriesStoreWithBackoff(t *testing.T) {
	st := &flakyStore{Store: store.NewMemoryStore(), failures: 2}
	clock := clockwork.NewFakeClockAt(cycleStart)
	c := pipeline.New(&stubAcquirer{res: acquiredPoints()}, st, nil, clock,
		pipeline.Options{StoreRetries: 2, RetryBackoff: time.Second}, observability.NewMetricsForTesting(), discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		_, err := c.Run(ctx)
		errCh <- err
	}()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Second)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(2 * time.Second)

	require.NoError(t, <-errCh)
	assert.Equal(t, 3, st.calls)
}

func TestCycle_Run_SkipsOverlappingCycle(t *testing.T) {
	acq := &stubAcquirer{res: acquiredPoints(), started: make(chan struct{}), release: make(chan struct{})}
	metrics := observability.NewMetricsForTesting()
	c := pipeline.New(acq, store.NewMemoryStore(), nil,
		clockwork.NewFakeClockAt(cycleStart), pipeline.Options{}, metrics, discardLogger())

	errCh := make(chan error, 1)
	go func() {
		_, err := c.Run(context.Background())
		errCh <- err
	}()
	<-acq.started

	_, err := c.Run(context.Background())
	assert.ErrorIs(t, err, pipeline.ErrCycleRunning)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Cycles.WithLabelValues("skipped")), 0)

	close(acq.release)
	require.NoError(t, <-errCh)
}

func TestCycle_Cleanup(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	for i, age := range []time.Duration{30 * time.Hour, 25 * time.Hour, time.Hour} {
		require.NoError(t, st.StoreSnapshot(ctx, radar.Snapshot{
			ID:          string(rune('a' + i)),
			Timestamp:   cycleStart.Add(-age),
			SourceLabel: "mrms",
		}))
	}
	metrics := observability.NewMetricsForTesting()
	c := pipeline.New(&stubAcquirer{}, st, nil, clockwork.NewFakeClockAt(cycleStart),
		pipeline.Options{Retention: 24 * time.Hour}, metrics, discardLogger())

	n, err := c.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.RetentionDeleted), 0)

	latest, err := st.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "c", latest.ID)
}
