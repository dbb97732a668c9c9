package breaker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/storm-radar-service/internal/radar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	calls  int
	err    error
	points []radar.RadarPoint
}

func (s *stubFetcher) Name() string { return "stub" }

func (s *stubFetcher) Fetch(context.Context) ([]radar.RadarPoint, error) {
	s.calls++
	return s.points, s.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSource_OpensAfterConsecutiveFailures(t *testing.T) {
	inner := &stubFetcher{err: errors.New("upstream down")}
	src := Wrap(inner, Settings{ConsecutiveFailures: 2, OpenTimeout: time.Hour}, quietLogger())

	for range 2 {
		_, err := src.Fetch(context.Background())
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrOpen)
	}

	_, err := src.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrOpen)
	assert.Equal(t, 2, inner.calls, "open circuit must not reach the source")
	assert.Equal(t, "open", src.State())
}

func TestSource_HalfOpenRecovers(t *testing.T) {
	inner := &stubFetcher{err: errors.New("upstream down")}
	src := Wrap(inner, Settings{ConsecutiveFailures: 1, OpenTimeout: 20 * time.Millisecond}, quietLogger())

	_, err := src.Fetch(context.Background())
	require.Error(t, err)
	require.Equal(t, "open", src.State())

	time.Sleep(40 * time.Millisecond)
	inner.err = nil
	inner.points = []radar.RadarPoint{radar.NewPoint(35, -97, 20, radar.FiveBand, radar.SourceViewerProduct, "")}

	points, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, points, 1)
	assert.Equal(t, "closed", src.State())
}

func TestSource_EmptyResultIsSuccess(t *testing.T) {
	inner := &stubFetcher{}
	src := Wrap(inner, Settings{ConsecutiveFailures: 1}, quietLogger())

	for range 3 {
		points, err := src.Fetch(context.Background())
		require.NoError(t, err)
		assert.Empty(t, points)
	}
	assert.Equal(t, "closed", src.State())
	assert.Equal(t, "stub", src.Name())
}
