package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/storm-radar-service/internal/radar"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func testSnapshot() radar.Snapshot {
	points := []radar.RadarPoint{
		radar.NewPoint(35.0, -97.0, 35, radar.FiveBand, radar.SourceDecodedGrid, "BREF_1HR_MAX"),
		radar.NewPoint(36.0, -96.0, 12, radar.FiveBand, radar.SourceDecodedGrid, "BREF_1HR_MAX"),
	}
	return radar.Snapshot{
		ID:          "snap-1",
		Timestamp:   time.Date(2024, 5, 20, 18, 0, 0, 0, time.UTC),
		SourceLabel: "mrms",
		Bounds:      radar.Extent(points),
		Points:      points,
	}
}

func TestSerializeToMessage(t *testing.T) {
	snap := testSnapshot()

	msg, err := serializeToMessage(snap)
	require.NoError(t, err)

	assert.Equal(t, []byte("snap-1"), msg.Key)
	assert.Equal(t, snap.Timestamp, msg.Time)
	assert.Contains(t, string(msg.Value), `"source":"mrms"`)
	assert.Contains(t, string(msg.Value), `"precipitation":"heavy"`)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "source", msg.Headers[0].Key)
	assert.Equal(t, []byte("mrms"), msg.Headers[0].Value)
	assert.Equal(t, "total_points", msg.Headers[1].Key)
	assert.Equal(t, []byte("2"), msg.Headers[1].Value)
	assert.Equal(t, "snapshot_time", msg.Headers[2].Key)
	assert.Equal(t, []byte("2024-05-20T18:00:00Z"), msg.Headers[2].Value)

	var decoded radar.Snapshot
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	require.Len(t, decoded.Points, 2)
	assert.Equal(t, radar.PrecipHeavy, decoded.Points[0].Precipitation())
}

func TestPublisher_Publish(t *testing.T) {
	fw := &fakeWriter{}
	p := &Publisher{writer: fw, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	require.NoError(t, p.Publish(context.Background(), testSnapshot()))
	require.Len(t, fw.msgs, 1)
	assert.Equal(t, "snap-1", string(fw.msgs[0].Key))

	require.NoError(t, p.Close())
	assert.True(t, fw.closed)
}

func TestPublisher_PublishError(t *testing.T) {
	fw := &fakeWriter{err: errors.New("broker down")}
	p := &Publisher{writer: fw, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	err := p.Publish(context.Background(), testSnapshot())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "snap-1")
	assert.Contains(t, err.Error(), "broker down")
}
