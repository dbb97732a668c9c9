package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/couchcryptid/storm-radar-service/internal/radar"
	"github.com/couchcryptid/storm-radar-service/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSnapshotReader is a mock implementation of the SnapshotReader interface
type MockSnapshotReader struct {
	mock.Mock
}

func (m *MockSnapshotReader) Latest(ctx context.Context) (radar.Snapshot, error) {
	args := m.Called(ctx)
	return args.Get(0).(radar.Snapshot), args.Error(1)
}

func (m *MockSnapshotReader) PointsInBounds(ctx context.Context, q store.Query) ([]radar.RadarPoint, error) {
	args := m.Called(ctx, q)
	points, _ := args.Get(0).([]radar.RadarPoint)
	return points, args.Error(1)
}

var snapTime = time.Date(2024, 5, 20, 18, 0, 0, 0, time.UTC)

func testSnapshot() radar.Snapshot {
	points := []radar.RadarPoint{
		radar.NewPoint(35.25, -97.5, 25, radar.FiveBand, radar.SourceDecodedGrid, "BREF_1HR_MAX"),
		radar.NewPoint(36.0, -96.0, 45, radar.FiveBand, radar.SourceDecodedGrid, "BREF_1HR_MAX"),
	}
	return radar.Snapshot{
		ID:          "snap-1",
		Timestamp:   snapTime,
		SourceLabel: "mrms",
		Bounds:      radar.Extent(points),
		Points:      points,
	}
}

func newTestRouter(reader SnapshotReader) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(reader, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func serve(r http.Handler, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestRadarHandler_Latest(t *testing.T) {
	reader := new(MockSnapshotReader)
	reader.On("Latest", mock.Anything).Return(testSnapshot(), nil)

	w := serve(newTestRouter(reader), "/api/v1/radar/latest")
	require.Equal(t, http.StatusOK, w.Code)

	var fc FeatureCollection
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 2)

	f := fc.Features[0]
	assert.Equal(t, "Feature", f.Type)
	assert.Equal(t, "Point", f.Geometry.Type)
	assert.Equal(t, [2]float64{-97.5, 35.25}, f.Geometry.Coordinates, "GeoJSON order is lon, lat")
	assert.Equal(t, 25.0, f.Properties.Reflectivity)
	assert.Equal(t, radar.PrecipModerate, f.Properties.Precipitation)
	assert.Equal(t, "#ffff00", f.Properties.Color)
	assert.Equal(t, radar.SourceDecodedGrid, f.Properties.Source)

	assert.Equal(t, "mrms", fc.Metadata.Source)
	assert.Equal(t, 2, fc.Metadata.TotalPoints)
	require.NotNil(t, fc.Metadata.Timestamp)
	assert.True(t, snapTime.Equal(*fc.Metadata.Timestamp))
	assert.Equal(t, radar.Bounds{MinLat: 35.25, MaxLat: 36, MinLon: -97.5, MaxLon: -96}, fc.Metadata.Bounds)
	reader.AssertExpectations(t)
}

func TestRadarHandler_NotFound(t *testing.T) {
	for _, target := range []string{"/api/v1/radar/latest", "/api/v1/radar/snapshot"} {
		t.Run(target, func(t *testing.T) {
			reader := new(MockSnapshotReader)
			reader.On("Latest", mock.Anything).Return(radar.Snapshot{}, store.ErrNotFound)

			w := serve(newTestRouter(reader), target)
			assert.Equal(t, http.StatusNotFound, w.Code)
			assert.JSONEq(t, `{"error":"no radar data available yet"}`, w.Body.String())
		})
	}
}

func TestRadarHandler_StoreFailure(t *testing.T) {
	reader := new(MockSnapshotReader)
	reader.On("Latest", mock.Anything).Return(radar.Snapshot{}, assert.AnError)

	w := serve(newTestRouter(reader), "/api/v1/radar/latest")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String())
}

func TestRadarHandler_Snapshot(t *testing.T) {
	reader := new(MockSnapshotReader)
	reader.On("Latest", mock.Anything).Return(testSnapshot(), nil)

	w := serve(newTestRouter(reader), "/api/v1/radar/snapshot")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "snap-1", body["id"])
	assert.Equal(t, "mrms", body["source"])
	assert.Equal(t, 2.0, body["total_points"])
	assert.Equal(t, "2024-05-20T18:00:00Z", body["timestamp"])
	assert.NotContains(t, body, "points")
}

func TestRadarHandler_Bounds(t *testing.T) {
	points := testSnapshot().Points[:1]
	wantBounds := radar.Bounds{MinLat: 30, MaxLat: 36, MinLon: -100, MaxLon: -97}

	tests := []struct {
		name           string
		query          string
		setup          func(r *MockSnapshotReader)
		expectedStatus int
		expectedPoints int
	}{
		{
			name:  "latest snapshot",
			query: "min_lat=30&max_lat=36&min_lon=-100&max_lon=-97",
			setup: func(r *MockSnapshotReader) {
				r.On("PointsInBounds", mock.Anything, store.Query{Bounds: wantBounds}).Return(points, nil)
			},
			expectedStatus: http.StatusOK,
			expectedPoints: 1,
		},
		{
			name:  "explicit timestamp",
			query: "min_lat=30&max_lat=36&min_lon=-100&max_lon=-97&timestamp=2024-05-20T18:00:00Z",
			setup: func(r *MockSnapshotReader) {
				r.On("PointsInBounds", mock.Anything, store.Query{Bounds: wantBounds, Timestamp: snapTime}).Return(points, nil)
			},
			expectedStatus: http.StatusOK,
			expectedPoints: 1,
		},
		{
			name:  "empty rectangle",
			query: "min_lat=0&max_lat=1&min_lon=0&max_lon=1",
			setup: func(r *MockSnapshotReader) {
				r.On("PointsInBounds", mock.Anything, mock.Anything).Return([]radar.RadarPoint{}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedPoints: 0,
		},
		{
			name:  "no data yet",
			query: "min_lat=30&max_lat=36&min_lon=-100&max_lon=-97",
			setup: func(r *MockSnapshotReader) {
				r.On("PointsInBounds", mock.Anything, mock.Anything).Return(nil, store.ErrNotFound)
			},
			expectedStatus: http.StatusNotFound,
		},
		{name: "missing parameter", query: "min_lat=30&max_lat=36&min_lon=-100", expectedStatus: http.StatusBadRequest},
		{name: "non numeric", query: "min_lat=abc&max_lat=36&min_lon=-100&max_lon=-97", expectedStatus: http.StatusBadRequest},
		{name: "inverted latitude", query: "min_lat=40&max_lat=30&min_lon=-100&max_lon=-97", expectedStatus: http.StatusBadRequest},
		{name: "inverted longitude", query: "min_lat=30&max_lat=36&min_lon=-90&max_lon=-97", expectedStatus: http.StatusBadRequest},
		{name: "latitude out of range", query: "min_lat=-91&max_lat=36&min_lon=-100&max_lon=-97", expectedStatus: http.StatusBadRequest},
		{name: "bad timestamp", query: "min_lat=30&max_lat=36&min_lon=-100&max_lon=-97&timestamp=yesterday", expectedStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := new(MockSnapshotReader)
			if tt.setup != nil {
				tt.setup(reader)
			}

			w := serve(newTestRouter(reader), "/api/v1/radar/bounds?"+tt.query)
			require.Equal(t, tt.expectedStatus, w.Code, w.Body.String())

			if tt.expectedStatus == http.StatusOK {
				var fc FeatureCollection
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fc))
				assert.Len(t, fc.Features, tt.expectedPoints)
				assert.Equal(t, tt.expectedPoints, fc.Metadata.TotalPoints)
			}
			if tt.setup == nil {
				reader.AssertNotCalled(t, "PointsInBounds", mock.Anything, mock.Anything)
			} else {
				reader.AssertExpectations(t)
			}
		})
	}
}
