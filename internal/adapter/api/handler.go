// Package api serves stored radar snapshots over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/storm-radar-service/internal/radar"
	"github.com/couchcryptid/storm-radar-service/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// SnapshotReader is the read side of the snapshot store.
type SnapshotReader interface {
	Latest(ctx context.Context) (radar.Snapshot, error)
	PointsInBounds(ctx context.Context, q store.Query) ([]radar.RadarPoint, error)
}

// RadarHandler handles the /api/v1/radar routes.
type RadarHandler struct {
	reader SnapshotReader
	logger *slog.Logger
}

// NewRadarHandler creates a handler backed by reader.
func NewRadarHandler(reader SnapshotReader, logger *slog.Logger) *RadarHandler {
	return &RadarHandler{reader: reader, logger: logger}
}

// Latest handles GET /api/v1/radar/latest.
func (h *RadarHandler) Latest(c *gin.Context) {
	snap, err := h.reader.Latest(c.Request.Context())
	if err != nil {
		h.storeError(c, err, store.ErrNotFound.Error())
		return
	}
	c.JSON(http.StatusOK, NewFeatureCollection(snap))
}

// Snapshot handles GET /api/v1/radar/snapshot.
func (h *RadarHandler) Snapshot(c *gin.Context) {
	snap, err := h.reader.Latest(c.Request.Context())
	if err != nil {
		h.storeError(c, err, store.ErrNotFound.Error())
		return
	}
	c.JSON(http.StatusOK, snap.Meta())
}

// boundsQuery holds the query parameters of the bounds route.
type boundsQuery struct {
	MinLat    float64 `form:"min_lat" validate:"gte=-90,lte=90"`
	MaxLat    float64 `form:"max_lat" validate:"gte=-90,lte=90,gtefield=MinLat"`
	MinLon    float64 `form:"min_lon" validate:"gte=-180,lte=180"`
	MaxLon    float64 `form:"max_lon" validate:"gte=-180,lte=180,gtefield=MinLon"`
	Timestamp string  `form:"timestamp"`
}

// Bounds handles GET /api/v1/radar/bounds.
func (h *RadarHandler) Bounds(c *gin.Context) {
	for _, key := range []string{"min_lat", "max_lat", "min_lon", "max_lon"} {
		if _, ok := c.GetQuery(key); !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing required query parameters 'min_lat', 'max_lat', 'min_lon' and 'max_lon'"})
			return
		}
	}

	var req boundsQuery
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid coordinate format"})
		return
	}
	if err := validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	q := store.Query{Bounds: radar.Bounds{
		MinLat: req.MinLat,
		MaxLat: req.MaxLat,
		MinLon: req.MinLon,
		MaxLon: req.MaxLon,
	}}
	notFound := store.ErrNotFound.Error()
	if req.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid timestamp, expected RFC 3339"})
			return
		}
		q.Timestamp = ts.UTC()
		notFound = "no radar snapshot at the requested timestamp"
	}

	points, err := h.reader.PointsInBounds(c.Request.Context(), q)
	if err != nil {
		h.storeError(c, err, notFound)
		return
	}

	meta := Metadata{TotalPoints: len(points), Bounds: q.Bounds}
	if !q.Timestamp.IsZero() {
		meta.Timestamp = &q.Timestamp
	}
	c.JSON(http.StatusOK, FeatureCollection{
		Type:     "FeatureCollection",
		Features: toFeatures(points),
		Metadata: meta,
	})
}

func (h *RadarHandler) storeError(c *gin.Context, err error, notFound string) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": notFound})
		return
	}
	h.logger.Error("snapshot query failed", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
