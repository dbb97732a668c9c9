// Package viewer is the secondary source: a product-listing API that serves
// reflectivity samples as GeoJSON points.
package viewer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/couchcryptid/storm-radar-service/internal/adapter/fetch"
	"github.com/couchcryptid/storm-radar-service/internal/radar"
)

const productTypeReflectivity = "reflectivity"

// Source reads the viewer product listing.
type Source struct {
	url    string
	client *fetch.Client
	logger *slog.Logger
}

// NewSource creates the viewer source.
func NewSource(url string, timeout time.Duration, logger *slog.Logger) *Source {
	return &Source{
		url:    url,
		client: fetch.New(timeout, ""),
		logger: logger,
	}
}

// Name is the source label.
func (s *Source) Name() string { return "viewer" }

// Fetch returns the points of every reflectivity product. No active products
// is a valid, empty answer.
func (s *Source) Fetch(ctx context.Context) ([]radar.RadarPoint, error) {
	body, err := s.client.Get(ctx, s.url, "application/json")
	if err != nil {
		return nil, err
	}

	var listing productListing
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("decode viewer products: %w", err)
	}

	var points []radar.RadarPoint
	skipped := 0
	for _, p := range listing.Products {
		if p.Type != productTypeReflectivity {
			continue
		}
		for _, f := range p.Features {
			pt, ok := f.point(p.ID)
			if !ok {
				skipped++
				continue
			}
			points = append(points, pt)
		}
	}
	s.logger.Debug("viewer products read",
		"generated", listing.Generated,
		"products", len(listing.Products),
		"points", len(points),
		"skipped", skipped,
	)
	return points, nil
}

// Viewer API response types.

type productListing struct {
	Generated time.Time `json:"generated"`
	Products  []product `json:"products"`
}

type product struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	Geometry struct {
		Type        string    `json:"type"`
		Coordinates []float64 `json:"coordinates"` // [lon, lat]
	} `json:"geometry"`
	Properties struct {
		DBZ *float64 `json:"dbz"`
	} `json:"properties"`
}

func (f feature) point(productID string) (radar.RadarPoint, bool) {
	if f.Geometry.Type != "Point" || len(f.Geometry.Coordinates) < 2 || f.Properties.DBZ == nil {
		return radar.RadarPoint{}, false
	}
	dbz := *f.Properties.DBZ
	if math.IsNaN(dbz) || dbz < 0 {
		return radar.RadarPoint{}, false
	}
	lon := radar.NormalizeLongitude(f.Geometry.Coordinates[0])
	lat := f.Geometry.Coordinates[1]
	return radar.NewPoint(lat, lon, dbz, radar.FiveBand, radar.SourceViewerProduct, productID), true
}
