// Package mrms is the primary source: it lists a directory of gridded
// reflectivity files, downloads the best candidate and decodes it.
package mrms

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/couchcryptid/storm-radar-service/internal/adapter/fetch"
	"github.com/couchcryptid/storm-radar-service/internal/grib"
	"github.com/couchcryptid/storm-radar-service/internal/observability"
	"github.com/couchcryptid/storm-radar-service/internal/radar"
)

// Decoder turns a downloaded payload into points.
type Decoder interface {
	Decode(raw []byte) ([]radar.RadarPoint, error)
}

// Source fetches the newest grid file from a directory listing.
type Source struct {
	baseURL  string
	listing  *fetch.Client
	download *fetch.Client
	decoder  Decoder
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewSource creates the grid-directory source. Listings and downloads use
// separate timeouts.
func NewSource(baseURL string, listingTimeout, downloadTimeout time.Duration, decoder Decoder, metrics *observability.Metrics, logger *slog.Logger) *Source {
	return &Source{
		baseURL:  baseURL,
		listing:  fetch.New(listingTimeout, ""),
		download: fetch.New(downloadTimeout, ""),
		decoder:  decoder,
		metrics:  metrics,
		logger:   logger,
	}
}

// Name is the source label.
func (s *Source) Name() string { return "mrms" }

// Fetch lists the directory, downloads the chosen file and decodes it. A
// listing without grid files yields no points and no error.
func (s *Source) Fetch(ctx context.Context) ([]radar.RadarPoint, error) {
	body, err := s.listing.Get(ctx, s.baseURL, "text/html")
	if err != nil {
		return nil, err
	}

	hrefs, err := parseListing(body)
	if err != nil {
		return nil, &ListingParseError{URL: s.baseURL, Err: err}
	}
	href, ok := pickCandidate(hrefs)
	if !ok {
		s.logger.Info("directory listing has no grid files", "url", s.baseURL, "links", len(hrefs))
		return nil, nil
	}

	fileURL, err := resolve(s.baseURL, href)
	if err != nil {
		return nil, &ListingParseError{URL: s.baseURL, Err: err}
	}

	start := time.Now()
	raw, err := s.download.Get(ctx, fileURL, "")
	if err != nil {
		return nil, err
	}
	s.logger.Debug("downloaded grid file", "url", fileURL, "bytes", len(raw), "duration", time.Since(start))

	points, err := s.decoder.Decode(raw)
	if err != nil {
		var de *grib.DecodeError
		if errors.As(err, &de) {
			s.metrics.DecodeErrors.WithLabelValues(string(de.Stage)).Inc()
		}
		return nil, err
	}
	return points, nil
}
