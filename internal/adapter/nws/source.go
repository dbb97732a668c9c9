// Package nws is the tertiary source: it estimates reflectivity around a
// fixed set of radar stations from their forecast precipitation probability.
package nws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/couchcryptid/storm-radar-service/internal/observability"
	"github.com/couchcryptid/storm-radar-service/internal/radar"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	// minProbability is the lowest probability that produces points.
	minProbability = 10.0
	clusterSpread  = 0.5
	clusterJitter  = 5.0
)

// StationLookupError reports one station whose forecast could not be read.
// It never aborts the other stations.
type StationLookupError struct {
	StationID string
	Err       error
}

func (e *StationLookupError) Error() string {
	return fmt.Sprintf("station %s: %v", e.StationID, e.Err)
}

func (e *StationLookupError) Unwrap() error { return e.Err }

// ProbabilityReader reads the near-term precipitation probability from a
// forecast URL.
type ProbabilityReader interface {
	Probability(ctx context.Context, forecastURL string) (float64, bool, error)
}

type forgetter interface {
	Forget(stationID string)
}

// Options tunes the station fan-out.
type Options struct {
	Concurrency int
	RateLimit   float64 // requests per second across all stations
	Rand        *rand.Rand
}

// Source derives point clusters from per-station forecasts.
type Source struct {
	stations []radar.Station
	locator  ForecastLocator
	reader   ProbabilityReader
	limiter  *rate.Limiter
	limit    int
	metrics  *observability.Metrics
	logger   *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSource creates the station-derived source.
func NewSource(stations []radar.Station, locator ForecastLocator, reader ProbabilityReader, opts Options, metrics *observability.Metrics, logger *slog.Logger) *Source {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Source{
		stations: stations,
		locator:  locator,
		reader:   reader,
		limiter:  rate.NewLimiter(limit, 1),
		limit:    opts.Concurrency,
		metrics:  metrics,
		logger:   logger,
		rng:      opts.Rand,
	}
}

// Name is the source label.
func (s *Source) Name() string { return "nws" }

// Fetch queries every station with bounded parallelism. Failed stations are
// logged and skipped; the call only fails when every station failed.
func (s *Source) Fetch(ctx context.Context) ([]radar.RadarPoint, error) {
	probs := make([]float64, len(s.stations))
	var (
		mu       sync.Mutex
		failures []error
	)

	var g errgroup.Group
	g.SetLimit(s.limit)
	for i, st := range s.stations {
		g.Go(func() error {
			p, err := s.lookup(ctx, st)
			if err != nil {
				s.metrics.StationLookups.WithLabelValues("error").Inc()
				s.logger.Warn("station lookup failed", "station", st.ID, "error", err)
				mu.Lock()
				failures = append(failures, &StationLookupError{StationID: st.ID, Err: err})
				mu.Unlock()
				probs[i] = math.NaN()
				return nil
			}
			s.metrics.StationLookups.WithLabelValues("success").Inc()
			probs[i] = p
			return nil
		})
	}
	_ = g.Wait()

	if len(s.stations) > 0 && len(failures) == len(s.stations) {
		return nil, errors.Join(failures...)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var points []radar.RadarPoint
	for i, st := range s.stations {
		points = append(points, s.cluster(st, probs[i])...)
	}
	return points, nil
}

func (s *Source) lookup(ctx context.Context, st radar.Station) (float64, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	forecastURL, err := s.locator.ForecastURL(ctx, st)
	if err != nil {
		return 0, fmt.Errorf("points lookup: %w", err)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	p, ok, err := s.reader.Probability(ctx, forecastURL)
	if err != nil {
		if f, canForget := s.locator.(forgetter); canForget {
			f.Forget(st.ID)
		}
		return 0, fmt.Errorf("forecast: %w", err)
	}
	if !ok {
		return 0, nil
	}
	return p, nil
}

// cluster emits 5 to 9 points within clusterSpread degrees of the station,
// with reflectivity = probability + U(-5, 5) clamped to [0, 70]. Stations
// below minProbability, or whose lookup failed (NaN), emit nothing.
func (s *Source) cluster(st radar.Station, prob float64) []radar.RadarPoint {
	if math.IsNaN(prob) || prob < minProbability {
		return nil
	}
	n := 5 + s.rng.IntN(5)
	points := make([]radar.RadarPoint, 0, n)
	for range n {
		lat := st.Lat + (s.rng.Float64()*2-1)*clusterSpread
		lon := st.Lon + (s.rng.Float64()*2-1)*clusterSpread
		dbz := prob + (s.rng.Float64()*2-1)*clusterJitter
		dbz = math.Min(math.Max(dbz, 0), 70)
		points = append(points, radar.NewPoint(lat, lon, dbz, radar.ThreeBand, radar.SourceDerivedStation, st.ID))
	}
	return points
}
