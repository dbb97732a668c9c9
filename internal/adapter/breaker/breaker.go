// Package breaker wraps a point source in a circuit breaker so a source that
// keeps failing is skipped without a network round trip.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/storm-radar-service/internal/radar"
	"github.com/sony/gobreaker"
)

// ErrOpen is returned while the circuit refuses calls.
var ErrOpen = errors.New("circuit breaker open")

// Fetcher is the source being protected.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context) ([]radar.RadarPoint, error)
}

// Settings tunes the breaker. Zero values pick the defaults below.
type Settings struct {
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before a trial call.
	OpenTimeout time.Duration
}

// Source is a Fetcher guarded by a circuit breaker.
type Source struct {
	inner Fetcher
	cb    *gobreaker.CircuitBreaker
}

// Wrap protects inner with a breaker named after it.
func Wrap(inner Fetcher, settings Settings, logger *slog.Logger) *Source {
	if settings.ConsecutiveFailures == 0 {
		settings.ConsecutiveFailures = 3
	}
	if settings.OpenTimeout == 0 {
		settings.OpenTimeout = 5 * time.Minute
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        inner.Name(),
		MaxRequests: 1,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= settings.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "source", name, "from", from.String(), "to", to.String())
		},
	})
	return &Source{inner: inner, cb: cb}
}

// Name is the wrapped source's name.
func (s *Source) Name() string { return s.inner.Name() }

// Fetch calls the wrapped source unless the circuit is open. An empty result
// counts as a success.
func (s *Source) Fetch(ctx context.Context) ([]radar.RadarPoint, error) {
	result, err := s.cb.Execute(func() (interface{}, error) {
		return s.inner.Fetch(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %s: %v", ErrOpen, s.inner.Name(), err)
		}
		return nil, err
	}
	points, _ := result.([]radar.RadarPoint)
	return points, nil
}

// State reports the breaker state, for logging and tests.
func (s *Source) State() string { return s.cb.State().String() }
