// Package acquisition runs the source fallback chain. Sources are tried in
// priority order; the first non-empty success wins and the synthetic
// generator closes the chain, so AcquireLatest always returns points.
package acquisition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/storm-radar-service/internal/observability"
	"github.com/couchcryptid/storm-radar-service/internal/radar"
)

// ErrEmpty marks a strategy that succeeded without producing points.
var ErrEmpty = errors.New("strategy returned no points")

// Strategy is one live source.
type Strategy interface {
	Name() string
	Fetch(ctx context.Context) ([]radar.RadarPoint, error)
}

// Generator is the terminal fallback. It must never return an empty slice.
type Generator interface {
	Name() string
	Generate() []radar.RadarPoint
}

// State is a position in the fallback chain.
type State int

const (
	TryPrimary State = iota
	TrySecondary
	TryTertiary
	Synthetic
	Done
)

func (s State) String() string {
	switch s {
	case TryPrimary:
		return "try-primary"
	case TrySecondary:
		return "try-secondary"
	case TryTertiary:
		return "try-tertiary"
	case Synthetic:
		return "synthetic"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Result is the outcome of one acquisition.
type Result struct {
	Points []radar.RadarPoint
	// Source is the label of the strategy that produced Points.
	Source string
	// Attempts lists every strategy tried, in order, with its failure.
	Attempts []Attempt
}

// Attempt records one strategy call.
type Attempt struct {
	State  State
	Source string
	Err    error
}

// Pipeline is the ordered fallback chain.
type Pipeline struct {
	primary   Strategy
	secondary Strategy
	tertiary  Strategy
	synthetic Generator
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// New creates a Pipeline. Any strategy may be nil, in which case its state is
// skipped; synthetic is required.
func New(primary, secondary, tertiary Strategy, synthetic Generator, metrics *observability.Metrics, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		primary:   primary,
		secondary: secondary,
		tertiary:  tertiary,
		synthetic: synthetic,
		metrics:   metrics,
		logger:    logger,
	}
}

// AcquireLatest walks TryPrimary, TrySecondary, TryTertiary and Synthetic.
// A state advances only when its strategy fails or yields no points inside
// radar.CONUS. It never fails and never returns an empty result.
func (p *Pipeline) AcquireLatest(ctx context.Context) Result {
	var res Result
	for state := TryPrimary; state != Done; {
		switch state {
		case Synthetic:
			res.Points = radar.FilterCONUS(p.synthetic.Generate())
			res.Source = p.synthetic.Name()
			p.metrics.FetchAttempts.WithLabelValues(res.Source, "success").Inc()
			state = Done

		default:
			s := p.strategy(state)
			if s == nil {
				state++
				continue
			}
			points, err := p.try(ctx, state, s)
			if err != nil {
				res.Attempts = append(res.Attempts, Attempt{State: state, Source: s.Name(), Err: err})
				state++
				continue
			}
			res.Points = points
			res.Source = s.Name()
			state = Done
		}
	}

	p.metrics.PointsAcquired.WithLabelValues(res.Source).Add(float64(len(res.Points)))
	p.logger.Info("acquired radar points", "source", res.Source, "points", len(res.Points), "fallbacks", len(res.Attempts))
	return res
}

func (p *Pipeline) strategy(state State) Strategy {
	switch state {
	case TryPrimary:
		return p.primary
	case TrySecondary:
		return p.secondary
	case TryTertiary:
		return p.tertiary
	default:
		return nil
	}
}

// try runs one strategy. Errors and empty results both come back as errors.
func (p *Pipeline) try(ctx context.Context, state State, s Strategy) ([]radar.RadarPoint, error) {
	start := time.Now()
	points, err := s.Fetch(ctx)
	if err != nil {
		p.metrics.FetchAttempts.WithLabelValues(s.Name(), "error").Inc()
		p.logger.Warn("source failed, falling back",
			"state", state.String(),
			"source", s.Name(),
			"duration", time.Since(start),
			"error", err,
		)
		return nil, err
	}

	kept := radar.FilterCONUS(points)
	if len(kept) == 0 {
		p.metrics.FetchAttempts.WithLabelValues(s.Name(), "empty").Inc()
		p.logger.Info("source returned no points, falling back",
			"state", state.String(),
			"source", s.Name(),
			"returned", len(points),
		)
		return nil, ErrEmpty
	}

	p.metrics.FetchAttempts.WithLabelValues(s.Name(), "success").Inc()
	if dropped := len(points) - len(kept); dropped > 0 {
		p.logger.Debug("dropped points outside coverage", "source", s.Name(), "dropped", dropped)
	}
	return kept, nil
}
