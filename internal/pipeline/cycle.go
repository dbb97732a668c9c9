// Package pipeline runs the fetch cycle: acquire points, build a snapshot,
// store it, and optionally publish it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-radar-service/internal/acquisition"
	"github.com/couchcryptid/storm-radar-service/internal/observability"
	"github.com/couchcryptid/storm-radar-service/internal/radar"
	"github.com/couchcryptid/storm-radar-service/internal/store"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// ErrCycleRunning is returned by Run when another cycle holds the lock.
var ErrCycleRunning = errors.New("fetch cycle already running")

// Acquirer produces the points for one cycle. It never fails.
type Acquirer interface {
	AcquireLatest(ctx context.Context) acquisition.Result
}

// Publisher forwards a stored snapshot downstream.
type Publisher interface {
	Publish(ctx context.Context, snap radar.Snapshot) error
}

// Options tunes a Cycle. Zero values select the defaults.
type Options struct {
	// Retention is the snapshot age after which Cleanup deletes it.
	Retention time.Duration
	// StoreRetries is how many times a failed store write is retried.
	StoreRetries int
	// RetryBackoff is the first retry delay; it doubles up to 5s.
	RetryBackoff time.Duration
}

const (
	defaultRetention    = 24 * time.Hour
	defaultStoreRetries = 2
	defaultRetryBackoff = 200 * time.Millisecond
	maxRetryBackoff     = 5 * time.Second
)

// Cycle owns one acquire-store run at a time.
type Cycle struct {
	acquirer  Acquirer
	store     store.Store
	publisher Publisher
	clock     clockwork.Clock
	metrics   *observability.Metrics
	logger    *slog.Logger
	opts      Options

	mu    sync.Mutex
	ready atomic.Bool
}

// New creates a Cycle. publisher may be nil.
func New(acq Acquirer, st store.Store, pub Publisher, clock clockwork.Clock, opts Options, metrics *observability.Metrics, logger *slog.Logger) *Cycle {
	if opts.Retention <= 0 {
		opts.Retention = defaultRetention
	}
	if opts.StoreRetries < 0 {
		opts.StoreRetries = 0
	} else if opts.StoreRetries == 0 {
		opts.StoreRetries = defaultStoreRetries
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = defaultRetryBackoff
	}
	return &Cycle{
		acquirer:  acq,
		store:     st,
		publisher: pub,
		clock:     clock,
		metrics:   metrics,
		logger:    logger,
		opts:      opts,
	}
}

// CheckReadiness returns nil once a snapshot has been stored and the store
// still answers.
func (c *Cycle) CheckReadiness(ctx context.Context) error {
	if !c.ready.Load() {
		return errors.New("no snapshot has been stored yet")
	}
	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("snapshot store: %w", err)
	}
	return nil
}

// Run executes one cycle and returns the stored snapshot. A cycle that starts
// while another is in progress returns ErrCycleRunning without doing work.
func (c *Cycle) Run(ctx context.Context) (radar.Snapshot, error) {
	if !c.mu.TryLock() {
		c.metrics.Cycles.WithLabelValues("skipped").Inc()
		c.logger.Warn("fetch cycle skipped, previous cycle still running")
		return radar.Snapshot{}, ErrCycleRunning
	}
	defer c.mu.Unlock()

	start := c.clock.Now()
	res := c.acquirer.AcquireLatest(ctx)

	snap := radar.Snapshot{
		ID:          uuid.NewString(),
		Timestamp:   c.clock.Now().UTC(),
		SourceLabel: res.Source,
		Bounds:      radar.Extent(res.Points),
		Points:      res.Points,
	}

	if err := c.storeWithRetry(ctx, snap); err != nil {
		c.metrics.Cycles.WithLabelValues("failed").Inc()
		c.logger.Error("store snapshot failed", "id", snap.ID, "source", snap.SourceLabel, "error", err)
		return radar.Snapshot{}, fmt.Errorf("store snapshot: %w", err)
	}
	c.ready.Store(true)

	if c.publisher != nil {
		if err := c.publisher.Publish(ctx, snap); err != nil {
			c.logger.Warn("publish snapshot failed", "id", snap.ID, "error", err)
		}
	}

	duration := c.clock.Since(start)
	c.metrics.Cycles.WithLabelValues("stored").Inc()
	c.metrics.CycleDuration.Observe(duration.Seconds())
	c.metrics.SnapshotPoints.Set(float64(snap.TotalPoints()))
	c.logger.Info("fetch cycle complete",
		"id", snap.ID,
		"source", snap.SourceLabel,
		"points", snap.TotalPoints(),
		"duration", duration,
	)
	return snap, nil
}

// Cleanup deletes snapshots older than the retention window.
func (c *Cycle) Cleanup(ctx context.Context) (int64, error) {
	cutoff := c.clock.Now().Add(-c.opts.Retention)
	n, err := c.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		c.logger.Error("retention cleanup failed", "cutoff", cutoff, "error", err)
		return 0, fmt.Errorf("retention cleanup: %w", err)
	}
	c.metrics.RetentionDeleted.Add(float64(n))
	c.logger.Info("retention cleanup complete", "cutoff", cutoff, "deleted", n)
	return n, nil
}

func (c *Cycle) storeWithRetry(ctx context.Context, snap radar.Snapshot) error {
	backoff := c.opts.RetryBackoff
	var err error
	for attempt := 0; ; attempt++ {
		if err = c.store.StoreSnapshot(ctx, snap); err == nil {
			return nil
		}
		if attempt >= c.opts.StoreRetries || ctx.Err() != nil {
			return err
		}
		c.logger.Warn("store snapshot failed, retrying", "attempt", attempt+1, "backoff", backoff, "error", err)
		if !c.sleep(ctx, backoff) {
			return err
		}
		backoff = nextBackoff(backoff, maxRetryBackoff)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func (c *Cycle) sleep(ctx context.Context, d time.Duration) bool {
	timer := c.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
