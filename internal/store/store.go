// Package store defines the snapshot persistence contract and an in-memory
// implementation. SQL backends live under internal/adapter.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/storm-radar-service/internal/radar"
)

// ErrNotFound is returned when no snapshot has been stored yet, or none
// matches the requested timestamp.
var ErrNotFound = errors.New("no radar data available yet")

// Store persists snapshots. StoreSnapshot must be atomic: readers see either
// none or all of a snapshot's points.
type Store interface {
	StoreSnapshot(ctx context.Context, snap radar.Snapshot) error
	// Latest returns the snapshot with the greatest timestamp, with points.
	Latest(ctx context.Context) (radar.Snapshot, error)
	PointsInBounds(ctx context.Context, q Query) ([]radar.RadarPoint, error)
	// DeleteBefore removes snapshots older than cutoff and reports how many.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

// Query selects points by rectangle and, optionally, exact snapshot time.
// A zero Timestamp means the latest snapshot.
type Query struct {
	Bounds    radar.Bounds
	Timestamp time.Time
}

// Validate checks the rectangle.
func (q Query) Validate() error {
	if !q.Bounds.Valid() {
		return fmt.Errorf("invalid bounds %+v", q.Bounds)
	}
	return nil
}
