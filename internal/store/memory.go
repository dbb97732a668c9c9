package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/couchcryptid/storm-radar-service/internal/radar"
)

// MemoryStore is a concurrency-safe in-memory Store. Snapshots are kept
// sorted by timestamp.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots []radar.Snapshot
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// StoreSnapshot inserts a copy of snap.
func (s *MemoryStore) StoreSnapshot(_ context.Context, snap radar.Snapshot) error {
	snap.Points = append([]radar.RadarPoint(nil), snap.Points...)

	s.mu.Lock()
	defer s.mu.Unlock()

	i := sort.Search(len(s.snapshots), func(i int) bool {
		return s.snapshots[i].Timestamp.After(snap.Timestamp)
	})
	s.snapshots = append(s.snapshots, radar.Snapshot{})
	copy(s.snapshots[i+1:], s.snapshots[i:])
	s.snapshots[i] = snap
	return nil
}

// Latest returns the most recent snapshot.
func (s *MemoryStore) Latest(_ context.Context) (radar.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.snapshots) == 0 {
		return radar.Snapshot{}, ErrNotFound
	}
	return cloneSnapshot(s.snapshots[len(s.snapshots)-1]), nil
}

// PointsInBounds filters the latest snapshot, or the one at q.Timestamp.
func (s *MemoryStore) PointsInBounds(_ context.Context, q Query) ([]radar.RadarPoint, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.find(q.Timestamp)
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]radar.RadarPoint, 0, len(snap.Points))
	for _, p := range snap.Points {
		if q.Bounds.Contains(p.Latitude(), p.Longitude()) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *MemoryStore) find(ts time.Time) (radar.Snapshot, bool) {
	if len(s.snapshots) == 0 {
		return radar.Snapshot{}, false
	}
	if ts.IsZero() {
		return s.snapshots[len(s.snapshots)-1], true
	}
	for i := len(s.snapshots) - 1; i >= 0; i-- {
		if s.snapshots[i].Timestamp.Equal(ts) {
			return s.snapshots[i], true
		}
	}
	return radar.Snapshot{}, false
}

// DeleteBefore drops snapshots with a timestamp strictly before cutoff.
func (s *MemoryStore) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := sort.Search(len(s.snapshots), func(i int) bool {
		return !s.snapshots[i].Timestamp.Before(cutoff)
	})
	s.snapshots = append([]radar.Snapshot(nil), s.snapshots[i:]...)
	return int64(i), nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

func cloneSnapshot(snap radar.Snapshot) radar.Snapshot {
	snap.Points = append([]radar.RadarPoint(nil), snap.Points...)
	return snap
}
