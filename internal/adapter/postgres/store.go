// Package postgres is a store.Store on PostgreSQL using pgx.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/storm-radar-service/internal/radar"
	"github.com/couchcryptid/storm-radar-service/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
)

// Schema creates the snapshot tables. Migrate applies it.
const Schema = `
CREATE TABLE IF NOT EXISTS radar_snapshots (
	id           TEXT PRIMARY KEY,
	timestamp    TIMESTAMPTZ NOT NULL,
	source_label TEXT NOT NULL,
	total_points INTEGER NOT NULL,
	bounds       JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_radar_snapshots_timestamp ON radar_snapshots (timestamp DESC);

CREATE TABLE IF NOT EXISTS radar_points (
	id            BIGSERIAL PRIMARY KEY,
	snapshot_id   TEXT NOT NULL REFERENCES radar_snapshots (id) ON DELETE CASCADE,
	timestamp     TIMESTAMPTZ NOT NULL,
	latitude      DOUBLE PRECISION NOT NULL,
	longitude     DOUBLE PRECISION NOT NULL,
	reflectivity  DOUBLE PRECISION NOT NULL,
	precipitation TEXT NOT NULL,
	color         TEXT NOT NULL,
	policy        TEXT NOT NULL,
	source        TEXT NOT NULL,
	origin_field  TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_radar_points_snapshot ON radar_points (snapshot_id);
CREATE INDEX IF NOT EXISTS idx_radar_points_lat_lon ON radar_points (latitude, longitude);
`

var pointColumns = []string{
	"snapshot_id", "timestamp", "latitude", "longitude", "reflectivity",
	"precipitation", "color", "policy", "source", "origin_field", "created_at",
}

// Store persists snapshots in PostgreSQL.
type Store struct {
	db    *pgxpool.Pool
	clock clockwork.Clock
}

// Connect opens a pool for databaseURL and applies Schema.
func Connect(ctx context.Context, databaseURL string, clock clockwork.Clock) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	s := NewStore(pool, clock)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewStore wraps an existing pool.
func NewStore(db *pgxpool.Pool, clock clockwork.Clock) *Store {
	return &Store{db: db, clock: clock}
}

// Migrate applies Schema.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("postgres: apply schema: %w", err)
	}
	return nil
}

// StoreSnapshot writes the snapshot row and copies all points in one
// transaction, so the batch becomes visible at commit.
func (s *Store) StoreSnapshot(ctx context.Context, snap radar.Snapshot) error {
	bounds, err := json.Marshal(snap.Bounds)
	if err != nil {
		return fmt.Errorf("postgres: encode bounds: %w", err)
	}
	now := s.clock.Now()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(ctx,
		`INSERT INTO radar_snapshots (id, timestamp, source_label, total_points, bounds, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		snap.ID, snap.Timestamp, snap.SourceLabel, len(snap.Points), bounds, now,
	); err != nil {
		return fmt.Errorf("postgres: insert snapshot: %w", err)
	}

	rows := make([][]any, len(snap.Points))
	for i, p := range snap.Points {
		rows[i] = []any{
			snap.ID, snap.Timestamp, p.Latitude(), p.Longitude(), p.Reflectivity(),
			string(p.Precipitation()), p.Color(), p.Policy(), string(p.Source()), p.OriginField(), now,
		}
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"radar_points"}, pointColumns, pgx.CopyFromRows(rows)); err != nil {
		return fmt.Errorf("postgres: copy points: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

// Latest returns the snapshot with the greatest timestamp.
func (s *Store) Latest(ctx context.Context) (radar.Snapshot, error) {
	var snap radar.Snapshot
	var bounds []byte
	err := s.db.QueryRow(ctx,
		`SELECT id, timestamp, source_label, bounds FROM radar_snapshots
		 ORDER BY timestamp DESC LIMIT 1`,
	).Scan(&snap.ID, &snap.Timestamp, &snap.SourceLabel, &bounds)
	if errors.Is(err, pgx.ErrNoRows) {
		return radar.Snapshot{}, store.ErrNotFound
	}
	if err != nil {
		return radar.Snapshot{}, fmt.Errorf("postgres: latest snapshot: %w", err)
	}
	snap.Timestamp = snap.Timestamp.UTC()
	if err := json.Unmarshal(bounds, &snap.Bounds); err != nil {
		return radar.Snapshot{}, fmt.Errorf("postgres: decode bounds: %w", err)
	}

	snap.Points, err = s.queryPoints(ctx, `WHERE snapshot_id = $1`, snap.ID)
	if err != nil {
		return radar.Snapshot{}, err
	}
	return snap, nil
}

// PointsInBounds returns points of the latest snapshot, or of the snapshot at
// q.Timestamp, inside q.Bounds.
func (s *Store) PointsInBounds(ctx context.Context, q store.Query) ([]radar.RadarPoint, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var id string
	var err error
	if q.Timestamp.IsZero() {
		err = s.db.QueryRow(ctx,
			`SELECT id FROM radar_snapshots ORDER BY timestamp DESC LIMIT 1`).Scan(&id)
	} else {
		err = s.db.QueryRow(ctx,
			`SELECT id FROM radar_snapshots WHERE timestamp = $1 LIMIT 1`, q.Timestamp).Scan(&id)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: resolve snapshot: %w", err)
	}

	return s.queryPoints(ctx,
		`WHERE snapshot_id = $1 AND latitude BETWEEN $2 AND $3 AND longitude BETWEEN $4 AND $5`,
		id, q.Bounds.MinLat, q.Bounds.MaxLat, q.Bounds.MinLon, q.Bounds.MaxLon)
}

func (s *Store) queryPoints(ctx context.Context, where string, args ...any) ([]radar.RadarPoint, error) {
	rows, err := s.db.Query(ctx,
		`SELECT latitude, longitude, reflectivity, policy, source, origin_field FROM radar_points `+
			where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query points: %w", err)
	}
	defer rows.Close()

	points := []radar.RadarPoint{}
	for rows.Next() {
		var (
			lat, lon, dbz          float64
			policy, source, origin string
		)
		if err := rows.Scan(&lat, &lon, &dbz, &policy, &source, &origin); err != nil {
			return nil, fmt.Errorf("postgres: scan point: %w", err)
		}
		pol, _ := radar.PolicyByName(policy)
		points = append(points, radar.NewPoint(lat, lon, dbz, pol, radar.Source(source), origin))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate points: %w", err)
	}
	return points, nil
}

// DeleteBefore removes snapshots older than cutoff; points go with them via
// ON DELETE CASCADE.
func (s *Store) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM radar_snapshots WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete snapshots: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close releases the pool.
func (s *Store) Close() error {
	s.db.Close()
	return nil
}
