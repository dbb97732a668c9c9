// Package sqlite is a store.Store on SQLite. Timestamps are stored as Unix
// nanoseconds so equality and ordering are exact.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/couchcryptid/storm-radar-service/internal/radar"
	"github.com/couchcryptid/storm-radar-service/internal/store"
	"github.com/jonboulle/clockwork"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS radar_snapshots (
	id           TEXT PRIMARY KEY,
	timestamp    INTEGER NOT NULL,
	source_label TEXT NOT NULL,
	total_points INTEGER NOT NULL,
	bounds       TEXT NOT NULL,
	created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_radar_snapshots_timestamp ON radar_snapshots (timestamp);

CREATE TABLE IF NOT EXISTS radar_points (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	snapshot_id   TEXT NOT NULL REFERENCES radar_snapshots (id),
	timestamp     INTEGER NOT NULL,
	latitude      REAL NOT NULL,
	longitude     REAL NOT NULL,
	reflectivity  REAL NOT NULL,
	precipitation TEXT NOT NULL,
	color         TEXT NOT NULL,
	policy        TEXT NOT NULL,
	source        TEXT NOT NULL,
	origin_field  TEXT NOT NULL DEFAULT '',
	created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_radar_points_snapshot ON radar_points (snapshot_id);
CREATE INDEX IF NOT EXISTS idx_radar_points_lat_lon ON radar_points (latitude, longitude);
`

// Store persists snapshots in a SQLite database.
type Store struct {
	db    *sql.DB
	clock clockwork.Clock
}

// Open opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for a throwaway database.
func Open(path string, clock clockwork.Clock) (*Store, error) {
	dsn := path
	if !isMemory(path) {
		dsn = "file:" + path + "?_journal_mode=WAL&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	// One connection serialises writers and keeps ":memory:" a single database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return &Store{db: db, clock: clock}, nil
}

// StoreSnapshot writes the snapshot row and all point rows in one transaction.
func (s *Store) StoreSnapshot(ctx context.Context, snap radar.Snapshot) error {
	bounds, err := json.Marshal(snap.Bounds)
	if err != nil {
		return fmt.Errorf("sqlite: encode bounds: %w", err)
	}
	now := s.clock.Now().UnixNano()
	ts := snap.Timestamp.UnixNano()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO radar_snapshots (id, timestamp, source_label, total_points, bounds, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		snap.ID, ts, snap.SourceLabel, len(snap.Points), string(bounds), now,
	); err != nil {
		return fmt.Errorf("sqlite: insert snapshot: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO radar_points
		 (snapshot_id, timestamp, latitude, longitude, reflectivity, precipitation, color, policy, source, origin_field, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare point insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range snap.Points {
		if _, err := stmt.ExecContext(ctx,
			snap.ID, ts, p.Latitude(), p.Longitude(), p.Reflectivity(),
			string(p.Precipitation()), p.Color(), p.Policy(), string(p.Source()), p.OriginField(), now,
		); err != nil {
			return fmt.Errorf("sqlite: insert point: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

// Latest returns the snapshot with the greatest timestamp.
func (s *Store) Latest(ctx context.Context) (radar.Snapshot, error) {
	var (
		snap   radar.Snapshot
		ts     int64
		bounds string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, timestamp, source_label, bounds FROM radar_snapshots
		 ORDER BY timestamp DESC LIMIT 1`,
	).Scan(&snap.ID, &ts, &snap.SourceLabel, &bounds)
	if errors.Is(err, sql.ErrNoRows) {
		return radar.Snapshot{}, store.ErrNotFound
	}
	if err != nil {
		return radar.Snapshot{}, fmt.Errorf("sqlite: latest snapshot: %w", err)
	}
	snap.Timestamp = time.Unix(0, ts).UTC()
	if err := json.Unmarshal([]byte(bounds), &snap.Bounds); err != nil {
		return radar.Snapshot{}, fmt.Errorf("sqlite: decode bounds: %w", err)
	}

	snap.Points, err = s.queryPoints(ctx, `WHERE snapshot_id = ?`, snap.ID)
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
		err = s.db.QueryRowContext(ctx,
			`SELECT id FROM radar_snapshots ORDER BY timestamp DESC LIMIT 1`).Scan(&id)
	} else {
		err = s.db.QueryRowContext(ctx,
			`SELECT id FROM radar_snapshots WHERE timestamp = ? LIMIT 1`, q.Timestamp.UnixNano()).Scan(&id)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: resolve snapshot: %w", err)
	}

	return s.queryPoints(ctx,
		`WHERE snapshot_id = ? AND latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ?`,
		id, q.Bounds.MinLat, q.Bounds.MaxLat, q.Bounds.MinLon, q.Bounds.MaxLon)
}

func (s *Store) queryPoints(ctx context.Context, where string, args ...any) ([]radar.RadarPoint, error) {
	query := `SELECT latitude, longitude, reflectivity, policy, source, origin_field FROM radar_points ` +
		where + ` ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query points: %w", err)
	}
	defer rows.Close()

	points := []radar.RadarPoint{}
	for rows.Next() {
		var (
			lat, lon, dbz          float64
			policy, source, origin string
		)
		if err := rows.Scan(&lat, &lon, &dbz, &policy, &source, &origin); err != nil {
			return nil, fmt.Errorf("sqlite: scan point: %w", err)
		}
		pol, _ := radar.PolicyByName(policy)
		points = append(points, radar.NewPoint(lat, lon, dbz, pol, radar.Source(source), origin))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate points: %w", err)
	}
	return points, nil
}

// DeleteBefore removes snapshots older than cutoff together with their points.
func (s *Store) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	c := cutoff.UnixNano()
	if _, err := tx.ExecContext(ctx, `DELETE FROM radar_points WHERE timestamp < ?`, c); err != nil {
		return 0, fmt.Errorf("sqlite: delete points: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM radar_snapshots WHERE timestamp < ?`, c)
	if err != nil {
		return 0, fmt.Errorf("sqlite: delete snapshots: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit: %w", err)
	}
	return n, nil
}

// Ping checks the database handle.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// isMemory reports whether path names an in-memory database.
func isMemory(path string) bool {
	return path == ":memory:" || strings.HasPrefix(path, "file::memory:")
}
