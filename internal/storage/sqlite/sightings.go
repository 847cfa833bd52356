package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/yegors/overhead/internal/storage"
	"github.com/yegors/overhead/pkg/logger"
	_ "modernc.org/sqlite"
)

// SightingStorage is a SQLite-based sighting history
type SightingStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewSightingStorage opens (or creates) the database at dbPath
func NewSightingStorage(dbPath string, log *logger.Logger) (*SightingStorage, error) {
	storageLogger := log.Named("sqlite")

	storageLogger.Info("Initializing SQLite storage",
		logger.String("path", dbPath))

	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA cache_size=10000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	if err := initDatabase(db, storageLogger); err != nil {
		db.Close()
		return nil, err
	}

	return &SightingStorage{db: db, logger: storageLogger}, nil
}

// Close closes the database connection
func (s *SightingStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// GetDB returns the database connection
func (s *SightingStorage) GetDB() *sql.DB {
	return s.db
}

func initDatabase(db *sql.DB, log *logger.Logger) error {
	log.Info("Initializing database schema")

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sightings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			seen_at_ms INTEGER NOT NULL,
			hex TEXT,
			identity TEXT NOT NULL,
			type_code TEXT,
			name TEXT,
			op_class TEXT,
			route TEXT,
			registered_owner TEXT,
			altitude_ft INTEGER,
			distance_km REAL,       -- NULL without a position
			bearing_deg REAL,
			lat REAL,
			lon REAL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create sightings table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_sightings_seen_at ON sightings(seen_at_ms)`)
	if err != nil {
		return fmt.Errorf("failed to create sightings index: %w", err)
	}
	return nil
}

// Insert stores a sighting and returns its row id
func (s *SightingStorage) Insert(ctx context.Context, sg storage.Sighting) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sightings (
			seen_at_ms, hex, identity, type_code, name, op_class, route,
			registered_owner, altitude_ft, distance_km, bearing_deg, lat, lon
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sg.SeenAt.UnixMilli(),
		sg.Hex,
		sg.Identity,
		sg.TypeCode,
		sg.Name,
		sg.OpClass,
		sg.Route,
		sg.RegisteredOwner,
		sg.AltitudeFt,
		nullable(sg.DistanceKm),
		nullable(sg.BearingDeg),
		nullable(sg.Lat),
		nullable(sg.Lon),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert sighting: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read sighting id: %w", err)
	}
	return id, nil
}

// Recent returns the newest sightings first
func (s *SightingStorage) Recent(ctx context.Context, limit int) ([]storage.Sighting, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, seen_at_ms, hex, identity, type_code, name, op_class, route,
			registered_owner, altitude_ft, distance_km, bearing_deg, lat, lon
		FROM sightings
		ORDER BY seen_at_ms DESC, id DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sightings: %w", err)
	}
	defer rows.Close()

	var out []storage.Sighting
	for rows.Next() {
		var sg storage.Sighting
		var seenAt int64
		var hex, typeCode, name, opClass, route, owner sql.NullString
		var dist, brg, lat, lon sql.NullFloat64

		if err := rows.Scan(
			&sg.ID,
			&seenAt,
			&hex,
			&sg.Identity,
			&typeCode,
			&name,
			&opClass,
			&route,
			&owner,
			&sg.AltitudeFt,
			&dist,
			&brg,
			&lat,
			&lon,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sighting: %w", err)
		}

		sg.SeenAt = time.UnixMilli(seenAt).UTC()
		sg.Hex = hex.String
		sg.TypeCode = typeCode.String
		sg.Name = name.String
		sg.OpClass = opClass.String
		sg.Route = route.String
		sg.RegisteredOwner = owner.String
		sg.DistanceKm = floatPtr(dist)
		sg.BearingDeg = floatPtr(brg)
		sg.Lat = floatPtr(lat)
		sg.Lon = floatPtr(lon)

		out = append(out, sg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sightings: %w", err)
	}
	return out, nil
}

// Prune deletes sightings older than before
func (s *SightingStorage) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sightings WHERE seen_at_ms < ?`, before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune sightings: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of stored sightings
func (s *SightingStorage) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sightings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count sightings: %w", err)
	}
	return n, nil
}

func nullable(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
