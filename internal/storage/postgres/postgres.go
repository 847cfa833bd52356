// Package postgres stores sightings in PostgreSQL for multi-panel installs.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/yegors/overhead/internal/retry"
	"github.com/yegors/overhead/internal/storage"
	"github.com/yegors/overhead/pkg/logger"
)

//go:embed schema.sql
var schemaSQL embed.FS

// ErrNoDSN is returned when no connection string is configured
var ErrNoDSN = errors.New("postgres: empty connection string")

// Config holds the connection settings
type Config struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	Connect      retry.Config // attempts made while the server is still starting
}

// DefaultConfig returns pool settings suited to a single writer
func DefaultConfig(dsn string) Config {
	connect := retry.DefaultConfig()
	connect.MaxRetries = 5
	return Config{
		DSN:          dsn,
		MaxOpenConns: 4,
		MaxIdleConns: 2,
		Connect:      connect,
	}
}

// SightingStorage is a PostgreSQL-backed sighting history
type SightingStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// Connect opens the pool, waits for the server to answer and applies the schema
func Connect(ctx context.Context, cfg Config, log *logger.Logger) (*SightingStorage, error) {
	if cfg.DSN == "" {
		return nil, ErrNoDSN
	}
	storageLogger := log.Named("postgres")

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)

	attempt := 0
	err = retry.Do(ctx, cfg.Connect, func() error {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			storageLogger.Warn("Database not reachable yet",
				logger.Int("attempt", attempt),
				logger.Error(err))
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SightingStorage{db: db, logger: storageLogger}
	if err := s.InitSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	storageLogger.Info("Connected to PostgreSQL", logger.Int("attempts", attempt))
	return s, nil
}

// InitSchema creates the tables if they do not exist
func (s *SightingStorage) InitSchema(ctx context.Context) error {
	schemaBytes, err := schemaSQL.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, string(schemaBytes)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// Close closes the pool
func (s *SightingStorage) Close() error {
	return s.db.Close()
}

// Insert stores a sighting and returns its id
func (s *SightingStorage) Insert(ctx context.Context, sg storage.Sighting) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO sightings (
			seen_at, hex, identity, type_code, name, op_class, route,
			registered_owner, altitude_ft, distance_km, bearing_deg, lat, lon
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`,
		sg.SeenAt.UTC(),
		sg.Hex,
		sg.Identity,
		sg.TypeCode,
		sg.Name,
		sg.OpClass,
		sg.Route,
		sg.RegisteredOwner,
		sg.AltitudeFt,
		nullFloat(sg.DistanceKm),
		nullFloat(sg.BearingDeg),
		nullFloat(sg.Lat),
		nullFloat(sg.Lon),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert sighting: %w", err)
	}
	return id, nil
}

// Recent returns the newest sightings first
func (s *SightingStorage) Recent(ctx context.Context, limit int) ([]storage.Sighting, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, seen_at, hex, identity, type_code, name, op_class, route,
			registered_owner, altitude_ft, distance_km, bearing_deg, lat, lon
		FROM sightings
		ORDER BY seen_at DESC, id DESC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sightings: %w", err)
	}
	defer rows.Close()

	var out []storage.Sighting
	for rows.Next() {
		var sg storage.Sighting
		var hex, typeCode, name, opClass, route, owner sql.NullString
		var alt sql.NullInt64
		var dist, brg, lat, lon sql.NullFloat64
		if err := rows.Scan(&sg.ID, &sg.SeenAt, &hex, &sg.Identity, &typeCode, &name, &opClass,
			&route, &owner, &alt, &dist, &brg, &lat, &lon); err != nil {
			return nil, fmt.Errorf("failed to scan sighting: %w", err)
		}
		sg.SeenAt = sg.SeenAt.UTC()
		sg.Hex = hex.String
		sg.TypeCode = typeCode.String
		sg.Name = name.String
		sg.OpClass = opClass.String
		sg.Route = route.String
		sg.RegisteredOwner = owner.String
		sg.AltitudeFt = int(alt.Int64)
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
	res, err := s.db.ExecContext(ctx, `DELETE FROM sightings WHERE seen_at < $1`, before.UTC())
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

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
