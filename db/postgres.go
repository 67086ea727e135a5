// Package db provides optional persistence for route dataset snapshots:
// PostgreSQL for durable storage and Neo4j for graph queries.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/edgeoinnovations-resources/Flight/config"
	"github.com/edgeoinnovations-resources/Flight/routedata"
)

// ErrNoSnapshot is returned by LoadSnapshot when no snapshot has been saved.
var ErrNoSnapshot = errors.New("no dataset snapshot in database")

// PostgresDB represents a PostgreSQL database connection
type PostgresDB struct {
	db *sql.DB
}

// NewPostgresDB creates a new PostgreSQL database connection
func NewPostgresDB(cfg config.PostgresConfig) (*PostgresDB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	return &PostgresDB{db: db}, nil
}

// Close closes the database connection
func (p *PostgresDB) Close() error {
	return p.db.Close()
}

// GetDB returns the underlying database connection
func (p *PostgresDB) GetDB() *sql.DB {
	return p.db
}

// InitSchema initializes the database schema
func (p *PostgresDB) InitSchema() error {
	_, err := p.db.Exec(`
		-- Snapshot metadata; exactly one row is current at a time
		CREATE TABLE IF NOT EXISTS dataset_snapshots (
			version UUID PRIMARY KEY,
			loaded_at TIMESTAMPTZ NOT NULL,
			route_count INT NOT NULL,
			airport_count INT NOT NULL,
			is_current BOOLEAN NOT NULL DEFAULT FALSE
		);

		-- Airport features table
		CREATE TABLE IF NOT EXISTS airports (
			snapshot_version UUID NOT NULL REFERENCES dataset_snapshots(version) ON DELETE CASCADE,
			code VARCHAR(8) NOT NULL,
			name VARCHAR(255) NOT NULL,
			country VARCHAR(255),
			longitude DOUBLE PRECISION NOT NULL,
			latitude DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (snapshot_version, code)
		);

		-- Route segments table
		CREATE TABLE IF NOT EXISTS routes (
			id SERIAL PRIMARY KEY,
			snapshot_version UUID NOT NULL REFERENCES dataset_snapshots(version) ON DELETE CASCADE,
			src_airport VARCHAR(8) NOT NULL,
			dst_airport VARCHAR(8) NOT NULL,
			src_latitude DOUBLE PRECISION NOT NULL,
			src_longitude DOUBLE PRECISION NOT NULL,
			dst_latitude DOUBLE PRECISION NOT NULL,
			dst_longitude DOUBLE PRECISION NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_routes_snapshot_src
			ON routes(snapshot_version, src_airport);
	`)

	return err
}

// SaveSnapshot stores a dataset as the current snapshot. The previous
// snapshot is removed in the same transaction so readers never see a
// half-written dataset.
func (p *PostgresDB) SaveSnapshot(ctx context.Context, ds *routedata.Dataset) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM dataset_snapshots`); err != nil {
		return fmt.Errorf("failed to clear previous snapshots: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO dataset_snapshots (version, loaded_at, route_count, airport_count, is_current)
		VALUES ($1, $2, $3, $4, TRUE)`,
		ds.Version, ds.LoadedAt, ds.RouteCount(), ds.AirportCount(),
	); err != nil {
		return fmt.Errorf("failed to insert snapshot record: %w", err)
	}

	airportStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO airports (snapshot_version, code, name, country, longitude, latitude)
		VALUES ($1, $2, $3, $4, $5, $6)`)
	if err != nil {
		return fmt.Errorf("failed to prepare airport insert: %w", err)
	}
	defer airportStmt.Close()

	for _, ap := range ds.Airports() {
		if _, err := airportStmt.ExecContext(ctx, ds.Version, ap.Code, ap.Name, ap.Country, ap.Lon, ap.Lat); err != nil {
			return fmt.Errorf("failed to insert airport %s: %w", ap.Code, err)
		}
	}

	routeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO routes (snapshot_version, src_airport, dst_airport,
			src_latitude, src_longitude, dst_latitude, dst_longitude)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`)
	if err != nil {
		return fmt.Errorf("failed to prepare route insert: %w", err)
	}
	defer routeStmt.Close()

	for _, rt := range ds.Routes() {
		if _, err := routeStmt.ExecContext(ctx, ds.Version,
			rt.SrcAirport, rt.DstAirport,
			rt.SrcLat, rt.SrcLon, rt.DstLat, rt.DstLon,
		); err != nil {
			return fmt.Errorf("failed to insert route %s-%s: %w", rt.SrcAirport, rt.DstAirport, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot restores the current dataset snapshot. Used at startup when
// the upstream dataset sources are unreachable.
func (p *PostgresDB) LoadSnapshot(ctx context.Context) (*routedata.Dataset, error) {
	var (
		version  string
		loadedAt time.Time
	)
	err := p.db.QueryRowContext(ctx, `
		SELECT version, loaded_at FROM dataset_snapshots WHERE is_current = TRUE`).
		Scan(&version, &loadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot record: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT src_airport, dst_airport, src_latitude, src_longitude, dst_latitude, dst_longitude
		FROM routes WHERE snapshot_version = $1`, version)
	if err != nil {
		return nil, fmt.Errorf("failed to query routes: %w", err)
	}
	defer rows.Close()

	var routes []routedata.Route
	for rows.Next() {
		var rt routedata.Route
		if err := rows.Scan(&rt.SrcAirport, &rt.DstAirport, &rt.SrcLat, &rt.SrcLon, &rt.DstLat, &rt.DstLon); err != nil {
			return nil, fmt.Errorf("failed to scan route: %w", err)
		}
		routes = append(routes, rt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate routes: %w", err)
	}

	apRows, err := p.db.QueryContext(ctx, `
		SELECT code, name, country, longitude, latitude
		FROM airports WHERE snapshot_version = $1`, version)
	if err != nil {
		return nil, fmt.Errorf("failed to query airports: %w", err)
	}
	defer apRows.Close()

	var airports []routedata.Airport
	for apRows.Next() {
		var ap routedata.Airport
		if err := apRows.Scan(&ap.Code, &ap.Name, &ap.Country, &ap.Lon, &ap.Lat); err != nil {
			return nil, fmt.Errorf("failed to scan airport: %w", err)
		}
		airports = append(airports, ap)
	}
	if err := apRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate airports: %w", err)
	}

	return routedata.RestoreDataset(version, loadedAt, routes, airports), nil
}
