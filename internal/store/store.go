// Package store persists risk profiles and portfolio snapshot histories in
// Postgres. Profiles are the single authoritative copy, keyed by user ID and
// replaced wholesale on re-assessment; snapshot histories are append-only.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// Store wraps the Postgres connection pool.
type Store struct {
	db *sql.DB
}

// Open connects to Postgres and verifies the connection.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.Info("Connected to Postgres")
	return &Store{db: db}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the schema if it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS risk_profiles (
			user_id     TEXT PRIMARY KEY,
			score       INTEGER NOT NULL CHECK (score BETWEEN 0 AND 100),
			profile     TEXT NOT NULL,
			version     TEXT NOT NULL,
			assessed_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS portfolio_snapshots (
			id           BIGSERIAL PRIMARY KEY,
			user_id      TEXT NOT NULL,
			taken_at     TIMESTAMPTZ NOT NULL,
			total_value  DOUBLE PRECISION NOT NULL,
			lending      DOUBLE PRECISION NOT NULL,
			liquidity    DOUBLE PRECISION NOT NULL,
			farm         DOUBLE PRECISION NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_user_time
			ON portfolio_snapshots (user_id, taken_at DESC)`,
		`CREATE TABLE IF NOT EXISTS principals (
			user_id   TEXT PRIMARY KEY,
			deposited DOUBLE PRECISION NOT NULL
		)`,
	}

	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
