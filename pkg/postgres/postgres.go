package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ds124wfegd/roombooker/config"
	"github.com/sirupsen/logrus"

	_ "github.com/lib/pq"
)

func NewPostgresDB(ctx context.Context, cfg *config.DatabaseConfig) (*sql.DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)
	return Open(ctx, connStr, cfg)
}

// Open connects with an explicit DSN. cfg may be nil.
func Open(ctx context.Context, dsn string, cfg *config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg != nil {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.Info("Successfully connected to PostgreSQL")
	return db, nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS rooms (
		id TEXT PRIMARY KEY,
		room_number VARCHAR(50) UNIQUE NOT NULL,
		name VARCHAR(255) NOT NULL,
		capacity INTEGER NOT NULL CHECK (capacity > 0),
		location VARCHAR(255) NOT NULL DEFAULT '',
		facilities TEXT[] NOT NULL DEFAULT '{}',
		open_time VARCHAR(5) NOT NULL,
		close_time VARCHAR(5) NOT NULL,
		weekdays INTEGER[] NOT NULL DEFAULT '{}',
		is_active BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS reservations (
		id TEXT PRIMARY KEY,
		room_id TEXT NOT NULL REFERENCES rooms(id),
		user_id TEXT NOT NULL,
		title VARCHAR(255) NOT NULL,
		purpose TEXT NOT NULL DEFAULT '',
		start_time TIMESTAMPTZ NOT NULL,
		end_time TIMESTAMPTZ NOT NULL,
		attendees INTEGER NOT NULL CHECK (attendees > 0),
		status VARCHAR(20) NOT NULL DEFAULT 'pending',
		cancellation_reason TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK (start_time < end_time)
	)`,

	`CREATE TABLE IF NOT EXISTS room_accesses (
		id TEXT PRIMARY KEY,
		reservation_id TEXT NOT NULL REFERENCES reservations(id),
		user_id TEXT NOT NULL,
		room_id TEXT NOT NULL REFERENCES rooms(id),
		access_method VARCHAR(10) NOT NULL,
		access_token VARCHAR(64) NOT NULL,
		access_time TIMESTAMPTZ,
		expires_at TIMESTAMPTZ NOT NULL,
		is_used BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	// Indexes
	`CREATE INDEX IF NOT EXISTS idx_reservations_room_time ON reservations(room_id, start_time, end_time)`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_user_id ON reservations(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_status_start ON reservations(status, start_time)`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_status_end ON reservations(status, end_time)`,
	`CREATE INDEX IF NOT EXISTS idx_room_accesses_user_id ON room_accesses(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_room_accesses_token ON room_accesses(access_token)`,

	// one live token per reservation, live token values are unique
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_room_accesses_live_reservation
		ON room_accesses(reservation_id) WHERE is_used = false`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_room_accesses_live_token
		ON room_accesses(access_token) WHERE is_used = false`,
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	for _, migration := range migrations {
		if _, err := db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	logrus.Info("Database migrations completed successfully")
	return nil
}
