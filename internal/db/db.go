// Package db is the SQLite datastore for users, businesses, time slots and reservations.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrSlotUnavailable = errors.New("time slot is not available")
	ErrUsernameTaken   = errors.New("username already exists")
	ErrNotPending      = errors.New("reservation is not pending")
)

// DB wraps sql.DB with the application queries.
type DB struct {
	*sql.DB
	path   string
	logger *zerolog.Logger
}

// NewDB opens the database at path and runs migrations.
// Write transactions begin immediately so concurrent writers serialize on the file lock.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate"
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(time.Hour)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connect db: %w", err)
	}

	instance := &DB{DB: conn, path: path, logger: logger}
	if err := instance.createTables(); err != nil {
		conn.Close()
		return nil, err
	}

	logger.Info().Str("path", path).Msg("database initialized")
	return instance, nil
}

// Path returns the database file location.
func (db *DB) Path() string { return db.path }

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL CHECK (role IN ('client', 'business')),
			created_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS businesses (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			rating TEXT NOT NULL DEFAULT '',
			working_hours TEXT NOT NULL,
			reservation_duration INTEGER NOT NULL CHECK (reservation_duration > 0),
			category TEXT NOT NULL,
			address TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			image_url TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS time_slots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			business_id INTEGER NOT NULL,
			date TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'available',
			FOREIGN KEY (business_id) REFERENCES businesses(id) ON DELETE CASCADE,
			UNIQUE (business_id, date, start_time, end_time)
		)`,

		`CREATE TABLE IF NOT EXISTS reservations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			client_id INTEGER NOT NULL,
			business_id INTEGER NOT NULL,
			time_slot_id INTEGER NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at TEXT NOT NULL,
			updated_at DATETIME NOT NULL,
			FOREIGN KEY (client_id) REFERENCES users(id) ON DELETE CASCADE,
			FOREIGN KEY (business_id) REFERENCES businesses(id) ON DELETE CASCADE,
			FOREIGN KEY (time_slot_id) REFERENCES time_slots(id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS reservation_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			type TEXT NOT NULL,
			reservation_id INTEGER NOT NULL,
			business_id INTEGER NOT NULL,
			client_id INTEGER NOT NULL,
			status TEXT NOT NULL,
			payload TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_businesses_user ON businesses(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_businesses_category ON businesses(category)`,
		`CREATE INDEX IF NOT EXISTS idx_time_slots_business_date ON time_slots(business_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_client ON reservations(client_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_business ON reservations(business_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_slot ON reservations(time_slot_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reservation_events_reservation ON reservation_events(business_id, reservation_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reservation_events_created ON reservation_events(created_at)`,

		// At most one pending or accepted reservation per slot.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_reservations_active_slot
			ON reservations(time_slot_id) WHERE status IN ('pending', 'accepted')`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

func isUniqueViolation(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			serr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// withTx runs fn inside a transaction and commits when it returns nil.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}
