package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DB wraps the sqlite connection pool.
type DB struct {
	*sqlx.DB
	path   string
	logger *zerolog.Logger
}

var (
	ErrNotFound       = errors.New("not found")
	ErrNotPending     = errors.New("booking request is not pending")
	ErrDuplicateEmail = errors.New("email already registered")
	ErrItemReferenced = errors.New("item is referenced by booking requests")
)

// NewDB opens the database at path and creates tables if they don't exist.
// path may also be a "file:" URI, which tests use for in-memory databases.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite3", buildDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	instance := &DB{DB: db, path: path, logger: logger}
	if err := instance.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("database initialized")
	return instance, nil
}

func buildDSN(path string) string {
	// Writers take the lock at BEGIN so conditional updates queue on busy_timeout.
	params := "_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate"
	if strings.Contains(path, "mode=memory") {
		params = "_busy_timeout=5000&_foreign_keys=on"
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + params
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			address TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'user',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS items (
			id TEXT PRIMARY KEY,
			description TEXT NOT NULL,
			content_summary TEXT NOT NULL,
			storage_details TEXT NOT NULL,
			storage_location TEXT,
			is_available BOOLEAN NOT NULL DEFAULT 1,
			featured BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS booking_requests (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			version INTEGER NOT NULL DEFAULT 1,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS booking_line_entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			request_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			item_id TEXT NOT NULL,
			quantity INTEGER NOT NULL CHECK (quantity >= 1),
			start_date DATE NOT NULL,
			end_date DATE NOT NULL,
			FOREIGN KEY (request_id) REFERENCES booking_requests(id) ON DELETE CASCADE,
			FOREIGN KEY (item_id) REFERENCES items(id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_items_featured ON items(featured)`,
		`CREATE INDEX IF NOT EXISTS idx_booking_requests_user ON booking_requests(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_booking_requests_status ON booking_requests(status, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_line_entries_request ON booking_line_entries(request_id, position)`,
		`CREATE INDEX IF NOT EXISTS idx_line_entries_item ON booking_line_entries(item_id, start_date, end_date)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// Path returns the file the database was opened from.
func (db *DB) Path() string {
	return db.path
}

// withTx runs fn inside a transaction and commits when fn succeeds.
func (db *DB) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (db *DB) Close() error {
	return db.DB.Close()
}
