// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// One database file backs three things:
//   - users   → repository.UserRepository (password and GitHub accounts)
//   - places  → repository.PlaceStore, one logical store per owner (the "sqlite" backend)
//   - kv      → repository.KeyValue, the flat key/value table the "local" backend
//     keeps its JSON list in
//
// The driver is modernc.org/sqlite (pure Go), so neither binary needs cgo.
package sqlite

import (
	"database/sql"
	"fmt"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn *sql.DB
}

// New creates a new SQLite database connection and runs migrations.
//
// dbPath examples:
//   - "data/parking.db"  → file-based database (persistent)
//   - ":memory:"         → in-memory database (tests)
//
// IN-MEMORY POOLS:
// Every connection to ":memory:" opens its OWN empty database. database/sql
// may open several connections, so for ":memory:" we pin the pool to one
// connection; otherwise a query could land on a database that never saw
// the migrations.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in progress.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the database is still reachable. Used by /healthz.
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// migrate runs all database migrations.
//
// CREATE TABLE IF NOT EXISTS is idempotent, and column additions go through
// addColumnIfNotExists, so running migrate on every start is safe.
func (db *DB) migrate() error {
	// users: github_id is NULL for password accounts, so the UNIQUE
	// constraint only bites between two GitHub accounts.
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			github_id  INTEGER UNIQUE,
			login      TEXT NOT NULL DEFAULT '',
			email      TEXT NOT NULL DEFAULT '',
			avatar_url TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	if err := db.addColumnIfNotExists("users", "password_hash",
		"TEXT NOT NULL DEFAULT ''"); err != nil {
		return fmt.Errorf("adding password_hash to users: %w", err)
	}

	// Emails are unique among non-empty values; GitHub users may hide theirs.
	_, err = db.conn.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email
			ON users(email) WHERE email <> '';
	`)
	if err != nil {
		return fmt.Errorf("creating users email index: %w", err)
	}

	// places: lat/lng are both NULL or both set (CHECK enforces it).
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS places (
			id         TEXT PRIMARY KEY,
			owner      TEXT NOT NULL,
			seq        INTEGER NOT NULL,
			color      TEXT NOT NULL,
			section    TEXT NOT NULL,
			number     TEXT NOT NULL,
			lat        REAL,
			lng        REAL,
			created_at DATETIME NOT NULL,
			CHECK ((lat IS NULL) = (lng IS NULL))
		);
		CREATE INDEX IF NOT EXISTS idx_places_owner_created
			ON places(owner, created_at DESC, seq ASC);
	`)
	if err != nil {
		return fmt.Errorf("creating places table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating kv table: %w", err)
	}

	return nil
}

// addColumnIfNotExists adds a column to a table only if it doesn't already exist.
// Makes ALTER TABLE migrations idempotent: safe to run multiple times.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil // column already exists
	}
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}
