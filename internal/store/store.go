package store

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// currentSchemaVersion is the user_version after all migrations.
//
//	1: index for newest-first match listings
const currentSchemaVersion = 1

var (
	// ErrNotFound is returned when a user, game mode or match does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a unique key (such as a game mode slug)
	// is already taken.
	ErrDuplicate = errors.New("already exists")

	// ErrInvalid is returned for rejected input.
	ErrInvalid = errors.New("invalid input")

	// ErrStale is returned by Commit when the stored match has moved past
	// the revision the caller started from.
	ErrStale = errors.New("stale match revision")
)

// Store persists users, game modes and matches in one SQLite file.
// A match row caches the derived score, server and phase next to its
// event log; the log stays authoritative and is re-derived on load.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// pragmas are applied to every connection opened by Open.
var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA foreign_keys = ON",
}

// migrations[i] upgrades a database from user_version i to i+1.
var migrations = []func(*sql.DB) error{
	addMatchListingIndex,
}

// Open creates or opens the database at path (":memory:" for tests),
// then applies pragmas, the schema and pending migrations. Opening an
// up-to-date database changes nothing.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// One connection: SQLite has a single writer, and an in-memory
	// database exists per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragmas: %q: %w", pragma, err)
		}
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// SetClock overrides the clock used for user creation times.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the database for read-only inspection (scenario assertions,
// diagnostics). Writes must go through Store methods.
func (s *Store) DB() *sql.DB {
	return s.db
}

// migrate creates missing tables and runs the migrations after the
// stored user_version.
func migrate(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	for v := version; v < len(migrations); v++ {
		if err := migrations[v](db); err != nil {
			return fmt.Errorf("migrate to v%d: %w", v+1, err)
		}
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// addMatchListingIndex backs ListUserMatches and ListMatchIDs.
func addMatchListingIndex(db *sql.DB) error {
	_, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_matches_start_time ON matches(start_time, id)`)
	return err
}

// verifyPragma reports a pragma that does not hold the expected value.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}

// isUniqueViolation reports whether err is a SQLite UNIQUE or PRIMARY KEY
// constraint failure.
func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// isConstraintViolation reports whether err is any SQLite constraint failure.
func isConstraintViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.Code == sqlite3.ErrConstraint
}
