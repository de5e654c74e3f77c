package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema versions, tracked in PRAGMA user_version:
//
//	0 - tables only (databases written before the audit index)
//	1 - events(match_id, seq) index and a seeded next_match_id
const currentSchemaVersion = 1

// connPragmas configure the single connection before the schema is touched.
//
// synchronous=FULL makes Commit return only after the WAL is on disk, so a
// reply sent to chat after a successful command never describes a change a
// crash could lose. busy_timeout covers a second process (an operator
// running "ladder stats" next to "ladder serve") briefly holding the lock.
var connPragmas = []struct{ name, value string }{
	{"journal_mode", "WAL"},
	{"synchronous", "FULL"},
	{"busy_timeout", "5000"},
	{"foreign_keys", "ON"},
}

// migrations[i] upgrades a database from user_version i to i+1.
var migrations = []func(*sql.Tx) error{
	migrateToV1,
}

// Store is the durable home of matches, stats, the match counter and the
// audit trail.
type Store struct {
	db *sql.DB
}

// Open opens the ladder database at path, creating it if needed, and
// brings its schema up to date. Reopening an existing database keeps every
// match, record and the counter.
//
// The path ":memory:" gives a private database that lives as long as the
// Store, which is what the scenario harness runs against.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open ladder database %s: %w", path, err)
	}

	// One connection: the service is the only writer, and ":memory:"
	// databases are per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := prepare(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare ladder database %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func prepare(db *sql.DB) error {
	if err := db.Ping(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	for _, p := range connPragmas {
		stmt := fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("%s: %w", stmt, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return migrate(db)
}

// migrate runs each pending migration in its own transaction and bumps
// user_version with it, so a crash mid-upgrade resumes at the right step.
func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for v := version; v < currentSchemaVersion; v++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("migrate to v%d: %w", v+1, err)
		}
		if err := migrations[v](tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migrate to v%d: %w", v+1, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", v+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migrate to v%d: set version: %w", v+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migrate to v%d: %w", v+1, err)
		}
	}
	return nil
}

// migrateToV1 indexes the audit trail by match and seeds the counter. A
// counter already present (an upgraded database) is left alone so IDs are
// never reissued.
func migrateToV1(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE INDEX IF NOT EXISTS idx_events_match ON events(match_id, seq);
		INSERT INTO meta (key, value) VALUES ('next_match_id', 1)
		ON CONFLICT(key) DO NOTHING;
	`)
	return err
}

// Close releases the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping reports whether the database still answers; /healthz uses it.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// pragma reads the current value of a pragma.
func (s *Store) pragma(name string) (string, error) {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return "", fmt.Errorf("read pragma %s: %w", name, err)
	}
	return value, nil
}
