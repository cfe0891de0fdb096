package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/multierr"

	"github.com/roach88/tokenflow/internal/logstream"
)

//go:embed schema.sql
var schemaSQL string

// migration upgrades a partition database by one user_version step.
type migration struct {
	version int
	name    string
	stmt    string
}

// migrations run in order on Open; each is applied once, when the
// database's user_version is below its version.
var migrations = []migration{
	{1, "index request ids", `CREATE INDEX IF NOT EXISTS idx_records_request ON records(request_id)`},
	{2, "index record kinds", `CREATE INDEX IF NOT EXISTS idx_records_kind ON records(value_type, intent)`},
}

// schemaVersion is the user_version of a fully migrated database.
var schemaVersion = migrations[len(migrations)-1].version

// connPragmas configure the single connection of a partition database.
var connPragmas = []struct{ name, value string }{
	{"journal_mode", "WAL"},
	{"synchronous", "NORMAL"},
	{"busy_timeout", "5000"},
}

// Store is the record log of one partition, kept in a SQLite file.
//
// A Store is safe for concurrent use. Appends hold mu so that the records of
// a batch get contiguous positions.
type Store struct {
	db *sql.DB

	mu     sync.Mutex
	closed bool
}

var _ logstream.Log = (*Store)(nil)

// Open opens the partition database at path, creating and migrating it as
// needed. Opening an existing log leaves its records untouched.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// One writer per file; a single connection also keeps the pragmas.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := prepare(db); err != nil {
		return nil, multierr.Append(fmt.Errorf("prepare %s: %w", path, err), db.Close())
	}
	return &Store{db: db}, nil
}

func prepare(db *sql.DB) error {
	if err := db.Ping(); err != nil {
		return err
	}
	for _, p := range connPragmas {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)); err != nil {
			return fmt.Errorf("pragma %s: %w", p.name, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	return migrate(db)
}

func migrate(db *sql.DB) error {
	var have int
	if err := db.QueryRow("PRAGMA user_version").Scan(&have); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	for _, m := range migrations {
		if m.version <= have {
			continue
		}
		if _, err := db.Exec(m.stmt); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
	}
	if have < schemaVersion {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
			return fmt.Errorf("write user_version: %w", err)
		}
	}
	return nil
}

// Close checkpoints the write-ahead log into the database file and closes
// it. Later calls return logstream.ErrClosed from every log operation.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.db == nil {
		return nil
	}
	s.closed = true
	_, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return multierr.Append(err, s.db.Close())
}

func (s *Store) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return logstream.ErrClosed
	}
	return nil
}

// Query runs a read-only statement against the records table. The caller
// closes the rows.
func (s *Store) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return s.db.QueryContext(ctx, query, args...)
}

// pragma reads the current value of a pragma.
func (s *Store) pragma(name string) (string, error) {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return "", fmt.Errorf("read pragma %s: %w", name, err)
	}
	return value, nil
}
