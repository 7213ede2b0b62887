// Package store is Glance's local persistence layer: a WAL-journaled
// modernc.org/sqlite database holding connection profiles, query history,
// saved queries, and LLM settings, opened with forward-only migrations and
// corruption recovery.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/glance-db/glance/internal/glanceerr"
)

// CurrentVersion is the schema version this build knows how to run against.
const CurrentVersion = 2

const (
	defaultPoolSize     = 4
	defaultBusyTimeout  = 5 * time.Second
	defaultAcquireDelay = 5 * time.Second
)

// Store owns the local state database.
type Store struct {
	db        *sql.DB
	path      string
	Recovered bool
}

// Open opens (creating if absent) the sqlite database at path with WAL
// journaling, applies any pending migrations, and recovers from corruption
// by backing up the broken file and rebuilding from scratch.
func Open(path string, poolSize int, busyTimeout time.Duration) (*Store, error) {
	if poolSize <= 0 {
		poolSize = defaultPoolSize
	}
	if busyTimeout <= 0 {
		busyTimeout = defaultBusyTimeout
	}

	s, err := openAndMigrate(path, poolSize, busyTimeout)
	if err == nil {
		return s, nil
	}

	// Treat any open/migrate failure as potential corruption: back the file
	// up, remove it, and rebuild clean.
	backupPath := path + ".bak"
	_ = os.Rename(path, backupPath)
	_ = os.Remove(path + "-wal")
	_ = os.Remove(path + "-shm")

	s, err = openAndMigrate(path, poolSize, busyTimeout)
	if err != nil {
		return nil, glanceerr.Wrap(glanceerr.Persistence, "Cannot open or rebuild state database", err)
	}
	s.Recovered = true
	return s, nil
}

func openAndMigrate(path string, poolSize int, busyTimeout time.Duration) (*Store, error) {
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=foreign_keys(ON)&mode=rwc",
		path, busyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(poolSize)
	db.SetMaxIdleConns(poolSize)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// DB exposes the underlying pool for packages (connmgr, llmmanager, router)
// that need direct SQL access beyond the typed methods below.
func (s *Store) DB() *sql.DB { return s.db }

// Close checkpoints the WAL and closes the pool.
func (s *Store) Close() error {
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version INTEGER PRIMARY KEY,
			applied_at INTEGER DEFAULT (strftime('%s', 'now'))
		)`); err != nil {
		return err
	}

	var maxVersion int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&maxVersion); err != nil {
		return err
	}

	if maxVersion > CurrentVersion {
		return glanceerr.PersistenceErr(fmt.Sprintf(
			"State database is at schema version %d, which is newer than this build supports (%d). Upgrade Glance to open it.",
			maxVersion, CurrentVersion))
	}

	for v := maxVersion + 1; v <= CurrentVersion; v++ {
		migration, ok := migrations[v]
		if !ok {
			return glanceerr.InternalErr(fmt.Sprintf("no migration registered for schema version %d", v))
		}
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("apply migration v%d: %w", v, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_versions (version) VALUES (?)", v); err != nil {
			return err
		}
	}
	return nil
}

var migrations = map[int]string{
	1: `
		CREATE TABLE connections (
			name TEXT PRIMARY KEY,
			database TEXT NOT NULL,
			host TEXT,
			port INTEGER NOT NULL DEFAULT 5432,
			username TEXT,
			sslmode TEXT,
			extras TEXT,
			password_storage TEXT NOT NULL DEFAULT 'none' CHECK (password_storage IN ('none','keychain','plaintext')),
			password_plaintext TEXT,
			created_at INTEGER DEFAULT (strftime('%s','now')),
			updated_at INTEGER DEFAULT (strftime('%s','now')),
			last_used_at INTEGER
		);

		CREATE TABLE saved_queries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			sql TEXT NOT NULL,
			description TEXT,
			connection_name TEXT REFERENCES connections(name) ON DELETE SET NULL,
			usage_count INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER DEFAULT (strftime('%s','now')),
			updated_at INTEGER DEFAULT (strftime('%s','now')),
			UNIQUE(name, connection_name)
		);

		CREATE TABLE saved_query_tags (
			saved_query_id INTEGER NOT NULL REFERENCES saved_queries(id) ON DELETE CASCADE,
			tag TEXT NOT NULL,
			PRIMARY KEY (saved_query_id, tag)
		);
		CREATE INDEX idx_saved_query_tags_tag ON saved_query_tags(tag);

		CREATE TABLE query_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			connection_name TEXT REFERENCES connections(name) ON DELETE CASCADE,
			submitted_by TEXT NOT NULL CHECK (submitted_by IN ('user','llm')),
			sql TEXT NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('success','error','cancelled')),
			execution_time_ms INTEGER,
			row_count INTEGER,
			error_message TEXT,
			saved_query_id INTEGER REFERENCES saved_queries(id) ON DELETE SET NULL,
			created_at INTEGER DEFAULT (strftime('%s','now'))
		);
		CREATE INDEX idx_query_history_connection ON query_history(connection_name, created_at);
		CREATE INDEX idx_query_history_created ON query_history(created_at);

		CREATE TABLE llm_settings (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			provider TEXT NOT NULL,
			model TEXT NOT NULL,
			api_key_storage TEXT NOT NULL DEFAULT 'none' CHECK (api_key_storage IN ('none','keychain','plaintext')),
			api_key_plaintext TEXT,
			updated_at INTEGER DEFAULT (strftime('%s','now'))
		);
	`,
	2: `ALTER TABLE connections ADD COLUMN backend TEXT NOT NULL DEFAULT 'postgres';`,
}

// WithRetry runs f up to 3 attempts with exponential backoff (starting
// 100ms, doubling) whenever its error text suggests lock contention
// ("locked", "busy", "timeout", "connection"). It is the generic combinator
// every hot-path write in this package composes explicitly.
func WithRetry[T any](ctx context.Context, f func() (T, error)) (T, error) {
	var zero T
	delay := 100 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
		result, err := f()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !isContentionError(err) {
			return zero, err
		}
	}
	return zero, lastErr
}

func isContentionError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, p := range []string{"locked", "busy", "timeout", "connection"} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
