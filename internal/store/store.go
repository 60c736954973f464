// Package store is the sqlite-backed persistence the signal_bridge
// facade (internal/signalbridge) owns exclusively, per spec.md §3's
// ownership summary. Grounded on the teacher's internal/database/db.go
// migration runner, adapted from the teacher's split mattn/go-sqlite3
// (local) + libsql (remote Turso) drivers down to a single
// modernc.org/sqlite driver, since this module has no remote-database
// requirement (spec.md §6 calls for only "an identity database path").
package store

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustingooding/radix-relay/internal/logging"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps the identity database connection.
type Store struct {
	conn *sql.DB
	log  *logging.Logger

	// dbKey, when set via SetDBKey, is used to encrypt the identity
	// private key at rest. Nil means "store it in the clear" (tests and
	// any caller that never guards a key).
	dbKey []byte
}

// Open opens (creating if necessary) the sqlite database at path and
// runs pending migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{conn: conn, log: logging.New("store")}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error { return s.conn.Close() }

// SetDBKey installs the key SaveIdentity/LoadIdentity use to encrypt the
// node's private key at rest (internal/keystore guards this key in the
// OS keychain). Must be called before the first SaveIdentity/LoadIdentity
// if at-rest encryption is wanted; calling it with a nil key restores
// plaintext storage.
func (s *Store) SetDBKey(key []byte) { s.dbKey = key }

// Conn exposes the underlying *sql.DB for the narrow set of callers
// (tests, maintenance tooling) that need raw access.
func (s *Store) Conn() *sql.DB { return s.conn }

func (s *Store) migrate() error {
	_, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	files, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(files, func(i, j int) bool {
		return extractVersion(files[i]) < extractVersion(files[j])
	})

	applied, err := s.appliedMigrations()
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	for _, file := range files {
		version := extractVersion(file)
		if applied[version] {
			continue
		}

		content, err := migrationsFS.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}

		if _, err := s.conn.Exec(string(content)); err != nil {
			errStr := err.Error()
			if strings.Contains(errStr, "duplicate column") ||
				strings.Contains(errStr, "already exists") {
				s.log.Debug("migration %s: object already exists, skipping: %v", file, err)
			} else {
				return fmt.Errorf("execute migration %s: %w", file, err)
			}
		}

		if _, err := s.conn.Exec(
			"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
			version, time.Now().Unix(),
		); err != nil {
			return fmt.Errorf("record migration %s: %w", file, err)
		}
	}
	return nil
}

func (s *Store) appliedMigrations() (map[int]bool, error) {
	rows, err := s.conn.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func extractVersion(filename string) int {
	base := filepath.Base(filename)
	parts := strings.Split(base, "_")
	if len(parts) == 0 {
		return 0
	}
	version, _ := strconv.Atoi(parts[0])
	return version
}
