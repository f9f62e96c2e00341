// Package storage is the SQL-backed key/value store the repository flushes
// its JSON collections into.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/samber/mo"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Well-known keys.
const (
	KeyReminders       = "reminders"
	KeyMedications     = "medications"
	KeyBirthdays       = "birthdays"
	KeyCustomReminders = "customReminders"
	KeyMenstrualData   = "menstrualData"
)

type Storage struct {
	db     *sql.DB
	driver string
}

// New opens a sqlite database file, creating its directory if needed.
func New(dbPath string) (*Storage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	return Open(DriverSQLite, dbPath+"?_foreign_keys=on")
}

// Open connects to the database with the given driver (sqlite3 or postgres)
// and runs migrations.
func Open(driver, dsn string) (*Storage, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Storage{db: db, driver: driver}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) Driver() string {
	return s.driver
}

func (s *Storage) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		// Write counter for diagnosing lost updates
		`ALTER TABLE kv ADD COLUMN revision INTEGER NOT NULL DEFAULT 0`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			// Ignore "duplicate column" (sqlite) and "already exists" (postgres) for ALTER TABLE
			msg := err.Error()
			if !strings.Contains(msg, "duplicate column") && !strings.Contains(msg, "already exists") {
				return fmt.Errorf("exec migration: %w", err)
			}
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *Storage) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Get returns the value stored under key, or None if the key is absent.
func (s *Storage) Get(key string) (mo.Option[[]byte], error) {
	var value string
	err := s.db.QueryRow(s.rebind(`SELECT value FROM kv WHERE key = ?`), key).Scan(&value)
	if err == sql.ErrNoRows {
		return mo.None[[]byte](), nil
	}
	if err != nil {
		return mo.None[[]byte](), fmt.Errorf("get %s: %w", key, err)
	}
	return mo.Some([]byte(value)), nil
}

// Set stores value under key, replacing any previous value.
func (s *Storage) Set(key string, value []byte) error {
	_, err := s.db.Exec(s.rebind(`
		INSERT INTO kv (key, value, updated_at, revision) VALUES (?, ?, ?, 1)
		ON CONFLICT (key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at,
			revision = kv.revision + 1`),
		key, string(value), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Remove deletes key. Removing a missing key is not an error.
func (s *Storage) Remove(key string) error {
	if _, err := s.db.Exec(s.rebind(`DELETE FROM kv WHERE key = ?`), key); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// Revision returns how many times key has been written, 0 if absent.
func (s *Storage) Revision(key string) (int64, error) {
	var rev int64
	err := s.db.QueryRow(s.rebind(`SELECT revision FROM kv WHERE key = ?`), key).Scan(&rev)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("revision %s: %w", key, err)
	}
	return rev, nil
}

// Keys lists stored keys in order.
func (s *Storage) Keys() ([]string, error) {
	rows, err := s.db.Query(`SELECT key FROM kv ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
