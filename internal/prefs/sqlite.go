package prefs

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteRoot keeps every node in one preferences table keyed by (node, key).
type SQLiteRoot struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) prefs.db in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func OpenSQLite(dataDir string) (*SQLiteRoot, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "prefs.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// A single connection keeps ":memory:" databases alive and avoids
	// "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	r := &SQLiteRoot{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return r, nil
}

func (r *SQLiteRoot) Node(name string) Backend {
	return &sqliteNode{db: r.db, name: name}
}

// Close closes the underlying database connection.
func (r *SQLiteRoot) Close() error {
	return r.db.Close()
}

// migration is one numbered schema file from migrations/.
type migration struct {
	version int
	name    string
}

// migrate applies, in version order, every embedded migration not yet
// recorded in schema_version. Each migration runs in its own transaction
// together with its schema_version row.
func (r *SQLiteRoot) migrate() error {
	if _, err := r.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	all, err := embeddedMigrations()
	if err != nil {
		return err
	}
	done, err := r.AppliedMigrations()
	if err != nil {
		return fmt.Errorf("listing applied migrations: %w", err)
	}
	applied := make(map[int]bool, len(done))
	for _, v := range done {
		applied[v] = true
	}

	for _, m := range all {
		if applied[m.version] {
			continue
		}
		if err := r.apply(m); err != nil {
			return err
		}
	}
	return nil
}

// embeddedMigrations lists the .sql files in migrations/ sorted by their
// numeric prefix. Two files with the same number are an error.
func embeddedMigrations() ([]migration, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	var out []migration
	seen := make(map[int]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("migrations %s and %s share version %d", prev, entry.Name(), version)
		}
		seen[version] = entry.Name()
		out = append(out, migration{version: version, name: entry.Name()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

func (r *SQLiteRoot) apply(m migration) (err error) {
	body, err := migrationsFS.ReadFile("migrations/" + m.name)
	if err != nil {
		return fmt.Errorf("reading migration %s: %w", m.name, err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning migration %d: %w", m.version, err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.Exec(string(body)); err != nil {
		return fmt.Errorf("applying migration %s: %w", m.name, err)
	}
	if _, err = tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
		return fmt.Errorf("recording migration %d: %w", m.version, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing migration %d: %w", m.version, err)
	}
	return nil
}

// parseMigrationVersion reads the leading number of a name like
// "001_preferences.sql".
func parseMigrationVersion(filename string) (int, error) {
	prefix, _, found := strings.Cut(filename, "_")
	if !found {
		return 0, fmt.Errorf("migration %q has no version prefix", filename)
	}
	version, err := strconv.Atoi(prefix)
	if err != nil || version <= 0 {
		return 0, fmt.Errorf("migration %q has invalid version %q", filename, prefix)
	}
	return version, nil
}

// AppliedMigrations returns the versions recorded in schema_version, lowest
// first.
func (r *SQLiteRoot) AppliedMigrations() ([]int, error) {
	rows, err := r.db.Query("SELECT version FROM schema_version ORDER BY version")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

type sqliteNode struct {
	db   *sql.DB
	name string
}

func (n *sqliteNode) GetString(key string) (string, bool, error) {
	var value string
	err := n.db.QueryRow("SELECT value FROM preferences WHERE node = ? AND key = ?", n.name, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (n *sqliteNode) SetString(key, val string) error {
	_, err := n.db.Exec(`
		INSERT INTO preferences (node, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(node, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		n.name, key, val, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

func (n *sqliteNode) Delete(key string) error {
	_, err := n.db.Exec("DELETE FROM preferences WHERE node = ? AND key = ?", n.name, key)
	return err
}

func (n *sqliteNode) Keys() ([]string, error) {
	rows, err := n.db.Query("SELECT key FROM preferences WHERE node = ? ORDER BY key ASC", n.name)
	if err != nil {
		return nil, err
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
