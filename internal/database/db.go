// Package database opens the SQLite files behind assetflow and applies their
// embedded schemas. Each database gets a profile that decides its durability
// and pool settings.
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schemas/*.sql
var schemaFS embed.FS

// Database names, also used to find the embedded schema
const (
	NamePortfolio  = "portfolio"
	NameHistory    = "history"
	NameClientData = "client_data"
)

// DatabaseProfile selects durability and pool settings
type DatabaseProfile string

const (
	// ProfileCache trades durability for speed. Contents can be refetched.
	ProfileCache DatabaseProfile = "cache"
	// ProfileStandard is for data that must survive a crash
	ProfileStandard DatabaseProfile = "standard"
)

type profileSettings struct {
	pragmas  []string
	maxOpen  int
	maxIdle  int
	lifetime time.Duration
	idleTime time.Duration
}

// Pragmas shared by every profile. journal_mode must stay first.
var basePragmas = []string{
	"journal_mode(WAL)",
	"foreign_keys(1)",
	"busy_timeout(5000)",
	"wal_autocheckpoint(1000)",
	"cache_size(-16000)",
	"temp_store(MEMORY)",
}

var profiles = map[DatabaseProfile]profileSettings{
	ProfileStandard: {
		pragmas:  []string{"synchronous(NORMAL)", "auto_vacuum(INCREMENTAL)"},
		maxOpen:  10,
		maxIdle:  4,
		lifetime: 24 * time.Hour,
		idleTime: 30 * time.Minute,
	},
	ProfileCache: {
		pragmas:  []string{"synchronous(OFF)", "auto_vacuum(FULL)"},
		maxOpen:  4,
		maxIdle:  2,
		lifetime: 24 * time.Hour,
		idleTime: 30 * time.Minute,
	},
}

// DB is an open database plus the metadata needed to maintain it
type DB struct {
	conn    *sql.DB
	path    string
	profile DatabaseProfile
	name    string
}

// Config describes one database to open
type Config struct {
	Path    string
	Profile DatabaseProfile
	// Name labels errors and selects the schema applied by Migrate
	Name string
}

// New opens the database, creating its directory when needed, and pings it
func New(cfg Config) (*DB, error) {
	if cfg.Profile == "" {
		cfg.Profile = ProfileStandard
	}
	settings, ok := profiles[cfg.Profile]
	if !ok {
		return nil, fmt.Errorf("unknown database profile %q for %s", cfg.Profile, cfg.Name)
	}

	if !strings.HasPrefix(cfg.Path, "file:") {
		abs, err := filepath.Abs(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve path for %s: %w", cfg.Name, err)
		}
		if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", cfg.Name, err)
		}
		cfg.Path = abs
	}

	conn, err := sql.Open("sqlite", buildConnectionString(cfg.Path, cfg.Profile))
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.Name, err)
	}
	conn.SetMaxOpenConns(settings.maxOpen)
	conn.SetMaxIdleConns(settings.maxIdle)
	conn.SetConnMaxLifetime(settings.lifetime)
	conn.SetConnMaxIdleTime(settings.idleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", cfg.Name, err)
	}

	return &DB{conn: conn, path: cfg.Path, profile: cfg.Profile, name: cfg.Name}, nil
}

// buildConnectionString appends one _pragma parameter per setting to path
func buildConnectionString(path string, profile DatabaseProfile) string {
	var b strings.Builder
	b.WriteString(path)

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	pragmas := append(append([]string{}, basePragmas...), profiles[profile].pragmas...)
	for _, p := range pragmas {
		b.WriteString(sep)
		b.WriteString("_pragma=")
		b.WriteString(p)
		sep = "&"
	}
	return b.String()
}

// Close closes every pooled connection
func (db *DB) Close() error { return db.conn.Close() }

// Conn returns the pool for repositories to query through
func (db *DB) Conn() *sql.DB { return db.conn }

// Name returns the database name
func (db *DB) Name() string { return db.name }

// Profile returns the profile the database was opened with
func (db *DB) Profile() DatabaseProfile { return db.profile }

// Path returns the absolute file path, or the file: URI as given
func (db *DB) Path() string { return db.path }

// Migrate applies this database's embedded schema. Reapplying is a no-op.
func (db *DB) Migrate() error {
	return ApplySchema(db.conn, db.name)
}

// ApplySchema runs the embedded schema named after name against conn.
// A name without a schema file leaves the database untouched.
func ApplySchema(conn *sql.DB, name string) error {
	file := "schemas/" + name + "_schema.sql"
	ddl, err := schemaFS.ReadFile(file)
	if err != nil {
		return nil
	}

	return WithTransaction(conn, func(tx *sql.Tx) error {
		if _, err := tx.Exec(string(ddl)); err != nil {
			return fmt.Errorf("failed to apply %s: %w", file, err)
		}
		return nil
	})
}
