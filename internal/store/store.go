package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
)

//go:embed migrations
var migrationsFS embed.FS

// Config holds connection-pool tuning, mirroring the teacher's
// pkg/database.Config.
type Config struct {
	DatabaseURL     string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Store wraps a pooled Postgres connection and exposes the logical-table
// operations every component in §6 needs (config, credentials, pages,
// per-source snapshots, speed scores, link health, conversion audit,
// findings, decision queue, change log, notifications, guardrails,
// weekly digest, trend snapshots, signal log).
type Store struct {
	db *sqlx.DB
}

// New opens a connection pool, runs embedded migrations, and returns a
// ready Store — grounded on pkg/database/client.go's NewClient, minus the
// ent driver wrapping step (see package doc in models.go).
func New(ctx context.Context, cfg Config) (*Store, error) {
	sqlDB, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: sqlx.NewDb(sqlDB, "pgx")}, nil
}

// NewFromDB wraps an already-open *sql.DB, used by tests against a
// testcontainers-backed Postgres instance.
func NewFromDB(sqlDB *sql.DB) *Store {
	return &Store{db: sqlx.NewDb(sqlDB, "pgx")}
}

func runMigrations(db *sql.DB) error {
	hasMigrations, err := hasEmbeddedMigrations()
	if err != nil {
		return err
	}
	if !hasMigrations {
		return fmt.Errorf("no embedded migration files found")
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create postgres driver: %w", err)
	}
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sitewatch", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}
	// Only close the source driver — closing m would also close db, which
	// is shared with the rest of the process (same caveat as the teacher's
	// pkg/database/client.go runMigrations).
	return sourceDriver.Close()
}

func hasEmbeddedMigrations() (bool, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if !e.IsDir() && len(e.Name()) > 4 && e.Name()[len(e.Name())-4:] == ".sql" {
			return true, nil
		}
	}
	return false, nil
}

// DB exposes the underlying *sqlx.DB for health checks.
func (s *Store) DB() *sqlx.DB { return s.db }

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// Ping checks connectivity, used by the /healthz handler.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
