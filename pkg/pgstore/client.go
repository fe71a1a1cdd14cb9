// Package pgstore implements store.Store against PostgreSQL using GORM, and
// runs the orchestrator's schema migrations with golang-migrate against
// embedded SQL files — the same connection-then-migrate shape the teacher's
// database package used for its Ent-backed client, adapted from an ORM
// schema-sync model to an explicit migration model because gorm.AutoMigrate
// alone cannot express the CAS-friendly indexes this package's queries rely
// on.
package pgstore

import (
	stdsql "database/sql"
	"embed"
	"fmt"
	"io/fs"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

//go:embed migrations
var migrationsFS embed.FS

// Config holds the tunables for a pgstore Client, mirroring the teacher's
// database.Config field set.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DSN renders cfg as a libpq-style connection string.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Client wraps a *gorm.DB and the underlying *sql.DB (the latter is what
// pkg/events.NewEventPublisher needs directly, for transactional NOTIFY;
// pkg/events.NewNotifyListener opens its own pgx connection from the DSN).
type Client struct {
	db  *gorm.DB
	sql *stdsql.DB
}

// DB returns the underlying *sql.DB, for health checks and pkg/events'
// EventPublisher.
func (c *Client) DB() *stdsql.DB {
	return c.sql
}

// Gorm returns the *gorm.DB handle the Store implementation queries
// through.
func (c *Client) Gorm() *gorm.DB {
	return c.db
}

// Close closes the underlying connection pool.
func (c *Client) Close() error {
	return c.sql.Close()
}

// NewClient opens a connection pool against cfg, runs pending migrations,
// and returns a ready Client. Connection and migration failures are
// returned, never logged-and-ignored — a half-migrated schema must not
// silently serve traffic.
func NewClient(cfg Config) (*Client, error) {
	sqlDB, err := stdsql.Open("pgx", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("pgstore: open: %w", err)
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
	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("pgstore: ping: %w", err)
	}

	if err := Migrate(sqlDB, cfg.Database); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("pgstore: migrate: %w", err)
	}

	gormDB, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("pgstore: gorm open: %w", err)
	}

	return &Client{db: gormDB, sql: sqlDB}, nil
}

// Migrate applies every pending embedded migration to db. Exported so the
// "migrate" CLI subcommand can run it standalone, ahead of starting the
// server.
func Migrate(db *stdsql.DB, databaseName string) error {
	if ok, err := hasEmbeddedMigrations(); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("pgstore: no embedded migration files found")
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create postgres driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, databaseName, driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	// Only the source driver is closed: m.Close() also closes the database
	// driver, which would close db, the shared *sql.DB the caller still
	// needs (same caution the teacher's runMigrations noted).
	return sourceDriver.Close()
}

func hasEmbeddedMigrations() (bool, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return false, fmt.Errorf("read embedded migrations: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() && len(e.Name()) > 4 && e.Name()[len(e.Name())-4:] == ".sql" {
			return true, nil
		}
	}
	return false, nil
}
