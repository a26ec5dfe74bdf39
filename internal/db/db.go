package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"github.com/tripdesk/apiserver/config"
)

const (
	defaultDBDriver     = "postgres"
	defaultPingTimeout  = 5 * time.Second
	defaultConnMaxIdle  = 2 * time.Minute
	defaultConnMaxLife  = 30 * time.Minute
	defaultMaxIdleConns = 5
	defaultMaxOpenConns = 25

	// DefaultMigrationsURL is relative to the repository root.
	DefaultMigrationsURL = "file://internal/db/migrations"
)

// PostgresURL renders the connection URL for cfg.
func PostgresURL(cfg config.DatabaseConfig) string {
	sslmode := "disable"
	if cfg.UseSSL {
		sslmode = "require"
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		User:   url.UserPassword(cfg.User, cfg.Password),
		Path:   cfg.DBName,
	}
	q := u.Query()
	q.Set("sslmode", sslmode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Open connects to the configured database and verifies the connection.
func Open(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	return OpenURL(ctx, PostgresURL(cfg.Database))
}

// OpenURL connects to dsn with the default pool settings.
func OpenURL(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open(defaultDBDriver, dsn)
	if err != nil {
		return nil, err
	}

	db.SetConnMaxIdleTime(defaultConnMaxIdle)
	db.SetConnMaxLifetime(defaultConnMaxLife)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetMaxOpenConns(defaultMaxOpenConns)

	ctx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// MigrateUp applies every pending up migration from sourceURL.
func MigrateUp(sourceURL, dsn string) error {
	return runMigrator(sourceURL, dsn, func(m *migrate.Migrate) error { return m.Up() })
}

// MigrateDown rolls back steps migrations. A non-positive steps rolls back all.
func MigrateDown(sourceURL, dsn string, steps int) error {
	return runMigrator(sourceURL, dsn, func(m *migrate.Migrate) error {
		if steps > 0 {
			return m.Steps(-steps)
		}
		return m.Down()
	})
}

func runMigrator(sourceURL, dsn string, fn func(*migrate.Migrate) error) error {
	migrator, err := migrate.New(sourceURL, dsn)
	if err != nil {
		return fmt.Errorf("init migrator failed: %w", err)
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := fn(migrator); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("migrate failed: %w", err)
	}
	return nil
}
