// Package postgres stores users and subscriptions in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// DB represents the database connection pool. It implements mailbus.Database.
type DB struct {
	sqlDB  *sql.DB
	ctx    context.Context
	cancel func()

	dsn            string
	maxConnections int
}

// NewDB returns new database
func NewDB(dsn string, maxConnections int) *DB {
	if maxConnections <= 0 {
		maxConnections = 25
	}

	db := &DB{
		dsn:            dsn,
		maxConnections: maxConnections,
	}

	db.ctx, db.cancel = context.WithCancel(context.Background())

	return db
}

// Open connects to the server and applies pending migrations
func (db *DB) Open() (err error) {
	if db.dsn == "" {
		return errors.New("dsn required")
	}

	if db.sqlDB != nil {
		return nil
	}

	if db.sqlDB, err = sql.Open("postgres", db.dsn); err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.sqlDB.SetMaxOpenConns(db.maxConnections)
	db.sqlDB.SetMaxIdleConns(max(1, db.maxConnections/4))
	db.sqlDB.SetConnMaxLifetime(time.Hour)
	db.sqlDB.SetConnMaxIdleTime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(db.ctx, 5*time.Second)
	defer cancel()
	if err := db.sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if err := db.migrate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	return nil
}

func (db *DB) migrate() error {
	source, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return err
	}

	driver, err := migratepg.WithInstance(db.sqlDB, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	return nil
}

// Close closes the connection pool
func (db *DB) Close() error {
	if db.sqlDB == nil {
		return nil
	}

	db.cancel()

	if err := db.sqlDB.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing database")
	}

	return nil
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
