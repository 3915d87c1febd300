// Package sqlite stores users and subscriptions in a SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

//go:embed migration/*.sql
var migrationFS embed.FS

// DB represents the database connection. It implements mailbus.Database.
type DB struct {
	sqlDB  *sql.DB
	ctx    context.Context
	cancel func()

	path string
}

// NewDB returns new database
func NewDB(path string) *DB {
	db := &DB{
		path: path,
	}

	db.ctx, db.cancel = context.WithCancel(context.Background())

	return db
}

// Open opens the database file and applies pending migrations
func (db *DB) Open() (err error) {
	if db.path == "" {
		return errors.New("path required")
	}

	if db.sqlDB != nil {
		return nil
	}

	dsn := db.path
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=busy_timeout(5000)"
	}
	if db.sqlDB, err = sql.Open("sqlite", dsn); err != nil {
		return err
	}
	// SQLite allows a single writer
	db.sqlDB.SetMaxOpenConns(1)

	if err := db.migrate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	return nil
}

func (db *DB) migrate() error {
	if _, err := db.sqlDB.ExecContext(db.ctx, `CREATE TABLE IF NOT EXISTS migrations (name TEXT PRIMARY KEY);`); err != nil {
		return fmt.Errorf("cannot create migrations table: %w", err)
	}

	names, err := fs.Glob(migrationFS, "migration/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)

	for _, name := range names {
		if err := db.migrateFile(name); err != nil {
			return fmt.Errorf("migration error: name=%q, err=%w", name, err)
		}
	}

	return nil
}

// migrateFile runs a migration once, in its own transaction
func (db *DB) migrateFile(name string) error {
	tx, err := db.sqlDB.BeginTx(db.ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var applied int
	if err := tx.QueryRowContext(db.ctx, `SELECT COUNT(*) FROM migrations WHERE name = ?`, name).Scan(&applied); err != nil {
		return err
	}
	if applied != 0 {
		return nil
	}

	buf, err := fs.ReadFile(migrationFS, name)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(db.ctx, string(buf)); err != nil {
		return err
	}

	if _, err := tx.ExecContext(db.ctx, `INSERT INTO migrations (name) VALUES (?)`, name); err != nil {
		return err
	}

	return tx.Commit()
}

// Close closes database connection
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
