// Package bolt stores users and subscriptions in a bbolt file through storm.
package bolt

import (
	"context"
	"time"

	"github.com/asdine/storm/v3"
	bbolt "go.etcd.io/bbolt"
)

// DB represents a database. It implements mailbus.Database.
type DB struct {
	path    string
	stormDB *storm.DB
	ctx     context.Context
	cancel  func()
}

// NewDB returns new database
func NewDB(path string) *DB {
	db := &DB{
		path: path,
	}

	db.ctx, db.cancel = context.WithCancel(context.Background())

	return db
}

// Open opens the database file, waiting at most a second for the file lock
func (db *DB) Open() error {
	stormDB, err := storm.Open(db.path, storm.BoltOptions(0600, &bbolt.Options{Timeout: time.Second}))
	if err != nil {
		return err
	}
	db.stormDB = stormDB

	return nil
}

// Close closes database connection
func (db *DB) Close() error {
	db.cancel()

	if db.stormDB != nil {
		return db.stormDB.Close()
	}

	return nil
}
