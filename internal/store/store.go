// Package store is the persistent item/attribute gateway: typed SQLite
// tables for feeds, sources, subscriptions, things and sites, with stable
// integer ids that sources use to reference their Thing/Site/Subscription
// targets.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the persistent registry backing the notification pipeline.
// All methods are safe for concurrent use; SQLite serializes writes.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at dbPath and
// applies the schema.
func Open(dbPath string) (*Store, error) {
	// _foreign_keys=on makes SQLite enforce the schema's ON DELETE clauses.
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS things (
		id    INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		uri   TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sites (
		id    INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		uri   TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS feeds (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		handle         TEXT NOT NULL UNIQUE,
		title          TEXT NOT NULL,
		language       TEXT NOT NULL DEFAULT 'en',
		aggregator_ref TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS subscriptions (
		id      INTEGER PRIMARY KEY AUTOINCREMENT,
		service TEXT NOT NULL,
		node    TEXT NOT NULL,
		state   TEXT NOT NULL DEFAULT '',
		UNIQUE (service, node)
	);

	CREATE TABLE IF NOT EXISTS sources (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		feed_id         INTEGER NOT NULL REFERENCES feeds(id) ON DELETE CASCADE,
		kind            TEXT NOT NULL,
		enabled         INTEGER NOT NULL DEFAULT 1,
		via             TEXT NOT NULL DEFAULT '',
		subscription_id INTEGER REFERENCES subscriptions(id) ON DELETE SET NULL,
		attrs_json      TEXT NOT NULL DEFAULT '{}'
	);

	CREATE INDEX IF NOT EXISTS idx_sources_feed_id ON sources(feed_id);
	CREATE INDEX IF NOT EXISTS idx_sources_subscription_id ON sources(subscription_id);
	`
	_, err := s.db.Exec(schema)
	return err
}
