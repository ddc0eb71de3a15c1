// Package index provides the SQLite-backed bidirectional tag index and
// the per-group sync watermark.
//
// Annotations and their tag memberships live in one relation each:
// annotation_tags rows are the byTag map when read through the tag
// index and the byAnnotation map when read through the primary key, so
// the two views cannot drift apart. Every mutation runs in a single
// transaction, which gives readers atomic visibility of each Put and
// Remove.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS annotations (
	id       TEXT PRIMARY KEY,
	payload  TEXT NOT NULL,
	group_id TEXT NOT NULL DEFAULT '',
	created  TEXT NOT NULL DEFAULT '',
	updated  TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS annotation_tags (
	annotation_id TEXT NOT NULL,
	tag           TEXT NOT NULL,
	PRIMARY KEY (annotation_id, tag)
);

CREATE INDEX IF NOT EXISTS idx_annotation_tags_tag ON annotation_tags(tag);

CREATE TABLE IF NOT EXISTS sync_state (
	group_id  TEXT PRIMARY KEY,
	last_sync TEXT NOT NULL
);
`

// DB wraps a sql.DB with tag index operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Clear drops every annotation, tag membership, and watermark. Used by
// the clear command before a full rebuild.
func (db *DB) Clear() error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, stmt := range []string{
		`DELETE FROM annotation_tags`,
		`DELETE FROM annotations`,
		`DELETE FROM sync_state`,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("index: clear: %w", err)
		}
	}
	return tx.Commit()
}
