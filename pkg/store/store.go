// Package store provides the SQLite-backed session and event stores.
//
// Uniqueness is enforced by the schema: sessions are keyed by session_id,
// events by the (session_id, event_id) pair. All idempotent creation goes
// through a single INSERT ... ON CONFLICT DO NOTHING followed by a re-read
// of the surviving row, so racing writers converge on one record without
// surfacing a conflict.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/harun/kaiwa/internal/observability"
	"github.com/harun/kaiwa/pkg/ledger"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// DB wraps the shared SQLite handle used by both stores.
type DB struct {
	db *sql.DB
}

// Open opens (and creates if needed) the ledger database at the given DSN
// and applies the schema. Use ":memory:" for an ephemeral database.
func Open(dsn string) (*DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// In-memory SQLite gives every connection its own database. Pin the
	// pool to one connection so the schema survives across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	s := &DB{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	log.Debug().Str("dsn", dsn).Msg("Ledger database opened")
	return s, nil
}

func (d *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			status     TEXT NOT NULL,
			language   TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			ended_at   INTEGER,
			metadata   TEXT NOT NULL DEFAULT '{}'
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			session_id TEXT NOT NULL,
			event_id   TEXT NOT NULL,
			type       TEXT NOT NULL,
			payload    TEXT NOT NULL,
			timestamp  INTEGER NOT NULL,
			PRIMARY KEY (session_id, event_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_session_ts ON events(session_id, timestamp)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	return nil
}

// Ping verifies the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return unavailable("ping database", err)
	}
	return nil
}

// Close closes the underlying handle.
func (d *DB) Close() error {
	return d.db.Close()
}

// unavailable classifies a driver failure as the ledger's storage error
// kind while keeping the cause in the chain.
func unavailable(op string, err error) error {
	observability.RecordStoreError(op)
	return fmt.Errorf("%s: %w: %w", op, ledger.ErrStoreUnavailable, err)
}
