package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/harun/kaiwa/pkg/ledger"
)

// EventStore is the SQLite implementation of ledger.EventStore. It is a
// pure uniqueness-and-ordering primitive: session existence is checked one
// layer up, in the ledger service.
type EventStore struct {
	db *DB
}

// NewEventStore creates an event store over the shared database.
func NewEventStore(db *DB) *EventStore {
	return &EventStore{db: db}
}

// Create atomically inserts the event with a store-assigned timestamp if no
// record exists for (sessionID, eventID), and returns the stored record
// either way. On conflict the incoming type and payload are discarded and
// the original event, with its original timestamp, comes back.
func (s *EventStore) Create(ctx context.Context, sessionID, eventID string, typ ledger.EventType, payload map[string]any) (ledger.Event, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return ledger.Event{}, unavailable("encode event payload", err)
	}

	_, err = s.db.db.ExecContext(ctx,
		`INSERT INTO events (session_id, event_id, type, payload, timestamp)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(session_id, event_id) DO NOTHING`,
		sessionID, eventID, string(typ), string(payloadJSON), time.Now().UTC().UnixNano(),
	)
	if err != nil {
		return ledger.Event{}, unavailable("insert event", err)
	}

	row := s.db.db.QueryRowContext(ctx,
		`SELECT session_id, event_id, type, payload, timestamp
		 FROM events WHERE session_id = ? AND event_id = ?`,
		sessionID, eventID,
	)
	event, err := scanEvent(row)
	if err != nil {
		// Events are never deleted, so the row must exist after the insert.
		return ledger.Event{}, unavailable("read back event", err)
	}
	return event, nil
}

// FindBySessionID returns one page of the session's events ordered
// ascending by timestamp, ties broken by insertion order (rowid), plus the
// total count. Page and count run inside one transaction so they reflect
// the same read round.
func (s *EventStore) FindBySessionID(ctx context.Context, sessionID string, offset, limit int) ([]ledger.Event, int, error) {
	tx, err := s.db.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, unavailable("begin read transaction", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT session_id, event_id, type, payload, timestamp
		 FROM events WHERE session_id = ?
		 ORDER BY timestamp ASC, rowid ASC
		 LIMIT ? OFFSET ?`,
		sessionID, limit, offset,
	)
	if err != nil {
		return nil, 0, unavailable("query events", err)
	}

	events := []ledger.Event{}
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			rows.Close()
			return nil, 0, unavailable("scan event", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, 0, unavailable("iterate events", err)
	}
	rows.Close()

	var total int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events WHERE session_id = ?`, sessionID,
	).Scan(&total); err != nil {
		return nil, 0, unavailable("count events", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, unavailable("commit read transaction", err)
	}
	return events, total, nil
}

// CountForSession returns the total event count for a session.
func (s *EventStore) CountForSession(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := s.db.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events WHERE session_id = ?`, sessionID,
	).Scan(&n)
	if err != nil {
		return 0, unavailable("count events", err)
	}
	return n, nil
}

func scanEvent(row rowScanner) (ledger.Event, error) {
	var (
		event       ledger.Event
		typ         string
		payloadJSON string
		timestamp   int64
	)
	if err := row.Scan(&event.SessionID, &event.EventID, &typ, &payloadJSON, &timestamp); err != nil {
		return ledger.Event{}, err
	}

	event.Type = ledger.EventType(typ)
	event.Timestamp = time.Unix(0, timestamp).UTC()
	if err := json.Unmarshal([]byte(payloadJSON), &event.Payload); err != nil {
		return ledger.Event{}, err
	}
	return event, nil
}
