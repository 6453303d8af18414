package ledger

import (
	"context"
	"time"
)

// SessionStore persists Session records keyed uniquely by session ID.
//
// CreateOrGet must be atomic against the store: two concurrent callers with
// the same session ID must converge on a single record, with the loser
// reading back the winner's row rather than failing.
type SessionStore interface {
	// CreateOrGet inserts a new session if none exists for the ID and
	// returns the stored record either way. Fields of a duplicate request
	// are discarded; the existing record is returned verbatim.
	CreateOrGet(ctx context.Context, params CreateSessionParams) (Session, error)

	// FindBySessionID returns the session, or (Session{}, false, nil)
	// when no record exists. No side effects.
	FindBySessionID(ctx context.Context, sessionID string) (Session, bool, error)

	// Complete atomically sets status to completed and endedAt to now,
	// unconditionally, including on an already-completed session.
	// Returns (Session{}, false, nil) when no record exists.
	Complete(ctx context.Context, sessionID string) (Session, bool, error)
}

// EventStore persists Event records keyed uniquely by (session ID, event ID).
// It does not verify session existence; that invariant lives in the Service.
type EventStore interface {
	// Create inserts the event with a store-assigned timestamp if absent,
	// or returns the previously stored record unchanged on conflict.
	Create(ctx context.Context, sessionID, eventID string, typ EventType, payload map[string]any) (Event, error)

	// FindBySessionID returns one page of the session's events ordered
	// ascending by timestamp (ties broken by insertion order), plus the
	// total event count for the session. Both values come from the same
	// logical read round.
	FindBySessionID(ctx context.Context, sessionID string, offset, limit int) ([]Event, int, error)
}

// StaleSessionStore is the extra read path the sweeper needs: sessions not
// yet completed whose last activity predates the cutoff.
type StaleSessionStore interface {
	FindStale(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
}
