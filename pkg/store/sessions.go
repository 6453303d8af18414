package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/harun/kaiwa/internal/observability"
	"github.com/harun/kaiwa/pkg/ledger"
)

// SessionStore is the SQLite implementation of ledger.SessionStore.
type SessionStore struct {
	db *DB
}

// NewSessionStore creates a session store over the shared database.
func NewSessionStore(db *DB) *SessionStore {
	return &SessionStore{db: db}
}

const sessionColumns = `session_id, status, language, started_at, ended_at, metadata`

// CreateOrGet atomically inserts the session if absent and returns the
// stored record either way. The primary key on session_id is the atomicity
// mechanism: a racing duplicate insert becomes a no-op and the loser reads
// back the winner's row. Fields of a duplicate request are discarded.
func (s *SessionStore) CreateOrGet(ctx context.Context, params ledger.CreateSessionParams) (ledger.Session, error) {
	status := params.Status
	if status == "" {
		status = ledger.StatusInitiated
	}
	startedAt := params.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}
	metadata := params.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return ledger.Session{}, unavailable("encode session metadata", err)
	}

	res, err := s.db.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, status, language, started_at, ended_at, metadata)
		 VALUES (?, ?, ?, ?, NULL, ?)
		 ON CONFLICT(session_id) DO NOTHING`,
		params.SessionID, string(status), params.Language, startedAt.UnixNano(), string(metaJSON),
	)
	if err != nil {
		return ledger.Session{}, unavailable("insert session", err)
	}

	if n, err := res.RowsAffected(); err == nil && n > 0 {
		observability.RecordSessionCreated()
	}

	sess, found, err := s.FindBySessionID(ctx, params.SessionID)
	if err != nil {
		return ledger.Session{}, err
	}
	if !found {
		// The row cannot vanish between insert and read: sessions are
		// never deleted.
		return ledger.Session{}, unavailable("read back session", sql.ErrNoRows)
	}
	return sess, nil
}

// FindBySessionID returns the session, or found=false when absent.
func (s *SessionStore) FindBySessionID(ctx context.Context, sessionID string) (ledger.Session, bool, error) {
	row := s.db.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?`, sessionID)

	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Session{}, false, nil
	}
	if err != nil {
		return ledger.Session{}, false, unavailable("query session", err)
	}
	return sess, true, nil
}

// Complete unconditionally marks the session completed and stamps endedAt,
// in a single conditional update matched on session_id. Re-completion is
// allowed and refreshes endedAt. Returns found=false when no record exists.
func (s *SessionStore) Complete(ctx context.Context, sessionID string) (ledger.Session, bool, error) {
	endedAt := time.Now().UTC()

	res, err := s.db.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, ended_at = ? WHERE session_id = ?`,
		string(ledger.StatusCompleted), endedAt.UnixNano(), sessionID,
	)
	if err != nil {
		return ledger.Session{}, false, unavailable("complete session", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return ledger.Session{}, false, unavailable("complete session", err)
	}
	if n == 0 {
		return ledger.Session{}, false, nil
	}

	return s.FindBySessionID(ctx, sessionID)
}

// FindStale returns IDs of sessions not yet completed whose last activity
// (latest event timestamp, or startedAt when the session has no events)
// predates the cutoff. Used by the sweeper.
func (s *SessionStore) FindStale(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	rows, err := s.db.db.QueryContext(ctx,
		`SELECT s.session_id
		 FROM sessions s
		 WHERE s.status != ?
		   AND COALESCE(
		         (SELECT MAX(e.timestamp) FROM events e WHERE e.session_id = s.session_id),
		         s.started_at
		       ) < ?
		 ORDER BY s.started_at ASC
		 LIMIT ?`,
		string(ledger.StatusCompleted), cutoff.UnixNano(), limit,
	)
	if err != nil {
		return nil, unavailable("query stale sessions", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, unavailable("scan stale session", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate stale sessions", err)
	}
	return ids, nil
}

// CountOpen returns the number of sessions not yet completed.
func (s *SessionStore) CountOpen(ctx context.Context) (int, error) {
	var n int
	err := s.db.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE status != ?`,
		string(ledger.StatusCompleted),
	).Scan(&n)
	if err != nil {
		return 0, unavailable("count open sessions", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (ledger.Session, error) {
	var (
		sess      ledger.Session
		status    string
		startedAt int64
		endedAt   sql.NullInt64
		metaJSON  string
	)
	if err := row.Scan(&sess.SessionID, &status, &sess.Language, &startedAt, &endedAt, &metaJSON); err != nil {
		return ledger.Session{}, err
	}

	sess.Status = ledger.SessionStatus(status)
	sess.StartedAt = time.Unix(0, startedAt).UTC()
	if endedAt.Valid {
		t := time.Unix(0, endedAt.Int64).UTC()
		sess.EndedAt = &t
	}
	if err := json.Unmarshal([]byte(metaJSON), &sess.Metadata); err != nil {
		return ledger.Session{}, err
	}
	return sess, nil
}
