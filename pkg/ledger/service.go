package ledger

import (
	"context"
	"fmt"

	"github.com/harun/kaiwa/internal/observability"
	"github.com/harun/kaiwa/internal/tracing"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Service coordinates the two stores and enforces the cross-entity
// invariant that no event is recorded against a nonexistent session. It
// holds no mutable state of its own.
type Service struct {
	sessions SessionStore
	events   EventStore
}

// NewService creates a ledger service over the given stores.
func NewService(sessions SessionStore, events EventStore) *Service {
	observability.EnsureRegistered()
	return &Service{
		sessions: sessions,
		events:   events,
	}
}

// CreateOrGetSession creates a session or returns the existing record for
// the same session ID. Idempotent: a duplicate request never fails and
// never mutates the stored record.
func (s *Service) CreateOrGetSession(ctx context.Context, params CreateSessionParams) (Session, error) {
	ctx = tracing.WithSessionID(ctx, params.SessionID)
	ctx, span := tracing.StartSpan(
		ctx,
		"kaiwa.ledger",
		"ledger.create_or_get_session",
		attribute.String("session_id", params.SessionID),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, log.Logger).With().Str("session_id", params.SessionID).Logger()

	sess, err := s.sessions.CreateOrGet(ctx, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Session{}, fmt.Errorf("create or get session %q: %w", params.SessionID, err)
	}

	logger.Debug().Str("status", string(sess.Status)).Msg("Session resolved")
	return sess, nil
}

// AddEvent appends an event to an existing session. The session is
// re-read fresh on every call, before the event store is touched; a
// missing session fails with ErrSessionNotFound and records nothing.
// Idempotent on (sessionID, eventID): a duplicate returns the originally
// stored event with its original timestamp.
func (s *Service) AddEvent(ctx context.Context, sessionID, eventID string, typ EventType, payload map[string]any) (Event, error) {
	ctx = tracing.WithSessionID(ctx, sessionID)
	ctx, span := tracing.StartSpan(
		ctx,
		"kaiwa.ledger",
		"ledger.add_event",
		attribute.String("session_id", sessionID),
		attribute.String("event_id", eventID),
		attribute.String("event_type", string(typ)),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, log.Logger).With().
		Str("session_id", sessionID).
		Str("event_id", eventID).
		Logger()

	_, found, err := s.sessions.FindBySessionID(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Event{}, fmt.Errorf("resolve session %q: %w", sessionID, err)
	}
	if !found {
		span.SetStatus(codes.Error, ErrSessionNotFound.Error())
		return Event{}, fmt.Errorf("add event %q: %w", eventID, ErrSessionNotFound)
	}

	event, err := s.events.Create(ctx, sessionID, eventID, typ, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Event{}, fmt.Errorf("append event %q to session %q: %w", eventID, sessionID, err)
	}

	observability.RecordEventAppended(string(event.Type))
	logger.Debug().Str("type", string(event.Type)).Msg("Event appended")
	return event, nil
}

// GetSessionWithEvents returns the session together with one page of its
// events and pagination computed from the page window and the total count.
func (s *Service) GetSessionWithEvents(ctx context.Context, sessionID string, offset, limit int) (SessionView, error) {
	ctx = tracing.WithSessionID(ctx, sessionID)
	ctx, span := tracing.StartSpan(
		ctx,
		"kaiwa.ledger",
		"ledger.get_session_with_events",
		attribute.String("session_id", sessionID),
		attribute.Int("offset", offset),
		attribute.Int("limit", limit),
	)
	defer span.End()

	sess, found, err := s.sessions.FindBySessionID(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return SessionView{}, fmt.Errorf("resolve session %q: %w", sessionID, err)
	}
	if !found {
		span.SetStatus(codes.Error, ErrSessionNotFound.Error())
		return SessionView{}, fmt.Errorf("get session %q: %w", sessionID, ErrSessionNotFound)
	}

	events, total, err := s.events.FindBySessionID(ctx, sessionID, offset, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return SessionView{}, fmt.Errorf("list events for session %q: %w", sessionID, err)
	}

	return SessionView{
		Session: sess,
		Events:  events,
		Pagination: Pagination{
			Offset:  offset,
			Limit:   limit,
			Total:   total,
			HasMore: offset+limit < total,
		},
	}, nil
}

// CompleteSession marks the session completed and stamps endedAt.
// Re-completing an already-completed session is allowed and refreshes
// endedAt; there is no path back from completed.
func (s *Service) CompleteSession(ctx context.Context, sessionID string) (Session, error) {
	ctx = tracing.WithSessionID(ctx, sessionID)
	ctx, span := tracing.StartSpan(
		ctx,
		"kaiwa.ledger",
		"ledger.complete_session",
		attribute.String("session_id", sessionID),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, log.Logger).With().Str("session_id", sessionID).Logger()

	sess, found, err := s.sessions.Complete(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Session{}, fmt.Errorf("complete session %q: %w", sessionID, err)
	}
	if !found {
		span.SetStatus(codes.Error, ErrSessionNotFound.Error())
		return Session{}, fmt.Errorf("complete session %q: %w", sessionID, ErrSessionNotFound)
	}

	observability.RecordSessionCompleted()
	logger.Info().Msg("Session completed")
	return sess, nil
}
