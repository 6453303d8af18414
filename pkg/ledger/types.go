package ledger

import "time"

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	StatusInitiated SessionStatus = "initiated"
	StatusActive    SessionStatus = "active"
	StatusCompleted SessionStatus = "completed"
)

// Valid reports whether the status is one of the known enum values.
func (s SessionStatus) Valid() bool {
	switch s {
	case StatusInitiated, StatusActive, StatusCompleted:
		return true
	}
	return false
}

// EventType classifies a conversation event.
type EventType string

const (
	EventTypeUserSpeech EventType = "user_speech"
	EventTypeBotSpeech  EventType = "bot_speech"
	EventTypeSystem     EventType = "system"
)

// Valid reports whether the type is one of the known enum values.
func (t EventType) Valid() bool {
	switch t {
	case EventTypeUserSpeech, EventTypeBotSpeech, EventTypeSystem:
		return true
	}
	return false
}

// Session is a conversational interaction scoped by a caller-supplied ID.
// All fields except Status and EndedAt are immutable after creation.
type Session struct {
	SessionID string         `json:"sessionId"`
	Status    SessionStatus  `json:"status"`
	Language  string         `json:"language"`
	StartedAt time.Time      `json:"startedAt"`
	EndedAt   *time.Time     `json:"endedAt,omitempty"`
	Metadata  map[string]any `json:"metadata"`
}

// Event is a single occurrence recorded within a session. Events are
// immutable: the stored record never changes after first insertion.
type Event struct {
	EventID   string         `json:"eventId"`
	SessionID string         `json:"sessionId"`
	Type      EventType      `json:"type"`
	Payload   map[string]any `json:"payload"`
	Timestamp time.Time      `json:"timestamp"`
}

// CreateSessionParams carries the caller-supplied fields for session
// creation. SessionID and Language are required; the rest default at the
// store (status initiated, startedAt now, metadata empty).
type CreateSessionParams struct {
	SessionID string
	Status    SessionStatus
	Language  string
	StartedAt time.Time
	Metadata  map[string]any
}

// Pagination describes the window of an event page relative to the full log.
type Pagination struct {
	Offset  int  `json:"offset"`
	Limit   int  `json:"limit"`
	Total   int  `json:"total"`
	HasMore bool `json:"hasMore"`
}

// SessionView is a session combined with one page of its events.
type SessionView struct {
	Session    Session    `json:"session"`
	Events     []Event    `json:"events"`
	Pagination Pagination `json:"pagination"`
}
