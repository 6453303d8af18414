// Package ledger implements the conversation session/event ledger.
//
// Invariants:
// - Exactly one Session record exists per session ID; creation is idempotent.
// - Exactly one Event record exists per (session ID, event ID) pair; appends are idempotent.
// - An event is never recorded against a session that does not exist.
// - Event timestamps are assigned by the store at first insertion and never change.
//
// Usage:
//
//	svc := ledger.NewService(sessions, events)
//	sess, _ := svc.CreateOrGetSession(ctx, ledger.CreateSessionParams{SessionID: "s1", Language: "en"})
//	_, _ = svc.AddEvent(ctx, sess.SessionID, "e1", ledger.EventTypeUserSpeech, map[string]any{"text": "hi"})
//	view, _ := svc.GetSessionWithEvents(ctx, sess.SessionID, 0, 50)
//	_ = view
package ledger
