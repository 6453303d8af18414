package store

import (
	"context"
	"testing"
	"time"

	"github.com/harun/kaiwa/pkg/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSessionStore_CreateOrGet(t *testing.T) {
	db := setupTestDB(t)
	sessions := NewSessionStore(db)
	ctx := context.Background()

	t.Run("applies defaults on insert", func(t *testing.T) {
		before := time.Now().UTC()
		sess, err := sessions.CreateOrGet(ctx, ledger.CreateSessionParams{
			SessionID: "s-defaults",
			Language:  "en",
		})
		require.NoError(t, err)

		assert.Equal(t, "s-defaults", sess.SessionID)
		assert.Equal(t, ledger.StatusInitiated, sess.Status)
		assert.Equal(t, "en", sess.Language)
		assert.Nil(t, sess.EndedAt)
		assert.NotNil(t, sess.Metadata)
		assert.Empty(t, sess.Metadata)
		assert.False(t, sess.StartedAt.Before(before.Truncate(time.Second)))
	})

	t.Run("honors caller-supplied fields", func(t *testing.T) {
		startedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		sess, err := sessions.CreateOrGet(ctx, ledger.CreateSessionParams{
			SessionID: "s-explicit",
			Status:    ledger.StatusActive,
			Language:  "ja",
			StartedAt: startedAt,
			Metadata:  map[string]any{"channel": "voice"},
		})
		require.NoError(t, err)

		assert.Equal(t, ledger.StatusActive, sess.Status)
		assert.Equal(t, startedAt, sess.StartedAt)
		assert.Equal(t, "voice", sess.Metadata["channel"])
	})

	t.Run("duplicate returns original record unchanged", func(t *testing.T) {
		first, err := sessions.CreateOrGet(ctx, ledger.CreateSessionParams{
			SessionID: "s-dup",
			Language:  "en",
		})
		require.NoError(t, err)

		second, err := sessions.CreateOrGet(ctx, ledger.CreateSessionParams{
			SessionID: "s-dup",
			Status:    ledger.StatusActive,
			Language:  "fr",
			Metadata:  map[string]any{"ignored": true},
		})
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, "en", second.Language)
		assert.Equal(t, ledger.StatusInitiated, second.Status)
	})
}

func TestSessionStore_FindBySessionID(t *testing.T) {
	db := setupTestDB(t)
	sessions := NewSessionStore(db)
	ctx := context.Background()

	_, err := sessions.CreateOrGet(ctx, ledger.CreateSessionParams{SessionID: "s1", Language: "en"})
	require.NoError(t, err)

	t.Run("existing session", func(t *testing.T) {
		sess, found, err := sessions.FindBySessionID(ctx, "s1")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "s1", sess.SessionID)
	})

	t.Run("missing session", func(t *testing.T) {
		_, found, err := sessions.FindBySessionID(ctx, "ghost")
		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestSessionStore_Complete(t *testing.T) {
	db := setupTestDB(t)
	sessions := NewSessionStore(db)
	ctx := context.Background()

	t.Run("missing session reports absent", func(t *testing.T) {
		_, found, err := sessions.Complete(ctx, "ghost")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("completes and stamps endedAt", func(t *testing.T) {
		created, err := sessions.CreateOrGet(ctx, ledger.CreateSessionParams{SessionID: "s-done", Language: "en"})
		require.NoError(t, err)

		sess, found, err := sessions.Complete(ctx, "s-done")
		require.NoError(t, err)
		require.True(t, found)

		assert.Equal(t, ledger.StatusCompleted, sess.Status)
		require.NotNil(t, sess.EndedAt)
		assert.False(t, sess.EndedAt.Before(created.StartedAt))
	})

	t.Run("re-completion refreshes endedAt", func(t *testing.T) {
		_, err := sessions.CreateOrGet(ctx, ledger.CreateSessionParams{SessionID: "s-twice", Language: "en"})
		require.NoError(t, err)

		first, found, err := sessions.Complete(ctx, "s-twice")
		require.NoError(t, err)
		require.True(t, found)

		time.Sleep(5 * time.Millisecond)

		second, found, err := sessions.Complete(ctx, "s-twice")
		require.NoError(t, err)
		require.True(t, found)

		assert.Equal(t, ledger.StatusCompleted, second.Status)
		assert.True(t, second.EndedAt.After(*first.EndedAt))
	})
}

func TestSessionStore_FindStale(t *testing.T) {
	db := setupTestDB(t)
	sessions := NewSessionStore(db)
	events := NewEventStore(db)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)

	// Idle session with no events, started long ago.
	_, err := sessions.CreateOrGet(ctx, ledger.CreateSessionParams{SessionID: "idle", Language: "en", StartedAt: old})
	require.NoError(t, err)

	// Old session kept alive by a fresh event.
	_, err = sessions.CreateOrGet(ctx, ledger.CreateSessionParams{SessionID: "busy", Language: "en", StartedAt: old})
	require.NoError(t, err)
	_, err = events.Create(ctx, "busy", "e1", ledger.EventTypeSystem, nil)
	require.NoError(t, err)

	// Completed sessions are never stale.
	_, err = sessions.CreateOrGet(ctx, ledger.CreateSessionParams{SessionID: "done", Language: "en", StartedAt: old})
	require.NoError(t, err)
	_, found, err := sessions.Complete(ctx, "done")
	require.NoError(t, err)
	require.True(t, found)

	ids, err := sessions.FindStale(ctx, time.Now().Add(-24*time.Hour), 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"idle"}, ids)
}

func TestSessionStore_CountOpen(t *testing.T) {
	db := setupTestDB(t)
	sessions := NewSessionStore(db)
	ctx := context.Background()

	n, err := sessions.CountOpen(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = sessions.CreateOrGet(ctx, ledger.CreateSessionParams{SessionID: "a", Language: "en"})
	require.NoError(t, err)
	_, err = sessions.CreateOrGet(ctx, ledger.CreateSessionParams{SessionID: "b", Language: "en"})
	require.NoError(t, err)
	_, _, err = sessions.Complete(ctx, "b")
	require.NoError(t, err)

	n, err = sessions.CountOpen(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
