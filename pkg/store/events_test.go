package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/harun/kaiwa/pkg/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventStore_Create(t *testing.T) {
	db := setupTestDB(t)
	events := NewEventStore(db)
	ctx := context.Background()

	t.Run("assigns timestamp at insertion", func(t *testing.T) {
		before := time.Now().UTC()
		event, err := events.Create(ctx, "s1", "e1", ledger.EventTypeUserSpeech, map[string]any{"text": "hi"})
		require.NoError(t, err)
		after := time.Now().UTC()

		assert.Equal(t, "e1", event.EventID)
		assert.Equal(t, "s1", event.SessionID)
		assert.Equal(t, ledger.EventTypeUserSpeech, event.Type)
		assert.Equal(t, "hi", event.Payload["text"])
		assert.False(t, event.Timestamp.Before(before))
		assert.False(t, event.Timestamp.After(after))
	})

	t.Run("duplicate returns original event unchanged", func(t *testing.T) {
		first, err := events.Create(ctx, "s1", "e-dup", ledger.EventTypeUserSpeech, map[string]any{"text": "original"})
		require.NoError(t, err)

		time.Sleep(2 * time.Millisecond)

		second, err := events.Create(ctx, "s1", "e-dup", ledger.EventTypeSystem, map[string]any{"text": "replacement"})
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, ledger.EventTypeUserSpeech, second.Type)
		assert.Equal(t, "original", second.Payload["text"])
		assert.Equal(t, first.Timestamp, second.Timestamp)
	})

	t.Run("same event ID in another session is a distinct event", func(t *testing.T) {
		a, err := events.Create(ctx, "sess-a", "shared", ledger.EventTypeSystem, nil)
		require.NoError(t, err)
		b, err := events.Create(ctx, "sess-b", "shared", ledger.EventTypeBotSpeech, nil)
		require.NoError(t, err)

		assert.Equal(t, ledger.EventTypeSystem, a.Type)
		assert.Equal(t, ledger.EventTypeBotSpeech, b.Type)
	})

	t.Run("nil payload stored as empty object", func(t *testing.T) {
		event, err := events.Create(ctx, "s1", "e-nil", ledger.EventTypeSystem, nil)
		require.NoError(t, err)
		assert.NotNil(t, event.Payload)
		assert.Empty(t, event.Payload)
	})
}

func TestEventStore_FindBySessionID(t *testing.T) {
	db := setupTestDB(t)
	events := NewEventStore(db)
	ctx := context.Background()

	const n = 25
	for i := 1; i <= n; i++ {
		_, err := events.Create(ctx, "s1", fmt.Sprintf("e%02d", i), ledger.EventTypeUserSpeech, map[string]any{"seq": i})
		require.NoError(t, err)
	}

	t.Run("middle page", func(t *testing.T) {
		page, total, err := events.FindBySessionID(ctx, "s1", 10, 10)
		require.NoError(t, err)

		assert.Equal(t, n, total)
		require.Len(t, page, 10)
		assert.Equal(t, "e11", page[0].EventID)
		assert.Equal(t, "e20", page[9].EventID)
	})

	t.Run("last partial page", func(t *testing.T) {
		page, total, err := events.FindBySessionID(ctx, "s1", 20, 10)
		require.NoError(t, err)

		assert.Equal(t, n, total)
		require.Len(t, page, 5)
		assert.Equal(t, "e21", page[0].EventID)
		assert.Equal(t, "e25", page[4].EventID)
	})

	t.Run("offset beyond end", func(t *testing.T) {
		page, total, err := events.FindBySessionID(ctx, "s1", 100, 10)
		require.NoError(t, err)

		assert.Equal(t, n, total)
		assert.Empty(t, page)
	})

	t.Run("ascending timestamp order", func(t *testing.T) {
		page, _, err := events.FindBySessionID(ctx, "s1", 0, n)
		require.NoError(t, err)
		require.Len(t, page, n)

		for i := 1; i < len(page); i++ {
			assert.False(t, page[i].Timestamp.Before(page[i-1].Timestamp),
				"event %s out of order", page[i].EventID)
		}
	})

	t.Run("unknown session yields empty page and zero total", func(t *testing.T) {
		page, total, err := events.FindBySessionID(ctx, "ghost", 0, 10)
		require.NoError(t, err)
		assert.Empty(t, page)
		assert.Equal(t, 0, total)
	})
}

func TestEventStore_CountForSession(t *testing.T) {
	db := setupTestDB(t)
	events := NewEventStore(db)
	ctx := context.Background()

	n, err := events.CountForSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	for i := 0; i < 3; i++ {
		_, err := events.Create(ctx, "s1", fmt.Sprintf("e%d", i), ledger.EventTypeSystem, nil)
		require.NoError(t, err)
	}

	n, err = events.CountForSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestStore_ConcurrentIdempotentWrites(t *testing.T) {
	// A file-backed database exercises the real multi-connection path.
	db, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer db.Close()

	sessions := NewSessionStore(db)
	events := NewEventStore(db)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	results := make([]ledger.Session, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess, err := sessions.CreateOrGet(ctx, ledger.CreateSessionParams{
				SessionID: "raced",
				Language:  fmt.Sprintf("lang-%d", i),
			})
			assert.NoError(t, err)
			results[i] = sess
		}(i)
	}
	wg.Wait()

	// All racers converge on a single record.
	for i := 1; i < workers; i++ {
		assert.Equal(t, results[0], results[i])
	}

	eventResults := make([]ledger.Event, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			event, err := events.Create(ctx, "raced", "e-raced", ledger.EventTypeSystem, map[string]any{"worker": i})
			assert.NoError(t, err)
			eventResults[i] = event
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		assert.Equal(t, eventResults[0], eventResults[i])
	}

	total, err := events.CountForSession(ctx, "raced")
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}
