package activity_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libris/internal/activity"
	"libris/internal/activity/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestQueue_PersistReloadRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemory()

	q := activity.NewQueue(st, discardLogger())
	q.Load(ctx)
	for i := range 5 {
		q.Enqueue(ctx, activity.Entry{
			Record: activity.Record{
				Kind:   activity.KindBookView,
				Fields: activity.Fields{"bookId": string(rune('a' + i))},
			},
			UserID: "u1",
		})
	}
	require.Equal(t, 5, q.Len())

	// Simulate a reload: fresh in-memory state, same storage.
	reloaded := activity.NewQueue(st, discardLogger())
	reloaded.Load(ctx)
	require.Equal(t, 5, reloaded.Len())

	entries := reloaded.DrainAll(ctx)
	require.Len(t, entries, 5)
	for i, entry := range entries {
		assert.Equal(t, activity.KindBookView, entry.Record.Kind)
		assert.Equal(t, string(rune('a'+i)), entry.Record.Fields["bookId"])
		assert.Equal(t, "u1", entry.UserID)
	}
}

func TestQueue_LoadUnparseableIsEmpty(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemory()
	require.NoError(t, st.Set(ctx, activity.DefaultQueueKey, "{not json"))

	q := activity.NewQueue(st, discardLogger())
	q.Load(ctx)

	assert.Equal(t, 0, q.Len())
}

func TestQueue_DrainClearsPersistedState(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemory()

	q := activity.NewQueue(st, discardLogger())
	q.Enqueue(ctx, activity.Entry{Record: activity.Record{Kind: activity.KindLogin}})
	q.Enqueue(ctx, activity.Entry{Record: activity.Record{Kind: activity.KindLogout}})

	entries := q.DrainAll(ctx)
	require.Len(t, entries, 2)
	assert.Equal(t, activity.KindLogin, entries[0].Record.Kind)
	assert.Equal(t, activity.KindLogout, entries[1].Record.Kind)
	assert.Equal(t, 0, q.Len())

	// The persisted queue was cleared before the snapshot was handed out.
	reloaded := activity.NewQueue(st, discardLogger())
	reloaded.Load(ctx)
	assert.Equal(t, 0, reloaded.Len())
}

func TestQueue_EnqueuePersistsAbsentFreeRecords(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemory()

	q := activity.NewQueue(st, discardLogger())
	q.Enqueue(ctx, activity.Entry{
		Record: activity.Record{
			Kind: activity.KindLogin,
			Fields: activity.Fields{
				"success": false,
				"email":   "a@b.com",
				"missing": activity.Absent,
			},
		},
	})

	reloaded := activity.NewQueue(st, discardLogger())
	reloaded.Load(ctx)
	entries := reloaded.DrainAll(ctx)
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0].Record.Fields, "missing")
	assert.Equal(t, "a@b.com", entries[0].Record.Fields["email"])
}
