package activity_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libris/internal/activity"
	"libris/internal/activity/storage"
	"libris/internal/activity/store/memory"
)

func denyAll(string, activity.Fields) error {
	return activity.ErrPermissionDenied
}

func TestLogger_LoginSuccessLandsInAuthDestination(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	logger := activity.New(store, storage.NewMemory(), discardLogger())

	logger.LogLogin(ctx, true, "a@b.com", "user-1", "member", "")

	docs := store.All(activity.AuthDestination)
	require.Len(t, docs, 1)
	doc := docs[0]
	assert.Equal(t, "login", doc["type"])
	assert.Equal(t, true, doc["success"])
	assert.Equal(t, "a@b.com", doc["email"])
	assert.Equal(t, "user-1", doc["userId"])
	assert.Equal(t, "member", doc["userRole"])
	assert.Equal(t, logger.SessionID(), doc["sessionId"])
	assert.Equal(t, activity.UnknownValue, doc["userAgent"])
	assert.Equal(t, activity.UnknownValue, doc["ipAddress"])
	assert.NotContains(t, doc, "errorMessage")
	// Server-assigned time replaced the placeholder.
	_, ok := doc["timestamp"].(time.Time)
	assert.True(t, ok, "timestamp should be substituted by the store")
}

func TestLogger_FailedLoginQueuedThenReplayed(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.SetAuthorize(denyAll)
	logger := activity.New(store, storage.NewMemory(), discardLogger())

	logger.LogLogin(ctx, false, "a@b.com", "", "", "bad password")

	require.Equal(t, 1, logger.QueueDepth())
	require.Equal(t, 0, store.Len(activity.AuthDestination))

	store.SetAuthorize(nil)
	logger.Replay(ctx, "user-123")

	assert.Equal(t, 0, logger.QueueDepth())
	docs := store.All(activity.AuthDestination)
	require.Len(t, docs, 1)
	doc := docs[0]
	assert.Equal(t, "login", doc["type"])
	assert.Equal(t, false, doc["success"])
	assert.Equal(t, "a@b.com", doc["email"])
	assert.Equal(t, "bad password", doc["errorMessage"])
	// The original record had no user; the replay identity wins.
	assert.Equal(t, "user-123", doc["userId"])
}

func TestLogger_QueuedEntryKeepsItsOwnIdentity(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.SetAuthorize(denyAll)
	logger := activity.New(store, storage.NewMemory(), discardLogger())

	logger.LogBookView(ctx, "b1", "Dune", "original-user")
	require.Equal(t, 1, logger.QueueDepth())

	store.SetAuthorize(nil)
	logger.Replay(ctx, "other-user")

	docs := store.All(activity.UserDestination("original-user"))
	require.Len(t, docs, 1)
	assert.Equal(t, "original-user", docs[0]["userId"])
}

func TestLogger_NonAuthFailureIsSwallowedNotQueued(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.SetAuthorize(func(string, activity.Fields) error {
		return errorString("connection refused")
	})
	logger := activity.New(store, storage.NewMemory(), discardLogger())

	logger.LogBookView(ctx, "b1", "Dune", "u1")

	assert.Equal(t, 0, logger.QueueDepth())
}

func TestLogger_QueueSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.SetAuthorize(denyAll)
	st := storage.NewMemory()

	first := activity.New(store, st, discardLogger())
	first.LogBorrowRequest(ctx, "b1", "Dune", "", "pending")
	first.LogReturnRequest(ctx, "b2", "Foundation", "", "pending")
	require.Equal(t, 2, first.QueueDepth())

	// New process: fresh logger over the same storage.
	store.SetAuthorize(nil)
	second := activity.New(store, st, discardLogger())
	require.Equal(t, 2, second.QueueDepth())
	second.Replay(ctx, "user-9")

	docs := store.All(activity.UserDestination("user-9"))
	require.Len(t, docs, 2)
	assert.Equal(t, "borrow_request", docs[0]["type"])
	assert.Equal(t, "return_request", docs[1]["type"])
}

func TestLogger_LogoutEmitsSessionEndThenLogout(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	current := time.Now()
	logger := activity.New(store, storage.NewMemory(), discardLogger(),
		activity.WithClock(func() time.Time { return current }))

	current = current.Add(42 * time.Second)
	logger.LogLogout(ctx, "user-1", "member")

	userDocs := store.All(activity.UserDestination("user-1"))
	require.Len(t, userDocs, 1)
	assert.Equal(t, "session_end", userDocs[0]["type"])
	assert.Equal(t, int64(42000), userDocs[0]["durationMs"])

	authDocs := store.All(activity.AuthDestination)
	require.Len(t, authDocs, 1)
	assert.Equal(t, "logout", authDocs[0]["type"])
}

func TestLogger_PageViewEmitsTrailingTimeSpent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	current := time.Now()
	logger := activity.New(store, storage.NewMemory(), discardLogger(),
		activity.WithClock(func() time.Time { return current }))

	logger.LogPageView(ctx, "Dashboard", "/dashboard", "user-1")
	current = current.Add(1500 * time.Millisecond)
	logger.LogPageView(ctx, "Books", "/books", "user-1")

	docs := store.All(activity.UserDestination("user-1"))
	require.Len(t, docs, 3)

	assert.Equal(t, "Dashboard", docs[0]["pageName"])
	assert.NotContains(t, docs[0], "timeSpentMs")

	// The second call emits the trailing record first, then the new entry.
	assert.Equal(t, "Dashboard", docs[1]["pageName"])
	spent, ok := docs[1]["timeSpentMs"].(int64)
	require.True(t, ok)
	assert.GreaterOrEqual(t, spent, int64(1500))

	assert.Equal(t, "Books", docs[2]["pageName"])
	assert.NotContains(t, docs[2], "timeSpentMs")
	assert.Equal(t, "/dashboard", docs[2]["referrer"])
}

func TestLogger_PageViewBelowThresholdSuppressed(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	current := time.Now()
	logger := activity.New(store, storage.NewMemory(), discardLogger(),
		activity.WithClock(func() time.Time { return current }))

	logger.LogPageView(ctx, "Dashboard", "/dashboard", "user-1")
	current = current.Add(500 * time.Millisecond)
	logger.LogPageView(ctx, "Books", "/books", "user-1")

	docs := store.All(activity.UserDestination("user-1"))
	require.Len(t, docs, 2)
	assert.Equal(t, "Dashboard", docs[0]["pageName"])
	assert.Equal(t, "Books", docs[1]["pageName"])
	for _, doc := range docs {
		assert.NotContains(t, doc, "timeSpentMs")
	}
}

func TestLogger_SystemErrorRoutesToSystemDestination(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	logger := activity.New(store, storage.NewMemory(), discardLogger())

	logger.LogSystemError(ctx, "boom", "catalog", "", "E42")

	docs := store.All(activity.SystemDestination)
	require.Len(t, docs, 1)
	assert.Equal(t, "system_error", docs[0]["type"])
	assert.Equal(t, "boom", docs[0]["message"])
	assert.Equal(t, "catalog", docs[0]["component"])
	assert.Equal(t, "E42", docs[0]["errorCode"])
	assert.NotContains(t, docs[0], "stack")
	assert.NotContains(t, docs[0], "userId")
}

// blockingStore parks the first append until released, counting attempts.
type blockingStore struct {
	mu       sync.Mutex
	attempts int
	release  chan struct{}
}

func (s *blockingStore) Append(context.Context, string, activity.Fields) error {
	s.mu.Lock()
	s.attempts++
	first := s.attempts == 1
	s.mu.Unlock()
	if first {
		<-s.release
	}
	return nil
}

func (s *blockingStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

func TestLogger_ReplayIsSingleFlight(t *testing.T) {
	ctx := context.Background()
	denied := memory.NewStore()
	denied.SetAuthorize(denyAll)
	st := storage.NewMemory()

	// Queue three entries through a denying store.
	setup := activity.New(denied, st, discardLogger())
	setup.LogBookView(ctx, "b1", "", "u1")
	setup.LogBookView(ctx, "b2", "", "u1")
	setup.LogBookView(ctx, "b3", "", "u1")
	require.Equal(t, 3, setup.QueueDepth())

	blocking := &blockingStore{release: make(chan struct{})}
	logger := activity.New(blocking, st, discardLogger())
	require.Equal(t, 3, logger.QueueDepth())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Replay(ctx, "u1")
	}()

	// Wait until the first replay is parked inside the store.
	require.Eventually(t, func() bool { return blocking.count() == 1 },
		time.Second, time.Millisecond)

	// A concurrent replay is turned away, producing no extra attempts.
	logger.Replay(ctx, "u1")
	assert.Equal(t, 1, blocking.count())

	close(blocking.release)
	wg.Wait()

	assert.Equal(t, 3, blocking.count())
	assert.Equal(t, 0, logger.QueueDepth())
}

func TestLogger_DisabledIsNoOp(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	logger := activity.New(store, storage.NewMemory(), discardLogger(), activity.Disabled())

	logger.LogLogin(ctx, true, "a@b.com", "u1", "member", "")
	logger.LogPageView(ctx, "Dashboard", "/dashboard", "u1")
	logger.Replay(ctx, "u1")

	assert.Equal(t, 0, store.Len(activity.AuthDestination))
	assert.Equal(t, 0, store.Len(activity.UserDestination("u1")))
}
