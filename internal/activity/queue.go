package activity

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
)

// DefaultQueueKey is the storage key the pending queue persists under.
const DefaultQueueKey = "libris.activity.pending"

// Storage is the durable string-keyed persistence port behind the offline
// queue. Get returns "" with a nil error for a missing key. The medium
// (memory, file, Redis) is swappable without touching queue logic.
type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Entry pairs a queued record with the acting-user identifier resolved at
// enqueue time, when one was known.
type Entry struct {
	Record Record `json:"record"`
	UserID string `json:"userId,omitempty"`
}

// Queue is the FIFO offline queue for writes rejected on authorization
// grounds. Every mutation persists the full sequence so the queue survives
// a process restart.
type Queue struct {
	storage Storage
	key     string
	log     *slog.Logger

	mu      sync.Mutex
	entries []Entry
}

// NewQueue builds an empty queue persisting under DefaultQueueKey. Call
// Load to pick up entries a previous process left behind.
func NewQueue(storage Storage, log *slog.Logger) *Queue {
	return &Queue{storage: storage, key: DefaultQueueKey, log: log}
}

// Load replaces the in-memory sequence with the persisted contents.
// Missing or unparseable state leaves the queue empty; a parse failure is
// reported to the diagnostic log and swallowed.
func (q *Queue) Load(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = nil

	raw, err := q.storage.Get(ctx, q.key)
	if err != nil {
		q.log.DebugContext(ctx, "pending activity queue unreadable", "error", err)
		return
	}
	if raw == "" {
		return
	}
	var entries []Entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		q.log.DebugContext(ctx, "discarding unparseable pending activity queue", "error", err)
		return
	}
	q.entries = entries
}

// Enqueue appends the entry and then persists the full sequence, in that
// order.
func (q *Queue) Enqueue(ctx context.Context, entry Entry) {
	q.mu.Lock()
	q.entries = append(q.entries, entry)
	snapshot := append([]Entry(nil), q.entries...)
	q.mu.Unlock()
	q.persist(ctx, snapshot)
}

// DrainAll atomically snapshots and clears the queue, persisting the
// now-empty state before any caller touches the snapshot. A crash after the
// clear loses the batch rather than duplicating already-removed entries.
func (q *Queue) DrainAll(ctx context.Context) []Entry {
	q.mu.Lock()
	snapshot := q.entries
	q.entries = nil
	q.mu.Unlock()
	q.persist(ctx, nil)
	return snapshot
}

// Len reports the number of queued entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

func (q *Queue) persist(ctx context.Context, entries []Entry) {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		q.log.DebugContext(ctx, "marshal pending activity queue", "error", err)
		return
	}
	if err := q.storage.Set(ctx, q.key, string(data)); err != nil {
		q.log.DebugContext(ctx, "persist pending activity queue", "error", err)
	}
}
