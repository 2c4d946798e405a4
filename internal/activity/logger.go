package activity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// minPageDwell is the threshold below which leaving a page emits no
// trailing time-spent record.
const minPageDwell = time.Second

// Logger is the public facade of the activity subsystem: one entry point
// per event kind. It is constructed once at application start and passed to
// call sites; no global instance exists. Entry points never return errors —
// a failed or delayed audit entry must never block a user action.
type Logger struct {
	store   Store
	queue   *Queue
	probe   Probe
	log     *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
	now     func() time.Time

	disabled bool

	sessionID    string
	sessionStart time.Time

	pageMu        sync.Mutex
	currentPage   string
	currentURL    string
	pageEnteredAt time.Time

	replaying atomic.Bool
}

// Option configures the Logger.
type Option func(*Logger)

// WithProbe sets the client-info probe. Defaults to a probe that reports
// everything as Unknown.
func WithProbe(p Probe) Option {
	return func(l *Logger) { l.probe = p }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(l *Logger) { l.metrics = m }
}

// WithClock overrides the time source. Tests use it to drive page-dwell
// and session-duration computation.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) { l.now = now }
}

// Disabled turns every entry point into a no-op. Used when the portal runs
// without an activity backend; callers need no nil checks.
func Disabled() Option {
	return func(l *Logger) { l.disabled = true }
}

// New builds the logger, generates a fresh session id (one per process,
// never persisted), and loads any offline queue a previous process left in
// storage.
func New(store Store, storage Storage, log *slog.Logger, opts ...Option) *Logger {
	l := &Logger{
		store:  store,
		probe:  noopProbe{},
		log:    log,
		tracer: otel.Tracer("libris/internal/activity"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.sessionID = newSessionID(l.now())
	l.sessionStart = l.now()
	l.queue = NewQueue(storage, log)
	l.queue.Load(context.Background())
	l.metrics.setQueueDepth(l.queue.Len())
	return l
}

// SessionID returns this process's session identifier.
func (l *Logger) SessionID() string { return l.sessionID }

// QueueDepth reports the number of deferred writes awaiting replay.
func (l *Logger) QueueDepth() int { return l.queue.Len() }

// Close persists the current queue state and logs what is left behind.
// Part of the shutdown teardown; safe to call once writes have stopped.
func (l *Logger) Close(ctx context.Context) error {
	if l.disabled {
		return nil
	}
	if depth := l.queue.Len(); depth > 0 {
		l.log.InfoContext(ctx, "shutting down with deferred activity records", "pending", depth)
	}
	return nil
}

// LogLogin records an authentication attempt. userID and role may be empty
// when the attempt failed before an identity was established.
func (l *Logger) LogLogin(ctx context.Context, success bool, email, userID, role, errorMessage string) {
	l.write(ctx, Record{
		Kind:   KindLogin,
		UserID: userID,
		Role:   role,
		Fields: Fields{
			"success":      success,
			"email":        orAbsent(email),
			"errorMessage": orAbsent(errorMessage),
			"loginMethod":  "password",
		},
	}, userID, true)
}

// LogLogout emits a session-end record carrying the session duration,
// then the logout record, sequentially in that order.
func (l *Logger) LogLogout(ctx context.Context, userID, role string) {
	duration := l.now().Sub(l.sessionStart)
	l.write(ctx, Record{
		Kind:   KindSessionEnd,
		UserID: userID,
		Role:   role,
		Fields: Fields{"durationMs": duration.Milliseconds()},
	}, userID, true)
	l.write(ctx, Record{
		Kind:   KindLogout,
		UserID: userID,
		Role:   role,
		Fields: Fields{},
	}, userID, true)
}

// LogPageView tracks navigation. When a previous page is tracked and at
// least a second has passed since it was entered, a trailing record for
// that page is emitted first, carrying the time spent there; the new
// page's entry record follows without one.
func (l *Logger) LogPageView(ctx context.Context, pageName, pageURL, userID string) {
	now := l.now()

	l.pageMu.Lock()
	prevPage, prevURL, enteredAt := l.currentPage, l.currentURL, l.pageEnteredAt
	l.currentPage, l.currentURL, l.pageEnteredAt = pageName, pageURL, now
	l.pageMu.Unlock()

	if prevPage != "" {
		if spent := now.Sub(enteredAt); spent >= minPageDwell {
			l.write(ctx, Record{
				Kind:   KindPageView,
				UserID: userID,
				Fields: Fields{
					"pageName":    prevPage,
					"pageUrl":     orAbsent(prevURL),
					"timeSpentMs": spent.Milliseconds(),
				},
			}, userID, true)
		}
	}

	l.write(ctx, Record{
		Kind:   KindPageView,
		UserID: userID,
		Fields: Fields{
			"pageName": pageName,
			"pageUrl":  orAbsent(pageURL),
			"referrer": orAbsent(prevURL),
		},
	}, userID, true)
}

// LogSearch records a catalog search and how many results it returned.
func (l *Logger) LogSearch(ctx context.Context, query string, resultCount int, userID string) {
	l.write(ctx, Record{
		Kind:   KindBookSearch,
		UserID: userID,
		Fields: Fields{
			"searchTerm":   orAbsent(query),
			"resultsCount": resultCount,
		},
	}, userID, true)
}

// LogFilterChange records a list-filter adjustment.
func (l *Logger) LogFilterChange(ctx context.Context, filterType, value, userID string) {
	l.write(ctx, Record{
		Kind:   KindFilterChange,
		UserID: userID,
		Fields: Fields{
			"filterType":  filterType,
			"filterValue": orAbsent(value),
		},
	}, userID, true)
}

// LogBookView records a catalog detail view.
func (l *Logger) LogBookView(ctx context.Context, bookID, title, userID string) {
	l.write(ctx, Record{
		Kind:   KindBookView,
		UserID: userID,
		Fields: Fields{
			"bookId":    bookID,
			"bookTitle": orAbsent(title),
		},
	}, userID, true)
}

// LogBorrowRequest records a borrow request and its outcome tag.
func (l *Logger) LogBorrowRequest(ctx context.Context, bookID, title, userID, status string) {
	l.write(ctx, Record{
		Kind:   KindBorrowRequest,
		UserID: userID,
		Fields: Fields{
			"bookId":    bookID,
			"bookTitle": orAbsent(title),
			"status":    orAbsent(status),
		},
	}, userID, true)
}

// LogReturnRequest records a return request and its outcome tag.
func (l *Logger) LogReturnRequest(ctx context.Context, bookID, title, userID, status string) {
	l.write(ctx, Record{
		Kind:   KindReturnRequest,
		UserID: userID,
		Fields: Fields{
			"bookId":    bookID,
			"bookTitle": orAbsent(title),
			"status":    orAbsent(status),
		},
	}, userID, true)
}

// LogViewHistory records the user opening their loan history.
func (l *Logger) LogViewHistory(ctx context.Context, userID string, recordCount int) {
	l.write(ctx, Record{
		Kind:   KindViewHistory,
		UserID: userID,
		Fields: Fields{"recordsCount": recordCount},
	}, userID, true)
}

// LogTabSwitch records switching between dashboard tabs.
func (l *Logger) LogTabSwitch(ctx context.Context, fromTab, toTab, userID string) {
	l.write(ctx, Record{
		Kind:   KindTabSwitch,
		UserID: userID,
		Fields: Fields{
			"fromTab": orAbsent(fromTab),
			"toTab":   toTab,
		},
	}, userID, true)
}

// LogInteraction records a generic interaction with free-form detail.
func (l *Logger) LogInteraction(ctx context.Context, action string, details Fields, userID string) {
	l.write(ctx, Record{
		Kind:   KindInteraction,
		UserID: userID,
		Fields: Fields{
			"action":  action,
			"details": orAbsentFields(details),
		},
	}, userID, true)
}

// LogAPICall records an upstream call's endpoint, latency, and outcome.
func (l *Logger) LogAPICall(ctx context.Context, endpoint, method string, elapsed time.Duration, statusCode int, userID string) {
	l.write(ctx, Record{
		Kind:   KindAPICall,
		UserID: userID,
		Fields: Fields{
			"endpoint":       endpoint,
			"method":         method,
			"responseTimeMs": elapsed.Milliseconds(),
			"statusCode":     statusCode,
			"success":        statusCode >= 200 && statusCode < 400,
		},
	}, userID, true)
}

// LogSystemError records an internal failure. Routed to the system
// destination, which accepts unauthenticated writes.
func (l *Logger) LogSystemError(ctx context.Context, message, component, stack, code string) {
	l.write(ctx, Record{
		Kind: KindSystemError,
		Fields: Fields{
			"message":   message,
			"component": component,
			"stack":     orAbsent(stack),
			"errorCode": orAbsent(code),
		},
	}, "", true)
}

// LogUnauthorizedAccess records a denied action against a protected path.
func (l *Logger) LogUnauthorizedAccess(ctx context.Context, path, action, reason, userID string) {
	l.write(ctx, Record{
		Kind:   KindUnauthorized,
		UserID: userID,
		Fields: Fields{
			"targetPath":      path,
			"attemptedAction": action,
			"denialReason":    orAbsent(reason),
		},
	}, userID, true)
}

// Replay drains the offline queue through the write pipeline using the
// now-known identity. Single-flight: a call arriving while another replay
// runs returns immediately instead of waiting. The queue is snapshotted and
// cleared before the first write, so a crash mid-replay cannot duplicate
// entries; it may lose the cleared batch, an accepted tradeoff.
func (l *Logger) Replay(ctx context.Context, userID string) {
	if l.disabled || l.store == nil {
		return
	}
	if !l.replaying.CompareAndSwap(false, true) {
		return
	}
	defer l.replaying.Store(false)

	entries := l.queue.DrainAll(ctx)
	l.metrics.setQueueDepth(0)
	if len(entries) == 0 {
		return
	}
	for _, entry := range entries {
		uid := entry.UserID
		if uid == "" {
			uid = userID
		}
		l.write(ctx, entry.Record, uid, false)
	}
	l.metrics.addReplayed(len(entries))
	l.log.InfoContext(ctx, "replayed deferred activity records", "count", len(entries))
}

// write is the pipeline every entry point funnels into. It resolves client
// info, stamps the envelope, routes, redacts, and appends. A success ends
// here; an authorization-shaped failure defers the original pre-stamp
// record to the offline queue when allowed; anything else is logged to the
// diagnostic stream and swallowed. Never returns an error.
func (l *Logger) write(ctx context.Context, rec Record, explicitUserID string, allowQueue bool) {
	if l.disabled || l.store == nil {
		return
	}

	ctx, span := l.tracer.Start(ctx, "activity.write",
		trace.WithAttributes(attribute.String("activity.kind", string(rec.Kind))))
	defer span.End()

	info := l.probe.Lookup(ctx)

	userID := explicitUserID
	if userID == "" {
		userID = rec.UserID
	}
	destination := Route(rec.Kind, userID)
	span.SetAttributes(attribute.String("activity.destination", destinationClass(destination)))

	doc := Fields{
		"type":      string(rec.Kind),
		"timestamp": ServerTimestamp,
		"sessionId": l.sessionID,
		"userAgent": info.UserAgent,
		"ipAddress": info.IPAddress,
	}
	if userID != "" {
		doc["userId"] = userID
	}
	if rec.Role != "" {
		doc["userRole"] = rec.Role
	}
	for k, v := range rec.Fields {
		doc[k] = v
	}
	cleaned := RemoveAbsent(doc).(Fields)

	start := time.Now()
	err := l.store.Append(ctx, destination, cleaned)
	if err == nil {
		l.metrics.observeWrite(destinationClass(destination), time.Since(start).Seconds())
		return
	}

	if IsPermissionDenied(err) && allowQueue {
		l.queue.Enqueue(ctx, Entry{Record: rec, UserID: userID})
		l.metrics.incQueued()
		l.metrics.setQueueDepth(l.queue.Len())
		l.log.DebugContext(ctx, "activity write deferred until sign-in",
			"kind", rec.Kind,
			"destination", destination,
			"error", err,
		)
		return
	}

	l.metrics.incFailures()
	l.log.WarnContext(ctx, "activity write failed",
		"kind", rec.Kind,
		"destination", destination,
		"error", err,
	)
}

// orAbsentFields maps a nil detail map to Absent.
func orAbsentFields(f Fields) any {
	if f == nil {
		return Absent
	}
	return f
}

// newSessionID builds the process-lifetime session token: start timestamp
// plus a random suffix.
func newSessionID(now time.Time) string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%d", now.UnixMilli())
	}
	return fmt.Sprintf("%d-%s", now.UnixMilli(), hex.EncodeToString(b))
}
