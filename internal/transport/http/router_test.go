package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"libris/internal/activity"
	"libris/internal/activity/storage"
	memstore "libris/internal/activity/store/memory"
	"libris/internal/catalog"
	"libris/internal/identity"
	"libris/internal/loans"
	"libris/internal/platform/metrics"
)

type testPortal struct {
	server        *httptest.Server
	activityStore *memstore.Store
	users         *identity.MemoryUserStore
	catalog       *catalog.Service
}

func newTestPortal(t *testing.T) *testPortal {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	users := identity.NewMemoryUserStore()
	tokens := identity.NewTokenIssuer("test-signing-key")
	identitySvc := identity.NewService(users, tokens, logger)

	catalogStore := catalog.NewMemoryStore()
	catalogSvc := catalog.NewService(catalogStore, logger)
	loansSvc := loans.NewService(loans.NewMemoryStore(), catalogSvc, logger)

	activityStore := memstore.NewStore()
	activityLog := activity.New(activityStore, storage.NewMemory(), logger)
	t.Cleanup(func() { _ = activityLog.Close(context.Background()) })

	router := NewRouter(Deps{
		Logger:         logger,
		Metrics:        metrics.New(prometheus.NewRegistry()),
		Identity:       identitySvc,
		Catalog:        catalogSvc,
		Loans:          loansSvc,
		Activity:       activityLog,
		ActivityReader: activityStore,
		Validator:      tokens,
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testPortal{
		server:        server,
		activityStore: activityStore,
		users:         users,
		catalog:       catalogSvc,
	}
}

// seedLibrarian plants a librarian account directly in the user store; signup
// only ever creates members.
func (p *testPortal) seedLibrarian(t *testing.T, email, password string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, p.users.Create(context.Background(), identity.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         "The Librarian",
		Role:         identity.RoleLibrarian,
		PasswordHash: hash,
	}))
}

func (p *testPortal) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, p.server.URL+path, buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), "body: %s", raw)
	}
	return resp.StatusCode, decoded
}

func (p *testPortal) login(t *testing.T, email, password string) (token, userID string) {
	t.Helper()
	status, body := p.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": email, "password": password,
	})
	require.Equal(t, http.StatusOK, status)
	user := body["user"].(map[string]any)
	return body["token"].(string), user["id"].(string)
}

func kinds(records []activity.Fields) []string {
	out := make([]string, 0, len(records))
	for _, rec := range records {
		out = append(out, fmt.Sprint(rec["type"]))
	}
	return out
}

func TestSignupAndLogin(t *testing.T) {
	p := newTestPortal(t)

	status, body := p.do(t, http.MethodPost, "/auth/signup", "", map[string]string{
		"email": "alice@example.com", "password": "hunter2hunter2", "name": "Alice",
	})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "member", body["role"])

	status, body = p.do(t, http.MethodPost, "/auth/signup", "", map[string]string{
		"email": "alice@example.com", "password": "hunter2hunter2", "name": "Alice",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "conflict", body["error"])

	token, _ := p.login(t, "alice@example.com", "hunter2hunter2")
	assert.NotEmpty(t, token)

	// Both the failed and successful attempts land in auth_logs.
	status, _ = p.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, status)

	records := p.activityStore.All(activity.AuthDestination)
	require.Len(t, records, 2)
	assert.Equal(t, true, records[0]["success"])
	assert.Equal(t, false, records[1]["success"])
}

func TestAuthRequired(t *testing.T) {
	p := newTestPortal(t)
	status, body := p.do(t, http.MethodGet, "/books", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.NotNil(t, body["error"])
}

func TestLoanLifecycle(t *testing.T) {
	p := newTestPortal(t)
	p.seedLibrarian(t, "lib@example.com", "shelve-the-books")
	libToken, _ := p.login(t, "lib@example.com", "shelve-the-books")

	status, book := p.do(t, http.MethodPost, "/books", libToken, map[string]any{
		"title": "Dune", "author": "Frank Herbert", "category": "scifi", "copies": 1,
	})
	require.Equal(t, http.StatusCreated, status)
	bookID := book["id"].(string)

	_, memberBody := p.do(t, http.MethodPost, "/auth/signup", "", map[string]string{
		"email": "alice@example.com", "password": "hunter2hunter2", "name": "Alice",
	})
	memberToken, memberID := p.login(t, "alice@example.com", "hunter2hunter2")
	require.Equal(t, memberBody["id"].(string), memberID)

	status, found := p.do(t, http.MethodGet, "/books/search?q=dune", memberToken, nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, found["books"], 1)

	status, loan := p.do(t, http.MethodPost, "/loans/borrow", memberToken, map[string]string{"bookId": bookID})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "requested", loan["status"])
	loanID := loan["id"].(string)

	// The single copy is reserved; a second borrow is refused.
	status, _ = p.do(t, http.MethodPost, "/loans/borrow", memberToken, map[string]string{"bookId": bookID})
	assert.Equal(t, http.StatusConflict, status)

	status, loan = p.do(t, http.MethodPost, "/loans/"+loanID+"/approve", libToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "borrowed", loan["status"])

	status, loan = p.do(t, http.MethodPost, "/loans/return", memberToken, map[string]string{"bookId": bookID})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "return_requested", loan["status"])

	status, loan = p.do(t, http.MethodPost, "/loans/"+loanID+"/complete", libToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "returned", loan["status"])

	status, got := p.do(t, http.MethodGet, "/books/"+bookID, memberToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), got["available"], "copy back on the shelf")

	status, history := p.do(t, http.MethodGet, "/loans/history", memberToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, history["loans"], 1)

	types := kinds(p.activityStore.All(activity.UserDestination(memberID)))
	assert.Contains(t, types, "book_search")
	assert.Contains(t, types, "borrow_request")
	assert.Contains(t, types, "return_request")
	assert.Contains(t, types, "book_view")
	assert.Contains(t, types, "view_history")
}

func TestLibrarianGate(t *testing.T) {
	p := newTestPortal(t)
	p.do(t, http.MethodPost, "/auth/signup", "", map[string]string{
		"email": "alice@example.com", "password": "hunter2hunter2", "name": "Alice",
	})
	token, _ := p.login(t, "alice@example.com", "hunter2hunter2")

	status, body := p.do(t, http.MethodPost, "/books", token, map[string]any{
		"title": "Dune", "author": "Frank Herbert", "copies": 1,
	})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "forbidden", body["error"])

	// The denial is recorded as an unauthorized_access system event.
	types := kinds(p.activityStore.All(activity.SystemDestination))
	assert.Contains(t, types, "unauthorized_access")
}

func TestMyActivity(t *testing.T) {
	p := newTestPortal(t)
	p.do(t, http.MethodPost, "/auth/signup", "", map[string]string{
		"email": "alice@example.com", "password": "hunter2hunter2", "name": "Alice",
	})
	token, _ := p.login(t, "alice@example.com", "hunter2hunter2")

	status, body := p.do(t, http.MethodGet, "/me/activity", token, nil)
	require.Equal(t, http.StatusOK, status)

	client := body["client"].(map[string]any)
	assert.Equal(t, "Chrome", client["browser"])
	assert.Contains(t, client["os"], "Linux")

	status, body = p.do(t, http.MethodGet, "/me/activity?limit=0", token, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "bad_request", body["error"])
}

func TestHealthz(t *testing.T) {
	p := newTestPortal(t)
	status, body := p.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}
