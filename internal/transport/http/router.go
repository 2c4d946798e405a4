// Package httptransport is the thin HTTP layer. Handlers delegate to domain
// services and emit activity records; business logic stays out of here.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"libris/internal/activity"
	"libris/internal/catalog"
	"libris/internal/identity"
	"libris/internal/loans"
	"libris/internal/platform/metrics"
	"libris/internal/platform/middleware"
	dErrors "libris/pkg/domainerrors"
	"libris/pkg/httputil"
	"libris/pkg/requestcontext"
)

// Deps carries everything the router needs. ActivityReader may be nil when
// the configured store cannot serve reads; /me/activity then returns 404.
type Deps struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Identity       *identity.Service
	Catalog        *catalog.Service
	Loans          *loans.Service
	Activity       *activity.Logger
	ActivityReader activity.Reader
	Validator      middleware.JWTValidator
}

// NewRouter wires all portal endpoints behind the standard middleware chain.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.ClientContext)
	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.Logger(d.Logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(d.Metrics.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	auth := &AuthHandler{identity: d.Identity, activity: d.Activity, metrics: d.Metrics, logger: d.Logger}
	books := &BooksHandler{catalog: d.Catalog, activity: d.Activity, logger: d.Logger}
	loansH := &LoansHandler{loans: d.Loans, catalog: d.Catalog, activity: d.Activity, metrics: d.Metrics, logger: d.Logger}
	activityH := &ActivityHandler{reader: d.ActivityReader, logger: d.Logger}

	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Post("/auth/signup", auth.handleSignup)
		r.Post("/auth/login", auth.handleLogin)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.RequireAuth(d.Validator, d.Logger))
		r.Post("/auth/logout", auth.handleLogout)

		r.Get("/books", books.handleList)
		r.Get("/books/search", books.handleSearch)
		r.Get("/books/{id}", books.handleGet)
		r.Post("/books", books.handleAdd)

		r.Post("/loans/borrow", loansH.handleBorrow)
		r.Post("/loans/return", loansH.handleReturn)
		r.Get("/loans/history", loansH.handleHistory)
		r.Post("/loans/{id}/approve", loansH.handleApprove)
		r.Post("/loans/{id}/complete", loansH.handleComplete)

		r.Get("/me/activity", activityH.handleList)
	})

	return r
}

// requireLibrarian gates librarian-only endpoints. A denial is recorded as an
// unauthorized_access activity event.
func requireLibrarian(w http.ResponseWriter, r *http.Request, log *activity.Logger, action string) bool {
	ctx := r.Context()
	if requestcontext.UserRole(ctx) == string(identity.RoleLibrarian) {
		return true
	}
	log.LogUnauthorizedAccess(ctx, r.URL.Path, action, "librarian role required", requestcontext.UserID(ctx))
	httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "librarian role required"))
	return false
}
