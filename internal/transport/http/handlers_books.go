package httptransport

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"libris/internal/activity"
	"libris/internal/catalog"
	dErrors "libris/pkg/domainerrors"
	"libris/pkg/httputil"
	"libris/pkg/requestcontext"
)

type BooksHandler struct {
	catalog  *catalog.Service
	activity *activity.Logger
	logger   *slog.Logger
}

// handleList serves GET /books with optional category/available filters.
// Applying a filter is recorded as a filter_change activity event.
func (h *BooksHandler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	filter := catalog.Filter{
		Category:      q.Get("category"),
		AvailableOnly: q.Get("available") == "true",
	}

	books, err := h.catalog.Search(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "list books failed", "error", err)
		httputil.WriteError(w, err)
		return
	}

	userID := requestcontext.UserID(ctx)
	if filter.Category != "" {
		h.activity.LogFilterChange(ctx, "category", filter.Category, userID)
	}
	if filter.AvailableOnly {
		h.activity.LogFilterChange(ctx, "availability", "available_only", userID)
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"books": books})
}

// handleSearch serves GET /books/search?q= and records the query with its
// result count.
func (h *BooksHandler) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query().Get("q")
	if query == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "q is required"))
		return
	}

	books, err := h.catalog.Search(ctx, catalog.Filter{Query: query})
	if err != nil {
		h.logger.ErrorContext(ctx, "search failed", "error", err)
		httputil.WriteError(w, err)
		return
	}

	h.activity.LogSearch(ctx, query, len(books), requestcontext.UserID(ctx))
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"books": books})
}

func (h *BooksHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	book, err := h.catalog.GetBook(ctx, chi.URLParam(r, "id"))
	if errors.Is(err, catalog.ErrNotFound) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "book not found"))
		return
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.activity.LogBookView(ctx, book.ID, book.Title, requestcontext.UserID(ctx))
	httputil.WriteJSON(w, http.StatusOK, book)
}

// handleAdd registers a new title. Librarian-only.
func (h *BooksHandler) handleAdd(w http.ResponseWriter, r *http.Request) {
	if !requireLibrarian(w, r, h.activity, "add_book") {
		return
	}
	ctx := r.Context()

	var req catalog.NewBook
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	book, err := h.catalog.AddBook(ctx, req)
	if errors.Is(err, catalog.ErrInvalidInput) {
		httputil.WriteError(w, dErrors.Wrap(dErrors.CodeBadRequest, "invalid book", err))
		return
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "add book failed", "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, book)
}
