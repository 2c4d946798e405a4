package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"libris/internal/activity"
	"libris/internal/catalog"
	"libris/internal/loans"
	"libris/internal/platform/metrics"
	dErrors "libris/pkg/domainerrors"
	"libris/pkg/httputil"
	"libris/pkg/requestcontext"
)

type LoansHandler struct {
	loans    *loans.Service
	catalog  *catalog.Service
	activity *activity.Logger
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

type loanRequest struct {
	BookID string `json:"bookId"`
}

func (h *LoansHandler) handleBorrow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)

	var req loanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.BookID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "bookId is required"))
		return
	}

	loan, err := h.loans.RequestBorrow(ctx, userID, req.BookID)
	if err != nil {
		h.activity.LogBorrowRequest(ctx, req.BookID, h.bookTitle(r, req.BookID), userID, "rejected")
		switch {
		case errors.Is(err, loans.ErrAlreadyBorrowed):
			httputil.WriteError(w, dErrors.New(dErrors.CodeConflict, "book already borrowed"))
		case errors.Is(err, catalog.ErrNoCopies):
			httputil.WriteError(w, dErrors.New(dErrors.CodeConflict, "no copies available"))
		case errors.Is(err, catalog.ErrNotFound):
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "book not found"))
		default:
			h.logger.ErrorContext(ctx, "borrow failed", "error", err)
			httputil.WriteError(w, err)
		}
		return
	}

	h.metrics.BorrowRequests.Inc()
	h.activity.LogBorrowRequest(ctx, loan.BookID, h.bookTitle(r, loan.BookID), userID, string(loan.Status))
	httputil.WriteJSON(w, http.StatusCreated, loan)
}

func (h *LoansHandler) handleReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)

	var req loanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.BookID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "bookId is required"))
		return
	}

	loan, err := h.loans.RequestReturn(ctx, userID, req.BookID)
	if err != nil {
		h.activity.LogReturnRequest(ctx, req.BookID, h.bookTitle(r, req.BookID), userID, "rejected")
		switch {
		case errors.Is(err, loans.ErrNotFound):
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no open loan for book"))
		case errors.Is(err, loans.ErrInvalidTransition):
			httputil.WriteError(w, dErrors.New(dErrors.CodeConflict, "loan not in a returnable state"))
		default:
			h.logger.ErrorContext(ctx, "return failed", "error", err)
			httputil.WriteError(w, err)
		}
		return
	}

	h.metrics.ReturnRequests.Inc()
	h.activity.LogReturnRequest(ctx, loan.BookID, h.bookTitle(r, loan.BookID), userID, string(loan.Status))
	httputil.WriteJSON(w, http.StatusOK, loan)
}

func (h *LoansHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)

	history, err := h.loans.History(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "loan history failed", "error", err)
		httputil.WriteError(w, err)
		return
	}

	h.activity.LogViewHistory(ctx, userID, len(history))
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"loans": history})
}

// handleApprove moves a requested loan to borrowed. Librarian-only.
func (h *LoansHandler) handleApprove(w http.ResponseWriter, r *http.Request) {
	if !requireLibrarian(w, r, h.activity, "approve_borrow") {
		return
	}
	h.transition(w, r, h.loans.ApproveBorrow)
}

// handleComplete closes a return-requested loan. Librarian-only.
func (h *LoansHandler) handleComplete(w http.ResponseWriter, r *http.Request) {
	if !requireLibrarian(w, r, h.activity, "complete_return") {
		return
	}
	h.transition(w, r, h.loans.CompleteReturn)
}

func (h *LoansHandler) transition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, loanID string) (*loans.Loan, error)) {
	ctx := r.Context()
	loan, err := op(ctx, chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, loans.ErrNotFound):
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "loan not found"))
	case errors.Is(err, loans.ErrInvalidTransition):
		httputil.WriteError(w, dErrors.New(dErrors.CodeConflict, "loan not in expected state"))
	case err != nil:
		h.logger.ErrorContext(ctx, "loan transition failed", "error", err)
		httputil.WriteError(w, err)
	default:
		httputil.WriteJSON(w, http.StatusOK, loan)
	}
}

// bookTitle is best-effort enrichment for activity records; a miss returns
// the empty string and the record carries only the id.
func (h *LoansHandler) bookTitle(r *http.Request, bookID string) string {
	book, err := h.catalog.GetBook(r.Context(), bookID)
	if err != nil {
		return ""
	}
	return book.Title
}
