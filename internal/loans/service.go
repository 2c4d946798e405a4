package loans

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,Inventory

// loanPeriod is how long a member keeps a book once the borrow is approved.
const loanPeriod = 14 * 24 * time.Hour

var (
	// ErrAlreadyBorrowed is returned when the member already holds an open
	// loan for the book.
	ErrAlreadyBorrowed = errors.New("loans: book already borrowed by user")
	// ErrInvalidTransition is returned when an operation does not apply to
	// the loan's current status.
	ErrInvalidTransition = errors.New("loans: invalid status transition")
)

// Inventory adjusts shelf availability in the catalog. A copy leaves the
// shelf when a borrow is requested and comes back when the return completes.
type Inventory interface {
	Checkout(ctx context.Context, bookID string) error
	Checkin(ctx context.Context, bookID string) error
}

// Service drives the loan lifecycle: requested, borrowed, return_requested,
// returned.
type Service struct {
	store     Store
	inventory Inventory
	log       *slog.Logger
	now       func() time.Time
}

func NewService(store Store, inventory Inventory, log *slog.Logger) *Service {
	return &Service{store: store, inventory: inventory, log: log, now: time.Now}
}

// RequestBorrow reserves a copy for the member. It fails when the member
// already holds an open loan for the book or no copies are available.
func (s *Service) RequestBorrow(ctx context.Context, userID, bookID string) (*Loan, error) {
	if _, err := s.store.FindOpen(ctx, userID, bookID); err == nil {
		return nil, ErrAlreadyBorrowed
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("check open loan: %w", err)
	}

	if err := s.inventory.Checkout(ctx, bookID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	loan := &Loan{
		ID:          uuid.New().String(),
		BookID:      bookID,
		UserID:      userID,
		Status:      StatusRequested,
		RequestedAt: now,
		DueAt:       now.Add(loanPeriod),
	}
	if err := s.store.Create(ctx, loan); err != nil {
		// Put the reserved copy back so availability stays consistent.
		if cerr := s.inventory.Checkin(ctx, bookID); cerr != nil {
			s.log.Error("checkin after failed loan create", "book_id", bookID, "error", cerr)
		}
		return nil, fmt.Errorf("create loan: %w", err)
	}
	s.log.Info("borrow requested", "loan_id", loan.ID, "book_id", bookID, "user_id", userID)
	return loan, nil
}

// ApproveBorrow moves a requested loan to borrowed and starts the loan
// period. Librarian-only at the transport layer.
func (s *Service) ApproveBorrow(ctx context.Context, loanID string) (*Loan, error) {
	loan, err := s.store.Get(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if loan.Status != StatusRequested {
		return nil, fmt.Errorf("%w: %s is %s", ErrInvalidTransition, loanID, loan.Status)
	}
	loan.Status = StatusBorrowed
	loan.DueAt = s.now().UTC().Add(loanPeriod)
	if err := s.store.Update(ctx, loan); err != nil {
		return nil, fmt.Errorf("update loan: %w", err)
	}
	s.log.Info("borrow approved", "loan_id", loan.ID)
	return loan, nil
}

// RequestReturn flags the member's open loan of the book for return.
func (s *Service) RequestReturn(ctx context.Context, userID, bookID string) (*Loan, error) {
	loan, err := s.store.FindOpen(ctx, userID, bookID)
	if err != nil {
		return nil, err
	}
	if loan.Status != StatusBorrowed {
		return nil, fmt.Errorf("%w: %s is %s", ErrInvalidTransition, loan.ID, loan.Status)
	}
	loan.Status = StatusReturnRequested
	if err := s.store.Update(ctx, loan); err != nil {
		return nil, fmt.Errorf("update loan: %w", err)
	}
	s.log.Info("return requested", "loan_id", loan.ID, "book_id", bookID, "user_id", userID)
	return loan, nil
}

// CompleteReturn closes a return-requested loan and puts the copy back on
// the shelf. Librarian-only at the transport layer.
func (s *Service) CompleteReturn(ctx context.Context, loanID string) (*Loan, error) {
	loan, err := s.store.Get(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if loan.Status != StatusReturnRequested {
		return nil, fmt.Errorf("%w: %s is %s", ErrInvalidTransition, loanID, loan.Status)
	}
	returnedAt := s.now().UTC()
	loan.Status = StatusReturned
	loan.ReturnedAt = &returnedAt
	if err := s.store.Update(ctx, loan); err != nil {
		return nil, fmt.Errorf("update loan: %w", err)
	}
	if err := s.inventory.Checkin(ctx, loan.BookID); err != nil {
		s.log.Error("checkin on return", "book_id", loan.BookID, "error", err)
	}
	s.log.Info("return completed", "loan_id", loan.ID)
	return loan, nil
}

// History lists the member's loans, newest first.
func (s *Service) History(ctx context.Context, userID string) ([]*Loan, error) {
	return s.store.ListByUser(ctx, userID)
}
