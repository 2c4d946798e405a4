package loans

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrNotFound is returned when a loan ID does not exist.
var ErrNotFound = errors.New("loans: loan not found")

// Store is the persistence port for loans.
type Store interface {
	Create(ctx context.Context, loan *Loan) error
	Get(ctx context.Context, id string) (*Loan, error)
	Update(ctx context.Context, loan *Loan) error
	ListByUser(ctx context.Context, userID string) ([]*Loan, error)
	// FindOpen returns the user's non-returned loan for a book, or
	// ErrNotFound.
	FindOpen(ctx context.Context, userID, bookID string) (*Loan, error)
}

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu    sync.RWMutex
	loans map[string]*Loan
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{loans: make(map[string]*Loan)}
}

func (s *MemoryStore) Create(_ context.Context, loan *Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *loan
	s.loans[loan.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	loan, ok := s.loans[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *loan
	return &cp, nil
}

func (s *MemoryStore) Update(_ context.Context, loan *Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.loans[loan.ID]; !ok {
		return ErrNotFound
	}
	cp := *loan
	s.loans[loan.ID] = &cp
	return nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID string) ([]*Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Loan
	for _, loan := range s.loans {
		if loan.UserID == userID {
			cp := *loan
			out = append(out, &cp)
		}
	}
	// Newest first, matching the history view.
	sort.Slice(out, func(i, j int) bool {
		return out[i].RequestedAt.After(out[j].RequestedAt)
	})
	return out, nil
}

func (s *MemoryStore) FindOpen(_ context.Context, userID, bookID string) (*Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, loan := range s.loans {
		if loan.UserID == userID && loan.BookID == bookID && loan.Status != StatusReturned {
			cp := *loan
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}
