package catalog

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrNotFound is returned when a book ID does not exist.
	ErrNotFound = errors.New("catalog: book not found")
	// ErrNoCopies is returned when a borrow would take availability below zero.
	ErrNoCopies = errors.New("catalog: no copies available")
)

// Store is the persistence port for the catalog.
type Store interface {
	Create(ctx context.Context, book *Book) error
	Get(ctx context.Context, id string) (*Book, error)
	List(ctx context.Context, filter Filter) ([]*Book, error)
	// AdjustAvailability changes a book's available count by delta,
	// failing with ErrNoCopies if the result would be negative or exceed
	// the total number of copies.
	AdjustAvailability(ctx context.Context, id string, delta int) error
}

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu    sync.RWMutex
	books map[string]*Book
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{books: make(map[string]*Book)}
}

func (s *MemoryStore) Create(_ context.Context, book *Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *book
	s.books[book.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	book, ok := s.books[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *book
	return &cp, nil
}

func (s *MemoryStore) List(_ context.Context, filter Filter) ([]*Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Book, 0, len(s.books))
	for _, book := range s.books {
		if !matches(book, filter) {
			continue
		}
		cp := *book
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (s *MemoryStore) AdjustAvailability(_ context.Context, id string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	book, ok := s.books[id]
	if !ok {
		return ErrNotFound
	}
	next := book.Available + delta
	if next < 0 || next > book.Copies {
		return ErrNoCopies
	}
	book.Available = next
	return nil
}

func matches(book *Book, filter Filter) bool {
	if filter.AvailableOnly && book.Available <= 0 {
		return false
	}
	if filter.Category != "" && book.Category != filter.Category {
		return false
	}
	if filter.Query != "" {
		q := strings.ToLower(filter.Query)
		if !strings.Contains(strings.ToLower(book.Title), q) &&
			!strings.Contains(strings.ToLower(book.Author), q) {
			return false
		}
	}
	return true
}
