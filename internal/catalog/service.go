package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidInput is returned when a book payload fails validation.
var ErrInvalidInput = errors.New("catalog: invalid input")

// Service fronts the catalog store with validation and logging.
type Service struct {
	store Store
	log   *slog.Logger
	now   func() time.Time
}

func NewService(store Store, log *slog.Logger) *Service {
	return &Service{store: store, log: log, now: time.Now}
}

// NewBook carries the fields a librarian submits when registering a title.
type NewBook struct {
	Title    string `json:"title"`
	Author   string `json:"author"`
	Category string `json:"category"`
	ISBN     string `json:"isbn"`
	Year     int    `json:"year"`
	Copies   int    `json:"copies"`
}

// AddBook registers a new title. Librarian-only at the transport layer.
func (s *Service) AddBook(ctx context.Context, in NewBook) (*Book, error) {
	if in.Title == "" || in.Author == "" {
		return nil, fmt.Errorf("%w: title and author are required", ErrInvalidInput)
	}
	if in.Copies < 1 {
		return nil, fmt.Errorf("%w: copies must be positive", ErrInvalidInput)
	}
	book := &Book{
		ID:        uuid.New().String(),
		Title:     in.Title,
		Author:    in.Author,
		Category:  in.Category,
		ISBN:      in.ISBN,
		Year:      in.Year,
		Copies:    in.Copies,
		Available: in.Copies,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Create(ctx, book); err != nil {
		return nil, fmt.Errorf("add book: %w", err)
	}
	s.log.Info("book added", "book_id", book.ID, "title", book.Title)
	return book, nil
}

// GetBook fetches a single title by ID.
func (s *Service) GetBook(ctx context.Context, id string) (*Book, error) {
	return s.store.Get(ctx, id)
}

// Search lists the catalog narrowed by the given filter.
func (s *Service) Search(ctx context.Context, filter Filter) ([]*Book, error) {
	return s.store.List(ctx, filter)
}

// Checkout takes one copy off the shelf.
func (s *Service) Checkout(ctx context.Context, id string) error {
	return s.store.AdjustAvailability(ctx, id, -1)
}

// Checkin puts one copy back on the shelf.
func (s *Service) Checkin(ctx context.Context, id string) error {
	return s.store.AdjustAvailability(ctx, id, 1)
}
