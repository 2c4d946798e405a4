package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// PostgresStore persists the catalog in the books table via database/sql.
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the books table when it does not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS books (
			id         TEXT PRIMARY KEY,
			title      TEXT NOT NULL,
			author     TEXT NOT NULL,
			category   TEXT NOT NULL,
			isbn       TEXT NOT NULL DEFAULT '',
			year       INT NOT NULL DEFAULT 0,
			copies     INT NOT NULL,
			available  INT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			CHECK (available >= 0 AND available <= copies)
		)
	`)
	if err != nil {
		return fmt.Errorf("migrate books: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, book *Book) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO books (id, title, author, category, isbn, year, copies, available, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, book.ID, book.Title, book.Author, book.Category, book.ISBN, book.Year, book.Copies, book.Available, book.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert book: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Book, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, author, category, isbn, year, copies, available, created_at
		FROM books WHERE id = $1
	`, id)
	var book Book
	err := row.Scan(&book.ID, &book.Title, &book.Author, &book.Category,
		&book.ISBN, &book.Year, &book.Copies, &book.Available, &book.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan book: %w", err)
	}
	return &book, nil
}

func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]*Book, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Query != "" {
		args = append(args, "%"+strings.ToLower(filter.Query)+"%")
		n := fmt.Sprintf("$%d", len(args))
		conds = append(conds, "(lower(title) LIKE "+n+" OR lower(author) LIKE "+n+")")
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.AvailableOnly {
		conds = append(conds, "available > 0")
	}

	query := `
		SELECT id, title, author, category, isbn, year, copies, available, created_at
		FROM books`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY title"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	var out []*Book
	for rows.Next() {
		var book Book
		if err := rows.Scan(&book.ID, &book.Title, &book.Author, &book.Category,
			&book.ISBN, &book.Year, &book.Copies, &book.Available, &book.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		out = append(out, &book)
	}
	return out, rows.Err()
}

// AdjustAvailability applies the delta atomically; the guarded UPDATE keeps
// concurrent borrows from oversubscribing a title.
func (s *PostgresStore) AdjustAvailability(ctx context.Context, id string, delta int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE books SET available = available + $2
		WHERE id = $1 AND available + $2 >= 0 AND available + $2 <= copies
	`, id, delta)
	if err != nil {
		return fmt.Errorf("adjust availability: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("adjust availability: %w", err)
	}
	if affected == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
		return ErrNoCopies
	}
	return nil
}
