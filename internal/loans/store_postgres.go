package loans

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresStore persists loans in the loans table via database/sql.
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the loans table when it does not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS loans (
			id           TEXT PRIMARY KEY,
			book_id      TEXT NOT NULL,
			user_id      TEXT NOT NULL,
			status       TEXT NOT NULL,
			requested_at TIMESTAMPTZ NOT NULL,
			due_at       TIMESTAMPTZ NOT NULL,
			returned_at  TIMESTAMPTZ
		)
	`)
	if err != nil {
		return fmt.Errorf("migrate loans: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS loans_user_id_idx ON loans (user_id, requested_at DESC)
	`)
	if err != nil {
		return fmt.Errorf("migrate loans index: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, loan *Loan) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO loans (id, book_id, user_id, status, requested_at, due_at, returned_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, loan.ID, loan.BookID, loan.UserID, string(loan.Status), loan.RequestedAt, loan.DueAt, loan.ReturnedAt)
	if err != nil {
		return fmt.Errorf("insert loan: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Loan, error) {
	return scanLoan(s.db.QueryRowContext(ctx, `
		SELECT id, book_id, user_id, status, requested_at, due_at, returned_at
		FROM loans WHERE id = $1
	`, id))
}

func (s *PostgresStore) Update(ctx context.Context, loan *Loan) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE loans SET status = $2, returned_at = $3 WHERE id = $1
	`, loan.ID, string(loan.Status), loan.ReturnedAt)
	if err != nil {
		return fmt.Errorf("update loan: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update loan: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string) ([]*Loan, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, book_id, user_id, status, requested_at, due_at, returned_at
		FROM loans WHERE user_id = $1 ORDER BY requested_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	defer rows.Close()

	var out []*Loan
	for rows.Next() {
		loan, err := scanLoanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, loan)
	}
	return out, rows.Err()
}

func (s *PostgresStore) FindOpen(ctx context.Context, userID, bookID string) (*Loan, error) {
	return scanLoan(s.db.QueryRowContext(ctx, `
		SELECT id, book_id, user_id, status, requested_at, due_at, returned_at
		FROM loans WHERE user_id = $1 AND book_id = $2 AND status <> $3
		ORDER BY requested_at DESC LIMIT 1
	`, userID, bookID, string(StatusReturned)))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLoan(row *sql.Row) (*Loan, error) {
	loan, err := scanLoanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return loan, err
}

func scanLoanRow(row rowScanner) (*Loan, error) {
	var loan Loan
	var status string
	var returnedAt sql.NullTime
	err := row.Scan(&loan.ID, &loan.BookID, &loan.UserID, &status,
		&loan.RequestedAt, &loan.DueAt, &returnedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan loan: %w", err)
	}
	loan.Status = Status(status)
	if returnedAt.Valid {
		t := returnedAt.Time.UTC()
		loan.ReturnedAt = &t
	}
	return &loan, nil
}
