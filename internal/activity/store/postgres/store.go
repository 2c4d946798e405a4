// Package postgres persists activity records in an append-only
// activity_logs table. The destination path is stored as a column so the
// per-user / auth / system partitioning of the document store carries over
// unchanged.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"libris/internal/activity"
)

// insufficientPrivilege is the Postgres error code raised when the role
// lacks INSERT on the table; mapped to the authorization-shaped failure
// class so such writes are queued rather than dropped.
const insufficientPrivilege = "42501"

type Store struct {
	pool *pgxpool.Pool
}

var (
	_ activity.Store  = (*Store)(nil)
	_ activity.Reader = (*Store)(nil)
)

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate creates the activity_logs table when it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS activity_logs (
			id          UUID PRIMARY KEY,
			destination TEXT NOT NULL,
			kind        TEXT NOT NULL,
			user_id     TEXT,
			payload     JSONB NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`); err != nil {
		return fmt.Errorf("migrate activity_logs: %w", err)
	}
	if _, err := s.pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS activity_logs_destination_idx
			ON activity_logs (destination, created_at DESC)
	`); err != nil {
		return fmt.Errorf("migrate activity_logs index: %w", err)
	}
	return nil
}

// Append inserts the document. The creation time is assigned by the
// database, never by the caller; the ServerTimestamp placeholder is
// dropped from the stored payload.
func (s *Store) Append(ctx context.Context, path string, doc activity.Fields) error {
	payload := make(activity.Fields, len(doc))
	for k, v := range doc {
		if v == activity.ServerTimestamp {
			continue
		}
		payload[k] = v
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal activity payload: %w", err)
	}

	kind, _ := doc["type"].(string)
	userID, _ := doc["userId"].(string)

	_, err = s.pool.Exec(ctx, `
		INSERT INTO activity_logs (id, destination, kind, user_id, payload)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)
	`, uuid.New(), path, kind, userID, data)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == insufficientPrivilege {
			return fmt.Errorf("append %s: %w: %s", path, activity.ErrPermissionDenied, pgErr.Message)
		}
		return fmt.Errorf("insert activity record: %w", err)
	}
	return nil
}

// List returns up to limit payloads for the destination, newest first.
func (s *Store) List(ctx context.Context, path string, limit int) ([]activity.Fields, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT payload, created_at
		FROM activity_logs
		WHERE destination = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, path, limit)
	if err != nil {
		return nil, fmt.Errorf("query activity records: %w", err)
	}
	defer rows.Close()

	var out []activity.Fields
	for rows.Next() {
		var data []byte
		var createdAt time.Time
		if err := rows.Scan(&data, &createdAt); err != nil {
			return nil, fmt.Errorf("scan activity record: %w", err)
		}
		var doc activity.Fields
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode activity payload: %w", err)
		}
		doc["timestamp"] = createdAt.UTC()
		out = append(out, doc)
	}
	return out, rows.Err()
}
