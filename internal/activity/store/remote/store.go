// Package remote is the client for the hosted document store. Appends POST
// one JSON document to the destination's collection path; the server
// assigns the creation timestamp and evaluates its declarative access
// rules. A 401/403 maps to the authorization-shaped failure class so the
// pipeline can defer the write until identity propagation completes.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"libris/internal/activity"
)

// serverTimestampMarker is the wire form of the ServerTimestamp
// placeholder; the store substitutes its own clock on receipt.
const serverTimestampMarker = "__server_timestamp__"

// TokenSource supplies the bearer token for authenticated appends. An
// empty token means the write goes out unauthenticated, which the store
// accepts only for system-error records.
type TokenSource interface {
	Token(ctx context.Context) string
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func(ctx context.Context) string

func (f TokenFunc) Token(ctx context.Context) string { return f(ctx) }

type Store struct {
	baseURL string
	client  *http.Client
	tokens  TokenSource
}

var _ activity.Store = (*Store)(nil)

// New builds a client for the store rooted at baseURL. tokens may be nil
// for unauthenticated use.
func New(baseURL string, tokens TokenSource) *Store {
	return &Store{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		tokens:  tokens,
	}
}

func (s *Store) Append(ctx context.Context, path string, doc activity.Fields) error {
	body, err := json.Marshal(activity.ResolveServerTimestamps(doc, serverTimestampMarker))
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/"+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build append request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.tokens != nil {
		if token := s.tokens.Token(ctx); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("append %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("append %s: %w: %s", path, activity.ErrPermissionDenied,
			strings.TrimSpace(string(detail)))
	}
	return fmt.Errorf("append %s: status %d: %s", path, resp.StatusCode,
		strings.TrimSpace(string(detail)))
}
