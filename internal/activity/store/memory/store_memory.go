// Package memory is the in-process destination store used by tests and
// backend-less development runs. An optional authorize hook reproduces the
// remote store's declarative access rules, including the identity
// propagation race the offline queue exists to paper over.
package memory

import (
	"context"
	"sync"
	"time"

	"libris/internal/activity"
)

// AuthorizeFunc evaluates an append against the store's access rules.
// Returning an error rejects the write; wrap or return
// activity.ErrPermissionDenied for authorization-shaped rejections.
type AuthorizeFunc func(path string, doc activity.Fields) error

type Store struct {
	mu        sync.RWMutex
	docs      map[string][]activity.Fields
	authorize AuthorizeFunc
	now       func() time.Time
}

var (
	_ activity.Store  = (*Store)(nil)
	_ activity.Reader = (*Store)(nil)
)

func NewStore() *Store {
	return &Store{
		docs: make(map[string][]activity.Fields),
		now:  time.Now,
	}
}

// SetAuthorize installs or clears the access-rule hook.
func (s *Store) SetAuthorize(fn AuthorizeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authorize = fn
}

// Append accepts the document, substituting the server-assigned timestamp.
// Documents are never updated or deleted afterwards.
func (s *Store) Append(_ context.Context, path string, doc activity.Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.authorize != nil {
		if err := s.authorize(path, doc); err != nil {
			return err
		}
	}
	s.docs[path] = append(s.docs[path], activity.ResolveServerTimestamps(doc, s.now().UTC()))
	return nil
}

// List returns up to limit documents from the destination, newest first.
// limit <= 0 means all.
func (s *Store) List(_ context.Context, path string, limit int) ([]activity.Fields, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := s.docs[path]
	if limit <= 0 || limit > len(docs) {
		limit = len(docs)
	}
	out := make([]activity.Fields, 0, limit)
	for i := len(docs) - 1; i >= len(docs)-limit; i-- {
		out = append(out, docs[i])
	}
	return out, nil
}

// Len reports how many documents a destination holds.
func (s *Store) Len(path string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs[path])
}

// All returns every document appended to the destination in append order.
// Test helper.
func (s *Store) All(path string) []activity.Fields {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]activity.Fields(nil), s.docs[path]...)
}
