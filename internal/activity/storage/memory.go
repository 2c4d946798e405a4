// Package storage provides durable string-keyed backends for the activity
// offline queue. The queue only needs Get/Set/Delete; the medium is
// swappable without touching queue logic.
package storage

import (
	"context"
	"sync"

	"libris/internal/activity"
)

// Memory is a process-local backend for tests and backend-less runs.
type Memory struct {
	mu     sync.Mutex
	values map[string]string
}

var _ activity.Storage = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[key], nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
