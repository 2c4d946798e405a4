package activity

import (
	"context"
	"errors"
	"strings"
)

// ErrPermissionDenied is returned by Store implementations when the
// destination's access-control layer rejects an append. Writes failing this
// way are queued and replayed once an identity is available.
var ErrPermissionDenied = errors.New("permission denied")

// Store is the append-only destination port. Implementations substitute
// their own server-assigned time for ServerTimestamp placeholders; records
// are never updated or deleted after acceptance (the access rules at the
// store boundary enforce that, not this package).
type Store interface {
	Append(ctx context.Context, path string, doc Fields) error
}

// Reader is optionally implemented by stores that can list a destination
// back out, newest first. The HTTP layer uses it for the activity view.
type Reader interface {
	List(ctx context.Context, path string, limit int) ([]Fields, error)
}

// IsPermissionDenied reports whether err is an authorization-shaped
// failure: the sentinel itself, or an error whose text indicates the
// access-control layer rejected the write. Identity propagation to the
// remote store's rule evaluator races sign-in, so these are retryable.
func IsPermissionDenied(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPermissionDenied) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "permission") ||
		strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "insufficient privilege")
}
