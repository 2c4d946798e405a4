// Package identity is the portal's identity provider boundary: account
// creation, credential checks, token issuance, and a subscribable
// auth-state notification the application uses to trigger activity queue
// replay once sign-in completes.
package identity

import "time"

// Role gates librarian-only operations.
type Role string

const (
	RoleMember    Role = "member"
	RoleLibrarian Role = "librarian"
)

// User is the primary identity tracked by the portal. The password hash
// never leaves this package.
type User struct {
	ID           string
	Email        string
	Name         string
	Role         Role
	PasswordHash []byte
	CreatedAt    time.Time
}

// Session is the result of a successful login: the issued token plus the
// authenticated user.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      User
}
