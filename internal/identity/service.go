package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	emailname "libris/pkg/email"
)

var (
	// ErrInvalidCredentials covers both unknown accounts and wrong
	// passwords; callers must not be able to tell them apart.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInvalidInput rejects malformed signup requests.
	ErrInvalidInput = errors.New("invalid signup input")
)

// AuthStateFunc observes a newly authenticated identity. Subscribers run
// synchronously after a successful login, before the session is returned;
// the application wires activity queue replay here.
type AuthStateFunc func(ctx context.Context, user User)

// Service holds the identity business rules. Domain operations here do
// raise genuine failures to the caller, unlike the activity subsystem.
type Service struct {
	users  UserStore
	tokens *TokenIssuer
	log    *slog.Logger
	now    func() time.Time

	mu          sync.RWMutex
	subscribers []AuthStateFunc
}

func NewService(users UserStore, tokens *TokenIssuer, log *slog.Logger) *Service {
	return &Service{
		users:  users,
		tokens: tokens,
		log:    log,
		now:    time.Now,
	}
}

// OnAuthStateChanged registers a subscriber for successful sign-ins.
func (s *Service) OnAuthStateChanged(fn AuthStateFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// Signup creates a member account. The password is bcrypt-hashed; the
// plaintext is never stored or logged.
func (s *Service) Signup(ctx context.Context, email, password, name string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return User{}, fmt.Errorf("%w: email", ErrInvalidInput)
	}
	if len(password) < 8 {
		return User{}, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = emailname.DisplayName(email)
	}

	user := User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		Role:         RoleMember,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return User{}, err
	}
	s.log.InfoContext(ctx, "account created", "user_id", user.ID)
	user.PasswordHash = nil
	return user, nil
}

// Login checks credentials, issues a token, and notifies auth-state
// subscribers before returning.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, fmt.Errorf("look up account: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}

	token, expires, err := s.tokens.Issue(user, s.now())
	if err != nil {
		return Session{}, err
	}

	user.PasswordHash = nil
	s.notify(ctx, user)
	return Session{Token: token, ExpiresAt: expires, User: user}, nil
}

// GetUser resolves a user by id.
func (s *Service) GetUser(ctx context.Context, id string) (User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	user.PasswordHash = nil
	return user, nil
}

func (s *Service) notify(ctx context.Context, user User) {
	s.mu.RLock()
	subscribers := append([]AuthStateFunc(nil), s.subscribers...)
	s.mu.RUnlock()
	for _, fn := range subscribers {
		fn(ctx, user)
	}
}
