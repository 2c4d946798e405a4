package identity_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libris/internal/identity"
)

func TestTokenRoundTrip(t *testing.T) {
	issuer := identity.NewTokenIssuer("test-signing-key")
	user := identity.User{ID: "user-1", Role: identity.RoleLibrarian}

	token, expires, err := issuer.Issue(user, time.Now())
	require.NoError(t, err)
	assert.True(t, expires.After(time.Now()))

	claims, err := issuer.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, string(identity.RoleLibrarian), claims.Role)
	assert.NotEmpty(t, claims.SessionID)
}

func TestTokenSessionIDUniquePerLogin(t *testing.T) {
	issuer := identity.NewTokenIssuer("test-signing-key")
	user := identity.User{ID: "user-1", Role: identity.RoleMember}

	first, _, err := issuer.Issue(user, time.Now())
	require.NoError(t, err)
	second, _, err := issuer.Issue(user, time.Now())
	require.NoError(t, err)

	a, err := issuer.ValidateToken(first)
	require.NoError(t, err)
	b, err := issuer.ValidateToken(second)
	require.NoError(t, err)
	assert.NotEqual(t, a.SessionID, b.SessionID)
}

func TestTokenWrongKeyRejected(t *testing.T) {
	token, _, err := identity.NewTokenIssuer("key-one").Issue(identity.User{ID: "user-1"}, time.Now())
	require.NoError(t, err)

	_, err = identity.NewTokenIssuer("key-two").ValidateToken(token)
	assert.Error(t, err)
}

func TestTokenExpiredRejected(t *testing.T) {
	issuer := identity.NewTokenIssuer("test-signing-key")
	token, _, err := issuer.Issue(identity.User{ID: "user-1"}, time.Now().Add(-48*time.Hour))
	require.NoError(t, err)

	_, err = issuer.ValidateToken(token)
	assert.Error(t, err)
}

func TestTokenGarbageRejected(t *testing.T) {
	_, err := identity.NewTokenIssuer("test-signing-key").ValidateToken("not-a-jwt")
	assert.Error(t, err)
}
