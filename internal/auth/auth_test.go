package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func TestVerify_Success(t *testing.T) {
	v := NewVerifier(testSecret)
	token := signToken(t, jwt.MapClaims{
		"user_id": "user-1",
		"role":    "customer",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	identity, err := v.Verify(token)

	require.NoError(t, err)
	assert.Equal(t, "user-1", identity.UserID)
	assert.False(t, identity.IsAdmin())
}

func TestVerify_SubjectFallback(t *testing.T) {
	v := NewVerifier(testSecret)
	token := signToken(t, jwt.MapClaims{
		"sub": "user-2",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	identity, err := v.Verify(token)

	require.NoError(t, err)
	assert.Equal(t, "user-2", identity.UserID)
}

func TestVerify_AdminRole(t *testing.T) {
	v := NewVerifier(testSecret)
	token := signToken(t, jwt.MapClaims{
		"user_id": "ops-1",
		"role":    RoleAdmin,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	identity, err := v.Verify(token)

	require.NoError(t, err)
	assert.True(t, identity.IsAdmin())
}

func TestVerify_WrongSecret(t *testing.T) {
	v := NewVerifier("other-secret")
	token := signToken(t, jwt.MapClaims{"user_id": "user-1"})

	_, err := v.Verify(token)

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Expired(t *testing.T) {
	v := NewVerifier(testSecret)
	token := signToken(t, jwt.MapClaims{
		"user_id": "user-1",
		"exp":     time.Now().Add(-time.Hour).Unix(),
	})

	_, err := v.Verify(token)

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_MissingSubject(t *testing.T) {
	v := NewVerifier(testSecret)
	token := signToken(t, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err := v.Verify(token)

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Garbage(t *testing.T) {
	v := NewVerifier(testSecret)

	_, err := v.Verify("not.a.token")

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIdentityContextRoundTrip(t *testing.T) {
	id := &Identity{UserID: "user-1", Role: "customer"}
	ctx := WithIdentity(context.Background(), id)

	got, err := FromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestFromContext_Empty(t *testing.T) {
	_, err := FromContext(context.Background())
	assert.ErrorIs(t, err, ErrNoIdentity)
}
