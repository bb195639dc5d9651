package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-testing-purposes"

func newTestJWTService(t *testing.T) *JWTService {
	t.Helper()
	service, err := NewJWTService(testSecret, "authenticated")
	require.NoError(t, err)
	return service
}

func TestNewJWTService_ShortSecret(t *testing.T) {
	_, err := NewJWTService("short", "")

	assert.ErrorIs(t, err, ErrShortSecret)
}

func TestJWTService_ValidateAccessToken_Valid(t *testing.T) {
	service := newTestJWTService(t)
	token, err := service.IssueToken("user-456", "test@example.com", "authenticated", time.Minute)
	require.NoError(t, err)

	claims, err := service.ValidateAccessToken(token)

	require.NoError(t, err)
	assert.Equal(t, "user-456", claims.UserID())
	assert.Equal(t, "test@example.com", claims.Email)
	assert.Equal(t, "authenticated", claims.Role)
}

func TestJWTService_ValidateAccessToken_Expired(t *testing.T) {
	service := newTestJWTService(t)
	token, err := service.IssueToken("user-1", "a@example.com", "authenticated", -time.Minute)
	require.NoError(t, err)

	_, err = service.ValidateAccessToken(token)

	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestJWTService_ValidateAccessToken_WrongSecret(t *testing.T) {
	other, err := NewJWTService("another-secret-key-that-is-long-enough", "authenticated")
	require.NoError(t, err)
	token, err := other.IssueToken("user-1", "a@example.com", "authenticated", time.Minute)
	require.NoError(t, err)

	_, err = newTestJWTService(t).ValidateAccessToken(token)

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_ValidateAccessToken_WrongAudience(t *testing.T) {
	other, err := NewJWTService(testSecret, "anon")
	require.NoError(t, err)
	token, err := other.IssueToken("user-1", "a@example.com", "anon", time.Minute)
	require.NoError(t, err)

	_, err = newTestJWTService(t).ValidateAccessToken(token)

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_ValidateAccessToken_RejectsOtherAlgorithms(t *testing.T) {
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "user-1",
		Audience:  jwt.ClaimStrings{"authenticated"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = newTestJWTService(t).ValidateAccessToken(token)

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_ValidateAccessToken_MissingSubject(t *testing.T) {
	service := newTestJWTService(t)
	token, err := service.IssueToken("", "a@example.com", "authenticated", time.Minute)
	require.NoError(t, err)

	_, err = service.ValidateAccessToken(token)

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_ValidateAccessToken_Garbage(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"not a jwt", "not-a-token"},
		{"truncated", "eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiIxIn0"},
	}

	service := newTestJWTService(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.ValidateAccessToken(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
