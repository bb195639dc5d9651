package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/transcribe-checkout/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-that-is-long-enough-for-hs256"

func newTestJWTService(t *testing.T) *auth.JWTService {
	t.Helper()
	svc, err := auth.NewJWTService(testSecret, "authenticated")
	require.NoError(t, err)
	return svc
}

// captureClaims returns a handler that records the claims it sees.
func captureClaims(out **auth.Claims) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims, ok := GetUserFromContext(r.Context()); ok {
			*out = claims
		}
		w.WriteHeader(http.StatusOK)
	})
}

// ============================================
// AuthMiddleware Tests
// ============================================

func TestAuthMiddleware_ValidToken_Header(t *testing.T) {
	jwtService := newTestJWTService(t)
	token, err := jwtService.IssueToken("user-123", "test@example.com", "authenticated", time.Minute)
	require.NoError(t, err)

	var captured *auth.Claims
	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	AuthMiddleware(jwtService)(captureClaims(&captured)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, captured)
	assert.Equal(t, "user-123", captured.UserID())
	assert.Equal(t, "test@example.com", captured.Email)
}

func TestAuthMiddleware_ValidToken_Cookie(t *testing.T) {
	jwtService := newTestJWTService(t)
	token, err := jwtService.IssueToken("user-456", "cookie@example.com", "authenticated", time.Minute)
	require.NoError(t, err)

	var captured *auth.Claims
	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
	rec := httptest.NewRecorder()

	AuthMiddleware(jwtService)(captureClaims(&captured)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, captured)
	assert.Equal(t, "user-456", captured.UserID())
}

func TestAuthMiddleware_HeaderTakesPrecedence(t *testing.T) {
	jwtService := newTestJWTService(t)
	headerToken, err := jwtService.IssueToken("header-user", "h@example.com", "authenticated", time.Minute)
	require.NoError(t, err)

	var captured *auth.Claims
	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("Authorization", "Bearer "+headerToken)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "garbage"})
	rec := httptest.NewRecorder()

	AuthMiddleware(jwtService)(captureClaims(&captured)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, captured)
	assert.Equal(t, "header-user", captured.UserID())
}

func TestAuthMiddleware_NoToken(t *testing.T) {
	called := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	rec := httptest.NewRecorder()

	AuthMiddleware(newTestJWTService(t))(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
	assert.Contains(t, rec.Body.String(), "unauthorized")
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	tests := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{"garbage", func(t *testing.T) string { return "not-a-jwt" }},
		{"expired", func(t *testing.T) string {
			token, err := newTestJWTService(t).IssueToken("user-1", "a@example.com", "authenticated", -time.Minute)
			require.NoError(t, err)
			return token
		}},
		{"wrong signature", func(t *testing.T) string {
			other, err := auth.NewJWTService("another-secret-key-that-is-also-long-enough", "authenticated")
			require.NoError(t, err)
			token, err := other.IssueToken("user-1", "a@example.com", "authenticated", time.Minute)
			require.NoError(t, err)
			return token
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
			req := httptest.NewRequest(http.MethodGet, "/orders", nil)
			req.Header.Set("Authorization", "Bearer "+tt.token(t))
			rec := httptest.NewRecorder()

			AuthMiddleware(newTestJWTService(t))(handler).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.False(t, called)
		})
	}
}

// ============================================
// OptionalAuthMiddleware Tests
// ============================================

func TestOptionalAuthMiddleware_ValidToken(t *testing.T) {
	jwtService := newTestJWTService(t)
	token, err := jwtService.IssueToken("user-9", "u9@example.com", "authenticated", time.Minute)
	require.NoError(t, err)

	var captured *auth.Claims
	req := httptest.NewRequest(http.MethodPost, "/checkout/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	OptionalAuthMiddleware(jwtService)(captureClaims(&captured)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, captured)
	assert.Equal(t, "user-9", captured.UserID())
}

func TestOptionalAuthMiddleware_NoOrInvalidToken(t *testing.T) {
	for _, header := range []string{"", "Bearer broken"} {
		var captured *auth.Claims
		req := httptest.NewRequest(http.MethodPost, "/checkout/sessions", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()

		OptionalAuthMiddleware(newTestJWTService(t))(captureClaims(&captured)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Nil(t, captured)
	}
}

// ============================================
// AdminKeyMiddleware Tests
// ============================================

func TestAdminKeyMiddleware(t *testing.T) {
	const key = "admin-key-0123456789abcdef"
	hash, err := auth.HashAPIKey(key)
	require.NoError(t, err)
	mw := AdminKeyMiddleware(hash)
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid key", key, http.StatusOK},
		{"missing key", "", http.StatusUnauthorized},
		{"wrong key", "admin-key-wrong-0000000000", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/analytics", nil)
			if tt.header != "" {
				req.Header.Set(AdminKeyHeader, tt.header)
			}
			rec := httptest.NewRecorder()

			mw(ok).ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

// ============================================
// Context Helper Tests
// ============================================

func TestGetUserID(t *testing.T) {
	claims := &auth.Claims{}
	claims.Subject = "user-42"
	ctx := context.WithValue(context.Background(), UserContextKey, claims)

	assert.Equal(t, "user-42", GetUserID(ctx))
	assert.Equal(t, "", GetUserID(context.Background()))
}
