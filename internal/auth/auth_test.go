package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/overhead/pkg/logger"
)

func newTestService(secret string) *Service {
	return NewService(Config{JWTSecret: secret, TokenDuration: time.Hour}, logger.NewNop())
}

func TestGenerateAndValidate(t *testing.T) {
	s := newTestService("s3cret")
	token, err := s.GenerateToken("bench", RoleAdmin)
	require.NoError(t, err)

	claims, err := s.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "bench", claims.Subject)
	assert.Equal(t, RoleAdmin, claims.Role)
	assert.Equal(t, "overhead", claims.Issuer)
}

func TestValidateRejects(t *testing.T) {
	s := newTestService("s3cret")
	token, err := s.GenerateToken("bench", RoleAdmin)
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		_, err := newTestService("other").ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		late := newTestService("s3cret")
		late.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := late.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewService(Config{JWTSecret: "s3cret", Issuer: "someone-else"}, logger.NewNop())
		_, err := other.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("none algorithm", func(t *testing.T) {
		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{Role: RoleAdmin})
		str, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = s.ValidateToken(str)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := s.ValidateToken("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestGenerateWithoutSecret(t *testing.T) {
	_, err := newTestService("").GenerateToken("x", RoleAdmin)
	assert.ErrorIs(t, err, ErrNoSecret)
}

func TestHasRole(t *testing.T) {
	assert.True(t, HasRole(RoleAdmin, RoleAdmin))
	assert.True(t, HasRole(RoleAdmin, RoleViewer))
	assert.False(t, HasRole(RoleViewer, RoleAdmin))
	assert.False(t, HasRole("root", RoleViewer))
}

func TestRequireRole(t *testing.T) {
	s := newTestService("s3cret")
	admin, err := s.GenerateToken("bench", RoleAdmin)
	require.NoError(t, err)
	viewer, err := s.GenerateToken("kiosk", RoleViewer)
	require.NoError(t, err)

	var gotSubject string
	h := s.RequireRole(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if ok {
			gotSubject = claims.Subject
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"invalid", "Bearer nope", http.StatusUnauthorized},
		{"viewer", "Bearer " + viewer, http.StatusForbidden},
		{"admin", "Bearer " + admin, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/test/closest", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
	assert.Equal(t, "bench", gotSubject)
}

func TestRequireRoleDisabled(t *testing.T) {
	s := newTestService("")
	h := s.RequireRole(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/test/closest", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
