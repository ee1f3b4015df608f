package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-signing-secret"

func mintToken(t *testing.T, secret, role string, expiresIn time.Duration) string {
	t.Helper()
	claims := AdminClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ops@example.com",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestRequireAdmin(t *testing.T) {
	mw := NewAuthMiddleware(testSecret, zap.NewNop())

	var gotClaims *AdminClaims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClaims = GetClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name     string
		header   string
		wantCode int
	}{
		{
			name:     "valid admin token",
			header:   "Bearer " + mintToken(t, testSecret, "admin", time.Hour),
			wantCode: http.StatusOK,
		},
		{
			name:     "missing header",
			header:   "",
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "malformed header",
			header:   "Token abc",
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "wrong signing key",
			header:   "Bearer " + mintToken(t, "another-secret", "admin", time.Hour),
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "expired token",
			header:   "Bearer " + mintToken(t, testSecret, "admin", -time.Minute),
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "non admin role",
			header:   "Bearer " + mintToken(t, testSecret, "viewer", time.Hour),
			wantCode: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotClaims = nil
			req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/users/u1/block", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			mw.RequireAdmin(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode == http.StatusOK {
				require.NotNil(t, gotClaims)
				assert.Equal(t, "ops@example.com", gotClaims.Subject)
				assert.Equal(t, "admin", gotClaims.Role)
			} else {
				assert.Nil(t, gotClaims)
			}
		})
	}
}

func TestExtractBearerTokenCaseInsensitive(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer abc123")
	assert.Equal(t, "abc123", extractBearerToken(req))
}
