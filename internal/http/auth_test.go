package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.RegisteredClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestNewAuthenticatorRequiresSecret(t *testing.T) {
	_, err := NewAuthenticator("", "")
	assert.Error(t, err)
}

func TestVerify(t *testing.T) {
	a, err := NewAuthenticator(testSecret, "https://id.example.com")
	require.NoError(t, err)

	future := jwt.NewNumericDate(time.Now().Add(time.Hour))
	past := jwt.NewNumericDate(time.Now().Add(-time.Hour))
	key := []byte(testSecret)

	tests := []struct {
		name    string
		token   string
		want    string
		wantErr bool
	}{
		{
			name:  "valid",
			token: sign(t, jwt.SigningMethodHS256, key, jwt.RegisteredClaims{Subject: "u1", Issuer: "https://id.example.com", ExpiresAt: future}),
			want:  "u1",
		},
		{
			name:    "expired",
			token:   sign(t, jwt.SigningMethodHS256, key, jwt.RegisteredClaims{Subject: "u1", Issuer: "https://id.example.com", ExpiresAt: past}),
			wantErr: true,
		},
		{
			name:    "wrong issuer",
			token:   sign(t, jwt.SigningMethodHS256, key, jwt.RegisteredClaims{Subject: "u1", Issuer: "https://evil.example.com"}),
			wantErr: true,
		},
		{
			name:    "no subject",
			token:   sign(t, jwt.SigningMethodHS256, key, jwt.RegisteredClaims{Issuer: "https://id.example.com"}),
			wantErr: true,
		},
		{
			name:    "other HMAC algorithm",
			token:   sign(t, jwt.SigningMethodHS512, key, jwt.RegisteredClaims{Subject: "u1", Issuer: "https://id.example.com"}),
			wantErr: true,
		},
		{
			name:    "unsigned",
			token:   sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, jwt.RegisteredClaims{Subject: "u1", Issuer: "https://id.example.com"}),
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.Verify(tt.token)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	a, err := NewAuthenticator(testSecret, "")
	require.NoError(t, err)

	var seen string
	h := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserID(r.Context())
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"basic scheme", "Basic dXNlcjpwYXNz", http.StatusUnauthorized},
		{"empty bearer", "Bearer ", http.StatusUnauthorized},
		{"lower-case scheme", "bearer " + signToken(t, "carol"), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/api/trips", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, "carol", seen)
			} else {
				assert.Empty(t, seen)
			}
		})
	}
}

func TestUserIDMissing(t *testing.T) {
	_, err := UserID(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	assert.ErrorIs(t, err, ErrNoUser)
}
