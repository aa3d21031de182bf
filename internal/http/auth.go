package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	applog "tripledger/internal/log"
)

type userContextKey struct{}

// ErrNoUser is returned by UserID for requests that did not pass authentication.
var ErrNoUser = errors.New("no authenticated user")

// Authenticator verifies HS256 bearer tokens issued by the identity
// provider. The user id is the token subject.
type Authenticator struct {
	secret []byte
	parser *jwt.Parser
}

// NewAuthenticator returns an authenticator for secret. When issuer is not
// empty the iss claim must match it.
func NewAuthenticator(secret, issuer string) (*Authenticator, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(30 * time.Second),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return &Authenticator{secret: []byte(secret), parser: jwt.NewParser(opts...)}, nil
}

// Verify parses the token and returns its subject.
func (a *Authenticator) Verify(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := a.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		return "", err
	}
	sub := strings.TrimSpace(claims.Subject)
	if sub == "" {
		return "", errors.New("token has no subject")
	}
	return sub, nil
}

// Middleware rejects requests without a valid bearer token and stores the
// user id in the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			UnauthorizedError("missing bearer token").Write(w)
			return
		}

		userID, err := a.Verify(strings.TrimSpace(token))
		if err != nil {
			applog.FromContext(ctx).WithComponent(applog.ComponentAuth).
				WarnContext(ctx, "Rejected bearer token", applog.FieldError, err)
			UnauthorizedError("invalid token").Write(w)
			return
		}

		ctx = context.WithValue(ctx, userContextKey{}, userID)
		logger := applog.FromContext(ctx).With(applog.FieldUserID, userID)
		ctx = applog.NewContext(ctx, logger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserID returns the authenticated user of the request.
func UserID(ctx context.Context) (string, error) {
	if id, ok := ctx.Value(userContextKey{}).(string); ok && id != "" {
		return id, nil
	}
	return "", ErrNoUser
}
