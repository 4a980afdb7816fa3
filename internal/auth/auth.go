// Package auth holds both halves of the service's authentication: lw_ API
// keys for the write path and JWT bearer tokens for the read API. Both
// resolve to a project ID stored in the request context.
package auth

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/logwell-systems/logwell/internal/httputil"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrInvalidKey   = errors.New("invalid API key")
)

// apiKeyPattern matches ingestion keys: the lw_ prefix followed by 32
// URL-safe characters.
var apiKeyPattern = regexp.MustCompile(`^lw_[A-Za-z0-9_-]{32}$`)

type projectContextKey struct{}

// WithProjectID stores the authenticated project in the context.
func WithProjectID(ctx context.Context, projectID string) context.Context {
	return context.WithValue(ctx, projectContextKey{}, projectID)
}

// ProjectID returns the authenticated project, empty when unauthenticated.
func ProjectID(ctx context.Context) string {
	if id, ok := ctx.Value(projectContextKey{}).(string); ok {
		return id
	}
	return ""
}

// Claims are the JWT claims accepted by the read API.
type Claims struct {
	ProjectID string `json:"project_id"`
	jwt.RegisteredClaims
}

// Verifier validates read-API bearer tokens.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// GenerateToken mints a token for the given project. Used by tests and the
// local seeder.
func (v *Verifier) GenerateToken(projectID string, ttl time.Duration) (string, error) {
	claims := Claims{
		ProjectID: projectID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "logwell",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// ValidateToken parses and verifies a bearer token, returning its claims.
func (v *Verifier) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.ProjectID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// KeyResolver maps an ingestion API key to its project.
type KeyResolver struct {
	keys map[string]string
}

func NewKeyResolver(keys map[string]string) *KeyResolver {
	return &KeyResolver{keys: keys}
}

// Resolve validates the key shape and looks up its project.
func (kr *KeyResolver) Resolve(key string) (string, error) {
	if !apiKeyPattern.MatchString(key) {
		return "", ErrInvalidKey
	}
	projectID, ok := kr.keys[key]
	if !ok {
		return "", ErrInvalidKey
	}
	return projectID, nil
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

// IngestAuth authenticates write requests with an lw_ API key.
func IngestAuth(resolver *KeyResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				httputil.WriteError(w, http.StatusUnauthorized, "missing API key")
				return
			}

			projectID, err := resolver.Resolve(token)
			if err != nil {
				httputil.WriteError(w, http.StatusUnauthorized, "invalid API key")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithProjectID(r.Context(), projectID)))
		})
	}
}

// ReadAuth authenticates read-API requests with a JWT bearer token.
func ReadAuth(verifier *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				httputil.WriteError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			claims, err := verifier.ValidateToken(token)
			if err != nil {
				httputil.WriteError(w, http.StatusUnauthorized, "invalid bearer token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithProjectID(r.Context(), claims.ProjectID)))
		})
	}
}
