package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type AuthMode string

const (
	AuthNone   AuthMode = "none"
	AuthAPIKey AuthMode = "apikey"
	AuthBearer AuthMode = "bearer"
	AuthJWT    AuthMode = "jwt"
)

type AuthConfig struct {
	Mode        AuthMode
	APIKey      string
	BearerToken string
	// JWTSecret verifies HS256 tokens in AuthJWT mode. Tokens must carry
	// sub and exp claims.
	JWTSecret string
	SkipPaths []string
}

type authErr struct {
	Error string `json:"error"`
}

type subjectKey struct{}

// Subject returns the JWT subject stored by AuthMiddleware, if any.
func Subject(ctx context.Context) (string, bool) {
	sub, ok := ctx.Value(subjectKey{}).(string)
	return sub, ok
}

func AuthMiddleware(cfg AuthConfig) func(http.Handler) http.Handler {
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)

	return func(next http.Handler) http.Handler {
		if cfg.Mode == AuthNone || cfg.Mode == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := skip[r.URL.Path]; ok || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			switch cfg.Mode {
			case AuthAPIKey:
				// Header: X-API-Key: <key>
				if constantTimeEq(r.Header.Get("X-API-Key"), cfg.APIKey) {
					next.ServeHTTP(w, r)
					return
				}
				unauthorized(w, `ApiKey realm="tasks", header="X-API-Key"`)

			case AuthBearer:
				if token, ok := bearerToken(r); ok && constantTimeEq(token, cfg.BearerToken) {
					next.ServeHTTP(w, r)
					return
				}
				unauthorized(w, `Bearer realm="tasks"`)

			case AuthJWT:
				raw, ok := bearerToken(r)
				if !ok {
					unauthorized(w, `Bearer realm="tasks"`)
					return
				}
				token, err := parser.Parse(raw, func(*jwt.Token) (any, error) {
					return []byte(cfg.JWTSecret), nil
				})
				if err != nil || !token.Valid {
					unauthorized(w, `Bearer realm="tasks", error="invalid_token"`)
					return
				}
				sub, err := token.Claims.GetSubject()
				if err != nil || sub == "" {
					unauthorized(w, `Bearer realm="tasks", error="invalid_token"`)
					return
				}
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), subjectKey{}, sub)))

			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// bearerToken reads Authorization: Bearer <token>.
func bearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	token := strings.TrimPrefix(authz, "Bearer ")
	if token == authz {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func constantTimeEq(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func unauthorized(w http.ResponseWriter, challenge string) {
	w.Header().Set("Content-Type", "application/json")
	if challenge != "" {
		w.Header().Set("WWW-Authenticate", challenge)
	}
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(authErr{Error: "unauthorized"})
}
