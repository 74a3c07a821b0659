package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	appmw "github.com/s1natex/taskapi/internal/middleware"
)

func TestAuth_APIKey(t *testing.T) {
	r := chi.NewRouter()
	r.Use(appmw.AuthMiddleware(appmw.AuthConfig{
		Mode:      appmw.AuthAPIKey,
		APIKey:    "secret123",
		SkipPaths: []string{"/health"},
	}))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/tasks", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/tasks", nil)
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/tasks", nil)
	req.Header.Set("X-API-Key", "secret123")
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with key, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/health", nil)
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("skip path should be open, got %d", rec.Code)
	}
}

func TestAuth_Bearer(t *testing.T) {
	r := chi.NewRouter()
	r.Use(appmw.AuthMiddleware(appmw.AuthConfig{
		Mode:        appmw.AuthBearer,
		BearerToken: "tok_abc",
	}))
	r.Get("/tasks", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/tasks", nil)
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/tasks", nil)
	req.Header.Set("Authorization", "Bearer tok_abc")
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with bearer, got %d", rec.Code)
	}
}

func signHS256(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func TestAuth_JWT(t *testing.T) {
	const secret = "0123456789abcdef0123456789abcdef"
	r := chi.NewRouter()
	r.Use(appmw.AuthMiddleware(appmw.AuthConfig{
		Mode:      appmw.AuthJWT,
		JWTSecret: secret,
	}))
	r.Get("/tasks", func(w http.ResponseWriter, r *http.Request) {
		sub, _ := appmw.Subject(r.Context())
		_, _ = w.Write([]byte(sub))
	})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"garbage token", "Bearer obviously.invalid.token", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + signHS256(t, "another-secret-another-secret-xx", jwt.MapClaims{
			"sub": "user-1", "exp": time.Now().Add(time.Hour).Unix(),
		}), http.StatusUnauthorized},
		{"missing exp", "Bearer " + signHS256(t, secret, jwt.MapClaims{"sub": "user-1"}), http.StatusUnauthorized},
		{"expired", "Bearer " + signHS256(t, secret, jwt.MapClaims{
			"sub": "user-1", "exp": time.Now().Add(-time.Hour).Unix(),
		}), http.StatusUnauthorized},
		{"missing sub", "Bearer " + signHS256(t, secret, jwt.MapClaims{
			"exp": time.Now().Add(time.Hour).Unix(),
		}), http.StatusUnauthorized},
		{"valid", "Bearer " + signHS256(t, secret, jwt.MapClaims{
			"sub": "user-1", "exp": time.Now().Add(time.Hour).Unix(),
		}), http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "/tasks", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			r.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
			if tc.want == http.StatusOK && rec.Body.String() != "user-1" {
				t.Fatalf("expected subject in context, got %q", rec.Body.String())
			}
		})
	}
}

func TestAuth_PreflightPassesThrough(t *testing.T) {
	r := chi.NewRouter()
	r.Use(appmw.AuthMiddleware(appmw.AuthConfig{Mode: appmw.AuthAPIKey, APIKey: "k"}))
	r.Options("/tasks", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/tasks", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected preflight to pass, got %d", rec.Code)
	}
}
