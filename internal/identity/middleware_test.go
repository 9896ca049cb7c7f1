package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nutonspeed/beauty-precision-platform/internal/tenancy"
	"github.com/nutonspeed/beauty-precision-platform/pkg/logging"
)

func signToken(t *testing.T, secret, subject, clinicID string) string {
	t.Helper()
	claims := &Claims{
		ClinicID: clinicID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestMiddlewareBearerToken(t *testing.T) {
	const secret = "test-secret"

	var gotActor, gotClinic string
	handler := Middleware(secret, logging.Default())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotActor, _ = tenancy.ActorIDFromContext(r.Context())
		gotClinic, _ = tenancy.ClinicIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/sales/proposals", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, secret, "user-1", "clinic-7"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if gotActor != "user-1" || gotClinic != "clinic-7" {
		t.Fatalf("unexpected identity: actor=%q clinic=%q", gotActor, gotClinic)
	}
}

func TestMiddlewareRejectsBadToken(t *testing.T) {
	handler := Middleware("real-secret", logging.Default())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/sales/proposals", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "wrong-secret", "user-1", ""))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestMiddlewareHeaderFallback(t *testing.T) {
	var gotActor string
	handler := Middleware("", logging.Default())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotActor, _ = tenancy.ActorIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/sales/proposals", nil)
	req.Header.Set("X-Sales-User-Id", "user-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if gotActor != "user-42" {
		t.Fatalf("expected header actor, got %q", gotActor)
	}
}

func TestMiddlewareMissingIdentity(t *testing.T) {
	handler := Middleware("", logging.Default())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/sales/proposals", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
