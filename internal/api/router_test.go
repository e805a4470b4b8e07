package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/taskflow/taskflow-api/internal/api/handler"
	"github.com/taskflow/taskflow-api/internal/core/domain"
	"github.com/taskflow/taskflow-api/internal/core/ports"
)

// rejectingAuth fails every token so protected routes can be exercised without
// wiring the full service graph.
type rejectingAuth struct{ ports.AuthService }

func (rejectingAuth) Authenticate(context.Context, string) (*domain.User, error) {
	return nil, domain.ErrInvalidToken
}

type fixedBilling struct{ ports.BillingService }

func (fixedBilling) HandleWebhook(context.Context, []byte, string) error { return nil }

func newTestRouter() http.Handler {
	return NewRouter(Deps{
		Log:         zerolog.Nop(),
		FrontendURL: "http://localhost:3000",
		Auth:        rejectingAuth{},
		Billing:     fixedBilling{},
		HealthChecks: map[string]handler.HealthCheck{
			"postgres": func(context.Context) error { return nil },
		},
	})
}

func TestRouter_PublicRoutes(t *testing.T) {
	r := newTestRouter()

	for _, path := range []string{"/health", "/health/ready", "/api/health", "/metrics"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestRouter_ProtectedRoutesRequireToken(t *testing.T) {
	r := newTestRouter()

	routes := []struct{ method, path string }{
		{http.MethodGet, "/api/projects"},
		{http.MethodGet, "/api/users/me"},
		{http.MethodGet, "/api/users"},
		{http.MethodGet, "/api/subscriptions/my-subscription"},
		{http.MethodPost, "/api/projects/0b7f5c3e-6a4d-4e8b-9f21-3c5d7e9a1b20/tasks"},
	}
	for _, rt := range routes {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(rt.method, rt.path, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401, got %d", rt.method, rt.path, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "You are not logged in") {
			t.Fatalf("%s %s: unexpected body %s", rt.method, rt.path, rec.Body.String())
		}
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	req.Header.Set("Authorization", "Bearer expired")
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized || !strings.Contains(rec.Body.String(), "Authentication failed") {
		t.Fatalf("expected Authentication failed, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestRouter_WebhookIsPublic(t *testing.T) {
	r := newTestRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/subscriptions/webhook", strings.NewReader(`{}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestRouter_WebhookBodyLimit(t *testing.T) {
	r := newTestRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/subscriptions/webhook", strings.NewReader(strings.Repeat("x", 65*1024)))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}

func TestRouter_UnknownRoute(t *testing.T) {
	r := newTestRouter()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestRateLimitBurst(t *testing.T) {
	cases := map[float64]int{0.2: 1, 0.5: 1, 1: 2, 2.5: 5, 20: 40}
	for rps, want := range cases {
		if got := rateLimitBurst(rps); got != want {
			t.Fatalf("rateLimitBurst(%v) = %d, want %d", rps, got, want)
		}
	}
}

func TestRouter_FractionalRateLimitAdmitsFirstRequest(t *testing.T) {
	r := NewRouter(Deps{
		Log:         zerolog.Nop(),
		FrontendURL: "http://localhost:3000",
		RateLimit:   0.5,
		Auth:        rejectingAuth{},
		Billing:     fixedBilling{},
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 once the burst is spent, got %d", rec.Code)
	}
}
