package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/taskflow/taskflow-api/internal/api/handler"
	"github.com/taskflow/taskflow-api/internal/core/domain"
	"github.com/taskflow/taskflow-api/internal/core/ports"
)

type stubAuth struct {
	authenticateFn func(ctx context.Context, token string) (*domain.User, error)
}

func (s *stubAuth) Register(context.Context, ports.RegisterInput) (string, *domain.User, error) {
	return "", nil, nil
}

func (s *stubAuth) Login(context.Context, string, string) (string, *domain.User, error) {
	return "", nil, nil
}

func (s *stubAuth) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	return s.authenticateFn(ctx, token)
}

func (s *stubAuth) UpdatePassword(context.Context, string, string, string) (string, *domain.User, error) {
	return "", nil, nil
}

type stubSubs struct {
	sub *domain.Subscription
	err error
}

func (s *stubSubs) Create(context.Context, *domain.Subscription) (*domain.Subscription, error) {
	return nil, nil
}

func (s *stubSubs) FindByUserID(context.Context, string) (*domain.Subscription, error) {
	return s.sub, s.err
}

func (s *stubSubs) FindByStripeSubscriptionID(context.Context, string) (*domain.Subscription, error) {
	return nil, nil
}

func (s *stubSubs) Update(context.Context, *domain.Subscription) error { return nil }

func newContext(authHeader string, user *domain.User) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set(echo.HeaderAuthorization, authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if user != nil {
		c.Set(handler.ContextUserKey, user)
	}
	return c, rec
}

func okHandler(called *bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		*called = true
		return c.NoContent(http.StatusOK)
	}
}

func TestAuth_ValidToken(t *testing.T) {
	user := &domain.User{ID: "u1", Role: domain.RoleUser}
	mw := Auth(&stubAuth{
		authenticateFn: func(ctx context.Context, token string) (*domain.User, error) {
			if token != "good" {
				t.Fatalf("unexpected token %q", token)
			}
			return user, nil
		},
	})

	c, rec := newContext("Bearer good", nil)
	called := false
	h := mw(func(c echo.Context) error {
		called = true
		if c.Get(handler.ContextUserKey) != user {
			t.Fatalf("user not set on context")
		}
		return c.NoContent(http.StatusOK)
	})

	if err := h(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called || rec.Code != http.StatusOK {
		t.Fatalf("expected next to run with 200, got called=%v code=%d", called, rec.Code)
	}
}

func TestAuth_MissingOrMalformedHeader(t *testing.T) {
	mw := Auth(&stubAuth{
		authenticateFn: func(context.Context, string) (*domain.User, error) {
			t.Fatalf("service must not be called")
			return nil, nil
		},
	})

	for _, header := range []string{"", "Token abc", "Bearer", "Bearer   "} {
		c, _ := newContext(header, nil)
		called := false
		if err := mw(okHandler(&called))(c); !errors.Is(err, domain.ErrUnauthenticated) {
			t.Fatalf("%q: expected ErrUnauthenticated, got %v", header, err)
		}
		if called {
			t.Fatalf("%q: next must not run", header)
		}
	}
}

func TestAuth_PropagatesServiceErrors(t *testing.T) {
	for _, want := range []error{domain.ErrInvalidToken, domain.ErrUserGone, domain.ErrPasswordChanged} {
		mw := Auth(&stubAuth{
			authenticateFn: func(context.Context, string) (*domain.User, error) { return nil, want },
		})
		c, _ := newContext("bearer tok", nil)
		called := false
		if err := mw(okHandler(&called))(c); !errors.Is(err, want) {
			t.Fatalf("expected %v, got %v", want, err)
		}
		if called {
			t.Fatalf("next must not run on %v", want)
		}
	}
}

func TestRestrictTo(t *testing.T) {
	mw := RestrictTo(domain.RoleAdmin)

	c, _ := newContext("", &domain.User{Role: domain.RoleAdmin})
	called := false
	if err := mw(okHandler(&called))(c); err != nil || !called {
		t.Fatalf("admin should pass, err=%v called=%v", err, called)
	}

	c, _ = newContext("", &domain.User{Role: domain.RoleUser})
	called = false
	if err := mw(okHandler(&called))(c); !errors.Is(err, domain.ErrForbidden) || called {
		t.Fatalf("user should be forbidden, err=%v called=%v", err, called)
	}

	c, _ = newContext("", nil)
	if err := mw(okHandler(&called))(c); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated without user, got %v", err)
	}
}

func TestRequireActiveSubscription(t *testing.T) {
	user := &domain.User{ID: "u1"}
	cases := []struct {
		name    string
		subs    *stubSubs
		wantErr error
	}{
		{"active", &stubSubs{sub: &domain.Subscription{Status: domain.SubscriptionActive}}, nil},
		{"trialing", &stubSubs{sub: &domain.Subscription{Status: domain.SubscriptionTrialing}}, nil},
		{"past due", &stubSubs{sub: &domain.Subscription{Status: domain.SubscriptionPastDue}}, domain.ErrSubscriptionRequired},
		{"canceled", &stubSubs{sub: &domain.Subscription{Status: domain.SubscriptionCanceled}}, domain.ErrSubscriptionRequired},
		{"missing", &stubSubs{err: domain.ErrSubscriptionNotFound}, domain.ErrSubscriptionRequired},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := newContext("", user)
			called := false
			err := RequireActiveSubscription(tc.subs)(okHandler(&called))(c)
			if tc.wantErr == nil {
				if err != nil || !called {
					t.Fatalf("expected pass, err=%v called=%v", err, called)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) || called {
				t.Fatalf("expected %v, got err=%v called=%v", tc.wantErr, err, called)
			}
		})
	}
}

func TestRequireActiveSubscription_StoreError(t *testing.T) {
	boom := errors.New("db down")
	c, _ := newContext("", &domain.User{ID: "u1"})
	called := false
	err := RequireActiveSubscription(&stubSubs{err: boom})(okHandler(&called))(c)
	if !errors.Is(err, boom) || errors.Is(err, domain.ErrSubscriptionRequired) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

func TestMetrics_RendersErrors(t *testing.T) {
	e := echo.New()
	var rendered error
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		rendered = err
		_ = c.NoContent(http.StatusTeapot)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/projects")

	err := Metrics()(func(echo.Context) error { return domain.ErrForbidden })(c)
	if err != nil {
		t.Fatalf("metrics middleware should swallow rendered errors, got %v", err)
	}
	if !errors.Is(rendered, domain.ErrForbidden) || rec.Code != http.StatusTeapot {
		t.Fatalf("expected error handler to render, got %v %d", rendered, rec.Code)
	}
}
