package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/taskflow/taskflow-api/internal/core/domain"
	"github.com/taskflow/taskflow-api/internal/core/ports"
)

func TestSubscriptionHandler_Plans(t *testing.T) {
	h := NewSubscriptionHandler(&stubBillingService{
		plans: []domain.PlanInfo{{ID: domain.PlanBasic}, {ID: domain.PlanPremium}},
	})
	c, rec := newContext(request{method: http.MethodGet, user: testUser})
	if err := h.Plans(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if plans := dataOf(t, decode(t, rec))["plans"].([]any); len(plans) != 2 {
		t.Fatalf("expected 2 plans, got %d", len(plans))
	}
}

func TestSubscriptionHandler_MySubscription_NotFound(t *testing.T) {
	h := NewSubscriptionHandler(&stubBillingService{
		mySubFn: func(context.Context, string) (*domain.Subscription, error) {
			return nil, domain.ErrSubscriptionNotFound
		},
	})
	c, _ := newContext(request{method: http.MethodGet, user: testUser})
	if err := h.MySubscription(c); !errors.Is(err, domain.ErrSubscriptionNotFound) {
		t.Fatalf("expected ErrSubscriptionNotFound, got %v", err)
	}
}

func TestSubscriptionHandler_CreateCheckoutSession(t *testing.T) {
	h := NewSubscriptionHandler(&stubBillingService{
		checkoutFn: func(ctx context.Context, userID string, plan domain.Plan) (*ports.CheckoutSession, error) {
			if plan != domain.PlanPremium {
				return nil, domain.ErrInvalidPlan
			}
			return &ports.CheckoutSession{ID: "cs_1", URL: "https://checkout.example/cs_1"}, nil
		},
	})

	c, rec := newContext(request{method: http.MethodPost, user: testUser, body: strings.NewReader(`{"plan":"premium"}`)})
	if err := h.CreateCheckoutSession(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	data := dataOf(t, decode(t, rec))
	if data["sessionId"] != "cs_1" || data["url"] != "https://checkout.example/cs_1" {
		t.Fatalf("unexpected session payload: %+v", data)
	}

	c, _ = newContext(request{method: http.MethodPost, user: testUser, body: strings.NewReader(`{"plan":"gold"}`)})
	if err := h.CreateCheckoutSession(c); !errors.Is(err, domain.ErrInvalidPlan) {
		t.Fatalf("expected ErrInvalidPlan, got %v", err)
	}
}

func TestSubscriptionHandler_Cancel(t *testing.T) {
	h := NewSubscriptionHandler(&stubBillingService{
		cancelFn: func(context.Context, string) (*domain.Subscription, error) {
			return &domain.Subscription{CancelAtPeriodEnd: true}, nil
		},
	})
	c, rec := newContext(request{method: http.MethodPost, user: testUser})
	if err := h.Cancel(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	resp := decode(t, rec)
	if resp["message"] != "Subscription will be canceled at the end of the billing period" {
		t.Fatalf("unexpected message: %+v", resp)
	}
}

func TestSubscriptionHandler_Webhook(t *testing.T) {
	payload := `{"id":"evt_1","type":"invoice.paid"}`
	stub := &stubBillingService{
		handleWebhook: func(ctx context.Context, body []byte, signature string) error {
			if string(body) != payload || signature != "t=1,v1=abc" {
				t.Fatalf("unexpected webhook args: %s %s", body, signature)
			}
			return nil
		},
	}
	h := NewSubscriptionHandler(stub)

	c, rec := newContext(request{
		method: http.MethodPost,
		body:   strings.NewReader(payload),
		header: map[string]string{SignatureHeader: "t=1,v1=abc"},
	})
	if err := h.Webhook(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK || decode(t, rec)["received"] != true {
		t.Fatalf("expected {received:true}, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestSubscriptionHandler_Webhook_MissingSignature(t *testing.T) {
	stub := &stubBillingService{}
	h := NewSubscriptionHandler(stub)

	c, _ := newContext(request{method: http.MethodPost, body: strings.NewReader(`{}`)})
	if err := h.Webhook(c); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if stub.webhookInvoked {
		t.Fatalf("service must not be called without a signature")
	}
}

func TestSubscriptionHandler_Webhook_BadSignature(t *testing.T) {
	h := NewSubscriptionHandler(&stubBillingService{
		handleWebhook: func(context.Context, []byte, string) error {
			return domain.ErrInvalidSignature
		},
	})
	c, _ := newContext(request{
		method: http.MethodPost,
		body:   strings.NewReader(`{}`),
		header: map[string]string{SignatureHeader: "garbage"},
	})
	if err := h.Webhook(c); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}
