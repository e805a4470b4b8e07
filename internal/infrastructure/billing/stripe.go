package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/taskflow/taskflow-api/internal/core/domain"
	"github.com/taskflow/taskflow-api/internal/core/ports"
)

const defaultTimeout = 10 * time.Second

// Config captures the Stripe credentials and HTTP settings.
type Config struct {
	SecretKey     string
	WebhookSecret string
	Timeout       time.Duration
}

// StripeProvider implements ports.BillingProvider against the Stripe API.
type StripeProvider struct {
	api           *client.API
	webhookSecret string
}

func NewStripeProvider(cfg Config) *StripeProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	backends := stripe.NewBackends(&http.Client{Timeout: timeout})
	return &StripeProvider{
		api:           client.New(cfg.SecretKey, backends),
		webhookSecret: cfg.WebhookSecret,
	}
}

var _ ports.BillingProvider = (*StripeProvider)(nil)

func (p *StripeProvider) CreateCustomer(ctx context.Context, email, name, userID string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx
	params.AddMetadata("userId", userID)

	c, err := p.api.Customers.New(params)
	if err != nil {
		return "", providerError("create customer", err)
	}
	return c.ID, nil
}

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req ports.CheckoutRequest) (*ports.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Customer:           stripe.String(req.CustomerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(req.PriceID), Quantity: stripe.Int64(1)},
		},
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	params.Context = ctx
	params.AddMetadata("userId", req.UserID)
	params.AddMetadata("plan", string(req.Plan))

	s, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, providerError("create checkout session", err)
	}
	return &ports.CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

func (p *StripeProvider) GetSubscription(ctx context.Context, id string) (*domain.ProviderSubscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	s, err := p.api.Subscriptions.Get(id, params)
	if err != nil {
		return nil, providerError("get subscription", err)
	}
	return toProviderSubscription(s), nil
}

func (p *StripeProvider) CancelAtPeriodEnd(ctx context.Context, id string) (*domain.ProviderSubscription, error) {
	params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(true)}
	params.Context = ctx

	s, err := p.api.Subscriptions.Update(id, params)
	if err != nil {
		return nil, providerError("cancel subscription", err)
	}
	return toProviderSubscription(s), nil
}

// ConstructEvent verifies the Stripe-Signature header and decodes the object
// of handled event types. A handled event whose object cannot be decoded is
// returned without payload so reconciliation reports it as malformed.
func (p *StripeProvider) ConstructEvent(payload []byte, signature string) (*domain.BillingEvent, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}

	event := &domain.BillingEvent{
		ID:      ev.ID,
		Type:    string(ev.Type),
		Created: time.Unix(ev.Created, 0).UTC(),
	}
	if ev.Data == nil {
		return event, nil
	}

	switch event.Type {
	case domain.EventCheckoutCompleted:
		var s stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &s); err == nil {
			event.Checkout = toCheckoutCompletion(&s)
		}
	case domain.EventSubscriptionUpdated, domain.EventSubscriptionDeleted:
		var s stripe.Subscription
		if err := json.Unmarshal(ev.Data.Raw, &s); err == nil && s.ID != "" {
			event.Subscription = toProviderSubscription(&s)
		}
	}
	return event, nil
}

func toCheckoutCompletion(s *stripe.CheckoutSession) *domain.CheckoutCompletion {
	c := &domain.CheckoutCompletion{
		SessionID: s.ID,
		UserID:    s.Metadata["userId"],
		Plan:      domain.Plan(s.Metadata["plan"]),
	}
	if s.Customer != nil {
		c.CustomerID = s.Customer.ID
	}
	if s.Subscription != nil {
		c.SubscriptionID = s.Subscription.ID
	}
	return c
}

func toProviderSubscription(s *stripe.Subscription) *domain.ProviderSubscription {
	ps := &domain.ProviderSubscription{
		ID:                 s.ID,
		Status:             MapStatus(s.Status),
		CurrentPeriodStart: time.Unix(s.CurrentPeriodStart, 0).UTC(),
		CurrentPeriodEnd:   time.Unix(s.CurrentPeriodEnd, 0).UTC(),
		CancelAtPeriodEnd:  s.CancelAtPeriodEnd,
	}
	if s.Customer != nil {
		ps.CustomerID = s.Customer.ID
	}
	return ps
}

// MapStatus folds Stripe's subscription states into the local four.
func MapStatus(s stripe.SubscriptionStatus) domain.SubscriptionStatus {
	switch s {
	case stripe.SubscriptionStatusActive:
		return domain.SubscriptionActive
	case stripe.SubscriptionStatusTrialing:
		return domain.SubscriptionTrialing
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return domain.SubscriptionCanceled
	default:
		return domain.SubscriptionPastDue
	}
}

func providerError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrBillingProvider, op, err)
}
