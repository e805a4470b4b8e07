package ports

import (
	"context"

	"github.com/taskflow/taskflow-api/internal/core/domain"
)

// CheckoutRequest describes a hosted checkout session to open.
type CheckoutRequest struct {
	CustomerID string
	PriceID    string
	UserID     string
	Plan       domain.Plan
	SuccessURL string
	CancelURL  string
}

// CheckoutSession is the provider's answer to a CheckoutRequest.
type CheckoutSession struct {
	ID  string `json:"sessionId"`
	URL string `json:"url"`
}

// BillingProvider is the outbound port to the payment provider.
type BillingProvider interface {
	CreateCustomer(ctx context.Context, email, name, userID string) (string, error)
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	GetSubscription(ctx context.Context, id string) (*domain.ProviderSubscription, error)
	CancelAtPeriodEnd(ctx context.Context, id string) (*domain.ProviderSubscription, error)
	// ConstructEvent verifies the signature and decodes the payload.
	ConstructEvent(payload []byte, signature string) (*domain.BillingEvent, error)
}

// EventDedup remembers which provider event ids were already handled.
type EventDedup interface {
	// Claim atomically records the event id and reports false when another
	// delivery already claimed it.
	Claim(ctx context.Context, eventID string) (bool, error)
}

// BillingEventStore journals webhook outcomes and keeps failed events for retry.
type BillingEventStore interface {
	Record(ctx context.Context, event *domain.BillingEvent, outcome domain.BillingEventOutcome, reason string) error
	SaveDeadLetter(ctx context.Context, event *domain.BillingEvent, reason string) error
	PendingDeadLetters(ctx context.Context, maxAttempts, limit int) ([]domain.DeadLetter, error)
	ResolveDeadLetter(ctx context.Context, id string) error
	FailDeadLetter(ctx context.Context, id, reason string) error
}

// EventPublisher announces subscription changes to other services.
type EventPublisher interface {
	PublishSubscriptionChanged(ctx context.Context, msg domain.SubscriptionChanged) error
}

type BillingService interface {
	Plans() []domain.PlanInfo
	MySubscription(ctx context.Context, userID string) (*domain.Subscription, error)
	CreateCheckoutSession(ctx context.Context, userID string, plan domain.Plan) (*CheckoutSession, error)
	Cancel(ctx context.Context, userID string) (*domain.Subscription, error)
	// StartFree provisions the free subscription of a newly registered user.
	StartFree(ctx context.Context, user *domain.User) (*domain.Subscription, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
	// Reconcile re-applies a dead-lettered event to local state.
	Reconcile(ctx context.Context, event *domain.BillingEvent) error
}
