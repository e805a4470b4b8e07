package domain

import "time"

type Plan string

const (
	PlanFree       Plan = "free"
	PlanBasic      Plan = "basic"
	PlanPremium    Plan = "premium"
	PlanEnterprise Plan = "enterprise"
)

type SubscriptionStatus string

const (
	SubscriptionTrialing SubscriptionStatus = "trialing"
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
	SubscriptionCanceled SubscriptionStatus = "canceled"
)

// Subscription is the local mirror of a user's billing state. The billing
// provider is authoritative; this row is reconciled from webhook events.
type Subscription struct {
	ID                   string             `json:"id"`
	UserID               string             `json:"user_id"`
	StripeCustomerID     string             `json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID string             `json:"stripe_subscription_id,omitempty"`
	Plan                 Plan               `json:"plan"`
	Status               SubscriptionStatus `json:"status"`
	CurrentPeriodStart   *time.Time         `json:"current_period_start"`
	CurrentPeriodEnd     *time.Time         `json:"current_period_end"`
	CancelAtPeriodEnd    bool               `json:"cancel_at_period_end"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

// Entitled reports whether the subscription unlocks write operations.
func (s *Subscription) Entitled() bool {
	return s != nil && (s.Status == SubscriptionActive || s.Status == SubscriptionTrialing)
}

// PlanInfo describes a purchasable plan.
type PlanInfo struct {
	ID          Plan     `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	PriceID     string   `json:"price_id"`
	Features    []string `json:"features"`
}

// Billing event types handled by the reconciler.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// ProviderSubscription is the provider's authoritative view of a subscription.
type ProviderSubscription struct {
	ID                 string             `json:"id" bson:"id"`
	CustomerID         string             `json:"customer_id" bson:"customer_id"`
	Status             SubscriptionStatus `json:"status" bson:"status"`
	CurrentPeriodStart time.Time          `json:"current_period_start" bson:"current_period_start"`
	CurrentPeriodEnd   time.Time          `json:"current_period_end" bson:"current_period_end"`
	CancelAtPeriodEnd  bool               `json:"cancel_at_period_end" bson:"cancel_at_period_end"`
}

// CheckoutCompletion carries the fields of a completed checkout session.
type CheckoutCompletion struct {
	SessionID      string `json:"session_id" bson:"session_id"`
	CustomerID     string `json:"customer_id" bson:"customer_id"`
	SubscriptionID string `json:"subscription_id" bson:"subscription_id"`
	UserID         string `json:"user_id" bson:"user_id"`
	Plan           Plan   `json:"plan" bson:"plan"`
}

// BillingEvent is a verified, decoded webhook event. Exactly one of Checkout or
// Subscription is set for the handled types; both are nil for others.
type BillingEvent struct {
	ID           string                `json:"id" bson:"event_id"`
	Type         string                `json:"type" bson:"type"`
	Created      time.Time             `json:"created" bson:"created"`
	Checkout     *CheckoutCompletion   `json:"checkout,omitempty" bson:"checkout,omitempty"`
	Subscription *ProviderSubscription `json:"subscription,omitempty" bson:"subscription,omitempty"`
}

// OrderingKey groups events that touch the same subscription.
func (e *BillingEvent) OrderingKey() string {
	switch {
	case e.Subscription != nil:
		return e.Subscription.ID
	case e.Checkout != nil && e.Checkout.SubscriptionID != "":
		return e.Checkout.SubscriptionID
	case e.Checkout != nil:
		return e.Checkout.UserID
	}
	return e.ID
}

// BillingEventOutcome is recorded in the billing event journal.
type BillingEventOutcome string

const (
	OutcomeProcessed BillingEventOutcome = "processed"
	OutcomeIgnored   BillingEventOutcome = "ignored"
	OutcomeDuplicate BillingEventOutcome = "duplicate"
	OutcomeFailed    BillingEventOutcome = "failed"
)

// DeadLetter is a billing event whose reconciliation failed and awaits retry.
type DeadLetter struct {
	ID        string
	Event     BillingEvent
	Attempts  int
	LastError string
	Resolved  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SubscriptionChanged is published after a subscription's state changes.
type SubscriptionChanged struct {
	UserID            string             `json:"user_id"`
	Plan              Plan               `json:"plan"`
	Status            SubscriptionStatus `json:"status"`
	CancelAtPeriodEnd bool               `json:"cancel_at_period_end"`
	Reason            string             `json:"reason"`
	OccurredAt        time.Time          `json:"occurred_at"`
}
