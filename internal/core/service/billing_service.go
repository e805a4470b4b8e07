package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/taskflow/taskflow-api/internal/core/domain"
	"github.com/taskflow/taskflow-api/internal/core/ports"
	"github.com/taskflow/taskflow-api/internal/pkg/metrics"
)

const (
	defaultProviderTimeout = 10 * time.Second
	freePlanPeriod         = 365 * 24 * time.Hour
)

// BillingConfig holds the billing service settings.
type BillingConfig struct {
	FrontendURL string
	// Timeout bounds every outbound call to the billing provider.
	Timeout time.Duration
}

// BillingDeps groups the collaborators of BillingService.
type BillingDeps struct {
	Subscriptions ports.SubscriptionRepository
	Users         ports.UserRepository
	Provider      ports.BillingProvider
	Catalog       *PlanCatalog
	Dedup         ports.EventDedup
	Events        ports.BillingEventStore
	Publisher     ports.EventPublisher
}

// BillingService runs checkout and cancellation against the billing provider
// and reconciles the local subscription mirror from webhook events.
type BillingService struct {
	subs      ports.SubscriptionRepository
	users     ports.UserRepository
	provider  ports.BillingProvider
	catalog   *PlanCatalog
	dedup     ports.EventDedup
	events    ports.BillingEventStore
	publisher ports.EventPublisher
	cfg       BillingConfig
	log       zerolog.Logger
	now       func() time.Time
}

func NewBillingService(deps BillingDeps, cfg BillingConfig, log zerolog.Logger) *BillingService {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultProviderTimeout
	}
	cfg.FrontendURL = strings.TrimRight(cfg.FrontendURL, "/")
	return &BillingService{
		subs:      deps.Subscriptions,
		users:     deps.Users,
		provider:  deps.Provider,
		catalog:   deps.Catalog,
		dedup:     deps.Dedup,
		events:    deps.Events,
		publisher: deps.Publisher,
		cfg:       cfg,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *BillingService) Plans() []domain.PlanInfo {
	return s.catalog.All()
}

func (s *BillingService) MySubscription(ctx context.Context, userID string) (*domain.Subscription, error) {
	sub, err := s.subs.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("my subscription: %w", err)
	}
	return sub, nil
}

// StartFree creates the provider customer and the free subscription row of a
// new user. A provider failure leaves the customer id empty; checkout creates
// it later.
func (s *BillingService) StartFree(ctx context.Context, user *domain.User) (*domain.Subscription, error) {
	customerID, err := s.createCustomer(ctx, user)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("customer creation deferred")
	}

	now := s.now()
	end := now.Add(freePlanPeriod)
	sub, err := s.subs.Create(ctx, &domain.Subscription{
		UserID:             user.ID,
		StripeCustomerID:   customerID,
		Plan:               domain.PlanFree,
		Status:             domain.SubscriptionActive,
		CurrentPeriodStart: &now,
		CurrentPeriodEnd:   &end,
		CreatedAt:          now,
		UpdatedAt:          now,
	})
	if err != nil {
		return nil, fmt.Errorf("start free plan: %w", err)
	}
	return sub, nil
}

func (s *BillingService) CreateCheckoutSession(ctx context.Context, userID string, plan domain.Plan) (*ports.CheckoutSession, error) {
	info, ok := s.catalog.Lookup(plan)
	if !ok || plan == domain.PlanFree {
		return nil, domain.ErrInvalidPlan
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("checkout: %w", err)
	}

	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		return nil, err
	}

	pctx, cancel := s.providerContext(ctx)
	defer cancel()

	session, err := s.provider.CreateCheckoutSession(pctx, ports.CheckoutRequest{
		CustomerID: customerID,
		PriceID:    info.PriceID,
		UserID:     user.ID,
		Plan:       plan,
		SuccessURL: s.cfg.FrontendURL + "/subscription/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  s.cfg.FrontendURL + "/subscription/cancel",
	})
	if err != nil {
		return nil, fmt.Errorf("checkout: %w", err)
	}

	s.log.Info().Str("user_id", user.ID).Str("plan", string(plan)).Str("session_id", session.ID).Msg("checkout session created")
	return session, nil
}

// Cancel schedules the provider subscription to end with the current period.
func (s *BillingService) Cancel(ctx context.Context, userID string) (*domain.Subscription, error) {
	sub, err := s.subs.FindByUserID(ctx, userID)
	if errors.Is(err, domain.ErrSubscriptionNotFound) {
		return nil, domain.ErrNoActiveSubscription
	}
	if err != nil {
		return nil, fmt.Errorf("cancel: %w", err)
	}
	if sub.StripeSubscriptionID == "" {
		return nil, domain.ErrNoProviderSubscription
	}

	pctx, cancel := s.providerContext(ctx)
	defer cancel()

	if _, err := s.provider.CancelAtPeriodEnd(pctx, sub.StripeSubscriptionID); err != nil {
		return nil, fmt.Errorf("cancel: %w", err)
	}

	sub.CancelAtPeriodEnd = true
	sub.UpdatedAt = s.now()
	if err := s.subs.Update(ctx, sub); err != nil {
		return nil, fmt.Errorf("cancel: %w", err)
	}

	s.publish(ctx, sub, "canceled_by_user")
	return sub, nil
}

// HandleWebhook verifies and dispatches one provider event. Only a signature
// failure is returned; reconciliation failures are journaled, dead-lettered
// for retry, and acknowledged.
func (s *BillingService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.provider.ConstructEvent(payload, signature)
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("unknown", "invalid_signature").Inc()
		return err
	}

	log := s.log.With().Str("event_id", event.ID).Str("event_type", event.Type).Logger()

	claimed, err := s.dedup.Claim(ctx, event.ID)
	if err != nil {
		log.Warn().Err(err).Msg("dedup claim failed, processing anyway")
	} else if !claimed {
		metrics.WebhookDedupTotal.WithLabelValues("hit").Inc()
		s.record(ctx, event, domain.OutcomeDuplicate, "")
		log.Debug().Msg("duplicate event skipped")
		return nil
	}
	metrics.WebhookDedupTotal.WithLabelValues("miss").Inc()

	outcome := domain.OutcomeProcessed
	reason := ""
	if !handles(event.Type) {
		outcome = domain.OutcomeIgnored
	} else if err := s.apply(ctx, event); err != nil {
		outcome = domain.OutcomeFailed
		reason = err.Error()
		log.Error().Err(err).Msg("billing event reconciliation failed")

		if !errors.Is(err, domain.ErrMalformedEvent) {
			if dlErr := s.events.SaveDeadLetter(ctx, event, reason); dlErr != nil {
				log.Error().Err(dlErr).Msg("failed to store dead letter")
			} else {
				metrics.DeadLettersTotal.WithLabelValues("stored").Inc()
			}
		}
	}

	s.record(ctx, event, outcome, reason)
	metrics.WebhookEventsTotal.WithLabelValues(event.Type, string(outcome)).Inc()

	log.Info().Str("outcome", string(outcome)).Msg("billing event handled")
	return nil
}

// Reconcile re-applies a dead-lettered event. A subscription update is
// replaced by the provider's current object first, so a stale payload never
// overwrites state written by a newer event. Unhandled types are a no-op.
func (s *BillingService) Reconcile(ctx context.Context, event *domain.BillingEvent) error {
	if event.Type == domain.EventSubscriptionUpdated && event.Subscription != nil && event.Subscription.ID != "" {
		remote, err := s.fetchSubscription(ctx, event.Subscription.ID)
		if err != nil {
			return fmt.Errorf("subscription updated: refresh: %w", err)
		}
		return s.subscriptionUpdated(ctx, remote)
	}
	return s.apply(ctx, event)
}

// apply writes a verified event to the local subscription mirror.
func (s *BillingService) apply(ctx context.Context, event *domain.BillingEvent) error {
	switch event.Type {
	case domain.EventCheckoutCompleted:
		return s.checkoutCompleted(ctx, event.Checkout)
	case domain.EventSubscriptionUpdated:
		return s.subscriptionUpdated(ctx, event.Subscription)
	case domain.EventSubscriptionDeleted:
		return s.subscriptionDeleted(ctx, event.Subscription)
	}
	return nil
}

func handles(eventType string) bool {
	switch eventType {
	case domain.EventCheckoutCompleted, domain.EventSubscriptionUpdated, domain.EventSubscriptionDeleted:
		return true
	}
	return false
}

// checkoutCompleted upserts the user's subscription from the provider's
// authoritative subscription object.
func (s *BillingService) checkoutCompleted(ctx context.Context, c *domain.CheckoutCompletion) error {
	if c == nil || c.UserID == "" || c.SubscriptionID == "" {
		return fmt.Errorf("%w: checkout session without user or subscription", domain.ErrMalformedEvent)
	}
	if _, ok := s.catalog.Lookup(c.Plan); !ok {
		return fmt.Errorf("%w: unknown plan %q", domain.ErrMalformedEvent, c.Plan)
	}

	remote, err := s.fetchSubscription(ctx, c.SubscriptionID)
	if err != nil {
		return fmt.Errorf("checkout completed: %w", err)
	}

	now := s.now()
	sub, err := s.subs.FindByUserID(ctx, c.UserID)
	switch {
	case errors.Is(err, domain.ErrSubscriptionNotFound):
		customerID := c.CustomerID
		if customerID == "" {
			customerID = remote.CustomerID
		}
		sub = &domain.Subscription{
			UserID:           c.UserID,
			StripeCustomerID: customerID,
			CreatedAt:        now,
		}
		applyRemote(sub, remote)
		sub.Plan = c.Plan
		sub.UpdatedAt = now
		if sub, err = s.subs.Create(ctx, sub); err != nil {
			return fmt.Errorf("checkout completed: create: %w", err)
		}
	case err != nil:
		return fmt.Errorf("checkout completed: %w", err)
	default:
		applyRemote(sub, remote)
		sub.Plan = c.Plan
		if sub.StripeCustomerID == "" {
			sub.StripeCustomerID = c.CustomerID
		}
		sub.UpdatedAt = now
		if err := s.subs.Update(ctx, sub); err != nil {
			return fmt.Errorf("checkout completed: update: %w", err)
		}
	}

	metrics.SubscriptionsReconciledTotal.WithLabelValues(domain.EventCheckoutCompleted).Inc()
	s.publish(ctx, sub, domain.EventCheckoutCompleted)
	return nil
}

func (s *BillingService) subscriptionUpdated(ctx context.Context, remote *domain.ProviderSubscription) error {
	if remote == nil || remote.ID == "" {
		return fmt.Errorf("%w: subscription event without id", domain.ErrMalformedEvent)
	}

	sub, err := s.subs.FindByStripeSubscriptionID(ctx, remote.ID)
	if errors.Is(err, domain.ErrSubscriptionNotFound) {
		s.log.Debug().Str("stripe_subscription_id", remote.ID).Msg("no local subscription for update")
		return nil
	}
	if err != nil {
		return fmt.Errorf("subscription updated: %w", err)
	}

	applyRemote(sub, remote)
	sub.UpdatedAt = s.now()
	if err := s.subs.Update(ctx, sub); err != nil {
		return fmt.Errorf("subscription updated: %w", err)
	}

	metrics.SubscriptionsReconciledTotal.WithLabelValues(domain.EventSubscriptionUpdated).Inc()
	s.publish(ctx, sub, domain.EventSubscriptionUpdated)
	return nil
}

func (s *BillingService) subscriptionDeleted(ctx context.Context, remote *domain.ProviderSubscription) error {
	if remote == nil || remote.ID == "" {
		return fmt.Errorf("%w: subscription event without id", domain.ErrMalformedEvent)
	}

	sub, err := s.subs.FindByStripeSubscriptionID(ctx, remote.ID)
	if errors.Is(err, domain.ErrSubscriptionNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("subscription deleted: %w", err)
	}

	sub.Status = domain.SubscriptionCanceled
	sub.CancelAtPeriodEnd = false
	sub.UpdatedAt = s.now()
	if err := s.subs.Update(ctx, sub); err != nil {
		return fmt.Errorf("subscription deleted: %w", err)
	}

	metrics.SubscriptionsReconciledTotal.WithLabelValues(domain.EventSubscriptionDeleted).Inc()
	s.publish(ctx, sub, domain.EventSubscriptionDeleted)
	return nil
}

func applyRemote(sub *domain.Subscription, remote *domain.ProviderSubscription) {
	start, end := remote.CurrentPeriodStart, remote.CurrentPeriodEnd
	sub.StripeSubscriptionID = remote.ID
	sub.Status = remote.Status
	sub.CurrentPeriodStart = &start
	sub.CurrentPeriodEnd = &end
	sub.CancelAtPeriodEnd = remote.CancelAtPeriodEnd
}

// ensureCustomer returns the user's provider customer id, creating the
// customer and the local row when missing.
func (s *BillingService) ensureCustomer(ctx context.Context, user *domain.User) (string, error) {
	sub, err := s.subs.FindByUserID(ctx, user.ID)
	if err != nil && !errors.Is(err, domain.ErrSubscriptionNotFound) {
		return "", fmt.Errorf("checkout: %w", err)
	}
	if sub != nil && sub.StripeCustomerID != "" {
		return sub.StripeCustomerID, nil
	}

	customerID, err := s.createCustomer(ctx, user)
	if err != nil {
		return "", fmt.Errorf("checkout: %w", err)
	}

	now := s.now()
	if sub != nil {
		sub.StripeCustomerID = customerID
		sub.UpdatedAt = now
		if err := s.subs.Update(ctx, sub); err != nil {
			return "", fmt.Errorf("checkout: store customer: %w", err)
		}
		return customerID, nil
	}

	if _, err := s.subs.Create(ctx, &domain.Subscription{
		UserID:           user.ID,
		StripeCustomerID: customerID,
		Plan:             domain.PlanFree,
		Status:           domain.SubscriptionActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}); err != nil {
		return "", fmt.Errorf("checkout: store customer: %w", err)
	}
	return customerID, nil
}

func (s *BillingService) fetchSubscription(ctx context.Context, id string) (*domain.ProviderSubscription, error) {
	pctx, cancel := s.providerContext(ctx)
	defer cancel()
	return s.provider.GetSubscription(pctx, id)
}

func (s *BillingService) createCustomer(ctx context.Context, user *domain.User) (string, error) {
	pctx, cancel := s.providerContext(ctx)
	defer cancel()
	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	return s.provider.CreateCustomer(pctx, user.Email, name, user.ID)
}

func (s *BillingService) providerContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.Timeout)
}

func (s *BillingService) record(ctx context.Context, event *domain.BillingEvent, outcome domain.BillingEventOutcome, reason string) {
	if err := s.events.Record(ctx, event, outcome, reason); err != nil {
		s.log.Warn().Err(err).Str("event_id", event.ID).Msg("failed to journal billing event")
	}
}

func (s *BillingService) publish(ctx context.Context, sub *domain.Subscription, reason string) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishSubscriptionChanged(ctx, domain.SubscriptionChanged{
		UserID:            sub.UserID,
		Plan:              sub.Plan,
		Status:            sub.Status,
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		Reason:            reason,
		OccurredAt:        s.now(),
	})
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", sub.UserID).Msg("failed to publish subscription change")
	}
}
