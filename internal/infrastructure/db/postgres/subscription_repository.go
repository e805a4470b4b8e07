package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/taskflow/taskflow-api/internal/core/domain"
	"github.com/taskflow/taskflow-api/internal/core/ports"
)

const subscriptionColumns = `id, user_id, COALESCE(stripe_customer_id, ''), COALESCE(stripe_subscription_id, ''),
	plan, status, current_period_start, current_period_end, cancel_at_period_end, created_at, updated_at`

// SubscriptionRepository implements ports.SubscriptionRepository on PostgreSQL.
type SubscriptionRepository struct {
	db *sql.DB
}

func NewSubscriptionRepository(db *sql.DB) ports.SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func scanSubscription(row rowScanner) (*domain.Subscription, error) {
	var (
		s          domain.Subscription
		start, end sql.NullTime
	)
	if err := row.Scan(&s.ID, &s.UserID, &s.StripeCustomerID, &s.StripeSubscriptionID,
		&s.Plan, &s.Status, &start, &end, &s.CancelAtPeriodEnd, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.CurrentPeriodStart = nullTime(start)
	s.CurrentPeriodEnd = nullTime(end)
	return &s, nil
}

func (r *SubscriptionRepository) Create(ctx context.Context, sub *domain.Subscription) (*domain.Subscription, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO subscriptions (user_id, stripe_customer_id, stripe_subscription_id, plan, status,
			current_period_start, current_period_end, cancel_at_period_end, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+subscriptionColumns,
		sub.UserID, sub.StripeCustomerID, sub.StripeSubscriptionID, sub.Plan, sub.Status,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.CancelAtPeriodEnd, sub.CreatedAt, sub.UpdatedAt)

	created, err := scanSubscription(row)
	if isForeignKeyViolation(err) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("insert subscription: %w", err)
	}
	return created, nil
}

func (r *SubscriptionRepository) FindByUserID(ctx context.Context, userID string) (*domain.Subscription, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = $1`, userID)
	sub, err := scanSubscription(row)
	if err != nil {
		return nil, notFound(err, domain.ErrSubscriptionNotFound, "find subscription")
	}
	return sub, nil
}

func (r *SubscriptionRepository) FindByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string) (*domain.Subscription, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE stripe_subscription_id = $1`, stripeSubscriptionID)
	sub, err := scanSubscription(row)
	if err != nil {
		return nil, notFound(err, domain.ErrSubscriptionNotFound, "find subscription")
	}
	return sub, nil
}

// Update overwrites the mutable billing fields of the user's row.
func (r *SubscriptionRepository) Update(ctx context.Context, sub *domain.Subscription) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE subscriptions
		SET stripe_customer_id = NULLIF($2, ''), stripe_subscription_id = NULLIF($3, ''), plan = $4, status = $5,
			current_period_start = $6, current_period_end = $7, cancel_at_period_end = $8, updated_at = $9
		WHERE user_id = $1`,
		sub.UserID, sub.StripeCustomerID, sub.StripeSubscriptionID, sub.Plan, sub.Status,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.CancelAtPeriodEnd, sub.UpdatedAt)
	return affected(res, err, domain.ErrSubscriptionNotFound, "update subscription")
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
