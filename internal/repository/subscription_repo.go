package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"creatorstudio/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SubscriptionRepository defines methods for accessing subscription data.
type SubscriptionRepository interface {
	GetActiveSubscription(ctx context.Context, userID string) (*model.UserSubscription, error)
	GetSubscription(ctx context.Context, userID string) (*model.UserSubscription, error)
	GetPlanByID(ctx context.Context, planID string) (*model.SubscriptionPlan, error)
	// UpsertSubscription gives a user planID if they have no subscription yet.
	UpsertSubscription(ctx context.Context, userID, planID string) error
	UpsertStripeSubscription(ctx context.Context, userID, planID string, startsAt, endsAt time.Time, status, stripeSubscriptionID string) error
	DowngradeUserToFreePlan(ctx context.Context, userID, freePlanID string) error
}

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

// NewSubscriptionRepo creates a new SubscriptionRepository.
func NewSubscriptionRepo(pool *pgxpool.Pool) SubscriptionRepository {
	return &subscriptionRepo{pool: pool}
}

const subscriptionColumns = `user_id, plan_id, stripe_subscription_id, starts_at, ends_at, status, created_at, updated_at`

func (r *subscriptionRepo) scan(ctx context.Context, q, userID string) (*model.UserSubscription, error) {
	var us model.UserSubscription
	err := r.pool.QueryRow(ctx, q, userID).Scan(
		&us.UserID,
		&us.PlanID,
		&us.StripeSubscriptionID,
		&us.StartsAt,
		&us.EndsAt,
		&us.Status,
		&us.CreatedAt,
		&us.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &us, nil
}

// GetActiveSubscription returns the subscription a user may generate under
// right now. Cancelled paid plans stay usable until their period ends.
func (r *subscriptionRepo) GetActiveSubscription(ctx context.Context, userID string) (*model.UserSubscription, error) {
	q := `
        SELECT ` + subscriptionColumns + `
        FROM user_subscriptions
        WHERE user_id = $1
          AND status IN ('active', 'cancelled')
          AND ends_at > NOW()
    `
	us, err := r.scan(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch active subscription for user %s: %w", userID, err)
	}
	return us, nil
}

// GetSubscription returns the user's subscription regardless of status.
func (r *subscriptionRepo) GetSubscription(ctx context.Context, userID string) (*model.UserSubscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM user_subscriptions WHERE user_id = $1`
	us, err := r.scan(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch subscription for user %s: %w", userID, err)
	}
	return us, nil
}

// GetPlanByID returns the subscription plan with its limits.
func (r *subscriptionRepo) GetPlanByID(ctx context.Context, planID string) (*model.SubscriptionPlan, error) {
	const q = `
        SELECT id, name, price_cents, billing_period::text, max_generations, feature_flags
        FROM subscription_plans
        WHERE id = $1
    `
	var sp model.SubscriptionPlan
	var rawFlags []byte
	err := r.pool.QueryRow(ctx, q, planID).Scan(
		&sp.ID,
		&sp.Name,
		&sp.PriceCents,
		&sp.BillingPeriod,
		&sp.MaxGenerations,
		&rawFlags,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch plan %s: %w", planID, err)
	}
	if len(rawFlags) > 0 {
		if err := json.Unmarshal(rawFlags, &sp.FeatureFlags); err != nil {
			return nil, fmt.Errorf("unmarshal feature_flags for plan %s: %w", planID, err)
		}
	}
	return &sp, nil
}

func (r *subscriptionRepo) UpsertSubscription(ctx context.Context, userID, planID string) error {
	const q = `
        INSERT INTO user_subscriptions (user_id, plan_id, starts_at, ends_at, status)
        SELECT $1, $2, NOW(), NOW() + billing_period, 'active'
        FROM subscription_plans
        WHERE id = $2
        ON CONFLICT (user_id) DO NOTHING
    `
	if _, err := r.pool.Exec(ctx, q, userID, planID); err != nil {
		return fmt.Errorf("upserting subscription %s for user %s: %w", planID, userID, err)
	}
	return nil
}

func (r *subscriptionRepo) UpsertStripeSubscription(ctx context.Context, userID, planID string, startsAt, endsAt time.Time, status, stripeSubscriptionID string) error {
	const q = `
        INSERT INTO user_subscriptions (user_id, plan_id, stripe_subscription_id, starts_at, ends_at, status)
        VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6)
        ON CONFLICT (user_id) DO UPDATE
        SET plan_id = EXCLUDED.plan_id,
            stripe_subscription_id = EXCLUDED.stripe_subscription_id,
            starts_at = EXCLUDED.starts_at,
            ends_at = EXCLUDED.ends_at,
            status = EXCLUDED.status,
            updated_at = NOW()
    `
	if _, err := r.pool.Exec(ctx, q, userID, planID, stripeSubscriptionID, startsAt, endsAt, status); err != nil {
		return fmt.Errorf("upsert stripe subscription for user %s: %w", userID, err)
	}
	return nil
}

// DowngradeUserToFreePlan moves a user whose paid subscription ended back to
// the free plan.
func (r *subscriptionRepo) DowngradeUserToFreePlan(ctx context.Context, userID, freePlanID string) error {
	const q = `
        UPDATE user_subscriptions
        SET plan_id = $2,
            status = 'active',
            starts_at = NOW(),
            ends_at = NOW() + (SELECT billing_period FROM subscription_plans WHERE id = $2),
            stripe_subscription_id = NULL,
            updated_at = NOW()
        WHERE user_id = $1
    `
	if _, err := r.pool.Exec(ctx, q, userID, freePlanID); err != nil {
		return fmt.Errorf("downgrade user %s to free plan: %w", userID, err)
	}
	return nil
}
