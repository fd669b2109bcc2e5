package model

import "time"

// User is a creator profile. UserID is the auth platform subject.
type User struct {
	UserID           string    `db:"user_id" json:"user_id"`
	Name             string    `db:"name" json:"name"`
	Email            string    `db:"email" json:"email"`
	AvatarURL        string    `db:"avatar_url" json:"avatar_url"`
	StripeCustomerID *string   `db:"stripe_customer_id" json:"stripe_customer_id,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// UserUsage is a user's generation count within the current billing period.
type UserUsage struct {
	UserID             string    `db:"user_id" json:"user_id"`
	CurrentUsage       int       `db:"current_usage" json:"current_usage"`
	MaxGenerations     int       `db:"max_generations" json:"max_generations"`
	PlanID             string    `db:"plan_id" json:"plan_id"`
	PlanName           string    `db:"plan_name" json:"plan_name"`
	BillingPeriodStart time.Time `db:"starts_at" json:"billing_period_start"`
	BillingPeriodEnd   time.Time `db:"ends_at" json:"billing_period_end"`
	Status             string    `db:"status" json:"status"`
}
