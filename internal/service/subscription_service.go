package service

import (
	"context"
	"time"

	"creatorstudio/internal/model"
	"creatorstudio/internal/repository"

	"github.com/rs/zerolog"
)

// SubscriptionView is a user's subscription together with its plan.
type SubscriptionView struct {
	Subscription *model.UserSubscription `json:"subscription"`
	Plan         *model.SubscriptionPlan `json:"plan"`
	Active       bool                    `json:"active"`
}

// SubscriptionService defines business logic methods for subscriptions.
type SubscriptionService interface {
	Current(ctx context.Context, userID string) (*SubscriptionView, error)
	UpsertStripeSubscription(ctx context.Context, userID, planID string, startsAt, endsAt time.Time, status, stripeSubscriptionID string) error
	DowngradeUserToFreePlan(ctx context.Context, userID string) error
}

type subscriptionService struct {
	repo       repository.SubscriptionRepository
	freePlanID string
	now        func() time.Time
	logger     zerolog.Logger
}

func NewSubscriptionService(repo repository.SubscriptionRepository, freePlanID string, logger zerolog.Logger) SubscriptionService {
	return &subscriptionService{
		repo:       repo,
		freePlanID: freePlanID,
		now:        time.Now,
		logger:     logger.With().Str("service", "SubscriptionService").Logger(),
	}
}

func (s *subscriptionService) Current(ctx context.Context, userID string) (*SubscriptionView, error) {
	sub, err := s.repo.GetSubscription(ctx, userID)
	if err != nil {
		return nil, translate(err)
	}
	plan, err := s.repo.GetPlanByID(ctx, sub.PlanID)
	if err != nil {
		s.logger.Error().Err(err).Str("plan_id", sub.PlanID).Msg("Subscription references unknown plan")
		return nil, translate(err)
	}
	active := (sub.Status == "active" || sub.Status == "cancelled") && sub.EndsAt.After(s.now())
	return &SubscriptionView{Subscription: sub, Plan: plan, Active: active}, nil
}

func (s *subscriptionService) UpsertStripeSubscription(ctx context.Context, userID, planID string, startsAt, endsAt time.Time, status, stripeSubscriptionID string) error {
	if err := s.repo.UpsertStripeSubscription(ctx, userID, planID, startsAt, endsAt, status, stripeSubscriptionID); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("plan_id", planID).Str("status", status).Msg("Failed to upsert stripe subscription")
		return err
	}
	return nil
}

func (s *subscriptionService) DowngradeUserToFreePlan(ctx context.Context, userID string) error {
	if err := s.repo.DowngradeUserToFreePlan(ctx, userID, s.freePlanID); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to downgrade user to free plan")
		return err
	}
	return nil
}
