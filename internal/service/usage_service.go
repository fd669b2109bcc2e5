package service

import (
	"context"
	"errors"

	"creatorstudio/internal/model"
	"creatorstudio/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// UsageService enforces the per-period generation quota of a user's plan.
type UsageService interface {
	// Reserve records one generation against the user's quota. The returned
	// release func gives it back and must be called if the generation fails.
	Reserve(ctx context.Context, userID string, kind model.Kind) (release func(), err error)
	GetUsage(ctx context.Context, userID string) (*model.UserUsage, error)
}

type usageService struct {
	usageRepo  repository.UsageRepository
	subRepo    repository.SubscriptionRepository
	freePlanID string
	logger     zerolog.Logger
}

func NewUsageService(usageRepo repository.UsageRepository, subRepo repository.SubscriptionRepository, freePlanID string, logger zerolog.Logger) UsageService {
	return &usageService{
		usageRepo:  usageRepo,
		subRepo:    subRepo,
		freePlanID: freePlanID,
		logger:     logger.With().Str("service", "UsageService").Logger(),
	}
}

// currentPeriod returns the active subscription and its plan. Users without
// one are put on the free plan; an expired subscription restarts as free.
func (s *usageService) currentPeriod(ctx context.Context, userID string) (*model.UserSubscription, *model.SubscriptionPlan, error) {
	sub, err := s.subRepo.GetActiveSubscription(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, gerr := s.subRepo.GetSubscription(ctx, userID); gerr == nil {
			err = s.subRepo.DowngradeUserToFreePlan(ctx, userID, s.freePlanID)
		} else if errors.Is(gerr, pgx.ErrNoRows) {
			err = s.subRepo.UpsertSubscription(ctx, userID, s.freePlanID)
		} else {
			err = gerr
		}
		if err != nil {
			return nil, nil, err
		}
		s.logger.Info().Str("user_id", userID).Msg("Started free plan period")
		sub, err = s.subRepo.GetActiveSubscription(ctx, userID)
	}
	if err != nil {
		return nil, nil, translate(err)
	}
	plan, err := s.subRepo.GetPlanByID(ctx, sub.PlanID)
	if err != nil {
		return nil, nil, translate(err)
	}
	return sub, plan, nil
}

func (s *usageService) Reserve(ctx context.Context, userID string, kind model.Kind) (func(), error) {
	sub, plan, err := s.currentPeriod(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to resolve subscription period")
		return nil, err
	}
	eventID, err := s.usageRepo.CheckAndRecordGeneration(ctx, userID, string(kind), sub.StartsAt, sub.EndsAt, plan.MaxGenerations)
	if err != nil {
		if errors.Is(err, repository.ErrGenerationLimitExceeded) {
			s.logger.Info().Str("user_id", userID).Str("plan_id", plan.ID).Int("max_generations", plan.MaxGenerations).Msg("Generation quota exhausted")
		}
		return nil, translate(err)
	}

	release := func() {
		// The request context may already be cancelled when a stream aborts.
		if err := s.usageRepo.ReleaseGeneration(context.WithoutCancel(ctx), eventID); err != nil {
			s.logger.Error().Err(err).Int64("event_id", eventID).Msg("Failed to release usage event")
		}
	}
	return release, nil
}

func (s *usageService) GetUsage(ctx context.Context, userID string) (*model.UserUsage, error) {
	sub, plan, err := s.currentPeriod(ctx, userID)
	if err != nil {
		return nil, err
	}
	count, err := s.usageRepo.CountGenerationsInTimeRange(ctx, userID, sub.StartsAt, sub.EndsAt)
	if err != nil {
		return nil, err
	}
	return &model.UserUsage{
		UserID:             userID,
		CurrentUsage:       count,
		MaxGenerations:     plan.MaxGenerations,
		PlanID:             plan.ID,
		PlanName:           plan.Name,
		BillingPeriodStart: sub.StartsAt,
		BillingPeriodEnd:   sub.EndsAt,
		Status:             sub.Status,
	}, nil
}
