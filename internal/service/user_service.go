package service

import (
	"context"
	"fmt"

	"creatorstudio/internal/model"
	"creatorstudio/internal/repository"

	"github.com/rs/zerolog"
)

// CustomerCreator registers a user with the payment provider.
type CustomerCreator interface {
	CreateCustomer(ctx context.Context, user *model.User) (string, error)
}

type UserService interface {
	// Create stores the caller's profile, starts the free plan for new users
	// and registers a payment customer when a provider is configured.
	Create(ctx context.Context, u *model.User) (*model.User, error)
	Get(ctx context.Context, id string) (*model.User, error)
	Usage(ctx context.Context, id string) (*model.UserUsage, error)
}

type userService struct {
	userRepo   repository.UserRepository
	subRepo    repository.SubscriptionRepository
	usage      UsageService
	customers  CustomerCreator
	freePlanID string
	logger     zerolog.Logger
}

func NewUserService(userRepo repository.UserRepository, subRepo repository.SubscriptionRepository, usage UsageService, customers CustomerCreator, freePlanID string, logger zerolog.Logger) UserService {
	return &userService{
		userRepo:   userRepo,
		subRepo:    subRepo,
		usage:      usage,
		customers:  customers,
		freePlanID: freePlanID,
		logger:     logger.With().Str("service", "UserService").Logger(),
	}
}

func (s *userService) Create(ctx context.Context, u *model.User) (*model.User, error) {
	if err := s.userRepo.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	if err := s.subRepo.UpsertSubscription(ctx, u.UserID, s.freePlanID); err != nil {
		return nil, fmt.Errorf("starting free plan: %w", err)
	}
	if s.customers != nil && (u.StripeCustomerID == nil || *u.StripeCustomerID == "") {
		id, err := s.customers.CreateCustomer(ctx, u)
		if err != nil {
			// Checkout creates the customer lazily if this fails.
			s.logger.Warn().Err(err).Str("user_id", u.UserID).Msg("Failed to register payment customer at signup")
		} else {
			u.StripeCustomerID = &id
		}
	}
	return u, nil
}

func (s *userService) Get(ctx context.Context, id string) (*model.User, error) {
	u, err := s.userRepo.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	return u, nil
}

func (s *userService) Usage(ctx context.Context, id string) (*model.UserUsage, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.usage.GetUsage(ctx, id)
}
