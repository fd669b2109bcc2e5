package service

import (
	"context"
	"fmt"
	"strings"

	"creatorstudio/internal/model"
	"creatorstudio/internal/repository"

	"github.com/rs/zerolog"
)

type PaymentInput struct {
	PlanID      string
	AmountCents int
	Currency    string
	Reference   string
}

// PaymentService handles manual payments: users submit a transfer
// reference, an administrator approves or rejects it once.
type PaymentService interface {
	Submit(ctx context.Context, userID string, in PaymentInput) (*model.Payment, error)
	ListMine(ctx context.Context, userID string) ([]model.Payment, error)
	ListAll(ctx context.Context, status string, limit, offset int) ([]model.Payment, error)
	Approve(ctx context.Context, adminID, paymentID, note string) (*model.Payment, error)
	Reject(ctx context.Context, adminID, paymentID, note string) (*model.Payment, error)
}

type paymentService struct {
	repo    repository.PaymentRepository
	subRepo repository.SubscriptionRepository
	logger  zerolog.Logger
}

func NewPaymentService(repo repository.PaymentRepository, subRepo repository.SubscriptionRepository, logger zerolog.Logger) PaymentService {
	return &paymentService{repo: repo, subRepo: subRepo, logger: logger.With().Str("service", "PaymentService").Logger()}
}

func (s *paymentService) Submit(ctx context.Context, userID string, in PaymentInput) (*model.Payment, error) {
	if in.AmountCents <= 0 || strings.TrimSpace(in.Reference) == "" {
		return nil, fmt.Errorf("%w: amount and reference are required", ErrInvalidInput)
	}
	plan, err := s.subRepo.GetPlanByID(ctx, in.PlanID)
	if err != nil {
		return nil, translate(err)
	}
	if plan.PriceCents == 0 {
		return nil, fmt.Errorf("%w: plan %s is free", ErrInvalidInput, plan.ID)
	}
	currency := strings.ToLower(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = "usd"
	}
	p := &model.Payment{
		UserID:      userID,
		PlanID:      plan.ID,
		AmountCents: in.AmountCents,
		Currency:    currency,
		Method:      model.PaymentMethodBankTransfer,
		Reference:   strings.TrimSpace(in.Reference),
		Status:      model.PaymentPending,
	}
	if err := s.repo.CreatePayment(ctx, p); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to record payment")
		return nil, err
	}
	s.logger.Info().Str("payment_id", p.ID).Str("user_id", userID).Str("plan_id", plan.ID).Msg("Manual payment submitted")
	return p, nil
}

func (s *paymentService) ListMine(ctx context.Context, userID string) ([]model.Payment, error) {
	return s.repo.ListPaymentsByUser(ctx, userID)
}

func (s *paymentService) ListAll(ctx context.Context, status string, limit, offset int) ([]model.Payment, error) {
	switch status {
	case "", model.PaymentPending, model.PaymentApproved, model.PaymentRejected:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	limit, offset = clampPage(limit, offset)
	return s.repo.ListPayments(ctx, status, limit, offset)
}

func (s *paymentService) review(ctx context.Context, adminID, paymentID, status, note string) (*model.Payment, error) {
	p, err := s.repo.ReviewPayment(ctx, paymentID, adminID, status, note)
	if err != nil {
		s.logger.Warn().Err(err).Str("payment_id", paymentID).Str("status", status).Msg("Payment review failed")
		return nil, translate(err)
	}
	s.logger.Info().Str("payment_id", p.ID).Str("user_id", p.UserID).Str("status", status).Str("reviewed_by", adminID).Msg("Payment reviewed")
	return p, nil
}

// Approve marks the payment approved and activates its plan for the user.
func (s *paymentService) Approve(ctx context.Context, adminID, paymentID, note string) (*model.Payment, error) {
	return s.review(ctx, adminID, paymentID, model.PaymentApproved, note)
}

func (s *paymentService) Reject(ctx context.Context, adminID, paymentID, note string) (*model.Payment, error) {
	return s.review(ctx, adminID, paymentID, model.PaymentRejected, note)
}
