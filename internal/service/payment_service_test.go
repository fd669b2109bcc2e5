package service

import (
	"context"
	"fmt"
	"testing"

	"creatorstudio/internal/model"
	"creatorstudio/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePayments struct {
	repository.PaymentRepository
	rows map[string]*model.Payment
}

func (f *fakePayments) CreatePayment(_ context.Context, p *model.Payment) error {
	if f.rows == nil {
		f.rows = map[string]*model.Payment{}
	}
	p.ID = fmt.Sprintf("pay-%d", len(f.rows)+1)
	f.rows[p.ID] = p
	return nil
}

func (f *fakePayments) ReviewPayment(_ context.Context, id, reviewerID, status, note string) (*model.Payment, error) {
	p, ok := f.rows[id]
	if !ok {
		return nil, fmt.Errorf("payment %s: %w", id, pgx.ErrNoRows)
	}
	if p.Status != model.PaymentPending {
		return nil, fmt.Errorf("payment %s: %w", id, repository.ErrPaymentAlreadyReviewed)
	}
	p.Status = status
	p.ReviewedBy = &reviewerID
	p.ReviewNote = &note
	return p, nil
}

func (f *fakePayments) ListPayments(_ context.Context, status string, _, _ int) ([]model.Payment, error) {
	var out []model.Payment
	for _, p := range f.rows {
		if status == "" || p.Status == status {
			out = append(out, *p)
		}
	}
	return out, nil
}

func newPaymentFixture() (PaymentService, *fakePayments) {
	subs := &fakeSubscriptions{plans: map[string]*model.SubscriptionPlan{
		"free":         {ID: "free", PriceCents: 0},
		"price_pro_mo": {ID: "price_pro_mo", PriceCents: 1900},
	}}
	repo := &fakePayments{}
	return NewPaymentService(repo, subs, zerolog.Nop()), repo
}

func TestPaymentSubmitValidation(t *testing.T) {
	svc, _ := newPaymentFixture()
	ctx := context.Background()

	_, err := svc.Submit(ctx, "u1", PaymentInput{PlanID: "free", AmountCents: 100, Reference: "TRX-1"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Submit(ctx, "u1", PaymentInput{PlanID: "price_pro_mo", AmountCents: 0, Reference: "TRX-1"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Submit(ctx, "u1", PaymentInput{PlanID: "nope", AmountCents: 1900, Reference: "TRX-1"})
	assert.ErrorIs(t, err, ErrNotFound)

	p, err := svc.Submit(ctx, "u1", PaymentInput{PlanID: "price_pro_mo", AmountCents: 1900, Currency: " EUR ", Reference: " TRX-1 "})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPending, p.Status)
	assert.Equal(t, "eur", p.Currency)
	assert.Equal(t, "TRX-1", p.Reference)
	assert.Equal(t, model.PaymentMethodBankTransfer, p.Method)
}

func TestPaymentReviewedOnce(t *testing.T) {
	svc, _ := newPaymentFixture()
	ctx := context.Background()
	p, err := svc.Submit(ctx, "u1", PaymentInput{PlanID: "price_pro_mo", AmountCents: 1900, Reference: "TRX-2"})
	require.NoError(t, err)

	approved, err := svc.Approve(ctx, "admin", p.ID, "matched bank statement")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentApproved, approved.Status)

	_, err = svc.Reject(ctx, "admin", p.ID, "")
	assert.ErrorIs(t, err, ErrPaymentNotPending)

	_, err = svc.Approve(ctx, "admin", "pay-404", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPaymentListAllRejectsUnknownStatus(t *testing.T) {
	svc, _ := newPaymentFixture()
	_, err := svc.ListAll(context.Background(), "refunded", 0, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.ListAll(context.Background(), model.PaymentPending, 0, 0)
	assert.NoError(t, err)
}
