package dto

import "creatorstudio/internal/service"

// PaymentSubmitRequest is the body of POST /payments.
type PaymentSubmitRequest struct {
	PlanID      string `json:"plan_id" validate:"required"`
	AmountCents int    `json:"amount_cents" validate:"required,gt=0"`
	Currency    string `json:"currency,omitempty" validate:"omitempty,len=3"`
	Reference   string `json:"reference" validate:"required,max=200"`
}

func (r PaymentSubmitRequest) Input() service.PaymentInput {
	return service.PaymentInput{PlanID: r.PlanID, AmountCents: r.AmountCents, Currency: r.Currency, Reference: r.Reference}
}

// PaymentReviewRequest is the optional body of the admin approve and reject
// endpoints.
type PaymentReviewRequest struct {
	Note string `json:"note,omitempty" validate:"max=1000"`
}
