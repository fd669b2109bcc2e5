package model

import "time"

const (
	PaymentPending  = "pending"
	PaymentApproved = "approved"
	PaymentRejected = "rejected"

	PaymentMethodBankTransfer = "bank_transfer"
	PaymentMethodStripe       = "stripe"
)

// Payment records money received for a plan. Manual payments start pending
// and are reviewed once by an administrator.
type Payment struct {
	ID          string     `db:"id" json:"id"`
	UserID      string     `db:"user_id" json:"user_id"`
	PlanID      string     `db:"plan_id" json:"plan_id"`
	AmountCents int        `db:"amount_cents" json:"amount_cents"`
	Currency    string     `db:"currency" json:"currency"`
	Method      string     `db:"method" json:"method"`
	Reference   string     `db:"reference" json:"reference"`
	Status      string     `db:"status" json:"status"`
	ReviewedBy  *string    `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewNote  *string    `db:"review_note" json:"review_note,omitempty"`
	ReviewedAt  *time.Time `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}
