package repository

import (
	"context"
	"errors"
	"fmt"

	"creatorstudio/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrPaymentAlreadyReviewed is returned when a review targets a payment that
// is no longer pending.
var ErrPaymentAlreadyReviewed = errors.New("payment_already_reviewed")

type PaymentRepository interface {
	CreatePayment(ctx context.Context, p *model.Payment) error
	GetPayment(ctx context.Context, id string) (*model.Payment, error)
	ListPaymentsByUser(ctx context.Context, userID string) ([]model.Payment, error)
	// ListPayments lists all payments, optionally filtered by status.
	ListPayments(ctx context.Context, status string, limit, offset int) ([]model.Payment, error)
	// ReviewPayment moves a pending payment to status. Approval also starts a
	// subscription to the payment's plan, in the same transaction.
	ReviewPayment(ctx context.Context, id, reviewerID, status, note string) (*model.Payment, error)
}

type paymentRepo struct {
	pool *pgxpool.Pool
}

func NewPaymentRepo(pool *pgxpool.Pool) PaymentRepository {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, user_id, plan_id, amount_cents, currency, method, reference, status, reviewed_by, review_note, reviewed_at, created_at, updated_at`

func scanPayment(row pgx.Row) (*model.Payment, error) {
	var p model.Payment
	err := row.Scan(&p.ID, &p.UserID, &p.PlanID, &p.AmountCents, &p.Currency, &p.Method, &p.Reference,
		&p.Status, &p.ReviewedBy, &p.ReviewNote, &p.ReviewedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func collectPayments(rows pgx.Rows) ([]model.Payment, error) {
	defer rows.Close()
	out := []model.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning payment row: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating payment rows: %w", err)
	}
	return out, nil
}

func (r *paymentRepo) CreatePayment(ctx context.Context, p *model.Payment) error {
	query := `
		INSERT INTO payments (user_id, plan_id, amount_cents, currency, method, reference, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + paymentColumns
	created, err := scanPayment(r.pool.QueryRow(ctx, query, p.UserID, p.PlanID, p.AmountCents, p.Currency, p.Method, p.Reference, p.Status))
	if err != nil {
		return fmt.Errorf("creating payment for user %s: %w", p.UserID, err)
	}
	*p = *created
	return nil
}

func (r *paymentRepo) GetPayment(ctx context.Context, id string) (*model.Payment, error) {
	p, err := scanPayment(r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("payment %s not found: %w", id, err)
		}
		return nil, fmt.Errorf("getting payment %s: %w", id, err)
	}
	return p, nil
}

func (r *paymentRepo) ListPaymentsByUser(ctx context.Context, userID string) ([]model.Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM payments WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying payments for user %s: %w", userID, err)
	}
	return collectPayments(rows)
}

func (r *paymentRepo) ListPayments(ctx context.Context, status string, limit, offset int) ([]model.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying payments: %w", err)
	}
	return collectPayments(rows)
}

func (r *paymentRepo) ReviewPayment(ctx context.Context, id, reviewerID, status, note string) (*model.Payment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("starting review of payment %s: %w", id, err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	query := `
		UPDATE payments
		SET status = $2, reviewed_by = $3, review_note = NULLIF($4, ''), reviewed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + paymentColumns
	p, err := scanPayment(tx.QueryRow(ctx, query, id, status, reviewerID, note))
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if qerr := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM payments WHERE id = $1)`, id).Scan(&exists); qerr != nil {
			return nil, fmt.Errorf("checking payment %s: %w", id, qerr)
		}
		if !exists {
			return nil, fmt.Errorf("payment %s not found: %w", id, pgx.ErrNoRows)
		}
		return nil, ErrPaymentAlreadyReviewed
	}
	if err != nil {
		return nil, fmt.Errorf("reviewing payment %s: %w", id, err)
	}

	if status == model.PaymentApproved {
		const subQ = `
			INSERT INTO user_subscriptions (user_id, plan_id, starts_at, ends_at, status)
			SELECT $1, id, NOW(), NOW() + billing_period, 'active'
			FROM subscription_plans
			WHERE id = $2
			ON CONFLICT (user_id) DO UPDATE
			SET plan_id = EXCLUDED.plan_id,
			    stripe_subscription_id = NULL,
			    starts_at = EXCLUDED.starts_at,
			    ends_at = EXCLUDED.ends_at,
			    status = 'active',
			    updated_at = NOW()
		`
		if _, err := tx.Exec(ctx, subQ, p.UserID, p.PlanID); err != nil {
			return nil, fmt.Errorf("activating plan %s for user %s: %w", p.PlanID, p.UserID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing review of payment %s: %w", id, err)
	}
	return p, nil
}
