package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrGenerationLimitExceeded is returned when a user has used up the
// generations of their billing period.
var ErrGenerationLimitExceeded = errors.New("generation_limit_exceeded")

const countUsageQ = `
	SELECT COUNT(*)
	FROM usage_events
	WHERE user_id = $1
	  AND created_at >= $2
	  AND created_at < $3
`

// UsageRepository tracks AI generations for quota enforcement.
type UsageRepository interface {
	// CheckAndRecordGeneration atomically counts the user's generations in
	// [start, end) and records a new one. maxGenerations <= 0 means unlimited.
	CheckAndRecordGeneration(ctx context.Context, userID, eventType string, start, end time.Time, maxGenerations int) (int64, error)
	// ReleaseGeneration removes an event recorded for a generation that failed.
	ReleaseGeneration(ctx context.Context, eventID int64) error
	CountGenerationsInTimeRange(ctx context.Context, userID string, start, end time.Time) (int, error)
}

type usageRepo struct {
	pool *pgxpool.Pool
}

// NewUsageRepo creates a new UsageRepository.
func NewUsageRepo(pool *pgxpool.Pool) UsageRepository {
	return &usageRepo{pool: pool}
}

func (r *usageRepo) CheckAndRecordGeneration(ctx context.Context, userID, eventType string, start, end time.Time, maxGenerations int) (int64, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return 0, fmt.Errorf("starting transaction for generation check: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var count int
	if err := tx.QueryRow(ctx, countUsageQ, userID, start, end).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting generations for user %s: %w", userID, err)
	}
	if maxGenerations > 0 && count >= maxGenerations {
		return 0, ErrGenerationLimitExceeded
	}

	var id int64
	const insertQ = `INSERT INTO usage_events (user_id, event_type) VALUES ($1, $2) RETURNING id`
	if err := tx.QueryRow(ctx, insertQ, userID, eventType).Scan(&id); err != nil {
		return 0, fmt.Errorf("recording generation for user %s: %w", userID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing generation for user %s: %w", userID, err)
	}
	return id, nil
}

func (r *usageRepo) ReleaseGeneration(ctx context.Context, eventID int64) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM usage_events WHERE id = $1`, eventID); err != nil {
		return fmt.Errorf("releasing usage event %d: %w", eventID, err)
	}
	return nil
}

func (r *usageRepo) CountGenerationsInTimeRange(ctx context.Context, userID string, start, end time.Time) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, countUsageQ, userID, start, end).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting generations for user %s: %w", userID, err)
	}
	return count, nil
}
