package service

import (
	"errors"
	"fmt"

	"creatorstudio/internal/llm"
	"creatorstudio/internal/repository"

	"github.com/jackc/pgx/v5"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrQuotaExceeded     = errors.New("generation quota exceeded")
	ErrInvalidKind       = errors.New("invalid generation kind")
	ErrInvalidInput      = errors.New("invalid input")
	ErrPaymentNotPending = errors.New("payment is not pending")
	ErrUnknownProvider   = errors.New("unknown provider")
	ErrInvalidAPIKey     = errors.New("invalid API key")
	ErrUnavailable       = errors.New("feature not configured")
	// ErrRateLimited means every provider key was rate limited.
	ErrRateLimited = llm.ErrRateLimited
)

// translate maps repository errors onto service sentinels, keeping the
// original error in the chain.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, repository.ErrGenerationLimitExceeded):
		return fmt.Errorf("%w: %w", ErrQuotaExceeded, err)
	case errors.Is(err, repository.ErrPaymentAlreadyReviewed):
		return fmt.Errorf("%w: %w", ErrPaymentNotPending, err)
	}
	return err
}
