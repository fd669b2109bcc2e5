// Package scheduler periodically queues a scan for every active monitor.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Enqueuer queues scans for all active monitors and reports how many.
type Enqueuer interface {
	EnqueueActive(ctx context.Context) (int, error)
}

// Run enqueues once immediately and then every interval until ctx is
// cancelled. Failed rounds are logged and retried on the next tick.
func Run(ctx context.Context, logger zerolog.Logger, monitors Enqueuer, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Hour
	}
	logger.Info().Str("interval", interval.String()).Msg("Starting monitor scheduler")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		start := time.Now()
		n, err := monitors.EnqueueActive(ctx)
		if err != nil {
			logger.Error().Err(err).Int("enqueued", n).Msg("Failed to enqueue monitor scans")
		} else {
			logger.Info().Int("enqueued", n).Str("duration", time.Since(start).String()).Msg("Monitor scans enqueued")
		}

		select {
		case <-ctx.Done():
			logger.Info().Msg("Shutting down monitor scheduler")
			return nil
		case <-ticker.C:
		}
	}
}
