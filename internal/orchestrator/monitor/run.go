// Package monitor runs the scan worker: it drains the monitor scan queue and
// scans each channel, retrying with exponential backoff before moving a job
// to the dead letter queue.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"creatorstudio/internal/pgmq"
	"creatorstudio/internal/service"

	"github.com/rs/zerolog"
)

// Queue is the subset of the pgmq client the worker needs.
type Queue interface {
	ReadWithPoll(ctx context.Context, queue string, visibilitySec, timeoutSec, maxMessages int) ([]*pgmq.Message, error)
	SendJSON(ctx context.Context, queue string, v any) (int64, error)
	Delete(ctx context.Context, queue string, msgIDs []int64) error
}

// Scanner scans one monitor.
type Scanner interface {
	Scan(ctx context.Context, monitorID string) (*service.ScanReport, error)
}

type Config struct {
	Queue           string
	DeadLetterQueue string
	PollTimeoutSec  int
	PollMaxMsg      int
	// VisibilitySec hides a read message from other workers while it is
	// processed.
	VisibilitySec  int
	MaxRetries     int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

// DeadLetter is the payload moved to the dead letter queue.
type DeadLetter struct {
	Job      service.ScanJob `json:"job"`
	Stage    string          `json:"stage"`
	Message  string          `json:"message"`
	Attempts int             `json:"attempts"`
	FailedAt time.Time       `json:"failed_at"`
}

// Run processes scan jobs until ctx is cancelled.
func Run(ctx context.Context, logger zerolog.Logger, client Queue, scanner Scanner, cfg Config) error {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if cfg.PollMaxMsg < 1 {
		cfg.PollMaxMsg = 1
	}
	if cfg.VisibilitySec <= 0 {
		cfg.VisibilitySec = 120
	}
	logger.Info().Str("queue", cfg.Queue).Str("dlq", cfg.DeadLetterQueue).Msg("Starting monitor orchestrator")
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Shutting down monitor orchestrator")
			return nil
		default:
		}

		msgs, err := client.ReadWithPoll(ctx, cfg.Queue, cfg.VisibilitySec, cfg.PollTimeoutSec, cfg.PollMaxMsg)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			logger.Error().Err(err).Msg("Error reading monitor queue")
			sleep(ctx, time.Second)
			continue
		}
		for _, msg := range msgs {
			handle(ctx, logger, client, scanner, cfg, msg)
		}
	}
}

// handle processes one message. Every path except cancellation ends with
// the message deleted.
func handle(ctx context.Context, logger zerolog.Logger, client Queue, scanner Scanner, cfg Config, msg *pgmq.Message) {
	log := logger.With().Int64("msg_id", msg.ID).Logger()

	var job service.ScanJob
	if err := json.Unmarshal(msg.Data, &job); err != nil || job.MonitorID == "" {
		log.Error().Err(err).Msg("Malformed scan job; deleting message")
		ack(ctx, log, client, cfg.Queue, msg.ID)
		return
	}
	log = log.With().Str("monitor_id", job.MonitorID).Logger()

	// A message read more often than allowed was abandoned by crashed workers.
	if msg.ReadCount > cfg.MaxRetries {
		deadLetter(ctx, log, client, cfg, msg.ID, job, errors.New("read count exceeded"), msg.ReadCount)
		return
	}

	backoff := cfg.BackoffInitial
	var scanErr error
	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		start := time.Now()
		report, err := scanner.Scan(ctx, job.MonitorID)
		if err == nil {
			log.Info().
				Int("videos", report.Videos).
				Int("alerts", report.Alerts).
				Bool("skipped", report.Skipped).
				Str("duration", time.Since(start).String()).
				Msg("Scan succeeded")
			ack(ctx, log, client, cfg.Queue, msg.ID)
			return
		}
		scanErr = err
		if ctx.Err() != nil {
			// Leave the message; it becomes visible again for the next worker.
			return
		}
		log.Error().Err(err).Int("attempt", attempt).Msg("Scan failed, retrying")
		if attempt == cfg.MaxRetries {
			break
		}
		if !sleep(ctx, backoff) {
			return
		}
		backoff *= 2
		if cfg.BackoffMax > 0 && backoff > cfg.BackoffMax {
			backoff = cfg.BackoffMax
		}
	}
	deadLetter(ctx, log, client, cfg, msg.ID, job, scanErr, cfg.MaxRetries)
}

func deadLetter(ctx context.Context, log zerolog.Logger, client Queue, cfg Config, msgID int64, job service.ScanJob, cause error, attempts int) {
	dl := DeadLetter{Job: job, Stage: "scan", Message: cause.Error(), Attempts: attempts, FailedAt: time.Now().UTC()}
	if _, err := client.SendJSON(ctx, cfg.DeadLetterQueue, dl); err != nil {
		log.Error().Err(err).Str("dlq", cfg.DeadLetterQueue).Msg("Failed to send message to dead-letter queue")
	}
	ack(ctx, log, client, cfg.Queue, msgID)
	log.Warn().Int("attempts", attempts).Err(cause).Msg("Exhausted scan retries; moving job to DLQ")
}

func ack(ctx context.Context, log zerolog.Logger, client Queue, queue string, msgID int64) {
	if err := client.Delete(ctx, queue, []int64{msgID}); err != nil {
		log.Error().Err(err).Msg("Error deleting monitor message")
	}
}

// sleep waits for d or until ctx is done; it reports whether d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
