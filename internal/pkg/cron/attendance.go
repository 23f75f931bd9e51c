package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/event"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/kiosk"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/metrics"
)

const (
	outboxBatchSize = 50
	maxRelayBackoff = 10 * time.Minute
)

type JobsConfig struct {
	MaxOpenSession     time.Duration
	OutboxPollInterval time.Duration
	KioskRetention     time.Duration
}

type AttendanceJobs struct {
	attendanceService attendance.AttendanceService
	kioskService      kiosk.KioskService
	outboxRepo        event.OutboxRepository
	// publisher is nil when no broker is configured; the relay job is then skipped.
	publisher event.Publisher
	tx        database.Transactor
	metrics   *metrics.Metrics
	cfg       JobsConfig
	now       func() time.Time
}

func NewAttendanceJobs(
	attendanceService attendance.AttendanceService,
	kioskService kiosk.KioskService,
	outboxRepo event.OutboxRepository,
	publisher event.Publisher,
	tx database.Transactor,
	m *metrics.Metrics,
	cfg JobsConfig,
) *AttendanceJobs {
	return &AttendanceJobs{
		attendanceService: attendanceService,
		kioskService:      kioskService,
		outboxRepo:        outboxRepo,
		publisher:         publisher,
		tx:                tx,
		metrics:           m,
		cfg:               cfg,
		now:               time.Now,
	}
}

func (j *AttendanceJobs) RegisterJobs(scheduler *Scheduler) {
	scheduler.AddJob("auto_close_stale_attendances", 1*time.Hour, j.AutoCloseStaleAttendances)
	scheduler.AddJob("prune_kiosk_sessions", 24*time.Hour, j.PruneKioskSessions)
	if j.publisher != nil {
		interval := j.cfg.OutboxPollInterval
		if interval <= 0 {
			interval = 5 * time.Second
		}
		scheduler.AddJob("relay_outbox_events", interval, j.RelayOutboxEvents)
	} else {
		slog.Warn("Kafka not configured, outbox events stay pending")
	}
}

func (j *AttendanceJobs) AutoCloseStaleAttendances(ctx context.Context) error {
	closed, err := j.attendanceService.AutoCloseStale(ctx, j.cfg.MaxOpenSession)
	if err != nil {
		return fmt.Errorf("auto-close stale attendances: %w", err)
	}
	if closed > 0 {
		slog.Info("Cron: auto-closed stale attendances", "count", closed, "older_than", j.cfg.MaxOpenSession)
	}
	return nil
}

func (j *AttendanceJobs) PruneKioskSessions(ctx context.Context) error {
	deleted, err := j.kioskService.Prune(ctx, j.cfg.KioskRetention)
	if err != nil {
		return fmt.Errorf("prune kiosk sessions: %w", err)
	}
	if deleted > 0 {
		slog.Info("Cron: pruned expired kiosk sessions", "count", deleted)
	}
	return nil
}

// RelayOutboxEvents publishes due outbox rows. The batch stays locked for the
// duration of the transaction so parallel relays skip it.
func (j *AttendanceJobs) RelayOutboxEvents(ctx context.Context) error {
	return j.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		now := j.now()
		events, err := j.outboxRepo.ListPending(ctx, now, outboxBatchSize)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}

		slog.Debug("Cron: relaying outbox events", "count", len(events))

		for _, e := range events {
			if err := j.publisher.Publish(ctx, e); err != nil {
				next := now.Add(relayBackoff(e.RetryCount))
				slog.Error("Publish outbox event failed",
					"outbox_id", e.ID,
					"event_type", e.EventType,
					"topic", e.Topic,
					"retry_count", e.RetryCount,
					"next_retry_at", next,
					"error", err,
				)
				if err := j.outboxRepo.MarkFailed(ctx, e.ID, next, err.Error()); err != nil {
					return err
				}
				j.metrics.OutboxResult(event.StatusFailed)
				continue
			}

			if err := j.outboxRepo.MarkSent(ctx, e.ID, j.now()); err != nil {
				return err
			}
			j.metrics.OutboxResult(event.StatusSent)
		}
		return nil
	})
}

// relayBackoff doubles from 5s per failed attempt, capped at maxRelayBackoff.
func relayBackoff(retries int) time.Duration {
	if retries > 10 {
		return maxRelayBackoff
	}
	d := 5 * time.Second << retries
	if d > maxRelayBackoff {
		return maxRelayBackoff
	}
	return d
}
