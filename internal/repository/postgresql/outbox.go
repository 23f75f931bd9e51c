package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/event"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/google/uuid"
)

type outboxRepositoryImpl struct {
	db *database.DB
}

func NewOutboxRepository(db *database.DB) event.OutboxRepository {
	return &outboxRepositoryImpl{db: db}
}

// Create implements event.OutboxRepository.
func (r *outboxRepositoryImpl) Create(ctx context.Context, e event.OutboxEvent) error {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO outbox_events (id, aggregate_type, aggregate_id, event_type, topic, payload, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := q.Exec(ctx, query, e.ID, e.AggregateType, e.AggregateID, e.EventType, e.Topic, e.Payload, e.Status)
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return nil
}

// ListPending implements event.OutboxRepository.
func (r *outboxRepositoryImpl) ListPending(ctx context.Context, now time.Time, limit int) ([]event.OutboxEvent, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, aggregate_type, aggregate_id, event_type, topic, payload, status,
			   retry_count, next_retry_at, last_error, created_at, sent_at
		FROM outbox_events
		WHERE status <> 'sent'
		  AND (next_retry_at IS NULL OR next_retry_at <= $1)
		ORDER BY created_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`
	rows, err := q.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox events: %w", err)
	}
	defer rows.Close()

	var events []event.OutboxEvent
	for rows.Next() {
		var e event.OutboxEvent
		err := rows.Scan(
			&e.ID, &e.AggregateType, &e.AggregateID, &e.EventType, &e.Topic, &e.Payload, &e.Status,
			&e.RetryCount, &e.NextRetryAt, &e.LastError, &e.CreatedAt, &e.SentAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// MarkSent implements event.OutboxRepository.
func (r *outboxRepositoryImpl) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	q := GetQuerier(ctx, r.db)

	_, err := q.Exec(ctx, `UPDATE outbox_events SET status = 'sent', sent_at = $2, last_error = NULL WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event sent: %w", err)
	}
	return nil
}

// MarkFailed implements event.OutboxRepository.
func (r *outboxRepositoryImpl) MarkFailed(ctx context.Context, id uuid.UUID, nextRetryAt time.Time, reason string) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE outbox_events
		SET status = 'failed', retry_count = retry_count + 1, next_retry_at = $2, last_error = $3
		WHERE id = $1
	`
	if _, err := q.Exec(ctx, query, id, nextRetryAt, reason); err != nil {
		return fmt.Errorf("failed to mark outbox event failed: %w", err)
	}
	return nil
}
