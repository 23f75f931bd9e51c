package event

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type OutboxRepository interface {
	Create(ctx context.Context, e OutboxEvent) error

	// ListPending returns up to limit pending or retryable events due at now,
	// oldest first, locked with SKIP LOCKED so concurrent relays do not collide.
	ListPending(ctx context.Context, now time.Time, limit int) ([]OutboxEvent, error)

	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, nextRetryAt time.Time, reason string) error
}

// Publisher delivers an event to the broker.
type Publisher interface {
	Publish(ctx context.Context, e OutboxEvent) error
}
