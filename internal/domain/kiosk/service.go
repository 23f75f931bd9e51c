package kiosk

import (
	"context"
	"time"
)

// KioskService issues and validates the short-lived codes a kiosk displays.
// At most one session per kiosk is active at a time.
type KioskService interface {
	// CreateSession expires the kiosk's active session and issues a new one.
	CreateSession(ctx context.Context, kioskID string, meta map[string]any, createdBy *int64) (Session, error)

	// GetOrCreateSession returns the active session, issuing one when none is active.
	GetOrCreateSession(ctx context.Context, kioskID string, meta map[string]any, createdBy *int64) (Session, bool, error)

	FindActiveByCode(ctx context.Context, code string) (Session, error)

	// Consume validates the code and stamps last_used_at. The session stays
	// active until it expires or is rotated.
	Consume(ctx context.Context, code string) (Session, error)

	// Prune deletes sessions expired for longer than retention.
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}
