package kiosk

import (
	"context"
	"time"
)

type SessionRepository interface {
	// LockKiosk serializes session writers for one kiosk until the transaction ends.
	LockKiosk(ctx context.Context, kioskID string) error

	// ActiveForKiosk returns the newest session of kioskID still active at now, or nil.
	ActiveForKiosk(ctx context.Context, kioskID string, now time.Time) (*Session, error)

	// ExpireActive sets expires_at = now on every active session of kioskID.
	ExpireActive(ctx context.Context, kioskID string, now time.Time) (int64, error)

	CodeExists(ctx context.Context, code string) (bool, error)
	Create(ctx context.Context, s Session) (Session, error)

	// GetByCode returns the session regardless of expiry, or ErrQRInvalid.
	GetByCode(ctx context.Context, code string) (Session, error)

	TouchLastUsed(ctx context.Context, id int64, at time.Time) error

	// DeleteExpiredBefore removes sessions that expired before cutoff.
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
