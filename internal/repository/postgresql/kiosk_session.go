package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/kiosk"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

const kioskSessionColumns = `id, kiosk_id, code, expires_at, last_used_at, meta, created_by, created_at`

type kioskSessionRepositoryImpl struct {
	db *database.DB
}

func NewKioskSessionRepository(db *database.DB) kiosk.SessionRepository {
	return &kioskSessionRepositoryImpl{db: db}
}

func scanKioskSession(row pgx.Row) (kiosk.Session, error) {
	var (
		s    kiosk.Session
		meta []byte
	)
	if err := row.Scan(&s.ID, &s.KioskID, &s.Code, &s.ExpiresAt, &s.LastUsedAt, &meta, &s.CreatedBy, &s.CreatedAt); err != nil {
		return kiosk.Session{}, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &s.Meta); err != nil {
			return kiosk.Session{}, fmt.Errorf("failed to decode session meta: %w", err)
		}
	}
	return s, nil
}

// LockKiosk implements kiosk.SessionRepository.
func (r *kioskSessionRepositoryImpl) LockKiosk(ctx context.Context, kioskID string) error {
	q := GetQuerier(ctx, r.db)

	if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('kiosk:' || $1))`, kioskID); err != nil {
		return fmt.Errorf("failed to acquire kiosk lock: %w", err)
	}
	return nil
}

// ActiveForKiosk implements kiosk.SessionRepository.
func (r *kioskSessionRepositoryImpl) ActiveForKiosk(ctx context.Context, kioskID string, now time.Time) (*kiosk.Session, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + kioskSessionColumns + ` FROM kiosk_qr_sessions
		WHERE kiosk_id = $1 AND expires_at > $2
		ORDER BY expires_at DESC, id DESC
		LIMIT 1`

	s, err := scanKioskSession(q.QueryRow(ctx, query, kioskID, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active kiosk session: %w", err)
	}
	return &s, nil
}

// ExpireActive implements kiosk.SessionRepository.
func (r *kioskSessionRepositoryImpl) ExpireActive(ctx context.Context, kioskID string, now time.Time) (int64, error) {
	q := GetQuerier(ctx, r.db)

	tag, err := q.Exec(ctx, `UPDATE kiosk_qr_sessions SET expires_at = $2 WHERE kiosk_id = $1 AND expires_at > $2`, kioskID, now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire kiosk sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CodeExists implements kiosk.SessionRepository.
func (r *kioskSessionRepositoryImpl) CodeExists(ctx context.Context, code string) (bool, error) {
	q := GetQuerier(ctx, r.db)

	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM kiosk_qr_sessions WHERE code = $1)`, code).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check kiosk code: %w", err)
	}
	return exists, nil
}

// Create implements kiosk.SessionRepository.
func (r *kioskSessionRepositoryImpl) Create(ctx context.Context, s kiosk.Session) (kiosk.Session, error) {
	q := GetQuerier(ctx, r.db)

	var meta []byte
	if s.Meta != nil {
		var err error
		if meta, err = json.Marshal(s.Meta); err != nil {
			return kiosk.Session{}, fmt.Errorf("failed to encode session meta: %w", err)
		}
	}

	query := `
		INSERT INTO kiosk_qr_sessions (kiosk_id, code, expires_at, meta, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	if err := q.QueryRow(ctx, query, s.KioskID, s.Code, s.ExpiresAt, meta, s.CreatedBy).Scan(&s.ID, &s.CreatedAt); err != nil {
		return kiosk.Session{}, fmt.Errorf("failed to create kiosk session: %w", err)
	}
	return s, nil
}

// GetByCode implements kiosk.SessionRepository.
func (r *kioskSessionRepositoryImpl) GetByCode(ctx context.Context, code string) (kiosk.Session, error) {
	q := GetQuerier(ctx, r.db)

	s, err := scanKioskSession(q.QueryRow(ctx, `SELECT `+kioskSessionColumns+` FROM kiosk_qr_sessions WHERE code = $1`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return kiosk.Session{}, kiosk.ErrQRInvalid
		}
		return kiosk.Session{}, fmt.Errorf("failed to get kiosk session: %w", err)
	}
	return s, nil
}

// TouchLastUsed implements kiosk.SessionRepository.
func (r *kioskSessionRepositoryImpl) TouchLastUsed(ctx context.Context, id int64, at time.Time) error {
	q := GetQuerier(ctx, r.db)

	if _, err := q.Exec(ctx, `UPDATE kiosk_qr_sessions SET last_used_at = $2 WHERE id = $1`, id, at); err != nil {
		return fmt.Errorf("failed to touch kiosk session: %w", err)
	}
	return nil
}

// DeleteExpiredBefore implements kiosk.SessionRepository.
func (r *kioskSessionRepositoryImpl) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	q := GetQuerier(ctx, r.db)

	tag, err := q.Exec(ctx, `DELETE FROM kiosk_qr_sessions WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired kiosk sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
