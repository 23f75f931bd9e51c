package kiosk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/kiosk"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/metrics"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/sse"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/utils"
)

const codeAttempts = 5

// Broadcaster pushes live updates to kiosk displays.
type Broadcaster interface {
	Publish(topic, name string, data interface{})
}

type kioskServiceImpl struct {
	tx          database.Transactor
	sessionRepo kiosk.SessionRepository
	ttl         time.Duration
	now         func() time.Time
	broadcaster Broadcaster
	metrics     *metrics.Metrics
}

// CreateSession implements kiosk.KioskService.
func (s *kioskServiceImpl) CreateSession(ctx context.Context, kioskID string, meta map[string]any, createdBy *int64) (kiosk.Session, error) {
	kioskID = kiosk.NormalizeKioskID(kioskID)

	var session kiosk.Session
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.sessionRepo.LockKiosk(ctx, kioskID); err != nil {
			return fmt.Errorf("failed to lock kiosk %s: %w", kioskID, err)
		}

		var err error
		session, err = s.issue(ctx, kioskID, meta, createdBy)
		return err
	})
	if err != nil {
		return kiosk.Session{}, err
	}

	s.metrics.KioskSession("created")
	s.announce(session)
	return session, nil
}

// GetOrCreateSession implements kiosk.KioskService.
func (s *kioskServiceImpl) GetOrCreateSession(ctx context.Context, kioskID string, meta map[string]any, createdBy *int64) (kiosk.Session, bool, error) {
	kioskID = kiosk.NormalizeKioskID(kioskID)

	var (
		session kiosk.Session
		created bool
	)
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.sessionRepo.LockKiosk(ctx, kioskID); err != nil {
			return fmt.Errorf("failed to lock kiosk %s: %w", kioskID, err)
		}

		active, err := s.sessionRepo.ActiveForKiosk(ctx, kioskID, s.now())
		if err != nil {
			return fmt.Errorf("failed to load active session: %w", err)
		}
		if active != nil {
			session = *active
			return nil
		}

		session, err = s.issue(ctx, kioskID, meta, createdBy)
		created = err == nil
		return err
	})
	if err != nil {
		return kiosk.Session{}, false, err
	}

	if created {
		s.metrics.KioskSession("created")
		s.announce(session)
	} else {
		s.metrics.KioskSession("reused")
	}
	return session, created, nil
}

// FindActiveByCode implements kiosk.KioskService.
func (s *kioskServiceImpl) FindActiveByCode(ctx context.Context, code string) (kiosk.Session, error) {
	code = kiosk.NormalizeCode(code)
	if code == "" {
		return kiosk.Session{}, kiosk.ErrQRInvalid
	}

	session, err := s.sessionRepo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, kiosk.ErrQRInvalid) {
			return kiosk.Session{}, err
		}
		return kiosk.Session{}, fmt.Errorf("failed to load qr session: %w", err)
	}
	if !session.ActiveAt(s.now()) {
		return kiosk.Session{}, kiosk.ErrQRExpired
	}
	return session, nil
}

// Consume implements kiosk.KioskService.
func (s *kioskServiceImpl) Consume(ctx context.Context, code string) (kiosk.Session, error) {
	session, err := s.FindActiveByCode(ctx, code)
	if err != nil {
		return kiosk.Session{}, err
	}

	usedAt := s.now()
	if err := s.sessionRepo.TouchLastUsed(ctx, session.ID, usedAt); err != nil {
		return kiosk.Session{}, fmt.Errorf("failed to mark qr session used: %w", err)
	}
	session.LastUsedAt = &usedAt
	return session, nil
}

// Prune implements kiosk.KioskService.
func (s *kioskServiceImpl) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	n, err := s.sessionRepo.DeleteExpiredBefore(ctx, s.now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("failed to prune kiosk sessions: %w", err)
	}
	return n, nil
}

// issue must run under the kiosk lock.
func (s *kioskServiceImpl) issue(ctx context.Context, kioskID string, meta map[string]any, createdBy *int64) (kiosk.Session, error) {
	now := s.now()
	if _, err := s.sessionRepo.ExpireActive(ctx, kioskID, now); err != nil {
		return kiosk.Session{}, fmt.Errorf("failed to expire active sessions: %w", err)
	}

	code, err := s.generateCode(ctx)
	if err != nil {
		return kiosk.Session{}, err
	}

	session, err := s.sessionRepo.Create(ctx, kiosk.Session{
		KioskID:   kioskID,
		Code:      code,
		ExpiresAt: now.Add(s.ttl),
		Meta:      meta,
		CreatedBy: createdBy,
	})
	if err != nil {
		return kiosk.Session{}, fmt.Errorf("failed to create qr session: %w", err)
	}
	return session, nil
}

func (s *kioskServiceImpl) generateCode(ctx context.Context) (string, error) {
	for i := 0; i < codeAttempts; i++ {
		code, err := utils.RandomCode(kiosk.SessionCodeSize)
		if err != nil {
			return "", fmt.Errorf("failed to generate qr code: %w", err)
		}
		exists, err := s.sessionRepo.CodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check qr code: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", kiosk.ErrCodeExhausted
}

func (s *kioskServiceImpl) announce(session kiosk.Session) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.Publish(sse.KioskTopic(session.KioskID), "qr_session", kiosk.NewSessionResponse(session, s.now()))
	slog.Debug("kiosk session issued", "kiosk_id", session.KioskID, "expires_at", session.ExpiresAt)
}

func NewKioskService(
	tx database.Transactor,
	sessionRepo kiosk.SessionRepository,
	ttl time.Duration,
	now func() time.Time,
	broadcaster Broadcaster,
	m *metrics.Metrics,
) kiosk.KioskService {
	if now == nil {
		now = time.Now
	}
	return &kioskServiceImpl{
		tx:          tx,
		sessionRepo: sessionRepo,
		ttl:         ttl,
		now:         now,
		broadcaster: broadcaster,
		metrics:     m,
	}
}
