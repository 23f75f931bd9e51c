package kiosk

import (
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
)

type CreateSessionRequest struct {
	KioskID string         `json:"kiosk_id" validate:"max=255"`
	Meta    map[string]any `json:"meta"`
	// Reuse returns the active session instead of rotating it.
	Reuse bool `json:"reuse"`

	CreatedBy *int64 `json:"-"`
}

func (r *CreateSessionRequest) Validate() error {
	if errs := validator.Struct(r); errs != nil {
		return errs
	}
	return nil
}

type SessionResponse struct {
	KioskID    string         `json:"kiosk_id"`
	Code       string         `json:"code"`
	ExpiresAt  time.Time      `json:"expires_at"`
	TTLSeconds int            `json:"ttl_seconds"`
	LastUsedAt *time.Time     `json:"last_used_at,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
}

func NewSessionResponse(s Session, now time.Time) SessionResponse {
	ttl := int(s.ExpiresAt.Sub(now).Seconds())
	if ttl < 0 {
		ttl = 0
	}
	return SessionResponse{
		KioskID:    s.KioskID,
		Code:       s.Code,
		ExpiresAt:  s.ExpiresAt,
		TTLSeconds: ttl,
		LastUsedAt: s.LastUsedAt,
		Meta:       s.Meta,
	}
}
