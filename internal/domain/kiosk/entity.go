package kiosk

import (
	"regexp"
	"strings"
	"time"
)

const (
	UnknownKioskID  = "KIOSK_UNKNOWN"
	maxKioskIDLen   = 100
	SessionCodeSize = 12
)

type Session struct {
	ID         int64
	KioskID    string
	Code       string
	ExpiresAt  time.Time
	LastUsedAt *time.Time
	Meta       map[string]any
	CreatedBy  *int64
	CreatedAt  time.Time
}

// ActiveAt reports whether the session still accepts scans at t.
func (s Session) ActiveAt(t time.Time) bool {
	return t.Before(s.ExpiresAt)
}

var kioskIDReplacer = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// NormalizeKioskID trims, replaces runs of unsupported characters with "_" and
// caps the length. An empty id becomes UnknownKioskID.
func NormalizeKioskID(raw string) string {
	id := kioskIDReplacer.ReplaceAllString(strings.TrimSpace(raw), "_")
	if id == "" {
		return UnknownKioskID
	}
	if len(id) > maxKioskIDLen {
		id = id[:maxKioskIDLen]
	}
	return id
}

// NormalizeCode trims and uppercases a scanned code.
func NormalizeCode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}
