package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

const (
	TypeCheckedIn  = "attendance.checked_in"
	TypeCheckedOut = "attendance.checked_out"
	TypeManual     = "attendance.manual_entry"
	TypeAutoClosed = "attendance.auto_closed"

	AggregateAttendance = "attendance"
)

// OutboxEvent is written in the same transaction as the state change it
// describes and relayed to the broker afterwards.
type OutboxEvent struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Topic         string
	Payload       []byte
	Status        string
	RetryCount    int
	NextRetryAt   *time.Time
	LastError     *string
	CreatedAt     time.Time
	SentAt        *time.Time
}

// NewOutboxEvent marshals payload and returns a pending event.
func NewOutboxEvent(topic, aggregateType, aggregateID, eventType string, payload any) (OutboxEvent, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return OutboxEvent{}, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return OutboxEvent{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Topic:         topic,
		Payload:       body,
		Status:        StatusPending,
	}, nil
}
