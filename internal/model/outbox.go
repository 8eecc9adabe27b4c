package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusProcessed OutboxStatus = "processed"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// Calendar side effects are decoupled from the record mutations that
// trigger them: the mutation enqueues one of these events, the worker
// executes it at-least-once.
const (
	EventCalendarDeadlineCreate = "calendar.deadline.create"
	EventCalendarStatusCreate   = "calendar.status.create"
	EventCalendarEventDelete    = "calendar.event.delete"
)

type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       OutboxStatus    `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	RetryAt      *time.Time      `db:"retry_at" json:"retry_at,omitempty"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

type CalendarDeadlineCreatePayload struct {
	CompanyID   uuid.UUID `json:"company_id"`
	UserID      uuid.UUID `json:"user_id"`
	CompanyName string    `json:"company_name"`
	Role        string    `json:"role"`
	Deadline    time.Time `json:"deadline"`
}

type CalendarStatusCreatePayload struct {
	StatusEventID uuid.UUID `json:"status_event_id"`
	UserID        uuid.UUID `json:"user_id"`
	CompanyName   string    `json:"company_name"`
	Title         string    `json:"title"`
	Date          time.Time `json:"date"`
}

type CalendarEventDeletePayload struct {
	UserID        uuid.UUID `json:"user_id"`
	GoogleEventID string    `json:"google_event_id"`
}
