package model

import (
	"time"

	"github.com/google/uuid"
)

// FollowUpStatuses are statuses that imply a scheduled event worth
// reminding about (and worth mirroring to the calendar).
var FollowUpStatuses = []string{
	"PPT",
	"OA",
	"GD",
	"Communication",
	"Technical round",
	"Interview",
}

func IsFollowUpStatus(status string) bool {
	for _, s := range FollowUpStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// StatusEvent is one entry in a company's application timeline. It is
// created whenever the company's status changes.
type StatusEvent struct {
	Base
	CompanyID             uuid.UUID `db:"company_id" json:"company_id"`
	UserID                uuid.UUID `db:"user_id" json:"user_id"`
	Status                string    `db:"status" json:"status"`
	EventDate             time.Time `db:"event_date" json:"event_date"`
	Notes                 *string   `db:"notes" json:"notes,omitempty"`
	GoogleEventID         *string   `db:"google_event_id" json:"google_event_id,omitempty"`
	FollowUpRemindersSent int       `db:"follow_up_reminders_sent" json:"follow_up_reminders_sent"`
}

// StatusEventWithCompany enriches a timeline event with its parent
// company's name and role for reminder messages.
type StatusEventWithCompany struct {
	StatusEvent
	CompanyName string `db:"company_name" json:"company_name"`
	CompanyRole string `db:"company_role" json:"company_role"`
}
