package model

import (
	"time"

	"github.com/google/uuid"
)

// StatusNotApplied is the sentinel status a company starts in. Deadline
// reminders and the deadline calendar event only exist while a company
// holds this status.
const StatusNotApplied = "Not Applied"

// StatusOptions is the full application pipeline.
var StatusOptions = []string{
	"Not Applied",
	"Applied",
	"Not Shortlisted",
	"Shortlisted",
	"PPT",
	"OA",
	"OA not clear",
	"GD",
	"Communication",
	"Technical round",
	"Interview",
	"Offer",
	"Rejected",
}

var DriveTypeOptions = []string{"On-Campus", "Off-Campus"}

var TypeOptions = []string{"Intern", "Intern + FTE", "Intern + PPO", "FTE", "Hackathon"}

type Company struct {
	Base
	UserID         uuid.UUID  `db:"user_id" json:"user_id"`
	Name           string     `db:"name" json:"name"`
	Role           string     `db:"role" json:"role"`
	Package        string     `db:"package" json:"package"`
	DriveType      string     `db:"drive_type" json:"drive_type"`
	Type           string     `db:"type" json:"type"`
	Link           *string    `db:"link" json:"link,omitempty"`
	Notes          *string    `db:"notes" json:"notes,omitempty"`
	Status         string     `db:"status" json:"status"`
	Deadline       *time.Time `db:"deadline" json:"deadline,omitempty"`
	GoogleEventID  *string    `db:"google_event_id" json:"google_event_id,omitempty"`
	RemindersSent  int        `db:"reminders_sent" json:"reminders_sent"`
	LastReminderAt *time.Time `db:"last_reminder_at" json:"last_reminder_at,omitempty"`
}

type CreateCompanyRequest struct {
	Name      string     `json:"name" binding:"required,max=200"`
	Role      string     `json:"role" binding:"required,max=200"`
	Package   string     `json:"package" binding:"required,max=100"`
	DriveType string     `json:"drive_type" binding:"required,drive_type"`
	Type      string     `json:"type" binding:"required,company_type"`
	Link      *string    `json:"link"`
	Status    *string    `json:"status" binding:"omitempty,company_status"`
	Deadline  *time.Time `json:"deadline"`
}

type UpdateCompanyStatusRequest struct {
	Status         string     `json:"status" binding:"required,company_status"`
	StatusDateTime *time.Time `json:"status_date_time"`
	Notes          *string    `json:"notes" binding:"omitempty,max=2000"`
}

type CompanyFilters struct {
	Search    string
	Status    string
	DriveType string
	Limit     int
	Offset    int
}

type CompanyPage struct {
	Companies []*Company `json:"companies"`
	Total     int        `json:"total"`
	Limit     int        `json:"limit"`
	Offset    int        `json:"offset"`
}
