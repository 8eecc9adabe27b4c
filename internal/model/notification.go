package model

import (
	"encoding/json"

	"github.com/google/uuid"
)

type Notification struct {
	Base
	UserID   uuid.UUID       `db:"user_id" json:"user_id"`
	Message  string          `db:"message" json:"message"`
	Link     string          `db:"link" json:"link"`
	Read     bool            `db:"read" json:"read"`
	EmailID  *string         `db:"email_id" json:"email_id,omitempty"`
	Proposal json.RawMessage `db:"proposal" json:"proposal,omitempty"`
}

func (n *Notification) IsProposal() bool {
	return len(n.Proposal) > 0
}

// CompanyProposal is the structured announcement extracted from an inbox
// message. It stays opaque in the notification row until the user accepts
// it into a real company record.
type CompanyProposal struct {
	Name                string `json:"name"`
	Role                string `json:"role"`
	Package             string `json:"package"`
	Deadline            string `json:"deadline"`
	Type                string `json:"type"`
	DriveType           string `json:"driveType"`
	Link                string `json:"link"`
	EligibleBranch      string `json:"eligible-branch"`
	EligibilityCriteria string `json:"eligibility-criteria"`
}

// NotificationEvent is published to the message broker so connected
// clients can refresh their notification bell in real time.
type NotificationEvent struct {
	ID      uuid.UUID `json:"id"`
	UserID  uuid.UUID `json:"user_id"`
	Message string    `json:"message"`
	Link    string    `json:"link"`
}
