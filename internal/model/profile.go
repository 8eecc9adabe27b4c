package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Profile carries a user's contact details and the per-user credentials
// for the optional integrations. Refresh tokens are stored encrypted at
// rest; the repository hands back plaintext.
type Profile struct {
	Base
	UserID           uuid.UUID       `db:"user_id" json:"user_id"`
	Name             string          `db:"name" json:"name"`
	Email            string          `db:"email" json:"email"`
	PushSubscription json.RawMessage `db:"push_subscription" json:"push_subscription,omitempty"`

	// Google account used for calendar sync and drive import.
	GoogleRefreshToken *string `db:"google_refresh_token" json:"-"`

	// Dedicated mail-parsing account. May differ from the main account.
	ParsingEmail        *string    `db:"parsing_email" json:"parsing_email,omitempty"`
	ParsingRefreshToken *string    `db:"parsing_refresh_token" json:"-"`
	ParsingActive       bool       `db:"parsing_active" json:"parsing_active"`
	ParsingLastSyncedAt *time.Time `db:"parsing_last_synced_at" json:"parsing_last_synced_at,omitempty"`
}

func (p *Profile) HasCalendarCredential() bool {
	return p.GoogleRefreshToken != nil && *p.GoogleRefreshToken != ""
}

func (p *Profile) HasParsingCredential() bool {
	return p.ParsingActive && p.ParsingRefreshToken != nil && *p.ParsingRefreshToken != ""
}

type UpsertProfileRequest struct {
	Name  string `json:"name" binding:"required,max=200"`
	Email string `json:"email" binding:"required,email"`
}

type SavePushSubscriptionRequest struct {
	Subscription json.RawMessage `json:"subscription" binding:"required"`
}

type GoogleExchangeRequest struct {
	Code string `json:"code" binding:"required"`
	Kind string `json:"kind" binding:"required,oneof=calendar parsing"`
}
