package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/placementalarm/placement-api/internal/model"
)

// All repository interfaces in one file. Every read and write on user
// owned records is scoped by user ID; a missing row and a row owned by
// someone else are indistinguishable to the caller.
type (
	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		UpdateLastLogin(ctx context.Context, id uuid.UUID) error
	}

	CompanyRepository interface {
		Create(ctx context.Context, company *model.Company) error
		Get(ctx context.Context, userID, id uuid.UUID) (*model.Company, error)
		List(ctx context.Context, userID uuid.UUID, filters *model.CompanyFilters) (*model.CompanyPage, error)
		Update(ctx context.Context, company *model.Company) error
		UpdateStatus(ctx context.Context, userID, id uuid.UUID, status string) error
		Delete(ctx context.Context, userID, id uuid.UUID) error
		SetGoogleEventID(ctx context.Context, id uuid.UUID, eventID *string) error
		ListDueForDeadlineReminder(ctx context.Context, from, to time.Time, maxSent int) ([]*model.Company, error)
		IncrementReminderCount(ctx context.Context, id uuid.UUID, expected int, at time.Time) (bool, error)
	}

	StatusEventRepository interface {
		Create(ctx context.Context, event *model.StatusEvent) error
		Get(ctx context.Context, userID, id uuid.UUID) (*model.StatusEvent, error)
		ListForCompany(ctx context.Context, userID, companyID uuid.UUID) ([]*model.StatusEvent, error)
		Delete(ctx context.Context, userID, id uuid.UUID) error
		DeleteForCompany(ctx context.Context, companyID uuid.UUID) error
		SetGoogleEventID(ctx context.Context, id uuid.UUID, eventID *string) error
		ListDueForFollowUp(ctx context.Context, from, to time.Time, maxSent int) ([]*model.StatusEventWithCompany, error)
		IncrementFollowUpCount(ctx context.Context, id uuid.UUID, expected int) (bool, error)
	}

	DocumentRepository interface {
		Create(ctx context.Context, doc *model.Document) error
		Get(ctx context.Context, userID, id uuid.UUID) (*model.Document, error)
		List(ctx context.Context, userID uuid.UUID, companyID *uuid.UUID) ([]*model.Document, error)
		Delete(ctx context.Context, userID, id uuid.UUID) error
	}

	NotificationRepository interface {
		Create(ctx context.Context, notification *model.Notification) error
		Get(ctx context.Context, userID, id uuid.UUID) (*model.Notification, error)
		ListUnread(ctx context.Context, userID uuid.UUID) ([]*model.Notification, error)
		MarkRead(ctx context.Context, userID, id uuid.UUID) error
		MarkAllRead(ctx context.Context, userID uuid.UUID) error
		ExistsByEmailID(ctx context.Context, userID uuid.UUID, emailID string) (bool, error)
	}

	ProfileRepository interface {
		Upsert(ctx context.Context, profile *model.Profile) error
		GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Profile, error)
		SavePushSubscription(ctx context.Context, userID uuid.UUID, subscription json.RawMessage) error
		ClearPushSubscription(ctx context.Context, userID uuid.UUID) error
		SaveCalendarToken(ctx context.Context, userID uuid.UUID, encryptedToken string) error
		SaveParsingCredentials(ctx context.Context, userID uuid.UUID, email, encryptedToken string) error
		SetParsingActive(ctx context.Context, userID uuid.UUID, active bool) error
		UpdateParsingSyncedAt(ctx context.Context, userID uuid.UUID, at time.Time) error
		ListParsingActive(ctx context.Context) ([]*model.Profile, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error
		ScheduleRetry(ctx context.Context, id uuid.UUID, errorMessage string, retryAt time.Time) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
