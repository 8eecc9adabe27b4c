package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/placementalarm/placement-api/internal/model"
	"github.com/placementalarm/placement-api/internal/repository"
)

type statusEventRepository struct {
	BaseRepository
}

func NewStatusEventRepository(db *sqlx.DB) repository.StatusEventRepository {
	return &statusEventRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *statusEventRepository) Create(ctx context.Context, event *model.StatusEvent) error {
	query := `
		INSERT INTO status_events (
			id, company_id, user_id, status, event_date, notes,
			follow_up_reminders_sent, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	event.ID = uuid.New()
	event.CreatedAt = time.Now()
	event.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.CompanyID,
		event.UserID,
		event.Status,
		event.EventDate,
		event.Notes,
		event.FollowUpRemindersSent,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create status event: %w", err)
	}
	return nil
}

func (r *statusEventRepository) Get(ctx context.Context, userID, id uuid.UUID) (*model.StatusEvent, error) {
	query := `SELECT * FROM status_events WHERE id = $1 AND user_id = $2`
	var event model.StatusEvent
	err := r.db.GetContext(ctx, &event, query, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("status event not found")
		}
		return nil, fmt.Errorf("failed to get status event: %w", err)
	}
	return &event, nil
}

func (r *statusEventRepository) ListForCompany(ctx context.Context, userID, companyID uuid.UUID) ([]*model.StatusEvent, error) {
	query := `
		SELECT * FROM status_events
		WHERE company_id = $1 AND user_id = $2
		ORDER BY event_date ASC
	`
	events := []*model.StatusEvent{}
	if err := r.db.SelectContext(ctx, &events, query, companyID, userID); err != nil {
		return nil, fmt.Errorf("failed to list status events: %w", err)
	}
	return events, nil
}

func (r *statusEventRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	query := `DELETE FROM status_events WHERE id = $1 AND user_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete status event: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("status event not found")
	}
	return nil
}

func (r *statusEventRepository) DeleteForCompany(ctx context.Context, companyID uuid.UUID) error {
	query := `DELETE FROM status_events WHERE company_id = $1`
	_, err := r.db.ExecContext(ctx, query, companyID)
	if err != nil {
		return fmt.Errorf("failed to delete status events: %w", err)
	}
	return nil
}

func (r *statusEventRepository) SetGoogleEventID(ctx context.Context, id uuid.UUID, eventID *string) error {
	query := `UPDATE status_events SET google_event_id = $1, updated_at = $2 WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, eventID, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set google event id: %w", err)
	}
	return nil
}

func (r *statusEventRepository) ListDueForFollowUp(ctx context.Context, from, to time.Time, maxSent int) ([]*model.StatusEventWithCompany, error) {
	query := `
		SELECT se.*, c.name AS company_name, c.role AS company_role
		FROM status_events se
		JOIN companies c ON c.id = se.company_id
		WHERE se.status = ANY($1)
		AND se.event_date > $2 AND se.event_date <= $3
		AND se.follow_up_reminders_sent < $4
		ORDER BY se.event_date ASC
	`
	var events []*model.StatusEventWithCompany
	err := r.db.SelectContext(ctx, &events, query, pq.Array(model.FollowUpStatuses), from, to, maxSent)
	if err != nil {
		return nil, fmt.Errorf("failed to list events due for follow-up: %w", err)
	}
	return events, nil
}

func (r *statusEventRepository) IncrementFollowUpCount(ctx context.Context, id uuid.UUID, expected int) (bool, error) {
	query := `
		UPDATE status_events
		SET follow_up_reminders_sent = follow_up_reminders_sent + 1, updated_at = $1
		WHERE id = $2 AND follow_up_reminders_sent = $3
	`
	result, err := r.db.ExecContext(ctx, query, time.Now(), id, expected)
	if err != nil {
		return false, fmt.Errorf("failed to increment follow-up count: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}
