package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/placementalarm/placement-api/internal/model"
	"github.com/placementalarm/placement-api/internal/repository"
)

type profileRepository struct {
	BaseRepository
}

func NewProfileRepository(db *sqlx.DB) repository.ProfileRepository {
	return &profileRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *profileRepository) Upsert(ctx context.Context, profile *model.Profile) error {
	query := `
		INSERT INTO profiles (id, user_id, name, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE
		SET name = EXCLUDED.name, email = EXCLUDED.email, updated_at = EXCLUDED.updated_at
	`
	if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
		profile.CreatedAt = time.Now()
	}
	profile.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		profile.ID,
		profile.UserID,
		profile.Name,
		profile.Email,
		profile.CreatedAt,
		profile.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

func (r *profileRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Profile, error) {
	query := `SELECT * FROM profiles WHERE user_id = $1`
	var profile model.Profile
	err := r.db.GetContext(ctx, &profile, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("profile not found")
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &profile, nil
}

func (r *profileRepository) SavePushSubscription(ctx context.Context, userID uuid.UUID, subscription json.RawMessage) error {
	query := `UPDATE profiles SET push_subscription = $1, updated_at = $2 WHERE user_id = $3`
	result, err := r.db.ExecContext(ctx, query, subscription, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to save push subscription: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("profile not found")
	}
	return nil
}

func (r *profileRepository) ClearPushSubscription(ctx context.Context, userID uuid.UUID) error {
	query := `UPDATE profiles SET push_subscription = NULL, updated_at = $1 WHERE user_id = $2`
	_, err := r.db.ExecContext(ctx, query, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to clear push subscription: %w", err)
	}
	return nil
}

func (r *profileRepository) SaveCalendarToken(ctx context.Context, userID uuid.UUID, encryptedToken string) error {
	query := `UPDATE profiles SET google_refresh_token = $1, updated_at = $2 WHERE user_id = $3`
	result, err := r.db.ExecContext(ctx, query, encryptedToken, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to save calendar token: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("profile not found")
	}
	return nil
}

func (r *profileRepository) SaveParsingCredentials(ctx context.Context, userID uuid.UUID, email, encryptedToken string) error {
	query := `
		UPDATE profiles
		SET parsing_email = $1, parsing_refresh_token = $2, parsing_active = true, updated_at = $3
		WHERE user_id = $4
	`
	result, err := r.db.ExecContext(ctx, query, email, encryptedToken, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to save parsing credentials: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("profile not found")
	}
	return nil
}

func (r *profileRepository) SetParsingActive(ctx context.Context, userID uuid.UUID, active bool) error {
	query := `UPDATE profiles SET parsing_active = $1, updated_at = $2 WHERE user_id = $3`
	result, err := r.db.ExecContext(ctx, query, active, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to set parsing active: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("profile not found")
	}
	return nil
}

func (r *profileRepository) UpdateParsingSyncedAt(ctx context.Context, userID uuid.UUID, at time.Time) error {
	query := `UPDATE profiles SET parsing_last_synced_at = $1, updated_at = $1 WHERE user_id = $2`
	_, err := r.db.ExecContext(ctx, query, at, userID)
	if err != nil {
		return fmt.Errorf("failed to update parsing synced at: %w", err)
	}
	return nil
}

func (r *profileRepository) ListParsingActive(ctx context.Context) ([]*model.Profile, error) {
	query := `
		SELECT * FROM profiles
		WHERE parsing_active = true AND parsing_refresh_token IS NOT NULL
	`
	profiles := []*model.Profile{}
	if err := r.db.SelectContext(ctx, &profiles, query); err != nil {
		return nil, fmt.Errorf("failed to list parsing profiles: %w", err)
	}
	return profiles, nil
}
