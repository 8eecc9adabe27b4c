package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/placementalarm/placement-api/internal/model"
	"github.com/placementalarm/placement-api/internal/repository"
)

type companyRepository struct {
	BaseRepository
}

func NewCompanyRepository(db *sqlx.DB) repository.CompanyRepository {
	return &companyRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *companyRepository) Create(ctx context.Context, company *model.Company) error {
	query := `
		INSERT INTO companies (
			id, user_id, name, role, package, drive_type, type, link, notes,
			status, deadline, reminders_sent, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	company.ID = uuid.New()
	company.CreatedAt = time.Now()
	company.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		company.ID,
		company.UserID,
		company.Name,
		company.Role,
		company.Package,
		company.DriveType,
		company.Type,
		company.Link,
		company.Notes,
		company.Status,
		company.Deadline,
		company.RemindersSent,
		company.CreatedAt,
		company.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create company: %w", err)
	}
	return nil
}

func (r *companyRepository) Get(ctx context.Context, userID, id uuid.UUID) (*model.Company, error) {
	query := `SELECT * FROM companies WHERE id = $1 AND user_id = $2`
	var company model.Company
	err := r.db.GetContext(ctx, &company, query, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("company not found")
		}
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return &company, nil
}

func (r *companyRepository) List(ctx context.Context, userID uuid.UUID, filters *model.CompanyFilters) (*model.CompanyPage, error) {
	if filters == nil {
		filters = &model.CompanyFilters{}
	}
	if filters.Limit <= 0 || filters.Limit > 100 {
		filters.Limit = 50
	}

	where := `WHERE user_id = $1`
	args := []interface{}{userID}

	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		where += fmt.Sprintf(" AND (name ILIKE $%d OR role ILIKE $%d)", len(args), len(args))
	}
	if filters.Status != "" {
		args = append(args, filters.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filters.DriveType != "" {
		args = append(args, filters.DriveType)
		where += fmt.Sprintf(" AND drive_type = $%d", len(args))
	}

	// Count and page read the same snapshot so the total cannot drift
	// from the rows returned.
	var total int
	companies := []*model.Company{}
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &total, `SELECT COUNT(*) FROM companies `+where, args...); err != nil {
			return fmt.Errorf("failed to count companies: %w", err)
		}

		args = append(args, filters.Limit, filters.Offset)
		query := fmt.Sprintf(
			`SELECT * FROM companies %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
			where, len(args)-1, len(args),
		)
		if err := tx.SelectContext(ctx, &companies, query, args...); err != nil {
			return fmt.Errorf("failed to list companies: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &model.CompanyPage{
		Companies: companies,
		Total:     total,
		Limit:     filters.Limit,
		Offset:    filters.Offset,
	}, nil
}

func (r *companyRepository) Update(ctx context.Context, company *model.Company) error {
	query := `
		UPDATE companies
		SET name = $1, role = $2, package = $3, drive_type = $4, type = $5,
			link = $6, notes = $7, deadline = $8, updated_at = $9
		WHERE id = $10 AND user_id = $11
	`
	result, err := r.db.ExecContext(ctx, query,
		company.Name,
		company.Role,
		company.Package,
		company.DriveType,
		company.Type,
		company.Link,
		company.Notes,
		company.Deadline,
		time.Now(),
		company.ID,
		company.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update company: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("company not found")
	}
	return nil
}

func (r *companyRepository) UpdateStatus(ctx context.Context, userID, id uuid.UUID, status string) error {
	query := `UPDATE companies SET status = $1, updated_at = $2 WHERE id = $3 AND user_id = $4`
	result, err := r.db.ExecContext(ctx, query, status, time.Now(), id, userID)
	if err != nil {
		return fmt.Errorf("failed to update company status: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("company not found")
	}
	return nil
}

func (r *companyRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	query := `DELETE FROM companies WHERE id = $1 AND user_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete company: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("company not found")
	}
	return nil
}

func (r *companyRepository) SetGoogleEventID(ctx context.Context, id uuid.UUID, eventID *string) error {
	query := `UPDATE companies SET google_event_id = $1, updated_at = $2 WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, eventID, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set google event id: %w", err)
	}
	return nil
}

func (r *companyRepository) ListDueForDeadlineReminder(ctx context.Context, from, to time.Time, maxSent int) ([]*model.Company, error) {
	query := `
		SELECT * FROM companies
		WHERE status = $1
		AND deadline IS NOT NULL
		AND deadline > $2 AND deadline <= $3
		AND reminders_sent < $4
		ORDER BY deadline ASC
	`
	var companies []*model.Company
	err := r.db.SelectContext(ctx, &companies, query, model.StatusNotApplied, from, to, maxSent)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies due for reminder: %w", err)
	}
	return companies, nil
}

// IncrementReminderCount bumps the counter only if it still holds the
// expected value, so two concurrent sweeps cannot double-send.
func (r *companyRepository) IncrementReminderCount(ctx context.Context, id uuid.UUID, expected int, at time.Time) (bool, error) {
	query := `
		UPDATE companies
		SET reminders_sent = reminders_sent + 1, last_reminder_at = $1, updated_at = $1
		WHERE id = $2 AND reminders_sent = $3
	`
	result, err := r.db.ExecContext(ctx, query, at, id, expected)
	if err != nil {
		return false, fmt.Errorf("failed to increment reminder count: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}
