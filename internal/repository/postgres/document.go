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

type documentRepository struct {
	BaseRepository
}

func NewDocumentRepository(db *sqlx.DB) repository.DocumentRepository {
	return &documentRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *documentRepository) Create(ctx context.Context, doc *model.Document) error {
	query := `
		INSERT INTO documents (
			id, user_id, company_id, storage_key, name, file_type, file_size,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	doc.ID = uuid.New()
	doc.CreatedAt = time.Now()
	doc.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		doc.ID,
		doc.UserID,
		doc.CompanyID,
		doc.StorageKey,
		doc.Name,
		doc.FileType,
		doc.FileSize,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

func (r *documentRepository) Get(ctx context.Context, userID, id uuid.UUID) (*model.Document, error) {
	query := `SELECT * FROM documents WHERE id = $1 AND user_id = $2`
	var doc model.Document
	err := r.db.GetContext(ctx, &doc, query, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("document not found")
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

func (r *documentRepository) List(ctx context.Context, userID uuid.UUID, companyID *uuid.UUID) ([]*model.Document, error) {
	query := `SELECT * FROM documents WHERE user_id = $1`
	args := []interface{}{userID}
	if companyID != nil {
		query += ` AND company_id = $2`
		args = append(args, *companyID)
	}
	query += ` ORDER BY created_at DESC`

	docs := []*model.Document{}
	if err := r.db.SelectContext(ctx, &docs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

func (r *documentRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	query := `DELETE FROM documents WHERE id = $1 AND user_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("document not found")
	}
	return nil
}
