package model

import (
	"github.com/google/uuid"
)

type Document struct {
	Base
	UserID     uuid.UUID  `db:"user_id" json:"user_id"`
	CompanyID  *uuid.UUID `db:"company_id" json:"company_id,omitempty"`
	StorageKey string     `db:"storage_key" json:"-"`
	Name       string     `db:"name" json:"name"`
	FileType   string     `db:"file_type" json:"file_type"`
	FileSize   int64      `db:"file_size" json:"file_size"`
}

// DocumentWithURL is a document plus a short-lived presigned download URL.
type DocumentWithURL struct {
	Document
	URL string `json:"url"`
}

type CreateUploadURLRequest struct {
	FileName    string `json:"file_name" binding:"required,max=255"`
	ContentType string `json:"content_type" binding:"required"`
}

type UploadURLResponse struct {
	UploadURL  string `json:"upload_url"`
	StorageKey string `json:"storage_key"`
}

type RegisterDocumentRequest struct {
	StorageKey string     `json:"storage_key" binding:"required"`
	Name       string     `json:"name" binding:"required,max=255"`
	FileType   string     `json:"file_type" binding:"required"`
	FileSize   int64      `json:"file_size" binding:"required,gt=0"`
	CompanyID  *uuid.UUID `json:"company_id"`
}

type DriveImportRequest struct {
	FileID    string     `json:"file_id" binding:"required"`
	FileName  string     `json:"file_name" binding:"required,max=255"`
	MimeType  string     `json:"mime_type" binding:"required"`
	CompanyID *uuid.UUID `json:"company_id"`
}
