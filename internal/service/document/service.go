package document

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/placementalarm/placement-api/internal/integration/google"
	"github.com/placementalarm/placement-api/internal/model"
	"github.com/placementalarm/placement-api/internal/repository"
	"github.com/placementalarm/placement-api/internal/service/profile"
	"github.com/placementalarm/placement-api/internal/storage"
	"github.com/placementalarm/placement-api/pkg/errors"
	"github.com/placementalarm/placement-api/pkg/logger"
)

// maxFileSize caps uploads at 10 MiB.
const maxFileSize = 10 << 20

var allowedTypes = map[string]bool{
	"application/pdf": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}

type Service interface {
	CreateUploadURL(ctx context.Context, userID uuid.UUID, req *model.CreateUploadURLRequest) (*model.UploadURLResponse, error)
	Register(ctx context.Context, userID uuid.UUID, req *model.RegisterDocumentRequest) (*model.Document, error)
	List(ctx context.Context, userID uuid.UUID, companyID *uuid.UUID) ([]*model.DocumentWithURL, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	ImportFromDrive(ctx context.Context, userID uuid.UUID, req *model.DriveImportRequest) (*model.Document, error)
}

type service struct {
	repo     repository.DocumentRepository
	store    storage.Storage
	drive    google.DriveClient
	profiles profile.Service
	logger   *logger.Logger
}

func NewService(
	repo repository.DocumentRepository,
	store storage.Storage,
	drive google.DriveClient,
	profiles profile.Service,
	logger *logger.Logger,
) Service {
	return &service{
		repo:     repo,
		store:    store,
		drive:    drive,
		profiles: profiles,
		logger:   logger,
	}
}

// CreateUploadURL is phase one of the upload handshake: the client gets
// a presigned PUT and uploads directly, the record row comes later.
func (s *service) CreateUploadURL(ctx context.Context, userID uuid.UUID, req *model.CreateUploadURLRequest) (*model.UploadURLResponse, error) {
	if !allowedTypes[req.ContentType] {
		return nil, errors.BadRequest(fmt.Sprintf("unsupported content type %q", req.ContentType), nil)
	}

	key := storageKey(userID, req.FileName)
	url, err := s.store.PresignUpload(ctx, key, req.ContentType)
	if err != nil {
		return nil, fmt.Errorf("failed to presign upload: %w", err)
	}

	return &model.UploadURLResponse{
		UploadURL:  url,
		StorageKey: key,
	}, nil
}

// Register is phase two: the client confirms the upload and the server
// verifies the object before creating the record.
func (s *service) Register(ctx context.Context, userID uuid.UUID, req *model.RegisterDocumentRequest) (*model.Document, error) {
	if !allowedTypes[req.FileType] {
		return nil, errors.BadRequest(fmt.Sprintf("unsupported content type %q", req.FileType), nil)
	}
	if req.FileSize > maxFileSize {
		return nil, errors.BadRequest("file exceeds 10 MiB limit", nil)
	}
	if !strings.HasPrefix(req.StorageKey, keyPrefix(userID)) {
		return nil, errors.Forbidden("storage key does not belong to user")
	}

	info, err := s.store.Head(ctx, req.StorageKey)
	if err != nil {
		return nil, errors.BadRequest("uploaded object not found", err)
	}
	if info.Size > maxFileSize {
		s.discard(ctx, req.StorageKey)
		return nil, errors.BadRequest("uploaded object exceeds 10 MiB limit", nil)
	}
	if info.ContentType != "" && !allowedTypes[info.ContentType] {
		s.discard(ctx, req.StorageKey)
		return nil, errors.BadRequest(fmt.Sprintf("uploaded object has unsupported content type %q", info.ContentType), nil)
	}

	doc := &model.Document{
		UserID:     userID,
		CompanyID:  req.CompanyID,
		StorageKey: req.StorageKey,
		Name:       req.Name,
		FileType:   req.FileType,
		FileSize:   info.Size,
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to register document: %w", err)
	}
	return doc, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, companyID *uuid.UUID) ([]*model.DocumentWithURL, error) {
	docs, err := s.repo.List(ctx, userID, companyID)
	if err != nil {
		return nil, err
	}

	out := make([]*model.DocumentWithURL, 0, len(docs))
	for _, doc := range docs {
		url, err := s.store.PresignDownload(ctx, doc.StorageKey)
		if err != nil {
			s.logger.Error(err, "failed to presign download", "document_id", doc.ID.String())
			continue
		}
		out = append(out, &model.DocumentWithURL{Document: *doc, URL: url})
	}
	return out, nil
}

func (s *service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	doc, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return errors.NotFound("document")
	}

	if err := s.store.Delete(ctx, doc.StorageKey); err != nil {
		// The row is the source of truth; an orphaned blob is harmless.
		s.logger.Error(err, "failed to delete stored object", "key", doc.StorageKey)
	}

	return s.repo.Delete(ctx, userID, id)
}

// ImportFromDrive pulls a file from the user's linked Google Drive into
// the document store.
func (s *service) ImportFromDrive(ctx context.Context, userID uuid.UUID, req *model.DriveImportRequest) (*model.Document, error) {
	if !allowedTypes[req.MimeType] {
		return nil, errors.BadRequest(fmt.Sprintf("unsupported content type %q", req.MimeType), nil)
	}

	token, err := s.profiles.CalendarToken(ctx, userID)
	if err != nil {
		return nil, errors.BadRequest("google account not linked", err)
	}

	file, err := s.drive.Download(ctx, token, req.FileID)
	if err != nil {
		return nil, fmt.Errorf("failed to download drive file: %w", err)
	}
	if int64(len(file.Content)) > maxFileSize {
		return nil, errors.BadRequest("file exceeds 10 MiB limit", nil)
	}
	if !allowedTypes[file.MimeType] {
		return nil, errors.BadRequest(fmt.Sprintf("unsupported content type %q", file.MimeType), nil)
	}

	key := storageKey(userID, req.FileName)
	if err := s.store.Upload(ctx, key, file.MimeType, file.Content); err != nil {
		return nil, fmt.Errorf("failed to store drive file: %w", err)
	}

	doc := &model.Document{
		UserID:     userID,
		CompanyID:  req.CompanyID,
		StorageKey: key,
		Name:       req.FileName,
		FileType:   file.MimeType,
		FileSize:   int64(len(file.Content)),
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to register document: %w", err)
	}
	return doc, nil
}

// discard removes an object that failed verification.
func (s *service) discard(ctx context.Context, key string) {
	if err := s.store.Delete(ctx, key); err != nil {
		s.logger.Error(err, "failed to delete rejected object", "key", key)
	}
}

func keyPrefix(userID uuid.UUID) string {
	return fmt.Sprintf("documents/%s/", userID)
}

func storageKey(userID uuid.UUID, fileName string) string {
	base := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	return fmt.Sprintf("%s%s-%s", keyPrefix(userID), uuid.New(), base)
}
