package document

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/placementalarm/placement-api/internal/integration/google"
	"github.com/placementalarm/placement-api/internal/model"
	"github.com/placementalarm/placement-api/internal/repository"
	"github.com/placementalarm/placement-api/internal/service/profile"
	"github.com/placementalarm/placement-api/internal/storage"
	apperrors "github.com/placementalarm/placement-api/pkg/errors"
	"github.com/placementalarm/placement-api/pkg/logger"
)

const pdfType = "application/pdf"

type fakeDocumentRepo struct {
	repository.DocumentRepository

	created []*model.Document
	stored  *model.Document
	deleted []uuid.UUID
}

func (f *fakeDocumentRepo) Create(ctx context.Context, doc *model.Document) error {
	doc.ID = uuid.New()
	f.created = append(f.created, doc)
	return nil
}

func (f *fakeDocumentRepo) Get(ctx context.Context, userID, id uuid.UUID) (*model.Document, error) {
	if f.stored == nil {
		return nil, apperrors.NotFound("document")
	}
	return f.stored, nil
}

func (f *fakeDocumentRepo) List(ctx context.Context, userID uuid.UUID, companyID *uuid.UUID) ([]*model.Document, error) {
	if f.stored == nil {
		return nil, nil
	}
	return []*model.Document{f.stored}, nil
}

func (f *fakeDocumentRepo) Delete(ctx context.Context, userID, id uuid.UUID) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeStorage struct {
	headInfo   *storage.ObjectInfo
	headErr    error
	uploads    map[string][]byte
	deleted    []string
	presignErr error
}

func (f *fakeStorage) PresignUpload(ctx context.Context, key, contentType string) (string, error) {
	if f.presignErr != nil {
		return "", f.presignErr
	}
	return "https://bucket.example/" + key + "?sig=upload", nil
}

func (f *fakeStorage) PresignDownload(ctx context.Context, key string) (string, error) {
	if f.presignErr != nil {
		return "", f.presignErr
	}
	return "https://bucket.example/" + key + "?sig=download", nil
}

func (f *fakeStorage) Upload(ctx context.Context, key, contentType string, body []byte) error {
	if f.uploads == nil {
		f.uploads = make(map[string][]byte)
	}
	f.uploads[key] = body
	return nil
}

func (f *fakeStorage) Head(ctx context.Context, key string) (*storage.ObjectInfo, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	return f.headInfo, nil
}

func (f *fakeStorage) Delete(ctx context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

type fakeDrive struct {
	file *google.DriveFile
}

func (f *fakeDrive) Download(ctx context.Context, refreshToken, fileID string) (*google.DriveFile, error) {
	return f.file, nil
}

type fakeProfileService struct {
	profile.Service

	err error
}

func (f *fakeProfileService) CalendarToken(ctx context.Context, userID uuid.UUID) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "token", nil
}

func newTestService(repo *fakeDocumentRepo, store *fakeStorage, drive *fakeDrive, profiles *fakeProfileService) Service {
	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	return NewService(repo, store, drive, profiles, log)
}

func TestCreateUploadURL(t *testing.T) {
	userID := uuid.New()
	svc := newTestService(&fakeDocumentRepo{}, &fakeStorage{}, &fakeDrive{}, &fakeProfileService{})

	resp, err := svc.CreateUploadURL(context.Background(), userID, &model.CreateUploadURLRequest{
		FileName:    "resume.pdf",
		ContentType: pdfType,
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(resp.StorageKey, fmt.Sprintf("documents/%s/", userID)))
	assert.True(t, strings.HasSuffix(resp.StorageKey, "-resume.pdf"))
	assert.Contains(t, resp.UploadURL, resp.StorageKey)
}

func TestCreateUploadURLRejectsContentType(t *testing.T) {
	svc := newTestService(&fakeDocumentRepo{}, &fakeStorage{}, &fakeDrive{}, &fakeProfileService{})

	_, err := svc.CreateUploadURL(context.Background(), uuid.New(), &model.CreateUploadURLRequest{
		FileName:    "virus.exe",
		ContentType: "application/octet-stream",
	})

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrBadRequest, appErr.Code)
}

func TestRegisterVerifiesUploadedObject(t *testing.T) {
	userID := uuid.New()
	repo := &fakeDocumentRepo{}
	store := &fakeStorage{headInfo: &storage.ObjectInfo{Size: 1024, ContentType: pdfType}}
	svc := newTestService(repo, store, &fakeDrive{}, &fakeProfileService{})

	doc, err := svc.Register(context.Background(), userID, &model.RegisterDocumentRequest{
		StorageKey: fmt.Sprintf("documents/%s/abc-resume.pdf", userID),
		Name:       "resume.pdf",
		FileType:   pdfType,
		FileSize:   1024,
	})
	require.NoError(t, err)

	require.Len(t, repo.created, 1)
	// The verified object size wins over the client-reported one.
	assert.Equal(t, int64(1024), doc.FileSize)
}

func TestRegisterRejectsForeignStorageKey(t *testing.T) {
	svc := newTestService(&fakeDocumentRepo{}, &fakeStorage{}, &fakeDrive{}, &fakeProfileService{})

	_, err := svc.Register(context.Background(), uuid.New(), &model.RegisterDocumentRequest{
		StorageKey: fmt.Sprintf("documents/%s/abc-resume.pdf", uuid.New()),
		Name:       "resume.pdf",
		FileType:   pdfType,
		FileSize:   1024,
	})

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrForbidden, appErr.Code)
}

func TestRegisterRejectsOversizedObject(t *testing.T) {
	userID := uuid.New()
	store := &fakeStorage{headInfo: &storage.ObjectInfo{Size: maxFileSize + 1, ContentType: pdfType}}
	svc := newTestService(&fakeDocumentRepo{}, store, &fakeDrive{}, &fakeProfileService{})

	key := fmt.Sprintf("documents/%s/abc-resume.pdf", userID)
	_, err := svc.Register(context.Background(), userID, &model.RegisterDocumentRequest{
		StorageKey: key,
		Name:       "resume.pdf",
		FileType:   pdfType,
		FileSize:   1024,
	})

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrBadRequest, appErr.Code)
	// The oversized blob is discarded, not left orphaned.
	assert.Equal(t, []string{key}, store.deleted)
}

func TestRegisterRejectsMissingObject(t *testing.T) {
	userID := uuid.New()
	store := &fakeStorage{headErr: fmt.Errorf("not found")}
	svc := newTestService(&fakeDocumentRepo{}, store, &fakeDrive{}, &fakeProfileService{})

	_, err := svc.Register(context.Background(), userID, &model.RegisterDocumentRequest{
		StorageKey: fmt.Sprintf("documents/%s/abc-resume.pdf", userID),
		Name:       "resume.pdf",
		FileType:   pdfType,
		FileSize:   1024,
	})
	assert.Error(t, err)
}

func TestListAttachesDownloadURLs(t *testing.T) {
	userID := uuid.New()
	stored := &model.Document{UserID: userID, StorageKey: "documents/key", Name: "resume.pdf"}
	stored.ID = uuid.New()
	repo := &fakeDocumentRepo{stored: stored}
	svc := newTestService(repo, &fakeStorage{}, &fakeDrive{}, &fakeProfileService{})

	docs, err := svc.List(context.Background(), userID, nil)
	require.NoError(t, err)

	require.Len(t, docs, 1)
	assert.Contains(t, docs[0].URL, "sig=download")
}

func TestDeleteRemovesBlobBestEffort(t *testing.T) {
	userID := uuid.New()
	stored := &model.Document{UserID: userID, StorageKey: "documents/key"}
	stored.ID = uuid.New()
	repo := &fakeDocumentRepo{stored: stored}
	store := &fakeStorage{}
	svc := newTestService(repo, store, &fakeDrive{}, &fakeProfileService{})

	require.NoError(t, svc.Delete(context.Background(), userID, stored.ID))

	assert.Equal(t, []string{"documents/key"}, store.deleted)
	assert.Equal(t, []uuid.UUID{stored.ID}, repo.deleted)
}

func TestImportFromDrive(t *testing.T) {
	userID := uuid.New()
	repo := &fakeDocumentRepo{}
	store := &fakeStorage{}
	drive := &fakeDrive{file: &google.DriveFile{
		Name:     "resume.pdf",
		MimeType: pdfType,
		Content:  []byte("%PDF-1.7 content"),
	}}
	svc := newTestService(repo, store, drive, &fakeProfileService{})

	doc, err := svc.ImportFromDrive(context.Background(), userID, &model.DriveImportRequest{
		FileID:   "drive-file-1",
		FileName: "resume.pdf",
		MimeType: pdfType,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(len("%PDF-1.7 content")), doc.FileSize)
	assert.Len(t, store.uploads, 1)
	require.Len(t, repo.created, 1)
}

func TestImportFromDriveRequiresLinkedAccount(t *testing.T) {
	svc := newTestService(&fakeDocumentRepo{}, &fakeStorage{}, &fakeDrive{}, &fakeProfileService{err: profile.ErrNoCredential})

	_, err := svc.ImportFromDrive(context.Background(), uuid.New(), &model.DriveImportRequest{
		FileID:   "drive-file-1",
		FileName: "resume.pdf",
		MimeType: pdfType,
	})
	assert.Error(t, err)
}
