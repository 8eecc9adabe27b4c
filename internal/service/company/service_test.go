package company

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/placementalarm/placement-api/internal/model"
	"github.com/placementalarm/placement-api/internal/repository"
	apperrors "github.com/placementalarm/placement-api/pkg/errors"
	"github.com/placementalarm/placement-api/pkg/logger"
)

type fakeCompanyRepo struct {
	repository.CompanyRepository

	stored   *model.Company
	statuses []string
	eventIDs []*string
	deleted  bool
}

func (f *fakeCompanyRepo) Create(ctx context.Context, company *model.Company) error {
	company.ID = uuid.New()
	f.stored = company
	return nil
}

func (f *fakeCompanyRepo) Get(ctx context.Context, userID, id uuid.UUID) (*model.Company, error) {
	if f.stored == nil {
		return nil, apperrors.NotFound("company")
	}
	return f.stored, nil
}

func (f *fakeCompanyRepo) Update(ctx context.Context, company *model.Company) error {
	f.stored = company
	return nil
}

func (f *fakeCompanyRepo) UpdateStatus(ctx context.Context, userID, id uuid.UUID, status string) error {
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *fakeCompanyRepo) SetGoogleEventID(ctx context.Context, id uuid.UUID, eventID *string) error {
	f.eventIDs = append(f.eventIDs, eventID)
	return nil
}

func (f *fakeCompanyRepo) Delete(ctx context.Context, userID, id uuid.UUID) error {
	f.deleted = true
	return nil
}

type fakeEventRepo struct {
	repository.StatusEventRepository

	created        []*model.StatusEvent
	forCompany     []*model.StatusEvent
	deletedCompany bool
}

func (f *fakeEventRepo) Create(ctx context.Context, event *model.StatusEvent) error {
	event.ID = uuid.New()
	f.created = append(f.created, event)
	return nil
}

func (f *fakeEventRepo) ListForCompany(ctx context.Context, userID, companyID uuid.UUID) ([]*model.StatusEvent, error) {
	return f.forCompany, nil
}

func (f *fakeEventRepo) DeleteForCompany(ctx context.Context, companyID uuid.UUID) error {
	f.deletedCompany = true
	return nil
}

type fakeDocuments struct {
	docs    []*model.DocumentWithURL
	deleted []uuid.UUID
}

func (f *fakeDocuments) List(ctx context.Context, userID uuid.UUID, companyID *uuid.UUID) ([]*model.DocumentWithURL, error) {
	return f.docs, nil
}

func (f *fakeDocuments) Delete(ctx context.Context, userID, id uuid.UUID) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeOutbox struct {
	repository.OutboxRepository

	events []*model.OutboxEvent
}

func (f *fakeOutbox) Create(ctx context.Context, event *model.OutboxEvent) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeOutbox) typesEnqueued() []string {
	var types []string
	for _, e := range f.events {
		types = append(types, e.EventType)
	}
	return types
}

func newTestService(companies *fakeCompanyRepo, events *fakeEventRepo, outbox *fakeOutbox) Service {
	return newTestServiceWithDocs(companies, events, &fakeDocuments{}, outbox)
}

func newTestServiceWithDocs(companies *fakeCompanyRepo, events *fakeEventRepo, documents *fakeDocuments, outbox *fakeOutbox) Service {
	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	return NewService(companies, events, documents, outbox, log)
}

func validRequest() *model.CreateCompanyRequest {
	return &model.CreateCompanyRequest{
		Name:      "Acme",
		Role:      "SWE Intern",
		Package:   "12 LPA",
		DriveType: "On-Campus",
		Type:      "Intern",
	}
}

func TestCreateEnqueuesDeadlineEvent(t *testing.T) {
	companies := &fakeCompanyRepo{}
	outbox := &fakeOutbox{}
	svc := newTestService(companies, &fakeEventRepo{}, outbox)

	deadline := time.Now().Add(48 * time.Hour)
	req := validRequest()
	req.Deadline = &deadline

	created, err := svc.Create(context.Background(), uuid.New(), req)
	require.NoError(t, err)
	assert.Equal(t, model.StatusNotApplied, created.Status)

	require.Equal(t, []string{model.EventCalendarDeadlineCreate}, outbox.typesEnqueued())
	var payload model.CalendarDeadlineCreatePayload
	require.NoError(t, json.Unmarshal(outbox.events[0].Payload, &payload))
	assert.Equal(t, created.ID, payload.CompanyID)
	assert.Equal(t, "Acme", payload.CompanyName)
}

func TestCreateWithoutDeadlineSkipsCalendar(t *testing.T) {
	outbox := &fakeOutbox{}
	svc := newTestService(&fakeCompanyRepo{}, &fakeEventRepo{}, outbox)

	_, err := svc.Create(context.Background(), uuid.New(), validRequest())
	require.NoError(t, err)
	assert.Empty(t, outbox.events)
}

func TestCreateAppliedStatusSkipsCalendar(t *testing.T) {
	outbox := &fakeOutbox{}
	svc := newTestService(&fakeCompanyRepo{}, &fakeEventRepo{}, outbox)

	deadline := time.Now().Add(48 * time.Hour)
	applied := "Applied"
	req := validRequest()
	req.Deadline = &deadline
	req.Status = &applied

	_, err := svc.Create(context.Background(), uuid.New(), req)
	require.NoError(t, err)
	assert.Empty(t, outbox.events)
}

func TestCreateRejectsUnknownOptions(t *testing.T) {
	svc := newTestService(&fakeCompanyRepo{}, &fakeEventRepo{}, &fakeOutbox{})

	req := validRequest()
	req.DriveType = "Hybrid"
	_, err := svc.Create(context.Background(), uuid.New(), req)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrBadRequest, appErr.Code)
}

func TestUpdateDeadlineChangeRecreatesCalendarEvent(t *testing.T) {
	userID := uuid.New()
	oldDeadline := time.Now().Add(24 * time.Hour)
	googleEventID := "gcal-123"
	stored := &model.Company{
		UserID:        userID,
		Name:          "Acme",
		Role:          "SWE Intern",
		Status:        model.StatusNotApplied,
		Deadline:      &oldDeadline,
		GoogleEventID: &googleEventID,
	}
	stored.ID = uuid.New()
	companies := &fakeCompanyRepo{stored: stored}
	outbox := &fakeOutbox{}
	svc := newTestService(companies, &fakeEventRepo{}, outbox)

	newDeadline := oldDeadline.Add(12 * time.Hour)
	req := validRequest()
	req.Deadline = &newDeadline

	updated, err := svc.Update(context.Background(), userID, stored.ID, req)
	require.NoError(t, err)

	assert.Equal(t, []string{model.EventCalendarEventDelete, model.EventCalendarDeadlineCreate}, outbox.typesEnqueued())
	assert.Equal(t, []*string{nil}, companies.eventIDs)
	assert.Nil(t, updated.GoogleEventID)
}

func TestUpdateUnchangedDeadlineLeavesCalendarAlone(t *testing.T) {
	userID := uuid.New()
	deadline := time.Now().Add(24 * time.Hour)
	stored := &model.Company{
		UserID:   userID,
		Name:     "Acme",
		Role:     "SWE Intern",
		Status:   model.StatusNotApplied,
		Deadline: &deadline,
	}
	stored.ID = uuid.New()
	outbox := &fakeOutbox{}
	svc := newTestService(&fakeCompanyRepo{stored: stored}, &fakeEventRepo{}, outbox)

	same := deadline
	req := validRequest()
	req.Deadline = &same

	_, err := svc.Update(context.Background(), userID, stored.ID, req)
	require.NoError(t, err)
	assert.Empty(t, outbox.events)
}

func TestUpdateStatusRecordsTimelineEvent(t *testing.T) {
	userID := uuid.New()
	stored := &model.Company{UserID: userID, Name: "Acme", Status: model.StatusNotApplied}
	stored.ID = uuid.New()
	events := &fakeEventRepo{}
	svc := newTestService(&fakeCompanyRepo{stored: stored}, events, &fakeOutbox{})

	updated, err := svc.UpdateStatus(context.Background(), userID, stored.ID, &model.UpdateCompanyStatusRequest{Status: "Applied"})
	require.NoError(t, err)

	assert.Equal(t, "Applied", updated.Status)
	require.Len(t, events.created, 1)
	assert.Equal(t, "Applied", events.created[0].Status)
	assert.Equal(t, stored.ID, events.created[0].CompanyID)
}

func TestUpdateStatusRetiresDeadlineEvent(t *testing.T) {
	userID := uuid.New()
	googleEventID := "gcal-456"
	stored := &model.Company{
		UserID:        userID,
		Name:          "Acme",
		Status:        model.StatusNotApplied,
		GoogleEventID: &googleEventID,
	}
	stored.ID = uuid.New()
	companies := &fakeCompanyRepo{stored: stored}
	outbox := &fakeOutbox{}
	svc := newTestService(companies, &fakeEventRepo{}, outbox)

	_, err := svc.UpdateStatus(context.Background(), userID, stored.ID, &model.UpdateCompanyStatusRequest{Status: "Applied"})
	require.NoError(t, err)

	require.Equal(t, []string{model.EventCalendarEventDelete}, outbox.typesEnqueued())
	var payload model.CalendarEventDeletePayload
	require.NoError(t, json.Unmarshal(outbox.events[0].Payload, &payload))
	assert.Equal(t, "gcal-456", payload.GoogleEventID)
}

func TestUpdateStatusFutureRoundMirrorsToCalendar(t *testing.T) {
	userID := uuid.New()
	stored := &model.Company{UserID: userID, Name: "Acme", Status: "Applied"}
	stored.ID = uuid.New()
	outbox := &fakeOutbox{}
	svc := newTestService(&fakeCompanyRepo{stored: stored}, &fakeEventRepo{}, outbox)

	when := time.Now().Add(24 * time.Hour)
	_, err := svc.UpdateStatus(context.Background(), userID, stored.ID, &model.UpdateCompanyStatusRequest{
		Status:         "Interview",
		StatusDateTime: &when,
	})
	require.NoError(t, err)

	require.Equal(t, []string{model.EventCalendarStatusCreate}, outbox.typesEnqueued())
	var payload model.CalendarStatusCreatePayload
	require.NoError(t, json.Unmarshal(outbox.events[0].Payload, &payload))
	assert.Equal(t, "Interview", payload.Title)
	assert.Equal(t, "Acme", payload.CompanyName)
}

func TestUpdateStatusPastRoundNotMirrored(t *testing.T) {
	userID := uuid.New()
	stored := &model.Company{UserID: userID, Name: "Acme", Status: "Applied"}
	stored.ID = uuid.New()
	outbox := &fakeOutbox{}
	svc := newTestService(&fakeCompanyRepo{stored: stored}, &fakeEventRepo{}, outbox)

	when := time.Now().Add(-2 * time.Hour)
	_, err := svc.UpdateStatus(context.Background(), userID, stored.ID, &model.UpdateCompanyStatusRequest{
		Status:         "OA",
		StatusDateTime: &when,
	})
	require.NoError(t, err)
	assert.Empty(t, outbox.events)
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	svc := newTestService(&fakeCompanyRepo{}, &fakeEventRepo{}, &fakeOutbox{})

	_, err := svc.UpdateStatus(context.Background(), uuid.New(), uuid.New(), &model.UpdateCompanyStatusRequest{Status: "Ghosted"})

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrBadRequest, appErr.Code)
}

func TestDeleteCascadesCalendarCleanup(t *testing.T) {
	userID := uuid.New()
	companyEventID := "gcal-company"
	stored := &model.Company{UserID: userID, Name: "Acme", Status: model.StatusNotApplied, GoogleEventID: &companyEventID}
	stored.ID = uuid.New()

	timelineEventID := "gcal-timeline"
	timeline := &model.StatusEvent{CompanyID: stored.ID, UserID: userID, Status: "OA", GoogleEventID: &timelineEventID}
	timeline.ID = uuid.New()

	doc := &model.DocumentWithURL{}
	doc.ID = uuid.New()
	doc.UserID = userID

	companies := &fakeCompanyRepo{stored: stored}
	events := &fakeEventRepo{forCompany: []*model.StatusEvent{timeline}}
	documents := &fakeDocuments{docs: []*model.DocumentWithURL{doc}}
	outbox := &fakeOutbox{}
	svc := newTestServiceWithDocs(companies, events, documents, outbox)

	require.NoError(t, svc.Delete(context.Background(), userID, stored.ID))

	assert.True(t, companies.deleted)
	assert.True(t, events.deletedCompany)
	assert.Equal(t, []uuid.UUID{doc.ID}, documents.deleted)
	assert.Equal(t, []string{model.EventCalendarEventDelete, model.EventCalendarEventDelete}, outbox.typesEnqueued())
}

func TestGetMissingCompany(t *testing.T) {
	svc := newTestService(&fakeCompanyRepo{}, &fakeEventRepo{}, &fakeOutbox{})

	_, err := svc.Get(context.Background(), uuid.New(), uuid.New())
	assert.True(t, apperrors.IsNotFound(err))
}
