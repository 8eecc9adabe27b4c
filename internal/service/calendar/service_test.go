package calendar

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/placementalarm/placement-api/internal/integration/google"
	"github.com/placementalarm/placement-api/internal/model"
	"github.com/placementalarm/placement-api/internal/repository"
	"github.com/placementalarm/placement-api/internal/service/profile"
	"github.com/placementalarm/placement-api/pkg/logger"
	"github.com/placementalarm/placement-api/pkg/metrics"
)

var testMetrics = metrics.NewMetrics("calendar_test")

type fakeCompanyRepo struct {
	repository.CompanyRepository

	eventIDs map[uuid.UUID]string
}

func (f *fakeCompanyRepo) SetGoogleEventID(ctx context.Context, id uuid.UUID, eventID *string) error {
	if f.eventIDs == nil {
		f.eventIDs = make(map[uuid.UUID]string)
	}
	f.eventIDs[id] = *eventID
	return nil
}

type fakeEventRepo struct {
	repository.StatusEventRepository

	eventIDs map[uuid.UUID]string
}

func (f *fakeEventRepo) SetGoogleEventID(ctx context.Context, id uuid.UUID, eventID *string) error {
	if f.eventIDs == nil {
		f.eventIDs = make(map[uuid.UUID]string)
	}
	f.eventIDs[id] = *eventID
	return nil
}

type fakeProfileService struct {
	profile.Service

	token string
	err   error
}

func (f *fakeProfileService) CalendarToken(ctx context.Context, userID uuid.UUID) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.token, nil
}

type fakeCalendarClient struct {
	inserted []*google.CalendarEvent
	deleted  []string
}

func (f *fakeCalendarClient) InsertEvent(ctx context.Context, refreshToken string, event *google.CalendarEvent) (string, error) {
	f.inserted = append(f.inserted, event)
	return "gcal-new", nil
}

func (f *fakeCalendarClient) DeleteEvent(ctx context.Context, refreshToken, eventID string) error {
	f.deleted = append(f.deleted, eventID)
	return nil
}

func newTestService(companies *fakeCompanyRepo, events *fakeEventRepo, profiles *fakeProfileService, client *fakeCalendarClient) *Service {
	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	return NewService(companies, events, profiles, client, log, testMetrics)
}

func TestHandleDeadlineCreate(t *testing.T) {
	companies := &fakeCompanyRepo{}
	client := &fakeCalendarClient{}
	svc := newTestService(companies, &fakeEventRepo{}, &fakeProfileService{token: "tok"}, client)

	companyID := uuid.New()
	deadline := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	payload, _ := json.Marshal(model.CalendarDeadlineCreatePayload{
		CompanyID:   companyID,
		UserID:      uuid.New(),
		CompanyName: "Acme",
		Role:        "SWE Intern",
		Deadline:    deadline,
	})

	require.NoError(t, svc.HandleDeadlineCreate(context.Background(), payload))

	require.Len(t, client.inserted, 1)
	assert.Equal(t, "Deadline: SWE Intern @ Acme", client.inserted[0].Summary)
	assert.Equal(t, deadline.Add(istOffset), client.inserted[0].Start)
	assert.Equal(t, deadline.Add(istOffset+eventDuration), client.inserted[0].End)
	assert.Equal(t, "gcal-new", companies.eventIDs[companyID])
}

func TestHandleDeadlineCreateNoCredentialSkips(t *testing.T) {
	client := &fakeCalendarClient{}
	svc := newTestService(&fakeCompanyRepo{}, &fakeEventRepo{}, &fakeProfileService{err: profile.ErrNoCredential}, client)

	payload, _ := json.Marshal(model.CalendarDeadlineCreatePayload{
		CompanyID: uuid.New(),
		UserID:    uuid.New(),
		Deadline:  time.Now(),
	})

	// Not an error: an unlinked calendar just means nothing to mirror,
	// and the event must not be retried.
	require.NoError(t, svc.HandleDeadlineCreate(context.Background(), payload))
	assert.Empty(t, client.inserted)
}

func TestHandleStatusCreate(t *testing.T) {
	events := &fakeEventRepo{}
	client := &fakeCalendarClient{}
	svc := newTestService(&fakeCompanyRepo{}, events, &fakeProfileService{token: "tok"}, client)

	eventID := uuid.New()
	payload, _ := json.Marshal(model.CalendarStatusCreatePayload{
		StatusEventID: eventID,
		UserID:        uuid.New(),
		CompanyName:   "Acme",
		Title:         "Interview",
		Date:          time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC),
	})

	require.NoError(t, svc.HandleStatusCreate(context.Background(), payload))

	require.Len(t, client.inserted, 1)
	assert.Equal(t, "Interview: Acme", client.inserted[0].Summary)
	assert.Equal(t, "gcal-new", events.eventIDs[eventID])
}

func TestHandleEventDelete(t *testing.T) {
	client := &fakeCalendarClient{}
	svc := newTestService(&fakeCompanyRepo{}, &fakeEventRepo{}, &fakeProfileService{token: "tok"}, client)

	payload, _ := json.Marshal(model.CalendarEventDeletePayload{
		UserID:        uuid.New(),
		GoogleEventID: "gcal-old",
	})

	require.NoError(t, svc.HandleEventDelete(context.Background(), payload))
	assert.Equal(t, []string{"gcal-old"}, client.deleted)
}

func TestHandleDeadlineCreateBadPayload(t *testing.T) {
	svc := newTestService(&fakeCompanyRepo{}, &fakeEventRepo{}, &fakeProfileService{token: "tok"}, &fakeCalendarClient{})
	assert.Error(t, svc.HandleDeadlineCreate(context.Background(), json.RawMessage("not json")))
}
