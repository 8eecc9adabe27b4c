package reminder

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/placementalarm/placement-api/internal/model"
	"github.com/placementalarm/placement-api/internal/repository"
	"github.com/placementalarm/placement-api/internal/service/notification"
	"github.com/placementalarm/placement-api/pkg/logger"
	"github.com/placementalarm/placement-api/pkg/metrics"
)

var testMetrics = metrics.NewMetrics("reminder_test")

type fakeCompanyRepo struct {
	repository.CompanyRepository

	due       []*model.Company
	listed    bool
	claims    []int
	claimLost bool
	claimErr  error
}

func (f *fakeCompanyRepo) ListDueForDeadlineReminder(ctx context.Context, from, to time.Time, maxSent int) ([]*model.Company, error) {
	f.listed = true
	return f.due, nil
}

func (f *fakeCompanyRepo) IncrementReminderCount(ctx context.Context, id uuid.UUID, expected int, at time.Time) (bool, error) {
	if f.claimErr != nil {
		return false, f.claimErr
	}
	if f.claimLost {
		return false, nil
	}
	f.claims = append(f.claims, expected)
	return true, nil
}

type fakeEventRepo struct {
	repository.StatusEventRepository

	due    []*model.StatusEventWithCompany
	claims []int
}

func (f *fakeEventRepo) ListDueForFollowUp(ctx context.Context, from, to time.Time, maxSent int) ([]*model.StatusEventWithCompany, error) {
	return f.due, nil
}

func (f *fakeEventRepo) IncrementFollowUpCount(ctx context.Context, id uuid.UUID, expected int) (bool, error) {
	f.claims = append(f.claims, expected)
	return true, nil
}

type fakeDispatcher struct {
	notification.Service

	messages []string
	links    []string
	err      error
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, userID uuid.UUID, message, link string) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, message)
	f.links = append(f.links, link)
	return nil
}

type fakeLocker struct {
	held     bool
	acquired []string
	released []string
}

func (f *fakeLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	if f.held {
		return false, nil
	}
	f.acquired = append(f.acquired, name)
	return true, nil
}

func (f *fakeLocker) Release(ctx context.Context, name string) error {
	f.released = append(f.released, name)
	return nil
}

func newTestService(companies *fakeCompanyRepo, events *fakeEventRepo, dispatcher *fakeDispatcher, locker *fakeLocker, now time.Time) *service {
	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	svc := NewService(companies, events, dispatcher, locker, time.Minute, log, testMetrics).(*service)
	svc.now = func() time.Time { return now }
	return svc
}

func dueCompany(deadline time.Time, sent int) *model.Company {
	c := &model.Company{
		UserID:        uuid.New(),
		Name:          "Acme",
		Role:          "SWE Intern",
		Status:        model.StatusNotApplied,
		Deadline:      &deadline,
		RemindersSent: sent,
	}
	c.ID = uuid.New()
	return c
}

func TestSweepDeadlinesFiresDueReminder(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	companies := &fakeCompanyRepo{due: []*model.Company{dueCompany(now.Add(3*time.Hour+30*time.Minute), 0)}}
	events := &fakeEventRepo{}
	dispatcher := &fakeDispatcher{}
	locker := &fakeLocker{}

	svc := newTestService(companies, events, dispatcher, locker, now)
	require.NoError(t, svc.SweepDeadlines(context.Background()))

	require.Len(t, dispatcher.messages, 1)
	assert.Contains(t, dispatcher.messages[0], "Acme")
	assert.Contains(t, dispatcher.messages[0], "SWE Intern")
	assert.Equal(t, []int{0}, companies.claims)
	assert.Equal(t, []string{"reminder:deadline"}, locker.acquired)
	assert.Equal(t, []string{"reminder:deadline"}, locker.released)
}

func TestSweepDeadlinesWaitsForNextRung(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	// One reminder already sent; the next rung fires at 3 hours out,
	// and the deadline is still 3.5 hours away.
	companies := &fakeCompanyRepo{due: []*model.Company{dueCompany(now.Add(3*time.Hour+30*time.Minute), 1)}}
	dispatcher := &fakeDispatcher{}

	svc := newTestService(companies, &fakeEventRepo{}, dispatcher, &fakeLocker{}, now)
	require.NoError(t, svc.SweepDeadlines(context.Background()))

	assert.Empty(t, dispatcher.messages)
	assert.Empty(t, companies.claims)
}

func TestSweepDeadlinesExhaustedLadder(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	companies := &fakeCompanyRepo{due: []*model.Company{dueCompany(now.Add(30*time.Minute), 4)}}
	dispatcher := &fakeDispatcher{}

	svc := newTestService(companies, &fakeEventRepo{}, dispatcher, &fakeLocker{}, now)
	require.NoError(t, svc.SweepDeadlines(context.Background()))

	assert.Empty(t, dispatcher.messages)
}

func TestSweepDeadlinesCatchesUpOneRungPerSweep(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	// Created 90 minutes before the deadline: the 4h, 3h and 2h rungs
	// are already in the past. Each sweep advances exactly one rung.
	company := dueCompany(now.Add(90*time.Minute), 0)
	companies := &fakeCompanyRepo{due: []*model.Company{company}}
	dispatcher := &fakeDispatcher{}

	svc := newTestService(companies, &fakeEventRepo{}, dispatcher, &fakeLocker{}, now)

	require.NoError(t, svc.SweepDeadlines(context.Background()))
	require.Len(t, dispatcher.messages, 1)
	assert.Equal(t, []int{0}, companies.claims)

	company.RemindersSent = 1
	require.NoError(t, svc.SweepDeadlines(context.Background()))
	require.Len(t, dispatcher.messages, 2)
	assert.Equal(t, []int{0, 1}, companies.claims)
}

func TestSweepDeadlinesLostClaimSkipsDispatch(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	companies := &fakeCompanyRepo{
		due:       []*model.Company{dueCompany(now.Add(time.Hour), 0)},
		claimLost: true,
	}
	dispatcher := &fakeDispatcher{}

	svc := newTestService(companies, &fakeEventRepo{}, dispatcher, &fakeLocker{}, now)
	require.NoError(t, svc.SweepDeadlines(context.Background()))

	assert.Empty(t, dispatcher.messages)
}

func TestSweepDeadlinesDispatchFailureStillSpendsReminder(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	companies := &fakeCompanyRepo{due: []*model.Company{dueCompany(now.Add(time.Hour), 0)}}
	dispatcher := &fakeDispatcher{err: errors.New("push gateway down")}

	svc := newTestService(companies, &fakeEventRepo{}, dispatcher, &fakeLocker{}, now)
	require.NoError(t, svc.SweepDeadlines(context.Background()))

	// The rung was claimed before dispatch, so the failure does not
	// cause a replay on the next sweep.
	assert.Equal(t, []int{0}, companies.claims)
}

func TestSweepDeadlinesLockHeldElsewhere(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	companies := &fakeCompanyRepo{due: []*model.Company{dueCompany(now.Add(time.Hour), 0)}}

	svc := newTestService(companies, &fakeEventRepo{}, &fakeDispatcher{}, &fakeLocker{held: true}, now)
	require.NoError(t, svc.SweepDeadlines(context.Background()))

	assert.False(t, companies.listed)
}

func TestSweepFollowUpsFiresEscalation(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	event := &model.StatusEventWithCompany{
		StatusEvent: model.StatusEvent{
			CompanyID:             uuid.New(),
			UserID:                uuid.New(),
			Status:                "OA",
			EventDate:             now.Add(19 * time.Hour),
			FollowUpRemindersSent: 3,
		},
		CompanyName: "Acme",
		CompanyRole: "SWE Intern",
	}
	event.StatusEvent.ID = uuid.New()
	events := &fakeEventRepo{due: []*model.StatusEventWithCompany{event}}
	dispatcher := &fakeDispatcher{}
	locker := &fakeLocker{}

	svc := newTestService(&fakeCompanyRepo{}, events, dispatcher, locker, now)
	require.NoError(t, svc.SweepFollowUps(context.Background()))

	require.Len(t, dispatcher.messages, 1)
	assert.Contains(t, dispatcher.messages[0], "OA")
	assert.Contains(t, dispatcher.messages[0], "Acme")
	assert.Equal(t, []int{3}, events.claims)
	assert.Equal(t, []string{"reminder:followup"}, locker.acquired)
}

func TestThresholdDue(t *testing.T) {
	tests := []struct {
		name      string
		sent      int
		hoursLeft float64
		want      bool
	}{
		{"first rung inside window", 0, 3.9, true},
		{"first rung exactly on threshold", 0, 4, true},
		{"first rung outside window", 0, 4.1, false},
		{"later rung not yet due", 2, 2.5, false},
		{"later rung due", 2, 1.8, true},
		{"ladder exhausted", 4, 0.5, false},
		{"negative counter", -1, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, thresholdDue(tt.sent, deadlineThresholds, tt.hoursLeft))
		})
	}
}

func TestFormatRemaining(t *testing.T) {
	assert.Equal(t, "about 4 hours", formatRemaining(3.8))
	assert.Equal(t, "about an hour", formatRemaining(1.1))
	assert.Equal(t, "45 minutes", formatRemaining(0.75))
}
