package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/placementalarm/placement-api/internal/model"
	"github.com/placementalarm/placement-api/internal/repository"
	"github.com/placementalarm/placement-api/pkg/logger"
	"github.com/placementalarm/placement-api/pkg/metrics"
)

var testMetrics = metrics.NewMetrics("worker_test")

type fakeOutboxRepo struct {
	repository.OutboxRepository

	pending   []*model.OutboxEvent
	processed []uuid.UUID
	failed    map[uuid.UUID]string
	retries   map[uuid.UUID]time.Time
}

func newFakeOutboxRepo(pending ...*model.OutboxEvent) *fakeOutboxRepo {
	return &fakeOutboxRepo{
		pending: pending,
		failed:  make(map[uuid.UUID]string),
		retries: make(map[uuid.UUID]time.Time),
	}
}

func (f *fakeOutboxRepo) GetPendingWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	return f.pending, nil
}

func (f *fakeOutboxRepo) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	f.processed = append(f.processed, id)
	return nil
}

func (f *fakeOutboxRepo) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	f.failed[id] = errorMessage
	return nil
}

func (f *fakeOutboxRepo) ScheduleRetry(ctx context.Context, id uuid.UUID, errorMessage string, retryAt time.Time) error {
	f.retries[id] = retryAt
	return nil
}

func pendingEvent(eventType string, retryCount int) *model.OutboxEvent {
	return &model.OutboxEvent{
		ID:         uuid.New(),
		EventType:  eventType,
		Payload:    json.RawMessage(`{"key":"value"}`),
		Status:     model.OutboxStatusPending,
		RetryCount: retryCount,
		CreatedAt:  time.Now(),
	}
}

func newProcessor(repo repository.OutboxRepository) *OutboxProcessor {
	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	return NewOutboxProcessor(repo, OutboxProcessorConfig{
		BatchSize:    10,
		PollInterval: time.Second,
		MaxAttempts:  3,
		RetryDelay:   30 * time.Second,
	}, log, testMetrics)
}

func TestProcessEventsDispatchesToHandler(t *testing.T) {
	event := pendingEvent("calendar.deadline.create", 0)
	repo := newFakeOutboxRepo(event)
	processor := newProcessor(repo)

	var got json.RawMessage
	processor.Register("calendar.deadline.create", func(ctx context.Context, payload json.RawMessage) error {
		got = payload
		return nil
	})

	require.NoError(t, processor.ProcessEvents(context.Background()))

	assert.JSONEq(t, `{"key":"value"}`, string(got))
	assert.Equal(t, []uuid.UUID{event.ID}, repo.processed)
}

func TestProcessEventsUnknownTypeMarkedFailed(t *testing.T) {
	event := pendingEvent("unknown.type", 0)
	repo := newFakeOutboxRepo(event)
	processor := newProcessor(repo)

	require.NoError(t, processor.ProcessEvents(context.Background()))

	assert.Contains(t, repo.failed[event.ID], "no handler registered")
	assert.Empty(t, repo.processed)
}

func TestProcessEventsHandlerErrorSchedulesRetry(t *testing.T) {
	event := pendingEvent("calendar.deadline.create", 1)
	repo := newFakeOutboxRepo(event)
	processor := newProcessor(repo)

	processor.Register("calendar.deadline.create", func(ctx context.Context, payload json.RawMessage) error {
		return errors.New("calendar unavailable")
	})

	before := time.Now()
	require.NoError(t, processor.ProcessEvents(context.Background()))

	retryAt, ok := repo.retries[event.ID]
	require.True(t, ok)
	// Second attempt backs off to RetryDelay << 1.
	assert.WithinDuration(t, before.Add(60*time.Second), retryAt, 2*time.Second)
	assert.Empty(t, repo.processed)
}

func TestProcessEventsExhaustedRetriesMarkedFailed(t *testing.T) {
	event := pendingEvent("calendar.deadline.create", 2)
	repo := newFakeOutboxRepo(event)
	processor := newProcessor(repo)

	processor.Register("calendar.deadline.create", func(ctx context.Context, payload json.RawMessage) error {
		return errors.New("calendar unavailable")
	})

	require.NoError(t, processor.ProcessEvents(context.Background()))

	assert.Equal(t, "calendar unavailable", repo.failed[event.ID])
	assert.Empty(t, repo.retries)
}

func TestNewOutboxProcessorValidatesConfig(t *testing.T) {
	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	assert.Panics(t, func() {
		NewOutboxProcessor(newFakeOutboxRepo(), OutboxProcessorConfig{
			PollInterval: time.Second,
			MaxAttempts:  3,
			RetryDelay:   time.Second,
		}, log, testMetrics)
	})
}
