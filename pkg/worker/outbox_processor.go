package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/placementalarm/placement-api/internal/model"
	"github.com/placementalarm/placement-api/internal/repository"
	"github.com/placementalarm/placement-api/pkg/logger"
	"github.com/placementalarm/placement-api/pkg/metrics"
)

// Handler executes the side effect for one outbox event type.
type Handler func(ctx context.Context, payload json.RawMessage) error

type OutboxProcessorConfig struct {
	BatchSize    int
	PollInterval time.Duration
	MaxAttempts  int
	RetryDelay   time.Duration
}

// OutboxProcessor drains pending outbox events and dispatches them to
// registered handlers. Delivery is at-least-once: a handler that
// succeeds but whose status update fails will run again.
type OutboxProcessor struct {
	repo     repository.OutboxRepository
	handlers map[string]Handler
	config   OutboxProcessorConfig
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewOutboxProcessor(
	repo repository.OutboxRepository,
	config OutboxProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *OutboxProcessor {
	if config.BatchSize <= 0 {
		panic("BatchSize must be greater than 0")
	}
	if config.PollInterval <= 0 {
		panic("PollInterval must be greater than 0")
	}
	if config.MaxAttempts <= 0 {
		panic("MaxAttempts must be greater than 0")
	}
	if config.RetryDelay <= 0 {
		panic("RetryDelay must be greater than 0")
	}

	return &OutboxProcessor{
		repo:     repo,
		handlers: make(map[string]Handler),
		config:   config,
		logger:   logger,
		metrics:  metrics,
	}
}

// Register binds a handler to an event type. Must be called before Start.
func (p *OutboxProcessor) Register(eventType string, handler Handler) {
	p.handlers[eventType] = handler
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting outbox processor")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down outbox processor")
			return
		case <-ticker.C:
			if err := p.ProcessEvents(ctx); err != nil {
				p.logger.Error(err, "Failed to process events")
			}
		}
	}
}

func (p *OutboxProcessor) ProcessEvents(ctx context.Context) error {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	events, err := p.repo.GetPendingWithLock(ctx, p.config.BatchSize)
	if err != nil {
		p.metrics.DatabaseOperations.WithLabelValues("get_pending_events", "error").Inc()
		return fmt.Errorf("failed to get pending events: %w", err)
	}
	p.metrics.DatabaseOperations.WithLabelValues("get_pending_events", "success").Inc()

	for _, event := range events {
		if err := p.processEvent(ctx, event); err != nil {
			p.logger.Error(err, "Failed to process event",
				"event_id", event.ID.String(),
				"event_type", event.EventType)
		}
	}

	return nil
}

func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) error {
	handler, ok := p.handlers[event.EventType]
	if !ok {
		errStr := fmt.Sprintf("no handler registered for %s", event.EventType)
		p.metrics.OutboxEventsFailed.Inc()
		return p.repo.MarkFailed(ctx, event.ID, errStr)
	}

	if err := handler(ctx, event.Payload); err != nil {
		if event.RetryCount+1 >= p.config.MaxAttempts {
			p.metrics.OutboxEventsFailed.Inc()
			if updateErr := p.repo.MarkFailed(ctx, event.ID, err.Error()); updateErr != nil {
				p.logger.Error(updateErr, "Failed to update event status")
			}
			return err
		}

		retryAt := time.Now().Add(p.config.RetryDelay << event.RetryCount)
		if updateErr := p.repo.ScheduleRetry(ctx, event.ID, err.Error(), retryAt); updateErr != nil {
			p.logger.Error(updateErr, "Failed to schedule retry")
		}
		return err
	}

	p.metrics.OutboxEventsProcessed.Inc()
	if err := p.repo.MarkProcessed(ctx, event.ID); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}
