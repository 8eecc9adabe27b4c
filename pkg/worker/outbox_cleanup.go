package worker

import (
	"context"
	"time"

	"github.com/placementalarm/placement-api/internal/repository"
	"github.com/placementalarm/placement-api/pkg/logger"
)

type OutboxCleanupConfig struct {
	Interval  time.Duration
	Retention time.Duration
}

// OutboxCleanupWorker prunes processed outbox events past retention so
// the table does not grow without bound.
type OutboxCleanupWorker struct {
	repo   repository.OutboxRepository
	config OutboxCleanupConfig
	logger *logger.Logger
}

func NewOutboxCleanupWorker(repo repository.OutboxRepository, config OutboxCleanupConfig, logger *logger.Logger) *OutboxCleanupWorker {
	if config.Interval <= 0 {
		config.Interval = time.Hour
	}
	if config.Retention <= 0 {
		config.Retention = 7 * 24 * time.Hour
	}
	return &OutboxCleanupWorker{
		repo:   repo,
		config: config,
		logger: logger,
	}
}

func (w *OutboxCleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	w.logger.Info("Starting outbox cleanup worker")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Shutting down outbox cleanup worker")
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-w.config.Retention)
			deleted, err := w.repo.DeleteProcessedBefore(ctx, cutoff)
			if err != nil {
				w.logger.Error(err, "Failed to clean up outbox events")
				continue
			}
			if deleted > 0 {
				w.logger.Info("Cleaned up outbox events", "deleted", deleted)
			}
		}
	}
}
