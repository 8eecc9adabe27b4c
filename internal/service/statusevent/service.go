package statusevent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/placementalarm/placement-api/internal/model"
	"github.com/placementalarm/placement-api/internal/repository"
	"github.com/placementalarm/placement-api/pkg/errors"
	"github.com/placementalarm/placement-api/pkg/logger"
)

type Service interface {
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

type service struct {
	events repository.StatusEventRepository
	outbox repository.OutboxRepository
	logger *logger.Logger
}

func NewService(events repository.StatusEventRepository, outbox repository.OutboxRepository, logger *logger.Logger) Service {
	return &service{
		events: events,
		outbox: outbox,
		logger: logger,
	}
}

// Delete removes a timeline entry and retires its calendar mirror.
func (s *service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	event, err := s.events.Get(ctx, userID, id)
	if err != nil {
		return errors.NotFound("status event")
	}

	if event.GoogleEventID != nil {
		payload, err := json.Marshal(model.CalendarEventDeletePayload{
			UserID:        userID,
			GoogleEventID: *event.GoogleEventID,
		})
		if err != nil {
			s.logger.Error(err, "failed to marshal calendar payload")
		} else {
			err := s.outbox.Create(ctx, &model.OutboxEvent{
				EventType: model.EventCalendarEventDelete,
				Payload:   payload,
			})
			if err != nil {
				s.logger.Error(err, "failed to enqueue outbox event")
			}
		}
	}

	if err := s.events.Delete(ctx, userID, id); err != nil {
		return fmt.Errorf("failed to delete status event: %w", err)
	}
	return nil
}
