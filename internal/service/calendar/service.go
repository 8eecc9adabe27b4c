package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/placementalarm/placement-api/internal/integration/google"
	"github.com/placementalarm/placement-api/internal/model"
	"github.com/placementalarm/placement-api/internal/repository"
	"github.com/placementalarm/placement-api/internal/service/profile"
	"github.com/placementalarm/placement-api/pkg/logger"
	"github.com/placementalarm/placement-api/pkg/metrics"
	"github.com/placementalarm/placement-api/pkg/worker"
)

// istOffset shifts stored UTC instants to Indian Standard Time before
// they land on the calendar.
const istOffset = 5*time.Hour + 30*time.Minute

const eventDuration = time.Hour

// Service mirrors deadline and round dates into the user's Google
// Calendar by consuming outbox events.
type Service struct {
	companies repository.CompanyRepository
	events    repository.StatusEventRepository
	profiles  profile.Service
	client    google.CalendarClient
	logger    *logger.Logger
	metrics   *metrics.Metrics
}

func NewService(
	companies repository.CompanyRepository,
	events repository.StatusEventRepository,
	profiles profile.Service,
	client google.CalendarClient,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Service {
	return &Service{
		companies: companies,
		events:    events,
		profiles:  profiles,
		client:    client,
		logger:    logger,
		metrics:   metrics,
	}
}

// RegisterHandlers binds the calendar event types to the processor.
func (s *Service) RegisterHandlers(p *worker.OutboxProcessor) {
	p.Register(model.EventCalendarDeadlineCreate, s.HandleDeadlineCreate)
	p.Register(model.EventCalendarStatusCreate, s.HandleStatusCreate)
	p.Register(model.EventCalendarEventDelete, s.HandleEventDelete)
}

func (s *Service) HandleDeadlineCreate(ctx context.Context, payload json.RawMessage) error {
	var p model.CalendarDeadlineCreatePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("failed to parse payload: %w", err)
	}

	token, err := s.profiles.CalendarToken(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, profile.ErrNoCredential) {
			// No linked calendar means nothing to mirror.
			return nil
		}
		return err
	}

	summary := fmt.Sprintf("Deadline: %s @ %s", p.Role, p.CompanyName)
	eventID, err := s.insert(ctx, token, summary, p.Deadline)
	if err != nil {
		return err
	}

	if err := s.companies.SetGoogleEventID(ctx, p.CompanyID, &eventID); err != nil {
		return fmt.Errorf("failed to record google event id: %w", err)
	}
	return nil
}

func (s *Service) HandleStatusCreate(ctx context.Context, payload json.RawMessage) error {
	var p model.CalendarStatusCreatePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("failed to parse payload: %w", err)
	}

	token, err := s.profiles.CalendarToken(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, profile.ErrNoCredential) {
			return nil
		}
		return err
	}

	summary := fmt.Sprintf("%s: %s", p.Title, p.CompanyName)
	eventID, err := s.insert(ctx, token, summary, p.Date)
	if err != nil {
		return err
	}

	if err := s.events.SetGoogleEventID(ctx, p.StatusEventID, &eventID); err != nil {
		return fmt.Errorf("failed to record google event id: %w", err)
	}
	return nil
}

func (s *Service) HandleEventDelete(ctx context.Context, payload json.RawMessage) error {
	var p model.CalendarEventDeletePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("failed to parse payload: %w", err)
	}

	token, err := s.profiles.CalendarToken(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, profile.ErrNoCredential) {
			return nil
		}
		return err
	}

	if err := s.client.DeleteEvent(ctx, token, p.GoogleEventID); err != nil {
		s.metrics.CalendarOperations.WithLabelValues("delete", "error").Inc()
		return err
	}
	s.metrics.CalendarOperations.WithLabelValues("delete", "success").Inc()
	return nil
}

func (s *Service) insert(ctx context.Context, token, summary string, at time.Time) (string, error) {
	start := at.Add(istOffset)
	eventID, err := s.client.InsertEvent(ctx, token, &google.CalendarEvent{
		Summary: summary,
		Start:   start,
		End:     start.Add(eventDuration),
	})
	if err != nil {
		s.metrics.CalendarOperations.WithLabelValues("insert", "error").Inc()
		return "", fmt.Errorf("failed to insert calendar event: %w", err)
	}
	s.metrics.CalendarOperations.WithLabelValues("insert", "success").Inc()
	return eventID, nil
}
