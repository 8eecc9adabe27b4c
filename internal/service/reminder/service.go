package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/placementalarm/placement-api/internal/repository"
	"github.com/placementalarm/placement-api/internal/service/notification"
	"github.com/placementalarm/placement-api/pkg/logger"
	"github.com/placementalarm/placement-api/pkg/messaging"
	"github.com/placementalarm/placement-api/pkg/metrics"
)

// Escalation ladders, in hours before the event. A record's counter is
// an index into its ladder: reminder N fires once the remaining time
// drops to thresholds[N] or below, so a record that was offline for a
// while catches up one rung per sweep rather than bursting.
var (
	deadlineThresholds = []float64{4, 3, 2, 1}
	followUpThresholds = []float64{48, 40, 30, 20, 15, 8}
)

const (
	deadlineLock = "reminder:deadline"
	followUpLock = "reminder:followup"
)

type Service interface {
	SweepDeadlines(ctx context.Context) error
	SweepFollowUps(ctx context.Context) error
	Start(ctx context.Context, interval time.Duration)
}

type service struct {
	companies  repository.CompanyRepository
	events     repository.StatusEventRepository
	dispatcher notification.Service
	locker     messaging.Locker
	lockTTL    time.Duration
	logger     *logger.Logger
	metrics    *metrics.Metrics

	now func() time.Time
}

func NewService(
	companies repository.CompanyRepository,
	events repository.StatusEventRepository,
	dispatcher notification.Service,
	locker messaging.Locker,
	lockTTL time.Duration,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) Service {
	return &service{
		companies:  companies,
		events:     events,
		dispatcher: dispatcher,
		locker:     locker,
		lockTTL:    lockTTL,
		logger:     logger,
		metrics:    metrics,
		now:        time.Now,
	}
}

func (s *service) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("Starting reminder sweeper", "interval", interval.String())

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Shutting down reminder sweeper")
			return
		case <-ticker.C:
			if err := s.SweepDeadlines(ctx); err != nil {
				s.logger.Error(err, "Deadline sweep failed")
			}
			if err := s.SweepFollowUps(ctx); err != nil {
				s.logger.Error(err, "Follow-up sweep failed")
			}
		}
	}
}

// SweepDeadlines reminds about application deadlines inside the next
// four hours, up to four times per company.
func (s *service) SweepDeadlines(ctx context.Context) error {
	acquired, err := s.locker.Acquire(ctx, deadlineLock, s.lockTTL)
	if err != nil {
		return fmt.Errorf("failed to acquire sweep lock: %w", err)
	}
	if !acquired {
		return nil
	}
	defer s.locker.Release(ctx, deadlineLock)

	timer := prometheus.NewTimer(s.metrics.ReminderSweepLatency)
	defer timer.ObserveDuration()

	now := s.now()
	horizon := time.Duration(deadlineThresholds[0] * float64(time.Hour))
	companies, err := s.companies.ListDueForDeadlineReminder(ctx, now, now.Add(horizon), len(deadlineThresholds))
	if err != nil {
		s.metrics.ReminderSweeps.WithLabelValues("deadline", "error").Inc()
		return fmt.Errorf("failed to list due companies: %w", err)
	}

	for _, company := range companies {
		hoursLeft := company.Deadline.Sub(now).Hours()
		if !thresholdDue(company.RemindersSent, deadlineThresholds, hoursLeft) {
			continue
		}

		// Claim the rung first: a reminder whose channels all fail is
		// still spent, never replayed.
		claimed, err := s.companies.IncrementReminderCount(ctx, company.ID, company.RemindersSent, now)
		if err != nil {
			s.logger.Error(err, "Failed to claim reminder", "company_id", company.ID.String())
			continue
		}
		if !claimed {
			continue
		}

		message := fmt.Sprintf("Deadline approaching: %s (%s) closes in %s",
			company.Name, company.Role, formatRemaining(hoursLeft))
		link := fmt.Sprintf("/companies/%s", company.ID)
		if err := s.dispatcher.Dispatch(ctx, company.UserID, message, link); err != nil {
			s.logger.Error(err, "Failed to dispatch deadline reminder", "company_id", company.ID.String())
			continue
		}
		s.metrics.RemindersSent.WithLabelValues("deadline").Inc()
	}

	s.metrics.ReminderSweeps.WithLabelValues("deadline", "success").Inc()
	return nil
}

// SweepFollowUps reminds about scheduled rounds (PPT, OA, interviews and
// the like) across a 48 hour horizon, up to six times per event.
func (s *service) SweepFollowUps(ctx context.Context) error {
	acquired, err := s.locker.Acquire(ctx, followUpLock, s.lockTTL)
	if err != nil {
		return fmt.Errorf("failed to acquire sweep lock: %w", err)
	}
	if !acquired {
		return nil
	}
	defer s.locker.Release(ctx, followUpLock)

	timer := prometheus.NewTimer(s.metrics.ReminderSweepLatency)
	defer timer.ObserveDuration()

	now := s.now()
	horizon := time.Duration(followUpThresholds[0] * float64(time.Hour))
	events, err := s.events.ListDueForFollowUp(ctx, now, now.Add(horizon), len(followUpThresholds))
	if err != nil {
		s.metrics.ReminderSweeps.WithLabelValues("followup", "error").Inc()
		return fmt.Errorf("failed to list due events: %w", err)
	}

	for _, event := range events {
		hoursLeft := event.EventDate.Sub(now).Hours()
		if !thresholdDue(event.FollowUpRemindersSent, followUpThresholds, hoursLeft) {
			continue
		}

		claimed, err := s.events.IncrementFollowUpCount(ctx, event.ID, event.FollowUpRemindersSent)
		if err != nil {
			s.logger.Error(err, "Failed to claim follow-up reminder", "event_id", event.ID.String())
			continue
		}
		if !claimed {
			continue
		}

		message := fmt.Sprintf("%s with %s (%s) in %s",
			event.Status, event.CompanyName, event.CompanyRole, formatRemaining(hoursLeft))
		link := fmt.Sprintf("/companies/%s", event.CompanyID)
		if err := s.dispatcher.Dispatch(ctx, event.UserID, message, link); err != nil {
			s.logger.Error(err, "Failed to dispatch follow-up reminder", "event_id", event.ID.String())
			continue
		}
		s.metrics.RemindersSent.WithLabelValues("followup").Inc()
	}

	s.metrics.ReminderSweeps.WithLabelValues("followup", "success").Inc()
	return nil
}

// thresholdDue reports whether reminder number sent should fire with
// hoursLeft remaining. The counter is the index of the next unfired
// rung; at most one rung fires per sweep.
func thresholdDue(sent int, thresholds []float64, hoursLeft float64) bool {
	if sent < 0 || sent >= len(thresholds) {
		return false
	}
	return hoursLeft <= thresholds[sent]
}

func formatRemaining(hours float64) string {
	if hours >= 2 {
		return fmt.Sprintf("about %d hours", int(hours+0.5))
	}
	minutes := int(hours*60 + 0.5)
	if minutes >= 60 {
		return "about an hour"
	}
	return fmt.Sprintf("%d minutes", minutes)
}
