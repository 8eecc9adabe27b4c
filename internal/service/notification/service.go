package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/placementalarm/placement-api/internal/email"
	"github.com/placementalarm/placement-api/internal/integration/push"
	"github.com/placementalarm/placement-api/internal/model"
	"github.com/placementalarm/placement-api/internal/repository"
	"github.com/placementalarm/placement-api/internal/service/company"
	apperrors "github.com/placementalarm/placement-api/pkg/errors"
	"github.com/placementalarm/placement-api/pkg/logger"
	"github.com/placementalarm/placement-api/pkg/messaging"
)

const notificationsChannel = "notifications"

type Service interface {
	ListUnread(ctx context.Context, userID uuid.UUID) ([]*model.Notification, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) error
	AcceptProposal(ctx context.Context, userID, notificationID uuid.UUID) (*model.Company, error)

	// Dispatch fans one message out to every channel the user has:
	// the in-app row always, push and email best-effort.
	Dispatch(ctx context.Context, userID uuid.UUID, message, link string) error
	DispatchProposal(ctx context.Context, userID uuid.UUID, message, link, emailID string, proposal json.RawMessage) error
}

type service struct {
	repo      repository.NotificationRepository
	profiles  repository.ProfileRepository
	companies company.Service
	emailSvc  email.Service
	pusher    push.Sender
	broker    messaging.Broker
	logger    *logger.Logger

	// profileCache keeps dispatch from hitting the profiles table for
	// every reminder in a sweep.
	profileCache *gocache.Cache
}

func NewService(
	repo repository.NotificationRepository,
	profiles repository.ProfileRepository,
	companies company.Service,
	emailSvc email.Service,
	pusher push.Sender,
	broker messaging.Broker,
	logger *logger.Logger,
) Service {
	return &service{
		repo:         repo,
		profiles:     profiles,
		companies:    companies,
		emailSvc:     emailSvc,
		pusher:       pusher,
		broker:       broker,
		logger:       logger,
		profileCache: gocache.New(5*time.Minute, 10*time.Minute),
	}
}

func (s *service) ListUnread(ctx context.Context, userID uuid.UUID) ([]*model.Notification, error) {
	return s.repo.ListUnread(ctx, userID)
}

func (s *service) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	return s.repo.MarkRead(ctx, userID, id)
}

func (s *service) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkAllRead(ctx, userID)
}

// AcceptProposal turns a proposal notification into a tracked company
// and marks the notification read.
func (s *service) AcceptProposal(ctx context.Context, userID, notificationID uuid.UUID) (*model.Company, error) {
	notification, err := s.repo.Get(ctx, userID, notificationID)
	if err != nil {
		return nil, apperrors.NotFound("notification")
	}
	if !notification.IsProposal() {
		return nil, apperrors.BadRequest("notification carries no proposal", nil)
	}

	var proposal model.CompanyProposal
	if err := json.Unmarshal(notification.Proposal, &proposal); err != nil {
		return nil, fmt.Errorf("failed to parse proposal: %w", err)
	}

	created, err := s.companies.Create(ctx, userID, proposalToRequest(&proposal))
	if err != nil {
		return nil, err
	}

	if err := s.repo.MarkRead(ctx, userID, notificationID); err != nil {
		s.logger.Error(err, "failed to mark proposal read", "notification_id", notificationID.String())
	}
	return created, nil
}

func (s *service) Dispatch(ctx context.Context, userID uuid.UUID, message, link string) error {
	return s.dispatch(ctx, &model.Notification{
		UserID:  userID,
		Message: message,
		Link:    link,
	})
}

func (s *service) DispatchProposal(ctx context.Context, userID uuid.UUID, message, link, emailID string, proposal json.RawMessage) error {
	return s.dispatch(ctx, &model.Notification{
		UserID:   userID,
		Message:  message,
		Link:     link,
		EmailID:  &emailID,
		Proposal: proposal,
	})
}

func (s *service) dispatch(ctx context.Context, notification *model.Notification) error {
	if err := s.repo.Create(ctx, notification); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	event := &model.NotificationEvent{
		ID:      notification.ID,
		UserID:  notification.UserID,
		Message: notification.Message,
		Link:    notification.Link,
	}
	if err := s.broker.Publish(ctx, notificationsChannel, event); err != nil {
		s.logger.Error(err, "failed to publish notification event")
	}

	profile := s.profile(ctx, notification.UserID)
	if profile == nil {
		return nil
	}

	if len(profile.PushSubscription) > 0 {
		s.sendPush(ctx, profile, notification)
	}
	if profile.Email != "" {
		if err := s.emailSvc.SendReminder(ctx, profile.Email, notification.Message, emailBody(notification)); err != nil {
			s.logger.Error(err, "failed to send reminder email", "user_id", notification.UserID.String())
		}
	}
	return nil
}

func (s *service) sendPush(ctx context.Context, profile *model.Profile, notification *model.Notification) {
	payload := map[string]string{
		"title": "Placement Alarm",
		"body":  notification.Message,
		"url":   notification.Link,
	}
	err := s.pusher.Send(ctx, profile.PushSubscription, payload)
	if err == nil {
		return
	}
	if errors.Is(err, push.ErrSubscriptionGone) {
		if clearErr := s.profiles.ClearPushSubscription(ctx, profile.UserID); clearErr != nil {
			s.logger.Error(clearErr, "failed to clear dead push subscription")
		}
		s.profileCache.Delete(profile.UserID.String())
		return
	}
	s.logger.Error(err, "failed to send push notification", "user_id", profile.UserID.String())
}

func (s *service) profile(ctx context.Context, userID uuid.UUID) *model.Profile {
	if cached, ok := s.profileCache.Get(userID.String()); ok {
		return cached.(*model.Profile)
	}
	profile, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		s.logger.Error(err, "failed to load profile for dispatch", "user_id", userID.String())
		return nil
	}
	s.profileCache.Set(userID.String(), profile, gocache.DefaultExpiration)
	return profile
}

func proposalToRequest(p *model.CompanyProposal) *model.CreateCompanyRequest {
	req := &model.CreateCompanyRequest{
		Name:      p.Name,
		Role:      p.Role,
		Package:   p.Package,
		DriveType: p.DriveType,
		Type:      p.Type,
	}
	if p.Link != "" {
		req.Link = &p.Link
	}
	if !isOption(req.DriveType, model.DriveTypeOptions) {
		req.DriveType = "On-Campus"
	}
	if !isOption(req.Type, model.TypeOptions) {
		req.Type = "FTE"
	}
	if p.Deadline != "" {
		if t, err := time.Parse(time.RFC3339, p.Deadline); err == nil {
			req.Deadline = &t
		} else if t, err := time.Parse("2006-01-02", p.Deadline); err == nil {
			req.Deadline = &t
		}
	}
	return req
}

func isOption(value string, options []string) bool {
	for _, o := range options {
		if o == value {
			return true
		}
	}
	return false
}

func emailBody(notification *model.Notification) string {
	if notification.Link == "" {
		return notification.Message
	}
	return fmt.Sprintf("%s<br><br><a href=%q>Open Placement Alarm</a>", notification.Message, notification.Link)
}
