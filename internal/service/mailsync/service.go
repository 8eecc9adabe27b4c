package mailsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/placementalarm/placement-api/internal/integration/gemini"
	"github.com/placementalarm/placement-api/internal/integration/google"
	"github.com/placementalarm/placement-api/internal/model"
	"github.com/placementalarm/placement-api/internal/repository"
	"github.com/placementalarm/placement-api/internal/service/notification"
	"github.com/placementalarm/placement-api/internal/service/profile"
	"github.com/placementalarm/placement-api/pkg/logger"
	"github.com/placementalarm/placement-api/pkg/messaging"
	"github.com/placementalarm/placement-api/pkg/metrics"
)

const runLock = "mailsync:run"

// subjectTypeRe gates which placement-cell emails get parsed at all:
// announcements carry the offer type after a "||" marker in the subject.
// Senders are sloppy about case and spacing ("6M + PPO", "fte"), so the
// match is tolerant and markerKey normalizes before the override lookup.
var subjectTypeRe = regexp.MustCompile(`(?i)\|\|\s*(FTE|6M\s*\+\s*PPO|6M\s*\+\s*FTE|Full-Time Employment \(FTE\)|Intern\s*\+\s*FTE|Intern\s*\+\s*PPO|Intern|Internship)`)

var markerPlusRe = regexp.MustCompile(`\s*\+\s*`)

// subjectTypeOverride maps the normalized subject marker to the
// canonical offer type. The subject wins over whatever the model
// extracted.
var subjectTypeOverride = map[string]string{
	"FTE":                        "FTE",
	"FULL-TIME EMPLOYMENT (FTE)": "FTE",
	"6M+PPO":                     "Intern + PPO",
	"6M+FTE":                     "Intern + FTE",
	"INTERN+FTE":                 "Intern + FTE",
	"INTERN+PPO":                 "Intern + PPO",
	"INTERN":                     "Intern",
	"INTERNSHIP":                 "Intern",
}

func markerKey(raw string) string {
	key := strings.ToUpper(strings.TrimSpace(raw))
	return markerPlusRe.ReplaceAllString(key, "+")
}

type Config struct {
	Domain      string
	MaxMessages int
	LockTTL     time.Duration
}

type Service interface {
	Run(ctx context.Context) error
	Start(ctx context.Context, interval time.Duration)
}

type service struct {
	profiles      repository.ProfileRepository
	notifications repository.NotificationRepository
	profileSvc    profile.Service
	gmail         google.GmailClient
	extractor     gemini.Extractor
	dispatcher    notification.Service
	locker        messaging.Locker
	cfg           Config
	logger        *logger.Logger
	metrics       *metrics.Metrics

	now func() time.Time
}

func NewService(
	profiles repository.ProfileRepository,
	notifications repository.NotificationRepository,
	profileSvc profile.Service,
	gmail google.GmailClient,
	extractor gemini.Extractor,
	dispatcher notification.Service,
	locker messaging.Locker,
	cfg Config,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) Service {
	return &service{
		profiles:      profiles,
		notifications: notifications,
		profileSvc:    profileSvc,
		gmail:         gmail,
		extractor:     extractor,
		dispatcher:    dispatcher,
		locker:        locker,
		cfg:           cfg,
		logger:        logger,
		metrics:       metrics,
		now:           time.Now,
	}
}

func (s *service) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("Starting mail sync", "interval", interval.String())

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Shutting down mail sync")
			return
		case <-ticker.C:
			if err := s.Run(ctx); err != nil {
				s.logger.Error(err, "Mail sync run failed")
			}
		}
	}
}

// Run scans every active parsing mailbox once.
func (s *service) Run(ctx context.Context) error {
	acquired, err := s.locker.Acquire(ctx, runLock, s.cfg.LockTTL)
	if err != nil {
		return fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !acquired {
		return nil
	}
	defer s.locker.Release(ctx, runLock)

	profiles, err := s.profiles.ListParsingActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list parsing profiles: %w", err)
	}

	for _, p := range profiles {
		if err := s.scanMailbox(ctx, p); err != nil {
			s.logger.Error(err, "Failed to scan mailbox", "user_id", p.UserID.String())
		}
	}
	return nil
}

func (s *service) scanMailbox(ctx context.Context, p *model.Profile) error {
	token, err := s.profileSvc.ParsingToken(p)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("from:*.%s is:unread newer_than:1d", s.cfg.Domain)
	messages, err := s.gmail.ListUnread(ctx, token, query, int64(s.cfg.MaxMessages))
	if err != nil {
		return fmt.Errorf("failed to list unread messages: %w", err)
	}

	for _, msg := range messages {
		s.metrics.MailMessagesScanned.Inc()
		if err := s.processMessage(ctx, p, token, msg); err != nil {
			// Leave the message unread so the next run retries it.
			s.logger.Error(err, "Failed to process message", "message_id", msg.ID)
		}
	}

	if err := s.profiles.UpdateParsingSyncedAt(ctx, p.UserID, s.now()); err != nil {
		s.logger.Error(err, "Failed to record sync time", "user_id", p.UserID.String())
	}
	return nil
}

func (s *service) processMessage(ctx context.Context, p *model.Profile, token string, msg *google.MailMessage) error {
	match := subjectTypeRe.FindStringSubmatch(msg.Subject)
	if match == nil {
		// Not an announcement. Mark it read or the capped fetch keeps
		// returning it every run.
		return s.gmail.MarkRead(ctx, token, msg.ID)
	}

	exists, err := s.notifications.ExistsByEmailID(ctx, p.UserID, msg.ID)
	if err != nil {
		return fmt.Errorf("failed to check for duplicate: %w", err)
	}
	if exists {
		return s.gmail.MarkRead(ctx, token, msg.ID)
	}

	proposal, err := s.extractor.ExtractProposal(ctx, msg.Subject, msg.Body)
	if err != nil {
		if errors.Is(err, gemini.ErrNotRelevant) {
			return s.gmail.MarkRead(ctx, token, msg.ID)
		}
		s.metrics.ExtractionFailures.Inc()
		return fmt.Errorf("failed to extract proposal: %w", err)
	}

	if override, ok := subjectTypeOverride[markerKey(match[1])]; ok {
		proposal.Type = override
	}

	payload, err := json.Marshal(proposal)
	if err != nil {
		return fmt.Errorf("failed to marshal proposal: %w", err)
	}

	message := fmt.Sprintf("New announcement: %s is hiring for %s", proposal.Name, proposal.Role)
	if err := s.dispatcher.DispatchProposal(ctx, p.UserID, message, "/notifications", msg.ID, payload); err != nil {
		return fmt.Errorf("failed to dispatch proposal: %w", err)
	}
	s.metrics.ProposalsCreated.Inc()

	return s.gmail.MarkRead(ctx, token, msg.ID)
}
