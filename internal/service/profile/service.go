package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/placementalarm/placement-api/internal/integration/google"
	"github.com/placementalarm/placement-api/internal/model"
	"github.com/placementalarm/placement-api/internal/repository"
	"github.com/placementalarm/placement-api/pkg/security"
)

// ErrNoCredential means the user never linked the Google account a
// feature needs. Callers treat it as "feature off", not as a failure.
var ErrNoCredential = errors.New("no google credential linked")

type Service interface {
	Upsert(ctx context.Context, userID uuid.UUID, req *model.UpsertProfileRequest) (*model.Profile, error)
	Get(ctx context.Context, userID uuid.UUID) (*model.Profile, error)
	SavePushSubscription(ctx context.Context, userID uuid.UUID, subscription json.RawMessage) error
	ClearPushSubscription(ctx context.Context, userID uuid.UUID) error
	GoogleConsentURL(kind string) string
	LinkGoogle(ctx context.Context, userID uuid.UUID, req *model.GoogleExchangeRequest) error
	DisableParsing(ctx context.Context, userID uuid.UUID) error

	CalendarToken(ctx context.Context, userID uuid.UUID) (string, error)
	ParsingToken(profile *model.Profile) (string, error)
}

type service struct {
	repo      repository.ProfileRepository
	oauth     google.OAuthClient
	encryptor security.Encryptor
}

func NewService(repo repository.ProfileRepository, oauth google.OAuthClient, encryptor security.Encryptor) Service {
	return &service{
		repo:      repo,
		oauth:     oauth,
		encryptor: encryptor,
	}
}

func (s *service) Upsert(ctx context.Context, userID uuid.UUID, req *model.UpsertProfileRequest) (*model.Profile, error) {
	profile, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		profile = &model.Profile{UserID: userID}
	}
	profile.Name = req.Name
	profile.Email = req.Email

	if err := s.repo.Upsert(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to upsert profile: %w", err)
	}
	return profile, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*model.Profile, error) {
	return s.repo.GetByUserID(ctx, userID)
}

func (s *service) SavePushSubscription(ctx context.Context, userID uuid.UUID, subscription json.RawMessage) error {
	if !json.Valid(subscription) {
		return fmt.Errorf("invalid subscription payload")
	}
	return s.repo.SavePushSubscription(ctx, userID, subscription)
}

func (s *service) ClearPushSubscription(ctx context.Context, userID uuid.UUID) error {
	return s.repo.ClearPushSubscription(ctx, userID)
}

func (s *service) GoogleConsentURL(kind string) string {
	return s.oauth.ConsentURL(kind, "")
}

// LinkGoogle exchanges the OAuth authorization code and stores the
// refresh token encrypted. The calendar kind also covers drive import;
// the parsing kind records the mailbox address it scans.
func (s *service) LinkGoogle(ctx context.Context, userID uuid.UUID, req *model.GoogleExchangeRequest) error {
	result, err := s.oauth.Exchange(ctx, req.Code, req.Kind)
	if err != nil {
		return fmt.Errorf("failed to link google account: %w", err)
	}

	encrypted, err := s.encryptor.EncryptString(result.RefreshToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	switch req.Kind {
	case google.KindParsing:
		return s.repo.SaveParsingCredentials(ctx, userID, result.Email, encrypted)
	default:
		return s.repo.SaveCalendarToken(ctx, userID, encrypted)
	}
}

func (s *service) DisableParsing(ctx context.Context, userID uuid.UUID) error {
	return s.repo.SetParsingActive(ctx, userID, false)
}

func (s *service) CalendarToken(ctx context.Context, userID uuid.UUID) (string, error) {
	profile, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return "", ErrNoCredential
	}
	if !profile.HasCalendarCredential() {
		return "", ErrNoCredential
	}
	token, err := s.encryptor.DecryptString(*profile.GoogleRefreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt calendar token: %w", err)
	}
	return token, nil
}

func (s *service) ParsingToken(profile *model.Profile) (string, error) {
	if !profile.HasParsingCredential() {
		return "", ErrNoCredential
	}
	token, err := s.encryptor.DecryptString(*profile.ParsingRefreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt parsing token: %w", err)
	}
	return token, nil
}
