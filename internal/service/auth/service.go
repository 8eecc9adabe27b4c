package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/placementalarm/placement-api/internal/model"
	"github.com/placementalarm/placement-api/internal/repository"
	"github.com/placementalarm/placement-api/pkg/auth"
	"github.com/placementalarm/placement-api/pkg/errors"
	"github.com/placementalarm/placement-api/pkg/security"
)

type Service interface {
	Register(ctx context.Context, req *model.RegisterRequest) (*model.TokenResponse, error)
	Login(ctx context.Context, req *model.LoginRequest) (*model.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*model.TokenResponse, error)
}

type service struct {
	users    repository.UserRepository
	profiles repository.ProfileRepository
	jwt      auth.JWTService
	hasher   security.PasswordHasher
}

func NewService(users repository.UserRepository, profiles repository.ProfileRepository, jwt auth.JWTService, hasher security.PasswordHasher) Service {
	return &service{
		users:    users,
		profiles: profiles,
		jwt:      jwt,
		hasher:   hasher,
	}
}

func (s *service) Register(ctx context.Context, req *model.RegisterRequest) (*model.TokenResponse, error) {
	if existing, _ := s.users.GetByEmail(ctx, req.Email); existing != nil {
		return nil, errors.Conflict("email already registered")
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, errors.BadRequest("invalid password", err)
	}

	user := &model.User{
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	// A profile row exists for every user from day one so integrations
	// have somewhere to hang their credentials.
	profile := &model.Profile{
		UserID: user.ID,
		Name:   user.Name,
		Email:  user.Email,
	}
	if err := s.profiles.Upsert(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	return s.issueTokens(user)
}

func (s *service) Login(ctx context.Context, req *model.LoginRequest) (*model.TokenResponse, error) {
	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, errors.Unauthorized("invalid credentials")
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		return nil, errors.Unauthorized("invalid credentials")
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("failed to update last login: %w", err)
	}

	return s.issueTokens(user)
}

func (s *service) Refresh(ctx context.Context, refreshToken string) (*model.TokenResponse, error) {
	claims, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, errors.Unauthorized("invalid refresh token")
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, errors.Unauthorized("invalid refresh token")
	}

	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, errors.Unauthorized("invalid refresh token")
	}

	return s.issueTokens(user)
}

func (s *service) issueTokens(user *model.User) (*model.TokenResponse, error) {
	access, err := s.jwt.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refresh, err := s.jwt.GenerateRefreshToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return &model.TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.jwt.AccessTokenTTL().Seconds()),
	}, nil
}
