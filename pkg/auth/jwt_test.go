package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/placementalarm/placement-api/internal/model"
)

func testUser() *model.User {
	u := &model.User{Email: "student@example.com"}
	u.ID = uuid.New()
	return u
}

func newTestJWT() JWTService {
	return NewJWTService(Config{
		Secret:        "access-secret",
		RefreshSecret: "refresh-secret",
		ExpiryHours:   1,
		RefreshHours:  24,
	})
}

func TestAccessTokenRoundTrip(t *testing.T) {
	svc := newTestJWT()
	user := testUser()

	token, err := svc.GenerateAccessToken(user)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.UserID)
	assert.Equal(t, user.Email, claims.Email)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	svc := newTestJWT()
	user := testUser()

	token, err := svc.GenerateRefreshToken(user)
	require.NoError(t, err)

	claims, err := svc.ValidateRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.UserID)
}

func TestTokensSignedWithDistinctSecrets(t *testing.T) {
	svc := newTestJWT()
	user := testUser()

	access, err := svc.GenerateAccessToken(user)
	require.NoError(t, err)
	refresh, err := svc.GenerateRefreshToken(user)
	require.NoError(t, err)

	_, err = svc.ValidateToken(refresh)
	assert.Error(t, err)
	_, err = svc.ValidateRefreshToken(access)
	assert.Error(t, err)
}

func TestValidateGarbageToken(t *testing.T) {
	_, err := newTestJWT().ValidateToken("not.a.token")
	assert.Error(t, err)
}

func TestDefaultTTLs(t *testing.T) {
	svc := NewJWTService(Config{Secret: "s", RefreshSecret: "r"})
	assert.Equal(t, 24*time.Hour, svc.AccessTokenTTL())
}
