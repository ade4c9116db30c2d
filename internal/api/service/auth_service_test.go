package service

import (
	"context"
	"testing"
	"time"

	"portfolio-api/internal/api/config"
	"portfolio-api/internal/api/repository"
	"portfolio-api/internal/entity"
	"portfolio-api/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func authConfig(accessExpiry string) *config.Config {
	return &config.Config{
		Auth: config.Auth{
			SecretKey:          "test-secret-key",
			AccessTokenExpiry:  accessExpiry,
			RefreshTokenExpiry: "1h",
		},
	}
}

func newAuthFixture(t *testing.T, accessExpiry string) (AuthService, repository.UserRepository, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	userRepo := repository.NewUserRepository(db)
	svc := NewAuthService(authConfig(accessExpiry), userRepo, client, logger.NewNop())
	return svc, userRepo, db
}

func TestAuthenticate(t *testing.T) {
	svc, _, _ := newAuthFixture(t, "30m")
	ctx := context.Background()

	created, err := svc.CreateUser(ctx, "demo@example.com", "demo123", "Demo User")
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	assert.NotEqual(t, "demo123", created.HashedPassword)

	user, err := svc.Authenticate(ctx, "demo@example.com", "demo123")
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)

	_, err = svc.Authenticate(ctx, "demo@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody@example.com", "demo123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestTokenRoundTrip(t *testing.T) {
	svc, _, _ := newAuthFixture(t, "30m")
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, "token@example.com", "pw", "")
	require.NoError(t, err)

	access, refresh, err := svc.IssueTokens(ctx, user)
	require.NoError(t, err)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)

	verified, err := svc.VerifyToken(ctx, access)
	require.NoError(t, err)
	assert.Equal(t, user.ID, verified.ID)
	assert.Equal(t, user.Email, verified.Email)
}

func TestVerifyTokenRejectsGarbage(t *testing.T) {
	svc, _, _ := newAuthFixture(t, "30m")

	_, err := svc.VerifyToken(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyTokenRejectsExpired(t *testing.T) {
	svc, _, _ := newAuthFixture(t, "1ms")
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, "exp@example.com", "pw", "")
	require.NoError(t, err)

	access, _, err := svc.IssueTokens(ctx, user)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	_, err = svc.VerifyToken(ctx, access)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyTokenRejectsInactiveUser(t *testing.T) {
	svc, _, db := newAuthFixture(t, "30m")
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, "inactive@example.com", "pw", "")
	require.NoError(t, err)

	access, _, err := svc.IssueTokens(ctx, user)
	require.NoError(t, err)

	require.NoError(t, db.Model(&entity.User{}).Where("id = ?", user.ID).Update("is_active", false).Error)

	_, err = svc.VerifyToken(ctx, access)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshFlow(t *testing.T) {
	svc, _, _ := newAuthFixture(t, "30m")
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, "refresh@example.com", "pw", "")
	require.NoError(t, err)

	_, refresh, err := svc.IssueTokens(ctx, user)
	require.NoError(t, err)

	access, err := svc.Refresh(ctx, refresh)
	require.NoError(t, err)

	verified, err := svc.VerifyToken(ctx, access)
	require.NoError(t, err)
	assert.Equal(t, user.ID, verified.ID)

	_, err = svc.Refresh(ctx, "bogus-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSocialLogin(t *testing.T) {
	svc, _, _ := newAuthFixture(t, "30m")
	ctx := context.Background()

	_, err := svc.GetOrCreateSocialUser(ctx, "twitter")
	assert.ErrorIs(t, err, ErrUnknownProvider)

	first, err := svc.GetOrCreateSocialUser(ctx, "google")
	require.NoError(t, err)
	assert.Equal(t, "demo-google@example.com", first.Email)

	// Repeat logins reuse the same demo account.
	second, err := svc.GetOrCreateSocialUser(ctx, "google")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	fb, err := svc.GetOrCreateSocialUser(ctx, "facebook")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, fb.ID)
}
