package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"portfolio-api/internal/api/config"
	"portfolio-api/internal/api/repository"
	"portfolio-api/internal/entity"
	"portfolio-api/pkg/common"
	"portfolio-api/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	// ErrInvalidCredentials is returned when email/password do not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken is returned for bad, expired or orphaned tokens.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrUnknownProvider is returned for social providers other than google/facebook.
	ErrUnknownProvider = errors.New("unknown social provider")
)

// AuthService defines the interface for authentication operations.
type AuthService interface {
	Authenticate(ctx context.Context, email, password string) (*entity.User, error)
	CreateUser(ctx context.Context, email, password, fullName string) (*entity.User, error)
	GetOrCreateSocialUser(ctx context.Context, provider string) (*entity.User, error)
	IssueTokens(ctx context.Context, user *entity.User) (access, refresh string, err error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	VerifyToken(ctx context.Context, tokenString string) (*entity.User, error)
}

type accessTokenClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// NewAuthService creates a new authentication service.
func NewAuthService(cfg *config.Config, userRepo repository.UserRepository, redisClient *redis.Client, log *logger.Logger) AuthService {
	accessExpiry := 30 * time.Minute
	if d, err := time.ParseDuration(cfg.Auth.AccessTokenExpiry); err == nil && d > 0 {
		accessExpiry = d
	}
	refreshExpiry := 7 * 24 * time.Hour
	if d, err := time.ParseDuration(cfg.Auth.RefreshTokenExpiry); err == nil && d > 0 {
		refreshExpiry = d
	}

	return &authService{
		secretKey:     []byte(cfg.Auth.SecretKey),
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
		userRepo:      userRepo,
		redisClient:   redisClient,
		logger:        log,
	}
}

type authService struct {
	secretKey     []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	userRepo      repository.UserRepository
	redisClient   *redis.Client
	logger        *logger.Logger
}

// Authenticate checks the email/password pair against the stored bcrypt hash.
// The same error covers unknown emails and wrong passwords.
func (s *authService) Authenticate(ctx context.Context, email, password string) (*entity.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// CreateUser hashes the password and persists a new active user.
func (s *authService) CreateUser(ctx context.Context, email, password, fullName string) (*entity.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &entity.User{
		Email:          email,
		HashedPassword: string(hashed),
		FullName:       fullName,
		IsActive:       true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetOrCreateSocialUser resolves the fixed demo account for a provider,
// creating it on first use. Real token verification against the provider is
// deliberately stubbed out.
func (s *authService) GetOrCreateSocialUser(ctx context.Context, provider string) (*entity.User, error) {
	if provider != common.SocialProviderGoogle && provider != common.SocialProviderFacebook {
		return nil, ErrUnknownProvider
	}

	email := fmt.Sprintf("demo-%s@example.com", provider)
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up social user: %w", err)
	}

	user, err = s.CreateUser(ctx, email, "mock-password-not-used", fmt.Sprintf("Demo %s User", provider))
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Created social demo user",
		logger.StringField("provider", provider),
		logger.StringField("email", email))
	return user, nil
}

// IssueTokens creates a signed access token and an opaque refresh token
// stored in Redis with the configured TTL.
func (s *authService) IssueTokens(ctx context.Context, user *entity.User) (string, string, error) {
	access, err := s.createAccessToken(user)
	if err != nil {
		return "", "", err
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("failed to generate refresh token: %w", err)
	}
	refresh := hex.EncodeToString(buf)

	key := common.RefreshTokenKeyPrefix + refresh
	if err := s.redisClient.Set(ctx, key, user.ID, s.refreshExpiry).Err(); err != nil {
		return "", "", fmt.Errorf("failed to store refresh token: %w", err)
	}

	return access, refresh, nil
}

// Refresh exchanges a stored refresh token for a new access token.
func (s *authService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	key := common.RefreshTokenKeyPrefix + refreshToken
	val, err := s.redisClient.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrInvalidToken
		}
		return "", fmt.Errorf("failed to read refresh token: %w", err)
	}

	userID, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return "", ErrInvalidToken
	}

	user, err := s.userRepo.FindActiveByID(ctx, uint(userID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrInvalidToken
		}
		return "", fmt.Errorf("failed to look up user: %w", err)
	}

	return s.createAccessToken(user)
}

// VerifyToken validates an access token's signature and expiry, then resolves
// the subject to an active user.
func (s *authService) VerifyToken(ctx context.Context, tokenString string) (*entity.User, error) {
	var claims accessTokenClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secretKey, nil
	})
	if err != nil || !token.Valid {
		s.logger.DebugContext(ctx, "Token verification failed", logger.ErrorField(err))
		return nil, ErrInvalidToken
	}

	userID, err := strconv.ParseUint(claims.Subject, 10, 32)
	if err != nil {
		return nil, ErrInvalidToken
	}

	user, err := s.userRepo.FindActiveByID(ctx, uint(userID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	return user, nil
}

func (s *authService) createAccessToken(user *entity.User) (string, error) {
	now := time.Now()
	claims := accessTokenClaims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessExpiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}
