package http

import (
	"errors"
	"net/http"

	"portfolio-api/internal/api/dto"
	"portfolio-api/internal/api/service"
	"portfolio-api/pkg/common"
	"portfolio-api/pkg/logger"

	"github.com/labstack/echo/v4"
)

// AuthHandler handles HTTP requests for authentication.
type AuthHandler struct {
	authService service.AuthService
	logger      *logger.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService service.AuthService, logger *logger.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, logger: logger}
}

// RegisterRoutes registers the auth routes to the Echo group.
func (h *AuthHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/login", h.Login)
	g.POST("/social", h.SocialLogin)
	g.POST("/refresh", h.Refresh)
}

// Login authenticates with email/password and returns tokens.
func (h *AuthHandler) Login(c echo.Context) error {
	var req dto.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request payload"})
	}
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Email and password are required"})
	}

	ctx := c.Request().Context()
	user, err := h.authService.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			h.logger.WarnContext(ctx, "Failed login attempt", logger.StringField("email", req.Email))
			return c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "Incorrect email or password"})
		}
		h.logger.ErrorContext(ctx, "Login failed", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to log in"})
	}

	access, refresh, err := h.authService.IssueTokens(ctx, user)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to issue tokens", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to log in"})
	}

	return c.JSON(http.StatusOK, dto.LoginResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    common.TokenTypeBearer,
	})
}

// SocialLogin performs the mock social login for ?provider=google|facebook.
func (h *AuthHandler) SocialLogin(c echo.Context) error {
	provider := c.QueryParam("provider")
	ctx := c.Request().Context()

	user, err := h.authService.GetOrCreateSocialUser(ctx, provider)
	if err != nil {
		if errors.Is(err, service.ErrUnknownProvider) {
			return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid provider. Must be 'google' or 'facebook'"})
		}
		h.logger.ErrorContext(ctx, "Social login failed", logger.ErrorField(err), logger.StringField("provider", provider))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to log in"})
	}

	access, refresh, err := h.authService.IssueTokens(ctx, user)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to issue tokens", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to log in"})
	}

	return c.JSON(http.StatusOK, dto.SocialAuthResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    common.TokenTypeBearer,
		Provider:     provider,
	})
}

// Refresh exchanges a refresh token for a new access token.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req dto.RefreshRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request payload"})
	}
	if req.RefreshToken == "" {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Refresh token is required"})
	}

	ctx := c.Request().Context()
	access, err := h.authService.Refresh(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, service.ErrInvalidToken) {
			return c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "Invalid or expired refresh token"})
		}
		h.logger.ErrorContext(ctx, "Token refresh failed", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to refresh token"})
	}

	return c.JSON(http.StatusOK, dto.LoginResponse{
		AccessToken: access,
		TokenType:   common.TokenTypeBearer,
	})
}
