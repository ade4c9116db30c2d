package http

import (
	"net/http"
	"strings"

	"portfolio-api/internal/api/dto"
	"portfolio-api/internal/api/service"
	"portfolio-api/internal/entity"

	"github.com/labstack/echo/v4"
)

const currentUserKey = "current_user"

// BearerAuth returns echo middleware that validates the bearer token and
// stores the resolved user in the request context.
func BearerAuth(authService service.AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "Authorization header required"})
			}

			tokenString := strings.TrimPrefix(header, "Bearer ")
			if tokenString == header || tokenString == "" {
				return c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "Invalid authorization header"})
			}

			user, err := authService.VerifyToken(c.Request().Context(), tokenString)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "Invalid or expired token"})
			}

			c.Set(currentUserKey, user)
			return next(c)
		}
	}
}

// CurrentUser returns the authenticated user stored by BearerAuth.
func CurrentUser(c echo.Context) (*entity.User, bool) {
	user, ok := c.Get(currentUserKey).(*entity.User)
	return user, ok
}
