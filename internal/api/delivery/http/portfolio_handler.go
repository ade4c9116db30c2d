package http

import (
	"net/http"

	"portfolio-api/internal/api/dto"
	"portfolio-api/internal/api/service"
	"portfolio-api/pkg/logger"

	"github.com/labstack/echo/v4"
)

// PortfolioHandler handles HTTP requests for portfolio valuation.
type PortfolioHandler struct {
	portfolioService service.PortfolioService
	logger           *logger.Logger
}

// NewPortfolioHandler creates a new PortfolioHandler.
func NewPortfolioHandler(portfolioService service.PortfolioService, logger *logger.Logger) *PortfolioHandler {
	return &PortfolioHandler{portfolioService: portfolioService, logger: logger}
}

// RegisterRoutes registers the portfolio routes to the Echo group.
func (h *PortfolioHandler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.GetPortfolio)
}

// GetPortfolio returns the authenticated user's valued portfolio.
func (h *PortfolioHandler) GetPortfolio(c echo.Context) error {
	user, ok := CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "Invalid or expired token"})
	}

	ctx := c.Request().Context()
	portfolio, err := h.portfolioService.GetPortfolio(ctx, user.ID)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to get portfolio",
			logger.Field("user_id", user.ID),
			logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get portfolio"})
	}

	h.logger.InfoContext(ctx, "Portfolio retrieved",
		logger.StringField("email", user.Email),
		logger.IntField("holdings", len(portfolio.Holdings)))

	return c.JSON(http.StatusOK, portfolio)
}
