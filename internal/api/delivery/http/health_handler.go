package http

import (
	"net/http"

	"portfolio-api/internal/api/dto"
	"portfolio-api/pkg/logger"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// HealthHandler handles the liveness/dependency check.
type HealthHandler struct {
	db     *gorm.DB
	logger *logger.Logger
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db *gorm.DB, logger *logger.Logger) *HealthHandler {
	return &HealthHandler{db: db, logger: logger}
}

// RegisterRoutes registers the health route on the Echo instance.
func (h *HealthHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Check)
}

// Check probes the database connection.
func (h *HealthHandler) Check(c echo.Context) error {
	ctx := c.Request().Context()

	var one int
	if err := h.db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error; err != nil {
		h.logger.ErrorContext(ctx, "Health check failed", logger.ErrorField(err))
		return c.JSON(http.StatusOK, dto.HealthResponse{OK: false, Database: "disconnected"})
	}

	return c.JSON(http.StatusOK, dto.HealthResponse{OK: true, Database: "connected"})
}
