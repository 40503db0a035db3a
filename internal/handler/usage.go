package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/forprompt/forprompt/api/internal/domain"
)

// UsageReader is the slice of the usage service the endpoints need.
type UsageReader interface {
	GetCurrentUsage(ctx context.Context, projectID uuid.UUID) (*domain.UsageLedger, error)
	ListUsageHistory(ctx context.Context, projectID uuid.UUID) ([]domain.UsageLedger, error)
}

// UsageHandler handles usage reporting endpoints
type UsageHandler struct {
	usage  UsageReader
	logger *zap.Logger
}

// NewUsageHandler creates a new usage handler
func NewUsageHandler(usage UsageReader, logger *zap.Logger) *UsageHandler {
	return &UsageHandler{
		usage:  usage,
		logger: logger,
	}
}

// GetCurrentUsage handles GET /api/public/usage
func (h *UsageHandler) GetCurrentUsage(c *fiber.Ctx) error {
	projectID, err := RequireProjectID(c)
	if err != nil {
		return err
	}

	ledger, err := h.usage.GetCurrentUsage(c.Context(), projectID)
	if err != nil {
		h.logger.Error("failed to get current usage",
			zap.String("project_id", projectID.String()),
			zap.Error(err),
		)
		return serviceError(c, err, "Failed to get usage")
	}

	return c.JSON(ledger)
}

// GetUsageHistory handles GET /api/public/usage/history
func (h *UsageHandler) GetUsageHistory(c *fiber.Ctx) error {
	projectID, err := RequireProjectID(c)
	if err != nil {
		return err
	}

	history, err := h.usage.ListUsageHistory(c.Context(), projectID)
	if err != nil {
		h.logger.Error("failed to list usage history",
			zap.String("project_id", projectID.String()),
			zap.Error(err),
		)
		return serviceError(c, err, "Failed to list usage history")
	}

	return c.JSON(fiber.Map{
		"periods": history,
	})
}
