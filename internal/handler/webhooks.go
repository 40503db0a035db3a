package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/forprompt/forprompt/api/internal/domain"
	"github.com/forprompt/forprompt/api/internal/validator"
)

// SubscriptionService is the slice of the webhook service the endpoints need.
type SubscriptionService interface {
	Register(ctx context.Context, projectID uuid.UUID, input *domain.WebhookSubscriptionInput) (*domain.WebhookSubscription, error)
	Get(ctx context.Context, projectID, id uuid.UUID) (*domain.WebhookSubscription, error)
	List(ctx context.Context, projectID uuid.UUID) ([]domain.WebhookSubscription, error)
	Update(ctx context.Context, projectID, id uuid.UUID, input *domain.WebhookSubscriptionUpdateInput) (*domain.WebhookSubscription, error)
	Delete(ctx context.Context, projectID, id uuid.UUID) error
	Test(ctx context.Context, projectID, id uuid.UUID) (*domain.DeliveryResult, error)
}

// WebhooksHandler handles webhook subscription endpoints
type WebhooksHandler struct {
	webhooks SubscriptionService
	logger   *zap.Logger
}

// NewWebhooksHandler creates a new webhooks handler
func NewWebhooksHandler(webhooks SubscriptionService, logger *zap.Logger) *WebhooksHandler {
	return &WebhooksHandler{
		webhooks: webhooks,
		logger:   logger,
	}
}

// CreateWebhook handles POST /api/public/webhooks
func (h *WebhooksHandler) CreateWebhook(c *fiber.Ctx) error {
	projectID, err := RequireProjectID(c)
	if err != nil {
		return err
	}

	var input domain.WebhookSubscriptionInput
	if err := c.BodyParser(&input); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body: "+err.Error())
	}

	if err := validator.Validate(&input); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, err.Error())
	}

	sub, err := h.webhooks.Register(c.Context(), projectID, &input)
	if err != nil {
		h.logger.Error("failed to register webhook",
			zap.String("project_id", projectID.String()),
			zap.Error(err),
		)
		return serviceError(c, err, "Failed to register webhook")
	}

	return c.Status(fiber.StatusCreated).JSON(sub)
}

// ListWebhooks handles GET /api/public/webhooks
func (h *WebhooksHandler) ListWebhooks(c *fiber.Ctx) error {
	projectID, err := RequireProjectID(c)
	if err != nil {
		return err
	}

	subs, err := h.webhooks.List(c.Context(), projectID)
	if err != nil {
		h.logger.Error("failed to list webhooks", zap.Error(err))
		return serviceError(c, err, "Failed to list webhooks")
	}

	return c.JSON(fiber.Map{
		"webhooks": subs,
	})
}

// GetWebhook handles GET /api/public/webhooks/:id
func (h *WebhooksHandler) GetWebhook(c *fiber.Ctx) error {
	projectID, err := RequireProjectID(c)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid webhook ID")
	}

	sub, err := h.webhooks.Get(c.Context(), projectID, id)
	if err != nil {
		return serviceError(c, err, "Failed to get webhook")
	}

	return c.JSON(sub)
}

// UpdateWebhook handles PATCH /api/public/webhooks/:id
func (h *WebhooksHandler) UpdateWebhook(c *fiber.Ctx) error {
	projectID, err := RequireProjectID(c)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid webhook ID")
	}

	var input domain.WebhookSubscriptionUpdateInput
	if err := c.BodyParser(&input); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body: "+err.Error())
	}

	if err := validator.Validate(&input); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, err.Error())
	}

	sub, err := h.webhooks.Update(c.Context(), projectID, id, &input)
	if err != nil {
		h.logger.Error("failed to update webhook",
			zap.String("webhook_id", id.String()),
			zap.Error(err),
		)
		return serviceError(c, err, "Failed to update webhook")
	}

	return c.JSON(sub)
}

// DeleteWebhook handles DELETE /api/public/webhooks/:id
func (h *WebhooksHandler) DeleteWebhook(c *fiber.Ctx) error {
	projectID, err := RequireProjectID(c)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid webhook ID")
	}

	if err := h.webhooks.Delete(c.Context(), projectID, id); err != nil {
		return serviceError(c, err, "Failed to delete webhook")
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// TestWebhook handles POST /api/public/webhooks/:id/test
//
// Runs a real delivery sequence with a synthetic payload so integrators
// can verify their endpoint and signature handling.
func (h *WebhooksHandler) TestWebhook(c *fiber.Ctx) error {
	projectID, err := RequireProjectID(c)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid webhook ID")
	}

	result, err := h.webhooks.Test(c.Context(), projectID, id)
	if err != nil {
		h.logger.Error("failed to test webhook",
			zap.String("webhook_id", id.String()),
			zap.Error(err),
		)
		return serviceError(c, err, "Failed to test webhook")
	}

	return c.JSON(result)
}
