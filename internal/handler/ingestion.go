package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/forprompt/forprompt/api/internal/domain"
	"github.com/forprompt/forprompt/api/internal/validator"
)

// SpanIngester is the slice of the ingestion service the log endpoint needs.
type SpanIngester interface {
	IngestSpan(ctx context.Context, projectID uuid.UUID, input *domain.SpanInput) (*domain.IngestResult, error)
}

// IngestionHandler handles the SDK log endpoint
type IngestionHandler struct {
	ingester SpanIngester
	logger   *zap.Logger
}

// NewIngestionHandler creates a new ingestion handler
func NewIngestionHandler(ingester SpanIngester, logger *zap.Logger) *IngestionHandler {
	return &IngestionHandler{
		ingester: ingester,
		logger:   logger,
	}
}

// LogSpan handles POST /api/log
//
// This is the single SDK-facing write endpoint: one span per call, with the
// trace created implicitly on first contact.
func (h *IngestionHandler) LogSpan(c *fiber.Ctx) error {
	projectID, err := RequireProjectID(c)
	if err != nil {
		return err
	}

	var input domain.SpanInput
	if err := c.BodyParser(&input); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body: "+err.Error())
	}

	if err := validator.Validate(&input); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.ingester.IngestSpan(c.Context(), projectID, &input)
	if err != nil {
		h.logger.Error("failed to ingest span",
			zap.String("project_id", projectID.String()),
			zap.String("trace_id", input.TraceID),
			zap.Error(err),
		)
		return serviceError(c, err, "Failed to ingest span")
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}
