package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/forprompt/forprompt/api/internal/domain"
	"github.com/forprompt/forprompt/api/internal/validator"
)

// TraceService is the slice of the ingestion service the trace endpoints need.
type TraceService interface {
	GetTrace(ctx context.Context, projectID uuid.UUID, traceID string) (*domain.Trace, error)
	UpdateTraceStatus(ctx context.Context, projectID uuid.UUID, traceID string, input *domain.TraceStatusInput) (*domain.Trace, error)
	DeleteTrace(ctx context.Context, projectID uuid.UUID, traceID string) error
	ClearProjectTraces(ctx context.Context, projectID uuid.UUID) error
}

// TracesHandler handles trace read and lifecycle endpoints
type TracesHandler struct {
	traces TraceService
	logger *zap.Logger
}

// NewTracesHandler creates a new traces handler
func NewTracesHandler(traces TraceService, logger *zap.Logger) *TracesHandler {
	return &TracesHandler{
		traces: traces,
		logger: logger,
	}
}

// GetTrace handles GET /api/public/traces/:traceId
func (h *TracesHandler) GetTrace(c *fiber.Ctx) error {
	projectID, err := RequireProjectID(c)
	if err != nil {
		return err
	}

	traceID := c.Params("traceId")
	if traceID == "" {
		return errorResponse(c, fiber.StatusBadRequest, "Trace ID required")
	}

	trace, err := h.traces.GetTrace(c.Context(), projectID, traceID)
	if err != nil {
		h.logger.Error("failed to get trace",
			zap.String("trace_id", traceID),
			zap.Error(err),
		)
		return serviceError(c, err, "Failed to get trace")
	}

	return c.JSON(trace)
}

// UpdateTraceStatus handles PATCH /api/public/traces/:traceId/status
func (h *TracesHandler) UpdateTraceStatus(c *fiber.Ctx) error {
	projectID, err := RequireProjectID(c)
	if err != nil {
		return err
	}

	traceID := c.Params("traceId")
	if traceID == "" {
		return errorResponse(c, fiber.StatusBadRequest, "Trace ID required")
	}

	var input domain.TraceStatusInput
	if err := c.BodyParser(&input); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body: "+err.Error())
	}

	if err := validator.Validate(&input); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, err.Error())
	}

	trace, err := h.traces.UpdateTraceStatus(c.Context(), projectID, traceID, &input)
	if err != nil {
		h.logger.Error("failed to update trace status",
			zap.String("trace_id", traceID),
			zap.Error(err),
		)
		return serviceError(c, err, "Failed to update trace status")
	}

	return c.JSON(trace)
}

// DeleteTrace handles DELETE /api/public/traces/:traceId
func (h *TracesHandler) DeleteTrace(c *fiber.Ctx) error {
	projectID, err := RequireProjectID(c)
	if err != nil {
		return err
	}

	traceID := c.Params("traceId")
	if traceID == "" {
		return errorResponse(c, fiber.StatusBadRequest, "Trace ID required")
	}

	if err := h.traces.DeleteTrace(c.Context(), projectID, traceID); err != nil {
		h.logger.Error("failed to delete trace",
			zap.String("trace_id", traceID),
			zap.Error(err),
		)
		return serviceError(c, err, "Failed to delete trace")
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ClearTraces handles DELETE /api/public/traces
func (h *TracesHandler) ClearTraces(c *fiber.Ctx) error {
	projectID, err := RequireProjectID(c)
	if err != nil {
		return err
	}

	if err := h.traces.ClearProjectTraces(c.Context(), projectID); err != nil {
		h.logger.Error("failed to clear project traces",
			zap.String("project_id", projectID.String()),
			zap.Error(err),
		)
		return serviceError(c, err, "Failed to clear traces")
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status": "accepted",
	})
}
