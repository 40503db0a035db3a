package main

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/forprompt/forprompt/api/docs"
	"github.com/forprompt/forprompt/api/internal/config"
)

// registerRoutes registers all HTTP routes
func registerRoutes(app *fiber.App, cfg *config.Config, deps *Dependencies) {
	h := deps.Handlers

	// Health and metrics, no auth
	h.Health.RegisterRoutes(app)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// API contract for SDK authors
	app.Get("/openapi.yaml", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, "application/yaml")
		return c.Send(docs.OpenAPISpec)
	})

	// SDK ingestion endpoint. Registered directly so the group middleware
	// below does not stack a second auth pass onto it.
	ingestHandlers := []fiber.Handler{deps.AuthMiddleware.RequireAPIKey()}
	if cfg.RateLimit.Enabled {
		ingestHandlers = append(ingestHandlers, deps.RateLimitMiddleware.Handler())
	}
	ingestHandlers = append(ingestHandlers, h.Ingestion.LogSpan)
	app.Post("/api/log", ingestHandlers...)

	// Public API routes, API key auth
	public := app.Group("/api/public")
	public.Use(deps.AuthMiddleware.RequireAPIKey())
	if cfg.RateLimit.Enabled {
		public.Use(deps.RateLimitMiddleware.Handler())
	}

	// Traces
	public.Get("/traces/:traceId", h.Traces.GetTrace)
	public.Patch("/traces/:traceId/status", h.Traces.UpdateTraceStatus)
	public.Delete("/traces/:traceId", h.Traces.DeleteTrace)
	public.Delete("/traces", h.Traces.ClearTraces)

	// Webhook subscriptions
	public.Post("/webhooks", h.Webhooks.CreateWebhook)
	public.Get("/webhooks", h.Webhooks.ListWebhooks)
	public.Get("/webhooks/:id", h.Webhooks.GetWebhook)
	public.Patch("/webhooks/:id", h.Webhooks.UpdateWebhook)
	public.Delete("/webhooks/:id", h.Webhooks.DeleteWebhook)
	public.Post("/webhooks/:id/test", h.Webhooks.TestWebhook)

	// Usage
	public.Get("/usage", h.Usage.GetCurrentUsage)
	public.Get("/usage/history", h.Usage.GetUsageHistory)
}
