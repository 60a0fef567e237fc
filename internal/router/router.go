package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/promora-go-api/internal/config"
	"github.com/noah-isme/promora-go-api/internal/handler"
	"github.com/noah-isme/promora-go-api/internal/middleware"
	"github.com/noah-isme/promora-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AttributionHandler *handler.AttributionHandler
	RecordingHandler   *handler.RecordingHandler
	JWTMiddleware      fiber.Handler
	// ReviewerMiddleware guards endpoints that expose recorded sessions.
	ReviewerMiddleware fiber.Handler
	HealthChecks       []handler.DependencyCheck
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler(nil))

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthChecks...))

	jwtMiddleware := orNext(deps.JWTMiddleware)
	reviewers := orNext(deps.ReviewerMiddleware)

	sessions := api.Group("/sessions/:sessionId", jwtMiddleware)

	if deps.AttributionHandler != nil {
		attributionGroup := sessions.Group("/attribution")
		if cfg.TrackingRateLimit > 0 {
			attributionGroup.Use(middleware.RateLimit("attribution", cfg.TrackingRateLimit, time.Minute))
		}
		deps.AttributionHandler.Register(attributionGroup, reviewers)
	}

	if deps.RecordingHandler != nil {
		deps.RecordingHandler.Register(sessions.Group("/recordings"), reviewers)
	}
}

func orNext(h fiber.Handler) fiber.Handler {
	if h != nil {
		return h
	}
	return func(c *fiber.Ctx) error { return c.Next() }
}
