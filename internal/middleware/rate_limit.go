package middleware

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/noah-isme/promora-go-api/internal/utils"
)

// RateLimit creates a limiter keyed by assessment session, falling back to
// the authenticated user and then the client IP.
func RateLimit(identifier string, max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		max = 120
	}
	if window <= 0 {
		window = time.Minute
	}

	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return fmt.Sprintf("%s:%s", identifier, rateLimitSubject(c))
		},
		LimitReached: func(c *fiber.Ctx) error {
			return utils.SendError(c, fiber.StatusTooManyRequests, "too many tracking requests")
		},
	})
}

func rateLimitSubject(c *fiber.Ctx) string {
	if session := strings.TrimSpace(c.Params("sessionId")); session != "" {
		return "session:" + session
	}
	if user, ok := c.Locals("user_id").(string); ok && user != "" {
		return "user:" + user
	}
	return "ip:" + c.IP()
}
