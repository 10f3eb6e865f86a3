package validation

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Muchai10/safeguardcrawler/internal/threat"
)

var xssPattern = regexp.MustCompile(`(?i)(<script|<iframe|javascript:|onerror=|onload=|onclick=)`)

type Config struct {
	MaxQueryLength int
	MaxLimit       int
	MaxDays        int
	Logger         *zap.Logger
}

// Middleware checks the query parameters the alert endpoints accept before
// they reach a handler. Values that pass are stored in Locals under their own
// names as ints (limit, days) or threat.Category (category).
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxQueryLength <= 0 {
		cfg.MaxQueryLength = 512
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 200
	}
	if cfg.MaxDays <= 0 {
		cfg.MaxDays = 90
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		raw := string(c.Request().URI().QueryString())
		if len(raw) > cfg.MaxQueryLength {
			return badRequest(c, "Query string exceeds maximum length")
		}
		if containsXSS(raw) {
			cfg.Logger.Warn("Potential XSS attempt",
				zap.String("ip", c.IP()),
				zap.String("path", c.Path()),
			)
			return badRequest(c, "Invalid query content")
		}

		if v := c.Query("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > cfg.MaxLimit {
				return badRequest(c, "limit must be an integer between 1 and "+strconv.Itoa(cfg.MaxLimit))
			}
			c.Locals("limit", n)
		}

		if v := c.Query("days"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > cfg.MaxDays {
				return badRequest(c, "days must be an integer between 1 and "+strconv.Itoa(cfg.MaxDays))
			}
			c.Locals("days", n)
		}

		if v := c.Query("category"); v != "" {
			category := threat.Category(strings.ToLower(sanitizeString(v)))
			if !category.Valid() {
				return badRequest(c, "category must be one of neutral, harassment, threat, high_threat")
			}
			c.Locals("category", category)
		}

		return c.Next()
	}
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": msg,
	})
}

func containsXSS(input string) bool {
	return xssPattern.MatchString(input)
}

func sanitizeString(input string) string {
	input = strings.TrimSpace(input)
	input = strings.ReplaceAll(input, "\x00", "")
	return input
}
