package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Muchai10/safeguardcrawler/internal/query"
	"github.com/Muchai10/safeguardcrawler/internal/threat"
	"github.com/Muchai10/safeguardcrawler/pkg/logger"
)

type AlertsHandler struct {
	queryEngine *query.Engine
}

func NewAlertsHandler(queryEngine *query.Engine) *AlertsHandler {
	return &AlertsHandler{
		queryEngine: queryEngine,
	}
}

// ListAlerts expects the validation middleware to have parsed limit and
// category into Locals.
func (h *AlertsHandler) ListAlerts(c *fiber.Ctx) error {
	limit, _ := c.Locals("limit").(int)
	category, _ := c.Locals("category").(threat.Category)

	response, err := h.queryEngine.ListAlerts(c.Context(), query.ListRequest{
		Limit:    limit,
		Category: string(category),
	})
	if err != nil {
		return queryError(c, err, "Failed to list alerts")
	}

	return c.JSON(response)
}

func (h *AlertsHandler) GetStats(c *fiber.Ctx) error {
	days, _ := c.Locals("days").(int)

	response, err := h.queryEngine.Stats(c.Context(), days)
	if err != nil {
		return queryError(c, err, "Failed to compute alert stats")
	}

	return c.JSON(response)
}

func queryError(c *fiber.Ctx, err error, msg string) error {
	switch {
	case errors.Is(err, query.ErrNoStore):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Alert storage is not configured",
		})
	case errors.Is(err, query.ErrInvalidCategory):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	logger.Error(msg, zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": msg,
	})
}
