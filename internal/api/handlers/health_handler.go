package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	storage Pinger
	timeout time.Duration
}

// NewHealthHandler accepts a nil storage, reported as "none".
func NewHealthHandler(storage Pinger) *HealthHandler {
	return &HealthHandler{
		storage: storage,
		timeout: 2 * time.Second,
	}
}

// GetHealth always answers 200 while the process is up. A storage outage
// only degrades the reported status since the backup file still works.
func (h *HealthHandler) GetHealth(c *fiber.Ctx) error {
	status := "healthy"
	storage := "none"

	if h.storage != nil {
		ctx, cancel := context.WithTimeout(c.Context(), h.timeout)
		defer cancel()

		if err := h.storage.Ping(ctx); err != nil {
			status = "degraded"
			storage = "unreachable"
		} else {
			storage = "ok"
		}
	}

	return c.JSON(fiber.Map{
		"status":  status,
		"storage": storage,
		"time":    time.Now().Unix(),
	})
}
