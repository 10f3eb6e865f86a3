package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/Muchai10/safeguardcrawler/internal/scheduler"
)

type ScanController interface {
	TriggerNow() error
	Status() scheduler.Status
}

// Capabilities describes which optional collaborators were wired at startup.
type Capabilities struct {
	Search    string `json:"search"`
	Sentiment bool   `json:"sentiment"`
	Storage   string `json:"storage"`
	Cache     bool   `json:"cache"`
}

type ScanHandler struct {
	controller   ScanController
	capabilities Capabilities
}

func NewScanHandler(controller ScanController, capabilities Capabilities) *ScanHandler {
	return &ScanHandler{
		controller:   controller,
		capabilities: capabilities,
	}
}

func (h *ScanHandler) TriggerScan(c *fiber.Ctx) error {
	err := h.controller.TriggerNow()
	switch {
	case errors.Is(err, scheduler.ErrPaused), errors.Is(err, scheduler.ErrAlreadyQueued):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to queue scan",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "Scan queued",
	})
}

func (h *ScanHandler) GetStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"scheduler":    h.controller.Status(),
		"capabilities": h.capabilities,
	})
}
