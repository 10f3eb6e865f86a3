package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/Muchai10/safeguardcrawler/internal/notify"
	"github.com/Muchai10/safeguardcrawler/pkg/logger"
)

const pingInterval = 30 * time.Second

type WebSocketHandler struct {
	hub *notify.Hub
}

func NewWebSocketHandler(hub *notify.Hub) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
	}
}

// Upgrade rejects plain HTTP requests on the websocket route.
func (h *WebSocketHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// HandleConnection streams every admitted alert to the client until it
// disconnects. Incoming messages are ignored.
func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	alerts, cancel := h.hub.Subscribe()
	defer func() {
		cancel()
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.sendStatus(c, "subscribed"); err != nil {
		return
	}

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case msg, ok := <-alerts:
			if !ok {
				return
			}
			if err := c.WriteJSON(msg); err != nil {
				logger.Warn("Failed to push alert", zap.Error(err))
				return
			}
		case <-ping.C:
			if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *WebSocketHandler) sendStatus(c *websocket.Conn, status string) error {
	msg := map[string]interface{}{
		"type":   "status",
		"status": status,
	}

	return c.WriteJSON(msg)
}
