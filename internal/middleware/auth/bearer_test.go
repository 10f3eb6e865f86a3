package auth

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func newApp(token string) *fiber.App {
	app := fiber.New()
	app.Use(RequireBearer(token))
	app.Get("/api/v1/alerts", func(c *fiber.Ctx) error { return c.SendString("ok") })
	return app
}

func TestRequireBearer(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		header string
		want   int
	}{
		{"disabled", "", "", fiber.StatusOK},
		{"missing", "s3cret", "", fiber.StatusUnauthorized},
		{"wrong", "s3cret", "Bearer nope", fiber.StatusUnauthorized},
		{"basic scheme", "s3cret", "Basic s3cret", fiber.StatusUnauthorized},
		{"ok", "s3cret", "Bearer s3cret", fiber.StatusOK},
	}
	for _, tt := range tests {
		app := newApp(tt.token)
		req := httptest.NewRequest("GET", "/api/v1/alerts", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if resp.StatusCode != tt.want {
			t.Fatalf("%s: status=%d want %d", tt.name, resp.StatusCode, tt.want)
		}
	}
}

func TestRequireBearerQueryTokenOnlyForUpgrade(t *testing.T) {
	app := newApp("s3cret")

	req := httptest.NewRequest("GET", "/api/v1/alerts?token=s3cret", nil)
	resp, _ := app.Test(req)
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("plain request with ?token accepted: %d", resp.StatusCode)
	}

	req = httptest.NewRequest("GET", "/api/v1/alerts?token=s3cret", nil)
	req.Header.Set("Upgrade", "websocket")
	resp, _ = app.Test(req)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("upgrade request with ?token rejected: %d", resp.StatusCode)
	}
}
