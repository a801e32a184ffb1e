package api

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/fathima-sithara/presence-service/internal/middleware"
	"github.com/fathima-sithara/presence-service/internal/ws"
)

type Deps struct {
	Handlers *Handlers
	Auth     TokenValidator
	WS       *ws.Server
	// Limiter is optional; nil disables request rate limiting.
	Limiter middleware.Limiter
	// Metrics is optional; nil leaves /metrics unmounted.
	Metrics   http.Handler
	AccessLog bool
	Log       *zap.Logger
}

func NewServer(d Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "presence-service",
		ErrorHandler:          ErrorHandler,
		DisableStartupMessage: true,
		// ids from Params/Query/Get outlive the request (stored messages, ws owners)
		Immutable: true,
	})
	app.Use(recover.New())
	if d.AccessLog {
		app.Use(logger.New())
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	if d.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(d.Metrics))
	}
	if d.WS != nil {
		app.Get("/ws", d.WS.Upgrade(), d.WS.Handler())
	}

	v1 := app.Group("/api/v1", RequireUser(d.Auth))
	if d.Limiter != nil {
		v1.Use(middleware.RateLimit(d.Limiter, middleware.UserOrIP, d.Log))
	}

	h := d.Handlers
	v1.Get("/messages/users", h.listConversations)
	v1.Get("/messages/:id", h.history)
	v1.Post("/messages/send/:id", h.sendMessage)
	v1.Patch("/messages/mark-as-read/:id", h.markRead)
	v1.Get("/presence/:id", h.presenceStatus)

	return app
}
