package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"wireviz-web/internal/config"
	"wireviz-web/internal/http/handlers"
	"wireviz-web/internal/http/middleware"
	"wireviz-web/internal/infra/logging"
	"wireviz-web/internal/infra/wireviz"
	"wireviz-web/internal/tokens"
)

// Deps bundles everything the HTTP layer needs.
type Deps struct {
	Config config.Config
	Redis  *redis.Client
	Runner *wireviz.Runner
	Tokens *tokens.Cache
}

// New creates and configures a new Fiber app instance
func New(deps Deps) *fiber.App {
	cfg := deps.Config

	app := fiber.New(fiber.Config{
		Prefork:               cfg.Server.Prefork,
		DisableStartupMessage: true,
		BodyLimit:             cfg.Limits.MaxBodyBytes,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			msg := "Internal Server Error"

			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
				msg = e.Message
			}

			logging.Warn("Request failed", "path", c.Path(), "status", code, "message", msg)

			return c.Status(code).JSON(fiber.Map{
				"error": fiber.Map{
					"code":    code,
					"message": msg,
				},
			})
		},
	})

	middleware.Register(app, cfg, deps.Tokens)
	registerRoutes(app, deps)

	// Ensure all responses, including 404s, return JSON
	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Not Found")
	})

	return app
}

// registerRoutes mounts all route handlers to the app
func registerRoutes(app *fiber.App, deps Deps) {
	runner := deps.Runner
	if runner == nil {
		runner = wireviz.New(deps.Config)
	}

	// One shared service instance so all render routes share the same engine stats.
	svc := handlers.NewRenderService(deps.Config, deps.Redis, runner)

	app.Post("/render", svc.HandleRender)
	app.Get("/plantuml/:imagetype/:encoded", svc.HandlePlantUML)
	app.Get("/engine/stats", svc.HandleEngineStats)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/monitor", monitor.New())
}
