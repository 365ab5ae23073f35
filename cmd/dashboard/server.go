package main

import (
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"

	"github.com/azimjon-95/totli-webapp/internal/adapter/http/fiber/handlers"
	"github.com/azimjon-95/totli-webapp/internal/adapter/http/fiber/middleware"
	wsAdapter "github.com/azimjon-95/totli-webapp/internal/adapter/websocket"
	"github.com/azimjon-95/totli-webapp/internal/service/health"
	"github.com/azimjon-95/totli-webapp/pkg/config"
)

// newApp builds the local presentation bridge: snapshot and refresh
// endpoints, the snapshot push socket, health probes and metrics.
func newApp(cfg *config.Config, dashboardHandler *handlers.DashboardHandler, hub *wsAdapter.Hub, healthService *health.Service, logger *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		ServerHeader:          cfg.App.Name,
		DisableStartupMessage: true,
		ReadTimeout:           cfg.HTTP.ReadTimeout,
		WriteTimeout:          cfg.HTTP.WriteTimeout,
		IdleTimeout:           cfg.HTTP.IdleTimeout,
		ErrorHandler:          middleware.ErrorHandler(logger),
	})

	// Global Middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(middleware.NewCORS(cfg.HTTP.AllowedOrigins))

	health.NewFiberHandler(healthService).RegisterRoutes(app)

	if cfg.Prometheus.Enabled {
		metrics := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
		app.Get(cfg.Prometheus.Path, func(c *fiber.Ctx) error {
			metrics(c.Context())
			return nil
		})
	}

	api := app.Group("/api")
	api.Get("/dashboard", dashboardHandler.Get)
	api.Post("/dashboard/refresh", dashboardHandler.Refresh)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/updates", websocket.New(func(c *websocket.Conn) {
		hub.AddClient(c)
	}))

	return app
}
