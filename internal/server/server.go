package server

import (
	"log"

	"ai-research-be/internal/bootstrap"
	"ai-research-be/internal/config"
	"ai-research-be/internal/pkg/serverutils"
	ws "ai-research-be/internal/websocket"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
)

type Server struct {
	app       *fiber.App
	cfg       *config.Config
	container *bootstrap.Container
}

func New(cfg *config.Config, container *bootstrap.Container) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit:    10 * 1024 * 1024, // 10MB
		ErrorHandler: serverutils.ErrorHandler,
	})

	// Middleware
	app.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.App.CorsAllowedOrigins,
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization",
		AllowMethods:  "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders: "Content-Length, Content-Type",
	}))

	// OpenTelemetry tracing middleware (traces all HTTP requests)
	app.Use(otelfiber.Middleware())

	registerRoutes(app, container)

	return &Server{
		app:       app,
		cfg:       cfg,
		container: container,
	}
}

func (s *Server) GetApp() *fiber.App {
	return s.app
}

func (s *Server) Run() error {
	log.Printf("✅ Server is running on http://localhost:%s", s.cfg.App.Port)
	return s.app.Listen(":" + s.cfg.App.Port)
}

func registerRoutes(app *fiber.App, c *bootstrap.Container) {
	app.Get("/health", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"status":       "ok",
			"model_ready":  c.Broker.Ready(),
			"active_calls": c.Broker.Load(),
		})
	})

	api := app.Group("/api")
	c.SessionController.RegisterRoutes(api)
	c.WorkflowController.RegisterRoutes(api)

	// Envelope protocol endpoint. The connection is scoped to one session;
	// every request frame answers on the same socket.
	app.Use("/ws", func(ctx *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(ctx) {
			return ctx.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/research/:sessionId", websocket.New(func(conn *websocket.Conn) {
		sessionID := conn.Params("sessionId")
		ws.ServeWs(c.WebSocketHub, conn, sessionID, c.Dispatcher)
	}))
}
