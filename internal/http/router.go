package http

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"vodworks/internal/config"
	"vodworks/internal/jobs"
	"vodworks/internal/metrics"
	"vodworks/internal/model"
	"vodworks/internal/session"
	"vodworks/internal/tools"
	"vodworks/internal/workspace"
)

// Infoer probes a remote URL for metadata without downloading it.
type Infoer interface {
	Info(ctx context.Context, url string) (model.SourceInfo, error)
}

type Server struct {
	app    *fiber.App
	config *config.Config
	logger *slog.Logger
}

func NewServer(cfg *config.Config, st *session.Store, ws *workspace.Manager, disp *jobs.Dispatcher, infoer Infoer, rdb *redis.Client, logger *slog.Logger) *Server {
	app := fiber.New(fiber.Config{
		// Media artifacts stream from disk; request bodies stay small.
		BodyLimit: 1 << 20,
	})

	// Inject collaborators into context for handlers
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("config", cfg)
		c.Locals("store", st)
		c.Locals("workspace", ws)
		c.Locals("dispatcher", disp)
		c.Locals("infoer", infoer)
		return c.Next()
	})

	// Request logging + metrics middleware
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()

		// Ensure a request ID exists
		reqID := c.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Locals("request_id", reqID)
		if logger != nil {
			c.Locals("logger", logger)
		}

		err := c.Next()

		latency := time.Since(start)
		status := c.Response().StatusCode()
		method := c.Method()
		path := c.Path()

		metrics.RecordRequest(method, c.Route().Path, status, latency.Milliseconds())

		if logger != nil {
			logger.Info("request",
				"request_id", reqID,
				"method", method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}

		return err
	})

	// Health endpoints
	app.Get("/healthz", func(c *fiber.Ctx) error {
		// Shallow health: process is up
		if c.Query("deep") != "true" {
			return c.JSON(fiber.Map{"status": "ok"})
		}

		// Deep health: redis connectivity and workspace volume headroom.
		ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		defer cancel()

		redisStatus := "ok"
		if err := rdb.Ping(ctx).Err(); err != nil {
			redisStatus = "error"
		}

		resourceStatus := "ok"
		snap, err := tools.Resources(ws.Root())
		if err != nil {
			resourceStatus = "error"
		}

		status := "ok"
		if redisStatus != "ok" || resourceStatus != "ok" {
			status = "error"
		}

		return c.JSON(fiber.Map{
			"status":    status,
			"redis":     redisStatus,
			"resources": resourceStatus,
			"freeDisk":  snap.FreeDiskBytes,
			"freeMem":   snap.FreeMemoryBytes,
		})
	})

	// Prometheus-style metrics endpoint
	app.Get("/metrics", func(c *fiber.Ctx) error {
		c.Type("text/plain")
		return c.SendString(metrics.Export())
	})

	v1 := app.Group("/v1")
	registerV1Routes(v1)

	return &Server{
		app:    app,
		config: cfg,
		logger: logger,
	}
}

func (s *Server) Listen() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	return s.app.Listen(addr)
}

// App exposes the underlying fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func registerV1Routes(group fiber.Router) {
	media := group.Group("/media")
	media.Post("/info", infoHandler)
	media.Post("/download", downloadHandler)
	media.Post("/audio", audioHandler)
	media.Post("/hls", streamingHandler)
	media.Post("/thumbnails", thumbnailsHandler)
	media.Get("/status/:id", statusHandler)
	media.Get("/sessions", sessionsHandler)
	media.Post("/cancel/:id", cancelHandler)
	media.Get("/files/:id/:filename", fileHandler)
	media.Post("/cleanup", cleanupHandler)
}
