package router

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/arstudio/api/internal/config"
	"github.com/arstudio/api/internal/handler"
	"github.com/arstudio/api/internal/middleware"
	"github.com/arstudio/api/internal/service"
	ws "github.com/arstudio/api/internal/websocket"
	"github.com/arstudio/api/pkg/response"
)

// Deps is everything the HTTP surface is built from
type Deps struct {
	Config    *config.Config
	Validator *validator.Validate
	Hub       *ws.Hub

	Jobs       *service.JobService
	Assets     *service.AssetService
	Scenes     *service.SceneService
	Uploads    *service.UploadService
	Generation *service.GenerationService
	Auth       *service.AuthService

	RateLimiter *middleware.RateLimiter

	// Services is reported by /health
	Services map[string]interface{}
}

// New builds the Fiber app with every route registered
func New(d Deps) *fiber.App {
	cfg := d.Config

	jobHandler := handler.NewJobHandler(d.Jobs, d.Validator)
	assetHandler := handler.NewAssetHandler(d.Assets, d.Validator)
	sceneHandler := handler.NewSceneHandler(d.Scenes, d.Validator)
	objectHandler := handler.NewObjectHandler(d.Scenes)
	uploadHandler := handler.NewUploadHandler(d.Uploads, d.Validator)
	generationHandler := handler.NewGenerationHandler(d.Generation, d.Validator)
	authHandler := handler.NewAuthHandler(d.Auth, d.Validator)

	authMiddleware := middleware.NewAuthMiddleware()
	rateLimiter := d.RateLimiter
	if rateLimiter == nil {
		rateLimiter = middleware.NewRateLimiter(nil)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    50 * 1024 * 1024, // 50MB
	})

	// Global middleware
	app.Use(recover.New())
	isDebug := strings.EqualFold(cfg.Server.LogLevel, "debug")
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if isDebug {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body} ${reqHeaders}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "ok",
			"services": d.Services,
		})
	})

	// Public routes
	app.Post("/api/auth/login", authHandler.Login)
	app.Get("/api/jobs/:jobId/download", jobHandler.Download)

	// API routes
	api := app.Group("/api", authMiddleware.Authenticate())

	jobs := api.Group("/jobs")
	jobs.Post("/", rateLimiter.JobsLimit(cfg.RateLimit.JobsPerHour), jobHandler.Create)
	jobs.Get("/", jobHandler.List)
	jobs.Get("/:jobId", jobHandler.Get)
	jobs.Post("/:jobId/cancel", jobHandler.Cancel)

	assets := api.Group("/assets")
	assets.Get("/", assetHandler.List)
	assets.Get("/:assetId", assetHandler.Get)

	scenes := api.Group("/scenes")
	scenes.Get("/", assetHandler.Scenes)
	scenes.Get("/:sceneId/objects", sceneHandler.Objects)
	scenes.Post("/:sceneId/objects/from-asset", sceneHandler.FromAsset)
	scenes.Post("/:sceneId/objects/preview", sceneHandler.Preview)
	scenes.Post("/:sceneId/objects/save", sceneHandler.Save)
	scenes.Post("/:sceneId/objects/:objectId/replace", sceneHandler.Replace)
	scenes.Post("/:sceneId/batch-upload", rateLimiter.UploadLimit(cfg.RateLimit.UploadPerHour), uploadHandler.Batch)

	objects := api.Group("/objects")
	objects.Post("/", objectHandler.Create)
	objects.Patch("/:objectId", objectHandler.Patch)
	objects.Delete("/:objectId", objectHandler.Delete)

	generate := api.Group("/generate", rateLimiter.GenerateLimit(cfg.RateLimit.GeneratePerMin))
	generate.Post("/remove-background", generationHandler.RemoveBackground)
	generate.Post("/image", generationHandler.Image)
	generate.Post("/speech", generationHandler.Speech)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		jobID := c.Params("jobId")
		var initial []byte
		if job, err := d.Jobs.GetJob(context.Background(), jobID); err == nil {
			initial = ws.ProgressSnapshot(job)
		}
		d.Hub.HandleConnection(c, jobID, initial)
	}))

	return app
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	if code >= fiber.StatusInternalServerError {
		sentry.CaptureException(err)
		log.Printf("[Server] %s %s: %v", c.Method(), c.Path(), err)
	}

	errCode := response.CodeServiceError
	switch code {
	case fiber.StatusNotFound:
		errCode = response.CodeNotFound
	case fiber.StatusBadRequest, fiber.StatusRequestEntityTooLarge, fiber.StatusUpgradeRequired:
		errCode = response.CodeValidationError
	}
	return response.Error(c, code, errCode, message, nil)
}
