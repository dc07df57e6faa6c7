package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/doclingui/api/internal/client"
	"github.com/doclingui/api/internal/config"
	"github.com/doclingui/api/internal/extractor"
	"github.com/doclingui/api/internal/handler"
	"github.com/doclingui/api/internal/middleware"
	"github.com/doclingui/api/internal/model"
	"github.com/doclingui/api/internal/service"
	"github.com/doclingui/api/internal/storage"
	ws "github.com/doclingui/api/internal/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client (rate limiting only; the limiter fails open)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available, rate limiting disabled: %v", err)
	}

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Initialize storage
	store, err := storage.New(cfg.Data.Root)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	// Initialize extraction runner
	runner := extractor.NewRunner(&cfg.Extraction)
	if !runner.IsConfigured() {
		log.Println("Info: no extraction command configured, using placeholder extraction")
	}

	// Initialize artifact archive (optional - continues if not configured)
	var archive client.ObjectStore
	if cfg.Archive.AccessKeyID != "" && cfg.Archive.SecretAccessKey != "" {
		archiveClient, err := client.NewArchiveClient(&cfg.Archive)
		if err != nil {
			log.Printf("Warning: archive client not initialized: %v", err)
		} else {
			archive = archiveClient
		}
	} else {
		log.Println("Info: artifact archive not configured, artifacts stay local")
	}

	// Initialize job service
	jobService := service.NewJobService(store, runner, archive, hub, model.ChunkingConfig{
		TargetTokens:  cfg.Chunking.TargetTokens,
		OverlapTokens: cfg.Chunking.OverlapTokens,
	})

	// Initialize handlers
	uploadHandler := handler.NewUploadHandler(jobService, validate, &cfg.Upload)
	extractHandler := handler.NewExtractHandler(jobService, validate)
	jobHandler := handler.NewJobHandler(jobService)
	artifactHandler := handler.NewArtifactHandler(jobService)
	storageHandler := handler.NewStorageHandler(jobService)

	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    cfg.Upload.MaxSizeMB * 1024 * 1024,
	})

	// Global middleware
	app.Use(recover.New())
	isDebug := strings.EqualFold(cfg.Server.LogLevel, "debug")
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if isDebug {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${reqHeaders}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Base URL - timestamp
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"extractor": runner.IsConfigured(),
				"archive":   archive != nil,
				"redis":     redisClient.Ping(c.Context()).Err() == nil,
			},
		})
	})

	// API routes
	app.Post("/upload", rateLimiter.UploadLimit(cfg.RateLimit.UploadPerHour), uploadHandler.Upload)
	app.Post("/extract/:jobId", rateLimiter.ExtractLimit(cfg.RateLimit.ExtractPerHour), extractHandler.Start)
	app.Get("/job/:jobId", jobHandler.Get)
	app.Get("/job/:jobId/progress", jobHandler.Progress)
	app.Get("/artifact/:jobId/:filename", artifactHandler.Download)
	app.Post("/storage/clean", rateLimiter.CleanLimit(cfg.RateLimit.CleanPerHour), storageHandler.Clean)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		jobID := c.Params("jobId")
		hub.HandleConnection(c, jobID)
	}))

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
