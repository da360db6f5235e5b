package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	httpapi "github.com/tripscout/tripscout/internal/api/http"
	"github.com/tripscout/tripscout/internal/assistant"
	"github.com/tripscout/tripscout/internal/config"
	"github.com/tripscout/tripscout/internal/geocode"
	"github.com/tripscout/tripscout/internal/health"
	"github.com/tripscout/tripscout/internal/places"
	"github.com/tripscout/tripscout/internal/weather"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for outbound upstream calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Upstream clients.
	geocoder := geocode.NewClient(httpClient, cfg.NominatimBaseURL)
	weatherClient := weather.NewClient(httpClient, cfg.OpenMeteoBaseURL)
	poiEngine := places.NewEngine(httpClient, cfg.OverpassBaseURL)

	// Core service orchestrating the query pipeline.
	service := assistant.NewService(geocoder, weatherClient, poiEngine, cfg.POILimit)

	// Upstream reachability prober.
	statusStore := health.NewStatusStore()
	prober := health.NewProber(httpClient, statusStore, []health.Target{
		{Name: "geocoding", URL: cfg.NominatimBaseURL},
		{Name: "weather", URL: cfg.OpenMeteoBaseURL},
		{Name: "map-data", URL: cfg.OverpassBaseURL},
	}, cfg.ProbeInterval)
	if err := prober.Start(); err != nil {
		log.Fatalf("failed to start health prober: %v", err)
	}
	defer prober.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "tripscout",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}))
	app.Use(cors.New())

	// Basic health endpoint with upstream reachability.
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "ok",
			"service":   "tripscout",
			"upstreams": statusStore.All(),
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, service)

	// Start server with graceful shutdown
	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
