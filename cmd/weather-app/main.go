package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/hsg0/RN-weather-app1/internal/api/http"
	"github.com/hsg0/RN-weather-app1/internal/config"
	"github.com/hsg0/RN-weather-app1/internal/geo"
	"github.com/hsg0/RN-weather-app1/internal/session"
	"github.com/hsg0/RN-weather-app1/internal/weather"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Shared HTTP client for outbound provider calls. No timeout is set:
	// a hung provider call blocks its state transition.
	httpClient := &http.Client{}

	locator := geo.NewGeocodeProvider(cfg.GeocoderAPIKey, cfg.LocationCity, cfg.LocationCountry, cfg.LocationConsent)
	gateway := weather.NewGateway(httpClient, cfg.OpenWeatherAPIKey)

	// Session run loop owns all lookup state.
	sess := session.New(locator, gateway, weather.SamplesPerDay)
	go sess.Run(ctx)

	// Kick off the device-location cycle once at startup.
	if err := sess.Locate(ctx); err != nil {
		log.Printf("failed to start location cycle: %v", err)
	}

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "weather-app",
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

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-app",
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, sess)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
