package routes

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/Eliot-Huo/Iridium-IWS/internal/config"
	"github.com/Eliot-Huo/Iridium-IWS/internal/handlers"
)

func SetupRoutes(app *fiber.App, cfg *config.Config) {
	app.Use(recover.New())
	app.Use(requestid.New())

	allowOrigins := strings.TrimSpace(cfg.CorsAllowOrigins)
	if allowOrigins == "" {
		allowOrigins = "http://localhost:5000,http://127.0.0.1:5000"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept",
		AllowCredentials: false,
	}))
	app.Use(logger.New())

	api := app.Group("/api/v1")

	// Ingestion sync: status, manual trigger, pause/resume, ledger reset
	sync := api.Group("/sync")
	sync.Get("/status", handlers.GetSyncStatus)
	sync.Post("/trigger", handlers.TriggerSync)
	sync.Post("/pause", handlers.PauseSync)
	sync.Post("/resume", handlers.ResumeSync)
	sync.Post("/reset", handlers.ResetSyncState)

	// Billing queries
	billing := api.Group("/billing")
	billing.Get("/:year/:month/devices", handlers.GetMonthDevices)
	billing.Get("/:imei/:year/:month", handlers.GetBill)
	billing.Get("/:imei/:year/:month/profit", handlers.GetProfit)

	// Price profile history
	profiles := api.Group("/profiles")
	profiles.Get("/:family", handlers.ListProfiles)
	profiles.Get("/:family/effective/:year/:month", handlers.GetEffectiveProfile)
	profiles.Post("/:family", handlers.CreateProfile)
	profiles.Put("/:family/:id", handlers.AmendProfile)

	// CDR index stats
	api.Get("/stats", handlers.GetStats)

	// Live pass progress (SSE)
	api.Get("/events", handlers.EventsHandler)
}
