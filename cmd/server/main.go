package main

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Eliot-Huo/Iridium-IWS/internal/billing"
	"github.com/Eliot-Huo/Iridium-IWS/internal/blob"
	"github.com/Eliot-Huo/Iridium-IWS/internal/config"
	"github.com/Eliot-Huo/Iridium-IWS/internal/database"
	"github.com/Eliot-Huo/Iridium-IWS/internal/events"
	"github.com/Eliot-Huo/Iridium-IWS/internal/filesource"
	"github.com/Eliot-Huo/Iridium-IWS/internal/handlers"
	"github.com/Eliot-Huo/Iridium-IWS/internal/ingest"
	"github.com/Eliot-Huo/Iridium-IWS/internal/pricing"
	"github.com/Eliot-Huo/Iridium-IWS/internal/reactive"
	"github.com/Eliot-Huo/Iridium-IWS/internal/routes"
	"github.com/Eliot-Huo/Iridium-IWS/internal/services"
	"github.com/Eliot-Huo/Iridium-IWS/internal/syncer"
	"github.com/Eliot-Huo/Iridium-IWS/internal/syncstate"
	"github.com/Eliot-Huo/Iridium-IWS/internal/tapii"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Could not load config: %v", err)
	}

	// Connect to local database (DB-first architecture)
	database.Connect(cfg)

	// Blob store holds the durable artifacts: sync ledger, per-period CDR
	// buckets, price profile history.
	store, err := blob.NewDirStore(cfg.BlobDir)
	if err != nil {
		log.Fatalf("Could not open blob store: %v", err)
	}

	ctx := context.Background()

	// Price profile history, seeded on first run.
	history := pricing.NewHistory(store)
	if err := history.Load(ctx); err != nil {
		log.Fatalf("Could not load price profiles: %v", err)
	}
	if err := pricing.SeedDefaults(ctx, history); err != nil {
		log.Fatalf("Could not seed price profiles: %v", err)
	}

	// CDR source and ingestion pipeline.
	source := filesource.NewFTPSource(filesource.FTPConfig{
		Addr:             cfg.FTPAddr,
		Username:         cfg.FTPUsername,
		Password:         cfg.FTPPassword,
		Dir:              cfg.FTPDir,
		Timeout:          time.Duration(cfg.FTPTimeoutS) * time.Second,
		FetchesPerSecond: float64(cfg.FetchPerSec),
	})
	states := syncstate.NewStore(store, cfg.LocalStatePath)
	parser := tapii.NewParser(tapii.DefaultFormat)

	streamCfg := reactive.DefaultStreamConfig()
	streamCfg.WorkerCount = cfg.FetchWorkers

	coordinator := ingest.NewCoordinator(source, states, store, parser,
		ingest.WithDB(database.DB),
		ingest.WithBroadcaster(events.MainHub),
		ingest.WithCheckpointEvery(cfg.CheckpointEvery),
		ingest.WithStreamConfig(streamCfg),
	)

	// SSE hub for live pass progress.
	go events.MainHub.Run()

	// Start background ingestion service
	syncService := syncer.New(coordinator, time.Duration(cfg.SyncIntervalMin)*time.Minute)
	syncService.Start(ctx)

	// Billing read side.
	calc := billing.NewCalculator(pricing.NewResolver(history))
	billingService := services.NewBillingService(calc)

	handlers.Init(syncService, states, billingService, history)

	// Create and configure Fiber app
	app := fiber.New()
	routes.SetupRoutes(app, cfg)

	// Start HTTP server
	log.Printf("Server starting on port %s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
