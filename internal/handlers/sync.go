package handlers

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/Eliot-Huo/Iridium-IWS/internal/pricing"
	"github.com/Eliot-Huo/Iridium-IWS/internal/services"
	"github.com/Eliot-Huo/Iridium-IWS/internal/syncer"
	"github.com/Eliot-Huo/Iridium-IWS/internal/syncstate"
)

// Shared handler dependencies, wired once from main.
var (
	syncService    *syncer.Syncer
	stateStore     *syncstate.Store
	billingService *services.BillingService
	priceHistory   *pricing.History
)

// Init wires the handler package to its collaborators.
func Init(s *syncer.Syncer, states *syncstate.Store, billing *services.BillingService, history *pricing.History) {
	syncService = s
	stateStore = states
	billingService = billing
	priceHistory = history
}

// TriggerSync starts an ingestion pass in the background. A pass already in
// flight is joined rather than duplicated, so triggering twice is harmless.
func TriggerSync(c *fiber.Ctx) error {
	// Detached context: the pass outlives this request.
	go func() {
		if _, err := syncService.TriggerSync(context.Background()); err != nil {
			log.Printf("[Sync] Triggered pass finished with error: %v", err)
		}
		InvalidateStatsCache()
	}()
	return c.JSON(fiber.Map{
		"started": true,
	})
}

// GetSyncStatus returns the scheduler state, the last pass report and a
// summary of the ledger.
func GetSyncStatus(c *fiber.Ctx) error {
	state, source := stateStore.Load(c.Context())

	resp := fiber.Map{
		"paused": syncService.IsPaused(),
		"ledger": fiber.Map{
			"source":                 string(source),
			"initial_sync_completed": state.InitialSyncCompleted,
			"last_sync_time":         state.LastSyncTime,
			"total_files_processed":  state.TotalFilesProcessed,
			"monthly_stats":          state.MonthlyStats,
			"errors":                 state.Errors,
		},
	}
	if report, ok := syncService.LastReport(); ok {
		resp["last_pass"] = report
	}
	return c.JSON(resp)
}

// PauseSync stops scheduled passes until resumed.
func PauseSync(c *fiber.Ctx) error {
	syncService.SetPaused(true)
	return c.JSON(fiber.Map{"paused": true})
}

// ResumeSync re-enables scheduled passes.
func ResumeSync(c *fiber.Ctx) error {
	syncService.SetPaused(false)
	return c.JSON(fiber.Map{"paused": false})
}

// ResetSyncState clears the ledger so the next pass re-ingests everything.
// Destructive enough to demand explicit confirmation.
func ResetSyncState(c *fiber.Ctx) error {
	if c.Query("confirm") != "true" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "reset requires ?confirm=true",
		})
	}
	if err := stateStore.Reset(c.Context()); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	log.Println("[Sync] Ledger reset by operator request")
	return c.JSON(fiber.Map{"reset": true})
}
