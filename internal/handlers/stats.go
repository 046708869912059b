package handlers

import (
	"log"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Eliot-Huo/Iridium-IWS/internal/database"
	"github.com/Eliot-Huo/Iridium-IWS/internal/models"
)

type StatsResponse struct {
	TotalRecords int64            `json:"total_records"`
	Devices      int64            `json:"devices"`
	ByPeriod     map[string]int64 `json:"by_period"`
	ByService    map[string]int64 `json:"by_service"`
	LastUpdated  time.Time        `json:"last_updated"`
}

var (
	statsCache      *StatsResponse
	statsCacheMutex sync.Mutex
	statsLastUpdate time.Time
)

// InvalidateStatsCache drops the cached stats, e.g. after an ingestion pass.
func InvalidateStatsCache() {
	statsCacheMutex.Lock()
	defer statsCacheMutex.Unlock()
	statsCache = nil
	log.Println("[Stats] Cache invalidated")
}

// GetStats summarizes the CDR index: record and device totals plus per-period
// and per-service breakdowns.
func GetStats(c *fiber.Ctx) error {
	statsCacheMutex.Lock()
	defer statsCacheMutex.Unlock()

	forceRefresh := c.Query("forceRefresh", "") == "true"

	// If cache is fresh (less than 1 min old) and not forced, return it
	if statsCache != nil && !forceRefresh && time.Since(statsLastUpdate) < 1*time.Minute {
		return c.JSON(fiber.Map{
			"success": true,
			"data":    statsCache,
			"cached":  true,
		})
	}

	log.Println("[Stats] Calculating stats from CDR index...")

	stats := &StatsResponse{
		ByPeriod:    make(map[string]int64),
		ByService:   make(map[string]int64),
		LastUpdated: time.Now(),
	}

	database.DB.Model(&models.CDRRow{}).Count(&stats.TotalRecords)
	database.DB.Model(&models.CDRRow{}).Distinct("imei").Count(&stats.Devices)

	type groupCount struct {
		Key   string
		Count int64
	}

	var byPeriod []groupCount
	database.DB.Model(&models.CDRRow{}).
		Select("period_key as key, count(*) as count").
		Group("period_key").
		Scan(&byPeriod)
	for _, g := range byPeriod {
		stats.ByPeriod[g.Key] = g.Count
	}

	var byService []groupCount
	database.DB.Model(&models.CDRRow{}).
		Select("service as key, count(*) as count").
		Group("service").
		Scan(&byService)
	for _, g := range byService {
		stats.ByService[g.Key] = g.Count
	}

	statsCache = stats
	statsLastUpdate = time.Now()

	return c.JSON(fiber.Map{
		"success": true,
		"data":    stats,
		"cached":  false,
	})
}
