package database

import (
	"log"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/Eliot-Huo/Iridium-IWS/internal/config"
	"github.com/Eliot-Huo/Iridium-IWS/internal/models"
)

var DB *gorm.DB

// Connect opens the SQLite query index and migrates the CDR and pass-log
// tables. The index is rebuildable from the blob artifacts, so a fresh file
// on first run is normal.
func Connect(cfg *config.Config) {
	var err error
	DB, err = gorm.Open(sqlite.Open(cfg.DatabasePath), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	log.Println("Database connection established")

	err = DB.AutoMigrate(&models.CDRRow{}, &models.PassLog{})
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
}
