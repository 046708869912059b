package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// MaskPassword hides a secret behind asterisks for logging.
func MaskPassword(password string) string {
	if len(password) == 0 {
		return ""
	}
	if len(password) <= 2 {
		return strings.Repeat("*", len(password))
	}
	return string(password[0]) + strings.Repeat("*", len(password)-2) + string(password[len(password)-1])
}

type Config struct {
	Port             string
	DatabasePath     string
	CorsAllowOrigins string

	// Blob store root and the local mirror of the sync ledger.
	BlobDir        string
	LocalStatePath string

	// FTP endpoint serving the raw CDR files.
	FTPAddr      string
	FTPUsername  string
	FTPPassword  string
	FTPDir       string
	FTPTimeoutS  int
	FetchPerSec  int
	FetchWorkers int

	// Background scheduler.
	SyncIntervalMin int
	CheckpointEvery int
}

func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", "5000"),
		DatabasePath:     getEnv("DATABASE_PATH", "iridium.db"),
		CorsAllowOrigins: getEnv("CORS_ALLOW_ORIGINS", ""),

		BlobDir:        getEnv("BLOB_DIR", "data/blob"),
		LocalStatePath: getEnv("LOCAL_STATE_PATH", "data/.sync_status.json"),

		FTPAddr:      getEnv("FTP_ADDR", "directip.sbd.iridium.com:21"),
		FTPUsername:  getEnv("FTP_USERNAME", ""),
		FTPPassword:  getEnv("FTP_PASSWORD", ""),
		FTPDir:       getEnv("FTP_DIR", "/"),
		FTPTimeoutS:  getEnvInt("FTP_TIMEOUT_S", 30),
		FetchPerSec:  getEnvInt("FETCH_RATE_PER_SEC", 4),
		FetchWorkers: getEnvInt("FETCH_PARALLELISM", 4),

		SyncIntervalMin: getEnvInt("SYNC_INTERVAL_MIN", 15),
		CheckpointEvery: getEnvInt("CHECKPOINT_INTERVAL", 10),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	val, err := strconv.Atoi(strValue)
	if err != nil {
		return fallback
	}
	return val
}
