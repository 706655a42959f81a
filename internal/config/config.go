package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL         string
	RedisURL            string
	APIPort             string
	UploadDir           string
	ImportBatchSize     int
	DeleteBatchSize     int
	BulkDeleteThreshold int // above this, deletes go through a background job
	TruncateThreshold   int // above this, the delete job truncates instead of batching
	DeleteConfirmPhrase string
	PollInterval        int // seconds
	StaleJobThreshold   int // seconds in_progress before a row counts as abandoned
	DeliveryWorkers     int
	WebhookTimeout      int // seconds
	ShutdownTimeout     int // seconds
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error in production)
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		fmt.Println("Warning: REDIS_URL not set, progress publishing is disabled")
	}

	return &Config{
		DatabaseURL:         dbURL,
		RedisURL:            redisURL,
		APIPort:             getEnv("API_PORT", "8080"),
		UploadDir:           getEnv("UPLOAD_DIR", "./data/uploads"),
		ImportBatchSize:     getEnvInt("PRODUCT_IMPORT_BATCH_SIZE", 5000),
		DeleteBatchSize:     getEnvInt("PRODUCT_DELETE_BATCH_SIZE", 1000),
		BulkDeleteThreshold: getEnvInt("PRODUCT_BULK_DELETE_THRESHOLD", 10000),
		TruncateThreshold:   getEnvInt("PRODUCT_DELETE_TRUNCATE_THRESHOLD", 200000),
		DeleteConfirmPhrase: os.Getenv("PRODUCT_DELETE_CONFIRM_PHRASE"),
		PollInterval:        getEnvInt("POLL_INTERVAL", 5),
		StaleJobThreshold:   getEnvInt("STALE_JOB_THRESHOLD", 300),
		DeliveryWorkers:     getEnvInt("DELIVERY_WORKERS", 4),
		WebhookTimeout:      getEnvInt("WEBHOOK_TIMEOUT", 10),
		ShutdownTimeout:     getEnvInt("SHUTDOWN_TIMEOUT", 30),
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		fmt.Printf("Warning: invalid value %q for %s, using default %d\n", v, key, fallback)
		return fallback
	}
	return n
}
