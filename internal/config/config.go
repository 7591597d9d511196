// Package config provides configuration management for the application.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the application.
type Config struct {
	// AWS
	AWSRegion       string
	DocumentsBucket string

	// Database
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string

	// Azure Document Intelligence
	AzureDIEndpoint string
	AzureDIKey      string
	AzureDIModelID  string

	// OCR processing
	OCRMaxRetries   int
	OCRRetryDelay   time.Duration
	OCRPollInterval time.Duration
	OCRTimeout      time.Duration

	// SES
	SESSenderEmail    string
	ReviewNotifyEmail string
	ReviewBaseURL     string

	// Rules
	PatternsFile string
	ReloadCron   string

	// HTTP
	Port        int
	CORSOrigins []string

	// Application
	Stage    string
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	_ = godotenv.Load()

	cfg := &Config{
		// AWS
		AWSRegion:       getEnv("AWS_REGION", "us-east-1"),
		DocumentsBucket: getEnv("DOCUMENTS_BUCKET", "forwarder-documents-dev"),

		// Database
		DBHost:     getEnv("DB_HOST", getEnv("FWD_DB_HOST", "localhost")),
		DBPort:     getEnvInt("DB_PORT", getEnvInt("FWD_DB_PORT", 5432)),
		DBName:     getEnv("DB_NAME", getEnv("FWD_DB_NAME", "forwarder_mapping")),
		DBUser:     getEnv("DB_USER", getEnv("FWD_DB_USER", "postgres")),
		DBPassword: getEnv("DB_PASSWORD", getEnv("FWD_DB_PASSWORD", "")),

		// Azure Document Intelligence
		AzureDIEndpoint: getEnv("AZURE_DI_ENDPOINT", ""),
		AzureDIKey:      getEnv("AZURE_DI_KEY", ""),
		AzureDIModelID:  getEnv("AZURE_DI_MODEL_ID", "prebuilt-invoice"),

		// OCR processing
		OCRMaxRetries:   getEnvInt("OCR_MAX_RETRIES", 3),
		OCRRetryDelay:   getEnvDuration("OCR_RETRY_DELAY", 2*time.Second),
		OCRPollInterval: getEnvDuration("OCR_POLL_INTERVAL", 2*time.Second),
		OCRTimeout:      getEnvDuration("OCR_TIMEOUT", 120*time.Second),

		// SES
		SESSenderEmail:    getEnv("SES_SENDER_EMAIL", ""),
		ReviewNotifyEmail: getEnv("REVIEW_NOTIFY_EMAIL", ""),
		ReviewBaseURL:     getEnv("REVIEW_BASE_URL", ""),

		// Rules
		PatternsFile: getEnv("PATTERNS_FILE", ""),
		ReloadCron:   getEnv("RELOAD_CRON", "@every 5m"),

		// HTTP
		Port:        getEnvInt("PORT", 8080),
		CORSOrigins: getEnvList("CORS_ORIGINS", []string{"*"}),

		// Application
		Stage:    getEnv("STAGE", "dev"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg, nil
}

// DatabaseURL returns the PostgreSQL connection string.
func (c *Config) DatabaseURL() string {
	sslMode := "require" // Use SSL for RDS
	if c.DBHost == "localhost" || c.DBHost == "127.0.0.1" {
		sslMode = "disable" // Disable SSL for local development
	}
	return "postgres://" + c.DBUser + ":" + c.DBPassword + "@" + c.DBHost + ":" + strconv.Itoa(c.DBPort) + "/" + c.DBName + "?sslmode=" + sslMode
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as int or returns a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration retrieves an environment variable as a duration or returns a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList retrieves a comma-separated environment variable as a slice.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parts := make([]string, 0)
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	if len(parts) == 0 {
		return defaultValue
	}
	return parts
}
