// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for databases and the catalog mirror file (always absolute)
	Port     int
	DevMode  bool
	LogLevel string

	// Strategy oracle (OpenAI-compatible chat completions endpoint)
	OracleEndpoint string
	OracleModel    string
	OracleAPIKey   string
	OracleLocale   string // "zh" or "en", passed through to the oracle prompt

	// Broker mode: "sandbox" fills instantly, "real" adds a simulated broker
	// round-trip with a fixed rejection probability.
	BrokerMode string

	// Risk limits, process-wide. Read-only during a trading cycle.
	Risk RiskConfig

	// Notifications
	NotifyWebhookURL     string
	NotifyTelegramToken  string
	NotifyTelegramChatID string

	// Catalog cache TTL in seconds, applied only while a trading session is open
	CatalogTTLSeconds int
}

// RiskConfig holds the hard limits applied to every proposed order.
type RiskConfig struct {
	MaxPositionPct    float64 // Max position value as a fraction of total equity
	MaxOrderPct       float64 // Max single-order value as a fraction of total equity
	SlippageBps       float64 // Modeled execution slippage, basis points
	LimitTolerancePct float64 // Hard gate on execution price drift, fraction
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("TRADER_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	// Ensure directory exists
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		Port:     getEnvAsInt("PORT", 3001),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		OracleEndpoint: getEnv("ORACLE_ENDPOINT", "http://localhost:11434"),
		OracleModel:    getEnv("ORACLE_MODEL", "qwen2.5:14b"),
		OracleAPIKey:   getEnv("ORACLE_API_KEY", ""),
		OracleLocale:   getEnv("ORACLE_LOCALE", "zh"),

		BrokerMode: getEnv("BROKER_MODE", "sandbox"),

		Risk: RiskConfig{
			MaxPositionPct:    getEnvAsFloat("RISK_MAX_POSITION_PCT", 0.30),
			MaxOrderPct:       getEnvAsFloat("RISK_MAX_ORDER_PCT", 0.20),
			SlippageBps:       getEnvAsFloat("RISK_SLIPPAGE_BPS", 15),
			LimitTolerancePct: getEnvAsFloat("RISK_LIMIT_TOLERANCE_PCT", 0.02),
		},

		NotifyWebhookURL:     getEnv("NOTIFY_WEBHOOK_URL", ""),
		NotifyTelegramToken:  getEnv("NOTIFY_TELEGRAM_TOKEN", ""),
		NotifyTelegramChatID: getEnv("NOTIFY_TELEGRAM_CHAT_ID", ""),

		CatalogTTLSeconds: getEnvAsInt("CATALOG_TTL_SECONDS", 300),
	}

	if cfg.BrokerMode != "sandbox" && cfg.BrokerMode != "real" {
		return nil, fmt.Errorf("invalid BROKER_MODE %q (must be sandbox or real)", cfg.BrokerMode)
	}

	return cfg, nil
}

// getEnv retrieves an environment variable or returns a fallback
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getEnvAsInt retrieves an environment variable as an integer or returns a fallback
func getEnvAsInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return fallback
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a fallback
func getEnvAsBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return fallback
}

// getEnvAsFloat retrieves an environment variable as a float or returns a fallback
func getEnvAsFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return fallback
}
