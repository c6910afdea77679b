// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all persisted JSON files and the history DB
	Port     int
	LogLevel string
	DevMode  bool

	// Default watchlist, parsed from the TICKERS env var
	Tickers []string

	// Provider credentials
	UnusualWhalesToken string
	PolygonAPIKey      string
	AlphaVantageAPIKey string

	// Real-time trade feed websocket; empty disables the tick subscriber
	TickStreamURL string

	// Notification transports
	DiscordWebhookURL string
	TelegramBotToken  string
	TelegramChatID    int64

	// Daily provider-call budget (spread across HOT/WARM/COLD tiers)
	DailyCallLimit int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("ARGUS_DATA_DIR", "data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:            absDataDir,
		Port:               getEnvAsInt("PORT", 8090),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DevMode:            getEnvAsBool("DEV_MODE", false),
		Tickers:            parseTickers(getEnv("TICKERS", "SPY,QQQ,NVDA,TSLA,AAPL")),
		UnusualWhalesToken: getEnv("UW_API_TOKEN", ""),
		PolygonAPIKey:      getEnv("POLYGON_API_KEY", ""),
		AlphaVantageAPIKey: getEnv("ALPHAVANTAGE_API_KEY", ""),
		TickStreamURL:      getEnv("TICK_STREAM_URL", ""),
		DiscordWebhookURL:  getEnv("DISCORD_WEBHOOK_URL", ""),
		TelegramBotToken:   getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:     int64(getEnvAsInt("TELEGRAM_CHAT_ID", 0)),
		DailyCallLimit:     getEnvAsInt("DAILY_CALL_LIMIT", 15000),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if len(c.Tickers) == 0 {
		return fmt.Errorf("TICKERS must contain at least one symbol")
	}
	if c.DailyCallLimit <= 0 {
		return fmt.Errorf("DAILY_CALL_LIMIT must be positive, got %d", c.DailyCallLimit)
	}
	// Provider credentials are optional: a missing key means the corresponding
	// provider simply never registers, and its state entries stay empty.
	return nil
}

// parseTickers normalizes a comma-separated symbol list into uppercase tickers.
func parseTickers(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.ToUpper(strings.TrimSpace(p))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
