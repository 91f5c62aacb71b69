package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// WindowCapacity is the number of close-price samples kept per asset:
// one day of minute bars plus the bar currently forming.
const WindowCapacity = 1441

// Config holds application configuration
type Config struct {
	Assets         []string
	QuoteAsset     string
	FeatureIndexes []int
	ModelPrefix    string

	TakeProfit       float64
	StopLoss         float64
	MaxTradeDuration time.Duration
	ThresholdTTL     time.Duration
	SecretTTL        time.Duration

	BinanceBaseURL   string
	OracleURL        string
	SecretServiceURL string
	APIKeySecret     string
	PrivateKeySecret string
	HTTPTimeout      time.Duration

	DatabasePath string
	CronSchedule string
	Port         int
	LogLevel     string
	Pretty       bool
	DryRun       bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Assets:         getEnvAsList("ASSETS", []string{"BTC", "ETH"}),
		QuoteAsset:     getEnv("QUOTE_ASSET", "USDT"),
		FeatureIndexes: getEnvAsInts("FEATURE_INDEXES", []int{0, 360, 720, 1080, 1260, 1350, 1395, 1417, 1428, 1434, 1437, 1439, 1440}),
		ModelPrefix:    getEnv("MODEL_PREFIX", "bt_"),

		TakeProfit:       getEnvAsFloat("TAKE_PROFIT", 1.01),
		StopLoss:         getEnvAsFloat("STOP_LOSS", 0.98),
		MaxTradeDuration: getEnvAsDuration("MAX_TRADE_DURATION", time.Hour),
		ThresholdTTL:     getEnvAsDuration("THRESHOLDS_TTL", 6*time.Hour),
		SecretTTL:        getEnvAsDuration("SECRETS_TTL", time.Hour),

		BinanceBaseURL:   getEnv("BINANCE_BASE_URL", "https://api.binance.com"),
		OracleURL:        getEnv("ORACLE_URL", "http://localhost:9010"),
		SecretServiceURL: getEnv("SECRET_SERVICE_URL", "http://localhost:9011"),
		APIKeySecret:     getEnv("API_KEY_SECRET_NAME", "secret-binance"),
		PrivateKeySecret: getEnv("PRIVATE_KEY_SECRET_NAME", "secret-binance-private"),
		HTTPTimeout:      getEnvAsDuration("HTTP_TIMEOUT", 15*time.Second),

		DatabasePath: getEnv("DATABASE_PATH", "./data/ledger.db"),
		CronSchedule: getEnv("CRON_SCHEDULE", "0 * * * * *"), // every minute, on the minute
		Port:         getEnvAsInt("PORT", 8010),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		Pretty:       getEnvAsBool("LOG_PRETTY", false),
		DryRun:       getEnvAsBool("DRY_RUN", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present and coherent
func (c *Config) Validate() error {
	if len(c.Assets) == 0 {
		return fmt.Errorf("ASSETS must list at least one asset")
	}
	if c.QuoteAsset == "" {
		return fmt.Errorf("QUOTE_ASSET is required")
	}
	if len(c.FeatureIndexes) == 0 {
		return fmt.Errorf("FEATURE_INDEXES must list at least one offset")
	}
	for _, idx := range c.FeatureIndexes {
		if idx < 0 || idx >= WindowCapacity {
			return fmt.Errorf("feature index %d out of window range [0, %d)", idx, WindowCapacity)
		}
	}
	if c.TakeProfit <= 1 {
		return fmt.Errorf("TAKE_PROFIT must be > 1, got %v", c.TakeProfit)
	}
	if c.StopLoss <= 0 || c.StopLoss >= 1 {
		return fmt.Errorf("STOP_LOSS must be in (0, 1), got %v", c.StopLoss)
	}
	if c.MaxTradeDuration <= 0 {
		return fmt.Errorf("MAX_TRADE_DURATION must be positive")
	}
	if c.ThresholdTTL <= 0 || c.SecretTTL <= 0 {
		return fmt.Errorf("THRESHOLDS_TTL and SECRETS_TTL must be positive")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	return nil
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts either a Go duration string ("90m") or a
// plain number of seconds, matching how the legacy parameter files
// expressed TTLs and trade durations.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToUpper(part))
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getEnvAsInts(key string, defaultValue []int) []int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []int
	for _, part := range strings.Split(value, ",") {
		intVal, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return defaultValue
		}
		out = append(out, intVal)
	}
	return out
}
