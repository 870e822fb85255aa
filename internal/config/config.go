// Package config provides configuration loading and management for the application.
package config

import (
	"encoding/json"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	// HTTP server port
	Port string

	// Base URLs for the per-protocol market-data providers
	LendingAPIURL   string
	LiquidityAPIURL string
	FarmAPIURL      string
	PriceAPIURL     string

	// API keys for various services
	APIKeys map[string]string

	// Postgres connection string for the profile and snapshot store
	PostgresDSN string

	// Strategy for blending multi-source APY quotes (weighted, median, trimmed)
	AggregationMode string

	// Annual risk-free rate in percent, used by the Sharpe ratio
	RiskFreeRate float64

	// Allocation drift threshold in percentage points
	DriftThresholdPct float64

	// OpenTelemetry endpoint for observability
	OtelEndpoint string

	// Timeout for upstream market-data fetches
	RequestTimeout time.Duration

	// Market-data guard thresholds
	MaxAPY          float64
	MaxAPYChange    float64
	MinSources      int
	GuardResetDelay time.Duration

	// On-chain vault reader
	ChainEnabled bool
	RPCEndpoint  string
	VaultAddress string

	// Rebalance alert webhook
	WebhookURL    string
	WebhookAPIKey string

	// Rate limiting for the public API
	RateLimitRPS   float64
	RateLimitBurst int
}

// Load creates a new Config from environment variables
func Load() Config {
	apiKeys := map[string]string{}
	if raw := os.Getenv("API_KEYS"); raw != "" {
		_ = json.Unmarshal([]byte(raw), &apiKeys)
	}

	return Config{
		Port:            GetEnvOrDefault("PORT", "8080"),
		LendingAPIURL:   GetEnvOrDefault("LENDING_API_URL", "https://api.aave.com/data/markets-data"),
		LiquidityAPIURL: GetEnvOrDefault("LIQUIDITY_API_URL", "https://api.uniswap.org/v1/pools"),
		FarmAPIURL:      GetEnvOrDefault("FARM_API_URL", "https://api.yearn.fi/v1/vaults"),
		PriceAPIURL:     GetEnvOrDefault("PRICE_API_URL", "https://api.coingecko.com/api/v3/simple/price"),
		APIKeys:         apiKeys,
		PostgresDSN:     GetEnvOrDefault("POSTGRES_DSN", "postgres://localhost:5432/portfolio?sslmode=disable"),

		AggregationMode: GetEnvOrDefault("AGGREGATION_MODE", "weighted"),

		RiskFreeRate:      GetEnvAsFloat("RISK_FREE_RATE", 2.0),
		DriftThresholdPct: GetEnvAsFloat("DRIFT_THRESHOLD_PCT", 5.0),

		OtelEndpoint:   GetEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		RequestTimeout: GetEnvAsDuration("REQUEST_TIMEOUT", 10*time.Second),

		MaxAPY:          GetEnvAsFloat("MAX_APY", 200.0), // percent
		MaxAPYChange:    GetEnvAsFloat("MAX_APY_CHANGE", 0.5),
		MinSources:      GetEnvAsInt("MIN_SOURCES", 2),
		GuardResetDelay: GetEnvAsDuration("GUARD_RESET_DELAY", 5*time.Minute),

		ChainEnabled: GetEnvAsBool("CHAIN_ENABLED", false),
		RPCEndpoint:  GetEnvOrDefault("RPC_ENDPOINT", "https://mainnet.infura.io/v3/"),
		VaultAddress: GetEnvOrDefault("VAULT_ADDRESS", ""),

		WebhookURL:    GetEnvOrDefault("WEBHOOK_URL", ""),
		WebhookAPIKey: GetEnvOrDefault("WEBHOOK_API_KEY", ""),

		RateLimitRPS:   GetEnvAsFloat("RATE_LIMIT_RPS", 10.0),
		RateLimitBurst: GetEnvAsInt("RATE_LIMIT_BURST", 20),
	}
}

// GetEnv retrieves an environment variable and whether it exists
func GetEnv(key string) (string, bool) {
	value, exists := os.LookupEnv(key)
	return value, exists
}

// GetEnvOrDefault retrieves an environment variable or returns the default value if not set
func GetEnvOrDefault(key, defaultValue string) string {
	if value, exists := GetEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvAsInt retrieves an environment variable as an integer with a default value
func GetEnvAsInt(key string, defaultValue int) int {
	if value, exists := GetEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvAsFloat retrieves an environment variable as a float with a default value
func GetEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := GetEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// GetEnvAsBool retrieves an environment variable as a boolean with a default value
func GetEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := GetEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// GetEnvAsDuration retrieves an environment variable as a duration with a default value
func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := GetEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
