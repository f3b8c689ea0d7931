// Package config loads process configuration from environment variables,
// grounded on order_service/main.go's loadConfig/getEnv and
// order_service/src/database/connection.go's GetConfig, carrying the field
// names of the original Python service's app/core/config.py Settings.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every setting the composition root needs to wire the engine.
type Config struct {
	ServerPort  string
	Environment string
	LogLevel    string

	DatabaseURL        string
	DBMaxConnections   int
	DBMaxIdleConns     int
	DBConnMaxLifetime  time.Duration
	RedisURL           string

	UKTariffAPIBase string
	EUTaricAPIBase  string
	EUTaricAPIKey   string
	VATAPIBase      string
	VATAPIKey       string
	ECBAPIBase      string

	// JWTSecret is carried through as an opaque string; authentication
	// itself is an out-of-scope external collaborator per spec.md.
	JWTSecret string

	// VaultAddr, when set, points at a HashiCorp Vault instance holding the
	// database URL and provider API keys; empty disables the overlay and
	// the environment-variable values above are used as-is.
	VaultAddr string

	// StaticSeedPath, when set, points at a YAML file of fallback
	// tariff/VAT/FX rates and TARIC measure-type code tables to seed into
	// the database at startup; empty skips seeding.
	StaticSeedPath string
}

// Load reads Config from the environment, applying the same defaults the
// teacher's services use for local development.
func Load() *Config {
	return &Config{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		DatabaseURL:       getEnv("DATABASE_URL", ""),
		DBMaxConnections:  getEnvInt("DB_MAX_CONNECTIONS", 25),
		DBMaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNECTIONS", 5),
		DBConnMaxLifetime: time.Duration(getEnvInt("DB_CONN_MAX_LIFETIME_SECONDS", 300)) * time.Second,
		RedisURL:          getEnv("REDIS_URL", "redis://localhost:6379"),

		UKTariffAPIBase: getEnv("UK_TARIFF_API_BASE", "https://www.trade-tariff.service.gov.uk/api/v2"),
		EUTaricAPIBase:  getEnv("EU_TARIC_API_BASE", ""),
		EUTaricAPIKey:   getEnv("EU_TARIC_API_KEY", ""),
		VATAPIBase:      getEnv("VAT_API_BASE", ""),
		VATAPIKey:       getEnv("VAT_API_KEY", ""),
		ECBAPIBase:      getEnv("ECB_API_BASE", "https://data-api.ecb.europa.eu/service/data/EXR"),

		JWTSecret: getEnv("JWT_SECRET", ""),
		VaultAddr: getEnv("VAULT_ADDR", ""),

		StaticSeedPath: getEnv("STATIC_SEED_PATH", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return defaultValue
}
