// Package config loads runtime configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds the staking engine's runtime settings.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string

	// OwnerAccount is seeded into the in-memory bank at startup so the pool
	// can be initialized and funded during development. Empty disables it.
	OwnerAccount string
	OwnerMint    decimal.Decimal

	// ReconcileSchedule is the cron spec for the solvency reconciler.
	ReconcileSchedule string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first if present.
func Load() Config {
	_ = godotenv.Load()

	mint := decimal.Zero
	if v := os.Getenv("OWNER_MINT"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			mint = d
		}
	}

	return Config{
		Port:              getenv("PORT", "8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          os.Getenv("REDIS_URL"),
		OwnerAccount:      getenv("OWNER_ACCOUNT", "pool-owner"),
		OwnerMint:         mint,
		ReconcileSchedule: getenv("RECONCILE_SCHEDULE", "@every 1m"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
