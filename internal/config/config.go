package config

import (
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	DBPath   string
	LogLevel string
}

// Load reads configuration from the environment, with an optional .env file
// filling in anything unset. Missing values fall back to defaults.
func Load() Config {
	// A missing .env file is fine; real deployments set the environment.
	_ = godotenv.Load()

	return Config{
		Port:     getEnv("TIMEKEEP_PORT", "8080"),
		DBPath:   getEnv("TIMEKEEP_DB_PATH", "timekeep.db"),
		LogLevel: getEnv("TIMEKEEP_LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
