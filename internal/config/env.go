package config

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/fieldsite/fieldsite/internal/logfields"
)

// LoadEnv seeds the process environment from .env files. .env.local is
// loaded first so it wins over .env; neither overrides variables that are
// already set in the environment.
func LoadEnv() {
	for _, name := range []string{".env.local", ".env"} {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			slog.Warn("Failed to load env file", logfields.File(name), logfields.Error(err))
			continue
		}
		slog.Debug("Loaded environment variables", logfields.File(name))
	}
}
