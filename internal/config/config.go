package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config contains runtime configuration required by the service.
type Config struct {
	DBURL string
	Addr  string
	Debug bool
}

// Load reads configuration from the environment, after merging a local
// .env file when one exists. Defaults let the service run out-of-the-box
// against a local SQLite file.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		DBURL: getenv("DB_URL", "sqlite://monitoring.db"),
		Addr:  getenv("ADDR", ":8080"),
	}

	if v := strings.TrimSpace(os.Getenv("DEBUG")); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("DEBUG must be a boolean, got %q", v)
		}
		cfg.Debug = debug
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
