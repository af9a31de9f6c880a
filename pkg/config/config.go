package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds the desk service settings.
type Config struct {
	Port     string       // HTTP listen port
	DBPath   string       // SQLite file holding the ledger snapshot
	SeedFile string       // YAML customer catalog imported at start
	LogLevel logrus.Level // Minimum log level
}

// LoadConfig reads .env (when present) and the environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, using environment")
	}

	level, err := logrus.ParseLevel(getEnv("LEDGER_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid LEDGER_LOG_LEVEL: %w", err)
	}

	cfg := &Config{
		Port:     getEnv("LEDGER_PORT", "8080"),
		DBPath:   getEnv("LEDGER_DB_PATH", "hpgledger.db"),
		SeedFile: getEnv("LEDGER_SEED_FILE", "data/customers.yaml"),
		LogLevel: level,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil {
		return fmt.Errorf("invalid port '%s': must be a number", c.Port)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid port %d: must be between 1 and 65535", port)
	}
	if c.DBPath == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
