package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/vbonduro/invtrack/internal/logging"
)

const appName = "invtrack"

type Config struct {
	DBPath               string `yaml:"db_path"`
	BackupDir            string `yaml:"backup_dir"`
	LogLevel             string `yaml:"log_level"`
	LogFile              string `yaml:"log_file"`
	Actor                string `yaml:"actor"`
	LowStockThreshold    int    `yaml:"low_stock_threshold"`
	HistoryRetentionDays int    `yaml:"history_retention_days"`
}

// Default returns the configuration used when nothing is overridden. Data
// lives under the XDG data directory.
func Default() *Config {
	dataDir := filepath.Join(xdg.DataHome, appName)
	return &Config{
		DBPath:               filepath.Join(dataDir, "inventory.db"),
		BackupDir:            filepath.Join(dataDir, "backups"),
		LogLevel:             "info",
		Actor:                getEnv("USER", "system"),
		LowStockThreshold:    10,
		HistoryRetentionDays: 365,
	}
}

// Load layers, from lowest to highest precedence: defaults, the YAML file
// named by INVTRACK_CONFIG, a .env file in the working directory, and the
// process environment.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("INVTRACK_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	// .env never overrides variables already set in the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.DBPath = getEnv("INVTRACK_DB_PATH", c.DBPath)
	c.BackupDir = getEnv("INVTRACK_BACKUP_DIR", c.BackupDir)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFile = getEnv("LOG_FILE", c.LogFile)
	c.Actor = getEnv("INVTRACK_ACTOR", c.Actor)

	var err error
	if c.LowStockThreshold, err = getEnvInt("INVTRACK_LOW_STOCK_THRESHOLD", c.LowStockThreshold); err != nil {
		return err
	}
	if c.HistoryRetentionDays, err = getEnvInt("INVTRACK_HISTORY_RETENTION_DAYS", c.HistoryRetentionDays); err != nil {
		return err
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.DBPath == "" {
		errs = append(errs, errors.New("db path must not be empty"))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.Actor == "" {
		errs = append(errs, errors.New("actor must not be empty"))
	}
	if c.LowStockThreshold < 0 {
		errs = append(errs, fmt.Errorf("low stock threshold must not be negative, got %d", c.LowStockThreshold))
	}
	if c.HistoryRetentionDays < 0 {
		errs = append(errs, fmt.Errorf("history retention days must not be negative, got %d", c.HistoryRetentionDays))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, val, err)
	}
	return n, nil
}
