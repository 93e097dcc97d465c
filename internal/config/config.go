// Package config loads notesync configuration from an optional YAML file,
// a .env file and NOTESYNC_* environment variables, in increasing order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/notesync/internal/logging"
	"github.com/aretw0/notesync/pkg/router"
)

// EnvConfigFile names the YAML file to load when no path is given.
const EnvConfigFile = "NOTESYNC_CONFIG"

type Config struct {
	Mode      string        `yaml:"mode"`
	DataDir   string        `yaml:"data_dir"`
	CloudURL  string        `yaml:"cloud_url"`
	DBPath    string        `yaml:"db_path"`
	QueuePath string        `yaml:"queue_path"`
	RetryBase time.Duration `yaml:"retry_base"`
	LogLevel  string        `yaml:"log_level"`

	Server Server `yaml:"server"`
}

// Server configures the reference cloud service.
type Server struct {
	Addr           string        `yaml:"addr"`
	Secret         string        `yaml:"secret"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps"`
	RateLimitBurst int           `yaml:"rate_limit_burst"`
	TokenTTL       time.Duration `yaml:"token_ttl"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Mode:      string(router.ModeWeb),
		DataDir:   ".notesync",
		RetryBase: time.Second,
		LogLevel:  "info",
		Server: Server{
			Addr:           ":8080",
			RateLimitRPS:   10,
			RateLimitBurst: 20,
			TokenTTL:       24 * time.Hour,
		},
	}
}

// Load builds the configuration. path may be empty; then the file named by
// NOTESYNC_CONFIG is used if set.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.Mode = getEnv("NOTESYNC_MODE", cfg.Mode)
	cfg.DataDir = getEnv("NOTESYNC_DATA_DIR", cfg.DataDir)
	cfg.CloudURL = getEnv("NOTESYNC_CLOUD_URL", cfg.CloudURL)
	cfg.DBPath = getEnv("NOTESYNC_DB_PATH", cfg.DBPath)
	cfg.QueuePath = getEnv("NOTESYNC_QUEUE_PATH", cfg.QueuePath)
	cfg.RetryBase = getEnvAsDuration("NOTESYNC_RETRY_BASE", cfg.RetryBase)
	cfg.LogLevel = getEnv("NOTESYNC_LOG_LEVEL", cfg.LogLevel)
	cfg.Server.Addr = getEnv("NOTESYNC_SERVER_ADDR", cfg.Server.Addr)
	cfg.Server.Secret = getEnv("NOTESYNC_SERVER_SECRET", cfg.Server.Secret)
	cfg.Server.RateLimitRPS = getEnvAsFloat("NOTESYNC_RATE_LIMIT_RPS", cfg.Server.RateLimitRPS)
	cfg.Server.RateLimitBurst = getEnvAsInt("NOTESYNC_RATE_LIMIT_BURST", cfg.Server.RateLimitBurst)
	cfg.Server.TokenTTL = getEnvAsDuration("NOTESYNC_TOKEN_TTL", cfg.Server.TokenTTL)

	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.DataDir, "notesync.db")
	}
	if cfg.QueuePath == "" {
		cfg.QueuePath = filepath.Join(cfg.DataDir, "queue.pending")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the client settings.
func (c *Config) Validate() error {
	if _, err := router.ParseMode(c.Mode); err != nil {
		return err
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return errors.New("data_dir is required")
	}
	if c.RetryBase <= 0 {
		return errors.New("retry_base must be positive")
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ValidateServer checks the settings needed to run the cloud service.
func (c *Config) ValidateServer() error {
	if len(c.Server.Secret) < 16 {
		return errors.New("NOTESYNC_SERVER_SECRET must be at least 16 characters")
	}
	if c.Server.TokenTTL <= 0 {
		return errors.New("token_ttl must be positive")
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

func getEnvAsInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}
