package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// RedisConfig holds the connection settings for the message bus.
type RedisConfig struct {
	Addr     string `yaml:"addr" validate:"required"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty" validate:"min=0"`
}

// GmailConfig holds the settings for outbound notification mail. The
// whole block is optional; without it shift creation notices are skipped.
type GmailConfig struct {
	UserID     string   `yaml:"gmailUserID" validate:"required"`
	Sender     string   `yaml:"gmailSender,omitempty"`
	Recipients []string `yaml:"recipients,omitempty" validate:"dive,email"`
}

// Config represents the application configuration
type Config struct {
	DatabaseURL              string       `yaml:"databaseURL" validate:"required"`
	Redis                    RedisConfig  `yaml:"redis" validate:"required"`
	QueryTimeoutSeconds      int          `yaml:"queryTimeoutSeconds,omitempty" validate:"min=0"`
	ReconcileIntervalMinutes int          `yaml:"reconcileIntervalMinutes,omitempty" validate:"min=0"`
	LookAheadDays            int          `yaml:"lookAheadDays,omitempty" validate:"min=0"`
	Gmail                    *GmailConfig `yaml:"gmail,omitempty"`
}

// QueryTimeout returns the cross-service query timeout, defaulting to 10s.
func (c *Config) QueryTimeout() time.Duration {
	if c.QueryTimeoutSeconds == 0 {
		return 10 * time.Second
	}
	return time.Duration(c.QueryTimeoutSeconds) * time.Second
}

// ReconcileInterval returns the gap between reconciliation runs,
// defaulting to one hour.
func (c *Config) ReconcileInterval() time.Duration {
	if c.ReconcileIntervalMinutes == 0 {
		return time.Hour
	}
	return time.Duration(c.ReconcileIntervalMinutes) * time.Minute
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Load loads and validates the configuration for the given environment,
// from rosterd_config.<env>.yaml. It looks for the config file in the
// current directory first, then in the user's home directory.
func Load(env string) (*Config, error) {
	configPath, err := findConfigFile(env)
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	return LoadFromPath(configPath)
}

// LoadFromPath loads and validates the configuration from a specific path
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate validates the configuration struct
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// findConfigFile searches for the environment's config file in the
// current directory and home directory
func findConfigFile(env string) (string, error) {
	configFileName := fmt.Sprintf("rosterd_config.%s.yaml", env)

	// Check current directory
	if _, err := os.Stat(configFileName); err == nil {
		return configFileName, nil
	}

	// Check home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	homeConfigPath := filepath.Join(homeDir, configFileName)
	if _, err := os.Stat(homeConfigPath); err == nil {
		return homeConfigPath, nil
	}

	return "", fmt.Errorf("config file %s not found in current directory or home directory", configFileName)
}
