// Package config loads the server configuration from a JSON or YAML file
// with environment-variable overrides.
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/quadrabot/quadra/pkg/storage"
)

// WorkerConfig configures the schedule polling worker.
type WorkerConfig struct {
	Enabled              bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	CheckIntervalSeconds int  `json:"check_interval_seconds" yaml:"check_interval_seconds" mapstructure:"check_interval_seconds"`
}

// NotificationConfig configures outbound notification channels. Channel
// credentials themselves come from environment variables.
type NotificationConfig struct {
	SubscriptionFile string `json:"subscription_file" yaml:"subscription_file" mapstructure:"subscription_file"`
}

// Config represents the server configuration.
type Config struct {
	// Port is the HTTP listen port
	Port int `json:"port" yaml:"port" mapstructure:"port"`
	// Verbose enables request logging
	Verbose bool `json:"verbose" yaml:"verbose" mapstructure:"verbose"`

	Storage      storage.Config     `json:"storage" yaml:"storage" mapstructure:"storage"`
	Worker       WorkerConfig       `json:"worker" yaml:"worker" mapstructure:"worker"`
	Notification NotificationConfig `json:"notification" yaml:"notification" mapstructure:"notification"`
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		Port: 8080,
		Storage: storage.Config{
			Type: "memory",
		},
		Worker: WorkerConfig{
			Enabled:              true,
			CheckIntervalSeconds: 30,
		},
		Notification: NotificationConfig{
			SubscriptionFile: "./subscriptions.json",
		},
	}
}

// LoadConfig loads configuration from a JSON or YAML file, selected by
// extension, then applies environment overrides.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	switch filepath.Ext(filename) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	default:
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	}

	config.applyDefaults()
	config.applyEnvOverrides()
	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.Worker.CheckIntervalSeconds == 0 {
		c.Worker.CheckIntervalSeconds = 30
	}
	if c.Notification.SubscriptionFile == "" {
		c.Notification.SubscriptionFile = "./subscriptions.json"
	}
}

// applyEnvOverrides lets deployment environments override file settings
// without editing the config file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("QUADRA_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		} else {
			log.Printf("Warning: invalid QUADRA_PORT value %q: %v", v, err)
		}
	}
	if v := os.Getenv("QUADRA_STORAGE_TYPE"); v != "" {
		c.Storage.Type = v
	}
	if v := os.Getenv("QUADRA_STORAGE_FILE"); v != "" {
		c.Storage.FilePath = v
	}
	if v := os.Getenv("QUADRA_S3_BUCKET"); v != "" {
		c.Storage.S3Bucket = v
	}
	if v := os.Getenv("QUADRA_S3_REGION"); v != "" {
		c.Storage.S3Region = v
	}
	if v := os.Getenv("QUADRA_S3_ENDPOINT"); v != "" {
		c.Storage.S3Endpoint = v
	}
}
