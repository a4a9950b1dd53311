package storage

import (
	"fmt"

	"github.com/quadrabot/quadra/pkg/schedule"
)

// Config holds configuration for storage backends.
type Config struct {
	Type string `json:"type" yaml:"type"` // "memory", "file", "s3"

	// File storage config
	FilePath       string `json:"file_path,omitempty" yaml:"file_path,omitempty"`
	SyncInterval   int    `json:"sync_interval_seconds,omitempty" yaml:"sync_interval_seconds,omitempty"`
	EncryptSecrets bool   `json:"encrypt_sensitive_data,omitempty" yaml:"encrypt_sensitive_data,omitempty"`

	// S3 storage config
	S3Bucket    string `json:"s3_bucket,omitempty" yaml:"s3_bucket,omitempty"`
	S3Region    string `json:"s3_region,omitempty" yaml:"s3_region,omitempty"`
	S3Prefix    string `json:"s3_prefix,omitempty" yaml:"s3_prefix,omitempty"`
	S3Endpoint  string `json:"s3_endpoint,omitempty" yaml:"s3_endpoint,omitempty"`
	S3AccessKey string `json:"s3_access_key,omitempty" yaml:"s3_access_key,omitempty"`
	S3SecretKey string `json:"s3_secret_key,omitempty" yaml:"s3_secret_key,omitempty"`
}

// NewStore creates a store instance based on the configuration.
func NewStore(config *Config) (schedule.Store, error) {
	switch config.Type {
	case "memory", "":
		return NewMemoryStore(), nil

	case "file":
		if config.FilePath == "" {
			config.FilePath = "./quadra.json"
		}
		if config.SyncInterval == 0 {
			config.SyncInterval = 30 // Default to 30 seconds
		}
		return NewFileStore(config.FilePath, config.SyncInterval, config.EncryptSecrets)

	case "s3":
		return NewS3Store(config.S3Bucket, config.S3Region, config.S3Prefix,
			config.S3Endpoint, config.S3AccessKey, config.S3SecretKey, config.EncryptSecrets)

	default:
		return nil, fmt.Errorf("unknown storage type: %s", config.Type)
	}
}
