// Package container provides dependency injection and lifecycle management
// for the bill capture server.
package container

import (
	"fmt"
	"time"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Storage configuration for uploaded originals
	Storage StorageConfig

	// Extraction configuration for the model providers
	Extraction ExtractionConfig

	// Auth lists the recognized principals
	Auth AuthConfig

	// Listing configuration
	Listing ListingConfig

	// Server configuration
	Server ServerConfig

	// Worker configuration
	Worker WorkerConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration

	// MigrationsDir overrides the embedded schema when set
	MigrationsDir string
}

// StorageConfig holds file storage settings.
type StorageConfig struct {
	// Backend is "local" or "gcs"
	Backend string

	// BaseDir is the root directory of the local backend
	BaseDir string

	// Bucket and Prefix locate objects in the gcs backend
	Bucket string
	Prefix string
}

// ExtractionConfig holds document extraction and query planning settings.
type ExtractionConfig struct {
	// Provider is "openai" or "gemini"
	Provider string

	// PromptsPath overrides the built-in prompts when set
	PromptsPath string

	// MaxPages limits how many PDF pages are rasterized
	MaxPages int

	// RequestsPerMinute throttles model calls
	RequestsPerMinute int

	// Timeout bounds a single extraction
	Timeout time.Duration

	// MaxAttempts counts the first try
	MaxAttempts int

	OpenAI ModelConfig
	Gemini ModelConfig

	// QueryModel is the OpenAI model used to plan natural language queries
	QueryModel string
}

// ModelConfig holds the credentials of one model provider.
type ModelConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// AuthConfig holds the principal allow list.
type AuthConfig struct {
	AllowedUsers []string
}

// ListingConfig holds listing settings.
type ListingConfig struct {
	// ExportLimit caps the rows of one export
	ExportLimit int
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host to bind to
	Host string

	// Port to listen on
	Port int

	// ReadTimeout for HTTP server
	ReadTimeout time.Duration

	// WriteTimeout for HTTP server
	WriteTimeout time.Duration

	// ShutdownTimeout bounds graceful shutdown
	ShutdownTimeout time.Duration

	// MaxUploadBytes rejects larger documents
	MaxUploadBytes int64

	// AllowedOrigins for CORS, "*" allows all
	AllowedOrigins []string

	// Debug enables gin debug mode
	Debug bool
}

// WorkerConfig holds background worker settings.
type WorkerConfig struct {
	// Upload sweeper settings
	SweepInterval   time.Duration
	UploadRetention time.Duration
	SweepBatchSize  int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:         "data/bills.db",
			MaxOpenConns: 1,
			MaxIdleConns: 1,
		},
		Storage: StorageConfig{
			Backend: "local",
			BaseDir: "data/files",
		},
		Extraction: ExtractionConfig{
			Provider:          "openai",
			MaxPages:          2,
			RequestsPerMinute: 30,
			Timeout:           90 * time.Second,
			MaxAttempts:       3,
			OpenAI:            ModelConfig{Model: "gpt-4o-mini"},
			Gemini:            ModelConfig{Model: "gemini-2.0-flash"},
			QueryModel:        "gpt-4o-mini",
		},
		Auth: AuthConfig{
			AllowedUsers: []string{"u1"},
		},
		Listing: ListingConfig{
			ExportLimit: 10000,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ReadTimeout:     60 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			MaxUploadBytes:  20 << 20,
			AllowedOrigins:  []string{"*"},
		},
		Worker: WorkerConfig{
			SweepInterval:   time.Hour,
			UploadRetention: 24 * time.Hour,
			SweepBatchSize:  100,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	// Validate storage configuration
	switch c.Storage.Backend {
	case "local":
		if c.Storage.BaseDir == "" {
			return fmt.Errorf("storage.base_dir is required")
		}
	case "gcs":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	// Validate model configuration
	switch c.Extraction.Provider {
	case "openai":
		if c.Extraction.OpenAI.APIKey == "" {
			return fmt.Errorf("openai.api_key is required")
		}
	case "gemini":
		if c.Extraction.Gemini.APIKey == "" {
			return fmt.Errorf("gemini.api_key is required")
		}
	default:
		return fmt.Errorf("unknown extraction provider %q", c.Extraction.Provider)
	}

	if len(c.Auth.AllowedUsers) == 0 {
		return fmt.Errorf("auth.allowed_users is required")
	}

	return nil
}
