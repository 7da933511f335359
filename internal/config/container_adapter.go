package config

import (
	"github.com/garyjia/expense-capture/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			MigrationsDir:   c.Database.MigrationsDir,
		},
		Storage: container.StorageConfig{
			Backend: c.Storage.Backend,
			BaseDir: c.Storage.BaseDir,
			Bucket:  c.Storage.Bucket,
			Prefix:  c.Storage.Prefix,
		},
		Extraction: container.ExtractionConfig{
			Provider:          c.Extraction.Provider,
			PromptsPath:       c.Extraction.PromptsPath,
			MaxPages:          c.Extraction.MaxPages,
			RequestsPerMinute: c.Extraction.RequestsPerMinute,
			Timeout:           c.Extraction.Timeout,
			MaxAttempts:       c.Extraction.MaxAttempts,
			OpenAI: container.ModelConfig{
				APIKey:  c.OpenAI.APIKey,
				BaseURL: c.OpenAI.BaseURL,
				Model:   c.OpenAI.Model,
			},
			Gemini: container.ModelConfig{
				APIKey:  c.Gemini.APIKey,
				BaseURL: c.Gemini.BaseURL,
				Model:   c.Gemini.Model,
			},
			QueryModel: c.OpenAI.QueryModel,
		},
		Auth: container.AuthConfig{
			AllowedUsers: c.Auth.AllowedUsers,
		},
		Listing: container.ListingConfig{
			ExportLimit: c.Listing.ExportLimit,
		},
		Server: container.ServerConfig{
			Host:            c.Server.Host,
			Port:            c.Server.Port,
			ReadTimeout:     c.Server.ReadTimeout,
			WriteTimeout:    c.Server.WriteTimeout,
			ShutdownTimeout: c.Server.ShutdownTimeout,
			MaxUploadBytes:  int64(c.Server.MaxUploadMB) << 20,
			AllowedOrigins:  c.Server.AllowedOrigins,
			Debug:           c.Logger.Level == "debug",
		},
		Worker: container.WorkerConfig{
			SweepInterval:   c.Storage.SweepInterval,
			UploadRetention: c.Storage.UploadRetention,
			SweepBatchSize:  c.Storage.SweepBatchSize,
		},
	}
}
