package config

import (
	"fmt"
	"os"
	"time"

	"github.com/summavi/summavi/pkg/storage"
)

// Config holds the application configuration.
type Config struct {
	Server   ServerConfig
	Cache    CacheConfig
	Settings SettingsConfig
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	ListenAddr string
	Timeout    time.Duration
}

// CacheConfig holds the extraction-cache configuration.
type CacheConfig struct {
	Path             string
	CompressionLevel int
	MaxEntries       int
	TTL              time.Duration
}

// SettingsConfig locates the YAML settings document. An empty File means
// the embedded defaults.
type SettingsConfig struct {
	File string
}

// DefaultConfig returns the default configuration with environment
// overrides applied.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr: getEnv("SUMMAVI_LISTEN_ADDR", ":8080"),
			Timeout:    30 * time.Second,
		},
		Cache: CacheConfig{
			Path:             getEnv("SUMMAVI_CACHE_PATH", "./cache"),
			CompressionLevel: getEnvInt("SUMMAVI_COMPRESSION_LEVEL", 3),
			MaxEntries:       getEnvInt("SUMMAVI_CACHE_ENTRIES", 64),
			TTL:              time.Hour,
		},
		Settings: SettingsConfig{
			File: getEnv("SUMMAVI_SETTINGS_FILE", ""),
		},
	}
}

// ToStorageConfig converts to storage.Config.
func (c *Config) ToStorageConfig() *storage.Config {
	return &storage.Config{
		Path:             c.Cache.Path,
		CompressionLevel: c.Cache.CompressionLevel,
		MaxCacheEntries:  c.Cache.MaxEntries,
		CacheTTL:         c.Cache.TTL,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server listen address is required")
	}

	if c.Cache.Path == "" {
		return fmt.Errorf("cache path is required")
	}

	if c.Cache.CompressionLevel < 1 || c.Cache.CompressionLevel > 4 {
		return fmt.Errorf("compression level must be between 1 and 4")
	}

	if c.Cache.MaxEntries < 1 {
		return fmt.Errorf("cache entries must be at least 1")
	}

	return nil
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
			return intVal
		}
	}
	return defaultValue
}
