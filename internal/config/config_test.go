package config

import (
	"testing"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should validate: %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SUMMAVI_LISTEN_ADDR", ":9999")
	t.Setenv("SUMMAVI_COMPRESSION_LEVEL", "1")

	cfg := DefaultConfig()
	if cfg.Server.ListenAddr != ":9999" {
		t.Errorf("Expected listen addr :9999, got %s", cfg.Server.ListenAddr)
	}
	if cfg.Cache.CompressionLevel != 1 {
		t.Errorf("Expected compression level 1, got %d", cfg.Cache.CompressionLevel)
	}
}

func TestValidateErrors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty listen addr", func(c *Config) { c.Server.ListenAddr = "" }},
		{"empty cache path", func(c *Config) { c.Cache.Path = "" }},
		{"compression level too high", func(c *Config) { c.Cache.CompressionLevel = 5 }},
		{"zero cache entries", func(c *Config) { c.Cache.MaxEntries = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestToStorageConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.Path = "/tmp/summavi"

	sc := cfg.ToStorageConfig()
	if sc.Path != "/tmp/summavi" {
		t.Errorf("Expected path /tmp/summavi, got %s", sc.Path)
	}
	if sc.CompressionLevel != cfg.Cache.CompressionLevel {
		t.Errorf("Compression level not carried over")
	}
}
