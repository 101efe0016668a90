package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/narrio/narrio/pkg/types"
	"gopkg.in/yaml.v3"
)

// Load reads and parses the configuration file
// It also supports environment variable overrides with NARRIO_ prefix
func Load(configPath string) (*types.Config, error) {
	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	var cfg types.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(&cfg)

	// Validate configuration
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks if the configuration is valid and fills in defaults for
// optional settings.
func Validate(cfg *types.Config) error {
	// Validate server config
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}

	// Validate storage adapter
	if cfg.Storage.Adapter != "local" && cfg.Storage.Adapter != "s3" {
		return fmt.Errorf("invalid storage adapter: %s (must be 'local' or 's3')", cfg.Storage.Adapter)
	}

	if cfg.Storage.Adapter == "local" {
		if cfg.Storage.Local.BasePath == "" {
			return fmt.Errorf("local storage base_path is required")
		}
		if !filepath.IsAbs(cfg.Storage.Local.BasePath) {
			return fmt.Errorf("local storage base_path must be absolute: %s", cfg.Storage.Local.BasePath)
		}
	}

	if cfg.Storage.Adapter == "s3" {
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("s3 bucket is required")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("s3 region is required")
		}
	}

	if cfg.Conversion.OutputDir == "" {
		return fmt.Errorf("conversion output_dir is required")
	}

	// Conversion defaults
	if cfg.Conversion.DefaultVoice == "" {
		cfg.Conversion.DefaultVoice = "en-US-AriaNeural"
	}
	if cfg.Conversion.DefaultRate == "" {
		cfg.Conversion.DefaultRate = "+0%"
	}
	if cfg.Conversion.MaxConcurrentChapters <= 0 {
		cfg.Conversion.MaxConcurrentChapters = 3
	}
	if cfg.Conversion.CleanupAgeSeconds <= 0 {
		cfg.Conversion.CleanupAgeSeconds = 3600
	}

	// Limit defaults
	if cfg.Limits.MaxFileSizeMB <= 0 {
		cfg.Limits.MaxFileSizeMB = 50
	}
	if cfg.Limits.FreePageLimit <= 0 {
		cfg.Limits.FreePageLimit = 50
	}
	if cfg.Limits.MaxChapters <= 0 {
		cfg.Limits.MaxChapters = 60
	}
	if cfg.Limits.MaxTotalWords <= 0 {
		cfg.Limits.MaxTotalWords = 500_000
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides
// Environment variables should be prefixed with NARRIO_
func applyEnvOverrides(cfg *types.Config) {
	// Server overrides
	if val := os.Getenv("NARRIO_SERVER_HOST"); val != "" {
		cfg.Server.Host = val
	}
	if val := os.Getenv("NARRIO_SERVER_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &cfg.Server.Port)
	}

	// Storage overrides
	if val := os.Getenv("NARRIO_STORAGE_ADAPTER"); val != "" {
		cfg.Storage.Adapter = val
	}
	if val := os.Getenv("NARRIO_STORAGE_LOCAL_BASE_PATH"); val != "" {
		cfg.Storage.Local.BasePath = val
	}
	if val := os.Getenv("NARRIO_STORAGE_S3_BUCKET"); val != "" {
		cfg.Storage.S3.Bucket = val
	}
	if val := os.Getenv("NARRIO_STORAGE_S3_REGION"); val != "" {
		cfg.Storage.S3.Region = val
	}
	if val := os.Getenv("NARRIO_STORAGE_S3_ENDPOINT"); val != "" {
		cfg.Storage.S3.Endpoint = val
	}
	if val := os.Getenv("NARRIO_STORAGE_S3_ACCESS_KEY_ID"); val != "" {
		cfg.Storage.S3.AccessKeyID = val
	}
	if val := os.Getenv("NARRIO_STORAGE_S3_SECRET_ACCESS_KEY"); val != "" {
		cfg.Storage.S3.SecretAccessKey = val
	}

	// Conversion overrides
	if val := os.Getenv("NARRIO_OUTPUT_DIR"); val != "" {
		cfg.Conversion.OutputDir = val
	}

	// TTS provider API key / endpoint overrides
	for i := range cfg.TTS {
		prefix := fmt.Sprintf("NARRIO_TTS_%s_", strings.ToUpper(cfg.TTS[i].Name))
		if val := os.Getenv(prefix + "API_KEY"); val != "" {
			cfg.TTS[i].APIKey = val
		}
		if val := os.Getenv(prefix + "ENDPOINT"); val != "" {
			cfg.TTS[i].Endpoint = val
		}
	}
}

// GetDefault returns a default configuration
func GetDefault() *types.Config {
	return &types.Config{
		Server: types.ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  15,
			WriteTimeout: 15,
		},
		Storage: types.StorageConfig{
			Adapter: "local",
			Local: types.LocalStorageOpts{
				BasePath: "/var/lib/narrio/uploads",
			},
		},
		Conversion: types.ConversionConfig{
			Provider:              "edge",
			OutputDir:             "/var/lib/narrio/output",
			DefaultVoice:          "en-US-AriaNeural",
			DefaultRate:           "+0%",
			MaxConcurrentChapters: 3,
			CleanupAgeSeconds:     3600,
		},
		Limits: types.LimitsConfig{
			MaxFileSizeMB: 50,
			FreePageLimit: 50,
			MaxChapters:   60,
			MaxTotalWords: 500_000,
		},
	}
}
