package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/narrio/narrio/pkg/types"
)

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test.yaml")

	configContent := `
server:
  host: "localhost"
  port: 9090
  read_timeout: 10
  write_timeout: 10

storage:
  adapter: "local"
  local:
    base_path: "/tmp/test"

tts:
  - name: "edge"
    enabled: true
    endpoint: "http://localhost:5500"

conversion:
  provider: "edge"
  output_dir: "/tmp/output"
  default_voice: "en-GB-RyanNeural"

limits:
  max_file_size_mb: 25
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Host != "localhost" {
		t.Errorf("Expected host 'localhost', got '%s'", cfg.Server.Host)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Storage.Adapter != "local" {
		t.Errorf("Expected adapter 'local', got '%s'", cfg.Storage.Adapter)
	}
	if len(cfg.TTS) != 1 || cfg.TTS[0].Name != "edge" {
		t.Errorf("Unexpected TTS providers: %+v", cfg.TTS)
	}
	if cfg.Conversion.DefaultVoice != "en-GB-RyanNeural" {
		t.Errorf("Expected configured voice, got '%s'", cfg.Conversion.DefaultVoice)
	}
	if cfg.Limits.MaxFileSizeMB != 25 {
		t.Errorf("Expected 25 MB limit, got %d", cfg.Limits.MaxFileSizeMB)
	}

	// Unset limits are defaulted
	if cfg.Limits.FreePageLimit != 50 {
		t.Errorf("Expected default free page limit 50, got %d", cfg.Limits.FreePageLimit)
	}
	if cfg.Conversion.MaxConcurrentChapters != 3 {
		t.Errorf("Expected default concurrency 3, got %d", cfg.Conversion.MaxConcurrentChapters)
	}
	if cfg.Conversion.DefaultRate != "+0%" {
		t.Errorf("Expected default rate '+0%%', got '%s'", cfg.Conversion.DefaultRate)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*types.Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			modify:  func(c *types.Config) {},
			wantErr: false,
		},
		{
			name: "invalid port",
			modify: func(c *types.Config) {
				c.Server.Port = 0
			},
			wantErr: true,
		},
		{
			name: "invalid storage adapter",
			modify: func(c *types.Config) {
				c.Storage.Adapter = "invalid"
			},
			wantErr: true,
		},
		{
			name: "missing local base path",
			modify: func(c *types.Config) {
				c.Storage.Adapter = "local"
				c.Storage.Local.BasePath = ""
			},
			wantErr: true,
		},
		{
			name: "missing s3 bucket",
			modify: func(c *types.Config) {
				c.Storage.Adapter = "s3"
				c.Storage.S3.Region = "us-east-1"
				c.Storage.S3.Bucket = ""
			},
			wantErr: true,
		},
		{
			name: "missing output dir",
			modify: func(c *types.Config) {
				c.Conversion.OutputDir = ""
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefault()
			tt.modify(cfg)
			err := Validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test.yaml")

	configContent := `
server:
  host: "localhost"
  port: 8080
storage:
  adapter: "local"
  local:
    base_path: "/tmp/test"
tts:
  - name: "edge"
    enabled: true
    endpoint: "http://localhost:5500"
conversion:
  provider: "edge"
  output_dir: "/tmp/output"
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	os.Setenv("NARRIO_SERVER_PORT", "9999")
	os.Setenv("NARRIO_STORAGE_LOCAL_BASE_PATH", "/tmp/override")
	os.Setenv("NARRIO_TTS_EDGE_API_KEY", "secret-key")
	defer func() {
		os.Unsetenv("NARRIO_SERVER_PORT")
		os.Unsetenv("NARRIO_STORAGE_LOCAL_BASE_PATH")
		os.Unsetenv("NARRIO_TTS_EDGE_API_KEY")
	}()

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("Expected port 9999 from env override, got %d", cfg.Server.Port)
	}
	if cfg.Storage.Local.BasePath != "/tmp/override" {
		t.Errorf("Expected base_path '/tmp/override' from env override, got '%s'", cfg.Storage.Local.BasePath)
	}
	if cfg.TTS[0].APIKey != "secret-key" {
		t.Errorf("Expected API key from env override, got '%s'", cfg.TTS[0].APIKey)
	}
}

func TestGetDefault(t *testing.T) {
	cfg := GetDefault()
	if cfg == nil {
		t.Fatal("GetDefault() returned nil")
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("Default config fails validation: %v", err)
	}
	if cfg.Limits.MaxTotalWords != 500_000 {
		t.Errorf("Unexpected word cap %d", cfg.Limits.MaxTotalWords)
	}
}
