package types

// Config represents the overall application configuration
type Config struct {
	Server     ServerConfig        `yaml:"server" json:"server"`
	Storage    StorageConfig       `yaml:"storage" json:"storage"`
	TTS        []TTSProviderConfig `yaml:"tts" json:"tts"`
	Conversion ConversionConfig    `yaml:"conversion" json:"conversion"`
	Limits     LimitsConfig        `yaml:"limits" json:"limits"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host         string `yaml:"host" json:"host"`
	Port         int    `yaml:"port" json:"port"`
	ReadTimeout  int    `yaml:"read_timeout" json:"read_timeout"`   // seconds
	WriteTimeout int    `yaml:"write_timeout" json:"write_timeout"` // seconds
}

// StorageConfig defines storage adapter settings for uploads and the
// chapter text cache. Finished MP3s are always written to the local
// output directory (see ConversionConfig.OutputDir).
type StorageConfig struct {
	Adapter string           `yaml:"adapter" json:"adapter"` // "local" or "s3"
	Local   LocalStorageOpts `yaml:"local" json:"local"`
	S3      S3StorageOpts    `yaml:"s3" json:"s3"`
}

// LocalStorageOpts configures the local filesystem adapter
type LocalStorageOpts struct {
	BasePath string `yaml:"base_path" json:"base_path"`
}

// S3StorageOpts configures the S3-compatible adapter
type S3StorageOpts struct {
	Endpoint        string `yaml:"endpoint" json:"endpoint"`
	Region          string `yaml:"region" json:"region"`
	Bucket          string `yaml:"bucket" json:"bucket"`
	AccessKeyID     string `yaml:"access_key_id" json:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" json:"secret_access_key"`
	UseSSL          bool   `yaml:"use_ssl" json:"use_ssl"`
}

// TTSProviderConfig configures a TTS provider
type TTSProviderConfig struct {
	Name     string            `yaml:"name" json:"name"`
	Enabled  bool              `yaml:"enabled" json:"enabled"`
	Endpoint string            `yaml:"endpoint" json:"endpoint"`
	APIKey   string            `yaml:"api_key" json:"api_key"`
	Options  map[string]string `yaml:"options" json:"options"`
}

// ConversionConfig holds conversion pipeline settings
type ConversionConfig struct {
	Provider              string `yaml:"provider" json:"provider"`     // TTS provider name used for synthesis
	OutputDir             string `yaml:"output_dir" json:"output_dir"` // local directory for finished MP3s
	DefaultVoice          string `yaml:"default_voice" json:"default_voice"`
	DefaultRate           string `yaml:"default_rate" json:"default_rate"`
	MaxConcurrentChapters int    `yaml:"max_concurrent_chapters" json:"max_concurrent_chapters"`
	CleanupAgeSeconds     int    `yaml:"cleanup_age_seconds" json:"cleanup_age_seconds"`
}

// LimitsConfig holds upload and quota limits
type LimitsConfig struct {
	MaxFileSizeMB int `yaml:"max_file_size_mb" json:"max_file_size_mb"`
	FreePageLimit int `yaml:"free_page_limit" json:"free_page_limit"`
	MaxChapters   int `yaml:"max_chapters" json:"max_chapters"`
	MaxTotalWords int `yaml:"max_total_words" json:"max_total_words"`
}
