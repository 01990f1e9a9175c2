package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/dittoiso/pkg/adapter/ftp"
	"github.com/spf13/viper"
)

// Config represents the complete DittoISO configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (DITTOISO_*)
//  2. Configuration file (YAML)
//  3. Default values
//
// Store Configuration Pattern:
// The image source and the block cache are selected by a Type field; each
// type reads its own section (e.g. image.source.s3, image.cache.badger) and
// only the section matching the selected type is used.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Server contains server-wide settings
	Server ServerConfig `mapstructure:"server"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Image selects the disc image and how it is read
	Image ImageConfig `mapstructure:"image"`

	// Adapters contains protocol adapter configurations
	Adapters AdaptersConfig `mapstructure:"adapters"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required"`
}

// ServerConfig contains server-wide settings.
type ServerConfig struct {
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`
}

// MetricsConfig configures the metrics HTTP server.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port" validate:"min=0,max=65535"`
}

// ImageConfig describes the served disc image.
type ImageConfig struct {
	// Source locates the image bytes
	Source SourceConfig `mapstructure:"source"`

	// Reader selects the format decoder
	// Valid values: iso9660 (names from every tree, Rock Ridge attributes),
	// diskfs (go-diskfs, one name per record)
	Reader string `mapstructure:"reader" validate:"required,oneof=iso9660 diskfs"`

	// BlockSize is the ISO 9660 logical block size
	BlockSize int64 `mapstructure:"block_size" validate:"oneof=512 1024 2048"`

	// Naming selects which name each entry is shown under
	Naming NamingConfig `mapstructure:"naming"`

	// ReadChunkSize bounds every read issued while streaming a file
	ReadChunkSize int `mapstructure:"read_chunk_size" validate:"gt=0,lte=16777216"`

	// Cache configures the optional block cache in front of the source
	Cache CacheConfig `mapstructure:"cache"`
}

// SourceConfig selects the image source implementation.
type SourceConfig struct {
	// Type specifies where the image is read from
	// Valid values: file, s3, memory
	Type string `mapstructure:"type" validate:"required,oneof=file s3 memory"`

	// File contains local file configuration ({path})
	File map[string]any `mapstructure:"file"`

	// S3 contains S3 object configuration
	// ({bucket, key, region, endpoint, access_key_id, secret_access_key, force_path_style, max_retries})
	S3 map[string]any `mapstructure:"s3"`

	// Memory loads a local file into memory at startup ({path})
	Memory map[string]any `mapstructure:"memory"`
}

// NamingConfig orders the naming conventions.
type NamingConfig struct {
	// Prefer lists conventions from most to least preferred
	// Valid values: rockridge, joliet, iso9660
	Prefer []string `mapstructure:"prefer" validate:"required,min=1,dive,convention"`
}

// CacheConfig selects the block cache implementation.
type CacheConfig struct {
	// Type specifies the block store
	// Valid values: none, memory, badger
	Type string `mapstructure:"type" validate:"required,oneof=none memory badger"`

	// BlockSize is the cache granularity in bytes
	BlockSize int64 `mapstructure:"block_size" validate:"gt=0"`

	// Memory contains ristretto configuration ({max_size_bytes})
	Memory map[string]any `mapstructure:"memory"`

	// Badger contains BadgerDB configuration ({path, in_memory, block_cache_size_mb})
	Badger map[string]any `mapstructure:"badger"`
}

// AdaptersConfig contains all protocol adapter configurations.
type AdaptersConfig struct {
	// FTP uses the ftp.FTPConfig type directly to avoid duplication.
	FTP ftp.FTPConfig `mapstructure:"ftp"`
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Example: DITTOISO_ADAPTERS_FTP_PORT=2121
	v.SetEnvPrefix("DITTOISO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Booleans that default to true cannot be told apart from an explicit
	// false once unmarshalled, so they are defaulted here.
	v.SetDefault("adapters.ftp.enabled", true)
	v.SetDefault("adapters.ftp.auth.anonymous", true)

	// AutomaticEnv only overrides keys viper already knows about
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// $XDG_CONFIG_HOME/dittoiso/config.yaml
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// envKeys are the scalar keys that may be set from the environment alone.
var envKeys = []string{
	"logging.level",
	"logging.format",
	"logging.output",
	"server.shutdown_timeout",
	"metrics.enabled",
	"metrics.port",
	"image.reader",
	"image.source.type",
	"image.source.file.path",
	"image.source.memory.path",
	"image.source.s3.bucket",
	"image.source.s3.key",
	"image.source.s3.region",
	"image.source.s3.endpoint",
	"image.source.s3.access_key_id",
	"image.source.s3.secret_access_key",
	"image.cache.type",
	"image.cache.badger.path",
	"image.read_chunk_size",
	"adapters.ftp.bind_address",
	"adapters.ftp.port",
	"adapters.ftp.public_host",
	"adapters.ftp.max_connections",
	"adapters.ftp.tls.cert_file",
	"adapters.ftp.tls.key_file",
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// Config file not found is acceptable - use defaults
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dittoiso")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "dittoiso")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
