package config

import (
	"strings"
	"time"

	"github.com/marmos91/dittoiso/pkg/adapter/ftp"
	"github.com/marmos91/dittoiso/pkg/image"
	"github.com/marmos91/dittoiso/pkg/source/cache"
	"github.com/marmos91/dittoiso/pkg/storage/iso"
)

// DefaultImageReader is the format reader used when image.reader is unset.
const DefaultImageReader = "iso9660"

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Default Strategy:
//   - Zero values (0, "", nil) are replaced with defaults
//   - Explicit values are preserved
//   - Booleans defaulting to true are handled by Load (see setupViper)
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyMetricsDefaults(&cfg.Metrics)
	applyImageDefaults(&cfg.Image)
	applyFTPDefaults(&cfg.Adapters.FTP)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// applyImageDefaults sets image, source and cache defaults.
func applyImageDefaults(cfg *ImageConfig) {
	if cfg.Reader == "" {
		cfg.Reader = DefaultImageReader
	}
	if cfg.BlockSize == 0 {
		cfg.BlockSize = image.DefaultBlockSize
	}
	if cfg.ReadChunkSize == 0 {
		cfg.ReadChunkSize = iso.DefaultReadChunkSize
	}
	if len(cfg.Naming.Prefer) == 0 {
		for _, c := range iso.DefaultPreference {
			cfg.Naming.Prefer = append(cfg.Naming.Prefer, string(c))
		}
	}
	for i, name := range cfg.Naming.Prefer {
		cfg.Naming.Prefer[i] = strings.ToLower(strings.TrimSpace(name))
	}

	src := &cfg.Source
	if src.Type == "" {
		src.Type = "file"
	}
	if src.File == nil {
		src.File = make(map[string]any)
	}
	if src.Memory == nil {
		src.Memory = make(map[string]any)
	}
	if src.S3 == nil {
		src.S3 = make(map[string]any)
	}
	if _, ok := src.File["path"]; !ok {
		src.File["path"] = "image.iso"
	}
	if _, ok := src.S3["region"]; !ok {
		src.S3["region"] = "us-east-1"
	}

	c := &cfg.Cache
	if c.Type == "" {
		c.Type = "none"
	}
	if c.BlockSize == 0 {
		c.BlockSize = cache.DefaultBlockSize
	}
	if c.Memory == nil {
		c.Memory = make(map[string]any)
	}
	if c.Badger == nil {
		c.Badger = make(map[string]any)
	}
	if _, ok := c.Memory["max_size_bytes"]; !ok {
		c.Memory["max_size_bytes"] = int64(256 << 20) // 256MB
	}
	if _, ok := c.Badger["path"]; !ok {
		c.Badger["path"] = "/tmp/dittoiso-cache"
	}
}

// applyFTPDefaults sets FTP adapter defaults beyond the ones ftp.New applies.
func applyFTPDefaults(cfg *ftp.FTPConfig) {
	if cfg.Port == 0 {
		cfg.Port = 2121
	}
	if cfg.BindAddress == "" {
		cfg.BindAddress = "127.0.0.1"
	}
	if cfg.PassivePortStart == 0 && cfg.PassivePortEnd == 0 {
		cfg.PassivePortStart = 50000
		cfg.PassivePortEnd = 65535
	}
	if cfg.Greeting == "" {
		cfg.Greeting = ftp.DefaultGreeting
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 15 * time.Minute
	}
	if cfg.ConnectionTimeout == 0 {
		cfg.ConnectionTimeout = 30 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Auth.Users == nil {
		cfg.Auth.Users = []ftp.UserConfig{}
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Adapters: AdaptersConfig{
			FTP: ftp.FTPConfig{
				Enabled: true,
				Auth:    ftp.AuthConfig{Anonymous: true},
			},
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
