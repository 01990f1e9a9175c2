package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

const configHeader = `# DittoISO Configuration File
#
# Serves one ISO 9660 disc image (with Joliet and Rock Ridge extensions)
# read-only over FTP. Every key can be overridden from the environment with
# the DITTOISO_ prefix, e.g. DITTOISO_ADAPTERS_FTP_PORT=2121.
#
# image.source.type selects file, s3 or memory; only the matching section
# is read. image.cache.type selects none, memory or badger.
#
# FTP users are listed under adapters.ftp.auth.users with a bcrypt
# password_hash (htpasswd -nbBC 10 "" secret | cut -d: -f2).

`

// InitConfig writes the default configuration to the default location.
//
// Returns the path of the written file. Fails if the file exists and force
// is false.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes the default configuration to path, creating
// parent directories as needed.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	data, err := MarshalYAML(GetDefaultConfig())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// MarshalYAML renders cfg as commented YAML, keyed like the config file.
func MarshalYAML(cfg *Config) ([]byte, error) {
	// go through mapstructure so the keys follow the mapstructure tags
	var tree map[string]any
	if err := mapstructure.Decode(cfg, &tree); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(configHeader)

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(tree); err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}

	return buf.Bytes(), nil
}
