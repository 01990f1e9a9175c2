package config

import (
	"strings"
	"testing"

	"github.com/marmos91/dittoiso/pkg/adapter/ftp"
)

func TestValidate_DefaultConfig(t *testing.T) {
	if err := Validate(GetDefaultConfig()); err != nil {
		t.Fatalf("Default config should be valid: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{
			name:    "invalid log level",
			mutate:  func(cfg *Config) { cfg.Logging.Level = "TRACE" },
			wantErr: "logging.level",
		},
		{
			name:    "invalid source type",
			mutate:  func(cfg *Config) { cfg.Image.Source.Type = "http" },
			wantErr: "image.source.type",
		},
		{
			name:    "invalid cache type",
			mutate:  func(cfg *Config) { cfg.Image.Cache.Type = "redis" },
			wantErr: "image.cache.type",
		},
		{
			name:    "invalid image reader",
			mutate:  func(cfg *Config) { cfg.Image.Reader = "udf" },
			wantErr: "image.reader",
		},
		{
			name:    "invalid block size",
			mutate:  func(cfg *Config) { cfg.Image.BlockSize = 4096 },
			wantErr: "image.block_size",
		},
		{
			name:    "unknown naming convention",
			mutate:  func(cfg *Config) { cfg.Image.Naming.Prefer = []string{"udf"} },
			wantErr: "image.naming.prefer[0]: validation failed on 'convention'",
		},
		{
			name:    "duplicate naming convention",
			mutate:  func(cfg *Config) { cfg.Image.Naming.Prefer = []string{"joliet", "joliet"} },
			wantErr: "duplicate convention",
		},
		{
			name:    "duplicate naming convention in another case",
			mutate:  func(cfg *Config) { cfg.Image.Naming.Prefer = []string{"Joliet", "joliet"} },
			wantErr: "duplicate convention",
		},
		{
			name:    "adapter disabled",
			mutate:  func(cfg *Config) { cfg.Adapters.FTP.Enabled = false },
			wantErr: "at least one adapter",
		},
		{
			name: "passive range reversed",
			mutate: func(cfg *Config) {
				cfg.Adapters.FTP.PassivePortStart = 6000
				cfg.Adapters.FTP.PassivePortEnd = 5000
			},
			wantErr: "passive_port_start",
		},
		{
			name:    "tls key without cert",
			mutate:  func(cfg *Config) { cfg.Adapters.FTP.TLS.KeyFile = "key.pem" },
			wantErr: "cert_file and key_file",
		},
		{
			name:    "no way to log in",
			mutate:  func(cfg *Config) { cfg.Adapters.FTP.Auth.Anonymous = false },
			wantErr: "no users are configured",
		},
		{
			name: "plain text password",
			mutate: func(cfg *Config) {
				cfg.Adapters.FTP.Auth.Users = []ftp.UserConfig{{Username: "alice", PasswordHash: "secret"}}
			},
			wantErr: "not a bcrypt hash",
		},
		{
			name: "user without hash",
			mutate: func(cfg *Config) {
				cfg.Adapters.FTP.Auth.Users = []ftp.UserConfig{{Username: "alice"}}
			},
			wantErr: "adapters.ftp.auth.users[0].password_hash",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatalf("Expected validation error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_DuplicateUsers(t *testing.T) {
	hash := bcryptHash(t, "secret")

	cfg := GetDefaultConfig()
	cfg.Adapters.FTP.Auth.Users = []ftp.UserConfig{
		{Username: "alice", PasswordHash: hash},
		{Username: "alice", PasswordHash: hash},
	}

	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "duplicate username") {
		t.Fatalf("Expected duplicate username error, got: %v", err)
	}
}
