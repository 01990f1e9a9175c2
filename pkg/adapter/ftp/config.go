package ftp

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// DefaultGreeting is sent in the 220 reply to every new connection.
const DefaultGreeting = "Welcome to DittoISO"

// FTPConfig holds configuration parameters for the FTP server.
//
// Default values (applied by New if zero):
//   - BindAddress: 127.0.0.1
//   - Port: none, 0 picks a free port (pkg/config defaults it to 2121)
//   - PassivePortStart/End: 50000-65535
//   - Greeting: "Welcome to DittoISO"
//   - IdleTimeout: 15m
//   - ConnectionTimeout: 30s
//   - ShutdownTimeout: 30s
//   - MaxConnections: 0 (unlimited)
//   - ConnectionRate: 0 (unlimited)
type FTPConfig struct {
	// Enabled controls whether the FTP adapter is active.
	Enabled bool `mapstructure:"enabled"`

	// BindAddress is the interface the control connection listens on.
	BindAddress string `mapstructure:"bind_address" validate:"omitempty,ip|hostname"`

	// Port is the TCP port of the control connection.
	Port int `mapstructure:"port" validate:"min=0,max=65535"`

	// PublicHost is the address announced in PASV replies. Empty lets the
	// FTP library use the control connection's local address.
	PublicHost string `mapstructure:"public_host"`

	// PassivePortStart and PassivePortEnd bound the passive data ports.
	PassivePortStart int `mapstructure:"passive_port_start" validate:"min=0,max=65535"`
	PassivePortEnd   int `mapstructure:"passive_port_end" validate:"min=0,max=65535"`

	// Greeting is the text of the 220 welcome reply.
	Greeting string `mapstructure:"greeting"`

	// IdleTimeout closes control connections without commands for this long.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" validate:"min=0"`

	// ConnectionTimeout bounds opening a data connection.
	ConnectionTimeout time.Duration `mapstructure:"connection_timeout" validate:"min=0"`

	// ShutdownTimeout bounds waiting for clients to disconnect on Stop.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`

	// MaxConnections limits concurrent control connections. Connections
	// over the limit get a 421 reply. 0 means unlimited.
	MaxConnections int `mapstructure:"max_connections" validate:"min=0"`

	// ConnectionRate limits accepted connections per second, with
	// ConnectionBurst of headroom. 0 means unlimited.
	ConnectionRate  float64 `mapstructure:"connection_rate" validate:"min=0"`
	ConnectionBurst int     `mapstructure:"connection_burst" validate:"min=0"`

	// TLS enables explicit FTPS (AUTH TLS) when both files are set.
	TLS TLSConfig `mapstructure:"tls"`

	// Auth configures who may log in.
	Auth AuthConfig `mapstructure:"auth"`
}

// TLSConfig locates the FTPS certificate.
type TLSConfig struct {
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// Enabled reports whether a certificate is configured.
func (c TLSConfig) Enabled() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

// AuthConfig lists accepted credentials.
type AuthConfig struct {
	// Anonymous accepts the "anonymous" and "ftp" users with any password.
	Anonymous bool `mapstructure:"anonymous"`

	// Users are named accounts with bcrypt password hashes.
	Users []UserConfig `mapstructure:"users" validate:"dive"`
}

// UserConfig is one named account.
type UserConfig struct {
	Username     string `mapstructure:"username" validate:"required"`
	PasswordHash string `mapstructure:"password_hash" validate:"required"`
}

// applyDefaults fills in zero values with sensible defaults.
func (c *FTPConfig) applyDefaults() {
	// Enabled and Auth.Anonymous defaults live in pkg/config so that an
	// explicit false in a file survives.
	if c.BindAddress == "" {
		c.BindAddress = "127.0.0.1"
	}
	if c.PassivePortStart == 0 && c.PassivePortEnd == 0 {
		c.PassivePortStart = 50000
		c.PassivePortEnd = 65535
	}
	if c.Greeting == "" {
		c.Greeting = DefaultGreeting
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 15 * time.Minute
	}
	if c.ConnectionTimeout == 0 {
		c.ConnectionTimeout = 30 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
}

// validate checks the configuration after defaults are applied.
func (c *FTPConfig) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 0-65535", c.Port)
	}
	if c.PassivePortStart <= 0 || c.PassivePortEnd > 65535 || c.PassivePortStart > c.PassivePortEnd {
		return fmt.Errorf("invalid passive port range %d-%d", c.PassivePortStart, c.PassivePortEnd)
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("invalid MaxConnections %d: must be >= 0", c.MaxConnections)
	}
	if (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		return fmt.Errorf("tls: cert_file and key_file must be set together")
	}
	if !c.Auth.Anonymous && len(c.Auth.Users) == 0 {
		return fmt.Errorf("auth: anonymous access is disabled and no users are configured")
	}
	return nil
}

// ListenAddress returns the host:port of the control connection.
func (c *FTPConfig) ListenAddress() string {
	return net.JoinHostPort(c.BindAddress, strconv.Itoa(c.Port))
}
