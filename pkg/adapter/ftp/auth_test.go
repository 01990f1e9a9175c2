package ftp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestAuthenticate(t *testing.T) {
	a := newAuthenticator(AuthConfig{
		Anonymous: true,
		Users:     []UserConfig{{Username: "alice", PasswordHash: hashPassword(t, "secret")}},
	})

	kind, err := a.authenticate("alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "user", kind)

	_, err = a.authenticate("alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	kind, err = a.authenticate("anonymous", "guest@example.com")
	require.NoError(t, err)
	assert.Equal(t, "anonymous", kind)

	kind, err = a.authenticate("ftp", "")
	require.NoError(t, err)
	assert.Equal(t, "anonymous", kind)

	_, err = a.authenticate("bob", "secret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticateAnonymousDisabled(t *testing.T) {
	a := newAuthenticator(AuthConfig{
		Users: []UserConfig{{Username: "alice", PasswordHash: hashPassword(t, "secret")}},
	})

	_, err := a.authenticate("anonymous", "x")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = a.authenticate("alice", "secret")
	assert.NoError(t, err)
}

func TestConfigValidate(t *testing.T) {
	cfg := FTPConfig{Auth: AuthConfig{Anonymous: true}}
	cfg.applyDefaults()
	require.NoError(t, cfg.validate())
	assert.Equal(t, "127.0.0.1", cfg.BindAddress)
	assert.Equal(t, DefaultGreeting, cfg.Greeting)
	assert.Equal(t, "127.0.0.1:0", cfg.ListenAddress())

	noUsers := FTPConfig{}
	noUsers.applyDefaults()
	assert.Error(t, noUsers.validate())

	halfTLS := FTPConfig{Auth: AuthConfig{Anonymous: true}, TLS: TLSConfig{CertFile: "cert.pem"}}
	halfTLS.applyDefaults()
	assert.Error(t, halfTLS.validate())

	badRange := FTPConfig{Auth: AuthConfig{Anonymous: true}, PassivePortStart: 6000, PassivePortEnd: 5000}
	badRange.applyDefaults()
	assert.Error(t, badRange.validate())

	assert.Panics(t, func() { New(FTPConfig{}, nil) })
}
