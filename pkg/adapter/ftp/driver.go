package ftp

import (
	"crypto/tls"
	"errors"
	"fmt"
	"sync"

	ftpserver "github.com/fclairamb/ftpserverlib"
	"github.com/marmos91/dittoiso/internal/logger"
	"github.com/marmos91/dittoiso/pkg/storage"
)

// driver implements ftpserver.MainDriver. It authenticates clients and
// opens one backend session per logged-in connection, closed when the
// client disconnects.
type driver struct {
	adapter  *FTPAdapter
	settings *ftpserver.Settings
	auth     *authenticator

	tlsOnce   sync.Once
	tlsConfig *tls.Config
	tlsErr    error

	mu       sync.Mutex
	sessions map[uint32]storage.Backend
}

var _ ftpserver.MainDriver = (*driver)(nil)

func newDriver(a *FTPAdapter, settings *ftpserver.Settings) *driver {
	return &driver{
		adapter:  a,
		settings: settings,
		auth:     newAuthenticator(a.config.Auth),
		sessions: make(map[uint32]storage.Backend),
	}
}

func (d *driver) GetSettings() (*ftpserver.Settings, error) {
	return d.settings, nil
}

func (d *driver) ClientConnected(cc ftpserver.ClientContext) (string, error) {
	logger.With(logger.Fields{"client": cc.RemoteAddr().String()}).Debug("FTP client %d connected", cc.ID())
	return d.adapter.config.Greeting, nil
}

func (d *driver) ClientDisconnected(cc ftpserver.ClientContext) {
	d.mu.Lock()
	backend, ok := d.sessions[cc.ID()]
	delete(d.sessions, cc.ID())
	d.mu.Unlock()

	if ok {
		if err := backend.Close(); err != nil {
			logger.Warn("Failed to close session of FTP client %d: %v", cc.ID(), err)
		}
	}
	logger.With(logger.Fields{"client": cc.RemoteAddr().String()}).Debug("FTP client %d disconnected", cc.ID())
}

func (d *driver) AuthUser(cc ftpserver.ClientContext, user, pass string) (ftpserver.ClientDriver, error) {
	log := logger.With(logger.Fields{"client": cc.RemoteAddr().String(), "user": user})

	kind, err := d.auth.authenticate(user, pass)
	if err != nil {
		d.adapter.metrics.RecordLogin("failure")
		log.Info("FTP login refused")
		return nil, err
	}
	d.adapter.metrics.RecordLogin(kind)

	factory := d.adapter.factory
	if factory == nil {
		return nil, errors.New("no storage backend configured")
	}

	backend, err := factory.NewSession(d.adapter.sessionCtx)
	if err != nil {
		log.Error("Failed to open image session: %v", err)
		return nil, fmt.Errorf("storage unavailable")
	}

	d.mu.Lock()
	if previous, ok := d.sessions[cc.ID()]; ok {
		// a second USER/PASS on the same connection replaces the session
		_ = previous.Close()
	}
	d.sessions[cc.ID()] = backend
	d.mu.Unlock()

	if s, ok := backend.(interface{ ID() string }); ok {
		log = log.With(logger.Fields{"session": s.ID()})
	}
	log.Info("FTP login accepted (%s)", kind)

	return newClientFs(d.adapter.sessionCtx, backend, d.adapter.metrics, log), nil
}

// GetTLSConfig loads the certificate once. Without one, AUTH TLS is refused.
func (d *driver) GetTLSConfig() (*tls.Config, error) {
	d.tlsOnce.Do(func() {
		cfg := d.adapter.config.TLS
		if !cfg.Enabled() {
			d.tlsErr = errors.New("TLS is not configured")
			return
		}

		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			d.tlsErr = fmt.Errorf("failed to load TLS certificate: %w", err)
			return
		}
		d.tlsConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
	})
	return d.tlsConfig, d.tlsErr
}

// closeSessions closes every open session. Used on shutdown.
func (d *driver) closeSessions() int {
	d.mu.Lock()
	sessions := d.sessions
	d.sessions = make(map[uint32]storage.Backend)
	d.mu.Unlock()

	for id, backend := range sessions {
		if err := backend.Close(); err != nil {
			logger.Debug("Error closing session of FTP client %d: %v", id, err)
		}
	}
	return len(sessions)
}

// activeSessions returns the number of logged-in clients.
func (d *driver) activeSessions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sessions)
}
