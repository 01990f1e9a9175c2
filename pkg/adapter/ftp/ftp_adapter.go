// Package ftp serves storage backends over FTP using ftpserverlib.
//
// Each authenticated client gets its own backend session from the
// configured storage.Factory. The session is exposed to the FTP library as
// an afero.Fs; reads are forwarded to the backend and every mutation is
// refused with a permission error.
package ftp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	ftpserver "github.com/fclairamb/ftpserverlib"
	"github.com/marmos91/dittoiso/internal/logger"
	"github.com/marmos91/dittoiso/internal/ratelimiter"
	"github.com/marmos91/dittoiso/pkg/metrics"
	"github.com/marmos91/dittoiso/pkg/storage"
)

// FTPAdapter implements the adapter.Adapter interface for FTP.
//
// Shutdown closes the listener, cancels the context of every backend
// session and waits up to ShutdownTimeout for clients to leave before
// force-closing their control connections.
type FTPAdapter struct {
	config  FTPConfig
	metrics metrics.FTPMetrics
	factory storage.Factory

	mu       sync.Mutex
	listener *limitListener
	server   *ftpserver.FtpServer
	driver   *driver

	// sessionCtx is the parent of every backend call; cancelled on shutdown
	sessionCtx     context.Context
	cancelSessions context.CancelFunc

	shutdownOnce sync.Once
	shutdown     chan struct{}
}

// New creates an FTP adapter with the provided configuration.
//
// Zero fields of config take their defaults before validation. The adapter
// does not listen until Serve is called.
//
// Parameters:
//   - config: FTP listener, passive range, TLS and authentication settings
//   - ftpMetrics: Metrics sink; nil selects a no-op implementation
//
// Returns a configured adapter. Panics if config validation fails.
func New(config FTPConfig, ftpMetrics metrics.FTPMetrics) *FTPAdapter {
	config.applyDefaults()
	if err := config.validate(); err != nil {
		panic(fmt.Sprintf("invalid FTP config: %v", err))
	}

	if ftpMetrics == nil {
		ftpMetrics = metrics.NewNoopFTPMetrics()
	}

	sessionCtx, cancel := context.WithCancel(context.Background())

	return &FTPAdapter{
		config:         config,
		metrics:        ftpMetrics,
		sessionCtx:     sessionCtx,
		cancelSessions: cancel,
		shutdown:       make(chan struct{}),
	}
}

// SetFactory injects the session factory. Must be called before Serve.
func (s *FTPAdapter) SetFactory(factory storage.Factory) {
	s.factory = factory
}

// Serve listens on the configured address and serves FTP until ctx is
// cancelled or Stop is called. Returns nil on graceful shutdown.
//
// Every client that logs in gets its own session from the factory, opened
// with a context that Stop cancels. Connections beyond MaxConnections get a
// 421 reply and are closed.
//
// Thread safety:
// Serve must be called once. Stop, Addr and ActiveSessions may be called
// from other goroutines while it runs.
func (s *FTPAdapter) Serve(ctx context.Context) error {
	if s.factory == nil {
		return errors.New("FTP adapter has no storage factory")
	}

	ln, err := net.Listen("tcp", s.config.ListenAddress())
	if err != nil {
		return fmt.Errorf("failed to create FTP listener on %s: %w", s.config.ListenAddress(), err)
	}

	var limiter *ratelimiter.RateLimiter
	if s.config.ConnectionRate > 0 {
		limiter = ratelimiter.New(s.config.ConnectionRate, s.config.ConnectionBurst)
	}
	limited := newLimitListener(ln, limiter, s.config.MaxConnections, s.metrics)

	settings := &ftpserver.Settings{
		Listener:   limited,
		ListenAddr: ln.Addr().String(),
		PublicHost: s.config.PublicHost,
		PassiveTransferPortRange: &ftpserver.PortRange{
			Start: s.config.PassivePortStart,
			End:   s.config.PassivePortEnd,
		},
		IdleTimeout:         int(s.config.IdleTimeout / time.Second),
		ConnectionTimeout:   int(s.config.ConnectionTimeout / time.Second),
		DefaultTransferType: ftpserver.TransferTypeBinary,
	}

	drv := newDriver(s, settings)
	server := ftpserver.NewFtpServer(drv)

	s.mu.Lock()
	select {
	case <-s.shutdown:
		s.mu.Unlock()
		_ = ln.Close()
		return nil
	default:
	}
	s.listener = limited
	s.server = server
	s.driver = drv
	s.mu.Unlock()

	logger.Info("FTP server listening on %s", ln.Addr())
	logger.Debug("FTP config: passive_ports=%d-%d max_connections=%d connection_rate=%.1f tls=%t anonymous=%t users=%d",
		s.config.PassivePortStart, s.config.PassivePortEnd, s.config.MaxConnections,
		s.config.ConnectionRate, s.config.TLS.Enabled(), s.config.Auth.Anonymous, len(s.config.Auth.Users))

	go func() {
		select {
		case <-ctx.Done():
			logger.Info("FTP shutdown signal received: %v", ctx.Err())
			s.initiateShutdown()
		case <-s.shutdown:
		}
	}()

	serveErr := server.ListenAndServe()

	select {
	case <-s.shutdown:
		return s.gracefulShutdown()
	default:
	}

	// the listener failed on its own
	s.initiateShutdown()
	_ = s.gracefulShutdown()
	if serveErr == nil {
		return errors.New("FTP server stopped unexpectedly")
	}
	return fmt.Errorf("FTP server failed: %w", serveErr)
}

// initiateShutdown stops accepting connections and cancels in-flight
// backend calls. Safe to call more than once.
func (s *FTPAdapter) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		logger.Debug("FTP shutdown initiated")

		s.mu.Lock()
		close(s.shutdown)
		server, ln := s.server, s.listener
		s.mu.Unlock()

		if server != nil {
			if err := server.Stop(); err != nil {
				logger.Debug("Error stopping FTP server: %v", err)
			}
		}
		// the library may not have taken the listener yet
		if ln != nil {
			_ = ln.Close()
		}

		s.cancelSessions()
	})
}

// gracefulShutdown waits up to ShutdownTimeout for clients to disconnect,
// then force-closes the rest.
func (s *FTPAdapter) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.waitForClients(ctx); err != nil {
		s.forceClose()
	}
	return nil
}

// waitForClients polls the connection count until it reaches zero.
func (s *FTPAdapter) waitForClients(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return nil
	}

	if active := ln.Active(); active > 0 {
		logger.Info("FTP graceful shutdown: waiting for %d active connection(s)", active)
	}

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for ln.Active() > 0 {
		select {
		case <-ctx.Done():
			logger.Warn("FTP shutdown timeout: %d connection(s) still active", ln.Active())
			return ctx.Err()
		case <-ticker.C:
		}
	}
	logger.Info("FTP graceful shutdown complete: all connections closed")
	return nil
}

// forceClose closes every remaining control connection and session.
func (s *FTPAdapter) forceClose() {
	s.mu.Lock()
	ln, drv := s.listener, s.driver
	s.mu.Unlock()

	if ln != nil {
		if n := ln.closeAll(); n > 0 {
			logger.Info("FTP force-closed %d connection(s)", n)
		}
	}
	if drv != nil {
		drv.closeSessions()
	}
}

// Stop initiates shutdown and waits for clients until ctx expires, at which
// point remaining connections are force-closed and ctx.Err() is returned.
func (s *FTPAdapter) Stop(ctx context.Context) error {
	s.initiateShutdown()

	if ctx == nil {
		return s.gracefulShutdown()
	}

	if err := s.waitForClients(ctx); err != nil {
		s.forceClose()
		return err
	}
	return nil
}

// Addr returns the bound control address, nil before Serve is listening.
func (s *FTPAdapter) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ActiveSessions returns the number of logged-in clients.
func (s *FTPAdapter) ActiveSessions() int {
	s.mu.Lock()
	drv := s.driver
	s.mu.Unlock()
	if drv == nil {
		return 0
	}
	return drv.activeSessions()
}

// Port returns the configured control port.
func (s *FTPAdapter) Port() int {
	return s.config.Port
}

// Protocol returns "FTP".
func (s *FTPAdapter) Protocol() string {
	return "FTP"
}
