// Package server runs protocol adapters over one storage factory.
package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/dittoiso/internal/logger"
	"github.com/marmos91/dittoiso/pkg/adapter"
	"github.com/marmos91/dittoiso/pkg/metrics"
	"github.com/marmos91/dittoiso/pkg/storage"
)

// DefaultShutdownTimeout bounds adapter shutdown when Config leaves it zero.
const DefaultShutdownTimeout = 30 * time.Second

// Config configures a DittoServer.
type Config struct {
	// ShutdownTimeout bounds the Stop() calls issued to adapters
	ShutdownTimeout time.Duration

	// MetricsServer is started alongside the adapters when set
	MetricsServer *metrics.Server
}

// DittoServer manages the lifecycle of the protocol adapters that serve
// one storage factory.
//
// Lifecycle:
//  1. Creation: New() with the storage factory
//  2. Registration: AddAdapter() for each protocol
//  3. Startup: Serve() starts all adapters (and the metrics server) concurrently
//  4. Shutdown: context cancellation or an adapter failure stops everything
//
// Thread safety:
// AddAdapter() may be called concurrently until Serve() is called.
// Serve() may only be called once.
type DittoServer struct {
	factory storage.Factory
	config  Config

	mu       sync.RWMutex
	adapters []adapter.Adapter
	served   bool
}

// New creates a DittoServer. Panics if factory is nil.
func New(factory storage.Factory, config Config) *DittoServer {
	if factory == nil {
		panic("storage factory cannot be nil")
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = DefaultShutdownTimeout
	}

	return &DittoServer{
		factory:  factory,
		config:   config,
		adapters: make([]adapter.Adapter, 0, 2),
	}
}

// AddAdapter injects the storage factory into a and registers it.
//
// Returns an error when the protocol or the port is already taken.
// Panics if a is nil or Serve() has been called.
func (s *DittoServer) AddAdapter(a adapter.Adapter) error {
	if a == nil {
		panic("adapter cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.served {
		panic("cannot add adapter after Serve() has been called")
	}

	for _, existing := range s.adapters {
		if existing.Protocol() == a.Protocol() {
			return fmt.Errorf("adapter for protocol %s already registered", a.Protocol())
		}
		if a.Port() != 0 && existing.Port() == a.Port() {
			return fmt.Errorf("port %d already in use by %s adapter", a.Port(), existing.Protocol())
		}
	}

	a.SetFactory(s.factory)
	s.adapters = append(s.adapters, a)

	logger.Info("Registered %s adapter on port %d", a.Protocol(), a.Port())
	return nil
}

// Adapters returns a copy of the registered adapters.
func (s *DittoServer) Adapters() []adapter.Adapter {
	s.mu.RLock()
	defer s.mu.RUnlock()

	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	return adapters
}

// Serve starts every adapter and blocks until ctx is cancelled or one of
// them fails.
//
// Returns:
//   - ctx.Err() when shutdown was triggered by the context
//   - the first adapter error otherwise
func (s *DittoServer) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.served {
		s.mu.Unlock()
		return errors.New("Serve() has already been called on this server instance")
	}
	s.served = true
	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	s.mu.Unlock()

	if len(adapters) == 0 {
		return fmt.Errorf("no adapters registered; call AddAdapter() before Serve()")
	}

	logger.Info("Starting DittoISO with %d adapter(s)", len(adapters))

	// adapters and the metrics server get their own context so that an
	// adapter failure can stop the others
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errChan := make(chan adapterError, len(adapters)+1)
	var wg sync.WaitGroup

	if ms := s.config.MetricsServer; ms != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ms.Start(runCtx); err != nil && runCtx.Err() == nil {
				errChan <- adapterError{protocol: "metrics", err: err}
			}
		}()
	}

	for _, a := range adapters {
		wg.Add(1)
		go func(a adapter.Adapter) {
			defer wg.Done()

			logger.Info("Starting %s adapter on port %d", a.Protocol(), a.Port())
			if err := a.Serve(runCtx); err != nil && runCtx.Err() == nil {
				logger.Error("%s adapter failed: %v", a.Protocol(), err)
				errChan <- adapterError{protocol: a.Protocol(), err: err}
				return
			}
			logger.Info("%s adapter stopped", a.Protocol())
		}(a)
	}

	var shutdownErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received (reason: %v)", ctx.Err())
		shutdownErr = ctx.Err()
	case failed := <-errChan:
		logger.Error("%s failed: %v - initiating shutdown", failed.protocol, failed.err)
		shutdownErr = fmt.Errorf("%s adapter error: %w", failed.protocol, failed.err)
	}

	cancel()
	s.stopAllAdapters(adapters)

	logger.Debug("Waiting for all adapters to complete shutdown")
	wg.Wait()

	logger.Info("DittoISO stopped")
	return shutdownErr
}

type adapterError struct {
	protocol string
	err      error
}

// stopAllAdapters stops adapters in reverse registration order, sharing
// one ShutdownTimeout deadline.
func (s *DittoServer) stopAllAdapters(adapters []adapter.Adapter) {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	for i := len(adapters) - 1; i >= 0; i-- {
		a := adapters[i]
		if err := a.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Error stopping %s adapter: %v", a.Protocol(), err)
		}
	}
}
