package ftp

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/dittoiso/internal/logger"
	"github.com/marmos91/dittoiso/internal/ratelimiter"
	"github.com/marmos91/dittoiso/pkg/metrics"
)

// busyReply is written to connections refused before the greeting.
const busyReply = "421 Too many connections, try again later.\r\n"

// limitListener wraps the control listener with connection throttling:
// a token bucket on accepted connections and a cap on concurrent ones.
// Refused connections get a 421 reply and are closed; Accept keeps
// waiting for the next one.
type limitListener struct {
	net.Listener

	limiter *ratelimiter.RateLimiter
	slots   chan struct{}
	metrics metrics.FTPMetrics

	active atomic.Int32

	mu    sync.Mutex
	conns map[*trackedConn]struct{}
}

func newLimitListener(ln net.Listener, limiter *ratelimiter.RateLimiter, maxConns int, m metrics.FTPMetrics) *limitListener {
	l := &limitListener{
		Listener: ln,
		limiter:  limiter,
		metrics:  m,
		conns:    make(map[*trackedConn]struct{}),
	}
	if maxConns > 0 {
		l.slots = make(chan struct{}, maxConns)
	}
	return l
}

func (l *limitListener) Accept() (net.Conn, error) {
	for {
		conn, err := l.Listener.Accept()
		if err != nil {
			return nil, err
		}

		if l.limiter != nil && !l.limiter.Allow() {
			l.reject(conn, "rate_limited")
			continue
		}

		if l.slots != nil {
			select {
			case l.slots <- struct{}{}:
			default:
				l.reject(conn, "max_connections")
				continue
			}
		}

		count := l.active.Add(1)
		l.metrics.RecordConnectionAccepted()
		l.metrics.SetActiveConnections(count)
		logger.Debug("FTP connection accepted from %s (active: %d)", conn.RemoteAddr(), count)

		tc := &trackedConn{Conn: conn, l: l}
		l.mu.Lock()
		l.conns[tc] = struct{}{}
		l.mu.Unlock()
		return tc, nil
	}
}

func (l *limitListener) reject(conn net.Conn, reason string) {
	logger.Debug("FTP connection from %s refused: %s", conn.RemoteAddr(), reason)
	l.metrics.RecordConnectionRejected(reason)

	_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
	_, _ = conn.Write([]byte(busyReply))
	_ = conn.Close()
}

func (l *limitListener) release(c *trackedConn) {
	l.mu.Lock()
	delete(l.conns, c)
	l.mu.Unlock()

	if l.slots != nil {
		<-l.slots
	}
	count := l.active.Add(-1)
	l.metrics.RecordConnectionClosed()
	l.metrics.SetActiveConnections(count)
}

// Active returns the number of open control connections.
func (l *limitListener) Active() int32 {
	return l.active.Load()
}

// closeAll force-closes every open control connection.
func (l *limitListener) closeAll() int {
	l.mu.Lock()
	conns := make([]*trackedConn, 0, len(l.conns))
	for c := range l.conns {
		conns = append(conns, c)
	}
	l.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
	return len(conns)
}

// trackedConn closes the socket and frees its listener slot once. Later
// calls return the result of the first.
type trackedConn struct {
	net.Conn
	l        *limitListener
	once     sync.Once
	closeErr error
}

func (c *trackedConn) Close() error {
	c.once.Do(func() {
		c.closeErr = c.Conn.Close()
		c.l.release(c)
	})
	return c.closeErr
}
