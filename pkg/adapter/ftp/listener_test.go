package ftp

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/marmos91/dittoiso/internal/ratelimiter"
	"github.com/marmos91/dittoiso/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rejectMetrics struct {
	metrics.FTPMetrics
	rejected chan string
}

func (m *rejectMetrics) RecordConnectionRejected(reason string) { m.rejected <- reason }

func startLimitListener(t *testing.T, limiter *ratelimiter.RateLimiter, maxConns int) (*limitListener, <-chan net.Conn, *rejectMetrics) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	m := &rejectMetrics{FTPMetrics: metrics.NewNoopFTPMetrics(), rejected: make(chan string, 8)}
	l := newLimitListener(ln, limiter, maxConns, m)
	t.Cleanup(func() { _ = l.Close() })

	accepted := make(chan net.Conn, 8)
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			accepted <- conn
		}
	}()
	return l, accepted, m
}

func dial(t *testing.T, addr net.Addr) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readLine(t *testing.T, conn net.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	return line
}

func TestLimitListenerMaxConnections(t *testing.T) {
	l, accepted, m := startLimitListener(t, nil, 1)

	dial(t, l.Addr())
	var first net.Conn
	select {
	case first = <-accepted:
	case <-time.After(5 * time.Second):
		t.Fatal("first connection was not accepted")
	}
	assert.Equal(t, int32(1), l.Active())

	second := dial(t, l.Addr())
	assert.Equal(t, busyReply, readLine(t, second))
	assert.Equal(t, "max_connections", <-m.rejected)

	require.NoError(t, first.Close())
	require.NoError(t, first.Close())
	assert.Equal(t, int32(0), l.Active())

	dial(t, l.Addr())
	select {
	case <-accepted:
	case <-time.After(5 * time.Second):
		t.Fatal("slot was not released")
	}
}

func TestLimitListenerRate(t *testing.T) {
	l, accepted, m := startLimitListener(t, ratelimiter.New(0.001, 1), 0)

	dial(t, l.Addr())
	select {
	case <-accepted:
	case <-time.After(5 * time.Second):
		t.Fatal("first connection was not accepted")
	}

	second := dial(t, l.Addr())
	assert.Equal(t, busyReply, readLine(t, second))
	assert.Equal(t, "rate_limited", <-m.rejected)
}

func TestLimitListenerCloseAll(t *testing.T) {
	l, accepted, _ := startLimitListener(t, nil, 0)

	client := dial(t, l.Addr())
	select {
	case <-accepted:
	case <-time.After(5 * time.Second):
		t.Fatal("connection was not accepted")
	}

	assert.Equal(t, 1, l.closeAll())
	assert.Equal(t, int32(0), l.Active())

	require.NoError(t, client.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, err := client.Read(make([]byte, 1))
	assert.Error(t, err)
}
