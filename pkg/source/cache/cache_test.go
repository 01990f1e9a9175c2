package cache

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/dittoiso/pkg/source"
	"github.com/marmos91/dittoiso/pkg/source/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapStore struct {
	mu     sync.Mutex
	blocks map[string][]byte
}

func newMapStore() *mapStore {
	return &mapStore{blocks: make(map[string][]byte)}
}

func (s *mapStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blocks[key]
	return b, ok, nil
}

func (s *mapStore) Put(_ context.Context, key string, block []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks[key] = block
	return nil
}

func (s *mapStore) Close() error { return nil }

type countingSource struct {
	source.Source
	mu    sync.Mutex
	reads int
}

func (c *countingSource) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	c.mu.Lock()
	c.reads++
	c.mu.Unlock()
	return c.Source.ReadAt(ctx, p, off)
}

type countingMetrics struct {
	hits, misses int
}

func (m *countingMetrics) RecordHit()                       { m.hits++ }
func (m *countingMetrics) RecordMiss()                      { m.misses++ }
func (m *countingMetrics) ObserveFill(int64, time.Duration) {}

func TestCachedSourceServesRepeatedReadsFromStore(t *testing.T) {
	ctx := context.Background()
	data := []byte("abcdefghijklmnopqrstuvwxyz")
	backing := &countingSource{Source: memory.New("alpha", data)}
	metrics := &countingMetrics{}

	cached := New(backing, newMapStore(), Config{BlockSize: 8, Metrics: metrics})

	buf := make([]byte, 10)
	n, err := cached.ReadAt(ctx, buf, 5)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, "fghijklmno", string(buf))
	assert.Equal(t, 2, backing.reads)

	n, err = cached.ReadAt(ctx, buf, 5)
	require.NoError(t, err)
	assert.Equal(t, "fghijklmno", string(buf[:n]))
	assert.Equal(t, 2, backing.reads, "second read must be served from the store")
	assert.Equal(t, 2, metrics.hits)
	assert.Equal(t, 2, metrics.misses)
}

func TestCachedSourceTail(t *testing.T) {
	ctx := context.Background()
	cached := New(memory.New("tail", []byte("0123456789")), newMapStore(), Config{BlockSize: 4})

	buf := make([]byte, 6)
	n, err := cached.ReadAt(ctx, buf, 7)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "789", string(buf[:n]))

	n, err = cached.ReadAt(ctx, buf, 10)
	assert.ErrorIs(t, err, io.EOF)
	assert.Zero(t, n)
}

func TestCachedSourceKeysIncludeSourceIdentity(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()

	a := New(memory.New("a", []byte("AAAA")), store, Config{BlockSize: 4})
	b := New(memory.New("b", []byte("BBBB")), store, Config{BlockSize: 4})

	buf := make([]byte, 4)
	_, err := a.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "AAAA", string(buf))

	_, err = b.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "BBBB", string(buf))
}

func TestNewOpenerSharesStore(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	open := NewOpener(memory.NewOpener("shared", []byte("shared bytes")), store, Config{BlockSize: 4})

	first, err := open(ctx)
	require.NoError(t, err)
	buf := make([]byte, 6)
	_, err = first.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := open(ctx)
	require.NoError(t, err)
	defer func() { _ = second.Close() }()

	store.mu.Lock()
	cachedBlocks := len(store.blocks)
	store.mu.Unlock()
	assert.Equal(t, 2, cachedBlocks)

	_, err = second.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "shared", string(buf))
}
