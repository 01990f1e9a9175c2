// Package cache implements a block cache in front of an image source.
//
// Disc images are read in small, highly repetitive patterns: every session
// re-reads the volume descriptors, the path tables and the directory
// records it walks. CachedSource splits the image into fixed-size blocks
// and keeps them in a BlockStore shared by all sessions, so only the first
// session pays the cost of a remote read.
//
// Because images are immutable, cached blocks never need invalidation.
// Keys embed the source name and length; replacing an image in place
// with one of identical length requires clearing a persistent store.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/marmos91/dittoiso/pkg/source"
)

// DefaultBlockSize is one ISO 9660 logical sector times 32.
const DefaultBlockSize = 64 * 1024

// BlockStore stores immutable image blocks by key.
//
// Implementations must be safe for concurrent use. A Get miss is reported
// with ok == false and a nil error.
type BlockStore interface {
	Get(ctx context.Context, key string) (block []byte, ok bool, err error)
	Put(ctx context.Context, key string, block []byte) error
	Close() error
}

// Config configures a CachedSource.
type Config struct {
	// BlockSize is the cache granularity in bytes (default: DefaultBlockSize)
	BlockSize int64

	// Metrics is optional; nil disables collection
	Metrics Metrics
}

// CachedSource wraps a Source with a BlockStore.
//
// Closing a CachedSource closes the wrapped source but not the store,
// which outlives sessions.
type CachedSource struct {
	src       source.Source
	store     BlockStore
	blockSize int64
	prefix    string
	metrics   Metrics
}

// New wraps src with store.
func New(src source.Source, store BlockStore, cfg Config) *CachedSource {
	blockSize := cfg.BlockSize
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}

	return &CachedSource{
		src:       src,
		store:     store,
		blockSize: blockSize,
		prefix:    fmt.Sprintf("%s@%d", src.Name(), src.Size()),
		metrics:   metrics,
	}
}

// NewOpener wraps every source produced by open with store.
func NewOpener(open source.Opener, store BlockStore, cfg Config) source.Opener {
	return func(ctx context.Context) (source.Source, error) {
		src, err := open(ctx)
		if err != nil {
			return nil, err
		}
		return New(src, store, cfg), nil
	}
}

// ReadAt serves p from cached blocks, filling misses from the wrapped source.
func (c *CachedSource) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	size := c.src.Size()
	if off >= size {
		return 0, io.EOF
	}

	total := 0
	for total < len(p) && off+int64(total) < size {
		pos := off + int64(total)
		index := pos / c.blockSize

		block, err := c.block(ctx, index)
		if err != nil {
			return total, err
		}

		within := pos - index*c.blockSize
		if within >= int64(len(block)) {
			break
		}
		total += copy(p[total:], block[within:])
	}

	if total < len(p) {
		return total, io.EOF
	}
	return total, nil
}

func (c *CachedSource) block(ctx context.Context, index int64) ([]byte, error) {
	key := fmt.Sprintf("%s/%d", c.prefix, index)

	block, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("block cache get %s: %w", key, err)
	}
	if ok {
		c.metrics.RecordHit()
		return block, nil
	}
	c.metrics.RecordMiss()

	start := time.Now()

	length := c.blockSize
	if remaining := c.src.Size() - index*c.blockSize; remaining < length {
		length = remaining
	}

	block = make([]byte, length)
	n, err := source.ReadFull(ctx, c.src, block, index*c.blockSize)
	if err != nil && !(errors.Is(err, io.EOF) && int64(n) == length) {
		return nil, err
	}

	if err := c.store.Put(ctx, key, block); err != nil {
		return nil, fmt.Errorf("block cache put %s: %w", key, err)
	}

	c.metrics.ObserveFill(int64(len(block)), time.Since(start))
	return block, nil
}

func (c *CachedSource) Size() int64 {
	return c.src.Size()
}

func (c *CachedSource) Name() string {
	return c.src.Name()
}

func (c *CachedSource) Close() error {
	return c.src.Close()
}
