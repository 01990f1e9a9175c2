// Package memory implements an in-process block store backed by ristretto.
package memory

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto/v2"
)

// Store keeps image blocks in a cost-bounded ristretto cache.
//
// The cost of a block is its length, so MaxSizeBytes bounds the memory
// held by cached image data. Eviction uses ristretto's TinyLFU admission
// and sampled LFU eviction.
type Store struct {
	cache *ristretto.Cache[string, []byte]
}

// Config configures the memory block store.
type Config struct {
	// MaxSizeBytes bounds the total size of cached blocks
	MaxSizeBytes int64 `mapstructure:"max_size_bytes"`

	// ExpectedBlockSize is used to size the admission counters
	ExpectedBlockSize int64 `mapstructure:"-"`
}

// New creates a memory block store.
func New(cfg Config) (*Store, error) {
	if cfg.MaxSizeBytes <= 0 {
		return nil, fmt.Errorf("memory block cache: max_size_bytes must be positive")
	}

	blockSize := cfg.ExpectedBlockSize
	if blockSize <= 0 {
		blockSize = 64 * 1024
	}

	// ristretto recommends 10x the expected number of items
	counters := (cfg.MaxSizeBytes / blockSize) * 10
	if counters < 1000 {
		counters = 1000
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: counters,
		MaxCost:     cfg.MaxSizeBytes,
		BufferItems: 64,

		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create memory block cache: %w", err)
	}

	return &Store{cache: cache}, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	block, ok := s.cache.Get(key)
	return block, ok, nil
}

// Put stores block and waits for ristretto's write buffer to drain, so a
// following Get observes the block unless admission rejected it.
func (s *Store) Put(ctx context.Context, key string, block []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.cache.Set(key, block, int64(len(block)))
	s.cache.Wait()
	return nil
}

func (s *Store) Close() error {
	s.cache.Close()
	return nil
}
