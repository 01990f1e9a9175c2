// Package memory implements an image source held entirely in memory.
package memory

import (
	"context"
	"io"
	"sync/atomic"

	"github.com/marmos91/dittoiso/pkg/source"
)

// MemorySource serves an image from a byte slice.
//
// The slice is never modified. Several MemorySource values may share the
// same slice; closing one does not affect the others.
type MemorySource struct {
	name   string
	data   []byte
	closed atomic.Bool
}

// New wraps data. The caller must not modify data afterwards.
func New(name string, data []byte) *MemorySource {
	return &MemorySource{name: name, data: data}
}

// NewOpener returns an opener handing out independent handles over data.
func NewOpener(name string, data []byte) source.Opener {
	return func(ctx context.Context) (source.Source, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return New(name, data), nil
	}
}

func (s *MemorySource) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s.closed.Load() {
		return 0, source.ErrClosed
	}
	if off < 0 {
		return 0, io.ErrUnexpectedEOF
	}
	if off >= int64(len(s.data)) {
		return 0, io.EOF
	}

	n := copy(p, s.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (s *MemorySource) Size() int64 {
	return int64(len(s.data))
}

func (s *MemorySource) Name() string {
	return "memory://" + s.name
}

func (s *MemorySource) Close() error {
	s.closed.Store(true)
	return nil
}
