// Package fs implements an image source backed by a local file.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/marmos91/dittoiso/pkg/source"
)

// FileSource reads a disc image from the local filesystem.
//
// Characteristics:
//   - One os.File per FileSource, opened read-only
//   - ReadAt maps directly onto os.File.ReadAt (pread), so concurrent
//     reads do not share a cursor
//   - Size is captured at open time; images are immutable
//
// Thread Safety:
// ReadAt is safe for concurrent use. Close is idempotent.
type FileSource struct {
	path string
	file *os.File
	size int64

	closeOnce sync.Once
	closeErr  error
}

// Open opens the image file at path.
//
// Context Cancellation:
// This operation checks the context before touching the filesystem.
//
// Parameters:
//   - ctx: Context for cancellation
//   - path: Path of the image file
//
// Returns:
//   - *FileSource: Open source
//   - error: source.ErrNotFound if the file does not exist, or an open/stat error
func Open(ctx context.Context, path string) (*FileSource, error) {
	// ========================================================================
	// Step 1: Check context before filesystem operations
	// ========================================================================

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if path == "" {
		return nil, fmt.Errorf("image path is required")
	}

	// ========================================================================
	// Step 2: Open and stat the image
	// ========================================================================

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("image %s: %w", path, source.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to open image: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to stat image: %w", err)
	}

	if info.IsDir() {
		_ = file.Close()
		return nil, fmt.Errorf("image path %s is a directory", path)
	}

	return &FileSource{
		path: path,
		file: file,
		size: info.Size(),
	}, nil
}

// NewOpener returns a source.Opener that opens path on every call.
func NewOpener(path string) source.Opener {
	return func(ctx context.Context) (source.Source, error) {
		return Open(ctx, path)
	}
}

// ReadAt reads len(p) bytes at off.
//
// Returns io.EOF when the read reaches the end of the image, like
// os.File.ReadAt.
func (s *FileSource) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if off >= s.size {
		return 0, io.EOF
	}

	n, err := s.file.ReadAt(p, off)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return n, io.EOF
		}
		if errors.Is(err, os.ErrClosed) {
			return n, source.ErrClosed
		}
		return n, fmt.Errorf("failed to read image at offset %d: %w", off, err)
	}

	return n, nil
}

// Size returns the image length.
func (s *FileSource) Size() int64 {
	return s.size
}

// Name returns the image path.
func (s *FileSource) Name() string {
	return s.path
}

// Close closes the underlying file.
func (s *FileSource) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.file.Close()
	})
	return s.closeErr
}
